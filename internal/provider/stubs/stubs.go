package stubs

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/John-Robertt/qtenum/internal/domain"
	providerx "github.com/John-Robertt/qtenum/internal/provider"
	"github.com/John-Robertt/qtenum/internal/pysyntax"
)

// Provider 从 PySide6 类型存根（.pyi）中提取枚举定义。
//
// ref 是本地 .pyi 路径或 http(s) URL；模块名取自文件名（__init__.pyi 取所在目录名）。
type Provider struct{}

func (Provider) Name() string { return "stubs" }

func (Provider) Remote(ref string) bool { return providerx.IsRemote(ref) }

func (Provider) Fetch(ctx context.Context, ref string, c *http.Client) ([]byte, string, error) {
	if providerx.IsRemote(ref) {
		b, err := providerx.GetURL(ctx, c, ref)
		return b, ref, err
	}
	abs, err := filepath.Abs(ref)
	if err != nil {
		return nil, "", err
	}
	b, err := os.ReadFile(abs)
	return b, abs, err
}

func (Provider) Parse(ctx context.Context, ref string, body []byte) ([]domain.Member, error) {
	if len(body) == 0 {
		return nil, errors.New("存根为空")
	}
	return pysyntax.ParseStub(ctx, ModuleName(ref), body)
}

// ModuleName 由 ref 推出模块名。
func ModuleName(ref string) string {
	if providerx.IsRemote(ref) {
		if u, err := url.Parse(ref); err == nil {
			p := u.Path
			if path.Base(p) == "__init__.pyi" {
				return path.Base(path.Dir(p))
			}
			b := path.Base(p)
			return b[:len(b)-len(path.Ext(b))]
		}
	}
	return pysyntax.ModuleName(ref)
}
