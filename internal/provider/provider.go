package provider

import (
	"context"
	"net/http"

	"github.com/John-Robertt/qtenum/internal/domain"
)

// Provider 是一种枚举定义来源（类型存根、Qt 参考文档……）。
// 核心流程只依赖统一接口与 []domain.Member。
//
// 约束：
// - Fetch 不做缓存、不做重试（这些由 FetchParse 与 httpx 统一实现）
// - Parse 必须只依赖输入：相同输入 => 相同输出
// - Remote(ref)=false 的 ref 是本地文件，不走缓存，--offline 下也可读取
type Provider interface {
	Name() string
	Remote(ref string) bool
	Fetch(ctx context.Context, ref string, c *http.Client) (body []byte, source string, err error)
	Parse(ctx context.Context, ref string, body []byte) ([]domain.Member, error)
}

// PageCache 是 FetchParse 需要的缓存能力（cache.Store 实现了它）。
type PageCache interface {
	ReadPage(provider, ref string) ([]byte, bool, error)
	WritePage(provider, ref string, body []byte) error
}
