package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/John-Robertt/qtenum/internal/domain"
)

// ErrOfflineMiss 表示 --offline 下缓存未命中。
var ErrOfflineMiss = errors.New("离线模式下缓存未命中")

type FetchOptions struct {
	Client *http.Client
	// Cache 为 nil 时不读写缓存。
	Cache PageCache
	// Offline=true：远程 ref 只读缓存，不发请求。
	Offline bool
}

// Result 是一次 FetchParse 的产物。
type Result struct {
	Provider string
	Ref      string
	// Source 是实际读取的位置（URL 或本地路径）；命中缓存时为空。
	Source  string
	Cached  bool
	Members []domain.Member
}

// Error 是 provider 阶段的可追溯错误（fetch 或 parse）。
type Error struct {
	Provider string
	Ref      string
	Stage    string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider=%s ref=%s stage=%s: %v", e.Provider, e.Ref, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// FetchParse 取得 ref 的内容（缓存优先）并解析为枚举成员。
// 只有解析成功的远程内容才会写回缓存；写缓存失败不影响结果。
func FetchParse(ctx context.Context, reg Registry, name, ref string, opts FetchOptions) (Result, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Result{}, fmt.Errorf("ref 不能为空")
	}
	p, ok := reg.Get(name)
	if !ok {
		return Result{}, fmt.Errorf("未知 provider：%q（可选：%s）", name, strings.Join(reg.Names(), ", "))
	}

	res := Result{Provider: name, Ref: ref}
	remote := p.Remote(ref)

	var body []byte
	if remote && opts.Cache != nil {
		b, hit, err := opts.Cache.ReadPage(name, ref)
		if err != nil {
			return Result{}, &Error{Provider: name, Ref: ref, Stage: "fetch", Err: err}
		}
		if hit {
			body = b
			res.Cached = true
		}
	}
	if body == nil {
		if remote && opts.Offline {
			return Result{}, &Error{Provider: name, Ref: ref, Stage: "fetch", Err: ErrOfflineMiss}
		}
		b, source, err := p.Fetch(ctx, ref, opts.Client)
		if err != nil {
			return Result{}, &Error{Provider: name, Ref: ref, Stage: "fetch", Err: err}
		}
		body = b
		res.Source = source
	}

	members, err := p.Parse(ctx, ref, body)
	if err != nil {
		return Result{}, &Error{Provider: name, Ref: ref, Stage: "parse", Err: err}
	}
	res.Members = members

	if remote && !res.Cached && opts.Cache != nil && !opts.Offline {
		_ = opts.Cache.WritePage(name, ref, body)
	}
	return res, nil
}
