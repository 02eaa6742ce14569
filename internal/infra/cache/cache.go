package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/John-Robertt/qtenum/internal/infra/fsx"
)

// Store 提供 <Root>/providers/<provider>/ 下的页面缓存读写。
//
// 约束：
// - --offline：只允许读（ReadOnly=true），缓存未命中即失败
// - 其余情况：命中直接用，未命中抓取后写回
type Store struct {
	Root     string
	ReadOnly bool
}

var ErrReadOnly = errors.New("cache: read-only")

func New(root string, readOnly bool) Store {
	return Store{
		Root:     filepath.Clean(strings.TrimSpace(root)),
		ReadOnly: readOnly,
	}
}

// DefaultRoot 返回用户缓存目录下的 qtenum 子目录。
func DefaultRoot() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "qtenum"), nil
}

// PagePath 返回 provider 页面缓存的绝对路径。
//
// ref 可能是 URL 或任意路径，这里把它压成“可读前缀 + 短哈希”，避免路径穿越与重名。
func (s Store) PagePath(provider, ref string) (string, error) {
	p, err := cleanProvider(provider)
	if err != nil {
		return "", err
	}
	name, err := pageName(ref)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.Root, "providers", p, name), nil
}

func (s Store) ReadPage(provider, ref string) ([]byte, bool, error) {
	path, err := s.PagePath(provider, ref)
	if err != nil {
		return nil, false, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return b, true, nil
}

func (s Store) WritePage(provider, ref string, body []byte) error {
	if s.ReadOnly {
		return ErrReadOnly
	}
	path, err := s.PagePath(provider, ref)
	if err != nil {
		return err
	}
	return fsx.WriteFileAtomicReplace(filepath.Dir(path), filepath.Base(path), body)
}

var (
	providerNameRE = regexp.MustCompile(`^[a-z0-9_]+$`)
	unsafeRE       = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
)

func cleanProvider(p string) (string, error) {
	p = strings.ToLower(strings.TrimSpace(p))
	if p == "" {
		return "", fmt.Errorf("provider 不能为空")
	}
	if !providerNameRE.MatchString(p) {
		return "", fmt.Errorf("非法 provider：%q", p)
	}
	return p, nil
}

func pageName(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("ref 不能为空")
	}
	sum := sha256.Sum256([]byte(ref))
	prefix := strings.Trim(unsafeRE.ReplaceAllString(ref, "_"), "._")
	if len(prefix) > 64 {
		prefix = prefix[len(prefix)-64:]
	}
	return prefix + "-" + hex.EncodeToString(sum[:6]) + ".cache", nil
}
