package gen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/John-Robertt/qtenum/internal/conflictdoc"
	"github.com/John-Robertt/qtenum/internal/enumtable"
	"github.com/John-Robertt/qtenum/internal/infra/fsx"
	"github.com/John-Robertt/qtenum/internal/provider"
	"github.com/John-Robertt/qtenum/internal/provider/qtdoc"
	"github.com/John-Robertt/qtenum/internal/provider/stubs"
	"github.com/John-Robertt/qtenum/internal/scan"
)

// maxFetch 限制同时进行的抓取/解析数量。
const maxFetch = 4

// Options 描述一次表生成。
type Options struct {
	Provider string
	Refs     []string

	// Out 为空时不落盘，只在 Result.Data 中返回。
	Out   string
	Force bool
	// ConflictsOut 非空时额外写出冲突表 Markdown。
	ConflictsOut string

	Offline bool
	Client  *http.Client
	Cache   provider.PageCache
	// QtDocBaseURL 为空时使用 qtdoc.DefaultBaseURL。
	QtDocBaseURL string
}

// Result 是生成结果的统计与产物。
type Result struct {
	Refs      int
	Cached    int
	Classes   int
	Members   int
	Conflicts int
	Data      []byte
}

// DefaultRegistry 返回内置的全部 provider。
func DefaultRegistry(qtdocBaseURL string) (provider.Registry, error) {
	return provider.NewRegistry(stubs.Provider{}, qtdoc.Provider{BaseURL: qtdocBaseURL})
}

// Generate 抓取并解析 refs，生成经过校验的枚举表文件。
//
// 任一 ref 失败即整体失败（不会写出半张表）。
func Generate(ctx context.Context, opts Options) (Result, error) {
	reg, err := DefaultRegistry(opts.QtDocBaseURL)
	if err != nil {
		return Result{}, err
	}
	p, ok := reg.Get(opts.Provider)
	if !ok {
		return Result{}, fmt.Errorf("未知 provider：%q（可选：%s）", opts.Provider, strings.Join(reg.Names(), ", "))
	}

	refs, err := expandRefs(p, opts.Refs)
	if err != nil {
		return Result{}, err
	}
	if len(refs) == 0 {
		return Result{}, errors.New("没有可用的 ref")
	}

	results := make([]provider.Result, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxFetch)
	for i, ref := range refs {
		i, ref := i, ref
		g.Go(func() error {
			r, err := provider.FetchParse(gctx, reg, p.Name(), ref, provider.FetchOptions{
				Client:  opts.Client,
				Cache:   opts.Cache,
				Offline: opts.Offline,
			})
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	f := BuildFile(results)
	conflicts, err := enumtable.SuggestConflicts(f)
	if err != nil {
		return Result{}, err
	}
	f.Conflicts = conflicts

	tbl, err := enumtable.New(f, nil)
	if err != nil {
		return Result{}, err
	}

	var buf bytes.Buffer
	if err := enumtable.Encode(&buf, f); err != nil {
		return Result{}, err
	}

	res := Result{
		Refs:      len(refs),
		Classes:   tbl.Classes(),
		Members:   tbl.Len(),
		Conflicts: len(conflicts),
		Data:      buf.Bytes(),
	}
	for _, r := range results {
		if r.Cached {
			res.Cached++
		}
	}

	if opts.Out != "" {
		if err := writeOut(opts.Out, res.Data, opts.Force); err != nil {
			return Result{}, err
		}
	}
	if opts.ConflictsOut != "" {
		doc := conflictdoc.Render(tbl)
		if err := fsx.WriteFileAtomicReplace(filepath.Dir(opts.ConflictsOut), filepath.Base(opts.ConflictsOut), []byte(doc)); err != nil {
			return Result{}, fmt.Errorf("写入冲突表失败：%w", err)
		}
	}
	return res, nil
}

// BuildFile 按首次出现的顺序汇总各 ref 的成员（同一枚举类跨 ref 合并、去重），并追加已知改名。
func BuildFile(results []provider.Result) enumtable.File {
	f := enumtable.File{Version: enumtable.FileVersion}

	byClass := map[string]int{}
	seen := map[string]struct{}{}
	for _, r := range results {
		for _, m := range r.Members {
			qual := m.Class.QualName()
			idx, ok := byClass[qual]
			if !ok {
				idx = len(f.Enums)
				byClass[qual] = idx
				f.Enums = append(f.Enums, enumtable.EnumEntry{Class: qual})
			}
			key := qual + "." + m.Name
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			f.Enums[idx].Members = append(f.Enums[idx].Members, m.Name)
		}
	}

	f.Renames = append(f.Renames, enumtable.KnownRenames...)
	return f
}

// expandRefs 把本地目录展开为其中的 .pyi 文件（只对读取本地文件的 provider 生效）。
func expandRefs(p provider.Provider, refs []string) ([]string, error) {
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}
		if p.Remote(ref) {
			out = append(out, ref)
			continue
		}
		fi, err := os.Stat(ref)
		if err != nil || !fi.IsDir() {
			// 交给 provider.Fetch 报告具体错误。
			out = append(out, ref)
			continue
		}
		files, err := scan.ScanSources(ref, scan.Options{Include: []string{"*.pyi"}})
		if err != nil {
			return nil, fmt.Errorf("展开目录 %s 失败：%w", ref, err)
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("目录 %s 下没有 .pyi 文件", ref)
		}
		for _, f := range files {
			out = append(out, f.AbsPath)
		}
	}
	return out, nil
}

func writeOut(path string, data []byte, force bool) error {
	dir, name := filepath.Dir(path), filepath.Base(path)
	if force {
		return fsx.WriteFileAtomicReplace(dir, name, data)
	}
	if err := fsx.WriteFileAtomicNoOverwrite(dir, name, data); err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%s 已存在（使用 --force 覆盖）：%w", path, err)
		}
		return err
	}
	return nil
}
