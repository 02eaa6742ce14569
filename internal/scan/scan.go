package scan

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"

	"github.com/John-Robertt/qtenum/internal/domain"
)

// DefaultInclude 是未配置 include 时扫描的文件模式。
var DefaultInclude = []string{"*.py", "*.pyi"}

// 版本库与字节码目录，任何层级都跳过。
var alwaysSkipDirs = map[string]struct{}{
	".git":        {},
	".hg":         {},
	".svn":        {},
	"__pycache__": {},
}

type Options struct {
	// Include 是文件模式（gobwas/glob 语法，'/' 为分隔符）。
	// 不含 '/' 的模式只匹配文件名；含 '/' 的模式匹配相对 root 的路径。
	Include []string
	// ExcludeDirs 均视为相对 root 的路径（若是绝对路径，则按绝对路径处理）。
	ExcludeDirs []string
}

type matcher struct {
	g      glob.Glob
	byPath bool
}

// ScanSources 扫描 root 下的源码文件。
//
// 规则：
// - root 是普通文件：直接返回它（不看 include）
// - 只收普通文件；符号链接（文件或目录）一律跳过，既不跟随也不会被替换
// - 输出按相对路径排序
//
// 扫描阶段只做 stat（DirEntry.Info），不读文件内容。
func ScanSources(root string, opts Options) ([]domain.SourceFile, error) {
	root = filepath.Clean(root)

	fi, err := os.Lstat(root)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		if !fi.Mode().IsRegular() {
			return nil, fmt.Errorf("不是普通文件：%q", root)
		}
		return []domain.SourceFile{newSourceFile(root, filepath.Base(root), fi)}, nil
	}

	matchers, err := compileInclude(opts.Include)
	if err != nil {
		return nil, err
	}
	excluded := buildExcluded(root, opts.ExcludeDirs)

	files := make([]domain.SourceFile, 0, 128)
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if d.IsDir() {
			if path == root {
				return nil
			}
			if _, ok := alwaysSkipDirs[d.Name()]; ok || isExcluded(path, excluded) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || isExcluded(path, excluded) {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if !matchAny(matchers, rel) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, newSourceFile(path, rel, info))
		return nil
	})
	if err != nil {
		return nil, err
	}

	// 强制稳定输出，避免不同平台/文件系统行为差异带来的不确定性。
	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}

func newSourceFile(abs, rel string, info fs.FileInfo) domain.SourceFile {
	return domain.SourceFile{
		AbsPath: abs,
		RelPath: filepath.ToSlash(rel),
		Ext:     strings.ToLower(filepath.Ext(abs)),
		Size:    info.Size(),
		Mode:    info.Mode(),
	}
}

func compileInclude(patterns []string) ([]matcher, error) {
	if len(patterns) == 0 {
		patterns = DefaultInclude
	}
	out := make([]matcher, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("非法 include 模式 %q：%w", p, err)
		}
		out = append(out, matcher{g: g, byPath: strings.Contains(p, "/")})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("include 不能为空")
	}
	return out, nil
}

func matchAny(ms []matcher, rel string) bool {
	slashed := filepath.ToSlash(rel)
	base := filepath.Base(rel)
	for _, m := range ms {
		if m.byPath {
			if m.g.Match(slashed) {
				return true
			}
			continue
		}
		if m.g.Match(base) {
			return true
		}
	}
	return false
}

func buildExcluded(root string, excludeDirs []string) []string {
	excluded := make([]string, 0, len(excludeDirs))
	for _, x := range excludeDirs {
		x = strings.TrimSpace(x)
		if x == "" {
			continue
		}
		if filepath.IsAbs(x) {
			excluded = append(excluded, filepath.Clean(x))
			continue
		}
		// x 是相对路径：相对 root。
		excluded = append(excluded, filepath.Clean(filepath.Join(root, x)))
	}

	// 排除列表排序后，isExcluded 的行为更可预测（且便于测试）。
	sort.Strings(excluded)
	return excluded
}

func isExcluded(path string, excluded []string) bool {
	path = filepath.Clean(path)
	for _, base := range excluded {
		if isUnder(path, base) {
			return true
		}
	}
	return false
}

func isUnder(path, base string) bool {
	if path == base {
		return true
	}
	sep := string(filepath.Separator)
	return strings.HasPrefix(path, base+sep)
}
