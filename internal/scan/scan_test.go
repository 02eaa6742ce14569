package scan

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func rels(t *testing.T, root string, opts Options) []string {
	t.Helper()
	got, err := ScanSources(root, opts)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	out := make([]string, 0, len(got))
	for _, f := range got {
		out = append(out, filepath.ToSlash(f.RelPath))
	}
	return out
}

func assertRels(t *testing.T, got []string, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("期望 %v，实际 %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("期望 %v，实际 %v", want, got)
		}
	}
}

func TestScanSources_DefaultIncludeAndSkipDirs(t *testing.T) {
	root := t.TempDir()

	touch(t, filepath.Join(root, "app", "main.py"))
	touch(t, filepath.Join(root, "app", "ui.pyi"))
	touch(t, filepath.Join(root, "app", "README.md"))
	touch(t, filepath.Join(root, "b.py"))
	touch(t, filepath.Join(root, ".git", "hooks", "x.py"))
	touch(t, filepath.Join(root, "app", "__pycache__", "main.py"))

	assertRels(t, rels(t, root, Options{}), "app/main.py", "app/ui.pyi", "b.py")
}

func TestScanSources_ExcludeDirsFromConfig(t *testing.T) {
	root := t.TempDir()

	touch(t, filepath.Join(root, "vendor", "lib.py"))
	touch(t, filepath.Join(root, "src", "ok.py"))

	assertRels(t, rels(t, root, Options{ExcludeDirs: []string{"vendor"}}), "src/ok.py")
}

func TestScanSources_IncludePatterns(t *testing.T) {
	root := t.TempDir()

	touch(t, filepath.Join(root, "a.py"))
	touch(t, filepath.Join(root, "ui", "form.ui.py"))
	touch(t, filepath.Join(root, "ui", "deep", "view.py"))
	touch(t, filepath.Join(root, "tools", "gen.py"))

	// 含 '/' 的模式匹配相对路径；'**' 可跨目录。
	assertRels(t, rels(t, root, Options{Include: []string{"ui/**.py"}}), "ui/deep/view.py", "ui/form.ui.py")
	// 不含 '/' 的模式只看文件名。
	assertRels(t, rels(t, root, Options{Include: []string{"*.ui.py"}}), "ui/form.ui.py")
	assertRels(t, rels(t, root, Options{Include: []string{"{gen,a}.py"}}), "a.py", "tools/gen.py")
}

func TestScanSources_InvalidPattern(t *testing.T) {
	if _, err := ScanSources(t.TempDir(), Options{Include: []string{"[a-"}}); err == nil {
		t.Fatalf("期望非法模式报错")
	}
}

func TestScanSources_SingleFile(t *testing.T) {
	root := t.TempDir()
	p := filepath.Join(root, "script.txt")
	touch(t, p)

	got, err := ScanSources(p, Options{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(got) != 1 || got[0].AbsPath != p || got[0].RelPath != "script.txt" {
		t.Fatalf("单文件扫描结果不对：%+v", got)
	}
	if got[0].Ext != ".txt" || got[0].Size != 1 {
		t.Fatalf("文件信息不对：%+v", got[0])
	}
}

func TestScanSources_SkipsSymlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("需要符号链接权限")
	}
	root := t.TempDir()
	outside := t.TempDir()
	touch(t, filepath.Join(outside, "far.py"))
	touch(t, filepath.Join(root, "real.py"))

	if err := os.Symlink(filepath.Join(root, "real.py"), filepath.Join(root, "link.py")); err != nil {
		t.Fatalf("创建符号链接失败：%v", err)
	}
	if err := os.Symlink(outside, filepath.Join(root, "linkdir")); err != nil {
		t.Fatalf("创建符号链接失败：%v", err)
	}

	assertRels(t, rels(t, root, Options{}), "real.py")
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
}
