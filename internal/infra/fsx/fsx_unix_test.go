//go:build unix

package fsx

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"
)

func TestRename_CrossDeviceEXDEV(t *testing.T) {
	old := renameFunc
	renameFunc = func(oldpath, newpath string) error {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: syscall.EXDEV}
	}
	defer func() { renameFunc = old }()

	err := Rename("/a", "/b")
	if err == nil {
		t.Fatalf("期望错误，但得到 nil")
	}
	if !IsCrossDevice(err) {
		t.Fatalf("期望 CrossDeviceError，实际：%T %v", err, err)
	}
}

func TestWriteFileAtomicReplaceMode_SymlinkRejected(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "real.py")
	if err := os.WriteFile(target, []byte("x = 1\n"), 0o644); err != nil {
		t.Fatalf("写入失败：%v", err)
	}
	if err := os.Symlink(target, filepath.Join(dir, "link.py")); err != nil {
		t.Fatalf("创建符号链接失败：%v", err)
	}

	err := WriteFileAtomicReplaceMode(dir, "link.py", []byte("y = 2\n"), 0o644)
	if !IsPathTypeConflict(err) {
		t.Fatalf("期望 PathTypeConflictError，实际：%T %v", err, err)
	}
	fi, err := os.Lstat(filepath.Join(dir, "link.py"))
	if err != nil || fi.Mode()&os.ModeSymlink == 0 {
		t.Fatalf("符号链接不应被替换：%v", err)
	}
}
