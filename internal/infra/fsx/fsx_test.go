package fsx

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func assertNoTemp(t *testing.T, dir, name string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir 失败：%v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "."+name+".tmp-") {
			t.Fatalf("临时文件未清理：%q", e.Name())
		}
	}
}

func TestWriteFileAtomicReplaceMode_KeepsModeAndNoTempLeft(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.py")
	if err := os.WriteFile(p, []byte("old"), 0o600); err != nil {
		t.Fatalf("写入失败：%v", err)
	}

	if err := WriteFileAtomicReplaceMode(dir, "a.py", []byte("new"), 0o755); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("读取文件失败：%v", err)
	}
	if string(b) != "new" {
		t.Fatalf("内容不一致：%q", string(b))
	}
	if runtime.GOOS != "windows" {
		fi, err := os.Stat(p)
		if err != nil {
			t.Fatalf("Stat 失败：%v", err)
		}
		if fi.Mode().Perm() != 0o755 {
			t.Fatalf("权限不一致：%v", fi.Mode().Perm())
		}
	}
	assertNoTemp(t, dir, "a.py")
}

func TestWriteFileAtomicReplaceMode_RenameFail_OriginalIntact(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.py")
	if err := os.WriteFile(p, []byte("old"), 0o644); err != nil {
		t.Fatalf("写入失败：%v", err)
	}

	old := renameFunc
	renameFunc = func(oldpath, newpath string) error {
		return os.ErrPermission
	}
	defer func() { renameFunc = old }()

	err := WriteFileAtomicReplaceMode(dir, "a.py", []byte("new"), 0o644)
	if !errors.Is(err, os.ErrPermission) {
		t.Fatalf("期望 ErrPermission，实际：%v", err)
	}

	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("读取文件失败：%v", err)
	}
	if string(b) != "old" {
		t.Fatalf("原文件被破坏：%q", string(b))
	}
	assertNoTemp(t, dir, "a.py")
}

func TestWriteFileAtomicReplaceMode_Missing(t *testing.T) {
	err := WriteFileAtomicReplaceMode(t.TempDir(), "missing.py", []byte("x"), 0o644)
	if !os.IsNotExist(err) {
		t.Fatalf("期望 not exist，实际：%v", err)
	}
}

func TestWriteFileAtomicReplace_CreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "x", "y")
	if err := WriteFileAtomicReplace(dir, "a.txt", []byte("hello")); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if err := WriteFileAtomicReplace(dir, "a.txt", []byte("again")); err != nil {
		t.Fatalf("覆盖不应失败：%v", err)
	}
	b, _ := os.ReadFile(filepath.Join(dir, "a.txt"))
	if string(b) != "again" {
		t.Fatalf("内容不一致：%q", string(b))
	}
	assertNoTemp(t, dir, "a.txt")
}

func TestWriteFileAtomicNoOverwrite(t *testing.T) {
	dir := t.TempDir()

	if err := WriteFileAtomicNoOverwrite(dir, "table.toml", []byte("a")); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	err := WriteFileAtomicNoOverwrite(dir, "table.toml", []byte("b"))
	if !errors.Is(err, os.ErrExist) {
		t.Fatalf("期望 ErrExist，实际：%v", err)
	}
	b, _ := os.ReadFile(filepath.Join(dir, "table.toml"))
	if string(b) != "a" {
		t.Fatalf("不应被覆盖：%q", string(b))
	}
}

func TestWriteFileAtomicNoOverwrite_TargetConflictDir(t *testing.T) {
	dir := t.TempDir()

	// 目标路径是目录：应返回 PathTypeConflictError，而不是 os.ErrExist。
	if err := os.Mkdir(filepath.Join(dir, "a.txt"), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}

	err := WriteFileAtomicNoOverwrite(dir, "a.txt", []byte("hello"))
	if err == nil {
		t.Fatalf("期望错误，但得到 nil")
	}
	if !IsPathTypeConflict(err) {
		t.Fatalf("期望 PathTypeConflictError，实际：%T %v", err, err)
	}
}
