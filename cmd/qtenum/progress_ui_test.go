package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/John-Robertt/qtenum/internal/config"
	"github.com/John-Robertt/qtenum/internal/domain"
)

func TestProgressUI_OnlyChangedAndFailedFilesPrinted(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressUI(&buf)

	p.OnStart(config.EffectiveConfig{Path: "/src", Concurrency: 2})
	p.OnPhaseDone("exec", map[string]any{"workers": 2, "total_files": 3}, 0)
	p.OnFileDone(1, 3, domain.FileResult{Src: "a.py", Status: domain.StatusPlanned, Edits: 2, Guesses: []domain.Guess{{Line: 1}}}, time.Millisecond)
	p.OnFileDone(2, 3, domain.FileResult{Src: "b.py", Status: domain.StatusUnchanged}, time.Millisecond)
	p.OnFileDone(3, 3, domain.FileResult{Src: "c.py", Status: domain.StatusFailed, ErrorCode: domain.ErrCodeNotText, ErrorMsg: "NUL"}, time.Millisecond)

	out := buf.String()
	for _, want := range []string{"path: /src", `include: ["*.py","*.pyi"]`, "a.py edits=2", "guesses=1", "c.py not_text: NUL", "changed=1 unchanged=1 failed=1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("输出缺少 %q：\n%s", want, out)
		}
	}
	if strings.Contains(out, "b.py") {
		t.Fatalf("未改动的文件不应逐行输出：\n%s", out)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdefgh", 6); got != "abc..." {
		t.Fatalf("truncate 结果不符合预期：%q", got)
	}
	if got := truncate(" ab ", 6); got != "ab" {
		t.Fatalf("truncate 应去掉首尾空白：%q", got)
	}
}

func TestIntField(t *testing.T) {
	fields := map[string]any{"a": 3, "b": int64(4), "c": "x"}
	if intField(fields, "a") != 3 || intField(fields, "b") != 4 || intField(fields, "c") != 0 || intField(nil, "a") != 0 {
		t.Fatalf("intField 结果不符合预期")
	}
}
