package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/qtenum/internal/app/run"
	"github.com/John-Robertt/qtenum/internal/config"
	"github.com/John-Robertt/qtenum/internal/domain"
	"github.com/John-Robertt/qtenum/internal/scan"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 是交互终端下的简洁进度输出。
//
// - 所有过程信息写到 stderr（或 fallback 到 stdout），不污染 stdout 的 JSON 输出契约
// - 事件驱动：run 层只发事件，CLI 决定如何展示
// - 未改动的文件不逐行输出，只计数
type progressUI struct {
	w io.Writer

	mu        sync.Mutex
	startedAt time.Time

	total     int
	changed   int
	unchanged int
	failed    int
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{w: w}
}

func (p *progressUI) OnStart(eff config.EffectiveConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	if p.startedAt.IsZero() {
		p.startedAt = now
	}

	mode := "dry-run"
	modeHint := "（不写入）"
	if eff.Apply {
		mode = "apply"
		modeHint = ""
	}

	fmt.Fprintf(p.w, "%s %s\n", mutedStyle.Render("["+now.Format("15:04:05")+"]"), titleStyle.Render("qtenum run ("+mode+")"))
	fmt.Fprintln(p.w, "配置（生效）:")
	fmt.Fprintf(p.w, "  path: %s\n", eff.Path)
	if eff.ConfigFile != "" {
		fmt.Fprintf(p.w, "  config: %s\n", eff.ConfigFile)
	}
	fmt.Fprintf(p.w, "  mode: %s%s\n", mode, modeHint)
	fmt.Fprintf(p.w, "  strict: %s\n", onOff(eff.Strict))
	fmt.Fprintf(p.w, "  table: %s\n", tableName(eff.Table))
	if len(eff.Conflicts) > 0 {
		fmt.Fprintf(p.w, "  conflict overrides: %d\n", len(eff.Conflicts))
	}
	if len(eff.Bindings) > 0 {
		fmt.Fprintf(p.w, "  bindings: %s\n", formatBindings(eff.Bindings))
	}
	include := eff.Include
	if len(include) == 0 {
		include = scan.DefaultInclude
	}
	fmt.Fprintf(p.w, "  include: %s\n", formatStringListJSON(include))
	fmt.Fprintf(p.w, "  exclude_dirs: %s + 固定排除 .git/ .hg/ .svn/ __pycache__/\n", formatStringListJSON(eff.ExcludeDirs))
	fmt.Fprintf(p.w, "  concurrency: %d\n", eff.Concurrency)
	fmt.Fprintln(p.w)
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case "table":
		fmt.Fprintf(p.w, "枚举表: members=%d classes=%d conflicts=%d (%s)\n",
			intField(fields, "members"), intField(fields, "classes"), intField(fields, "conflicts"), formatShortDuration(dur),
		)
	case "scan":
		fmt.Fprintf(p.w, "扫描: files=%d (%s)\n", intField(fields, "files"), formatShortDuration(dur))
	case "exec":
		p.total = intField(fields, "total_files")
		fmt.Fprintf(p.w, "执行: workers=%d total_files=%d\n\n", intField(fields, "workers"), p.total)
	default:
		// 兜底：未知阶段也不要静默（便于调试/演进）。
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}
}

func (p *progressUI) OnFileDone(idx, total int, res domain.FileResult, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.total = total
	switch res.Status {
	case domain.StatusPlanned, domain.StatusRewritten:
		p.changed++
		status := "PLAN"
		if res.Status == domain.StatusRewritten {
			status = "OK"
		}
		guess := ""
		if len(res.Guesses) > 0 {
			guess = " " + warningStyle.Render(fmt.Sprintf("guesses=%d", len(res.Guesses)))
		}
		fmt.Fprintf(p.w, "[%d/%d] %s %s edits=%d%s (%s)\n",
			idx, total, successStyle.Render(status), res.Src, res.Edits, guess, formatShortDuration(dur),
		)
	case domain.StatusFailed:
		p.failed++
		fmt.Fprintf(p.w, "[%d/%d] %s %s %s: %s\n",
			idx, total, errorStyle.Render("FAIL"), res.Src, res.ErrorCode, truncate(res.ErrorMsg, 160),
		)
	default:
		p.unchanged++
	}

	if idx == total {
		fmt.Fprintf(p.w, "\n进度: done=%d/%d changed=%d unchanged=%d failed=%d elapsed=%s\n",
			idx, total, p.changed, p.unchanged, p.failed, formatElapsed(time.Since(p.startedAt)),
		)
	}
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func formatBindings(bs []config.Binding) string {
	parts := make([]string, 0, len(bs))
	for _, b := range bs {
		parts = append(parts, b.Old+" -> "+b.New)
	}
	return strings.Join(parts, ", ")
}

func formatStringListJSON(xs []string) string {
	// json.Marshal(nil slice) => "null"；对用户更友好的是 "[]"
	if xs == nil {
		xs = []string{}
	}
	b, err := json.Marshal(xs)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func intField(fields map[string]any, key string) int {
	if fields == nil {
		return 0
	}
	v, ok := fields[key]
	if !ok {
		return 0
	}
	switch x := v.(type) {
	case int:
		return x
	case int32:
		return int(x)
	case int64:
		return int(x)
	default:
		return 0
	}
}
