package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	// StatusPlanned 表示 dry-run 下该文件会被改写（未落盘）。
	StatusPlanned   = "planned"
	StatusRewritten = "rewritten"
	StatusUnchanged = "unchanged"
	StatusFailed    = "failed"
)

const (
	ErrCodeIOFailed          = "io_failed"
	ErrCodeNotText           = "not_text"
	ErrCodeParseFailed       = "parse_failed"
	ErrCodeWriteFailed       = "write_failed"
	ErrCodeCanceled          = "canceled"
	ErrCodeTableInvalid      = "table_invalid"
	ErrCodeConfigNotFound    = "config_not_found"
	ErrCodeConfigInvalid     = "config_invalid"
	ErrCodeConfigMissingPath = "config_missing_path"
)

// RunReport 是对外稳定输出（stdout JSON）的结构。
type RunReport struct {
	Path   string `json:"path"`
	DryRun bool   `json:"dry_run"`
	Strict bool   `json:"strict"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`
	Items   []FileResult  `json:"items"`
}

type ReportSummary struct {
	Changed   int `json:"changed"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
	Edits     int `json:"edits"`
	Guesses   int `json:"guesses"`
}

// FileResult 是单个文件的处理结果。
//
// Guesses 列出所有“按冲突表猜测”的改写位置：这些位置必须人工复核。
type FileResult struct {
	Src       string `json:"src"`
	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`

	Edits   int     `json:"edits"`
	Guesses []Guess `json:"guesses"`

	Diff string `json:"diff,omitempty"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) items 稳定排序：按 src 字典序；src=="" 的合成条目排在最后
// 3) summary 由 items 计算得出
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	sort.SliceStable(r.Items, func(i, j int) bool {
		a := r.Items[i].Src
		b := r.Items[j].Src
		if a == "" {
			return false
		}
		if b == "" {
			return true
		}
		return a < b
	})

	var s ReportSummary
	for i := range r.Items {
		it := &r.Items[i]
		if it.Guesses == nil {
			it.Guesses = []Guess{}
		}
		switch it.Status {
		case StatusPlanned, StatusRewritten:
			s.Changed++
		case StatusUnchanged:
			s.Unchanged++
		case StatusFailed:
			s.Failed++
		}
		s.Edits += it.Edits
		s.Guesses += len(it.Guesses)
	}
	r.Summary = s
}

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
// 当前只是透传 encoding/json 的默认行为。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}
