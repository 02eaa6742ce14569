package domain

import "io/fs"

// SourceFile 是扫描得到的一个待处理文本文件。
type SourceFile struct {
	AbsPath string
	RelPath string
	Ext     string // 小写，含 '.'
	Size    int64
	Mode    fs.FileMode
}

// FilePlan 是对单个文件的改写计划（只描述结果；是否落盘由 run 层决定）。
type FilePlan struct {
	File SourceFile

	Before []byte
	After  []byte

	Edits   int
	Guesses []Guess

	// Diff 只有在调用方要求时才生成（unified diff）。
	Diff string
}

func (p FilePlan) Changed() bool {
	return p.Edits > 0 && string(p.Before) != string(p.After)
}

// Guess 记录一次“多候选时按冲突表猜测”的改写，需要人工复核。
type Guess struct {
	Line       int      `json:"line"`
	Member     string   `json:"member"`
	Chosen     string   `json:"chosen"`
	Candidates []string `json:"candidates"`
}
