package planner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/John-Robertt/qtenum/internal/domain"
	"github.com/John-Robertt/qtenum/internal/engine"
	"github.com/John-Robertt/qtenum/internal/pysyntax"
)

// Options 控制单个文件的规划方式。
type Options struct {
	// Strict=true：.py/.pyi 先用语法树找出注释与字符串，跳过其中的文本。
	Strict bool
	// Diff=true：为有改动的文件生成 unified diff。
	Diff bool
}

// Error 是文件级失败，Code 对应 report 中的 error_code。
type Error struct {
	Code string
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// Code 提取 planner 错误码；非 *Error 一律视为 io_failed。
func Code(err error) string {
	var pe *Error
	if errors.As(err, &pe) && pe.Code != "" {
		return pe.Code
	}
	return domain.ErrCodeIOFailed
}

// PlanFile 读取 f 并计算改写结果（不做任何写入）。
func PlanFile(ctx context.Context, f domain.SourceFile, eng *engine.Engine, opts Options) (domain.FilePlan, error) {
	if err := ctx.Err(); err != nil {
		return domain.FilePlan{}, &Error{Code: domain.ErrCodeCanceled, Err: err}
	}

	src, err := os.ReadFile(f.AbsPath)
	if err != nil {
		return domain.FilePlan{}, &Error{Code: domain.ErrCodeIOFailed, Err: fmt.Errorf("读取失败：%w", err)}
	}
	if err := checkText(src); err != nil {
		return domain.FilePlan{}, &Error{Code: domain.ErrCodeNotText, Err: err}
	}

	var skip []domain.Span
	if opts.Strict && isPython(f.Ext) {
		spans, err := pysyntax.LiteralSpans(ctx, src)
		if err != nil {
			code := domain.ErrCodeParseFailed
			var se *pysyntax.SyntaxError
			if !errors.As(err, &se) && ctx.Err() != nil {
				code = domain.ErrCodeCanceled
			}
			return domain.FilePlan{}, &Error{Code: code, Err: err}
		}
		skip = spans
	}

	res := eng.Rewrite(src, skip)
	plan := domain.FilePlan{
		File:   f,
		Before: src,
		After:  res.Text,
		Edits:  len(res.Edits),
	}
	for _, e := range res.Guesses() {
		plan.Guesses = append(plan.Guesses, domain.Guess{
			Line:       e.Line,
			Member:     e.Member,
			Chosen:     e.Class,
			Candidates: e.Candidates,
		})
	}

	if opts.Diff && plan.Changed() {
		d, err := UnifiedDiff(f.RelPath, plan.Before, plan.After)
		if err != nil {
			return domain.FilePlan{}, &Error{Code: domain.ErrCodeIOFailed, Err: fmt.Errorf("生成 diff 失败：%w", err)}
		}
		plan.Diff = d
	}
	return plan, nil
}

// UnifiedDiff 生成 git 风格（a/ b/ 前缀，3 行上下文）的 unified diff。
func UnifiedDiff(rel string, before, after []byte) (string, error) {
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(before)),
		B:        difflib.SplitLines(string(after)),
		FromFile: "a/" + rel,
		ToFile:   "b/" + rel,
		Context:  3,
	})
}

// checkText 拒绝二进制内容：含 NUL 字节或不是合法 UTF-8。
func checkText(b []byte) error {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return fmt.Errorf("不是文本文件：偏移 %d 处有 NUL 字节", i)
	}
	if !utf8.Valid(b) {
		return errors.New("不是文本文件：不是合法的 UTF-8")
	}
	return nil
}

func isPython(ext string) bool {
	return ext == ".py" || ext == ".pyi"
}
