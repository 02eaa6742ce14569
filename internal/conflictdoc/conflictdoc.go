package conflictdoc

import (
	"fmt"
	"strings"

	"github.com/John-Robertt/qtenum/internal/domain"
	"github.com/John-Robertt/qtenum/internal/enumtable"
)

// Render 把枚举表里的多候选成员写成 Markdown 列表。
//
// 规则：
// - 已收录的成员：首选 + 全部候选（按限定名排序）
// - 未收录的成员单独成节：改写时遇到它们一律不动
// - 输出只依赖表内容，相同的表得到相同的文本
func Render(t *enumtable.Table) string {
	var resolved, unresolved []enumtable.Conflict
	for _, c := range t.Conflicts() {
		if c.Resolved {
			resolved = append(resolved, c)
		} else {
			unresolved = append(unresolved, c)
		}
	}

	var b strings.Builder
	b.WriteString("# 枚举冲突表\n\n")
	fmt.Fprintf(&b, "共 %d 个成员属于多个枚举类。改写时一律使用箭头右侧的首选，请逐处人工复核。\n\n", len(resolved)+len(unresolved))

	if len(resolved) == 0 {
		b.WriteString("（无）\n")
	}
	for _, c := range resolved {
		fmt.Fprintf(&b, "* `%s` → `%s`（候选：%s）\n", c.Member, c.Chosen.QualName(), formatCandidates(c.Candidates))
	}

	if len(unresolved) > 0 {
		b.WriteString("\n## 未收录\n\n")
		b.WriteString("以下成员没有首选，改写时保持原样。\n\n")
		for _, c := range unresolved {
			fmt.Fprintf(&b, "* `%s`（候选：%s）\n", c.Member, formatCandidates(c.Candidates))
		}
	}
	return b.String()
}

func formatCandidates(cs []domain.EnumClass) string {
	parts := make([]string, 0, len(cs))
	for _, c := range cs {
		parts = append(parts, "`"+c.QualName()+"`")
	}
	return strings.Join(parts, "、")
}
