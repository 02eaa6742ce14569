package engine

import (
	"bytes"
	"regexp"
	"sort"
	"unicode"
	"unicode/utf8"

	"github.com/John-Robertt/qtenum/internal/domain"
	"github.com/John-Robertt/qtenum/internal/enumtable"
)

// 点分标识符链：Ident(.Ident)+，贪婪匹配，保证拿到的是“最长链”。
// 正则只认 ASCII；紧挨着非 ASCII 标识符字符的匹配由 identBefore/identAfter 排除。
var chainRE = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*)+`)

// Resolver 是引擎对枚举表的全部依赖（*enumtable.Table 实现了它；测试可替换）。
type Resolver interface {
	Resolve(name string) (enumtable.Resolution, bool)
	Known(name string) bool
	QualifiedBy(name, enum string) bool
	IsClassRef(scope, name string) bool
}

// Binding 描述一次绑定包名替换，例如 PySide2 -> PySide6。
type Binding struct {
	Old string
	New string
}

type Options struct {
	Bindings []Binding
}

type Kind string

const (
	KindEnum    Kind = "enum"
	KindBinding Kind = "binding"
)

// Edit 是一次已应用的替换。Line/Col 从 1 开始，Col 按字节计。
type Edit struct {
	Line int
	Col  int
	Old  string
	New  string
	Kind Kind

	// 以下字段只对 KindEnum 有意义。
	Member     string
	Class      string
	Candidates []string
}

// Guessed 为 true 表示成员有多个候选，改写结果来自冲突表。
func (e Edit) Guessed() bool { return len(e.Candidates) > 1 }

type Result struct {
	Text  []byte
	Edits []Edit
}

func (r Result) Changed() bool { return len(r.Edits) > 0 }

// Guesses 返回需要人工复核的改写。
func (r Result) Guesses() []Edit {
	var out []Edit
	for _, e := range r.Edits {
		if e.Guessed() {
			out = append(out, e)
		}
	}
	return out
}

// Engine 是纯文本变换：同一输入永远得到同一输出，不持有可变状态，可并发使用。
type Engine struct {
	res      Resolver
	bindings []bindingRule
}

type bindingRule struct {
	re  *regexp.Regexp
	old string
	new string
}

func New(res Resolver, opts Options) *Engine {
	e := &Engine{res: res}
	for _, b := range opts.Bindings {
		if b.Old == "" || b.Old == b.New {
			continue
		}
		e.bindings = append(e.bindings, bindingRule{
			re:  regexp.MustCompile(`\b` + regexp.QuoteMeta(b.Old) + `\b`),
			old: b.Old,
			new: b.New,
		})
	}
	return e
}

// replacement 是单行内的一个待应用替换：把 [start,end) 换成 text。
type replacement struct {
	start int
	end   int
	text  string
	edit  Edit
}

// Rewrite 逐行处理 src；skip 中的字节区间（严格模式下的注释/字符串）保持原样。
// 没有任何替换时返回的 Text 就是 src 本身。
func (e *Engine) Rewrite(src []byte, skip []domain.Span) Result {
	lines := bytes.SplitAfter(src, []byte("\n"))

	var (
		out   bytes.Buffer
		edits []Edit
		off   int
	)
	for i, line := range lines {
		reps := e.rewriteLine(line, off, i+1, skip)
		if len(reps) == 0 {
			out.Write(line)
		} else {
			last := 0
			for _, r := range reps {
				out.Write(line[last:r.start])
				out.WriteString(r.text)
				last = r.end
				edits = append(edits, r.edit)
			}
			out.Write(line[last:])
		}
		off += len(line)
	}

	if len(edits) == 0 {
		return Result{Text: src}
	}
	return Result{Text: out.Bytes(), Edits: edits}
}

func (e *Engine) rewriteLine(line []byte, base, lineNo int, skip []domain.Span) []replacement {
	var reps []replacement

	for _, loc := range chainRE.FindAllIndex(line, -1) {
		start, end := loc[0], loc[1]
		if identBefore(line, start) || identAfter(line, end) {
			continue
		}
		if inSpans(skip, base+start) {
			continue
		}
		if r, ok := e.rewriteChain(line, start, end, lineNo); ok {
			if inSpans(skip, base+r.start) {
				continue
			}
			reps = append(reps, r)
		}
	}

	for _, b := range e.bindings {
		for _, loc := range b.re.FindAllIndex(line, -1) {
			start, end := loc[0], loc[1]
			if start > 0 && line[start-1] == '.' {
				continue
			}
			if identBefore(line, start) || identAfter(line, end) {
				continue
			}
			if inSpans(skip, base+start) {
				continue
			}
			reps = append(reps, replacement{
				start: start,
				end:   end,
				text:  b.new,
				edit:  Edit{Line: lineNo, Col: start + 1, Old: b.old, New: b.new, Kind: KindBinding},
			})
		}
	}

	if len(reps) > 1 {
		sort.Slice(reps, func(i, j int) bool { return reps[i].start < reps[j].start })
		// 重叠时只保留靠前的一项。
		kept := reps[:1]
		for _, r := range reps[1:] {
			if r.start < kept[len(kept)-1].end {
				continue
			}
			kept = append(kept, r)
		}
		reps = kept
	}
	return reps
}

// rewriteChain 对一条标识符链最多做一次替换。
func (e *Engine) rewriteChain(line []byte, start, end, lineNo int) (replacement, bool) {
	parts, offs := splitChain(line[start:end], start)

	for i := 1; i < len(parts); i++ {
		name := parts[i]
		res, ok := e.res.Resolve(name)
		if !ok {
			if e.res.Known(name) {
				// 多候选且冲突表未收录：不猜。
				return replacement{}, false
			}
			continue
		}

		prev := parts[i-1]
		m := res.Member

		// 已经是新写法（Namespace.Class.Member）：只补做改名。
		if e.res.QualifiedBy(name, prev) {
			if m.RenameTo == "" || m.Class.Name != prev {
				return replacement{}, false
			}
			return e.replacement(line, start, offs[i], offs[i]+len(name), m.Target(), lineNo, name, res), true
		}
		// name 是后一段成员的枚举类（QFrame.Shadow.Plain 里的 Shadow 同时也是 QPalette 的成员）。
		if i+1 < len(parts) && e.res.QualifiedBy(parts[i+1], name) {
			continue
		}
		// 对枚举类本身的引用（例如 QEvent.Type），不是成员访问。
		if e.res.IsClassRef(prev, name) {
			continue
		}

		text := m.Class.Name + "." + m.Target()
		return e.replacement(line, start, offs[i], offs[i]+len(name), text, lineNo, name, res), true
	}
	return replacement{}, false
}

func (e *Engine) replacement(line []byte, chainStart, from, to int, text string, lineNo int, member string, res enumtable.Resolution) replacement {
	oldText := string(line[chainStart:to])
	newText := string(line[chainStart:from]) + text

	var cands []string
	if len(res.Candidates) > 1 {
		cands = make([]string, 0, len(res.Candidates))
		for _, c := range res.Candidates {
			cands = append(cands, c.QualName())
		}
	}
	return replacement{
		start: from,
		end:   to,
		text:  text,
		edit: Edit{
			Line:       lineNo,
			Col:        chainStart + 1,
			Old:        oldText,
			New:        newText,
			Kind:       KindEnum,
			Member:     member,
			Class:      res.Member.Class.QualName(),
			Candidates: cands,
		},
	}
}

// splitChain 把 "a.b.c" 拆成片段，并给出每段在行内的起始偏移。
func splitChain(chain []byte, base int) ([]string, []int) {
	var (
		parts []string
		offs  []int
	)
	last := 0
	for i := 0; i <= len(chain); i++ {
		if i == len(chain) || chain[i] == '.' {
			parts = append(parts, string(chain[last:i]))
			offs = append(offs, base+last)
			last = i + 1
		}
	}
	return parts, offs
}

func isIdentRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r) || unicode.Is(unicode.Mc, r)
}

// identBefore 判断 line[:i] 是否以标识符字符结尾（Python 标识符可含非 ASCII 字母）。
func identBefore(line []byte, i int) bool {
	if i == 0 {
		return false
	}
	r, _ := utf8.DecodeLastRune(line[:i])
	return r != utf8.RuneError && isIdentRune(r)
}

// identAfter 判断 line[i:] 是否以标识符字符开头。
func identAfter(line []byte, i int) bool {
	if i >= len(line) {
		return false
	}
	r, _ := utf8.DecodeRune(line[i:])
	return r != utf8.RuneError && isIdentRune(r)
}

func inSpans(spans []domain.Span, off int) bool {
	// spans 必须按 Start 升序且互不重叠。
	i := sort.Search(len(spans), func(i int) bool { return spans[i].End > off })
	return i < len(spans) && spans[i].Contains(off)
}
