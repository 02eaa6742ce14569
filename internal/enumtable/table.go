package enumtable

import (
	"fmt"
	"sort"
	"strings"

	"github.com/John-Robertt/qtenum/internal/domain"
)

// ValidationError 表示表文件内容不合法。
type ValidationError struct {
	Where string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("枚举表无效（%s）：%v", e.Where, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Table 是只读的枚举归属表 + 冲突表。构造后不再修改，可被多个 goroutine 并发读取。
type Table struct {
	// owners：成员名 -> 全部候选（按限定名排序，去重）。
	owners map[string][]domain.Member
	// guesses：多候选成员 -> 冲突表记录的首选。
	guesses map[string]domain.Member
	// classRefs："<作用域末段>.<枚举名>" 集合，用于识别对枚举类本身的引用（如 QEvent.Type）。
	classRefs map[string]struct{}
	classes   int
}

// Resolution 是一次成员解析的结果。
type Resolution struct {
	Member     domain.Member
	Candidates []domain.EnumClass
}

// Guessed 为 true 表示成员有多个候选，结果来自冲突表，需要人工复核。
func (r Resolution) Guessed() bool { return len(r.Candidates) > 1 }

// Conflict 描述一个多候选成员。Resolved=false 表示冲突表没有收录：该成员永远不会被改写。
type Conflict struct {
	Member     string
	Chosen     domain.EnumClass
	Resolved   bool
	Candidates []domain.EnumClass
}

// New 校验并构造 Table。overrides 的优先级高于 f.Conflicts（同一成员以 overrides 为准）。
func New(f File, overrides []ConflictEntry) (*Table, error) {
	t := &Table{
		owners:    make(map[string][]domain.Member, 1024),
		guesses:   make(map[string]domain.Member),
		classRefs: make(map[string]struct{}, len(f.Enums)),
	}

	seenClass := make(map[string]struct{}, len(f.Enums))
	for i, e := range f.Enums {
		cls, err := domain.ParseEnumClass(e.Class)
		if err != nil {
			return nil, &ValidationError{Where: fmt.Sprintf("enum[%d].class", i), Err: err}
		}
		if _, ok := seenClass[cls.QualName()]; !ok {
			seenClass[cls.QualName()] = struct{}{}
			t.classes++
		}
		t.classRefs[classRefKey(cls)] = struct{}{}
		for _, m := range e.Members {
			if !domain.IsIdent(m) {
				return nil, &ValidationError{Where: fmt.Sprintf("enum[%d].members", i), Err: fmt.Errorf("非法成员名 %q", m)}
			}
			t.add(domain.Member{Name: m, Class: cls})
		}
	}

	for i, r := range f.Renames {
		cls, err := domain.ParseEnumClass(r.Class)
		if err != nil {
			return nil, &ValidationError{Where: fmt.Sprintf("rename[%d].class", i), Err: err}
		}
		if !domain.IsIdent(r.Member) || !domain.IsIdent(r.To) {
			return nil, &ValidationError{Where: fmt.Sprintf("rename[%d]", i), Err: fmt.Errorf("非法成员名 %q -> %q", r.Member, r.To)}
		}
		if r.Member == r.To {
			return nil, &ValidationError{Where: fmt.Sprintf("rename[%d]", i), Err: fmt.Errorf("改名前后相同：%q", r.Member)}
		}
		t.add(domain.Member{Name: r.Member, Class: cls, RenameTo: r.To})
	}

	for name := range t.owners {
		ms := t.owners[name]
		sort.Slice(ms, func(i, j int) bool { return ms[i].Class.QualName() < ms[j].Class.QualName() })
	}

	byMember := make(map[string]ConflictEntry, len(f.Conflicts)+len(overrides))
	for _, c := range f.Conflicts {
		byMember[c.Member] = c
	}
	for _, c := range overrides {
		byMember[c.Member] = c
	}
	members := make([]string, 0, len(byMember))
	for m := range byMember {
		members = append(members, m)
	}
	sort.Strings(members)

	for _, m := range members {
		c := byMember[m]
		cands := t.owners[c.Member]
		if len(cands) < 2 {
			return nil, &ValidationError{Where: "conflict." + c.Member, Err: fmt.Errorf("成员 %q 不是多候选成员（候选数 %d）", c.Member, len(cands))}
		}
		found := false
		for _, cand := range cands {
			if cand.Class.QualName() == strings.TrimSpace(c.Class) {
				t.guesses[c.Member] = cand
				found = true
				break
			}
		}
		if !found {
			return nil, &ValidationError{Where: "conflict." + c.Member, Err: fmt.Errorf("%q 不在成员 %q 的候选中：%s", c.Class, c.Member, joinClasses(classesOf(cands)))}
		}
	}

	return t, nil
}

func (t *Table) add(m domain.Member) {
	for _, have := range t.owners[m.Name] {
		if have.Class == m.Class {
			return
		}
	}
	t.owners[m.Name] = append(t.owners[m.Name], m)
}

// Resolve 返回成员 name 应使用的归属。
//
// - 单一候选：直接返回
// - 多候选：返回冲突表记录的首选（Guessed()=true）
// - 未知成员，或多候选但冲突表未收录：ok=false（绝不编造猜测）
func (t *Table) Resolve(name string) (Resolution, bool) {
	cands := t.owners[name]
	switch len(cands) {
	case 0:
		return Resolution{}, false
	case 1:
		return Resolution{Member: cands[0], Candidates: classesOf(cands)}, true
	}
	g, ok := t.guesses[name]
	if !ok {
		return Resolution{}, false
	}
	return Resolution{Member: g, Candidates: classesOf(cands)}, true
}

// Known 判断 name 是否出现在归属表中（无论能否解析）。
func (t *Table) Known(name string) bool {
	return len(t.owners[name]) > 0
}

// QualifiedBy 判断 enum 是否是成员 name 任一候选枚举类的名字（即 "<enum>.<name>" 已是新写法）。
func (t *Table) QualifiedBy(name, enum string) bool {
	for _, m := range t.owners[name] {
		if m.Class.Name == enum {
			return true
		}
	}
	return false
}

// IsClassRef 判断 "<scope>.<name>" 是否是对某个枚举类本身的引用（例如 QEvent.Type）。
func (t *Table) IsClassRef(scope, name string) bool {
	_, ok := t.classRefs[scope+"."+name]
	return ok
}

// Conflicts 返回全部多候选成员（按成员名排序），包括冲突表未收录的成员。
func (t *Table) Conflicts() []Conflict {
	out := make([]Conflict, 0, len(t.guesses))
	for name, cands := range t.owners {
		if len(cands) < 2 {
			continue
		}
		c := Conflict{Member: name, Candidates: classesOf(cands)}
		if g, ok := t.guesses[name]; ok {
			c.Chosen = g.Class
			c.Resolved = true
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Member < out[j].Member })
	return out
}

// Len 返回成员名数量。
func (t *Table) Len() int { return len(t.owners) }

// Classes 返回枚举类数量。
func (t *Table) Classes() int { return t.classes }

func classRefKey(c domain.EnumClass) string {
	scope := c.Scope
	if i := strings.LastIndexByte(scope, '.'); i >= 0 {
		scope = scope[i+1:]
	}
	if scope == "" {
		scope = c.Module
	}
	return scope + "." + c.Name
}

func classesOf(ms []domain.Member) []domain.EnumClass {
	out := make([]domain.EnumClass, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.Class)
	}
	return out
}

func joinClasses(cs []domain.EnumClass) string {
	parts := make([]string, 0, len(cs))
	for _, c := range cs {
		parts = append(parts, c.QualName())
	}
	return strings.Join(parts, ", ")
}
