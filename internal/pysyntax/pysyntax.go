// Package pysyntax 用 tree-sitter 解析 Python 源码：
// 严格模式下找出注释与字符串字面量的字节区间，以及从 .pyi 存根中提取枚举定义。
package pysyntax

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/John-Robertt/qtenum/internal/domain"
)

// SyntaxError 表示源码无法被完整解析（tree-sitter 产生了 ERROR/MISSING 节点）。
type SyntaxError struct {
	Line int
	Col  int
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("Python 语法错误：第 %d 行第 %d 列", e.Line, e.Col)
}

// parse 每次新建 parser：sitter.Parser 不能被多个 goroutine 共用。
func parse(ctx context.Context, src []byte) (*sitter.Tree, error) {
	p := sitter.NewParser()
	defer p.Close()
	p.SetLanguage(python.GetLanguage())

	tree, err := p.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, err
	}
	root := tree.RootNode()
	if root.HasError() {
		line, col := firstError(root)
		tree.Close()
		return nil, &SyntaxError{Line: line, Col: col}
	}
	return tree, nil
}

func firstError(n *sitter.Node) (int, int) {
	if n.Type() == "ERROR" || n.IsMissing() {
		pt := n.StartPoint()
		return int(pt.Row) + 1, int(pt.Column) + 1
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c == nil || !c.HasError() && !c.IsMissing() {
			continue
		}
		return firstError(c)
	}
	pt := n.StartPoint()
	return int(pt.Row) + 1, int(pt.Column) + 1
}

// LiteralSpans 返回 src 中所有注释与字符串字面量的字节区间（按 Start 升序，互不重叠）。
// f-string 的插值表达式 {…} 不算字面量：其中的代码仍然参与改写。
func LiteralSpans(ctx context.Context, src []byte) ([]domain.Span, error) {
	tree, err := parse(ctx, src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	var spans []domain.Span
	collectLiterals(tree.RootNode(), &spans)
	return spans, nil
}

func collectLiterals(n *sitter.Node, out *[]domain.Span) {
	switch n.Type() {
	case "comment":
		*out = append(*out, domain.Span{Start: int(n.StartByte()), End: int(n.EndByte())})
		return
	case "string":
		cursor := int(n.StartByte())
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			if c.Type() != "interpolation" {
				continue
			}
			if int(c.StartByte()) > cursor {
				*out = append(*out, domain.Span{Start: cursor, End: int(c.StartByte())})
			}
			collectLiterals(c, out)
			cursor = int(c.EndByte())
		}
		if end := int(n.EndByte()); end > cursor {
			*out = append(*out, domain.Span{Start: cursor, End: end})
		}
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if c := n.Child(i); c != nil {
			collectLiterals(c, out)
		}
	}
}

// ModuleName 由存根文件路径推出模块名：QtCore.pyi -> QtCore，QtCore/__init__.pyi -> QtCore。
func ModuleName(path string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "__init__" {
		return filepath.Base(filepath.Dir(path))
	}
	return stem
}

// ParseStub 提取存根中的全部枚举成员。
//
// 基类解析到 enum 模块（import enum / import enum as e / from enum import IntEnum as X）的类视为枚举；
// 枚举体内的赋值（FocusOut: QEvent.Type = ... 或 FocusOut = 0x9）是成员；
// 非枚举类的嵌套类按作用域栈递归。
func ParseStub(ctx context.Context, module string, src []byte) ([]domain.Member, error) {
	if !domain.IsIdent(module) {
		return nil, fmt.Errorf("非法模块名：%q", module)
	}
	tree, err := parse(ctx, src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	w := &stubWalker{
		src:        src,
		module:     module,
		enumMods:   map[string]struct{}{},
		enumBases:  map[string]struct{}{},
		seenMember: map[string]struct{}{},
	}
	root := tree.RootNode()
	w.collectImports(root)
	w.walkBlock(root, nil)
	return w.members, nil
}

type stubWalker struct {
	src    []byte
	module string

	// enumMods：指向 enum 模块的名字（enum 或其别名）。
	enumMods map[string]struct{}
	// enumBases：从 enum 模块直接导入的名字（IntEnum、Flag 或其别名）。
	enumBases map[string]struct{}

	members    []domain.Member
	seenMember map[string]struct{}
}

func (w *stubWalker) text(n *sitter.Node) string {
	return n.Content(w.src)
}

// collectImports 只看模块顶层的 import（存根里不会在函数内导入 enum）。
func (w *stubWalker) collectImports(root *sitter.Node) {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		n := root.NamedChild(i)
		switch n.Type() {
		case "import_statement":
			for j := 0; j < int(n.NamedChildCount()); j++ {
				c := n.NamedChild(j)
				name, alias := w.importName(c)
				if name == "enum" {
					w.enumMods[alias] = struct{}{}
				}
			}
		case "import_from_statement":
			mod := n.ChildByFieldName("module_name")
			if mod == nil || w.text(mod) != "enum" {
				continue
			}
			for j := 0; j < int(n.NamedChildCount()); j++ {
				c := n.NamedChild(j)
				if c.StartByte() == mod.StartByte() {
					continue
				}
				_, alias := w.importName(c)
				if alias != "" {
					w.enumBases[alias] = struct{}{}
				}
			}
		}
	}
}

// importName 返回 (原名, 本地可见名)。
func (w *stubWalker) importName(n *sitter.Node) (string, string) {
	switch n.Type() {
	case "dotted_name":
		s := w.text(n)
		return s, s
	case "aliased_import":
		name := n.ChildByFieldName("name")
		alias := n.ChildByFieldName("alias")
		if name == nil || alias == nil {
			return "", ""
		}
		return w.text(name), w.text(alias)
	}
	return "", ""
}

func (w *stubWalker) walkBlock(block *sitter.Node, scope []string) {
	for i := 0; i < int(block.NamedChildCount()); i++ {
		n := block.NamedChild(i)
		if n.Type() == "decorated_definition" {
			n = n.ChildByFieldName("definition")
			if n == nil {
				continue
			}
		}
		if n.Type() == "class_definition" {
			w.walkClass(n, scope)
		}
	}
}

func (w *stubWalker) walkClass(n *sitter.Node, scope []string) {
	nameNode := n.ChildByFieldName("name")
	body := n.ChildByFieldName("body")
	if nameNode == nil || body == nil {
		return
	}
	name := w.text(nameNode)

	if !w.isEnum(n.ChildByFieldName("superclasses")) {
		w.walkBlock(body, append(append([]string(nil), scope...), name))
		return
	}

	cls := domain.EnumClass{Module: w.module, Scope: strings.Join(scope, "."), Name: name}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		stmt := body.NamedChild(i)
		if stmt.Type() != "expression_statement" || stmt.NamedChildCount() == 0 {
			continue
		}
		asg := stmt.NamedChild(0)
		if asg.Type() != "assignment" {
			continue
		}
		left := asg.ChildByFieldName("left")
		if left == nil || left.Type() != "identifier" {
			continue
		}
		member := w.text(left)
		if strings.HasPrefix(member, "_") || !domain.IsIdent(member) {
			continue
		}
		key := cls.QualName() + "." + member
		if _, ok := w.seenMember[key]; ok {
			continue
		}
		w.seenMember[key] = struct{}{}
		w.members = append(w.members, domain.Member{Name: member, Class: cls})
	}
}

// isEnum 判断基类列表中是否有来自 enum 模块的类。
func (w *stubWalker) isEnum(bases *sitter.Node) bool {
	if bases == nil {
		return false
	}
	for i := 0; i < int(bases.NamedChildCount()); i++ {
		b := bases.NamedChild(i)
		switch b.Type() {
		case "identifier":
			if _, ok := w.enumBases[w.text(b)]; ok {
				return true
			}
		case "attribute":
			obj := b.ChildByFieldName("object")
			if obj == nil {
				continue
			}
			if _, ok := w.enumMods[w.text(obj)]; ok {
				return true
			}
		}
	}
	return false
}
