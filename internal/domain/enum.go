package domain

import (
	"fmt"
	"regexp"
	"strings"
)

var identRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// IsIdent 判断 s 是否是合法的标识符（ASCII 子集，足够覆盖 Qt 的命名）。
func IsIdent(s string) bool {
	return identRE.MatchString(s)
}

// EnumClass 是一个枚举类的完整定位：模块 + 外层作用域 + 枚举名。
//
// 例如 QtCore.QEvent.Type：Module=QtCore，Scope=QEvent，Name=Type。
// Scope 可能是多段（嵌套类），也可能为空（模块级枚举）。
type EnumClass struct {
	Module string
	Scope  string
	Name   string
}

// QualName 返回 Module.Scope.Name（Scope 为空时省略）。
func (c EnumClass) QualName() string {
	if c.Scope == "" {
		return c.Module + "." + c.Name
	}
	return c.Module + "." + c.Scope + "." + c.Name
}

func (c EnumClass) String() string { return c.QualName() }

// ParseEnumClass 解析 "QtWidgets.QMessageBox.StandardButton" 形式的限定名。
// 第一段是模块，最后一段是枚举名，中间部分（可为空）是作用域。
func ParseEnumClass(s string) (EnumClass, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ".")
	if len(parts) < 2 {
		return EnumClass{}, fmt.Errorf("枚举类限定名至少需要两段（模块.枚举名），实际是 %q", s)
	}
	for _, p := range parts {
		if !IsIdent(p) {
			return EnumClass{}, fmt.Errorf("枚举类限定名包含非法片段 %q：%q", p, s)
		}
	}
	return EnumClass{
		Module: parts[0],
		Scope:  strings.Join(parts[1:len(parts)-1], "."),
		Name:   parts[len(parts)-1],
	}, nil
}

// Member 是枚举成员到其所属枚举类的一条映射。
//
// RenameTo 非空表示该成员在新版本中改了名（例如 MidButton -> MiddleButton），
// 改写时除了补全枚举类，还要替换成员名本身。
type Member struct {
	Name     string
	Class    EnumClass
	RenameTo string
}

// Target 返回改写后应使用的成员名。
func (m Member) Target() string {
	if m.RenameTo != "" {
		return m.RenameTo
	}
	return m.Name
}

// Span 是源文本中的半开字节区间 [Start, End)。
type Span struct {
	Start int
	End   int
}

func (s Span) Contains(off int) bool {
	return off >= s.Start && off < s.End
}
