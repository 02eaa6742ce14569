package qtdoc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/qtenum/internal/domain"
	providerx "github.com/John-Robertt/qtenum/internal/provider"
)

const DefaultBaseURL = "https://doc.qt.io/qt-6"

// Provider 从 Qt C++ 参考文档页（例如 https://doc.qt.io/qt-6/qevent.html）提取枚举定义。
//
// ref 形如 "QtCore:qevent"（页面名，相对 BaseURL）或 "QtCore:https://…/qevent.html"。
// 冒号前是 Python 侧的模块名，文档页本身不包含这一信息。
type Provider struct {
	// BaseURL 为空时使用 DefaultBaseURL。
	BaseURL string
}

func (Provider) Name() string { return "qtdoc" }

func (Provider) Remote(string) bool { return true }

func (p Provider) baseURL() string {
	u := strings.TrimSpace(p.BaseURL)
	if u == "" {
		return DefaultBaseURL
	}
	return strings.TrimRight(u, "/")
}

// SplitRef 把 ref 拆成 (模块名, 页面)。
func SplitRef(ref string) (string, string, error) {
	module, page, ok := strings.Cut(strings.TrimSpace(ref), ":")
	module, page = strings.TrimSpace(module), strings.TrimSpace(page)
	if !ok || module == "" || page == "" {
		return "", "", fmt.Errorf("qtdoc ref 需要形如 QtCore:qevent，实际是 %q", ref)
	}
	if !domain.IsIdent(module) {
		return "", "", fmt.Errorf("非法模块名：%q", module)
	}
	return module, page, nil
}

// PageURL 返回 ref 对应的文档页 URL。
func (p Provider) PageURL(ref string) (string, error) {
	_, page, err := SplitRef(ref)
	if err != nil {
		return "", err
	}
	if providerx.IsRemote(page) {
		return page, nil
	}
	if strings.ContainsAny(page, "/?#") {
		return "", fmt.Errorf("页面名不能包含路径：%q", page)
	}
	if !strings.HasSuffix(page, ".html") {
		page += ".html"
	}
	return p.baseURL() + "/" + strings.ToLower(page), nil
}

func (p Provider) Fetch(ctx context.Context, ref string, c *http.Client) ([]byte, string, error) {
	u, err := p.PageURL(ref)
	if err != nil {
		return nil, "", err
	}
	b, err := providerx.GetURL(ctx, c, u)
	return b, u, err
}

var enumHeaderRE = regexp.MustCompile(`\benum\s+(?:class\s+)?([A-Za-z_][A-Za-z0-9_]*(?:::[A-Za-z_][A-Za-z0-9_]*)*)`)

// Parse 解析文档页：每个 h3[id$="-enum"] 给出枚举名，其后的 table.valuelist 列出成员。
func (Provider) Parse(_ context.Context, ref string, body []byte) ([]domain.Member, error) {
	module, _, err := SplitRef(ref)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, errors.New("html 为空")
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var (
		members []domain.Member
		seen    = map[string]struct{}{}
	)
	doc.Find(`h3[id$="-enum"]`).Each(func(_ int, h *goquery.Selection) {
		m := enumHeaderRE.FindStringSubmatch(normSpace(h.Text()))
		if m == nil {
			return
		}
		cls, ok := enumClass(module, m[1])
		if !ok {
			return
		}

		sibs := h.NextUntil("h3")
		table := sibs.Filter("table.valuelist").AddSelection(sibs.Find("table.valuelist")).First()
		table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			code := normSpace(tr.Find("td").First().Find("code").First().Text())
			if code == "" {
				return
			}
			if i := strings.LastIndex(code, "::"); i >= 0 {
				code = code[i+2:]
			}
			name := pythonName(code)
			if !domain.IsIdent(name) {
				return
			}
			key := cls.QualName() + "." + name
			if _, dup := seen[key]; dup {
				return
			}
			seen[key] = struct{}{}
			members = append(members, domain.Member{Name: name, Class: cls})
		})
	})

	if len(members) == 0 {
		return nil, errors.New("页面中没有找到任何枚举值表（h3[id$=-enum] + table.valuelist）")
	}
	return members, nil
}

// enumClass 把 "QEvent::Type" 转成 QtCore.QEvent.Type。
func enumClass(module, cpp string) (domain.EnumClass, bool) {
	parts := strings.Split(cpp, "::")
	for _, p := range parts {
		if !domain.IsIdent(p) {
			return domain.EnumClass{}, false
		}
	}
	return domain.EnumClass{
		Module: module,
		Scope:  strings.Join(parts[:len(parts)-1], "."),
		Name:   parts[len(parts)-1],
	}, true
}

var pythonKeywords = map[string]struct{}{
	"False": {}, "None": {}, "True": {}, "and": {}, "as": {}, "assert": {}, "async": {},
	"await": {}, "break": {}, "class": {}, "continue": {}, "def": {}, "del": {}, "elif": {},
	"else": {}, "except": {}, "finally": {}, "for": {}, "from": {}, "global": {}, "if": {},
	"import": {}, "in": {}, "is": {}, "lambda": {}, "nonlocal": {}, "not": {}, "or": {},
	"pass": {}, "raise": {}, "return": {}, "try": {}, "while": {}, "with": {}, "yield": {},
}

// pythonName 按 PySide 的规则给 Python 关键字加 '_' 后缀（None -> None_）。
func pythonName(s string) string {
	if _, ok := pythonKeywords[s]; ok {
		return s + "_"
	}
	return s
}

func normSpace(s string) string { return strings.Join(strings.Fields(s), " ") }
