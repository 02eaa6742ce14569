package enumtable

import (
	"github.com/John-Robertt/qtenum/internal/domain"
)

// preferredModules 是生成冲突表时的模块优先级：越靠前越常见。
var preferredModules = []string{"QtCore", "QtGui", "QtWidgets"}

// SuggestConflicts 为 f 中每个多候选成员给出一个首选：
// 先按模块优先级，再按限定名字典序取最小。
// f 中已有的冲突条目保留（只要它仍然合法）。
func SuggestConflicts(f File) ([]ConflictEntry, error) {
	existing := f.Conflicts
	f.Conflicts = nil
	t, err := New(f, nil)
	if err != nil {
		return nil, err
	}

	keep := make(map[string]string, len(existing))
	for _, c := range existing {
		keep[c.Member] = c.Class
	}

	var out []ConflictEntry
	for _, c := range t.Conflicts() {
		if cls, ok := keep[c.Member]; ok && containsClass(c.Candidates, cls) {
			out = append(out, ConflictEntry{Member: c.Member, Class: cls})
			continue
		}
		out = append(out, ConflictEntry{Member: c.Member, Class: pickPreferred(c.Candidates).QualName()})
	}
	return out, nil
}

func pickPreferred(cands []domain.EnumClass) domain.EnumClass {
	best := cands[0]
	for _, c := range cands[1:] {
		if moduleRank(c.Module) < moduleRank(best.Module) ||
			(moduleRank(c.Module) == moduleRank(best.Module) && c.QualName() < best.QualName()) {
			best = c
		}
	}
	return best
}

func moduleRank(m string) int {
	for i, p := range preferredModules {
		if p == m {
			return i
		}
	}
	return len(preferredModules)
}

func containsClass(cs []domain.EnumClass, qual string) bool {
	for _, c := range cs {
		if c.QualName() == qual {
			return true
		}
	}
	return false
}
