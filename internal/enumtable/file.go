package enumtable

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// FileVersion 是当前支持的表文件格式版本。
const FileVersion = 1

// File 对应枚举表 TOML 文件的解析结构。
type File struct {
	Version   int             `toml:"version"`
	Enums     []EnumEntry     `toml:"enum"`
	Renames   []RenameEntry   `toml:"rename,omitempty"`
	Conflicts []ConflictEntry `toml:"conflict,omitempty"`
}

type EnumEntry struct {
	Class   string   `toml:"class"`
	Members []string `toml:"members"`
}

// RenameEntry 描述一个在新版本中改名的成员：Member 归属 Class，改写后使用 To。
type RenameEntry struct {
	Member string `toml:"member"`
	Class  string `toml:"class"`
	To     string `toml:"to"`
}

// ConflictEntry 是冲突表的一行：多候选成员 Member 的首选枚举类。
type ConflictEntry struct {
	Member string `toml:"member"`
	Class  string `toml:"class"`
}

//go:embed data/qt6.toml
var builtinTOML []byte

// KnownRenames 是生成表时总会追加的改名条目。
// 来源：https://doc.qt.io/qtforpython-6/faq/porting_from2.html#class-function-deprecations
var KnownRenames = []RenameEntry{
	{Member: "MidButton", Class: "QtCore.Qt.MouseButton", To: "MiddleButton"},
}

// Decode 读取 TOML 表文件；未知字段视为错误（避免拼写错误被静默忽略）。
func Decode(r io.Reader) (File, error) {
	var f File
	dec := toml.NewDecoder(r).DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		var sme *toml.StrictMissingError
		if errors.As(err, &sme) {
			return File{}, &ValidationError{Where: "toml", Err: errors.New(sme.String())}
		}
		return File{}, &ValidationError{Where: "toml", Err: err}
	}
	if f.Version != FileVersion {
		return File{}, &ValidationError{Where: "version", Err: fmt.Errorf("只支持 version=%d，实际是 %d", FileVersion, f.Version)}
	}
	return f, nil
}

// Encode 把表文件写成 TOML（成员数组逐行展开，便于 diff 与人工审阅）。
func Encode(w io.Writer, f File) error {
	if f.Version == 0 {
		f.Version = FileVersion
	}
	enc := toml.NewEncoder(w)
	enc.SetArraysMultiline(true)
	return enc.Encode(f)
}

// LoadFile 从磁盘读取表文件。
func LoadFile(path string) (File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return File{}, err
	}
	f, err := Decode(bytes.NewReader(b))
	if err != nil {
		return File{}, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// BuiltinFile 返回内置 Qt 6 表（每次调用都重新解析，调用方可随意修改返回值）。
func BuiltinFile() (File, error) {
	return Decode(bytes.NewReader(builtinTOML))
}

// Builtin 用内置表构造只读 Table。
func Builtin() (*Table, error) {
	f, err := BuiltinFile()
	if err != nil {
		return nil, err
	}
	return New(f, nil)
}

// Load 按 path 读取表；path 为空时使用内置表。overrides 覆盖表内的冲突首选。
func Load(path string, overrides []ConflictEntry) (*Table, error) {
	var (
		f   File
		err error
	)
	if path == "" {
		f, err = BuiltinFile()
	} else {
		f, err = LoadFile(path)
	}
	if err != nil {
		return nil, err
	}
	return New(f, overrides)
}
