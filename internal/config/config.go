package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/John-Robertt/qtenum/internal/domain"
	"github.com/John-Robertt/qtenum/internal/enumtable"
)

const (
	// ErrCodeNotFound 表示无参运行但 cwd 下没有 qtenum.toml。
	ErrCodeNotFound = domain.ErrCodeConfigNotFound
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = domain.ErrCodeConfigInvalid
	// ErrCodeMissingPath 表示无参运行但配置文件缺少 path 字段。
	ErrCodeMissingPath = domain.ErrCodeConfigMissingPath
)

const (
	// FileName 是配置文件名（TOML）。
	FileName = "qtenum.toml"
	// DefaultConcurrency 是并发的内置默认值（当配置未指定时）。
	DefaultConcurrency = 4
	// MaxConcurrency 是并发上限；超出截断。
	MaxConcurrency = 32
)

// CLIArgs 只包含 CLI 暴露的入口，并保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：例如 --dry-run=false 必须能覆盖 config 里的 dry_run = true。
type CLIArgs struct {
	Path string

	DryRun    bool
	DryRunSet bool

	Strict    bool
	StrictSet bool

	Diff    bool
	DiffSet bool

	Table    string
	TableSet bool

	Bindings    []string
	BindingsSet bool

	Concurrency    int
	ConcurrencySet bool
}

// FileConfig 对应 qtenum.toml 的解析结构。
type FileConfig struct {
	Path        string             `mapstructure:"path"`
	DryRun      *bool              `mapstructure:"dry_run"`
	Strict      *bool              `mapstructure:"strict"`
	Diff        *bool              `mapstructure:"diff"`
	Table       string             `mapstructure:"table"`
	Include     []string           `mapstructure:"include"`
	ExcludeDirs []string           `mapstructure:"exclude_dirs"`
	Concurrency int                `mapstructure:"concurrency"`
	Bindings    []string           `mapstructure:"bindings"`
	Conflicts   []ConflictOverride `mapstructure:"conflict"`
	ProxyURL    string             `mapstructure:"proxy_url"`
	CacheDir    string             `mapstructure:"cache_dir"`
}

// ConflictOverride 覆盖枚举表中某个多候选成员的首选类。
// 用 [[conflict]] 数组表示：viper 会把表键转成小写，成员名不能作为键。
type ConflictOverride struct {
	Member string `mapstructure:"member"`
	Class  string `mapstructure:"class"`
}

// Binding 是一次绑定包名替换（例如 PySide2 -> PySide6）。
type Binding struct {
	Old string
	New string
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	Path string
	// ConfigFile 是实际读到的配置文件；没有读到时为空。
	ConfigFile string

	// Apply 为 true 时原地改写文件（默认）；dry_run 打开时为 false。
	Apply  bool
	Strict bool
	Diff   bool

	// Table 为空表示使用内置表。
	Table     string
	Conflicts []enumtable.ConflictEntry
	Bindings  []Binding

	Include     []string
	ExcludeDirs []string
	Concurrency int

	ProxyURL string
	CacheDir string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeMissingPath:
		return fmt.Sprintf("%s：配置文件 %q 缺少必填字段 path", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 发现并读取配置文件，然后与 CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 提供 path：尝试读取 <path>/qtenum.toml（可选；path 是文件时取其所在目录）
// 2) CLI 未提供 path：必须读取 <cwd>/qtenum.toml（必选），且其中必须包含 path
//
// 覆盖优先级（固定）：CLI（显式指定）> 配置文件 > 默认。
// 配置文件里的相对路径（path/table）相对配置文件所在目录；CLI 的相对路径相对 cwd。
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	if strings.TrimSpace(cli.Path) != "" {
		absPath := absCleanFrom(cwdAbs, cli.Path)
		cfgDir := absPath
		if fi, err := os.Stat(absPath); err == nil && !fi.IsDir() {
			cfgDir = filepath.Dir(absPath)
		}
		cfgPath := filepath.Join(cfgDir, FileName)

		fc, exists, err := readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		if !exists {
			cfgPath = ""
		}
		return merge(cwdAbs, absPath, cli, fc, cfgPath)
	}

	cfgPath := filepath.Join(cwdAbs, FileName)
	fc, exists, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if !exists {
		return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
	}
	if strings.TrimSpace(fc.Path) == "" {
		return EffectiveConfig{}, &Error{Code: ErrCodeMissingPath, Path: cfgPath}
	}

	absPath := absCleanFrom(cwdAbs, fc.Path)
	return merge(cwdAbs, absPath, cli, fc, cfgPath)
}

func merge(cwdAbs, absPath string, cli CLIArgs, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	invalid := func(err error) error {
		where := cfgPath
		if where == "" {
			where = "<cli>"
		}
		return &Error{Code: ErrCodeInvalid, Path: where, Err: err}
	}
	cfgDir := cwdAbs
	if cfgPath != "" {
		cfgDir = filepath.Dir(cfgPath)
	}

	apply := !pickBool(cli.DryRunSet, cli.DryRun, fc.DryRun)
	strict := pickBool(cli.StrictSet, cli.Strict, fc.Strict)
	diff := pickBool(cli.DiffSet, cli.Diff, fc.Diff)

	// table：CLI > config > 内置表
	table := ""
	if cli.TableSet && strings.TrimSpace(cli.Table) != "" {
		table = absCleanFrom(cwdAbs, cli.Table)
	} else if strings.TrimSpace(fc.Table) != "" {
		table = absCleanFrom(cfgDir, fc.Table)
	}

	concurrency := fc.Concurrency
	if cli.ConcurrencySet {
		concurrency = cli.Concurrency
	}
	if concurrency == 0 {
		concurrency = DefaultConcurrency
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > MaxConcurrency {
		concurrency = MaxConcurrency
	}

	rawBindings := fc.Bindings
	if cli.BindingsSet {
		rawBindings = cli.Bindings
	}
	bindings, err := ParseBindings(rawBindings)
	if err != nil {
		return EffectiveConfig{}, invalid(err)
	}

	conflicts, err := parseConflicts(fc.Conflicts)
	if err != nil {
		return EffectiveConfig{}, invalid(err)
	}

	proxyURL := strings.TrimSpace(fc.ProxyURL)
	if proxyURL != "" {
		if err := validateProxyURL(proxyURL); err != nil {
			return EffectiveConfig{}, invalid(err)
		}
	}

	cacheDir := ""
	if strings.TrimSpace(fc.CacheDir) != "" {
		cacheDir = absCleanFrom(cfgDir, fc.CacheDir)
	}

	return EffectiveConfig{
		Path:        absPath,
		ConfigFile:  cfgPath,
		Apply:       apply,
		Strict:      strict,
		Diff:        diff,
		Table:       table,
		Conflicts:   conflicts,
		Bindings:    bindings,
		Include:     trimAll(fc.Include),
		ExcludeDirs: trimAll(fc.ExcludeDirs),
		Concurrency: concurrency,
		ProxyURL:    proxyURL,
		CacheDir:    cacheDir,
	}, nil
}

// GenArgs 是 gen 子命令暴露的网络相关入口。
type GenArgs struct {
	ProxyURL    string
	ProxyURLSet bool

	CacheDir    string
	CacheDirSet bool
}

// GenConfig 是 gen 子命令的最终配置。
type GenConfig struct {
	ConfigFile string
	ProxyURL   string
	CacheDir   string
}

// LoadGen 读取可选的 <cwd>/qtenum.toml 中的 proxy_url/cache_dir，并与 CLI 合并。
// gen 不扫描源码，因此这里不要求 path。
func LoadGen(cwd string, cli GenArgs) (GenConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return GenConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}
	cfgPath := filepath.Join(cwdAbs, FileName)
	fc, exists, err := readFileConfig(cfgPath)
	if err != nil {
		return GenConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}

	out := GenConfig{}
	cfgDir := cwdAbs
	if exists {
		out.ConfigFile = cfgPath
	}

	out.ProxyURL = strings.TrimSpace(fc.ProxyURL)
	where := cfgPath
	if cli.ProxyURLSet {
		out.ProxyURL = strings.TrimSpace(cli.ProxyURL)
		where = "<cli>"
	}
	if out.ProxyURL != "" {
		if err := validateProxyURL(out.ProxyURL); err != nil {
			return GenConfig{}, &Error{Code: ErrCodeInvalid, Path: where, Err: err}
		}
	}

	if cli.CacheDirSet && strings.TrimSpace(cli.CacheDir) != "" {
		out.CacheDir = absCleanFrom(cwdAbs, cli.CacheDir)
	} else if strings.TrimSpace(fc.CacheDir) != "" {
		out.CacheDir = absCleanFrom(cfgDir, fc.CacheDir)
	}
	return out, nil
}

// TableArgs 是 conflicts 子命令暴露的入口。
type TableArgs struct {
	Table    string
	TableSet bool
}

// TableConfig 决定加载哪张枚举表以及叠加哪些 [[conflict]]。
type TableConfig struct {
	ConfigFile string
	// Table 为空表示使用内置表。
	Table     string
	Conflicts []enumtable.ConflictEntry
}

// LoadTable 读取可选的 <cwd>/qtenum.toml 中的 table 与 [[conflict]]，规则与 LoadEffective 相同。
// --table 优先于配置文件。
func LoadTable(cwd string, cli TableArgs) (TableConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return TableConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}
	cfgPath := filepath.Join(cwdAbs, FileName)
	fc, exists, err := readFileConfig(cfgPath)
	if err != nil {
		return TableConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}

	out := TableConfig{}
	if exists {
		out.ConfigFile = cfgPath
	}
	if cli.TableSet && strings.TrimSpace(cli.Table) != "" {
		out.Table = absCleanFrom(cwdAbs, cli.Table)
	} else if strings.TrimSpace(fc.Table) != "" {
		out.Table = absCleanFrom(cwdAbs, fc.Table)
	}
	out.Conflicts, err = parseConflicts(fc.Conflicts)
	if err != nil {
		return TableConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	return out, nil
}

func parseConflicts(in []ConflictOverride) ([]enumtable.ConflictEntry, error) {
	out := make([]enumtable.ConflictEntry, 0, len(in))
	for i, c := range in {
		m, cls := strings.TrimSpace(c.Member), strings.TrimSpace(c.Class)
		if !domain.IsIdent(m) {
			return nil, fmt.Errorf("conflict[%d].member 无效：%q", i, c.Member)
		}
		if _, err := domain.ParseEnumClass(cls); err != nil {
			return nil, fmt.Errorf("conflict[%d].class 无效：%w", i, err)
		}
		out = append(out, enumtable.ConflictEntry{Member: m, Class: cls})
	}
	return out, nil
}

// ParseBindings 解析 "PySide2,PySide6" 形式的绑定替换。
func ParseBindings(raw []string) ([]Binding, error) {
	out := make([]Binding, 0, len(raw))
	seen := map[string]struct{}{}
	for _, r := range raw {
		parts := strings.Split(r, ",")
		if len(parts) != 2 {
			return nil, fmt.Errorf("binding 需要形如 PySide2,PySide6，实际是 %q", r)
		}
		b := Binding{Old: strings.TrimSpace(parts[0]), New: strings.TrimSpace(parts[1])}
		if !domain.IsIdent(b.Old) || !domain.IsIdent(b.New) {
			return nil, fmt.Errorf("binding 包名无效：%q", r)
		}
		if b.Old == b.New {
			return nil, fmt.Errorf("binding 前后相同：%q", r)
		}
		if _, ok := seen[b.Old]; ok {
			return nil, fmt.Errorf("binding 重复：%q", b.Old)
		}
		seen[b.Old] = struct{}{}
		out = append(out, b)
	}
	return out, nil
}

func pickBool(cliSet, cliVal bool, file *bool) bool {
	if cliSet {
		return cliVal
	}
	if file != nil {
		return *file
	}
	return false
}

func validateProxyURL(s string) error {
	u, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("proxy_url 无效：%w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("proxy_url 需要形如 http://host:port，实际是 %q", s)
	}
	return nil
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
// - p 若已是绝对路径：直接 Clean
// - p 若是相对路径：Join(base, p) 后 Clean
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 用 viper 读取 TOML 配置文件；未知键视为错误。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if fi.IsDir() {
		return FileConfig{}, true, fmt.Errorf("%q 是目录", path)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return FileConfig{}, true, err
	}
	if err := v.UnmarshalExact(&fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
