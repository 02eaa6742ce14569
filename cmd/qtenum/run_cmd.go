package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/qtenum/internal/app/run"
	"github.com/John-Robertt/qtenum/internal/config"
	"github.com/John-Robertt/qtenum/internal/domain"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		dryRun      bool
		strict      bool
		diff        bool
		table       string
		bindings    []string
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "run [path]",
		Short: "扫描 path 并原地改写枚举访问",
		Long: `扫描 path（目录或单个文件）并改写其中的枚举访问。

未指定 path 时读取当前目录的 qtenum.toml，其中必须包含 path。
优先级：显式指定的参数 > 配置文件 > 默认值；例如 --dry-run=false 可以覆盖配置中的 dry_run = true。`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			cli := config.CLIArgs{
				DryRun:         dryRun,
				DryRunSet:      f.Changed("dry-run"),
				Strict:         strict,
				StrictSet:      f.Changed("strict"),
				Diff:           diff,
				DiffSet:        f.Changed("diff"),
				Table:          table,
				TableSet:       f.Changed("table"),
				Bindings:       bindings,
				BindingsSet:    f.Changed("binding"),
				Concurrency:    concurrency,
				ConcurrencySet: f.Changed("concurrency"),
			}
			if len(args) == 1 {
				cli.Path = args[0]
			}
			return a.run(cmd.Context(), cli)
		},
	}

	f := cmd.Flags()
	f.BoolVar(&dryRun, "dry-run", false, "只报告将要发生的改动，不写文件")
	f.BoolVar(&strict, "strict", false, "用语法树跳过注释与字符串中的文本（.py/.pyi）")
	f.BoolVar(&diff, "diff", false, "为有改动的文件生成 unified diff")
	f.StringVar(&table, "table", "", "枚举表文件（默认使用内置 Qt 6 表）")
	f.StringArrayVarP(&bindings, "binding", "b", nil, "同时替换绑定包名，形如 PySide2,PySide6（可重复）")
	f.IntVar(&concurrency, "concurrency", config.DefaultConcurrency, fmt.Sprintf("并发处理的文件数（1..%d）", config.MaxConcurrency))
	return cmd
}

func (a *app) run(ctx context.Context, cli config.CLIArgs) error {
	cwd, err := os.Getwd()
	if err != nil {
		return &exitError{code: 1, err: fmt.Errorf("读取当前目录失败：%w", err)}
	}
	cwdAbs, _ := filepath.Abs(cwd)

	eff, err := config.LoadEffective(cwd, cli)
	if err != nil {
		a.logger.Error("配置无效", "code", config.Code(err), "err", err)
		a.emitReport(reportForConfigError(cwdAbs, cli, err))
		return &exitError{code: 1}
	}
	a.logger.Debug("生效配置",
		"path", eff.Path,
		"config", eff.ConfigFile,
		"apply", eff.Apply,
		"strict", eff.Strict,
		"table", tableName(eff.Table),
		"conflict_overrides", len(eff.Conflicts),
		"bindings", len(eff.Bindings),
		"concurrency", eff.Concurrency,
	)

	progressW, interactive := a.pickProgressWriter()
	var obs run.Observer
	if interactive {
		obs = newProgressUI(progressW)
	}

	rr := run.ExecuteWithObserver(ctx, eff, obs)
	a.emitReport(rr)

	if rr.Summary.Failed > 0 {
		return &exitError{code: 1}
	}
	return nil
}

// emitReport 遵守输出契约：stdout 是 TTY 时输出人类可读摘要；否则 stdout 只输出一个 RunReport JSON。
func (a *app) emitReport(rr domain.RunReport) {
	if isTTY(a.stdout) {
		printHuman(a.stdout, a.stderr, rr)
		return
	}

	enc := json.NewEncoder(a.stdout)
	_ = enc.Encode(rr)
	fmt.Fprintln(a.stderr, summaryLine(rr))
}

func printHuman(out, errW io.Writer, rr domain.RunReport) {
	for _, it := range rr.Items {
		if it.Diff != "" {
			fmt.Fprint(out, it.Diff)
		}
	}

	var guesses int
	for _, it := range rr.Items {
		for _, g := range it.Guesses {
			if guesses == 0 {
				fmt.Fprintln(out, warningStyle.Render("需要人工复核（多候选，按冲突表取首选）："))
			}
			guesses++
			fmt.Fprintf(out, "  %s:%d %s -> %s\n", it.Src, g.Line, g.Member, g.Chosen)
		}
	}

	line := summaryLine(rr)
	if rr.Summary.Failed == 0 {
		line = successStyle.Render(line)
	}
	fmt.Fprintln(out, line)

	for _, it := range rr.Items {
		if it.Status != domain.StatusFailed {
			continue
		}
		key := it.Src
		if key == "" {
			key = "<config>"
		}
		fmt.Fprintf(errW, "%s %s: %s\n", errorStyle.Render(key), it.ErrorCode, it.ErrorMsg)
	}
}

func summaryLine(rr domain.RunReport) string {
	mode := "dry-run"
	if !rr.DryRun {
		mode = "apply"
	}
	return fmt.Sprintf("完成（%s）：changed=%d unchanged=%d failed=%d edits=%d guesses=%d",
		mode, rr.Summary.Changed, rr.Summary.Unchanged, rr.Summary.Failed, rr.Summary.Edits, rr.Summary.Guesses,
	)
}

func reportForConfigError(cwdAbs string, cli config.CLIArgs, err error) domain.RunReport {
	now := time.Now().UTC()
	rr := domain.RunReport{
		Path:       cwdAbs,
		DryRun:     cli.DryRunSet && cli.DryRun,
		StartedAt:  now,
		FinishedAt: now,
		Items: []domain.FileResult{{
			Src:       "",
			Status:    domain.StatusFailed,
			ErrorCode: config.Code(err),
			ErrorMsg:  err.Error(),
		}},
	}
	rr.Finalize()
	return rr
}

func (a *app) pickProgressWriter() (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if isTTY(a.stderr) {
		return a.stderr, true
	}
	// 某些环境（例如仅重定向 stderr）下，stdout 仍是 TTY：退化输出到 stdout。
	if isTTY(a.stdout) {
		return a.stdout, true
	}
	return nil, false
}

func tableName(path string) string {
	if strings.TrimSpace(path) == "" {
		return "builtin"
	}
	return path
}
