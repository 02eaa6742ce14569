package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// exitError 让 RunE 以指定退出码结束，而不在命令内部直接 os.Exit。
// err 为空表示失败原因已经输出过（例如 report）。
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return fmt.Sprintf("exit status %d", e.code)
}

func (e *exitError) Unwrap() error { return e.err }

// execute 返回进程退出码：0 成功；1 运行失败（含配置错误）；2 用法错误。
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintln(stderr, errorStyle.Render("错误：")+ee.err.Error())
		}
		return ee.code
	}
	fmt.Fprintln(stderr, errorStyle.Render("参数错误：")+err.Error())
	fmt.Fprintln(stderr, mutedStyle.Render(`使用 "qtenum --help" 查看用法。`))
	return 2
}

// app 持有各子命令共享的输出端与 logger。
type app struct {
	stdout  io.Writer
	stderr  io.Writer
	verbose bool
	logger  *log.Logger
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "qtenum",
		Short: "把 Qt5 风格的枚举访问改写为 Qt6 要求的完整限定写法",
		Long: titleStyle.Render("qtenum") + mutedStyle.Render(" - Qt 枚举迁移工具") + `

把 Namespace.Member（PyQt5/PySide2 写法）改写为 Namespace.EnumClass.Member
（PySide6/PyQt6 写法）。同名成员属于多个枚举类时按冲突表取首选，
这些位置会在报告中单独列出，需要人工复核。

` + mutedStyle.Render("示例：") + `
  qtenum run ./src                 原子地原地改写文件
  qtenum run ./src --dry-run       只报告将要改写的位置
  qtenum conflicts                 查看冲突表
  qtenum gen ./PySide6 -o qt6.toml 从类型存根生成枚举表`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.logger = newLogger(a.stderr, a.verbose)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "输出调试日志")

	root.AddCommand(newRunCmd(a))
	root.AddCommand(newConflictsCmd(a))
	root.AddCommand(newGenCmd(a))
	return root
}

// newLogger 只写 stderr：stdout 留给 report JSON 与生成结果。
func newLogger(w io.Writer, verbose bool) *log.Logger {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(w, log.Options{
		Prefix: "qtenum",
		Level:  level,
	})
}

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
