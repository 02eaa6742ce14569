package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/John-Robertt/qtenum/internal/config"
	"github.com/John-Robertt/qtenum/internal/conflictdoc"
	"github.com/John-Robertt/qtenum/internal/enumtable"
)

// renderMarkdown 在测试中可替换。
var renderMarkdown = func(md string) (string, error) {
	return glamour.Render(md, "auto")
}

func newConflictsCmd(a *app) *cobra.Command {
	var table string

	cmd := &cobra.Command{
		Use:   "conflicts",
		Short: "列出多候选成员及其首选枚举类（需要人工复核的部分）",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return &exitError{code: 1, err: fmt.Errorf("读取当前目录失败：%w", err)}
			}
			tc, err := config.LoadTable(cwd, config.TableArgs{Table: table, TableSet: cmd.Flags().Changed("table")})
			if err != nil {
				return &exitError{code: 1, err: err}
			}
			tbl, err := enumtable.Load(tc.Table, tc.Conflicts)
			if err != nil {
				return &exitError{code: 1, err: fmt.Errorf("加载枚举表失败：%w", err)}
			}
			a.logger.Debug("枚举表",
				"config", tc.ConfigFile,
				"table", tableName(tc.Table),
				"conflict_overrides", len(tc.Conflicts),
				"members", tbl.Len(),
				"classes", tbl.Classes(),
			)

			md := conflictdoc.Render(tbl)
			if isTTY(a.stdout) {
				if out, err := renderMarkdown(md); err == nil {
					md = out
				} else {
					a.logger.Warn("Markdown 渲染失败，输出原文", "err", err)
				}
			}
			fmt.Fprint(a.stdout, md)
			return nil
		},
	}
	cmd.Flags().StringVar(&table, "table", "", "枚举表文件（默认取 qtenum.toml 的 table，否则使用内置 Qt 6 表）")
	return cmd
}
