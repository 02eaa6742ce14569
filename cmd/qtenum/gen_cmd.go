package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/qtenum/internal/app/gen"
	"github.com/John-Robertt/qtenum/internal/config"
	"github.com/John-Robertt/qtenum/internal/infra/cache"
	"github.com/John-Robertt/qtenum/internal/infra/httpx"
	"github.com/John-Robertt/qtenum/internal/provider/qtdoc"
)

func newGenCmd(a *app) *cobra.Command {
	var (
		providerName string
		out          string
		force        bool
		conflictsOut string
		offline      bool
		proxyURL     string
		cacheDir     string
		baseURL      string
	)

	cmd := &cobra.Command{
		Use:   "gen <ref>...",
		Short: "从类型存根或 Qt 参考文档生成枚举表",
		Long: `从 ref 生成枚举表（TOML）。

--provider stubs：ref 是 .pyi 文件、包含 .pyi 的目录或 http(s) URL
--provider qtdoc：ref 形如 QtCore:qevent（文档页名）或 QtCore:https://…/qevent.html

远程内容会缓存到 cache_dir；--offline 只读缓存、不发请求。
未指定 --out 时把表写到 stdout。`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			cwd, err := os.Getwd()
			if err != nil {
				return &exitError{code: 1, err: fmt.Errorf("读取当前目录失败：%w", err)}
			}
			gc, err := config.LoadGen(cwd, config.GenArgs{
				ProxyURL:    proxyURL,
				ProxyURLSet: f.Changed("proxy"),
				CacheDir:    cacheDir,
				CacheDirSet: f.Changed("cache-dir"),
			})
			if err != nil {
				return &exitError{code: 1, err: err}
			}

			client, err := httpx.NewClient(gc.ProxyURL)
			if err != nil {
				return &exitError{code: 1, err: fmt.Errorf("proxy 无效：%w", err)}
			}
			root := gc.CacheDir
			if root == "" {
				if root, err = cache.DefaultRoot(); err != nil {
					return &exitError{code: 1, err: fmt.Errorf("无法确定缓存目录（可用 --cache-dir 指定）：%w", err)}
				}
			}
			a.logger.Debug("gen", "provider", providerName, "refs", len(args), "cache", root, "offline", offline, "config", gc.ConfigFile)

			res, err := gen.Generate(cmd.Context(), gen.Options{
				Provider:     providerName,
				Refs:         args,
				Out:          out,
				Force:        force,
				ConflictsOut: conflictsOut,
				Offline:      offline,
				Client:       client,
				Cache:        cache.New(root, offline),
				QtDocBaseURL: baseURL,
			})
			if err != nil {
				return &exitError{code: 1, err: err}
			}

			if out == "" {
				if _, err := a.stdout.Write(res.Data); err != nil {
					return &exitError{code: 1, err: err}
				}
			}
			a.logger.Info("枚举表已生成",
				"refs", res.Refs,
				"cached", res.Cached,
				"classes", res.Classes,
				"members", res.Members,
				"conflicts", res.Conflicts,
			)
			if res.Conflicts > 0 && conflictsOut == "" {
				a.logger.Warn("冲突首选由启发式给出，请人工审阅 [[conflict]] 条目（或用 --conflicts 导出清单）")
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&providerName, "provider", "stubs", "枚举定义来源：stubs|qtdoc")
	f.StringVarP(&out, "out", "o", "", "输出的表文件路径（默认 stdout）")
	f.BoolVar(&force, "force", false, "覆盖已存在的 --out 文件")
	f.StringVar(&conflictsOut, "conflicts", "", "同时写出冲突表 Markdown")
	f.BoolVar(&offline, "offline", false, "只使用缓存，不发网络请求")
	f.StringVar(&proxyURL, "proxy", "", "HTTP 代理，例如 http://127.0.0.1:7890")
	f.StringVar(&cacheDir, "cache-dir", "", "页面缓存目录（默认用户缓存目录下的 qtenum）")
	f.StringVar(&baseURL, "base-url", "", "qtdoc 文档根地址（默认 "+qtdoc.DefaultBaseURL+"）")
	return cmd
}
