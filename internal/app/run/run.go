package run

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/John-Robertt/qtenum/internal/app/planner"
	"github.com/John-Robertt/qtenum/internal/config"
	"github.com/John-Robertt/qtenum/internal/domain"
	"github.com/John-Robertt/qtenum/internal/engine"
	"github.com/John-Robertt/qtenum/internal/enumtable"
	"github.com/John-Robertt/qtenum/internal/infra/fsx"
	"github.com/John-Robertt/qtenum/internal/scan"
)

// Execute 执行一次 run（dry-run/apply），并返回对外稳定的 RunReport。
// 错误尽量“降级”为文件级失败（单个文件失败不影响其他文件）。
func Execute(ctx context.Context, eff config.EffectiveConfig) domain.RunReport {
	return ExecuteWithObserver(ctx, eff, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 以输出进度/阶段信息（由上层决定是否启用）。
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, obs Observer) domain.RunReport {
	started := time.Now().UTC()

	if obs != nil {
		obs.OnStart(eff)
	}

	rr := domain.RunReport{
		Path:      eff.Path,
		DryRun:    !eff.Apply,
		Strict:    eff.Strict,
		StartedAt: started,
		Items:     make([]domain.FileResult, 0, 128),
	}

	tableStarted := time.Now()
	tbl, err := enumtable.Load(eff.Table, eff.Conflicts)
	if err != nil {
		rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeTableInvalid, fmt.Sprintf("加载枚举表失败：%v", err)))
		return finish(rr)
	}
	if obs != nil {
		obs.OnPhaseDone("table", map[string]any{
			"members":   tbl.Len(),
			"classes":   tbl.Classes(),
			"conflicts": len(tbl.Conflicts()),
		}, time.Since(tableStarted))
	}

	eng := engine.New(tbl, engine.Options{Bindings: engineBindings(eff.Bindings)})

	scanStarted := time.Now()
	files, err := scan.ScanSources(eff.Path, scan.Options{Include: eff.Include, ExcludeDirs: eff.ExcludeDirs})
	if err != nil {
		rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeIOFailed, fmt.Sprintf("扫描失败：%v", err)))
		return finish(rr)
	}
	if obs != nil {
		obs.OnPhaseDone("scan", map[string]any{"files": len(files)}, time.Since(scanStarted))
	}

	// 执行阶段：按文件并发（文件之间互不依赖），单个文件内串行。
	workers := eff.Concurrency
	if workers < 1 {
		workers = 1
	}
	if obs != nil {
		obs.OnPhaseDone("exec", map[string]any{
			"workers":     workers,
			"total_files": len(files),
		}, 0)
	}

	results := make([]domain.FileResult, len(files))
	var (
		mu   sync.Mutex
		done int
		g    errgroup.Group
	)
	g.SetLimit(workers)
	for i := range files {
		i := i
		g.Go(func() error {
			oneStarted := time.Now()
			res := processFile(ctx, eff, eng, files[i])
			results[i] = res

			if obs != nil {
				mu.Lock()
				done++
				obs.OnFileDone(done, len(files), res, time.Since(oneStarted))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	rr.Items = append(rr.Items, results...)
	return finish(rr)
}

func processFile(ctx context.Context, eff config.EffectiveConfig, eng *engine.Engine, f domain.SourceFile) domain.FileResult {
	fr := domain.FileResult{Src: f.RelPath, Status: domain.StatusUnchanged}

	plan, err := planner.PlanFile(ctx, f, eng, planner.Options{Strict: eff.Strict, Diff: eff.Diff})
	if err != nil {
		return failed(fr, planner.Code(err), err.Error())
	}
	if !plan.Changed() {
		return fr
	}
	fr.Edits = plan.Edits
	fr.Guesses = plan.Guesses
	fr.Diff = plan.Diff

	if !eff.Apply {
		fr.Status = domain.StatusPlanned
		return fr
	}
	if err := ctx.Err(); err != nil {
		return failed(fr, domain.ErrCodeCanceled, err.Error())
	}
	// 原子替换：同目录临时文件 + rename，失败时原文件保持不变。
	if err := fsx.WriteFileAtomicReplaceMode(filepath.Dir(f.AbsPath), filepath.Base(f.AbsPath), plan.After, f.Mode.Perm()); err != nil {
		return failed(fr, domain.ErrCodeWriteFailed, fmt.Sprintf("写入失败：%v", err))
	}
	fr.Status = domain.StatusRewritten
	return fr
}

func failed(fr domain.FileResult, code, msg string) domain.FileResult {
	fr.Status = domain.StatusFailed
	fr.ErrorCode = code
	fr.ErrorMsg = msg
	return fr
}

func syntheticFailed(code, msg string) domain.FileResult {
	return domain.FileResult{
		Src:       "",
		Status:    domain.StatusFailed,
		ErrorCode: code,
		ErrorMsg:  msg,
		Guesses:   []domain.Guess{},
	}
}

func finish(rr domain.RunReport) domain.RunReport {
	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()
	return rr
}

func engineBindings(in []config.Binding) []engine.Binding {
	out := make([]engine.Binding, 0, len(in))
	for _, b := range in {
		out = append(out, engine.Binding{Old: b.Old, New: b.New})
	}
	return out
}
