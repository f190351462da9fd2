// Package scheduler 提供轻量的周期任务运行器：
// 重试扫描、死连接清理等后台任务都挂在这里，随根 context 一起退出。
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Treasure123-school/school-web-treasure-sub002/pkg/observability"
)

// Job 周期任务，错误只记录不终止调度
type Job func(ctx context.Context) error

// Runner 周期任务运行器
type Runner struct {
	ctx    context.Context
	logger *zap.Logger
}

// New 创建运行器，ctx 取消后所有任务停止
func New(ctx context.Context, logger *zap.Logger) *Runner {
	return &Runner{ctx: ctx, logger: logger}
}

// Every 每 interval 执行一次 fn。panic 会被捕获并上报，不影响后续轮次。
func (r *Runner) Every(interval time.Duration, name string, fn Job) {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-r.ctx.Done():
				r.logger.Info("周期任务退出", zap.String("job", name))
				return
			case <-t.C:
				r.runOnce(name, fn)
			}
		}
	}()
}

func (r *Runner) runOnce(name string, fn Job) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("周期任务 panic",
				zap.String("job", name),
				zap.Any("panic", p))
			observability.CaptureErr(panicErr{name: name})
		}
	}()

	start := time.Now()
	if err := fn(r.ctx); err != nil {
		r.logger.Error("周期任务失败",
			zap.String("job", name),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return
	}
	r.logger.Debug("周期任务完成",
		zap.String("job", name),
		zap.Duration("elapsed", time.Since(start)))
}

type panicErr struct{ name string }

func (e panicErr) Error() string { return "周期任务 panic: " + e.name }
