// Package routine provides safe goroutine execution with panic recovery.
// Fire-and-forget cache writes and background re-validation run through it,
// so a panicking background task surfaces in logs instead of crashing the
// agent or leaking into the original caller's result path.
package routine

import (
	"runtime/debug"
	"sync"

	"github.com/sirupsen/logrus"
)

// Runner 在受控的 goroutine 中执行后台任务，panic 只记日志不外溢。
type Runner struct {
	logger *logrus.Logger
	wg     sync.WaitGroup
}

// New 创建 Runner，logger 不能为空。
func New(logger *logrus.Logger) *Runner {
	return &Runner{logger: logger}
}

// Go 在新 goroutine 中执行 fn，name 用于日志定位。
func (r *Runner) Go(name string, fn func()) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.recover(name)
		fn()
	}()
}

// Wait 等待所有已启动的后台任务结束，测试与优雅退出时使用。
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) recover(name string) {
	if rec := recover(); rec != nil {
		r.logger.WithFields(logrus.Fields{
			"action":  "routine_panic",
			"routine": name,
			"panic":   rec,
			"stack":   string(debug.Stack()),
		}).Error("background routine panicked")
	}
}
