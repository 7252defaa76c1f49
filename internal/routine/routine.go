// Package routine runs detached goroutines with panic recovery and lets the
// owner wait for them to drain.
package routine

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
)

// Runner tracks goroutines it starts.
type Runner struct {
	logger *slog.Logger
	wg     sync.WaitGroup
}

func New(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{logger: logger}
}

// Go runs fn in a new goroutine. A panic in fn is logged and swallowed.
func (r *Runner) Go(ctx context.Context, name string, fn func(ctx context.Context)) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.recover(ctx, name)
		fn(ctx)
	}()
}

// Wait blocks until every goroutine started by r has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) recover(ctx context.Context, name string) {
	if rec := recover(); rec != nil {
		r.logger.ErrorContext(ctx, "goroutine panicked",
			slog.String("routine", name),
			slog.Any("panic", rec),
			slog.String("stack", string(debug.Stack())),
		)
	}
}
