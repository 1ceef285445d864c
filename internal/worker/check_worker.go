// Package worker runs ledger checks on a fixed interval.
package worker

import (
	"context"
	"time"

	"ledgercheck/internal/log"
)

// CheckRunner is one complete check run.
type CheckRunner interface {
	Check(ctx context.Context) error
}

// CheckWorker calls the runner immediately on start and then once per
// interval until the context is cancelled. Run errors are logged and the
// loop carries on; the runner itself tracks failure streaks.
type CheckWorker struct {
	runner   CheckRunner
	interval time.Duration
	logger   *log.Logger
}

func NewCheckWorker(runner CheckRunner, interval time.Duration, logger *log.Logger) *CheckWorker {
	return &CheckWorker{
		runner:   runner,
		interval: interval,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

func (w *CheckWorker) Run(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting periodic ledger checks",
		log.FieldOperation, log.OpStartup,
		"interval", w.interval.String())

	w.check(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.InfoContext(ctx, "Stopping periodic ledger checks",
				log.FieldOperation, log.OpShutdown,
				"reason", ctx.Err().Error())
			return ctx.Err()
		case <-ticker.C:
			w.check(ctx)
		}
	}
}

func (w *CheckWorker) check(ctx context.Context) {
	if err := w.runner.Check(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Check run failed",
			log.FieldOperation, log.OpCheck,
			log.FieldError, err.Error())
	}
}
