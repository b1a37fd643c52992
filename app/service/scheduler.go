package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// RunJob runs fn once and logs the outcome. Panics are reported as errors.
func RunJob(ctx context.Context, name string, fn func(ctx context.Context) error) (err error) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("job panic: %v", rec)
		}
		latency := time.Since(start)
		if err != nil {
			logrus.WithError(err).WithField("job", name).WithField("latency", latency.String()).Error("job_failed")
			return
		}
		logrus.WithField("job", name).WithField("latency", latency.String()).Info("job_completed")
	}()

	return fn(ctx)
}

// Schedule runs fn immediately and then on every tick of interval until ctx
// is done. Job failures never stop the loop.
func Schedule(ctx context.Context, name string, interval time.Duration, fn func(ctx context.Context) error) error {
	if interval <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInterval, name)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	_ = RunJob(ctx, name, fn)

	for {
		select {
		case <-ctx.Done():
			logrus.WithField("job", name).Info("Worker shutdown requested")
			return nil
		case <-ticker.C:
			_ = RunJob(ctx, name, fn)
		}
	}
}
