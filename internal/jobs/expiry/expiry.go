// AngelaMos | 2026
// expiry.go

package expiry

import (
	"context"
	"log/slog"
	"time"
)

const DefaultInterval = time.Minute

// Expirer fails PENDING purchases whose payment window has closed.
type Expirer interface {
	ExpireStale(ctx context.Context) (int, error)
}

type Job struct {
	expirer  Expirer
	interval time.Duration
	logger   *slog.Logger
}

func New(expirer Expirer, interval time.Duration, logger *slog.Logger) *Job {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Job{expirer: expirer, interval: interval, logger: logger}
}

// Run sweeps once per interval until ctx is cancelled.
func (j *Job) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.Info("expiry sweeper started", "interval", j.interval)

	for {
		select {
		case <-ticker.C:
			//nolint:errcheck // logged by RunOnce
			_, _ = j.RunOnce(ctx)
		case <-ctx.Done():
			j.logger.Info("expiry sweeper stopped")
			return
		}
	}
}

func (j *Job) RunOnce(ctx context.Context) (int, error) {
	start := time.Now()

	n, err := j.expirer.ExpireStale(ctx)
	if err != nil {
		if ctx.Err() == nil {
			j.logger.Error("expiry sweep failed", "error", err, "expired", n)
		}
		return n, err
	}

	if n > 0 {
		j.logger.Info("expired stale purchases",
			"count", n,
			"duration", time.Since(start),
		)
	}
	return n, nil
}
