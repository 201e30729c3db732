package commandcenter

import (
	"context"
	"log/slog"
	"time"
)

// Retention removes audit rows older than a cutoff. store.Repository satisfies it.
type Retention interface {
	DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error)
}

// TTLConfig controls the idle session sweeper.
type TTLConfig struct {
	Interval  time.Duration
	IdleTTL   time.Duration
	Retention time.Duration
	Now       func() time.Time
}

// CleanupCallback is called for every session evicted by the sweeper.
type CleanupCallback func(c *Controller)

// StartTTLWorker periodically evicts idle sessions and prunes old audit rows.
// It stops when ctx is cancelled.
func StartTTLWorker(ctx context.Context, reg *Registry, repo Retention, cfg TTLConfig, onCleanup CleanupCallback) {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	ticker := time.NewTicker(cfg.Interval)
	go func() {
		defer ticker.Stop()
		slog.Info("TTL worker started", "interval", cfg.Interval, "idle_ttl", cfg.IdleTTL, "retention", cfg.Retention)

		for {
			select {
			case <-ticker.C:
				sweep(ctx, reg, repo, cfg, onCleanup)
			case <-ctx.Done():
				slog.Info("TTL worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func sweep(ctx context.Context, reg *Registry, repo Retention, cfg TTLConfig, onCleanup CleanupCallback) {
	if cfg.IdleTTL > 0 {
		cutoff := cfg.Now().Add(-cfg.IdleTTL)
		evicted := reg.evictIdle(cutoff)
		for _, c := range evicted {
			if onCleanup != nil {
				onCleanup(c)
			}
		}
		if len(evicted) > 0 {
			slog.Info("TTL worker evicted idle sessions", "count", len(evicted), "remaining", reg.Len())
		}
	}

	if repo == nil || cfg.Retention <= 0 {
		return
	}
	deleted, err := repo.DeleteOlderThan(ctx, cfg.Retention)
	if err != nil {
		slog.Error("TTL worker failed to prune query records", "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("TTL worker pruned query records", "count", deleted)
	}
}
