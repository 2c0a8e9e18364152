// Package ratelimit enforces the per-rule request ceilings before any fetch
// is allowed to proceed. Counters live in persisted storage so limits hold
// across concurrent invocations of the service.
package ratelimit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"article-scraper/internal/scraper/model"
)

// CounterStore holds the per-rule window counters. All mutation must be
// atomic on the storage side; the governor never read-modify-writes.
type CounterStore interface {
	// Counts returns the requests admitted in the current minute and hour
	// windows and the number of currently active runs.
	Counts(ctx context.Context, ruleID string, now time.Time) (minute, hour, active int, err error)
	// Increment admits one request into both windows.
	Increment(ctx context.Context, ruleID string, now time.Time) error
	// AddActive adjusts the active-run counter by delta.
	AddActive(ctx context.Context, ruleID string, delta int) error
}

// Governor gates runs on the rule's rate_limit_config. A zero ceiling is
// unlimited.
type Governor struct {
	Store CounterStore
	Log   *zap.Logger
	Now   func() time.Time
}

func New(store CounterStore, log *zap.Logger) *Governor {
	return &Governor{Store: store, Log: log, Now: time.Now}
}

// CanProceed reports whether admitting one more request would stay inside
// every configured ceiling.
func (g *Governor) CanProceed(ctx context.Context, rule *model.Rule) (bool, error) {
	cfg := rule.RateLimit
	if cfg.MaxRequestsPerMinute <= 0 && cfg.MaxRequestsPerHour <= 0 && cfg.ConcurrentRequests <= 0 {
		return true, nil
	}

	minute, hour, active, err := g.Store.Counts(ctx, rule.ID, g.Now())
	if err != nil {
		return false, err
	}

	if cfg.MaxRequestsPerMinute > 0 && minute+1 > cfg.MaxRequestsPerMinute {
		g.Log.Warn("Per-minute ceiling reached",
			zap.String("ruleId", rule.ID),
			zap.Int("count", minute),
			zap.Int("ceiling", cfg.MaxRequestsPerMinute),
		)
		return false, nil
	}
	if cfg.MaxRequestsPerHour > 0 && hour+1 > cfg.MaxRequestsPerHour {
		g.Log.Warn("Per-hour ceiling reached",
			zap.String("ruleId", rule.ID),
			zap.Int("count", hour),
			zap.Int("ceiling", cfg.MaxRequestsPerHour),
		)
		return false, nil
	}
	if cfg.ConcurrentRequests > 0 && active+1 > cfg.ConcurrentRequests {
		g.Log.Warn("Concurrency ceiling reached",
			zap.String("ruleId", rule.ID),
			zap.Int("active", active),
			zap.Int("ceiling", cfg.ConcurrentRequests),
		)
		return false, nil
	}
	return true, nil
}

// RecordRequest admits the request into the windows and marks one run active.
func (g *Governor) RecordRequest(ctx context.Context, ruleID string) error {
	if err := g.Store.Increment(ctx, ruleID, g.Now()); err != nil {
		return err
	}
	return g.Store.AddActive(ctx, ruleID, 1)
}

// Release marks the run finished. Failures only log; the run outcome is
// already decided by the time this is called.
func (g *Governor) Release(ctx context.Context, ruleID string) {
	if err := g.Store.AddActive(ctx, ruleID, -1); err != nil {
		g.Log.Warn("Failed to release concurrency slot",
			zap.String("ruleId", ruleID),
			zap.Error(err),
		)
	}
}
