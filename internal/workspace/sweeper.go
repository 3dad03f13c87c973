package workspace

import (
	"context"
	"log/slog"
	"time"
)

// SweepInterval is how often idle workspaces are evicted.
const SweepInterval = 5 * time.Minute

// EvictCallback is called for each workspace removed by the sweeper.
type EvictCallback func(key Key)

// RunSweeper periodically evicts workspaces idle for longer than ttl until
// ctx is cancelled. It always returns nil.
func RunSweeper(ctx context.Context, mgr *Manager, ttl, interval time.Duration, onEvict EvictCallback) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	slog.Info("workspace sweeper started", "interval", interval, "ttl", ttl)

	for {
		select {
		case <-ticker.C:
			sweep(mgr, ttl, onEvict)
		case <-ctx.Done():
			slog.Info("workspace sweeper shutting down", "reason", ctx.Err())
			return nil
		}
	}
}

func sweep(mgr *Manager, ttl time.Duration, onEvict EvictCallback) {
	evicted := mgr.Sweep(ttl)
	if len(evicted) == 0 {
		return
	}
	for _, key := range evicted {
		slog.Debug("workspace evicted", "workspace", key.String())
		if onEvict != nil {
			onEvict(key)
		}
	}
	slog.Info("workspace sweep completed", "evicted", len(evicted), "remaining", mgr.Len())
}
