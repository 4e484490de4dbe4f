package gatekeep

import (
	"context"
	"time"
)

// StartEvictor starts the background loop that bounds memory by removing
// idle buckets. The loop runs every GC interval until ctx is cancelled;
// cancelling never blocks, so shutdown stays deterministic.
func (l *limiter) StartEvictor(ctx context.Context) {
	if l.config.Mode == ModeDisabled {
		return
	}
	go l.evictLoop(ctx)
}

func (l *limiter) evictLoop(ctx context.Context) {
	ticker := time.NewTicker(l.gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.evictOnce()
		}
	}
}

// evictOnce runs a single eviction cycle. A failed cycle is logged and
// must not stop future cycles.
func (l *limiter) evictOnce() {
	l.logger.Debug("bucket store size", "buckets", l.store.Count())

	removed, err := l.store.Evict(l.now().Add(-l.horizon))
	if err != nil {
		l.logger.Warn("eviction cycle failed", "error", err)
		return
	}

	remaining := l.store.Count()
	if len(removed) > 0 {
		l.logger.Debug("evicted idle buckets", "count", len(removed), "keys", removed)
	}
	l.recorder.RecordEviction(len(removed), remaining)
}
