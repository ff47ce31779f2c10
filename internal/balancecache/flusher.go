package balancecache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"tipbridge/internal/metrics"
	"tipbridge/internal/money"
	"tipbridge/internal/repository"

	"github.com/google/uuid"
)

const (
	defaultFlushInterval = time.Second
	defaultMaxBatch      = 1000
	maxFlushAttempts     = 3
	flushTimeout         = 5 * time.Second
)

type dirtyBalance struct {
	value     repository.CachedBalance
	attempts  int
	notBefore time.Time
}

// Flusher buffers refreshed balances and writes them to the wallet rows in bulk.
// It satisfies BalanceWriter, so the registry never waits on the database.
type Flusher struct {
	mu    sync.Mutex
	dirty map[uuid.UUID]dirtyBalance

	bulk     repository.BalanceBulk
	interval time.Duration
	maxBatch int
	log      *slog.Logger
	now      func() time.Time
}

var _ BalanceWriter = (*Flusher)(nil)

func NewFlusher(bulk repository.BalanceBulk, interval time.Duration, log *slog.Logger) *Flusher {
	if interval <= 0 {
		interval = defaultFlushInterval
	}
	return &Flusher{
		dirty:    make(map[uuid.UUID]dirtyBalance),
		bulk:     bulk,
		interval: interval,
		maxBatch: defaultMaxBatch,
		log:      log.With(slog.String("component", "flusher")),
		now:      time.Now,
	}
}

// UpdateCachedBalance queues the reading; a newer reading replaces an older unflushed one.
func (f *Flusher) UpdateCachedBalance(_ context.Context, id uuid.UUID, balance money.Money, pending int) error {
	f.mu.Lock()
	f.dirty[id] = dirtyBalance{value: repository.CachedBalance{Balance: balance, Pending: pending}}
	f.mu.Unlock()
	return nil
}

func (f *Flusher) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.dirty)
}

func (f *Flusher) collect(force bool) map[uuid.UUID]dirtyBalance {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	batch := make(map[uuid.UUID]dirtyBalance, min(len(f.dirty), f.maxBatch))
	for id, d := range f.dirty {
		if len(batch) >= f.maxBatch {
			break
		}
		if !force && now.Before(d.notBefore) {
			continue
		}
		batch[id] = d
		delete(f.dirty, id)
	}
	return batch
}

// Flush writes one batch of due balances. On failure each row goes back with exponential backoff
// unless a newer reading arrived meanwhile; rows that fail maxFlushAttempts times are dropped.
func (f *Flusher) Flush(ctx context.Context) error {
	return f.flush(ctx, false)
}

func (f *Flusher) flush(ctx context.Context, force bool) error {
	batch := f.collect(force)
	if len(batch) == 0 {
		return nil
	}

	values := make(map[uuid.UUID]repository.CachedBalance, len(batch))
	for id, d := range batch {
		values[id] = d.value
	}

	ctx, cancel := context.WithTimeout(ctx, flushTimeout)
	err := f.bulk.BulkUpdateCachedBalances(ctx, values)
	cancel()

	if err == nil {
		metrics.BalanceFlushesTotal.WithLabelValues("ok").Inc()
		f.log.Debug("flushed cached balances", slog.Int("count", len(batch)))
		return nil
	}

	metrics.BalanceFlushesTotal.WithLabelValues("failed").Inc()
	f.log.Warn("flush failed, requeueing", slog.Int("count", len(batch)), slog.String("error", err.Error()))

	now := f.now()
	f.mu.Lock()
	for id, d := range batch {
		if _, newer := f.dirty[id]; newer {
			continue
		}
		backoff := time.Duration(1<<d.attempts) * time.Second
		d.attempts++
		if d.attempts >= maxFlushAttempts {
			metrics.BalanceFlushDropped.Inc()
			f.log.Error("max flush attempts reached, dropping cached balance", slog.String("wallet", id.String()))
			continue
		}
		d.notBefore = now.Add(backoff)
		f.dirty[id] = d
	}
	f.mu.Unlock()
	return err
}

// Run flushes every interval until ctx is done, then makes one last attempt at everything left.
func (f *Flusher) Run(ctx context.Context) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			final := context.WithoutCancel(ctx)
			for f.Pending() > 0 {
				if err := f.flush(final, true); err != nil {
					break
				}
			}
			return
		case <-ticker.C:
			for {
				before := f.Pending()
				if err := f.Flush(ctx); err != nil || f.Pending() == 0 || f.Pending() == before {
					break
				}
			}
		}
	}
}
