// Package lockregistry serializes transfers per sender account. A lock expires on its own after the
// TTL so a crashed transfer cannot leave an account locked; a live holder keeps it with Extend.
package lockregistry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Lease identifies one successful acquisition. Extend and Release only act while the lock still
// holds the lease's token.
type Lease struct {
	AccountID int64
	Token     string
}

type Locker interface {
	TryAcquire(ctx context.Context, accountID int64) (Lease, bool, error)
	// Extend pushes the expiry one TTL forward. It reports false when the lease was lost.
	Extend(ctx context.Context, lease Lease) (bool, error)
	Release(ctx context.Context, lease Lease) error
	TTL() time.Duration
}

type lockEntry struct {
	token string
	until time.Time
}

type Registry struct {
	mu    sync.Mutex
	locks map[int64]lockEntry
	ttl   time.Duration
	now   func() time.Time
}

var _ Locker = (*Registry)(nil)

func New(ttl time.Duration) *Registry {
	return &Registry{
		locks: make(map[int64]lockEntry),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (r *Registry) TTL() time.Duration { return r.ttl }

func (r *Registry) TryAcquire(_ context.Context, accountID int64) (Lease, bool, error) {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.locks[accountID]; ok && now.Before(e.until) {
		return Lease{}, false, nil
	}
	lease := Lease{AccountID: accountID, Token: uuid.NewString()}
	r.locks[accountID] = lockEntry{token: lease.Token, until: now.Add(r.ttl)}
	return lease, true, nil
}

func (r *Registry) Extend(_ context.Context, lease Lease) (bool, error) {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.locks[lease.AccountID]
	if !ok || e.token != lease.Token || !now.Before(e.until) {
		return false, nil
	}
	e.until = now.Add(r.ttl)
	r.locks[lease.AccountID] = e
	return true, nil
}

func (r *Registry) Release(_ context.Context, lease Lease) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.locks[lease.AccountID]; ok && e.token == lease.Token {
		delete(r.locks, lease.AccountID)
	}
	return nil
}

func (r *Registry) LockedUntil(accountID int64) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.locks[accountID]
	if !ok || !r.now().Before(e.until) {
		return time.Time{}, false
	}
	return e.until, true
}

// Sweep drops expired entries and returns how many were removed.
func (r *Registry) Sweep() int {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, e := range r.locks {
		if !now.Before(e.until) {
			delete(r.locks, id)
			removed++
		}
	}
	return removed
}

// RunSweeper sweeps on every tick until ctx is done.
func (r *Registry) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}
