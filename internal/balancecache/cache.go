// Package balancecache remembers what each custodial wallet can spend and pulls pending inbound
// transfers into the spendable balance. Reconciliation is single-flight per wallet.
package balancecache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tipbridge/internal/custom_err"
	"tipbridge/internal/engine"
	"tipbridge/internal/metrics"
	"tipbridge/internal/models"
	"tipbridge/internal/money"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

type Source interface {
	Asset() engine.Asset
	Balance(ctx context.Context, creds engine.Credentials) (engine.Snapshot, error)
	ReceivePending(ctx context.Context, creds engine.Credentials) error
}

type CredentialsProvider interface {
	Credentials(w models.Wallet) (engine.Credentials, error)
}

// BalanceWriter mirrors refreshed balances into the wallet rows.
type BalanceWriter interface {
	UpdateCachedBalance(ctx context.Context, id uuid.UUID, balance money.Money, pending int) error
}

type PriceSource interface {
	Last() (decimal.Decimal, bool)
	Currency() string
}

type Result struct {
	WalletID            uuid.UUID   `json:"walletId"`
	Spendable           money.Money `json:"spendable"`
	PendingCount        int         `json:"pendingInboundCount"`
	NeedsReconciliation bool        `json:"needsReconciliation"`
	UpdatedAt           time.Time   `json:"updatedAt"`
}

type View struct {
	Result
	Display    string `json:"display"`
	Fiat       string `json:"fiat"`
	IsUpdating bool   `json:"isUpdating"`
}

type entry struct {
	spendable money.Money
	pending   int
	updatedAt time.Time
	updating  bool
}

type Registry struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*entry

	sources map[models.Network]Source
	creds   CredentialsProvider
	writer  BalanceWriter
	price   PriceSource
	group   singleflight.Group
	log     *slog.Logger
	now     func() time.Time
}

// New accepts a nil writer or price source; both are optional.
func New(sources map[models.Network]Source, creds CredentialsProvider, writer BalanceWriter, price PriceSource, log *slog.Logger) *Registry {
	return &Registry{
		entries: make(map[uuid.UUID]*entry),
		sources: sources,
		creds:   creds,
		writer:  writer,
		price:   price,
		log:     log.With(slog.String("component", "balancecache")),
		now:     time.Now,
	}
}

func (r *Registry) source(w models.Wallet) (Source, engine.Credentials, error) {
	src, ok := r.sources[w.Network]
	if !ok {
		return nil, engine.Credentials{}, custom_err.Invalid("unsupported network %q", w.Network)
	}
	creds, err := r.creds.Credentials(w)
	if err != nil {
		return nil, engine.Credentials{}, err
	}
	return src, creds, nil
}

func (r *Registry) entryFor(id uuid.UUID) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		e = &entry{}
		r.entries[id] = e
	}
	return e
}

// Refresh reads the engine balance. Pending inbound transfers tag the result rather than fail it.
func (r *Registry) Refresh(ctx context.Context, w models.Wallet) (Result, error) {
	const op = "balancecache.Refresh"
	src, creds, err := r.source(w)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}

	snap, err := src.Balance(ctx, creds)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}

	now := r.now()
	e := r.entryFor(w.ID)
	r.mu.Lock()
	e.spendable = snap.Spendable
	e.pending = snap.PendingCount
	e.updatedAt = now
	r.mu.Unlock()

	if r.writer != nil {
		if err := r.writer.UpdateCachedBalance(ctx, w.ID, snap.Spendable, snap.PendingCount); err != nil {
			r.log.Warn("failed to persist cached balance", slog.String("op", op), slog.String("wallet", w.ID.String()), slog.String("error", err.Error()))
		}
	}

	return Result{
		WalletID:            w.ID,
		Spendable:           snap.Spendable,
		PendingCount:        snap.PendingCount,
		NeedsReconciliation: snap.PendingCount > 0,
		UpdatedAt:           now,
	}, nil
}

// Reconcile receives pending inbound transfers and refreshes. Concurrent callers for the same wallet
// share one engine round trip; a caller that gives up waiting does not cancel it for the others.
func (r *Registry) Reconcile(ctx context.Context, w models.Wallet) (Result, error) {
	const op = "balancecache.Reconcile"

	ch := r.group.DoChan(w.ID.String(), func() (any, error) {
		return r.reconcile(context.WithoutCancel(ctx), w)
	})

	select {
	case <-ctx.Done():
		return Result{}, fmt.Errorf("%s: %w", op, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return Result{}, fmt.Errorf("%s: %w", op, res.Err)
		}
		return res.Val.(Result), nil
	}
}

func (r *Registry) reconcile(ctx context.Context, w models.Wallet) (Result, error) {
	e := r.entryFor(w.ID)
	r.mu.Lock()
	e.updating = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		e.updating = false
		r.mu.Unlock()
	}()

	src, creds, err := r.source(w)
	if err != nil {
		metrics.ReconciliationsTotal.WithLabelValues("failed").Inc()
		return Result{}, err
	}
	if err := src.ReceivePending(ctx, creds); err != nil {
		metrics.ReconciliationsTotal.WithLabelValues("failed").Inc()
		return Result{}, err
	}
	res, err := r.Refresh(ctx, w)
	if err != nil {
		metrics.ReconciliationsTotal.WithLabelValues("failed").Inc()
		return Result{}, err
	}
	metrics.ReconciliationsTotal.WithLabelValues("ok").Inc()
	return res, nil
}

// Spendable refreshes and, when inbound transfers are pending, reconciles first so the caller sees
// every settled unit.
func (r *Registry) Spendable(ctx context.Context, w models.Wallet) (Result, error) {
	res, err := r.Refresh(ctx, w)
	if err != nil {
		return Result{}, err
	}
	if !res.NeedsReconciliation {
		return res, nil
	}

	reconciled, err := r.Reconcile(ctx, w)
	if err != nil {
		// the confirmed balance from the first read is still a lower bound
		r.log.Warn("reconcile before spend failed", slog.String("wallet", w.ID.String()), slog.String("error", err.Error()))
		return res, nil
	}
	return reconciled, nil
}

func (r *Registry) Cached(id uuid.UUID) (Result, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok || e.updatedAt.IsZero() {
		return Result{}, false
	}
	return Result{
		WalletID:            id,
		Spendable:           e.spendable,
		PendingCount:        e.pending,
		NeedsReconciliation: e.pending > 0,
		UpdatedAt:           e.updatedAt,
	}, true
}

func (r *Registry) IsUpdating(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	return ok && e.updating
}

// Invalidate forgets the last reading so the next View goes to the engine.
func (r *Registry) Invalidate(id uuid.UUID) {
	r.mu.Lock()
	if e, ok := r.entries[id]; ok && !e.updating {
		delete(r.entries, id)
	}
	r.mu.Unlock()
}

// View renders the balance for display, refreshing when asked or when nothing is cached.
func (r *Registry) View(ctx context.Context, w models.Wallet, refresh bool) (View, error) {
	res, ok := r.Cached(w.ID)
	if refresh || !ok {
		var err error
		res, err = r.Refresh(ctx, w)
		if err != nil {
			return View{}, err
		}
	}

	symbol := ""
	if src, ok := r.sources[w.Network]; ok {
		symbol = src.Asset().Symbol
	}

	return View{
		Result:     res,
		Display:    fmt.Sprintf("%s %s", res.Spendable.Display(), symbol),
		Fiat:       r.fiat(res.Spendable),
		IsUpdating: r.IsUpdating(w.ID),
	}, nil
}

func (r *Registry) fiat(amount money.Money) string {
	if r.price == nil {
		return ""
	}
	price, ok := r.price.Last()
	if !ok {
		return ""
	}
	return fmt.Sprintf("%s %s", amount.Decimal().Mul(price).StringFixed(2), r.price.Currency())
}
