package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"tipbridge/internal/balancecache"
	"tipbridge/internal/custom_err"
	"tipbridge/internal/engine"
	"tipbridge/internal/models"
	"tipbridge/internal/money"

	"github.com/google/uuid"
)

var (
	_ WalletFinder        = (*memWallets)(nil)
	_ TransactionRecorder = (*memTransactions)(nil)
	_ AliasResolver       = (*memAliases)(nil)
	_ BalanceChecker      = (*mockBalances)(nil)
	_ engine.Engine       = (*mockEngine)(nil)
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memWallets struct {
	byOwner map[int64]*models.Wallet
	names   map[string]int64
}

func newMemWallets(wallets ...*models.Wallet) *memWallets {
	m := &memWallets{byOwner: map[int64]*models.Wallet{}, names: map[string]int64{}}
	for _, w := range wallets {
		m.byOwner[w.OwnerID] = w
	}
	return m
}

func (m *memWallets) GetByOwner(_ context.Context, ownerID int64, network models.Network) (*models.Wallet, error) {
	w, ok := m.byOwner[ownerID]
	if !ok || w.Network != network {
		return nil, custom_err.ErrNotFound
	}
	cp := *w
	return &cp, nil
}

func (m *memWallets) GetByUsername(ctx context.Context, username string, network models.Network) (*models.Wallet, error) {
	id, ok := m.names[strings.ToLower(username)]
	if !ok {
		return nil, custom_err.ErrNotFound
	}
	return m.GetByOwner(ctx, id, network)
}

type memTransactions struct {
	mu   sync.Mutex
	rows []*models.Transaction

	CreateErr error
}

func (m *memTransactions) CreatePending(_ context.Context, tx *models.Transaction) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	tx.ID = uuid.New()
	tx.Status = models.StatusPending
	cp := *tx
	m.rows = append(m.rows, &cp)
	return nil
}

func (m *memTransactions) Finalize(_ context.Context, id uuid.UUID, status models.TransactionStatus, ref, detail *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.ID != id {
			continue
		}
		if row.Status != models.StatusPending {
			return custom_err.ErrConflict
		}
		row.Status = status
		row.ExternalTxRef = ref
		row.ErrorDetail = detail
		return nil
	}
	return custom_err.ErrNotFound
}

func (m *memTransactions) all() []models.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Transaction, 0, len(m.rows))
	for _, r := range m.rows {
		out = append(out, *r)
	}
	return out
}

type memAliases struct {
	aliases map[string]*models.Alias
}

func (m *memAliases) GetByTitle(_ context.Context, title string) (*models.Alias, error) {
	a, ok := m.aliases[strings.ToLower(title)]
	if !ok {
		return nil, custom_err.ErrNotFound
	}
	return a, nil
}

type mockBalances struct {
	mu          sync.Mutex
	reconciled  []uuid.UUID
	invalidated []uuid.UUID

	SpendableFunc func(ctx context.Context, w models.Wallet) (balancecache.Result, error)
}

func (m *mockBalances) Spendable(ctx context.Context, w models.Wallet) (balancecache.Result, error) {
	return m.SpendableFunc(ctx, w)
}

func (m *mockBalances) Reconcile(_ context.Context, w models.Wallet) (balancecache.Result, error) {
	m.mu.Lock()
	m.reconciled = append(m.reconciled, w.ID)
	m.mu.Unlock()
	return balancecache.Result{WalletID: w.ID}, nil
}

func (m *mockBalances) Invalidate(id uuid.UUID) {
	m.mu.Lock()
	m.invalidated = append(m.invalidated, id)
	m.mu.Unlock()
}

func fixedBalance(units int64) *mockBalances {
	return &mockBalances{SpendableFunc: func(_ context.Context, w models.Wallet) (balancecache.Result, error) {
		return balancecache.Result{WalletID: w.ID, Spendable: money.New(units, 8)}, nil
	}}
}

type sendCall struct {
	To     string
	Amount money.Money
}

type mockEngine struct {
	mu    sync.Mutex
	sends []sendCall

	SendFunc     func(ctx context.Context, creds engine.Credentials, to string, amount money.Money) (string, error)
	CreateFunc   func(ctx context.Context, name string) (engine.Created, error)
	ValidateFunc func(address string) error
}

func (m *mockEngine) Network() models.Network { return models.NetworkLedger }

func (m *mockEngine) Asset() engine.Asset {
	return engine.Asset{Symbol: "EPIC", Decimals: 8, TokenID: "tti_test"}
}

func (m *mockEngine) Create(ctx context.Context, name string) (engine.Created, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, name)
	}
	return engine.Created{Address: "vite_" + name, Secret: "seed words"}, nil
}

func (m *mockEngine) Balance(context.Context, engine.Credentials) (engine.Snapshot, error) {
	return engine.Snapshot{}, nil
}

func (m *mockEngine) ReceivePending(context.Context, engine.Credentials) error { return nil }

func (m *mockEngine) Send(ctx context.Context, creds engine.Credentials, to string, amount money.Money) (string, error) {
	m.mu.Lock()
	m.sends = append(m.sends, sendCall{To: to, Amount: amount})
	n := len(m.sends)
	m.mu.Unlock()
	if m.SendFunc != nil {
		return m.SendFunc(ctx, creds, to, amount)
	}
	return fmt.Sprintf("hash-%d", n), nil
}

func (m *mockEngine) ValidateAddress(address string) error {
	if m.ValidateFunc != nil {
		return m.ValidateFunc(address)
	}
	if address == "" {
		return custom_err.Invalid("invalid address %q", address)
	}
	return nil
}

func (m *mockEngine) sendCalls() []sendCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sendCall(nil), m.sends...)
}

type plainCreds struct{}

func (plainCreds) Credentials(w models.Wallet) (engine.Credentials, error) {
	return engine.Credentials{Name: w.ID.String(), Address: w.Address, Secret: string(w.Secret)}, nil
}
