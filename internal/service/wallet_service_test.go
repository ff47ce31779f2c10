package service

import (
	"context"
	"errors"
	"testing"

	"tipbridge/internal/balancecache"
	"tipbridge/internal/custom_err"
	"tipbridge/internal/engine"
	"tipbridge/internal/models"
	"tipbridge/internal/money"
	"tipbridge/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ repository.Wallets      = (*mockWalletRepo)(nil)
	_ repository.Transactions = (*mockTxRepo)(nil)
	_ repository.Aliases      = (*mockAliasRepo)(nil)
	_ BalanceViewer           = (*mockViewer)(nil)
)

type mockWalletRepo struct {
	RegisterFunc   func(ctx context.Context, account models.Account, w *models.Wallet) error
	GetByOwnerFunc func(ctx context.Context, ownerID int64, network models.Network) (*models.Wallet, error)
}

func (m *mockWalletRepo) Register(ctx context.Context, account models.Account, w *models.Wallet) error {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, account, w)
	}
	return nil
}

func (m *mockWalletRepo) GetByID(context.Context, uuid.UUID) (*models.Wallet, error) {
	return nil, errors.New("GetByID not implemented")
}

func (m *mockWalletRepo) GetByOwner(ctx context.Context, ownerID int64, network models.Network) (*models.Wallet, error) {
	if m.GetByOwnerFunc != nil {
		return m.GetByOwnerFunc(ctx, ownerID, network)
	}
	return nil, custom_err.ErrNotFound
}

func (m *mockWalletRepo) GetByUsername(context.Context, string, models.Network) (*models.Wallet, error) {
	return nil, custom_err.ErrNotFound
}

func (m *mockWalletRepo) UpdateCachedBalance(context.Context, uuid.UUID, money.Money, int) error {
	return nil
}

type mockTxRepo struct {
	ListVisibleFunc func(ctx context.Context, walletID uuid.UUID, limit int) ([]models.Transaction, error)
}

func (m *mockTxRepo) CreatePending(context.Context, *models.Transaction) error { return nil }

func (m *mockTxRepo) Finalize(context.Context, uuid.UUID, models.TransactionStatus, *string, *string) error {
	return nil
}

func (m *mockTxRepo) GetByID(context.Context, uuid.UUID) (*models.Transaction, error) {
	return nil, custom_err.ErrNotFound
}

func (m *mockTxRepo) ListVisible(ctx context.Context, walletID uuid.UUID, limit int) ([]models.Transaction, error) {
	if m.ListVisibleFunc != nil {
		return m.ListVisibleFunc(ctx, walletID, limit)
	}
	return nil, nil
}

type mockAliasRepo struct {
	created   []*models.Alias
	CreateErr error
}

func (m *mockAliasRepo) Create(_ context.Context, a *models.Alias) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.created = append(m.created, a)
	return nil
}

func (m *mockAliasRepo) GetByTitle(_ context.Context, title string) (*models.Alias, error) {
	for _, a := range m.created {
		if a.Title == title {
			return a, nil
		}
	}
	return nil, custom_err.ErrNotFound
}

type mockViewer struct {
	reconciled int
}

func (m *mockViewer) View(_ context.Context, w models.Wallet, _ bool) (balancecache.View, error) {
	return balancecache.View{Result: balancecache.Result{WalletID: w.ID, Spendable: money.New(1, 8)}, Display: "0.00000001 EPIC"}, nil
}

func (m *mockViewer) Reconcile(_ context.Context, w models.Wallet) (balancecache.Result, error) {
	m.reconciled++
	return balancecache.Result{WalletID: w.ID}, nil
}

type reverseSealer struct{}

func (reverseSealer) Seal(plain []byte) ([]byte, error) {
	out := make([]byte, len(plain))
	for i, b := range plain {
		out[len(plain)-1-i] = b
	}
	return out, nil
}

func newTestWalletService(wallets repository.Wallets, txs repository.Transactions, aliases repository.Aliases, eng engine.Engine) *WalletService {
	return NewWalletService(wallets, txs, aliases, map[models.Network]engine.Engine{models.NetworkLedger: eng},
		reverseSealer{}, &mockViewer{}, discardLogger())
}

func TestWalletService_Register(t *testing.T) {
	t.Run("Creates engine wallet and seals its secret", func(t *testing.T) {
		var stored *models.Wallet
		repo := &mockWalletRepo{RegisterFunc: func(_ context.Context, account models.Account, w *models.Wallet) error {
			assert.Equal(t, "alice", account.Username)
			stored = w
			return nil
		}}
		eng := &mockEngine{CreateFunc: func(context.Context, string) (engine.Created, error) {
			return engine.Created{Address: "vite_new", Secret: "abc"}, nil
		}}
		s := newTestWalletService(repo, &mockTxRepo{}, &mockAliasRepo{}, eng)

		w, created, err := s.Register(context.Background(), models.Account{ID: 10, Username: "alice"}, models.NetworkLedger)

		require.NoError(t, err)
		assert.True(t, created)
		assert.Same(t, stored, w)
		assert.Equal(t, "vite_new", w.Address)
		assert.Equal(t, []byte("cba"), w.Secret, "secret is stored sealed")
		assert.Equal(t, int32(8), w.CachedBalance.Decimals())
	})

	t.Run("Existing wallet is returned", func(t *testing.T) {
		existing := &models.Wallet{ID: uuid.New(), OwnerID: 10, Network: models.NetworkLedger}
		repo := &mockWalletRepo{GetByOwnerFunc: func(context.Context, int64, models.Network) (*models.Wallet, error) {
			return existing, nil
		}}
		eng := &mockEngine{CreateFunc: func(context.Context, string) (engine.Created, error) {
			t.Fatal("engine must not be asked for a second wallet")
			return engine.Created{}, nil
		}}
		s := newTestWalletService(repo, &mockTxRepo{}, &mockAliasRepo{}, eng)

		w, created, err := s.Register(context.Background(), models.Account{ID: 10}, models.NetworkLedger)

		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, existing.ID, w.ID)
	})

	t.Run("Engine failure", func(t *testing.T) {
		eng := &mockEngine{CreateFunc: func(context.Context, string) (engine.Created, error) {
			return engine.Created{}, custom_err.ErrConnection
		}}
		s := newTestWalletService(&mockWalletRepo{}, &mockTxRepo{}, &mockAliasRepo{}, eng)

		_, _, err := s.Register(context.Background(), models.Account{ID: 10}, models.NetworkLedger)
		assert.ErrorIs(t, err, custom_err.ErrConnection)
	})

	t.Run("Network not enabled", func(t *testing.T) {
		s := newTestWalletService(&mockWalletRepo{}, &mockTxRepo{}, &mockAliasRepo{}, &mockEngine{})

		_, _, err := s.Register(context.Background(), models.Account{ID: 10}, models.NetworkCoin)
		assert.ErrorIs(t, err, custom_err.ErrValidation)
	})
}

func TestWalletService_History(t *testing.T) {
	walletID := uuid.New()
	repo := &mockWalletRepo{GetByOwnerFunc: func(context.Context, int64, models.Network) (*models.Wallet, error) {
		return &models.Wallet{ID: walletID}, nil
	}}

	tests := []struct {
		name      string
		limit     int
		wantLimit int
	}{
		{name: "Default", limit: 0, wantLimit: 20},
		{name: "Explicit", limit: 5, wantLimit: 5},
		{name: "Capped", limit: 1000, wantLimit: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txs := &mockTxRepo{ListVisibleFunc: func(_ context.Context, id uuid.UUID, limit int) ([]models.Transaction, error) {
				assert.Equal(t, walletID, id)
				assert.Equal(t, tt.wantLimit, limit)
				return []models.Transaction{{ID: uuid.New()}}, nil
			}}
			s := newTestWalletService(repo, txs, &mockAliasRepo{}, &mockEngine{})

			got, err := s.History(context.Background(), 1, models.NetworkLedger, tt.limit)
			require.NoError(t, err)
			assert.Len(t, got, 1)
		})
	}
}

func TestWalletService_Reconcile(t *testing.T) {
	repo := &mockWalletRepo{GetByOwnerFunc: func(context.Context, int64, models.Network) (*models.Wallet, error) {
		return &models.Wallet{ID: uuid.New()}, nil
	}}
	viewer := &mockViewer{}
	s := NewWalletService(repo, &mockTxRepo{}, &mockAliasRepo{}, nil, reverseSealer{}, viewer, discardLogger())

	view, err := s.Reconcile(context.Background(), 1, models.NetworkLedger)

	require.NoError(t, err)
	assert.Equal(t, 1, viewer.reconciled)
	assert.Equal(t, "0.00000001 EPIC", view.Display)

	_, err = NewWalletService(&mockWalletRepo{}, &mockTxRepo{}, &mockAliasRepo{}, nil, reverseSealer{}, viewer, discardLogger()).
		Balance(context.Background(), 1, models.NetworkLedger, false)
	assert.ErrorIs(t, err, custom_err.ErrNotFound)
}

func TestWalletService_Aliases(t *testing.T) {
	aliases := &mockAliasRepo{}
	s := newTestWalletService(&mockWalletRepo{}, &mockTxRepo{}, aliases, &mockEngine{})
	ctx := context.Background()

	require.NoError(t, s.CreateAlias(ctx, &models.Alias{Title: " faucet ", Address: "vite_faucet", Network: models.NetworkLedger}))

	got, err := s.ResolveAlias(ctx, "#faucet")
	require.NoError(t, err)
	assert.Equal(t, "vite_faucet", got.Address)

	for _, bad := range []*models.Alias{
		{Title: "", Address: "vite_x", Network: models.NetworkLedger},
		{Title: "#tag", Address: "vite_x", Network: models.NetworkLedger},
		{Title: "two words", Address: "vite_x", Network: models.NetworkLedger},
		{Title: "empty", Address: "", Network: models.NetworkLedger},
		{Title: "coin", Address: "x", Network: models.NetworkCoin},
	} {
		assert.ErrorIs(t, s.CreateAlias(ctx, bad), custom_err.ErrValidation, "alias %q", bad.Title)
	}

	_, err = s.ResolveAlias(ctx, "missing")
	assert.ErrorIs(t, err, custom_err.ErrNotFound)
}
