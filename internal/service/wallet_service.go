package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"tipbridge/internal/balancecache"
	"tipbridge/internal/custom_err"
	"tipbridge/internal/engine"
	"tipbridge/internal/models"
	"tipbridge/internal/money"
	"tipbridge/internal/repository"

	"github.com/google/uuid"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// WalletServicer is what the HTTP layer needs beyond transfers.
type WalletServicer interface {
	Register(ctx context.Context, account models.Account, network models.Network) (*models.Wallet, bool, error)
	Wallet(ctx context.Context, ownerID int64, network models.Network) (*models.Wallet, error)
	Balance(ctx context.Context, ownerID int64, network models.Network, refresh bool) (balancecache.View, error)
	Reconcile(ctx context.Context, ownerID int64, network models.Network) (balancecache.View, error)
	History(ctx context.Context, ownerID int64, network models.Network, limit int) ([]models.Transaction, error)
	CreateAlias(ctx context.Context, alias *models.Alias) error
	ResolveAlias(ctx context.Context, title string) (*models.Alias, error)
}

var _ WalletServicer = (*WalletService)(nil)

type Sealer interface {
	Seal(plain []byte) ([]byte, error)
}

type BalanceViewer interface {
	View(ctx context.Context, w models.Wallet, refresh bool) (balancecache.View, error)
	Reconcile(ctx context.Context, w models.Wallet) (balancecache.Result, error)
}

type WalletService struct {
	wallets  repository.Wallets
	txs      repository.Transactions
	aliases  repository.Aliases
	engines  map[models.Network]engine.Engine
	sealer   Sealer
	balances BalanceViewer
	log      *slog.Logger
}

func NewWalletService(
	wallets repository.Wallets,
	txs repository.Transactions,
	aliases repository.Aliases,
	engines map[models.Network]engine.Engine,
	sealer Sealer,
	balances BalanceViewer,
	log *slog.Logger,
) *WalletService {
	return &WalletService{
		wallets:  wallets,
		txs:      txs,
		aliases:  aliases,
		engines:  engines,
		sealer:   sealer,
		balances: balances,
		log:      log.With(slog.String("component", "wallets")),
	}
}

func (s *WalletService) engine(network models.Network) (engine.Engine, error) {
	eng, ok := s.engines[network]
	if !ok {
		return nil, custom_err.Invalid("network %s is not enabled", network)
	}
	return eng, nil
}

// Register creates the owner's wallet on the network unless one exists already.
// The bool reports whether a new wallet was created.
func (s *WalletService) Register(ctx context.Context, account models.Account, network models.Network) (*models.Wallet, bool, error) {
	const op = "service.Register"
	if account.ID <= 0 {
		return nil, false, custom_err.Invalid("account id must be positive")
	}
	eng, err := s.engine(network)
	if err != nil {
		return nil, false, err
	}

	existing, err := s.wallets.GetByOwner(ctx, account.ID, network)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, custom_err.ErrNotFound) {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	id := uuid.New()
	created, err := eng.Create(ctx, id.String())
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	sealed, err := s.sealer.Seal([]byte(created.Secret))
	if err != nil {
		return nil, false, fmt.Errorf("%s: seal: %w", op, err)
	}

	w := &models.Wallet{
		ID:            id,
		Network:       network,
		Address:       created.Address,
		OwnerID:       account.ID,
		Secret:        sealed,
		CachedBalance: money.Zero(eng.Asset().Decimals),
	}
	if err := s.wallets.Register(ctx, account, w); err != nil {
		if errors.Is(err, custom_err.ErrDuplicate) {
			// lost a registration race; the engine wallet we just made stays unused
			s.log.Warn("duplicate wallet registration", slog.String("op", op), slog.Int64("owner", account.ID))
			if existing, getErr := s.wallets.GetByOwner(ctx, account.ID, network); getErr == nil {
				return existing, false, nil
			}
		}
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("wallet registered", slog.String("op", op), slog.Int64("owner", account.ID),
		slog.String("network", string(network)), slog.String("address", w.Address))
	return w, true, nil
}

func (s *WalletService) Wallet(ctx context.Context, ownerID int64, network models.Network) (*models.Wallet, error) {
	const op = "service.Wallet"
	w, err := s.wallets.GetByOwner(ctx, ownerID, network)
	if err != nil {
		if errors.Is(err, custom_err.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return w, nil
}

func (s *WalletService) Balance(ctx context.Context, ownerID int64, network models.Network, refresh bool) (balancecache.View, error) {
	const op = "service.Balance"
	w, err := s.Wallet(ctx, ownerID, network)
	if err != nil {
		return balancecache.View{}, err
	}
	view, err := s.balances.View(ctx, *w, refresh)
	if err != nil {
		return balancecache.View{}, fmt.Errorf("%s: %w", op, err)
	}
	return view, nil
}

func (s *WalletService) Reconcile(ctx context.Context, ownerID int64, network models.Network) (balancecache.View, error) {
	const op = "service.Reconcile"
	w, err := s.Wallet(ctx, ownerID, network)
	if err != nil {
		return balancecache.View{}, err
	}
	if _, err := s.balances.Reconcile(ctx, *w); err != nil {
		return balancecache.View{}, fmt.Errorf("%s: %w", op, err)
	}
	view, err := s.balances.View(ctx, *w, false)
	if err != nil {
		return balancecache.View{}, fmt.Errorf("%s: %w", op, err)
	}
	return view, nil
}

// History lists successful and pending transactions involving the wallet, newest first.
func (s *WalletService) History(ctx context.Context, ownerID int64, network models.Network, limit int) ([]models.Transaction, error) {
	const op = "service.History"
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	limit = min(limit, maxHistoryLimit)

	w, err := s.Wallet(ctx, ownerID, network)
	if err != nil {
		return nil, err
	}
	txs, err := s.txs.ListVisible(ctx, w.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return txs, nil
}

func (s *WalletService) CreateAlias(ctx context.Context, alias *models.Alias) error {
	const op = "service.CreateAlias"
	alias.Title = strings.TrimSpace(alias.Title)
	if alias.Title == "" || strings.ContainsAny(alias.Title, "# \t\n") {
		return custom_err.Invalid("alias title %q is not allowed", alias.Title)
	}
	eng, err := s.engine(alias.Network)
	if err != nil {
		return err
	}
	if err := eng.ValidateAddress(alias.Address); err != nil {
		return err
	}
	if err := s.aliases.Create(ctx, alias); err != nil {
		if errors.Is(err, custom_err.ErrDuplicate) {
			return err
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *WalletService) ResolveAlias(ctx context.Context, title string) (*models.Alias, error) {
	const op = "service.ResolveAlias"
	a, err := s.aliases.GetByTitle(ctx, strings.TrimPrefix(title, aliasPrefix))
	if err != nil {
		if errors.Is(err, custom_err.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return a, nil
}
