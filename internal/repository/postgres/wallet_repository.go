package postgres

import (
	"context"
	"errors"
	"fmt"

	"tipbridge/internal/custom_err"
	"tipbridge/internal/models"
	"tipbridge/internal/money"
	"tipbridge/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

type WalletRepository struct {
	db *pgxpool.Pool
}

var _ repository.Wallets = (*WalletRepository)(nil)

func NewWalletRepository(db *pgxpool.Pool) *WalletRepository {
	return &WalletRepository{db: db}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func scanWallet(row pgx.Row) (*models.Wallet, error) {
	var (
		w        models.Wallet
		network  string
		balance  int64
		decimals int16
	)
	err := row.Scan(&w.ID, &network, &w.Address, &w.OwnerID, &w.Secret, &balance, &decimals,
		&w.PendingInboundCount, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, custom_err.ErrNotFound
		}
		return nil, err
	}
	w.Network = models.Network(network)
	w.CachedBalance = money.New(balance, int32(decimals))
	return &w, nil
}

func (r *WalletRepository) Register(ctx context.Context, account models.Account, w *models.Wallet) error {
	const op = "repository.Register"

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", op, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, repository.UpsertAccountQuery, account.ID, account.Username); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s: username %q: %w", op, account.Username, custom_err.ErrDuplicate)
		}
		return fmt.Errorf("%s: account: %w", op, err)
	}

	err = tx.QueryRow(ctx, repository.InsertWalletQuery,
		w.ID, string(w.Network), w.Address, w.OwnerID, w.Secret,
		w.CachedBalance.Units(), w.CachedBalance.Decimals(),
	).Scan(&w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s: %w", op, custom_err.ErrDuplicate)
		}
		return fmt.Errorf("%s: wallet: %w", op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	return nil
}

func (r *WalletRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Wallet, error) {
	const op = "repository.GetByID"
	w, err := scanWallet(r.db.QueryRow(ctx, repository.GetWalletByIDQuery, id))
	if err != nil {
		if errors.Is(err, custom_err.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return w, nil
}

func (r *WalletRepository) GetByOwner(ctx context.Context, ownerID int64, network models.Network) (*models.Wallet, error) {
	const op = "repository.GetByOwner"
	w, err := scanWallet(r.db.QueryRow(ctx, repository.GetWalletByOwnerQuery, ownerID, string(network)))
	if err != nil {
		if errors.Is(err, custom_err.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return w, nil
}

func (r *WalletRepository) GetByUsername(ctx context.Context, username string, network models.Network) (*models.Wallet, error) {
	const op = "repository.GetByUsername"
	w, err := scanWallet(r.db.QueryRow(ctx, repository.GetWalletByUsernameQuery, username, string(network)))
	if err != nil {
		if errors.Is(err, custom_err.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return w, nil
}

func (r *WalletRepository) UpdateCachedBalance(ctx context.Context, id uuid.UUID, balance money.Money, pending int) error {
	const op = "repository.UpdateCachedBalance"
	cmdTag, err := r.db.Exec(ctx, repository.UpdateCachedBalanceQuery, id, balance.Units(), pending)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return custom_err.ErrNotFound
	}
	return nil
}
