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
	"github.com/jackc/pgx/v5/pgxpool"
)

type TransactionRepository struct {
	db *pgxpool.Pool
}

var _ repository.Transactions = (*TransactionRepository)(nil)

func NewTransactionRepository(db *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) CreatePending(ctx context.Context, tx *models.Transaction) error {
	const op = "repository.CreatePending"
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	err := r.db.QueryRow(ctx, repository.InsertTransactionQuery,
		tx.ID, string(tx.Network), string(tx.Type), tx.SenderWalletID, tx.ReceiverWalletID, tx.ExternalAddress,
		tx.Amount.Units(), tx.Amount.Decimals(),
	).Scan(&tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s: %w", op, custom_err.ErrDuplicate)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	tx.Status = models.StatusPending
	return nil
}

func (r *TransactionRepository) Finalize(ctx context.Context, id uuid.UUID, status models.TransactionStatus, externalRef, errorDetail *string) error {
	const op = "repository.Finalize"
	if !status.IsTerminal() {
		return fmt.Errorf("%s: status %q is not terminal", op, status)
	}
	cmdTag, err := r.db.Exec(ctx, repository.FinalizeTransactionQuery, id, string(status), externalRef, errorDetail)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %s: %w", op, id, custom_err.ErrConflict)
	}
	return nil
}

func scanTransaction(row pgx.Row) (*models.Transaction, error) {
	var (
		t        models.Transaction
		network  string
		txType   string
		status   string
		amount   int64
		decimals int16
	)
	err := row.Scan(&t.ID, &network, &txType, &t.SenderWalletID, &t.ReceiverWalletID, &t.ExternalAddress,
		&amount, &decimals, &status, &t.ExternalTxRef, &t.ErrorDetail, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Network = models.Network(network)
	t.Type = models.TransactionType(txType)
	t.Status = models.TransactionStatus(status)
	t.Amount = money.New(amount, int32(decimals))
	return &t, nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	const op = "repository.GetTransactionByID"
	t, err := scanTransaction(r.db.QueryRow(ctx, repository.GetTransactionByIDQuery, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, custom_err.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return t, nil
}

func (r *TransactionRepository) ListVisible(ctx context.Context, walletID uuid.UUID, limit int) ([]models.Transaction, error) {
	const op = "repository.ListVisible"
	rows, err := r.db.Query(ctx, repository.ListVisibleTransactionsQuery, walletID, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}
