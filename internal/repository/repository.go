package repository

import (
	"context"

	"tipbridge/internal/models"
	"tipbridge/internal/money"

	"github.com/google/uuid"
)

type Wallets interface {
	// Register stores the owner account and its new wallet in one transaction.
	Register(ctx context.Context, account models.Account, wallet *models.Wallet) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Wallet, error)
	GetByOwner(ctx context.Context, ownerID int64, network models.Network) (*models.Wallet, error)
	GetByUsername(ctx context.Context, username string, network models.Network) (*models.Wallet, error)
	UpdateCachedBalance(ctx context.Context, id uuid.UUID, balance money.Money, pending int) error
}

// CachedBalance is one row of a bulk balance flush.
type CachedBalance struct {
	Balance money.Money
	Pending int
}

type BalanceBulk interface {
	BulkUpdateCachedBalances(ctx context.Context, balances map[uuid.UUID]CachedBalance) error
}

type Transactions interface {
	CreatePending(ctx context.Context, tx *models.Transaction) error
	// Finalize moves a pending row to a terminal status exactly once.
	Finalize(ctx context.Context, id uuid.UUID, status models.TransactionStatus, externalRef, errorDetail *string) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	// ListVisible returns success and pending rows touching the wallet, newest first.
	ListVisible(ctx context.Context, walletID uuid.UUID, limit int) ([]models.Transaction, error)
}

type Aliases interface {
	Create(ctx context.Context, alias *models.Alias) error
	GetByTitle(ctx context.Context, title string) (*models.Alias, error)
}
