package postgres

import (
	"context"
	"errors"
	"fmt"

	"tipbridge/internal/custom_err"
	"tipbridge/internal/models"
	"tipbridge/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AliasRepository struct {
	db *pgxpool.Pool
}

var _ repository.Aliases = (*AliasRepository)(nil)

func NewAliasRepository(db *pgxpool.Pool) *AliasRepository {
	return &AliasRepository{db: db}
}

func (r *AliasRepository) Create(ctx context.Context, a *models.Alias) error {
	const op = "repository.CreateAlias"
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	err := r.db.QueryRow(ctx, repository.InsertAliasQuery, a.ID, a.Title, a.Address, string(a.Network), a.OwnerID).
		Scan(&a.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s: %q: %w", op, a.Title, custom_err.ErrDuplicate)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r *AliasRepository) GetByTitle(ctx context.Context, title string) (*models.Alias, error) {
	const op = "repository.GetAliasByTitle"
	var (
		a       models.Alias
		network string
	)
	err := r.db.QueryRow(ctx, repository.GetAliasByTitleQuery, title).
		Scan(&a.ID, &a.Title, &a.Address, &network, &a.OwnerID, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, custom_err.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	a.Network = models.Network(network)
	return &a, nil
}
