package postgres

import (
	"context"
	"fmt"

	"tipbridge/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var _ repository.BalanceBulk = (*WalletRepository)(nil)

// BulkUpdateCachedBalances copies the batch into a temp table and applies it with one UPDATE.
// Wallets that no longer exist are skipped.
func (r *WalletRepository) BulkUpdateCachedBalances(ctx context.Context, balances map[uuid.UUID]repository.CachedBalance) error {
	const op = "repository.BulkUpdateCachedBalances"
	if len(balances) == 0 {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", op, err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
        CREATE TEMP TABLE wallet_balances_tmp (
            id UUID PRIMARY KEY,
            cached_balance BIGINT NOT NULL,
            pending_inbound_count INTEGER NOT NULL
        ) ON COMMIT DROP
    `)
	if err != nil {
		return fmt.Errorf("%s: temp table: %w", op, err)
	}

	rows := make([][]any, 0, len(balances))
	for id, b := range balances {
		rows = append(rows, []any{id, b.Balance.Units(), int32(b.Pending)})
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"wallet_balances_tmp"},
		[]string{"id", "cached_balance", "pending_inbound_count"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("%s: copy: %w", op, err)
	}

	_, err = tx.Exec(ctx, `
        UPDATE wallets w
        SET cached_balance = u.cached_balance,
            pending_inbound_count = u.pending_inbound_count,
            updated_at = NOW()
        FROM wallet_balances_tmp u
        WHERE w.id = u.id
    `)
	if err != nil {
		return fmt.Errorf("%s: update: %w", op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	return nil
}
