package repository

const (
	UpsertAccountQuery = `
        INSERT INTO users (id, username)
        VALUES ($1, NULLIF($2, ''))
        ON CONFLICT (id) DO UPDATE
        SET username = COALESCE(EXCLUDED.username, users.username)
    `

	InsertWalletQuery = `
        INSERT INTO wallets (id, network, address, owner_id, secret, cached_balance, balance_decimals,
                             pending_inbound_count, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, 0, NOW(), NOW())
        RETURNING created_at, updated_at
    `

	walletColumns = `
        w.id, w.network, w.address, w.owner_id, w.secret, w.cached_balance, w.balance_decimals,
        w.pending_inbound_count, w.created_at, w.updated_at
    `

	GetWalletByIDQuery = `SELECT ` + walletColumns + ` FROM wallets w WHERE w.id = $1`

	GetWalletByOwnerQuery = `SELECT ` + walletColumns + ` FROM wallets w WHERE w.owner_id = $1 AND w.network = $2`

	GetWalletByUsernameQuery = `
        SELECT ` + walletColumns + `
        FROM wallets w
        JOIN users u ON u.id = w.owner_id
        WHERE lower(u.username) = lower($1) AND w.network = $2
    `

	UpdateCachedBalanceQuery = `
        UPDATE wallets
        SET cached_balance = $2,
            pending_inbound_count = $3,
            updated_at = NOW()
        WHERE id = $1
    `

	InsertTransactionQuery = `
        INSERT INTO transactions (id, network, type, sender_wallet_id, receiver_wallet_id, external_address,
                                  amount, amount_decimals, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'pending', NOW(), NOW())
        RETURNING created_at, updated_at
    `

	FinalizeTransactionQuery = `
        UPDATE transactions
        SET status = $2,
            external_tx_ref = $3,
            error_detail = $4,
            updated_at = NOW()
        WHERE id = $1
          AND status = 'pending'
    `

	transactionColumns = `
        id, network, type, sender_wallet_id, receiver_wallet_id, external_address, amount, amount_decimals,
        status, external_tx_ref, error_detail, created_at, updated_at
    `

	GetTransactionByIDQuery = `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	ListVisibleTransactionsQuery = `
        SELECT ` + transactionColumns + `
        FROM transactions
        WHERE (sender_wallet_id = $1 OR receiver_wallet_id = $1)
          AND status IN ('success', 'pending')
        ORDER BY created_at DESC
        LIMIT $2
    `

	InsertAliasQuery = `
        INSERT INTO aliases (id, title, address, network, owner_id, created_at)
        VALUES ($1, $2, $3, $4, NULLIF($5::BIGINT, 0), NOW())
        RETURNING created_at
    `

	GetAliasByTitleQuery = `
        SELECT id, title, address, network, COALESCE(owner_id, 0), created_at
        FROM aliases
        WHERE lower(title) = lower($1)
    `
)
