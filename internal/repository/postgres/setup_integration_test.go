package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

// setupRepoTest connects to TEST_DATABASE_URL (or a local default) and empties every table.
// The schema is expected to be migrated already.
func setupRepoTest(t *testing.T) (*pgxpool.Pool, func()) {
	t.Helper()

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		"127.0.0.1", "5432", "user", "password", "tipbridge")
	if envDsn := os.Getenv("TEST_DATABASE_URL"); envDsn != "" {
		dsn = envDsn
	}

	var (
		pool *pgxpool.Pool
		err  error
	)
	for i := 0; i < 5; i++ {
		pool, err = pgxpool.New(context.Background(), dsn)
		if err == nil {
			if err = pool.Ping(context.Background()); err == nil {
				break
			}
		}
		t.Logf("Attempt %d failed to connect to database: %v. Retrying...", i+1, err)
		time.Sleep(time.Second)
	}
	require.NoError(t, err, "Failed to connect to database after multiple retries")

	_, err = pool.Exec(context.Background(), "TRUNCATE TABLE aliases, transactions, wallets, users CASCADE")
	require.NoError(t, err)

	return pool, pool.Close
}
