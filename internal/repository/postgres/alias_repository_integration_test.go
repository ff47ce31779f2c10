package postgres

import (
	"context"
	"testing"

	"tipbridge/internal/custom_err"
	"tipbridge/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAliasRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}

	pool, cleanup := setupRepoTest(t)
	defer cleanup()

	repo := NewAliasRepository(pool)
	ctx := context.Background()

	a := &models.Alias{Title: "faucet", Address: "vite_faucet", Network: models.NetworkLedger}
	require.NoError(t, repo.Create(ctx, a))

	got, err := repo.GetByTitle(ctx, "FAUCET")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, int64(0), got.OwnerID)
	assert.Equal(t, models.NetworkLedger, got.Network)

	err = repo.Create(ctx, &models.Alias{Title: "faucet", Address: "x", Network: models.NetworkLedger})
	assert.ErrorIs(t, err, custom_err.ErrDuplicate)

	_, err = repo.GetByTitle(ctx, "missing")
	assert.ErrorIs(t, err, custom_err.ErrNotFound)
}
