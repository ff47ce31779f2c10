package models

import (
	"encoding/json"
	"testing"
	"time"

	"tipbridge/internal/money"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransaction_AmountSurvivesSerialization(t *testing.T) {
	sender := uuid.New()
	ref := "b4c1"
	tx := Transaction{
		ID:             uuid.New(),
		Network:        NetworkLedger,
		Type:           TipTransaction,
		SenderWalletID: &sender,
		Amount:         money.New(1234567890123, 8),
		Status:         StatusSuccess,
		ExternalTxRef:  &ref,
		CreatedAt:      time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(tx)
	require.NoError(t, err)

	var decoded Transaction
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, tx.Amount, decoded.Amount)
	assert.Equal(t, "12345.67890123", decoded.Amount.String())
	assert.Equal(t, tx.ID, decoded.ID)
	assert.Equal(t, *tx.SenderWalletID, *decoded.SenderWalletID)
}

func TestTransactionType(t *testing.T) {
	assert.True(t, TipTransaction.Spends())
	assert.True(t, WithdrawTransaction.Spends())
	assert.False(t, FeeTransaction.Spends())
	assert.False(t, DepositTransaction.Spends())
	assert.False(t, TransactionType("burn").IsValid())
}

func TestParseNetwork(t *testing.T) {
	n, ok := ParseNetwork("Vite")
	assert.True(t, ok)
	assert.Equal(t, NetworkLedger, n)

	n, ok = ParseNetwork("epic")
	assert.True(t, ok)
	assert.Equal(t, NetworkCoin, n)

	_, ok = ParseNetwork("doge")
	assert.False(t, ok)
}
