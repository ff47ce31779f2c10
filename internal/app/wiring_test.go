package app

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"tipbridge/internal/config"
	"tipbridge/internal/gateway"
	"tipbridge/internal/models"
	"tipbridge/internal/money"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	engineCfg := config.EngineConfig{Transport: "http", BaseTimeout: 5 * time.Second, MaxAttempts: 5}
	return &config.Config{
		Ledger: config.LedgerConfig{
			EngineConfig: engineCfg,
			Enabled:      true,
			URL:          "http://127.0.0.1:3000",
			Symbol:       "EPIC",
			Decimals:     8,
			Fees:         config.FeeConfig{WithdrawFlat: "0.001", TipRate: "0.01", Address: "vite_fee"},
		},
		Coin: config.CoinConfig{
			EngineConfig: engineCfg,
			Enabled:      true,
			URL:          "http://127.0.0.1:3415",
			Symbol:       "EPIC",
			Decimals:     8,
			Fees:         config.CoinFeeConfig{WithdrawFlat: "0.001", TipRate: "0.01"},
		},
	}
}

func TestBuildEngines(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("both networks", func(t *testing.T) {
		engines, err := buildEngines(testConfig(), log)
		require.NoError(t, err)
		assert.Len(t, engines, 2)
		assert.Equal(t, models.NetworkLedger, engines[models.NetworkLedger].Network())
		assert.Equal(t, int32(8), engines[models.NetworkCoin].Asset().Decimals)
	})

	t.Run("disabled network is skipped", func(t *testing.T) {
		cfg := testConfig()
		cfg.Coin.Enabled = false
		engines, err := buildEngines(cfg, log)
		require.NoError(t, err)
		assert.NotContains(t, engines, models.NetworkCoin)
	})

	t.Run("exec transport needs binary", func(t *testing.T) {
		cfg := testConfig()
		cfg.Ledger.Transport = "exec"
		_, err := buildEngines(cfg, log)
		assert.ErrorContains(t, err, "binary")
	})

	t.Run("unknown transport", func(t *testing.T) {
		cfg := testConfig()
		cfg.Coin.Transport = "grpc"
		_, err := buildEngines(cfg, log)
		assert.ErrorContains(t, err, "unknown engine transport")
	})
}

func TestCallOptions(t *testing.T) {
	cfg := config.EngineConfig{BaseTimeout: 5 * time.Second, MaxAttempts: 3}
	assert.Equal(t, gateway.CallOptions{BaseTimeout: 5 * time.Second, MaxAttempts: 3}, callOptions(cfg, 0))
	assert.Equal(t, gateway.CallOptions{BaseTimeout: 15 * time.Second, MaxAttempts: 3}, callOptions(cfg, 15*time.Second))
}

func TestBuildFeePolicies(t *testing.T) {
	fees, err := buildFeePolicies(testConfig())
	require.NoError(t, err)

	amount, err := money.Parse("2", 8)
	require.NoError(t, err)

	ledger := fees[models.NetworkLedger]
	assert.Equal(t, "vite_fee", ledger.Address())
	assert.Equal(t, "0.00100000", ledger.Fee(models.WithdrawTransaction, amount).String())
	assert.Equal(t, "0.02000000", ledger.Fee(models.TipTransaction, amount).String())

	coin := fees[models.NetworkCoin]
	assert.Empty(t, coin.Address())
	assert.True(t, coin.Fee(models.WithdrawTransaction, amount).IsZero())
	assert.True(t, coin.Fee(models.TipTransaction, amount).IsZero())

	t.Run("bad amounts", func(t *testing.T) {
		cfg := testConfig()
		cfg.Ledger.Fees.WithdrawFlat = "0.000000001"
		_, err := buildFeePolicies(cfg)
		assert.Error(t, err)

		cfg = testConfig()
		cfg.Ledger.Fees.TipRate = "-0.1"
		_, err = buildFeePolicies(cfg)
		assert.Error(t, err)
	})
}
