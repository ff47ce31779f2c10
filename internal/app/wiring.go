package app

import (
	"fmt"
	"log/slog"
	"time"

	"tipbridge/internal/config"
	"tipbridge/internal/engine"
	"tipbridge/internal/feepolicy"
	"tipbridge/internal/gateway"
	"tipbridge/internal/models"
	"tipbridge/internal/money"

	"github.com/shopspring/decimal"
)

func newTransport(cfg config.EngineConfig, url string) (gateway.Transport, error) {
	switch cfg.Transport {
	case "http", "":
		return gateway.NewHTTPTransport(url), nil
	case "exec":
		if cfg.Binary == "" {
			return nil, fmt.Errorf("exec transport needs a binary")
		}
		return gateway.NewExecTransport(cfg.Binary, cfg.Args, cfg.Dir), nil
	}
	return nil, fmt.Errorf("unknown engine transport %q", cfg.Transport)
}

func callOptions(cfg config.EngineConfig, base time.Duration) gateway.CallOptions {
	if base <= 0 {
		base = cfg.BaseTimeout
	}
	return gateway.CallOptions{BaseTimeout: base, MaxAttempts: cfg.MaxAttempts}
}

func buildEngines(cfg *config.Config, log *slog.Logger) (map[models.Network]engine.Engine, error) {
	engines := make(map[models.Network]engine.Engine, 2)

	if cfg.Ledger.Enabled {
		transport, err := newTransport(cfg.Ledger.EngineConfig, cfg.Ledger.URL)
		if err != nil {
			return nil, fmt.Errorf("ledger: %w", err)
		}
		gw := gateway.New(transport, log.With(slog.String("network", string(models.NetworkLedger))), map[gateway.Operation]gateway.CallOptions{
			gateway.LedgerCreate:         callOptions(cfg.Ledger.EngineConfig, 0),
			gateway.LedgerBalance:        callOptions(cfg.Ledger.EngineConfig, cfg.Ledger.BalanceTimeout),
			gateway.LedgerReceivePending: callOptions(cfg.Ledger.EngineConfig, cfg.Ledger.ReceiveTimeout),
			gateway.LedgerSend:           callOptions(cfg.Ledger.EngineConfig, cfg.Ledger.SendTimeout),
		})
		engines[models.NetworkLedger] = engine.NewLedger(gw, engine.Asset{
			Symbol:   cfg.Ledger.Symbol,
			Decimals: cfg.Ledger.Decimals,
			TokenID:  cfg.Ledger.TokenID,
		})
	}

	if cfg.Coin.Enabled {
		transport, err := newTransport(cfg.Coin.EngineConfig, cfg.Coin.URL)
		if err != nil {
			return nil, fmt.Errorf("coin: %w", err)
		}
		gw := gateway.New(transport, log.With(slog.String("network", string(models.NetworkCoin))), map[gateway.Operation]gateway.CallOptions{
			gateway.CoinCreateWallet: callOptions(cfg.Coin.EngineConfig, 0),
			gateway.CoinGetBalance:   callOptions(cfg.Coin.EngineConfig, 0),
			gateway.CoinCalculateFee: callOptions(cfg.Coin.EngineConfig, 0),
			gateway.CoinSendViaBox:   callOptions(cfg.Coin.EngineConfig, cfg.Coin.SendTimeout),
		})
		engines[models.NetworkCoin] = engine.NewCoin(gw, engine.Asset{
			Symbol:   cfg.Coin.Symbol,
			Decimals: cfg.Coin.Decimals,
		})
	}
	return engines, nil
}

func parseSchedule(flat, rate, address string, decimals int32) (feepolicy.Schedule, error) {
	if address == "" {
		return feepolicy.Schedule{WithdrawFlat: money.Zero(decimals)}, nil
	}
	withdraw, err := money.Parse(flat, decimals)
	if err != nil {
		return feepolicy.Schedule{}, fmt.Errorf("withdraw fee %q: %w", flat, err)
	}
	tipRate, err := decimal.NewFromString(rate)
	if err != nil {
		return feepolicy.Schedule{}, fmt.Errorf("tip fee rate %q: %w", rate, err)
	}
	if tipRate.IsNegative() {
		return feepolicy.Schedule{}, fmt.Errorf("tip fee rate %q is negative", rate)
	}
	return feepolicy.Schedule{WithdrawFlat: withdraw, TipRate: tipRate, Address: address}, nil
}

// buildFeePolicies returns a policy per enabled network. A network without a collector address charges nothing.
func buildFeePolicies(cfg *config.Config) (map[models.Network]feepolicy.Policy, error) {
	fees := make(map[models.Network]feepolicy.Policy, 2)
	if cfg.Ledger.Enabled {
		f := cfg.Ledger.Fees
		schedule, err := parseSchedule(f.WithdrawFlat, f.TipRate, f.Address, cfg.Ledger.Decimals)
		if err != nil {
			return nil, fmt.Errorf("ledger: %w", err)
		}
		fees[models.NetworkLedger] = feepolicy.New(schedule)
	}
	if cfg.Coin.Enabled {
		f := cfg.Coin.Fees
		schedule, err := parseSchedule(f.WithdrawFlat, f.TipRate, f.Address, cfg.Coin.Decimals)
		if err != nil {
			return nil, fmt.Errorf("coin: %w", err)
		}
		fees[models.NetworkCoin] = feepolicy.New(schedule)
	}
	return fees, nil
}
