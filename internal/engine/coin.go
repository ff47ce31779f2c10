package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"tipbridge/internal/custom_err"
	"tipbridge/internal/gateway"
	"tipbridge/internal/models"
	"tipbridge/internal/money"
)

// Coin drives the UTXO wallet binary. It settles inbound outputs on its own, so ReceivePending only
// re-reads the wallet.
type Coin struct {
	gw    Caller
	asset Asset
}

var (
	_ Engine              = (*Coin)(nil)
	_ NetworkFeeEstimator = (*Coin)(nil)
)

func NewCoin(gw Caller, asset Asset) *Coin {
	return &Coin{gw: gw, asset: asset}
}

func (c *Coin) Network() models.Network { return models.NetworkCoin }
func (c *Coin) Asset() Asset            { return c.asset }

func (c *Coin) Create(ctx context.Context, name string) (Created, error) {
	const op = "engine.Coin.Create"
	res, err := c.gw.Call(ctx, gateway.CoinCreateRequest{Name: name})
	if err != nil {
		return Created{}, fmt.Errorf("%s: %w", op, err)
	}
	var data struct {
		Address  string `json:"address"`
		Password string `json:"password"`
	}
	if err := res.Decode(&data); err != nil {
		return Created{}, fmt.Errorf("%s: %w", op, err)
	}
	if data.Address == "" {
		return Created{}, fmt.Errorf("%s: %w: no address", op, custom_err.ErrProtocol)
	}
	return Created{Address: data.Address, Secret: data.Password}, nil
}

func (c *Coin) Balance(ctx context.Context, creds Credentials) (Snapshot, error) {
	const op = "engine.Coin.Balance"
	res, err := c.gw.Call(ctx, gateway.CoinBalanceRequest{Name: creds.Name, Password: creds.Secret})
	if err != nil {
		return Snapshot{}, fmt.Errorf("%s: %w", op, err)
	}

	var data struct {
		Spendable string `json:"spendable"`
		Pending   string `json:"pending"`
		Locked    string `json:"locked"`
	}
	if err := res.Decode(&data); err != nil {
		return Snapshot{}, fmt.Errorf("%s: %w", op, err)
	}

	var snap Snapshot
	for _, f := range []struct {
		raw string
		dst *money.Money
	}{
		{data.Spendable, &snap.Spendable},
		{data.Pending, &snap.Pending},
		{data.Locked, &snap.Locked},
	} {
		raw := f.raw
		if raw == "" {
			raw = "0"
		}
		m, err := money.ParseUnits(raw, c.asset.Decimals)
		if err != nil {
			return Snapshot{}, fmt.Errorf("%s: %w: amount %q", op, custom_err.ErrProtocol, f.raw)
		}
		*f.dst = m
	}
	if snap.Pending.IsPositive() {
		snap.PendingCount = 1
	}
	return snap, nil
}

func (c *Coin) ReceivePending(context.Context, Credentials) error {
	return nil
}

func (c *Coin) Send(ctx context.Context, creds Credentials, to string, amount money.Money) (string, error) {
	const op = "engine.Coin.Send"
	res, err := c.gw.Call(ctx, gateway.CoinSendRequest{
		Name:      creds.Name,
		Password:  creds.Secret,
		Amount:    strconv.FormatInt(amount.Units(), 10),
		Recipient: to,
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	ref, err := txHash(res)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return ref, nil
}

func (c *Coin) NetworkFee(ctx context.Context, creds Credentials, amount money.Money) (money.Money, error) {
	const op = "engine.Coin.NetworkFee"
	res, err := c.gw.Call(ctx, gateway.CoinFeeRequest{
		Name:     creds.Name,
		Password: creds.Secret,
		Amount:   strconv.FormatInt(amount.Units(), 10),
	})
	if err != nil {
		return money.Money{}, fmt.Errorf("%s: %w", op, err)
	}
	raw, ok := res.Scalar()
	if !ok {
		return money.Money{}, fmt.Errorf("%s: %w: fee is not a scalar", op, custom_err.ErrProtocol)
	}
	fee, err := money.ParseUnits(raw, c.asset.Decimals)
	if err != nil {
		return money.Money{}, fmt.Errorf("%s: %w: fee %q", op, custom_err.ErrProtocol, raw)
	}
	return fee, nil
}

func (c *Coin) ValidateAddress(address string) error {
	if address == "" || strings.ContainsAny(address, " \t\n") {
		return custom_err.Invalid("invalid address %q", address)
	}
	return nil
}
