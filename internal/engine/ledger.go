package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"tipbridge/internal/custom_err"
	"tipbridge/internal/gateway"
	"tipbridge/internal/models"
	"tipbridge/internal/money"
)

const (
	ledgerAddressPrefix = "vite_"
	ledgerAddressLength = 55
)

type Ledger struct {
	gw    Caller
	asset Asset
}

var _ Engine = (*Ledger)(nil)

func NewLedger(gw Caller, asset Asset) *Ledger {
	return &Ledger{gw: gw, asset: asset}
}

func (l *Ledger) Network() models.Network { return models.NetworkLedger }
func (l *Ledger) Asset() Asset            { return l.asset }

func (l *Ledger) Create(ctx context.Context, _ string) (Created, error) {
	const op = "engine.Ledger.Create"
	res, err := l.gw.Call(ctx, gateway.LedgerCreateRequest{})
	if err != nil {
		return Created{}, fmt.Errorf("%s: %w", op, err)
	}

	var data struct {
		Address   string `json:"address"`
		Mnemonics string `json:"mnemonics"`
	}
	if err := res.Decode(&data); err != nil {
		return Created{}, fmt.Errorf("%s: %w", op, err)
	}
	if data.Address == "" || data.Mnemonics == "" {
		return Created{}, fmt.Errorf("%s: %w: incomplete wallet", op, custom_err.ErrProtocol)
	}
	return Created{Address: data.Address, Secret: data.Mnemonics}, nil
}

type ledgerBalance struct {
	Confirmed    *string      `json:"confirmed"`
	PendingCount *json.Number `json:"pendingCount"`
	Balance      struct {
		BalanceInfoMap map[string]struct {
			Balance string `json:"balance"`
		} `json:"balanceInfoMap"`
	} `json:"balance"`
	Unreceived struct {
		BlockCount json.Number `json:"blockCount"`
	} `json:"unreceived"`
}

func (l *Ledger) Balance(ctx context.Context, creds Credentials) (Snapshot, error) {
	const op = "engine.Ledger.Balance"
	res, err := l.gw.Call(ctx, gateway.LedgerBalanceRequest{Mnemonics: creds.Secret})
	if err != nil {
		return Snapshot{}, fmt.Errorf("%s: %w", op, err)
	}

	var data ledgerBalance
	if err := res.Decode(&data); err != nil {
		return Snapshot{}, fmt.Errorf("%s: %w", op, err)
	}

	// flat {confirmed, pendingCount} replies and the raw account-info shape are both in use
	units := "0"
	pending := data.Unreceived.BlockCount
	if data.Confirmed != nil {
		units = *data.Confirmed
		if data.PendingCount != nil {
			pending = *data.PendingCount
		}
	} else if info, ok := data.Balance.BalanceInfoMap[l.asset.TokenID]; ok {
		units = info.Balance
	}

	spendable, err := money.ParseUnits(units, l.asset.Decimals)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%s: %w: balance %q", op, custom_err.ErrProtocol, units)
	}
	count := 0
	if pending != "" {
		n, err := strconv.Atoi(pending.String())
		if err != nil {
			return Snapshot{}, fmt.Errorf("%s: %w: pending count %q", op, custom_err.ErrProtocol, pending)
		}
		count = n
	}

	return Snapshot{
		Spendable:    spendable,
		Pending:      money.Zero(l.asset.Decimals),
		Locked:       money.Zero(l.asset.Decimals),
		PendingCount: count,
	}, nil
}

func (l *Ledger) ReceivePending(ctx context.Context, creds Credentials) error {
	const op = "engine.Ledger.ReceivePending"
	if _, err := l.gw.Call(ctx, gateway.LedgerReceiveRequest{Mnemonics: creds.Secret}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (l *Ledger) Send(ctx context.Context, creds Credentials, to string, amount money.Money) (string, error) {
	const op = "engine.Ledger.Send"
	res, err := l.gw.Call(ctx, gateway.LedgerSendRequest{
		Mnemonics: creds.Secret,
		ToAddress: to,
		TokenID:   l.asset.TokenID,
		Amount:    strconv.FormatInt(amount.Units(), 10),
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	hash, err := txHash(res)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return hash, nil
}

func (l *Ledger) ValidateAddress(address string) error {
	if len(address) != ledgerAddressLength || !strings.HasPrefix(address, ledgerAddressPrefix) {
		return custom_err.Invalid("invalid address %q", address)
	}
	for _, c := range address[len(ledgerAddressPrefix):] {
		if !strings.ContainsRune("0123456789abcdef", c) {
			return custom_err.Invalid("invalid address %q", address)
		}
	}
	return nil
}

// txHash reads the hash from scalar data or from {hash} / {data: {hash}} objects.
func txHash(res gateway.Result) (string, error) {
	if s, ok := res.Scalar(); ok && s != "" {
		return s, nil
	}
	var obj struct {
		Hash string `json:"hash"`
		Data struct {
			Hash string `json:"hash"`
		} `json:"data"`
	}
	if err := res.Decode(&obj); err != nil {
		return "", err
	}
	switch {
	case obj.Hash != "":
		return obj.Hash, nil
	case obj.Data.Hash != "":
		return obj.Data.Hash, nil
	}
	return "", fmt.Errorf("%w: no transaction hash", custom_err.ErrProtocol)
}
