// Package engine adapts the gateway's raw operations into typed wallet engines, one per network.
package engine

import (
	"context"

	"tipbridge/internal/gateway"
	"tipbridge/internal/models"
	"tipbridge/internal/money"
)

// Caller is the subset of the gateway the engines need.
type Caller interface {
	Call(ctx context.Context, req gateway.Request) (gateway.Result, error)
}

type Asset struct {
	Symbol   string
	Decimals int32
	TokenID  string
}

// Credentials identify a custodial wallet to its engine. Secret is already opened.
type Credentials struct {
	Name    string
	Address string
	Secret  string
}

type Snapshot struct {
	Spendable    money.Money
	Pending      money.Money
	Locked       money.Money
	PendingCount int
}

type Created struct {
	Address string
	Secret  string
}

type Engine interface {
	Network() models.Network
	Asset() Asset
	Create(ctx context.Context, name string) (Created, error)
	Balance(ctx context.Context, creds Credentials) (Snapshot, error)
	ReceivePending(ctx context.Context, creds Credentials) error
	Send(ctx context.Context, creds Credentials, to string, amount money.Money) (string, error)
	ValidateAddress(address string) error
}

// NetworkFeeEstimator is implemented by engines whose network charges its own fee on top of the amount.
type NetworkFeeEstimator interface {
	NetworkFee(ctx context.Context, creds Credentials, amount money.Money) (money.Money, error)
}
