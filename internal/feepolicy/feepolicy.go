// Package feepolicy derives protocol fees. Everything here is pure; rates come from configuration.
package feepolicy

import (
	"tipbridge/internal/models"
	"tipbridge/internal/money"

	"github.com/shopspring/decimal"
)

type Schedule struct {
	WithdrawFlat money.Money
	TipRate      decimal.Decimal
	Address      string
}

type Policy struct {
	schedule Schedule
}

func New(schedule Schedule) Policy {
	return Policy{schedule: schedule}
}

// Address is the fee collector the derived fee transfer is sent to.
func (p Policy) Address() string {
	return p.schedule.Address
}

func (p Policy) WithdrawFee() money.Money {
	return p.schedule.WithdrawFlat
}

// TipFee rounds down to the asset's minimal unit.
func (p Policy) TipFee(amount money.Money) money.Money {
	return amount.MulFloor(p.schedule.TipRate)
}

func (p Policy) Fee(t models.TransactionType, amount money.Money) money.Money {
	switch t {
	case models.WithdrawTransaction:
		return p.WithdrawFee()
	case models.SendTransaction, models.TipTransaction:
		return p.TipFee(amount)
	}
	return money.Zero(amount.Decimals())
}

func (p Policy) TotalDebit(t models.TransactionType, amount money.Money) money.Money {
	return amount.Add(p.Fee(t, amount))
}
