// Package money holds fixed-point asset amounts. An amount is an integer count of the asset's
// minimal unit plus the number of decimals that unit sits below one whole coin.
package money

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalid   = errors.New("amount is not a number")
	ErrPrecision = errors.New("amount has more decimal places than the asset supports")
	ErrOverflow  = errors.New("amount is too large")
)

type Money struct {
	units    int64
	decimals int32
}

func New(units int64, decimals int32) Money {
	return Money{units: units, decimals: decimals}
}

func Zero(decimals int32) Money {
	return Money{decimals: decimals}
}

// Parse reads a human decimal string such as "1.5" for an asset with the given decimals.
func Parse(s string, decimals int32) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalid
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalid
	}
	return FromDecimal(d, decimals)
}

// ParseUnits reads an integer count of minimal units, the form engines report balances in.
func ParseUnits(s string, decimals int32) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || !d.IsInteger() {
		return Money{}, ErrInvalid
	}
	if !d.BigInt().IsInt64() {
		return Money{}, ErrOverflow
	}
	return New(d.IntPart(), decimals), nil
}

func FromDecimal(d decimal.Decimal, decimals int32) (Money, error) {
	if !d.Truncate(decimals).Equal(d) {
		return Money{}, ErrPrecision
	}
	shifted := d.Shift(decimals)
	if !shifted.BigInt().IsInt64() {
		return Money{}, ErrOverflow
	}
	return New(shifted.IntPart(), decimals), nil
}

func (m Money) Units() int64     { return m.units }
func (m Money) Decimals() int32  { return m.decimals }
func (m Money) IsZero() bool     { return m.units == 0 }
func (m Money) IsPositive() bool { return m.units > 0 }

func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.units, -m.decimals)
}

func (m Money) rescale(decimals int32) Money {
	if decimals <= m.decimals {
		return m
	}
	return New(m.Decimal().Shift(decimals).IntPart(), decimals)
}

func align(a, b Money) (Money, Money) {
	d := max(a.decimals, b.decimals)
	return a.rescale(d), b.rescale(d)
}

func (m Money) checkedRescale(decimals int32) (Money, error) {
	if decimals <= m.decimals {
		return m, nil
	}
	shifted := m.Decimal().Shift(decimals)
	if !shifted.BigInt().IsInt64() {
		return Money{}, ErrOverflow
	}
	return New(shifted.IntPart(), decimals), nil
}

// CheckedAdd is Add that reports ErrOverflow instead of wrapping around.
func (m Money) CheckedAdd(o Money) (Money, error) {
	d := max(m.decimals, o.decimals)
	a, err := m.checkedRescale(d)
	if err != nil {
		return Money{}, err
	}
	b, err := o.checkedRescale(d)
	if err != nil {
		return Money{}, err
	}
	sum := a.units + b.units
	if (b.units > 0 && sum < a.units) || (b.units < 0 && sum > a.units) {
		return Money{}, ErrOverflow
	}
	return New(sum, d), nil
}

// Add assumes both operands are far from the int64 range; use CheckedAdd for user-supplied amounts.
func (m Money) Add(o Money) Money {
	a, b := align(m, o)
	return New(a.units+b.units, a.decimals)
}

func (m Money) Sub(o Money) Money {
	a, b := align(m, o)
	return New(a.units-b.units, a.decimals)
}

func (m Money) Cmp(o Money) int {
	a, b := align(m, o)
	switch {
	case a.units < b.units:
		return -1
	case a.units > b.units:
		return 1
	}
	return 0
}

func (m Money) LessThan(o Money) bool { return m.Cmp(o) < 0 }

// MulFloor multiplies by rate and rounds down to the minimal unit.
func (m Money) MulFloor(rate decimal.Decimal) Money {
	units := decimal.NewFromInt(m.units).Mul(rate).Floor()
	return New(units.IntPart(), m.decimals)
}

// String is the exact fixed-point form, always carrying every decimal place.
func (m Money) String() string {
	return m.Decimal().StringFixed(m.decimals)
}

// Display trims trailing zeros for chat output.
func (m Money) Display() string {
	return m.Decimal().String()
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON infers decimals from the number of fractional digits, which String always emits.
func (m *Money) UnmarshalJSON(data []byte) error {
	raw := string(bytes.Trim(data, `"`))
	if raw == "" || raw == "null" {
		*m = Money{}
		return nil
	}
	var decimals int32
	if i := strings.IndexByte(raw, '.'); i >= 0 {
		decimals = int32(len(raw) - i - 1)
	}
	parsed, err := Parse(raw, decimals)
	if err != nil {
		return fmt.Errorf("money: %q: %w", raw, err)
	}
	*m = parsed
	return nil
}
