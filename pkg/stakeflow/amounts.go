package stakeflow

import (
	"errors"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrEmptyAmount         = errors.New("empty amount")
	ErrInvalidAmountFormat = errors.New("invalid format, use only digits and a decimal point")
	ErrAmountTooLarge      = errors.New("amount does not fit in 64 bits")
)

var maxU64 = decimal.NewFromBigInt(new(big.Int).SetUint64(^uint64(0)), 0)

// ParseUiAmount converts a human readable amount such as "1.5" into base
// units of a mint with the given decimals. Digits past the mint's precision
// are dropped.
func ParseUiAmount(s string, decimals uint8) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrEmptyAmount
	}
	if strings.ContainsAny(s, "eE+-") || strings.HasPrefix(s, ".") || strings.HasSuffix(s, ".") {
		return 0, ErrInvalidAmountFormat
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmountFormat
	}
	return UiToBaseUnits(d, decimals)
}

// UiToBaseUnits truncates d to the mint's precision and scales it to base units.
func UiToBaseUnits(d decimal.Decimal, decimals uint8) (uint64, error) {
	if d.IsNegative() {
		return 0, ErrInvalidAmountFormat
	}
	raw := d.Shift(int32(decimals)).Truncate(0)
	if raw.GreaterThan(maxU64) {
		return 0, ErrAmountTooLarge
	}
	return raw.BigInt().Uint64(), nil
}

// ToUiAmount renders base units with trailing fractional zeros removed.
func ToUiAmount(raw uint64, decimals uint8) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(raw), -int32(decimals)).String()
}

// BpsToPercent renders basis points as a percentage with two decimals.
func BpsToPercent(bps uint16) string {
	return decimal.New(int64(bps), -2).StringFixed(2) + "%"
}
