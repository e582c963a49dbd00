// Package stakemath implements the reward accrual and early-exit penalty
// arithmetic shared by the on-chain program and its clients.
//
// All results truncate toward zero, so rounding never issues more than the
// exact rational amount.
package stakemath

import (
	"errors"

	"github.com/holiman/uint256"
)

const (
	SecondsPerYear = 365 * 24 * 60 * 60
	BpsDenominator = 10_000
)

var (
	ErrOverflow   = errors.New("stakemath: result does not fit in u64")
	ErrInvalidBps = errors.New("stakemath: basis points above 10000")
)

var accrualDenominator = uint256.NewInt(SecondsPerYear * BpsDenominator)

// Accrue returns floor(staked * elapsed * aprBps / (SecondsPerYear * 10000)).
// A non-positive elapsed interval accrues nothing.
func Accrue(staked uint64, aprBps uint16, elapsedSeconds int64) (uint64, error) {
	if elapsedSeconds <= 0 || staked == 0 || aprBps == 0 {
		return 0, nil
	}

	// staked (64 bits) * elapsed (63 bits) * apr (16 bits) stays below 2^143.
	reward := new(uint256.Int).Mul(uint256.NewInt(staked), uint256.NewInt(uint64(elapsedSeconds)))
	reward.Mul(reward, uint256.NewInt(uint64(aprBps)))
	reward.Div(reward, accrualDenominator)

	if !reward.IsUint64() {
		return 0, ErrOverflow
	}
	return reward.Uint64(), nil
}

// PenaltySplit divides an early withdrawal into the forfeited penalty and the
// net payout. penalty + net always equals amount.
func PenaltySplit(amount uint64, penaltyBps uint16) (penalty uint64, net uint64, err error) {
	if penaltyBps > BpsDenominator {
		return 0, 0, ErrInvalidBps
	}

	p := new(uint256.Int).Mul(uint256.NewInt(amount), uint256.NewInt(uint64(penaltyBps)))
	p.Div(p, uint256.NewInt(BpsDenominator))

	penalty = p.Uint64()
	net = amount - penalty
	return penalty, net, nil
}
