// Package cu meters the compute units a transaction's native programs
// consume against the transaction's budget.
package cu

import (
	"errors"

	"github.com/stakeflow/stakeflow/pkg/safemath"
)

const DefaultComputeUnitLimit = 200_000

var ErrComputeExceeded = errors.New("compute budget exceeded")

// ComputeMeter is charged by every native program invocation in a transaction.
// Once a charge overdraws it, it stays empty.
type ComputeMeter struct {
	remaining uint64
	limit     uint64
}

func NewComputeMeter(limit uint64) ComputeMeter {
	return ComputeMeter{remaining: limit, limit: limit}
}

func (cm *ComputeMeter) Consume(cost uint64) error {
	overdrawn := cm.remaining < cost
	cm.remaining = safemath.SaturatingSubU64(cm.remaining, cost)
	if overdrawn {
		return ErrComputeExceeded
	}
	return nil
}

func (cm *ComputeMeter) Used() uint64 {
	return cm.limit - cm.remaining
}

func (cm *ComputeMeter) Remaining() uint64 {
	return cm.remaining
}
