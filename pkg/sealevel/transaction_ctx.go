package sealevel

import (
	"github.com/gagliardetto/solana-go"
	"github.com/stakeflow/stakeflow/pkg/accounts"
)

const (
	MaxInstructionStackDepth  = 5
	MaxInstructionTraceLength = 64
)

type TransactionCtx struct {
	Accounts                  TransactionAccounts
	InstructionTrace          []*InstructionCtx
	InstructionStack          []uint64
	MaxInstructionStackDepth  uint64
	MaxInstructionTraceLength uint64
}

func NewTransactionCtx(txAccounts TransactionAccounts, maxStackDepth uint64, maxTraceLength uint64) *TransactionCtx {
	return &TransactionCtx{
		Accounts:                  txAccounts,
		InstructionTrace:          []*InstructionCtx{new(InstructionCtx)},
		MaxInstructionStackDepth:  maxStackDepth,
		MaxInstructionTraceLength: maxTraceLength,
	}
}

func (txCtx *TransactionCtx) KeyOfAccountAtIndex(index uint64) (solana.PublicKey, error) {
	acct, err := txCtx.Accounts.GetAccount(index)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return acct.Key, nil
}

func (txCtx *TransactionCtx) IndexOfAccount(pubkey solana.PublicKey) (uint64, error) {
	for idx, acct := range txCtx.Accounts.Accounts {
		if acct.Key == pubkey {
			return uint64(idx), nil
		}
	}
	return 0, InstrErrMissingAccount
}

func (txCtx *TransactionCtx) AccountAtIndex(idxInTx uint64) (*accounts.Account, error) {
	return txCtx.Accounts.GetAccount(idxInTx)
}

// InstructionTraceLength excludes the trailing slot reserved for the next
// instruction.
func (txCtx *TransactionCtx) InstructionTraceLength() uint64 {
	return uint64(len(txCtx.InstructionTrace) - 1)
}

func (txCtx *TransactionCtx) InstructionCtxAtIndexInTrace(idxInTrace uint64) (*InstructionCtx, error) {
	if idxInTrace >= uint64(len(txCtx.InstructionTrace)) {
		return nil, InstrErrCallDepth
	}
	return txCtx.InstructionTrace[idxInTrace], nil
}

func (txCtx *TransactionCtx) InstructionCtxStackHeight() uint64 {
	return uint64(len(txCtx.InstructionStack))
}

func (txCtx *TransactionCtx) InstructionCtxAtNestingLevel(nestingLevel uint64) (*InstructionCtx, error) {
	if nestingLevel >= txCtx.InstructionCtxStackHeight() {
		return nil, InstrErrCallDepth
	}
	return txCtx.InstructionCtxAtIndexInTrace(txCtx.InstructionStack[nestingLevel])
}

func (txCtx *TransactionCtx) CurrentInstructionCtx() (*InstructionCtx, error) {
	height := txCtx.InstructionCtxStackHeight()
	if height == 0 {
		return nil, InstrErrCallDepth
	}
	return txCtx.InstructionCtxAtNestingLevel(height - 1)
}

func (txCtx *TransactionCtx) NextInstructionCtx() (*InstructionCtx, error) {
	return txCtx.InstructionCtxAtIndexInTrace(txCtx.InstructionTraceLength())
}

func (txCtx *TransactionCtx) Push() error {
	if txCtx.InstructionCtxStackHeight() >= txCtx.MaxInstructionStackDepth {
		return InstrErrCallDepth
	}
	if txCtx.InstructionTraceLength() >= txCtx.MaxInstructionTraceLength {
		return InstrErrMaxInstructionTraceLengthExceeded
	}

	idxInTrace := txCtx.InstructionTraceLength()
	txCtx.InstructionTrace[idxInTrace].NestingLevel = txCtx.InstructionCtxStackHeight()
	txCtx.InstructionStack = append(txCtx.InstructionStack, idxInTrace)
	txCtx.InstructionTrace = append(txCtx.InstructionTrace, new(InstructionCtx))

	return nil
}

func (txCtx *TransactionCtx) Pop() error {
	height := txCtx.InstructionCtxStackHeight()
	if height == 0 {
		return InstrErrCallDepth
	}
	txCtx.InstructionStack = txCtx.InstructionStack[:height-1]

	if height == 1 && txCtx.Accounts.anyBorrowed() {
		return InstrErrAccountBorrowOutstanding
	}
	return nil
}
