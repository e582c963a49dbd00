package sealevel

import (
	"github.com/gagliardetto/solana-go"
	"github.com/stakeflow/stakeflow/pkg/base58"
)

const NativeLoaderAddrStr = "NativeLoader1111111111111111111111111111111"

var NativeLoaderAddr = base58.MustDecodeFromString(NativeLoaderAddrStr)

const SystemProgramAddrStr = "11111111111111111111111111111111"

var SystemProgramAddr = base58.MustDecodeFromString(SystemProgramAddrStr)

const TokenProgramAddrStr = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"

var TokenProgramAddr = base58.MustDecodeFromString(TokenProgramAddrStr)

const AssociatedTokenProgramAddrStr = "ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL"

var AssociatedTokenProgramAddr = base58.MustDecodeFromString(AssociatedTokenProgramAddrStr)

const StakeFlowProgramAddrStr = "4cUDbCQvhBSzWbTivv3ZscDkePVweqRFAHbgDUKLkfdK"

var StakeFlowProgramAddr = base58.MustDecodeFromString(StakeFlowProgramAddrStr)

const SysvarOwnerAddrStr = "Sysvar1111111111111111111111111111111111111"

var SysvarOwnerAddr = base58.MustDecodeFromString(SysvarOwnerAddrStr)

// NativePrograms lists the programs the runtime executes natively.
var NativePrograms = []solana.PublicKey{
	SystemProgramAddr,
	TokenProgramAddr,
	AssociatedTokenProgramAddr,
	StakeFlowProgramAddr,
}

func IsNativeProgram(pubkey solana.PublicKey) bool {
	_, err := resolveNativeProgramById(pubkey)
	return err == nil
}

func IsSysvar(pubkey solana.PublicKey) bool {
	return pubkey == SysvarClockAddr || pubkey == SysvarRentAddr
}

func resolveNativeProgramById(programId [32]byte) (func(ctx *ExecutionCtx) error, error) {
	switch programId {
	case SystemProgramAddr:
		return SystemProgramExecute, nil
	case TokenProgramAddr:
		return TokenProgramExecute, nil
	case AssociatedTokenProgramAddr:
		return AssociatedTokenProgramExecute, nil
	case StakeFlowProgramAddr:
		return StakeFlowProgramExecute, nil
	}

	return nil, InstrErrUnsupportedProgramId
}

// checkProgramAccount verifies that the instruction account at idx is the
// expected program.
func checkProgramAccount(txCtx *TransactionCtx, instrCtx *InstructionCtx, instrAcctIdx uint64, expected solana.PublicKey) error {
	idxInTx, err := instrCtx.IndexOfInstructionAccountInTransaction(instrAcctIdx)
	if err != nil {
		return err
	}
	key, err := txCtx.KeyOfAccountAtIndex(idxInTx)
	if err != nil {
		return err
	}
	if key != expected {
		return InstrErrIncorrectProgramId
	}
	return nil
}
