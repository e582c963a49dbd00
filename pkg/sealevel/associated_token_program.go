package sealevel

import (
	"github.com/gagliardetto/solana-go"
	"k8s.io/klog/v2"
)

const (
	AssociatedTokenInstrTypeCreate           = 0
	AssociatedTokenInstrTypeCreateIdempotent = 1
)

// instruction accounts of Create and CreateIdempotent
const (
	ataIdxPayer = iota
	ataIdxAssociatedAccount
	ataIdxWallet
	ataIdxMint
	ataIdxSystemProgram
	ataIdxTokenProgram
)

func AssociatedTokenAddressSeeds(wallet solana.PublicKey, mint solana.PublicKey) [][]byte {
	return [][]byte{wallet[:], TokenProgramAddr[:], mint[:]}
}

func AssociatedTokenProgramExecute(execCtx *ExecutionCtx) error {
	err := execCtx.ComputeMeter.Consume(CUAssociatedTokenDefaultComputeUnits)
	if err != nil {
		return err
	}

	txCtx := execCtx.TransactionContext
	instrCtx, err := txCtx.CurrentInstructionCtx()
	if err != nil {
		return err
	}

	var idempotent bool
	switch {
	case len(instrCtx.Data) == 0 || (len(instrCtx.Data) == 1 && instrCtx.Data[0] == AssociatedTokenInstrTypeCreate):
		execCtx.log("Program log: Create")
	case len(instrCtx.Data) == 1 && instrCtx.Data[0] == AssociatedTokenInstrTypeCreateIdempotent:
		execCtx.log("Program log: CreateIdempotent")
		idempotent = true
	default:
		return InstrErrInvalidInstructionData
	}

	err = instrCtx.CheckNumOfInstructionAccounts(6)
	if err != nil {
		return err
	}

	return AssociatedTokenProgramCreate(execCtx, idempotent)
}

func AssociatedTokenProgramCreate(execCtx *ExecutionCtx, idempotent bool) error {
	txCtx := execCtx.TransactionContext
	instrCtx, err := txCtx.CurrentInstructionCtx()
	if err != nil {
		return err
	}

	err = checkProgramAccount(txCtx, instrCtx, ataIdxSystemProgram, SystemProgramAddr)
	if err != nil {
		return err
	}
	err = checkProgramAccount(txCtx, instrCtx, ataIdxTokenProgram, TokenProgramAddr)
	if err != nil {
		return err
	}

	payer, err := extractAddress(txCtx, instrCtx, ataIdxPayer)
	if err != nil {
		return err
	}
	associatedAddr, err := extractAddress(txCtx, instrCtx, ataIdxAssociatedAccount)
	if err != nil {
		return err
	}
	wallet, err := extractAddress(txCtx, instrCtx, ataIdxWallet)
	if err != nil {
		return err
	}
	mint, err := extractAddress(txCtx, instrCtx, ataIdxMint)
	if err != nil {
		return err
	}

	seeds := AssociatedTokenAddressSeeds(wallet, mint)
	derived, bump, err := execCtx.findProgramAddressMetered(seeds, AssociatedTokenProgramAddr)
	if err != nil {
		return err
	}
	if derived != associatedAddr {
		klog.Errorf("associated token address mismatch: got %s, derived %s", associatedAddr, solana.PublicKey(derived))
		return InstrErrInvalidSeeds
	}

	assocAcct, err := instrCtx.BorrowInstructionAccount(txCtx, ataIdxAssociatedAccount)
	if err != nil {
		return err
	}
	owner := assocAcct.Owner()
	data := assocAcct.Data()
	assocAcct.Drop()

	if idempotent && owner == TokenProgramAddr {
		tokenAcct, err := UnmarshalTokenAccount(data)
		if err != nil {
			return err
		}
		if tokenAcct.Owner != wallet || tokenAcct.Mint != mint {
			return InstrErrInvalidAccountData
		}
		return nil
	}

	if owner != SystemProgramAddr {
		return InstrErrInvalidAccountOwner
	}

	signerSeeds := append(seeds, []byte{bump})
	err = execCtx.createPdaAccount(payer, associatedAddr, TokenAccountSize, TokenProgramAddr, signerSeeds)
	if err != nil {
		return err
	}

	return execCtx.NativeInvoke(newTokenInitializeAccount3Instruction(associatedAddr, mint, wallet), nil)
}
