package sealevel

import (
	"github.com/gagliardetto/solana-go"
	solanapda "github.com/stakeflow/stakeflow/pkg/solana"
)

func CreateProgramAddress(seeds [][]byte, programId [32]byte) ([32]byte, error) {
	var addr [32]byte
	b, err := solanapda.CreateProgramAddressBytes(seeds, programId[:])
	if err != nil {
		return addr, InstrErrInvalidSeeds
	}
	copy(addr[:], b)
	return addr, nil
}

func FindProgramAddress(seeds [][]byte, programId [32]byte) ([32]byte, uint8, error) {
	var addr [32]byte
	b, bump, err := solanapda.FindProgramAddressBytes(seeds, programId[:])
	if err != nil {
		return addr, 0, InstrErrInvalidSeeds
	}
	copy(addr[:], b)
	return addr, bump, nil
}

// findProgramAddressMetered charges one address derivation per bump tried.
func (execCtx *ExecutionCtx) findProgramAddressMetered(seeds [][]byte, programId [32]byte) ([32]byte, uint8, error) {
	addr, bump, err := FindProgramAddress(seeds, programId)
	if err != nil {
		return addr, 0, err
	}
	attempts := uint64(256 - int(bump))
	if err = execCtx.ComputeMeter.Consume(attempts * CUCreateProgramAddressUnits); err != nil {
		return addr, 0, InstrErrComputationalBudgetExceeded
	}
	return addr, bump, nil
}

func (execCtx *ExecutionCtx) createProgramAddressMetered(seeds [][]byte, programId [32]byte) ([32]byte, error) {
	if err := execCtx.ComputeMeter.Consume(CUCreateProgramAddressUnits); err != nil {
		return [32]byte{}, InstrErrComputationalBudgetExceeded
	}
	return CreateProgramAddress(seeds, programId)
}

// createPdaAccount funds, sizes and assigns the program-derived address
// newAddr through the System program, signing with seeds. An address that
// was pre-funded is topped up to the rent-exempt minimum instead of failing.
func (execCtx *ExecutionCtx) createPdaAccount(payer solana.PublicKey, newAddr solana.PublicKey, space uint64, owner solana.PublicKey, seeds [][]byte) error {
	rent, err := execCtx.SysvarCache.GetRent()
	if err != nil {
		return err
	}
	required := rent.MinimumBalance(space)

	txCtx := execCtx.TransactionContext
	idxInTx, err := txCtx.IndexOfAccount(newAddr)
	if err != nil {
		return err
	}
	acct, err := txCtx.AccountAtIndex(idxInTx)
	if err != nil {
		return err
	}

	signerSeeds := [][][]byte{seeds}

	if acct.Lamports == 0 {
		return execCtx.NativeInvokeSigned(newCreateAccountInstruction(payer, newAddr, required, space, owner), signerSeeds)
	}

	if required > acct.Lamports {
		err = execCtx.NativeInvoke(newTransferInstruction(payer, newAddr, required-acct.Lamports), nil)
		if err != nil {
			return err
		}
	}

	err = execCtx.NativeInvokeSigned(newAllocateInstruction(newAddr, space), signerSeeds)
	if err != nil {
		return err
	}
	return execCtx.NativeInvokeSigned(newAssignInstruction(newAddr, owner), signerSeeds)
}
