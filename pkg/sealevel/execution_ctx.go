package sealevel

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/stakeflow/stakeflow/pkg/cu"
	"github.com/stakeflow/stakeflow/pkg/safemath"
	"k8s.io/klog/v2"
)

// ExecutionCtx carries the state of one transaction's execution.
type ExecutionCtx struct {
	Log                Logger
	TransactionContext *TransactionCtx
	ComputeMeter       cu.ComputeMeter
	SysvarCache        SysvarCache
}

func (execCtx *ExecutionCtx) PrepareInstruction(ix Instruction, signers []solana.PublicKey) ([]InstructionAccount, []uint64, error) {
	txCtx := execCtx.TransactionContext

	ixCtx, err := txCtx.CurrentInstructionCtx()
	if err != nil {
		return nil, nil, err
	}

	dedupInstructionAccounts := make([]InstructionAccount, 0)
	duplicateIndices := make([]uint64, 0)

	for instructionAcctIndex, accountMeta := range ix.Accounts {
		indexInTx, err := txCtx.IndexOfAccount(accountMeta.Pubkey)
		if err != nil {
			klog.Errorf("instruction references unknown account %s", accountMeta.Pubkey)
			return nil, nil, err
		}

		duplicateIndex := -1
		for index, instrAcct := range dedupInstructionAccounts {
			if instrAcct.IndexInTransaction == indexInTx {
				duplicateIndex = index
				break
			}
		}

		if duplicateIndex != -1 {
			duplicateIndices = append(duplicateIndices, uint64(duplicateIndex))
			dedupInstructionAccounts[duplicateIndex].IsSigner = dedupInstructionAccounts[duplicateIndex].IsSigner || accountMeta.IsSigner
			dedupInstructionAccounts[duplicateIndex].IsWritable = dedupInstructionAccounts[duplicateIndex].IsWritable || accountMeta.IsWritable
		} else {
			indexInCaller, err := ixCtx.IndexOfInstructionAccount(txCtx, accountMeta.Pubkey)
			if err != nil {
				klog.Errorf("instruction references account %s missing from the caller", accountMeta.Pubkey)
				return nil, nil, err
			}
			duplicateIndices = append(duplicateIndices, uint64(len(dedupInstructionAccounts)))

			instrAcct := InstructionAccount{IndexInTransaction: indexInTx,
				IndexInCaller: indexInCaller,
				IndexInCallee: uint64(instructionAcctIndex),
				IsSigner:      accountMeta.IsSigner,
				IsWritable:    accountMeta.IsWritable}

			dedupInstructionAccounts = append(dedupInstructionAccounts, instrAcct)
		}
	}

	for _, instructionAcct := range dedupInstructionAccounts {
		borrowedAcct, err := ixCtx.BorrowInstructionAccount(txCtx, instructionAcct.IndexInCaller)
		if err != nil {
			return nil, nil, err
		}

		// read-only in the caller cannot become writable in the callee
		if instructionAcct.IsWritable && !borrowedAcct.IsWritable() {
			borrowedAcct.Drop()
			klog.Errorf("%s: writable privilege escalated", borrowedAcct.Key())
			return nil, nil, InstrErrPrivilegeEscalation
		}

		// a callee signer must be signed in the caller or derived from the caller's program id
		presentInSigners := false
		for _, addr := range signers {
			if addr == borrowedAcct.Key() {
				presentInSigners = true
				break
			}
		}
		if instructionAcct.IsSigner && !(borrowedAcct.IsSigner() || presentInSigners) {
			borrowedAcct.Drop()
			klog.Errorf("%s: signer privilege escalated", borrowedAcct.Key())
			return nil, nil, InstrErrPrivilegeEscalation
		}
		borrowedAcct.Drop()
	}

	instructionAccounts := make([]InstructionAccount, 0, len(duplicateIndices))
	for _, duplicateIndex := range duplicateIndices {
		instrAcct := dedupInstructionAccounts[duplicateIndex]
		instructionAccounts = append(instructionAccounts, instrAcct)
	}

	calleeProgramId := ix.ProgramId
	programAcctIdx, err := ixCtx.IndexOfInstructionAccount(txCtx, calleeProgramId)
	if err != nil {
		klog.Errorf("unknown program %s", calleeProgramId)
		return nil, nil, err
	}

	borrowedProgramAcct, err := ixCtx.BorrowInstructionAccount(txCtx, programAcctIdx)
	if err != nil {
		return nil, nil, err
	}
	defer borrowedProgramAcct.Drop()

	if !borrowedProgramAcct.IsExecutable() {
		klog.Errorf("account %s is not executable", calleeProgramId)
		return nil, nil, InstrErrAccountNotExecutable
	}

	return instructionAccounts, []uint64{borrowedProgramAcct.IndexInTransaction}, nil
}

func (execCtx *ExecutionCtx) instructionAccountsLamportSum(instructionAccts []InstructionAccount) (uint64, error) {
	var sum uint64
	for idx, instrAcct := range instructionAccts {
		if instrAcct.IndexInCallee != uint64(idx) {
			continue
		}
		acct, err := execCtx.TransactionContext.AccountAtIndex(instrAcct.IndexInTransaction)
		if err != nil {
			return 0, err
		}
		sum, err = safemath.CheckedAddU64(sum, acct.Lamports)
		if err != nil {
			return 0, InstrErrArithmeticOverflow
		}
	}
	return sum, nil
}

// ProcessInstruction runs one instruction at the next nesting level and
// verifies that it neither created nor destroyed lamports.
func (execCtx *ExecutionCtx) ProcessInstruction(instrData []byte, instructionAccts []InstructionAccount, programIndices []uint64) error {
	preBalance, err := execCtx.instructionAccountsLamportSum(instructionAccts)
	if err != nil {
		return err
	}

	nextInstrCtx, err := execCtx.TransactionContext.NextInstructionCtx()
	if err != nil {
		return err
	}

	nextInstrCtx.Configure(programIndices, instructionAccts, instrData)

	err = execCtx.Push()
	if err != nil {
		return err
	}

	err1 := execCtx.ExecuteInstruction()

	err2 := execCtx.Pop()

	if err1 != nil {
		return err1
	} else if err2 != nil {
		return err2
	}

	postBalance, err := execCtx.instructionAccountsLamportSum(instructionAccts)
	if err != nil {
		return err
	}
	if preBalance != postBalance {
		return InstrErrUnbalancedInstruction
	}

	return nil
}

func (execCtx *ExecutionCtx) ExecuteInstruction() error {
	txCtx := execCtx.TransactionContext
	instrCtx, err := txCtx.CurrentInstructionCtx()
	if err != nil {
		return err
	}

	borrowedRootAccount, err := instrCtx.BorrowProgramAccount(txCtx, 0)
	if err != nil {
		klog.V(2).Infof("BorrowProgramAccount failed: %s", err)
		return InstrErrUnsupportedProgramId
	}

	ownerId := borrowedRootAccount.Owner()
	programId := borrowedRootAccount.Key()
	borrowedRootAccount.Drop()

	if ownerId != NativeLoaderAddr {
		klog.Errorf("program %s is not a native program (owner %s)", programId, ownerId)
		return InstrErrUnsupportedProgramId
	}

	nativeProgramFn, err := resolveNativeProgramById(programId)
	if err != nil {
		return err
	}

	execCtx.log(fmt.Sprintf("Program %s invoke [%d]", programId, execCtx.StackHeight()))
	startingCUs := execCtx.ComputeMeter.Remaining()

	err = nativeProgramFn(execCtx)
	if errors.Is(err, cu.ErrComputeExceeded) {
		err = InstrErrComputationalBudgetExceeded
	}

	consumed := startingCUs - execCtx.ComputeMeter.Remaining()
	execCtx.log(fmt.Sprintf("Program %s consumed %d of %d compute units", programId, consumed, startingCUs))

	if err != nil {
		execCtx.log(fmt.Sprintf("Program %s failed: %s", programId, InstructionErrorString(err)))
		return err
	}

	execCtx.log(fmt.Sprintf("Program %s success", programId))
	return nil
}

func (execCtx *ExecutionCtx) Push() error {
	txCtx := execCtx.TransactionContext

	instrCtx, err := txCtx.NextInstructionCtx()
	if err != nil {
		return err
	}

	programId, err := instrCtx.LastProgramKey(txCtx)
	if err != nil {
		return InstrErrUnsupportedProgramId
	}

	if txCtx.InstructionCtxStackHeight() != 0 {
		var contains bool
		for level := uint64(0); level < txCtx.InstructionCtxStackHeight(); level++ {
			ic, err := txCtx.InstructionCtxAtNestingLevel(level)
			if err != nil {
				continue
			}
			key, err := ic.LastProgramKey(txCtx)
			if err == nil && key == programId {
				contains = true
				break
			}
		}

		var isLast bool
		ic, err := txCtx.CurrentInstructionCtx()
		if err != nil {
			return err
		}
		key, err := ic.LastProgramKey(txCtx)
		if err == nil && key == programId {
			isLast = true
		}

		if contains && !isLast {
			return InstrErrReentrancyNotAllowed
		}
	}

	return txCtx.Push()
}

func (execCtx *ExecutionCtx) Pop() error {
	return execCtx.TransactionContext.Pop()
}

func (execCtx *ExecutionCtx) StackHeight() uint64 {
	return execCtx.TransactionContext.InstructionCtxStackHeight()
}

// NativeInvoke performs a cross-program invocation from the current program.
func (execCtx *ExecutionCtx) NativeInvoke(instruction Instruction, signers []solana.PublicKey) error {
	if err := execCtx.ComputeMeter.Consume(CUInvokeUnits); err != nil {
		return InstrErrComputationalBudgetExceeded
	}

	instrAccts, programIndices, err := execCtx.PrepareInstruction(instruction, signers)
	if err != nil {
		return err
	}

	return execCtx.ProcessInstruction(instruction.Data, instrAccts, programIndices)
}

// NativeInvokeSigned invokes with the program-derived addresses of the
// current program, given by their seeds, acting as signers.
func (execCtx *ExecutionCtx) NativeInvokeSigned(instruction Instruction, signerSeeds [][][]byte) error {
	txCtx := execCtx.TransactionContext
	instrCtx, err := txCtx.CurrentInstructionCtx()
	if err != nil {
		return err
	}
	callerProgramId, err := instrCtx.LastProgramKey(txCtx)
	if err != nil {
		return err
	}

	signers := make([]solana.PublicKey, 0, len(signerSeeds))
	for _, seeds := range signerSeeds {
		addr, err := execCtx.createProgramAddressMetered(seeds, callerProgramId)
		if err != nil {
			return err
		}
		signers = append(signers, addr)
	}

	return execCtx.NativeInvoke(instruction, signers)
}
