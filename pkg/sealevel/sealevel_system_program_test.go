package sealevel

import (
	"bytes"
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/stakeflow/stakeflow/pkg/accounts"
	"github.com/stakeflow/stakeflow/pkg/cu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecute_Tx_System_Program_CreateAccount_Success(t *testing.T) {

	// system program acct
	systemProgramAcct := nativeProgramAcct(SystemProgramAddr)

	// funding acct
	fundingPubkey := newRandomPubkey(t)
	fundingAcct := accounts.Account{Key: fundingPubkey, Lamports: 10000, Data: make([]byte, 0), Owner: SystemProgramAddr, Executable: false, RentEpoch: 100}

	// new acct
	newPubkey := newRandomPubkey(t)
	newAcct := accounts.Account{Key: newPubkey, Lamports: 0, Data: make([]byte, 0), Owner: SystemProgramAddr, Executable: false, RentEpoch: 100}

	var createAcct SystemInstrCreateAccount
	createAcct.Lamports = 1234
	createAcct.Owner = StakeFlowProgramAddr
	createAcct.Space = 1234

	createAcctInstrWriter := new(bytes.Buffer)
	createAcctEncoder := bin.NewBinEncoder(createAcctInstrWriter)

	err := createAcct.MarshalWithEncoder(createAcctEncoder)
	assert.NoError(t, err)
	instrBytes := createAcctInstrWriter.Bytes()

	transactionAccts := NewTransactionAccounts([]accounts.Account{systemProgramAcct, fundingAcct, newAcct})

	acctMetas := []AccountMeta{{Pubkey: fundingAcct.Key, IsSigner: true, IsWritable: true},
		{Pubkey: newAcct.Key, IsSigner: true, IsWritable: true}}

	instructionAccts := InstructionAcctsFromAccountMetas(acctMetas, *transactionAccts)

	txCtx := NewTransactionCtx(*transactionAccts, 5, 64)
	execCtx := ExecutionCtx{TransactionContext: txCtx, ComputeMeter: cu.NewComputeMeter(10000000000)}

	err = execCtx.ProcessInstruction(instrBytes, instructionAccts, []uint64{0})
	assert.NoError(t, err)

	created := transactionAccts.Accounts[2]
	assert.Equal(t, uint64(1234), created.Lamports)
	assert.Equal(t, 1234, len(created.Data))
	assert.Equal(t, solana.PublicKey(StakeFlowProgramAddr), created.Owner)
	assert.Equal(t, uint64(10000-1234), transactionAccts.Accounts[1].Lamports)
	assert.True(t, transactionAccts.Touched[1])
	assert.True(t, transactionAccts.Touched[2])
}

func TestExecute_Tx_System_Program_CreateAccount_AlreadyInUse(t *testing.T) {
	ledger := newTestLedger(t)
	funder := ledger.newWallet(1_000_000)
	target := ledger.newWallet(1)

	ix := newCreateAccountInstruction(funder, target, 500, 10, StakeFlowProgramAddr)
	err := ledger.process(ix)
	assert.ErrorIs(t, err, SystemProgErrAccountAlreadyInUse)

	code, ok := CustomErrorCode(err)
	assert.True(t, ok)
	assert.Equal(t, uint32(0), code)
}

func TestExecute_Tx_System_Program_CreateAccount_NewAccountMustSign(t *testing.T) {
	ledger := newTestLedger(t)
	funder := ledger.newWallet(1_000_000)
	target := newRandomPubkey(t)

	ix := newCreateAccountInstruction(funder, target, 500, 10, StakeFlowProgramAddr)
	ix.Accounts[1].IsSigner = false
	err := ledger.process(ix)
	assert.ErrorIs(t, err, InstrErrMissingRequiredSignature)
}

func TestExecute_Tx_System_Program_Transfer(t *testing.T) {
	ledger := newTestLedger(t)
	from := ledger.newWallet(1_000)
	to := ledger.newWallet(5)

	err := ledger.process(newTransferInstruction(from, to, 400))
	require.NoError(t, err)
	assert.Equal(t, uint64(600), ledger.get(from).Lamports)
	assert.Equal(t, uint64(405), ledger.get(to).Lamports)
	assert.Contains(t, ledger.logs, "Program 11111111111111111111111111111111 success")
}

func TestExecute_Tx_System_Program_Transfer_InsufficientLamports(t *testing.T) {
	ledger := newTestLedger(t)
	from := ledger.newWallet(100)
	to := ledger.newWallet(0)

	err := ledger.process(newTransferInstruction(from, to, 101))
	assert.ErrorIs(t, err, SystemProgErrResultWithNegativeLamports)
	assert.Equal(t, uint64(100), ledger.get(from).Lamports)
	assert.Contains(t, ledger.logs, "Program 11111111111111111111111111111111 failed: custom program error: 0x1")
}

func TestExecute_Tx_System_Program_Transfer_FromMustSign(t *testing.T) {
	ledger := newTestLedger(t)
	from := ledger.newWallet(100)
	to := ledger.newWallet(0)

	ix := newTransferInstruction(from, to, 10)
	ix.Accounts[0].IsSigner = false
	err := ledger.process(ix)
	assert.ErrorIs(t, err, InstrErrMissingRequiredSignature)
}

func TestExecute_Tx_System_Program_Transfer_FromWithData(t *testing.T) {
	ledger := newTestLedger(t)
	from := ledger.newWallet(100)
	acct := ledger.get(from)
	acct.Data = []byte{1, 2, 3}
	ledger.set(acct)
	to := ledger.newWallet(0)

	err := ledger.process(newTransferInstruction(from, to, 10))
	assert.ErrorIs(t, err, InstrErrInvalidArgument)
}

func TestExecute_Tx_System_Program_Allocate_And_Assign(t *testing.T) {
	ledger := newTestLedger(t)
	acct := ledger.newWallet(10)

	err := ledger.process(newAllocateInstruction(acct, 64))
	require.NoError(t, err)
	assert.Equal(t, 64, len(ledger.get(acct).Data))

	err = ledger.process(newAllocateInstruction(acct, 64))
	assert.ErrorIs(t, err, SystemProgErrAccountAlreadyInUse)

	err = ledger.process(newAssignInstruction(acct, TokenProgramAddr))
	require.NoError(t, err)
	assert.Equal(t, solana.PublicKey(TokenProgramAddr), ledger.get(acct).Owner)
}

func TestExecute_Tx_System_Program_Allocate_TooLarge(t *testing.T) {
	ledger := newTestLedger(t)
	acct := ledger.newWallet(10)

	err := ledger.process(newAllocateInstruction(acct, MaxPermittedDataLength+1))
	assert.ErrorIs(t, err, SystemProgErrInvalidAccountDataLength)
}

func TestExecute_Tx_System_Program_InvalidInstruction(t *testing.T) {
	ledger := newTestLedger(t)
	acct := ledger.newWallet(10)

	ix := Instruction{ProgramId: SystemProgramAddr, Data: []byte{99, 0, 0, 0}, Accounts: []AccountMeta{{Pubkey: acct, IsSigner: true, IsWritable: true}}}
	err := ledger.process(ix)
	assert.ErrorIs(t, err, InstrErrInvalidInstructionData)
}

func TestExecute_Tx_Readonly_Account_Cannot_Be_Debited(t *testing.T) {
	ledger := newTestLedger(t)
	from := ledger.newWallet(100)
	to := ledger.newWallet(0)

	ix := newTransferInstruction(from, to, 10)
	ix.Accounts[0].IsWritable = false
	err := ledger.process(ix)
	assert.ErrorIs(t, err, InstrErrReadonlyLamportChange)
}

func TestExecute_Tx_NonNative_Program_Rejected(t *testing.T) {
	ledger := newTestLedger(t)
	bogus := newRandomPubkey(t)
	ledger.set(accounts.Account{Key: bogus, Lamports: 1, Owner: SystemProgramAddr, Executable: true})

	err := ledger.process(Instruction{ProgramId: bogus, Data: []byte{0}})
	assert.ErrorIs(t, err, InstrErrUnsupportedProgramId)
}
