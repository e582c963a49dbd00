package sealevel

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stakeflow/stakeflow/pkg/accounts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenState_Layouts(t *testing.T) {
	authority := solana.PublicKey{1}
	mint := Mint{MintAuthority: &authority, Supply: 42, Decimals: 6, IsInitialized: true}
	mintBytes := mint.Marshal()
	assert.Equal(t, MintSize, len(mintBytes))

	decodedMint, err := UnmarshalMint(mintBytes)
	require.NoError(t, err)
	assert.Equal(t, authority, *decodedMint.MintAuthority)
	assert.Nil(t, decodedMint.FreezeAuthority)
	assert.Equal(t, uint64(42), decodedMint.Supply)

	tokenAcct := TokenAccount{Mint: solana.PublicKey{2}, Owner: solana.PublicKey{3}, Amount: 7, State: TokenAccountStateInitialized}
	acctBytes := tokenAcct.Marshal()
	assert.Equal(t, TokenAccountSize, len(acctBytes))

	// amount sits right after mint and owner
	assert.Equal(t, byte(7), acctBytes[64])

	_, err = UnmarshalTokenAccount(acctBytes[:100])
	assert.ErrorIs(t, err, InstrErrInvalidAccountData)
}

func newUninitializedTokenOwned(l *testLedger, size uint64) solana.PublicKey {
	key := newRandomPubkey(l.t)
	l.set(accounts.Account{Key: key, Lamports: l.rent.MinimumBalance(size), Data: make([]byte, size), Owner: TokenProgramAddr})
	return key
}

func initializeMint2Instruction(mint solana.PublicKey, authority solana.PublicKey, decimals uint8) Instruction {
	instr := &TokenInstrInitializeMint2{Decimals: decimals, MintAuthority: authority}
	return Instruction{
		Accounts:  []AccountMeta{{Pubkey: mint, IsWritable: true}},
		Data:      EncodeInstructionData(instr),
		ProgramId: TokenProgramAddr,
	}
}

func mintToCheckedInstruction(mint solana.PublicKey, dst solana.PublicKey, authority solana.PublicKey, amount uint64, decimals uint8) Instruction {
	ix := newTokenMintToInstruction(mint, dst, authority, amount)
	ix.Data = EncodeInstructionData(&TokenInstrMintToChecked{Amount: amount, Decimals: decimals})
	return ix
}

func TestExecute_Tx_Token_Program_Mint_Lifecycle(t *testing.T) {
	ledger := newTestLedger(t)
	authority := ledger.newWallet(1_000_000)
	owner := ledger.newWallet(0)

	mint := newUninitializedTokenOwned(ledger, MintSize)
	err := ledger.process(initializeMint2Instruction(mint, authority, 6))
	require.NoError(t, err)
	assert.True(t, ledger.mint(mint).IsInitialized)
	assert.Equal(t, uint8(6), ledger.mint(mint).Decimals)

	err = ledger.process(initializeMint2Instruction(mint, authority, 6))
	assert.ErrorIs(t, err, TokenErrAlreadyInUse)

	acct := newUninitializedTokenOwned(ledger, TokenAccountSize)
	err = ledger.process(newTokenInitializeAccount3Instruction(acct, mint, owner))
	require.NoError(t, err)
	assert.Equal(t, owner, ledger.tokenAccount(acct).Owner)
	assert.Equal(t, mint, ledger.tokenAccount(acct).Mint)

	err = ledger.process(newTokenMintToInstruction(mint, acct, authority, 500))
	require.NoError(t, err)
	assert.Equal(t, uint64(500), ledger.tokenAccount(acct).Amount)
	assert.Equal(t, uint64(500), ledger.mint(mint).Supply)

	err = ledger.process(mintToCheckedInstruction(mint, acct, authority, 5, 9))
	assert.ErrorIs(t, err, TokenErrMintDecimalsMismatch)

	err = ledger.process(mintToCheckedInstruction(mint, acct, authority, 5, 6))
	require.NoError(t, err)
	assert.Equal(t, uint64(505), ledger.mint(mint).Supply)
}

func TestExecute_Tx_Token_Program_InitializeAccount_NotRentExempt(t *testing.T) {
	ledger := newTestLedger(t)
	authority := ledger.newWallet(0)
	mint := ledger.newMint(authority, 6)

	acct := newUninitializedTokenOwned(ledger, TokenAccountSize)
	underfunded := ledger.get(acct)
	underfunded.Lamports = 1
	ledger.set(underfunded)

	err := ledger.process(newTokenInitializeAccount3Instruction(acct, mint, authority))
	assert.ErrorIs(t, err, TokenErrNotRentExempt)
}

func TestExecute_Tx_Token_Program_InitializeAccount_InvalidMint(t *testing.T) {
	ledger := newTestLedger(t)
	owner := ledger.newWallet(0)
	notAMint := newUninitializedTokenOwned(ledger, MintSize)
	acct := newUninitializedTokenOwned(ledger, TokenAccountSize)

	err := ledger.process(newTokenInitializeAccount3Instruction(acct, notAMint, owner))
	assert.ErrorIs(t, err, TokenErrInvalidMint)
}

func TestExecute_Tx_Token_Program_Transfer(t *testing.T) {
	ledger := newTestLedger(t)
	authority := ledger.newWallet(0)
	alice := ledger.newWallet(0)
	bob := ledger.newWallet(0)
	mint := ledger.newMint(authority, 6)

	src := ledger.newTokenAccount(mint, alice, 1_000)
	dst := ledger.newTokenAccount(mint, bob, 0)

	err := ledger.process(newTokenTransferInstruction(src, dst, alice, 400))
	require.NoError(t, err)
	assert.Equal(t, uint64(600), ledger.tokenAccount(src).Amount)
	assert.Equal(t, uint64(400), ledger.tokenAccount(dst).Amount)

	err = ledger.process(newTokenTransferInstruction(src, dst, alice, 601))
	assert.ErrorIs(t, err, TokenErrInsufficientFunds)

	err = ledger.process(newTokenTransferInstruction(src, dst, bob, 1))
	assert.ErrorIs(t, err, TokenErrOwnerMismatch)

	ix := newTokenTransferInstruction(src, dst, alice, 1)
	ix.Accounts[2].IsSigner = false
	err = ledger.process(ix)
	assert.ErrorIs(t, err, InstrErrMissingRequiredSignature)

	otherMint := ledger.newMint(authority, 6)
	foreign := ledger.newTokenAccount(otherMint, bob, 0)
	err = ledger.process(newTokenTransferInstruction(src, foreign, alice, 1))
	assert.ErrorIs(t, err, TokenErrMintMismatch)

	code, ok := CustomErrorCode(err)
	assert.True(t, ok)
	assert.Equal(t, uint32(3), code)
}

func TestExecute_Tx_Token_Program_Transfer_Frozen(t *testing.T) {
	ledger := newTestLedger(t)
	authority := ledger.newWallet(0)
	alice := ledger.newWallet(0)
	mint := ledger.newMint(authority, 6)
	src := ledger.newTokenAccount(mint, alice, 10)
	dst := ledger.newTokenAccount(mint, alice, 0)

	frozen := ledger.tokenAccount(src)
	frozen.State = TokenAccountStateFrozen
	acct := ledger.get(src)
	acct.Data = frozen.Marshal()
	ledger.set(acct)

	err := ledger.process(newTokenTransferInstruction(src, dst, alice, 1))
	assert.ErrorIs(t, err, TokenErrAccountFrozen)
}

func TestExecute_Tx_Token_Program_MintTo_Errors(t *testing.T) {
	ledger := newTestLedger(t)
	authority := ledger.newWallet(0)
	impostor := ledger.newWallet(0)
	owner := ledger.newWallet(0)
	mint := ledger.newMint(authority, 6)
	acct := ledger.newTokenAccount(mint, owner, 0)

	err := ledger.process(newTokenMintToInstruction(mint, acct, impostor, 1))
	assert.ErrorIs(t, err, TokenErrOwnerMismatch)

	otherMint := ledger.newMint(authority, 6)
	err = ledger.process(newTokenMintToInstruction(otherMint, acct, authority, 1))
	assert.ErrorIs(t, err, TokenErrMintMismatch)

	full := ledger.tokenAccount(acct)
	full.Amount = ^uint64(0)
	raw := ledger.get(acct)
	raw.Data = full.Marshal()
	ledger.set(raw)
	err = ledger.process(newTokenMintToInstruction(mint, acct, authority, 1))
	assert.ErrorIs(t, err, TokenErrOverflow)
}

func TestExecute_Tx_Token_Program_SetAuthority(t *testing.T) {
	ledger := newTestLedger(t)
	authority := ledger.newWallet(0)
	newAuthority := ledger.newWallet(0)
	owner := ledger.newWallet(0)
	mint := ledger.newMint(authority, 6)
	acct := ledger.newTokenAccount(mint, owner, 0)

	err := ledger.process(newTokenSetAuthorityInstruction(mint, authority, TokenAuthorityTypeMintTokens, &newAuthority))
	require.NoError(t, err)
	assert.Equal(t, newAuthority, *ledger.mint(mint).MintAuthority)

	// the previous authority can no longer mint
	err = ledger.process(newTokenMintToInstruction(mint, acct, authority, 1))
	assert.ErrorIs(t, err, TokenErrOwnerMismatch)

	err = ledger.process(newTokenMintToInstruction(mint, acct, newAuthority, 1))
	require.NoError(t, err)

	err = ledger.process(newTokenSetAuthorityInstruction(mint, newAuthority, TokenAuthorityTypeMintTokens, nil))
	require.NoError(t, err)
	assert.Nil(t, ledger.mint(mint).MintAuthority)

	err = ledger.process(newTokenMintToInstruction(mint, acct, newAuthority, 1))
	assert.ErrorIs(t, err, TokenErrFixedSupply)

	err = ledger.process(newTokenSetAuthorityInstruction(acct, owner, TokenAuthorityTypeAccountOwner, &newAuthority))
	require.NoError(t, err)
	assert.Equal(t, newAuthority, ledger.tokenAccount(acct).Owner)

	err = ledger.process(newTokenSetAuthorityInstruction(acct, newAuthority, TokenAuthorityTypeMintTokens, &owner))
	assert.ErrorIs(t, err, TokenErrAuthorityTypeNotSupported)
}
