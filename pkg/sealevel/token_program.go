package sealevel

import (
	"errors"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/stakeflow/stakeflow/pkg/safemath"
	"k8s.io/klog/v2"
)

const (
	TokenInstrTypeTransfer           = 3
	TokenInstrTypeSetAuthority       = 6
	TokenInstrTypeMintTo             = 7
	TokenInstrTypeMintToChecked      = 14
	TokenInstrTypeInitializeAccount3 = 18
	TokenInstrTypeInitializeMint2    = 20
)

const (
	TokenAuthorityTypeMintTokens    = 0
	TokenAuthorityTypeFreezeAccount = 1
	TokenAuthorityTypeAccountOwner  = 2
	TokenAuthorityTypeCloseAccount  = 3
)

var (
	TokenErrNotRentExempt             = errors.New("TokenErrNotRentExempt")
	TokenErrInsufficientFunds         = errors.New("TokenErrInsufficientFunds")
	TokenErrInvalidMint               = errors.New("TokenErrInvalidMint")
	TokenErrMintMismatch              = errors.New("TokenErrMintMismatch")
	TokenErrOwnerMismatch             = errors.New("TokenErrOwnerMismatch")
	TokenErrFixedSupply               = errors.New("TokenErrFixedSupply")
	TokenErrAlreadyInUse              = errors.New("TokenErrAlreadyInUse")
	TokenErrUninitializedState        = errors.New("TokenErrUninitializedState")
	TokenErrInvalidInstruction        = errors.New("TokenErrInvalidInstruction")
	TokenErrOverflow                  = errors.New("TokenErrOverflow")
	TokenErrAuthorityTypeNotSupported = errors.New("TokenErrAuthorityTypeNotSupported")
	TokenErrAccountFrozen             = errors.New("TokenErrAccountFrozen")
	TokenErrMintDecimalsMismatch      = errors.New("TokenErrMintDecimalsMismatch")
)

var tokenErrCodes = map[error]uint32{
	TokenErrNotRentExempt:             0,
	TokenErrInsufficientFunds:         1,
	TokenErrInvalidMint:               2,
	TokenErrMintMismatch:              3,
	TokenErrOwnerMismatch:             4,
	TokenErrFixedSupply:               5,
	TokenErrAlreadyInUse:              6,
	TokenErrUninitializedState:        9,
	TokenErrInvalidInstruction:        12,
	TokenErrOverflow:                  14,
	TokenErrAuthorityTypeNotSupported: 15,
	TokenErrAccountFrozen:             17,
	TokenErrMintDecimalsMismatch:      18,
}

func TokenErrCode(err error) (uint32, bool) {
	for tokenErr, code := range tokenErrCodes {
		if errors.Is(err, tokenErr) {
			return code, true
		}
	}
	return 0, false
}

type TokenInstrInitializeMint2 struct {
	Decimals        uint8
	MintAuthority   solana.PublicKey
	FreezeAuthority *solana.PublicKey
}

type TokenInstrInitializeAccount3 struct {
	Owner solana.PublicKey
}

type TokenInstrTransfer struct {
	Amount uint64
}

type TokenInstrMintTo struct {
	Amount uint64
}

type TokenInstrMintToChecked struct {
	Amount   uint64
	Decimals uint8
}

type TokenInstrSetAuthority struct {
	AuthorityType uint8
	NewAuthority  *solana.PublicKey
}

// instruction data carries options as a one byte tag, unlike account state
func readInstrOptionPubkey(decoder *bin.Decoder) (*solana.PublicKey, error) {
	tag, err := decoder.ReadByte()
	if err != nil {
		return nil, err
	}
	switch tag {
	case 0:
		return nil, nil
	case 1:
		pkBytes, err := decoder.ReadBytes(solana.PublicKeyLength)
		if err != nil {
			return nil, err
		}
		pk := solana.PublicKeyFromBytes(pkBytes)
		return &pk, nil
	default:
		return nil, TokenErrInvalidInstruction
	}
}

func writeInstrOptionPubkey(encoder *bin.Encoder, pk *solana.PublicKey) error {
	if pk == nil {
		return encoder.WriteByte(0)
	}
	err := encoder.WriteByte(1)
	if err != nil {
		return err
	}
	return encoder.WriteBytes(pk[:], false)
}

func (instr *TokenInstrInitializeMint2) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	instr.Decimals, err = decoder.ReadByte()
	if err != nil {
		return err
	}

	pk, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return err
	}
	copy(instr.MintAuthority[:], pk)

	instr.FreezeAuthority, err = readInstrOptionPubkey(decoder)
	return err
}

func (instr *TokenInstrInitializeMint2) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteByte(TokenInstrTypeInitializeMint2)
	if err != nil {
		return err
	}
	err = encoder.WriteByte(instr.Decimals)
	if err != nil {
		return err
	}
	err = encoder.WriteBytes(instr.MintAuthority[:], false)
	if err != nil {
		return err
	}
	return writeInstrOptionPubkey(encoder, instr.FreezeAuthority)
}

func (instr *TokenInstrInitializeAccount3) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	pk, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return err
	}
	copy(instr.Owner[:], pk)
	return nil
}

func (instr *TokenInstrInitializeAccount3) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteByte(TokenInstrTypeInitializeAccount3)
	if err != nil {
		return err
	}
	return encoder.WriteBytes(instr.Owner[:], false)
}

func (instr *TokenInstrTransfer) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	instr.Amount, err = decoder.ReadUint64(bin.LE)
	return err
}

func (instr *TokenInstrTransfer) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteByte(TokenInstrTypeTransfer)
	if err != nil {
		return err
	}
	return encoder.WriteUint64(instr.Amount, bin.LE)
}

func (instr *TokenInstrMintTo) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	instr.Amount, err = decoder.ReadUint64(bin.LE)
	return err
}

func (instr *TokenInstrMintTo) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteByte(TokenInstrTypeMintTo)
	if err != nil {
		return err
	}
	return encoder.WriteUint64(instr.Amount, bin.LE)
}

func (instr *TokenInstrMintToChecked) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	instr.Amount, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}
	instr.Decimals, err = decoder.ReadByte()
	return err
}

func (instr *TokenInstrMintToChecked) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteByte(TokenInstrTypeMintToChecked)
	if err != nil {
		return err
	}
	err = encoder.WriteUint64(instr.Amount, bin.LE)
	if err != nil {
		return err
	}
	return encoder.WriteByte(instr.Decimals)
}

func (instr *TokenInstrSetAuthority) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	instr.AuthorityType, err = decoder.ReadByte()
	if err != nil {
		return err
	}
	if instr.AuthorityType > TokenAuthorityTypeCloseAccount {
		return TokenErrInvalidInstruction
	}
	instr.NewAuthority, err = readInstrOptionPubkey(decoder)
	return err
}

func (instr *TokenInstrSetAuthority) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteByte(TokenInstrTypeSetAuthority)
	if err != nil {
		return err
	}
	err = encoder.WriteByte(instr.AuthorityType)
	if err != nil {
		return err
	}
	return writeInstrOptionPubkey(encoder, instr.NewAuthority)
}

func newTokenInitializeAccount3Instruction(account solana.PublicKey, mint solana.PublicKey, owner solana.PublicKey) Instruction {
	accountMetas := []AccountMeta{
		{Pubkey: account, IsSigner: false, IsWritable: true},
		{Pubkey: mint, IsSigner: false, IsWritable: false},
	}
	instr := &TokenInstrInitializeAccount3{Owner: owner}
	return Instruction{Accounts: accountMetas, Data: EncodeInstructionData(instr), ProgramId: TokenProgramAddr}
}

func newTokenTransferInstruction(source solana.PublicKey, destination solana.PublicKey, authority solana.PublicKey, amount uint64) Instruction {
	accountMetas := []AccountMeta{
		{Pubkey: source, IsSigner: false, IsWritable: true},
		{Pubkey: destination, IsSigner: false, IsWritable: true},
		{Pubkey: authority, IsSigner: true, IsWritable: false},
	}
	instr := &TokenInstrTransfer{Amount: amount}
	return Instruction{Accounts: accountMetas, Data: EncodeInstructionData(instr), ProgramId: TokenProgramAddr}
}

func newTokenMintToInstruction(mint solana.PublicKey, destination solana.PublicKey, authority solana.PublicKey, amount uint64) Instruction {
	accountMetas := []AccountMeta{
		{Pubkey: mint, IsSigner: false, IsWritable: true},
		{Pubkey: destination, IsSigner: false, IsWritable: true},
		{Pubkey: authority, IsSigner: true, IsWritable: false},
	}
	instr := &TokenInstrMintTo{Amount: amount}
	return Instruction{Accounts: accountMetas, Data: EncodeInstructionData(instr), ProgramId: TokenProgramAddr}
}

func newTokenSetAuthorityInstruction(target solana.PublicKey, currentAuthority solana.PublicKey, authorityType uint8, newAuthority *solana.PublicKey) Instruction {
	accountMetas := []AccountMeta{
		{Pubkey: target, IsSigner: false, IsWritable: true},
		{Pubkey: currentAuthority, IsSigner: true, IsWritable: false},
	}
	instr := &TokenInstrSetAuthority{AuthorityType: authorityType, NewAuthority: newAuthority}
	return Instruction{Accounts: accountMetas, Data: EncodeInstructionData(instr), ProgramId: TokenProgramAddr}
}

func TokenProgramExecute(execCtx *ExecutionCtx) error {
	err := execCtx.ComputeMeter.Consume(CUTokenProgramDefaultComputeUnits)
	if err != nil {
		return err
	}

	txCtx := execCtx.TransactionContext
	instrCtx, err := txCtx.CurrentInstructionCtx()
	if err != nil {
		return err
	}

	decoder := bin.NewBinDecoder(instrCtx.Data)

	instructionType, err := decoder.ReadByte()
	if err != nil {
		return TokenErrInvalidInstruction
	}

	switch instructionType {

	case TokenInstrTypeInitializeMint2:
		{
			var initMint TokenInstrInitializeMint2
			err = initMint.UnmarshalWithDecoder(decoder)
			if err != nil {
				return TokenErrInvalidInstruction
			}
			execCtx.log("Program log: Instruction: InitializeMint2")
			err = instrCtx.CheckNumOfInstructionAccounts(1)
			if err != nil {
				return err
			}
			return TokenProgramInitializeMint(execCtx, initMint)
		}

	case TokenInstrTypeInitializeAccount3:
		{
			var initAcct TokenInstrInitializeAccount3
			err = initAcct.UnmarshalWithDecoder(decoder)
			if err != nil {
				return TokenErrInvalidInstruction
			}
			execCtx.log("Program log: Instruction: InitializeAccount3")
			err = instrCtx.CheckNumOfInstructionAccounts(2)
			if err != nil {
				return err
			}
			return TokenProgramInitializeAccount(execCtx, initAcct.Owner)
		}

	case TokenInstrTypeTransfer:
		{
			var transfer TokenInstrTransfer
			err = transfer.UnmarshalWithDecoder(decoder)
			if err != nil {
				return TokenErrInvalidInstruction
			}
			execCtx.log("Program log: Instruction: Transfer")
			err = instrCtx.CheckNumOfInstructionAccounts(3)
			if err != nil {
				return err
			}
			return TokenProgramTransfer(execCtx, transfer.Amount)
		}

	case TokenInstrTypeMintTo:
		{
			var mintTo TokenInstrMintTo
			err = mintTo.UnmarshalWithDecoder(decoder)
			if err != nil {
				return TokenErrInvalidInstruction
			}
			execCtx.log("Program log: Instruction: MintTo")
			err = instrCtx.CheckNumOfInstructionAccounts(3)
			if err != nil {
				return err
			}
			return TokenProgramMintTo(execCtx, mintTo.Amount, nil)
		}

	case TokenInstrTypeMintToChecked:
		{
			var mintTo TokenInstrMintToChecked
			err = mintTo.UnmarshalWithDecoder(decoder)
			if err != nil {
				return TokenErrInvalidInstruction
			}
			execCtx.log("Program log: Instruction: MintToChecked")
			err = instrCtx.CheckNumOfInstructionAccounts(3)
			if err != nil {
				return err
			}
			return TokenProgramMintTo(execCtx, mintTo.Amount, &mintTo.Decimals)
		}

	case TokenInstrTypeSetAuthority:
		{
			var setAuthority TokenInstrSetAuthority
			err = setAuthority.UnmarshalWithDecoder(decoder)
			if err != nil {
				return TokenErrInvalidInstruction
			}
			execCtx.log("Program log: Instruction: SetAuthority")
			err = instrCtx.CheckNumOfInstructionAccounts(2)
			if err != nil {
				return err
			}
			return TokenProgramSetAuthority(execCtx, setAuthority.AuthorityType, setAuthority.NewAuthority)
		}

	default:
		return TokenErrInvalidInstruction
	}
}

func checkTokenRentExempt(execCtx *ExecutionCtx, acct *BorrowedAccount) error {
	rent, err := execCtx.SysvarCache.GetRent()
	if err != nil {
		return err
	}
	if !rent.IsExempt(acct.Lamports(), uint64(len(acct.Data()))) {
		return TokenErrNotRentExempt
	}
	return nil
}

// validateTokenAuthority requires the instruction account at authorityIdx to
// be expected and to have signed.
func validateTokenAuthority(txCtx *TransactionCtx, instrCtx *InstructionCtx, expected solana.PublicKey, authorityIdx uint64) error {
	authority, err := extractAddress(txCtx, instrCtx, authorityIdx)
	if err != nil {
		return err
	}
	if authority != expected {
		return TokenErrOwnerMismatch
	}
	isSigner, err := instrCtx.IsInstructionAccountSigner(authorityIdx)
	if err != nil {
		return err
	}
	if !isSigner {
		return InstrErrMissingRequiredSignature
	}
	return nil
}

func borrowTokenOwned(txCtx *TransactionCtx, instrCtx *InstructionCtx, instrAcctIdx uint64) (*BorrowedAccount, error) {
	acct, err := instrCtx.BorrowInstructionAccount(txCtx, instrAcctIdx)
	if err != nil {
		return nil, err
	}
	if acct.Owner() != TokenProgramAddr {
		acct.Drop()
		return nil, InstrErrIncorrectProgramId
	}
	return acct, nil
}

func TokenProgramInitializeMint(execCtx *ExecutionCtx, instr TokenInstrInitializeMint2) error {
	txCtx := execCtx.TransactionContext
	instrCtx, err := txCtx.CurrentInstructionCtx()
	if err != nil {
		return err
	}

	mintAcct, err := borrowTokenOwned(txCtx, instrCtx, 0)
	if err != nil {
		return err
	}
	defer mintAcct.Drop()

	mint, err := UnmarshalMint(mintAcct.Data())
	if err != nil {
		return err
	}
	if mint.IsInitialized {
		return TokenErrAlreadyInUse
	}

	err = checkTokenRentExempt(execCtx, mintAcct)
	if err != nil {
		return err
	}

	mintAuthority := instr.MintAuthority
	mint.MintAuthority = &mintAuthority
	mint.Decimals = instr.Decimals
	mint.IsInitialized = true
	mint.FreezeAuthority = instr.FreezeAuthority

	return mintAcct.SetData(mint.Marshal())
}

func TokenProgramInitializeAccount(execCtx *ExecutionCtx, owner solana.PublicKey) error {
	txCtx := execCtx.TransactionContext
	instrCtx, err := txCtx.CurrentInstructionCtx()
	if err != nil {
		return err
	}

	mintKey, err := extractAddress(txCtx, instrCtx, 1)
	if err != nil {
		return err
	}

	mintAcct, err := instrCtx.BorrowInstructionAccount(txCtx, 1)
	if err != nil {
		return err
	}
	if mintAcct.Owner() != TokenProgramAddr {
		mintAcct.Drop()
		return TokenErrInvalidMint
	}
	mint, err := UnmarshalMint(mintAcct.Data())
	mintAcct.Drop()
	if err != nil || !mint.IsInitialized {
		return TokenErrInvalidMint
	}

	newAcct, err := borrowTokenOwned(txCtx, instrCtx, 0)
	if err != nil {
		return err
	}
	defer newAcct.Drop()

	tokenAcct, err := UnmarshalTokenAccount(newAcct.Data())
	if err != nil {
		return err
	}
	if tokenAcct.IsInitialized() {
		return TokenErrAlreadyInUse
	}

	err = checkTokenRentExempt(execCtx, newAcct)
	if err != nil {
		return err
	}

	tokenAcct.Mint = mintKey
	tokenAcct.Owner = owner
	tokenAcct.Delegate = nil
	tokenAcct.DelegatedAmount = 0
	tokenAcct.State = TokenAccountStateInitialized

	return newAcct.SetData(tokenAcct.Marshal())
}

func TokenProgramTransfer(execCtx *ExecutionCtx, amount uint64) error {
	txCtx := execCtx.TransactionContext
	instrCtx, err := txCtx.CurrentInstructionCtx()
	if err != nil {
		return err
	}

	srcIdx, err := instrCtx.IndexOfInstructionAccountInTransaction(0)
	if err != nil {
		return err
	}
	dstIdx, err := instrCtx.IndexOfInstructionAccountInTransaction(1)
	if err != nil {
		return err
	}

	srcAcct, err := borrowTokenOwned(txCtx, instrCtx, 0)
	if err != nil {
		return err
	}
	defer srcAcct.Drop()

	src, err := UnmarshalTokenAccount(srcAcct.Data())
	if err != nil {
		return err
	}
	if !src.IsInitialized() {
		return TokenErrUninitializedState
	}
	if src.IsFrozen() {
		return TokenErrAccountFrozen
	}
	if src.Amount < amount {
		klog.V(2).Infof("token transfer: balance %d, need %d", src.Amount, amount)
		return TokenErrInsufficientFunds
	}

	err = validateTokenAuthority(txCtx, instrCtx, src.Owner, 2)
	if err != nil {
		return err
	}

	// a self-transfer only validates
	if srcIdx == dstIdx {
		return nil
	}

	dstAcct, err := borrowTokenOwned(txCtx, instrCtx, 1)
	if err != nil {
		return err
	}
	defer dstAcct.Drop()

	dst, err := UnmarshalTokenAccount(dstAcct.Data())
	if err != nil {
		return err
	}
	if !dst.IsInitialized() {
		return TokenErrUninitializedState
	}
	if dst.IsFrozen() {
		return TokenErrAccountFrozen
	}
	if src.Mint != dst.Mint {
		return TokenErrMintMismatch
	}

	src.Amount -= amount
	dst.Amount, err = safemath.CheckedAddU64(dst.Amount, amount)
	if err != nil {
		return TokenErrOverflow
	}

	err = srcAcct.SetData(src.Marshal())
	if err != nil {
		return err
	}
	return dstAcct.SetData(dst.Marshal())
}

// TokenProgramMintTo mints amount into the destination. A non-nil
// expectedDecimals must match the mint's decimals.
func TokenProgramMintTo(execCtx *ExecutionCtx, amount uint64, expectedDecimals *uint8) error {
	txCtx := execCtx.TransactionContext
	instrCtx, err := txCtx.CurrentInstructionCtx()
	if err != nil {
		return err
	}

	mintKey, err := extractAddress(txCtx, instrCtx, 0)
	if err != nil {
		return err
	}

	dstAcct, err := borrowTokenOwned(txCtx, instrCtx, 1)
	if err != nil {
		return err
	}
	defer dstAcct.Drop()

	dst, err := UnmarshalTokenAccount(dstAcct.Data())
	if err != nil {
		return err
	}
	if !dst.IsInitialized() {
		return TokenErrUninitializedState
	}
	if dst.IsFrozen() {
		return TokenErrAccountFrozen
	}
	if dst.Mint != mintKey {
		return TokenErrMintMismatch
	}

	mintAcct, err := borrowTokenOwned(txCtx, instrCtx, 0)
	if err != nil {
		return err
	}
	defer mintAcct.Drop()

	mint, err := UnmarshalMint(mintAcct.Data())
	if err != nil {
		return err
	}
	if !mint.IsInitialized {
		return TokenErrUninitializedState
	}
	if expectedDecimals != nil && *expectedDecimals != mint.Decimals {
		return TokenErrMintDecimalsMismatch
	}
	if mint.MintAuthority == nil {
		return TokenErrFixedSupply
	}

	err = validateTokenAuthority(txCtx, instrCtx, *mint.MintAuthority, 2)
	if err != nil {
		return err
	}

	dst.Amount, err = safemath.CheckedAddU64(dst.Amount, amount)
	if err != nil {
		return TokenErrOverflow
	}
	mint.Supply, err = safemath.CheckedAddU64(mint.Supply, amount)
	if err != nil {
		return TokenErrOverflow
	}

	err = dstAcct.SetData(dst.Marshal())
	if err != nil {
		return err
	}
	return mintAcct.SetData(mint.Marshal())
}

func TokenProgramSetAuthority(execCtx *ExecutionCtx, authorityType uint8, newAuthority *solana.PublicKey) error {
	txCtx := execCtx.TransactionContext
	instrCtx, err := txCtx.CurrentInstructionCtx()
	if err != nil {
		return err
	}

	target, err := borrowTokenOwned(txCtx, instrCtx, 0)
	if err != nil {
		return err
	}
	defer target.Drop()

	switch len(target.Data()) {
	case TokenAccountSize:
		tokenAcct, err := UnmarshalTokenAccount(target.Data())
		if err != nil {
			return err
		}
		if !tokenAcct.IsInitialized() {
			return TokenErrUninitializedState
		}
		if tokenAcct.IsFrozen() {
			return TokenErrAccountFrozen
		}

		switch authorityType {
		case TokenAuthorityTypeAccountOwner:
			err = validateTokenAuthority(txCtx, instrCtx, tokenAcct.Owner, 1)
			if err != nil {
				return err
			}
			if newAuthority == nil {
				return TokenErrInvalidInstruction
			}
			tokenAcct.Owner = *newAuthority
			tokenAcct.Delegate = nil
			tokenAcct.DelegatedAmount = 0

		case TokenAuthorityTypeCloseAccount:
			currentAuthority := tokenAcct.Owner
			if tokenAcct.CloseAuthority != nil {
				currentAuthority = *tokenAcct.CloseAuthority
			}
			err = validateTokenAuthority(txCtx, instrCtx, currentAuthority, 1)
			if err != nil {
				return err
			}
			tokenAcct.CloseAuthority = newAuthority

		default:
			return TokenErrAuthorityTypeNotSupported
		}

		return target.SetData(tokenAcct.Marshal())

	case MintSize:
		mint, err := UnmarshalMint(target.Data())
		if err != nil {
			return err
		}
		if !mint.IsInitialized {
			return TokenErrUninitializedState
		}

		switch authorityType {
		case TokenAuthorityTypeMintTokens:
			if mint.MintAuthority == nil {
				return TokenErrFixedSupply
			}
			err = validateTokenAuthority(txCtx, instrCtx, *mint.MintAuthority, 1)
			if err != nil {
				return err
			}
			mint.MintAuthority = newAuthority

		case TokenAuthorityTypeFreezeAccount:
			if mint.FreezeAuthority == nil {
				return TokenErrAuthorityTypeNotSupported
			}
			err = validateTokenAuthority(txCtx, instrCtx, *mint.FreezeAuthority, 1)
			if err != nil {
				return err
			}
			mint.FreezeAuthority = newAuthority

		default:
			return TokenErrAuthorityTypeNotSupported
		}

		return target.SetData(mint.Marshal())

	default:
		return InstrErrInvalidArgument
	}
}
