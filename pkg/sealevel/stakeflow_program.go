package sealevel

import (
	"bytes"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/stakeflow/stakeflow/pkg/accounts"
	"github.com/stakeflow/stakeflow/pkg/safemath"
	"github.com/stakeflow/stakeflow/pkg/stakemath"
	"k8s.io/klog/v2"
)

const StakeFlowMaxPenaltyBps = stakemath.BpsDenominator

type StakeFlowInitializeConfigArgs struct {
	AprBps                 uint16
	MinLockDuration        int64
	EarlyUnstakePenaltyBps uint16
}

type StakeFlowAmountArgs struct {
	Amount uint64
}

func (instr *StakeFlowInitializeConfigArgs) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	instr.AprBps, err = decoder.ReadUint16(bin.LE)
	if err != nil {
		return err
	}
	instr.MinLockDuration, err = decoder.ReadInt64(bin.LE)
	if err != nil {
		return err
	}
	instr.EarlyUnstakePenaltyBps, err = decoder.ReadUint16(bin.LE)
	return err
}

func (instr *StakeFlowAmountArgs) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	instr.Amount, err = decoder.ReadUint64(bin.LE)
	return err
}

// StakeFlowProgramExecute dispatches on the 8 byte instruction discriminator.
func StakeFlowProgramExecute(execCtx *ExecutionCtx) error {
	err := execCtx.ComputeMeter.Consume(CUStakeFlowProgramDefaultComputeUnits)
	if err != nil {
		return err
	}

	txCtx := execCtx.TransactionContext
	instrCtx, err := txCtx.CurrentInstructionCtx()
	if err != nil {
		return err
	}

	if len(instrCtx.Data) < 8 {
		return InstrErrInvalidInstructionData
	}

	var disc [8]byte
	copy(disc[:], instrCtx.Data[:8])
	decoder := bin.NewBinDecoder(instrCtx.Data[8:])

	switch disc {
	case StakeFlowInstrInitializeConfig:
		var args StakeFlowInitializeConfigArgs
		if err = args.UnmarshalWithDecoder(decoder); err != nil {
			return InstrErrInvalidInstructionData
		}
		execCtx.log("Program log: Instruction: InitializeConfig")
		err = StakeFlowInitializeConfig(execCtx, args)

	case StakeFlowInstrCreateUserStake:
		execCtx.log("Program log: Instruction: CreateUserStake")
		err = StakeFlowCreateUserStake(execCtx)

	case StakeFlowInstrStake:
		var args StakeFlowAmountArgs
		if err = args.UnmarshalWithDecoder(decoder); err != nil {
			return InstrErrInvalidInstructionData
		}
		execCtx.log("Program log: Instruction: Stake")
		err = StakeFlowStake(execCtx, args.Amount)

	case StakeFlowInstrUnstake:
		var args StakeFlowAmountArgs
		if err = args.UnmarshalWithDecoder(decoder); err != nil {
			return InstrErrInvalidInstructionData
		}
		execCtx.log("Program log: Instruction: Unstake")
		err = StakeFlowUnstake(execCtx, args.Amount)

	case StakeFlowInstrClaimRewards:
		execCtx.log("Program log: Instruction: ClaimRewards")
		err = StakeFlowClaimRewards(execCtx)

	default:
		return InstrErrInvalidInstructionData
	}

	if _, ok := StakeFlowErrCode(err); ok {
		execCtx.log(anchorErrorLog(err))
	}
	return err
}

func requireSigner(instrCtx *InstructionCtx, instrAcctIdx uint64) error {
	isSigner, err := instrCtx.IsInstructionAccountSigner(instrAcctIdx)
	if err != nil {
		return err
	}
	if !isSigner {
		return InstrErrMissingRequiredSignature
	}
	return nil
}

// readInstructionAccount returns a copy of the instruction account at
// instrAcctIdx without holding a borrow on it.
func readInstructionAccount(txCtx *TransactionCtx, instrCtx *InstructionCtx, instrAcctIdx uint64) (*accounts.Account, error) {
	acct, err := instrCtx.BorrowInstructionAccount(txCtx, instrAcctIdx)
	if err != nil {
		return nil, err
	}
	defer acct.Drop()
	return acct.Account.Clone(), nil
}

func isUnusedAccount(acct *accounts.Account) bool {
	return acct.Owner == SystemProgramAddr && len(acct.Data) == 0
}

// requirePda re-derives the address from seeds and a stored bump.
func (execCtx *ExecutionCtx) requirePda(seeds [][]byte, bump uint8, expected solana.PublicKey) error {
	addr, err := execCtx.createProgramAddressMetered(withBump(seeds, bump), StakeFlowProgramAddr)
	if err != nil {
		return err
	}
	if addr != expected {
		klog.V(2).Infof("pda mismatch: got %s, derived %s", expected, solana.PublicKey(addr))
		return InstrErrInvalidSeeds
	}
	return nil
}

// findPda searches the bump for seeds and requires the result to be expected.
func (execCtx *ExecutionCtx) findPda(seeds [][]byte, expected solana.PublicKey) (uint8, error) {
	addr, bump, err := execCtx.findProgramAddressMetered(seeds, StakeFlowProgramAddr)
	if err != nil {
		return 0, err
	}
	if addr != expected {
		klog.V(2).Infof("pda mismatch: got %s, derived %s", expected, solana.PublicKey(addr))
		return 0, InstrErrInvalidSeeds
	}
	return bump, nil
}

func configSeeds() [][]byte {
	return [][]byte{[]byte(StakeFlowConfigSeed)}
}

func stakeVaultSeeds(config solana.PublicKey) [][]byte {
	return [][]byte{[]byte(StakeFlowStakeVaultSeed), config[:]}
}

func penaltyVaultSeeds(config solana.PublicKey) [][]byte {
	return [][]byte{[]byte(StakeFlowPenaltyVaultSeed), config[:]}
}

func rewardMintAuthoritySeeds() [][]byte {
	return [][]byte{[]byte(StakeFlowRewardMintAuthoritySeed)}
}

func userStakeSeeds(owner solana.PublicKey) [][]byte {
	return [][]byte{[]byte(StakeFlowUserStakeSeed), owner[:]}
}

func withBump(seeds [][]byte, bump uint8) [][]byte {
	return append(append([][]byte{}, seeds...), []byte{bump})
}

// loadConfig reads and validates the Config account at instrAcctIdx.
func (execCtx *ExecutionCtx) loadConfig(instrCtx *InstructionCtx, instrAcctIdx uint64) (*StakeFlowConfig, solana.PublicKey, error) {
	acct, err := readInstructionAccount(execCtx.TransactionContext, instrCtx, instrAcctIdx)
	if err != nil {
		return nil, solana.PublicKey{}, err
	}
	if acct.Owner != StakeFlowProgramAddr || len(acct.Data) == 0 {
		return nil, acct.Key, StakeFlowErrAccountNotInitialized
	}
	config, err := UnmarshalStakeFlowConfig(acct.Data)
	if err != nil {
		return nil, acct.Key, err
	}
	err = execCtx.requirePda(configSeeds(), config.Bump, acct.Key)
	if err != nil {
		return nil, acct.Key, err
	}
	return config, acct.Key, nil
}

// loadUserStake reads the UserStake at instrAcctIdx and checks that it is
// the record of owner.
func (execCtx *ExecutionCtx) loadUserStake(instrCtx *InstructionCtx, instrAcctIdx uint64, owner solana.PublicKey) (*StakeFlowUserStake, error) {
	acct, err := readInstructionAccount(execCtx.TransactionContext, instrCtx, instrAcctIdx)
	if err != nil {
		return nil, err
	}
	if acct.Owner != StakeFlowProgramAddr || len(acct.Data) == 0 {
		return nil, StakeFlowErrAccountNotInitialized
	}
	userStake, err := UnmarshalStakeFlowUserStake(acct.Data)
	if err != nil {
		return nil, err
	}
	if userStake.Owner != owner {
		return nil, StakeFlowErrUnauthorized
	}
	err = execCtx.requirePda(userStakeSeeds(owner), userStake.Bump, acct.Key)
	if err != nil {
		return nil, err
	}
	return userStake, nil
}

func loadTokenAccount(txCtx *TransactionCtx, instrCtx *InstructionCtx, instrAcctIdx uint64) (*TokenAccount, solana.PublicKey, error) {
	acct, err := readInstructionAccount(txCtx, instrCtx, instrAcctIdx)
	if err != nil {
		return nil, solana.PublicKey{}, err
	}
	if acct.Owner != TokenProgramAddr {
		return nil, acct.Key, InstrErrInvalidAccountOwner
	}
	tokenAcct, err := UnmarshalTokenAccount(acct.Data)
	if err != nil {
		return nil, acct.Key, err
	}
	if !tokenAcct.IsInitialized() {
		return nil, acct.Key, StakeFlowErrAccountNotInitialized
	}
	return tokenAcct, acct.Key, nil
}

func loadMint(txCtx *TransactionCtx, instrCtx *InstructionCtx, instrAcctIdx uint64) (*Mint, solana.PublicKey, error) {
	acct, err := readInstructionAccount(txCtx, instrCtx, instrAcctIdx)
	if err != nil {
		return nil, solana.PublicKey{}, err
	}
	if acct.Owner != TokenProgramAddr {
		return nil, acct.Key, StakeFlowErrInvalidMint
	}
	mint, err := UnmarshalMint(acct.Data)
	if err != nil || !mint.IsInitialized {
		return nil, acct.Key, StakeFlowErrInvalidMint
	}
	return mint, acct.Key, nil
}

func writeInstructionAccountData(txCtx *TransactionCtx, instrCtx *InstructionCtx, instrAcctIdx uint64, data []byte) error {
	acct, err := instrCtx.BorrowInstructionAccount(txCtx, instrAcctIdx)
	if err != nil {
		return err
	}
	defer acct.Drop()
	return acct.SetData(data)
}

func (execCtx *ExecutionCtx) unixTimestamp() (int64, error) {
	clock, err := execCtx.SysvarCache.GetClock()
	if err != nil {
		return 0, err
	}
	return clock.UnixTimestamp, nil
}

// instruction accounts of initialize_config
const (
	initConfigIdxAdmin = iota
	initConfigIdxStakeMint
	initConfigIdxRewardMint
	initConfigIdxConfig
	initConfigIdxStakeVault
	initConfigIdxPenaltyVault
	initConfigIdxRewardMintAuthority
	initConfigIdxTokenProgram
	initConfigIdxSystemProgram
)

// StakeFlowInitializeConfig creates the Config, both vaults and the reward
// mint authority marker, and hands the reward mint over to the authority PDA.
// Every check runs before the first mutation.
func StakeFlowInitializeConfig(execCtx *ExecutionCtx, args StakeFlowInitializeConfigArgs) error {
	txCtx := execCtx.TransactionContext
	instrCtx, err := txCtx.CurrentInstructionCtx()
	if err != nil {
		return err
	}

	err = instrCtx.CheckNumOfInstructionAccounts(9)
	if err != nil {
		return err
	}
	err = checkProgramAccount(txCtx, instrCtx, initConfigIdxTokenProgram, TokenProgramAddr)
	if err != nil {
		return err
	}
	err = checkProgramAccount(txCtx, instrCtx, initConfigIdxSystemProgram, SystemProgramAddr)
	if err != nil {
		return err
	}

	err = requireSigner(instrCtx, initConfigIdxAdmin)
	if err != nil {
		return err
	}
	admin, err := extractAddress(txCtx, instrCtx, initConfigIdxAdmin)
	if err != nil {
		return err
	}

	configAcct, err := readInstructionAccount(txCtx, instrCtx, initConfigIdxConfig)
	if err != nil {
		return err
	}
	configKey := configAcct.Key
	configBump, err := execCtx.findPda(configSeeds(), configKey)
	if err != nil {
		return err
	}
	if !isUnusedAccount(configAcct) {
		return StakeFlowErrAlreadyInitialized
	}

	_, stakeMintKey, err := loadMint(txCtx, instrCtx, initConfigIdxStakeMint)
	if err != nil {
		return err
	}
	rewardMint, rewardMintKey, err := loadMint(txCtx, instrCtx, initConfigIdxRewardMint)
	if err != nil {
		return err
	}
	if stakeMintKey == rewardMintKey {
		return StakeFlowErrInvalidMint
	}
	if rewardMint.MintAuthority == nil {
		return StakeFlowErrInvalidMint
	}
	if *rewardMint.MintAuthority != admin {
		return StakeFlowErrAuthorityMismatch
	}

	if args.EarlyUnstakePenaltyBps > StakeFlowMaxPenaltyBps || args.MinLockDuration < 0 {
		return StakeFlowErrInvalidAmount
	}

	stakeVault, err := extractAddress(txCtx, instrCtx, initConfigIdxStakeVault)
	if err != nil {
		return err
	}
	stakeVaultBump, err := execCtx.findPda(stakeVaultSeeds(configKey), stakeVault)
	if err != nil {
		return err
	}

	penaltyVault, err := extractAddress(txCtx, instrCtx, initConfigIdxPenaltyVault)
	if err != nil {
		return err
	}
	penaltyVaultBump, err := execCtx.findPda(penaltyVaultSeeds(configKey), penaltyVault)
	if err != nil {
		return err
	}

	authority, err := extractAddress(txCtx, instrCtx, initConfigIdxRewardMintAuthority)
	if err != nil {
		return err
	}
	authorityBump, err := execCtx.findPda(rewardMintAuthoritySeeds(), authority)
	if err != nil {
		return err
	}

	for _, idx := range []uint64{initConfigIdxStakeVault, initConfigIdxPenaltyVault, initConfigIdxRewardMintAuthority} {
		acct, err := readInstructionAccount(txCtx, instrCtx, idx)
		if err != nil {
			return err
		}
		if !isUnusedAccount(acct) {
			return StakeFlowErrAlreadyInitialized
		}
	}

	err = execCtx.createPdaAccount(admin, configKey, StakeFlowConfigSize, StakeFlowProgramAddr, withBump(configSeeds(), configBump))
	if err != nil {
		return err
	}

	vaults := []struct {
		addr  solana.PublicKey
		seeds [][]byte
	}{
		{stakeVault, withBump(stakeVaultSeeds(configKey), stakeVaultBump)},
		{penaltyVault, withBump(penaltyVaultSeeds(configKey), penaltyVaultBump)},
	}
	for _, vault := range vaults {
		err = execCtx.createPdaAccount(admin, vault.addr, TokenAccountSize, TokenProgramAddr, vault.seeds)
		if err != nil {
			return err
		}
		err = execCtx.NativeInvoke(newTokenInitializeAccount3Instruction(vault.addr, stakeMintKey, configKey), nil)
		if err != nil {
			return err
		}
	}

	err = execCtx.createPdaAccount(admin, authority, StakeFlowRewardMintAuthoritySize, StakeFlowProgramAddr, withBump(rewardMintAuthoritySeeds(), authorityBump))
	if err != nil {
		return err
	}
	err = writeInstructionAccountData(txCtx, instrCtx, initConfigIdxRewardMintAuthority, stakeFlowMarker())
	if err != nil {
		return err
	}

	err = execCtx.NativeInvoke(newTokenSetAuthorityInstruction(rewardMintKey, admin, TokenAuthorityTypeMintTokens, &authority), nil)
	if err != nil {
		return err
	}

	config := StakeFlowConfig{
		Admin:                  admin,
		StakeMint:              stakeMintKey,
		RewardMint:             rewardMintKey,
		AprBps:                 args.AprBps,
		MinLockDuration:        args.MinLockDuration,
		EarlyUnstakePenaltyBps: args.EarlyUnstakePenaltyBps,
		Bump:                   configBump,
		StakeVaultBump:         stakeVaultBump,
		PenaltyVaultBump:       penaltyVaultBump,
		RewardMintAuthBump:     authorityBump,
	}

	klog.V(2).Infof("stakeflow config %s initialized by %s (apr %d bps, lock %ds, penalty %d bps)",
		configKey, admin, args.AprBps, args.MinLockDuration, args.EarlyUnstakePenaltyBps)

	return writeInstructionAccountData(txCtx, instrCtx, initConfigIdxConfig, config.Marshal())
}

// instruction accounts of create_user_stake
const (
	createUserIdxOwner = iota
	createUserIdxConfig
	createUserIdxUserStake
	createUserIdxSystemProgram
)

func StakeFlowCreateUserStake(execCtx *ExecutionCtx) error {
	txCtx := execCtx.TransactionContext
	instrCtx, err := txCtx.CurrentInstructionCtx()
	if err != nil {
		return err
	}

	err = instrCtx.CheckNumOfInstructionAccounts(4)
	if err != nil {
		return err
	}
	err = checkProgramAccount(txCtx, instrCtx, createUserIdxSystemProgram, SystemProgramAddr)
	if err != nil {
		return err
	}

	err = requireSigner(instrCtx, createUserIdxOwner)
	if err != nil {
		return err
	}
	owner, err := extractAddress(txCtx, instrCtx, createUserIdxOwner)
	if err != nil {
		return err
	}

	_, _, err = execCtx.loadConfig(instrCtx, createUserIdxConfig)
	if err != nil {
		return err
	}

	userAcct, err := readInstructionAccount(txCtx, instrCtx, createUserIdxUserStake)
	if err != nil {
		return err
	}
	bump, err := execCtx.findPda(userStakeSeeds(owner), userAcct.Key)
	if err != nil {
		return err
	}
	if !isUnusedAccount(userAcct) {
		return StakeFlowErrAlreadyInitialized
	}

	now, err := execCtx.unixTimestamp()
	if err != nil {
		return err
	}

	err = execCtx.createPdaAccount(owner, userAcct.Key, StakeFlowUserStakeSize, StakeFlowProgramAddr, withBump(userStakeSeeds(owner), bump))
	if err != nil {
		return err
	}

	userStake := StakeFlowUserStake{
		Owner:        owner,
		LastUpdateTs: now,
		LockUntilTs:  now,
		Bump:         bump,
	}
	return writeInstructionAccountData(txCtx, instrCtx, createUserIdxUserStake, userStake.Marshal())
}

// instruction accounts of stake and unstake
const (
	stakeIdxOwner = iota
	stakeIdxConfig
	stakeIdxStakeVault
	stakeIdxOwnerStakeAta
	stakeIdxUserStake
	stakeIdxTokenProgram
)

const (
	unstakeIdxPenaltyVault = iota + stakeIdxTokenProgram
	unstakeIdxTokenProgram
)

type stakePosition struct {
	owner      solana.PublicKey
	config     *StakeFlowConfig
	configKey  solana.PublicKey
	userStake  *StakeFlowUserStake
	vault      solana.PublicKey
	ownerAta   solana.PublicKey
	ataBalance uint64
}

// loadStakePosition runs the checks shared by stake and unstake.
func (execCtx *ExecutionCtx) loadStakePosition(instrCtx *InstructionCtx) (*stakePosition, error) {
	txCtx := execCtx.TransactionContext

	err := requireSigner(instrCtx, stakeIdxOwner)
	if err != nil {
		return nil, err
	}
	owner, err := extractAddress(txCtx, instrCtx, stakeIdxOwner)
	if err != nil {
		return nil, err
	}

	config, configKey, err := execCtx.loadConfig(instrCtx, stakeIdxConfig)
	if err != nil {
		return nil, err
	}

	userStake, err := execCtx.loadUserStake(instrCtx, stakeIdxUserStake, owner)
	if err != nil {
		return nil, err
	}

	vault, vaultKey, err := loadTokenAccount(txCtx, instrCtx, stakeIdxStakeVault)
	if err != nil {
		return nil, err
	}
	err = execCtx.requirePda(stakeVaultSeeds(configKey), config.StakeVaultBump, vaultKey)
	if err != nil {
		return nil, err
	}

	ata, ataKey, err := loadTokenAccount(txCtx, instrCtx, stakeIdxOwnerStakeAta)
	if err != nil {
		return nil, err
	}
	if ata.Owner != owner {
		return nil, StakeFlowErrUnauthorized
	}
	if ata.Mint != config.StakeMint || vault.Mint != config.StakeMint {
		return nil, StakeFlowErrInvalidMint
	}

	return &stakePosition{
		owner:      owner,
		config:     config,
		configKey:  configKey,
		userStake:  userStake,
		vault:      vaultKey,
		ownerAta:   ataKey,
		ataBalance: ata.Amount,
	}, nil
}

func StakeFlowStake(execCtx *ExecutionCtx, amount uint64) error {
	txCtx := execCtx.TransactionContext
	instrCtx, err := txCtx.CurrentInstructionCtx()
	if err != nil {
		return err
	}

	err = instrCtx.CheckNumOfInstructionAccounts(6)
	if err != nil {
		return err
	}
	err = checkProgramAccount(txCtx, instrCtx, stakeIdxTokenProgram, TokenProgramAddr)
	if err != nil {
		return err
	}

	if amount == 0 {
		return StakeFlowErrInvalidAmount
	}

	pos, err := execCtx.loadStakePosition(instrCtx)
	if err != nil {
		return err
	}
	if pos.ataBalance < amount {
		return StakeFlowErrInsufficientBalance
	}

	now, err := execCtx.unixTimestamp()
	if err != nil {
		return err
	}

	userStake := pos.userStake
	err = userStake.Checkpoint(now, pos.config.AprBps)
	if err != nil {
		return err
	}
	staked, err := safemath.CheckedAddU64(userStake.StakedAmount, amount)
	if err != nil {
		return StakeFlowErrInvalidAmount
	}
	lockUntil, err := safemath.CheckedAddI64(now, pos.config.MinLockDuration)
	if err != nil {
		return StakeFlowErrInvalidAmount
	}

	err = execCtx.NativeInvoke(newTokenTransferInstruction(pos.ownerAta, pos.vault, pos.owner, amount), nil)
	if err != nil {
		return err
	}

	userStake.StakedAmount = staked
	userStake.LockUntilTs = lockUntil

	err = writeInstructionAccountData(txCtx, instrCtx, stakeIdxUserStake, userStake.Marshal())
	if err != nil {
		return err
	}

	return execCtx.emitEvent(&StakeFlowStakeEvent{Owner: pos.owner, Amount: amount})
}

func StakeFlowUnstake(execCtx *ExecutionCtx, amount uint64) error {
	txCtx := execCtx.TransactionContext
	instrCtx, err := txCtx.CurrentInstructionCtx()
	if err != nil {
		return err
	}

	err = instrCtx.CheckNumOfInstructionAccounts(7)
	if err != nil {
		return err
	}
	err = checkProgramAccount(txCtx, instrCtx, unstakeIdxTokenProgram, TokenProgramAddr)
	if err != nil {
		return err
	}

	if amount == 0 {
		return StakeFlowErrInvalidAmount
	}

	pos, err := execCtx.loadStakePosition(instrCtx)
	if err != nil {
		return err
	}

	penaltyVault, penaltyVaultKey, err := loadTokenAccount(txCtx, instrCtx, unstakeIdxPenaltyVault)
	if err != nil {
		return err
	}
	err = execCtx.requirePda(penaltyVaultSeeds(pos.configKey), pos.config.PenaltyVaultBump, penaltyVaultKey)
	if err != nil {
		return err
	}
	if penaltyVault.Mint != pos.config.StakeMint {
		return StakeFlowErrInvalidMint
	}

	userStake := pos.userStake
	if amount > userStake.StakedAmount {
		return StakeFlowErrInsufficientStake
	}

	now, err := execCtx.unixTimestamp()
	if err != nil {
		return err
	}

	err = userStake.Checkpoint(now, pos.config.AprBps)
	if err != nil {
		return err
	}

	var penalty uint64
	net := amount
	if now < userStake.LockUntilTs {
		penalty, net, err = stakemath.PenaltySplit(amount, pos.config.EarlyUnstakePenaltyBps)
		if err != nil {
			return StakeFlowErrInvalidAmount
		}
	}
	if net == 0 {
		return StakeFlowErrInvalidAmount
	}

	signerSeeds := [][][]byte{withBump(configSeeds(), pos.config.Bump)}

	if penalty > 0 {
		err = execCtx.NativeInvokeSigned(newTokenTransferInstruction(pos.vault, penaltyVaultKey, pos.configKey, penalty), signerSeeds)
		if err != nil {
			return err
		}
	}

	err = execCtx.NativeInvokeSigned(newTokenTransferInstruction(pos.vault, pos.ownerAta, pos.configKey, net), signerSeeds)
	if err != nil {
		return err
	}

	userStake.StakedAmount -= amount

	err = writeInstructionAccountData(txCtx, instrCtx, stakeIdxUserStake, userStake.Marshal())
	if err != nil {
		return err
	}

	return execCtx.emitEvent(&StakeFlowUnstakeEvent{Owner: pos.owner, Amount: amount, Penalty: penalty})
}

// instruction accounts of claim_rewards
const (
	claimIdxOwner = iota
	claimIdxConfig
	claimIdxUserStake
	claimIdxRewardMintAuthority
	claimIdxRewardMint
	claimIdxOwnerRewardAta
	claimIdxTokenProgram
)

// StakeFlowClaimRewards mints the pending rewards to the owner. Claiming
// with nothing pending succeeds and only advances the checkpoint.
func StakeFlowClaimRewards(execCtx *ExecutionCtx) error {
	txCtx := execCtx.TransactionContext
	instrCtx, err := txCtx.CurrentInstructionCtx()
	if err != nil {
		return err
	}

	err = instrCtx.CheckNumOfInstructionAccounts(7)
	if err != nil {
		return err
	}
	err = checkProgramAccount(txCtx, instrCtx, claimIdxTokenProgram, TokenProgramAddr)
	if err != nil {
		return err
	}

	err = requireSigner(instrCtx, claimIdxOwner)
	if err != nil {
		return err
	}
	owner, err := extractAddress(txCtx, instrCtx, claimIdxOwner)
	if err != nil {
		return err
	}

	config, _, err := execCtx.loadConfig(instrCtx, claimIdxConfig)
	if err != nil {
		return err
	}

	userStake, err := execCtx.loadUserStake(instrCtx, claimIdxUserStake, owner)
	if err != nil {
		return err
	}

	authority, err := extractAddress(txCtx, instrCtx, claimIdxRewardMintAuthority)
	if err != nil {
		return err
	}
	err = execCtx.requirePda(rewardMintAuthoritySeeds(), config.RewardMintAuthBump, authority)
	if err != nil {
		return err
	}

	rewardMint, rewardMintKey, err := loadMint(txCtx, instrCtx, claimIdxRewardMint)
	if err != nil {
		return err
	}
	if rewardMintKey != config.RewardMint {
		return StakeFlowErrInvalidMint
	}

	ata, ataKey, err := loadTokenAccount(txCtx, instrCtx, claimIdxOwnerRewardAta)
	if err != nil {
		return err
	}
	if ata.Mint != rewardMintKey {
		return StakeFlowErrInvalidMint
	}
	if ata.Owner != owner {
		return StakeFlowErrUnauthorized
	}

	if rewardMint.MintAuthority == nil || *rewardMint.MintAuthority != authority {
		return StakeFlowErrAuthorityMismatch
	}

	now, err := execCtx.unixTimestamp()
	if err != nil {
		return err
	}

	err = userStake.Checkpoint(now, config.AprBps)
	if err != nil {
		return err
	}

	rewards := userStake.PendingRewards
	if rewards > 0 {
		signerSeeds := [][][]byte{withBump(rewardMintAuthoritySeeds(), config.RewardMintAuthBump)}
		err = execCtx.NativeInvokeSigned(newTokenMintToInstruction(rewardMintKey, ataKey, authority, rewards), signerSeeds)
		if err != nil {
			return err
		}
	}
	userStake.PendingRewards = 0

	err = writeInstructionAccountData(txCtx, instrCtx, claimIdxUserStake, userStake.Marshal())
	if err != nil {
		return err
	}

	return execCtx.emitEvent(&StakeFlowClaimEvent{Owner: owner, Rewards: rewards})
}

// EncodeStakeFlowInstructionData prefixes args with the instruction
// discriminator.
func EncodeStakeFlowInstructionData(disc [8]byte, args ...interface{}) []byte {
	buf := new(bytes.Buffer)
	buf.Write(disc[:])
	encoder := bin.NewBinEncoder(buf)
	for _, arg := range args {
		var err error
		switch v := arg.(type) {
		case uint16:
			err = encoder.WriteUint16(v, bin.LE)
		case int64:
			err = encoder.WriteInt64(v, bin.LE)
		case uint64:
			err = encoder.WriteUint64(v, bin.LE)
		default:
			panic("unsupported instruction argument")
		}
		if err != nil {
			panic("shouldn't fail")
		}
	}
	return buf.Bytes()
}
