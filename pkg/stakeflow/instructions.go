package stakeflow

import (
	"github.com/gagliardetto/solana-go"
	"github.com/stakeflow/stakeflow/pkg/sealevel"
)

// ConfigParams are the arguments of initialize_config.
type ConfigParams struct {
	AprBps                 uint16
	MinLockDuration        int64
	EarlyUnstakePenaltyBps uint16
}

func NewInitializeConfigInstruction(addrs *Addresses, admin solana.PublicKey, stakeMint solana.PublicKey, rewardMint solana.PublicKey, params ConfigParams) solana.Instruction {
	data := sealevel.EncodeStakeFlowInstructionData(sealevel.StakeFlowInstrInitializeConfig,
		params.AprBps, params.MinLockDuration, params.EarlyUnstakePenaltyBps)

	return solana.NewInstruction(addrs.ProgramID, solana.AccountMetaSlice{
		solana.Meta(admin).WRITE().SIGNER(),
		solana.Meta(stakeMint),
		solana.Meta(rewardMint).WRITE(),
		solana.Meta(addrs.Config).WRITE(),
		solana.Meta(addrs.StakeVault).WRITE(),
		solana.Meta(addrs.PenaltyVault).WRITE(),
		solana.Meta(addrs.RewardMintAuthority).WRITE(),
		solana.Meta(TokenProgramID),
		solana.Meta(SystemProgramID),
	}, data)
}

func NewCreateUserStakeInstruction(addrs *Addresses, owner solana.PublicKey) (solana.Instruction, error) {
	userStake, err := addrs.UserStake(owner)
	if err != nil {
		return nil, err
	}

	return solana.NewInstruction(addrs.ProgramID, solana.AccountMetaSlice{
		solana.Meta(owner).WRITE().SIGNER(),
		solana.Meta(addrs.Config),
		solana.Meta(userStake).WRITE(),
		solana.Meta(SystemProgramID),
	}, sealevel.EncodeStakeFlowInstructionData(sealevel.StakeFlowInstrCreateUserStake)), nil
}

// NewStakeInstruction moves amount base units from ownerStakeAta into the
// stake vault.
func NewStakeInstruction(addrs *Addresses, owner solana.PublicKey, ownerStakeAta solana.PublicKey, amount uint64) (solana.Instruction, error) {
	userStake, err := addrs.UserStake(owner)
	if err != nil {
		return nil, err
	}

	return solana.NewInstruction(addrs.ProgramID, solana.AccountMetaSlice{
		solana.Meta(owner).WRITE().SIGNER(),
		solana.Meta(addrs.Config),
		solana.Meta(addrs.StakeVault).WRITE(),
		solana.Meta(ownerStakeAta).WRITE(),
		solana.Meta(userStake).WRITE(),
		solana.Meta(TokenProgramID),
	}, sealevel.EncodeStakeFlowInstructionData(sealevel.StakeFlowInstrStake, amount)), nil
}

func NewUnstakeInstruction(addrs *Addresses, owner solana.PublicKey, ownerStakeAta solana.PublicKey, amount uint64) (solana.Instruction, error) {
	userStake, err := addrs.UserStake(owner)
	if err != nil {
		return nil, err
	}

	return solana.NewInstruction(addrs.ProgramID, solana.AccountMetaSlice{
		solana.Meta(owner).WRITE().SIGNER(),
		solana.Meta(addrs.Config),
		solana.Meta(addrs.StakeVault).WRITE(),
		solana.Meta(ownerStakeAta).WRITE(),
		solana.Meta(userStake).WRITE(),
		solana.Meta(addrs.PenaltyVault).WRITE(),
		solana.Meta(TokenProgramID),
	}, sealevel.EncodeStakeFlowInstructionData(sealevel.StakeFlowInstrUnstake, amount)), nil
}

func NewClaimRewardsInstruction(addrs *Addresses, owner solana.PublicKey, rewardMint solana.PublicKey, ownerRewardAta solana.PublicKey) (solana.Instruction, error) {
	userStake, err := addrs.UserStake(owner)
	if err != nil {
		return nil, err
	}

	return solana.NewInstruction(addrs.ProgramID, solana.AccountMetaSlice{
		solana.Meta(owner).WRITE().SIGNER(),
		solana.Meta(addrs.Config),
		solana.Meta(userStake).WRITE(),
		solana.Meta(addrs.RewardMintAuthority),
		solana.Meta(rewardMint).WRITE(),
		solana.Meta(ownerRewardAta).WRITE(),
		solana.Meta(TokenProgramID),
	}, sealevel.EncodeStakeFlowInstructionData(sealevel.StakeFlowInstrClaimRewards)), nil
}

func NewCreateAccountInstruction(from solana.PublicKey, newAccount solana.PublicKey, lamports uint64, space uint64, owner solana.PublicKey) solana.Instruction {
	data := sealevel.EncodeInstructionData(&sealevel.SystemInstrCreateAccount{Lamports: lamports, Space: space, Owner: owner})
	return solana.NewInstruction(SystemProgramID, solana.AccountMetaSlice{
		solana.Meta(from).WRITE().SIGNER(),
		solana.Meta(newAccount).WRITE().SIGNER(),
	}, data)
}

func NewSystemTransferInstruction(from solana.PublicKey, to solana.PublicKey, lamports uint64) solana.Instruction {
	data := sealevel.EncodeInstructionData(&sealevel.SystemInstrTransfer{Lamports: lamports})
	return solana.NewInstruction(SystemProgramID, solana.AccountMetaSlice{
		solana.Meta(from).WRITE().SIGNER(),
		solana.Meta(to).WRITE(),
	}, data)
}

func NewInitializeMint2Instruction(mint solana.PublicKey, decimals uint8, mintAuthority solana.PublicKey) solana.Instruction {
	data := sealevel.EncodeInstructionData(&sealevel.TokenInstrInitializeMint2{Decimals: decimals, MintAuthority: mintAuthority})
	return solana.NewInstruction(TokenProgramID, solana.AccountMetaSlice{
		solana.Meta(mint).WRITE(),
	}, data)
}

func NewMintToCheckedInstruction(mint solana.PublicKey, destination solana.PublicKey, mintAuthority solana.PublicKey, amount uint64, decimals uint8) solana.Instruction {
	data := sealevel.EncodeInstructionData(&sealevel.TokenInstrMintToChecked{Amount: amount, Decimals: decimals})
	return solana.NewInstruction(TokenProgramID, solana.AccountMetaSlice{
		solana.Meta(mint).WRITE(),
		solana.Meta(destination).WRITE(),
		solana.Meta(mintAuthority).SIGNER(),
	}, data)
}

func NewTokenTransferInstruction(source solana.PublicKey, destination solana.PublicKey, owner solana.PublicKey, amount uint64) solana.Instruction {
	data := sealevel.EncodeInstructionData(&sealevel.TokenInstrTransfer{Amount: amount})
	return solana.NewInstruction(TokenProgramID, solana.AccountMetaSlice{
		solana.Meta(source).WRITE(),
		solana.Meta(destination).WRITE(),
		solana.Meta(owner).SIGNER(),
	}, data)
}

// NewCreateAssociatedTokenAccountInstruction creates the associated token
// account of wallet for mint, paid by payer. The idempotent form succeeds
// when the account already exists.
func NewCreateAssociatedTokenAccountInstruction(payer solana.PublicKey, wallet solana.PublicKey, mint solana.PublicKey, idempotent bool) (solana.Instruction, solana.PublicKey, error) {
	ata, _, err := DeriveAssociatedTokenAddress(wallet, mint)
	if err != nil {
		return nil, solana.PublicKey{}, err
	}

	var data []byte
	if idempotent {
		data = []byte{sealevel.AssociatedTokenInstrTypeCreateIdempotent}
	}

	return solana.NewInstruction(AssociatedTokenProgramID, solana.AccountMetaSlice{
		solana.Meta(payer).WRITE().SIGNER(),
		solana.Meta(ata).WRITE(),
		solana.Meta(wallet),
		solana.Meta(mint),
		solana.Meta(SystemProgramID),
		solana.Meta(TokenProgramID),
	}, data), ata, nil
}
