package stakeflow

import (
	"github.com/gagliardetto/solana-go"
	"github.com/stakeflow/stakeflow/pkg/sealevel"
)

// ProgramID is the address the StakeFlow program is deployed at.
var ProgramID = solana.PublicKey(sealevel.StakeFlowProgramAddr)

var (
	TokenProgramID           = solana.PublicKey(sealevel.TokenProgramAddr)
	AssociatedTokenProgramID = solana.PublicKey(sealevel.AssociatedTokenProgramAddr)
	SystemProgramID          = solana.PublicKey(sealevel.SystemProgramAddr)
)

var (
	seedConfig              = []byte(sealevel.StakeFlowConfigSeed)
	seedStakeVault          = []byte(sealevel.StakeFlowStakeVaultSeed)
	seedPenaltyVault        = []byte(sealevel.StakeFlowPenaltyVaultSeed)
	seedRewardMintAuthority = []byte(sealevel.StakeFlowRewardMintAuthoritySeed)
	seedUserStake           = []byte(sealevel.StakeFlowUserStakeSeed)
)

func DeriveConfigPDA(programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{seedConfig}, programID)
}

func DeriveStakeVaultPDA(programID solana.PublicKey, config solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{seedStakeVault, config.Bytes()}, programID)
}

func DerivePenaltyVaultPDA(programID solana.PublicKey, config solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{seedPenaltyVault, config.Bytes()}, programID)
}

func DeriveRewardMintAuthorityPDA(programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{seedRewardMintAuthority}, programID)
}

func DeriveUserStakePDA(programID solana.PublicKey, owner solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{seedUserStake, owner.Bytes()}, programID)
}

// DeriveAssociatedTokenAddress is the canonical token account of wallet for mint.
func DeriveAssociatedTokenAddress(wallet solana.PublicKey, mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{wallet.Bytes(), TokenProgramID.Bytes(), mint.Bytes()}, AssociatedTokenProgramID)
}

// Addresses are the deployment-wide accounts of one StakeFlow program.
type Addresses struct {
	ProgramID           solana.PublicKey
	Config              solana.PublicKey
	StakeVault          solana.PublicKey
	PenaltyVault        solana.PublicKey
	RewardMintAuthority solana.PublicKey
}

func DeriveAddresses(programID solana.PublicKey) (*Addresses, error) {
	config, _, err := DeriveConfigPDA(programID)
	if err != nil {
		return nil, err
	}
	stakeVault, _, err := DeriveStakeVaultPDA(programID, config)
	if err != nil {
		return nil, err
	}
	penaltyVault, _, err := DerivePenaltyVaultPDA(programID, config)
	if err != nil {
		return nil, err
	}
	authority, _, err := DeriveRewardMintAuthorityPDA(programID)
	if err != nil {
		return nil, err
	}
	return &Addresses{
		ProgramID:           programID,
		Config:              config,
		StakeVault:          stakeVault,
		PenaltyVault:        penaltyVault,
		RewardMintAuthority: authority,
	}, nil
}

func (a *Addresses) UserStake(owner solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := DeriveUserStakePDA(a.ProgramID, owner)
	return addr, err
}
