package sealevel

import (
	"bytes"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/minio/sha256-simd"
	"github.com/stakeflow/stakeflow/pkg/safemath"
	"github.com/stakeflow/stakeflow/pkg/stakemath"
)

// PDA seeds of the StakeFlow program.
const (
	StakeFlowConfigSeed              = "config"
	StakeFlowStakeVaultSeed          = "stake_vault"
	StakeFlowPenaltyVaultSeed        = "penalty_vault"
	StakeFlowRewardMintAuthoritySeed = "reward_mint_authority"
	StakeFlowUserStakeSeed           = "user"
)

const (
	StakeFlowConfigSize              = 8 + 112
	StakeFlowUserStakeSize           = 8 + 65
	StakeFlowRewardMintAuthoritySize = 8
)

func anchorDiscriminator(namespace string, name string) [8]byte {
	var disc [8]byte
	h := sha256.Sum256([]byte(namespace + ":" + name))
	copy(disc[:], h[:8])
	return disc
}

var (
	StakeFlowConfigDiscriminator              = anchorDiscriminator("account", "Config")
	StakeFlowUserStakeDiscriminator           = anchorDiscriminator("account", "UserStake")
	StakeFlowRewardMintAuthorityDiscriminator = anchorDiscriminator("account", "RewardMintAuthority")
)

var (
	StakeFlowInstrInitializeConfig = anchorDiscriminator("global", "initialize_config")
	StakeFlowInstrCreateUserStake  = anchorDiscriminator("global", "create_user_stake")
	StakeFlowInstrStake            = anchorDiscriminator("global", "stake")
	StakeFlowInstrUnstake          = anchorDiscriminator("global", "unstake")
	StakeFlowInstrClaimRewards     = anchorDiscriminator("global", "claim_rewards")
)

var (
	StakeFlowStakeEventDiscriminator   = anchorDiscriminator("event", "StakeEvent")
	StakeFlowUnstakeEventDiscriminator = anchorDiscriminator("event", "UnstakeEvent")
	StakeFlowClaimEventDiscriminator   = anchorDiscriminator("event", "ClaimEvent")
)

// StakeFlowConfig is the deployment-wide configuration record.
type StakeFlowConfig struct {
	Admin                  solana.PublicKey
	StakeMint              solana.PublicKey
	RewardMint             solana.PublicKey
	AprBps                 uint16
	MinLockDuration        int64
	EarlyUnstakePenaltyBps uint16
	Bump                   uint8
	StakeVaultBump         uint8
	PenaltyVaultBump       uint8
	RewardMintAuthBump     uint8
}

// StakeFlowUserStake is the per-owner staking position.
type StakeFlowUserStake struct {
	Owner          solana.PublicKey
	StakedAmount   uint64
	PendingRewards uint64
	LastUpdateTs   int64
	LockUntilTs    int64
	Bump           uint8
}

func readDiscriminator(decoder *bin.Decoder, expected [8]byte) error {
	disc, err := decoder.ReadBytes(8)
	if err != nil {
		return err
	}
	if !bytes.Equal(disc, expected[:]) {
		return InstrErrInvalidAccountData
	}
	return nil
}

func readPubkey(decoder *bin.Decoder, pk *solana.PublicKey) error {
	b, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return err
	}
	copy(pk[:], b)
	return nil
}

func (config *StakeFlowConfig) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	err := readDiscriminator(decoder, StakeFlowConfigDiscriminator)
	if err != nil {
		return err
	}

	if err = readPubkey(decoder, &config.Admin); err != nil {
		return err
	}
	if err = readPubkey(decoder, &config.StakeMint); err != nil {
		return err
	}
	if err = readPubkey(decoder, &config.RewardMint); err != nil {
		return err
	}

	config.AprBps, err = decoder.ReadUint16(bin.LE)
	if err != nil {
		return err
	}

	config.MinLockDuration, err = decoder.ReadInt64(bin.LE)
	if err != nil {
		return err
	}

	config.EarlyUnstakePenaltyBps, err = decoder.ReadUint16(bin.LE)
	if err != nil {
		return err
	}

	config.Bump, err = decoder.ReadByte()
	if err != nil {
		return err
	}

	config.StakeVaultBump, err = decoder.ReadByte()
	if err != nil {
		return err
	}

	config.PenaltyVaultBump, err = decoder.ReadByte()
	if err != nil {
		return err
	}

	config.RewardMintAuthBump, err = decoder.ReadByte()
	return err
}

func (config *StakeFlowConfig) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteBytes(StakeFlowConfigDiscriminator[:], false)
	if err != nil {
		return err
	}

	for _, pk := range []solana.PublicKey{config.Admin, config.StakeMint, config.RewardMint} {
		pk := pk
		err = encoder.WriteBytes(pk[:], false)
		if err != nil {
			return err
		}
	}

	err = encoder.WriteUint16(config.AprBps, bin.LE)
	if err != nil {
		return err
	}

	err = encoder.WriteInt64(config.MinLockDuration, bin.LE)
	if err != nil {
		return err
	}

	err = encoder.WriteUint16(config.EarlyUnstakePenaltyBps, bin.LE)
	if err != nil {
		return err
	}

	for _, bump := range []uint8{config.Bump, config.StakeVaultBump, config.PenaltyVaultBump, config.RewardMintAuthBump} {
		err = encoder.WriteByte(bump)
		if err != nil {
			return err
		}
	}
	return nil
}

func (config *StakeFlowConfig) Marshal() []byte {
	buf := new(bytes.Buffer)
	err := config.MarshalWithEncoder(bin.NewBinEncoder(buf))
	if err != nil {
		panic("shouldn't fail")
	}
	return buf.Bytes()
}

func UnmarshalStakeFlowConfig(data []byte) (*StakeFlowConfig, error) {
	if len(data) != StakeFlowConfigSize {
		return nil, InstrErrInvalidAccountData
	}
	config := new(StakeFlowConfig)
	if err := config.UnmarshalWithDecoder(bin.NewBinDecoder(data)); err != nil {
		return nil, InstrErrInvalidAccountData
	}
	return config, nil
}

func (userStake *StakeFlowUserStake) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	err := readDiscriminator(decoder, StakeFlowUserStakeDiscriminator)
	if err != nil {
		return err
	}

	if err = readPubkey(decoder, &userStake.Owner); err != nil {
		return err
	}

	userStake.StakedAmount, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}

	userStake.PendingRewards, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}

	userStake.LastUpdateTs, err = decoder.ReadInt64(bin.LE)
	if err != nil {
		return err
	}

	userStake.LockUntilTs, err = decoder.ReadInt64(bin.LE)
	if err != nil {
		return err
	}

	userStake.Bump, err = decoder.ReadByte()
	return err
}

func (userStake *StakeFlowUserStake) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteBytes(StakeFlowUserStakeDiscriminator[:], false)
	if err != nil {
		return err
	}

	err = encoder.WriteBytes(userStake.Owner[:], false)
	if err != nil {
		return err
	}

	err = encoder.WriteUint64(userStake.StakedAmount, bin.LE)
	if err != nil {
		return err
	}

	err = encoder.WriteUint64(userStake.PendingRewards, bin.LE)
	if err != nil {
		return err
	}

	err = encoder.WriteInt64(userStake.LastUpdateTs, bin.LE)
	if err != nil {
		return err
	}

	err = encoder.WriteInt64(userStake.LockUntilTs, bin.LE)
	if err != nil {
		return err
	}

	return encoder.WriteByte(userStake.Bump)
}

func (userStake *StakeFlowUserStake) Marshal() []byte {
	buf := new(bytes.Buffer)
	err := userStake.MarshalWithEncoder(bin.NewBinEncoder(buf))
	if err != nil {
		panic("shouldn't fail")
	}
	return buf.Bytes()
}

func UnmarshalStakeFlowUserStake(data []byte) (*StakeFlowUserStake, error) {
	if len(data) != StakeFlowUserStakeSize {
		return nil, InstrErrInvalidAccountData
	}
	userStake := new(StakeFlowUserStake)
	if err := userStake.UnmarshalWithDecoder(bin.NewBinDecoder(data)); err != nil {
		return nil, InstrErrInvalidAccountData
	}
	return userStake, nil
}

// Checkpoint folds the rewards accrued since LastUpdateTs into
// PendingRewards. A clock that moved backwards accrues nothing and leaves
// LastUpdateTs where it was.
func (userStake *StakeFlowUserStake) Checkpoint(now int64, aprBps uint16) error {
	elapsed, err := safemath.CheckedSubI64(now, userStake.LastUpdateTs)
	if err != nil {
		return StakeFlowErrInvalidAmount
	}
	if elapsed < 0 {
		return nil
	}

	accrued, err := stakemath.Accrue(userStake.StakedAmount, aprBps, elapsed)
	if err != nil {
		return StakeFlowErrInvalidAmount
	}

	userStake.PendingRewards, err = safemath.CheckedAddU64(userStake.PendingRewards, accrued)
	if err != nil {
		return StakeFlowErrInvalidAmount
	}

	userStake.LastUpdateTs = now
	return nil
}

func stakeFlowMarker() []byte {
	marker := make([]byte, StakeFlowRewardMintAuthoritySize)
	copy(marker, StakeFlowRewardMintAuthorityDiscriminator[:])
	return marker
}
