package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stakeflow/stakeflow/pkg/bank"
	"github.com/stakeflow/stakeflow/pkg/sealevel"
	"github.com/stakeflow/stakeflow/pkg/stakeflow"
	"github.com/stakeflow/stakeflow/pkg/stakemath"
	"gopkg.in/yaml.v3"
)

const (
	defaultAprBps                 = 1000
	defaultMinLockDuration        = 30
	defaultEarlyUnstakePenaltyBps = 500
	defaultDecimals               = 9
	defaultSlotDuration           = 400 * time.Millisecond
)

// Config describes one StakeFlow deployment and the local bank it runs on.
type Config struct {
	ProgramID string         `yaml:"program_id"`
	Bank      BankConfig     `yaml:"bank"`
	Pool      PoolConfig     `yaml:"pool"`
	Scenario  ScenarioConfig `yaml:"scenario"`
}

type BankConfig struct {
	ComputeUnitLimit  uint64        `yaml:"compute_unit_limit"`
	MaxParallelTxs    int           `yaml:"max_parallel_txs"`
	StatusCacheSize   int           `yaml:"status_cache_size"`
	BlockhashQueueLen int           `yaml:"blockhash_queue_len"`
	SlotsPerEpoch     uint64        `yaml:"slots_per_epoch"`
	SlotDuration      time.Duration `yaml:"slot_duration"`
	Rent              *RentConfig   `yaml:"rent"`
}

type RentConfig struct {
	LamportsPerByteYear uint64  `yaml:"lamports_per_byte_year"`
	ExemptionThreshold  float64 `yaml:"exemption_threshold"`
	BurnPercent         uint8   `yaml:"burn_percent"`
}

// PoolConfig holds the parameters passed to initialize_config. Zero values
// take the defaults, except the penalty which is explicit when set.
type PoolConfig struct {
	AprBps                 uint16  `yaml:"apr_bps"`
	MinLockDuration        int64   `yaml:"min_lock_duration"`
	EarlyUnstakePenaltyBps *uint16 `yaml:"early_unstake_penalty_bps"`
	StakeMintDecimals      *uint8  `yaml:"stake_mint_decimals"`
	RewardMintDecimals     *uint8  `yaml:"reward_mint_decimals"`
}

// ScenarioConfig drives the simulate command. Amounts are UI amounts of the
// stake token.
type ScenarioConfig struct {
	Stakers      int           `yaml:"stakers"`
	Fund         string        `yaml:"fund"`
	Stake        string        `yaml:"stake"`
	ClaimAfter   time.Duration `yaml:"claim_after"`
	Unstake      string        `yaml:"unstake"`
	UnstakeAfter time.Duration `yaml:"unstake_after"`
}

// Load reads and validates the YAML config at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a YAML config. Unknown fields are an error. Missing
// parameters take their defaults.
func Parse(data []byte) (*Config, error) {
	cfg := new(Config)
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	err := decoder.Decode(cfg)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	cfg.applyDefaults()
	err = cfg.Validate()
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.ProgramID == "" {
		cfg.ProgramID = stakeflow.ProgramID.String()
	}

	defaults := bank.DefaultParams()
	if cfg.Bank.ComputeUnitLimit == 0 {
		cfg.Bank.ComputeUnitLimit = defaults.ComputeUnitLimit
	}
	if cfg.Bank.MaxParallelTxs == 0 {
		cfg.Bank.MaxParallelTxs = defaults.MaxParallelTxs
	}
	if cfg.Bank.StatusCacheSize == 0 {
		cfg.Bank.StatusCacheSize = defaults.StatusCacheSize
	}
	if cfg.Bank.BlockhashQueueLen == 0 {
		cfg.Bank.BlockhashQueueLen = defaults.BlockhashQueueLen
	}
	if cfg.Bank.SlotsPerEpoch == 0 {
		cfg.Bank.SlotsPerEpoch = defaults.SlotsPerEpoch
	}
	if cfg.Bank.SlotDuration == 0 {
		cfg.Bank.SlotDuration = defaultSlotDuration
	}
	if cfg.Bank.Rent == nil {
		cfg.Bank.Rent = &RentConfig{
			LamportsPerByteYear: defaults.Rent.LamportsPerUint8Year,
			ExemptionThreshold:  defaults.Rent.ExemptionThreshold,
			BurnPercent:         defaults.Rent.BurnPercent,
		}
	}

	if cfg.Pool.AprBps == 0 {
		cfg.Pool.AprBps = defaultAprBps
	}
	if cfg.Pool.MinLockDuration == 0 {
		cfg.Pool.MinLockDuration = defaultMinLockDuration
	}
	if cfg.Pool.EarlyUnstakePenaltyBps == nil {
		penalty := uint16(defaultEarlyUnstakePenaltyBps)
		cfg.Pool.EarlyUnstakePenaltyBps = &penalty
	}
	if cfg.Pool.StakeMintDecimals == nil {
		decimals := uint8(defaultDecimals)
		cfg.Pool.StakeMintDecimals = &decimals
	}
	if cfg.Pool.RewardMintDecimals == nil {
		decimals := uint8(defaultDecimals)
		cfg.Pool.RewardMintDecimals = &decimals
	}

	if cfg.Scenario.Stakers == 0 {
		cfg.Scenario.Stakers = 1
	}
	if cfg.Scenario.Fund == "" {
		cfg.Scenario.Fund = "1000"
	}
	if cfg.Scenario.Stake == "" {
		cfg.Scenario.Stake = "200"
	}
	if cfg.Scenario.ClaimAfter == 0 {
		cfg.Scenario.ClaimAfter = 10 * time.Second
	}
	if cfg.Scenario.Unstake == "" {
		cfg.Scenario.Unstake = "50"
	}
}

func (cfg *Config) Validate() error {
	_, err := solana.PublicKeyFromBase58(cfg.ProgramID)
	if err != nil {
		return fmt.Errorf("program_id: %w", err)
	}

	err = cfg.BankParams().Validate()
	if err != nil {
		return fmt.Errorf("bank: %w", err)
	}
	if cfg.Bank.SlotDuration < 0 {
		return errors.New("bank: slot_duration must be positive")
	}
	if cfg.Bank.Rent.ExemptionThreshold <= 0 {
		return errors.New("bank: rent exemption_threshold must be positive")
	}
	if cfg.Bank.Rent.BurnPercent > 100 {
		return errors.New("bank: rent burn_percent must be at most 100")
	}

	if cfg.Pool.MinLockDuration < 0 {
		return errors.New("pool: min_lock_duration must not be negative")
	}
	if *cfg.Pool.EarlyUnstakePenaltyBps > stakemath.BpsDenominator {
		return fmt.Errorf("pool: early_unstake_penalty_bps must be at most %d", stakemath.BpsDenominator)
	}
	if *cfg.Pool.StakeMintDecimals > 18 || *cfg.Pool.RewardMintDecimals > 18 {
		return errors.New("pool: mint decimals must be at most 18")
	}

	if cfg.Scenario.Stakers < 0 {
		return errors.New("scenario: stakers must not be negative")
	}
	for name, amount := range map[string]string{"fund": cfg.Scenario.Fund, "stake": cfg.Scenario.Stake, "unstake": cfg.Scenario.Unstake} {
		_, err = stakeflow.ParseUiAmount(amount, *cfg.Pool.StakeMintDecimals)
		if err != nil {
			return fmt.Errorf("scenario: %s: %w", name, err)
		}
	}
	if cfg.Scenario.ClaimAfter < 0 || cfg.Scenario.UnstakeAfter < 0 {
		return errors.New("scenario: durations must not be negative")
	}
	return nil
}

func (cfg *Config) ProgramPubkey() solana.PublicKey {
	return solana.MustPublicKeyFromBase58(cfg.ProgramID)
}

func (cfg *Config) BankParams() bank.Params {
	rent := sealevel.DefaultRent()
	if cfg.Bank.Rent != nil {
		rent = sealevel.SysvarRent{
			LamportsPerUint8Year: cfg.Bank.Rent.LamportsPerByteYear,
			ExemptionThreshold:   cfg.Bank.Rent.ExemptionThreshold,
			BurnPercent:          cfg.Bank.Rent.BurnPercent,
		}
	}
	return bank.Params{
		Rent:              rent,
		ComputeUnitLimit:  cfg.Bank.ComputeUnitLimit,
		MaxParallelTxs:    cfg.Bank.MaxParallelTxs,
		StatusCacheSize:   cfg.Bank.StatusCacheSize,
		BlockhashQueueLen: cfg.Bank.BlockhashQueueLen,
		SlotsPerEpoch:     cfg.Bank.SlotsPerEpoch,
	}
}

func (cfg *Config) PoolParams() stakeflow.ConfigParams {
	return stakeflow.ConfigParams{
		AprBps:                 cfg.Pool.AprBps,
		MinLockDuration:        cfg.Pool.MinLockDuration,
		EarlyUnstakePenaltyBps: *cfg.Pool.EarlyUnstakePenaltyBps,
	}
}
