// Package scenario drives a StakeFlow deployment on a local bank through a
// fixed sequence of stakes, claims and unstakes. Keys derive from a seed, so
// two runs over the same config end in the same accounts hash.
package scenario

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alitto/pond"
	"github.com/gagliardetto/solana-go"
	"github.com/minio/sha256-simd"
	"github.com/oasisprotocol/curve25519-voi/primitives/ed25519"
	"github.com/samber/lo"
	"github.com/stakeflow/stakeflow/pkg/bank"
	"github.com/stakeflow/stakeflow/pkg/config"
	"github.com/stakeflow/stakeflow/pkg/sealevel"
	"github.com/stakeflow/stakeflow/pkg/stakeflow"
	"k8s.io/klog/v2"
)

const adminLamports = 1_000 * solana.LAMPORTS_PER_SOL

var ErrProgramNotLoaded = errors.New("the local bank only runs the built-in StakeFlow program")

// Clock is the part of a fake clock the scenario moves.
type Clock interface {
	Now() time.Time
	Advance(d time.Duration)
}

type StakerReport struct {
	Owner    solana.PublicKey
	Staked   uint64
	Claimed  uint64
	Unstaked uint64
	Penalty  uint64
	Err      error
}

type Report struct {
	Addresses    *stakeflow.Addresses
	StakeMint    solana.PublicKey
	RewardMint   solana.PublicKey
	Decimals     uint8
	Stakers      []StakerReport
	StakeVault   uint64
	PenaltyVault uint64
	Slot         uint64
	AccountsHash []byte
}

func (r *Report) TotalClaimed() uint64 {
	return lo.SumBy(r.Stakers, func(s StakerReport) uint64 { return s.Claimed })
}

func (r *Report) TotalPenalty() uint64 {
	return lo.SumBy(r.Stakers, func(s StakerReport) uint64 { return s.Penalty })
}

// Keypair derives the idx-th key of the scenario from seed.
func Keypair(seed string, idx uint32) solana.PrivateKey {
	var idxBytes [4]byte
	binary.LittleEndian.PutUint32(idxBytes[:], idx)
	digest := sha256.Sum256(append([]byte(seed), idxBytes[:]...))
	return solana.PrivateKey(ed25519.NewKeyFromSeed(digest[:]))
}

type runner struct {
	ctx      context.Context
	bank     *bank.Bank
	clock    Clock
	cfg      *config.Config
	client   *stakeflow.Client

	progressMu sync.Mutex
	progress   func(step string)
}

type Option func(*runner)

// WithProgress has Run call fn after each of its Steps(cfg) steps.
func WithProgress(fn func(step string)) Option {
	return func(r *runner) {
		r.progress = fn
	}
}

// Steps is the number of progress steps Run reports for cfg: setup, one
// funding per staker, the stake batch, then one claim and one unstake per
// staker.
func Steps(cfg *config.Config) int {
	return 2 + 3*cfg.Scenario.Stakers
}

func (r *runner) step(name string) {
	klog.V(2).Infof("scenario step %s done", name)
	if r.progress != nil {
		r.progressMu.Lock()
		defer r.progressMu.Unlock()
		r.progress(name)
	}
}

// Run creates both mints, initializes the pool and then, for every staker,
// funds, stakes, claims after ScenarioConfig.ClaimAfter and unstakes after
// ScenarioConfig.UnstakeAfter. Stakes go through the bank as one parallel
// batch and claims run on a worker pool. A staker whose step fails is reported with the error and skipped
// for the remaining steps.
func Run(ctx context.Context, b *bank.Bank, clock Clock, cfg *config.Config, opts ...Option) (*Report, error) {
	if cfg.ProgramPubkey() != sealevel.StakeFlowProgramAddr {
		return nil, fmt.Errorf("%w (program_id %s)", ErrProgramNotLoaded, cfg.ProgramID)
	}

	client, err := stakeflow.NewClient(b, cfg.ProgramPubkey())
	if err != nil {
		return nil, err
	}
	r := &runner{ctx: ctx, bank: b, clock: clock, cfg: cfg, client: client}
	for _, opt := range opts {
		opt(r)
	}

	fund, err := stakeflow.ParseUiAmount(cfg.Scenario.Fund, *cfg.Pool.StakeMintDecimals)
	if err != nil {
		return nil, fmt.Errorf("fund: %w", err)
	}
	stakeAmount, err := stakeflow.ParseUiAmount(cfg.Scenario.Stake, *cfg.Pool.StakeMintDecimals)
	if err != nil {
		return nil, fmt.Errorf("stake: %w", err)
	}
	unstakeAmount, err := stakeflow.ParseUiAmount(cfg.Scenario.Unstake, *cfg.Pool.StakeMintDecimals)
	if err != nil {
		return nil, fmt.Errorf("unstake: %w", err)
	}

	admin := Keypair(cfg.ProgramID, 0)
	stakeMint := Keypair(cfg.ProgramID, 1)
	rewardMint := Keypair(cfg.ProgramID, 2)

	err = b.Airdrop(admin.PublicKey(), adminLamports)
	if err != nil {
		return nil, err
	}
	_, err = client.CreateMint(ctx, admin, stakeMint, admin.PublicKey(), *cfg.Pool.StakeMintDecimals)
	if err != nil {
		return nil, fmt.Errorf("creating stake mint: %w", err)
	}
	_, err = client.CreateMint(ctx, admin, rewardMint, admin.PublicKey(), *cfg.Pool.RewardMintDecimals)
	if err != nil {
		return nil, fmt.Errorf("creating reward mint: %w", err)
	}
	_, err = client.InitializeConfig(ctx, admin, stakeMint.PublicKey(), rewardMint.PublicKey(), cfg.PoolParams())
	if err != nil {
		return nil, fmt.Errorf("initializing config: %w", err)
	}
	klog.Infof("initialized pool %s: apr %s, lock %ds, penalty %s", client.Addresses().Config,
		stakeflow.BpsToPercent(cfg.PoolParams().AprBps), cfg.PoolParams().MinLockDuration, stakeflow.BpsToPercent(cfg.PoolParams().EarlyUnstakePenaltyBps))
	r.step("setup")

	stakers := make([]solana.PrivateKey, cfg.Scenario.Stakers)
	report := &Report{
		Addresses:  client.Addresses(),
		StakeMint:  stakeMint.PublicKey(),
		RewardMint: rewardMint.PublicKey(),
		Decimals:   *cfg.Pool.StakeMintDecimals,
		Stakers:    make([]StakerReport, cfg.Scenario.Stakers),
	}
	for idx := range stakers {
		stakers[idx] = Keypair(cfg.ProgramID, uint32(3+idx))
		report.Stakers[idx].Owner = stakers[idx].PublicKey()

		err = b.Airdrop(stakers[idx].PublicKey(), solana.LAMPORTS_PER_SOL)
		if err != nil {
			return nil, err
		}
		_, err = client.MintTo(ctx, admin, stakeMint.PublicKey(), stakers[idx].PublicKey(), fund)
		if err != nil {
			return nil, fmt.Errorf("funding staker %d: %w", idx, err)
		}
		r.step("fund")
	}

	err = r.stakeAll(stakers, stakeAmount, report)
	if err != nil {
		return nil, err
	}
	r.step("stake")

	err = r.advance(cfg.Scenario.ClaimAfter)
	if err != nil {
		return nil, err
	}
	err = r.claimAll(stakers, report)
	if err != nil {
		return nil, err
	}

	err = r.advance(cfg.Scenario.UnstakeAfter)
	if err != nil {
		return nil, err
	}
	for idx, staker := range stakers {
		if unstakeAmount > 0 && report.Stakers[idx].Err == nil {
			r.unstake(staker, unstakeAmount, &report.Stakers[idx])
		}
		r.step("unstake")
	}

	report.StakeVault, err = r.vaultBalance(report.Addresses.StakeVault)
	if err != nil {
		return nil, err
	}
	report.PenaltyVault, err = r.vaultBalance(report.Addresses.PenaltyVault)
	if err != nil {
		return nil, err
	}

	pubkeys := []solana.PublicKey{report.Addresses.Config, report.Addresses.StakeVault, report.Addresses.PenaltyVault, stakeMint.PublicKey(), rewardMint.PublicKey()}
	for _, staker := range stakers {
		userStake, err := report.Addresses.UserStake(staker.PublicKey())
		if err != nil {
			return nil, err
		}
		pubkeys = append(pubkeys, staker.PublicKey(), userStake)
	}
	report.AccountsHash, err = b.AccountsHash(pubkeys)
	if err != nil {
		return nil, err
	}
	report.Slot = b.Slot()
	return report, nil
}

// stakeAll submits one create-and-stake transaction per staker as a single
// parallel batch.
func (r *runner) stakeAll(stakers []solana.PrivateKey, amount uint64, report *Report) error {
	blockhash, err := r.bank.LatestBlockhash(r.ctx)
	if err != nil {
		return err
	}
	addrs := r.client.Addresses()

	txs := make([]*solana.Transaction, len(stakers))
	for idx, staker := range stakers {
		owner := staker.PublicKey()
		ata, _, err := stakeflow.DeriveAssociatedTokenAddress(owner, report.StakeMint)
		if err != nil {
			return err
		}
		createIx, err := stakeflow.NewCreateUserStakeInstruction(addrs, owner)
		if err != nil {
			return err
		}
		stakeIx, err := stakeflow.NewStakeInstruction(addrs, owner, ata, amount)
		if err != nil {
			return err
		}
		txs[idx], err = stakeflow.BuildTransaction(blockhash, []solana.PrivateKey{staker}, createIx, stakeIx)
		if err != nil {
			return err
		}
	}

	results, err := r.bank.ProcessTransactions(r.ctx, txs)
	if err != nil {
		return err
	}
	for idx, result := range results {
		if result.Err != nil {
			report.Stakers[idx].Err = fmt.Errorf("stake: %w", result.Err)
			klog.Warningf("staker %s: %s", report.Stakers[idx].Owner, stakeflow.FriendlyMessage(result.Err))
			continue
		}
		report.Stakers[idx].Staked = amount
	}
	return nil
}

// claimAll claims for every staker still in the run on a worker pool sized
// like the bank's batch. Claims touch disjoint user accounts, and the bank's
// account locks serialize their writes to the shared reward mint.
func (r *runner) claimAll(stakers []solana.PrivateKey, report *Report) error {
	pool := pond.New(r.cfg.Bank.MaxParallelTxs, len(stakers))

	var mu sync.Mutex
	var fatal error
	for idx, staker := range stakers {
		staker := staker
		sr := &report.Stakers[idx]
		if sr.Err != nil {
			r.step("claim")
			continue
		}
		pool.Submit(func() {
			err := r.claim(staker, report.RewardMint, sr)
			if err != nil {
				mu.Lock()
				fatal = errors.Join(fatal, err)
				mu.Unlock()
			}
			r.step("claim")
		})
	}
	pool.StopAndWait()
	return fatal
}

// claim records a failed claim on sr. Only ledger read errors are returned.
func (r *runner) claim(staker solana.PrivateKey, rewardMint solana.PublicKey, sr *StakerReport) error {
	before, err := r.client.TokenBalance(r.ctx, staker.PublicKey(), rewardMint)
	if err != nil {
		return err
	}
	_, err = r.client.ClaimRewards(r.ctx, staker)
	if err != nil {
		sr.Err = fmt.Errorf("claim: %w", err)
		return nil
	}
	after, err := r.client.TokenBalance(r.ctx, staker.PublicKey(), rewardMint)
	if err != nil {
		return err
	}
	sr.Claimed = after - before
	return nil
}

// unstake sends the unstake directly to the bank so the event in the
// transaction's log reports the penalty.
func (r *runner) unstake(staker solana.PrivateKey, amount uint64, sr *StakerReport) {
	amount = min(amount, sr.Staked)
	if amount == 0 {
		return
	}
	addrs := r.client.Addresses()
	owner := staker.PublicKey()

	ix, err := r.unstakeInstruction(owner, amount)
	if err != nil {
		sr.Err = err
		return
	}
	blockhash, err := r.bank.LatestBlockhash(r.ctx)
	if err != nil {
		sr.Err = err
		return
	}
	tx, err := stakeflow.BuildTransaction(blockhash, []solana.PrivateKey{staker}, ix)
	if err != nil {
		sr.Err = err
		return
	}

	result, err := r.bank.ProcessTransaction(r.ctx, tx)
	if err != nil {
		sr.Err = fmt.Errorf("unstake: %w", err)
		return
	}
	events, err := stakeflow.ParseEvents(result.Logs)
	if err != nil {
		sr.Err = err
		return
	}
	for _, ev := range events {
		if unstake, ok := ev.(*stakeflow.UnstakeEvent); ok && unstake.Owner == owner {
			sr.Unstaked += unstake.Amount
			sr.Penalty += unstake.Penalty
		}
	}
	klog.V(2).Infof("unstaked %d for %s from pool %s", amount, owner, addrs.Config)
}

func (r *runner) unstakeInstruction(owner solana.PublicKey, amount uint64) (solana.Instruction, error) {
	pool, err := r.client.FetchConfig(r.ctx)
	if err != nil {
		return nil, err
	}
	ata, _, err := stakeflow.DeriveAssociatedTokenAddress(owner, pool.StakeMint)
	if err != nil {
		return nil, err
	}
	return stakeflow.NewUnstakeInstruction(r.client.Addresses(), owner, ata, amount)
}

// advance moves the clock by d in slot-sized steps, ticking the bank at
// each. Long gaps are spread over at most one blockhash queue of slots.
func (r *runner) advance(d time.Duration) error {
	if d <= 0 {
		return nil
	}
	ticks := int64(d / r.cfg.Bank.SlotDuration)
	ticks = max(1, min(ticks, int64(r.cfg.Bank.BlockhashQueueLen)))

	step := d / time.Duration(ticks)
	for i := int64(0); i < ticks; i++ {
		if i == ticks-1 {
			step = d - step*time.Duration(ticks-1)
		}
		r.clock.Advance(step)
		_, err := r.bank.Tick()
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *runner) vaultBalance(vault solana.PublicKey) (uint64, error) {
	acct, err := r.client.FetchTokenAccount(r.ctx, vault)
	if err != nil {
		return 0, err
	}
	return acct.Amount, nil
}
