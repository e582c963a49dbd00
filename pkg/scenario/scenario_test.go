package scenario

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stakeflow/stakeflow/pkg/accounts"
	"github.com/stakeflow/stakeflow/pkg/bank"
	"github.com/stakeflow/stakeflow/pkg/config"
	"github.com/stakeflow/stakeflow/pkg/sealevel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runScenario(t *testing.T, cfg *config.Config) (*Report, error) {
	clock := clockwork.NewFakeClockAt(time.Unix(1_700_000_000, 0))
	b, err := bank.NewBank(accounts.NewMemAccounts(), clock, cfg.BankParams())
	require.NoError(t, err)
	return Run(context.Background(), b, clock, cfg)
}

func TestRun_Defaults(t *testing.T) {
	cfg, err := config.Parse(nil)
	require.NoError(t, err)

	report, err := runScenario(t, cfg)
	require.NoError(t, err)
	require.Len(t, report.Stakers, 1)

	staker := report.Stakers[0]
	require.NoError(t, staker.Err)
	assert.Equal(t, uint64(200_000_000_000), staker.Staked)
	// 10s of 10% APR on 200 tokens
	assert.Equal(t, uint64(6341), staker.Claimed)
	// unstaked inside the 30s lock
	assert.Equal(t, uint64(50_000_000_000), staker.Unstaked)
	assert.Equal(t, uint64(2_500_000_000), staker.Penalty)

	assert.Equal(t, uint64(150_000_000_000), report.StakeVault)
	assert.Equal(t, uint64(2_500_000_000), report.PenaltyVault)
	assert.Equal(t, uint64(6341), report.TotalClaimed())
	assert.Equal(t, uint64(25), report.Slot)
}

func TestRun_Deterministic(t *testing.T) {
	cfg, err := config.Parse([]byte("scenario:\n  stakers: 4\n  unstake_after: 1m\n"))
	require.NoError(t, err)

	first, err := runScenario(t, cfg)
	require.NoError(t, err)
	second, err := runScenario(t, cfg)
	require.NoError(t, err)

	assert.Equal(t, first.AccountsHash, second.AccountsHash)
	assert.Equal(t, first.Stakers, second.Stakers)
	for _, staker := range first.Stakers {
		require.NoError(t, staker.Err)
		assert.Zero(t, staker.Penalty, "unstaked after the lock")
	}
	assert.Zero(t, first.TotalPenalty())
	assert.Equal(t, uint64(4*150_000_000_000), first.StakeVault)
}

func TestRun_ClaimPoolSize(t *testing.T) {
	var reports []*Report
	for _, workers := range []int{1, 8} {
		cfg, err := config.Parse([]byte(fmt.Sprintf("bank:\n  max_parallel_txs: %d\nscenario:\n  stakers: 6\n", workers)))
		require.NoError(t, err)
		report, err := runScenario(t, cfg)
		require.NoError(t, err)
		for _, staker := range report.Stakers {
			require.NoError(t, staker.Err)
			assert.Equal(t, uint64(6341), staker.Claimed)
		}
		reports = append(reports, report)
	}

	assert.Equal(t, reports[0].AccountsHash, reports[1].AccountsHash)
	assert.Equal(t, uint64(6*6341), reports[1].TotalClaimed())
}

func TestRun_StakeExceedsFunds(t *testing.T) {
	cfg, err := config.Parse([]byte("scenario:\n  stakers: 2\n  fund: \"10\"\n  stake: \"20\"\n"))
	require.NoError(t, err)

	report, err := runScenario(t, cfg)
	require.NoError(t, err)
	for _, staker := range report.Stakers {
		assert.ErrorIs(t, staker.Err, sealevel.StakeFlowErrInsufficientBalance)
		assert.Zero(t, staker.Staked)
		assert.Zero(t, staker.Claimed)
	}
	assert.Zero(t, report.StakeVault)
}

func TestRun_Progress(t *testing.T) {
	cfg, err := config.Parse([]byte("scenario:\n  stakers: 2\n"))
	require.NoError(t, err)
	require.Equal(t, 8, Steps(cfg))

	clock := clockwork.NewFakeClockAt(time.Unix(1_700_000_000, 0))
	b, err := bank.NewBank(accounts.NewMemAccounts(), clock, cfg.BankParams())
	require.NoError(t, err)

	var steps []string
	_, err = Run(context.Background(), b, clock, cfg, WithProgress(func(step string) {
		steps = append(steps, step)
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"setup", "fund", "fund", "stake", "claim", "claim", "unstake", "unstake"}, steps)
}

func TestRun_ForeignProgram(t *testing.T) {
	cfg, err := config.Parse([]byte("program_id: 11111111111111111111111111111111\n"))
	require.NoError(t, err)

	_, err = runScenario(t, cfg)
	assert.ErrorIs(t, err, ErrProgramNotLoaded)
}

func TestKeypair(t *testing.T) {
	assert.Equal(t, Keypair("seed", 1), Keypair("seed", 1))
	assert.NotEqual(t, Keypair("seed", 1), Keypair("seed", 2))
	assert.NotEqual(t, Keypair("seed", 1), Keypair("other", 1))
	assert.Len(t, Keypair("seed", 0), 64)
}
