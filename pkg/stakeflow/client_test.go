package stakeflow

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/jonboulle/clockwork"
	"github.com/stakeflow/stakeflow/pkg/accounts"
	"github.com/stakeflow/stakeflow/pkg/bank"
	"github.com/stakeflow/stakeflow/pkg/sealevel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedLedger forwards to a bank but can fail the next sends with
// canned errors, and counts what reaches it.
type scriptedLedger struct {
	*bank.Bank
	sendErrs []error
	sends    int
}

func (l *scriptedLedger) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	l.sends++
	if len(l.sendErrs) > 0 {
		err := l.sendErrs[0]
		l.sendErrs = l.sendErrs[1:]
		if err != nil {
			return solana.Signature{}, err
		}
	}
	return l.Bank.SendTransaction(ctx, tx)
}

type clientFixture struct {
	t      *testing.T
	ctx    context.Context
	clock  *clockwork.FakeClock
	ledger *scriptedLedger
	client *Client

	admin      solana.PrivateKey
	stakeMint  solana.PublicKey
	rewardMint solana.PublicKey
}

func newKeypair(t *testing.T) solana.PrivateKey {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return key
}

func newClientFixture(t *testing.T, initialize bool) *clientFixture {
	clock := clockwork.NewFakeClockAt(time.Unix(1_700_000_000, 0))
	b, err := bank.NewBank(accounts.NewMemAccounts(), clock, bank.DefaultParams())
	require.NoError(t, err)

	ledger := &scriptedLedger{Bank: b}
	client, err := NewClient(ledger, ProgramID)
	require.NoError(t, err)

	f := &clientFixture{t: t, ctx: context.Background(), clock: clock, ledger: ledger, client: client, admin: newKeypair(t)}
	require.NoError(t, b.Airdrop(f.admin.PublicKey(), 100_000_000_000))

	stakeMint := newKeypair(t)
	_, err = client.CreateMint(f.ctx, f.admin, stakeMint, f.admin.PublicKey(), 6)
	require.NoError(t, err)
	rewardMint := newKeypair(t)
	_, err = client.CreateMint(f.ctx, f.admin, rewardMint, f.admin.PublicKey(), 6)
	require.NoError(t, err)
	f.stakeMint = stakeMint.PublicKey()
	f.rewardMint = rewardMint.PublicKey()

	if initialize {
		_, err = client.InitializeConfig(f.ctx, f.admin, f.stakeMint, f.rewardMint, ConfigParams{AprBps: 1000, MinLockDuration: 30, EarlyUnstakePenaltyBps: 500})
		require.NoError(t, err)
	}
	return f
}

func (f *clientFixture) newStaker(stakeTokens uint64) solana.PrivateKey {
	owner := newKeypair(f.t)
	require.NoError(f.t, f.ledger.Airdrop(owner.PublicKey(), 1_000_000_000))
	if stakeTokens > 0 {
		_, err := f.client.MintTo(f.ctx, f.admin, f.stakeMint, owner.PublicKey(), stakeTokens)
		require.NoError(f.t, err)
	}
	return owner
}

func (f *clientFixture) advance(d time.Duration) {
	f.clock.Advance(d)
	_, err := f.ledger.Tick()
	require.NoError(f.t, err)
}

func TestClient_InitializeConfig(t *testing.T) {
	f := newClientFixture(t, true)

	config, err := f.client.FetchConfig(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, f.admin.PublicKey(), config.Admin)
	assert.Equal(t, f.stakeMint, config.StakeMint)
	assert.Equal(t, f.rewardMint, config.RewardMint)
	assert.Equal(t, uint16(1000), config.AprBps)
	assert.Equal(t, int64(30), config.MinLockDuration)
	assert.Equal(t, uint16(500), config.EarlyUnstakePenaltyBps)

	rewardMint, err := f.client.FetchMint(f.ctx, f.rewardMint)
	require.NoError(t, err)
	require.NotNil(t, rewardMint.MintAuthority)
	assert.Equal(t, f.client.Addresses().RewardMintAuthority, *rewardMint.MintAuthority)

	// a second initialization fails with a fresh blockhash
	f.advance(time.Second)
	_, err = f.client.InitializeConfig(f.ctx, f.admin, f.stakeMint, f.rewardMint, ConfigParams{AprBps: 1000, MinLockDuration: 30, EarlyUnstakePenaltyBps: 500})
	assert.ErrorIs(t, err, sealevel.StakeFlowErrAlreadyInitialized)
	assert.Equal(t, "Already initialized", FriendlyMessage(err))
}

func TestClient_FetchConfig_NotFound(t *testing.T) {
	f := newClientFixture(t, false)

	_, err := f.client.FetchConfig(f.ctx)
	assert.ErrorIs(t, err, ErrConfigNotFound)

	owner := f.newStaker(100)
	_, err = f.client.Stake(f.ctx, owner, 10)
	assert.ErrorIs(t, err, ErrConfigNotFound)
	assert.Equal(t, "The staking pool has not been initialized.", FriendlyMessage(err))
}

func TestClient_Stake_CreatesUserStake(t *testing.T) {
	f := newClientFixture(t, true)
	owner := f.newStaker(1_000)

	_, err := f.client.FetchUserStake(f.ctx, owner.PublicKey())
	require.ErrorIs(t, err, ErrUserStakeNotFound)

	_, err = f.client.Stake(f.ctx, owner, 400)
	require.NoError(t, err)

	userStake, err := f.client.FetchUserStake(f.ctx, owner.PublicKey())
	require.NoError(t, err)
	assert.Equal(t, owner.PublicKey(), userStake.Owner)
	assert.Equal(t, uint64(400), userStake.StakedAmount)
	assert.Equal(t, f.clock.Now().Unix()+30, userStake.LockUntilTs)

	// the second stake reuses the record
	f.advance(time.Second)
	_, err = f.client.Stake(f.ctx, owner, 100)
	require.NoError(t, err)

	userStake, err = f.client.FetchUserStake(f.ctx, owner.PublicKey())
	require.NoError(t, err)
	assert.Equal(t, uint64(500), userStake.StakedAmount)

	balance, err := f.client.TokenBalance(f.ctx, owner.PublicKey(), f.stakeMint)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), balance)
}

func TestClient_Stake_Preflight(t *testing.T) {
	f := newClientFixture(t, true)
	owner := f.newStaker(100)
	sendsBefore := f.ledger.sends

	_, err := f.client.Stake(f.ctx, owner, 0)
	assert.ErrorIs(t, err, sealevel.StakeFlowErrInvalidAmount)

	_, err = f.client.Stake(f.ctx, owner, 101)
	assert.ErrorIs(t, err, sealevel.StakeFlowErrInsufficientBalance)
	assert.Equal(t, "Insufficient token balance", FriendlyMessage(err))

	// a wallet without a token account holds nothing
	empty := f.newStaker(0)
	_, err = f.client.Stake(f.ctx, empty, 1)
	assert.ErrorIs(t, err, sealevel.StakeFlowErrInsufficientBalance)

	assert.Equal(t, sendsBefore, f.ledger.sends)
}

func TestClient_Unstake(t *testing.T) {
	f := newClientFixture(t, true)
	owner := f.newStaker(1_000)

	_, err := f.client.Unstake(f.ctx, owner, 10)
	assert.ErrorIs(t, err, ErrUserStakeNotFound)

	_, err = f.client.Stake(f.ctx, owner, 1_000)
	require.NoError(t, err)

	_, err = f.client.Unstake(f.ctx, owner, 1_001)
	assert.ErrorIs(t, err, sealevel.StakeFlowErrInsufficientStake)

	_, err = f.client.Unstake(f.ctx, owner, 0)
	assert.ErrorIs(t, err, sealevel.StakeFlowErrInvalidAmount)

	// early, 5% penalty
	_, err = f.client.Unstake(f.ctx, owner, 200)
	require.NoError(t, err)
	balance, err := f.client.TokenBalance(f.ctx, owner.PublicKey(), f.stakeMint)
	require.NoError(t, err)
	assert.Equal(t, uint64(190), balance)

	penaltyVault, err := f.client.FetchTokenAccount(f.ctx, f.client.Addresses().PenaltyVault)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), penaltyVault.Amount)
}

func TestClient_ClaimRewards(t *testing.T) {
	f := newClientFixture(t, true)
	owner := f.newStaker(200_000_000_000)

	_, err := f.client.Stake(f.ctx, owner, 200_000_000_000)
	require.NoError(t, err)

	f.advance(2 * time.Second)
	projected, err := f.client.ProjectedRewards(f.ctx, owner.PublicKey(), f.clock.Now().Unix())
	require.NoError(t, err)
	assert.Equal(t, uint64(1268), projected)

	_, err = f.client.ClaimRewards(f.ctx, owner)
	require.NoError(t, err)

	rewards, err := f.client.TokenBalance(f.ctx, owner.PublicKey(), f.rewardMint)
	require.NoError(t, err)
	assert.Equal(t, uint64(1268), rewards)

	projected, err = f.client.ProjectedRewards(f.ctx, owner.PublicKey(), f.clock.Now().Unix())
	require.NoError(t, err)
	assert.Equal(t, uint64(0), projected)
}

func TestClient_ProjectedRewards_NoStake(t *testing.T) {
	f := newClientFixture(t, true)

	projected, err := f.client.ProjectedRewards(f.ctx, newKeypair(t).PublicKey(), f.clock.Now().Unix())
	require.NoError(t, err)
	assert.Equal(t, uint64(0), projected)
}

func TestProjectedRewards(t *testing.T) {
	userStake := &sealevel.StakeFlowUserStake{StakedAmount: 200_000_000_000, PendingRewards: 7, LastUpdateTs: 100}

	projected, err := ProjectedRewards(userStake, 1000, 110)
	require.NoError(t, err)
	assert.Equal(t, uint64(7+6341), projected)

	// a clock behind the checkpoint adds nothing
	projected, err = ProjectedRewards(userStake, 1000, 50)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), projected)
}

func TestClient_Send_RetriesExpiredBlockhash(t *testing.T) {
	f := newClientFixture(t, true)
	owner := f.newStaker(100)

	f.ledger.sendErrs = []error{bank.ErrBlockhashNotFound}
	sendsBefore := f.ledger.sends

	_, err := f.client.Stake(f.ctx, owner, 50)
	require.NoError(t, err)
	assert.Equal(t, sendsBefore+2, f.ledger.sends)

	userStake, err := f.client.FetchUserStake(f.ctx, owner.PublicKey())
	require.NoError(t, err)
	assert.Equal(t, uint64(50), userStake.StakedAmount)
}

func TestClient_Send_RetriesOnlyOnce(t *testing.T) {
	f := newClientFixture(t, true)
	owner := f.newStaker(100)

	f.ledger.sendErrs = []error{bank.ErrBlockhashNotFound, bank.ErrBlockhashNotFound}
	_, err := f.client.Stake(f.ctx, owner, 50)
	assert.ErrorIs(t, err, bank.ErrBlockhashNotFound)
}

func TestClient_Send_AlreadyProcessed(t *testing.T) {
	f := newClientFixture(t, true)
	owner := f.newStaker(100)

	f.ledger.sendErrs = []error{bank.ErrAlreadyProcessed}
	sig, err := f.client.Stake(f.ctx, owner, 50)
	require.NoError(t, err)
	assert.NotEqual(t, solana.Signature{}, sig)
}

func TestClient_Send_NoSigners(t *testing.T) {
	f := newClientFixture(t, false)
	_, err := f.client.Send(f.ctx, nil)
	assert.Error(t, err)
}

func TestBuildTransaction(t *testing.T) {
	payer := newKeypair(t)
	other := newKeypair(t)
	ix := NewSystemTransferInstruction(payer.PublicKey(), other.PublicKey(), 1)

	tx, err := BuildTransaction(solana.Hash{1}, []solana.PrivateKey{payer}, ix)
	require.NoError(t, err)
	require.Len(t, tx.Signatures, 1)
	assert.Equal(t, payer.PublicKey(), tx.Message.AccountKeys[0])
	assert.NoError(t, tx.VerifySignatures())

	// every required signer must be provided
	createIx := NewCreateAccountInstruction(payer.PublicKey(), other.PublicKey(), 1, 0, SystemProgramID)
	_, err = BuildTransaction(solana.Hash{1}, []solana.PrivateKey{payer}, createIx)
	assert.Error(t, err)
}
