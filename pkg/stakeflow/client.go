package stakeflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/stakeflow/stakeflow/pkg/accounts"
	"github.com/stakeflow/stakeflow/pkg/sealevel"
	"github.com/stakeflow/stakeflow/pkg/stakemath"
	"k8s.io/klog/v2"
)

var (
	ErrConfigNotFound    = errors.New("stakeflow config not found")
	ErrUserStakeNotFound = errors.New("user stake not found")
)

// Ledger is the view of a cluster the client needs. GetAccount returns
// accounts.ErrAccountNotFound for an address that holds nothing.
type Ledger interface {
	GetAccount(ctx context.Context, pubkey solana.PublicKey) (*accounts.Account, error)
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
}

type Client struct {
	ledger Ledger
	addrs  *Addresses
}

func NewClient(ledger Ledger, programID solana.PublicKey) (*Client, error) {
	addrs, err := DeriveAddresses(programID)
	if err != nil {
		return nil, err
	}
	return &Client{ledger: ledger, addrs: addrs}, nil
}

func (c *Client) Addresses() *Addresses {
	return c.addrs
}

func (c *Client) InitializeConfig(ctx context.Context, admin solana.PrivateKey, stakeMint solana.PublicKey, rewardMint solana.PublicKey, params ConfigParams) (solana.Signature, error) {
	ix := NewInitializeConfigInstruction(c.addrs, admin.PublicKey(), stakeMint, rewardMint, params)
	return c.Send(ctx, []solana.PrivateKey{admin}, ix)
}

// Stake checks the owner's stake token balance before sending, and creates
// the owner's UserStake in the same transaction when it does not exist yet.
func (c *Client) Stake(ctx context.Context, owner solana.PrivateKey, amount uint64) (solana.Signature, error) {
	if amount == 0 {
		return solana.Signature{}, sealevel.StakeFlowErrInvalidAmount
	}

	config, err := c.FetchConfig(ctx)
	if err != nil {
		return solana.Signature{}, err
	}

	ownerKey := owner.PublicKey()
	ata, _, err := DeriveAssociatedTokenAddress(ownerKey, config.StakeMint)
	if err != nil {
		return solana.Signature{}, err
	}
	balance, err := c.tokenBalance(ctx, ata)
	if err != nil {
		return solana.Signature{}, err
	}
	if balance < amount {
		return solana.Signature{}, sealevel.StakeFlowErrInsufficientBalance
	}

	var ixs []solana.Instruction
	_, err = c.FetchUserStake(ctx, ownerKey)
	if errors.Is(err, ErrUserStakeNotFound) {
		createIx, err := NewCreateUserStakeInstruction(c.addrs, ownerKey)
		if err != nil {
			return solana.Signature{}, err
		}
		ixs = append(ixs, createIx)
	} else if err != nil {
		return solana.Signature{}, err
	}

	stakeIx, err := NewStakeInstruction(c.addrs, ownerKey, ata, amount)
	if err != nil {
		return solana.Signature{}, err
	}
	ixs = append(ixs, stakeIx)

	return c.Send(ctx, []solana.PrivateKey{owner}, ixs...)
}

func (c *Client) Unstake(ctx context.Context, owner solana.PrivateKey, amount uint64) (solana.Signature, error) {
	if amount == 0 {
		return solana.Signature{}, sealevel.StakeFlowErrInvalidAmount
	}

	config, err := c.FetchConfig(ctx)
	if err != nil {
		return solana.Signature{}, err
	}

	ownerKey := owner.PublicKey()
	userStake, err := c.FetchUserStake(ctx, ownerKey)
	if err != nil {
		return solana.Signature{}, err
	}
	if amount > userStake.StakedAmount {
		return solana.Signature{}, sealevel.StakeFlowErrInsufficientStake
	}

	ata, _, err := DeriveAssociatedTokenAddress(ownerKey, config.StakeMint)
	if err != nil {
		return solana.Signature{}, err
	}
	ix, err := NewUnstakeInstruction(c.addrs, ownerKey, ata, amount)
	if err != nil {
		return solana.Signature{}, err
	}
	return c.Send(ctx, []solana.PrivateKey{owner}, ix)
}

// ClaimRewards mints the pending rewards to the owner's reward token
// account, creating that account first if needed.
func (c *Client) ClaimRewards(ctx context.Context, owner solana.PrivateKey) (solana.Signature, error) {
	config, err := c.FetchConfig(ctx)
	if err != nil {
		return solana.Signature{}, err
	}

	ownerKey := owner.PublicKey()
	createAtaIx, ata, err := NewCreateAssociatedTokenAccountInstruction(ownerKey, ownerKey, config.RewardMint, true)
	if err != nil {
		return solana.Signature{}, err
	}
	claimIx, err := NewClaimRewardsInstruction(c.addrs, ownerKey, config.RewardMint, ata)
	if err != nil {
		return solana.Signature{}, err
	}
	return c.Send(ctx, []solana.PrivateKey{owner}, createAtaIx, claimIx)
}

func (c *Client) FetchConfig(ctx context.Context) (*sealevel.StakeFlowConfig, error) {
	acct, err := c.ledger.GetAccount(ctx, c.addrs.Config)
	if errors.Is(err, accounts.ErrAccountNotFound) {
		return nil, ErrConfigNotFound
	} else if err != nil {
		return nil, err
	}
	if acct.Owner != c.addrs.ProgramID || len(acct.Data) == 0 {
		return nil, ErrConfigNotFound
	}
	return sealevel.UnmarshalStakeFlowConfig(acct.Data)
}

func (c *Client) FetchUserStake(ctx context.Context, owner solana.PublicKey) (*sealevel.StakeFlowUserStake, error) {
	addr, err := c.addrs.UserStake(owner)
	if err != nil {
		return nil, err
	}
	acct, err := c.ledger.GetAccount(ctx, addr)
	if errors.Is(err, accounts.ErrAccountNotFound) {
		return nil, ErrUserStakeNotFound
	} else if err != nil {
		return nil, err
	}
	if acct.Owner != c.addrs.ProgramID || len(acct.Data) == 0 {
		return nil, ErrUserStakeNotFound
	}
	return sealevel.UnmarshalStakeFlowUserStake(acct.Data)
}

func (c *Client) FetchMint(ctx context.Context, mint solana.PublicKey) (*sealevel.Mint, error) {
	acct, err := c.ledger.GetAccount(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("fetching mint %s: %w", mint, err)
	}
	return sealevel.UnmarshalMint(acct.Data)
}

func (c *Client) FetchTokenAccount(ctx context.Context, pubkey solana.PublicKey) (*sealevel.TokenAccount, error) {
	acct, err := c.ledger.GetAccount(ctx, pubkey)
	if err != nil {
		return nil, err
	}
	return sealevel.UnmarshalTokenAccount(acct.Data)
}

// tokenBalance reads a token account's amount. A missing account holds zero.
func (c *Client) tokenBalance(ctx context.Context, pubkey solana.PublicKey) (uint64, error) {
	tokenAcct, err := c.FetchTokenAccount(ctx, pubkey)
	if errors.Is(err, accounts.ErrAccountNotFound) {
		return 0, nil
	} else if err != nil {
		return 0, err
	}
	return tokenAcct.Amount, nil
}

// ProjectedRewards is what a claim at unix time now would mint for owner.
func (c *Client) ProjectedRewards(ctx context.Context, owner solana.PublicKey, now int64) (uint64, error) {
	config, err := c.FetchConfig(ctx)
	if err != nil {
		return 0, err
	}
	userStake, err := c.FetchUserStake(ctx, owner)
	if errors.Is(err, ErrUserStakeNotFound) {
		return 0, nil
	} else if err != nil {
		return 0, err
	}
	return ProjectedRewards(userStake, config.AprBps, now)
}

// ProjectedRewards adds the accrual since the last checkpoint to the pending
// rewards, the same way the program does at the next checkpoint.
func ProjectedRewards(userStake *sealevel.StakeFlowUserStake, aprBps uint16, now int64) (uint64, error) {
	accrued, err := stakemath.Accrue(userStake.StakedAmount, aprBps, now-userStake.LastUpdateTs)
	if err != nil {
		return 0, err
	}
	total := userStake.PendingRewards + accrued
	if total < accrued {
		return 0, stakemath.ErrOverflow
	}
	return total, nil
}

// Send signs ixs with signers, the first of which pays, and submits them as
// one transaction. A stale blockhash is retried once with a fresh one. A
// transaction the ledger has already processed counts as sent.
func (c *Client) Send(ctx context.Context, signers []solana.PrivateKey, ixs ...solana.Instruction) (solana.Signature, error) {
	if len(signers) == 0 {
		return solana.Signature{}, errors.New("no signers")
	}

	for attempt := 0; ; attempt++ {
		blockhash, err := c.ledger.LatestBlockhash(ctx)
		if err != nil {
			return solana.Signature{}, fmt.Errorf("fetching blockhash: %w", err)
		}

		tx, err := BuildTransaction(blockhash, signers, ixs...)
		if err != nil {
			return solana.Signature{}, err
		}

		sig, err := c.ledger.SendTransaction(ctx, tx)
		switch {
		case err == nil:
			return sig, nil
		case errors.Is(err, sealevel.TxErrAlreadyProcessed):
			klog.Infof("transaction %s already processed", tx.Signatures[0])
			return tx.Signatures[0], nil
		case errors.Is(err, sealevel.TxErrBlockhashNotFound) && attempt == 0:
			klog.Warningf("blockhash %s expired, retrying", blockhash)
			continue
		default:
			return solana.Signature{}, err
		}
	}
}

// BuildTransaction assembles and signs a legacy transaction paid by the
// first signer.
func BuildTransaction(blockhash solana.Hash, signers []solana.PrivateKey, ixs ...solana.Instruction) (*solana.Transaction, error) {
	tx, err := solana.NewTransaction(ixs, blockhash, solana.TransactionPayer(signers[0].PublicKey()))
	if err != nil {
		return nil, fmt.Errorf("building transaction: %w", err)
	}

	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		for idx := range signers {
			if signers[idx].PublicKey() == key {
				return &signers[idx]
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("signing transaction: %w", err)
	}
	return tx, nil
}
