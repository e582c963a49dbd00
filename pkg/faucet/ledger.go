package faucet

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/stakeflow/stakeflow/pkg/accounts"
	"github.com/stakeflow/stakeflow/pkg/bank"
	"github.com/stakeflow/stakeflow/pkg/sealevel"
)

// Ledger is what the faucet reads from a cluster. It never submits.
// pkg/rpcclient.RpcClient implements it for a live cluster.
type Ledger interface {
	GetAccount(ctx context.Context, pubkey solana.PublicKey) (*accounts.Account, error)
	LatestBlockhashWithHeight(ctx context.Context) (solana.Hash, uint64, error)
	SimulateTransaction(ctx context.Context, tx *solana.Transaction) ([]string, error)
}

// BankLedger serves the faucet from a local bank.
type BankLedger struct {
	*bank.Bank
}

// SimulateTransaction skips signature verification so a partially signed
// transaction simulates.
func (l BankLedger) SimulateTransaction(ctx context.Context, tx *solana.Transaction) ([]string, error) {
	result, err := l.Bank.SimulateTransaction(ctx, tx, bank.SimulateOpts{})
	return result.Logs, err
}

// SeedMint writes the configured mint, owned by the token program and rent
// exempt under rent, into store so a local bank can serve it.
func SeedMint(store accounts.Accounts, cfg *Config, rent sealevel.SysvarRent) error {
	authority := cfg.MintAuthority.PublicKey()
	mint := &sealevel.Mint{MintAuthority: &authority, Decimals: cfg.MintDecimals, IsInitialized: true}
	return store.SetAccount((*[32]byte)(&cfg.Mint), &accounts.Account{
		Key:      cfg.Mint,
		Lamports: rent.MinimumBalance(sealevel.MintSize),
		Data:     mint.Marshal(),
		Owner:    sealevel.TokenProgramAddr,
	})
}
