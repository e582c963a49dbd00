package stakeflow

import (
	"context"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/stakeflow/stakeflow/pkg/sealevel"
)

// FetchRent reads the rent parameters from the ledger's rent sysvar.
func (c *Client) FetchRent(ctx context.Context) (*sealevel.SysvarRent, error) {
	acct, err := c.ledger.GetAccount(ctx, sealevel.SysvarRentAddr)
	if err != nil {
		return nil, fmt.Errorf("fetching rent sysvar: %w", err)
	}

	var rent sealevel.SysvarRent
	err = rent.UnmarshalWithDecoder(bin.NewBinDecoder(acct.Data))
	if err != nil {
		return nil, fmt.Errorf("decoding rent sysvar: %w", err)
	}
	return &rent, nil
}

// CreateMint allocates a rent exempt mint at the mint keypair's address and
// initializes it with authority as its mint authority.
func (c *Client) CreateMint(ctx context.Context, payer solana.PrivateKey, mint solana.PrivateKey, authority solana.PublicKey, decimals uint8) (solana.Signature, error) {
	rent, err := c.FetchRent(ctx)
	if err != nil {
		return solana.Signature{}, err
	}

	createIx := NewCreateAccountInstruction(payer.PublicKey(), mint.PublicKey(), rent.MinimumBalance(sealevel.MintSize), sealevel.MintSize, TokenProgramID)
	initIx := NewInitializeMint2Instruction(mint.PublicKey(), decimals, authority)
	return c.Send(ctx, []solana.PrivateKey{payer, mint}, createIx, initIx)
}

// MintTo mints amount base units of mint into the associated token account
// of wallet, creating the account if needed. authority pays.
func (c *Client) MintTo(ctx context.Context, authority solana.PrivateKey, mint solana.PublicKey, wallet solana.PublicKey, amount uint64) (solana.PublicKey, error) {
	mintState, err := c.FetchMint(ctx, mint)
	if err != nil {
		return solana.PublicKey{}, err
	}

	createAtaIx, ata, err := NewCreateAssociatedTokenAccountInstruction(authority.PublicKey(), wallet, mint, true)
	if err != nil {
		return solana.PublicKey{}, err
	}
	mintIx := NewMintToCheckedInstruction(mint, ata, authority.PublicKey(), amount, mintState.Decimals)

	_, err = c.Send(ctx, []solana.PrivateKey{authority}, createAtaIx, mintIx)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return ata, nil
}

// TokenBalance is the amount held by wallet's associated token account for
// mint. A missing account holds zero.
func (c *Client) TokenBalance(ctx context.Context, wallet solana.PublicKey, mint solana.PublicKey) (uint64, error) {
	ata, _, err := DeriveAssociatedTokenAddress(wallet, mint)
	if err != nil {
		return 0, err
	}
	return c.tokenBalance(ctx, ata)
}
