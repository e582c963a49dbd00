package rpcclient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stakeflow/stakeflow/pkg/accounts"
	"github.com/stakeflow/stakeflow/pkg/sealevel"
	"k8s.io/klog/v2"
)

// RpcClient reads and writes a live cluster through its JSON RPC endpoint.
type RpcClient struct {
	client     *rpc.Client
	commitment rpc.CommitmentType
}

func NewRpcClient(endpoint string) *RpcClient {
	client := rpc.New(endpoint)
	return &RpcClient{client: client, commitment: rpc.CommitmentConfirmed}
}

func (c *RpcClient) GetAccount(ctx context.Context, pubkey solana.PublicKey) (*accounts.Account, error) {
	resp, err := c.client.GetAccountInfoWithOpts(ctx, pubkey, &rpc.GetAccountInfoOpts{Commitment: c.commitment})
	if errors.Is(err, rpc.ErrNotFound) || (err == nil && (resp == nil || resp.Value == nil)) {
		return nil, accounts.ErrAccountNotFound
	} else if err != nil {
		return nil, fmt.Errorf("fetching account %s: %w", pubkey, err)
	}

	return &accounts.Account{
		Key:        pubkey,
		Lamports:   resp.Value.Lamports,
		Data:       resp.Value.Data.GetBinary(),
		Owner:      resp.Value.Owner,
		Executable: resp.Value.Executable,
	}, nil
}

func (c *RpcClient) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	hash, _, err := c.LatestBlockhashWithHeight(ctx)
	return hash, err
}

// LatestBlockhashWithHeight also returns the last block height at which a
// transaction using the blockhash is accepted.
func (c *RpcClient) LatestBlockhashWithHeight(ctx context.Context) (solana.Hash, uint64, error) {
	recent, err := c.client.GetLatestBlockhash(ctx, c.commitment)
	if err != nil {
		return solana.Hash{}, 0, fmt.Errorf("get latest blockhash: %w", err)
	}
	return recent.Value.Blockhash, recent.Value.LastValidBlockHeight, nil
}

// SendTransaction submits tx after a preflight simulation. Expired
// blockhashes and duplicate submissions map to the sealevel sentinels.
func (c *RpcClient) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	sig, err := c.client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{PreflightCommitment: c.commitment})
	if err != nil {
		return solana.Signature{}, mapSendError(err)
	}
	klog.V(2).Infof("sent tx %s", sig)
	return sig, nil
}

// SimulateTransaction returns the program logs of tx without sending it.
// Signatures are not verified, so a partially signed tx can be simulated.
func (c *RpcClient) SimulateTransaction(ctx context.Context, tx *solana.Transaction) ([]string, error) {
	resp, err := c.client.SimulateTransactionWithOpts(ctx, tx, &rpc.SimulateTransactionOpts{SigVerify: false, Commitment: c.commitment})
	if err != nil {
		return nil, mapSendError(err)
	}
	if resp.Value == nil {
		return nil, nil
	}
	if resp.Value.Err != nil {
		return resp.Value.Logs, fmt.Errorf("simulation failed: %v", resp.Value.Err)
	}
	return resp.Value.Logs, nil
}

func mapSendError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "blockhash not found"):
		return fmt.Errorf("%w: %s", sealevel.TxErrBlockhashNotFound, err)
	case strings.Contains(msg, "already been processed"):
		return fmt.Errorf("%w: %s", sealevel.TxErrAlreadyProcessed, err)
	case strings.Contains(msg, "signature verification failure"):
		return fmt.Errorf("%w: %s", sealevel.TxErrSignatureFailure, err)
	}
	return err
}
