package stakeflow

import (
	"errors"

	"github.com/stakeflow/stakeflow/pkg/sealevel"
)

// FriendlyMessage turns a failure from the client or the ledger into text
// fit for an end user.
func FriendlyMessage(err error) string {
	if err == nil {
		return ""
	}

	if msg := sealevel.StakeFlowErrMessage(err); msg != "" {
		return msg
	}

	switch {
	case errors.Is(err, sealevel.TxErrBlockhashNotFound):
		return "Transaction expired (blockhash). Generate a new one and try again quickly."
	case errors.Is(err, sealevel.TxErrAlreadyProcessed):
		return "Transaction already processed. Refreshing state."
	case errors.Is(err, sealevel.TxErrSignatureFailure):
		return "Invalid signature or rejected by the wallet."
	case errors.Is(err, sealevel.SystemProgErrResultWithNegativeLamports):
		return "Insufficient SOL for fees or rent."
	case errors.Is(err, sealevel.TokenErrInsufficientFunds):
		return "Insufficient token balance."
	case errors.Is(err, sealevel.TokenErrMintMismatch), errors.Is(err, sealevel.TokenErrInvalidMint):
		return "Token account does not belong to the expected mint."
	case errors.Is(err, ErrEmptyAmount), errors.Is(err, ErrInvalidAmountFormat), errors.Is(err, ErrAmountTooLarge):
		return "Invalid amount: " + err.Error()
	case errors.Is(err, ErrConfigNotFound):
		return "The staking pool has not been initialized."
	}

	return err.Error()
}
