package sealevel

import (
	"errors"
	"fmt"
)

// StakeFlow program errors. Codes follow the Anchor custom error range.
var (
	StakeFlowErrUnauthorized          = errors.New("Unauthorized")
	StakeFlowErrInvalidMint           = errors.New("InvalidMint")
	StakeFlowErrInsufficientStake     = errors.New("InsufficientStake")
	StakeFlowErrInvalidAmount         = errors.New("InvalidAmount")
	StakeFlowErrInsufficientBalance   = errors.New("InsufficientBalance")
	StakeFlowErrAccountNotInitialized = errors.New("AccountNotInitialized")
	StakeFlowErrAuthorityMismatch     = errors.New("AuthorityMismatch")
	StakeFlowErrAlreadyInitialized    = errors.New("AlreadyInitialized")
)

const StakeFlowErrCodeBase = 6000

var stakeFlowErrs = []struct {
	err error
	msg string
}{
	{StakeFlowErrUnauthorized, "Unauthorized"},
	{StakeFlowErrInvalidMint, "Invalid mint"},
	{StakeFlowErrInsufficientStake, "Insufficient staked amount"},
	{StakeFlowErrInvalidAmount, "Invalid amount"},
	{StakeFlowErrInsufficientBalance, "Insufficient token balance"},
	{StakeFlowErrAccountNotInitialized, "Account not initialized"},
	{StakeFlowErrAuthorityMismatch, "Authority mismatch"},
	{StakeFlowErrAlreadyInitialized, "Already initialized"},
}

func StakeFlowErrCode(err error) (uint32, bool) {
	for idx, e := range stakeFlowErrs {
		if errors.Is(err, e.err) {
			return uint32(StakeFlowErrCodeBase + idx), true
		}
	}
	return 0, false
}

// StakeFlowErrFromCode returns the sentinel for a custom error code, or nil
// when code is not a StakeFlow error.
func StakeFlowErrFromCode(code uint32) error {
	if code < StakeFlowErrCodeBase || code >= StakeFlowErrCodeBase+uint32(len(stakeFlowErrs)) {
		return nil
	}
	return stakeFlowErrs[code-StakeFlowErrCodeBase].err
}

// StakeFlowErrMessage is the human readable message of a StakeFlow error.
func StakeFlowErrMessage(err error) string {
	for _, e := range stakeFlowErrs {
		if errors.Is(err, e.err) {
			return e.msg
		}
	}
	return ""
}

func anchorErrorLog(err error) string {
	for idx, e := range stakeFlowErrs {
		if errors.Is(err, e.err) {
			return fmt.Sprintf("Program log: AnchorError occurred. Error Code: %s. Error Number: %d. Error Message: %s.", e.err, StakeFlowErrCodeBase+idx, e.msg)
		}
	}
	return ""
}
