package rent

import (
	"errors"

	"github.com/stakeflow/stakeflow/pkg/accounts"
	"github.com/stakeflow/stakeflow/pkg/sealevel"
)

var ErrInsufficientFundsForRent = errors.New("TxErrInsufficientFundsForRent")

const (
	RentStateUninitialized = iota
	RentStateRentPaying
	RentStateRentExempt
)

type RentPayingInfo struct {
	Lamports uint64
	DataSize uint64
}

type RentStateInfo struct {
	RentState      uint64
	RentPayingInfo RentPayingInfo
}

func rentStateFromAcct(acct *accounts.Account, rent *sealevel.SysvarRent) *RentStateInfo {
	if acct.Lamports == 0 {
		return &RentStateInfo{RentState: RentStateUninitialized}
	} else if rent.IsExempt(acct.Lamports, uint64(len(acct.Data))) {
		return &RentStateInfo{RentState: RentStateRentExempt}
	} else {
		return &RentStateInfo{RentState: RentStateRentPaying, RentPayingInfo: RentPayingInfo{Lamports: acct.Lamports, DataSize: uint64(len(acct.Data))}}
	}
}

// NewRentStateInfo snapshots the rent state of every writable transaction
// account. Read-only accounts get a nil entry.
func NewRentStateInfo(rent *sealevel.SysvarRent, txAccts *sealevel.TransactionAccounts, writable []bool) []*RentStateInfo {
	rentStateInfos := make([]*RentStateInfo, len(txAccts.Accounts))

	for idx, acct := range txAccts.Accounts {
		if idx < len(writable) && writable[idx] {
			rentStateInfos[idx] = rentStateFromAcct(acct, rent)
		}
	}

	return rentStateInfos
}

// An account may end a transaction empty or rent exempt. It may stay rent
// paying only if it was already, kept its size and did not gain lamports.
func checkRentStateTransitionAllowed(preRentState *RentStateInfo, postRentState *RentStateInfo) error {
	if preRentState == nil || postRentState == nil {
		return nil
	}

	switch postRentState.RentState {
	case RentStateUninitialized, RentStateRentExempt:
		return nil
	}

	if preRentState.RentState != RentStateRentPaying {
		return ErrInsufficientFundsForRent
	}
	if postRentState.RentPayingInfo.DataSize == preRentState.RentPayingInfo.DataSize && postRentState.RentPayingInfo.Lamports <= preRentState.RentPayingInfo.Lamports {
		return nil
	}
	return ErrInsufficientFundsForRent
}

// VerifyRentStateChanges returns the index of the first account whose rent
// state transition is not allowed.
func VerifyRentStateChanges(preStates []*RentStateInfo, postStates []*RentStateInfo) (int, error) {
	if len(preStates) != len(postStates) {
		panic("programming error - pre tx states and post tx states must be same length")
	}

	for idx := range preStates {
		err := checkRentStateTransitionAllowed(preStates[idx], postStates[idx])
		if err != nil {
			return idx, err
		}
	}

	return -1, nil
}
