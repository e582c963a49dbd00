package sealevel

import (
	"github.com/stakeflow/stakeflow/pkg/accounts"
)

// TransactionAccounts holds the private copies of every account loaded for a
// transaction. Nothing here is visible to the store until the host commits
// the touched accounts.
type TransactionAccounts struct {
	Accounts []*accounts.Account
	Touched  []bool
	borrowed []bool
}

func NewTransactionAccounts(accts []accounts.Account) *TransactionAccounts {
	txAccounts := &TransactionAccounts{
		Accounts: make([]*accounts.Account, len(accts)),
		Touched:  make([]bool, len(accts)),
		borrowed: make([]bool, len(accts)),
	}
	for idx := range accts {
		txAccounts.Accounts[idx] = accts[idx].Clone()
	}
	return txAccounts
}

func (txAccounts *TransactionAccounts) Len() uint64 {
	return uint64(len(txAccounts.Accounts))
}

func (txAccounts *TransactionAccounts) GetAccount(idx uint64) (*accounts.Account, error) {
	if idx >= txAccounts.Len() {
		return nil, InstrErrNotEnoughAccountKeys
	}
	return txAccounts.Accounts[idx], nil
}

func (txAccounts *TransactionAccounts) Touch(idx uint64) error {
	if idx >= txAccounts.Len() {
		return InstrErrNotEnoughAccountKeys
	}
	txAccounts.Touched[idx] = true
	return nil
}

func (txAccounts *TransactionAccounts) tryBorrow(idx uint64) error {
	if idx >= txAccounts.Len() {
		return InstrErrNotEnoughAccountKeys
	}
	if txAccounts.borrowed[idx] {
		return InstrErrAccountBorrowFailed
	}
	txAccounts.borrowed[idx] = true
	return nil
}

func (txAccounts *TransactionAccounts) release(idx uint64) {
	if idx < txAccounts.Len() {
		txAccounts.borrowed[idx] = false
	}
}

func (txAccounts *TransactionAccounts) anyBorrowed() bool {
	for _, b := range txAccounts.borrowed {
		if b {
			return true
		}
	}
	return false
}

// TouchedAccounts returns the accounts modified during execution.
func (txAccounts *TransactionAccounts) TouchedAccounts() []*accounts.Account {
	var touched []*accounts.Account
	for idx, acct := range txAccounts.Accounts {
		if txAccounts.Touched[idx] {
			touched = append(touched, acct)
		}
	}
	return touched
}
