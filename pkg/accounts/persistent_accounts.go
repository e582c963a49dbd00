package accounts

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/stakeflow/stakeflow/pkg/base58"
)

type PersistentAccountsDb struct {
	db *pebble.DB
}

func OpenAccountsDb(dir string) (*PersistentAccountsDb, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}

	return &PersistentAccountsDb{db: db}, nil
}

func (m *PersistentAccountsDb) Close() error {
	return m.db.Close()
}

func (m *PersistentAccountsDb) GetAccount(pubkey *[32]byte) (*Account, error) {
	acctBytes, closer, err := m.db.Get(pubkey[:])
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrAccountNotFound
	} else if err != nil {
		return nil, fmt.Errorf("error whilst retrieving account %s: %w", base58.Encode(pubkey[:]), err)
	}
	defer closer.Close()

	acct, err := unmarshalAccount(pubkey, acctBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize account %s from accountsdb: %w", base58.Encode(pubkey[:]), err)
	}

	return acct, nil
}

func (m *PersistentAccountsDb) SetAccount(pubkey *[32]byte, acct *Account) error {
	acctBytes, err := marshalAccount(acct)
	if err != nil {
		return fmt.Errorf("failed to serialize account for storage in accountsdb: %w", err)
	}

	err = m.db.Set(pubkey[:], acctBytes, pebble.Sync)
	if err != nil {
		return fmt.Errorf("error setting account for %s: %w", base58.Encode(pubkey[:]), err)
	}

	return nil
}

// SetAccounts writes every account in a single pebble batch.
func (m *PersistentAccountsDb) SetAccounts(accts []*Account) error {
	batch := m.db.NewBatch()
	defer batch.Close()

	for _, acct := range accts {
		acctBytes, err := marshalAccount(acct)
		if err != nil {
			return fmt.Errorf("failed to serialize account %s: %w", acct.Key, err)
		}
		if err = batch.Set(acct.Key[:], acctBytes, nil); err != nil {
			return err
		}
	}

	return batch.Commit(pebble.Sync)
}
