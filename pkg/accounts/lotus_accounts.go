package accounts

import (
	"errors"
	"fmt"

	"github.com/lotusdblabs/lotusdb/v2"
	"github.com/stakeflow/stakeflow/pkg/base58"
)

// LotusAccountsDb keeps accounts in a lotusdb store.
type LotusAccountsDb struct {
	db *lotusdb.DB
}

func OpenLotusAccountsDb(dir string) (*LotusAccountsDb, error) {
	options := lotusdb.DefaultOptions
	options.DirPath = dir

	db, err := lotusdb.Open(options)
	if err != nil {
		return nil, err
	}

	return &LotusAccountsDb{db: db}, nil
}

func (m *LotusAccountsDb) Close() error {
	return m.db.Close()
}

func (m *LotusAccountsDb) GetAccount(pubkey *[32]byte) (*Account, error) {
	acctBytes, err := m.db.Get(pubkey[:])
	if errors.Is(err, lotusdb.ErrKeyNotFound) || (err == nil && acctBytes == nil) {
		return nil, ErrAccountNotFound
	} else if err != nil {
		return nil, fmt.Errorf("error whilst retrieving account %s: %w", base58.Encode(pubkey[:]), err)
	}

	acct, err := unmarshalAccount(pubkey, acctBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize account %s from lotusdb: %w", base58.Encode(pubkey[:]), err)
	}

	return acct, nil
}

func (m *LotusAccountsDb) SetAccount(pubkey *[32]byte, acct *Account) error {
	acctBytes, err := marshalAccount(acct)
	if err != nil {
		return fmt.Errorf("failed to serialize account for storage in lotusdb: %w", err)
	}

	err = m.db.Put(pubkey[:], acctBytes)
	if err != nil {
		return fmt.Errorf("error setting account for %s: %w", base58.Encode(pubkey[:]), err)
	}

	return nil
}

// SetAccounts writes every account in a single lotusdb batch.
func (m *LotusAccountsDb) SetAccounts(accts []*Account) error {
	batch := m.db.NewBatch(lotusdb.DefaultBatchOptions)
	for _, acct := range accts {
		acctBytes, err := marshalAccount(acct)
		if err != nil {
			return fmt.Errorf("failed to serialize account %s: %w", acct.Key, err)
		}
		if err = batch.Put(acct.Key[:], acctBytes); err != nil {
			return err
		}
	}
	return batch.Commit()
}

// Engines names the persistent stores OpenStore knows.
var Engines = []string{"pebble", "lotusdb"}

// Store is a persistent account store.
type Store interface {
	Accounts
	Close() error
}

// OpenStore opens the account store engine keeps in dir.
func OpenStore(engine, dir string) (Store, error) {
	var store Store
	var err error
	switch engine {
	case "pebble":
		store, err = OpenAccountsDb(dir)
	case "lotusdb":
		store, err = OpenLotusAccountsDb(dir)
	default:
		return nil, fmt.Errorf("unknown accounts db engine %q (want one of %v)", engine, Engines)
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}
