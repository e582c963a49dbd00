package accounts

import (
	"bytes"
	"errors"
	"io"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

var ErrAccountNotFound = errors.New("account not found")

// Accounts is a keyed account store. SetAccounts must apply all writes or none.
type Accounts interface {
	GetAccount(pubkey *[32]byte) (*Account, error)
	SetAccount(pubkey *[32]byte, acct *Account) error
	SetAccounts(accts []*Account) error
}

type Account struct {
	Key        solana.PublicKey
	Lamports   uint64
	Data       []byte
	Owner      solana.PublicKey
	Executable bool
	RentEpoch  uint64
}

func (a *Account) Clone() *Account {
	clone := *a
	clone.Data = bytes.Clone(a.Data)
	if clone.Data == nil {
		clone.Data = make([]byte, 0)
	}
	return &clone
}

func (a *Account) SetData(data []byte) {
	a.Data = bytes.Clone(data)
}

// IsEmpty reports whether the account has never been funded or allocated.
func (a *Account) IsEmpty() bool {
	return a.Lamports == 0 && len(a.Data) == 0 && a.Owner == solana.PublicKey{} && !a.Executable
}

func (a *Account) UnmarshalWithDecoder(decoder *bin.Decoder) (err error) {
	a.Lamports, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}
	var dataLen uint64
	dataLen, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}
	if dataLen > uint64(decoder.Remaining()) {
		return io.ErrUnexpectedEOF
	}
	a.Data, err = decoder.ReadNBytes(int(dataLen))
	if err != nil {
		return err
	}
	owner, err := decoder.ReadNBytes(solana.PublicKeyLength)
	if err != nil {
		return err
	}
	copy(a.Owner[:], owner)
	a.Executable, err = decoder.ReadBool()
	if err != nil {
		return err
	}
	a.RentEpoch, err = decoder.ReadUint64(bin.LE)
	return
}

func (a *Account) MarshalWithEncoder(encoder *bin.Encoder) error {
	_ = encoder.WriteUint64(a.Lamports, bin.LE)
	_ = encoder.WriteUint64(uint64(len(a.Data)), bin.LE)
	_ = encoder.WriteBytes(a.Data, false)
	_ = encoder.WriteBytes(a.Owner[:], false)
	_ = encoder.WriteBool(a.Executable)
	return encoder.WriteUint64(a.RentEpoch, bin.LE)
}

func marshalAccount(acct *Account) ([]byte, error) {
	writer := new(bytes.Buffer)
	encoder := bin.NewBinEncoder(writer)
	if err := acct.MarshalWithEncoder(encoder); err != nil {
		return nil, err
	}
	return writer.Bytes(), nil
}

func unmarshalAccount(pubkey *[32]byte, acctBytes []byte) (*Account, error) {
	decoder := bin.NewBinDecoder(acctBytes)
	acct := new(Account)
	if err := acct.UnmarshalWithDecoder(decoder); err != nil {
		return nil, err
	}
	acct.Key = *pubkey
	acct.Data = bytes.Clone(acct.Data)
	return acct, nil
}
