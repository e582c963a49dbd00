package sealevel

import (
	"bytes"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

const (
	MintSize         = 82
	TokenAccountSize = 165
)

const (
	TokenAccountStateUninitialized = 0
	TokenAccountStateInitialized   = 1
	TokenAccountStateFrozen        = 2
)

type Mint struct {
	MintAuthority   *solana.PublicKey
	Supply          uint64
	Decimals        uint8
	IsInitialized   bool
	FreezeAuthority *solana.PublicKey
}

type TokenAccount struct {
	Mint            solana.PublicKey
	Owner           solana.PublicKey
	Amount          uint64
	Delegate        *solana.PublicKey
	State           uint8
	IsNative        *uint64
	DelegatedAmount uint64
	CloseAuthority  *solana.PublicKey
}

func readCOptionPubkey(decoder *bin.Decoder) (*solana.PublicKey, error) {
	tag, err := decoder.ReadUint32(bin.LE)
	if err != nil {
		return nil, err
	}
	pkBytes, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return nil, err
	}

	switch tag {
	case 0:
		return nil, nil
	case 1:
		pk := solana.PublicKeyFromBytes(pkBytes)
		return &pk, nil
	default:
		return nil, InstrErrInvalidAccountData
	}
}

func writeCOptionPubkey(encoder *bin.Encoder, pk *solana.PublicKey) error {
	if pk == nil {
		err := encoder.WriteUint32(0, bin.LE)
		if err != nil {
			return err
		}
		return encoder.WriteBytes(make([]byte, solana.PublicKeyLength), false)
	}

	err := encoder.WriteUint32(1, bin.LE)
	if err != nil {
		return err
	}
	return encoder.WriteBytes(pk[:], false)
}

func (mint *Mint) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error

	mint.MintAuthority, err = readCOptionPubkey(decoder)
	if err != nil {
		return err
	}

	mint.Supply, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}

	mint.Decimals, err = decoder.ReadByte()
	if err != nil {
		return err
	}

	mint.IsInitialized, err = decoder.ReadBool()
	if err != nil {
		return err
	}

	mint.FreezeAuthority, err = readCOptionPubkey(decoder)
	return err
}

func (mint *Mint) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := writeCOptionPubkey(encoder, mint.MintAuthority)
	if err != nil {
		return err
	}

	err = encoder.WriteUint64(mint.Supply, bin.LE)
	if err != nil {
		return err
	}

	err = encoder.WriteByte(mint.Decimals)
	if err != nil {
		return err
	}

	err = encoder.WriteBool(mint.IsInitialized)
	if err != nil {
		return err
	}

	return writeCOptionPubkey(encoder, mint.FreezeAuthority)
}

func (mint *Mint) Marshal() []byte {
	buf := new(bytes.Buffer)
	err := mint.MarshalWithEncoder(bin.NewBinEncoder(buf))
	if err != nil {
		panic("shouldn't fail")
	}
	return buf.Bytes()
}

// UnmarshalMint decodes a mint. Any length other than MintSize is
// InstrErrInvalidAccountData.
func UnmarshalMint(data []byte) (*Mint, error) {
	if len(data) != MintSize {
		return nil, InstrErrInvalidAccountData
	}
	mint := new(Mint)
	err := mint.UnmarshalWithDecoder(bin.NewBinDecoder(data))
	if err != nil {
		return nil, InstrErrInvalidAccountData
	}
	return mint, nil
}

func (acct *TokenAccount) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	mint, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return err
	}
	copy(acct.Mint[:], mint)

	owner, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return err
	}
	copy(acct.Owner[:], owner)

	acct.Amount, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}

	acct.Delegate, err = readCOptionPubkey(decoder)
	if err != nil {
		return err
	}

	acct.State, err = decoder.ReadByte()
	if err != nil {
		return err
	}
	if acct.State > TokenAccountStateFrozen {
		return InstrErrInvalidAccountData
	}

	nativeTag, err := decoder.ReadUint32(bin.LE)
	if err != nil {
		return err
	}
	nativeAmount, err := decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}
	switch nativeTag {
	case 0:
		acct.IsNative = nil
	case 1:
		acct.IsNative = &nativeAmount
	default:
		return InstrErrInvalidAccountData
	}

	acct.DelegatedAmount, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}

	acct.CloseAuthority, err = readCOptionPubkey(decoder)
	return err
}

func (acct *TokenAccount) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteBytes(acct.Mint[:], false)
	if err != nil {
		return err
	}

	err = encoder.WriteBytes(acct.Owner[:], false)
	if err != nil {
		return err
	}

	err = encoder.WriteUint64(acct.Amount, bin.LE)
	if err != nil {
		return err
	}

	err = writeCOptionPubkey(encoder, acct.Delegate)
	if err != nil {
		return err
	}

	err = encoder.WriteByte(acct.State)
	if err != nil {
		return err
	}

	if acct.IsNative == nil {
		err = encoder.WriteUint32(0, bin.LE)
		if err == nil {
			err = encoder.WriteUint64(0, bin.LE)
		}
	} else {
		err = encoder.WriteUint32(1, bin.LE)
		if err == nil {
			err = encoder.WriteUint64(*acct.IsNative, bin.LE)
		}
	}
	if err != nil {
		return err
	}

	err = encoder.WriteUint64(acct.DelegatedAmount, bin.LE)
	if err != nil {
		return err
	}

	return writeCOptionPubkey(encoder, acct.CloseAuthority)
}

func (acct *TokenAccount) Marshal() []byte {
	buf := new(bytes.Buffer)
	err := acct.MarshalWithEncoder(bin.NewBinEncoder(buf))
	if err != nil {
		panic("shouldn't fail")
	}
	return buf.Bytes()
}

func (acct *TokenAccount) IsInitialized() bool {
	return acct.State != TokenAccountStateUninitialized
}

func (acct *TokenAccount) IsFrozen() bool {
	return acct.State == TokenAccountStateFrozen
}

// UnmarshalTokenAccount decodes a token account. Any length other than
// TokenAccountSize is InstrErrInvalidAccountData.
func UnmarshalTokenAccount(data []byte) (*TokenAccount, error) {
	if len(data) != TokenAccountSize {
		return nil, InstrErrInvalidAccountData
	}
	acct := new(TokenAccount)
	err := acct.UnmarshalWithDecoder(bin.NewBinDecoder(data))
	if err != nil {
		return nil, InstrErrInvalidAccountData
	}
	return acct, nil
}
