package sealevel

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/stakeflow/stakeflow/pkg/accounts"
	"github.com/stakeflow/stakeflow/pkg/base58"
)

const SysvarRentAddrStr = "SysvarRent111111111111111111111111111111111"

var SysvarRentAddr = base58.MustDecodeFromString(SysvarRentAddrStr)

const SysvarRentStructLen = 17

const (
	DefaultLamportsPerByteYear = 3480
	DefaultExemptionThreshold  = 2.0
	DefaultBurnPercent         = 50

	AccountStorageOverhead = 128
)

type SysvarRent struct {
	LamportsPerUint8Year uint64
	ExemptionThreshold   float64
	BurnPercent          byte
}

func DefaultRent() SysvarRent {
	return SysvarRent{LamportsPerUint8Year: DefaultLamportsPerByteYear, ExemptionThreshold: DefaultExemptionThreshold, BurnPercent: DefaultBurnPercent}
}

// MinimumBalance is the rent-exempt balance for an account holding dataLen bytes.
func (sr *SysvarRent) MinimumBalance(dataLen uint64) uint64 {
	size := dataLen + AccountStorageOverhead
	return uint64(float64(size*sr.LamportsPerUint8Year) * sr.ExemptionThreshold)
}

func (sr *SysvarRent) IsExempt(lamports uint64, dataLen uint64) bool {
	return lamports >= sr.MinimumBalance(dataLen)
}

func (sr *SysvarRent) UnmarshalWithDecoder(decoder *bin.Decoder) (err error) {
	lamportsPerUint8Year, err := decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read LamportsPerUint8Year when decoding SysvarRent: %w", err)
	}
	sr.LamportsPerUint8Year = lamportsPerUint8Year

	exemptionThreshold, err := decoder.ReadFloat64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read ExemptionThreshold when decoding SysvarRent: %w", err)
	}
	sr.ExemptionThreshold = exemptionThreshold

	burnPercent, err := decoder.ReadByte()
	if err != nil {
		return fmt.Errorf("failed to read BurnPercent when decoding SysvarRent: %w", err)
	}
	sr.BurnPercent = burnPercent

	return
}

func (sr *SysvarRent) MarshalWithEncoder(encoder *bin.Encoder) error {
	_ = encoder.WriteUint64(sr.LamportsPerUint8Year, bin.LE)
	_ = encoder.WriteFloat64(sr.ExemptionThreshold, bin.LE)
	return encoder.WriteByte(sr.BurnPercent)
}

func ReadRentSysvar(accts accounts.Accounts) (SysvarRent, error) {
	var rent SysvarRent
	rentAcct, err := accts.GetAccount(&SysvarRentAddr)
	if err != nil {
		return rent, fmt.Errorf("failed to read rent sysvar account: %w", err)
	}

	err = rent.UnmarshalWithDecoder(bin.NewBinDecoder(rentAcct.Data))
	return rent, err
}

func WriteRentSysvar(accts accounts.Accounts, rent SysvarRent) error {
	buf := new(bytes.Buffer)
	if err := rent.MarshalWithEncoder(bin.NewBinEncoder(buf)); err != nil {
		return err
	}

	rentAcct := &accounts.Account{Key: SysvarRentAddr, Lamports: 1009200, Data: buf.Bytes(), Owner: SysvarOwnerAddr}
	return accts.SetAccount(&SysvarRentAddr, rentAcct)
}
