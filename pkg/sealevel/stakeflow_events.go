package sealevel

import (
	"bytes"
	"encoding/base64"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

const ProgramDataLogPrefix = "Program data: "

type StakeFlowStakeEvent struct {
	Owner  solana.PublicKey
	Amount uint64
}

type StakeFlowUnstakeEvent struct {
	Owner   solana.PublicKey
	Amount  uint64
	Penalty uint64
}

type StakeFlowClaimEvent struct {
	Owner   solana.PublicKey
	Rewards uint64
}

func (ev *StakeFlowStakeEvent) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteBytes(StakeFlowStakeEventDiscriminator[:], false)
	if err != nil {
		return err
	}
	err = encoder.WriteBytes(ev.Owner[:], false)
	if err != nil {
		return err
	}
	return encoder.WriteUint64(ev.Amount, bin.LE)
}

func (ev *StakeFlowStakeEvent) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	err := readPubkey(decoder, &ev.Owner)
	if err != nil {
		return err
	}
	ev.Amount, err = decoder.ReadUint64(bin.LE)
	return err
}

func (ev *StakeFlowUnstakeEvent) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteBytes(StakeFlowUnstakeEventDiscriminator[:], false)
	if err != nil {
		return err
	}
	err = encoder.WriteBytes(ev.Owner[:], false)
	if err != nil {
		return err
	}
	err = encoder.WriteUint64(ev.Amount, bin.LE)
	if err != nil {
		return err
	}
	return encoder.WriteUint64(ev.Penalty, bin.LE)
}

func (ev *StakeFlowUnstakeEvent) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	err := readPubkey(decoder, &ev.Owner)
	if err != nil {
		return err
	}
	ev.Amount, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}
	ev.Penalty, err = decoder.ReadUint64(bin.LE)
	return err
}

func (ev *StakeFlowClaimEvent) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteBytes(StakeFlowClaimEventDiscriminator[:], false)
	if err != nil {
		return err
	}
	err = encoder.WriteBytes(ev.Owner[:], false)
	if err != nil {
		return err
	}
	return encoder.WriteUint64(ev.Rewards, bin.LE)
}

func (ev *StakeFlowClaimEvent) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	err := readPubkey(decoder, &ev.Owner)
	if err != nil {
		return err
	}
	ev.Rewards, err = decoder.ReadUint64(bin.LE)
	return err
}

// emitEvent writes the event to the program log as base64 program data.
func (execCtx *ExecutionCtx) emitEvent(ev BinaryMarshaler) error {
	err := execCtx.ComputeMeter.Consume(CUStakeFlowEventEmitUnits)
	if err != nil {
		return err
	}

	buf := new(bytes.Buffer)
	err = ev.MarshalWithEncoder(bin.NewBinEncoder(buf))
	if err != nil {
		return err
	}

	execCtx.log(ProgramDataLogPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()))
	return nil
}
