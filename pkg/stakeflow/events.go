package stakeflow

import (
	"encoding/base64"
	"fmt"
	"strings"

	bin "github.com/gagliardetto/binary"
	"github.com/samber/lo"
	"github.com/stakeflow/stakeflow/pkg/sealevel"
)

type (
	StakeEvent   = sealevel.StakeFlowStakeEvent
	UnstakeEvent = sealevel.StakeFlowUnstakeEvent
	ClaimEvent   = sealevel.StakeFlowClaimEvent
)

// ParseEvents decodes the StakeFlow events found in a transaction's log.
// Each element is a *StakeEvent, *UnstakeEvent or *ClaimEvent. Program data
// from other programs is skipped.
func ParseEvents(logs []string) ([]any, error) {
	payloads := lo.FilterMap(logs, func(line string, _ int) (string, bool) {
		return strings.TrimPrefix(line, sealevel.ProgramDataLogPrefix), strings.HasPrefix(line, sealevel.ProgramDataLogPrefix)
	})

	var events []any
	for _, payload := range payloads {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("decoding program data: %w", err)
		}
		if len(data) < 8 {
			continue
		}

		var disc [8]byte
		copy(disc[:], data[:8])
		decoder := bin.NewBinDecoder(data[8:])

		switch disc {
		case sealevel.StakeFlowStakeEventDiscriminator:
			ev := new(StakeEvent)
			if err = ev.UnmarshalWithDecoder(decoder); err != nil {
				return nil, fmt.Errorf("decoding StakeEvent: %w", err)
			}
			events = append(events, ev)
		case sealevel.StakeFlowUnstakeEventDiscriminator:
			ev := new(UnstakeEvent)
			if err = ev.UnmarshalWithDecoder(decoder); err != nil {
				return nil, fmt.Errorf("decoding UnstakeEvent: %w", err)
			}
			events = append(events, ev)
		case sealevel.StakeFlowClaimEventDiscriminator:
			ev := new(ClaimEvent)
			if err = ev.UnmarshalWithDecoder(decoder); err != nil {
				return nil, fmt.Errorf("decoding ClaimEvent: %w", err)
			}
			events = append(events, ev)
		}
	}
	return events, nil
}
