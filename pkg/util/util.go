package util

import (
	"encoding/binary"
	"slices"
	"sort"

	"github.com/gagliardetto/solana-go"
)

func PubkeyCmp(a solana.PublicKey, b solana.PublicKey) bool {
	for i := uint64(0); i < 4; i++ {
		a1 := binary.BigEndian.Uint64(a[8*i:])
		b1 := binary.BigEndian.Uint64(b[8*i:])
		if a1 != b1 {
			return a1 < b1
		}
	}
	return false
}

// DedupePubkeys sorts pubkeys in place and drops duplicates.
func DedupePubkeys(pubkeys []solana.PublicKey) []solana.PublicKey {
	sort.SliceStable(pubkeys, func(i, j int) bool {
		return PubkeyCmp(pubkeys[i], pubkeys[j])
	})

	sortedPubkeys := slices.Compact(pubkeys)
	return sortedPubkeys
}
