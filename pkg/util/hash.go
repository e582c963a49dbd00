package util

import (
	"encoding/binary"
	"sort"

	"github.com/gagliardetto/solana-go"
	"github.com/minio/sha256-simd"
	"github.com/stakeflow/stakeflow/pkg/accounts"
	"github.com/zeebo/blake3"
)

const merkleFanout = 16

func CalculateAcctHash(acct accounts.Account) []byte {
	hasher := blake3.New()

	var lamportBytes [8]byte
	binary.LittleEndian.PutUint64(lamportBytes[:], acct.Lamports)
	_, _ = hasher.Write(lamportBytes[:])

	var rentEpochBytes [8]byte
	binary.LittleEndian.PutUint64(rentEpochBytes[:], acct.RentEpoch)
	_, _ = hasher.Write(rentEpochBytes[:])

	_, _ = hasher.Write(acct.Data)

	if acct.Executable {
		_, _ = hasher.Write([]byte{1})
	} else {
		_, _ = hasher.Write([]byte{0})
	}

	_, _ = hasher.Write(acct.Owner[:])
	_, _ = hasher.Write(acct.Key[:])

	return hasher.Sum(nil)
}

type acctHash struct {
	pubkey solana.PublicKey
	hash   []byte
}

// AccountsHash is the fanout-16 sha256 merkle root over the blake3 hashes of
// the given accounts, ordered by pubkey. It returns nil for no accounts.
func AccountsHash(accts []*accounts.Account) []byte {
	pairs := make([]acctHash, len(accts))
	for idx, acct := range accts {
		pairs[idx] = acctHash{pubkey: acct.Key, hash: CalculateAcctHash(*acct)}
	}

	sort.SliceStable(pairs, func(i, j int) bool {
		return PubkeyCmp(pairs[i].pubkey, pairs[j].pubkey)
	})

	hashes := make([][]byte, len(pairs))
	for idx, pair := range pairs {
		hashes[idx] = pair.hash
	}

	return computeMerkleRoot(hashes)
}

func divCeil(x uint64, y uint64) uint64 {
	result := x / y
	if (x % y) != 0 {
		result++
	}
	return result
}

func computeMerkleRoot(hashes [][]byte) []byte {
	if len(hashes) == 0 {
		return nil
	}

	total := uint64(len(hashes))
	chunks := divCeil(total, merkleFanout)
	results := make([][]byte, chunks)

	for i := uint64(0); i < chunks; i++ {
		startIdx := i * merkleFanout
		endIdx := min(startIdx+merkleFanout, total)

		hasher := sha256.New()
		for _, h := range hashes[startIdx:endIdx] {
			hasher.Write(h)
		}
		results[i] = hasher.Sum(nil)
	}

	if len(results) == 1 {
		return results[0]
	}
	return computeMerkleRoot(results)
}
