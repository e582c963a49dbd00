package bank

import (
	"sort"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/stakeflow/stakeflow/pkg/util"
)

// accountLocks hands out one RWMutex per account. Writers of an account
// exclude each other and its readers.
type accountLocks struct {
	m cmap.ConcurrentMap[solana.PublicKey, *sync.RWMutex]
}

func newAccountLocks() *accountLocks {
	return &accountLocks{m: cmap.NewStringer[solana.PublicKey, *sync.RWMutex]()}
}

func (l *accountLocks) get(pubkey solana.PublicKey) *sync.RWMutex {
	return l.m.Upsert(pubkey, nil, func(exist bool, valueInMap *sync.RWMutex, _ *sync.RWMutex) *sync.RWMutex {
		if exist {
			return valueInMap
		}
		return new(sync.RWMutex)
	})
}

type lockRequest struct {
	pubkey   solana.PublicKey
	writable bool
}

// lock acquires every requested lock in pubkey order and returns the
// function releasing them. An account requested both ways is locked for
// writing.
func (l *accountLocks) lock(reqs []lockRequest) func() {
	start := time.Now()

	merged := make(map[solana.PublicKey]bool, len(reqs))
	for _, req := range reqs {
		merged[req.pubkey] = merged[req.pubkey] || req.writable
	}

	ordered := make([]solana.PublicKey, 0, len(merged))
	for pubkey := range merged {
		ordered = append(ordered, pubkey)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return util.PubkeyCmp(ordered[i], ordered[j])
	})

	unlocks := make([]func(), 0, len(ordered))
	for _, pubkey := range ordered {
		mu := l.get(pubkey)
		if merged[pubkey] {
			mu.Lock()
			unlocks = append(unlocks, mu.Unlock)
		} else {
			mu.RLock()
			unlocks = append(unlocks, mu.RUnlock)
		}
	}

	LockWaitDuration.Observe(time.Since(start).Seconds())

	return func() {
		for idx := len(unlocks) - 1; idx >= 0; idx-- {
			unlocks[idx]()
		}
	}
}
