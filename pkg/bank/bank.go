package bank

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/VividCortex/ewma"
	"github.com/edwingeng/deque/v2"
	"github.com/gagliardetto/solana-go"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jonboulle/clockwork"
	"github.com/minio/sha256-simd"
	"github.com/stakeflow/stakeflow/pkg/accounts"
	"github.com/stakeflow/stakeflow/pkg/cu"
	"github.com/stakeflow/stakeflow/pkg/rent"
	"github.com/stakeflow/stakeflow/pkg/sealevel"
	"github.com/stakeflow/stakeflow/pkg/util"
	"k8s.io/klog/v2"
)

var (
	ErrBlockhashNotFound        = sealevel.TxErrBlockhashNotFound
	ErrAlreadyProcessed         = sealevel.TxErrAlreadyProcessed
	ErrSignatureFailure         = sealevel.TxErrSignatureFailure
	ErrAccountLoadedTwice       = sealevel.TxErrAccountLoadedTwice
	ErrSanitizeFailure          = sealevel.TxErrSanitizeFailure
	ErrInsufficientFundsForRent = rent.ErrInsufficientFundsForRent
)

type Params struct {
	Rent              sealevel.SysvarRent
	ComputeUnitLimit  uint64
	MaxParallelTxs    int
	StatusCacheSize   int
	BlockhashQueueLen int
	SlotsPerEpoch     uint64
}

func DefaultParams() Params {
	return Params{
		Rent:              sealevel.DefaultRent(),
		ComputeUnitLimit:  cu.DefaultComputeUnitLimit,
		MaxParallelTxs:    8,
		StatusCacheSize:   100_000,
		BlockhashQueueLen: 150,
		SlotsPerEpoch:     432_000,
	}
}

func (p Params) Validate() error {
	if p.ComputeUnitLimit == 0 {
		return errors.New("compute unit limit must be positive")
	}
	if p.MaxParallelTxs <= 0 {
		return errors.New("max parallel txs must be positive")
	}
	if p.StatusCacheSize <= 0 {
		return errors.New("status cache size must be positive")
	}
	if p.BlockhashQueueLen <= 0 {
		return errors.New("blockhash queue length must be positive")
	}
	if p.SlotsPerEpoch == 0 {
		return errors.New("slots per epoch must be positive")
	}
	return nil
}

// Bank executes transactions against an account store. Each transaction
// commits all of its writes in one batch or nothing.
type Bank struct {
	accts  accounts.Accounts
	clock  clockwork.Clock
	params Params
	locks  *accountLocks

	// signature -> slot processed in
	statusCache *lru.Cache[solana.Signature, uint64]

	cuMu      sync.Mutex
	cuAverage ewma.MovingAverage

	mu                  sync.RWMutex
	slot                uint64
	epochStartTimestamp int64
	blockhashes         *deque.Deque[solana.Hash]
	blockhashSet        map[solana.Hash]struct{}
}

// NewBank installs the native programs and sysvars into accts and opens
// slot 0. An existing store keeps its accounts.
func NewBank(accts accounts.Accounts, clock clockwork.Clock, params Params) (*Bank, error) {
	err := params.Validate()
	if err != nil {
		return nil, err
	}

	statusCache, err := lru.New[solana.Signature, uint64](params.StatusCacheSize)
	if err != nil {
		return nil, err
	}

	bank := &Bank{
		accts:               accts,
		clock:               clock,
		params:              params,
		locks:               newAccountLocks(),
		statusCache:         statusCache,
		cuAverage:           ewma.NewMovingAverage(),
		epochStartTimestamp: clock.Now().Unix(),
		blockhashes:         deque.NewDeque[solana.Hash](),
		blockhashSet:        make(map[solana.Hash]struct{}),
	}

	for _, programAddr := range sealevel.NativePrograms {
		programAcct := &accounts.Account{Key: programAddr, Lamports: 1, Data: make([]byte, 0), Owner: sealevel.NativeLoaderAddr, Executable: true}
		err = accts.SetAccount((*[32]byte)(&programAcct.Key), programAcct)
		if err != nil {
			return nil, fmt.Errorf("installing native program %s: %w", programAddr, err)
		}
	}

	err = sealevel.WriteRentSysvar(accts, params.Rent)
	if err != nil {
		return nil, fmt.Errorf("writing rent sysvar: %w", err)
	}
	err = sealevel.WriteClockSysvar(accts, bank.clockSysvarLocked())
	if err != nil {
		return nil, fmt.Errorf("writing clock sysvar: %w", err)
	}

	genesisHash := solana.Hash(sha256.Sum256([]byte("stakeflow-genesis")))
	bank.pushBlockhashLocked(genesisHash)
	CurrentSlot.Set(0)

	klog.Infof("bank opened at slot 0, genesis blockhash %s", genesisHash)
	return bank, nil
}

func (b *Bank) clockSysvarLocked() sealevel.SysvarClock {
	epoch := b.slot / b.params.SlotsPerEpoch
	return sealevel.SysvarClock{
		Slot:                b.slot,
		EpochStartTimestamp: b.epochStartTimestamp,
		Epoch:               epoch,
		LeaderScheduleEpoch: epoch + 1,
		UnixTimestamp:       b.clock.Now().Unix(),
	}
}

func (b *Bank) pushBlockhashLocked(hash solana.Hash) {
	b.blockhashes.PushBack(hash)
	b.blockhashSet[hash] = struct{}{}
	for b.blockhashes.Len() > b.params.BlockhashQueueLen {
		delete(b.blockhashSet, b.blockhashes.PopFront())
	}
}

// Tick advances the bank one slot. The new blockhash chains the previous one
// with the slot number, and the oldest entry leaves the queue once it is
// full.
func (b *Bank) Tick() (solana.Hash, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.slot++
	if b.slot%b.params.SlotsPerEpoch == 0 {
		b.epochStartTimestamp = b.clock.Now().Unix()
	}

	var slotBytes [8]byte
	binary.LittleEndian.PutUint64(slotBytes[:], b.slot)
	prev, _ := b.blockhashes.Back()

	hasher := sha256.New()
	hasher.Write(prev[:])
	hasher.Write(slotBytes[:])
	var hash solana.Hash
	copy(hash[:], hasher.Sum(nil))
	b.pushBlockhashLocked(hash)

	unlock := b.locks.lock([]lockRequest{{pubkey: sealevel.SysvarClockAddr, writable: true}})
	err := sealevel.WriteClockSysvar(b.accts, b.clockSysvarLocked())
	unlock()
	if err != nil {
		return solana.Hash{}, fmt.Errorf("writing clock sysvar: %w", err)
	}

	CurrentSlot.Set(float64(b.slot))
	klog.V(2).Infof("slot %d, blockhash %s", b.slot, hash)
	return hash, nil
}

func (b *Bank) Slot() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.slot
}

func (b *Bank) Params() Params {
	return b.params
}

func (b *Bank) Clock() clockwork.Clock {
	return b.clock
}

func (b *Bank) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	if err := ctx.Err(); err != nil {
		return solana.Hash{}, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	latest, _ := b.blockhashes.Back()
	return latest, nil
}

// LatestBlockhashWithHeight also returns the last slot at which the
// blockhash is still in the queue.
func (b *Bank) LatestBlockhashWithHeight(ctx context.Context) (solana.Hash, uint64, error) {
	if err := ctx.Err(); err != nil {
		return solana.Hash{}, 0, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	lastValid := b.slot + uint64(b.params.BlockhashQueueLen) - 1
	latest, _ := b.blockhashes.Back()
	return latest, lastValid, nil
}

func (b *Bank) isRecentBlockhash(hash solana.Hash) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.blockhashSet[hash]
	return ok
}

// GetAccount returns a copy of the stored account, or
// accounts.ErrAccountNotFound.
func (b *Bank) GetAccount(ctx context.Context, pubkey solana.PublicKey) (*accounts.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	unlock := b.locks.lock([]lockRequest{{pubkey: pubkey}})
	defer unlock()
	return b.accts.GetAccount((*[32]byte)(&pubkey))
}

// Airdrop credits lamports to pubkey outside of any transaction.
func (b *Bank) Airdrop(pubkey solana.PublicKey, lamports uint64) error {
	unlock := b.locks.lock([]lockRequest{{pubkey: pubkey, writable: true}})
	defer unlock()

	acct, err := b.accts.GetAccount((*[32]byte)(&pubkey))
	if errors.Is(err, accounts.ErrAccountNotFound) {
		acct = &accounts.Account{Key: pubkey, Data: make([]byte, 0), Owner: sealevel.SystemProgramAddr}
	} else if err != nil {
		return err
	}

	if acct.Lamports+lamports < acct.Lamports {
		return sealevel.InstrErrArithmeticOverflow
	}
	acct.Lamports += lamports
	return b.accts.SetAccount((*[32]byte)(&pubkey), acct)
}

// AccountsHash hashes the current state of the given accounts. Missing
// accounts hash as empty System accounts.
func (b *Bank) AccountsHash(pubkeys []solana.PublicKey) ([]byte, error) {
	pubkeys = util.DedupePubkeys(pubkeys)

	reqs := make([]lockRequest, len(pubkeys))
	for idx, pubkey := range pubkeys {
		reqs[idx] = lockRequest{pubkey: pubkey}
	}
	unlock := b.locks.lock(reqs)
	defer unlock()

	accts := make([]*accounts.Account, 0, len(pubkeys))
	for _, pubkey := range pubkeys {
		acct, err := b.loadAccount(pubkey)
		if err != nil {
			return nil, err
		}
		accts = append(accts, acct)
	}
	return util.AccountsHash(accts), nil
}

func (b *Bank) loadAccount(pubkey solana.PublicKey) (*accounts.Account, error) {
	acct, err := b.accts.GetAccount((*[32]byte)(&pubkey))
	if errors.Is(err, accounts.ErrAccountNotFound) {
		return &accounts.Account{Key: pubkey, Data: make([]byte, 0), Owner: sealevel.SystemProgramAddr}, nil
	} else if err != nil {
		return nil, err
	}
	acct.Key = pubkey
	return acct, nil
}

// AverageComputeUnits is the moving average of compute units consumed by
// committed transactions, failed ones included.
func (b *Bank) AverageComputeUnits() float64 {
	b.cuMu.Lock()
	defer b.cuMu.Unlock()
	return b.cuAverage.Value()
}

func (b *Bank) recordComputeUnits(used uint64) {
	b.cuMu.Lock()
	b.cuAverage.Add(float64(used))
	avg := b.cuAverage.Value()
	b.cuMu.Unlock()

	ComputeUnitsConsumed.Observe(float64(used))
	ComputeUnitsAverage.Set(avg)
}
