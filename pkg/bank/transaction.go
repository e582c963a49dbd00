package bank

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/panjf2000/ants/v2"
	"github.com/stakeflow/stakeflow/pkg/accounts"
	"github.com/stakeflow/stakeflow/pkg/cu"
	"github.com/stakeflow/stakeflow/pkg/rent"
	"github.com/stakeflow/stakeflow/pkg/sealevel"
	"k8s.io/klog/v2"
)

type TxResult struct {
	Signature            solana.Signature
	Slot                 uint64
	Logs                 []string
	ComputeUnitsConsumed uint64
	Err                  error
}

type SimulateOpts struct {
	SigVerify              bool
	ReplaceRecentBlockhash bool
}

func sanitizeTransaction(tx *solana.Transaction) error {
	header := tx.Message.Header
	if header.NumRequiredSignatures == 0 || len(tx.Signatures) != int(header.NumRequiredSignatures) {
		return fmt.Errorf("%w: %d signatures for %d required signers", ErrSanitizeFailure, len(tx.Signatures), header.NumRequiredSignatures)
	}
	if int(header.NumRequiredSignatures) > len(tx.Message.AccountKeys) || header.NumReadonlySignedAccounts >= header.NumRequiredSignatures {
		return ErrSanitizeFailure
	}
	if len(tx.Message.Instructions) == 0 {
		return fmt.Errorf("%w: no instructions", ErrSanitizeFailure)
	}

	seen := make(map[solana.PublicKey]struct{}, len(tx.Message.AccountKeys))
	for _, pubkey := range tx.Message.AccountKeys {
		if _, ok := seen[pubkey]; ok {
			return ErrAccountLoadedTwice
		}
		seen[pubkey] = struct{}{}
	}

	for _, instr := range tx.Message.Instructions {
		if int(instr.ProgramIDIndex) >= len(tx.Message.AccountKeys) || instr.ProgramIDIndex == 0 {
			return fmt.Errorf("%w: bad program index %d", ErrSanitizeFailure, instr.ProgramIDIndex)
		}
		for _, acctIdx := range instr.Accounts {
			if int(acctIdx) >= len(tx.Message.AccountKeys) {
				return fmt.Errorf("%w: bad account index %d", ErrSanitizeFailure, acctIdx)
			}
		}
	}
	return nil
}

// isWritable demotes programs and sysvars to read-only whatever the message
// says.
func isWritable(programIds solana.PublicKeySlice, am *solana.AccountMeta) bool {
	if !am.IsWritable {
		return false
	}
	if sealevel.IsNativeProgram(am.PublicKey) || sealevel.IsSysvar(am.PublicKey) {
		return false
	}
	return !programIds.Contains(am.PublicKey)
}

func programIndices(tx *solana.Transaction, instrIdx int) []uint64 {
	idx := uint64(tx.Message.Instructions[instrIdx].ProgramIDIndex)
	return []uint64{idx}
}

type preparedTx struct {
	acctMetas []*solana.AccountMeta
	writable  []bool
	instrs    [][]sealevel.AccountMeta
}

func prepareTransaction(tx *solana.Transaction) (*preparedTx, error) {
	programIds, err := tx.GetProgramIDs()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSanitizeFailure, err)
	}

	txAcctMetas, err := tx.AccountMetaList()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSanitizeFailure, err)
	}

	prepared := &preparedTx{acctMetas: txAcctMetas, writable: make([]bool, len(txAcctMetas))}
	for idx, am := range txAcctMetas {
		prepared.writable[idx] = isWritable(programIds, am)
	}

	for _, instr := range tx.Message.Instructions {
		instr := instr
		resolved, err := instr.ResolveInstructionAccounts(&tx.Message)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrSanitizeFailure, err)
		}

		acctMetas := make([]sealevel.AccountMeta, 0, len(resolved))
		for _, am := range resolved {
			acctMetas = append(acctMetas, sealevel.AccountMeta{Pubkey: am.PublicKey, IsSigner: am.IsSigner, IsWritable: isWritable(programIds, am)})
		}
		prepared.instrs = append(prepared.instrs, acctMetas)
	}

	return prepared, nil
}

func (p *preparedTx) lockRequests() []lockRequest {
	reqs := make([]lockRequest, len(p.acctMetas))
	for idx, am := range p.acctMetas {
		reqs[idx] = lockRequest{pubkey: am.PublicKey, writable: p.writable[idx]}
	}
	return reqs
}

// loadTransactionAccounts copies every account the message names. Missing
// accounts load as empty System accounts.
func (b *Bank) loadTransactionAccounts(tx *solana.Transaction, prepared *preparedTx) (*sealevel.TransactionAccounts, error) {
	var programIdIdxs []uint64
	for _, instr := range tx.Message.Instructions {
		programIdIdxs = append(programIdIdxs, uint64(instr.ProgramIDIndex))
	}

	acctsForTx := make([]accounts.Account, 0, len(prepared.acctMetas))
	for idx, acctMeta := range prepared.acctMetas {
		var acct *accounts.Account
		if slices.Contains(programIdIdxs, uint64(idx)) && sealevel.IsNativeProgram(acctMeta.PublicKey) {
			acct = &accounts.Account{Key: acctMeta.PublicKey, Lamports: 1, Data: make([]byte, 0), Owner: sealevel.NativeLoaderAddr, Executable: true}
		} else {
			var err error
			acct, err = b.loadAccount(acctMeta.PublicKey)
			if err != nil {
				return nil, fmt.Errorf("loading account %s: %w", acctMeta.PublicKey, err)
			}
		}
		acctsForTx = append(acctsForTx, *acct)
	}

	return sealevel.NewTransactionAccounts(acctsForTx), nil
}

func (b *Bank) newExecCtx(txAccts *sealevel.TransactionAccounts, log *sealevel.LogRecorder) (*sealevel.ExecutionCtx, error) {
	clock, err := sealevel.ReadClockSysvar(b.accts)
	if err != nil {
		return nil, fmt.Errorf("reading clock sysvar: %w", err)
	}
	rentSysvar, err := sealevel.ReadRentSysvar(b.accts)
	if err != nil {
		return nil, fmt.Errorf("reading rent sysvar: %w", err)
	}

	txCtx := sealevel.NewTransactionCtx(*txAccts, sealevel.MaxInstructionStackDepth, sealevel.MaxInstructionTraceLength)
	return &sealevel.ExecutionCtx{
		Log:                log,
		TransactionContext: txCtx,
		ComputeMeter:       cu.NewComputeMeter(b.params.ComputeUnitLimit),
		SysvarCache:        sealevel.NewSysvarCache(clock, rentSysvar),
	}, nil
}

// execute runs every instruction of tx in order against private copies of
// its accounts. On success the touched accounts are committed in one batch
// unless commit is false.
func (b *Bank) execute(tx *solana.Transaction, prepared *preparedTx, result *TxResult, commit bool) error {
	txAccts, err := b.loadTransactionAccounts(tx, prepared)
	if err != nil {
		return err
	}

	var log sealevel.LogRecorder
	execCtx, err := b.newExecCtx(txAccts, &log)
	if err != nil {
		return err
	}
	defer func() {
		result.Logs = log.Logs
		result.ComputeUnitsConsumed = execCtx.ComputeMeter.Used()
	}()

	txAccts = &execCtx.TransactionContext.Accounts
	preTxRentStates := rent.NewRentStateInfo(&b.params.Rent, txAccts, prepared.writable)

	for instrIdx, instr := range tx.Message.Instructions {
		instructionAccts := sealevel.InstructionAcctsFromAccountMetas(prepared.instrs[instrIdx], *txAccts)
		err = execCtx.ProcessInstruction(instr.Data, instructionAccts, programIndices(tx, instrIdx))
		if err != nil {
			return &sealevel.TxError{InstructionIndex: instrIdx, Err: err}
		}
	}

	postTxRentStates := rent.NewRentStateInfo(&b.params.Rent, txAccts, prepared.writable)
	acctIdx, err := rent.VerifyRentStateChanges(preTxRentStates, postTxRentStates)
	if err != nil {
		return fmt.Errorf("%w: account %s", err, txAccts.Accounts[acctIdx].Key)
	}

	if !commit {
		return nil
	}

	touched := txAccts.TouchedAccounts()
	err = b.accts.SetAccounts(touched)
	if err != nil {
		return fmt.Errorf("committing %d accounts: %w", len(touched), err)
	}
	for _, acct := range touched {
		klog.V(3).Infof("modified account %s after tx %s", acct.Key, result.Signature)
	}
	return nil
}

// ProcessTransaction verifies, executes and commits tx. The returned result
// is never nil. Its Err matches the returned error.
func (b *Bank) ProcessTransaction(ctx context.Context, tx *solana.Transaction) (*TxResult, error) {
	start := time.Now()
	result := &TxResult{Slot: b.Slot()}

	reject := func(err error) (*TxResult, error) {
		TransactionsTotal.WithLabelValues(statusRejected).Inc()
		klog.V(2).Infof("rejected tx %s: %s", result.Signature, err)
		result.Err = err
		return result, err
	}

	if err := ctx.Err(); err != nil {
		result.Err = err
		return result, err
	}

	err := sanitizeTransaction(tx)
	if err != nil {
		return reject(err)
	}
	result.Signature = tx.Signatures[0]

	err = tx.VerifySignatures()
	if err != nil {
		return reject(fmt.Errorf("%w: %s", ErrSignatureFailure, err))
	}

	if !b.isRecentBlockhash(tx.Message.RecentBlockhash) {
		return reject(ErrBlockhashNotFound)
	}

	prepared, err := prepareTransaction(tx)
	if err != nil {
		return reject(err)
	}

	unlock := b.locks.lock(prepared.lockRequests())
	defer unlock()

	if found, _ := b.statusCache.ContainsOrAdd(result.Signature, result.Slot); found {
		return reject(ErrAlreadyProcessed)
	}

	err = b.execute(tx, prepared, result, true)

	TransactionDuration.Observe(time.Since(start).Seconds())
	b.recordComputeUnits(result.ComputeUnitsConsumed)
	for _, l := range result.Logs {
		klog.V(2).Infof("%s", l)
	}

	if err != nil {
		b.statusCache.Remove(result.Signature)
		TransactionsTotal.WithLabelValues(statusFailed).Inc()
		klog.V(2).Infof("tx %s failed: %s", result.Signature, err)
		result.Err = err
		return result, err
	}

	TransactionsTotal.WithLabelValues(statusSuccess).Inc()
	klog.V(2).Infof("[+] tx %s - compute units consumed: %d", result.Signature, result.ComputeUnitsConsumed)
	return result, nil
}

// SendTransaction processes tx and returns its signature.
func (b *Bank) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	result, err := b.ProcessTransaction(ctx, tx)
	if err != nil {
		return solana.Signature{}, err
	}
	return result.Signature, nil
}

// SimulateTransaction executes tx without committing anything or recording
// its signature.
func (b *Bank) SimulateTransaction(ctx context.Context, tx *solana.Transaction, opts SimulateOpts) (*TxResult, error) {
	result := &TxResult{Slot: b.Slot()}
	if err := ctx.Err(); err != nil {
		result.Err = err
		return result, err
	}

	err := sanitizeTransaction(tx)
	if err != nil {
		result.Err = err
		return result, err
	}
	result.Signature = tx.Signatures[0]

	if opts.SigVerify {
		err = tx.VerifySignatures()
		if err != nil {
			result.Err = fmt.Errorf("%w: %s", ErrSignatureFailure, err)
			return result, result.Err
		}
	}

	if !opts.ReplaceRecentBlockhash && !b.isRecentBlockhash(tx.Message.RecentBlockhash) {
		result.Err = ErrBlockhashNotFound
		return result, result.Err
	}

	prepared, err := prepareTransaction(tx)
	if err != nil {
		result.Err = err
		return result, err
	}

	unlock := b.locks.lock(prepared.lockRequests())
	defer unlock()

	err = b.execute(tx, prepared, result, false)
	result.Err = err
	return result, err
}

// ProcessTransactions runs txs concurrently on a pool of MaxParallelTxs
// workers. Transactions writing a common account run one after another in
// lock order. A failed transaction does not stop the others. The error is
// non-nil only if ctx ended before some transaction started; those get the
// context error as their result.
func (b *Bank) ProcessTransactions(ctx context.Context, txs []*solana.Transaction) ([]*TxResult, error) {
	results := make([]*TxResult, len(txs))

	pool, err := ants.NewPool(b.params.MaxParallelTxs)
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	var wg sync.WaitGroup
	var canceled atomic.Bool
	for idx, tx := range txs {
		idx, tx := idx, tx
		wg.Add(1)
		err = pool.Submit(func() {
			defer wg.Done()
			if err := ctx.Err(); err != nil {
				canceled.Store(true)
				results[idx] = &TxResult{Err: err}
				return
			}
			results[idx], _ = b.ProcessTransaction(ctx, tx)
		})
		if err != nil {
			wg.Done()
			results[idx] = &TxResult{Err: err}
		}
	}
	wg.Wait()

	if canceled.Load() {
		return results, ctx.Err()
	}
	return results, nil
}
