package sealevel

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stakeflow/stakeflow/pkg/accounts"
	"github.com/stakeflow/stakeflow/pkg/cu"
	"github.com/stretchr/testify/require"
)

func nativeProgramAcct(addr solana.PublicKey) accounts.Account {
	return accounts.Account{Key: addr, Lamports: 1, Data: make([]byte, 0), Owner: NativeLoaderAddr, Executable: true}
}

func newRandomPubkey(t *testing.T) solana.PublicKey {
	privKey, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return privKey.PublicKey()
}

// testLedger is a minimal host for running instructions against a set of
// accounts. A successful instruction writes every account back.
type testLedger struct {
	t     *testing.T
	accts map[solana.PublicKey]accounts.Account
	now   int64
	rent  SysvarRent
	logs  []string
}

func newTestLedger(t *testing.T) *testLedger {
	ledger := &testLedger{t: t, accts: make(map[solana.PublicKey]accounts.Account), rent: DefaultRent(), now: 1_700_000_000}
	for _, programAddr := range NativePrograms {
		ledger.accts[programAddr] = nativeProgramAcct(programAddr)
	}
	return ledger
}

func (l *testLedger) get(pubkey solana.PublicKey) accounts.Account {
	acct, ok := l.accts[pubkey]
	if !ok {
		return accounts.Account{Key: pubkey, Data: make([]byte, 0), Owner: SystemProgramAddr}
	}
	return *acct.Clone()
}

func (l *testLedger) set(acct accounts.Account) {
	l.accts[acct.Key] = acct
}

func (l *testLedger) fund(pubkey solana.PublicKey, lamports uint64) {
	acct := l.get(pubkey)
	acct.Lamports += lamports
	l.set(acct)
}

func (l *testLedger) newWallet(lamports uint64) solana.PublicKey {
	wallet := newRandomPubkey(l.t)
	l.fund(wallet, lamports)
	return wallet
}

func (l *testLedger) newMint(authority solana.PublicKey, decimals uint8) solana.PublicKey {
	mintKey := newRandomPubkey(l.t)
	mint := Mint{MintAuthority: &authority, Decimals: decimals, IsInitialized: true}
	l.set(accounts.Account{Key: mintKey, Lamports: l.rent.MinimumBalance(MintSize), Data: mint.Marshal(), Owner: TokenProgramAddr})
	return mintKey
}

func (l *testLedger) newTokenAccount(mint solana.PublicKey, owner solana.PublicKey, amount uint64) solana.PublicKey {
	key := newRandomPubkey(l.t)
	tokenAcct := TokenAccount{Mint: mint, Owner: owner, Amount: amount, State: TokenAccountStateInitialized}
	l.set(accounts.Account{Key: key, Lamports: l.rent.MinimumBalance(TokenAccountSize), Data: tokenAcct.Marshal(), Owner: TokenProgramAddr})
	return key
}

func (l *testLedger) mint(key solana.PublicKey) *Mint {
	acct := l.get(key)
	mint, err := UnmarshalMint(acct.Data)
	require.NoError(l.t, err)
	return mint
}

func (l *testLedger) tokenAccount(key solana.PublicKey) *TokenAccount {
	acct := l.get(key)
	tokenAcct, err := UnmarshalTokenAccount(acct.Data)
	require.NoError(l.t, err)
	return tokenAcct
}

func (l *testLedger) snapshot() map[solana.PublicKey]accounts.Account {
	snap := make(map[solana.PublicKey]accounts.Account, len(l.accts))
	for k, v := range l.accts {
		v := v
		snap[k] = *v.Clone()
	}
	return snap
}

// process executes ix as a single top-level instruction.
func (l *testLedger) process(ix Instruction) error {
	var accts []accounts.Account
	seen := make(map[solana.PublicKey]bool)
	add := func(pubkey solana.PublicKey) {
		if !seen[pubkey] {
			seen[pubkey] = true
			accts = append(accts, l.get(pubkey))
		}
	}
	add(ix.ProgramId)
	for _, am := range ix.Accounts {
		add(am.Pubkey)
	}

	txAccts := NewTransactionAccounts(accts)
	txCtx := NewTransactionCtx(*txAccts, MaxInstructionStackDepth, MaxInstructionTraceLength)
	log := new(LogRecorder)
	execCtx := ExecutionCtx{
		Log:                log,
		TransactionContext: txCtx,
		ComputeMeter:       cu.NewComputeMeter(cu.DefaultComputeUnitLimit),
		SysvarCache:        NewSysvarCache(SysvarClock{Slot: 1, UnixTimestamp: l.now}, l.rent),
	}

	programIndices, err := ProgramIndex(*txAccts, ix.ProgramId)
	require.NoError(l.t, err)

	instrAccts := InstructionAcctsFromAccountMetas(ix.Accounts, *txAccts)
	err = execCtx.ProcessInstruction(ix.Data, instrAccts, programIndices)
	l.logs = log.Logs
	if err != nil {
		return err
	}

	for _, acct := range txAccts.TouchedAccounts() {
		l.set(*acct.Clone())
	}
	return nil
}
