package faucet

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stakeflow/stakeflow/pkg/accounts"
	"github.com/stakeflow/stakeflow/pkg/bank"
	"github.com/stakeflow/stakeflow/pkg/sealevel"
	"github.com/stakeflow/stakeflow/pkg/stakeflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

const lamportsPerSol = 1_000_000_000

type faucetFixture struct {
	t         *testing.T
	ctx       context.Context
	clock     *clockwork.FakeClock
	bank      *bank.Bank
	client    *stakeflow.Client
	cfg       *Config
	mint      solana.PublicKey
	authority solana.PrivateKey
}

func newKeypair(t *testing.T) solana.PrivateKey {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return key
}

func newFaucetFixture(t *testing.T) *faucetFixture {
	clock := clockwork.NewFakeClockAt(time.Unix(1_700_000_000, 0))
	b, err := bank.NewBank(accounts.NewMemAccounts(), clock, bank.DefaultParams())
	require.NoError(t, err)
	client, err := stakeflow.NewClient(b, stakeflow.ProgramID)
	require.NoError(t, err)

	ctx := context.Background()
	admin := newKeypair(t)
	require.NoError(t, b.Airdrop(admin.PublicKey(), 10*lamportsPerSol))

	authority := newKeypair(t)
	mint := newKeypair(t)
	_, err = client.CreateMint(ctx, admin, mint, authority.PublicKey(), 6)
	require.NoError(t, err)

	cfg := &Config{
		Mint:              mint.PublicKey(),
		MintDecimals:      6,
		MaxMintPerRequest: decimal.NewFromInt(100),
		MintAuthority:     authority,
		AllowedOrigins:    []string{"*"},
		RateLimit:         rate.Inf,
		RateBurst:         1,
	}
	return &faucetFixture{t: t, ctx: ctx, clock: clock, bank: b, client: client, cfg: cfg, mint: mint.PublicKey(), authority: authority}
}

func (f *faucetFixture) server() http.Handler {
	return NewServer(f.cfg, BankLedger{f.bank}, f.clock).Handler()
}

func (f *faucetFixture) newWallet() solana.PrivateKey {
	wallet := newKeypair(f.t)
	require.NoError(f.t, f.bank.Airdrop(wallet.PublicKey(), lamportsPerSol))
	return wallet
}

// signedRequest builds a mint request body signed by wallet at timestampMs.
func signedRequest(t *testing.T, wallet solana.PrivateKey, amount string, timestampMs int64) map[string]any {
	sig, err := wallet.Sign([]byte(ChallengeMessage(wallet.PublicKey(), timestampMs)))
	require.NoError(t, err)
	return map[string]any{
		"wallet":    wallet.PublicKey().String(),
		"amount":    json.Number(amount),
		"signature": sig.String(),
		"timestamp": timestampMs,
	}
}

func serve(t *testing.T, handler http.Handler, method string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, "/api/mint", reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func decodeTransaction(t *testing.T, encoded string) *solana.Transaction {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	tx := new(solana.Transaction)
	require.NoError(t, tx.UnmarshalWithDecoder(bin.NewBinDecoder(raw)))
	return tx
}

func TestMint_IssuesPartiallySignedTransaction(t *testing.T) {
	f := newFaucetFixture(t)
	handler := f.server()
	wallet := f.newWallet()

	rec := serve(t, handler, http.MethodPost, signedRequest(t, wallet, "2.5", f.clock.Now().UnixMilli()))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp MintResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Partially signed transaction. Please co-sign and send.", resp.Message)
	assert.Equal(t, uint64(bank.DefaultParams().BlockhashQueueLen-1), resp.LastValidBlockHeight)
	assert.NotEmpty(t, resp.SimulationLogs)

	tx := decodeTransaction(t, resp.Transaction)
	assert.Len(t, tx.Message.Instructions, 2, "creates the token account first")
	assert.Equal(t, wallet.PublicKey(), tx.Message.AccountKeys[0])
	require.Len(t, tx.Signatures, 2)
	assert.Equal(t, solana.Signature{}, tx.Signatures[0], "wallet signature is left to the requester")
	assert.NotEqual(t, solana.Signature{}, tx.Signatures[1])

	// the faucet never submits
	balance, err := f.client.TokenBalance(f.ctx, wallet.PublicKey(), f.mint)
	require.NoError(t, err)
	assert.Zero(t, balance)

	_, err = tx.PartialSign(func(key solana.PublicKey) *solana.PrivateKey {
		if key == wallet.PublicKey() {
			return &wallet
		}
		return nil
	})
	require.NoError(t, err)
	_, err = f.bank.SendTransaction(f.ctx, tx)
	require.NoError(t, err)

	balance, err = f.client.TokenBalance(f.ctx, wallet.PublicKey(), f.mint)
	require.NoError(t, err)
	assert.Equal(t, uint64(2_500_000), balance)

	// the token account exists now
	rec = serve(t, handler, http.MethodPost, signedRequest(t, wallet, "1", f.clock.Now().UnixMilli()))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, decodeTransaction(t, resp.Transaction).Message.Instructions, 1)
}

func TestMint_MethodNotAllowed(t *testing.T) {
	f := newFaucetFixture(t)
	rec := serve(t, f.server(), http.MethodGet, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "Method not allowed", errorMessage(t, rec))
}

func TestMint_MissingFields(t *testing.T) {
	f := newFaucetFixture(t)
	handler := f.server()

	for _, body := range []any{
		nil,
		map[string]any{"wallet": f.newWallet().PublicKey().String(), "amount": 1},
		map[string]any{"amount": 1, "signature": "x", "timestamp": 1},
	} {
		rec := serve(t, handler, http.MethodPost, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Missing fields: wallet, amount, signature, timestamp", errorMessage(t, rec))
	}
}

func TestMint_Challenge(t *testing.T) {
	f := newFaucetFixture(t)
	handler := f.server()
	wallet := f.newWallet()
	now := f.clock.Now().UnixMilli()

	tests := map[string]map[string]any{
		"stale":         signedRequest(t, wallet, "1", now-(2*time.Minute).Milliseconds()-1),
		"future":        signedRequest(t, wallet, "1", now+(2*time.Minute).Milliseconds()+1),
		"wrong signer":  signedRequest(t, f.newWallet(), "1", now),
		"bad signature": {"wallet": wallet.PublicKey().String(), "amount": 1, "signature": "notbase58!", "timestamp": now},
		"bad wallet":    {"wallet": "nope", "amount": 1, "signature": "abc", "timestamp": now},
	}
	tests["wrong signer"]["wallet"] = wallet.PublicKey().String()

	for name, body := range tests {
		body := body
		t.Run(name, func(t *testing.T) {
			rec := serve(t, handler, http.MethodPost, body)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "Invalid signature or stale timestamp", errorMessage(t, rec))
		})
	}

	// inside the window
	rec := serve(t, handler, http.MethodPost, signedRequest(t, wallet, "1", now-(2*time.Minute).Milliseconds()))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestMint_InvalidAmount(t *testing.T) {
	f := newFaucetFixture(t)
	handler := f.server()
	wallet := f.newWallet()
	now := f.clock.Now().UnixMilli()

	tests := []struct {
		amount string
		want   string
	}{
		{"0", "Invalid amount"},
		{"-1", "Invalid amount"},
		{"0.0000001", "Invalid amount"},
		{"100.5", "Amount too large. Max: 100"},
	}
	for _, tt := range tests {
		rec := serve(t, handler, http.MethodPost, signedRequest(t, wallet, tt.amount, now))
		assert.Equal(t, http.StatusBadRequest, rec.Code, tt.amount)
		assert.Equal(t, tt.want, errorMessage(t, rec), tt.amount)
	}

	rec := serve(t, handler, http.MethodPost, signedRequest(t, wallet, "100", now))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestMint_DecimalsMismatch(t *testing.T) {
	f := newFaucetFixture(t)
	f.cfg.MintDecimals = 9

	rec := serve(t, f.server(), http.MethodPost, signedRequest(t, f.newWallet(), "1", f.clock.Now().UnixMilli()))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Mint decimals mismatch. Expected 6, got 9.", errorMessage(t, rec))
}

func TestMint_AuthorityMismatch(t *testing.T) {
	f := newFaucetFixture(t)
	f.cfg.MintAuthority = newKeypair(t)

	rec := serve(t, f.server(), http.MethodPost, signedRequest(t, f.newWallet(), "1", f.clock.Now().UnixMilli()))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Mint authority mismatch or not set for this mint.", errorMessage(t, rec))
}

func TestMint_MintMissing(t *testing.T) {
	f := newFaucetFixture(t)
	f.cfg.Mint = newKeypair(t).PublicKey()

	rec := serve(t, f.server(), http.MethodPost, signedRequest(t, f.newWallet(), "1", f.clock.Now().UnixMilli()))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestMint_RateLimit(t *testing.T) {
	f := newFaucetFixture(t)
	f.cfg.RateLimit = rate.Every(time.Minute)
	f.cfg.RateBurst = 2
	handler := f.server()

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusMethodNotAllowed, serve(t, handler, http.MethodGet, nil).Code)
	}

	rec := serve(t, handler, http.MethodGet, nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	var resp RateLimitError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "rate_limit_exceeded", resp.Error)
	assert.InDelta(t, 60, resp.RetryAfter, 1)

	// another client has its own bucket
	req := httptest.NewRequest(http.MethodGet, "/api/mint", nil)
	req.RemoteAddr = "198.51.100.7:4000"
	other := httptest.NewRecorder()
	handler.ServeHTTP(other, req)
	assert.Equal(t, http.StatusMethodNotAllowed, other.Code)

	f.clock.Advance(61 * time.Second)
	assert.Equal(t, http.StatusMethodNotAllowed, serve(t, handler, http.MethodGet, nil).Code)
}

func TestRateLimiter_Cleanup(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rl := NewRateLimiter(clock, rate.Every(time.Hour), 1)

	allowed, _ := rl.AllowWithRetry("a")
	assert.True(t, allowed)
	allowed, retry := rl.AllowWithRetry("a")
	assert.False(t, allowed)
	assert.InDelta(t, time.Hour.Seconds(), retry.Seconds(), 1)

	clock.Advance(10 * time.Minute)
	rl.AllowWithRetry("b")
	assert.Len(t, rl.limiters, 1, "idle entry dropped")
}

func TestServer_Metrics(t *testing.T) {
	f := newFaucetFixture(t)
	handler := f.server()
	serve(t, handler, http.MethodGet, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "stakeflow_faucet_mint_requests_total")
	assert.Contains(t, rec.Body.String(), fmt.Sprintf("stakeflow_faucet_http_requests_total{method=%q,path=%q,status=%q}", "GET", "/api/mint", "405"))
}

func TestServer_CORSPreflight(t *testing.T) {
	f := newFaucetFixture(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/mint", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	f.server().ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func forwardedRequest(header, ip string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/mint", nil)
	req.Header.Set(header, ip)
	return req
}

func TestMint_RateLimitIgnoresForwardedHeaders(t *testing.T) {
	f := newFaucetFixture(t)
	f.cfg.RateLimit = rate.Every(time.Minute)
	handler := f.server()

	codes := make([]int, 0, 3)
	for i, header := range []string{"X-Forwarded-For", "X-Real-IP", "X-Forwarded-For"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, forwardedRequest(header, fmt.Sprintf("203.0.113.%d", i+1)))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusMethodNotAllowed, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)
}

func TestMint_RateLimitTrustProxy(t *testing.T) {
	f := newFaucetFixture(t)
	f.cfg.RateLimit = rate.Every(time.Minute)
	f.cfg.TrustProxy = true
	handler := f.server()

	for i, header := range []string{"X-Forwarded-For", "X-Real-IP", "X-Forwarded-For"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, forwardedRequest(header, fmt.Sprintf("203.0.113.%d", i+1)))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, header)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, forwardedRequest("X-Real-IP", "203.0.113.1"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestServer_ListenAndServe(t *testing.T) {
	f := newFaucetFixture(t)
	f.cfg.ListenAddr = "127.0.0.1:0"
	srv := NewServer(f.cfg, BankLedger{f.bank}, f.clock)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}

	f.cfg.ListenAddr = "127.0.0.1:not-a-port"
	err := NewServer(f.cfg, BankLedger{f.bank}, f.clock).ListenAndServe(context.Background())
	assert.Error(t, err)
}

func TestSeedMint(t *testing.T) {
	authority := newKeypair(t)
	cfg := &Config{Mint: newKeypair(t).PublicKey(), MintDecimals: 9, MintAuthority: authority}
	store := accounts.NewMemAccounts()
	rent := bank.DefaultParams().Rent
	require.NoError(t, SeedMint(store, cfg, rent))

	b, err := bank.NewBank(store, clockwork.NewFakeClock(), bank.DefaultParams())
	require.NoError(t, err)
	acct, err := BankLedger{b}.GetAccount(context.Background(), cfg.Mint)
	require.NoError(t, err)
	assert.Equal(t, solana.PublicKey(sealevel.TokenProgramAddr), acct.Owner)
	assert.Equal(t, rent.MinimumBalance(sealevel.MintSize), acct.Lamports)

	mint, err := sealevel.UnmarshalMint(acct.Data)
	require.NoError(t, err)
	assert.Equal(t, uint8(9), mint.Decimals)
	assert.True(t, mint.IsInitialized)
	require.NotNil(t, mint.MintAuthority)
	assert.Equal(t, authority.PublicKey(), *mint.MintAuthority)
}
