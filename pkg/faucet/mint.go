package faucet

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/oasisprotocol/curve25519-voi/primitives/ed25519"
	"github.com/shopspring/decimal"
	"github.com/stakeflow/stakeflow/pkg/accounts"
	"github.com/stakeflow/stakeflow/pkg/sealevel"
	"github.com/stakeflow/stakeflow/pkg/stakeflow"
	"k8s.io/klog/v2"
)

// Challenges older or newer than this are refused.
const challengeSkew = 2 * time.Minute

type MintRequest struct {
	Wallet    string      `json:"wallet"`
	Amount    json.Number `json:"amount"`
	Signature string      `json:"signature"`
	Timestamp json.Number `json:"timestamp"`
}

type MintResponse struct {
	Transaction          string   `json:"transaction"`
	LastValidBlockHeight uint64   `json:"lastValidBlockHeight"`
	Message              string   `json:"message"`
	SimulationLogs       []string `json:"simulationLogs,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// ChallengeMessage is the text a wallet signs to request tokens.
func ChallengeMessage(wallet solana.PublicKey, timestampMs int64) string {
	return fmt.Sprintf("stakeflow-mint:%s:%d", wallet, timestampMs)
}

func (s *Server) verifyChallenge(wallet solana.PublicKey, signatureB58 string, timestampMs int64) bool {
	now := s.clock.Now().UnixMilli()
	skew := now - timestampMs
	if skew < 0 {
		skew = -skew
	}
	if skew > challengeSkew.Milliseconds() {
		return false
	}

	sig, err := base58.Decode(signatureB58)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(wallet[:]), []byte(ChallengeMessage(wallet, timestampMs)), sig)
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.reject(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req MintRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil || req.Wallet == "" || req.Amount == "" || req.Signature == "" || req.Timestamp == "" {
		s.reject(w, http.StatusBadRequest, "Missing fields: wallet, amount, signature, timestamp")
		return
	}

	wallet, err := solana.PublicKeyFromBase58(req.Wallet)
	timestamp, tsErr := req.Timestamp.Int64()
	if err != nil || tsErr != nil || !s.verifyChallenge(wallet, req.Signature, timestamp) {
		s.reject(w, http.StatusUnauthorized, "Invalid signature or stale timestamp")
		return
	}

	uiAmount, err := decimal.NewFromString(req.Amount.String())
	if err != nil || !uiAmount.IsPositive() {
		s.reject(w, http.StatusBadRequest, "Invalid amount")
		return
	}
	if uiAmount.GreaterThan(s.cfg.MaxMintPerRequest) {
		s.reject(w, http.StatusBadRequest, fmt.Sprintf("Amount too large. Max: %s", s.cfg.MaxMintPerRequest))
		return
	}
	baseUnits := uiAmount.Shift(int32(s.cfg.MintDecimals)).Round(0)
	if !baseUnits.IsPositive() || !baseUnits.BigInt().IsUint64() {
		s.reject(w, http.StatusBadRequest, "Invalid amount")
		return
	}

	ctx := r.Context()
	mintAcct, err := s.ledger.GetAccount(ctx, s.cfg.Mint)
	if err != nil {
		s.fail(w, fmt.Errorf("fetching mint %s: %w", s.cfg.Mint, err))
		return
	}
	mint, err := sealevel.UnmarshalMint(mintAcct.Data)
	if err != nil {
		s.fail(w, fmt.Errorf("decoding mint %s: %w", s.cfg.Mint, err))
		return
	}
	if mint.Decimals != s.cfg.MintDecimals {
		s.reject(w, http.StatusBadRequest, fmt.Sprintf("Mint decimals mismatch. Expected %d, got %d.", mint.Decimals, s.cfg.MintDecimals))
		return
	}
	authority := s.cfg.MintAuthority.PublicKey()
	if mint.MintAuthority == nil || *mint.MintAuthority != authority {
		s.reject(w, http.StatusForbidden, "Mint authority mismatch or not set for this mint.")
		return
	}

	ata, _, err := stakeflow.DeriveAssociatedTokenAddress(wallet, s.cfg.Mint)
	if err != nil {
		s.fail(w, err)
		return
	}

	var ixs []solana.Instruction
	_, err = s.ledger.GetAccount(ctx, ata)
	if errors.Is(err, accounts.ErrAccountNotFound) {
		createIx, _, err := stakeflow.NewCreateAssociatedTokenAccountInstruction(wallet, wallet, s.cfg.Mint, false)
		if err != nil {
			s.fail(w, err)
			return
		}
		ixs = append(ixs, createIx)
	} else if err != nil {
		s.fail(w, fmt.Errorf("fetching token account %s: %w", ata, err))
		return
	}
	ixs = append(ixs, stakeflow.NewMintToCheckedInstruction(s.cfg.Mint, ata, authority, baseUnits.BigInt().Uint64(), s.cfg.MintDecimals))

	blockhash, lastValid, err := s.ledger.LatestBlockhashWithHeight(ctx)
	if err != nil {
		s.fail(w, err)
		return
	}

	tx, err := solana.NewTransaction(ixs, blockhash, solana.TransactionPayer(wallet))
	if err != nil {
		s.fail(w, err)
		return
	}
	_, err = tx.PartialSign(func(key solana.PublicKey) *solana.PrivateKey {
		if key == authority {
			return &s.cfg.MintAuthority
		}
		return nil
	})
	if err != nil {
		s.fail(w, fmt.Errorf("signing: %w", err))
		return
	}

	logs, err := s.ledger.SimulateTransaction(ctx, tx)
	if err != nil {
		klog.Warningf("simulating mint of %s to %s: %v", baseUnits, wallet, err)
	}

	serialized, err := tx.MarshalBinary()
	if err != nil {
		s.fail(w, err)
		return
	}

	klog.Infof("issued mint of %s base units to %s", baseUnits, wallet)
	MintRequestsTotal.WithLabelValues("issued").Inc()
	writeJSON(w, http.StatusOK, MintResponse{
		Transaction:          base64.StdEncoding.EncodeToString(serialized),
		LastValidBlockHeight: lastValid,
		Message:              "Partially signed transaction. Please co-sign and send.",
		SimulationLogs:       logs,
	})
}

func (s *Server) reject(w http.ResponseWriter, status int, message string) {
	MintRequestsTotal.WithLabelValues("rejected").Inc()
	writeJSON(w, status, ErrorResponse{Error: message})
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	klog.Errorf("mint request: %v", err)
	MintRequestsTotal.WithLabelValues("error").Inc()
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		klog.Warningf("writing response: %v", err)
	}
}
