package faucet

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/joho/godotenv"
	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const (
	defaultMaxMintPerRequest = "100"
	defaultNetwork           = "devnet"
	defaultListenAddr        = ":8080"
	defaultRequestsPerMinute = 10
	defaultBurst             = 5
)

var ErrInvalidSecretKey = errors.New("invalid secret key format, use base58 or a JSON array")

type Config struct {
	Mint              solana.PublicKey
	MintDecimals      uint8
	MaxMintPerRequest decimal.Decimal
	MintAuthority     solana.PrivateKey
	Network           string
	RPCURL            string
	ListenAddr        string
	AllowedOrigins    []string
	RateLimit         rate.Limit
	RateBurst         int
	// TrustProxy keys the rate limiter on X-Forwarded-For / X-Real-IP.
	// Only set it behind a reverse proxy that overwrites those headers.
	TrustProxy bool
}

// LoadConfig reads the faucet configuration from the environment after
// loading envFiles. Missing env files are skipped. Variables already set in
// the environment win over the files.
func LoadConfig(envFiles ...string) (*Config, error) {
	for _, file := range envFiles {
		err := godotenv.Load(file)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", file, err)
		}
	}
	return ConfigFromEnv(os.Getenv)
}

func ConfigFromEnv(getenv func(string) string) (*Config, error) {
	env := func(name string, def string) string {
		v := strings.TrimSpace(getenv(name))
		if v == "" {
			return def
		}
		return v
	}

	cfg := &Config{
		Network:    env("MINT_NETWORK", defaultNetwork),
		ListenAddr: env("FAUCET_LISTEN", defaultListenAddr),
	}

	mintAddr := env("MINT_ADDRESS", "")
	if mintAddr == "" {
		return nil, errors.New("missing env: MINT_ADDRESS")
	}
	mint, err := solana.PublicKeyFromBase58(mintAddr)
	if err != nil {
		return nil, fmt.Errorf("MINT_ADDRESS: %w", err)
	}
	cfg.Mint = mint

	decimals := env("MINT_DECIMALS", "")
	if decimals == "" {
		return nil, errors.New("missing env: MINT_DECIMALS")
	}
	d, err := strconv.ParseUint(decimals, 10, 8)
	if err != nil {
		return nil, fmt.Errorf("MINT_DECIMALS: %w", err)
	}
	cfg.MintDecimals = uint8(d)

	cfg.MaxMintPerRequest, err = decimal.NewFromString(env("MAX_MINT_PER_REQUEST", defaultMaxMintPerRequest))
	if err != nil {
		return nil, fmt.Errorf("MAX_MINT_PER_REQUEST: %w", err)
	}
	if !cfg.MaxMintPerRequest.IsPositive() {
		return nil, errors.New("MAX_MINT_PER_REQUEST must be positive")
	}

	secret := env("MINT_AUTHORITY_SECRET_KEY", "")
	if secret == "" {
		return nil, errors.New("missing env: MINT_AUTHORITY_SECRET_KEY")
	}
	cfg.MintAuthority, err = ParseSecretKey(secret)
	if err != nil {
		return nil, err
	}

	cfg.RPCURL = env("RPC_URL", "")
	if cfg.RPCURL == "" {
		cfg.RPCURL, err = clusterRPC(cfg.Network)
		if err != nil {
			return nil, err
		}
	}

	if origins := env("FAUCET_ALLOWED_ORIGINS", ""); origins != "" {
		for _, origin := range strings.Split(origins, ",") {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, strings.TrimSpace(origin))
		}
	} else {
		cfg.AllowedOrigins = []string{"*"}
	}

	perMinute, err := strconv.Atoi(env("FAUCET_REQUESTS_PER_MINUTE", strconv.Itoa(defaultRequestsPerMinute)))
	if err != nil || perMinute <= 0 {
		return nil, errors.New("FAUCET_REQUESTS_PER_MINUTE must be a positive integer")
	}
	cfg.RateLimit = rate.Limit(float64(perMinute) / 60)

	cfg.RateBurst, err = strconv.Atoi(env("FAUCET_BURST", strconv.Itoa(defaultBurst)))
	if err != nil || cfg.RateBurst <= 0 {
		return nil, errors.New("FAUCET_BURST must be a positive integer")
	}

	if trust := env("FAUCET_TRUST_PROXY", ""); trust != "" {
		cfg.TrustProxy, err = strconv.ParseBool(trust)
		if err != nil {
			return nil, fmt.Errorf("FAUCET_TRUST_PROXY: %w", err)
		}
	}

	return cfg, nil
}

func clusterRPC(network string) (string, error) {
	switch network {
	case "devnet":
		return rpc.DevNet_RPC, nil
	case "testnet":
		return rpc.TestNet_RPC, nil
	case "mainnet-beta":
		return rpc.MainNetBeta_RPC, nil
	case "localnet":
		return rpc.LocalNet_RPC, nil
	}
	return "", fmt.Errorf("unknown MINT_NETWORK %q", network)
}

// ParseSecretKey accepts a 64-byte ed25519 keypair as base58 or as a JSON
// array of byte values.
func ParseSecretKey(raw string) (solana.PrivateKey, error) {
	raw = strings.TrimSpace(raw)

	var key []byte
	if strings.HasPrefix(raw, "[") {
		var values []int
		err := json.Unmarshal([]byte(raw), &values)
		if err != nil {
			return nil, ErrInvalidSecretKey
		}
		key = make([]byte, len(values))
		for idx, v := range values {
			if v < 0 || v > 255 {
				return nil, ErrInvalidSecretKey
			}
			key[idx] = byte(v)
		}
	} else {
		var err error
		key, err = base58.Decode(raw)
		if err != nil {
			return nil, ErrInvalidSecretKey
		}
	}

	if len(key) != 64 {
		return nil, fmt.Errorf("%w: expected 64 bytes, got %d", ErrInvalidSecretKey, len(key))
	}
	return solana.PrivateKey(key), nil
}
