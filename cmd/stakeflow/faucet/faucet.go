package faucet

import (
	"context"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"github.com/stakeflow/stakeflow/pkg/accounts"
	"github.com/stakeflow/stakeflow/pkg/bank"
	"github.com/stakeflow/stakeflow/pkg/config"
	"github.com/stakeflow/stakeflow/pkg/faucet"
	"github.com/stakeflow/stakeflow/pkg/rpcclient"
	"k8s.io/klog/v2"
)

var (
	Cmd = cobra.Command{
		Use:   "faucet",
		Short: "Serve partially signed mint transactions",
		Long: "Serve POST /api/mint for the mint configured in the environment. " +
			"With --rpc the faucet reads that cluster, otherwise a local bank created with the mint in place.",
		Args: cobra.NoArgs,
		Run:  run,
	}

	configPath string
	envFile    string
	rpcURL     string
	listen     string
	trustProxy bool
)

func init() {
	Cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path of the YAML config for the local bank")
	Cmd.Flags().StringVar(&envFile, "env", ".env", "Env file to load before reading the environment")
	Cmd.Flags().StringVar(&rpcURL, "rpc", "", "Cluster RPC endpoint (use RPC_URL from the environment with \"env\")")
	Cmd.Flags().StringVar(&listen, "listen", "", "Listen address, overrides FAUCET_LISTEN")
	Cmd.Flags().BoolVar(&trustProxy, "trust-proxy", false, "Rate limit on X-Forwarded-For / X-Real-IP (only behind a reverse proxy)")
}

func run(c *cobra.Command, _ []string) {
	cfg, err := faucet.LoadConfig(envFile)
	if err != nil {
		klog.Exitf("faucet config: %s", err)
	}
	if listen != "" {
		cfg.ListenAddr = listen
	}
	if trustProxy {
		cfg.TrustProxy = true
	}

	ctx := c.Context()
	var ledger faucet.Ledger
	switch rpcURL {
	case "":
		ledger = localLedger(ctx, cfg)
	case "env":
		klog.Infof("reading %s cluster at %s", cfg.Network, cfg.RPCURL)
		ledger = rpcclient.NewRpcClient(cfg.RPCURL)
	default:
		klog.Infof("reading cluster at %s", rpcURL)
		ledger = rpcclient.NewRpcClient(rpcURL)
	}

	server := faucet.NewServer(cfg, ledger, clockwork.NewRealClock())
	err = server.ListenAndServe(ctx)
	if err != nil {
		klog.Exitf("faucet: %s", err)
	}
}

// localLedger opens an in-memory bank holding the configured mint, and
// ticks it once per slot until ctx ends.
func localLedger(ctx context.Context, cfg *faucet.Config) faucet.Ledger {
	bankCfg, err := loadBankConfig()
	if err != nil {
		klog.Exitf("loading config: %s", err)
	}

	store := accounts.NewMemAccounts()
	err = faucet.SeedMint(store, cfg, bankCfg.BankParams().Rent)
	if err != nil {
		klog.Exitf("creating mint: %s", err)
	}

	clock := clockwork.NewRealClock()
	b, err := bank.NewBank(store, clock, bankCfg.BankParams())
	if err != nil {
		klog.Exitf("opening bank: %s", err)
	}

	go func() {
		ticker := clock.NewTicker(bankCfg.Bank.SlotDuration)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				_, err := b.Tick()
				if err != nil {
					klog.Errorf("tick: %s", err)
				}
			}
		}
	}()

	klog.Infof("local bank with mint %s (authority %s, %d decimals)", cfg.Mint, cfg.MintAuthority.PublicKey(), cfg.MintDecimals)
	return faucet.BankLedger{Bank: b}
}

func loadBankConfig() (*config.Config, error) {
	if configPath == "" {
		return config.Parse(nil)
	}
	return config.Load(configPath)
}
