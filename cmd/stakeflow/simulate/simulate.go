package simulate

import (
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/stakeflow/stakeflow/pkg/accounts"
	"github.com/stakeflow/stakeflow/pkg/bank"
	"github.com/stakeflow/stakeflow/pkg/config"
	"github.com/stakeflow/stakeflow/pkg/scenario"
	"github.com/stakeflow/stakeflow/pkg/stakeflow"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"k8s.io/klog/v2"
)

var (
	Cmd = cobra.Command{
		Use:   "simulate",
		Short: "Run a staking scenario on a local bank",
		Args:  cobra.NoArgs,
		Run:   run,
	}

	configPath string
	dbDir      string
	dbEngine   string
	startTime  int64
	noProgress bool
)

func init() {
	Cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path of the YAML config (defaults apply when empty)")
	Cmd.Flags().StringVar(&dbDir, "db", "", "Persist accounts to a database in this directory")
	Cmd.Flags().StringVar(&dbEngine, "db-engine", "pebble", "Database engine for --db (pebble or lotusdb)")
	Cmd.Flags().Int64Var(&startTime, "start", 1_700_000_000, "Unix time the fake clock starts at")
	Cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Never draw the progress bar")
}

func run(c *cobra.Command, _ []string) {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.Parse(nil)
	}
	if err != nil {
		klog.Exitf("loading config: %s", err)
	}

	var store accounts.Accounts = accounts.NewMemAccounts()
	if dbDir != "" {
		db, err := accounts.OpenStore(dbEngine, dbDir)
		if err != nil {
			klog.Exitf("opening accounts db %s: %s", dbDir, err)
		}
		defer db.Close()
		store = db
		klog.Infof("persisting accounts to %s (%s)", dbDir, dbEngine)
	}

	clock := clockwork.NewFakeClockAt(time.Unix(startTime, 0))
	b, err := bank.NewBank(store, clock, cfg.BankParams())
	if err != nil {
		klog.Exitf("opening bank: %s", err)
	}

	var opts []scenario.Option
	var progress *mpb.Progress
	var bar *mpb.Bar
	if !noProgress && isatty.IsTerminal(os.Stderr.Fd()) {
		progress = mpb.NewWithContext(c.Context(), mpb.WithOutput(os.Stderr), mpb.WithWidth(40))
		bar = progress.AddBar(int64(scenario.Steps(cfg)),
			mpb.PrependDecorators(decor.Name("scenario "), decor.CountersNoUnit("%d / %d")),
			mpb.AppendDecorators(decor.Percentage()),
		)
		opts = append(opts, scenario.WithProgress(func(string) { bar.Increment() }))
	}

	report, err := scenario.Run(c.Context(), b, clock, cfg, opts...)
	if progress != nil {
		if err != nil {
			bar.Abort(false)
		}
		progress.Wait()
	}
	if err != nil {
		klog.Exitf("scenario failed: %s", err)
	}

	out := c.OutOrStdout()
	fmt.Fprintf(out, "config        %s\n", report.Addresses.Config)
	fmt.Fprintf(out, "stake mint    %s\n", report.StakeMint)
	fmt.Fprintf(out, "reward mint   %s\n", report.RewardMint)
	fmt.Fprintln(out)
	for _, staker := range report.Stakers {
		if staker.Err != nil {
			fmt.Fprintf(out, "%s  failed: %s\n", staker.Owner, stakeflow.FriendlyMessage(staker.Err))
			continue
		}
		fmt.Fprintf(out, "%s  staked %s  claimed %s  unstaked %s  penalty %s\n", staker.Owner,
			stakeflow.ToUiAmount(staker.Staked, report.Decimals),
			stakeflow.ToUiAmount(staker.Claimed, *cfg.Pool.RewardMintDecimals),
			stakeflow.ToUiAmount(staker.Unstaked, report.Decimals),
			stakeflow.ToUiAmount(staker.Penalty, report.Decimals))
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "stake vault   %s\n", stakeflow.ToUiAmount(report.StakeVault, report.Decimals))
	fmt.Fprintf(out, "penalty vault %s\n", stakeflow.ToUiAmount(report.PenaltyVault, report.Decimals))
	fmt.Fprintf(out, "rewards       %s\n", stakeflow.ToUiAmount(report.TotalClaimed(), *cfg.Pool.RewardMintDecimals))
	fmt.Fprintf(out, "slot          %d\n", report.Slot)
	fmt.Fprintf(out, "accounts hash %s\n", hex.EncodeToString(report.AccountsHash))
}
