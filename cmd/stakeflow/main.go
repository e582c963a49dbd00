package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/stakeflow/stakeflow/cmd/stakeflow/derive"
	"github.com/stakeflow/stakeflow/cmd/stakeflow/faucet"
	"github.com/stakeflow/stakeflow/cmd/stakeflow/inspect"
	"github.com/stakeflow/stakeflow/cmd/stakeflow/simulate"
	"k8s.io/klog/v2"
)

var cmd = cobra.Command{
	Use:   "stakeflow",
	Short: "StakeFlow staking pool tools",
}

func init() {
	klogFlags := flag.NewFlagSet("klog", flag.ExitOnError)
	klog.InitFlags(klogFlags)
	cmd.PersistentFlags().AddGoFlagSet(klogFlags)

	cmd.AddCommand(
		&derive.Cmd,
		&faucet.Cmd,
		&inspect.Cmd,
		&simulate.Cmd,
	)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	cobra.CheckErr(cmd.ExecuteContext(ctx))
}
