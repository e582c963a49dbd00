package derive

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"github.com/stakeflow/stakeflow/pkg/stakeflow"
	"k8s.io/klog/v2"
)

var (
	Cmd = cobra.Command{
		Use:   "derive",
		Short: "Print the program derived addresses of a deployment",
		Args:  cobra.NoArgs,
		Run:   run,
	}

	programID string
	owner     string
)

func init() {
	Cmd.Flags().StringVar(&programID, "program", stakeflow.ProgramID.String(), "StakeFlow program ID")
	Cmd.Flags().StringVar(&owner, "owner", "", "Wallet whose UserStake address to print")
}

func run(c *cobra.Command, _ []string) {
	program, err := solana.PublicKeyFromBase58(programID)
	if err != nil {
		klog.Exitf("invalid program ID %q: %s", programID, err)
	}

	addrs, err := stakeflow.DeriveAddresses(program)
	if err != nil {
		klog.Exitf("deriving addresses: %s", err)
	}

	out := c.OutOrStdout()
	fmt.Fprintf(out, "program                %s\n", addrs.ProgramID)
	fmt.Fprintf(out, "config                 %s\n", addrs.Config)
	fmt.Fprintf(out, "stake vault            %s\n", addrs.StakeVault)
	fmt.Fprintf(out, "penalty vault          %s\n", addrs.PenaltyVault)
	fmt.Fprintf(out, "reward mint authority  %s\n", addrs.RewardMintAuthority)

	if owner == "" {
		return
	}
	ownerKey, err := solana.PublicKeyFromBase58(owner)
	if err != nil {
		klog.Exitf("invalid owner %q: %s", owner, err)
	}
	userStake, err := addrs.UserStake(ownerKey)
	if err != nil {
		klog.Exitf("deriving user stake: %s", err)
	}
	fmt.Fprintf(out, "user stake             %s\n", userStake)
}
