package inspect

import (
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/spf13/cobra"
	"github.com/stakeflow/stakeflow/pkg/rpcclient"
	"github.com/stakeflow/stakeflow/pkg/stakeflow"
	"k8s.io/klog/v2"
)

var (
	Cmd = cobra.Command{
		Use:   "inspect",
		Short: "Fetch and decode a deployment's config and a user's stake",
		Args:  cobra.NoArgs,
		Run:   run,
	}

	rpcURL    string
	programID string
	owner     string
)

func init() {
	Cmd.Flags().StringVar(&rpcURL, "rpc", rpc.DevNet_RPC, "Cluster RPC endpoint")
	Cmd.Flags().StringVar(&programID, "program", stakeflow.ProgramID.String(), "StakeFlow program ID")
	Cmd.Flags().StringVar(&owner, "owner", "", "Wallet whose stake to show")
}

func run(c *cobra.Command, _ []string) {
	program, err := solana.PublicKeyFromBase58(programID)
	if err != nil {
		klog.Exitf("invalid program ID %q: %s", programID, err)
	}

	client, err := stakeflow.NewClient(rpcclient.NewRpcClient(rpcURL), program)
	if err != nil {
		klog.Exitf("deriving addresses: %s", err)
	}

	ctx := c.Context()
	config, err := client.FetchConfig(ctx)
	if err != nil {
		klog.Exitf("%s", stakeflow.FriendlyMessage(err))
	}
	stakeMint, err := client.FetchMint(ctx, config.StakeMint)
	if err != nil {
		klog.Exitf("%s", err)
	}
	rewardMint, err := client.FetchMint(ctx, config.RewardMint)
	if err != nil {
		klog.Exitf("%s", err)
	}
	vault, err := client.FetchTokenAccount(ctx, client.Addresses().StakeVault)
	if err != nil {
		klog.Exitf("fetching stake vault: %s", err)
	}
	penaltyVault, err := client.FetchTokenAccount(ctx, client.Addresses().PenaltyVault)
	if err != nil {
		klog.Exitf("fetching penalty vault: %s", err)
	}

	out := c.OutOrStdout()
	fmt.Fprintf(out, "config         %s\n", client.Addresses().Config)
	fmt.Fprintf(out, "admin          %s\n", config.Admin)
	fmt.Fprintf(out, "stake mint     %s (%d decimals)\n", config.StakeMint, stakeMint.Decimals)
	fmt.Fprintf(out, "reward mint    %s (%d decimals)\n", config.RewardMint, rewardMint.Decimals)
	fmt.Fprintf(out, "apr            %s\n", stakeflow.BpsToPercent(config.AprBps))
	fmt.Fprintf(out, "lock           %s\n", time.Duration(config.MinLockDuration)*time.Second)
	fmt.Fprintf(out, "penalty        %s\n", stakeflow.BpsToPercent(config.EarlyUnstakePenaltyBps))
	fmt.Fprintf(out, "total staked   %s\n", stakeflow.ToUiAmount(vault.Amount, stakeMint.Decimals))
	fmt.Fprintf(out, "penalties      %s\n", stakeflow.ToUiAmount(penaltyVault.Amount, stakeMint.Decimals))

	if owner == "" {
		return
	}
	ownerKey, err := solana.PublicKeyFromBase58(owner)
	if err != nil {
		klog.Exitf("invalid owner %q: %s", owner, err)
	}

	fmt.Fprintln(out)
	userStake, err := client.FetchUserStake(ctx, ownerKey)
	if errors.Is(err, stakeflow.ErrUserStakeNotFound) {
		fmt.Fprintf(out, "%s has no stake\n", ownerKey)
		return
	} else if err != nil {
		klog.Exitf("fetching user stake: %s", err)
	}

	now := time.Now()
	projected, err := stakeflow.ProjectedRewards(userStake, config.AprBps, now.Unix())
	if err != nil {
		klog.Exitf("projecting rewards: %s", err)
	}
	fmt.Fprintf(out, "owner          %s\n", userStake.Owner)
	fmt.Fprintf(out, "staked         %s\n", stakeflow.ToUiAmount(userStake.StakedAmount, stakeMint.Decimals))
	fmt.Fprintf(out, "pending        %s\n", stakeflow.ToUiAmount(userStake.PendingRewards, rewardMint.Decimals))
	fmt.Fprintf(out, "claimable now  %s\n", stakeflow.ToUiAmount(projected, rewardMint.Decimals))
	fmt.Fprintf(out, "last update    %s\n", time.Unix(userStake.LastUpdateTs, 0).UTC().Format(time.RFC3339))
	if lockUntil := time.Unix(userStake.LockUntilTs, 0); lockUntil.After(now) {
		fmt.Fprintf(out, "locked until   %s (early unstake pays %s)\n", lockUntil.UTC().Format(time.RFC3339), stakeflow.BpsToPercent(config.EarlyUnstakePenaltyBps))
	} else {
		fmt.Fprintf(out, "unlocked\n")
	}
}
