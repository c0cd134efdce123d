package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chinmay1088/bundlr-go/funding"
)

var fundCmd = &cobra.Command{
	Use:   "fund <amount>",
	Short: "Fund the bundler balance",
	Long: `Send a transfer to the bundler and credit it to your balance. The
amount is in atomic units (winston, wei, lamports, satoshi) unless --base
is given.

Examples:
  bundlr fund 1000000000 -c arweave -w wallet.json
  bundlr fund 0.05 --base -c matic -w key.txt`,
	Args: cobra.ExactArgs(1),
	RunE: runFund,
}

var resubmitCmd = &cobra.Command{
	Use:   "resubmit <tx-id>",
	Short: "Tell the bundler about a funding transfer",
	Long: `Post an already broadcast funding transfer to the bundler. Use this
when 'bundlr fund' sent the transfer but could not notify the bundler.`,
	Args: cobra.ExactArgs(1),
	RunE: runResubmit,
}

func init() {
	fundCmd.Flags().Bool("base", false, "amount is in whole coins")
	fundCmd.Flags().Float64("multiplier", 1.0, "network fee multiplier")
	fundCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
}

func runFund(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := newSession(ctx, true)
	if err != nil {
		return err
	}
	defer s.close()

	c := s.bundlr.Currency().Config()
	base, _ := cmd.Flags().GetBool("base")
	amount, err := parseAmount(args[0], base, c)
	if err != nil {
		return err
	}
	multiplier, _ := cmd.Flags().GetFloat64("multiplier")

	if !confirm(cmd, fmt.Sprintf("Funding %s from %s", formatAmount(c, amount), s.bundlr.Address())) {
		fmt.Println("❌ Funding cancelled by user")
		return nil
	}

	printf("⏳ Sending transfer...\n")
	res, err := s.bundlr.Fund(ctx, amount, multiplier)
	var ne *funding.NotificationError
	if errors.As(err, &ne) {
		fmt.Printf("%s transfer %s was sent but the bundler was not notified\n", warn("⚠️"), ne.TxID)
		fmt.Printf("💡 Run 'bundlr resubmit %s -c %s' to retry\n", ne.TxID, c.Name)
		return err
	}
	if err != nil {
		return explain(fmt.Errorf("failed to fund: %w", err))
	}

	fmt.Printf("%s Funded %s\n", success("✅"), formatAmount(c, res.Quantity))
	printf("   Transaction: %s\n", accent(res.ID))
	if res.Reward.IsPositive() {
		printf("   Network fee: %s\n", formatAmount(c, res.Reward))
	}
	printf("   Bundler:     %s\n", res.Target)
	return nil
}

func runResubmit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := newSession(ctx, false)
	if err != nil {
		return err
	}
	defer s.close()

	if err := s.bundlr.SubmitFundTransaction(ctx, args[0]); err != nil {
		return explain(fmt.Errorf("failed to submit transaction: %w", err))
	}
	fmt.Printf("%s Bundler notified of %s\n", success("✅"), args[0])
	return nil
}
