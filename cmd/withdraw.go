package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var withdrawCmd = &cobra.Command{
	Use:   "withdraw <amount>",
	Short: "Withdraw from the bundler balance",
	Long: `Ask the bundler to send part of your balance back to your wallet.
The amount is in atomic units unless --base is given.

Example:
  bundlr withdraw 500000000 -c arweave -w wallet.json`,
	Args: cobra.ExactArgs(1),
	RunE: runWithdraw,
}

func init() {
	withdrawCmd.Flags().Bool("base", false, "amount is in whole coins")
	withdrawCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
}

func runWithdraw(cmd *cobra.Command, args []string) error {
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
	if !confirm(cmd, fmt.Sprintf("Withdrawing %s to %s", formatAmount(c, amount), s.bundlr.Address())) {
		fmt.Println("❌ Withdrawal cancelled by user")
		return nil
	}

	res, err := s.bundlr.Withdraw(ctx, amount)
	if err != nil {
		return explain(fmt.Errorf("failed to withdraw: %w", err))
	}
	fmt.Printf("%s Withdrawal requested\n", success("✅"))
	if res.TxID != "" {
		printf("   Transaction: %s\n", accent(res.TxID))
	}
	printf("   Requested:   %s\n", formatAmount(c, res.Requested))
	if !res.Final.IsZero() {
		printf("   Fee:         %s\n", formatAmount(c, res.Fee))
		printf("   Final:       %s\n", formatAmount(c, res.Final))
	}
	return nil
}
