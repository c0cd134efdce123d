package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var balanceCmd = &cobra.Command{
	Use:   "balance [address]",
	Short: "Check the bundler balance",
	Long: `Check the balance held by the bundler for an address. Without an
address, the wallet's own address is used.

Examples:
  bundlr balance -c arweave -w wallet.json
  bundlr balance 0x742d35cc6634c0532925a3b8d4c9db96c4b4d8b6 -c matic`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBalance,
}

func runBalance(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := newSession(ctx, len(args) == 0)
	if err != nil {
		return err
	}
	defer s.close()

	address := s.bundlr.Address()
	if len(args) == 1 {
		address = args[0]
	}
	balance, err := s.bundlr.GetBalance(ctx, address)
	if err != nil {
		return explain(fmt.Errorf("failed to get balance: %w", err))
	}

	printf("💰 Balance of %s\n", address)
	fmt.Println(formatAmount(s.bundlr.Currency().Config(), balance))
	return nil
}
