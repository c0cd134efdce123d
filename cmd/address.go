package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var addressCmd = &cobra.Command{
	Use:   "address",
	Short: "Show the wallet address",
	Long: `Show the address of the wallet for the selected currency, together
with the bundler's receiving address for that currency.

Example:
  bundlr address -c solana -w id.json`,
	Args: cobra.NoArgs,
	RunE: runAddress,
}

func runAddress(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := newSession(ctx, true)
	if err != nil {
		return err
	}
	defer s.close()

	name := s.bundlr.Currency().Config().Name
	fmt.Printf("🔑 %s address: %s\n", name, accent(s.bundlr.Address()))

	bundler, err := s.bundlr.Utils().GetBundlerAddress(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to get bundler address: %w", err)
	}
	printf("📮 Bundler address: %s\n", bundler)
	return nil
}
