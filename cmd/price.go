package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var priceCmd = &cobra.Command{
	Use:   "price <bytes>",
	Short: "Check the cost of an upload",
	Long: `Check how much the bundler charges to store the given number of bytes.

Example:
  bundlr price 1048576 -c solana`,
	Args: cobra.ExactArgs(1),
	RunE: runPrice,
}

func runPrice(cmd *cobra.Command, args []string) error {
	size, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || size < 0 {
		return fmt.Errorf("invalid byte count %q", args[0])
	}

	ctx := cmd.Context()
	s, err := newSession(ctx, false)
	if err != nil {
		return err
	}
	defer s.close()

	price, err := s.bundlr.GetPrice(ctx, size)
	if err != nil {
		return fmt.Errorf("failed to get price: %w", err)
	}
	printf("🏷️  Price for %d bytes\n", size)
	fmt.Println(formatAmount(s.bundlr.Currency().Config(), price))
	return nil
}
