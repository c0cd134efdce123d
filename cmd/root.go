package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chinmay1088/bundlr-go/config"
)

var (
	version = "0.3.0"

	cfg config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "bundlr",
	Short: "Fund and upload to a Bundlr node",
	Long: `bundlr pays a Bundlr node in one of several currencies and uploads
signed data items to it.

Supported currencies: arweave, ethereum, matic, bnb, avalanche, fantom,
arbitrum, boba-eth, solana, bitcoin (funding only)

Settings are read from BUNDLR_* environment variables and can be
overridden with flags.

Examples:
  bundlr balance -c arweave -w wallet.json
  bundlr price 1048576 -c solana
  bundlr fund 1000000 -c matic -w key.txt
  bundlr upload photo.png -c solana -w id.json
  bundlr withdraw 500000 -c arweave -w wallet.json
  bundlr keystore import solana id.json`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cfg = config.Load()

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfg.URL, "host", "H", cfg.URL, "bundler node URL")
	flags.StringVarP(&cfg.Currency, "currency", "c", cfg.Currency, "currency to pay with")
	flags.StringVarP(&cfg.Wallet, "wallet", "w", cfg.Wallet, "wallet file (key file, mnemonic file or keystore vault)")
	flags.StringVar(&cfg.ProviderURL, "provider-url", cfg.ProviderURL, "chain RPC or gateway URL")
	flags.StringVar(&cfg.ContractAddress, "contract", cfg.ContractAddress, "ERC-20 token contract to pay with")
	flags.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "HTTP request timeout")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	flags.BoolVar(&cfg.LogJSON, "log-json", cfg.LogJSON, "log JSON to stderr")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	flags.BoolVarP(&quiet, "quiet", "q", false, "suppress output")

	// Add subcommands
	rootCmd.AddCommand(addressCmd)
	rootCmd.AddCommand(balanceCmd)
	rootCmd.AddCommand(priceCmd)
	rootCmd.AddCommand(fundCmd)
	rootCmd.AddCommand(resubmitCmd)
	rootCmd.AddCommand(withdrawCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(keystoreCmd)
	rootCmd.AddCommand(versionCmd)
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "bundlr-go v%s\n", version)
	},
}
