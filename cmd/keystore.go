package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chinmay1088/bundlr-go/client"
	"github.com/chinmay1088/bundlr-go/currency"
	"github.com/chinmay1088/bundlr-go/wallet"
)

var keystoreCmd = &cobra.Command{
	Use:   "keystore",
	Short: "Manage encrypted wallets",
	Long: `Store wallets encrypted under ~/.bundlr (or BUNDLR_HOME). A stored
wallet is used when --wallet is not given.`,
}

var keystoreImportCmd = &cobra.Command{
	Use:   "import <currency> <file>",
	Short: "Encrypt and store a wallet file",
	Args:  cobra.ExactArgs(2),
	RunE:  runKeystoreImport,
}

var keystoreNewCmd = &cobra.Command{
	Use:   "new <currency>",
	Short: "Create a wallet from a new recovery phrase",
	Args:  cobra.ExactArgs(1),
	RunE:  runKeystoreNew,
}

var keystoreListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored wallets",
	Args:  cobra.NoArgs,
	RunE:  runKeystoreList,
}

func init() {
	keystoreCmd.AddCommand(keystoreImportCmd, keystoreNewCmd, keystoreListCmd)
}

func newPassword() (string, error) {
	password, err := readPassword("Enter a password for the keystore: ")
	if err != nil {
		return "", err
	}
	if len(password) < 8 {
		return "", fmt.Errorf("password must be at least 8 characters long")
	}
	if _, ok := os.LookupEnv("BUNDLR_PASSWORD"); ok {
		return password, nil
	}
	confirmPassword, err := readPassword("Confirm password: ")
	if err != nil {
		return "", err
	}
	if password != confirmPassword {
		return "", fmt.Errorf("passwords do not match")
	}
	return password, nil
}

// addressOf builds the adapter for cur offline to show the stored address.
func addressOf(cur string, secret []byte) (string, error) {
	key, err := wallet.ParseKey(cur, secret)
	if err != nil {
		return "", err
	}
	c, err := client.NewCurrency(currency.Options{Name: cur, Credential: currency.Credential{PrivateKey: key}}, nil)
	if err != nil {
		return "", err
	}
	return c.Address(), nil
}

func storeSecret(cur string, secret []byte) error {
	address, err := addressOf(cur, secret)
	if err != nil {
		return err
	}
	password, err := newPassword()
	if err != nil {
		return err
	}
	store := wallet.Store{Dir: cfg.Home}
	path, err := store.Import(cur, secret, password, address)
	if err != nil {
		return fmt.Errorf("failed to store wallet: %w", err)
	}
	fmt.Printf("%s Stored %s wallet %s\n", success("✅"), cur, accent(address))
	printf("   %s\n", path)
	return nil
}

func runKeystoreImport(cmd *cobra.Command, args []string) error {
	cur := strings.ToLower(args[0])
	secret, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("failed to read wallet: %w", err)
	}
	return storeSecret(cur, secret)
}

func runKeystoreNew(cmd *cobra.Command, args []string) error {
	cur := strings.ToLower(args[0])
	if wallet.Family(cur) == "arweave" {
		return fmt.Errorf("arweave wallets are JWK files; create one with an Arweave wallet and import it")
	}
	mnemonic, err := wallet.NewMnemonic()
	if err != nil {
		return err
	}
	if err := storeSecret(cur, []byte(mnemonic)); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("🔐 Recovery Phrase (24 words):")
	fmt.Println()
	fmt.Printf("   %s\n", mnemonic)
	fmt.Println()
	fmt.Println(warn("⚠️  Write down this recovery phrase and store it securely."))
	fmt.Println(warn("   Anyone with this phrase can access your funds."))
	return nil
}

func runKeystoreList(cmd *cobra.Command, args []string) error {
	store := wallet.Store{Dir: cfg.Home}
	names, err := store.List()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Println("No stored wallets")
		return nil
	}
	for _, n := range names {
		fmt.Printf("  %s\t%s\n", n, store.Path(n))
	}
	return nil
}
