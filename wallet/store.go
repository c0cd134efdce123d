package wallet

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/chinmay1088/bundlr-go/crypto"
)

// Store is a directory of encrypted key vaults, one per currency.
type Store struct {
	Dir string
}

// DefaultDir is ~/.bundlr.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".bundlr"), nil
}

// Path is where the vault for cur lives.
func (s Store) Path(cur string) string {
	return filepath.Join(s.Dir, "keys", cur+".json")
}

// Import validates secret for cur, encrypts it and writes it to the store.
func (s Store) Import(cur string, secret []byte, password, address string) (string, error) {
	if _, err := ParseKey(cur, secret); err != nil {
		return "", err
	}
	v, err := crypto.NewVault(cur, secret, password)
	if err != nil {
		return "", err
	}
	v.Address = address
	path := s.Path(cur)
	if err := v.Save(path); err != nil {
		return "", err
	}
	return path, nil
}

// Has reports whether a vault exists for cur.
func (s Store) Has(cur string) bool {
	_, err := os.Stat(s.Path(cur))
	return err == nil
}

// List returns the currencies with a stored vault.
func (s Store) List() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.Dir, "keys"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list keystore: %w", err)
	}
	var out []string
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), ".json"); ok && !e.IsDir() {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out, nil
}
