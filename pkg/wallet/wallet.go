package wallet

import (
	"fmt"
	"strings"

	hdwallet "github.com/miguelmota/go-ethereum-hdwallet"
)

// DefaultDerivationPath is the standard Ethereum account path.
const DefaultDerivationPath = "m/44'/60'/0'/0/0"

// Derived holds the result of a mnemonic derivation.
type Derived struct {
	PrivateKeyHex string
	Address       string
}

// FromMnemonic derives a private key from a BIP-39 mnemonic.
// An empty derivationPath falls back to DefaultDerivationPath.
func FromMnemonic(mnemonic, derivationPath string) (*Derived, error) {
	mnemonic = strings.TrimSpace(mnemonic)
	if mnemonic == "" {
		return nil, fmt.Errorf("mnemonic is required")
	}
	derivationPath = strings.TrimSpace(derivationPath)
	if derivationPath == "" {
		derivationPath = DefaultDerivationPath
	}

	w, err := hdwallet.NewFromMnemonic(mnemonic)
	if err != nil {
		return nil, fmt.Errorf("invalid mnemonic: %w", err)
	}

	path, err := hdwallet.ParseDerivationPath(derivationPath)
	if err != nil {
		return nil, fmt.Errorf("invalid derivation path: %w", err)
	}

	acct, err := w.Derive(path, false)
	if err != nil {
		return nil, fmt.Errorf("derive failed: %w", err)
	}

	pk, err := w.PrivateKeyHex(acct)
	if err != nil {
		return nil, fmt.Errorf("private key export failed: %w", err)
	}

	return &Derived{
		PrivateKeyHex: pk,
		Address:       strings.ToLower(acct.Address.Hex()),
	}, nil
}
