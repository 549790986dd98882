package crypto

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// DecodePublicKey parses a base58 encoded account address.
func DecodePublicKey(value string) (solana.PublicKey, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return solana.PublicKey{}, errors.New("crypto: empty public key")
	}
	key, err := solana.PublicKeyFromBase58(trimmed)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("crypto: invalid public key %q: %w", trimmed, err)
	}
	return key, nil
}

// MustDecodePublicKey is like DecodePublicKey but panics on error. It is meant
// for package level constants.
func MustDecodePublicKey(value string) solana.PublicKey {
	key, err := DecodePublicKey(value)
	if err != nil {
		panic(err)
	}
	return key
}

// GenerateKeypair returns a fresh ed25519 keypair.
func GenerateKeypair() (solana.PrivateKey, error) {
	return solana.NewRandomPrivateKey()
}

// LoadKeypair reads a keypair stored in the solana-keygen JSON format.
func LoadKeypair(path string) (solana.PrivateKey, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("crypto: empty keypair path")
	}
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("crypto: load keypair %s: %w", path, err)
	}
	return key, nil
}

// SaveKeypair writes key in the solana-keygen JSON format. The parent
// directory is created with 0700 permissions when missing.
func SaveKeypair(path string, key solana.PrivateKey) error {
	if len(key) == 0 {
		return errors.New("crypto: nil private key")
	}
	if path == "" {
		return errors.New("crypto: empty keypair path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	values := make([]int, len(key))
	for i, b := range key {
		values[i] = int(b)
	}
	encoded, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return os.WriteFile(path, encoded, 0o600)
}
