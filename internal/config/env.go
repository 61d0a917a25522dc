package config

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/joho/godotenv"
)

// Keys read from the .env file.
const (
	EnvAPIKey     = "API_KEY_SECRET"
	EnvPrivateKey = "PRIVATE_KEY"

	// PlaceholderAPIKey is written into a fresh .env file.
	PlaceholderAPIKey = "YOUR_API_KEY_SECRET"
)

var (
	// ErrMissingAPIKey is returned when the API key is unset or still the
	// placeholder.
	ErrMissingAPIKey = errors.New("popbatch: API_KEY_SECRET is not set")
	// ErrInvalidPrivateKey is returned for a malformed PRIVATE_KEY.
	ErrInvalidPrivateKey = errors.New("popbatch: invalid PRIVATE_KEY")
)

// DotEnv is a .env file holding the API key and the owner key.
type DotEnv struct {
	Path string
}

// Ensure creates the file with a placeholder API key if it does not exist.
// It reports whether the file was created.
func (d DotEnv) Ensure() (bool, error) {
	if _, err := os.Stat(d.Path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("stat %s: %w", d.Path, err)
	}

	if err := godotenv.Write(map[string]string{EnvAPIKey: PlaceholderAPIKey}, d.Path); err != nil {
		return false, fmt.Errorf("create %s: %w", d.Path, err)
	}
	if err := os.Chmod(d.Path, 0o600); err != nil {
		return true, fmt.Errorf("chmod %s: %w", d.Path, err)
	}
	return true, nil
}

// Load reads the file into the process environment without overriding
// variables that are already set.
func (d DotEnv) Load() error {
	if err := godotenv.Load(d.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", d.Path, err)
	}
	return nil
}

// APIKey returns the API key from the environment, rejecting the
// placeholder.
func APIKey() (string, error) {
	key := strings.TrimSpace(os.Getenv(EnvAPIKey))
	if key == "" || key == PlaceholderAPIKey {
		return "", fmt.Errorf("%w: add it to your .env file", ErrMissingAPIKey)
	}
	return key, nil
}

// PrivateKey returns the owner key from the environment. When none is set
// and generate is true, a new key is created and appended to the file. It
// reports whether a key was generated.
func (d DotEnv) PrivateKey(generate bool) (*ecdsa.PrivateKey, bool, error) {
	if raw := strings.TrimSpace(os.Getenv(EnvPrivateKey)); raw != "" {
		key, err := ParsePrivateKey(raw)
		return key, false, err
	}
	if !generate {
		return nil, false, fmt.Errorf("%w: %s is not set", ErrInvalidPrivateKey, EnvPrivateKey)
	}

	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, false, fmt.Errorf("generate key: %w", err)
	}

	values, err := godotenv.Read(d.Path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, false, fmt.Errorf("read %s: %w", d.Path, err)
	}
	if values == nil {
		values = map[string]string{}
	}
	encoded := hexutil.Encode(crypto.FromECDSA(key))
	values[EnvPrivateKey] = encoded
	if err := godotenv.Write(values, d.Path); err != nil {
		return nil, false, fmt.Errorf("write %s: %w", d.Path, err)
	}
	if err := os.Setenv(EnvPrivateKey, encoded); err != nil {
		return nil, false, err
	}
	return key, true, nil
}

// ParsePrivateKey parses a hex secp256k1 key with or without 0x.
func ParsePrivateKey(raw string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(raw), "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	return key, nil
}
