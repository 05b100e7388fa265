// Package auth issues PASETO access tokens, opaque refresh tokens and
// argon2id password hashes.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// KeyFile is the file name of the token key under the metadata directory.
const KeyFile = "auth.key"

// LoadOrGenerateKey reads the hex-encoded 32 byte token key from
// {dir}/auth.key, creating it on first run.
func LoadOrGenerateKey(dir string) ([]byte, error) {
	path := filepath.Join(dir, KeyFile)

	raw, err := os.ReadFile(path) //#nosec G304 -- path derived from the metadata directory
	switch {
	case err == nil:
		key, err := hex.DecodeString(strings.TrimSpace(string(raw)))
		if err != nil {
			return nil, fmt.Errorf("invalid auth key format: not valid hex: %w", err)
		}
		if len(key) != keyBytesSize {
			return nil, fmt.Errorf("invalid auth key length: expected %d bytes, got %d", keyBytesSize, len(key))
		}
		return key, nil

	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("read auth key: %w", err)
	}

	key := make([]byte, keyBytesSize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate auth key: %w", err)
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create metadata directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(key)), 0o600); err != nil {
		return nil, fmt.Errorf("failed to save auth key: %w", err)
	}

	return key, nil
}
