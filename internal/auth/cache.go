package auth

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "ms-365-mcp-server"
	keyringUser    = "refresh-token"
)

// CredentialCache persists the refresh token between sessions.
type CredentialCache interface {
	Load() (string, error)
	Store(secret string) error
	Clear() error
}

// KeyringCache stores the refresh token in the OS keyring, falling back to a
// 0600 file when no keyring is available (headless hosts, CI).
type KeyringCache struct {
	fallbackPath string
	useFallback  bool
}

// NewKeyringCache creates a cache with the given file fallback location.
func NewKeyringCache(fallbackPath string) *KeyringCache {
	return &KeyringCache{fallbackPath: fallbackPath}
}

func (c *KeyringCache) Load() (string, error) {
	if !c.useFallback {
		secret, err := keyring.Get(keyringService, keyringUser)
		if err == nil {
			return secret, nil
		}
		if !errors.Is(err, keyring.ErrNotFound) {
			c.useFallback = true
			slog.Debug("keyring unavailable, using file fallback", "error", err)
		} else {
			return "", nil
		}
	}
	data, err := os.ReadFile(c.fallbackPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	return string(data), nil
}

func (c *KeyringCache) Store(secret string) error {
	if !c.useFallback {
		if err := keyring.Set(keyringService, keyringUser, secret); err == nil {
			return nil
		}
		c.useFallback = true
		slog.Debug("keyring unavailable, using file fallback")
	}
	if err := os.MkdirAll(filepath.Dir(c.fallbackPath), 0o700); err != nil {
		return err
	}
	return os.WriteFile(c.fallbackPath, []byte(secret), 0o600)
}

func (c *KeyringCache) Clear() error {
	err := keyring.Delete(keyringService, keyringUser)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		slog.Debug("keyring delete failed", "error", err)
	}
	if rmErr := os.Remove(c.fallbackPath); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
		return rmErr
	}
	return nil
}
