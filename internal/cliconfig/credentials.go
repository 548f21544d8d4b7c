package cliconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zalando/go-keyring"
)

// keyringService namespaces armory tokens inside the OS credential store.
const keyringService = "armory-registry"

// ErrNoToken means no publish token is stored for the registry.
var ErrNoToken = errors.New("no stored token; run 'armory login' first")

// fileCredentials is the fallback store for hosts without a usable OS
// keyring (headless servers, CI). Tokens map registry URL -> token.
type fileCredentials struct {
	Tokens map[string]string `json:"tokens"`
}

// CredentialsPath returns the path to the fallback credentials.json.
func CredentialsPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "credentials.json"), nil
}

// StoreToken saves the publish token for a registry, preferring the OS
// keyring and falling back to a 0600 credentials file.
func StoreToken(registry, token string) error {
	if err := keyring.Set(keyringService, registry, token); err == nil {
		return nil
	}
	creds, err := loadFileCredentials()
	if err != nil {
		return err
	}
	creds.Tokens[registry] = token
	return saveFileCredentials(creds)
}

// LoadToken returns the stored publish token for a registry, or ErrNoToken.
func LoadToken(registry string) (string, error) {
	if token, err := keyring.Get(keyringService, registry); err == nil {
		return token, nil
	}
	creds, err := loadFileCredentials()
	if err != nil {
		return "", err
	}
	token, ok := creds.Tokens[registry]
	if !ok {
		return "", fmt.Errorf("%w (registry %s)", ErrNoToken, registry)
	}
	return token, nil
}

// DeleteToken removes the stored token for a registry from both stores.
// Missing tokens are not an error.
func DeleteToken(registry string) error {
	if err := keyring.Delete(keyringService, registry); err != nil &&
		!errors.Is(err, keyring.ErrNotFound) && !errors.Is(err, keyring.ErrUnsupportedPlatform) {
		return err
	}
	creds, err := loadFileCredentials()
	if err != nil {
		return err
	}
	if _, ok := creds.Tokens[registry]; !ok {
		return nil
	}
	delete(creds.Tokens, registry)
	return saveFileCredentials(creds)
}

func loadFileCredentials() (*fileCredentials, error) {
	path, err := CredentialsPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &fileCredentials{Tokens: make(map[string]string)}, nil
		}
		return nil, fmt.Errorf("reading credentials: %w", err)
	}

	var creds fileCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}
	if creds.Tokens == nil {
		creds.Tokens = make(map[string]string)
	}
	return &creds, nil
}

func saveFileCredentials(creds *fileCredentials) error {
	path, err := CredentialsPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling credentials: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}
	return nil
}
