package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/armory-pm/armory/internal/cliclient"
	"github.com/armory-pm/armory/internal/cliconfig"
)

// parseIdentifier splits PACKAGE[@VERSION] into its parts. version is empty
// when the identifier carries none.
func parseIdentifier(s string) (name, version string, err error) {
	name, version, found := strings.Cut(s, "@")
	if name == "" {
		return "", "", fmt.Errorf("empty package name in %q", s)
	}
	if found && version == "" {
		return "", "", fmt.Errorf("empty version in %q", s)
	}
	if strings.Contains(version, "@") {
		return "", "", fmt.Errorf("too many components in package identifier %q", s)
	}
	return name, version, nil
}

// resolveRegistry applies flag > config file > default.
func resolveRegistry() (string, error) {
	cfg, err := cliconfig.Load()
	if err != nil {
		return "", err
	}
	return cfg.ResolveRegistry(flagRegistry), nil
}

// newClient builds a registry client. withToken attaches the stored publish
// token; a missing token is only an error when one was requested.
func newClient(withToken bool) (*cliclient.Client, error) {
	registry, err := resolveRegistry()
	if err != nil {
		return nil, err
	}

	var token string
	if withToken {
		token, err = cliconfig.LoadToken(registry)
		if err != nil && !errors.Is(err, cliconfig.ErrNoToken) {
			return nil, err
		}
	}
	return cliclient.New(registry, token), nil
}
