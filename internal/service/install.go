// Package service orchestrates the CLI's install and publish flows on top
// of the registry client and the local store. It holds no state between
// operations; every call resolves what it needs from its collaborators.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Masterminds/semver/v3"

	"github.com/armory-pm/armory/internal/cliclient"
	"github.com/armory-pm/armory/internal/localstore"
	"github.com/armory-pm/armory/internal/manifest"
	"github.com/armory-pm/armory/internal/platform"
)

// Installer downloads artifacts from a registry into the local store and
// activates them.
type Installer struct {
	client *cliclient.Client
	store  *localstore.Store
}

// NewInstaller creates an installer over a registry client and local store.
func NewInstaller(client *cliclient.Client, store *localstore.Store) *Installer {
	return &Installer{client: client, store: store}
}

// InstallResult reports what Install did.
type InstallResult struct {
	Name    string
	Version string
	Triple  platform.Triple
	BinPath string
	// Reused is true when the version was already installed and only the
	// active entry was repointed.
	Reused bool
}

// Install fetches a package for the local platform and makes it the active
// version. selector is an exact version, "latest", or empty (treated as
// latest). Already-installed versions are not downloaded again.
func (ins *Installer) Install(ctx context.Context, name, selector string) (*InstallResult, error) {
	if err := manifest.ValidateName(name); err != nil {
		return nil, err
	}
	triple, err := platform.ResolveLocal()
	if err != nil {
		return nil, err
	}

	version, err := ins.resolveVersion(ctx, name, selector, triple)
	if err != nil {
		return nil, err
	}

	rec, err := ins.store.Installed(name, version)
	if err != nil {
		return nil, err
	}
	reused := rec != nil
	if reused {
		slog.Debug("version already installed, skipping download",
			"name", name, "version", version)
	} else {
		body, gotVersion, err := ins.client.Download(ctx, name, version, string(triple))
		if err != nil {
			return nil, err
		}
		defer body.Close()
		if gotVersion != "" {
			version = gotVersion
		}
		rec, err = ins.store.Install(name, version, triple, body)
		if err != nil {
			return nil, err
		}
	}

	binPath, err := ins.store.Activate(rec)
	if err != nil {
		return nil, err
	}

	slog.Info("installed package",
		"name", name, "version", version, "triple", triple, "reused", reused)
	return &InstallResult{
		Name:    name,
		Version: version,
		Triple:  triple,
		BinPath: binPath,
		Reused:  reused,
	}, nil
}

// resolveVersion turns the user's selector into a concrete version. Exact
// versions pass through after validation; latest is resolved against the
// registry's records for this platform so an already-installed latest can
// short-circuit the download.
func (ins *Installer) resolveVersion(ctx context.Context, name, selector string, triple platform.Triple) (string, error) {
	if selector != "" && selector != cliclient.SelectorLatest {
		if err := manifest.ValidateVersion(selector); err != nil {
			return "", err
		}
		return selector, nil
	}

	infos, err := ins.client.PackageInfo(ctx, name)
	if err != nil {
		return "", err
	}

	var latest *semver.Version
	var latestRaw string
	for _, info := range infos {
		if info.Triple != string(triple) {
			continue
		}
		v, err := semver.StrictNewVersion(info.Version)
		if err != nil {
			continue
		}
		if latest == nil || v.GreaterThan(latest) {
			latest = v
			latestRaw = info.Version
		}
	}
	if latest == nil {
		return "", fmt.Errorf("%w: no version of %s for %s", cliclient.ErrNotFound, name, triple)
	}
	return latestRaw, nil
}
