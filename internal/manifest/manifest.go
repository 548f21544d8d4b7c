// Package manifest reads and validates armory.toml package manifests.
//
// A manifest names a package, a version, and the prebuilt artifact for each
// target triple:
//
//	[package]
//	name = "hello"
//	version = "1.2.0"
//
//	[[targets]]
//	triple = "x86_64_linux"
//	path = "dist/hello-linux-amd64"
//
//	[[targets]]
//	triple = "aarch64_macos"
//	path = "dist/hello-darwin-arm64"
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/Masterminds/semver/v3"
	"github.com/pelletier/go-toml/v2"

	"github.com/armory-pm/armory/internal/platform"
)

// FileName is the default manifest file name.
const FileName = "armory.toml"

// nameRe restricts package names to a portable identifier charset. Names end
// up in URLs and directory names on every platform.
var nameRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Manifest is a validated package manifest.
type Manifest struct {
	Package Package  `toml:"package"`
	Targets []Target `toml:"targets"`
}

// Package identifies the package being published.
type Package struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Target binds a triple to the local artifact built for it.
type Target struct {
	Triple platform.Triple `toml:"triple"`
	Path   string          `toml:"path"`
}

// ManifestError reports a single validation failure, naming the offending
// field. Parsing is all-or-nothing: the first failure aborts.
type ManifestError struct {
	Field  string
	Reason string
}

func (e *ManifestError) Error() string {
	return fmt.Sprintf("invalid manifest: %s: %s", e.Field, e.Reason)
}

// Load reads and validates the manifest at path. Relative target paths are
// resolved against the manifest's directory.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no package manifest found at %s", path)
		}
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	return Parse(data, filepath.Dir(path))
}

// Parse decodes and validates raw manifest bytes. baseDir anchors relative
// target paths.
func Parse(data []byte, baseDir string) (*Manifest, error) {
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, &ManifestError{Field: "manifest", Reason: err.Error()}
	}

	if m.Package.Name == "" {
		return nil, &ManifestError{Field: "package.name", Reason: "is required"}
	}
	if err := ValidateName(m.Package.Name); err != nil {
		return nil, &ManifestError{Field: "package.name", Reason: err.Error()}
	}

	if m.Package.Version == "" {
		return nil, &ManifestError{Field: "package.version", Reason: "is required"}
	}
	if err := ValidateVersion(m.Package.Version); err != nil {
		return nil, &ManifestError{Field: "package.version", Reason: err.Error()}
	}

	if len(m.Targets) == 0 {
		return nil, &ManifestError{Field: "targets", Reason: "at least one target is required"}
	}

	seen := make(map[platform.Triple]bool, len(m.Targets))
	for i := range m.Targets {
		t := &m.Targets[i]
		field := fmt.Sprintf("targets[%d]", i)

		if _, err := platform.Parse(string(t.Triple)); err != nil {
			return nil, &ManifestError{Field: field + ".triple", Reason: err.Error()}
		}
		if seen[t.Triple] {
			return nil, &ManifestError{
				Field:  field + ".triple",
				Reason: fmt.Sprintf("duplicate triple %q", t.Triple),
			}
		}
		seen[t.Triple] = true

		if t.Path == "" {
			return nil, &ManifestError{Field: field + ".path", Reason: "is required"}
		}
		if !filepath.IsAbs(t.Path) && baseDir != "" {
			t.Path = filepath.Join(baseDir, t.Path)
		}
		if err := checkArtifact(t.Path); err != nil {
			return nil, &ManifestError{Field: field + ".path", Reason: err.Error()}
		}
	}

	return &m, nil
}

// ValidateName enforces the package name charset. Names end up in URLs and
// directory names on every platform, so only a portable identifier charset is
// allowed. The registry applies the same check server-side.
func ValidateName(name string) error {
	if !nameRe.MatchString(name) {
		return fmt.Errorf("%q contains invalid characters (allowed: alphanumeric, '-', '_')", name)
	}
	return nil
}

// ValidateVersion enforces strict three-component semantic versions with no
// leading "v". Loose inputs like "1.2" or "v1.2.3" are rejected so that
// ordering in the registry is always well defined.
func ValidateVersion(v string) error {
	if _, err := semver.StrictNewVersion(v); err != nil {
		return fmt.Errorf("%q is not a valid semantic version: %v", v, err)
	}
	return nil
}

// checkArtifact verifies the target path names an executable regular file.
func checkArtifact(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("artifact %q does not exist", path)
		}
		return fmt.Errorf("artifact %q: %v", path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("artifact %q is not a regular file", path)
	}
	if info.Mode().Perm()&0111 == 0 {
		return fmt.Errorf("artifact %q is not executable", path)
	}
	return nil
}

// Target returns the entry for the given triple, or nil if the manifest does
// not build for it.
func (m *Manifest) Target(triple platform.Triple) *Target {
	for i := range m.Targets {
		if m.Targets[i].Triple == triple {
			return &m.Targets[i]
		}
	}
	return nil
}
