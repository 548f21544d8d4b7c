// Package localstore manages installed packages under the armory home
// directory.
//
// Layout:
//
//	{home}/registry/{name}-{version}/{name}   installed artifact
//	{home}/registry/{name}-{version}/armory.toml   descriptor
//	{home}/bin/{name}                         active entry for the package
//
// Version directories are immutable once complete and multiple versions
// coexist; only the bin entry moves between them. Every mutation goes
// through write-to-temp-then-rename, so a crash at any point leaves either
// no visible change or a completed one. The descriptor is written after the
// artifact: a directory without a descriptor is an interrupted install and
// is ignored by readers.
package localstore

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"syscall"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/pelletier/go-toml/v2"

	"github.com/armory-pm/armory/internal/platform"
)

const (
	// HomeEnv overrides the armory home directory (default ~/.armory).
	HomeEnv = "ARMORY_HOME"

	// DescriptorName is the per-version metadata file.
	DescriptorName = "armory.toml"
)

// Record describes one installed package version. It is persisted as the
// version directory's descriptor and is the commit marker for the install.
type Record struct {
	Name        string          `toml:"name"`
	Version     string          `toml:"version"`
	Triple      platform.Triple `toml:"triple"`
	InstalledAt time.Time       `toml:"installed_at"`
}

// StorageError reports a local disk failure, naming the path involved.
type StorageError struct {
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error at %s: %v", e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Store owns the registry/ and bin/ subtrees under the armory home. It holds
// no state besides the root path; everything is re-read from disk per call.
type Store struct {
	home string
}

// New creates a store rooted at $ARMORY_HOME or ~/.armory.
func New() (*Store, error) {
	if home := os.Getenv(HomeEnv); home != "" {
		return &Store{home: home}, nil
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolving home directory: %w", err)
	}
	return &Store{home: filepath.Join(userHome, ".armory")}, nil
}

// NewWithHome creates a store rooted at an explicit directory. This is
// primarily useful for testing.
func NewWithHome(home string) *Store {
	return &Store{home: home}
}

// Home returns the store's root directory.
func (s *Store) Home() string { return s.home }

// BinDir returns the directory holding active package entries.
func (s *Store) BinDir() string { return filepath.Join(s.home, "bin") }

func (s *Store) registryDir() string { return filepath.Join(s.home, "registry") }

func (s *Store) versionDir(name, version string) string {
	return filepath.Join(s.registryDir(), fmt.Sprintf("%s-%s", name, version))
}

// ArtifactPath returns the installed artifact path for a record.
func (s *Store) ArtifactPath(rec *Record) string {
	return filepath.Join(s.versionDir(rec.Name, rec.Version), rec.Name)
}

// BinPath returns the active entry path for a package name.
func (s *Store) BinPath(name string) string {
	return filepath.Join(s.BinDir(), name)
}

// Install writes artifact bytes into the version directory for
// (name, version). If that version is already completely installed the
// existing record is returned and the reader is not consumed: reinstalling
// an installed version is a no-op.
func (s *Store) Install(name, version string, triple platform.Triple, r io.Reader) (*Record, error) {
	if existing, err := s.Installed(name, version); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	dir := s.versionDir(name, version)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &StorageError{Path: dir, Err: err}
	}

	artifact := filepath.Join(dir, name)
	if err := writeFileAtomic(artifact, r, 0o755); err != nil {
		return nil, err
	}

	rec := &Record{
		Name:        name,
		Version:     version,
		Triple:      triple,
		InstalledAt: time.Now().UTC().Truncate(time.Second),
	}
	data, err := toml.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encoding descriptor: %w", err)
	}
	// Descriptor last: its presence marks the install as complete.
	descriptor := filepath.Join(dir, DescriptorName)
	if err := writeFileAtomic(descriptor, bytes.NewReader(data), 0o644); err != nil {
		return nil, err
	}

	return rec, nil
}

// Installed returns the record for (name, version) if that version is
// completely installed, or nil if it is absent or was interrupted mid-write.
func (s *Store) Installed(name, version string) (*Record, error) {
	rec, err := s.readDescriptor(s.versionDir(name, version))
	if err != nil || rec == nil {
		return nil, err
	}
	// The descriptor implies a complete artifact, but verify it survived.
	if _, err := os.Stat(s.ArtifactPath(rec)); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &StorageError{Path: s.ArtifactPath(rec), Err: err}
	}
	return rec, nil
}

func (s *Store) readDescriptor(dir string) (*Record, error) {
	data, err := os.ReadFile(filepath.Join(dir, DescriptorName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &StorageError{Path: filepath.Join(dir, DescriptorName), Err: err}
	}
	var rec Record
	if err := toml.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parsing descriptor in %s: %w", dir, err)
	}
	return &rec, nil
}

// ListInstalled returns every completely installed version of a package,
// ordered by name then semantic version ascending. An empty name matches
// every package. Package names may themselves contain '-', so the
// descriptor, not the directory name, is the authority on which package a
// directory belongs to.
func (s *Store) ListInstalled(name string) ([]Record, error) {
	entries, err := os.ReadDir(s.registryDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &StorageError{Path: s.registryDir(), Err: err}
	}

	var records []Record
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		rec, err := s.readDescriptor(filepath.Join(s.registryDir(), entry.Name()))
		if err != nil || rec == nil {
			continue
		}
		if name != "" && rec.Name != name {
			continue
		}
		records = append(records, *rec)
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].Name != records[j].Name {
			return records[i].Name < records[j].Name
		}
		vi, erri := semver.StrictNewVersion(records[i].Version)
		vj, errj := semver.StrictNewVersion(records[j].Version)
		if erri != nil || errj != nil {
			return records[i].Version < records[j].Version
		}
		return vi.LessThan(vj)
	})
	return records, nil
}

// Activate points bin/{name} at the record's artifact. The entry is created
// as a symlink at a temporary name and renamed over the old one, so readers
// never observe a missing or half-written entry. Where symlinks are
// unavailable the artifact is copied instead.
func (s *Store) Activate(rec *Record) (string, error) {
	if err := os.MkdirAll(s.BinDir(), 0o755); err != nil {
		return "", &StorageError{Path: s.BinDir(), Err: err}
	}

	target := s.ArtifactPath(rec)
	if _, err := os.Stat(target); err != nil {
		return "", &StorageError{Path: target, Err: err}
	}

	binPath := s.BinPath(rec.Name)
	// Unique temp name so concurrent activations never collide; a shared
	// name would make one of them fail with EEXIST.
	tmp := fmt.Sprintf("%s.tmp-%x", binPath, rand.Uint64())

	if err := os.Symlink(target, tmp); err != nil {
		if !symlinkUnsupported(err) {
			return "", &StorageError{Path: binPath, Err: err}
		}
		// Filesystem or platform cannot symlink at all: fall back to a copy.
		// Active() cannot identify the version behind a copy, so this is
		// strictly a last resort.
		f, err := os.Open(target)
		if err != nil {
			return "", &StorageError{Path: target, Err: err}
		}
		defer f.Close()
		if err := writeFileAtomic(binPath, f, 0o755); err != nil {
			return "", err
		}
		return binPath, nil
	}
	if err := os.Rename(tmp, binPath); err != nil {
		os.Remove(tmp)
		return "", &StorageError{Path: binPath, Err: err}
	}
	return binPath, nil
}

// symlinkUnsupported reports whether err means symlinks cannot be created
// here at all (FAT-style filesystems, Windows without the privilege), as
// opposed to a transient failure that should surface to the caller.
func symlinkUnsupported(err error) bool {
	if errors.Is(err, syscall.ENOTSUP) || errors.Is(err, syscall.EPERM) {
		return true
	}
	return runtime.GOOS == "windows"
}

// Active returns the record the bin entry for name currently points at, or
// nil if there is no active entry (or it is a copy rather than a symlink).
func (s *Store) Active(name string) (*Record, error) {
	target, err := os.Readlink(s.BinPath(name))
	if err != nil {
		return nil, nil
	}
	return s.readDescriptor(filepath.Dir(target))
}

// Uninstall removes the bin entry for name and every installed version
// directory belonging to it. It is idempotent: removing a package that is
// not installed is not an error.
func (s *Store) Uninstall(name string) error {
	binPath := s.BinPath(name)
	if err := os.Remove(binPath); err != nil && !os.IsNotExist(err) {
		return &StorageError{Path: binPath, Err: err}
	}

	records, err := s.ListInstalled(name)
	if err != nil {
		return err
	}
	for _, rec := range records {
		dir := s.versionDir(rec.Name, rec.Version)
		if err := os.RemoveAll(dir); err != nil {
			return &StorageError{Path: dir, Err: err}
		}
	}
	return nil
}

// writeFileAtomic streams r to a temp file in the destination directory,
// fsyncs, and renames into place.
func writeFileAtomic(dest string, r io.Reader, perm os.FileMode) error {
	dir := filepath.Dir(dest)
	tmp, err := os.CreateTemp(dir, filepath.Base(dest)+".tmp-*")
	if err != nil {
		return &StorageError{Path: dir, Err: err}
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return &StorageError{Path: tmpPath, Err: err}
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return &StorageError{Path: tmpPath, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return &StorageError{Path: tmpPath, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &StorageError{Path: tmpPath, Err: err}
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return &StorageError{Path: dest, Err: err}
	}
	return nil
}
