// Package registry implements the server-side artifact store.
//
// Metadata lives in the database with a unique constraint on
// (name, version, triple); blobs live on disk under the data directory,
// addressed by their sha256 digest. The constraint, not an application-level
// existence check, is what enforces the append-only rule: concurrent
// publishes of the same key race at the insert and exactly one wins.
package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/opencontainers/go-digest"
	"gorm.io/gorm"

	"github.com/armory-pm/armory/internal/audit"
	"github.com/armory-pm/armory/internal/manifest"
	"github.com/armory-pm/armory/internal/models"
	"github.com/armory-pm/armory/internal/platform"
)

// SelectorLatest requests the highest published semantic version.
const SelectorLatest = "latest"

var (
	// ErrConflict means the (name, version, triple) key is already published.
	// Published artifacts are immutable; the stored bytes are untouched.
	ErrConflict = errors.New("artifact already published")

	// ErrNotFound means no artifact exists for the requested key.
	ErrNotFound = errors.New("artifact not found")

	// ErrInvalidKey means the name, version, or triple failed validation.
	ErrInvalidKey = errors.New("invalid artifact key")
)

// Store persists artifacts: rows in the database, blobs on disk.
type Store struct {
	db      *gorm.DB
	dataDir string
	audit   *audit.Recorder
}

// NewStore creates a store rooted at dataDir.
func NewStore(db *gorm.DB, dataDir string) (*Store, error) {
	for _, dir := range []string{
		filepath.Join(dataDir, "blobs", "sha256"),
		filepath.Join(dataDir, "tmp"),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory %s: %w", dir, err)
		}
	}
	return &Store{db: db, dataDir: dataDir, audit: audit.NewRecorder(db)}, nil
}

// Auditor exposes the store's audit recorder so other mutating surfaces
// (login) share the same trail.
func (s *Store) Auditor() *audit.Recorder { return s.audit }

// validateKey applies the same syntactic checks the client runs at manifest
// parse time. The server never trusts the client's validation.
func validateKey(name, version, triple string) error {
	if err := manifest.ValidateName(name); err != nil {
		return fmt.Errorf("%w: name: %v", ErrInvalidKey, err)
	}
	if err := manifest.ValidateVersion(version); err != nil {
		return fmt.Errorf("%w: version: %v", ErrInvalidKey, err)
	}
	if _, err := platform.Parse(triple); err != nil {
		return fmt.Errorf("%w: triple: %v", ErrInvalidKey, err)
	}
	return nil
}

// Put stores artifact bytes under (name, version, triple). The blob is
// written to a temp file, fsynced, and renamed into the content-addressed
// tree before the metadata row is inserted, so a successful return means the
// artifact is durable and immediately retrievable. A duplicate key returns
// ErrConflict.
func (s *Store) Put(ctx context.Context, name, version, triple string, r io.Reader) (*models.Artifact, error) {
	if err := validateKey(name, version, triple); err != nil {
		return nil, err
	}

	dgst, size, err := s.writeBlob(r)
	if err != nil {
		return nil, fmt.Errorf("storing blob for %s-%s %s: %w", name, version, triple, err)
	}

	artifact := &models.Artifact{
		Name:       name,
		Version:    version,
		Triple:     triple,
		Digest:     dgst.String(),
		Size:       size,
		UploadedAt: time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(artifact).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// The blob stays: content-addressed storage is shared and a
			// dangling blob is harmless, whereas deleting could race another
			// key that references the same bytes.
			return nil, fmt.Errorf("%w: %s-%s %s", ErrConflict, name, version, triple)
		}
		return nil, fmt.Errorf("recording artifact %s-%s %s: %w", name, version, triple, err)
	}

	slog.Info("published artifact",
		"name", name, "version", version, "triple", triple,
		"digest", artifact.Digest, "size", size)
	s.audit.Record(audit.ActionPublish,
		fmt.Sprintf("%s/%s/%s", name, version, triple),
		map[string]any{"digest": artifact.Digest, "size": size})
	return artifact, nil
}

// writeBlob spools the upload to a temp file while hashing, then renames it
// to its digest-derived final path. Rename is atomic, so a crash mid-upload
// never leaves a partial blob visible.
func (s *Store) writeBlob(r io.Reader) (digest.Digest, int64, error) {
	tmp, err := os.CreateTemp(filepath.Join(s.dataDir, "tmp"), "upload-*")
	if err != nil {
		return "", 0, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	digester := digest.Canonical.Digester()
	size, err := io.Copy(io.MultiWriter(tmp, digester.Hash()), r)
	if err != nil {
		tmp.Close()
		return "", 0, fmt.Errorf("writing blob: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", 0, fmt.Errorf("syncing blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", 0, fmt.Errorf("closing blob: %w", err)
	}

	dgst := digester.Digest()
	final := s.blobPath(dgst)
	if _, err := os.Stat(final); err == nil {
		// Identical content already stored; the temp copy is redundant.
		return dgst, size, nil
	}
	if err := os.Rename(tmpPath, final); err != nil {
		return "", 0, fmt.Errorf("finalizing blob: %w", err)
	}
	return dgst, size, nil
}

func (s *Store) blobPath(dgst digest.Digest) string {
	return filepath.Join(s.dataDir, "blobs", dgst.Algorithm().String(), dgst.Encoded())
}

// Get opens the artifact for (name, selector, triple). selector is an exact
// version or SelectorLatest. The caller owns the returned reader.
func (s *Store) Get(ctx context.Context, name, selector, triple string) (io.ReadCloser, *models.Artifact, error) {
	if err := manifest.ValidateName(name); err != nil {
		return nil, nil, fmt.Errorf("%w: name: %v", ErrInvalidKey, err)
	}
	if _, err := platform.Parse(triple); err != nil {
		return nil, nil, fmt.Errorf("%w: triple: %v", ErrInvalidKey, err)
	}

	version := selector
	if selector == SelectorLatest {
		latest, err := s.latestVersion(ctx, name, triple)
		if err != nil {
			return nil, nil, err
		}
		version = latest
	} else if err := manifest.ValidateVersion(selector); err != nil {
		return nil, nil, fmt.Errorf("%w: version: %v", ErrInvalidKey, err)
	}

	var artifact models.Artifact
	err := s.db.WithContext(ctx).
		Where("name = ? AND version = ? AND triple = ?", name, version, triple).
		First(&artifact).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("%w: %s-%s %s", ErrNotFound, name, version, triple)
		}
		return nil, nil, fmt.Errorf("looking up %s-%s %s: %w", name, version, triple, err)
	}

	f, err := os.Open(s.blobPath(digest.Digest(artifact.Digest)))
	if err != nil {
		return nil, nil, fmt.Errorf("opening blob %s: %w", artifact.Digest, err)
	}
	return f, &artifact, nil
}

// ResolveVersion maps a selector to a concrete version without opening the
// blob. Used by clients that only need to know what "latest" means.
func (s *Store) ResolveVersion(ctx context.Context, name, selector, triple string) (string, error) {
	if selector != SelectorLatest {
		return selector, nil
	}
	return s.latestVersion(ctx, name, triple)
}

// latestVersion picks the highest semantic version published for
// (name, triple). Versions are compared numerically, never as strings.
func (s *Store) latestVersion(ctx context.Context, name, triple string) (string, error) {
	var versions []string
	err := s.db.WithContext(ctx).Model(&models.Artifact{}).
		Where("name = ? AND triple = ?", name, triple).
		Pluck("version", &versions).Error
	if err != nil {
		return "", fmt.Errorf("listing versions of %s %s: %w", name, triple, err)
	}
	if len(versions) == 0 {
		return "", fmt.Errorf("%w: %s-latest %s", ErrNotFound, name, triple)
	}

	var best *semver.Version
	for _, v := range versions {
		sv, err := semver.StrictNewVersion(v)
		if err != nil {
			// Cannot happen for rows written through Put; skip defensively.
			continue
		}
		if best == nil || sv.GreaterThan(best) {
			best = sv
		}
	}
	if best == nil {
		return "", fmt.Errorf("%w: %s-latest %s", ErrNotFound, name, triple)
	}
	return best.Original(), nil
}

// Versions returns every artifact record for a package, ordered by semantic
// version ascending and then by triple.
func (s *Store) Versions(ctx context.Context, name string) ([]models.Artifact, error) {
	if err := manifest.ValidateName(name); err != nil {
		return nil, fmt.Errorf("%w: name: %v", ErrInvalidKey, err)
	}

	var artifacts []models.Artifact
	if err := s.db.WithContext(ctx).Where("name = ?", name).Find(&artifacts).Error; err != nil {
		return nil, fmt.Errorf("listing artifacts of %s: %w", name, err)
	}
	if len(artifacts) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	sort.Slice(artifacts, func(i, j int) bool {
		vi, erri := semver.StrictNewVersion(artifacts[i].Version)
		vj, errj := semver.StrictNewVersion(artifacts[j].Version)
		if erri != nil || errj != nil {
			return artifacts[i].Version < artifacts[j].Version
		}
		if !vi.Equal(vj) {
			return vi.LessThan(vj)
		}
		return artifacts[i].Triple < artifacts[j].Triple
	})
	return artifacts, nil
}

// ListPackages returns the distinct package names in the registry, sorted.
func (s *Store) ListPackages(ctx context.Context) ([]string, error) {
	var names []string
	err := s.db.WithContext(ctx).Model(&models.Artifact{}).
		Distinct("name").Order("name").Pluck("name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("listing packages: %w", err)
	}
	return names, nil
}
