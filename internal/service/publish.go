package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/armory-pm/armory/internal/cliclient"
	"github.com/armory-pm/armory/internal/manifest"
	"github.com/armory-pm/armory/internal/platform"
)

// uploadConcurrency bounds parallel target uploads per publish.
const uploadConcurrency = 4

// Publisher uploads the targets of a manifest to a registry.
type Publisher struct {
	client *cliclient.Client
}

// NewPublisher creates a publisher over a registry client.
func NewPublisher(client *cliclient.Client) *Publisher {
	return &Publisher{client: client}
}

// TargetResult reports the outcome of one target's upload. Err is nil on
// success.
type TargetResult struct {
	Triple platform.Triple
	Path   string
	Size   int64
	Err    error
}

// PublishResult collects per-target outcomes for one manifest.
type PublishResult struct {
	Name    string
	Version string
	Targets []TargetResult
}

// Failed returns the results whose upload did not succeed.
func (r *PublishResult) Failed() []TargetResult {
	var failed []TargetResult
	for _, t := range r.Targets {
		if t.Err != nil {
			failed = append(failed, t)
		}
	}
	return failed
}

// Publish parses the manifest at manifestPath and uploads its targets.
// A manifest error aborts before any upload. Uploads run in parallel and
// independently: one target's failure does not roll back or stop its
// siblings, and the per-target outcomes are always returned. only, when
// non-empty, restricts the publish to the named triples.
func (p *Publisher) Publish(ctx context.Context, manifestPath string, only []platform.Triple) (*PublishResult, error) {
	m, err := manifest.Load(manifestPath)
	if err != nil {
		return nil, err
	}

	targets := m.Targets
	if len(only) > 0 {
		targets, err = filterTargets(m, only)
		if err != nil {
			return nil, err
		}
	}

	result := &PublishResult{
		Name:    m.Package.Name,
		Version: m.Package.Version,
		Targets: make([]TargetResult, len(targets)),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadConcurrency)
	for i, target := range targets {
		g.Go(func() error {
			result.Targets[i] = p.uploadTarget(ctx, m, target)
			return nil
		})
	}
	g.Wait()

	for _, t := range result.Targets {
		if t.Err != nil {
			slog.Warn("target upload failed",
				"name", m.Package.Name, "version", m.Package.Version,
				"triple", t.Triple, "error", t.Err)
		} else {
			slog.Info("published target",
				"name", m.Package.Name, "version", m.Package.Version,
				"triple", t.Triple, "size", t.Size)
		}
	}
	return result, nil
}

func (p *Publisher) uploadTarget(ctx context.Context, m *manifest.Manifest, target manifest.Target) TargetResult {
	res := TargetResult{Triple: target.Triple, Path: target.Path}

	f, err := os.Open(target.Path)
	if err != nil {
		res.Err = fmt.Errorf("opening %s: %w", filepath.Base(target.Path), err)
		return res
	}
	defer f.Close()

	info, err := p.client.Upload(ctx, m.Package.Name, m.Package.Version, string(target.Triple), f)
	if err != nil {
		res.Err = err
		return res
	}
	res.Size = info.Size
	return res
}

// filterTargets restricts the manifest's targets to the requested triples.
// Asking for a triple the manifest does not declare is an error.
func filterTargets(m *manifest.Manifest, only []platform.Triple) ([]manifest.Target, error) {
	var out []manifest.Target
	for _, triple := range only {
		t := m.Target(triple)
		if t == nil {
			return nil, &manifest.ManifestError{
				Field:  "targets",
				Reason: fmt.Sprintf("manifest declares no target for %s", triple),
			}
		}
		out = append(out, *t)
	}
	return out, nil
}
