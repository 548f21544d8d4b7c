// Package cliclient provides a lightweight HTTP client for the armory
// registry API.
package cliclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// VersionHeader mirrors the header the registry uses to echo the concrete
// version a "latest" download resolved to.
const VersionHeader = "X-Armory-Version"

// SelectorLatest asks the registry for the newest published version.
const SelectorLatest = "latest"

var (
	// ErrNotFound means the requested (name, version, triple) key is absent.
	ErrNotFound = errors.New("package not found in registry")

	// ErrConflict means the key is already published.
	ErrConflict = errors.New("already published")

	// ErrUnauthorized means the registry rejected the publish credential.
	ErrUnauthorized = errors.New("registry authentication failed")

	// ErrInvalidKey means the registry rejected the key as malformed.
	ErrInvalidKey = errors.New("registry rejected key")
)

// TransportError is a network-level failure: the request never produced a
// server verdict. The operation is safe to retry from scratch.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error for %s: %v (safe to retry)", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// APIError is a server response outside the expected set.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("registry error %d: %s", e.StatusCode, e.Body)
}

// ArtifactInfo describes one published artifact, as reported by the
// registry's info endpoint.
type ArtifactInfo struct {
	Name       string    `json:"name"`
	Version    string    `json:"version"`
	Triple     string    `json:"triple"`
	Digest     string    `json:"digest"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Client is a lightweight HTTP client for the registry API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a new registry client. token may be empty for read-only use.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			// Bounded so an unreachable registry fails instead of hanging.
			Timeout: 60 * time.Second,
		},
	}
}

func (c *Client) packageURL(name, version, triple string) string {
	return fmt.Sprintf("%s/packages/%s/%s/%s", c.baseURL, name, version, triple)
}

// statusErr maps an error response to the client's sentinel taxonomy.
func statusErr(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	detail := strings.TrimSpace(string(body))

	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, detail)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", ErrConflict, detail)
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrUnauthorized, detail)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrInvalidKey, detail)
	default:
		return &APIError{StatusCode: resp.StatusCode, Body: detail}
	}
}

// Upload publishes artifact bytes under (name, version, triple).
func (c *Client) Upload(ctx context.Context, name, version, triple string, r io.Reader) (*ArtifactInfo, error) {
	url := c.packageURL(name, version, triple)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, r)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, statusErr(resp)
	}

	var info ArtifactInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, &TransportError{URL: url, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return &info, nil
}

// Download fetches the artifact for (name, selector, triple). selector is an
// exact version or "latest"; the returned version is always concrete. The
// caller owns the reader.
func (c *Client) Download(ctx context.Context, name, selector, triple string) (io.ReadCloser, string, error) {
	url := c.packageURL(name, selector, triple)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", &TransportError{URL: url, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, "", statusErr(resp)
	}

	version := resp.Header.Get(VersionHeader)
	if version == "" {
		version = selector
	}
	return resp.Body, version, nil
}

// getJSON performs a GET and decodes the JSON response.
func (c *Client) getJSON(ctx context.Context, path string, result any) error {
	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusErr(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return &TransportError{URL: url, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}

// ListPackages returns the names of every package in the registry.
func (c *Client) ListPackages(ctx context.Context) ([]string, error) {
	var out struct {
		Packages []string `json:"packages"`
	}
	if err := c.getJSON(ctx, "/packages", &out); err != nil {
		return nil, err
	}
	return out.Packages, nil
}

// PackageInfo returns every published artifact record for a package.
func (c *Client) PackageInfo(ctx context.Context, name string) ([]ArtifactInfo, error) {
	var out struct {
		Artifacts []ArtifactInfo `json:"artifacts"`
	}
	if err := c.getJSON(ctx, "/packages/"+name, &out); err != nil {
		return nil, err
	}
	return out.Artifacts, nil
}

// Login exchanges the publish password for a bearer token.
func (c *Client) Login(ctx context.Context, password string) (string, error) {
	url := c.baseURL + "/auth/login"
	payload, err := json.Marshal(map[string]string{"password": password})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &TransportError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", statusErr(resp)
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &TransportError{URL: url, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return out.Token, nil
}

// IsRetryable reports whether err is a transport failure that a full retry
// of the (idempotent) operation could resolve.
func IsRetryable(err error) bool {
	var terr *TransportError
	return errors.As(err, &terr)
}
