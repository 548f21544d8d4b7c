package cliclient

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDownloadMapsStatuses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/packages/foo/1.0.0/x86_64_linux":
			w.Header().Set(VersionHeader, "1.0.0")
			w.Write([]byte("bytes"))
		case "/packages/foo/latest/x86_64_linux":
			w.Header().Set(VersionHeader, "1.2.0")
			w.Write([]byte("latest-bytes"))
		case "/packages/gone/1.0.0/x86_64_linux":
			http.Error(w, `{"error":"artifact not found"}`, http.StatusNotFound)
		default:
			http.Error(w, `{"error":"invalid artifact key"}`, http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "")

	rc, version, err := c.Download(context.Background(), "foo", "1.0.0", "x86_64_linux")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	got, _ := io.ReadAll(rc)
	rc.Close()
	if string(got) != "bytes" || version != "1.0.0" {
		t.Errorf("got %q version %q", got, version)
	}

	_, version, err = c.Download(context.Background(), "foo", "latest", "x86_64_linux")
	if err != nil {
		t.Fatalf("Download latest: %v", err)
	}
	if version != "1.2.0" {
		t.Errorf("latest resolved version = %q", version)
	}

	_, _, err = c.Download(context.Background(), "gone", "1.0.0", "x86_64_linux")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("missing package error = %v, want ErrNotFound", err)
	}

	_, _, err = c.Download(context.Background(), "foo", "1.0", "x86_64_linux")
	if !errors.Is(err, ErrInvalidKey) {
		t.Errorf("bad key error = %v, want ErrInvalidKey", err)
	}
}

func TestUploadMapsStatuses(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		switch r.URL.Path {
		case "/packages/new/1.0.0/x86_64_linux":
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"name":"new","version":"1.0.0","triple":"x86_64_linux","size":4}`))
		case "/packages/dup/1.0.0/x86_64_linux":
			http.Error(w, `{"error":"already published"}`, http.StatusConflict)
		default:
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")

	info, err := c.Upload(context.Background(), "new", "1.0.0", "x86_64_linux", bytes.NewReader([]byte("data")))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if info.Size != 4 {
		t.Errorf("info = %+v", info)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("authorization header = %q", gotAuth)
	}

	_, err = c.Upload(context.Background(), "dup", "1.0.0", "x86_64_linux", bytes.NewReader(nil))
	if !errors.Is(err, ErrConflict) {
		t.Errorf("duplicate error = %v, want ErrConflict", err)
	}

	_, err = c.Upload(context.Background(), "deny", "1.0.0", "x86_64_linux", bytes.NewReader(nil))
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("denied error = %v, want ErrUnauthorized", err)
	}
}

func TestTransportErrorIsRetryable(t *testing.T) {
	// Point at a closed server to force a connection failure.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := New(srv.URL, "")
	_, _, err := c.Download(context.Background(), "foo", "1.0.0", "x86_64_linux")
	if err == nil {
		t.Fatal("expected transport error")
	}
	if !IsRetryable(err) {
		t.Errorf("transport failure not marked retryable: %v", err)
	}

	// A server verdict is not retryable.
	if IsRetryable(ErrNotFound) {
		t.Error("ErrNotFound must not be retryable")
	}
}

func TestLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/login" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"token":"issued"}`))
	}))
	defer srv.Close()

	token, err := New(srv.URL, "").Login(context.Background(), "hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if token != "issued" {
		t.Errorf("token = %q", token)
	}
}

func TestListAndInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/packages":
			w.Write([]byte(`{"packages":["bar","foo"]}`))
		case "/packages/foo":
			w.Write([]byte(`{"name":"foo","artifacts":[{"name":"foo","version":"1.0.0","triple":"x86_64_linux"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	names, err := c.ListPackages(context.Background())
	if err != nil || len(names) != 2 {
		t.Errorf("ListPackages = %v, %v", names, err)
	}

	infos, err := c.PackageInfo(context.Background(), "foo")
	if err != nil || len(infos) != 1 || infos[0].Version != "1.0.0" {
		t.Errorf("PackageInfo = %+v, %v", infos, err)
	}
}
