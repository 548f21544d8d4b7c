package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/armory-pm/armory/internal/api/handlers"
	"github.com/armory-pm/armory/internal/audit"
	"github.com/armory-pm/armory/internal/auth"
	"github.com/armory-pm/armory/internal/config"
	"github.com/armory-pm/armory/internal/models"
	"github.com/armory-pm/armory/internal/registry"
)

func newTestRouter(t *testing.T, cfg config.AuthConfig) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.Artifact{}, &models.AuditEvent{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	store, err := registry.NewStore(db, t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	return NewRouter(&config.Config{
		Server: config.ServerConfig{MaxBodyBytes: 1 << 20},
		Auth:   cfg,
	}, store, auth.New(cfg)), db
}

func put(r *gin.Engine, path string, body []byte, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, path, bytes.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	r.ServeHTTP(w, req)
	return w
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestPublishDownloadRoundTrip(t *testing.T) {
	r, _ := newTestRouter(t, config.AuthConfig{JWTSecret: "s"})
	content := []byte("artifact bytes")

	w := put(r, "/packages/foo/1.0.0/x86_64_linux", content, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("put status = %d, body %s", w.Code, w.Body)
	}

	w = get(r, "/packages/foo/1.0.0/x86_64_linux")
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d, body %s", w.Code, w.Body)
	}
	if !bytes.Equal(w.Body.Bytes(), content) {
		t.Errorf("downloaded bytes = %q, want %q", w.Body.Bytes(), content)
	}
	if v := w.Header().Get(handlers.VersionHeader); v != "1.0.0" {
		t.Errorf("version header = %q", v)
	}
}

func TestPublishConflictAndBadKey(t *testing.T) {
	r, _ := newTestRouter(t, config.AuthConfig{JWTSecret: "s"})

	if w := put(r, "/packages/foo/1.0.0/x86_64_linux", []byte("a"), ""); w.Code != http.StatusCreated {
		t.Fatalf("first put: %d", w.Code)
	}
	if w := put(r, "/packages/foo/1.0.0/x86_64_linux", []byte("b"), ""); w.Code != http.StatusConflict {
		t.Errorf("duplicate put status = %d, want 409", w.Code)
	}

	if w := put(r, "/packages/foo/1.0/x86_64_linux", []byte("a"), ""); w.Code != http.StatusBadRequest {
		t.Errorf("partial version status = %d, want 400", w.Code)
	}
	if w := put(r, "/packages/foo/1.0.0/x86_64_freebsd", []byte("a"), ""); w.Code != http.StatusBadRequest {
		t.Errorf("unsupported triple status = %d, want 400", w.Code)
	}
	if w := put(r, "/packages/b@d/1.0.0/x86_64_linux", []byte("a"), ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad name status = %d, want 400", w.Code)
	}
}

func TestLatestResolution(t *testing.T) {
	r, _ := newTestRouter(t, config.AuthConfig{JWTSecret: "s"})
	for _, v := range []string{"1.0.0", "1.2.0", "1.1.0"} {
		if w := put(r, "/packages/foo/"+v+"/x86_64_linux", []byte("v"+v), ""); w.Code != http.StatusCreated {
			t.Fatalf("put %s: %d", v, w.Code)
		}
	}

	w := get(r, "/packages/foo/latest/x86_64_linux")
	if w.Code != http.StatusOK {
		t.Fatalf("get latest: %d", w.Code)
	}
	if v := w.Header().Get(handlers.VersionHeader); v != "1.2.0" {
		t.Errorf("latest resolved to %q, want 1.2.0", v)
	}
	if w.Body.String() != "v1.2.0" {
		t.Errorf("latest bytes = %q", w.Body.String())
	}
}

func TestDownloadNotFound(t *testing.T) {
	r, _ := newTestRouter(t, config.AuthConfig{JWTSecret: "s"})
	if w := get(r, "/packages/absent/1.0.0/x86_64_linux"); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}

	// Published for one triple only: other triples are NotFound, never a
	// fallback to a different architecture's artifact.
	put(r, "/packages/foo/1.0.0/x86_64_linux", []byte("a"), "")
	if w := get(r, "/packages/foo/1.0.0/aarch64_macos"); w.Code != http.StatusNotFound {
		t.Errorf("cross-triple status = %d, want 404", w.Code)
	}
}

func TestAuthRequiredForPublish(t *testing.T) {
	r, _ := newTestRouter(t, config.AuthConfig{Password: "hunter2", JWTSecret: "s"})

	if w := put(r, "/packages/foo/1.0.0/x86_64_linux", []byte("a"), ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated put status = %d, want 401", w.Code)
	}

	// Login, then publish with the issued token.
	w := httptest.NewRecorder()
	body, _ := json.Marshal(handlers.LoginRequest{Password: "hunter2"})
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", w.Code, w.Body)
	}
	var resp handlers.LoginResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}

	if w := put(r, "/packages/foo/1.0.0/x86_64_linux", []byte("a"), resp.Token); w.Code != http.StatusCreated {
		t.Errorf("authenticated put status = %d, want 201", w.Code)
	}

	// Downloads stay public.
	if w := get(r, "/packages/foo/1.0.0/x86_64_linux"); w.Code != http.StatusOK {
		t.Errorf("public download status = %d, want 200", w.Code)
	}
}

func TestListAndInfo(t *testing.T) {
	r, _ := newTestRouter(t, config.AuthConfig{JWTSecret: "s"})
	put(r, "/packages/foo/1.0.0/x86_64_linux", []byte("a"), "")
	put(r, "/packages/foo/1.1.0/x86_64_linux", []byte("b"), "")
	put(r, "/packages/bar/2.0.0/aarch64_macos", []byte("c"), "")

	w := get(r, "/packages")
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var list struct {
		Packages []string `json:"packages"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Packages) != 2 || list.Packages[0] != "bar" || list.Packages[1] != "foo" {
		t.Errorf("packages = %v", list.Packages)
	}

	w = get(r, "/packages/foo")
	if w.Code != http.StatusOK {
		t.Fatalf("info status = %d", w.Code)
	}
	var info struct {
		Name      string                      `json:"name"`
		Artifacts []handlers.ArtifactResponse `json:"artifacts"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode info: %v", err)
	}
	if len(info.Artifacts) != 2 {
		t.Errorf("artifacts = %+v", info.Artifacts)
	}

	if w := get(r, "/packages/absent"); w.Code != http.StatusNotFound {
		t.Errorf("info for absent package = %d, want 404", w.Code)
	}
}

func TestBodyLimit(t *testing.T) {
	r, _ := newTestRouter(t, config.AuthConfig{JWTSecret: "s"})
	big := bytes.Repeat([]byte("x"), 2<<20)
	if w := put(r, "/packages/foo/1.0.0/x86_64_linux", big, ""); w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized put status = %d, want 413", w.Code)
	}
}

func TestLoginRecordsAuditEvent(t *testing.T) {
	r, db := newTestRouter(t, config.AuthConfig{Password: "hunter2", JWTSecret: "s"})

	// A rejected login leaves no trail.
	w := httptest.NewRecorder()
	body, _ := json.Marshal(handlers.LoginRequest{Password: "wrong"})
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad login status = %d, want 401", w.Code)
	}

	w = httptest.NewRecorder()
	body, _ = json.Marshal(handlers.LoginRequest{Password: "hunter2"})
	req = httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", w.Code, w.Body)
	}

	var events []models.AuditEvent
	if err := db.Find(&events).Error; err != nil {
		t.Fatalf("loading audit events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("audit events = %d, want 1", len(events))
	}
	if events[0].Action != audit.ActionLogin {
		t.Errorf("action = %q, want %q", events[0].Action, audit.ActionLogin)
	}
}
