package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/armory-pm/armory/internal/registry"
)

// VersionHeader carries the concrete version a "latest" download resolved to.
const VersionHeader = "X-Armory-Version"

// PackageHandler serves artifact upload, download, and listing.
type PackageHandler struct {
	store *registry.Store
}

// NewPackageHandler creates a new package handler.
func NewPackageHandler(store *registry.Store) *PackageHandler {
	return &PackageHandler{store: store}
}

// ArtifactResponse describes one stored artifact.
type ArtifactResponse struct {
	Name       string    `json:"name"`
	Version    string    `json:"version"`
	Triple     string    `json:"triple"`
	Digest     string    `json:"digest"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Upload handles PUT /packages/:name/:version/:triple. The body is the raw
// artifact. Responds 201 on success, 409 if the key is already published,
// 400 for an invalid key.
func (h *PackageHandler) Upload(c *gin.Context) {
	name := c.Param("name")
	version := c.Param("version")
	triple := c.Param("triple")

	artifact, err := h.store.Put(c.Request.Context(), name, version, triple, c.Request.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, registry.ErrConflict):
			c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
		case errors.Is(err, registry.ErrInvalidKey):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		case errors.As(err, &maxErr):
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
				Error: fmt.Sprintf("artifact exceeds the %d byte upload limit", maxErr.Limit),
			})
		default:
			slog.Error("upload failed", "name", name, "version", version, "triple", triple, "error", err)
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to store artifact"})
		}
		return
	}

	c.JSON(http.StatusCreated, ArtifactResponse{
		Name:       artifact.Name,
		Version:    artifact.Version,
		Triple:     artifact.Triple,
		Digest:     artifact.Digest,
		Size:       artifact.Size,
		UploadedAt: artifact.UploadedAt,
	})
}

// Download handles GET /packages/:name/:version/:triple. :version may be the
// literal "latest"; the resolved version is echoed in the X-Armory-Version
// header alongside the raw artifact bytes.
func (h *PackageHandler) Download(c *gin.Context) {
	name := c.Param("name")
	selector := c.Param("version")
	triple := c.Param("triple")

	rc, artifact, err := h.store.Get(c.Request.Context(), name, selector, triple)
	if err != nil {
		switch {
		case errors.Is(err, registry.ErrNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
		case errors.Is(err, registry.ErrInvalidKey):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		default:
			slog.Error("download failed", "name", name, "selector", selector, "triple", triple, "error", err)
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to read artifact"})
		}
		return
	}
	defer rc.Close()

	c.Header(VersionHeader, artifact.Version)
	c.DataFromReader(http.StatusOK, artifact.Size, "application/octet-stream", rc, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", artifact.Name),
	})
}

// List handles GET /packages and returns the package names in the registry.
func (h *PackageHandler) List(c *gin.Context) {
	names, err := h.store.ListPackages(c.Request.Context())
	if err != nil {
		slog.Error("list failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to list packages"})
		return
	}
	if names == nil {
		names = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"packages": names})
}

// Info handles GET /packages/:name and returns every published artifact
// record for the package.
func (h *PackageHandler) Info(c *gin.Context) {
	name := c.Param("name")

	artifacts, err := h.store.Versions(c.Request.Context(), name)
	if err != nil {
		switch {
		case errors.Is(err, registry.ErrNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
		case errors.Is(err, registry.ErrInvalidKey):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		default:
			slog.Error("info failed", "name", name, "error", err)
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to read package info"})
		}
		return
	}

	out := make([]ArtifactResponse, len(artifacts))
	for i, a := range artifacts {
		out[i] = ArtifactResponse{
			Name:       a.Name,
			Version:    a.Version,
			Triple:     a.Triple,
			Digest:     a.Digest,
			Size:       a.Size,
			UploadedAt: a.UploadedAt,
		}
	}
	c.JSON(http.StatusOK, gin.H{"name": name, "artifacts": out})
}
