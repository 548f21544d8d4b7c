package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Version is set from the server binary's build version.
var Version = "dev"

// ErrorResponse is the JSON body for all error statuses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthCheck reports server liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// VersionInfo reports the running server version.
func VersionInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"version": Version})
}
