package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/armory-pm/armory/internal/audit"
	"github.com/armory-pm/armory/internal/auth"
)

// LoginRequest carries the publish password.
type LoginRequest struct {
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries the issued bearer token.
type LoginResponse struct {
	Token string `json:"token"`
}

// Login handles POST /auth/login, exchanging the publish password for a
// bearer token. Successful logins are recorded in the audit trail.
func Login(a *auth.Authenticator, rec *audit.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}

		token, err := a.Login(req.Password)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrInvalidCredentials):
				c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
			case errors.Is(err, auth.ErrDisabled):
				c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			default:
				c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "login failed"})
			}
			return
		}

		rec.Record(audit.ActionLogin, "publisher", map[string]any{"ip": c.ClientIP()})
		c.JSON(http.StatusOK, LoginResponse{Token: token})
	}
}
