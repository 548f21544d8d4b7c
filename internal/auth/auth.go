// Package auth guards the registry's publish surface.
//
// The registry is configured with a single publish password (bcrypt hash
// preferred, plaintext for local development). Clients exchange it at
// /auth/login for a short-lived HS256 bearer token; the middleware also
// accepts the raw password as a bearer credential so that one-off curl
// publishes work without a login round trip.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/armory-pm/armory/internal/config"
)

// TokenDuration is the validity period for issued bearer tokens.
const TokenDuration = 24 * time.Hour

// ErrInvalidCredentials is returned by Login for a wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrDisabled is returned by Login when no password is configured.
var ErrDisabled = errors.New("authentication is not configured on this registry")

// Authenticator validates publish credentials and issues bearer tokens.
type Authenticator struct {
	passwordHash string
	password     string
	jwtSecret    []byte
}

// New creates an authenticator from server configuration.
func New(cfg config.AuthConfig) *Authenticator {
	a := &Authenticator{
		passwordHash: cfg.PasswordHash,
		password:     cfg.Password,
		jwtSecret:    []byte(cfg.JWTSecret),
	}
	if !a.Enabled() {
		slog.Warn("no publish password configured; publishing is open to anyone")
	}
	return a
}

// Enabled reports whether a publish password is configured.
func (a *Authenticator) Enabled() bool {
	return a.passwordHash != "" || a.password != ""
}

// verifyPassword checks the presented password against the configured secret.
func (a *Authenticator) verifyPassword(password string) bool {
	if a.passwordHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(a.passwordHash), []byte(password)) == nil
	}
	if a.password != "" {
		return subtle.ConstantTimeCompare([]byte(a.password), []byte(password)) == 1
	}
	return false
}

// Login exchanges the publish password for a signed bearer token.
func (a *Authenticator) Login(password string) (string, error) {
	if !a.Enabled() {
		return "", ErrDisabled
	}
	if !a.verifyPassword(password) {
		slog.Warn("login attempt with incorrect password")
		return "", ErrInvalidCredentials
	}

	claims := jwt.RegisteredClaims{
		Subject:   "publisher",
		Issuer:    "armory",
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(TokenDuration)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// validateToken checks an issued bearer token.
func (a *Authenticator) validateToken(tokenString string) error {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.jwtSecret, nil
	})
	if err != nil {
		return err
	}
	if !token.Valid {
		return errors.New("invalid token")
	}
	return nil
}

// Middleware returns a gin middleware enforcing publish authentication. The
// bearer credential may be an issued token or the raw publish password. When
// no password is configured the middleware is a no-op.
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.Enabled() {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		if header == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			c.Abort()
			return
		}
		credential := parts[1]

		if err := a.validateToken(credential); err != nil && !a.verifyPassword(credential) {
			slog.Warn("rejected publish credential", "error", err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired credential"})
			c.Abort()
			return
		}

		c.Next()
	}
}
