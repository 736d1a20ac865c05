// Package auth validates session tokens and scopes every request to the
// domain carried in the token's claims.
package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"workpal/internal/config"
	"workpal/internal/logger"
	"workpal/internal/service/session"
)

type contextKey string

const DomainContextKey contextKey = "domain"

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// sendError sends a standardized JSON error response
func sendError(w http.ResponseWriter, status int, message string, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	errResp := ErrorResponse{
		Code:    status,
		Message: message,
	}
	if err != nil {
		errResp.Error = err.Error()
	}
	json.NewEncoder(w).Encode(errResp)
}

// ValidateToken parses and verifies a session token
func ValidateToken(cfg config.SessionConfig, tokenString string) (*session.Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &session.Claims{}, func(token *jwt.Token) (interface{}, error) {
		return cfg.Secret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*session.Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrSignatureInvalid
}

// Middleware rejects requests without a valid bearer token and stores the
// token's domain in the request context
func Middleware(cfg config.SessionConfig, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			sendError(w, http.StatusUnauthorized, "Missing authorization header", nil)
			return
		}

		bearerToken := strings.Split(authHeader, " ")
		if len(bearerToken) != 2 || bearerToken[0] != "Bearer" {
			sendError(w, http.StatusUnauthorized, "Invalid authorization header format", nil)
			return
		}

		claims, err := ValidateToken(cfg, bearerToken[1])
		if err != nil {
			logger.Log.WithError(err).Debug("Rejected session token")
			sendError(w, http.StatusUnauthorized, "Invalid token", err)
			return
		}
		if claims.DomainID == "" {
			sendError(w, http.StatusUnauthorized, "Token carries no domain", nil)
			return
		}

		ctx := context.WithValue(r.Context(), DomainContextKey, claims.DomainID)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// DomainFromContext returns the domain injected by Middleware
func DomainFromContext(ctx context.Context) string {
	domain, _ := ctx.Value(DomainContextKey).(string)
	return domain
}
