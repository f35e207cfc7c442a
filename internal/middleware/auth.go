// Package middleware provides HTTP middleware for the API server.
package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ContextKey is a type for context keys.
type ContextKey string

const (
	// SubjectKey is the context key for the authenticated caller.
	SubjectKey ContextKey = "subject"
)

// Claims represents JWT claims accepted by the API gate.
type Claims struct {
	jwt.RegisteredClaims
}

// APIKey gates a route behind a bearer credential: the static key, or an
// HS256 JWT when jwtSecret is set. With neither configured the gate is open.
// A missing credential is 401, a wrong one 403.
func APIKey(apiKey, jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if apiKey == "" && jwtSecret == "" {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided, ok := bearerToken(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "missing API key")
				return
			}

			if apiKey != "" && subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) == 1 {
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), SubjectKey, "api-key")))
				return
			}

			if jwtSecret != "" {
				if claims, err := parseJWT(provided, jwtSecret); err == nil {
					next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), SubjectKey, claims.Subject)))
					return
				}
			}

			writeError(w, http.StatusForbidden, "bad API key")
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

func parseJWT(tokenString, secret string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// GetSubject gets the authenticated caller from context.
func GetSubject(ctx context.Context) string {
	if v, ok := ctx.Value(SubjectKey).(string); ok {
		return v
	}
	return ""
}
