// ABOUTME: Anonymous session tokens signed with HMAC and the middleware that checks them.
// ABOUTME: The token subject is the user id every write is attributed to.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
)

// sessionClaims is the JWT payload of a session token.
type sessionClaims struct {
	Anonymous bool `json:"anonymous"`
	jwt.StandardClaims
}

type ctxKey int

const sessionKey ctxKey = iota

const tokenIssuer = "laulau"

// issueToken creates a new anonymous user and signs a token for it.
func (s *Server) issueToken() (userID, token string, err error) {
	userID = uuid.New().String()
	now := time.Now()
	claims := sessionClaims{
		Anonymous: true,
		StandardClaims: jwt.StandardClaims{
			Subject:   userID,
			Issuer:    tokenIssuer,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(s.cfg.TokenTTL).Unix(),
		},
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.JWTSecret)
	if err != nil {
		return "", "", fmt.Errorf("failed to sign token: %w", err)
	}
	return userID, token, nil
}

// parseToken validates a signed token and returns its claims.
func (s *Server) parseToken(raw string) (*sessionClaims, error) {
	token, err := jwt.ParseWithClaims(raw, &sessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.cfg.JWTSecret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*sessionClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// requireSession rejects requests without a valid bearer token.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		claims, err := s.parseToken(raw)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid session token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey, claims)))
	})
}

// session returns the claims placed by requireSession.
func session(r *http.Request) *sessionClaims {
	claims, _ := r.Context().Value(sessionKey).(*sessionClaims)
	return claims
}
