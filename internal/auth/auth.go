// Package auth is the "is the caller authorized" gate in front of the HTTP
// API. Tokens are HS256 JWTs whose "sub" claim names the user, the same
// tokens the management backend issues at login.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrShortSecret  = errors.New("secret must be at least 32 characters")
)

// Principal is the authenticated caller.
type Principal struct {
	Subject string
}

// Gate decides whether a request may proceed.
type Gate interface {
	Authorize(r *http.Request) (Principal, error)
}

// AllowAll admits every request; used when auth is disabled.
type AllowAll struct{}

func (AllowAll) Authorize(*http.Request) (Principal, error) {
	return Principal{Subject: "anonymous"}, nil
}

type JWTGate struct {
	secret []byte
	now    func() time.Time
}

func NewJWTGate(secret string) (*JWTGate, error) {
	if len(secret) < 32 {
		return nil, ErrShortSecret
	}
	return &JWTGate{secret: []byte(secret), now: time.Now}, nil
}

// Authorize validates the bearer token of r. Browsers cannot set headers on
// websocket upgrades, so the access_token query parameter is accepted too.
func (g *JWTGate) Authorize(r *http.Request) (Principal, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		token = r.URL.Query().Get("access_token")
	}
	if token == "" {
		return Principal{}, fmt.Errorf("%w: missing bearer token", ErrUnauthorized)
	}
	return g.Validate(token)
}

func (g *JWTGate) Validate(tokenString string) (Principal, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return g.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(g.now))
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if !token.Valid {
		return Principal{}, ErrUnauthorized
	}
	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return Principal{}, fmt.Errorf("%w: missing subject", ErrUnauthorized)
	}
	return Principal{Subject: sub}, nil
}

// Issue signs a token for subject valid for ttl.
func (g *JWTGate) Issue(subject string, ttl time.Duration) (string, error) {
	now := g.now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return s, nil
}

type ctxKey struct{}

// FromContext returns the principal the middleware stored on the request.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}

// Middleware rejects requests the gate refuses with 401. onReject, when
// non-nil, is called for every rejection.
func Middleware(g Gate, log *zap.Logger, onReject func()) func(http.Handler) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := g.Authorize(r)
			if err != nil {
				log.Debug("request rejected", zap.String("path", r.URL.Path), zap.Error(err))
				if onReject != nil {
					onReject()
				}
				w.Header().Set("WWW-Authenticate", "Bearer")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"detail":"Could not validate credentials"}`))
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, p)))
		})
	}
}
