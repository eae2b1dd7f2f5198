package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123456789abcdef"

func newGate(t *testing.T) *JWTGate {
	t.Helper()
	g, err := NewJWTGate(secret)
	require.NoError(t, err)
	return g
}

func TestNewJWTGateRejectsShortSecret(t *testing.T) {
	_, err := NewJWTGate("short")
	assert.ErrorIs(t, err, ErrShortSecret)
}

func TestIssueAndValidate(t *testing.T) {
	g := newGate(t)
	tok, err := g.Issue("admin", time.Hour)
	require.NoError(t, err)

	p, err := g.Validate(tok)
	require.NoError(t, err)
	assert.Equal(t, "admin", p.Subject)
}

func TestValidateRejects(t *testing.T) {
	g := newGate(t)

	t.Run("expired", func(t *testing.T) {
		tok, err := g.Issue("admin", -time.Minute)
		require.NoError(t, err)
		_, err = g.Validate(tok)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, err := NewJWTGate("ffffffffffffffffffffffffffffffff")
		require.NoError(t, err)
		tok, err := other.Issue("admin", time.Hour)
		require.NoError(t, err)
		_, err = g.Validate(tok)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("none algorithm", func(t *testing.T) {
		tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "admin"}).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = g.Validate(tok)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("missing subject", func(t *testing.T) {
		tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"exp": time.Now().Add(time.Hour).Unix(),
		}).SignedString([]byte(secret))
		require.NoError(t, err)
		_, err = g.Validate(tok)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})
}

func TestMiddleware(t *testing.T) {
	g := newGate(t)
	var rejected int
	var seen string
	h := Middleware(g, nil, func() { rejected++ })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := FromContext(r.Context())
		require.True(t, ok)
		seen = p.Subject
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/topology", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
	assert.JSONEq(t, `{"detail":"Could not validate credentials"}`, rec.Body.String())
	assert.Equal(t, 1, rejected)

	tok, err := g.Issue("noc", time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/topology", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "noc", seen)
	assert.Equal(t, 1, rejected)
}

func TestAllowAll(t *testing.T) {
	p, err := AllowAll{}.Authorize(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, "anonymous", p.Subject)
}

func TestAuthorizeAcceptsQueryToken(t *testing.T) {
	g := newGate(t)
	tok, err := g.Issue("canvas", time.Hour)
	require.NoError(t, err)

	p, err := g.Authorize(httptest.NewRequest(http.MethodGet, "/api/topology/ws?access_token="+tok, nil))
	require.NoError(t, err)
	assert.Equal(t, "canvas", p.Subject)

	_, err = g.Authorize(httptest.NewRequest(http.MethodGet, "/api/topology/ws?access_token=garbage", nil))
	assert.ErrorIs(t, err, ErrUnauthorized)
}
