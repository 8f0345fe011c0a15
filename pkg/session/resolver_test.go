package session

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testResolver() *Resolver {
	logger := zerolog.New(os.Stdout).Level(zerolog.Disabled)
	return NewResolver("llmscope_session_id", logger)
}

func TestResolveToken_FromCookie(t *testing.T) {
	r := testResolver()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "llmscope_session_id", Value: "cookie-token"})

	token, minted := r.ResolveToken(req)
	assert.Equal(t, "cookie-token", token)
	assert.False(t, minted)
}

func TestResolveToken_FromHeader(t *testing.T) {
	r := testResolver()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderName, "header-token")

	token, minted := r.ResolveToken(req)
	assert.Equal(t, "header-token", token)
	assert.False(t, minted)
}

func TestResolveToken_CookieBeatsHeader(t *testing.T) {
	r := testResolver()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "llmscope_session_id", Value: "cookie-token"})
	req.Header.Set(HeaderName, "header-token")

	token, minted := r.ResolveToken(req)
	assert.Equal(t, "cookie-token", token)
	assert.False(t, minted)
}

func TestResolveToken_Minted(t *testing.T) {
	r := testResolver()

	req := httptest.NewRequest(http.MethodGet, "/", nil)

	token, minted := r.ResolveToken(req)
	assert.True(t, minted)

	_, err := uuid.Parse(token)
	require.NoError(t, err)

	// A second bare request mints a distinct token
	other, _ := r.ResolveToken(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEqual(t, token, other)
}
