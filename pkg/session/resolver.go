package session

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// HeaderName carries the session token for non-browser API clients.
const HeaderName = "X-Session-ID"

// Resolver derives a session token from an inbound request. The cookie set
// at session creation takes priority over the header; if neither source
// yields a value a fresh token is minted. Pure derivation: never fails and
// never touches storage.
type Resolver struct {
	cookieName string
	logger     zerolog.Logger
}

// NewResolver creates a resolver reading the given session cookie.
func NewResolver(cookieName string, logger zerolog.Logger) *Resolver {
	return &Resolver{
		cookieName: cookieName,
		logger:     logger.With().Str("component", "session_resolver").Logger(),
	}
}

// ResolveToken extracts the session token from r, minting a new one when
// the request carries none. minted reports whether the token is fresh.
func (r *Resolver) ResolveToken(req *http.Request) (token string, minted bool) {
	if cookie, err := req.Cookie(r.cookieName); err == nil && cookie.Value != "" {
		r.logger.Debug().Str("token", cookie.Value).Msg("Session token from cookie")
		return cookie.Value, false
	}

	if header := req.Header.Get(HeaderName); header != "" {
		r.logger.Debug().Str("token", header).Msg("Session token from header")
		return header, false
	}

	token = uuid.NewString()
	r.logger.Debug().Str("token", token).Msg("Minted new session token")
	return token, true
}
