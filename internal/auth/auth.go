package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("sync module access required")
)

// Authorizer answers whether the caller may run the sync module.
type Authorizer interface {
	AuthorizeSync(r *http.Request) error
}

// StaticTokens grants sync access to callers presenting one of the configured
// bearer tokens. With no tokens every request is refused.
type StaticTokens struct {
	tokens [][]byte
}

func NewStaticTokens(tokens ...string) *StaticTokens {
	a := &StaticTokens{}
	for _, t := range tokens {
		if t = strings.TrimSpace(t); t != "" {
			a.tokens = append(a.tokens, []byte(t))
		}
	}
	return a
}

func (a *StaticTokens) AuthorizeSync(r *http.Request) error {
	tok, ok := BearerToken(r)
	if !ok {
		return ErrUnauthorized
	}
	for _, t := range a.tokens {
		if subtle.ConstantTimeCompare(t, []byte(tok)) == 1 {
			return nil
		}
	}
	return ErrForbidden
}

// AllowAll is for local development only.
type AllowAll struct{}

func (AllowAll) AuthorizeSync(*http.Request) error { return nil }

func BearerToken(r *http.Request) (string, bool) {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(h[7:])
	return tok, tok != ""
}
