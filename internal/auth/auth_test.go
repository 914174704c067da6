package auth

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStaticTokens_AuthorizeSync(t *testing.T) {
	a := NewStaticTokens("ops-token", " ", "cron-token")

	cases := []struct {
		name   string
		header string
		want   error
	}{
		{"ok", "Bearer ops-token", nil},
		{"second token, lowercase scheme", "bearer cron-token", nil},
		{"no header", "", ErrUnauthorized},
		{"basic scheme", "Basic b3BzOnB3", ErrUnauthorized},
		{"empty bearer", "Bearer   ", ErrUnauthorized},
		{"unknown token", "Bearer nope", ErrForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/api/portpro/sync", nil)
			if tc.header != "" {
				r.Header.Set("Authorization", tc.header)
			}
			err := a.AuthorizeSync(r)
			if tc.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestStaticTokens_NoTokensRefuses(t *testing.T) {
	r := httptest.NewRequest("POST", "/", nil)
	r.Header.Set("Authorization", "Bearer anything")
	require.ErrorIs(t, NewStaticTokens().AuthorizeSync(r), ErrForbidden)
	require.NoError(t, AllowAll{}.AuthorizeSync(r))
}
