package webhook

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const cronURL = "https://nsl.example.com/api/cron/portpro-poll"

var (
	body = []byte(`{"skip":0}`)
	now  = time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
)

func newVerifier(cur, next string) *Verifier {
	return NewVerifier(cur, next).WithClock(func() time.Time { return now })
}

func TestVerify_CurrentAndNextKey(t *testing.T) {
	v := newVerifier("current-key", "next-key")

	tok, err := Sign("current-key", "", cronURL, body, now, 5*time.Minute)
	require.NoError(t, err)
	require.NoError(t, v.Verify(tok, cronURL, body))

	tok, err = Sign("next-key", "", cronURL, body, now, 5*time.Minute)
	require.NoError(t, err)
	require.NoError(t, v.Verify(tok, cronURL, body))
}

func TestVerify_Rejects(t *testing.T) {
	v := newVerifier("current-key", "")
	good, err := Sign("current-key", "", cronURL, body, now, 5*time.Minute)
	require.NoError(t, err)

	cases := map[string]func() (string, string, []byte){
		"tampered body": func() (string, string, []byte) { return good, cronURL, []byte(`{"skip":100}`) },
		"other url":     func() (string, string, []byte) { return good, "https://evil.example.com/", body },
		"missing token": func() (string, string, []byte) { return "", cronURL, body },
		"garbage":       func() (string, string, []byte) { return "not.a.jwt", cronURL, body },
		"wrong key": func() (string, string, []byte) {
			tok, _ := Sign("other-key", "", cronURL, body, now, 5*time.Minute)
			return tok, cronURL, body
		},
		"wrong issuer": func() (string, string, []byte) {
			tok, _ := Sign("current-key", "someone", cronURL, body, now, 5*time.Minute)
			return tok, cronURL, body
		},
		"expired": func() (string, string, []byte) {
			tok, _ := Sign("current-key", "", cronURL, body, now.Add(-time.Hour), 5*time.Minute)
			return tok, cronURL, body
		},
		"not yet valid": func() (string, string, []byte) {
			tok, _ := Sign("current-key", "", cronURL, body, now.Add(time.Hour), 5*time.Minute)
			return tok, cronURL, body
		},
	}
	for name, mk := range cases {
		t.Run(name, func(t *testing.T) {
			tok, url, b := mk()
			require.ErrorIs(t, v.Verify(tok, url, b), ErrInvalidSignature)
		})
	}
}

func TestVerify_RejectsOtherAlgorithm(t *testing.T) {
	v := newVerifier("current-key", "")
	claims := Claims{
		Body: BodyHash(body),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "Upstash",
			Subject:   cronURL,
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("current-key"))
	require.NoError(t, err)
	require.ErrorIs(t, v.Verify(tok, cronURL, body), ErrInvalidSignature)
}

func TestVerify_PaddedBodyHash(t *testing.T) {
	v := newVerifier("current-key", "")
	claims := Claims{
		Body: BodyHash(body) + "=",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "Upstash",
			Subject:   cronURL,
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("current-key"))
	require.NoError(t, err)
	require.NoError(t, v.Verify(tok, cronURL, body))
}

func TestVerify_NoKeysAcceptsAnything(t *testing.T) {
	v := NewVerifier(" ", "")
	require.False(t, v.Enabled())
	require.NoError(t, v.Verify("", cronURL, body))
}
