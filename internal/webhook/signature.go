package webhook

import (
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// HeaderSignature carries the scheduler's signed JWT.
const HeaderSignature = "Upstash-Signature"

const defaultIssuer = "Upstash"

var ErrInvalidSignature = errors.New("invalid webhook signature")

type Claims struct {
	Body string `json:"body"`
	jwt.RegisteredClaims
}

// Verifier checks scheduler requests signed with HS256. Either the current or
// the next signing key is accepted so keys can be rotated without downtime.
type Verifier struct {
	keys   [][]byte
	issuer string
	leeway time.Duration
	now    func() time.Time
}

func NewVerifier(currentKey, nextKey string) *Verifier {
	v := &Verifier{issuer: defaultIssuer, leeway: 5 * time.Second, now: time.Now}
	for _, k := range []string{currentKey, nextKey} {
		if k = strings.TrimSpace(k); k != "" {
			v.keys = append(v.keys, []byte(k))
		}
	}
	return v
}

func (v *Verifier) WithIssuer(iss string) *Verifier {
	if iss != "" {
		v.issuer = iss
	}
	return v
}

func (v *Verifier) WithClock(now func() time.Time) *Verifier {
	if now != nil {
		v.now = now
	}
	return v
}

// Enabled reports whether any signing key is configured. Without keys every
// request is accepted.
func (v *Verifier) Enabled() bool {
	return v != nil && len(v.keys) > 0
}

// Verify checks the token against the request URL and raw body.
func (v *Verifier) Verify(token, url string, body []byte) error {
	if !v.Enabled() {
		return nil
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.Wrap(ErrInvalidSignature, "missing "+HeaderSignature)
	}

	var lastErr error
	for _, key := range v.keys {
		err := v.verifyWithKey(token, url, body, key)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return errors.Wrap(ErrInvalidSignature, lastErr.Error())
}

func (v *Verifier) verifyWithKey(token, url string, body []byte, key []byte) error {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithSubject(url),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return err
	}

	if strings.TrimRight(claims.Body, "=") != BodyHash(body) {
		return errors.New("body hash mismatch")
	}
	return nil
}

// BodyHash is base64url(sha256(body)) without padding.
func BodyHash(body []byte) string {
	sum := sha256.Sum256(body)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// Sign builds a token for url and body. Used by tests and local tooling that
// calls the cron route directly.
func Sign(key, issuer, url string, body []byte, now time.Time, ttl time.Duration) (string, error) {
	if issuer == "" {
		issuer = defaultIssuer
	}
	claims := Claims{
		Body: BodyHash(body),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   url,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	if err != nil {
		return "", errors.Wrap(err, "sign webhook token")
	}
	return s, nil
}
