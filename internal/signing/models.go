package signing

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoSession            = errors.New("no signing session installed")
	ErrSessionExpired       = errors.New("signing session expired")
	ErrUnsupportedAlgorithm = errors.New("unsupported signing algorithm")
	ErrInvalidKey           = errors.New("invalid signing key")
	ErrInvalidInput         = errors.New("invalid signing input")
)

// Context is the credential material issued by the external auth flow for
// one operator session. It lives in memory only.
type Context struct {
	Token     string
	Secret    string
	Algorithm string
	// Expiry is zero when the issuer gave none and the token carries no exp.
	Expiry time.Time
}

// Expired reports whether the context is past its expiry at now.
func (c Context) Expired(now time.Time) bool {
	return !c.Expiry.IsZero() && !now.Before(c.Expiry)
}

// Validate checks that the context can sign requests.
func (c Context) Validate() error {
	if strings.TrimSpace(c.Token) == "" {
		return ErrNoSession
	}
	if c.Secret == "" {
		return ErrInvalidKey
	}
	if _, err := lookupAlgorithm(c.Algorithm); err != nil {
		return err
	}
	return nil
}

// WithTokenExpiry fills a missing Expiry from the exp claim of a JWT-shaped
// token. The token is not verified: the secret that signed it belongs to the
// remote service, the claim is only used to stop signing early.
func (c Context) WithTokenExpiry() Context {
	if !c.Expiry.IsZero() {
		return c
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(c.Token, &claims); err != nil {
		return c
	}
	if claims.ExpiresAt != nil {
		c.Expiry = claims.ExpiresAt.Time
	}
	return c
}
