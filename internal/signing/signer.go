package signing

import (
	"crypto/hmac"
	"encoding/hex"
	"fmt"
	"hash"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TimestampLayout is ISO-8601 local date-time, the format of the X-Once
// header. The fraction drops trailing zeros and is omitted when zero, as the
// registry's own ISO_LOCAL_DATE_TIME formatter prints it.
const TimestampLayout = "2006-01-02T15:04:05.999999999"

const (
	HeaderOnce   = "X-Once"
	HeaderDigest = "X-Digest"
	tokenCookie  = "access_token"
)

// methods are the request methods a signature may bind. None is a prefix of
// another, so the method/body boundary of the canonical string is fixed.
var methods = map[string]struct{}{
	http.MethodGet:     {},
	http.MethodHead:    {},
	http.MethodPost:    {},
	http.MethodPut:     {},
	http.MethodPatch:   {},
	http.MethodDelete:  {},
	http.MethodOptions: {},
}

// Signer computes request digests for one session.
type Signer struct {
	sc      Context
	newHash func() hash.Hash
	clock   func() time.Time
}

type Option func(*Signer)

// WithClock replaces time.Now for timestamps and expiry checks.
func WithClock(clock func() time.Time) Option {
	return func(s *Signer) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewSigner validates sc and returns a Signer bound to it.
func NewSigner(sc Context, opts ...Option) (*Signer, error) {
	if sc.Secret == "" {
		return nil, ErrInvalidKey
	}
	h, err := lookupAlgorithm(sc.Algorithm)
	if err != nil {
		return nil, err
	}
	s := &Signer{sc: sc, newHash: h, clock: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Sign returns the lowercase hex HMAC of method + trim(body) + uri + timestamp.
// It is deterministic for a given session.
func (s *Signer) Sign(method, uri, body, timestamp string) (string, error) {
	if _, ok := methods[method]; !ok {
		return "", fmt.Errorf("%w: method %q", ErrInvalidInput, method)
	}
	if err := validateURI(uri); err != nil {
		return "", err
	}
	if _, err := time.Parse(TimestampLayout, timestamp); err != nil {
		return "", fmt.Errorf("%w: timestamp %q", ErrInvalidInput, timestamp)
	}

	mac := hmac.New(s.newHash, []byte(s.sc.Secret))
	mac.Write([]byte(method))
	mac.Write([]byte(strings.TrimSpace(body)))
	mac.Write([]byte(uri))
	mac.Write([]byte(timestamp))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Apply signs req with a fresh timestamp and sets the token cookie, X-Once
// and X-Digest headers. body is the text covered by the digest; multipart
// uploads pass "". On error req is left unsigned and must not be sent.
func (s *Signer) Apply(req *http.Request, body string) error {
	now := s.clock()
	if s.sc.Expired(now) {
		return ErrSessionExpired
	}
	timestamp := now.Format(TimestampLayout)
	digest, err := s.Sign(req.Method, req.URL.String(), body, timestamp)
	if err != nil {
		return err
	}
	req.Header.Set("Cookie", tokenCookie+"="+s.sc.Token)
	req.Header.Set(HeaderOnce, timestamp)
	req.Header.Set(HeaderDigest, digest)
	return nil
}

func validateURI(uri string) error {
	u, err := url.Parse(uri)
	if err != nil || !u.IsAbs() || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: uri %q", ErrInvalidInput, uri)
	}
	return nil
}
