package signing

import (
	"crypto/sha1" //nolint:gosec // HmacSHA1 is still issued by older sessions
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"sort"
	"strings"

	"golang.org/x/crypto/sha3"
)

// DefaultAlgorithm is used when a session does not name one.
const DefaultAlgorithm = "HmacSHA256"

// algorithms maps the Mac names sessions are issued with to hash constructors.
var algorithms = map[string]func() hash.Hash{
	"HmacSHA1":     sha1.New,
	"HmacSHA224":   sha256.New224,
	"HmacSHA256":   sha256.New,
	"HmacSHA384":   sha512.New384,
	"HmacSHA512":   sha512.New,
	"HmacSHA3-256": sha3.New256,
	"HmacSHA3-512": sha3.New512,
}

func lookupAlgorithm(name string) (func() hash.Hash, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultAlgorithm
	}
	if h, ok := algorithms[name]; ok {
		return h, nil
	}
	// Mac names are matched case-insensitively by most providers.
	for known, h := range algorithms {
		if strings.EqualFold(known, name) {
			return h, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, name)
}

// Algorithms lists the supported algorithm names, sorted.
func Algorithms() []string {
	names := make([]string, 0, len(algorithms))
	for name := range algorithms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
