package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	fingerprintVersion = "v1:"
	// fingerprintHashLen uses 16 bytes (128 bits) of the SHA-256 digest.
	// That is plenty for cache keying and halves the key size.
	fingerprintHashLen = 16
	// fingerprintTotalLen is the total length of a fingerprint string:
	// 3 bytes ("v1:") + 32 bytes (hex encoding of 16 bytes) = 35 bytes.
	fingerprintTotalLen = 35
)

// options controls which components enter the fingerprint.
type options struct {
	userID string
}

// Option customizes fingerprint generation.
type Option func(*options)

// WithUser scopes the fingerprint to a single user. By default
// fingerprints are user-independent so identical requests from
// different users share one cached result; scope them when results
// embed user-specific content.
func WithUser(userID string) Option {
	return func(o *options) {
		o.userID = userID
	}
}

// Request creates a fingerprint for a chargeable operation from its kind
// and input payload. The payload is normalized to canonical JSON (sorted
// object keys, no insignificant whitespace) before hashing, so two
// requests that differ only in formatting or key order produce the same
// fingerprint. Returns a version-prefixed string in format "v1:hash".
func Request(operation string, payload any, opts ...Option) (string, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	normalized, err := normalize(payload)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnhashablePayload, err)
	}

	components := []string{operation, normalized}
	if o.userID != "" {
		components = append([]string{o.userID}, components...)
	}

	// Join with a delimiter so ["ab","c"] and ["a","bc"] cannot collide.
	combined := strings.Join(components, "|")
	hash := sha256.Sum256([]byte(combined))

	return fingerprintVersion + hex.EncodeToString(hash[:fingerprintHashLen]), nil
}

// Valid reports whether s has the shape of a generated fingerprint.
func Valid(s string) bool {
	return strings.HasPrefix(s, fingerprintVersion) && len(s) == fingerprintTotalLen
}

// normalize renders payload as canonical JSON. Round-tripping through
// an untyped value makes encoding/json sort object keys and collapse
// formatting regardless of the payload's original type.
func normalize(payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return "", err
	}

	canonical, err := json.Marshal(generic)
	if err != nil {
		return "", err
	}
	return string(canonical), nil
}
