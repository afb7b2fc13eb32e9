// Package fingerprint derives deterministic cache keys for chargeable
// operations.
//
// A fingerprint is a versioned, truncated SHA-256 digest of the
// operation kind and the request payload rendered as canonical JSON.
// Key order and whitespace in the payload do not matter:
//
//	a, _ := fingerprint.Request("optimize", map[string]any{"job": "go dev", "years": 3})
//	b, _ := fingerprint.Request("optimize", map[string]any{"years": 3, "job": "go dev"})
//	// a == b, format "v1:<32 hex chars>"
//
// By default fingerprints are user-independent; use WithUser to scope a
// fingerprint when the produced result embeds user-specific content.
package fingerprint
