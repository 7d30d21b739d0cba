// Package slug is the slug grammar shared by the resolver and the store:
// NFC-normalize, lowercase, reject empty/./../nullbyte/bad-grammar. It has
// no dependency on the store so both sides can canonicalize without an
// import cycle — the resolver canonicalizes path segments on the way in,
// the store canonicalizes anything it persists as a unique slug itself
// (repo names, namespace names, usernames) regardless of which caller
// reached it.
package slug

import (
	"errors"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ErrInvalid is returned when a segment fails the slug grammar.
var ErrInvalid = errors.New("slug: invalid")

var pattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,62}$`)

// Canonicalize normalizes a single path segment, or rejects it with
// ErrInvalid. It operates on one segment, not a full path.
func Canonicalize(segment string) (string, error) {
	normalized := norm.NFC.String(segment)
	lowered := strings.ToLower(normalized)
	if lowered == "" || lowered == "." || lowered == ".." {
		return "", ErrInvalid
	}
	if strings.ContainsRune(lowered, 0) {
		return "", ErrInvalid
	}
	if !pattern.MatchString(lowered) {
		return "", ErrInvalid
	}
	return lowered, nil
}
