// Package keys derives content keys and maps them onto the storage tree.
//
// Keys are the decimal form of a 64-bit XXH64 digest. The hash is fast and
// well distributed but not collision resistant; two different payloads may
// in principle share a key. Client-supplied keys are only checked for their
// character class, never re-hashed.
package keys

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// MaxLength is the length of the largest uint64 in decimal.
const MaxLength = 20

var (
	ErrEmptyKey   = errors.New("key cannot be empty")
	ErrInvalidKey = errors.New("key contains invalid characters")
)

// Derive returns the content key for b. Identical input always yields the
// identical key.
func Derive(b []byte) string {
	return strconv.FormatUint(xxhash.Sum64(b), 10)
}

// IsKey reports whether s is a well-formed key.
func IsKey(s string) bool {
	return ValidateUserKey(s) == nil
}

// ValidateUserKey checks a key received from a client. Only ASCII digits are
// accepted, which rules out separators, dots and every other way of
// addressing something outside the storage root.
func ValidateUserKey(raw string) error {
	if raw == "" {
		return ErrEmptyKey
	}
	if len(raw) > MaxLength {
		return fmt.Errorf("key longer than %d characters: %w", MaxLength, ErrInvalidKey)
	}
	for i := 0; i < len(raw); i++ {
		if raw[i] < '0' || raw[i] > '9' {
			return fmt.Errorf("invalid character %q at position %d: %w", raw[i], i, ErrInvalidKey)
		}
	}
	return nil
}

// Location is where a key lives on disk.
type Location struct {
	Key string
	Dir string
}

// File returns the path of name inside the key directory.
func (l Location) File(name string) string {
	return filepath.Join(l.Dir, name)
}

// Resolver joins keys onto a storage root. The zero value resolves relative
// to the working directory.
type Resolver struct {
	root string
}

// NewResolver returns a Resolver rooted at root. An empty root means the
// process working directory.
func NewResolver(root string) Resolver {
	if root != "" {
		root = filepath.Clean(root)
	}
	return Resolver{root: root}
}

// Root returns the directory that holds key directories.
func (r Resolver) Root() string {
	if r.root == "" {
		return "."
	}
	return r.root
}

// Resolve maps key to its location. The key is validated first so no
// filesystem path is ever built from an unchecked string.
func (r Resolver) Resolve(key string) (Location, error) {
	if err := ValidateUserKey(key); err != nil {
		return Location{}, err
	}
	return Location{Key: key, Dir: filepath.Join(r.root, key)}, nil
}

// StagingDir holds payloads that are still being written. Its name is not a
// key, so sweeps and reads never see it.
func (r Resolver) StagingDir() string {
	return filepath.Join(r.Root(), ".incoming")
}
