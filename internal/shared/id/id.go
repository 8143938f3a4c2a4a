// Package id generates prefixed ULIDs for contexts and requests.
//
// IDs sort by creation time and carry a short prefix so they read well in
// logs and metrics labels: ctx_01HV... for execution contexts, req_01HV...
// for HTTP requests.
package id

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ContextID identifies an execution context
type ContextID string

// RequestID identifies an API request
type RequestID string

const (
	ContextPrefix = "ctx"
	RequestPrefix = "req"
)

// ErrMalformed is returned for strings that are not prefix_ULID.
var ErrMalformed = errors.New("malformed id")

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex // Protects entropy reader
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator with monotonic, cryptographically
// seeded entropy, so IDs minted within one millisecond still sort.
func NewGenerator() *Generator {
	return NewGeneratorWithEntropy(ulid.Monotonic(rand.Reader, 0))
}

// NewGeneratorWithEntropy creates a generator with custom entropy source
// Useful for testing with deterministic entropy
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{
		entropy: entropy,
	}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewContextID generates a context ID
func (g *Generator) NewContextID() ContextID {
	return ContextID(g.GenerateWithPrefix(ContextPrefix))
}

// NewRequestID generates a request ID
func (g *Generator) NewRequestID() RequestID {
	return RequestID(g.GenerateWithPrefix(RequestPrefix))
}

// NewContextID generates a context ID from the default generator
func NewContextID() ContextID {
	return Default().NewContextID()
}

// NewRequestID generates a request ID from the default generator
func NewRequestID() RequestID {
	return Default().NewRequestID()
}

func (id ContextID) String() string { return string(id) }
func (id RequestID) String() string { return string(id) }

// Valid reports whether id is a well formed context ID
func (id ContextID) Valid() bool {
	_, err := ParsePrefixed(string(id), ContextPrefix)
	return err == nil
}

// IsValid checks if an ID string is a valid ULID
func IsValid(id string) bool {
	_, err := ulid.Parse(id)
	return err == nil
}

// ParsePrefixed splits "prefix_ULID" and checks both halves.
func ParsePrefixed(s, prefix string) (ulid.ULID, error) {
	rest, ok := strings.CutPrefix(s, prefix+"_")
	if !ok {
		return ulid.ULID{}, fmt.Errorf("%w: %q lacks prefix %q", ErrMalformed, s, prefix)
	}
	u, err := ulid.Parse(rest)
	if err != nil {
		return ulid.ULID{}, fmt.Errorf("%w: %q: %v", ErrMalformed, s, err)
	}
	return u, nil
}

// Timestamp extracts the creation time from a prefixed or bare ID
func Timestamp(s string) (time.Time, error) {
	if i := strings.LastIndexByte(s, '_'); i >= 0 {
		s = s[i+1:]
	}
	parsed, err := ulid.Parse(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
