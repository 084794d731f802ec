// Package id provides centralized ID generation for the application manager.
//
// This package offers type-safe ULID generation with:
//   - Lexicographic sortability: launch items sort by creation time
//   - Prefixed types: Type-specific prefixes for debugging (launch_*, close_*)
//   - Type safety: Separate types prevent ID misuse
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// LaunchID identifies one in-flight launch request
type LaunchID string

// CloseID identifies one in-flight close request
type CloseID string

const (
	LaunchPrefix  = "launch"
	ClosePrefix   = "close"
	RequestPrefix = "req"
)

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

// NewGenerator creates a new ULID generator. Entropy is monotonic so that
// IDs minted within the same millisecond still sort by creation order.
func NewGenerator() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
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

// GenerateString creates a new ULID as a string
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.GenerateString())
}

// NewLaunchID generates a new launch item ID
func NewLaunchID() LaunchID {
	return LaunchID(Default().GenerateWithPrefix(LaunchPrefix))
}

// NewCloseID generates a new close item ID
func NewCloseID() CloseID {
	return CloseID(Default().GenerateWithPrefix(ClosePrefix))
}

// NewRequestID generates an ID for one inbound API request, used for
// trace correlation.
func NewRequestID() string {
	return Default().GenerateWithPrefix(RequestPrefix)
}

func (id LaunchID) String() string { return string(id) }
func (id CloseID) String() string  { return string(id) }

// IsValid checks if an ID string is a valid ULID
func IsValid(id string) bool {
	_, err := ulid.Parse(id)
	return err == nil
}
