// Package identity issues collision-free internal identifiers for forest nodes.
package identity

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxAttempts bounds the retries of a single allocation. It only guards
// against a pathological entropy source; collisions are not expected.
const DefaultMaxAttempts = 10000

// idPrefix marks identifiers minted by an Allocator.
const idPrefix = "n"

// suffixLen is the number of entropy characters kept per identifier.
const suffixLen = 8

// ErrAllocationExhausted is returned when no free identifier was found within
// the retry bound.
var ErrAllocationExhausted = errors.New("identity allocation exhausted")

// EntropySource returns a random suffix for a candidate identifier.
type EntropySource func() string

// Clock returns the current time.
type Clock func() time.Time

// Allocator mints internal identifiers from a strictly increasing counter, a
// wall-clock reading and a random suffix. Every issued identifier is retained
// for the allocator's lifetime, so none is ever handed out twice.
// Not safe for concurrent use.
type Allocator struct {
	issued      map[string]struct{}
	entropy     EntropySource
	clock       Clock
	counter     uint64
	maxAttempts int
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithEntropy replaces the random suffix source.
func WithEntropy(source EntropySource) Option {
	return func(a *Allocator) {
		a.entropy = source
	}
}

// WithClock replaces the wall clock.
func WithClock(clock Clock) Option {
	return func(a *Allocator) {
		a.clock = clock
	}
}

// WithMaxAttempts overrides DefaultMaxAttempts. Non-positive values are ignored.
func WithMaxAttempts(attempts int) Option {
	return func(a *Allocator) {
		if attempts > 0 {
			a.maxAttempts = attempts
		}
	}
}

// NewAllocator creates an Allocator with the given options.
func NewAllocator(opts ...Option) *Allocator {
	alloc := &Allocator{
		issued:      make(map[string]struct{}),
		entropy:     randomSuffix,
		clock:       time.Now,
		maxAttempts: DefaultMaxAttempts,
	}

	for _, opt := range opts {
		opt(alloc)
	}

	return alloc
}

// Allocate returns an identifier distinct from every identifier issued so far.
func (a *Allocator) Allocate() (string, error) {
	for range a.maxAttempts {
		a.counter++

		candidate := a.candidate()
		if _, taken := a.issued[candidate]; taken {
			continue
		}

		a.issued[candidate] = struct{}{}

		return candidate, nil
	}

	return "", fmt.Errorf("%w: %d attempts", ErrAllocationExhausted, a.maxAttempts)
}

// Reserve records an externally supplied identifier as issued. It returns
// false when the identifier is empty or was already issued.
func (a *Allocator) Reserve(id string) bool {
	if id == "" {
		return false
	}

	if _, taken := a.issued[id]; taken {
		return false
	}

	a.issued[id] = struct{}{}

	return true
}

// Issued reports whether id was ever handed out or reserved.
func (a *Allocator) Issued(id string) bool {
	_, taken := a.issued[id]

	return taken
}

// Len returns the number of identifiers issued so far.
func (a *Allocator) Len() int {
	return len(a.issued)
}

func (a *Allocator) candidate() string {
	var buf strings.Builder

	buf.WriteString(idPrefix)
	buf.WriteString(strconv.FormatUint(a.counter, 36))
	buf.WriteByte('-')
	buf.WriteString(strconv.FormatInt(a.clock().UnixMilli(), 36))
	buf.WriteByte('-')
	buf.WriteString(a.entropy())

	return buf.String()
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:suffixLen]
}
