// Package credential issues, hashes, verifies, and rotates the opaque
// bearer credentials that gate access to bindings. Plaintext credentials
// exist only in memory between generation and the caller's single read.
package credential

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/alexedwards/argon2id"
	"golang.org/x/sync/semaphore"
)

// plaintextBytes is the entropy of a generated credential (256 bits).
const plaintextBytes = 32

// DefaultParams are the Argon2id parameters for new hashes. Parameters are
// embedded in the PHC-encoded hash, so they can be raised later without
// invalidating credentials hashed under the old values.
var DefaultParams = &argon2id.Params{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 4,
	SaltLength:  16,
	KeyLength:   32,
}

type Options struct {
	// Params overrides the Argon2id cost parameters. Nil means DefaultParams.
	Params *argon2id.Params
	// MaxConcurrency bounds how many Argon2id computations may run at
	// once. Hashing costs tens of milliseconds and 64 MiB each, so an
	// unbounded burst would starve the rest of the process. <= 0 means 4.
	MaxConcurrency int
}

type Manager struct {
	params *argon2id.Params
	sem    *semaphore.Weighted
}

func NewManager(opts Options) *Manager {
	params := opts.Params
	if params == nil {
		params = DefaultParams
	}
	workers := opts.MaxConcurrency
	if workers <= 0 {
		workers = 4
	}
	return &Manager{
		params: params,
		sem:    semaphore.NewWeighted(int64(workers)),
	}
}

// Generate produces a new plaintext credential: 256 bits from the CSPRNG,
// URL-safe base64 without padding. Fails only when the entropy source does.
func (m *Manager) Generate() (string, error) {
	buf := make([]byte, plaintextBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("reading entropy: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Hash computes the PHC-encoded Argon2id hash of plaintext with a fresh
// random salt. Two calls on the same input never return the same string.
func (m *Manager) Hash(ctx context.Context, plaintext string) (string, error) {
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer m.sem.Release(1)

	hash, err := argon2id.CreateHash(plaintext, m.params)
	if err != nil {
		return "", fmt.Errorf("hashing credential: %w", err)
	}
	return hash, nil
}

// Verify recomputes the digest using the parameters embedded in encoded and
// compares in constant time. Every input maps to true or false: malformed
// or foreign-format hashes verify as false, never as an error.
func (m *Manager) Verify(plaintext, encoded string) bool {
	ok, err := argon2id.ComparePasswordAndHash(plaintext, encoded)
	if err != nil {
		return false
	}
	return ok
}
