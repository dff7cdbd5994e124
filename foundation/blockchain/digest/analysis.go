package digest

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNoCollision is returned when a prefix collision search exhausts its
// attempts.
var ErrNoCollision = errors.New("no prefix collision found")

// MaxPrefix is the longest prefix that can be searched for, the length of a
// 256 bit digest in hex.
const MaxPrefix = 64

// Diff returns the number of positions where two digests differ. Extra
// characters in the longer digest count as differences.
func Diff(a, b string) int {
	short, long := a, b
	if len(short) > len(long) {
		short, long = long, short
	}

	diff := len(long) - len(short)
	for i := 0; i < len(short); i++ {
		if short[i] != long[i] {
			diff++
		}
	}

	return diff
}

// =============================================================================

// Candidate is one side of a prefix collision.
type Candidate struct {
	Nonce uint64
	Input string
	Hash  string
}

// Collision describes two distinct inputs whose digests share a prefix.
type Collision struct {
	Prefix   string
	Attempts uint64
	Elapsed  time.Duration
	A        Candidate
	B        Candidate
}

// FindPrefixCollision appends increasing nonces to base until two inputs
// produce digests that share the first n hex characters. The search stops
// after maxAttempts inputs or when the context is cancelled.
func (h Hasher) FindPrefixCollision(ctx context.Context, base string, n int, maxAttempts uint64, ev func(v string, args ...any)) (Collision, error) {
	if n < 1 || n > MaxPrefix {
		return Collision{}, fmt.Errorf("prefix length must be within 1..%d, got %d", MaxPrefix, n)
	}

	if ev == nil {
		ev = func(string, ...any) {}
	}

	start := time.Now()
	seen := make(map[string]Candidate)

	for nonce := uint64(0); nonce < maxAttempts; nonce++ {
		if nonce%100_000 == 0 {
			if ctx.Err() != nil {
				return Collision{}, ctx.Err()
			}
			if nonce > 0 {
				ev("digest: FindPrefixCollision: attempts[%d]: prefixes[%d]", nonce, len(seen))
			}
		}

		input := fmt.Sprintf("%s%d", base, nonce)
		hash := h.Sum([]byte(input))
		prefix := hash[:n]

		prev, exists := seen[prefix]
		if !exists {
			seen[prefix] = Candidate{Nonce: nonce, Input: input, Hash: hash}
			continue
		}

		col := Collision{
			Prefix:   prefix,
			Attempts: nonce + 1,
			Elapsed:  time.Since(start),
			A:        prev,
			B:        Candidate{Nonce: nonce, Input: input, Hash: hash},
		}

		return col, nil
	}

	return Collision{}, ErrNoCollision
}
