// Package digest provides the content hashing used to fingerprint blocks.
// Every digest is rendered as lowercase hex with no 0x prefix so consensus
// conditions can be expressed directly over the characters of the string.
package digest

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"
)

// ZeroHash is the sentinel used as the previous hash of a genesis block.
const ZeroHash = "0"

// separator is placed between the canonical form of each field.
const separator = "|"

// Algorithm names a supported hash function.
type Algorithm string

// Set of supported hash algorithms.
const (
	SHA256       Algorithm = "sha256"
	SHA3_256     Algorithm = "sha3-256"
	Keccak256    Algorithm = "keccak256"
	DoubleSHA256 Algorithm = "sha256d"
)

// Map of algorithms to the functions that implement them.
var algorithms = map[Algorithm]func(data []byte) []byte{
	SHA256: func(data []byte) []byte {
		sum := sha256.Sum256(data)
		return sum[:]
	},
	SHA3_256: func(data []byte) []byte {
		sum := sha3.Sum256(data)
		return sum[:]
	},
	Keccak256: func(data []byte) []byte {
		return crypto.Keccak256(data)
	},
	DoubleSHA256: func(data []byte) []byte {
		return chainhash.DoubleHashB(data)
	},
}

// Algorithms returns the list of supported algorithms in a stable order.
func Algorithms() []Algorithm {
	return []Algorithm{SHA256, SHA3_256, Keccak256, DoubleSHA256}
}

// ParseAlgorithm converts a string into a supported algorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	alg := Algorithm(strings.ToLower(strings.TrimSpace(s)))
	if _, exists := algorithms[alg]; !exists {
		return "", fmt.Errorf("algorithm %q is not supported", s)
	}
	return alg, nil
}

// =============================================================================

// Hasher produces digests using a specific algorithm.
type Hasher struct {
	alg Algorithm
	sum func(data []byte) []byte
}

// Default is the hasher used when nothing else is configured.
var Default = Hasher{alg: SHA256, sum: algorithms[SHA256]}

// New constructs a hasher for the specified algorithm.
func New(alg Algorithm) (Hasher, error) {
	sum, exists := algorithms[alg]
	if !exists {
		return Hasher{}, fmt.Errorf("algorithm %q is not supported", alg)
	}

	return Hasher{alg: alg, sum: sum}, nil
}

// Algorithm returns the algorithm this hasher uses.
func (h Hasher) Algorithm() Algorithm {
	if h.sum == nil {
		return SHA256
	}
	return h.alg
}

// Hash returns the hex digest of the canonical concatenation of the fields.
// The zero value Hasher uses SHA256.
func (h Hasher) Hash(fields ...any) string {
	return h.Sum([]byte(Join(fields...)))
}

// Sum returns the hex digest of the raw bytes.
func (h Hasher) Sum(data []byte) string {
	sum := h.sum
	if sum == nil {
		sum = algorithms[SHA256]
	}

	return hex.EncodeToString(sum(data))
}

// Hash returns the SHA256 hex digest of the canonical concatenation of the
// fields.
func Hash(fields ...any) string {
	return Default.Hash(fields...)
}

// =============================================================================

// Join renders every field in its canonical form and concatenates them in
// order.
func Join(fields ...any) string {
	parts := make([]string, len(fields))
	for i, field := range fields {
		parts[i] = canonical(field)
	}

	return strings.Join(parts, separator)
}

// Canonical returns the stable JSON encoding of an opaque value. Map keys
// are sorted by the encoder so the same value always renders the same way.
// Raw JSON is decoded first so its keys are sorted too.
func Canonical(value any) (string, error) {
	if raw, ok := value.(json.RawMessage); ok {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()

		var v any
		if err := dec.Decode(&v); err != nil {
			return "", fmt.Errorf("canonical encoding: %w", err)
		}
		value = v
	}

	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("canonical encoding: %w", err)
	}

	return string(data), nil
}

// canonical renders a single field. Integers are decimal, timestamps are
// RFC3339 in UTC, strings are used verbatim and everything else is JSON.
// A value JSON cannot encode renders as a marker naming its type.
func canonical(field any) string {
	switch v := field.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	case []byte:
		return hex.EncodeToString(v)
	}

	s, err := Canonical(field)
	if err != nil {
		return fmt.Sprintf("!unencodable(%T)", field)
	}
	return s
}
