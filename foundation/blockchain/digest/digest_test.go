package digest_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ardanlabs/minichain/foundation/blockchain/digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashDeterministic(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	payload := map[string]any{"to": "Bob", "from": "Alice", "amount": 10}

	h1 := digest.Hash(uint64(1), ts, payload, "abc", uint64(42))
	h2 := digest.Hash(uint64(1), ts, payload, "abc", uint64(42))

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
	assert.Regexp(t, "^[0-9a-f]{64}$", h1)
}

func TestHashFieldSensitivity(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	base := digest.Hash(uint64(1), ts, `"data"`, "abc", uint64(0))

	tt := []struct {
		name   string
		fields []any
	}{
		{"index", []any{uint64(2), ts, `"data"`, "abc", uint64(0)}},
		{"timestamp", []any{uint64(1), ts.Add(time.Nanosecond), `"data"`, "abc", uint64(0)}},
		{"payload", []any{uint64(1), ts, `"Hacked!"`, "abc", uint64(0)}},
		{"prevhash", []any{uint64(1), ts, `"data"`, "abd", uint64(0)}},
		{"nonce", []any{uint64(1), ts, `"data"`, "abc", uint64(1)}},
	}

	for _, tst := range tt {
		t.Run(tst.name, func(t *testing.T) {
			assert.NotEqual(t, base, digest.Hash(tst.fields...))
		})
	}
}

func TestTimestampZoneIndependent(t *testing.T) {
	utc := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	kyiv := utc.In(time.FixedZone("EET", 2*60*60))

	assert.Equal(t, digest.Hash(utc), digest.Hash(kyiv))
}

func TestCanonicalSortsMapKeys(t *testing.T) {
	a, err := digest.Canonical(map[string]int{"b": 2, "a": 1})
	require.NoError(t, err)

	assert.Equal(t, `{"a":1,"b":2}`, a)
}

func TestCanonicalRawJSON(t *testing.T) {
	a, err := digest.Canonical(json.RawMessage(`{ "to": "Bob", "amount": 10.50, "from": "Alice" }`))
	require.NoError(t, err)

	assert.Equal(t, `{"amount":10.50,"from":"Alice","to":"Bob"}`, a)

	_, err = digest.Canonical(json.RawMessage(`{"to":`))
	assert.Error(t, err)
}

func TestCanonicalFailure(t *testing.T) {
	_, err := digest.Canonical(make(chan int))
	assert.Error(t, err)
}

func TestUnencodableFieldIsNotEmpty(t *testing.T) {
	assert.NotEqual(t, digest.Hash(""), digest.Hash(make(chan int)))
	assert.NotEqual(t, digest.Hash(""), digest.Hash(func() {}))
	assert.NotEqual(t, digest.Hash(make(chan int)), digest.Hash(func() {}))
	assert.Equal(t, "a|!unencodable(chan int)", digest.Join("a", make(chan int)))
}

func TestAlgorithms(t *testing.T) {
	seen := make(map[string]digest.Algorithm)

	for _, alg := range digest.Algorithms() {
		h, err := digest.New(alg)
		require.NoError(t, err)
		assert.Equal(t, alg, h.Algorithm())

		sum := h.Hash("blockchain")
		assert.Regexp(t, "^[0-9a-f]{64}$", sum, alg)

		other, exists := seen[sum]
		assert.False(t, exists, "%s collides with %s", alg, other)
		seen[sum] = alg
	}
}

func TestKnownVectors(t *testing.T) {
	sha, err := digest.New(digest.SHA256)
	require.NoError(t, err)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", sha.Sum([]byte("abc")))

	sha3, err := digest.New(digest.SHA3_256)
	require.NoError(t, err)
	assert.Equal(t, "3a985da74fe225b2045c172d6bd390bd855f086e3e9d525b46bfe24511431532", sha3.Sum([]byte("abc")))

	keccak, err := digest.New(digest.Keccak256)
	require.NoError(t, err)
	assert.Equal(t, "4e03657aea45a94fc7d47ba826c8d667c0d1e6e33a64a036ec44f58fa12d6c45", keccak.Sum([]byte("abc")))
}

func TestParseAlgorithm(t *testing.T) {
	alg, err := digest.ParseAlgorithm(" SHA3-256 ")
	require.NoError(t, err)
	assert.Equal(t, digest.SHA3_256, alg)

	_, err = digest.ParseAlgorithm("md5")
	assert.Error(t, err)

	_, err = digest.New("md5")
	assert.Error(t, err)
}

func TestZeroValueHasher(t *testing.T) {
	var h digest.Hasher

	assert.Equal(t, digest.SHA256, h.Algorithm())
	assert.Equal(t, digest.Hash("abc", 1), h.Hash("abc", 1))
}

func TestDiff(t *testing.T) {
	assert.Equal(t, 0, digest.Diff("abcd", "abcd"))
	assert.Equal(t, 1, digest.Diff("abcd", "abce"))
	assert.Equal(t, 2, digest.Diff("ab", "abcd"))

	a := digest.Hash("student_test")
	b := digest.Hash("student_tesT")
	assert.Greater(t, digest.Diff(a, b), 32, "a one character change should rewrite most of the digest")
}

func TestFindPrefixCollision(t *testing.T) {
	col, err := digest.Default.FindPrefixCollision(context.Background(), "student_test", 2, 10_000, nil)
	require.NoError(t, err)

	assert.Equal(t, col.A.Hash[:2], col.B.Hash[:2])
	assert.Equal(t, col.Prefix, col.A.Hash[:2])
	assert.NotEqual(t, col.A.Nonce, col.B.Nonce)
	assert.Equal(t, col.B.Nonce+1, col.Attempts)

	// A 2 hex character prefix has 256 values so the pigeonhole principle
	// guarantees a collision within 257 attempts.
	assert.LessOrEqual(t, col.Attempts, uint64(257))
}

func TestFindPrefixCollisionExhausted(t *testing.T) {
	_, err := digest.Default.FindPrefixCollision(context.Background(), "x", 64, 10, nil)
	assert.True(t, errors.Is(err, digest.ErrNoCollision))
}

func TestFindPrefixCollisionBadLength(t *testing.T) {
	_, err := digest.Default.FindPrefixCollision(context.Background(), "x", 0, 10, nil)
	assert.Error(t, err)

	_, err = digest.Default.FindPrefixCollision(context.Background(), "x", 65, 10, nil)
	assert.Error(t, err)
}
