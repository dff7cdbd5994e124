package pow_test

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ardanlabs/minichain/foundation/blockchain/consensus/pow"
	"github.com/ardanlabs/minichain/foundation/blockchain/database"
	"github.com/ardanlabs/minichain/foundation/blockchain/digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func header() database.Header {
	return database.Header{
		Index:         1,
		TimeStamp:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Payload:       []byte(`{"amount":10,"from":"Alice","to":"Bob"}`),
		PrevBlockHash: strings.Repeat("0", 3) + strings.Repeat("a", 61),
	}
}

func TestLeadingZeros(t *testing.T) {
	tt := []struct {
		difficulty uint
		hash       string
		exp        bool
	}{
		{0, "abc", true},
		{0, "", true},
		{1, "0bc", true},
		{1, "abc", false},
		{3, "000f", true},
		{3, "00f0", false},
		{5, "000", false},
	}

	for _, tst := range tt {
		assert.Equal(t, tst.exp, pow.LeadingZeros(tst.difficulty)(tst.hash), "difficulty %d hash %q", tst.difficulty, tst.hash)
	}
}

func TestCharAt(t *testing.T) {
	cond := pow.CharAt(2, '3')

	assert.True(t, cond("ab3"))
	assert.False(t, cond("ab4"))
	assert.False(t, cond("ab"))
	assert.False(t, pow.CharAt(-1, '3')("333"))
}

func TestDifficultyZero(t *testing.T) {
	p := pow.New(0)

	seal, err := p.Seal(context.Background(), digest.Default, header())
	require.NoError(t, err)

	assert.Equal(t, uint64(0), seal.Header.Nonce)
	assert.Equal(t, uint64(1), seal.Iterations)
	assert.Equal(t, seal.Hash, seal.Header.Hash(digest.Default))
}

func TestSealFindsFirstNonce(t *testing.T) {
	p := pow.New(2)
	h := header()

	seal, err := p.Seal(context.Background(), digest.Default, h)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(seal.Hash, "00"))
	assert.Equal(t, seal.Hash, seal.Header.Hash(digest.Default))
	assert.Equal(t, seal.Header.Nonce+1, seal.Iterations)
	assert.True(t, p.Condition(seal.Hash))

	// Every nonce before the one found must fail the condition.
	for nonce := range seal.Header.Nonce {
		h.Nonce = nonce
		assert.False(t, p.Condition(h.Hash(digest.Default)), "nonce %d", nonce)
	}
}

func TestSealKeepsHeaderFields(t *testing.T) {
	h := header()

	seal, err := pow.New(1).Seal(context.Background(), digest.Default, h)
	require.NoError(t, err)

	assert.Equal(t, h.Index, seal.Header.Index)
	assert.Equal(t, h.PrevBlockHash, seal.Header.PrevBlockHash)
	assert.Equal(t, h.TimeStamp, seal.Header.TimeStamp)
	assert.Equal(t, h.Payload, seal.Header.Payload)
	assert.Empty(t, seal.Header.ValidatorID)
}

func TestSealParallel(t *testing.T) {
	p := pow.New(4, pow.WithWorkers(4))
	assert.Equal(t, 4, p.Workers())

	seal, err := p.Seal(context.Background(), digest.Default, header())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(seal.Hash, "0000"), seal.Hash)
	assert.Equal(t, seal.Hash, seal.Header.Hash(digest.Default))
	assert.Greater(t, seal.Iterations, uint64(0))
}

func TestSealCustomCondition(t *testing.T) {
	p := pow.New(3, pow.WithCondition(pow.CharAt(2, '3')))

	seal, err := p.Seal(context.Background(), digest.Default, header())
	require.NoError(t, err)

	assert.Equal(t, byte('3'), seal.Hash[2])
	assert.Equal(t, uint(3), p.Difficulty())
}

func TestSealCancelled(t *testing.T) {
	for _, workers := range []int{1, 3} {
		p := pow.New(65, pow.WithWorkers(workers))

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		_, err := p.Seal(ctx, digest.Default, header())
		cancel()

		assert.ErrorIs(t, err, context.DeadlineExceeded, "workers %d", workers)
	}
}

func TestEvHandler(t *testing.T) {
	var events atomic.Int32
	ev := func(v string, args ...any) {
		events.Add(1)
	}

	_, err := pow.New(1, pow.WithEvHandler(ev)).Seal(context.Background(), digest.Default, header())
	require.NoError(t, err)

	assert.GreaterOrEqual(t, events.Load(), int32(3))
}

func TestWorkersFloor(t *testing.T) {
	assert.Equal(t, 1, pow.New(1, pow.WithWorkers(0)).Workers())
	assert.Equal(t, pow.Kind, pow.New(1).Kind())
}
