// Package pow implements the proof of work consensus strategy. A block is
// sealed by searching for a nonce that makes the block hash satisfy a
// condition.
package pow

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ardanlabs/minichain/foundation/blockchain/database"
	"github.com/ardanlabs/minichain/foundation/blockchain/digest"
	"golang.org/x/sync/errgroup"
)

// Kind is the name of this consensus strategy.
const Kind = "pow"

// Number of attempts between progress events and context checks.
const (
	reportEvery = 1_000_000
	checkEvery  = 1 << 12
)

// Condition decides whether a hash solves the puzzle.
type Condition func(hash string) bool

// LeadingZeros returns the default condition. The first difficulty hex
// characters of the hash must be '0'. A difficulty of 0 is always satisfied
// and a difficulty longer than the hash can never be.
func LeadingZeros(difficulty uint) Condition {
	prefix := strings.Repeat("0", int(difficulty))
	return func(hash string) bool {
		return strings.HasPrefix(hash, prefix)
	}
}

// CharAt returns a condition that requires the character at position i of
// the hash to be c.
func CharAt(i int, c byte) Condition {
	return func(hash string) bool {
		return i >= 0 && i < len(hash) && hash[i] == c
	}
}

// =============================================================================

// POW seals blocks by brute force nonce search. There is no upper bound on
// the number of attempts. A condition that can never be satisfied blocks
// until the context is cancelled.
type POW struct {
	difficulty uint
	condition  Condition
	workers    int
	evHandler  database.EventHandler
}

// WithCondition replaces the default leading zeros condition.
func WithCondition(condition Condition) func(p *POW) {
	return func(p *POW) {
		p.condition = condition
	}
}

// WithWorkers partitions the nonce space across the specified number of
// goroutines.
func WithWorkers(workers int) func(p *POW) {
	return func(p *POW) {
		p.workers = workers
	}
}

// WithEvHandler sets a function to receive mining events.
func WithEvHandler(ev database.EventHandler) func(p *POW) {
	return func(p *POW) {
		p.evHandler = ev
	}
}

// New constructs a proof of work strategy for the specified difficulty.
func New(difficulty uint, options ...func(p *POW)) *POW {
	p := POW{
		difficulty: difficulty,
		workers:    1,
	}

	for _, option := range options {
		option(&p)
	}

	if p.condition == nil {
		p.condition = LeadingZeros(difficulty)
	}

	if p.workers < 1 {
		p.workers = 1
	}

	if p.evHandler == nil {
		p.evHandler = func(string, ...any) {}
	}

	return &p
}

// Kind implements the database.Sealer interface.
func (p *POW) Kind() string {
	return Kind
}

// Difficulty returns the configured difficulty.
func (p *POW) Difficulty() uint {
	return p.difficulty
}

// Workers returns the number of goroutines used to search.
func (p *POW) Workers() int {
	return p.workers
}

// Condition implements the database.Conditioner interface.
func (p *POW) Condition(hash string) bool {
	return p.condition(hash)
}

// Seal implements the database.Sealer interface. The nonce starts at 0 and
// is incremented until the hash of the header satisfies the condition.
func (p *POW) Seal(ctx context.Context, hasher digest.Hasher, header database.Header) (database.Seal, error) {
	p.evHandler("pow: Seal: MINING: blk[%d]: started: workers[%d]", header.Index, p.workers)
	defer p.evHandler("pow: Seal: MINING: blk[%d]: completed", header.Index)

	start := time.Now()

	var seal database.Seal
	var err error
	switch p.workers {
	case 1:
		seal, err = p.search(ctx, hasher, header)
	default:
		seal, err = p.searchParallel(ctx, hasher, header)
	}

	if err != nil {
		p.evHandler("pow: Seal: MINING: blk[%d]: CANCELLED", header.Index)
		return database.Seal{}, err
	}

	seal.Elapsed = time.Since(start)

	p.evHandler("pow: Seal: MINING: blk[%d]: SOLVED: nonce[%d]: hash[%s]: attempts[%d]", header.Index, seal.Header.Nonce, seal.Hash, seal.Iterations)

	return seal, nil
}

// search performs the nonce search on the calling goroutine.
func (p *POW) search(ctx context.Context, hasher digest.Hasher, header database.Header) (database.Seal, error) {
	var attempts uint64
	for nonce := uint64(0); ; nonce++ {
		attempts++

		if attempts%checkEvery == 0 {
			if ctx.Err() != nil {
				return database.Seal{}, ctx.Err()
			}
			if attempts%reportEvery == 0 {
				p.evHandler("pow: Seal: MINING: blk[%d]: attempts[%d]", header.Index, attempts)
			}
		}

		header.Nonce = nonce
		hash := header.Hash(hasher)
		if !p.condition(hash) {
			continue
		}

		seal := database.Seal{
			Header:     header,
			Hash:       hash,
			Iterations: attempts,
		}

		return seal, nil
	}
}

// searchParallel strides the nonce space across workers. Worker i tries
// i, i+n, i+2n and so on. Workers poll a shared flag and the first one to
// solve the puzzle is the only one allowed to record its result.
func (p *POW) searchParallel(ctx context.Context, hasher digest.Hasher, header database.Header) (database.Seal, error) {
	var found atomic.Bool
	var attempts atomic.Uint64
	var seal database.Seal

	g, ctx := errgroup.WithContext(ctx)

	stride := uint64(p.workers)
	for worker := range p.workers {
		g.Go(func() error {
			h := header
			var local uint64

			for nonce := uint64(worker); ; nonce += stride {
				local++

				if local%checkEvery == 0 {
					total := attempts.Add(checkEvery)
					if found.Load() {
						return nil
					}
					if ctx.Err() != nil {
						return ctx.Err()
					}
					if total%reportEvery < checkEvery {
						p.evHandler("pow: Seal: MINING: blk[%d]: attempts[%d]", header.Index, total)
					}
				}

				h.Nonce = nonce
				hash := h.Hash(hasher)
				if !p.condition(hash) {
					continue
				}

				// Another worker may have solved it first.
				if !found.CompareAndSwap(false, true) {
					return nil
				}

				attempts.Add(local % checkEvery)
				seal = database.Seal{
					Header: h,
					Hash:   hash,
				}
				return nil
			}
		})
	}

	// The group context is only cancelled by an error so a solved puzzle
	// leaves the others to notice the found flag.
	err := g.Wait()
	if !found.Load() {
		if err == nil {
			err = ctx.Err()
		}
		return database.Seal{}, err
	}

	seal.Iterations = attempts.Load()
	return seal, nil
}
