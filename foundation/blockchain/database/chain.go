// Package database maintains the in memory blockchain: the ordered set of
// sealed blocks, genesis creation, appends, and full chain validation.
package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ardanlabs/minichain/foundation/blockchain/digest"
)

// Set of errors returned by the chain.
var (
	ErrNoSealer      = errors.New("chain requires a consensus strategy")
	ErrGenesisExists = errors.New("chain already has a genesis block")
	ErrNotFound      = errors.New("block not found")
	ErrInvalidSeal   = errors.New("consensus strategy produced an invalid seal")
)

// EventHandler defines a function that is called when events occur in the
// processing of the chain.
type EventHandler func(v string, args ...any)

// Config represents the configuration required to construct a chain.
type Config struct {
	Sealer    Sealer
	Hasher    digest.Hasher
	EvHandler EventHandler
	Now       func() time.Time
}

// Chain manages the ordered sequence of blocks. Appends are serialized and
// exclusive, reads can run concurrently with each other.
type Chain struct {
	mu        sync.RWMutex
	sealer    Sealer
	hasher    digest.Hasher
	evHandler EventHandler
	now       func() time.Time
	blocks    []Block
}

// New constructs an empty chain that seals blocks with the configured
// strategy.
func New(cfg Config) (*Chain, error) {
	if cfg.Sealer == nil {
		return nil, ErrNoSealer
	}

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	chain := Chain{
		sealer:    cfg.Sealer,
		hasher:    cfg.Hasher,
		evHandler: ev,
		now:       now,
	}

	return &chain, nil
}

// Kind returns the kind of consensus strategy sealing this chain.
func (c *Chain) Kind() string {
	return c.sealer.Kind()
}

// Sealer returns the consensus strategy sealing this chain.
func (c *Chain) Sealer() Sealer {
	return c.sealer
}

// Hasher returns the hasher used to fingerprint blocks.
func (c *Chain) Hasher() digest.Hasher {
	return c.hasher
}

// Genesis seals the payload as block 0 of an empty chain.
func (c *Chain) Genesis(ctx context.Context, payload any) (Block, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.blocks) > 0 {
		return Block{}, ErrGenesisExists
	}

	return c.appendLocked(ctx, payload)
}

// Append seals the payload into the next block and adds it to the chain. If
// the chain is empty the payload becomes the genesis block. The block is only
// added once the consensus strategy has completed the seal.
func (c *Chain) Append(ctx context.Context, payload any) (Block, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.appendLocked(ctx, payload)
}

// appendLocked performs the append. The caller must hold the write lock.
func (c *Chain) appendLocked(ctx context.Context, payload any) (Block, error) {
	raw, err := EncodePayload(payload)
	if err != nil {
		return Block{}, fmt.Errorf("encode payload: %w", err)
	}

	// When sealing the first block, the previous hash is the sentinel.
	header := Header{
		Index:         0,
		TimeStamp:     c.now().UTC(),
		Payload:       raw,
		PrevBlockHash: digest.ZeroHash,
	}

	var prev *Block
	if n := len(c.blocks); n > 0 {
		prev = &c.blocks[n-1]
		header.Index = prev.Header.Index + 1
		header.PrevBlockHash = prev.Hash
	}

	c.evHandler("database: Append: SEAL: blk[%d]: started: %s", header.Index, c.sealer.Kind())

	seal, err := c.sealer.Seal(ctx, c.hasher, header)
	if err != nil {
		c.evHandler("database: Append: SEAL: blk[%d]: ERROR: %s", header.Index, err)
		return Block{}, fmt.Errorf("seal block %d: %w", header.Index, err)
	}

	block := seal.Block()

	// Never trust the strategy with the integrity of the chain. The sealed
	// block must pass the same checks validation performs.
	if err := c.verifyBlock(prev, block); err != nil {
		return Block{}, fmt.Errorf("%w: %w", ErrInvalidSeal, err)
	}

	c.blocks = append(c.blocks, block.clone())

	c.evHandler("database: Append: SEAL: blk[%d]: completed: hash[%s]: iterations[%d]: elapsed[%v]", block.Header.Index, block.Hash, seal.Iterations, seal.Elapsed)

	return block.clone(), nil
}

// =============================================================================

// Validate re-derives and checks every block in the chain. It returns false
// at the first block that fails any check.
func (c *Chain) Validate() bool {
	return c.Verify() == nil
}

// Verify re-derives and checks every block in the chain, returning the
// reason the first failing block is invalid.
func (c *Chain) Verify() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	c.evHandler("database: Verify: started: blocks[%d]", len(c.blocks))

	if err := VerifyBlocks(c.blocks, c.hasher, condition(c.sealer)); err != nil {
		c.evHandler("database: Verify: FAILED: %s", err)
		return err
	}

	c.evHandler("database: Verify: completed: valid")

	return nil
}

// VerifyForeign checks a sequence of blocks produced elsewhere against the
// rules of this chain. The blocks are not added.
func (c *Chain) VerifyForeign(blocks []Block) error {
	return VerifyBlocks(blocks, c.hasher, condition(c.sealer))
}

// verifyBlock runs the validation checks for a single block against its
// predecessor.
func (c *Chain) verifyBlock(prev *Block, block Block) error {
	return verifyBlock(prev, block, c.hasher, condition(c.sealer))
}

// condition returns the hash condition for strategies that have one.
func condition(sealer Sealer) func(hash string) bool {
	if cond, ok := sealer.(Conditioner); ok {
		return cond.Condition
	}
	return nil
}

// =============================================================================

// Blocks returns a copy of the blocks in index order.
func (c *Chain) Blocks() []Block {
	c.mu.RLock()
	defer c.mu.RUnlock()

	blocks := make([]Block, len(c.blocks))
	for i, block := range c.blocks {
		blocks[i] = block.clone()
	}

	return blocks
}

// Block returns a copy of the block at the specified index.
func (c *Chain) Block(index uint64) (Block, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if index >= uint64(len(c.blocks)) {
		return Block{}, fmt.Errorf("index %d: %w", index, ErrNotFound)
	}

	return c.blocks[index].clone(), nil
}

// LatestBlock returns a copy of the head of the chain. The boolean is false
// when the chain is empty.
func (c *Chain) LatestBlock() (Block, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.blocks) == 0 {
		return Block{}, false
	}

	return c.blocks[len(c.blocks)-1].clone(), true
}

// Len returns the number of blocks in the chain.
func (c *Chain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.blocks)
}

// Tamper gives the function direct access to a stored block. It exists to
// simulate an adversary rewriting history and is the only way a block can
// change after it is sealed.
func (c *Chain) Tamper(index uint64, fn func(block *Block)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if index >= uint64(len(c.blocks)) {
		return fmt.Errorf("index %d: %w", index, ErrNotFound)
	}

	c.evHandler("database: Tamper: blk[%d]: WARNING: block is being modified", index)
	fn(&c.blocks[index])

	return nil
}
