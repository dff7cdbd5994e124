package database

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/minichain/foundation/blockchain/digest"
)

// Set of reasons a block fails validation.
var (
	ErrIndexGap        = errors.New("block index is not the next number")
	ErrBrokenLink      = errors.New("previous hash does not match the previous block")
	ErrHashMismatch    = errors.New("stored hash does not match the recomputed hash")
	ErrConditionFailed = errors.New("hash does not satisfy the consensus condition")
)

// VerifyBlocks checks every block in index order. Genesis is checked on its
// own and every other block is checked against its predecessor. The
// condition is optional and only applies to strategies that have one. The
// first failure is returned.
func VerifyBlocks(blocks []Block, hasher digest.Hasher, condition func(hash string) bool) error {
	var prev *Block
	for i := range blocks {
		if err := verifyBlock(prev, blocks[i], hasher, condition); err != nil {
			return fmt.Errorf("blk[%d]: %w", i, err)
		}
		prev = &blocks[i]
	}

	return nil
}

// verifyBlock checks the link, the hash and the condition for a block. A nil
// prev means the block must be a genesis block.
func verifyBlock(prev *Block, block Block, hasher digest.Hasher, condition func(hash string) bool) error {
	switch {
	case prev == nil:
		if block.Header.Index != 0 {
			return fmt.Errorf("%w: got %d, exp 0", ErrIndexGap, block.Header.Index)
		}

		if block.Header.PrevBlockHash != digest.ZeroHash {
			return fmt.Errorf("%w: genesis got %s, exp %s", ErrBrokenLink, block.Header.PrevBlockHash, digest.ZeroHash)
		}

	default:
		if block.Header.Index != prev.Header.Index+1 {
			return fmt.Errorf("%w: got %d, exp %d", ErrIndexGap, block.Header.Index, prev.Header.Index+1)
		}

		if block.Header.PrevBlockHash != prev.Hash {
			return fmt.Errorf("%w: got %s, exp %s", ErrBrokenLink, block.Header.PrevBlockHash, prev.Hash)
		}
	}

	hash := block.Header.Hash(hasher)
	if block.Hash != hash {
		return fmt.Errorf("%w: got %s, exp %s", ErrHashMismatch, block.Hash, hash)
	}

	if condition != nil && !condition(block.Hash) {
		return fmt.Errorf("%w: %s", ErrConditionFailed, block.Hash)
	}

	return nil
}
