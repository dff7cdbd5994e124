package database

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/ardanlabs/minichain/foundation/blockchain/digest"
)

// Header represents the fields of a block that are covered by its hash.
type Header struct {
	Index         uint64          `json:"index"`           // Position in the chain, 0 for genesis.
	TimeStamp     time.Time       `json:"timestamp"`       // Time the block was created.
	Payload       json.RawMessage `json:"payload"`         // Opaque canonical JSON, never interpreted.
	PrevBlockHash string          `json:"prev_block_hash"` // Hash of the previous block, digest.ZeroHash for genesis.
	Nonce         uint64          `json:"nonce"`           // POW: Value identified to solve the hash condition.
	ValidatorID   string          `json:"validator"`       // POS: Name of the validator selected to seal the block.
}

// Hash returns the digest of the header fields using the specified hasher.
func (h Header) Hash(hasher digest.Hasher) string {
	return hasher.Hash(h.Index, h.TimeStamp, string(h.Payload), h.PrevBlockHash, h.Nonce, h.ValidatorID)
}

// clone returns a copy of the header that shares no memory with the original.
func (h Header) clone() Header {
	h.Payload = bytes.Clone(h.Payload)
	return h
}

// =============================================================================

// Block represents a sealed header and the hash produced when it was sealed.
type Block struct {
	Header Header
	Hash   string
}

// clone returns a copy of the block that shares no memory with the original.
func (b Block) clone() Block {
	b.Header = b.Header.clone()
	return b
}

// EncodePayload converts an opaque value into the canonical form stored in a
// block.
func EncodePayload(value any) (json.RawMessage, error) {
	s, err := digest.Canonical(value)
	if err != nil {
		return nil, err
	}

	return json.RawMessage(s), nil
}

// =============================================================================

// Seal represents the result of a consensus strategy sealing a header.
type Seal struct {
	Header     Header
	Hash       string
	Iterations uint64
	Elapsed    time.Duration
}

// Block converts the seal into the block that will be appended.
func (s Seal) Block() Block {
	return Block{
		Header: s.Header,
		Hash:   s.Hash,
	}
}

// Sealer represents the behavior a consensus strategy must implement to
// produce the metadata that seals a new block.
type Sealer interface {
	Kind() string
	Seal(ctx context.Context, hasher digest.Hasher, header Header) (Seal, error)
}

// Conditioner represents a consensus strategy whose hashes must satisfy a
// condition. Validation checks the condition for every block when the
// strategy provides one.
type Conditioner interface {
	Condition(hash string) bool
}

// =============================================================================

// BlockData represents the flattened form of a block used for display
// and export.
type BlockData struct {
	Index         uint64          `json:"index"`
	TimeStamp     time.Time       `json:"timestamp"`
	Payload       json.RawMessage `json:"payload"`
	PrevBlockHash string          `json:"prev_block_hash"`
	Nonce         uint64          `json:"nonce"`
	ValidatorID   string          `json:"validator,omitempty"`
	Hash          string          `json:"hash"`
}

// NewBlockData constructs the value to display or export.
func NewBlockData(block Block) BlockData {
	return BlockData{
		Index:         block.Header.Index,
		TimeStamp:     block.Header.TimeStamp,
		Payload:       bytes.Clone(block.Header.Payload),
		PrevBlockHash: block.Header.PrevBlockHash,
		Nonce:         block.Header.Nonce,
		ValidatorID:   block.Header.ValidatorID,
		Hash:          block.Hash,
	}
}

// ToBlock converts a BlockData into a Block.
func ToBlock(bd BlockData) Block {
	return Block{
		Header: Header{
			Index:         bd.Index,
			TimeStamp:     bd.TimeStamp,
			Payload:       bytes.Clone(bd.Payload),
			PrevBlockHash: bd.PrevBlockHash,
			Nonce:         bd.Nonce,
			ValidatorID:   bd.ValidatorID,
		},
		Hash: bd.Hash,
	}
}
