package public

import (
	"encoding/json"

	"github.com/ardanlabs/minichain/foundation/blockchain/database"
	"github.com/ardanlabs/minichain/foundation/blockchain/merkle"
	"github.com/ardanlabs/minichain/foundation/blockchain/validator"
	"github.com/ardanlabs/minichain/foundation/blockchain/worker"
)

// NewBlock is what clients send to have a payload sealed into the chain.
type NewBlock struct {
	Payload json.RawMessage `json:"payload" validate:"required"`
}

type status struct {
	Consensus  string `json:"consensus"`
	Algorithm  string `json:"algorithm"`
	Blocks     int    `json:"blocks"`
	LatestHash string `json:"latest_hash,omitempty"`
	Pending    int    `json:"pending"`
	Subscribed int    `json:"subscribed"`
}

type sealed struct {
	Block database.BlockData `json:"block"`
}

type queued struct {
	Ticket worker.Ticket `json:"ticket"`
}

type validation struct {
	Valid  bool   `json:"valid"`
	Blocks int    `json:"blocks"`
	Error  string `json:"error,omitempty"`
}

type validators struct {
	TotalStake string                `json:"total_stake"`
	Validators []validator.Validator `json:"validators"`
}

type sampleQuery struct {
	Draws int `json:"n" validate:"min=1,max=1000000"`
}

type share struct {
	Name     string  `json:"name"`
	Stake    string  `json:"stake"`
	Wins     int     `json:"wins"`
	Observed float64 `json:"observed"`
	Expected float64 `json:"expected"`
}

type sample struct {
	Draws  int     `json:"draws"`
	Shares []share `json:"shares"`
}

type merkleRoot struct {
	Algorithm string     `json:"algorithm"`
	Root      string     `json:"root"`
	Levels    [][]string `json:"levels"`
}

type merkleProof struct {
	Index uint64             `json:"index"`
	Leaf  string             `json:"leaf"`
	Root  string             `json:"root"`
	Proof []merkle.ProofStep `json:"proof"`
}
