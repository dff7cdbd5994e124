// Package genesis maintains access to the genesis file and builds the chain
// it describes.
package genesis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ardanlabs/minichain/foundation/blockchain/consensus/pos"
	"github.com/ardanlabs/minichain/foundation/blockchain/consensus/pow"
	"github.com/ardanlabs/minichain/foundation/blockchain/database"
	"github.com/ardanlabs/minichain/foundation/blockchain/digest"
	"github.com/ardanlabs/minichain/foundation/blockchain/validator"
)

// DefaultPath is where the node looks for the genesis file.
const DefaultPath = "zblock/genesis.json"

// Genesis represents the genesis file.
type Genesis struct {
	Date       time.Time             `json:"date"`
	ChainID    uint16                `json:"chain_id"`   // The chain id represents an unique id for this running instance.
	Consensus  string                `json:"consensus"`  // Either pow or pos.
	Difficulty uint                  `json:"difficulty"` // How difficult it needs to be to solve the work problem.
	Workers    int                   `json:"workers"`    // Number of goroutines searching for a nonce.
	Algorithm  string                `json:"algorithm"`  // Hash algorithm used to fingerprint blocks.
	Validators []validator.Validator `json:"validators"` // Stake weighted validators for pos.
	Payload    json.RawMessage       `json:"payload"`    // Payload sealed into block 0.
}

// =============================================================================

// Load opens and consumes the genesis file.
func Load(path string) (Genesis, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, err
	}

	var genesis Genesis
	if err := json.Unmarshal(content, &genesis); err != nil {
		return Genesis{}, fmt.Errorf("genesis %s: %w", path, err)
	}

	if err := genesis.Validate(); err != nil {
		return Genesis{}, fmt.Errorf("genesis %s: %w", path, err)
	}

	return genesis, nil
}

// Validate checks the genesis settings are usable.
func (g Genesis) Validate() error {
	if _, err := g.Hasher(); err != nil {
		return err
	}

	switch g.Consensus {
	case pow.Kind:
		if g.Difficulty > digest.MaxPrefix {
			return fmt.Errorf("difficulty %d can never be solved", g.Difficulty)
		}
	case pos.Kind:
		if len(g.Validators) == 0 {
			return validator.ErrEmptyRegistry
		}
	default:
		return fmt.Errorf("unknown consensus %q", g.Consensus)
	}

	return nil
}

// Hasher returns the hasher for the configured algorithm. An empty algorithm
// selects sha256.
func (g Genesis) Hasher() (digest.Hasher, error) {
	if g.Algorithm == "" {
		return digest.Default, nil
	}

	alg, err := digest.ParseAlgorithm(g.Algorithm)
	if err != nil {
		return digest.Hasher{}, err
	}

	return digest.New(alg)
}

// Sealer constructs the consensus strategy the genesis describes.
func (g Genesis) Sealer(ev database.EventHandler) (database.Sealer, error) {
	switch g.Consensus {
	case pow.Kind:
		return pow.New(g.Difficulty, pow.WithWorkers(g.Workers), pow.WithEvHandler(ev)), nil

	case pos.Kind:
		registry, err := validator.NewRegistry(g.Validators)
		if err != nil {
			return nil, err
		}
		return pos.New(registry, pos.WithEvHandler(ev))
	}

	return nil, fmt.Errorf("unknown consensus %q", g.Consensus)
}

// NewChain constructs the chain described by the genesis and seals the
// genesis payload as block 0.
func NewChain(ctx context.Context, g Genesis, ev database.EventHandler) (*database.Chain, error) {
	if ev == nil {
		ev = func(string, ...any) {}
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}

	hasher, err := g.Hasher()
	if err != nil {
		return nil, err
	}

	sealer, err := g.Sealer(ev)
	if err != nil {
		return nil, fmt.Errorf("consensus: %w", err)
	}

	chain, err := database.New(database.Config{
		Sealer:    sealer,
		Hasher:    hasher,
		EvHandler: ev,
	})
	if err != nil {
		return nil, err
	}

	var payload any = g.Payload
	if len(g.Payload) == 0 {
		payload = fmt.Sprintf("Genesis Block (%s)", sealer.Kind())
	}

	if _, err := chain.Genesis(ctx, payload); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("sealing genesis cancelled: %w", err)
		}
		return nil, err
	}

	return chain, nil
}
