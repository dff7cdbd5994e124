// Package pos implements the proof of stake consensus strategy. A block is
// sealed by the validator selected from a stake weighted draw. No search is
// performed so sealing is linear in the number of validators.
package pos

import (
	"context"
	"errors"
	"time"

	"github.com/ardanlabs/minichain/foundation/blockchain/database"
	"github.com/ardanlabs/minichain/foundation/blockchain/digest"
	"github.com/ardanlabs/minichain/foundation/blockchain/validator"
)

// Kind is the name of this consensus strategy.
const Kind = "pos"

// ErrNoRegistry is returned when a strategy is constructed without
// validators.
var ErrNoRegistry = errors.New("proof of stake requires a validator registry")

// POS seals blocks by stamping them with a stake weighted validator.
type POS struct {
	registry  *validator.Registry
	evHandler database.EventHandler
}

// WithEvHandler sets a function to receive selection events.
func WithEvHandler(ev database.EventHandler) func(p *POS) {
	return func(p *POS) {
		p.evHandler = ev
	}
}

// New constructs a proof of stake strategy over the registry.
func New(registry *validator.Registry, options ...func(p *POS)) (*POS, error) {
	if registry == nil {
		return nil, ErrNoRegistry
	}

	p := POS{
		registry:  registry,
		evHandler: func(string, ...any) {},
	}

	for _, option := range options {
		option(&p)
	}

	return &p, nil
}

// Kind implements the database.Sealer interface.
func (p *POS) Kind() string {
	return Kind
}

// Registry returns the validators this strategy selects from.
func (p *POS) Registry() *validator.Registry {
	return p.registry
}

// Seal implements the database.Sealer interface. It selects a validator,
// records its name in the header and computes the hash.
func (p *POS) Seal(ctx context.Context, hasher digest.Hasher, header database.Header) (database.Seal, error) {
	if err := ctx.Err(); err != nil {
		return database.Seal{}, err
	}

	start := time.Now()

	sel, err := p.registry.Select()
	if err != nil {
		return database.Seal{}, err
	}

	p.evHandler("pos: Seal: blk[%d]: SELECTED: %s: stake[%s]: total[%s]", header.Index, sel.Validator.Name, sel.Validator.Stake, sel.TotalStake)

	header.Nonce = 0
	header.ValidatorID = sel.Validator.Name

	seal := database.Seal{
		Header:     header,
		Hash:       header.Hash(hasher),
		Iterations: 1,
		Elapsed:    time.Since(start),
	}

	return seal, nil
}
