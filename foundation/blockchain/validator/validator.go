// Package validator maintains the set of validators eligible to seal blocks
// under proof of stake and the stake weighted selection between them.
package validator

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Set of errors returned when constructing validators and registries.
var (
	ErrInvalidStake       = errors.New("stake must be greater than zero")
	ErrEmptyName          = errors.New("validator has empty name")
	ErrEmptyRegistry      = errors.New("registry requires at least one validator")
	ErrDuplicateValidator = errors.New("duplicate validator")
)

// Validator represents a named participant and the stake that weights its
// chance of being selected.
type Validator struct {
	Name  string          `json:"name"`
	Stake decimal.Decimal `json:"stake"`
}

// New constructs a validator. The stake must be positive.
func New(name string, stake decimal.Decimal) (Validator, error) {
	v := Validator{
		Name:  strings.TrimSpace(name),
		Stake: stake,
	}

	if err := v.validate(); err != nil {
		return Validator{}, err
	}

	return v, nil
}

// Parse constructs a validator from a string in the form name:stake.
func Parse(s string) (Validator, error) {
	name, stakeStr, found := strings.Cut(s, ":")
	if !found {
		return Validator{}, fmt.Errorf("validator %q is not in the form name:stake", s)
	}

	stake, err := decimal.NewFromString(strings.TrimSpace(stakeStr))
	if err != nil {
		return Validator{}, fmt.Errorf("validator %q stake: %w", name, err)
	}

	return New(name, stake)
}

// String implements the fmt.Stringer interface.
func (v Validator) String() string {
	return fmt.Sprintf("%s:%s", v.Name, v.Stake)
}

// validate checks the invariants of a validator.
func (v Validator) validate() error {
	if v.Name == "" {
		return ErrEmptyName
	}

	if !v.Stake.IsPositive() {
		return fmt.Errorf("validator %q stake %s: %w", v.Name, v.Stake, ErrInvalidStake)
	}

	return nil
}

// =============================================================================

// Selection represents the outcome of a stake weighted draw.
type Selection struct {
	Validator  Validator
	TotalStake decimal.Decimal
}

// Registry represents an immutable ordered set of validators. Since nothing
// can change after construction it is safe for concurrent use.
type Registry struct {
	validators []Validator
	total      decimal.Decimal
	weights    []*big.Int
	weightSum  *big.Int
	random     io.Reader
}

// WithRandom replaces the source of randomness used for selection. The
// source must be cryptographically strong, a predictable source makes the
// selection gameable.
func WithRandom(random io.Reader) func(r *Registry) {
	return func(r *Registry) {
		r.random = random
	}
}

// NewRegistry constructs a registry from the validators in the order they are
// provided. The order is the order selection walks the set.
func NewRegistry(validators []Validator, options ...func(r *Registry)) (*Registry, error) {
	if len(validators) == 0 {
		return nil, ErrEmptyRegistry
	}

	r := Registry{
		validators: make([]Validator, len(validators)),
		total:      decimal.Zero,
		random:     rand.Reader,
	}

	names := make(map[string]struct{}, len(validators))
	for i, v := range validators {
		if err := v.validate(); err != nil {
			return nil, err
		}

		if _, exists := names[v.Name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateValidator, v.Name)
		}
		names[v.Name] = struct{}{}

		r.validators[i] = v
		r.total = r.total.Add(v.Stake)
	}

	for _, option := range options {
		option(&r)
	}

	r.weights, r.weightSum = scale(r.validators)

	return &r, nil
}

// scale converts every stake into an integer by shifting all of them by the
// largest number of decimal places used. The walk then runs on exact
// integers and no rounding is involved.
func scale(validators []Validator) ([]*big.Int, *big.Int) {
	var places int32
	for _, v := range validators {
		if exp := v.Stake.Exponent(); -exp > places {
			places = -exp
		}
	}

	weights := make([]*big.Int, len(validators))
	sum := new(big.Int)
	for i, v := range validators {
		weights[i] = v.Stake.Shift(places).BigInt()
		sum.Add(sum, weights[i])
	}

	return weights, sum
}

// Validators returns a copy of the validators in registry order.
func (r *Registry) Validators() []Validator {
	validators := make([]Validator, len(r.validators))
	copy(validators, r.validators)
	return validators
}

// Len returns the number of validators.
func (r *Registry) Len() int {
	return len(r.validators)
}

// TotalStake returns the sum of all stakes.
func (r *Registry) TotalStake() decimal.Decimal {
	return r.total
}

// Find returns the validator with the specified name.
func (r *Registry) Find(name string) (Validator, bool) {
	for _, v := range r.validators {
		if v.Name == name {
			return v, true
		}
	}
	return Validator{}, false
}

// Select draws a validator with probability proportional to its stake.
func (r *Registry) Select() (Selection, error) {
	draw, err := rand.Int(r.random, r.weightSum)
	if err != nil {
		return Selection{}, fmt.Errorf("draw: %w", err)
	}

	return r.pick(draw), nil
}

// pick walks the validators in order subtracting each stake from the draw.
// The first validator that takes the running value below zero is selected.
// A draw outside of [0, total) falls through the walk and selects the last
// validator.
func (r *Registry) pick(draw *big.Int) Selection {
	remaining := new(big.Int).Set(draw)
	for i, weight := range r.weights {
		remaining.Sub(remaining, weight)
		if remaining.Sign() < 0 {
			return Selection{Validator: r.validators[i], TotalStake: r.total}
		}
	}

	return Selection{Validator: r.validators[len(r.validators)-1], TotalStake: r.total}
}
