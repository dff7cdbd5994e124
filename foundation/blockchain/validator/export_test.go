package validator

import "math/big"

// Pick exposes the selection walk so a specific draw can be tested.
func (r *Registry) Pick(draw *big.Int) Selection {
	return r.pick(draw)
}
