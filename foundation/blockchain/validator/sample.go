package validator

import "fmt"

// Share represents how often a validator won a sampling run against the
// share its stake entitles it to.
type Share struct {
	Validator Validator
	Wins      int
	Observed  float64
	Expected  float64
}

// Sample performs the specified number of independent draws without sealing
// any blocks and reports the win frequency of every validator in registry
// order.
func (r *Registry) Sample(draws int) ([]Share, error) {
	if draws <= 0 {
		return nil, fmt.Errorf("draws must be positive, got %d", draws)
	}

	wins := make(map[string]int, len(r.validators))
	for range draws {
		sel, err := r.Select()
		if err != nil {
			return nil, err
		}
		wins[sel.Validator.Name]++
	}

	shares := make([]Share, len(r.validators))
	for i, v := range r.validators {
		expected, _ := v.Stake.Div(r.total).Float64()
		shares[i] = Share{
			Validator: v,
			Wins:      wins[v.Name],
			Observed:  float64(wins[v.Name]) / float64(draws),
			Expected:  expected,
		}
	}

	return shares, nil
}
