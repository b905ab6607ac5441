package metrics

import (
	"github.com/san-kum/kinpath/internal/chem"
)

// Positivity reports the fraction of observed states whose species amounts
// all stayed above -tolerance. Amounts are physically nonnegative; small
// negative excursions indicate the step controller is running too loose.
type Positivity struct {
	name       string
	tolerance  float64
	violations int
	samples    int
}

func NewPositivity(tolerance float64) *Positivity {
	return &Positivity{
		name:      "positivity",
		tolerance: tolerance,
	}
}

func (p *Positivity) Name() string {
	return p.name
}

func (p *Positivity) OnStep(state *chem.State, t float64) {
	p.samples++
	for _, n := range state.Amounts() {
		if n < -p.tolerance {
			p.violations++
			break
		}
	}
}

func (p *Positivity) Value() float64 {
	if p.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(p.violations)/float64(p.samples)
}

func (p *Positivity) Reset() {
	p.violations = 0
	p.samples = 0
}
