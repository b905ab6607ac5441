// Package metrics provides observers that accumulate diagnostic quantities
// along an integration without altering it.
package metrics

import (
	"math"

	"github.com/san-kum/kinpath/internal/chem"
)

// ElementDrift tracks the worst relative drift of each element's total
// amount from its initial value. Elements are conserved exactly by the
// chemistry, so any drift measures numerical error.
type ElementDrift struct {
	name     string
	elements []string
	initial  []float64
	maxDrift float64
	samples  int
}

func NewElementDrift(system *chem.System) *ElementDrift {
	return &ElementDrift{
		name:     "element_drift",
		elements: system.Elements(),
	}
}

func (e *ElementDrift) Name() string { return e.name }

func (e *ElementDrift) OnStep(state *chem.State, t float64) {
	if e.samples == 0 {
		e.initial = make([]float64, len(e.elements))
		for i, el := range e.elements {
			e.initial[i], _ = state.ElementAmount(el)
		}
	}
	e.samples++

	for i, el := range e.elements {
		b, _ := state.ElementAmount(el)
		if e.initial[i] == 0 {
			continue
		}
		drift := math.Abs(b-e.initial[i]) / math.Abs(e.initial[i])
		e.maxDrift = math.Max(e.maxDrift, drift)
	}
}

func (e *ElementDrift) Value() float64 {
	return e.maxDrift
}

func (e *ElementDrift) Reset() {
	e.initial = nil
	e.maxDrift = 0
	e.samples = 0
}

// Extent tracks the net turnover of a single species relative to its
// initial amount, a rough reaction progress indicator.
type Extent struct {
	name    string
	species string
	initial float64
	current float64
	samples int
}

func NewExtent(species string) *Extent {
	return &Extent{
		name:    "extent",
		species: species,
	}
}

func (e *Extent) Name() string { return e.name }

func (e *Extent) OnStep(state *chem.State, t float64) {
	n, err := state.SpeciesAmount(e.species)
	if err != nil {
		return
	}
	if e.samples == 0 {
		e.initial = n
	}
	e.current = n
	e.samples++
}

func (e *Extent) Value() float64 {
	if e.samples == 0 || e.initial == 0 {
		return 0
	}
	return math.Abs(e.current-e.initial) / math.Abs(e.initial)
}

func (e *Extent) Reset() {
	e.initial = 0
	e.current = 0
	e.samples = 0
}
