package chem

import "fmt"

// State is the mutable instantaneous state of a chemical system: temperature,
// pressure and the molar amounts of every species. It is owned by the caller
// and mutated in place by the solvers; concurrent use of one State must be
// serialized externally.
type State struct {
	system *System
	t      float64 // K
	p      float64 // Pa
	n      []float64
}

// NewState creates a zero-composition state at 298.15 K and 1e5 Pa.
func NewState(system *System) *State {
	return &State{
		system: system,
		t:      298.15,
		p:      1e5,
		n:      make([]float64, system.NumSpecies()),
	}
}

// System returns the chemical system the state belongs to.
func (s *State) System() *System { return s.system }

// Temperature returns the temperature in K.
func (s *State) Temperature() float64 { return s.t }

// Pressure returns the pressure in Pa.
func (s *State) Pressure() float64 { return s.p }

// SetTemperature sets the temperature in K.
func (s *State) SetTemperature(T float64) { s.t = T }

// SetPressure sets the pressure in Pa.
func (s *State) SetPressure(P float64) { s.p = P }

// Amounts returns the species amounts in system order. The returned slice is
// a view into the state; callers that need a snapshot must copy it.
func (s *State) Amounts() []float64 { return s.n }

// SpeciesAmount returns the amount of the named species.
func (s *State) SpeciesAmount(name string) (float64, error) {
	i, ok := s.system.SpeciesIndex(name)
	if !ok {
		return 0, fmt.Errorf("chem: no species %q in system", name)
	}
	return s.n[i], nil
}

// SetSpeciesAmount sets the amount of the named species.
func (s *State) SetSpeciesAmount(name string, amount float64) error {
	i, ok := s.system.SpeciesIndex(name)
	if !ok {
		return fmt.Errorf("chem: no species %q in system", name)
	}
	s.n[i] = amount
	return nil
}

// SetAmounts scatters amounts into the species selected by indices.
// len(amounts) must equal len(indices).
func (s *State) SetAmounts(amounts []float64, indices []int) {
	if len(amounts) != len(indices) {
		panic(fmt.Sprintf("chem: SetAmounts with %d amounts for %d indices", len(amounts), len(indices)))
	}
	for k, i := range indices {
		s.n[i] = amounts[k]
	}
}

// AmountsAt gathers the amounts of the species selected by indices into dst,
// which is allocated if nil, and returns it.
func (s *State) AmountsAt(indices []int, dst []float64) []float64 {
	if dst == nil {
		dst = make([]float64, len(indices))
	}
	for k, i := range indices {
		dst[k] = s.n[i]
	}
	return dst
}

// ElementAmount returns the total moles of the named element across all
// species, computed through the formula matrix.
func (s *State) ElementAmount(name string) (float64, error) {
	e, ok := s.system.ElementIndex(name)
	if !ok {
		return 0, fmt.Errorf("chem: no element %q in system", name)
	}
	w := s.system.FormulaMatrix()
	var b float64
	for j := range s.n {
		b += w.At(e, j) * s.n[j]
	}
	return b, nil
}
