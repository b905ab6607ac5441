package chem

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// ActivityModel selects how a species' activity is computed from the
// composition. Only ideal models are provided; non-ideal correlations live
// behind the same [System.Activities] contract and are out of scope here.
type ActivityModel int

const (
	// ActivityMolar treats the activity as the molar amount itself
	// (dilute species).
	ActivityMolar ActivityModel = iota
	// ActivityMoleFraction treats the activity as the mole fraction among
	// all mole-fraction species (ideal mixture).
	ActivityMoleFraction
	// ActivityPure assigns unit activity (pure condensed phase).
	ActivityPure
)

// Species is a chemical species with an elemental formula.
type Species struct {
	Name     string
	Formula  map[string]float64 // element symbol -> atoms per formula unit
	Activity ActivityModel
}

// System is an immutable chemical system: a fixed list of species and the
// elements appearing in their formulas.
type System struct {
	species      []Species
	elements     []string
	speciesIndex map[string]int
	elementIndex map[string]int
	w            *mat.Dense // formula matrix, elements x species
}

// NewSystem builds a System from the given species. The element set is
// collected from the species formulas and ordered alphabetically.
func NewSystem(species []Species) (*System, error) {
	if len(species) == 0 {
		return nil, fmt.Errorf("chem: system needs at least one species")
	}
	speciesIndex := make(map[string]int, len(species))
	elementIndex := make(map[string]int)
	for i, sp := range species {
		if sp.Name == "" {
			return nil, fmt.Errorf("chem: species %d has no name", i)
		}
		if _, ok := speciesIndex[sp.Name]; ok {
			return nil, fmt.Errorf("chem: duplicate species %q", sp.Name)
		}
		speciesIndex[sp.Name] = i
		for el := range sp.Formula {
			elementIndex[el] = 0
		}
	}
	elements := make([]string, 0, len(elementIndex))
	for el := range elementIndex {
		elements = append(elements, el)
	}
	sort.Strings(elements)
	for i, el := range elements {
		elementIndex[el] = i
	}

	w := mat.NewDense(len(elements), len(species), nil)
	for j, sp := range species {
		for el, c := range sp.Formula {
			w.Set(elementIndex[el], j, c)
		}
	}

	return &System{
		species:      species,
		elements:     elements,
		speciesIndex: speciesIndex,
		elementIndex: elementIndex,
		w:            w,
	}, nil
}

// NumSpecies returns the number of species in the system.
func (s *System) NumSpecies() int { return len(s.species) }

// NumElements returns the number of elements in the system.
func (s *System) NumElements() int { return len(s.elements) }

// Species returns the species list. The slice must not be modified.
func (s *System) Species() []Species { return s.species }

// Elements returns the element symbols in system order.
func (s *System) Elements() []string { return s.elements }

// SpeciesIndex returns the index of the named species.
func (s *System) SpeciesIndex(name string) (int, bool) {
	i, ok := s.speciesIndex[name]
	return i, ok
}

// ElementIndex returns the index of the named element.
func (s *System) ElementIndex(name string) (int, bool) {
	i, ok := s.elementIndex[name]
	return i, ok
}

// FormulaMatrix returns the elements x species formula matrix. The returned
// matrix must not be modified.
func (s *System) FormulaMatrix() *mat.Dense { return s.w }

// Vector pairs a value vector with its Jacobian with respect to the species
// amounts. Dn has one row per entry of Val and one column per species.
type Vector struct {
	Val []float64
	Dn  *mat.Dense
}

// NewVector allocates a Vector of the given length over n species.
func NewVector(length, n int) *Vector {
	return &Vector{
		Val: make([]float64, length),
		Dn:  mat.NewDense(length, n, nil),
	}
}

// Activities evaluates the species activities and their composition-Jacobian
// at the given temperature, pressure and amounts. The result is written into
// out, which must be sized NumSpecies x NumSpecies.
func (s *System) Activities(T, P float64, n []float64, out *Vector) {
	out.Dn.Zero()

	// Total amount over the mole-fraction subset.
	var ntot float64
	for i, sp := range s.species {
		if sp.Activity == ActivityMoleFraction {
			ntot += n[i]
		}
	}

	for i, sp := range s.species {
		switch sp.Activity {
		case ActivityMolar:
			out.Val[i] = n[i]
			out.Dn.Set(i, i, 1)
		case ActivityMoleFraction:
			if ntot <= 0 {
				out.Val[i] = 0
				continue
			}
			out.Val[i] = n[i] / ntot
			for j, spj := range s.species {
				if spj.Activity != ActivityMoleFraction {
					continue
				}
				d := -n[i] / (ntot * ntot)
				if j == i {
					d += 1 / ntot
				}
				out.Dn.Set(i, j, d)
			}
		case ActivityPure:
			out.Val[i] = 1
		}
	}
}
