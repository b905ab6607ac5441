package chem

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Partition splits the species of a system into an equilibrium subset
// (assumed to equilibrate instantaneously) and a kinetic subset (governed by
// finite-rate laws). Element index sets follow from the species sets: an
// element belongs to a subset if it appears in any of that subset's species.
// Both species sets index into the one backing species list of the System;
// they are disjoint and together cover every species.
type Partition struct {
	system *System

	speciesE []int // equilibrium species indices, ascending
	speciesK []int // kinetic species indices, ascending

	elementsE []int // elements present in equilibrium species, ascending
	elementsK []int // elements present in kinetic species, ascending

	we *mat.Dense // formula matrix restricted to equilibrium elements/species
}

// NewPartition returns the default partition in which every species is in
// the equilibrium subset.
func NewPartition(system *System) *Partition {
	p, _ := PartitionWithKinetic(system, nil)
	return p
}

// PartitionWithKinetic builds a partition with the named species kinetic and
// all remaining species in the equilibrium subset. Unknown or repeated names
// are configuration errors.
func PartitionWithKinetic(system *System, kinetic []string) (*Partition, error) {
	isKinetic := make(map[int]bool, len(kinetic))
	for _, name := range kinetic {
		i, ok := system.SpeciesIndex(name)
		if !ok {
			return nil, fmt.Errorf("chem: partition references unknown species %q", name)
		}
		if isKinetic[i] {
			return nil, fmt.Errorf("chem: species %q listed twice in partition", name)
		}
		isKinetic[i] = true
	}

	p := &Partition{system: system}
	for i := 0; i < system.NumSpecies(); i++ {
		if isKinetic[i] {
			p.speciesK = append(p.speciesK, i)
		} else {
			p.speciesE = append(p.speciesE, i)
		}
	}
	p.elementsE = elementsOf(system, p.speciesE)
	p.elementsK = elementsOf(system, p.speciesK)

	// Formula sub-matrix: equilibrium elements x equilibrium species.
	// Nil when the equilibrium subset is empty.
	if len(p.elementsE) > 0 && len(p.speciesE) > 0 {
		w := system.FormulaMatrix()
		p.we = mat.NewDense(len(p.elementsE), len(p.speciesE), nil)
		for r, e := range p.elementsE {
			for c, j := range p.speciesE {
				p.we.Set(r, c, w.At(e, j))
			}
		}
	}
	return p, nil
}

// ParsePartition builds a partition from a specification string of the form
//
//	"kinetic = Calcite Magnesite"
//
// naming the kinetic species (whitespace separated). An "equilibrium = ..."
// form names the equilibrium subset instead, with the rest kinetic.
func ParsePartition(system *System, spec string) (*Partition, error) {
	side, list, ok := strings.Cut(spec, "=")
	if !ok {
		return nil, fmt.Errorf("chem: malformed partition spec %q (want \"kinetic = ...\")", spec)
	}
	names := strings.Fields(list)
	switch strings.TrimSpace(side) {
	case "kinetic":
		return PartitionWithKinetic(system, names)
	case "equilibrium":
		inEquilibrium := make(map[string]bool, len(names))
		for _, name := range names {
			if _, ok := system.SpeciesIndex(name); !ok {
				return nil, fmt.Errorf("chem: partition references unknown species %q", name)
			}
			inEquilibrium[name] = true
		}
		var kinetic []string
		for _, sp := range system.Species() {
			if !inEquilibrium[sp.Name] {
				kinetic = append(kinetic, sp.Name)
			}
		}
		return PartitionWithKinetic(system, kinetic)
	default:
		return nil, fmt.Errorf("chem: malformed partition spec %q (unknown subset %q)", spec, strings.TrimSpace(side))
	}
}

// System returns the partitioned system.
func (p *Partition) System() *System { return p.system }

// EquilibriumSpecies returns the indices of the equilibrium species.
func (p *Partition) EquilibriumSpecies() []int { return p.speciesE }

// KineticSpecies returns the indices of the kinetic species.
func (p *Partition) KineticSpecies() []int { return p.speciesK }

// EquilibriumElements returns the indices of the elements present in the
// equilibrium species.
func (p *Partition) EquilibriumElements() []int { return p.elementsE }

// KineticElements returns the indices of the elements present in the kinetic
// species.
func (p *Partition) KineticElements() []int { return p.elementsK }

// FormulaMatrixEquilibrium returns the formula matrix restricted to the
// equilibrium elements (rows) and equilibrium species (columns). The returned
// matrix must not be modified.
func (p *Partition) FormulaMatrixEquilibrium() *mat.Dense { return p.we }

// ElementAmountsEquilibrium computes be = We ne, the abundance of the
// equilibrium elements carried by the equilibrium species, into dst
// (allocated if nil).
func (p *Partition) ElementAmountsEquilibrium(state *State, dst []float64) []float64 {
	if dst == nil {
		dst = make([]float64, len(p.elementsE))
	}
	n := state.Amounts()
	for r := range p.elementsE {
		var b float64
		for c, j := range p.speciesE {
			b += p.we.At(r, c) * n[j]
		}
		dst[r] = b
	}
	return dst
}

func elementsOf(system *System, species []int) []int {
	w := system.FormulaMatrix()
	present := make(map[int]bool)
	for _, j := range species {
		for e := 0; e < system.NumElements(); e++ {
			if w.At(e, j) != 0 {
				present[e] = true
			}
		}
	}
	list := make([]int, 0, len(present))
	for e := range present {
		list = append(list, e)
	}
	sort.Ints(list)
	return list
}
