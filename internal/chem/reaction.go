package chem

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// GasConstant is the molar gas constant in J/(mol K).
const GasConstant = 8.314462618

// Arrhenius is a temperature-dependent rate constant
// k(T) = A exp(-Ea / (R T)), with A in the rate's units and Ea in J/mol.
type Arrhenius struct {
	A  float64
	Ea float64
}

// At returns the rate constant at temperature T.
func (a Arrhenius) At(T float64) float64 {
	if a.Ea == 0 {
		return a.A
	}
	return a.A * math.Exp(-a.Ea/(GasConstant*T))
}

// RateFunc evaluates a reaction rate in mol/s. It returns the rate value and
// its gradient with respect to the species amounts (length NumSpecies).
// Activities a are the ones evaluated at the same (T, P, n).
type RateFunc func(T, P float64, n []float64, a *Vector) (float64, []float64)

// Reaction is a kinetically-controlled reaction: stoichiometry (products
// positive) and a rate law.
type Reaction struct {
	Name          string
	Stoichiometry map[string]float64 // species name -> coefficient
	Rate          RateFunc
}

// ReactionSystem holds the kinetically-controlled reactions of a chemical
// system and their stoichiometric matrix.
type ReactionSystem struct {
	system    *System
	reactions []Reaction
	index     map[string]int
	s         *mat.Dense // reactions x species
}

// NewReactionSystem builds a ReactionSystem over the given chemical system.
// Every species referenced by a reaction must exist in the system, and every
// reaction must have a rate law.
func NewReactionSystem(system *System, reactions []Reaction) (*ReactionSystem, error) {
	if len(reactions) == 0 {
		return nil, fmt.Errorf("chem: reaction system needs at least one reaction")
	}
	index := make(map[string]int, len(reactions))
	s := mat.NewDense(len(reactions), system.NumSpecies(), nil)
	for r, rxn := range reactions {
		if rxn.Rate == nil {
			return nil, fmt.Errorf("chem: reaction %q has no rate law", rxn.Name)
		}
		if rxn.Name != "" {
			if _, ok := index[rxn.Name]; ok {
				return nil, fmt.Errorf("chem: duplicate reaction %q", rxn.Name)
			}
			index[rxn.Name] = r
		}
		for name, coeff := range rxn.Stoichiometry {
			j, ok := system.SpeciesIndex(name)
			if !ok {
				return nil, fmt.Errorf("chem: reaction %q references unknown species %q", rxn.Name, name)
			}
			s.Set(r, j, coeff)
		}
	}
	return &ReactionSystem{
		system:    system,
		reactions: reactions,
		index:     index,
		s:         s,
	}, nil
}

// System returns the underlying chemical system.
func (rs *ReactionSystem) System() *System { return rs.system }

// NumReactions returns the number of reactions.
func (rs *ReactionSystem) NumReactions() int { return len(rs.reactions) }

// Reactions returns the reaction list. The slice must not be modified.
func (rs *ReactionSystem) Reactions() []Reaction { return rs.reactions }

// Index returns the index of the named reaction.
func (rs *ReactionSystem) Index(name string) (int, bool) {
	i, ok := rs.index[name]
	return i, ok
}

// StoichiometricMatrix returns the reactions x species stoichiometric matrix.
// The returned matrix must not be modified.
func (rs *ReactionSystem) StoichiometricMatrix() *mat.Dense { return rs.s }

// Rates evaluates all reaction rates and their composition-Jacobian at the
// given conditions. out must be sized NumReactions x NumSpecies.
func (rs *ReactionSystem) Rates(T, P float64, n []float64, a *Vector, out *Vector) {
	out.Dn.Zero()
	for r, rxn := range rs.reactions {
		val, grad := rxn.Rate(T, P, n, a)
		out.Val[r] = val
		for j, g := range grad {
			out.Dn.Set(r, j, g)
		}
	}
}
