package chem

import (
	"fmt"
	"math"
)

// FirstOrder returns a rate law r = k(T) n_i for the named species.
// The returned func reuses an internal gradient buffer and is not safe for
// concurrent use.
func FirstOrder(system *System, species string, k Arrhenius) (RateFunc, error) {
	i, ok := system.SpeciesIndex(species)
	if !ok {
		return nil, fmt.Errorf("chem: first-order rate references unknown species %q", species)
	}
	grad := make([]float64, system.NumSpecies())
	return func(T, P float64, n []float64, a *Vector) (float64, []float64) {
		kT := k.At(T)
		for j := range grad {
			grad[j] = 0
		}
		grad[i] = kT
		return kT * n[i], grad
	}, nil
}

// MassAction returns a rate law
//
//	r = kf(T) Π a_i^(-ν_i)  -  kr(T) Π a_j^(ν_j)
//
// with the first product over the reactants (negative coefficients in stoich)
// and the second over the products. The gradient is assembled through the
// activity Jacobian by the product rule. The returned func reuses internal
// buffers and is not safe for concurrent use.
func MassAction(system *System, stoich map[string]float64, kf, kr Arrhenius) (RateFunc, error) {
	type term struct {
		index int
		power float64
	}
	var reactants, products []term
	for name, coeff := range stoich {
		i, ok := system.SpeciesIndex(name)
		if !ok {
			return nil, fmt.Errorf("chem: mass-action rate references unknown species %q", name)
		}
		switch {
		case coeff < 0:
			reactants = append(reactants, term{i, -coeff})
		case coeff > 0:
			products = append(products, term{i, coeff})
		}
	}

	N := system.NumSpecies()
	grad := make([]float64, N)
	tgrad := make([]float64, N)

	// product computes Π a^p and accumulates scale * d(Π a^p)/dn into grad.
	product := func(terms []term, a *Vector, scale float64) float64 {
		prod := 1.0
		for _, t := range terms {
			prod *= pow(a.Val[t.index], t.power)
		}
		for _, t := range terms {
			// derivative contribution of factor t: p a^(p-1) Π others
			other := 1.0
			for _, s := range terms {
				if s.index == t.index {
					continue
				}
				other *= pow(a.Val[s.index], s.power)
			}
			d := t.power * pow(a.Val[t.index], t.power-1) * other
			for j := 0; j < N; j++ {
				tgrad[j] += scale * d * a.Dn.At(t.index, j)
			}
		}
		return prod
	}

	return func(T, P float64, n []float64, a *Vector) (float64, []float64) {
		for j := range tgrad {
			tgrad[j] = 0
		}
		fwd := product(reactants, a, kf.At(T))
		rev := product(products, a, -kr.At(T))
		copy(grad, tgrad)
		return kf.At(T)*fwd - kr.At(T)*rev, grad
	}, nil
}

// pow is math.Pow with the integer fast paths the rate laws hit constantly.
func pow(x, p float64) float64 {
	switch p {
	case 0:
		return 1
	case 1:
		return x
	case 2:
		return x * x
	}
	if x == 0 && p < 0 {
		return 0
	}
	return math.Pow(x, p)
}
