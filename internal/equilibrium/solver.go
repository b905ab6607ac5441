// Package equilibrium resolves the instantaneously-equilibrated subset of a
// partitioned chemical system.
//
// Given a target abundance be of the equilibrium elements, [Solver.Solve]
// finds equilibrium-species amounts ne satisfying the element balances
// We ne = be together with the configured mass-action conditions
// Σ ν ln a = ln K, by Newton iteration on the log-amounts. The kinetic
// species are held fixed; they enter only through the activity model.
// [Solver.Sensitivity] returns the derivative of the resolved amounts with
// respect to the target abundance, which the kinetic path needs for
// consistent Jacobians.
package equilibrium

import (
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/kinpath/internal/chem"
	"github.com/san-kum/kinpath/internal/thermo"
	"gonum.org/v1/gonum/mat"
)

// ErrNoConvergence indicates the Newton iteration did not converge within
// MaxIterations.
var ErrNoConvergence = errors.New("equilibrium: iteration did not converge")

// LnKFunc returns the natural log of an equilibrium constant at (T, P).
type LnKFunc func(T, P float64) float64

// ConstantLnK returns a temperature-independent equilibrium constant.
func ConstantLnK(v float64) LnKFunc {
	return func(T, P float64) float64 { return v }
}

// InterpolatedLnK returns ln K interpolated over a temperature grid.
func InterpolatedLnK(in *thermo.Interpolator) LnKFunc {
	return func(T, P float64) float64 { return in.At(T) }
}

// BilinearLnK returns ln K interpolated over a temperature x pressure grid.
func BilinearLnK(b *thermo.Bilinear) LnKFunc {
	return func(T, P float64) float64 { return b.At(T, P) }
}

// Constraint is a mass-action condition among equilibrium species:
// Σ ν_i ln a_i = ln K, with products positive.
type Constraint struct {
	Name          string
	Stoichiometry map[string]float64 // species name -> coefficient
	LnK           LnKFunc
}

// Options tune the Newton iteration.
type Options struct {
	Tolerance     float64 // residual tolerance; default 1e-10
	MaxIterations int     // default 100
	MinAmount     float64 // floor for amounts entering logs; default 1e-14
	MaxLogStep    float64 // Newton step clamp in log space; default 5
}

func (o *Options) defaults() {
	if o.Tolerance <= 0 {
		o.Tolerance = 1e-10
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = 100
	}
	if o.MinAmount <= 0 {
		o.MinAmount = 1e-14
	}
	if o.MaxLogStep <= 0 {
		o.MaxLogStep = 5
	}
}

// Solver resolves the equilibrium subset of one partition. A Solver owns its
// work buffers and must not be shared between goroutines.
type Solver struct {
	part *chem.Partition
	sys  *chem.System
	cons []Constraint
	nu   *mat.Dense // constraints x equilibrium species (local columns)
	opts Options

	// buffers
	ne, z, dz, res []float64
	jac            *mat.Dense
	act            *chem.Vector
	qr             mat.QR
}

// NewSolver builds a solver for the equilibrium subset of part. Constraints
// may reference equilibrium species only, and together with the element
// balances they must determine the subset: rank(We) + len(constraints) must
// equal the number of equilibrium species.
func NewSolver(part *chem.Partition, constraints []Constraint, opts Options) (*Solver, error) {
	opts.defaults()
	sys := part.System()
	ne := len(part.EquilibriumSpecies())
	ee := len(part.EquilibriumElements())
	if ne == 0 {
		return nil, fmt.Errorf("equilibrium: partition has no equilibrium species")
	}

	local := make(map[int]int, ne) // global species index -> local column
	for c, j := range part.EquilibriumSpecies() {
		local[j] = c
	}

	var nu *mat.Dense
	if len(constraints) > 0 {
		nu = mat.NewDense(len(constraints), ne, nil)
		for r, con := range constraints {
			if con.LnK == nil {
				return nil, fmt.Errorf("equilibrium: constraint %q has no ln K", con.Name)
			}
			for name, coeff := range con.Stoichiometry {
				j, ok := sys.SpeciesIndex(name)
				if !ok {
					return nil, fmt.Errorf("equilibrium: constraint %q references unknown species %q", con.Name, name)
				}
				c, ok := local[j]
				if !ok {
					return nil, fmt.Errorf("equilibrium: constraint %q references kinetic species %q", con.Name, name)
				}
				nu.Set(r, c, coeff)
			}
		}
	}

	if rank := matrixRank(part.FormulaMatrixEquilibrium()); rank+len(constraints) != ne {
		return nil, fmt.Errorf("equilibrium: %d element balances (rank %d) and %d constraints do not determine %d species",
			ee, rank, len(constraints), ne)
	}

	return &Solver{
		part: part,
		sys:  sys,
		cons: constraints,
		nu:   nu,
		opts: opts,
		ne:   make([]float64, ne),
		z:    make([]float64, ne),
		dz:   make([]float64, ne),
		res:  make([]float64, ee+len(constraints)),
		jac:  mat.NewDense(ee+len(constraints), ne, nil),
		act:  chem.NewVector(sys.NumSpecies(), sys.NumSpecies()),
	}, nil
}

// Solve mutates state so that the equilibrium-species amounts are consistent
// with the target elemental abundance be at the state's temperature and
// pressure. The kinetic species amounts are left untouched. On failure the
// equilibrium amounts are left at the last iterate.
func (s *Solver) Solve(state *chem.State, be []float64) error {
	ispecies := s.part.EquilibriumSpecies()
	ee := len(s.part.EquilibriumElements())
	if len(be) != ee {
		return fmt.Errorf("equilibrium: be has %d entries, partition has %d equilibrium elements", len(be), ee)
	}

	T, P := state.Temperature(), state.Pressure()
	n := state.Amounts()

	// Warm start from the state's current amounts, floored for the logs.
	state.AmountsAt(ispecies, s.ne)
	for c := range s.ne {
		if s.ne[c] < s.opts.MinAmount {
			s.ne[c] = s.opts.MinAmount
		}
		s.z[c] = math.Log(s.ne[c])
	}

	for iter := 0; iter < s.opts.MaxIterations; iter++ {
		state.SetAmounts(s.ne, ispecies)
		s.sys.Activities(T, P, n, s.act)

		if s.residual(T, P, be) <= s.opts.Tolerance {
			return nil
		}

		s.jacobianLog()
		dz := mat.NewVecDense(len(s.dz), s.dz)
		r := mat.NewVecDense(len(s.res), s.res)
		s.qr.Factorize(s.jac)
		if err := s.qr.SolveVecTo(dz, false, r); err != nil {
			return fmt.Errorf("equilibrium: singular Newton system: %w", err)
		}

		for c := range s.z {
			step := -s.dz[c]
			if step > s.opts.MaxLogStep {
				step = s.opts.MaxLogStep
			} else if step < -s.opts.MaxLogStep {
				step = -s.opts.MaxLogStep
			}
			s.z[c] += step
			s.ne[c] = math.Exp(s.z[c])
			if s.ne[c] < s.opts.MinAmount {
				s.ne[c] = s.opts.MinAmount
				s.z[c] = math.Log(s.ne[c])
			}
		}
	}
	return fmt.Errorf("%w after %d iterations", ErrNoConvergence, s.opts.MaxIterations)
}

// Sensitivity returns Be = d(ne)/d(be), the derivative of the resolved
// equilibrium amounts with respect to the target elemental abundance,
// evaluated at the state's current composition. The result has one row per
// equilibrium species and one column per equilibrium element.
func (s *Solver) Sensitivity(state *chem.State) (*mat.Dense, error) {
	ispecies := s.part.EquilibriumSpecies()
	ee := len(s.part.EquilibriumElements())
	ne := len(ispecies)
	nc := len(s.cons)

	T, P := state.Temperature(), state.Pressure()
	n := state.Amounts()
	s.sys.Activities(T, P, n, s.act)

	// System matrix in amount space: element balances over the mass-action
	// rows; differentiating F(ne, be) = 0 gives J d(ne)/d(be) = [I; 0].
	jn := mat.NewDense(ee+nc, ne, nil)
	we := s.part.FormulaMatrixEquilibrium()
	for e := 0; e < ee; e++ {
		for c := 0; c < ne; c++ {
			jn.Set(e, c, we.At(e, c))
		}
	}
	for r := 0; r < nc; r++ {
		for c, jc := range ispecies {
			var d float64
			for i, ji := range ispecies {
				coeff := s.nu.At(r, i)
				if coeff == 0 {
					continue
				}
				a := s.act.Val[ji]
				if a <= 0 {
					continue
				}
				d += coeff * s.act.Dn.At(ji, jc) / a
			}
			jn.Set(ee+r, c, d)
		}
	}

	rhs := mat.NewDense(ee+nc, ee, nil)
	for e := 0; e < ee; e++ {
		rhs.Set(e, e, 1)
	}

	be := mat.NewDense(ne, ee, nil)
	s.qr.Factorize(jn)
	if err := s.qr.SolveTo(be, false, rhs); err != nil {
		return nil, fmt.Errorf("equilibrium: singular sensitivity system: %w", err)
	}
	return be, nil
}

// residual fills s.res with the current residual and returns its scaled
// max-norm: balance rows relative to 1+|be|, mass-action rows absolute.
func (s *Solver) residual(T, P float64, be []float64) float64 {
	ispecies := s.part.EquilibriumSpecies()
	ee := len(s.part.EquilibriumElements())
	we := s.part.FormulaMatrixEquilibrium()

	worst := 0.0
	for e := 0; e < ee; e++ {
		var b float64
		for c := range ispecies {
			b += we.At(e, c) * s.ne[c]
		}
		s.res[e] = b - be[e]
		if r := math.Abs(s.res[e]) / (1 + math.Abs(be[e])); r > worst {
			worst = r
		}
	}
	for r := 0; r < len(s.cons); r++ {
		var q float64
		for c, jc := range ispecies {
			coeff := s.nu.At(r, c)
			if coeff == 0 {
				continue
			}
			a := s.act.Val[jc]
			if a <= 0 {
				a = s.opts.MinAmount
			}
			q += coeff * math.Log(a)
		}
		s.res[ee+r] = q - s.cons[r].LnK(T, P)
		if v := math.Abs(s.res[ee+r]); v > worst {
			worst = v
		}
	}
	return worst
}

// jacobianLog fills s.jac with the residual Jacobian with respect to the
// log-amounts z = ln(ne).
func (s *Solver) jacobianLog() {
	ispecies := s.part.EquilibriumSpecies()
	ee := len(s.part.EquilibriumElements())
	we := s.part.FormulaMatrixEquilibrium()

	for e := 0; e < ee; e++ {
		for c := range ispecies {
			s.jac.Set(e, c, we.At(e, c)*s.ne[c])
		}
	}
	for r := 0; r < len(s.cons); r++ {
		for c, jc := range ispecies {
			var d float64
			for i, ji := range ispecies {
				coeff := s.nu.At(r, i)
				if coeff == 0 {
					continue
				}
				a := s.act.Val[ji]
				if a <= 0 {
					continue
				}
				d += coeff * s.act.Dn.At(ji, jc) / a
			}
			s.jac.Set(ee+r, c, d*s.ne[c])
		}
	}
}

// matrixRank counts singular values above a relative threshold.
func matrixRank(m *mat.Dense) int {
	if m == nil {
		return 0
	}
	var svd mat.SVD
	if !svd.Factorize(m, mat.SVDNone) {
		return 0
	}
	values := svd.Values(nil)
	if len(values) == 0 {
		return 0
	}
	tol := 1e-12 * values[0]
	rank := 0
	for _, v := range values {
		if v > tol {
			rank++
		}
	}
	return rank
}
