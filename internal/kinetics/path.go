package kinetics

import (
	"fmt"
	"math"

	"github.com/san-kum/kinpath/internal/chem"
	"github.com/san-kum/kinpath/internal/ode"
	"gonum.org/v1/gonum/mat"
)

// floorThreshold is the amount below which a negative derivative component
// is clamped to zero, preventing the integrator from driving an already
// depleted quantity negative through round-off.
const floorThreshold = 1e-50

// EquilibriumSolver resolves the equilibrium subset of the partition.
// Solve mutates the state so the equilibrium species amounts are consistent
// with the target elemental abundance be; Sensitivity returns d(ne)/d(be)
// at the resolved composition.
type EquilibriumSolver interface {
	Solve(state *chem.State, be []float64) error
	Sensitivity(state *chem.State) (*mat.Dense, error)
}

// Integrator is the adaptive stepping scheme the path delegates to.
// *ode.Solver satisfies it.
type Integrator interface {
	SetProblem(p ode.Problem) error
	Initialize(t0 float64, u0 []float64) error
	Integrate(t *float64, u []float64, tfinal float64) error
	Solve(t *float64, dt float64, u []float64) error
}

// EquilibriumFunc builds the equilibrium resolver for a partition; used by
// SetPartitionSpec, where the partition does not exist until the spec string
// is parsed.
type EquilibriumFunc func(*chem.Partition) (EquilibriumSolver, error)

// Observer consumes consistent (state, t) pairs after each internal step of
// a Solve call. Reporting is delegated, never computed, by the path.
type Observer interface {
	OnStep(state *chem.State, t float64)
}

// phase is the explicit lifecycle of a Path.
type phase int

const (
	phaseUninitialized phase = iota
	phaseInitialized
	phaseIntegrating
	phaseFinalized
)

// Path drives a chemical state through time under the partition's split:
// kinetic species by their rate laws, equilibrium species by nested
// equilibrium resolves. All buffers are owned by the Path and reused.
type Path struct {
	reactions *chem.ReactionSystem
	system    *chem.System
	integ     Integrator

	partition *chem.Partition
	eq        EquilibriumSolver

	speciesE, speciesK []int
	ee, nk, ne         int // set sizes: equilibrium elements, kinetic and equilibrium species

	we     *mat.Dense // Ee x Ne formula sub-matrix
	se, sk *mat.Dense // R x Ne, R x Nk stoichiometric sub-matrices
	a      *mat.Dense // (Ee+Nk) x R coefficient matrix

	// integration variable and its pieces
	u, be, nkAmounts, neAmounts []float64

	// evaluation buffers
	act, rates *chem.Vector
	re, rk     *mat.Dense // rate Jacobian restricted to each subset
	rmat       *mat.Dense // [Re Be | Rk], R x (Ee+Nk)

	phase     phase
	bound     *chem.State
	evalErr   error // fatal error raised inside a callback
	observers []Observer
}

// New creates a path for the given reactions, delegating the stepping to
// integ. A partition must be set before Initialize.
func New(reactions *chem.ReactionSystem, integ Integrator) *Path {
	sys := reactions.System()
	return &Path{
		reactions: reactions,
		system:    sys,
		integ:     integ,
		act:       chem.NewVector(sys.NumSpecies(), sys.NumSpecies()),
		rates:     chem.NewVector(reactions.NumReactions(), sys.NumSpecies()),
	}
}

// AddObserver registers an observer notified after each internal step of a
// Solve call.
func (p *Path) AddObserver(o Observer) { p.observers = append(p.observers, o) }

// SetPartition installs the partition and its equilibrium resolver, rebuilds
// the coefficient matrix and resizes every buffer sized by Ee+Nk. The
// partition must belong to the path's chemical system, and eq must be
// non-nil whenever the equilibrium subset is non-empty.
func (p *Path) SetPartition(part *chem.Partition, eq EquilibriumSolver) error {
	if part == nil {
		return fmt.Errorf("kinetics: nil partition")
	}
	if part.System() != p.system {
		return fmt.Errorf("kinetics: partition belongs to a different chemical system")
	}
	if len(part.EquilibriumSpecies()) > 0 && eq == nil {
		return fmt.Errorf("kinetics: partition has equilibrium species but no equilibrium solver")
	}

	p.partition = part
	p.eq = eq
	p.speciesE = part.EquilibriumSpecies()
	p.speciesK = part.KineticSpecies()
	p.ee = len(part.EquilibriumElements())
	p.ne = len(p.speciesE)
	p.nk = len(p.speciesK)
	p.we = part.FormulaMatrixEquilibrium()

	s := p.reactions.StoichiometricMatrix()
	r := p.reactions.NumReactions()
	p.se = columns(s, p.speciesE)
	p.sk = columns(s, p.speciesK)

	// A = [We Se^T; Sk^T]
	p.a = mat.NewDense(p.ee+p.nk, r, nil)
	if p.ee > 0 {
		var top mat.Dense
		top.Mul(p.we, p.se.T())
		p.a.Slice(0, p.ee, 0, r).(*mat.Dense).Copy(&top)
	}
	if p.nk > 0 {
		p.a.Slice(p.ee, p.ee+p.nk, 0, r).(*mat.Dense).Copy(p.sk.T())
	}

	p.u = make([]float64, p.ee+p.nk)
	p.be = make([]float64, p.ee)
	p.nkAmounts = make([]float64, p.nk)
	p.neAmounts = make([]float64, p.ne)
	p.re = mat.NewDense(r, max(p.ne, 1), nil)
	p.rk = mat.NewDense(r, max(p.nk, 1), nil)
	p.rmat = mat.NewDense(r, p.ee+p.nk, nil)

	p.phase = phaseUninitialized
	p.bound = nil
	return nil
}

// SetPartitionSpec parses a partition specification string (see
// [chem.ParsePartition]) and installs it, building the equilibrium resolver
// through eqFor.
func (p *Path) SetPartitionSpec(spec string, eqFor EquilibriumFunc) error {
	part, err := chem.ParsePartition(p.system, spec)
	if err != nil {
		return err
	}
	var eq EquilibriumSolver
	if len(part.EquilibriumSpecies()) > 0 && eqFor != nil {
		if eq, err = eqFor(part); err != nil {
			return fmt.Errorf("kinetics: building equilibrium solver: %w", err)
		}
	}
	return p.SetPartition(part, eq)
}

// CoefficientMatrix returns the fixed map from reaction rates to du/dt.
// The returned matrix must not be modified.
func (p *Path) CoefficientMatrix() *mat.Dense { return p.a }

// RHS evaluates du/dt at (t, u) against the given state. The state's kinetic
// amounts are overwritten from u and its equilibrium subset re-resolved; on
// a non-finite u nothing is touched and the integrator is told to shrink the
// step.
func (p *Path) RHS(state *chem.State, t float64, u, f []float64) ode.Status {
	for _, v := range u {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ode.StatusRetry
		}
	}

	be := u[:p.ee]
	nk := u[p.ee:]
	state.SetAmounts(nk, p.speciesK)
	if p.ne > 0 {
		if err := p.eq.Solve(state, be); err != nil {
			p.evalErr = fmt.Errorf("%w: %v", ErrEquilibriumFailed, err)
			return ode.StatusFatal
		}
	}

	n := state.Amounts()
	T, P := state.Temperature(), state.Pressure()
	p.system.Activities(T, P, n, p.act)
	p.reactions.Rates(T, P, n, p.act, p.rates)

	fv := mat.NewVecDense(len(f), f)
	fv.MulVec(p.a, mat.NewVecDense(len(p.rates.Val), p.rates.Val))

	// Keep depleted quantities from being driven negative by round-off.
	for i := range u {
		if math.Abs(u[i]) < floorThreshold && f[i] < 0 {
			f[i] = 0
		}
	}
	return ode.StatusOK
}

// Jacobian evaluates d(du/dt)/du at (t, u) against the given state, through
// the equilibrium sensitivity Be = d(ne)/d(be):
//
//	jac = A [Re Be | Rk]
func (p *Path) Jacobian(state *chem.State, t float64, u []float64, jac *mat.Dense) ode.Status {
	for _, v := range u {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ode.StatusRetry
		}
	}

	be := u[:p.ee]
	nk := u[p.ee:]
	state.SetAmounts(nk, p.speciesK)
	if p.ne > 0 {
		if err := p.eq.Solve(state, be); err != nil {
			p.evalErr = fmt.Errorf("%w: %v", ErrEquilibriumFailed, err)
			return ode.StatusFatal
		}
	}

	n := state.Amounts()
	T, P := state.Temperature(), state.Pressure()
	p.system.Activities(T, P, n, p.act)
	p.reactions.Rates(T, P, n, p.act, p.rates)

	// Columns of the rate Jacobian restricted to each subset.
	gatherColumns(p.re, p.rates.Dn, p.speciesE)
	gatherColumns(p.rk, p.rates.Dn, p.speciesK)

	if p.ne > 0 && p.ee > 0 {
		sens, err := p.eq.Sensitivity(state)
		if err != nil {
			p.evalErr = fmt.Errorf("%w: %v", ErrEquilibriumFailed, err)
			return ode.StatusFatal
		}
		var left mat.Dense
		left.Mul(p.re, sens)
		p.rmat.Slice(0, p.reactions.NumReactions(), 0, p.ee).(*mat.Dense).Copy(&left)
	}
	if p.nk > 0 {
		p.rmat.Slice(0, p.reactions.NumReactions(), p.ee, p.ee+p.nk).(*mat.Dense).Copy(p.rk)
	}

	jac.Mul(p.a, p.rmat)
	return ode.StatusOK
}

// Initialize binds the path to state at time t0: reads T and P, assembles
// u0 = [We ne; nk] from the current amounts and hands the problem to the
// integrator.
func (p *Path) Initialize(state *chem.State, t0 float64) error {
	if p.partition == nil {
		return ErrNoPartition
	}

	p.assemble(state)
	p.bound = state
	p.evalErr = nil

	prob := ode.Problem{
		N: p.ee + p.nk,
		Func: func(t float64, u, f []float64) ode.Status {
			return p.RHS(p.bound, t, u, f)
		},
		Jac: func(t float64, u []float64, jac *mat.Dense) ode.Status {
			return p.Jacobian(p.bound, t, u, jac)
		},
	}
	if err := p.integ.SetProblem(prob); err != nil {
		return fmt.Errorf("kinetics: %w", err)
	}
	if err := p.integ.Initialize(t0, p.u); err != nil {
		return fmt.Errorf("kinetics: %w", err)
	}
	p.phase = phaseInitialized
	return nil
}

// Step advances one internal integrator step, unbounded in time.
func (p *Path) Step(state *chem.State, t *float64) error {
	return p.StepTo(state, t, math.Inf(1))
}

// StepTo advances one internal integrator step bounded by tfinal, mutating
// t and state in place. After the step the kinetic amounts are written back
// and the equilibrium subset re-resolved, so the state is fully consistent
// at the new time.
func (p *Path) StepTo(state *chem.State, t *float64, tfinal float64) error {
	if p.phase == phaseUninitialized {
		return ErrNotInitialized
	}
	if state != p.bound {
		return ErrStateMismatch
	}

	// Honor amounts mutated by the caller since the last step.
	p.assemble(state)

	p.evalErr = nil
	if err := p.integ.Integrate(t, p.u, tfinal); err != nil {
		return p.wrap("step", *t, err)
	}
	if err := p.commit(state, *t); err != nil {
		return err
	}
	p.phase = phaseIntegrating
	return nil
}

// Solve integrates the path from t to t+dt, leaving the state consistent at
// the final time. With observers registered, the state is committed and
// reported after every internal step; otherwise the integrator runs the
// whole interval and the state is committed once at the end.
func (p *Path) Solve(state *chem.State, t, dt float64) error {
	if err := p.Initialize(state, t); err != nil {
		return err
	}

	tc := t
	tfinal := t + dt
	if len(p.observers) == 0 {
		p.evalErr = nil
		if err := p.integ.Solve(&tc, dt, p.u); err != nil {
			return p.wrap("solve", tc, err)
		}
		if err := p.commit(state, tc); err != nil {
			return err
		}
	} else {
		for _, o := range p.observers {
			o.OnStep(state, tc)
		}
		for tc < tfinal {
			if err := p.StepTo(state, &tc, tfinal); err != nil {
				return err
			}
			for _, o := range p.observers {
				o.OnStep(state, tc)
			}
		}
	}
	p.phase = phaseFinalized
	return nil
}

// assemble gathers u = [We ne; nk] from the state's current amounts.
func (p *Path) assemble(state *chem.State) {
	state.AmountsAt(p.speciesK, p.nkAmounts)
	p.partition.ElementAmountsEquilibrium(state, p.be)
	copy(p.u[:p.ee], p.be)
	copy(p.u[p.ee:], p.nkAmounts)
}

// commit decomposes u back into the state: kinetic amounts written, then the
// equilibrium subset resolved against be. Fatal if the resolve fails.
func (p *Path) commit(state *chem.State, t float64) error {
	copy(p.be, p.u[:p.ee])
	copy(p.nkAmounts, p.u[p.ee:])
	state.SetAmounts(p.nkAmounts, p.speciesK)
	if p.ne > 0 {
		if err := p.eq.Solve(state, p.be); err != nil {
			return p.wrap("equilibrium resolve", t, fmt.Errorf("%w: %v", ErrEquilibriumFailed, err))
		}
	}
	return nil
}

// wrap attaches time context, preferring a fatal error recorded by a
// callback over the integrator's generic failure.
func (p *Path) wrap(op string, t float64, err error) error {
	if p.evalErr != nil {
		err = p.evalErr
	}
	return &PathError{Time: t, Op: op, Wrapped: err}
}

// columns extracts the given columns of m into a new matrix.
func columns(m *mat.Dense, cols []int) *mat.Dense {
	r, _ := m.Dims()
	out := mat.NewDense(r, max(len(cols), 1), nil)
	for c, j := range cols {
		for i := 0; i < r; i++ {
			out.Set(i, c, m.At(i, j))
		}
	}
	return out
}

// gatherColumns copies the given columns of src into dst.
func gatherColumns(dst, src *mat.Dense, cols []int) {
	r, _ := src.Dims()
	for c, j := range cols {
		for i := 0; i < r; i++ {
			dst.Set(i, c, src.At(i, j))
		}
	}
}
