package kinetics

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/kinpath/internal/chem"
	"github.com/san-kum/kinpath/internal/equilibrium"
	"github.com/san-kum/kinpath/internal/ode"
	"gonum.org/v1/gonum/mat"
)

// decaySystem builds A -> B with A kinetic and B equilibrium, so both the
// elemental block and the kinetic block of u are exercised.
func decaySystem(t *testing.T, k float64) (*chem.ReactionSystem, *chem.Partition, *equilibrium.Solver) {
	t.Helper()
	sys, err := chem.NewSystem([]chem.Species{
		{Name: "A", Formula: map[string]float64{"A": 1}, Activity: chem.ActivityMolar},
		{Name: "B", Formula: map[string]float64{"B": 1}, Activity: chem.ActivityMolar},
	})
	if err != nil {
		t.Fatalf("NewSystem: %v", err)
	}
	rate, err := chem.FirstOrder(sys, "A", chem.Arrhenius{A: k})
	if err != nil {
		t.Fatalf("FirstOrder: %v", err)
	}
	rs, err := chem.NewReactionSystem(sys, []chem.Reaction{
		{
			Name:          "decay",
			Stoichiometry: map[string]float64{"A": -1, "B": 1},
			Rate:          rate,
		},
	})
	if err != nil {
		t.Fatalf("NewReactionSystem: %v", err)
	}
	part, err := chem.PartitionWithKinetic(sys, []string{"A"})
	if err != nil {
		t.Fatalf("PartitionWithKinetic: %v", err)
	}
	eq, err := equilibrium.NewSolver(part, nil, equilibrium.Options{})
	if err != nil {
		t.Fatalf("NewSolver: %v", err)
	}
	return rs, part, eq
}

// kineticOnlySystem builds a one-species system with a caller-supplied rate
// law and no equilibrium subset.
func kineticOnlySystem(t *testing.T, rate chem.RateFunc) (*chem.ReactionSystem, *chem.Partition) {
	t.Helper()
	sys, err := chem.NewSystem([]chem.Species{
		{Name: "A", Formula: map[string]float64{"A": 1}, Activity: chem.ActivityMolar},
	})
	if err != nil {
		t.Fatalf("NewSystem: %v", err)
	}
	rs, err := chem.NewReactionSystem(sys, []chem.Reaction{
		{Name: "r1", Stoichiometry: map[string]float64{"A": -1}, Rate: rate},
	})
	if err != nil {
		t.Fatalf("NewReactionSystem: %v", err)
	}
	part, err := chem.PartitionWithKinetic(sys, []string{"A"})
	if err != nil {
		t.Fatalf("PartitionWithKinetic: %v", err)
	}
	return rs, part
}

func TestCoefficientMatrixDimensions(t *testing.T) {
	rs, part, eq := decaySystem(t, 1.0)
	p := New(rs, ode.NewSolver(ode.DefaultSettings()))
	if err := p.SetPartition(part, eq); err != nil {
		t.Fatalf("SetPartition: %v", err)
	}

	ee := len(part.EquilibriumElements())
	nk := len(part.KineticSpecies())
	r, c := p.CoefficientMatrix().Dims()
	if r != ee+nk || c != rs.NumReactions() {
		t.Fatalf("coefficient matrix is %dx%d, want %dx%d", r, c, ee+nk, rs.NumReactions())
	}

	// A -> B with B equilibrium: du/dt = [r; -r].
	if got := p.CoefficientMatrix().At(0, 0); got != 1 {
		t.Errorf("A[0,0] = %v, want 1", got)
	}
	if got := p.CoefficientMatrix().At(1, 0); got != -1 {
		t.Errorf("A[1,0] = %v, want -1", got)
	}
}

func TestRHSFloorsDepletedAmounts(t *testing.T) {
	// Constant consumption of a species that is already at zero.
	constant := func(T, P float64, n []float64, a *chem.Vector) (float64, []float64) {
		return 1.0, []float64{0}
	}
	rs, part := kineticOnlySystem(t, constant)
	p := New(rs, ode.NewSolver(ode.DefaultSettings()))
	if err := p.SetPartition(part, nil); err != nil {
		t.Fatalf("SetPartition: %v", err)
	}
	state := chem.NewState(rs.System())
	if err := p.Initialize(state, 0); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	f := make([]float64, 1)
	if st := p.RHS(state, 0, []float64{0}, f); st != ode.StatusOK {
		t.Fatalf("RHS status = %v, want OK", st)
	}
	if f[0] != 0 {
		t.Errorf("depleted amount derivative = %v, want 0", f[0])
	}

	// Above the floor the derivative passes through untouched.
	if st := p.RHS(state, 0, []float64{1e-40}, f); st != ode.StatusOK {
		t.Fatalf("RHS status = %v, want OK", st)
	}
	if f[0] != -1 {
		t.Errorf("derivative = %v, want -1", f[0])
	}
}

func TestRHSRejectsNonFiniteInput(t *testing.T) {
	rs, part, eq := decaySystem(t, 1.0)
	p := New(rs, ode.NewSolver(ode.DefaultSettings()))
	if err := p.SetPartition(part, eq); err != nil {
		t.Fatalf("SetPartition: %v", err)
	}
	state := chem.NewState(rs.System())
	if err := state.SetSpeciesAmount("A", 1.0); err != nil {
		t.Fatal(err)
	}
	if err := p.Initialize(state, 0); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	before := append([]float64(nil), state.Amounts()...)
	f := make([]float64, 2)
	for _, bad := range [][]float64{
		{math.NaN(), 1},
		{0, math.Inf(1)},
		{math.Inf(-1), math.NaN()},
	} {
		if st := p.RHS(state, 0, bad, f); st != ode.StatusRetry {
			t.Errorf("RHS(%v) status = %v, want Retry", bad, st)
		}
	}
	for i, v := range state.Amounts() {
		if v != before[i] {
			t.Errorf("state amount %d mutated on rejected input: %v -> %v", i, before[i], v)
		}
	}
}

func TestStepBeforeInitialize(t *testing.T) {
	rs, part, eq := decaySystem(t, 1.0)
	p := New(rs, ode.NewSolver(ode.DefaultSettings()))
	if err := p.SetPartition(part, eq); err != nil {
		t.Fatalf("SetPartition: %v", err)
	}
	state := chem.NewState(rs.System())
	tc := 0.0
	if err := p.Step(state, &tc); err != ErrNotInitialized {
		t.Fatalf("Step before Initialize: %v, want ErrNotInitialized", err)
	}
}

func TestStepRejectsForeignState(t *testing.T) {
	rs, part, eq := decaySystem(t, 1.0)
	p := New(rs, ode.NewSolver(ode.DefaultSettings()))
	if err := p.SetPartition(part, eq); err != nil {
		t.Fatalf("SetPartition: %v", err)
	}
	state := chem.NewState(rs.System())
	if err := state.SetSpeciesAmount("A", 1.0); err != nil {
		t.Fatal(err)
	}
	if err := p.Initialize(state, 0); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	other := chem.NewState(rs.System())
	tc := 0.0
	if err := p.StepTo(other, &tc, 1); err != ErrStateMismatch {
		t.Fatalf("StepTo with foreign state: %v, want ErrStateMismatch", err)
	}
}

func TestSolveZeroRatesLeavesStateUntouched(t *testing.T) {
	zero := func(T, P float64, n []float64, a *chem.Vector) (float64, []float64) {
		return 0, []float64{0}
	}
	rs, part := kineticOnlySystem(t, zero)
	p := New(rs, ode.NewSolver(ode.DefaultSettings()))
	if err := p.SetPartition(part, nil); err != nil {
		t.Fatalf("SetPartition: %v", err)
	}
	state := chem.NewState(rs.System())
	if err := state.SetSpeciesAmount("A", 0.5); err != nil {
		t.Fatal(err)
	}
	if err := p.Solve(state, 0, 10); err != nil {
		t.Fatalf("Solve: %v", err)
	}
	got, _ := state.SpeciesAmount("A")
	if got != 0.5 {
		t.Errorf("A = %v after zero-rate solve, want 0.5", got)
	}
}

func TestSolveFirstOrderDecay(t *testing.T) {
	const k = 0.3
	for _, method := range []ode.Method{ode.Rosenbrock, ode.DormandPrince} {
		set := ode.DefaultSettings()
		set.Method = method
		set.AbsTol = 1e-12
		set.RelTol = 1e-9

		rs, part, eq := decaySystem(t, k)
		p := New(rs, ode.NewSolver(set))
		if err := p.SetPartition(part, eq); err != nil {
			t.Fatalf("SetPartition: %v", err)
		}

		state := chem.NewState(rs.System())
		if err := state.SetSpeciesAmount("A", 1.0); err != nil {
			t.Fatal(err)
		}
		const dt = 10.0
		if err := p.Solve(state, 0, dt); err != nil {
			t.Fatalf("%v: Solve: %v", method, err)
		}

		na, _ := state.SpeciesAmount("A")
		nb, _ := state.SpeciesAmount("B")
		want := math.Exp(-k * dt)
		if rel := math.Abs(na-want) / want; rel > 1e-6 {
			t.Errorf("%v: A = %v, want %v (rel err %v)", method, na, want, rel)
		}
		if total := na + nb; math.Abs(total-1.0) > 1e-8 {
			t.Errorf("%v: total amount = %v, want 1 (conservation)", method, total)
		}
	}
}

type recordingObserver struct {
	times []float64
	a     []float64
}

func (r *recordingObserver) OnStep(state *chem.State, t float64) {
	r.times = append(r.times, t)
	na, _ := state.SpeciesAmount("A")
	r.a = append(r.a, na)
}

func TestSolveNotifiesObservers(t *testing.T) {
	rs, part, eq := decaySystem(t, 0.5)
	p := New(rs, ode.NewSolver(ode.DefaultSettings()))
	if err := p.SetPartition(part, eq); err != nil {
		t.Fatalf("SetPartition: %v", err)
	}
	rec := &recordingObserver{}
	p.AddObserver(rec)

	state := chem.NewState(rs.System())
	if err := state.SetSpeciesAmount("A", 1.0); err != nil {
		t.Fatal(err)
	}
	if err := p.Solve(state, 0, 4); err != nil {
		t.Fatalf("Solve: %v", err)
	}

	if len(rec.times) < 2 {
		t.Fatalf("observer saw %d steps, want at least 2", len(rec.times))
	}
	if rec.times[0] != 0 {
		t.Errorf("first observation at t=%v, want 0", rec.times[0])
	}
	if last := rec.times[len(rec.times)-1]; math.Abs(last-4) > 1e-12 {
		t.Errorf("last observation at t=%v, want 4", last)
	}
	for i := 1; i < len(rec.times); i++ {
		if rec.times[i] <= rec.times[i-1] {
			t.Errorf("observation times not increasing at %d: %v then %v", i, rec.times[i-1], rec.times[i])
		}
		if rec.a[i] > rec.a[i-1]+1e-9 {
			t.Errorf("decaying amount increased at %d: %v then %v", i, rec.a[i-1], rec.a[i])
		}
	}
}

func TestSolvePropagatesEquilibriumFailure(t *testing.T) {
	rs, part, _ := decaySystem(t, 1.0)
	p := New(rs, ode.NewSolver(ode.DefaultSettings()))
	if err := p.SetPartition(part, failingSolver{}); err != nil {
		t.Fatalf("SetPartition: %v", err)
	}
	state := chem.NewState(rs.System())
	if err := state.SetSpeciesAmount("A", 1.0); err != nil {
		t.Fatal(err)
	}
	err := p.Solve(state, 0, 1)
	if err == nil {
		t.Fatal("Solve succeeded with a failing equilibrium solver")
	}
	var perr *PathError
	if !errors.As(err, &perr) {
		t.Fatalf("error %v is not a *PathError", err)
	}
	if !errors.Is(err, ErrEquilibriumFailed) {
		t.Fatalf("error %v does not wrap ErrEquilibriumFailed", err)
	}
}

type failingSolver struct{}

func (failingSolver) Solve(*chem.State, []float64) error {
	return equilibrium.ErrNoConvergence
}

func (failingSolver) Sensitivity(*chem.State) (*mat.Dense, error) {
	return nil, equilibrium.ErrNoConvergence
}
