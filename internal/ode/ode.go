// Package ode provides adaptive-step integrators for stiff and non-stiff
// initial value problems du/dt = f(t, u).
//
// The right-hand side and Jacobian callbacks return a [Status] instead of an
// error: a recoverable failure ([StatusRetry]) tells the solver to shrink the
// current step and try again, while [StatusFatal] aborts the integration.
// The default method is a two-stage L-stable Rosenbrock scheme suited to
// stiff chemistry; an explicit Dormand-Prince pair is available for
// non-stiff problems.
package ode

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Status is the outcome of a right-hand-side or Jacobian evaluation.
type Status int

const (
	// StatusOK means the evaluation succeeded.
	StatusOK Status = 0
	// StatusRetry means the evaluation failed recoverably; the solver
	// shrinks the step and retries.
	StatusRetry Status = 1
	// StatusFatal means the evaluation failed unrecoverably; the
	// integration aborts.
	StatusFatal Status = -1
)

// Func evaluates the right-hand side f(t, u) into f.
type Func func(t float64, u []float64, f []float64) Status

// Jacobian evaluates df/du at (t, u) into jac.
type Jacobian func(t float64, u []float64, jac *mat.Dense) Status

// Problem is an initial value problem of N equations.
type Problem struct {
	N    int
	Func Func
	Jac  Jacobian
}

// Method selects the stepping scheme.
type Method int

const (
	// Rosenbrock is a two-stage L-stable linearly implicit scheme
	// (Hundsdorfer-Verwer ROS2); it requires a Jacobian and handles
	// stiff systems.
	Rosenbrock Method = iota
	// DormandPrince is the explicit RK5(4) pair; no Jacobian needed.
	DormandPrince
)

// Domain errors for the solvers.
var (
	// ErrNotInitialized indicates Integrate or Solve before Initialize.
	ErrNotInitialized = errors.New("ode: solver not initialized")

	// ErrStepTooSmall indicates the adaptive step collapsed below MinStep.
	ErrStepTooSmall = errors.New("ode: step size below minimum")

	// ErrTooManyRetries indicates the step was rejected more than
	// MaxRetries times in a row.
	ErrTooManyRetries = errors.New("ode: too many rejected step attempts")

	// ErrTooManySteps indicates a Solve call exceeded MaxSteps.
	ErrTooManySteps = errors.New("ode: too many steps")

	// ErrFuncFailed indicates the right-hand side or Jacobian reported a
	// fatal failure.
	ErrFuncFailed = errors.New("ode: problem function failed")
)

// Settings control the adaptive stepping.
type Settings struct {
	Method      Method
	InitialStep float64 // first step size
	MinStep     float64 // fatal floor for the step size
	MaxStep     float64 // cap for the step size; 0 means unbounded
	AbsTol      float64
	RelTol      float64
	MaxSteps    int // per Solve call
	MaxRetries  int // consecutive rejections per Integrate call
}

// DefaultSettings returns the settings used when a zero value is given.
func DefaultSettings() Settings {
	return Settings{
		Method:      Rosenbrock,
		InitialStep: 1e-6,
		MinStep:     1e-14,
		MaxStep:     0,
		AbsTol:      1e-12,
		RelTol:      1e-6,
		MaxSteps:    500000,
		MaxRetries:  50,
	}
}

// Statistics reports counters accumulated since Initialize.
type Statistics struct {
	Steps     int
	Rejected  int
	FuncEvals int
	JacEvals  int
	LastStep  float64
}

// Step-size controller constants.
const (
	safety   = 0.9
	minScale = 0.2
	maxScale = 10.0
)

// Solver integrates one Problem with adaptive step control. A Solver owns
// its work buffers and must not be shared between goroutines.
type Solver struct {
	set   Settings
	prob  Problem
	h     float64
	stats Statistics
	init  bool

	// shared buffers
	f0, utmp, unew, errv []float64

	// Rosenbrock buffers
	f1, k1, k2         []float64
	ubig, uhalf, fhalf []float64
	jac, m             *mat.Dense
	lu                 mat.LU

	// Dormand-Prince stage buffers
	k [7][]float64
}

// NewSolver creates a solver. Zero fields of set fall back to defaults.
func NewSolver(set Settings) *Solver {
	def := DefaultSettings()
	if set.InitialStep <= 0 {
		set.InitialStep = def.InitialStep
	}
	if set.MinStep <= 0 {
		set.MinStep = def.MinStep
	}
	if set.AbsTol <= 0 {
		set.AbsTol = def.AbsTol
	}
	if set.RelTol <= 0 {
		set.RelTol = def.RelTol
	}
	if set.MaxSteps <= 0 {
		set.MaxSteps = def.MaxSteps
	}
	if set.MaxRetries <= 0 {
		set.MaxRetries = def.MaxRetries
	}
	return &Solver{set: set}
}

// SetProblem installs the problem to integrate. The Rosenbrock method
// requires a Jacobian.
func (s *Solver) SetProblem(p Problem) error {
	if p.N <= 0 {
		return fmt.Errorf("ode: problem has %d equations", p.N)
	}
	if p.Func == nil {
		return fmt.Errorf("ode: problem has no right-hand side")
	}
	if s.set.Method == Rosenbrock && p.Jac == nil {
		return fmt.Errorf("ode: Rosenbrock method requires a Jacobian")
	}
	s.prob = p
	s.init = false
	return nil
}

// Initialize prepares the solver to integrate from t0 with initial state u0.
// It resets the step size and statistics.
func (s *Solver) Initialize(t0 float64, u0 []float64) error {
	if s.prob.Func == nil {
		return fmt.Errorf("ode: Initialize before SetProblem")
	}
	if len(u0) != s.prob.N {
		return fmt.Errorf("ode: initial state has %d entries, problem has %d", len(u0), s.prob.N)
	}
	n := s.prob.N
	s.f0 = resize(s.f0, n)
	s.utmp = resize(s.utmp, n)
	s.unew = resize(s.unew, n)
	s.errv = resize(s.errv, n)
	s.f1 = resize(s.f1, n)
	s.k1 = resize(s.k1, n)
	s.k2 = resize(s.k2, n)
	s.ubig = resize(s.ubig, n)
	s.uhalf = resize(s.uhalf, n)
	s.fhalf = resize(s.fhalf, n)
	for i := range s.k {
		s.k[i] = resize(s.k[i], n)
	}
	if s.jac == nil || !sized(s.jac, n) {
		s.jac = mat.NewDense(n, n, nil)
		s.m = mat.NewDense(n, n, nil)
	}
	s.h = s.set.InitialStep
	s.stats = Statistics{}
	s.init = true
	return nil
}

// Stats returns the counters accumulated since the last Initialize.
func (s *Solver) Stats() Statistics { return s.stats }

// Integrate advances one accepted internal step, bounded by tfinal, mutating
// t and u in place. Recoverable right-hand-side failures and rejected steps
// shrink the step and retry; step collapse below MinStep is fatal.
func (s *Solver) Integrate(t *float64, u []float64, tfinal float64) error {
	if !s.init {
		return ErrNotInitialized
	}
	if len(u) != s.prob.N {
		panic(fmt.Sprintf("ode: state has %d entries, problem has %d", len(u), s.prob.N))
	}
	remain := tfinal - *t
	if remain <= 0 {
		return nil
	}
	// Nothing meaningful left to integrate.
	if remain <= 1e-14*math.Max(1, math.Abs(*t)) {
		*t = tfinal
		return nil
	}

	h := s.h
	if h > remain {
		h = remain
	}

	for retries := 0; ; retries++ {
		if retries > s.set.MaxRetries {
			return fmt.Errorf("%w at t=%g", ErrTooManyRetries, *t)
		}
		var hnext float64
		var accepted bool
		var err error
		switch s.set.Method {
		case Rosenbrock:
			hnext, accepted, err = s.stepRosenbrock(*t, u, h)
		case DormandPrince:
			hnext, accepted, err = s.stepDormandPrince(*t, u, h)
		default:
			return fmt.Errorf("ode: unknown method %d", s.set.Method)
		}
		if err != nil {
			return err
		}
		if accepted {
			*t += h
			copy(u, s.unew)
			s.h = s.clampStep(hnext)
			s.stats.Steps++
			s.stats.LastStep = h
			return nil
		}
		s.stats.Rejected++
		h = hnext
		if h < s.set.MinStep {
			return fmt.Errorf("%w (h=%g at t=%g)", ErrStepTooSmall, h, *t)
		}
	}
}

// Solve advances from t to t+dt, mutating t and u in place.
func (s *Solver) Solve(t *float64, dt float64, u []float64) error {
	if !s.init {
		return ErrNotInitialized
	}
	tend := *t + dt
	for steps := 0; *t < tend; steps++ {
		if steps >= s.set.MaxSteps {
			return fmt.Errorf("%w (%d at t=%g)", ErrTooManySteps, steps, *t)
		}
		if err := s.Integrate(t, u, tend); err != nil {
			return err
		}
	}
	return nil
}

func (s *Solver) clampStep(h float64) float64 {
	if s.set.MaxStep > 0 && h > s.set.MaxStep {
		return s.set.MaxStep
	}
	return h
}

// errRatio measures the scaled local error: the max over components of
// |err| / (atol + rtol max(|u|, |unew|)). A ratio above 1 rejects the step.
func (s *Solver) errRatio(u []float64) float64 {
	ratio := 0.0
	for i := range u {
		sc := s.set.AbsTol + s.set.RelTol*math.Max(math.Abs(u[i]), math.Abs(s.unew[i]))
		r := math.Abs(s.errv[i]) / sc
		if math.IsNaN(r) || math.IsInf(r, 0) {
			return math.Inf(1)
		}
		if r > ratio {
			ratio = r
		}
	}
	return ratio
}

func finiteAll(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

func resize(v []float64, n int) []float64 {
	if cap(v) >= n {
		return v[:n]
	}
	return make([]float64, n)
}

func sized(m *mat.Dense, n int) bool {
	r, c := m.Dims()
	return r == n && c == n
}
