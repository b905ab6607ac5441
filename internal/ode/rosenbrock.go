package ode

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// gammaROS2 makes the two-stage scheme L-stable.
const gammaROS2 = 1 + 1/math.Sqrt2

// stepRosenbrock attempts one step built from the ROS2 scheme:
//
//	(I - γhJ) k1 = f(t, u)
//	(I - γhJ) k2 = f(t+h, u + h k1) - 2 k1
//	u1 = u + h (3/2 k1 + 1/2 k2)
//
// Error control is by step doubling: the interval is crossed once at h and
// again as two substeps of h/2, the difference gives a Richardson estimate
// of the local error, and the extrapolated combination is accepted. Both
// solutions are L-stable, so the estimate decays in the stiff limit and the
// step is free to grow once a fast transient has passed. The Jacobian is
// evaluated once per attempt and shared by all three substeps; ROS2 keeps
// second order for an approximate Jacobian. A recoverable evaluation
// failure or a singular stage matrix counts as a rejection at half the
// step.
func (s *Solver) stepRosenbrock(t float64, u []float64, h float64) (float64, bool, error) {
	s.stats.FuncEvals++
	switch s.prob.Func(t, u, s.f0) {
	case StatusRetry:
		return h / 2, false, nil
	case StatusFatal:
		return 0, false, fmt.Errorf("%w at t=%g", ErrFuncFailed, t)
	}

	s.stats.JacEvals++
	switch s.prob.Jac(t, u, s.jac) {
	case StatusRetry:
		return h / 2, false, nil
	case StatusFatal:
		return 0, false, fmt.Errorf("%w at t=%g (jacobian)", ErrFuncFailed, t)
	}

	// Full step at h.
	s.factorStage(h)
	ok, err := s.substepROS2(t, h, u, s.f0, s.ubig)
	if err != nil {
		return 0, false, err
	}
	if !ok {
		return h / 2, false, nil
	}

	// Two substeps at h/2; the second needs a fresh right-hand side.
	s.factorStage(h / 2)
	ok, err = s.substepROS2(t, h/2, u, s.f0, s.uhalf)
	if err != nil {
		return 0, false, err
	}
	if !ok {
		return h / 2, false, nil
	}
	s.stats.FuncEvals++
	switch s.prob.Func(t+h/2, s.uhalf, s.fhalf) {
	case StatusRetry:
		return h / 2, false, nil
	case StatusFatal:
		return 0, false, fmt.Errorf("%w at t=%g", ErrFuncFailed, t+h/2)
	}
	ok, err = s.substepROS2(t+h/2, h/2, s.uhalf, s.fhalf, s.unew)
	if err != nil {
		return 0, false, err
	}
	if !ok {
		return h / 2, false, nil
	}

	for i := range s.unew {
		d := (s.unew[i] - s.ubig[i]) / 3
		s.errv[i] = d
		s.unew[i] += d
	}
	if !finiteAll(s.unew) {
		return h / 2, false, nil
	}

	ratio := s.errRatio(u)
	if ratio > 1 {
		scale := math.Max(minScale, safety*math.Pow(ratio, -1.0/3))
		return h * scale, false, nil
	}
	var scale float64
	if ratio > 0 {
		scale = math.Min(maxScale, safety*math.Pow(ratio, -1.0/3))
	} else {
		scale = maxScale
	}
	return h * scale, true, nil
}

// factorStage factorizes the stage matrix I - γhJ for the current Jacobian.
func (s *Solver) factorStage(h float64) {
	s.m.Scale(-gammaROS2*h, s.jac)
	for i := 0; i < s.prob.N; i++ {
		s.m.Set(i, i, s.m.At(i, i)+1)
	}
	s.lu.Factorize(s.m)
}

// substepROS2 takes one ROS2 step of size h from u using the current stage
// factorization, writing the result to out. f0 must hold f(t, u). A false
// return means a recoverable failure.
func (s *Solver) substepROS2(t, h float64, u, f0, out []float64) (bool, error) {
	n := s.prob.N

	k1 := mat.NewVecDense(n, s.k1)
	if err := s.lu.SolveVecTo(k1, false, mat.NewVecDense(n, f0)); err != nil {
		return false, nil
	}

	copy(s.utmp, u)
	floats.AddScaled(s.utmp, h, s.k1)
	s.stats.FuncEvals++
	switch s.prob.Func(t+h, s.utmp, s.f1) {
	case StatusRetry:
		return false, nil
	case StatusFatal:
		return false, fmt.Errorf("%w at t=%g", ErrFuncFailed, t+h)
	}
	floats.AddScaled(s.f1, -2, s.k1)

	k2 := mat.NewVecDense(n, s.k2)
	if err := s.lu.SolveVecTo(k2, false, mat.NewVecDense(n, s.f1)); err != nil {
		return false, nil
	}

	for i := 0; i < n; i++ {
		out[i] = u[i] + h*(1.5*s.k1[i]+0.5*s.k2[i])
	}
	return true, nil
}
