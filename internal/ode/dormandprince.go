package ode

import (
	"fmt"
	"math"
)

// Dormand-Prince 5(4) coefficients.
var (
	a2 = 1.0 / 5.0
	a3 = 3.0 / 10.0
	a4 = 4.0 / 5.0
	a5 = 8.0 / 9.0

	b21 = 1.0 / 5.0
	b31 = 3.0 / 40.0
	b32 = 9.0 / 40.0
	b41 = 44.0 / 45.0
	b42 = -56.0 / 15.0
	b43 = 32.0 / 9.0
	b51 = 19372.0 / 6561.0
	b52 = -25360.0 / 2187.0
	b53 = 64448.0 / 6561.0
	b54 = -212.0 / 729.0
	b61 = 9017.0 / 3168.0
	b62 = -355.0 / 33.0
	b63 = 46732.0 / 5247.0
	b64 = 49.0 / 176.0
	b65 = -5103.0 / 18656.0

	c1 = 35.0 / 384.0
	c3 = 500.0 / 1113.0
	c4 = 125.0 / 192.0
	c5 = -2187.0 / 6784.0
	c6 = 11.0 / 84.0

	dc1 = c1 - 5179.0/57600.0
	dc3 = c3 - 7571.0/16695.0
	dc4 = c4 - 393.0/640.0
	dc5 = c5 - -92097.0/339200.0
	dc6 = c6 - 187.0/2100.0
	dc7 = -1.0 / 40.0
)

// stepDormandPrince attempts one explicit RK5(4) step. Return convention
// matches stepRosenbrock.
func (s *Solver) stepDormandPrince(t float64, u []float64, h float64) (float64, bool, error) {
	n := s.prob.N

	eval := func(tEval float64, uEval, k []float64) (Status, error) {
		s.stats.FuncEvals++
		st := s.prob.Func(tEval, uEval, k)
		if st == StatusFatal {
			return st, fmt.Errorf("%w at t=%g", ErrFuncFailed, tEval)
		}
		return st, nil
	}

	if st, err := eval(t, u, s.k[0]); st != StatusOK {
		return h / 2, false, err
	}

	for i := 0; i < n; i++ {
		s.utmp[i] = u[i] + h*b21*s.k[0][i]
	}
	if st, err := eval(t+a2*h, s.utmp, s.k[1]); st != StatusOK {
		return h / 2, false, err
	}

	for i := 0; i < n; i++ {
		s.utmp[i] = u[i] + h*(b31*s.k[0][i]+b32*s.k[1][i])
	}
	if st, err := eval(t+a3*h, s.utmp, s.k[2]); st != StatusOK {
		return h / 2, false, err
	}

	for i := 0; i < n; i++ {
		s.utmp[i] = u[i] + h*(b41*s.k[0][i]+b42*s.k[1][i]+b43*s.k[2][i])
	}
	if st, err := eval(t+a4*h, s.utmp, s.k[3]); st != StatusOK {
		return h / 2, false, err
	}

	for i := 0; i < n; i++ {
		s.utmp[i] = u[i] + h*(b51*s.k[0][i]+b52*s.k[1][i]+b53*s.k[2][i]+b54*s.k[3][i])
	}
	if st, err := eval(t+a5*h, s.utmp, s.k[4]); st != StatusOK {
		return h / 2, false, err
	}

	for i := 0; i < n; i++ {
		s.utmp[i] = u[i] + h*(b61*s.k[0][i]+b62*s.k[1][i]+b63*s.k[2][i]+b64*s.k[3][i]+b65*s.k[4][i])
	}
	if st, err := eval(t+h, s.utmp, s.k[5]); st != StatusOK {
		return h / 2, false, err
	}

	for i := 0; i < n; i++ {
		s.unew[i] = u[i] + h*(c1*s.k[0][i]+c3*s.k[2][i]+c4*s.k[3][i]+c5*s.k[4][i]+c6*s.k[5][i])
	}
	if !finiteAll(s.unew) {
		return h / 2, false, nil
	}
	if st, err := eval(t+h, s.unew, s.k[6]); st != StatusOK {
		return h / 2, false, err
	}

	for i := 0; i < n; i++ {
		s.errv[i] = h * (dc1*s.k[0][i] + dc3*s.k[2][i] + dc4*s.k[3][i] + dc5*s.k[4][i] + dc6*s.k[5][i] + dc7*s.k[6][i])
	}

	ratio := s.errRatio(u)
	if ratio > 1 {
		scale := math.Max(minScale, safety*math.Pow(ratio, -0.25))
		return h * scale, false, nil
	}
	var scale float64
	if ratio > 0 {
		scale = math.Min(maxScale, safety*math.Pow(ratio, -0.2))
	} else {
		scale = maxScale
	}
	return h * scale, true, nil
}
