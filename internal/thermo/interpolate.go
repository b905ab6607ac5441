// Package thermo provides small thermodynamic property utilities: linear and
// bilinear interpolation of tabulated properties over temperature and
// pressure grids, used for equilibrium constants and similar correlations.
package thermo

import (
	"fmt"
	"sort"
)

// Interpolator linearly interpolates tabulated values over an ascending
// coordinate grid. Queries outside the grid clamp to the end values.
type Interpolator struct {
	xs []float64
	ys []float64
}

// NewInterpolator builds an interpolator over the given grid. The grid must
// have at least one point and be strictly ascending.
func NewInterpolator(xs, ys []float64) (*Interpolator, error) {
	if len(xs) == 0 {
		return nil, fmt.Errorf("thermo: empty interpolation grid")
	}
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("thermo: grid has %d points but %d values", len(xs), len(ys))
	}
	for i := 1; i < len(xs); i++ {
		if xs[i] <= xs[i-1] {
			return nil, fmt.Errorf("thermo: grid not strictly ascending at point %d", i)
		}
	}
	return &Interpolator{xs: xs, ys: ys}, nil
}

// At returns the interpolated value at x.
func (in *Interpolator) At(x float64) float64 {
	n := len(in.xs)
	if x <= in.xs[0] {
		return in.ys[0]
	}
	if x >= in.xs[n-1] {
		return in.ys[n-1]
	}
	// First grid point >= x; x lies in (xs[i-1], xs[i]).
	i := sort.SearchFloat64s(in.xs, x)
	if in.xs[i] == x {
		return in.ys[i]
	}
	x0, x1 := in.xs[i-1], in.xs[i]
	y0, y1 := in.ys[i-1], in.ys[i]
	return y0 + (y1-y0)*(x-x0)/(x1-x0)
}

// Bilinear interpolates tabulated values over a temperature x pressure grid.
// vals is laid out row-major: vals[i*len(ps)+j] is the value at (ts[i], ps[j]).
// Queries clamp to the grid boundary.
type Bilinear struct {
	ts   []float64
	ps   []float64
	vals []float64
}

// NewBilinear builds a bilinear interpolator. Both grids must be strictly
// ascending and vals must have len(ts)*len(ps) entries.
func NewBilinear(ts, ps, vals []float64) (*Bilinear, error) {
	if len(ts) == 0 || len(ps) == 0 {
		return nil, fmt.Errorf("thermo: empty interpolation grid")
	}
	if len(vals) != len(ts)*len(ps) {
		return nil, fmt.Errorf("thermo: grid is %dx%d but %d values given", len(ts), len(ps), len(vals))
	}
	for i := 1; i < len(ts); i++ {
		if ts[i] <= ts[i-1] {
			return nil, fmt.Errorf("thermo: temperature grid not strictly ascending at point %d", i)
		}
	}
	for j := 1; j < len(ps); j++ {
		if ps[j] <= ps[j-1] {
			return nil, fmt.Errorf("thermo: pressure grid not strictly ascending at point %d", j)
		}
	}
	return &Bilinear{ts: ts, ps: ps, vals: vals}, nil
}

// At returns the interpolated value at temperature T and pressure P.
func (b *Bilinear) At(T, P float64) float64 {
	i0, i1, tw := bracket(b.ts, T)
	j0, j1, pw := bracket(b.ps, P)
	np := len(b.ps)
	v00 := b.vals[i0*np+j0]
	v01 := b.vals[i0*np+j1]
	v10 := b.vals[i1*np+j0]
	v11 := b.vals[i1*np+j1]
	return (1-tw)*((1-pw)*v00+pw*v01) + tw*((1-pw)*v10+pw*v11)
}

// bracket finds the cell [i0, i1] containing x and the interpolation weight
// within it, clamping to the grid boundary.
func bracket(xs []float64, x float64) (i0, i1 int, w float64) {
	n := len(xs)
	if x <= xs[0] || n == 1 {
		return 0, 0, 0
	}
	if x >= xs[n-1] {
		return n - 1, n - 1, 0
	}
	i := sort.SearchFloat64s(xs, x)
	if xs[i] == x {
		return i, i, 0
	}
	return i - 1, i, (x - xs[i-1]) / (xs[i] - xs[i-1])
}
