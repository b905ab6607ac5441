package thermo

import (
	"math"
	"testing"
)

func TestInterpolator(t *testing.T) {
	in, err := NewInterpolator([]float64{273.15, 298.15, 323.15}, []float64{-10, -8, -7})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		x    float64
		want float64
	}{
		{"grid point", 298.15, -8},
		{"midpoint", 285.65, -9},
		{"clamp below", 200, -10},
		{"clamp above", 400, -7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := in.At(tt.x); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("At(%v): expected %v, got %v", tt.x, tt.want, got)
			}
		})
	}
}

func TestInterpolatorErrors(t *testing.T) {
	if _, err := NewInterpolator(nil, nil); err == nil {
		t.Error("expected error for empty grid")
	}
	if _, err := NewInterpolator([]float64{1, 2}, []float64{1}); err == nil {
		t.Error("expected error for length mismatch")
	}
	if _, err := NewInterpolator([]float64{1, 1}, []float64{0, 0}); err == nil {
		t.Error("expected error for non-ascending grid")
	}
}

func TestBilinear(t *testing.T) {
	// v(T, P) = T + 2P is reproduced exactly by bilinear interpolation.
	ts := []float64{0, 10}
	ps := []float64{0, 5}
	vals := []float64{0, 10, 10, 20}
	b, err := NewBilinear(ts, ps, vals)
	if err != nil {
		t.Fatal(err)
	}

	if got := b.At(5, 2.5); math.Abs(got-10) > 1e-12 {
		t.Errorf("At(5, 2.5): expected 10, got %v", got)
	}
	if got := b.At(10, 5); math.Abs(got-20) > 1e-12 {
		t.Errorf("At(10, 5): expected 20, got %v", got)
	}
	if got := b.At(-1, 100); math.Abs(got-10) > 1e-12 {
		t.Errorf("clamped corner: expected 10, got %v", got)
	}
}
