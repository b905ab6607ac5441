package chem

import (
	"math"
	"testing"
)

func TestFirstOrderRate(t *testing.T) {
	sys := testSystem(t)
	rate, err := FirstOrder(sys, "Calcite", Arrhenius{A: 2e-3})
	if err != nil {
		t.Fatal(err)
	}

	n := []float64{4, 0, 0}
	a := NewVector(3, 3)
	sys.Activities(298.15, 1e5, n, a)

	r, grad := rate(298.15, 1e5, n, a)
	if math.Abs(r-8e-3) > 1e-18 {
		t.Errorf("rate: expected 8e-3, got %v", r)
	}
	if grad[0] != 2e-3 || grad[1] != 0 || grad[2] != 0 {
		t.Errorf("gradient: expected [2e-3 0 0], got %v", grad)
	}
}

func TestFirstOrderUnknownSpecies(t *testing.T) {
	sys := testSystem(t)
	if _, err := FirstOrder(sys, "Dolomite", Arrhenius{A: 1}); err == nil {
		t.Fatal("expected error for unknown species, got nil")
	}
}

func TestArrhenius(t *testing.T) {
	k := Arrhenius{A: 1e3, Ea: 50e3}
	k298 := k.At(298.15)
	k398 := k.At(398.15)
	if k398 <= k298 {
		t.Errorf("rate constant must grow with T: k(298)=%v k(398)=%v", k298, k398)
	}
	want := 1e3 * math.Exp(-50e3/(GasConstant*298.15))
	if math.Abs(k298-want)/want > 1e-14 {
		t.Errorf("k(298.15): expected %v, got %v", want, k298)
	}
}

func TestMassActionRate(t *testing.T) {
	sys, err := NewSystem([]Species{
		{Name: "A", Formula: map[string]float64{"X": 1}, Activity: ActivityMolar},
		{Name: "B", Formula: map[string]float64{"X": 1}, Activity: ActivityMolar},
	})
	if err != nil {
		t.Fatal(err)
	}
	// A -> B, r = kf aA - kr aB with molar activities a = n.
	rate, err := MassAction(sys, map[string]float64{"A": -1, "B": 1}, Arrhenius{A: 2}, Arrhenius{A: 0.5})
	if err != nil {
		t.Fatal(err)
	}

	n := []float64{3, 4}
	a := NewVector(2, 2)
	sys.Activities(298.15, 1e5, n, a)

	r, grad := rate(298.15, 1e5, n, a)
	if math.Abs(r-(2*3-0.5*4)) > 1e-14 {
		t.Errorf("rate: expected 4, got %v", r)
	}
	if math.Abs(grad[0]-2) > 1e-14 || math.Abs(grad[1]+0.5) > 1e-14 {
		t.Errorf("gradient: expected [2 -0.5], got %v", grad)
	}
}

func TestMassActionSecondOrder(t *testing.T) {
	sys, err := NewSystem([]Species{
		{Name: "A", Formula: map[string]float64{"X": 1}, Activity: ActivityMolar},
		{Name: "C", Formula: map[string]float64{"X": 2}, Activity: ActivityMolar},
	})
	if err != nil {
		t.Fatal(err)
	}
	// 2A -> C, forward only: r = kf aA^2.
	rate, err := MassAction(sys, map[string]float64{"A": -2, "C": 1}, Arrhenius{A: 3}, Arrhenius{})
	if err != nil {
		t.Fatal(err)
	}

	n := []float64{5, 0}
	a := NewVector(2, 2)
	sys.Activities(298.15, 1e5, n, a)

	r, grad := rate(298.15, 1e5, n, a)
	if math.Abs(r-75) > 1e-12 {
		t.Errorf("rate: expected 75, got %v", r)
	}
	if math.Abs(grad[0]-30) > 1e-12 {
		t.Errorf("dr/dnA: expected 30, got %v", grad[0])
	}
}

func TestReactionSystem(t *testing.T) {
	sys := testSystem(t)
	rate, err := FirstOrder(sys, "Calcite", Arrhenius{A: 1e-3})
	if err != nil {
		t.Fatal(err)
	}
	rs, err := NewReactionSystem(sys, []Reaction{{
		Name:          "dissolution",
		Stoichiometry: map[string]float64{"Calcite": -1, "Ca++": 1, "CO3--": 1},
		Rate:          rate,
	}})
	if err != nil {
		t.Fatal(err)
	}

	s := rs.StoichiometricMatrix()
	r, c := s.Dims()
	if r != 1 || c != 3 {
		t.Fatalf("S: expected 1x3, got %dx%d", r, c)
	}
	jCal, _ := sys.SpeciesIndex("Calcite")
	if s.At(0, jCal) != -1 {
		t.Errorf("expected -1 for Calcite, got %v", s.At(0, jCal))
	}

	n := []float64{2, 0, 0}
	a := NewVector(3, 3)
	sys.Activities(298.15, 1e5, n, a)
	rates := NewVector(1, 3)
	rs.Rates(298.15, 1e5, n, a, rates)
	if math.Abs(rates.Val[0]-2e-3) > 1e-18 {
		t.Errorf("rates: expected 2e-3, got %v", rates.Val[0])
	}
	if got := rates.Dn.At(0, jCal); got != 1e-3 {
		t.Errorf("rate Jacobian: expected 1e-3, got %v", got)
	}
}

func TestReactionSystemUnknownSpecies(t *testing.T) {
	sys := testSystem(t)
	rate, _ := FirstOrder(sys, "Calcite", Arrhenius{A: 1})
	_, err := NewReactionSystem(sys, []Reaction{{
		Name:          "bad",
		Stoichiometry: map[string]float64{"Dolomite": -1},
		Rate:          rate,
	}})
	if err == nil {
		t.Fatal("expected error for unknown species, got nil")
	}
}
