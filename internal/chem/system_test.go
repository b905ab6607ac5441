package chem

import (
	"math"
	"testing"
)

func testSystem(t *testing.T) *System {
	t.Helper()
	sys, err := NewSystem([]Species{
		{Name: "Calcite", Formula: map[string]float64{"Ca": 1, "C": 1, "O": 3}, Activity: ActivityPure},
		{Name: "Ca++", Formula: map[string]float64{"Ca": 1}, Activity: ActivityMolar},
		{Name: "CO3--", Formula: map[string]float64{"C": 1, "O": 3}, Activity: ActivityMolar},
	})
	if err != nil {
		t.Fatalf("NewSystem: %v", err)
	}
	return sys
}

func TestSystemElements(t *testing.T) {
	sys := testSystem(t)

	want := []string{"C", "Ca", "O"}
	got := sys.Elements()
	if len(got) != len(want) {
		t.Fatalf("expected %d elements, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("element %d: expected %s, got %s", i, want[i], got[i])
		}
	}

	w := sys.FormulaMatrix()
	iO, _ := sys.ElementIndex("O")
	jCal, _ := sys.SpeciesIndex("Calcite")
	if w.At(iO, jCal) != 3 {
		t.Errorf("expected 3 O per Calcite, got %v", w.At(iO, jCal))
	}
}

func TestSystemDuplicateSpecies(t *testing.T) {
	_, err := NewSystem([]Species{
		{Name: "A", Formula: map[string]float64{"X": 1}},
		{Name: "A", Formula: map[string]float64{"X": 1}},
	})
	if err == nil {
		t.Fatal("expected error for duplicate species, got nil")
	}
}

func TestActivities(t *testing.T) {
	sys, err := NewSystem([]Species{
		{Name: "A", Formula: map[string]float64{"X": 1}, Activity: ActivityMoleFraction},
		{Name: "B", Formula: map[string]float64{"X": 1}, Activity: ActivityMoleFraction},
		{Name: "S", Formula: map[string]float64{"X": 1}, Activity: ActivityPure},
		{Name: "D", Formula: map[string]float64{"X": 1}, Activity: ActivityMolar},
	})
	if err != nil {
		t.Fatalf("NewSystem: %v", err)
	}

	n := []float64{1, 3, 5, 0.25}
	a := NewVector(4, 4)
	sys.Activities(298.15, 1e5, n, a)

	if math.Abs(a.Val[0]-0.25) > 1e-15 {
		t.Errorf("mole fraction of A: expected 0.25, got %v", a.Val[0])
	}
	if a.Val[2] != 1 {
		t.Errorf("pure species activity: expected 1, got %v", a.Val[2])
	}
	if a.Val[3] != 0.25 {
		t.Errorf("molar activity: expected 0.25, got %v", a.Val[3])
	}

	// d(nA/ntot)/dnA = (ntot - nA)/ntot^2 with ntot over the mixture only.
	ntot := 4.0
	if got, want := a.Dn.At(0, 0), (ntot-1)/(ntot*ntot); math.Abs(got-want) > 1e-15 {
		t.Errorf("dxA/dnA: expected %v, got %v", want, got)
	}
	if got, want := a.Dn.At(0, 1), -1/(ntot*ntot); math.Abs(got-want) > 1e-15 {
		t.Errorf("dxA/dnB: expected %v, got %v", want, got)
	}
	// Pure species amounts do not enter the mixture total.
	if got := a.Dn.At(0, 2); got != 0 {
		t.Errorf("dxA/dnS: expected 0, got %v", got)
	}
	if got := a.Dn.At(3, 3); got != 1 {
		t.Errorf("daD/dnD: expected 1, got %v", got)
	}
}

func TestStateElementAmount(t *testing.T) {
	sys := testSystem(t)
	state := NewState(sys)

	if err := state.SetSpeciesAmount("Calcite", 2); err != nil {
		t.Fatal(err)
	}
	if err := state.SetSpeciesAmount("Ca++", 0.5); err != nil {
		t.Fatal(err)
	}

	b, err := state.ElementAmount("Ca")
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(b-2.5) > 1e-15 {
		t.Errorf("expected 2.5 mol Ca, got %v", b)
	}

	b, err = state.ElementAmount("O")
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(b-6) > 1e-15 {
		t.Errorf("expected 6 mol O, got %v", b)
	}

	if _, err := state.ElementAmount("Zr"); err == nil {
		t.Error("expected error for unknown element, got nil")
	}
}

func TestStateScatterGather(t *testing.T) {
	sys := testSystem(t)
	state := NewState(sys)

	state.SetAmounts([]float64{1.5, 0.5}, []int{0, 2})
	got := state.AmountsAt([]int{0, 2}, nil)
	if got[0] != 1.5 || got[1] != 0.5 {
		t.Errorf("gather after scatter: got %v", got)
	}
	if state.Amounts()[1] != 0 {
		t.Errorf("untouched species changed: %v", state.Amounts())
	}
}
