package metrics

import (
	"math"
	"testing"

	"github.com/san-kum/kinpath/internal/chem"
)

func twoSpeciesState(t *testing.T) *chem.State {
	t.Helper()
	sys, err := chem.NewSystem([]chem.Species{
		{Name: "A", Formula: map[string]float64{"X": 1}, Activity: chem.ActivityMolar},
		{Name: "B", Formula: map[string]float64{"X": 1}, Activity: chem.ActivityMolar},
	})
	if err != nil {
		t.Fatalf("NewSystem: %v", err)
	}
	state := chem.NewState(sys)
	if err := state.SetSpeciesAmount("A", 1.0); err != nil {
		t.Fatal(err)
	}
	return state
}

func TestElementDrift(t *testing.T) {
	state := twoSpeciesState(t)
	m := NewElementDrift(state.System())

	m.OnStep(state, 0)
	if m.Value() != 0 {
		t.Errorf("drift after first sample = %v, want 0", m.Value())
	}

	// Shift mass from A to B: element X stays conserved.
	state.SetSpeciesAmount("A", 0.4)
	state.SetSpeciesAmount("B", 0.6)
	m.OnStep(state, 1)
	if m.Value() != 0 {
		t.Errorf("drift under exact conservation = %v, want 0", m.Value())
	}

	// Lose one percent of the total.
	state.SetSpeciesAmount("B", 0.59)
	m.OnStep(state, 2)
	if math.Abs(m.Value()-0.01) > 1e-12 {
		t.Errorf("drift = %v, want 0.01", m.Value())
	}

	// The maximum is retained after recovery.
	state.SetSpeciesAmount("B", 0.6)
	m.OnStep(state, 3)
	if math.Abs(m.Value()-0.01) > 1e-12 {
		t.Errorf("drift after recovery = %v, want 0.01", m.Value())
	}

	m.Reset()
	if m.Value() != 0 {
		t.Error("expected zero drift after reset")
	}
}

func TestExtent(t *testing.T) {
	state := twoSpeciesState(t)
	m := NewExtent("A")

	m.OnStep(state, 0)
	if m.Value() != 0 {
		t.Errorf("extent at start = %v, want 0", m.Value())
	}

	state.SetSpeciesAmount("A", 0.25)
	m.OnStep(state, 1)
	if math.Abs(m.Value()-0.75) > 1e-12 {
		t.Errorf("extent = %v, want 0.75", m.Value())
	}

	m.Reset()
	if m.Value() != 0 {
		t.Error("expected zero extent after reset")
	}
}
