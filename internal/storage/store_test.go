package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/kinpath/internal/store"
)

func sampleResult() *store.Result {
	return &store.Result{
		Species:  []string{"A", "B"},
		Elements: []string{"X"},
		Times:    []float64{0.0, 0.5},
		Amounts:  [][]float64{{1.0, 0.0}, {0.6, 0.4}},
		Totals:   [][]float64{{1.0}, {1.0}},
		Metrics:  map[string]float64{"element_drift": 2e-13},
	}
}

func TestStoreSaveLoad(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)

	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	runID, err := st.Save("decay", 0.5, "rosenbrock", sampleResult())
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	if runID == "" {
		t.Error("expected non-empty run id")
	}

	meta, err := st.Load(runID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if meta.Scenario != "decay" {
		t.Errorf("expected scenario 'decay', got '%s'", meta.Scenario)
	}

	if meta.Integrator != "rosenbrock" {
		t.Errorf("expected integrator 'rosenbrock', got '%s'", meta.Integrator)
	}

	if meta.Metrics["element_drift"] != 2e-13 {
		t.Errorf("expected drift 2e-13, got %v", meta.Metrics["element_drift"])
	}

	rows, times, err := st.LoadAmounts(runID)
	if err != nil {
		t.Fatalf("load amounts failed: %v", err)
	}

	if len(rows) != 2 {
		t.Errorf("expected 2 rows, got %d", len(rows))
	}

	if len(times) != 2 {
		t.Errorf("expected 2 times, got %d", len(times))
	}

	// Species amounts then element totals per row.
	if len(rows[0]) != 3 || rows[1][0] != 0.6 || rows[1][2] != 1.0 {
		t.Errorf("unexpected rows: %v", rows)
	}
}

func TestStoreList(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)

	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	runs, err := st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}

	if len(runs) != 0 {
		t.Errorf("expected 0 runs, got %d", len(runs))
	}

	if _, err := st.Save("decay", 0.5, "rosenbrock", sampleResult()); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	runs, err = st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}

	if len(runs) != 1 {
		t.Errorf("expected 1 run, got %d", len(runs))
	}
}

func TestStoreFileStructure(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)

	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	runID, err := st.Save("decay", 0.5, "rosenbrock", sampleResult())
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	runDir := filepath.Join(tmpDir, runID)
	metaPath := filepath.Join(runDir, "metadata.json")
	csvPath := filepath.Join(runDir, "amounts.csv")

	if _, err := os.Stat(metaPath); os.IsNotExist(err) {
		t.Error("metadata.json not created")
	}

	if _, err := os.Stat(csvPath); os.IsNotExist(err) {
		t.Error("amounts.csv not created")
	}
}
