package store

import (
	"encoding/json"
	"os"

	"github.com/san-kum/kinpath/internal/chem"
)

// Result is the recorded trajectory of a path integration: one row per
// reported step, with species amounts and element totals resolved at each
// time.
type Result struct {
	Species  []string
	Elements []string
	Times    []float64
	Amounts  [][]float64
	Totals   [][]float64
	Metrics  map[string]float64
}

// Recorder is an observer that accumulates a Result as the path advances.
type Recorder struct {
	result Result
}

func NewRecorder(system *chem.System) *Recorder {
	species := system.Species()
	names := make([]string, len(species))
	for i, sp := range species {
		names[i] = sp.Name
	}
	return &Recorder{
		result: Result{
			Species:  names,
			Elements: system.Elements(),
			Metrics:  map[string]float64{},
		},
	}
}

func (r *Recorder) OnStep(state *chem.State, t float64) {
	r.result.Times = append(r.result.Times, t)
	r.result.Amounts = append(r.result.Amounts, append([]float64(nil), state.Amounts()...))

	totals := make([]float64, len(r.result.Elements))
	for i, el := range r.result.Elements {
		totals[i], _ = state.ElementAmount(el)
	}
	r.result.Totals = append(r.result.Totals, totals)
}

// SetMetric records a named scalar alongside the trajectory.
func (r *Recorder) SetMetric(name string, value float64) {
	r.result.Metrics[name] = value
}

func (r *Recorder) Result() *Result { return &r.result }

type ExportData struct {
	Scenario   string             `json:"scenario"`
	Integrator string             `json:"integrator"`
	Duration   float64            `json:"duration"`
	Steps      int                `json:"steps"`
	Species    []string           `json:"species"`
	Elements   []string           `json:"elements"`
	Times      []float64          `json:"times"`
	Amounts    [][]float64        `json:"amounts"`
	Totals     [][]float64        `json:"element_totals"`
	Metrics    map[string]float64 `json:"metrics"`
}

func exportData(scenario, integrator string, duration float64, result *Result) ExportData {
	return ExportData{
		Scenario:   scenario,
		Integrator: integrator,
		Duration:   duration,
		Steps:      len(result.Times),
		Species:    result.Species,
		Elements:   result.Elements,
		Times:      result.Times,
		Amounts:    result.Amounts,
		Totals:     result.Totals,
		Metrics:    result.Metrics,
	}
}

func ExportJSON(path string, scenario, integrator string, duration float64, result *Result) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(exportData(scenario, integrator, duration, result))
}

func ExportJSONStdout(scenario, integrator string, duration float64, result *Result) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(exportData(scenario, integrator, duration, result))
}
