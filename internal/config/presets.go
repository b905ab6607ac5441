package config

// Presets are ready-to-run scenarios. The n2o5 preset is a fully kinetic
// gas decomposition, calcite nests an equilibrium aqueous subset under a
// kinetic mineral, and co2 uses an equilibrium constant interpolated over a
// temperature x pressure grid.
var Presets = map[string]*Config{
	"n2o5": {
		Name:        "n2o5",
		Temperature: 298.15,
		Pressure:    1.0e5,
		Duration:    3600,
		Method:      "rosenbrock",
		Format:      "t:minutes n[N2O5] n[NO2] n[O2]",
		Species: []SpeciesConfig{
			{Name: "N2O5", Formula: map[string]float64{"N": 2, "O": 5}},
			{Name: "NO2", Formula: map[string]float64{"N": 1, "O": 2}},
			{Name: "O2", Formula: map[string]float64{"O": 2}},
		},
		Amounts: map[string]float64{"N2O5": 1.0},
		Reactions: []ReactionConfig{
			{
				Name:          "decomposition",
				Stoichiometry: map[string]float64{"N2O5": -2, "NO2": 4, "O2": 1},
				Rate:          RateConfig{Type: "first_order", Species: "N2O5", A: 1.73e-5},
			},
		},
		Partition: "kinetic = N2O5 NO2 O2",
	},
	"calcite": {
		Name:        "calcite",
		Temperature: 298.15,
		Pressure:    1.0e5,
		Duration:    7200,
		Method:      "rosenbrock",
		Format:      "t:minutes n[Calcite] n[Ca++] b[Ca]",
		Species: []SpeciesConfig{
			{Name: "Calcite", Formula: map[string]float64{"Ca": 1, "C": 1, "O": 3}, Activity: "pure"},
			{Name: "Ca++", Formula: map[string]float64{"Ca": 1}},
			{Name: "CO3--", Formula: map[string]float64{"C": 1, "O": 3}},
		},
		Amounts: map[string]float64{
			"Calcite": 1.0,
			"Ca++":    1e-6,
			"CO3--":   1e-6,
		},
		Reactions: []ReactionConfig{
			{
				Name:          "dissolution",
				Stoichiometry: map[string]float64{"Calcite": -1, "Ca++": 1, "CO3--": 1},
				Rate:          RateConfig{Type: "first_order", Species: "Calcite", A: 1e-4},
			},
		},
		Partition: "kinetic = Calcite",
	},
	"co2": {
		Name:        "co2",
		Temperature: 298.15,
		Pressure:    1.0e5,
		Duration:    3600,
		Method:      "rosenbrock",
		Format:      "t n[CO2(g)] n[HCO3-] pH",
		Species: []SpeciesConfig{
			{Name: "CO2(g)", Formula: map[string]float64{"C": 1, "O": 2}},
			{Name: "CO2(aq)", Formula: map[string]float64{"C": 1, "O": 2}},
			{Name: "H2O", Formula: map[string]float64{"H": 2, "O": 1}},
			{Name: "H+", Formula: map[string]float64{"H": 1}},
			{Name: "HCO3-", Formula: map[string]float64{"H": 1, "C": 1, "O": 3}},
		},
		Amounts: map[string]float64{
			"CO2(g)":  1.0,
			"CO2(aq)": 1e-5,
			"H2O":     55.5,
			"H+":      1e-7,
			"HCO3-":   1e-7,
		},
		Reactions: []ReactionConfig{
			{
				Name:          "dissolution",
				Stoichiometry: map[string]float64{"CO2(g)": -1, "CO2(aq)": 1},
				Rate:          RateConfig{Type: "first_order", Species: "CO2(g)", A: 1e-3},
			},
		},
		Partition: "kinetic = CO2(g)",
		Equilibria: []EquilibriumConfig{
			{
				Name:          "carbonic",
				Stoichiometry: map[string]float64{"CO2(aq)": -1, "H2O": -1, "H+": 1, "HCO3-": 1},
				LnKTable: &LnKTableConfig{
					Temperatures: []float64{278.15, 298.15, 323.15},
					Pressures:    []float64{1.0e5, 5.0e5},
					Values: []float64{
						-15.1, -15.2,
						-14.5, -14.6,
						-14.0, -14.1,
					},
				},
			},
		},
	},
}

func GetPreset(name string) *Config {
	return Presets[name]
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	return names
}
