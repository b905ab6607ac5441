package config

import (
	"fmt"
	"os"

	"github.com/san-kum/kinpath/internal/chem"
	"github.com/san-kum/kinpath/internal/equilibrium"
	"github.com/san-kum/kinpath/internal/ode"
	"github.com/san-kum/kinpath/internal/thermo"
	"gopkg.in/yaml.v3"
)

const (
	DefaultTemperature = 298.15
	DefaultPressure    = 1.0e5
	DefaultDuration    = 60.0
	DefaultFormat      = "t"
)

type Config struct {
	Name        string              `yaml:"name"`
	Temperature float64             `yaml:"temperature"`
	Pressure    float64             `yaml:"pressure"`
	Duration    float64             `yaml:"duration"`
	Method      string              `yaml:"method"`
	Format      string              `yaml:"format"`
	Species     []SpeciesConfig     `yaml:"species"`
	Amounts     map[string]float64  `yaml:"amounts"`
	Reactions   []ReactionConfig    `yaml:"reactions"`
	Partition   string              `yaml:"partition"`
	Equilibria  []EquilibriumConfig `yaml:"equilibria"`
	Solver      SolverConfig        `yaml:"solver"`
}

type SpeciesConfig struct {
	Name     string             `yaml:"name"`
	Formula  map[string]float64 `yaml:"formula"`
	Activity string             `yaml:"activity"`
}

type RateConfig struct {
	Type    string          `yaml:"type"` // first_order or mass_action
	Species string          `yaml:"species"`
	A       float64         `yaml:"a"`
	Ea      float64         `yaml:"ea"`
	Forward ArrheniusConfig `yaml:"forward"`
	Reverse ArrheniusConfig `yaml:"reverse"`
}

type ArrheniusConfig struct {
	A  float64 `yaml:"a"`
	Ea float64 `yaml:"ea"`
}

type ReactionConfig struct {
	Name          string             `yaml:"name"`
	Stoichiometry map[string]float64 `yaml:"stoichiometry"`
	Rate          RateConfig         `yaml:"rate"`
}

type EquilibriumConfig struct {
	Name          string             `yaml:"name"`
	Stoichiometry map[string]float64 `yaml:"stoichiometry"`
	LnK           float64            `yaml:"lnk"`
	LnKTable      *LnKTableConfig    `yaml:"lnk_table"`
}

// LnKTableConfig tabulates ln K over a temperature grid, or over a
// temperature x pressure grid when pressures is given; values are then
// row-major with one row per temperature.
type LnKTableConfig struct {
	Temperatures []float64 `yaml:"temperatures"`
	Pressures    []float64 `yaml:"pressures"`
	Values       []float64 `yaml:"values"`
}

type SolverConfig struct {
	AbsTol      float64 `yaml:"abstol"`
	RelTol      float64 `yaml:"reltol"`
	InitialStep float64 `yaml:"initial_step"`
	MaxSteps    int     `yaml:"max_steps"`
}

func DefaultConfig() *Config {
	return &Config{
		Temperature: DefaultTemperature,
		Pressure:    DefaultPressure,
		Duration:    DefaultDuration,
		Method:      "rosenbrock",
		Format:      DefaultFormat,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Scenario is a fully materialized configuration: chemical system, rate
// laws, partition, equilibrium solver and initial state, ready to hand to
// the kinetic path.
type Scenario struct {
	Name        string
	Method      string
	System      *chem.System
	Reactions   *chem.ReactionSystem
	Partition   *chem.Partition
	Equilibrium *equilibrium.Solver
	State       *chem.State
	Settings    ode.Settings
	Duration    float64
	Format      string
}

// Settings maps the solver section onto integrator settings, filling the
// gaps with defaults.
func (c *Config) settings() (ode.Settings, error) {
	set := ode.DefaultSettings()
	switch c.Method {
	case "", "rosenbrock":
		set.Method = ode.Rosenbrock
	case "dormand-prince":
		set.Method = ode.DormandPrince
	default:
		return set, fmt.Errorf("config: unknown method %q", c.Method)
	}
	if c.Solver.AbsTol > 0 {
		set.AbsTol = c.Solver.AbsTol
	}
	if c.Solver.RelTol > 0 {
		set.RelTol = c.Solver.RelTol
	}
	if c.Solver.InitialStep > 0 {
		set.InitialStep = c.Solver.InitialStep
	}
	if c.Solver.MaxSteps > 0 {
		set.MaxSteps = c.Solver.MaxSteps
	}
	return set, nil
}

func activityModel(name string) (chem.ActivityModel, error) {
	switch name {
	case "", "molar":
		return chem.ActivityMolar, nil
	case "molefraction":
		return chem.ActivityMoleFraction, nil
	case "pure":
		return chem.ActivityPure, nil
	}
	return 0, fmt.Errorf("config: unknown activity model %q", name)
}

func (rc RateConfig) build(system *chem.System, stoich map[string]float64) (chem.RateFunc, error) {
	switch rc.Type {
	case "", "first_order":
		if rc.Species == "" {
			return nil, fmt.Errorf("config: first_order rate needs a species")
		}
		return chem.FirstOrder(system, rc.Species, chem.Arrhenius{A: rc.A, Ea: rc.Ea})
	case "mass_action":
		kf := chem.Arrhenius{A: rc.Forward.A, Ea: rc.Forward.Ea}
		kr := chem.Arrhenius{A: rc.Reverse.A, Ea: rc.Reverse.Ea}
		return chem.MassAction(system, stoich, kf, kr)
	}
	return nil, fmt.Errorf("config: unknown rate type %q", rc.Type)
}

func (ec EquilibriumConfig) constraint() (equilibrium.Constraint, error) {
	con := equilibrium.Constraint{
		Name:          ec.Name,
		Stoichiometry: ec.Stoichiometry,
	}
	if ec.LnKTable != nil {
		in, err := newLnKInterpolator(ec.LnKTable)
		if err != nil {
			return con, fmt.Errorf("config: equilibrium %q: %w", ec.Name, err)
		}
		con.LnK = in
		return con, nil
	}
	con.LnK = equilibrium.ConstantLnK(ec.LnK)
	return con, nil
}

func newLnKInterpolator(tab *LnKTableConfig) (equilibrium.LnKFunc, error) {
	if len(tab.Pressures) > 0 {
		b, err := thermo.NewBilinear(tab.Temperatures, tab.Pressures, tab.Values)
		if err != nil {
			return nil, err
		}
		return equilibrium.BilinearLnK(b), nil
	}
	in, err := thermo.NewInterpolator(tab.Temperatures, tab.Values)
	if err != nil {
		return nil, err
	}
	return equilibrium.InterpolatedLnK(in), nil
}

// Build materializes the configuration. Partition defaults to all-equilibrium
// when the partition string is empty; an equilibrium solver is constructed
// only when the partition leaves an equilibrium subset.
func (c *Config) Build() (*Scenario, error) {
	if len(c.Species) == 0 {
		return nil, fmt.Errorf("config: no species defined")
	}

	species := make([]chem.Species, len(c.Species))
	for i, sc := range c.Species {
		model, err := activityModel(sc.Activity)
		if err != nil {
			return nil, fmt.Errorf("config: species %q: %w", sc.Name, err)
		}
		species[i] = chem.Species{Name: sc.Name, Formula: sc.Formula, Activity: model}
	}
	system, err := chem.NewSystem(species)
	if err != nil {
		return nil, err
	}

	reactions := make([]chem.Reaction, len(c.Reactions))
	for i, rc := range c.Reactions {
		rate, err := rc.Rate.build(system, rc.Stoichiometry)
		if err != nil {
			return nil, fmt.Errorf("config: reaction %q: %w", rc.Name, err)
		}
		reactions[i] = chem.Reaction{
			Name:          rc.Name,
			Stoichiometry: rc.Stoichiometry,
			Rate:          rate,
		}
	}
	rs, err := chem.NewReactionSystem(system, reactions)
	if err != nil {
		return nil, err
	}

	var part *chem.Partition
	if c.Partition == "" {
		part = chem.NewPartition(system)
	} else {
		part, err = chem.ParsePartition(system, c.Partition)
		if err != nil {
			return nil, err
		}
	}

	var eq *equilibrium.Solver
	if len(part.EquilibriumSpecies()) > 0 {
		constraints := make([]equilibrium.Constraint, len(c.Equilibria))
		for i, ec := range c.Equilibria {
			if constraints[i], err = ec.constraint(); err != nil {
				return nil, err
			}
		}
		eq, err = equilibrium.NewSolver(part, constraints, equilibrium.Options{})
		if err != nil {
			return nil, err
		}
	}

	state := chem.NewState(system)
	if c.Temperature > 0 {
		state.SetTemperature(c.Temperature)
	}
	if c.Pressure > 0 {
		state.SetPressure(c.Pressure)
	}
	for name, amount := range c.Amounts {
		if err := state.SetSpeciesAmount(name, amount); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}

	set, err := c.settings()
	if err != nil {
		return nil, err
	}

	duration := c.Duration
	if duration <= 0 {
		duration = DefaultDuration
	}
	format := c.Format
	if format == "" {
		format = DefaultFormat
	}

	methodName := c.Method
	if methodName == "" {
		methodName = "rosenbrock"
	}

	return &Scenario{
		Name:        c.Name,
		Method:      methodName,
		System:      system,
		Reactions:   rs,
		Partition:   part,
		Equilibrium: eq,
		State:       state,
		Settings:    set,
		Duration:    duration,
		Format:      format,
	}, nil
}
