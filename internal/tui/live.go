// Package tui renders a running kinetic path in the terminal.
package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/kinpath/internal/chem"
	"github.com/san-kum/kinpath/internal/config"
	"github.com/san-kum/kinpath/internal/kinetics"
)

const historyCapacity = 600

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).MarginBottom(1)
	statsStyle  = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(lipgloss.Color("240")).Padding(1, 2).Width(40)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(14)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	graphStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(2)
)

type TickMsg time.Time

// Model drives the path one internal step per frame and plots the species
// amounts as they evolve.
type Model struct {
	path     *kinetics.Path
	state    *chem.State
	scenario *config.Scenario

	t       float64
	tfinal  float64
	running bool
	done    bool
	err     error

	initial []float64
	history [][]float64 // one series per species
	times   []float64
}

// NewModel wraps an initialized path over the scenario's state. The path
// must already be bound to the state at t = 0.
func NewModel(sc *config.Scenario, path *kinetics.Path) Model {
	m := Model{
		path:     path,
		state:    sc.State,
		scenario: sc,
		tfinal:   sc.Duration,
		running:  true,
		initial:  append([]float64(nil), sc.State.Amounts()...),
		history:  make([][]float64, sc.System.NumSpecies()),
	}
	m.record()
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Tick(time.Second/60, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			if !m.done {
				m.running = !m.running
			}
		case "r":
			m.reset()
		}
	case TickMsg:
		if m.running && !m.done && m.err == nil {
			m.step()
		}
		return m, tea.Tick(time.Second/60, func(t time.Time) tea.Msg { return TickMsg(t) })
	}
	return m, nil
}

func (m *Model) step() {
	if err := m.path.StepTo(m.state, &m.t, m.tfinal); err != nil {
		m.err = err
		m.running = false
		return
	}
	m.record()
	if m.t >= m.tfinal {
		m.done = true
		m.running = false
	}
}

func (m *Model) record() {
	m.times = append(m.times, m.t)
	if len(m.times) > historyCapacity {
		m.times = m.times[1:]
	}
	for i, n := range m.state.Amounts() {
		m.history[i] = append(m.history[i], n)
		if len(m.history[i]) > historyCapacity {
			m.history[i] = m.history[i][1:]
		}
	}
}

func (m *Model) reset() {
	copy(m.state.Amounts(), m.initial)
	m.t = 0
	m.done = false
	m.times = m.times[:0]
	for i := range m.history {
		m.history[i] = m.history[i][:0]
	}
	if err := m.path.Initialize(m.state, 0); err != nil {
		m.err = err
		m.running = false
		return
	}
	m.err = nil
	m.running = true
	m.record()
}

func (m Model) View() string {
	var s strings.Builder
	s.WriteString(headerStyle.Render(strings.ToUpper(m.scenario.Name)) + "\n")

	switch {
	case m.err != nil:
		s.WriteString(errorStyle.Render("FAILED") + "\n")
	case m.done:
		s.WriteString("DONE\n")
	case m.running:
		s.WriteString("RUNNING\n")
	default:
		s.WriteString("PAUSED\n")
	}
	s.WriteString("\n")

	s.WriteString(labelStyle.Render("Time") + valueStyle.Render(formatTime(m.t)) + "\n")
	s.WriteString(labelStyle.Render("Progress") + valueStyle.Render(fmt.Sprintf("%.1f%%", 100*m.t/m.tfinal)) + "\n")
	s.WriteString(labelStyle.Render("Steps") + valueStyle.Render(fmt.Sprintf("%d", len(m.times))) + "\n")
	s.WriteString("\nAMOUNTS\n")
	for i, sp := range m.scenario.System.Species() {
		s.WriteString(labelStyle.Render(sp.Name) + valueStyle.Render(fmt.Sprintf("%.6g mol", m.state.Amounts()[i])) + "\n")
	}
	s.WriteString("\nELEMENTS\n")
	for _, el := range m.scenario.System.Elements() {
		b, _ := m.state.ElementAmount(el)
		s.WriteString(labelStyle.Render(el) + valueStyle.Render(fmt.Sprintf("%.6g mol", b)) + "\n")
	}
	if m.err != nil {
		s.WriteString("\n" + errorStyle.Render(m.err.Error()) + "\n")
	}
	s.WriteString(helpStyle.Render("\nSP:Pause  R:Reset  Q:Quit"))
	statsView := statsStyle.Render(s.String())

	var chartView string
	if len(m.times) > 1 {
		chart := asciigraph.PlotMany(m.history,
			asciigraph.Height(18),
			asciigraph.Width(60),
			asciigraph.Caption(fmt.Sprintf("species amounts, t=%s", formatTime(m.t))))
		chartView = graphStyle.Render(chart)
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, chartView, statsView)
}

// formatTime picks a readable unit for a time in seconds.
func formatTime(t float64) string {
	switch {
	case math.Abs(t) >= 86400:
		return fmt.Sprintf("%.2f d", t/86400)
	case math.Abs(t) >= 3600:
		return fmt.Sprintf("%.2f h", t/3600)
	case math.Abs(t) >= 60:
		return fmt.Sprintf("%.2f min", t/60)
	}
	return fmt.Sprintf("%.2f s", t)
}
