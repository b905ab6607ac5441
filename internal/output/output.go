// Package output formats path results as aligned text columns driven by a
// quantity format string, for example:
//
//	t:minutes n[Calcite] b[Ca] r[dissolution] a[H+] pH
//
// Each token selects one column. Formatting is entirely decoupled from the
// integration; a Writer is attached to a path as an observer.
package output

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/san-kum/kinpath/internal/chem"
)

const columnWidth = 20

var timeUnits = map[string]float64{
	"seconds": 1,
	"minutes": 60,
	"hours":   3600,
	"days":    86400,
}

var amountUnits = map[string]float64{
	"mol":  1,
	"mmol": 1e-3,
	"umol": 1e-6,
	"kmol": 1e3,
}

// quantity is a single column: a header label and an evaluator over the
// current state.
type quantity struct {
	header string
	eval   func(state *chem.State, t float64) float64
}

// Writer turns (state, t) pairs into one table row per step. It satisfies
// the path's observer contract.
type Writer struct {
	reactions *chem.ReactionSystem
	system    *chem.System
	out       io.Writer

	quantities []quantity
	needsAct   bool
	needsRates bool
	headerDone bool

	act   *chem.Vector
	rates *chem.Vector
}

// NewWriter parses the quantity format string and returns a writer emitting
// to out. Unknown species, elements, reactions or units are reported up
// front rather than at the first step.
func NewWriter(reactions *chem.ReactionSystem, format string, out io.Writer) (*Writer, error) {
	sys := reactions.System()
	w := &Writer{
		reactions: reactions,
		system:    sys,
		out:       out,
		act:       chem.NewVector(sys.NumSpecies(), sys.NumSpecies()),
		rates:     chem.NewVector(reactions.NumReactions(), sys.NumSpecies()),
	}
	for _, token := range strings.Fields(format) {
		q, err := w.parse(token)
		if err != nil {
			return nil, err
		}
		w.quantities = append(w.quantities, q)
	}
	if len(w.quantities) == 0 {
		return nil, fmt.Errorf("output: empty format string")
	}
	return w, nil
}

func (w *Writer) parse(token string) (quantity, error) {
	name, unit, hasUnit := strings.Cut(token, ":")

	switch {
	case name == "t":
		scale := 1.0
		if hasUnit {
			s, ok := timeUnits[unit]
			if !ok {
				return quantity{}, fmt.Errorf("output: unknown time unit %q in %q", unit, token)
			}
			scale = s
		}
		return quantity{
			header: token,
			eval:   func(_ *chem.State, t float64) float64 { return t / scale },
		}, nil

	case name == "pH":
		i, ok := w.system.SpeciesIndex("H+")
		if !ok {
			return quantity{}, fmt.Errorf("output: pH requires species H+ in the system")
		}
		w.needsAct = true
		return quantity{
			header: token,
			eval: func(_ *chem.State, _ float64) float64 {
				return -math.Log10(w.act.Val[i])
			},
		}, nil

	case strings.HasPrefix(name, "n["):
		sp, err := bracketArg(name, "n")
		if err != nil {
			return quantity{}, err
		}
		i, ok := w.system.SpeciesIndex(sp)
		if !ok {
			return quantity{}, fmt.Errorf("output: unknown species %q in %q", sp, token)
		}
		scale := 1.0
		if hasUnit {
			s, ok := amountUnits[unit]
			if !ok {
				return quantity{}, fmt.Errorf("output: unknown amount unit %q in %q", unit, token)
			}
			scale = s
		}
		return quantity{
			header: token,
			eval: func(state *chem.State, _ float64) float64 {
				return state.Amounts()[i] / scale
			},
		}, nil

	case strings.HasPrefix(name, "b["):
		el, err := bracketArg(name, "b")
		if err != nil {
			return quantity{}, err
		}
		if _, ok := w.system.ElementIndex(el); !ok {
			return quantity{}, fmt.Errorf("output: unknown element %q in %q", el, token)
		}
		scale := 1.0
		if hasUnit {
			s, ok := amountUnits[unit]
			if !ok {
				return quantity{}, fmt.Errorf("output: unknown amount unit %q in %q", unit, token)
			}
			scale = s
		}
		return quantity{
			header: token,
			eval: func(state *chem.State, _ float64) float64 {
				b, _ := state.ElementAmount(el)
				return b / scale
			},
		}, nil

	case strings.HasPrefix(name, "a["):
		sp, err := bracketArg(name, "a")
		if err != nil {
			return quantity{}, err
		}
		i, ok := w.system.SpeciesIndex(sp)
		if !ok {
			return quantity{}, fmt.Errorf("output: unknown species %q in %q", sp, token)
		}
		w.needsAct = true
		return quantity{
			header: token,
			eval: func(_ *chem.State, _ float64) float64 {
				return w.act.Val[i]
			},
		}, nil

	case strings.HasPrefix(name, "r["):
		rx, err := bracketArg(name, "r")
		if err != nil {
			return quantity{}, err
		}
		i, ok := w.reactions.Index(rx)
		if !ok {
			return quantity{}, fmt.Errorf("output: unknown reaction %q in %q", rx, token)
		}
		w.needsRates = true
		return quantity{
			header: token,
			eval: func(_ *chem.State, _ float64) float64 {
				return w.rates.Val[i]
			},
		}, nil
	}

	return quantity{}, fmt.Errorf("output: unrecognized quantity %q", token)
}

// bracketArg extracts X from "q[X]".
func bracketArg(name, prefix string) (string, error) {
	if !strings.HasSuffix(name, "]") {
		return "", fmt.Errorf("output: malformed quantity %q", name)
	}
	arg := name[len(prefix)+1 : len(name)-1]
	if arg == "" {
		return "", fmt.Errorf("output: malformed quantity %q", name)
	}
	return arg, nil
}

// OnStep writes one row, preceded by the header row on first call.
func (w *Writer) OnStep(state *chem.State, t float64) {
	if !w.headerDone {
		for _, q := range w.quantities {
			fmt.Fprintf(w.out, "%-*s", columnWidth, q.header)
		}
		fmt.Fprintln(w.out)
		w.headerDone = true
	}

	if w.needsAct || w.needsRates {
		w.system.Activities(state.Temperature(), state.Pressure(), state.Amounts(), w.act)
	}
	if w.needsRates {
		w.reactions.Rates(state.Temperature(), state.Pressure(), state.Amounts(), w.act, w.rates)
	}

	for _, q := range w.quantities {
		fmt.Fprintf(w.out, "%-*g", columnWidth, q.eval(state, t))
	}
	fmt.Fprintln(w.out)
}
