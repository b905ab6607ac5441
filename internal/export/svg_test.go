package export

import (
	"strings"
	"testing"

	"github.com/san-kum/kinpath/internal/store"
)

func TestResultToSVG(t *testing.T) {
	result := &store.Result{
		Species: []string{"A", "B"},
		Times:   []float64{0, 1, 2},
		Amounts: [][]float64{{1.0, 0.0}, {0.6, 0.4}, {0.35, 0.65}},
	}

	svg := ResultToSVG(result, 640, 360)
	if !strings.HasPrefix(svg, "<?xml") {
		t.Fatal("missing XML header")
	}
	if !strings.HasSuffix(svg, "</svg>") {
		t.Fatal("missing closing tag")
	}
	if got := strings.Count(svg, "<path"); got != 2 {
		t.Errorf("got %d paths, want one per species", got)
	}
	for _, name := range result.Species {
		if !strings.Contains(svg, ">"+name+"</text>") {
			t.Errorf("legend entry for %s missing", name)
		}
	}
}

func TestResultToSVGTooShort(t *testing.T) {
	result := &store.Result{
		Species: []string{"A"},
		Times:   []float64{0},
		Amounts: [][]float64{{1.0}},
	}
	if svg := ResultToSVG(result, 640, 360); svg != "" {
		t.Errorf("expected empty output for a single sample, got %d bytes", len(svg))
	}
	if svg := ResultToSVG(nil, 640, 360); svg != "" {
		t.Error("expected empty output for nil result")
	}
}
