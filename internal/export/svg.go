package export

import (
	"fmt"
	"strings"

	"github.com/san-kum/kinpath/internal/store"
)

var seriesColors = []string{
	"#00ff00", "#00bfff", "#ff6347", "#ffd700",
	"#ff69b4", "#7fffd4", "#ff8c00", "#9370db",
}

// ResultToSVG plots every species amount against time as one polyline per
// species, with a small legend in the top-right corner. Returns the empty
// string when there are fewer than two samples.
func ResultToSVG(result *store.Result, width, height int) string {
	if result == nil || len(result.Times) < 2 {
		return ""
	}

	minX, maxX := result.Times[0], result.Times[len(result.Times)-1]
	minY, maxY := result.Amounts[0][0], result.Amounts[0][0]
	for _, row := range result.Amounts {
		for _, v := range row {
			if v < minY {
				minY = v
			}
			if v > maxY {
				maxY = v
			}
		}
	}

	// Pad the bounds
	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	rangeY = maxY - minY

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height))

	for s, name := range result.Species {
		color := seriesColors[s%len(seriesColors)]

		sb.WriteString(fmt.Sprintf(`<path fill="none" stroke="%s" stroke-width="1.5" d="M`, color))
		for i, t := range result.Times {
			x := (t - minX) / rangeX * float64(width)
			y := float64(height) - (result.Amounts[i][s]-minY)/rangeY*float64(height)

			if i == 0 {
				sb.WriteString(fmt.Sprintf("%.1f,%.1f", x, y))
			} else {
				sb.WriteString(fmt.Sprintf(" L%.1f,%.1f", x, y))
			}
		}
		sb.WriteString("\"/>\n")

		// Legend entry
		ly := 16 + 16*s
		sb.WriteString(fmt.Sprintf(`<rect x="%d" y="%d" width="10" height="10" fill="%s"/>
<text x="%d" y="%d" fill="#cccccc" font-family="monospace" font-size="12">%s</text>
`, width-110, ly, color, width-95, ly+10, name))
	}

	sb.WriteString("</svg>")
	return sb.String()
}
