// Package export writes stored trajectories in formats meant for other tools.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/san-kum/mecsim/internal/telemetry"
	"github.com/san-kum/mecsim/internal/viz"
)

// Series is one planar path drawn with its own stroke colour.
type Series struct {
	Name   string
	Color  string
	Points [][2]float64
}

// SeriesOf takes the x/y position columns of a sample.
func SeriesOf(s *telemetry.Sample, color string) Series {
	pts := make([][2]float64, s.Len())
	for i := range pts {
		pts[i] = [2]float64{s.XPosition[i], s.YPosition[i]}
	}
	return Series{Name: s.Name, Color: color, Points: pts}
}

// PathsToSVG draws every series on one shared, aspect-preserving set of
// axes. Series with fewer than two points are skipped.
func PathsToSVG(w io.Writer, width, height int, series ...Series) error {
	pts := make([][][2]float64, len(series))
	for i, s := range series {
		pts[i] = s.Points
	}
	b := viz.BoundsOf(pts...)

	scale := min(float64(width)/(b.MaxX-b.MinX), float64(height)/(b.MaxY-b.MinY))

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height)

	for k, s := range series {
		if len(s.Points) < 2 {
			continue
		}
		fmt.Fprintf(&sb, `<path fill="none" stroke="%s" stroke-width="1.5" d="`, s.Color)
		for i, p := range s.Points {
			x := (p[0] - b.MinX) * scale
			// svg y grows downwards
			y := float64(height) - (p[1]-b.MinY)*scale
			cmd := "L"
			if i == 0 {
				cmd = "M"
			}
			fmt.Fprintf(&sb, "%s%.1f,%.1f ", cmd, x, y)
		}
		sb.WriteString("\"/>\n")
		fmt.Fprintf(&sb, `<text x="8" y="%d" fill="%s" font-family="monospace" font-size="12">%s</text>
`, 16*(k+1), s.Color, s.Name)
	}

	sb.WriteString("</svg>\n")
	_, err := io.WriteString(w, sb.String())
	return err
}
