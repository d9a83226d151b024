package viz

import (
	"fmt"
	"strings"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/mecsim/internal/telemetry"
)

var velocityChannels = []struct{ column, caption string }{
	{"x_velocity", "x velocity (m/s)"},
	{"y_velocity", "y velocity (m/s)"},
	{"angular_velocity", "angular velocity (rad/s)"},
}

// VelocityPlot charts each velocity channel of measured against simulated.
// A nil measured sample charts the simulated trajectory alone.
func VelocityPlot(measured, simulated *telemetry.Sample, width, height int) string {
	var b strings.Builder
	for _, ch := range velocityChannels {
		series := [][]float64{simulated.Column(ch.column)}
		legends := []string{"simulated"}
		colors := []asciigraph.AnsiColor{asciigraph.Red}
		if measured != nil {
			series = append([][]float64{measured.Column(ch.column)}, series...)
			legends = append([]string{"measured"}, legends...)
			colors = append([]asciigraph.AnsiColor{asciigraph.Blue}, colors...)
		}
		if len(series[0]) == 0 {
			continue
		}
		b.WriteString(asciigraph.PlotMany(series,
			asciigraph.Height(height),
			asciigraph.Width(width),
			asciigraph.Caption(ch.caption),
			asciigraph.SeriesColors(colors...),
			asciigraph.SeriesLegends(legends...),
		))
		b.WriteString("\n\n")
	}
	return b.String()
}

func path(s *telemetry.Sample) [][2]float64 {
	out := make([][2]float64, s.Len())
	for i := range out {
		out[i] = [2]float64{s.XPosition[i], s.YPosition[i]}
	}
	return out
}

// PathPlot draws the planar path of every sample on one shared canvas.
func PathPlot(width, height int, samples ...*telemetry.Sample) string {
	paths := make([][][2]float64, 0, len(samples))
	for _, s := range samples {
		if s != nil {
			paths = append(paths, path(s))
		}
	}
	b := BoundsOf(paths...)
	c := NewCanvas(width, height)
	for _, p := range paths {
		c.DrawPath(b, p)
	}
	return fmt.Sprintf("%s%s\n", c, Subtle.Render(fmt.Sprintf("x [%.2f, %.2f] m  y [%.2f, %.2f] m", b.MinX, b.MaxX, b.MinY, b.MaxY)))
}
