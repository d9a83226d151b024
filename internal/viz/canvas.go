package viz

import (
	"math"
	"strings"
)

// Braille Patterns: 2x4 dots
// 1 4
// 2 5
// 3 6
// 7 8
//
// Unicode offset 0x2800
var pixelMap = [4][2]int{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

const blank = 0x2800

// Canvas is a character grid addressed in Braille sub-pixels, so a canvas of
// Width x Height cells holds (2*Width) x (4*Height) pixels.
type Canvas struct {
	Width, Height int
	Grid          [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{
		Width:  w,
		Height: h,
		Grid:   make([][]rune, h),
	}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
	}
	c.Clear()
	return c
}

// Set lights the sub-pixel at (x, y). Out-of-range pixels are ignored.
func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 {
		return
	}
	col, row := x/2, y/4
	if col >= c.Width || row >= c.Height {
		return
	}
	c.Grid[row][col] |= rune(pixelMap[y%4][x%2])
}

func (c *Canvas) Clear() {
	for i := range c.Grid {
		for j := range c.Grid[i] {
			c.Grid[i][j] = blank
		}
	}
}

// DrawLine draws a line using Bresenham's algorithm
func (c *Canvas) DrawLine(x0, y0, x1, y1 int) {
	dx := absInt(x1 - x0)
	dy := absInt(y1 - y0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy

	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

// Bounds is a world-space rectangle mapped onto the whole canvas.
type Bounds struct {
	MinX, MaxX, MinY, MaxY float64
}

// BoundsOf returns the smallest square-ish box around every path, padded so a
// stationary path still has a non-empty extent.
func BoundsOf(paths ...[][2]float64) Bounds {
	b := Bounds{math.Inf(1), math.Inf(-1), math.Inf(1), math.Inf(-1)}
	for _, path := range paths {
		for _, p := range path {
			b.MinX, b.MaxX = math.Min(b.MinX, p[0]), math.Max(b.MaxX, p[0])
			b.MinY, b.MaxY = math.Min(b.MinY, p[1]), math.Max(b.MaxY, p[1])
		}
	}
	if math.IsInf(b.MinX, 1) {
		return Bounds{-1, 1, -1, 1}
	}
	const pad = 0.05
	b.MinX, b.MaxX = b.MinX-pad, b.MaxX+pad
	b.MinY, b.MaxY = b.MinY-pad, b.MaxY+pad
	return b
}

func (c *Canvas) project(b Bounds, x, y float64) (int, int) {
	w, h := float64(2*c.Width-1), float64(4*c.Height-1)
	px := (x - b.MinX) / (b.MaxX - b.MinX) * w
	// screen y grows downwards
	py := (b.MaxY - y) / (b.MaxY - b.MinY) * h
	return int(math.Round(px)), int(math.Round(py))
}

// DrawPath joins consecutive world-space points.
func (c *Canvas) DrawPath(b Bounds, path [][2]float64) {
	for i, p := range path {
		x, y := c.project(b, p[0], p[1])
		if i == 0 {
			c.Set(x, y)
			continue
		}
		x0, y0 := c.project(b, path[i-1][0], path[i-1][1])
		c.DrawLine(x0, y0, x, y)
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.Grid {
		b.WriteString(string(row) + "\n")
	}
	return b.String()
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
