// Package pitch renders a two-level pitch accent diagram.
package pitch

import "strings"

const (
	ColumnWidth = 40
	Height      = 36
	Padding     = 10
	DotRadius   = 4
)

// Point is one pattern entry.
type Point struct {
	X    int  `json:"x"`
	Y    int  `json:"y"`
	High bool `json:"high"`
}

// Line connects two consecutive points.
type Line struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Label is one character of the reading shown under the diagram.
type Label struct {
	X    int    `json:"x"`
	Text string `json:"text"`
}

// Diagram is the geometry of a pitch diagram in pixels.
type Diagram struct {
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	DotRadius int     `json:"dotRadius"`
	Points    []Point `json:"points"`
	Lines     []Line  `json:"lines"`
	Labels    []Label `json:"labels"`
}

// Render lays out one point per pattern entry and one label per reading character.
// When the two lengths differ the diagram is wide enough for the longer one; nothing is dropped.
func Render(pattern []int, reading string) Diagram {
	chars := []rune(reading)
	columns := len(chars)
	if len(pattern) > columns {
		columns = len(pattern)
	}

	d := Diagram{
		Width:     columns * ColumnWidth,
		Height:    Height,
		DotRadius: DotRadius,
		Points:    make([]Point, 0, len(pattern)),
		Lines:     make([]Line, 0, max(len(pattern)-1, 0)),
		Labels:    make([]Label, 0, len(chars)),
	}

	for i, level := range pattern {
		d.Points = append(d.Points, Point{X: x(i), Y: y(level), High: level == 1})
		if i+1 < len(pattern) {
			d.Lines = append(d.Lines, Line{X1: x(i), Y1: y(level), X2: x(i + 1), Y2: y(pattern[i+1])})
		}
	}
	for i, r := range chars {
		d.Labels = append(d.Labels, Label{X: x(i), Text: string(r)})
	}
	return d
}

func x(index int) int {
	return index*ColumnWidth + ColumnWidth/2
}

func y(level int) int {
	if level == 1 {
		return Padding
	}
	return Height - Padding
}

// Text renders the diagram as two text rows (high, low) followed by the reading labels.
func Text(d Diagram) string {
	columns := len(d.Points)
	if len(d.Labels) > columns {
		columns = len(d.Labels)
	}

	high := make([]string, columns)
	low := make([]string, columns)
	labels := make([]string, columns)
	for i := 0; i < columns; i++ {
		high[i], low[i], labels[i] = "  ", "  ", "  "
	}
	for i, p := range d.Points {
		if p.High {
			high[i] = "● "
		} else {
			low[i] = "● "
		}
	}
	for i, l := range d.Labels {
		labels[i] = l.Text
	}

	return strings.Join([]string{
		strings.TrimRight(strings.Join(high, ""), " "),
		strings.TrimRight(strings.Join(low, ""), " "),
		strings.Join(labels, ""),
	}, "\n")
}
