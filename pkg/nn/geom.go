package nn

import (
	"github.com/chewxy/math32"
)

// Rect is a box in pixel coordinates
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r Rect) X2() int {
	return r.X + r.Width
}

func (r Rect) Y2() int {
	return r.Y + r.Height
}

func (r Rect) Area() int {
	return r.Width * r.Height
}

func (r Rect) Intersection(b Rect) Rect {
	x1 := max(r.X, b.X)
	y1 := max(r.Y, b.Y)
	x2 := min(r.X2(), b.X2())
	y2 := min(r.Y2(), b.Y2())
	return Rect{
		X:      x1,
		Y:      y1,
		Width:  max(0, x2-x1),
		Height: max(0, y2-y1),
	}
}

// Intersection over Union
func (r Rect) IOU(b Rect) float32 {
	intersection := r.Intersection(b)
	union := r.Area() + b.Area() - intersection.Area()
	if union <= 0 {
		return 0
	}
	return float32(intersection.Area()) / float32(union)
}

// Intersection over Union of two normalized boxes
func (d Detection) IOU(b Detection) float32 {
	x1 := math32.Max(d.X, b.X)
	y1 := math32.Max(d.Y, b.Y)
	x2 := math32.Min(d.X+d.W, b.X+b.W)
	y2 := math32.Min(d.Y+d.H, b.Y+b.H)
	inter := math32.Max(0, x2-x1) * math32.Max(0, y2-y1)
	union := d.W*d.H + b.W*b.H - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Clipped returns the detection with its box clipped to the unit square.
// Models sometimes emit corners slightly outside the input tensor.
func (d Detection) Clipped() Detection {
	x1 := clamp01(d.X)
	y1 := clamp01(d.Y)
	x2 := clamp01(d.X + d.W)
	y2 := clamp01(d.Y + d.H)
	d.X = x1
	d.Y = y1
	d.W = x2 - x1
	d.H = y2 - y1
	return d
}

func clamp01(v float32) float32 {
	return math32.Max(0, math32.Min(1, v))
}
