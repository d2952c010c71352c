package tracking

import (
	"image"
	"math"
	"time"
)

// TrackBox is a possibly rotated rectangle reported by an external tracker.
// The vision core only renders it; it never produces one itself.
type TrackBox struct {
	Center image.Point
	Width  int
	Height int
	Angle  float64 // degrees, counter-clockwise
}

// IsZero reports whether the box has no usable area.
func (b TrackBox) IsZero() bool {
	return b.Width <= 0 || b.Height <= 0
}

// BoundingRect returns the axis-aligned rectangle enclosing the rotated box.
func (b TrackBox) BoundingRect() image.Rectangle {
	if b.IsZero() {
		return image.Rectangle{}
	}
	rad := b.Angle * math.Pi / 180
	cos, sin := math.Abs(math.Cos(rad)), math.Abs(math.Sin(rad))
	halfW := (float64(b.Width)*cos + float64(b.Height)*sin) / 2
	halfH := (float64(b.Width)*sin + float64(b.Height)*cos) / 2
	return image.Rect(
		b.Center.X-int(math.Round(halfW)),
		b.Center.Y-int(math.Round(halfH)),
		b.Center.X+int(math.Round(halfW)),
		b.Center.Y+int(math.Round(halfH)),
	)
}

// TrackedObject is the per-object report an external tracking algorithm
// feeds the node with.
type TrackedObject struct {
	ID            int
	CenterX       int
	CenterY       int
	Width         int
	Height        int
	Angle         float64
	Confidence    float64
	LastSeen      time.Time
	TrackedFrames int
	LostFrames    int
}

// Box converts the object's pose into the TrackBox drawn on screen.
func (o TrackedObject) Box() TrackBox {
	return TrackBox{
		Center: image.Pt(o.CenterX, o.CenterY),
		Width:  o.Width,
		Height: o.Height,
		Angle:  o.Angle,
	}
}
