// Package overlay draws user-interaction feedback and status annotations
// onto the node's display buffers.
package overlay

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"pivision/tracking"
)

const (
	markerThickness = 2
	boxThickness    = 2
	trackThickness  = 3
	clickRadius     = 3
)

// Renderer draws selection feedback into the marker overlay and boxes/text
// onto the composited display image.
type Renderer struct {
	markerColor color.RGBA
	boxColor    color.RGBA
	textColor   color.RGBA
}

// NewRenderer returns a renderer with the node's standard palette: yellow
// markers and status text, red detection/tracking boxes.
func NewRenderer() *Renderer {
	return &Renderer{
		markerColor: color.RGBA{R: 255, G: 255, B: 0, A: 255},
		boxColor:    color.RGBA{R: 255, A: 255},
		textColor:   color.RGBA{R: 255, G: 255, B: 0, A: 255},
	}
}

// DrawSelection outlines the in-progress drag rectangle on the marker image.
func (r *Renderer) DrawSelection(img *gocv.Mat, rect image.Rectangle) {
	gocv.Rectangle(img, rect, r.markerColor, markerThickness)
}

// DrawClickPoint marks a single clicked point on the marker image.
func (r *Renderer) DrawClickPoint(img *gocv.Mat, pt image.Point) {
	gocv.Circle(img, pt, clickRadius, r.markerColor, markerThickness)
}

// DrawDetectBox outlines a confirmed selection on the display image.
func (r *Renderer) DrawDetectBox(img *gocv.Mat, rect image.Rectangle) {
	gocv.Rectangle(img, rect, r.boxColor, boxThickness)
}

// DrawTrackBox renders an active track as an ellipse inscribed in the
// rotated box, matching how the tracker reports oriented targets.
func (r *Renderer) DrawTrackBox(img *gocv.Mat, box tracking.TrackBox) {
	if box.IsZero() {
		return
	}
	axes := image.Pt(box.Width/2, box.Height/2)
	gocv.Ellipse(img, box.Center, axes, box.Angle, 0, 360, r.boxColor, trackThickness)
}

// DrawStats annotates the smoothed update rate and the frame resolution at
// fixed relative positions: both 10% down, text at x=10 and x=40% of width.
func (r *Renderer) DrawStats(img *gocv.Mat, fps, width, height int) {
	y := int(float64(height) * 0.1)
	gocv.PutText(img, fmt.Sprintf("UPS: %d", fps),
		image.Pt(10, y), gocv.FontHersheySimplex, 0.6, r.textColor, 2)
	gocv.PutText(img, fmt.Sprintf("RES: %dX%d", width, height),
		image.Pt(int(float64(width)*0.4), y), gocv.FontHersheySimplex, 0.6, r.textColor, 2)
}
