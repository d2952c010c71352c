package detection

import (
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Result is the output of one processing pass. Image remains owned by the
// Processor; callers must copy it before the next Process call and must
// never close it.
type Result struct {
	Image    gocv.Mat
	Channels int
}

// Processor is the pluggable per-frame image-processing step. Deployments
// that run a real detector substitute their own implementation; the base
// node uses Grayscale.
type Processor interface {
	// Process consumes the working frame and returns a 1- or 3-channel
	// image for display.
	Process(src gocv.Mat) (Result, error)
	// Reset discards any accumulated features or per-track state.
	Reset()
	Close() error
}

// Grayscale is the default processor: grayscale conversion plus histogram
// equalization, no detection.
type Grayscale struct {
	grey      gocv.Mat
	allocated bool
}

// NewGrayscale returns an unallocated Grayscale processor. Its working
// buffer materializes on the first frame and keeps that size.
func NewGrayscale() *Grayscale {
	return &Grayscale{}
}

// Process converts src to an equalized single-channel image.
func (g *Grayscale) Process(src gocv.Mat) (Result, error) {
	if src.Empty() {
		return Result{}, errors.New("empty source frame")
	}
	if !g.allocated {
		g.grey = gocv.NewMatWithSize(src.Rows(), src.Cols(), gocv.MatTypeCV8UC1)
		g.allocated = true
	}
	if src.Rows() != g.grey.Rows() || src.Cols() != g.grey.Cols() {
		return Result{}, errors.Errorf("frame size %dx%d does not match processor buffer %dx%d",
			src.Cols(), src.Rows(), g.grey.Cols(), g.grey.Rows())
	}
	gocv.CvtColor(src, &g.grey, gocv.ColorBGRToGray)
	gocv.EqualizeHist(g.grey, &g.grey)
	return Result{Image: g.grey, Channels: 1}, nil
}

// Reset is a no-op; Grayscale keeps no feature state.
func (g *Grayscale) Reset() {}

// Close releases the working buffer.
func (g *Grayscale) Close() error {
	if g.allocated {
		g.allocated = false
		return g.grey.Close()
	}
	return nil
}
