package detection

import (
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Passthrough returns the working frame untouched. Useful when the node
// should display the raw camera image, or as a stand-in processor in tests.
type Passthrough struct{}

func NewPassthrough() *Passthrough { return &Passthrough{} }

func (p *Passthrough) Process(src gocv.Mat) (Result, error) {
	if src.Empty() {
		return Result{}, errors.New("empty source frame")
	}
	return Result{Image: src, Channels: src.Channels()}, nil
}

func (p *Passthrough) Reset() {}

func (p *Passthrough) Close() error { return nil }
