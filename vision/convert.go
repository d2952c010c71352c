package vision

import (
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// FrameConverter decodes a wire-format color frame into a Mat the pipeline
// owns. A returned error means the frame is dropped.
type FrameConverter func(raw RawFrame) (gocv.Mat, error)

// DepthConverter decodes a wire-format depth frame.
type DepthConverter func(raw RawDepth) (gocv.Mat, error)

// ConvertBGR decodes a packed bgr8 frame. It is the node's stock color
// converter.
func ConvertBGR(raw RawFrame) (gocv.Mat, error) {
	if raw.Encoding != EncodingBGR8 {
		return gocv.Mat{}, errors.Errorf("unsupported color encoding %q", raw.Encoding)
	}
	if raw.Width <= 0 || raw.Height <= 0 {
		return gocv.Mat{}, errors.Errorf("invalid frame size %dx%d", raw.Width, raw.Height)
	}
	want := raw.Width * raw.Height * 3
	if len(raw.Data) != want {
		return gocv.Mat{}, errors.Errorf("bgr8 frame has %d bytes, want %d", len(raw.Data), want)
	}
	mat, err := gocv.NewMatFromBytes(raw.Height, raw.Width, gocv.MatTypeCV8UC3, raw.Data)
	if err != nil {
		return gocv.Mat{}, errors.Wrap(err, "decoding bgr8 frame")
	}
	return mat, nil
}

// ConvertDepth decodes a packed 32-bit float single-channel depth frame.
func ConvertDepth(raw RawDepth) (gocv.Mat, error) {
	if raw.Encoding != EncodingDepth {
		return gocv.Mat{}, errors.Errorf("unsupported depth encoding %q", raw.Encoding)
	}
	if raw.Width <= 0 || raw.Height <= 0 {
		return gocv.Mat{}, errors.Errorf("invalid depth frame size %dx%d", raw.Width, raw.Height)
	}
	want := raw.Width * raw.Height * 4
	if len(raw.Data) != want {
		return gocv.Mat{}, errors.Errorf("32FC1 frame has %d bytes, want %d", len(raw.Data), want)
	}
	mat, err := gocv.NewMatFromBytes(raw.Height, raw.Width, gocv.MatTypeCV32F, raw.Data)
	if err != nil {
		return gocv.Mat{}, errors.Wrap(err, "decoding depth frame")
	}
	return mat, nil
}
