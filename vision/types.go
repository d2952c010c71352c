// Package vision implements the node's per-frame processing core: the frame
// pipeline controller, the pointer-driven selection state machine, the
// marker-overlay compositing and the rolling frame-rate estimate.
package vision

import (
	"time"

	"gocv.io/x/gocv"
)

// Bus topic names used by the node.
const (
	TopicFrames  = "camera/image"
	TopicDepth   = "camera/depth"
	TopicPointer = "ui/pointer"
	TopicROI     = "roi"
)

// Encodings accepted by the stock converters.
const (
	EncodingBGR8  = "bgr8"
	EncodingDepth = "32FC1"
)

// RawFrame is a wire-format color frame as delivered by a frame source.
type RawFrame struct {
	Seq          uint64
	Timestamp    time.Time
	Width        int
	Height       int
	Encoding     string
	BottomOrigin bool // row 0 is the bottom of the picture
	Data         []byte
}

// RawDepth is a wire-format single-channel float depth frame.
type RawDepth struct {
	Seq       uint64
	Timestamp time.Time
	Width     int
	Height    int
	Encoding  string
	Data      []byte
}

// PointerKind enumerates pointer gestures.
type PointerKind int

const (
	PointerDown PointerKind = iota
	PointerUp
	PointerMove
)

// PointerEvent is a pointer gesture in display pixel coordinates.
type PointerEvent struct {
	Kind PointerKind
	X    int
	Y    int
}

// RegionOfInterest is the outbound selection message, published once per
// processed frame.
type RegionOfInterest struct {
	XOffset int
	YOffset int
	Width   int
	Height  int
}

// Display presents a composited frame to the user.
type Display interface {
	Present(img gocv.Mat) error
}

// KeySource yields at most one pending keypress per poll.
type KeySource interface {
	PollKey() (byte, bool)
}

// ROIPublisher accepts the per-frame region-of-interest message.
type ROIPublisher interface {
	PublishROI(roi RegionOfInterest)
}

// NopDisplay discards frames; used when the node runs headless.
type NopDisplay struct{}

func (NopDisplay) Present(gocv.Mat) error { return nil }

// NopKeySource never reports a keypress.
type NopKeySource struct{}

func (NopKeySource) PollKey() (byte, bool) { return 0, false }
