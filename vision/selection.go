package vision

import (
	"image"
	"sync"
)

// Selector is the pointer-driven selection state machine. A drag gesture
// sweeps out a SelectionRegion; releasing the button freezes it as the
// detect box. The selector is safe for concurrent use: pointer events may
// arrive from a UI thread while the frame loop reads the current state.
type Selector struct {
	mu sync.Mutex

	width        int
	height       int
	bottomOrigin bool
	bounded      bool

	dragging  bool
	dragStart image.Point
	selection image.Rectangle
	detect    image.Rectangle
	point     *image.Point
}

// NewSelector returns a selector in the idle state. It ignores pointer
// events until SetFrame provides the display dimensions.
func NewSelector() *Selector {
	return &Selector{}
}

// SetFrame fixes the coordinate space pointer events are clamped to, and
// whether the vertical axis must be mirrored (bottom-left origin frames).
func (s *Selector) SetFrame(width, height int, bottomOrigin bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.width = width
	s.height = height
	s.bottomOrigin = bottomOrigin
	s.bounded = true
}

// Handle applies one pointer event to the state machine.
func (s *Selector) Handle(ev PointerEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.bounded {
		return
	}

	x, y := ev.X, ev.Y
	if s.bottomOrigin {
		y = s.height - y
	}

	switch ev.Kind {
	case PointerDown:
		if !s.dragging {
			s.detect = image.Rectangle{}
			pt := image.Pt(x, y)
			s.point = &pt
			s.dragStart = pt
			s.dragging = true
		}
	case PointerUp:
		s.dragging = false
		s.detect = s.selection
		return
	case PointerMove:
	}

	if s.dragging {
		s.selection = s.clamp(x, y)
	}
}

// clamp returns the bounding rectangle of the drag start and (x, y),
// restricted to the frame. Callers must hold s.mu.
func (s *Selector) clamp(x, y int) image.Rectangle {
	xmin := max(0, min(x, s.dragStart.X))
	ymin := max(0, min(y, s.dragStart.Y))
	xmax := min(s.width, max(x, s.dragStart.X))
	ymax := min(s.height, max(y, s.dragStart.Y))
	return image.Rect(xmin, ymin, xmax, ymax)
}

// Dragging reports whether a drag gesture is in progress.
func (s *Selector) Dragging() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dragging
}

// DetectBox returns the last confirmed selection. A zero-area rectangle
// means no selection is active.
func (s *Selector) DetectBox() image.Rectangle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detect
}

// ClearDetectBox drops the confirmed selection and any pending click point.
func (s *Selector) ClearDetectBox() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detect = image.Rectangle{}
	s.point = nil
}

// Feedback returns what should be drawn on the marker overlay this frame:
// the drag rectangle when one with nonzero area is being swept, else the
// pending click point. Returning the rectangle consumes the click point,
// mirroring how the display loop promotes a click into a drag.
func (s *Selector) Feedback() (rect *image.Rectangle, point *image.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dragging && rectNonZero(s.selection) {
		sel := s.selection
		s.point = nil
		return &sel, nil
	}
	if s.point != nil {
		pt := *s.point
		return nil, &pt
	}
	return nil, nil
}

func rectNonZero(r image.Rectangle) bool {
	return r.Dx() > 0 && r.Dy() > 0
}
