package tracking

import (
	"image"
	"testing"

	"go.viam.com/test"
)

func TestTrackBoxIsZero(t *testing.T) {
	test.That(t, TrackBox{}.IsZero(), test.ShouldBeTrue)
	test.That(t, TrackBox{Width: 10}.IsZero(), test.ShouldBeTrue)
	test.That(t, TrackBox{Width: 10, Height: -1}.IsZero(), test.ShouldBeTrue)
	box := TrackBox{Center: image.Pt(5, 5), Width: 4, Height: 2}
	test.That(t, box.IsZero(), test.ShouldBeFalse)
}

func TestBoundingRectAxisAligned(t *testing.T) {
	box := TrackBox{Center: image.Pt(50, 40), Width: 20, Height: 10}
	test.That(t, box.BoundingRect(), test.ShouldResemble, image.Rect(40, 35, 60, 45))
}

func TestBoundingRectRotated(t *testing.T) {
	// A 90 degree rotation swaps width and height.
	box := TrackBox{Center: image.Pt(50, 50), Width: 20, Height: 10, Angle: 90}
	rect := box.BoundingRect()
	test.That(t, rect.Dx(), test.ShouldEqual, 10)
	test.That(t, rect.Dy(), test.ShouldEqual, 20)
}

func TestBoundingRectZero(t *testing.T) {
	test.That(t, TrackBox{}.BoundingRect(), test.ShouldResemble, image.Rectangle{})
}

func TestTrackedObjectBox(t *testing.T) {
	obj := TrackedObject{ID: 3, CenterX: 10, CenterY: 20, Width: 6, Height: 8, Angle: 15}
	box := obj.Box()
	test.That(t, box.Center, test.ShouldResemble, image.Pt(10, 20))
	test.That(t, box.Width, test.ShouldEqual, 6)
	test.That(t, box.Height, test.ShouldEqual, 8)
	test.That(t, box.Angle, test.ShouldEqual, 15.0)
}
