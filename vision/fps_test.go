package vision

import (
	"testing"
	"time"

	"go.viam.com/test"
)

// durationForRate returns a duration whose reciprocal truncates to rate.
func durationForRate(rate int) time.Duration {
	return time.Duration(float64(time.Second) / float64(rate))
}

func TestFPSEmptyWindow(t *testing.T) {
	e := NewFPSEstimator()
	test.That(t, e.Value(), test.ShouldEqual, 0)
	test.That(t, e.Len(), test.ShouldEqual, 0)
}

func TestFPSSingleSample(t *testing.T) {
	e := NewFPSEstimator()
	e.Record(100 * time.Millisecond)
	test.That(t, e.Value(), test.ShouldEqual, 10)
	test.That(t, e.Len(), test.ShouldEqual, 1)
}

func TestFPSWindowEviction(t *testing.T) {
	// Rates 10..30: the window keeps only the last twenty (11..30),
	// whose mean is 20 after integer truncation.
	e := NewFPSEstimator()
	for rate := 10; rate <= 30; rate++ {
		e.Record(durationForRate(rate))
	}
	test.That(t, e.Len(), test.ShouldEqual, 20)
	test.That(t, e.Value(), test.ShouldEqual, 20)
}

func TestFPSWindowNeverExceedsTwenty(t *testing.T) {
	e := NewFPSEstimator()
	for i := 0; i < 100; i++ {
		e.Record(50 * time.Millisecond)
	}
	test.That(t, e.Len(), test.ShouldEqual, 20)
	test.That(t, e.Value(), test.ShouldEqual, 20)
}

func TestFPSSkipsDegenerateDurations(t *testing.T) {
	e := NewFPSEstimator()
	e.Record(0)
	e.Record(-time.Second)
	test.That(t, e.Len(), test.ShouldEqual, 0)
	test.That(t, e.Value(), test.ShouldEqual, 0)

	e.Record(time.Second)
	test.That(t, e.Value(), test.ShouldEqual, 1)
}

func TestFPSConcurrentReads(t *testing.T) {
	// Record from one goroutine while another polls, as a frame loop and a
	// status reader would. Run with -race to catch unguarded access.
	e := NewFPSEstimator()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			e.Record(durationForRate(25))
		}
	}()
	for i := 0; i < 200; i++ {
		v := e.Value()
		test.That(t, v == 0 || v == 25, test.ShouldBeTrue)
		test.That(t, e.Len(), test.ShouldBeLessThanOrEqualTo, 20)
	}
	<-done

	test.That(t, e.Value(), test.ShouldEqual, 25)
}
