package ffmpeg

import (
	"fmt"
	"regexp"
	"strconv"
	"sync"
	"time"
)

var (
	frameRegex          = regexp.MustCompile(`frame=\s*(\d+)`)
	timestampErrorRegex = regexp.MustCompile(`(?i)((DTS|PTS)\s+\d+,\s+next:\d+.*invalid dropping|Non-monotonic DTS.*previous:.*current:.*changing to)`)
)

// parseFrameNumber extracts the frame counter from an FFmpeg progress line.
func parseFrameNumber(line string) (int, bool) {
	matches := frameRegex.FindStringSubmatch(line)
	if len(matches) < 2 {
		return 0, false
	}
	n, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// OutputBuffer is a circular buffer of recent process output lines, kept so
// an unhealthy restart can log what FFmpeg said right before it died.
type OutputBuffer struct {
	mu       sync.RWMutex
	lines    []string
	maxLines int
	index    int
	full     bool
}

// NewOutputBuffer creates a buffer holding up to maxLines lines.
func NewOutputBuffer(maxLines int) *OutputBuffer {
	return &OutputBuffer{lines: make([]string, maxLines), maxLines: maxLines}
}

// Add stores a line, evicting the oldest once full.
func (ob *OutputBuffer) Add(line string) {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	ob.lines[ob.index] = line
	ob.index = (ob.index + 1) % ob.maxLines
	if ob.index == 0 {
		ob.full = true
	}
}

// Recent returns the stored lines, oldest first.
func (ob *OutputBuffer) Recent() []string {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	var result []string
	if ob.full {
		for i := 0; i < ob.maxLines; i++ {
			idx := (ob.index + i) % ob.maxLines
			if ob.lines[idx] != "" {
				result = append(result, ob.lines[idx])
			}
		}
		return result
	}
	for i := 0; i < ob.index; i++ {
		if ob.lines[i] != "" {
			result = append(result, ob.lines[i])
		}
	}
	return result
}

// HealthMonitor decides whether a decoding process is still making
// progress, based on its output activity, its frame counter, and the
// timestamp errors it reports.
type HealthMonitor struct {
	mu sync.RWMutex

	healthTimeout time.Duration
	frameTimeout  time.Duration

	lastOutput      time.Time
	lastFrameNumber int
	lastFrameUpdate time.Time

	timestampErrors int
	lastErrorTime   time.Time
	forceUnhealthy  bool
}

// NewHealthMonitor returns a monitor with the given inactivity limits.
func NewHealthMonitor(healthTimeout, frameTimeout time.Duration) *HealthMonitor {
	now := time.Now()
	return &HealthMonitor{
		healthTimeout:   healthTimeout,
		frameTimeout:    frameTimeout,
		lastOutput:      now,
		lastFrameUpdate: now,
	}
}

// Reset rearms the monitor for a freshly started process.
func (hm *HealthMonitor) Reset() {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	now := time.Now()
	hm.lastOutput = now
	hm.lastFrameUpdate = now
	hm.lastFrameNumber = 0
	hm.timestampErrors = 0
	hm.forceUnhealthy = false
}

// TouchOutput records that the process produced output of any kind.
func (hm *HealthMonitor) TouchOutput() {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	if !hm.forceUnhealthy {
		hm.lastOutput = time.Now()
	}
}

// ObserveLine inspects one stderr line for frame progression and for
// critical timestamp errors. Three timestamp errors inside thirty seconds
// force the process unhealthy.
func (hm *HealthMonitor) ObserveLine(line string) {
	if timestampErrorRegex.MatchString(line) {
		hm.mu.Lock()
		now := time.Now()
		if now.Sub(hm.lastErrorTime) > 30*time.Second {
			hm.timestampErrors = 0
		}
		hm.timestampErrors++
		hm.lastErrorTime = now
		if hm.timestampErrors >= 3 {
			hm.forceUnhealthy = true
		}
		hm.mu.Unlock()
	}

	if frameNum, ok := parseFrameNumber(line); ok {
		hm.mu.Lock()
		if frameNum > hm.lastFrameNumber {
			hm.lastFrameNumber = frameNum
			hm.lastFrameUpdate = time.Now()
		}
		hm.mu.Unlock()
	}
}

// Healthy reports whether the process looks alive and progressing.
func (hm *HealthMonitor) Healthy() bool {
	hm.mu.RLock()
	defer hm.mu.RUnlock()
	if hm.forceUnhealthy {
		return false
	}
	if time.Since(hm.lastOutput) > hm.healthTimeout {
		return false
	}
	if time.Since(hm.lastFrameUpdate) > hm.frameTimeout {
		return false
	}
	return true
}

// UnhealthyReason describes why Healthy is false.
func (hm *HealthMonitor) UnhealthyReason() string {
	hm.mu.RLock()
	defer hm.mu.RUnlock()
	if hm.forceUnhealthy {
		return "repeated timestamp errors"
	}
	if since := time.Since(hm.lastOutput); since > hm.healthTimeout {
		return fmt.Sprintf("no output for %v", since.Round(time.Second))
	}
	if since := time.Since(hm.lastFrameUpdate); since > hm.frameTimeout {
		return fmt.Sprintf("no frame progress for %v (last frame %d)",
			since.Round(time.Second), hm.lastFrameNumber)
	}
	return "healthy"
}
