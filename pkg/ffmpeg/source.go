// Package ffmpeg runs an FFmpeg child process as a frame source: the input
// stream is decoded to raw bgr24 on stdout and republished on the node's
// bus, while stderr is watched for stalls so a dead decoder gets restarted.
package ffmpeg

import (
	"bufio"
	"context"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"pivision/vision"
)

// Config describes the decoder child process.
type Config struct {
	// URL is the FFmpeg input (RTSP URL, device, file).
	URL string
	// Width and Height fix the decoded frame geometry.
	Width  int
	Height int
	// MaxRestarts caps restart attempts; 0 means unlimited.
	MaxRestarts int
	// RestartDelay is the pause between attempts. Default 2s.
	RestartDelay time.Duration
	// HealthTimeout is the no-output limit before a restart. Default 30s.
	HealthTimeout time.Duration
	// StallTimeout is the no-frame-progress limit. Default 11s.
	StallTimeout time.Duration
	// ExtraArgs are inserted before the input URL (e.g. -rtsp_transport tcp).
	ExtraArgs []string
}

func (c *Config) applyDefaults() error {
	if c.URL == "" {
		return errors.New("ffmpeg source requires an input URL")
	}
	if c.Width <= 0 || c.Height <= 0 {
		return errors.Errorf("ffmpeg source requires positive frame size, got %dx%d", c.Width, c.Height)
	}
	if c.RestartDelay <= 0 {
		c.RestartDelay = 2 * time.Second
	}
	if c.HealthTimeout <= 0 {
		c.HealthTimeout = 30 * time.Second
	}
	if c.StallTimeout <= 0 {
		c.StallTimeout = 11 * time.Second
	}
	return nil
}

// args builds the FFmpeg command line for one run.
func (c *Config) args() []string {
	out := []string{"-hide_banner", "-stats"}
	out = append(out, c.ExtraArgs...)
	out = append(out,
		"-i", c.URL,
		"-an", "-sn",
		"-f", "rawvideo",
		"-pix_fmt", "bgr24",
		"-s", strconv.Itoa(c.Width)+"x"+strconv.Itoa(c.Height),
		"pipe:1",
	)
	return out
}

// FramePublisher accepts decoded frames; the bus adapter in main satisfies it.
type FramePublisher interface {
	PublishFrame(frame vision.RawFrame)
}

// Source supervises the decoder process and publishes its frames.
type Source struct {
	cfg    Config
	logger *zap.SugaredLogger
	out    FramePublisher

	health *HealthMonitor
	stderr *OutputBuffer

	seq      atomic.Uint64
	restarts atomic.Int64
	running  atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSource validates cfg and builds an idle source.
func NewSource(cfg Config, out FramePublisher, logger *zap.SugaredLogger) (*Source, error) {
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, errors.New("ffmpeg source requires a frame publisher")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Source{
		cfg:    cfg,
		logger: logger,
		out:    out,
		health: NewHealthMonitor(cfg.HealthTimeout, cfg.StallTimeout),
		stderr: NewOutputBuffer(100),
	}, nil
}

// Start launches the supervision loop. It returns immediately.
func (s *Source) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return errors.New("ffmpeg source already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running.Store(true)
	s.wg.Add(1)
	go s.supervise(runCtx)
	return nil
}

// Stop terminates the child process and waits for the loop to exit.
func (s *Source) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	s.running.Store(false)
}

// Running reports whether the supervision loop is active.
func (s *Source) Running() bool {
	return s.running.Load()
}

// Restarts reports how many times the decoder was restarted.
func (s *Source) Restarts() int64 {
	return s.restarts.Load()
}

func (s *Source) supervise(ctx context.Context) {
	defer s.wg.Done()
	defer s.running.Store(false)

	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			return
		}
		s.logger.Infow("starting ffmpeg decoder", "attempt", attempt, "input", s.cfg.URL)
		err := s.runOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		s.logger.Warnw("ffmpeg decoder exited", "attempt", attempt, "error", err,
			"recent_stderr", s.stderr.Recent())

		s.restarts.Inc()
		if s.cfg.MaxRestarts > 0 && attempt >= s.cfg.MaxRestarts {
			s.logger.Errorw("ffmpeg restart ceiling reached, giving up",
				"restarts", s.restarts.Load())
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.cfg.RestartDelay):
		}
	}
}

// runOnce starts one decoder process and pumps frames until it dies, the
// context is canceled, or the health watchdog kills it.
func (s *Source) runOnce(ctx context.Context) error {
	procCtx, stop := context.WithCancel(ctx)
	defer stop()

	cmd := exec.CommandContext(procCtx, "ffmpeg", s.cfg.args()...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return errors.Wrap(err, "creating stdout pipe")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return errors.Wrap(err, "creating stderr pipe")
	}
	if err := cmd.Start(); err != nil {
		return errors.Wrap(err, "starting ffmpeg")
	}
	s.health.Reset()
	s.logger.Debugw("ffmpeg decoder running", "pid", cmd.Process.Pid)

	go s.watchStderr(stderr)
	go s.watchdog(procCtx, stop)

	readErr := s.readFrames(procCtx, stdout)
	waitErr := cmd.Wait()
	if readErr != nil {
		return readErr
	}
	return waitErr
}

// readFrames slices stdout into fixed-size bgr24 frames and publishes them.
func (s *Source) readFrames(ctx context.Context, stdout io.Reader) error {
	frameSize := s.cfg.Width * s.cfg.Height * 3
	for {
		if ctx.Err() != nil {
			return nil
		}
		data := make([]byte, frameSize)
		if _, err := io.ReadFull(stdout, data); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return errors.New("decoder output ended")
			}
			return errors.Wrap(err, "reading decoded frame")
		}
		s.health.TouchOutput()
		s.out.PublishFrame(vision.RawFrame{
			Seq:       s.seq.Inc(),
			Timestamp: time.Now(),
			Width:     s.cfg.Width,
			Height:    s.cfg.Height,
			Encoding:  vision.EncodingBGR8,
			Data:      data,
		})
	}
}

func (s *Source) watchStderr(stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		s.stderr.Add(line)
		s.health.TouchOutput()
		s.health.ObserveLine(line)
	}
}

// watchdog kills the current process when the monitor reports it stuck.
func (s *Source) watchdog(ctx context.Context, stop context.CancelFunc) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.health.Healthy() {
				s.logger.Warnw("ffmpeg decoder unhealthy, restarting",
					"reason", s.health.UnhealthyReason())
				stop()
				return
			}
		}
	}
}
