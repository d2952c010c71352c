package vision

import (
	"context"
	"sync"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"pivision/bus"
	"pivision/detection"
	"pivision/overlay"
	"pivision/tracking"
)

// Options are the pipeline settings read once at startup.
type Options struct {
	FlipImage         bool
	ShowText          bool
	ShowFeatures      bool
	KeepMarkerHistory bool
}

// Deps are the pipeline's external collaborators. Zero fields get working
// defaults: a no-op display and key source, the stock converters, the
// Grayscale processor, the wall clock and a no-op logger.
type Deps struct {
	Logger       *zap.SugaredLogger
	Clock        clock.Clock
	Processor    detection.Processor
	Display      Display
	Keys         KeySource
	ROI          ROIPublisher
	Convert      FrameConverter
	ConvertDepth DepthConverter
	Shutdown     func(reason string)
}

type nopROIPublisher struct{}

func (nopROIPublisher) PublishROI(RegionOfInterest) {}

// Pipeline is the frame pipeline controller. All frame, depth and pointer
// handling is serialized through Run's goroutine. SetTrackBox, TrackBox,
// NightMode, ShowText, ShowFeatures, Selector and FPS are safe to call
// from other goroutines; Depth is not and belongs on the Run goroutine.
type Pipeline struct {
	logger       *zap.SugaredLogger
	clock        clock.Clock
	opts         Options
	processor    detection.Processor
	sink         Display
	keys         KeySource
	roiPub       ROIPublisher
	convert      FrameConverter
	convertDepth DepthConverter
	shutdown     func(reason string)

	selector *Selector
	fps      *FPSEstimator
	renderer *overlay.Renderer

	mu           sync.Mutex
	trackBox     *tracking.TrackBox
	nightMode    bool
	showText     bool
	showFeatures bool

	// Frame-sized buffers, allocated on the first converted frame and
	// fixed for the node's lifetime.
	started bool
	width   int
	height  int
	image   gocv.Mat
	marker  gocv.Mat
	display gocv.Mat

	processed gocv.Mat

	depthStarted bool
	depth        gocv.Mat

	roi        RegionOfInterest
	frameCount uint64
}

// New builds a pipeline from options and collaborators.
func New(opts Options, deps Deps) *Pipeline {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop().Sugar()
	}
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if deps.Processor == nil {
		deps.Processor = detection.NewGrayscale()
	}
	if deps.Display == nil {
		deps.Display = NopDisplay{}
	}
	if deps.Keys == nil {
		deps.Keys = NopKeySource{}
	}
	if deps.ROI == nil {
		deps.ROI = nopROIPublisher{}
	}
	if deps.Convert == nil {
		deps.Convert = ConvertBGR
	}
	if deps.ConvertDepth == nil {
		deps.ConvertDepth = ConvertDepth
	}
	if deps.Shutdown == nil {
		deps.Shutdown = func(string) {}
	}
	return &Pipeline{
		logger:       deps.Logger,
		clock:        deps.Clock,
		opts:         opts,
		processor:    deps.Processor,
		sink:         deps.Display,
		keys:         deps.Keys,
		roiPub:       deps.ROI,
		convert:      deps.Convert,
		convertDepth: deps.ConvertDepth,
		shutdown:     deps.Shutdown,
		selector:     NewSelector(),
		fps:          NewFPSEstimator(),
		renderer:     overlay.NewRenderer(),
		showText:     opts.ShowText,
		showFeatures: opts.ShowFeatures,
	}
}

// Run consumes frame, depth and pointer messages from the bus until ctx is
// canceled or the frame topic closes. Everything is handled on this one
// goroutine, so pointer events never race a frame in flight.
func (p *Pipeline) Run(ctx context.Context, b *bus.Bus) error {
	frames := b.Subscribe(TopicFrames, 1)
	depth := b.Subscribe(TopicDepth, 1)
	pointer := b.Subscribe(TopicPointer, 16)
	defer func() {
		b.Unsubscribe(frames)
		b.Unsubscribe(depth)
		b.Unsubscribe(pointer)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-frames.C:
			if !ok {
				return nil
			}
			if raw, isFrame := msg.(RawFrame); isFrame {
				p.OnFrame(raw)
			}
		case msg, ok := <-depth.C:
			if !ok {
				return nil
			}
			if raw, isDepth := msg.(RawDepth); isDepth {
				p.OnDepth(raw)
			}
		case msg, ok := <-pointer.C:
			if !ok {
				return nil
			}
			if ev, isPointer := msg.(PointerEvent); isPointer {
				p.OnPointer(ev)
			}
		}
	}
}

// OnPointer feeds one pointer event to the selection state machine.
func (p *Pipeline) OnPointer(ev PointerEvent) {
	p.selector.Handle(ev)
}

// OnFrame runs the full per-frame sequence for one inbound color frame.
// Invocations must not overlap; Run guarantees that.
func (p *Pipeline) OnFrame(raw RawFrame) {
	start := p.clock.Now()

	frame, err := p.convert(raw)
	if err != nil {
		p.logger.Warnw("conversion failed, dropping frame", "seq", raw.Seq, "error", err)
		return
	}
	defer frame.Close()

	if p.opts.FlipImage {
		gocv.Flip(frame, &frame, 0)
	}

	if !p.started {
		p.allocate(frame.Cols(), frame.Rows())
		p.selector.SetFrame(p.width, p.height, raw.BottomOrigin)
	}
	if frame.Cols() != p.width || frame.Rows() != p.height {
		p.logger.Errorw("frame resolution changed after initialization, dropping frame",
			"seq", raw.Seq,
			"got", []int{frame.Cols(), frame.Rows()},
			"want", []int{p.width, p.height})
		return
	}

	frame.CopyTo(&p.image)

	if !p.opts.KeepMarkerHistory {
		zeroMat(&p.marker)
	}

	result, err := p.processor.Process(p.image)
	if err != nil {
		p.logger.Warnw("image processing failed, dropping frame", "seq", raw.Seq, "error", err)
		return
	}

	p.publishROI()

	if result.Channels == 1 {
		gocv.CvtColor(result.Image, &p.processed, gocv.ColorGrayToBGR)
	} else {
		result.Image.CopyTo(&p.processed)
	}

	p.drawMarkers()

	if p.NightMode() {
		zeroMat(&p.processed)
	}

	// Overlay pixels win wherever nonzero; the processed image shows
	// through elsewhere.
	gocv.BitwiseOr(p.processed, p.marker, &p.display)

	if box := p.TrackBox(); box != nil && !box.IsZero() {
		p.renderer.DrawTrackBox(&p.display, *box)
	} else if detect := p.selector.DetectBox(); rectNonZero(detect) {
		p.renderer.DrawDetectBox(&p.display, detect)
	}

	if duration := p.clock.Now().Sub(start); duration > 0 {
		p.fps.Record(duration)
	} else {
		p.logger.Debugw("non-positive frame duration, skipping rate sample", "seq", raw.Seq)
	}

	if p.ShowText() && p.fps.Len() > 0 {
		p.renderer.DrawStats(&p.display, p.fps.Value(), p.width, p.height)
	}

	if err := p.sink.Present(p.display); err != nil {
		p.logger.Warnw("display present failed", "seq", raw.Seq, "error", err)
	}

	if key, ok := p.keys.PollKey(); ok {
		p.dispatchKey(key)
	}
	p.frameCount++
}

// OnDepth replaces the depth buffer with one inbound depth frame. Depth is
// never synchronized with color; whichever frame arrived last wins.
func (p *Pipeline) OnDepth(raw RawDepth) {
	frame, err := p.convertDepth(raw)
	if err != nil {
		p.logger.Warnw("depth conversion failed, dropping frame", "seq", raw.Seq, "error", err)
		return
	}
	defer frame.Close()

	if p.opts.FlipImage {
		gocv.Flip(frame, &frame, 0)
	}

	if !p.depthStarted {
		p.depth = gocv.NewMatWithSize(frame.Rows(), frame.Cols(), gocv.MatTypeCV32F)
		p.depthStarted = true
	}
	if frame.Cols() != p.depth.Cols() || frame.Rows() != p.depth.Rows() {
		p.logger.Errorw("depth resolution changed after initialization, dropping frame",
			"seq", raw.Seq)
		return
	}
	frame.CopyTo(&p.depth)
}

func (p *Pipeline) allocate(width, height int) {
	p.width = width
	p.height = height
	p.image = gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)
	p.marker = gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)
	p.display = gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)
	p.processed = gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)
	p.started = true
	p.logger.Infow("allocated frame buffers", "width", width, "height", height)
}

// publishROI derives the outbound region of interest and publishes it.
// The message updates only when no drag is in progress and a nonzero
// detect box exists; otherwise the last value is republished so consumers
// see a steady heartbeat.
func (p *Pipeline) publishROI() {
	if box := p.selector.DetectBox(); !p.selector.Dragging() && rectNonZero(box) {
		p.roi = RegionOfInterest{
			XOffset: box.Min.X,
			YOffset: box.Min.Y,
			Width:   box.Dx(),
			Height:  box.Dy(),
		}
	}
	p.roiPub.PublishROI(p.roi)
}

func (p *Pipeline) drawMarkers() {
	rect, point := p.selector.Feedback()
	switch {
	case rect != nil:
		p.renderer.DrawSelection(&p.marker, *rect)
	case point != nil:
		p.renderer.DrawClickPoint(&p.marker, *point)
	}
}

func (p *Pipeline) dispatchKey(key byte) {
	if key >= 'A' && key <= 'Z' {
		key += 'a' - 'A'
	}
	switch key {
	case 'c':
		p.processor.Reset()
		p.SetTrackBox(nil)
		p.selector.ClearDetectBox()
		p.logger.Infow("cleared features, track box and detect box")
	case 'n':
		p.mu.Lock()
		p.nightMode = !p.nightMode
		p.mu.Unlock()
	case 'f':
		p.mu.Lock()
		p.showFeatures = !p.showFeatures
		p.mu.Unlock()
	case 't':
		p.mu.Lock()
		p.showText = !p.showText
		p.mu.Unlock()
	case 'q':
		p.shutdown("user requested quit")
	}
}

// SetTrackBox installs (or clears, with nil) the externally supplied track
// box. It takes display priority over the detect box.
func (p *Pipeline) SetTrackBox(box *tracking.TrackBox) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.trackBox = box
}

// TrackBox returns the current track box, or nil.
func (p *Pipeline) TrackBox() *tracking.TrackBox {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.trackBox
}

// NightMode reports whether the processed image is being suppressed.
func (p *Pipeline) NightMode() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.nightMode
}

// ShowText reports whether the FPS/resolution annotation is enabled.
func (p *Pipeline) ShowText() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.showText
}

// ShowFeatures reports the feature-display flag consumed by processors.
func (p *Pipeline) ShowFeatures() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.showFeatures
}

// Selector exposes the selection state machine, e.g. for a UI layer that
// calls it directly instead of going through the bus.
func (p *Pipeline) Selector() *Selector {
	return p.selector
}

// FPS returns the current smoothed frame rate.
func (p *Pipeline) FPS() int {
	return p.fps.Value()
}

// Depth returns the latest depth buffer. The bool is false until the first
// depth frame arrives. The Mat stays owned by the pipeline and is rewritten
// by incoming depth frames, so callers must read it on the Run goroutine
// (e.g. from a Processor).
func (p *Pipeline) Depth() (gocv.Mat, bool) {
	return p.depth, p.depthStarted
}

// Close releases all frame-sized buffers and the processor.
func (p *Pipeline) Close() error {
	var err error
	if p.started {
		p.started = false
		err = multierr.Combine(
			p.image.Close(),
			p.marker.Close(),
			p.display.Close(),
			p.processed.Close(),
		)
	}
	if p.depthStarted {
		p.depthStarted = false
		err = multierr.Append(err, p.depth.Close())
	}
	return multierr.Append(err, p.processor.Close())
}

func zeroMat(m *gocv.Mat) {
	m.SetTo(gocv.NewScalar(0, 0, 0, 0))
}
