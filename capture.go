package main

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"pivision/bus"
	"pivision/vision"
)

// captureFrames reads color frames from an OpenCV capture device as fast as
// it provides them and republishes them on the bus. Slow consumers drop
// frames at the bus, not here.
func captureFrames(ctx context.Context, webcam *gocv.VideoCapture, b *bus.Bus, logger *zap.SugaredLogger) {
	img := gocv.NewMat()
	defer img.Close()

	seq := uint64(0)
	for ctx.Err() == nil {
		if ok := webcam.Read(&img); !ok {
			logger.Errorw("failed to read frame from stream, stopping capture")
			return
		}
		if img.Empty() {
			continue
		}
		if img.Type() != gocv.MatTypeCV8UC3 || img.Channels() != 3 {
			logger.Debugw("skipping frame with unexpected format",
				"type", int(img.Type()), "channels", img.Channels())
			continue
		}
		seq++
		b.Publish(vision.TopicFrames, vision.RawFrame{
			Seq:       seq,
			Timestamp: time.Now(),
			Width:     img.Cols(),
			Height:    img.Rows(),
			Encoding:  vision.EncodingBGR8,
			Data:      img.ToBytes(),
		})
	}
}

// captureDepth reads a secondary stream and republishes it as 32-bit float
// depth frames. Many depth cameras expose their range image as a grayscale
// stream; the conversion here restores the single-channel float layout the
// pipeline expects.
func captureDepth(ctx context.Context, device *gocv.VideoCapture, b *bus.Bus, logger *zap.SugaredLogger) {
	img := gocv.NewMat()
	defer img.Close()
	grey := gocv.NewMat()
	defer grey.Close()
	depth := gocv.NewMat()
	defer depth.Close()

	seq := uint64(0)
	for ctx.Err() == nil {
		if ok := device.Read(&img); !ok {
			logger.Errorw("failed to read depth frame, stopping depth capture")
			return
		}
		if img.Empty() {
			continue
		}
		if img.Channels() == 3 {
			gocv.CvtColor(img, &grey, gocv.ColorBGRToGray)
		} else {
			img.CopyTo(&grey)
		}
		grey.ConvertTo(&depth, gocv.MatTypeCV32F)

		seq++
		b.Publish(vision.TopicDepth, vision.RawDepth{
			Seq:       seq,
			Timestamp: time.Now(),
			Width:     depth.Cols(),
			Height:    depth.Rows(),
			Encoding:  vision.EncodingDepth,
			Data:      depth.ToBytes(),
		})
	}
}
