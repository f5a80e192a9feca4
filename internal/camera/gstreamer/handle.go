package gstreamer

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/bryanchriswhite/CamStreamer/internal/camera"
	"github.com/bryanchriswhite/CamStreamer/internal/logger"
)

const pullTimeout = 50 * time.Millisecond

// Handle is an opened V4L2 camera. Frames are pulled from the appsink on
// a polling goroutine, which is also the goroutine the frame listener
// runs on.
type Handle struct {
	device Device
	log    zerolog.Logger

	mu       sync.Mutex
	pipeline *gst.Pipeline
	appsink  *app.Sink
	running  bool
	closed   bool
	stopChan chan struct{}
	wg       sync.WaitGroup

	listenerMu sync.RWMutex
	onFrame    camera.FrameFunc
	onError    camera.ErrorFunc
}

func newHandle(d Device) *Handle {
	return &Handle{
		device: d,
		log:    *logger.WithCamera("gstreamer", d.ID),
	}
}

// StartCapture builds and plays the capture pipeline at c.
func (h *Handle) StartCapture(c camera.Capability) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return fmt.Errorf("camera %s is closed", h.device.ID)
	}
	if h.running {
		return nil
	}

	// Polling mode (emit-signals=false) avoids cgo callbacks into Go.
	pipelineStr := fmt.Sprintf(
		"v4l2src device=%s ! "+
			"videoconvert ! "+
			"videoscale ! "+
			"video/x-raw,format=%s,width=%d,height=%d ! "+
			"appsink name=sink emit-signals=false max-buffers=2 drop=true",
		h.device.Path, h.device.Layout, c.Width, c.Height,
	)
	h.log.Debug().Str("pipeline", pipelineStr).Msg("Creating GStreamer pipeline")

	pipeline, err := gst.NewPipelineFromString(pipelineStr)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}

	sinkElement, err := pipeline.GetElementByName("sink")
	if err != nil {
		pipeline.Unref()
		return fmt.Errorf("failed to get appsink: %w", err)
	}

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		pipeline.SetState(gst.StateNull)
		pipeline.Unref()
		return fmt.Errorf("failed to start pipeline: %w", err)
	}

	h.pipeline = pipeline
	h.appsink = app.SinkFromElement(sinkElement)
	h.running = true
	h.stopChan = make(chan struct{})

	h.wg.Add(2)
	go h.pollSamples(h.appsink, h.stopChan)
	go h.monitorBus(pipeline, h.stopChan)

	h.log.Info().Int("width", c.Width).Int("height", c.Height).Str("layout", h.device.Layout.String()).Msg("Capture started")
	return nil
}

// StopCapture stops the pipeline. No frame is delivered after it returns.
func (h *Handle) StopCapture() error {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return nil
	}
	h.running = false
	close(h.stopChan)
	h.mu.Unlock()

	h.wg.Wait()

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pipeline != nil {
		h.pipeline.SetState(gst.StateNull)
		h.pipeline.Unref()
		h.pipeline = nil
		h.appsink = nil
	}
	h.log.Info().Msg("Capture stopped")
	return nil
}

// CaptureInProgress reports whether the pipeline is playing.
func (h *Handle) CaptureInProgress() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

// SetFrameListener installs fn; nil detaches it.
func (h *Handle) SetFrameListener(fn camera.FrameFunc) {
	h.listenerMu.Lock()
	h.onFrame = fn
	h.listenerMu.Unlock()
}

// SetErrorListener installs fn; nil detaches it.
func (h *Handle) SetErrorListener(fn camera.ErrorFunc) {
	h.listenerMu.Lock()
	h.onError = fn
	h.listenerMu.Unlock()
}

// Close stops capture and marks the handle unusable.
func (h *Handle) Close() error {
	if err := h.StopCapture(); err != nil {
		return err
	}
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	h.SetFrameListener(nil)
	h.SetErrorListener(nil)
	return nil
}

func (h *Handle) pollSamples(appsink *app.Sink, stop chan struct{}) {
	defer h.wg.Done()

	for {
		select {
		case <-stop:
			h.log.Debug().Msg("Sample polling stopped")
			return
		default:
		}

		// Don't Unref the sample; go-gst releases it.
		sample := appsink.TryPullSample(pullTimeout)
		if sample == nil {
			continue
		}
		h.processSample(sample)
	}
}

func (h *Handle) processSample(sample *gst.Sample) {
	buffer := sample.GetBuffer()
	if buffer == nil {
		return
	}
	caps := sample.GetCaps()
	if caps == nil {
		return
	}
	structure := caps.GetStructureAt(0)
	if structure == nil {
		return
	}

	width, _ := structure.GetValue("width")
	height, _ := structure.GetValue("height")
	w, ok := width.(int)
	if !ok {
		return
	}
	hgt, ok := height.(int)
	if !ok {
		return
	}

	mapInfo := buffer.Map(gst.MapRead)
	if mapInfo == nil {
		return
	}
	defer buffer.Unmap()

	frame, err := camera.PackedFrame(h.device.Layout, w, hgt, mapInfo.Bytes())
	if err != nil {
		h.log.Debug().Err(err).Msg("Dropping malformed buffer")
		return
	}

	h.listenerMu.RLock()
	fn := h.onFrame
	h.listenerMu.RUnlock()
	if fn != nil {
		fn(frame)
	}
}

// monitorBus forwards pipeline errors and end-of-stream to the error
// listener. It exits after the first fault.
func (h *Handle) monitorBus(pipeline *gst.Pipeline, stop chan struct{}) {
	defer h.wg.Done()

	bus := pipeline.GetPipelineBus()
	for {
		select {
		case <-stop:
			return
		default:
		}

		msg := bus.TimedPop(pullTimeout)
		if msg == nil {
			continue
		}

		var fault error
		switch msg.Type() {
		case gst.MessageEOS:
			fault = fmt.Errorf("end of stream")
		case gst.MessageError:
			gerr := msg.ParseError()
			h.log.Error().Str("error", gerr.Error()).Str("debug", gerr.DebugString()).Msg("Pipeline error")
			fault = fmt.Errorf("pipeline error: %s", gerr.Error())
		default:
			continue
		}

		h.listenerMu.RLock()
		fn := h.onError
		h.listenerMu.RUnlock()
		if fn != nil {
			fn(fault)
		}
		return
	}
}
