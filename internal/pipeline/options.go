package pipeline

import (
	"time"

	"github.com/bryanchriswhite/CamStreamer/internal/camera"
	"github.com/bryanchriswhite/CamStreamer/internal/snapshot"
	"github.com/bryanchriswhite/CamStreamer/internal/yuv"
)

// Options tunes a Pipeline. Zero values are replaced by DefaultOptions.
type Options struct {
	// DropEvery skips a live frame whenever the frame counter is a multiple
	// of it. Negative disables the throttle.
	DropEvery int

	// QRIntervalPlanar and QRIntervalSemiPlanar pick one frame out of that
	// many for QR decoding.
	QRIntervalPlanar     int
	QRIntervalSemiPlanar int

	// QRWidth and QRHeight are the fixed analysis resolution.
	QRWidth  int
	QRHeight int

	// AsyncQR decodes on a worker goroutine instead of the camera's.
	AsyncQR bool

	// MinWorkingSize and Margin shape the padded capture box.
	MinWorkingSize int
	Margin         int

	Policy camera.SelectionPolicy
	Filter yuv.Filter

	// Maximum time StopCapture waits for an armed snapshot, by chroma layout.
	DrainTimeoutPlanar     time.Duration
	DrainTimeoutSemiPlanar time.Duration

	Encoder snapshot.Encoder

	// MirrorFront flips snapshots of cameras whose id contains "front".
	MirrorFront bool
}

// DefaultOptions returns the stock tuning.
func DefaultOptions() Options {
	return Options{
		DropEvery:              3,
		QRIntervalPlanar:       15,
		QRIntervalSemiPlanar:   30,
		QRWidth:                1280,
		QRHeight:               720,
		MinWorkingSize:         500,
		Margin:                 100,
		Policy:                 camera.PolicyLargestArea,
		Filter:                 yuv.Nearest,
		DrainTimeoutPlanar:     200 * 10 * time.Millisecond,
		DrainTimeoutSemiPlanar: 200 * 500 * time.Millisecond,
		Encoder:                snapshot.JPEG(snapshot.DefaultQuality),
		MirrorFront:            true,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	t := Tunables{
		DropEvery:            o.DropEvery,
		QRIntervalPlanar:     o.QRIntervalPlanar,
		QRIntervalSemiPlanar: o.QRIntervalSemiPlanar,
	}.withDefaults()
	o.DropEvery, o.QRIntervalPlanar, o.QRIntervalSemiPlanar = t.DropEvery, t.QRIntervalPlanar, t.QRIntervalSemiPlanar
	if o.QRWidth <= 0 || o.QRHeight <= 0 {
		o.QRWidth, o.QRHeight = d.QRWidth, d.QRHeight
	}
	if o.MinWorkingSize == 0 {
		o.MinWorkingSize = d.MinWorkingSize
	}
	if o.Margin == 0 {
		o.Margin = d.Margin
	}
	if o.Policy == "" {
		o.Policy = d.Policy
	}
	if o.DrainTimeoutPlanar <= 0 {
		o.DrainTimeoutPlanar = d.DrainTimeoutPlanar
	}
	if o.DrainTimeoutSemiPlanar <= 0 {
		o.DrainTimeoutSemiPlanar = d.DrainTimeoutSemiPlanar
	}
	if o.Encoder == nil {
		o.Encoder = d.Encoder
	}
	return o
}

// Tunables are the options that can change while frames are flowing.
// A negative DropEvery turns the live throttle off.
type Tunables struct {
	DropEvery            int
	QRIntervalPlanar     int
	QRIntervalSemiPlanar int
}

// withDefaults replaces values that would stall a throttle. DropEvery 1
// would drop every live frame and a non-positive QR interval would never
// decode.
func (t Tunables) withDefaults() Tunables {
	d := DefaultOptions()
	if t.DropEvery == 0 || t.DropEvery == 1 {
		t.DropEvery = d.DropEvery
	}
	if t.QRIntervalPlanar <= 0 {
		t.QRIntervalPlanar = d.QRIntervalPlanar
	}
	if t.QRIntervalSemiPlanar <= 0 {
		t.QRIntervalSemiPlanar = d.QRIntervalSemiPlanar
	}
	return t
}
