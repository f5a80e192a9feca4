package synthetic

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanchriswhite/CamStreamer/internal/camera"
	"github.com/bryanchriswhite/CamStreamer/internal/qr"
	"github.com/bryanchriswhite/CamStreamer/internal/yuv"
)

func TestManagerEnumerates(t *testing.T) {
	m := NewManager(nil)
	require.NoError(t, m.Init())

	cams := camera.List(m)
	require.Len(t, cams, 2)
	assert.Equal(t, "back-0", cams[0].ID)
	assert.Equal(t, camera.MountAngle(270), cams[1].MountAngle)

	caps, err := m.QueryCapabilities("back-0")
	require.NoError(t, err)
	assert.Len(t, caps, 3)

	_, err = m.QueryCapabilities("Back-0")
	assert.Error(t, err)

	_, err = m.Open("missing")
	assert.Error(t, err)
}

func TestInitRejectsBadMountAngle(t *testing.T) {
	m := NewManager([]Camera{{Descriptor: camera.Descriptor{ID: "x", MountAngle: 45}}})
	assert.Error(t, m.Init())
}

func TestManualDelivery(t *testing.T) {
	for _, layout := range []camera.Layout{camera.Planar, camera.SemiPlanar} {
		t.Run(layout.String(), func(t *testing.T) {
			m := NewManager([]Camera{{
				Descriptor:   camera.Descriptor{ID: "cam", Provider: Provider},
				Capabilities: []camera.Capability{{Width: 64, Height: 48}},
				Layout:       layout,
			}}, WithFPS(0))

			h, err := m.Open("cam")
			require.NoError(t, err)
			sh, ok := m.Handle("cam")
			require.True(t, ok)

			assert.False(t, sh.DeliverFrame())
			assert.Error(t, h.StartCapture(camera.Capability{Width: 32, Height: 24}))
			require.NoError(t, h.StartCapture(camera.Capability{Width: 64, Height: 48}))
			assert.True(t, h.CaptureInProgress())

			var got *camera.FrameBuffer
			h.SetFrameListener(func(f *camera.FrameBuffer) { got = f })
			require.True(t, sh.DeliverFrame())
			require.NotNil(t, got)
			assert.Equal(t, layout, got.Layout)
			assert.Equal(t, 64, got.Width)
			assert.NoError(t, got.Validate())

			require.NoError(t, h.Close())
			assert.False(t, h.CaptureInProgress())
			_, ok = m.Handle("cam")
			assert.False(t, ok)
			assert.Error(t, h.StartCapture(camera.Capability{Width: 64, Height: 48}))
		})
	}
}

func TestOpenReturnsSameHandle(t *testing.T) {
	m := NewManager(nil, WithFPS(0))
	a, err := m.Open("back-0")
	require.NoError(t, err)
	b, err := m.Open("back-0")
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestInjectError(t *testing.T) {
	m := NewManager(nil, WithFPS(0))
	h, err := m.Open("back-0")
	require.NoError(t, err)

	var got error
	h.SetErrorListener(func(err error) { got = err })
	h.(*Handle).InjectError(errors.New("sensor unplugged"))
	assert.EqualError(t, got, "sensor unplugged")
}

func TestFramesCarryQRPayload(t *testing.T) {
	m := NewManager([]Camera{{
		Descriptor:   camera.Descriptor{ID: "back-0"},
		Capabilities: []camera.Capability{{Width: 640, Height: 480}},
		Layout:       camera.SemiPlanar,
	}}, WithFPS(0), WithQRPayload("hello-qr"), WithLabel(false))

	h, err := m.Open("back-0")
	require.NoError(t, err)
	require.NoError(t, h.StartCapture(camera.Capability{Width: 640, Height: 480}))

	var text string
	var ok bool
	h.SetFrameListener(func(f *camera.FrameBuffer) {
		img, err := yuv.NewScaler(yuv.Nearest).ToRGBA(f, f.Width, f.Height)
		require.NoError(t, err)
		text, ok = qr.NewDecoder(true).Decode(img)
	})
	h.(*Handle).DeliverFrame()

	require.True(t, ok)
	assert.Equal(t, "hello-qr", text)
	require.NoError(t, h.Close())
}

func TestFrameClock(t *testing.T) {
	m := NewManager(nil, WithFPS(100))
	h, err := m.Open("front-1")
	require.NoError(t, err)

	var frames atomic.Int64
	h.SetFrameListener(func(*camera.FrameBuffer) { frames.Add(1) })
	require.NoError(t, h.StartCapture(camera.Capability{Width: 640, Height: 480}))

	require.Eventually(t, func() bool { return frames.Load() >= 3 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, h.StopCapture())

	n := frames.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, n, frames.Load())
}
