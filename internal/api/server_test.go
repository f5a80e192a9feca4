package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanchriswhite/CamStreamer/internal/camera"
	"github.com/bryanchriswhite/CamStreamer/internal/camera/synthetic"
	"github.com/bryanchriswhite/CamStreamer/internal/output"
	"github.com/bryanchriswhite/CamStreamer/internal/pipeline"
	"github.com/bryanchriswhite/CamStreamer/internal/snapshot"
)

type testEnv struct {
	srv     *httptest.Server
	pipe    *pipeline.Pipeline
	manager *synthetic.Manager
}

func newTestEnv(t *testing.T, mjpeg *output.MJPEGOutput) *testEnv {
	t.Helper()
	cams := []synthetic.Camera{
		{
			Descriptor:   camera.Descriptor{ID: "back-0", Name: "Back", Provider: synthetic.Provider},
			Capabilities: []camera.Capability{{Width: 64, Height: 48}},
			Layout:       camera.Planar,
		},
		{
			Descriptor:   camera.Descriptor{ID: "front-1", Name: "Front", Provider: synthetic.Provider, MountAngle: 270},
			Capabilities: []camera.Capability{{Width: 64, Height: 48}},
			Layout:       camera.SemiPlanar,
		},
	}
	m := synthetic.NewManager(cams, synthetic.WithFPS(0), synthetic.WithLabel(false))
	p := pipeline.New(m, nil, nil, nil, pipeline.Options{DrainTimeoutPlanar: 50 * time.Millisecond})
	s := NewServer(p, nil, mjpeg)
	s.SnapshotTimeout = 2 * time.Second

	env := &testEnv{srv: httptest.NewServer(s.Handler()), pipe: p, manager: m}
	t.Cleanup(func() {
		env.srv.Close()
		p.Shutdown()
	})
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, out.Bytes()
}

func (e *testEnv) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestHealthAndCameras(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := env.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "healthy")
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	resp, body = env.do(t, http.MethodGet, "/api/cameras", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cams []camera.Descriptor
	require.NoError(t, json.Unmarshal(body, &cams))
	require.Len(t, cams, 2)
	assert.Equal(t, "front-1", cams[1].ID)
	assert.Equal(t, camera.MountAngle(270), cams[1].MountAngle)

	resp, _ = env.do(t, http.MethodGet, "/api/config", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCaptureLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := env.do(t, http.MethodPost, "/api/camera", map[string]string{"camera": "missing"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), "device not found")

	resp, _ = env.do(t, http.MethodPost, "/api/capture/start", map[string]int{"width": 800, "height": -1})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = env.do(t, http.MethodPost, "/api/camera", map[string]string{"camera": "back-0"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var st map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &st))
	assert.Equal(t, "back-0", st["id"])
	assert.Equal(t, "opened", st["status"])
	assert.NotZero(t, st["session"])

	resp, body = env.do(t, http.MethodPost, "/api/capture/start", map[string]int{"width": 800, "height": -1})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &st))
	assert.Equal(t, "capturing", st["status"])
	assert.EqualValues(t, 900, st["width"])
	assert.EqualValues(t, 675, st["height"])

	resp, body = env.do(t, http.MethodPost, "/api/capture/resize", map[string]int{"width": 1200, "height": 700})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &st))
	assert.EqualValues(t, 1066, st["width"])
	assert.EqualValues(t, 800, st["height"])

	resp, body = env.do(t, http.MethodPost, "/api/capture/stop", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &st))
	assert.Equal(t, "opened", st["status"])

	resp, body = env.do(t, http.MethodDelete, "/api/camera", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"error":""}`, string(body))
}

func TestBadRequests(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		method, path, body string
	}{
		{http.MethodPost, "/api/camera", "{"},
		{http.MethodPost, "/api/camera", `{"camera":""}`},
		{http.MethodPost, "/api/capture/start", `{"width":0,"height":10}`},
		{http.MethodPost, "/api/capture/resize", `{"width":10,"height":-5}`},
		{http.MethodPut, "/api/qr", "nope"},
	}
	for _, tt := range tests {
		req, err := http.NewRequest(tt.method, env.srv.URL+tt.path, strings.NewReader(tt.body))
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "%s %s %s", tt.method, tt.path, tt.body)
	}
}

func TestSnapshotEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, _ := env.do(t, http.MethodPost, "/api/snapshot", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	env.do(t, http.MethodPost, "/api/camera", map[string]string{"camera": "back-0"})
	env.do(t, http.MethodPost, "/api/capture/start", map[string]int{"width": 320, "height": 240})
	handle, ok := env.manager.Handle("back-0")
	require.True(t, ok)

	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-done:
				return
			case <-time.After(5 * time.Millisecond):
				handle.DeliverFrame()
			}
		}
	}()

	resp, body := env.do(t, http.MethodPost, "/api/snapshot", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var snap pipeline.Snapshot
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, 64, snap.Width)
	img, format, err := snapshot.Decode(snap.Image)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 64, img.Bounds().Dx())
}

func TestQRStreamTogglesSearch(t *testing.T) {
	env := newTestEnv(t, nil)
	assert.False(t, env.pipe.QREnabled())

	first := env.dial(t, "/api/events/qr")
	require.Eventually(t, env.pipe.QREnabled, time.Second, 5*time.Millisecond)

	second := env.dial(t, "/api/events/qr")
	require.Eventually(t, func() bool { return env.pipe.QRListeners() == 2 }, time.Second, 5*time.Millisecond)

	first.Close()
	require.Eventually(t, func() bool { return env.pipe.QRListeners() == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, env.pipe.QREnabled())

	second.Close()
	assert.Eventually(t, func() bool { return !env.pipe.QREnabled() }, time.Second, 5*time.Millisecond)

	resp, body := env.do(t, http.MethodPut, "/api/qr", map[string]bool{"enabled": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"enabled":true}`, string(body))
	assert.True(t, env.pipe.QREnabled())
}

func TestStateStream(t *testing.T) {
	env := newTestEnv(t, nil)

	conn := env.dial(t, "/api/events/state")
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var initial map[string]interface{}
	require.NoError(t, conn.ReadJSON(&initial))
	assert.Equal(t, map[string]interface{}{"error": ""}, initial)

	env.do(t, http.MethodPost, "/api/camera", map[string]string{"camera": "front-1"})

	for {
		var st map[string]interface{}
		require.NoError(t, conn.ReadJSON(&st))
		if st["id"] == "front-1" {
			assert.EqualValues(t, 270, st["mountAngle"])
			break
		}
	}
}

func TestStreamRoutes(t *testing.T) {
	mjpeg := output.NewMJPEGOutput(output.Config{})
	require.NoError(t, mjpeg.Start())
	defer mjpeg.Stop()
	env := newTestEnv(t, mjpeg)

	resp, body := env.do(t, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "/stream")

	resp, body = env.do(t, http.MethodGet, "/stream/stats", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"running":true`)
}
