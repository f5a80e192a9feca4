package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bryanchriswhite/CamStreamer/internal/camera"
	"github.com/bryanchriswhite/CamStreamer/internal/yuv"
)

// Snapshot is one encoded still frame.
type Snapshot struct {
	ID       string `json:"id"`
	Image    string `json:"image"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Rotation int    `json:"rotation"`
	Mirrored bool   `json:"mirrored"`
}

// SnapshotFunc receives the result of a snapshot request. It runs on the
// camera goroutine, or on the goroutine that cancelled the request.
type SnapshotFunc func(Snapshot, error)

type snapshotRequest struct {
	id   string
	cb   SnapshotFunc
	done chan struct{}
	once sync.Once
}

func (r *snapshotRequest) finish(s Snapshot, err error) {
	r.once.Do(func() {
		if r.cb != nil {
			s.ID = r.id
			r.cb(s, err)
		}
		close(r.done)
	})
}

// RequestSnapshot arms a one-shot capture of the next frame. The frame is
// diverted from the live display and encoded at the native capability
// resolution. It returns the request id.
func (p *Pipeline) RequestSnapshot(cb SnapshotFunc) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	req, err := p.armSnapshot(cb)
	if err != nil {
		return "", err
	}
	return req.id, nil
}

func (p *Pipeline) armSnapshot(cb SnapshotFunc) (*snapshotRequest, error) {
	if p.sess.Load() == nil {
		return nil, ErrNotOpen
	}
	if !p.started.Load() {
		return nil, ErrNotCapturing
	}

	req := &snapshotRequest{id: uuid.NewString(), cb: cb, done: make(chan struct{})}
	if !p.snap.CompareAndSwap(nil, req) {
		return nil, ErrSnapshotPending
	}
	p.log.Debug().Str("snapshot", req.id).Msg("Snapshot armed")
	return req, nil
}

// Snapshot arms a request and waits for it. Cancelling ctx disarms the
// request if the camera has not taken it yet.
func (p *Pipeline) Snapshot(ctx context.Context) (Snapshot, error) {
	type result struct {
		snap Snapshot
		err  error
	}
	results := make(chan result, 1)

	p.mu.Lock()
	req, err := p.armSnapshot(func(s Snapshot, err error) {
		results <- result{s, err}
	})
	p.mu.Unlock()
	if err != nil {
		return Snapshot{}, err
	}

	select {
	case r := <-results:
		return r.snap, r.err
	case <-ctx.Done():
		if p.snap.CompareAndSwap(req, nil) {
			req.finish(Snapshot{}, ctx.Err())
		}
		<-req.done
		r := <-results
		return r.snap, r.err
	}
}

// drainSnapshot waits for an armed request to complete. The bound depends
// on the chroma layout last seen, since semi-planar devices deliver frames
// far less eagerly once stopping.
func (p *Pipeline) drainSnapshot() error {
	req := p.snap.Load()
	if req == nil {
		return nil
	}

	timeout := p.opts.DrainTimeoutPlanar
	if camera.Layout(p.chroma.Load()) == camera.SemiPlanar {
		timeout = p.opts.DrainTimeoutSemiPlanar
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-req.done:
		return nil
	case <-timer.C:
	}

	p.log.Warn().Str("snapshot", req.id).Dur("timeout", timeout).Msg("Snapshot did not complete before stop")
	err := fmt.Errorf("%w after %s", ErrSnapshotDrainTimeout, timeout)
	if p.snap.CompareAndSwap(req, nil) {
		req.finish(Snapshot{}, err)
	}
	return err
}

// takeSnapshot encodes f at the native capability, rotated upright for
// the current display orientation.
func (p *Pipeline) takeSnapshot(f *camera.FrameBuffer, req *snapshotRequest) {
	width, height := f.Width, f.Height
	var desc camera.Descriptor
	if s := p.sess.Load(); s != nil {
		desc = s.descriptor
		width, height = s.capability.Width, s.capability.Height
	}

	img, err := p.snapScaler.ToRGBA(f, width, height)
	if err != nil {
		req.finish(Snapshot{}, fmt.Errorf("snapshot conversion: %w", err))
		return
	}

	displayRotation := 0
	if p.rotation != nil {
		displayRotation = int(p.rotation.CurrentRotation())
	}
	front := isFront(desc)
	degrees := imageRotation(int(desc.MountAngle), displayRotation, front)
	mirror := front && p.opts.MirrorFront

	rotated, err := yuv.Rotate(img, degrees, mirror)
	if err != nil {
		req.finish(Snapshot{}, fmt.Errorf("snapshot rotation: %w", err))
		return
	}

	text, err := p.opts.Encoder(rotated)
	if err != nil {
		req.finish(Snapshot{}, fmt.Errorf("snapshot encoding: %w", err))
		return
	}

	b := rotated.Bounds()
	p.log.Debug().Str("snapshot", req.id).Int("width", b.Dx()).Int("height", b.Dy()).Msg("Snapshot taken")
	req.finish(Snapshot{
		Image:    text,
		Width:    b.Dx(),
		Height:   b.Dy(),
		Rotation: degrees,
		Mirrored: mirror,
	}, nil)
}

func isFront(d camera.Descriptor) bool {
	return strings.Contains(d.ID, "front")
}

// imageRotation is the clockwise rotation that turns a sensor image
// upright on a display rotated by displayRotation.
func imageRotation(mount, displayRotation int, front bool) int {
	if front {
		return (mount + displayRotation) % 360
	}
	return (mount - displayRotation + 360) % 360
}
