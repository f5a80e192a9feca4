package pipeline

import (
	"image"
	"sync"

	"github.com/bryanchriswhite/CamStreamer/internal/camera"
)

// searchQR runs on every frame while QR search is on. One frame out of the
// layout's interval is rescaled to the analysis resolution and decoded.
func (p *Pipeline) searchQR(f *camera.FrameBuffer) {
	if p.decoder == nil {
		return
	}

	interval := p.qrPlanar.Load()
	if f.Layout == camera.SemiPlanar {
		interval = p.qrSemi.Load()
	}

	n := p.qrCounter.Add(1)
	if n < 0 {
		p.qrCounter.Store(0)
		n = 0
	}
	if interval <= 0 || n%interval != 0 {
		return
	}

	img, err := p.qrScaler.ToRGBA(f, p.opts.QRWidth, p.opts.QRHeight)
	if err != nil {
		p.log.Debug().Err(err).Msg("Failed to prepare QR frame")
		return
	}

	if p.qrWorker != nil {
		p.qrWorker.offer(img)
		return
	}
	p.decodeAndPublish(img)
}

// decodeAndPublish emits the payload, or an empty event when the frame
// holds no code.
func (p *Pipeline) decodeAndPublish(img *image.RGBA) {
	text, ok := p.decoder.Decode(img)
	if !ok {
		text = ""
	}
	p.qrs.Publish(QREvent{Text: text})
}

// qrWorker decodes off the camera goroutine. Its mailbox holds one frame;
// a newer frame replaces one that has not been picked up yet.
type qrWorker struct {
	mailbox chan *image.RGBA
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

func newQRWorker(decode func(*image.RGBA)) *qrWorker {
	w := &qrWorker{
		mailbox: make(chan *image.RGBA, 1),
		done:    make(chan struct{}),
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-w.done:
				return
			case img := <-w.mailbox:
				decode(img)
			}
		}
	}()
	return w
}

func (w *qrWorker) offer(img *image.RGBA) {
	for {
		select {
		case w.mailbox <- img:
			return
		default:
		}
		select {
		case <-w.mailbox:
		default:
		}
	}
}

func (w *qrWorker) stop() {
	w.once.Do(func() {
		close(w.done)
		w.wg.Wait()
	})
}
