package overlay

import (
	"image/color"
	"sync"
	"time"
)

// QRWidget shows the last decoded QR payload for a while after it was
// seen. Scans that found nothing do not clear it.
type QRWidget struct {
	*TextWidget

	hold time.Duration
	now  func() time.Time

	mu   sync.Mutex
	text string
	seen time.Time
}

// NewQRWidget creates a banner anchored bottom-left that keeps a payload
// on screen for hold.
func NewQRWidget(id string, hold time.Duration) *QRWidget {
	w := &QRWidget{hold: hold, now: time.Now}
	w.TextWidget = NewDynamicTextWidget(id, w.current, BottomLeft, 8, 8)
	bg := color.RGBA{20, 110, 40, 200}
	w.SetBackground(&bg)
	return w
}

// Type returns the widget type
func (w *QRWidget) Type() string {
	return "qr"
}

// Observe records a scan result.
func (w *QRWidget) Observe(text string) {
	if text == "" {
		return
	}
	w.mu.Lock()
	w.text = text
	w.seen = w.now()
	w.mu.Unlock()
}

func (w *QRWidget) current() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.text == "" || w.now().Sub(w.seen) > w.hold {
		return ""
	}
	return "QR: " + w.text
}
