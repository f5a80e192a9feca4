package display

import (
	"fmt"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/CamStreamer/internal/logger"
)

// RandR follows the rotation of the default X screen through the RandR
// extension.
type RandR struct {
	conn *xgb.Conn
	root xproto.Window
	log  zerolog.Logger

	mu       sync.RWMutex
	rotation Rotation
	notifier

	done chan struct{}
}

// NewRandR connects to the X server and starts listening for screen
// change notifications.
func NewRandR() (*RandR, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	if err := randr.Init(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("RandR extension not available: %w", err)
	}

	root := xproto.Setup(conn).DefaultScreen(conn).Root

	info, err := randr.GetScreenInfo(conn, root).Reply()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to query screen info: %w", err)
	}

	if err := randr.SelectInputChecked(conn, root, randr.NotifyMaskScreenChange).Check(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to select screen change events: %w", err)
	}

	r := &RandR{
		conn:     conn,
		root:     root,
		log:      *logger.WithComponent("randr"),
		rotation: fromRandR(info.Rotation),
		done:     make(chan struct{}),
	}
	r.log.Info().Int("rotation", int(r.rotation)).Msg("Display rotation source started")

	go r.eventLoop()
	return r, nil
}

// CurrentRotation returns the last rotation reported by the X server.
func (r *RandR) CurrentRotation() Rotation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rotation
}

// Subscribe registers fn for rotation changes.
func (r *RandR) Subscribe(fn func(Rotation)) func() {
	return r.subscribe(fn)
}

// Close disconnects from the X server.
func (r *RandR) Close() error {
	r.conn.Close()
	<-r.done
	return nil
}

func (r *RandR) eventLoop() {
	defer close(r.done)

	for {
		ev, xerr := r.conn.WaitForEvent()
		if ev == nil && xerr == nil {
			r.log.Debug().Msg("X connection closed")
			return
		}
		if xerr != nil {
			r.log.Warn().Str("error", xerr.Error()).Msg("X error")
			continue
		}

		e, ok := ev.(randr.ScreenChangeNotifyEvent)
		if !ok {
			continue
		}

		rot := fromRandR(uint16(e.Rotation))
		r.mu.Lock()
		changed := rot != r.rotation
		r.rotation = rot
		r.mu.Unlock()

		if changed {
			r.log.Info().Int("rotation", int(rot)).Msg("Display rotation changed")
			r.notify(rot)
		}
	}
}

// fromRandR converts a RandR rotation mask. Reflection bits are ignored.
func fromRandR(mask uint16) Rotation {
	switch {
	case mask&randr.RotationRotate90 != 0:
		return Rotate90
	case mask&randr.RotationRotate180 != 0:
		return Rotate180
	case mask&randr.RotationRotate270 != 0:
		return Rotate270
	default:
		return Rotate0
	}
}
