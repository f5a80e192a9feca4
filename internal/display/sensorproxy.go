package display

import (
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/CamStreamer/internal/logger"
)

// iio-sensor-proxy D-Bus constants
const (
	sensorService    = "net.hadess.SensorProxy"
	sensorPath       = "/net/hadess/SensorProxy"
	sensorIface      = "net.hadess.SensorProxy"
	propertiesIface  = "org.freedesktop.DBus.Properties"
	orientationProp  = "AccelerometerOrientation"
	propertiesSignal = propertiesIface + ".PropertiesChanged"
)

// SensorProxy follows the accelerometer orientation published by
// iio-sensor-proxy on the system bus. It suits tablets and phones where
// the compositor rotates the display with the device.
type SensorProxy struct {
	conn    *dbus.Conn
	obj     dbus.BusObject
	signals chan *dbus.Signal
	log     zerolog.Logger

	mu       sync.RWMutex
	rotation Rotation
	notifier

	done chan struct{}
}

// NewSensorProxy claims the accelerometer and reads its orientation.
func NewSensorProxy() (*SensorProxy, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to system bus: %w", err)
	}

	obj := conn.Object(sensorService, sensorPath)
	if call := obj.Call(sensorIface+".ClaimAccelerometer", 0); call.Err != nil {
		conn.Close()
		return nil, fmt.Errorf("ClaimAccelerometer call failed: %w", call.Err)
	}

	v, err := obj.GetProperty(sensorIface + "." + orientationProp)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to read orientation: %w", err)
	}

	s := &SensorProxy{
		conn:    conn,
		obj:     obj,
		signals: make(chan *dbus.Signal, 10),
		log:     *logger.WithComponent("sensor-proxy"),
		done:    make(chan struct{}),
	}
	if name, ok := v.Value().(string); ok {
		s.rotation, _ = ParseOrientation(name)
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(sensorPath),
		dbus.WithMatchInterface(propertiesIface),
		dbus.WithMatchMember("PropertiesChanged"),
	); err != nil {
		s.log.Warn().Err(err).Msg("Failed to add match rule")
	}
	conn.Signal(s.signals)

	s.log.Info().Int("rotation", int(s.rotation)).Msg("Display rotation source started")
	go s.signalLoop()
	return s, nil
}

// CurrentRotation returns the last orientation reported by the sensor.
func (s *SensorProxy) CurrentRotation() Rotation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rotation
}

// Subscribe registers fn for rotation changes.
func (s *SensorProxy) Subscribe(fn func(Rotation)) func() {
	return s.subscribe(fn)
}

// Close releases the accelerometer and the bus connection.
func (s *SensorProxy) Close() error {
	s.obj.Call(sensorIface+".ReleaseAccelerometer", 0)
	s.conn.RemoveSignal(s.signals)
	close(s.signals)
	<-s.done
	return s.conn.Close()
}

func (s *SensorProxy) signalLoop() {
	defer close(s.done)

	for sig := range s.signals {
		if sig.Path != sensorPath || sig.Name != propertiesSignal {
			continue
		}
		name, ok := orientationFromSignal(sig.Body)
		if !ok {
			continue
		}
		rot, ok := ParseOrientation(name)
		if !ok {
			s.log.Debug().Str("orientation", name).Msg("Ignoring orientation")
			continue
		}

		s.mu.Lock()
		changed := rot != s.rotation
		s.rotation = rot
		s.mu.Unlock()

		if changed {
			s.log.Info().Int("rotation", int(rot)).Msg("Display rotation changed")
			s.notify(rot)
		}
	}
}

// orientationFromSignal extracts AccelerometerOrientation from a
// PropertiesChanged body (interface, changed, invalidated).
func orientationFromSignal(body []interface{}) (string, bool) {
	if len(body) < 2 {
		return "", false
	}
	if iface, ok := body[0].(string); !ok || iface != sensorIface {
		return "", false
	}
	changed, ok := body[1].(map[string]dbus.Variant)
	if !ok {
		return "", false
	}
	v, ok := changed[orientationProp]
	if !ok {
		return "", false
	}
	name, ok := v.Value().(string)
	return name, ok
}

// ParseOrientation maps iio-sensor-proxy orientation names to a display
// rotation. "undefined" and unknown names report false.
func ParseOrientation(name string) (Rotation, bool) {
	switch name {
	case "normal":
		return Rotate0, true
	case "left-up":
		return Rotate90, true
	case "bottom-up":
		return Rotate180, true
	case "right-up":
		return Rotate270, true
	default:
		return Rotate0, false
	}
}
