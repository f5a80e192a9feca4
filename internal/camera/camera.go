package camera

import (
	"fmt"
)

// MountAngle is the clockwise rotation of the sensor relative to the
// device's natural "up", in degrees.
type MountAngle int

// Swapped reports whether the sensor axes are transposed relative to the
// device (90 or 270 degrees).
func (a MountAngle) Swapped() bool {
	return a == 90 || a == 270
}

// Valid reports whether a is one of 0, 90, 180, 270.
func (a MountAngle) Valid() bool {
	switch a {
	case 0, 90, 180, 270:
		return true
	}
	return false
}

// Descriptor identifies a camera exposed by a Manager
type Descriptor struct {
	ID         string     `json:"id" yaml:"id"`
	Name       string     `json:"name" yaml:"name"`
	Provider   string     `json:"provider" yaml:"provider"`
	MountAngle MountAngle `json:"mountAngle" yaml:"mount_angle"`
}

// Capability is a native capture resolution supported by a camera
type Capability struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Area returns Width*Height.
func (c Capability) Area() int {
	return c.Width * c.Height
}

func (c Capability) String() string {
	return fmt.Sprintf("%dx%d", c.Width, c.Height)
}

// Layout is the chroma layout of a raw sensor frame.
type Layout int

const (
	// Planar is I420: Y, U and V in separate planes, chroma subsampled 2x2.
	Planar Layout = 1
	// SemiPlanar is NV12: a Y plane followed by one interleaved UV plane.
	SemiPlanar Layout = 2
)

// ChromaStep returns the byte distance between consecutive chroma samples
// of the same channel (1 for planar, 2 for semi-planar).
func (l Layout) ChromaStep() int {
	return int(l)
}

func (l Layout) String() string {
	switch l {
	case Planar:
		return "I420"
	case SemiPlanar:
		return "NV12"
	default:
		return "unknown"
	}
}

// ParseLayout accepts the names used in config files.
func ParseLayout(s string) (Layout, error) {
	switch s {
	case "i420", "I420", "planar", "":
		return Planar, nil
	case "nv12", "NV12", "semi-planar", "semiplanar":
		return SemiPlanar, nil
	default:
		return 0, fmt.Errorf("unknown chroma layout %q", s)
	}
}

// FrameBuffer is one raw frame as delivered by the hardware. It is only
// valid for the duration of the FrameFunc call that received it.
type FrameBuffer struct {
	Width  int
	Height int
	Layout Layout

	// Y is the luma plane, StrideY bytes per row.
	Y       []byte
	StrideY int

	// U and V are the chroma planes of a Planar frame.
	U []byte
	V []byte

	// UV is the interleaved chroma plane of a SemiPlanar frame.
	UV []byte

	// StrideUV is the row stride of U and V (Planar) or UV (SemiPlanar).
	StrideUV int
}

// ChromaSize returns the dimensions of one chroma plane in samples.
func (f *FrameBuffer) ChromaSize() (int, int) {
	return (f.Width + 1) / 2, (f.Height + 1) / 2
}

// Validate checks that the planes are large enough for the declared
// geometry.
func (f *FrameBuffer) Validate() error {
	if f == nil {
		return fmt.Errorf("nil frame")
	}
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("invalid frame size %dx%d", f.Width, f.Height)
	}
	if f.StrideY < f.Width || len(f.Y) < f.StrideY*(f.Height-1)+f.Width {
		return fmt.Errorf("luma plane too small for %dx%d (stride %d, len %d)", f.Width, f.Height, f.StrideY, len(f.Y))
	}
	cw, ch := f.ChromaSize()
	switch f.Layout {
	case Planar:
		need := f.StrideUV*(ch-1) + cw
		if f.StrideUV < cw || len(f.U) < need || len(f.V) < need {
			return fmt.Errorf("chroma planes too small for %dx%d", f.Width, f.Height)
		}
	case SemiPlanar:
		need := f.StrideUV*(ch-1) + cw*2
		if f.StrideUV < cw*2 || len(f.UV) < need {
			return fmt.Errorf("interleaved chroma plane too small for %dx%d", f.Width, f.Height)
		}
	default:
		return fmt.Errorf("unsupported chroma layout %d", f.Layout)
	}
	return nil
}

// FrameFunc receives frames from a Handle. It runs on the device's own
// goroutine and must not block indefinitely.
type FrameFunc func(frame *FrameBuffer)

// ErrorFunc receives asynchronous faults reported mid-capture.
type ErrorFunc func(err error)

// Manager enumerates and opens cameras.
type Manager interface {
	// Init prepares the backend. It is safe to call more than once.
	Init() error

	// Count returns the number of cameras currently known.
	Count() int

	// Describe returns the descriptor at index.
	Describe(index int) (Descriptor, bool)

	// Open returns a handle for the camera with the given id.
	Open(id string) (Handle, error)

	// QueryCapabilities lists the native resolutions of a camera.
	QueryCapabilities(id string) ([]Capability, error)
}

// Handle is an opened camera.
type Handle interface {
	// StartCapture starts streaming at the given native resolution.
	StartCapture(c Capability) error

	// StopCapture stops streaming. Frame delivery has ended when it returns.
	StopCapture() error

	// CaptureInProgress reports whether the camera is streaming.
	CaptureInProgress() bool

	// SetFrameListener installs the frame callback; nil detaches it.
	SetFrameListener(fn FrameFunc)

	// SetErrorListener installs the runtime fault callback; nil detaches it.
	SetErrorListener(fn ErrorFunc)

	// Close releases the camera.
	Close() error
}

// List collects every descriptor a manager exposes. A manager that fails
// to initialize yields an empty list.
func List(m Manager) []Descriptor {
	if m == nil {
		return []Descriptor{}
	}
	if err := m.Init(); err != nil {
		return []Descriptor{}
	}
	count := m.Count()
	cameras := make([]Descriptor, 0, count)
	for i := 0; i < count; i++ {
		if info, ok := m.Describe(i); ok {
			cameras = append(cameras, info)
		}
	}
	return cameras
}
