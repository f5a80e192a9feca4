package camera

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectionPolicy(t *testing.T) {
	caps := []Capability{
		{Width: 1920, Height: 1080},
		{Width: 640, Height: 480},
		{Width: 2592, Height: 1944},
		{Width: 1280, Height: 720},
	}

	tests := []struct {
		name   string
		policy SelectionPolicy
		w, h   int
		want   Capability
	}{
		{"largest", PolicyLargestArea, 0, 0, Capability{2592, 1944}},
		{"last", PolicyLast, 0, 0, Capability{1280, 720}},
		{"closest small view", PolicyClosest, 700, 500, Capability{640, 480}},
		{"closest hd view", PolicyClosest, 1300, 700, Capability{1280, 720}},
		{"closest without view", PolicyClosest, 0, 0, Capability{2592, 1944}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.policy.Select(caps, tt.w, tt.h)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := PolicyLast.Select(nil, 0, 0)
	assert.Error(t, err)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyLargestArea, p)

	p, err = ParsePolicy("last")
	require.NoError(t, err)
	assert.Equal(t, PolicyLast, p)

	_, err = ParsePolicy("best")
	assert.Error(t, err)
}

func TestFrameBufferValidate(t *testing.T) {
	planar := &FrameBuffer{
		Width: 4, Height: 2, Layout: Planar,
		Y: make([]byte, 8), StrideY: 4,
		U: make([]byte, 2), V: make([]byte, 2), StrideUV: 2,
	}
	assert.NoError(t, planar.Validate())

	semi := &FrameBuffer{
		Width: 4, Height: 2, Layout: SemiPlanar,
		Y: make([]byte, 8), StrideY: 4,
		UV: make([]byte, 4), StrideUV: 4,
	}
	assert.NoError(t, semi.Validate())

	short := *semi
	short.UV = make([]byte, 2)
	assert.Error(t, short.Validate())

	odd := &FrameBuffer{
		Width: 3, Height: 3, Layout: Planar,
		Y: make([]byte, 9), StrideY: 3,
		U: make([]byte, 4), V: make([]byte, 4), StrideUV: 2,
	}
	assert.NoError(t, odd.Validate())
	cw, ch := odd.ChromaSize()
	assert.Equal(t, 2, cw)
	assert.Equal(t, 2, ch)
}

func TestMountAngle(t *testing.T) {
	assert.True(t, MountAngle(90).Swapped())
	assert.True(t, MountAngle(270).Swapped())
	assert.False(t, MountAngle(180).Swapped())
	assert.False(t, MountAngle(45).Valid())
	assert.Equal(t, 2, SemiPlanar.ChromaStep())
	assert.Equal(t, "I420", Planar.String())
}

type stubManager struct {
	initErr error
	cams    []Descriptor
}

func (s *stubManager) Init() error { return s.initErr }
func (s *stubManager) Count() int  { return len(s.cams) }
func (s *stubManager) Describe(i int) (Descriptor, bool) {
	if i < 0 || i >= len(s.cams) {
		return Descriptor{}, false
	}
	return s.cams[i], true
}
func (s *stubManager) Open(string) (Handle, error)                  { return nil, nil }
func (s *stubManager) QueryCapabilities(string) ([]Capability, error) { return nil, nil }

func TestListNeverFails(t *testing.T) {
	assert.Empty(t, List(nil))
	assert.Empty(t, List(&stubManager{initErr: assert.AnError}))

	got := List(&stubManager{cams: []Descriptor{{ID: "back-0"}, {ID: "front-1"}}})
	require.Len(t, got, 2)
	assert.Equal(t, "front-1", got[1].ID)
}

func TestPackedFrame(t *testing.T) {
	tests := []struct {
		layout           Layout
		w, h             int
		strideY, strideC int
		size             int
	}{
		{Planar, 640, 480, 640, 320, 640 * 480 * 3 / 2},
		{Planar, 6, 3, 8, 4, 8*4 + 4*2*2},
		{SemiPlanar, 640, 480, 640, 640, 640 * 480 * 3 / 2},
		{SemiPlanar, 6, 3, 8, 8, 8*4 + 8*2},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%dx%d", tt.layout, tt.w, tt.h), func(t *testing.T) {
			sy, sc, _, _, size := PackedStrides(tt.layout, tt.w, tt.h)
			assert.Equal(t, tt.strideY, sy)
			assert.Equal(t, tt.strideC, sc)
			assert.Equal(t, tt.size, size)

			f, err := PackedFrame(tt.layout, tt.w, tt.h, make([]byte, size))
			require.NoError(t, err)
			assert.Equal(t, tt.layout, f.Layout)

			_, err = PackedFrame(tt.layout, tt.w, tt.h, make([]byte, size-1))
			assert.Error(t, err)
		})
	}
}
