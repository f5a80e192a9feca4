package display

import (
	"testing"

	"github.com/BurntSushi/xgb/randr"
	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   int
		want Rotation
	}{
		{0, Rotate0},
		{90, Rotate90},
		{450, Rotate90},
		{-90, Rotate270},
		{360, Rotate0},
	}
	for _, tt := range tests {
		got, err := Normalize(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "normalize %d", tt.in)
	}

	_, err := Normalize(45)
	assert.Error(t, err)
}

func TestStaticNotifiesOnChange(t *testing.T) {
	s := NewStatic(Rotate0)

	var got []Rotation
	cancel := s.Subscribe(func(r Rotation) { got = append(got, r) })

	s.Set(Rotate90)
	s.Set(Rotate90)
	s.Set(Rotate180)
	assert.Equal(t, []Rotation{Rotate90, Rotate180}, got)
	assert.Equal(t, Rotate180, s.CurrentRotation())

	cancel()
	cancel()
	s.Set(Rotate0)
	assert.Len(t, got, 2)
}

func TestOpenStatic(t *testing.T) {
	p, err := Open("static", 270)
	require.NoError(t, err)
	assert.Equal(t, Rotate270, p.CurrentRotation())
	assert.NoError(t, p.Close())

	_, err = Open("static", 30)
	assert.Error(t, err)

	_, err = Open("gyroscope", 0)
	assert.Error(t, err)
}

func TestParseOrientation(t *testing.T) {
	tests := map[string]Rotation{
		"normal":    Rotate0,
		"left-up":   Rotate90,
		"bottom-up": Rotate180,
		"right-up":  Rotate270,
	}
	for name, want := range tests {
		got, ok := ParseOrientation(name)
		assert.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}

	_, ok := ParseOrientation("undefined")
	assert.False(t, ok)
}

func TestOrientationFromSignal(t *testing.T) {
	body := []interface{}{
		sensorIface,
		map[string]dbus.Variant{orientationProp: dbus.MakeVariant("right-up")},
		[]string{},
	}
	name, ok := orientationFromSignal(body)
	require.True(t, ok)
	assert.Equal(t, "right-up", name)

	other := []interface{}{
		sensorIface,
		map[string]dbus.Variant{"HasAccelerometer": dbus.MakeVariant(true)},
		[]string{},
	}
	_, ok = orientationFromSignal(other)
	assert.False(t, ok)

	_, ok = orientationFromSignal([]interface{}{"org.example.Other", map[string]dbus.Variant{}})
	assert.False(t, ok)
}

func TestFromRandR(t *testing.T) {
	assert.Equal(t, Rotate0, fromRandR(randr.RotationRotate0))
	assert.Equal(t, Rotate90, fromRandR(randr.RotationRotate90))
	assert.Equal(t, Rotate180, fromRandR(randr.RotationRotate180|randr.RotationReflectX))
	assert.Equal(t, Rotate270, fromRandR(randr.RotationRotate270))
}
