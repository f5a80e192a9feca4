package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bryanchriswhite/CamStreamer/internal/config"
	"github.com/bryanchriswhite/CamStreamer/internal/pipeline"
)

func TestStatusLine(t *testing.T) {
	assert.Empty(t, statusLine(pipeline.State{Error: "gone"}))
	assert.Equal(t, "back-0  1280x960  rot 90", statusLine(pipeline.State{
		CameraID:        "back-0",
		Width:           1280,
		Height:          960,
		DisplayRotation: 90,
	}))
}

func TestNewOverlayDisabled(t *testing.T) {
	mgr, err := newOverlay(config.OverlayConfig{Enabled: false}, nil)
	assert.NoError(t, err)
	assert.Nil(t, mgr)
}
