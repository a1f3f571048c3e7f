package factories

import (
	"context"
	"testing"

	"companionkit/core"
	"companionkit/face"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// An unreachable VTube Studio disables the avatar but never stops the
// companion from starting.
func TestBuildContinuesWithoutAvatar(t *testing.T) {
	settings := DefaultSettingsConfig()
	settings.VAD.Engine = VADEngineEnergy
	settings.Face.Backend = FaceBackendVTS
	settings.Face.VTS.URL = "ws://127.0.0.1:1"
	settings.Face.VTS.TokenPath = ""

	companion, err := Build(context.Background(), settings, DefaultCharacterConfig(), core.NewDevelopmentLogger())
	require.NoError(t, err)
	defer companion.Close()

	assert.IsType(t, face.Nop{}, companion.Face)
	assert.Len(t, companion.Handlers, 4)
}
