package face

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapEmotion(t *testing.T) {
	assert.Equal(t, "Happy", MapEmotion(nil, "happy"))
	assert.Equal(t, "Happy", MapEmotion(nil, " HAPPY "))
	assert.Equal(t, "Neutral", MapEmotion(nil, "bewildered"))
	assert.Equal(t, "Neutral", MapEmotion(nil, ""))

	custom := map[string]string{"happy": "Joy", "neutral": "Idle"}
	assert.Equal(t, "Joy", MapEmotion(custom, "happy"))
	assert.Equal(t, "Idle", MapEmotion(custom, "angry"))
}
