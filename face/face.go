// Package face abstracts the avatar: expressions for emotions and a
// continuously driven mouth parameter for lip-sync. Backends connect to
// VTube Studio or to the bundled browser bridge; Nop keeps the rest of
// the pipeline running when no avatar is attached.
package face

import "strings"

type Bridge interface {
	// SetExpression switches the avatar to the named expression.
	// "neutral" clears the active expression instead of activating one.
	SetExpression(name string)
	// SetMouthOpen drives the mouth-open parameter, value in [0, 1].
	SetMouthOpen(value float64)
}

// DefaultEmotionMap maps the model's lowercase emotion tags to avatar
// expression names. Character configs may override it.
var DefaultEmotionMap = map[string]string{
	"happy":     "Happy",
	"angry":     "Angry",
	"annoyed":   "Annoyed",
	"sad":       "Sad",
	"surprised": "Surprised",
	"thinking":  "Thinking",
	"neutral":   "Neutral",
}

// MapEmotion resolves an emotion tag to an expression name. Unmapped
// emotions fall back to neutral so an unexpected tag never sticks the
// avatar in a stale expression.
func MapEmotion(mapping map[string]string, emotion string) string {
	if mapping == nil {
		mapping = DefaultEmotionMap
	}
	if name, ok := mapping[strings.ToLower(strings.TrimSpace(emotion))]; ok {
		return name
	}
	return mapping["neutral"]
}

// Nop is the no-avatar bridge.
type Nop struct{}

func (Nop) SetExpression(name string)  {}
func (Nop) SetMouthOpen(value float64) {}
