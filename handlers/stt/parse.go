package stt

import (
	"regexp"
	"strings"

	"companionkit/core"
)

// tagRegex matches the inline <|tag|> markers SenseVoice embeds in its
// transcripts.
var tagRegex = regexp.MustCompile(`<\|([^|]+)\|>`)

// knownEvents are the paralinguistic events the model can emit. Speech
// is recognized but carries no information beyond the transcript
// itself.
var knownEvents = map[string]struct{}{
	"Laughter": {},
	"Speech":   {},
	"Music":    {},
	"Applause": {},
	"Cry":      {},
	"Sneeze":   {},
	"Breath":   {},
	"Cough":    {},
}

var knownLangs = map[string]struct{}{
	"zh":  {},
	"en":  {},
	"ja":  {},
	"ko":  {},
	"yue": {},
}

// ignoredTags are inverse-text-normalization markers with no semantic
// content.
var ignoredTags = map[string]struct{}{
	"withitn": {},
	"woitn":   {},
}

const (
	neutralEmotion = "NEUTRAL"
	defaultLang    = "zh"
)

// ParseTranscript splits a raw tagged transcript into plain text and
// the structured language, emotion and event fields. Any tag that is
// not a known event, language or normalization marker is treated as an
// emotion; the last non-neutral emotion wins, and NEUTRAL only fills an
// otherwise empty slot. Transcripts with no tags default to NEUTRAL
// and the zh language code.
func ParseTranscript(raw string) core.Perception {
	p := core.Perception{Raw: raw}

	for _, m := range tagRegex.FindAllStringSubmatch(raw, -1) {
		tag := m[1]
		if _, ok := ignoredTags[tag]; ok {
			continue
		}
		if _, ok := knownEvents[tag]; ok {
			p.Event = tag
			continue
		}
		if _, ok := knownLangs[tag]; ok {
			p.Lang = tag
			continue
		}
		if tag == neutralEmotion {
			if p.Emotion == "" {
				p.Emotion = tag
			}
			continue
		}
		p.Emotion = tag
	}

	p.Text = strings.TrimSpace(tagRegex.ReplaceAllString(raw, ""))
	if p.Emotion == "" {
		p.Emotion = neutralEmotion
	}
	if p.Lang == "" {
		p.Lang = defaultLang
	}
	return p
}
