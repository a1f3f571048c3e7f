// Package text holds the string cleanup shared by cognition and speech
// synthesis. Every function here is pure: same input, same output,
// no state.
package text

import (
	"regexp"
	"strings"
)

var (
	// Bracketed fragments, including fullwidth CJK brackets. Stage
	// directions arrive as "(laughs)" or "（笑）".
	bracketRegex = regexp.MustCompile(`[（(\[][^）)\]]*[）)\]]`)
	// Action markers delimited by asterisks, e.g. "*wave*".
	asteriskRegex = regexp.MustCompile(`\*[^*]*\*`)
	// Runs of dashes and tildes read as pauses; TTS handles commas better.
	dashRunRegex = regexp.MustCompile(`[—~-]+`)
	// Straight and curly quote marks.
	quoteRegex      = regexp.MustCompile(`["'“”‘’]`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
	// Leading [tag] emotion marker on a model reply.
	leadingTagRegex = regexp.MustCompile(`^\s*\[([^\[\]]+)\]\s*`)
)

// SpeechPlaceholder is what CleanForSpeech returns when cleanup leaves
// nothing to say. The speaker short-circuits on it instead of calling
// the synthesis endpoint.
const SpeechPlaceholder = "..."

// CleanForSpeech prepares display text for the synthesis endpoint:
// stage directions and action markers are removed, dash runs become
// commas, quote marks are dropped, and whitespace is collapsed. An
// empty result is replaced with SpeechPlaceholder.
func CleanForSpeech(s string) string {
	if s == "" {
		return SpeechPlaceholder
	}
	s = bracketRegex.ReplaceAllString(s, "")
	s = asteriskRegex.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "*", "")
	s = dashRunRegex.ReplaceAllString(s, "，")
	s = quoteRegex.ReplaceAllString(s, "")
	s = whitespaceRegex.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	if s == "" {
		return SpeechPlaceholder
	}
	return s
}

// StripStageDirections removes bracket- and asterisk-delimited
// fragments from display text and collapses the leftover whitespace.
// Unlike CleanForSpeech it keeps punctuation and quoting intact.
func StripStageDirections(s string) string {
	s = bracketRegex.ReplaceAllString(s, "")
	s = asteriskRegex.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "*", "")
	s = whitespaceRegex.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// ExtractLeadingEmotion splits a model reply into its leading [tag]
// emotion marker and the remaining text. Replies without a marker get
// "neutral".
func ExtractLeadingEmotion(s string) (emotion, rest string) {
	m := leadingTagRegex.FindStringSubmatch(s)
	if m == nil {
		return "neutral", s
	}
	return strings.ToLower(strings.TrimSpace(m[1])), s[len(m[0]):]
}
