// Package validate sanitises client-supplied text before it reaches the
// conversation pipeline: transcripts from STT, session identifiers from the
// URL, and system prompt updates from control frames.
package validate

import (
	"regexp"
	"strings"
)

const (
	// MaxTranscriptLen is the hard cap on a single user transcript.
	MaxTranscriptLen = 1000

	// MaxSystemPromptLen is the hard cap on a client-supplied system prompt.
	MaxSystemPromptLen = 2000

	// MaxSessionIDLen is the hard cap on a session identifier.
	MaxSessionIDLen = 100
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)

	transcriptDangerRes = []*regexp.Regexp{
		regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`),
		regexp.MustCompile(`(?i)javascript:`),
		regexp.MustCompile(`(?i)on\w+\s*=`),
	}

	promptDangerRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)ignore\s+previous\s+instructions`),
		regexp.MustCompile(`(?i)disregard\s+above`),
		regexp.MustCompile(`(?i)new\s+role\s*:`),
		regexp.MustCompile(`(?i)you\s+are\s+now`),
	}

	sessionIDRe = regexp.MustCompile(`^[a-zA-Z0-9\-_]+$`)
)

// SanitizeTranscript collapses whitespace, caps the length, and strips script
// injection patterns from a user transcript. Returns "" for unusable input.
func SanitizeTranscript(transcript string) string {
	if transcript == "" {
		return ""
	}

	transcript = whitespaceRe.ReplaceAllString(strings.TrimSpace(transcript), " ")

	if r := []rune(transcript); len(r) > MaxTranscriptLen {
		transcript = string(r[:MaxTranscriptLen]) + "…"
	}

	for _, re := range transcriptDangerRes {
		transcript = re.ReplaceAllString(transcript, "")
	}
	return transcript
}

// ValidateSessionID reports whether a client-supplied session ID is acceptable.
// An empty ID is valid; the gateway generates one.
func ValidateSessionID(sessionID string) bool {
	if sessionID == "" {
		return true
	}
	if len(sessionID) > MaxSessionIDLen {
		return false
	}
	return sessionIDRe.MatchString(sessionID)
}

// SanitizeSystemPrompt caps the length of a client-supplied system prompt and
// replaces instruction-override phrases with a filtered marker.
func SanitizeSystemPrompt(prompt string) string {
	if prompt == "" {
		return ""
	}

	if r := []rune(prompt); len(r) > MaxSystemPromptLen {
		prompt = string(r[:MaxSystemPromptLen])
	}

	for _, re := range promptDangerRes {
		prompt = re.ReplaceAllString(prompt, "[FILTERED]")
	}
	return strings.TrimSpace(prompt)
}
