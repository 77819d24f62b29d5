package segment

import "strings"

// CleanForSpeech normalises a sentence for TTS input. Ellipses become commas
// (a pause the synthesiser renders naturally), periods are dropped unless
// they start a decimal fraction, and trailing punctuation the synthesiser
// would over-emphasise is stripped. Returns "" when nothing speakable
// remains; callers should skip synthesis in that case.
//
// The cleaning is deliberately lossy. The original text is what reaches the
// client transcript and the history store.
func CleanForSpeech(s string) string {
	s = strings.ReplaceAll(s, "...", ",")

	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '.' && !(i+1 < len(s) && isDigit(s[i+1])) {
			continue
		}
		sb.WriteByte(s[i])
	}

	s = strings.TrimRight(sb.String(), "!?,;: ")
	return strings.TrimSpace(s)
}
