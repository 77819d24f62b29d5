// Package segment implements the streaming sentence segmenter that paces
// LLM output into TTS-sized units.
//
// LLM tokens arrive as arbitrary text fragments; speech synthesis wants whole
// sentences. A naive split on '.', '!', '?' stutters on abbreviations
// ("Dr. Smith"), decimals ("3.14"), and URLs ("example.com"), so the Buffer
// analyses the context around each candidate boundary and defers the split
// until it is confident a sentence actually ended.
package segment

import (
	"strings"
	"unicode"
)

const (
	// MaxBufferSize is the hard cap on buffered text. Exceeding it forces a
	// break so a model that never emits punctuation cannot stall synthesis.
	MaxBufferSize = 2000

	// forceBreakWindow is how far back from the end of an overflowing buffer
	// the forced break searches for a natural split point.
	forceBreakWindow = 200
)

// abbreviations are trailing tokens whose period does not end a sentence.
// Matching is case-sensitive over the last characters before the period.
var abbreviations = []string{
	"Dr.", "Mr.", "Mrs.", "Ms.", "Prof.", "Sr.", "Jr.",
	"U.S.", "U.K.", "U.S.A.", "E.U.",
	"etc.", "vs.", "e.g.", "i.e.", "Inc.", "Ltd.", "Corp.",
	"St.", "Ave.", "Blvd.", "Rd.", "Dept.", "Gov.",
	"a.m.", "p.m.", "A.M.", "P.M.",
}

// domainSuffixes mark a period as part of a hostname when they follow it.
var domainSuffixes = []string{".com", ".org", ".net", ".edu", ".gov", ".io", ".ai", ".co"}

// fileSuffixes mark a period as part of a file path when a path separator
// appears shortly before it.
var fileSuffixes = []string{".txt", ".pdf", ".doc", ".jpg", ".png", ".py", ".js", ".ts"}

// urlIndicators anywhere near a period mark it as part of a URL.
var urlIndicators = []string{"http://", "https://", "www.", "://"}

// Buffer accumulates streamed text and emits complete sentences. The zero
// value is ready to use. Buffer is not safe for concurrent use; each turn
// owns exactly one.
type Buffer struct {
	buf string
}

// AddChunk appends a text fragment and returns any complete sentences that
// can now be extracted, in order. Sentences are whitespace-trimmed and
// non-empty. An empty chunk returns nil.
func (b *Buffer) AddChunk(chunk string) []string {
	if chunk == "" {
		return nil
	}
	b.buf += chunk

	if len(b.buf) > MaxBufferSize {
		return b.forceBreak()
	}
	return b.extract()
}

// Flush returns any remaining buffered text as a final sentence and empties
// the buffer. Returns "" if nothing meaningful remains.
func (b *Buffer) Flush() string {
	s := strings.TrimSpace(b.buf)
	b.buf = ""
	return s
}

// Pending returns the current buffered text without consuming it.
func (b *Buffer) Pending() string {
	return strings.TrimSpace(b.buf)
}

// extract repeatedly splits off the leading complete sentence until no
// confident boundary remains.
func (b *Buffer) extract() []string {
	var sentences []string
	for {
		end := b.findBoundary()
		if end < 0 {
			break
		}
		sentence := strings.TrimSpace(b.buf[:end+1])
		if sentence != "" {
			sentences = append(sentences, sentence)
		}
		b.buf = strings.TrimLeft(b.buf[end+1:], " \t\n\r")
	}
	return sentences
}

// findBoundary returns the index of the first byte that confidently ends a
// sentence, or -1.
func (b *Buffer) findBoundary() int {
	for i := 0; i < len(b.buf); i++ {
		switch b.buf[i] {
		case '!', '?':
			return i
		case '.':
			if b.periodEndsSentence(i) {
				return i
			}
		}
	}
	return -1
}

// periodEndsSentence applies the context rules for a '.' at position i:
// not an abbreviation, not a decimal, not a URL or file path, and followed
// by something that looks like the start of a new sentence. When the
// evidence is inconclusive the period is deferred until more text arrives.
func (b *Buffer) periodEndsSentence(i int) bool {
	if b.isAbbreviation(i) || b.isDecimal(i) || b.isURLOrPath(i) {
		return false
	}

	if i+1 < len(b.buf) {
		next := b.buf[i+1]
		if next == '\n' {
			return true
		}
		if next == ' ' && i+2 < len(b.buf) {
			if unicode.IsUpper(rune(b.buf[i+2])) {
				return true
			}
		}
		if next != ' ' {
			// "3.x", "v1.2" and similar run-on periods.
			return false
		}
	}

	// Uncertain: only split when a later uppercase start confirms it.
	return b.hasUppercaseContinuation(i)
}

// isAbbreviation reports whether the period at i terminates a known
// abbreviation or a single capital-letter initial ("A. Smith").
func (b *Buffer) isAbbreviation(i int) bool {
	start := i - 10
	if start < 0 {
		start = 0
	}
	context := b.buf[start : i+1]
	for _, abbr := range abbreviations {
		if strings.HasSuffix(context, abbr) {
			return true
		}
	}
	if i >= 1 && b.buf[i-1] >= 'A' && b.buf[i-1] <= 'Z' {
		if i == 1 || b.buf[i-2] == ' ' {
			return true
		}
	}
	return false
}

// isDecimal reports whether the period at i sits between two digits.
func (b *Buffer) isDecimal(i int) bool {
	before := i > 0 && isDigit(b.buf[i-1])
	after := i+1 < len(b.buf) && isDigit(b.buf[i+1])
	return before && after
}

// isURLOrPath reports whether the period at i belongs to a URL, domain name,
// or file path rather than prose.
func (b *Buffer) isURLOrPath(i int) bool {
	lo := i - 20
	if lo < 0 {
		lo = 0
	}
	hi := i + 20
	if hi > len(b.buf) {
		hi = len(b.buf)
	}
	before := strings.ToLower(b.buf[lo : i+1])
	after := strings.ToLower(b.buf[i:hi])

	for _, ind := range urlIndicators {
		if strings.Contains(before, ind) || strings.Contains(after, ind) {
			return true
		}
	}
	for _, ext := range domainSuffixes {
		if strings.HasPrefix(after, ext) {
			return true
		}
	}
	if strings.ContainsAny(before, "/\\") {
		for _, ext := range fileSuffixes {
			if strings.HasPrefix(after, ext) {
				return true
			}
		}
	}
	return false
}

// hasUppercaseContinuation reports whether the text after position i begins,
// after optional whitespace, with an uppercase rune or a newline — the
// signals that a new sentence has started.
func (b *Buffer) hasUppercaseContinuation(i int) bool {
	if i+1 >= len(b.buf) {
		return false
	}
	if b.buf[i+1] == '\n' {
		return true
	}
	rest := strings.TrimLeft(b.buf[i+1:], " \t\r\n")
	if rest == "" {
		return false
	}
	return unicode.IsUpper([]rune(rest)[0])
}

// forceBreak splits an overflowing buffer at the last space or punctuation
// within the trailing window, or at MaxBufferSize when the text has no
// natural split point at all.
func (b *Buffer) forceBreak() []string {
	breakAt := -1
	lo := len(b.buf) - forceBreakWindow
	if lo < 0 {
		lo = 0
	}
	for i := len(b.buf) - 1; i > lo; i-- {
		switch b.buf[i] {
		case ' ', '.', '!', '?', ',', ';':
			breakAt = i
		}
		if breakAt >= 0 {
			break
		}
	}
	if breakAt < 0 {
		breakAt = MaxBufferSize - 1
	}

	sentence := strings.TrimSpace(b.buf[:breakAt+1])
	b.buf = strings.TrimLeft(b.buf[breakAt+1:], " \t\n\r")
	if sentence == "" {
		return nil
	}
	return []string{sentence}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
