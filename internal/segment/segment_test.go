package segment_test

import (
	"math/rand"
	"regexp"
	"strings"
	"testing"

	"github.com/voxgate-ai/voxgate/internal/segment"
)

// feed pushes text into a fresh buffer in chunks of the given size and
// returns all emitted sentences plus the flushed remainder.
func feed(t *testing.T, text string, chunkSize int) (sentences []string, rest string) {
	t.Helper()
	var b segment.Buffer
	for i := 0; i < len(text); i += chunkSize {
		end := i + chunkSize
		if end > len(text) {
			end = len(text)
		}
		sentences = append(sentences, b.AddChunk(text[i:end])...)
	}
	return sentences, b.Flush()
}

func TestAddChunk_SimpleSentences(t *testing.T) {
	t.Parallel()

	var b segment.Buffer
	got := b.AddChunk("Hello there! How are you? ")
	want := []string{"Hello there!", "How are you?"}
	if len(got) != len(want) {
		t.Fatalf("sentences: want %d, got %d (%q)", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sentence %d: want %q, got %q", i, want[i], got[i])
		}
	}
}

func TestAddChunk_DefersPeriodWithoutContext(t *testing.T) {
	t.Parallel()

	var b segment.Buffer
	if got := b.AddChunk("It is done."); len(got) != 0 {
		t.Fatalf("period at end of buffer must be deferred, got %q", got)
	}
	// An uppercase continuation confirms the boundary.
	got := b.AddChunk(" Next one begins")
	if len(got) != 1 || got[0] != "It is done." {
		t.Fatalf("want [\"It is done.\"], got %q", got)
	}
	if rest := b.Flush(); rest != "Next one begins" {
		t.Errorf("flush: want %q, got %q", "Next one begins", rest)
	}
}

func TestAddChunk_BoundaryCases(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want []string
		rest string
	}{
		{
			name: "abbreviation",
			text: "Dr. Smith arrived.",
			want: nil,
			rest: "Dr. Smith arrived.",
		},
		{
			name: "abbreviation then new sentence",
			text: "Dr. Smith arrived. He was late",
			want: []string{"Dr. Smith arrived."},
			rest: "He was late",
		},
		{
			name: "single letter initial",
			text: "Ask A. Smith about it. They know",
			want: []string{"Ask A. Smith about it."},
			rest: "They know",
		},
		{
			name: "decimal",
			text: "Pi is 3.14 approximately. Yes",
			want: []string{"Pi is 3.14 approximately."},
			rest: "Yes",
		},
		{
			name: "url",
			text: "Visit https://example.com for info. Thanks",
			want: []string{"Visit https://example.com for info."},
			rest: "Thanks",
		},
		{
			name: "bare domain",
			text: "Try example.com today. It works",
			want: []string{"Try example.com today."},
			rest: "It works",
		},
		{
			name: "file path",
			text: "Open /tmp/notes.txt now. Then report back",
			want: []string{"Open /tmp/notes.txt now."},
			rest: "Then report back",
		},
		{
			name: "exclamation is always a boundary",
			text: "Wow!",
			want: []string{"Wow!"},
			rest: "",
		},
		{
			name: "newline after period",
			text: "First line.\nsecond line",
			want: []string{"First line."},
			rest: "second line",
		},
		{
			name: "time of day",
			text: "Meet at 9 a.m. sharp tomorrow",
			want: nil,
			rest: "Meet at 9 a.m. sharp tomorrow",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var b segment.Buffer
			got := b.AddChunk(tt.text)
			if len(got) != len(tt.want) {
				t.Fatalf("sentences: want %q, got %q", tt.want, got)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("sentence %d: want %q, got %q", i, tt.want[i], got[i])
				}
			}
			if rest := b.Flush(); rest != tt.rest {
				t.Errorf("flush: want %q, got %q", tt.rest, rest)
			}
		})
	}
}

func TestAddChunk_Overflow(t *testing.T) {
	t.Parallel()

	// 2100 chars with no punctuation at all: one forced break, remainder kept.
	var b segment.Buffer
	text := strings.Repeat("a", 2100)
	var got []string
	for i := 0; i < len(text); i += 100 {
		got = append(got, b.AddChunk(text[i:i+100])...)
	}
	if len(got) != 1 {
		t.Fatalf("forced breaks: want 1, got %d", len(got))
	}
	if len(got[0]) > segment.MaxBufferSize {
		t.Errorf("forced sentence length %d exceeds max %d", len(got[0]), segment.MaxBufferSize)
	}
	rest := b.Flush()
	if got[0]+rest != text {
		t.Errorf("forced break lost text: %d + %d != %d chars", len(got[0]), len(rest), len(text))
	}
}

func TestAddChunk_OverflowBreaksAtSpace(t *testing.T) {
	t.Parallel()

	var b segment.Buffer
	word := strings.Repeat("b", 99) + " "
	var got []string
	for i := 0; i < 21; i++ {
		got = append(got, b.AddChunk(word)...)
	}
	if len(got) != 1 {
		t.Fatalf("forced breaks: want 1, got %d", len(got))
	}
	if strings.Contains(got[0], "  ") || !strings.HasSuffix(got[0], "b") {
		t.Errorf("forced break did not land on a space: %q", got[0][len(got[0])-10:])
	}
}

var spaceRe = regexp.MustCompile(`\s+`)

func normalize(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// TestRoundTrip verifies that no text is lost or duplicated regardless of how
// the input is chunked: concatenating all emitted sentences plus the flush
// equals the input, modulo whitespace normalisation.
func TestRoundTrip(t *testing.T) {
	t.Parallel()

	text := "Dr. Jones went to Washington. It was 3.5 miles away! " +
		"Check https://maps.example.com for directions. " +
		"He arrived at 10 a.m. and left at noon. What a day?"

	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 50; trial++ {
		chunkSize := 1 + rng.Intn(40)
		sentences, rest := feed(t, text, chunkSize)
		all := strings.Join(append(sentences, rest), " ")
		if normalize(all) != normalize(text) {
			t.Fatalf("chunk size %d: round trip mismatch\nwant %q\ngot  %q",
				chunkSize, normalize(text), normalize(all))
		}
	}
}

func TestFlush_Empty(t *testing.T) {
	t.Parallel()

	var b segment.Buffer
	if got := b.Flush(); got != "" {
		t.Errorf("flush of empty buffer: want \"\", got %q", got)
	}
	b.AddChunk("   \n ")
	if got := b.Flush(); got != "" {
		t.Errorf("flush of whitespace: want \"\", got %q", got)
	}
}

func TestCleanForSpeech(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"Well... fine.", "Well, fine"},
		{"Pi is 3.14 exactly.", "Pi is 3.14 exactly"},
		{"Really?!", "Really"},
		{"Hello, world;", "Hello, world"},
		{"...", ""},
		{"!?.,;:", ""},
		{"Version 2.0 shipped.", "Version 2.0 shipped"},
		{"Mr. Smith says hi.", "Mr Smith says hi"},
	}
	for _, tt := range tests {
		if got := segment.CleanForSpeech(tt.in); got != tt.want {
			t.Errorf("CleanForSpeech(%q): want %q, got %q", tt.in, tt.want, got)
		}
	}
}
