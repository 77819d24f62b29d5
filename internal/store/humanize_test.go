package store

import (
	"testing"
	"time"
)

func TestFormatRelative(t *testing.T) {
	t.Parallel()

	// Wednesday, 2026-08-26 18:00.
	now := time.Date(2026, 8, 26, 18, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		ts   time.Time
		want string
	}{
		{
			name: "today",
			ts:   time.Date(2026, 8, 26, 9, 30, 0, 0, time.UTC),
			want: "Today at 09:30 AM",
		},
		{
			name: "yesterday",
			ts:   time.Date(2026, 8, 25, 14, 5, 0, 0, time.UTC),
			want: "Yesterday at 02:05 PM",
		},
		{
			name: "this week",
			ts:   time.Date(2026, 8, 22, 11, 0, 0, 0, time.UTC), // Saturday
			want: "Saturday at 11:00 AM",
		},
		{
			name: "older",
			ts:   time.Date(2026, 7, 4, 12, 0, 0, 0, time.UTC),
			want: "Jul 04, 2026",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := FormatRelative(tt.ts, now); got != tt.want {
				t.Errorf("FormatRelative: want %q, got %q", tt.want, got)
			}
		})
	}
}

func TestAutoTitle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"What is the weather", "What is the weather"},
		{"  padded  ", "padded"},
		{
			"Tell me everything you know about the history of the Roman Empire please",
			"Tell me everything you know about the history of t...",
		},
	}
	for _, tt := range tests {
		if got := AutoTitle(tt.in); got != tt.want {
			t.Errorf("AutoTitle(%q): want %q, got %q", tt.in, tt.want, got)
		}
	}
}
