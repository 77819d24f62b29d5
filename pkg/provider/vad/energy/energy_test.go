package energy

import (
	"testing"

	"github.com/voxgate-ai/voxgate/pkg/audio"
)

func TestNewRejectsBadSampleRate(t *testing.T) {
	t.Parallel()

	if _, err := New(0); err == nil {
		t.Error("New accepted a zero sample rate")
	}
	if _, err := New(-16000); err == nil {
		t.Error("New accepted a negative sample rate")
	}
}

func TestDetect(t *testing.T) {
	t.Parallel()

	d, err := New(16000)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	loud := make([]int16, 320)
	for i := range loud {
		if i%2 == 0 {
			loud[i] = 1000
		} else {
			loud[i] = -1000
		}
	}

	tests := []struct {
		name string
		pcm  []byte
		want bool
	}{
		{"empty", nil, false},
		{"silence", make([]byte, 640), false},
		{"speech", audio.Int16ToBytes(loud), true},
	}
	for _, tt := range tests {
		got, err := d.Detect(tt.pcm)
		if err != nil {
			t.Fatalf("%s: Detect: %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("%s: want %v, got %v", tt.name, tt.want, got)
		}
	}
}

func TestDetectCustomThreshold(t *testing.T) {
	t.Parallel()

	d, err := New(16000, WithThreshold(1e9))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	loud := make([]int16, 320)
	for i := range loud {
		loud[i] = 20000
	}
	got, err := d.Detect(audio.Int16ToBytes(loud))
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if got {
		t.Error("chunk below the raised threshold classified as speech")
	}
}
