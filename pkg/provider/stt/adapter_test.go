package stt_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/voxgate-ai/voxgate/pkg/provider/stt"
	"github.com/voxgate-ai/voxgate/pkg/provider/stt/mock"
)

var testCfg = stt.StreamConfig{SampleRate: 16000, Channels: 1, Language: "en-US"}

// collector buffers adapter callbacks for inspection.
func collector() (stt.TranscriptFunc, <-chan stt.Transcript) {
	ch := make(chan stt.Transcript, 64)
	return func(t stt.Transcript) { ch <- t }, ch
}

func waitTranscript(t *testing.T, ch <-chan stt.Transcript) stt.Transcript {
	t.Helper()
	select {
	case tr := <-ch:
		return tr
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for transcript")
		return stt.Transcript{}
	}
}

func TestAdapterStreamsResults(t *testing.T) {
	t.Parallel()

	prov := &mock.Provider{}
	onResult, results := collector()

	a, err := stt.NewAdapter(prov, nil, testCfg, onResult)
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if a.Degraded() {
		t.Error("adapter degraded despite a healthy stream")
	}

	chunk := []byte{1, 2, 3, 4}
	if err := a.SendAudio(chunk); err != nil {
		t.Fatalf("SendAudio: %v", err)
	}

	sess := prov.LastSession()
	if got := sess.Audio(); len(got) != 1 || !bytes.Equal(got[0], chunk) {
		t.Errorf("audio not forwarded to session: %v", got)
	}

	sess.Emit(stt.Transcript{Text: "hel", IsFinal: false})
	sess.Emit(stt.Transcript{Text: "hello", IsFinal: true})

	if tr := waitTranscript(t, results); tr.IsFinal || tr.Text != "hel" {
		t.Errorf("interim: got %+v", tr)
	}
	if tr := waitTranscript(t, results); !tr.IsFinal || tr.Text != "hello" {
		t.Errorf("final: got %+v", tr)
	}

	if err := a.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := a.SendAudio(chunk); err == nil {
		t.Error("SendAudio succeeded after Stop")
	}
}

func TestAdapterRetriesThenStreams(t *testing.T) {
	t.Parallel()

	prov := &mock.Provider{StartErrs: []error{
		errors.New("dial refused"),
		errors.New("dial refused"),
	}}
	onResult, _ := collector()

	a, err := stt.NewAdapter(prov, nil, testCfg, onResult)
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start after retries: %v", err)
	}
	defer a.Stop()

	if got := prov.Calls(); got != 3 {
		t.Errorf("StartStream calls: want 3, got %d", got)
	}
	if a.Degraded() {
		t.Error("adapter degraded although the final attempt succeeded")
	}
}

func TestAdapterStartFailsWithoutFallback(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("dial refused")
	prov := &mock.Provider{StartErrs: []error{wantErr, wantErr, wantErr}}
	onResult, _ := collector()

	a, err := stt.NewAdapter(prov, nil, testCfg, onResult)
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	if err := a.Start(context.Background()); !errors.Is(err, wantErr) {
		t.Errorf("Start: want %v, got %v", wantErr, err)
	}
}

func TestAdapterStartHonoursContext(t *testing.T) {
	t.Parallel()

	prov := &mock.Provider{StartErrs: []error{errors.New("dial refused")}}
	onResult, _ := collector()

	a, err := stt.NewAdapter(prov, nil, testCfg, onResult)
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := a.Start(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Start: want context.Canceled, got %v", err)
	}
}

func TestAdapterDegradesToBatch(t *testing.T) {
	t.Parallel()

	dial := errors.New("dial refused")
	prov := &mock.Provider{StartErrs: []error{dial, dial, dial}}
	batch := &mock.Batch{Text: "offline words"}
	onResult, results := collector()

	a, err := stt.NewAdapter(prov, batch, testCfg, onResult)
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start with fallback: %v", err)
	}
	if !a.Degraded() {
		t.Fatal("adapter not degraded after exhausting retries")
	}

	// Enough chunks to trip a batch submission.
	chunk := make([]byte, 640)
	for i := 0; i < 60; i++ {
		if err := a.SendAudio(chunk); err != nil {
			t.Fatalf("SendAudio %d: %v", i, err)
		}
	}

	if tr := waitTranscript(t, results); !tr.IsFinal || tr.Text != "offline words" {
		t.Errorf("batch result: got %+v", tr)
	}

	bufs := batch.Buffers()
	if len(bufs) != 1 {
		t.Fatalf("batch submissions: want 1, got %d", len(bufs))
	}
	if want := 60 * len(chunk); len(bufs[0]) != want {
		t.Errorf("batch audio: want %d bytes, got %d", want, len(bufs[0]))
	}

	if err := a.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestAdapterStopFlushesBufferedAudio(t *testing.T) {
	t.Parallel()

	dial := errors.New("dial refused")
	prov := &mock.Provider{StartErrs: []error{dial, dial, dial}}
	batch := &mock.Batch{Text: "tail end"}
	onResult, results := collector()

	a, err := stt.NewAdapter(prov, batch, testCfg, onResult)
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := a.SendAudio([]byte{1, 2, 3, 4}); err != nil {
			t.Fatalf("SendAudio: %v", err)
		}
	}
	if err := a.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if tr := waitTranscript(t, results); tr.Text != "tail end" {
		t.Errorf("flushed batch result: got %+v", tr)
	}
	if bufs := batch.Buffers(); len(bufs) != 1 || len(bufs[0]) != 12 {
		t.Errorf("flushed audio: got %d buffers", len(bufs))
	}
}
