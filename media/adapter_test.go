package media

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"

	"mockvox/audio"
	"mockvox/encoder"
)

// loudPCM builds a square wave at roughly 1 kHz, well above the VAD
// noise floor.
func loudPCM(samples int) []byte {
	pcm := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		v := int16(8000)
		if (i/8)%2 == 0 {
			v = -8000
		}
		pcm[2*i] = byte(uint16(v))
		pcm[2*i+1] = byte(uint16(v) >> 8)
	}
	return pcm
}

func newTestAdapter(pcm []byte, video VideoSource) *Adapter {
	return NewAdapter(audio.NewFakeContext(pcm, false), video, nil)
}

func TestRecordingProducesWAVClip(t *testing.T) {
	pcm := loudPCM(encoder.SampleRate) // one second
	a := newTestAdapter(pcm, nil)

	h, err := a.Acquire(context.Background(), false)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer h.Release()

	rec, err := h.StartRecording()
	if err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if rec.Mime() != "audio/wav" {
		t.Errorf("Mime = %q, want %q", rec.Mime(), "audio/wav")
	}

	clip, snap, err := h.StopRecording()
	if err != nil {
		t.Fatalf("StopRecording: %v", err)
	}
	if snap != nil {
		t.Error("audio-only handle produced a snapshot")
	}
	if !bytes.HasPrefix(clip.Data, []byte("RIFF")) {
		t.Error("clip is not a RIFF container")
	}
	if clip.Frames < encoder.SampleRate {
		t.Errorf("Frames = %d, want at least %d", clip.Frames, encoder.SampleRate)
	}
	if len(clip.PCM) < len(pcm) {
		t.Errorf("PCM retained %d bytes, want at least %d", len(clip.PCM), len(pcm))
	}
}

func TestEncodingProbePrefersFirstSupported(t *testing.T) {
	// The default registry carries WAV only, so the probe must walk
	// past the preferred webm/mp4/ogg candidates.
	mime, w, err := encoder.Probe(encoder.Candidates, encoder.DefaultRegistry())
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	defer w.Close()
	if mime != "audio/wav" {
		t.Errorf("probe chose %q, want %q", mime, "audio/wav")
	}
}

func TestStrictSingleRecording(t *testing.T) {
	a := newTestAdapter(loudPCM(1024), nil)
	h, err := a.Acquire(context.Background(), false)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer h.Release()

	if _, err := h.StartRecording(); err != nil {
		t.Fatalf("first StartRecording: %v", err)
	}
	if _, err := h.StartRecording(); !errors.Is(err, ErrRecordingActive) {
		t.Errorf("second StartRecording = %v, want ErrRecordingActive", err)
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	a := newTestAdapter(loudPCM(1024), nil)
	h, err := a.Acquire(context.Background(), false)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	h.Release()
	h.Release() // must not panic or error

	if _, err := h.StartRecording(); !errors.Is(err, ErrReleased) {
		t.Errorf("StartRecording after release = %v, want ErrReleased", err)
	}
}

func TestReleaseDuringRecording(t *testing.T) {
	a := newTestAdapter(loudPCM(1024), &FakeVideo{Width: 64, Height: 64})
	h, err := a.Acquire(context.Background(), true)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := h.StartRecording(); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	h.Release()
	h.Release()
}

func TestCameraFailureFallsBackToAudioOnly(t *testing.T) {
	a := newTestAdapter(loudPCM(1024), &FakeVideo{AcquireErr: ErrNoCamera})
	h, err := a.Acquire(context.Background(), true)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer h.Release()
	if h.HasVideo() {
		t.Error("handle claims video after camera failure")
	}
}

func TestSnapshotTakenAtStop(t *testing.T) {
	a := newTestAdapter(loudPCM(1024), &FakeVideo{Width: 320, Height: 240})
	h, err := a.Acquire(context.Background(), true)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer h.Release()
	if !h.HasVideo() {
		t.Fatal("expected video track")
	}

	if _, err := h.StartRecording(); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	_, snap, err := h.StopRecording()
	if err != nil {
		t.Fatalf("StopRecording: %v", err)
	}
	if snap == nil {
		t.Fatal("expected a snapshot")
	}
	if !bytes.HasPrefix(snap.JPEG, []byte{0xFF, 0xD8}) {
		t.Error("snapshot is not a JPEG")
	}
	if snap.Width != 320 || snap.Height != 240 {
		t.Errorf("snapshot size = %dx%d, want 320x240", snap.Width, snap.Height)
	}
}

func TestZeroAreaFrameYieldsNoSnapshot(t *testing.T) {
	a := newTestAdapter(loudPCM(1024), &FakeVideo{})
	h, err := a.Acquire(context.Background(), true)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer h.Release()

	if _, err := h.StartRecording(); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	_, snap, err := h.StopRecording()
	if err != nil {
		t.Fatalf("StopRecording: %v", err)
	}
	if snap != nil {
		t.Error("zero-area frame produced a snapshot")
	}
}

func TestVADDetectsSpeech(t *testing.T) {
	p := &vadProcessor{}
	p.Process(make([]byte, vadFrameBytes*10)) // silence
	if p.VoiceDetected() {
		t.Fatal("voice detected in silence")
	}
	if p.TickHadSpeech() {
		t.Fatal("tick reported speech in silence")
	}

	p.Process(loudPCM(vadFrameBytes * 10 / 2))
	if !p.VoiceDetected() {
		t.Fatal("no voice detected in loud signal")
	}
	if !p.TickHadSpeech() {
		t.Fatal("tick missed speech")
	}
}

func TestArchiveSave(t *testing.T) {
	arch, err := NewArchive(t.TempDir())
	if err != nil {
		t.Fatalf("NewArchive: %v", err)
	}
	path := arch.Save(&Clip{PCM: loudPCM(encoder.SampleRate / 4)})
	if path == "" {
		t.Fatal("Save returned no path")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading archive file: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("fLaC")) {
		t.Error("archived file is not FLAC")
	}
}

func TestNilArchiveIsNoop(t *testing.T) {
	var arch *Archive
	if path := arch.Save(&Clip{PCM: loudPCM(64)}); path != "" {
		t.Errorf("nil archive saved to %q", path)
	}
}
