package encoder

import (
	"encoding/binary"
	"testing"
)

func TestProbePicksFirstSupported(t *testing.T) {
	r := NewRegistry()
	r.Register("audio/wav", func() (Writer, error) { return NewWAV(), nil })

	mime, w, err := Probe(Candidates, r)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if mime != "audio/wav" {
		t.Errorf("mime = %q, want audio/wav", mime)
	}
	if w == nil {
		t.Fatal("Probe returned nil writer")
	}
}

func TestProbePreferenceOrder(t *testing.T) {
	r := NewRegistry()
	r.Register("audio/wav", func() (Writer, error) { return NewWAV(), nil })
	r.Register("audio/webm", func() (Writer, error) { return NewWAV(), nil })

	mime, _, err := Probe(Candidates, r)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	// audio/webm comes before audio/wav in the candidate list
	if mime != "audio/webm" {
		t.Errorf("mime = %q, want audio/webm", mime)
	}
}

func TestProbeAllRejected(t *testing.T) {
	_, _, err := Probe(Candidates, NewRegistry())
	if err != ErrNoSupportedEncoding {
		t.Errorf("err = %v, want ErrNoSupportedEncoding", err)
	}
}

func TestDefaultRegistryWAVOnly(t *testing.T) {
	r := DefaultRegistry()
	if !r.Supported("audio/wav") {
		t.Error("audio/wav should be supported by default")
	}
	for _, mime := range Candidates[:4] {
		if r.Supported(mime) {
			t.Errorf("%s should not be supported by default", mime)
		}
	}
}

func TestWAVWriterHeader(t *testing.T) {
	w := NewWAV()

	block := make([]int16, BlockSize)
	for i := range block {
		block[i] = int16(i % 1000)
	}
	if err := w.WriteBlock(block); err != nil {
		t.Fatalf("WriteBlock: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data := w.Bytes()
	if len(data) != WAVHeaderSize+BlockSize*2 {
		t.Fatalf("len = %d, want %d", len(data), WAVHeaderSize+BlockSize*2)
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Fatal("missing RIFF/WAVE magic")
	}
	if got := binary.LittleEndian.Uint32(data[24:28]); got != SampleRate {
		t.Errorf("sample rate = %d, want %d", got, SampleRate)
	}
	if got := binary.LittleEndian.Uint32(data[40:44]); got != BlockSize*2 {
		t.Errorf("data length = %d, want %d", got, BlockSize*2)
	}
	if w.TotalFrames() != BlockSize {
		t.Errorf("TotalFrames = %d, want %d", w.TotalFrames(), BlockSize)
	}
}

func TestWAVWriterCloseIdempotent(t *testing.T) {
	w := NewWAV()
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if len(w.Bytes()) != WAVHeaderSize {
		t.Errorf("empty clip should be header only, got %d bytes", len(w.Bytes()))
	}
}

func TestFlacWriter(t *testing.T) {
	w, err := NewFlac()
	if err != nil {
		t.Fatalf("NewFlac: %v", err)
	}

	block := make([]int16, BlockSize)
	for i := range block {
		block[i] = int16(i % 512)
	}
	if err := w.WriteBlock(block); err != nil {
		t.Fatalf("WriteBlock: %v", err)
	}

	partial := make([]int16, BlockSize/4)
	if err := w.WriteBlock(partial); err != nil {
		t.Fatalf("WriteBlock partial: %v", err)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if w.TotalFrames() != uint64(BlockSize+BlockSize/4) {
		t.Errorf("TotalFrames = %d, want %d", w.TotalFrames(), BlockSize+BlockSize/4)
	}

	data := w.Bytes()
	if len(data) < 4 || string(data[:4]) != "fLaC" {
		t.Fatal("output does not start with FLAC magic")
	}
}
