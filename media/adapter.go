// Package media turns raw microphone/camera access into finalized answer
// clips: it negotiates an audio encoding, buffers PCM while a recording
// runs, and grabs an optional webcam still at stop time.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"sync"
	"time"

	"mockvox/audio"
	"mockvox/encoder"
	"mockvox/log"
)

var (
	// ErrPermissionDenied means microphone access was refused or the
	// device could not be opened.
	ErrPermissionDenied = errors.New("media access denied")
	// ErrRecordingActive rejects a second concurrent recording on one
	// handle.
	ErrRecordingActive = errors.New("a recording is already active")
	// ErrReleased rejects use of a handle after Release.
	ErrReleased = errors.New("capture handle released")
)

const snapshotJPEGQuality = 80

// Adapter owns device access policy: which mic, which camera source,
// which encodings are on the table.
type Adapter struct {
	audio    audio.Context
	video    VideoSource
	device   *audio.DeviceInfo
	registry *encoder.Registry
}

func NewAdapter(audioCtx audio.Context, video VideoSource, device *audio.DeviceInfo) *Adapter {
	return &Adapter{
		audio:    audioCtx,
		video:    video,
		device:   device,
		registry: encoder.DefaultRegistry(),
	}
}

// Acquire opens the microphone and, when wantVideo is set, tries the
// camera. Camera failure is not fatal: the handle comes back audio-only
// and the caller can tell via HasVideo.
func (a *Adapter) Acquire(ctx context.Context, wantVideo bool) (*Handle, error) {
	capture, err := a.audio.NewCapture(a.device, audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}

	h := &Handle{capture: capture, registry: a.registry}
	if wantVideo && a.video != nil {
		track, err := a.video.Acquire(ctx)
		if err != nil {
			log.Warnf("camera unavailable, continuing audio-only: %v", err)
		} else {
			h.video = track
		}
	}
	return h, nil
}

// Handle is one live acquisition. At most one recording may be active on
// it; Release is idempotent and stops everything.
type Handle struct {
	capture  audio.CaptureDevice
	video    VideoTrack
	registry *encoder.Registry

	mu       sync.Mutex
	released bool
	rec      *Recording
}

func (h *Handle) HasVideo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.video != nil
}

func (h *Handle) DeviceName() string { return h.capture.DeviceName() }

// StartRecording probes the encoding candidates, arms the capture
// callback and starts the device.
func (h *Handle) StartRecording() (*Recording, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return nil, ErrReleased
	}
	if h.rec != nil {
		return nil, ErrRecordingActive
	}

	mime, writer, err := encoder.Probe(encoder.Candidates, h.registry)
	if err != nil {
		return nil, err
	}

	rec := &Recording{mime: mime, writer: writer, vad: &vadProcessor{}, started: time.Now()}
	h.capture.SetCallback(rec.onData)
	if err := h.capture.Start(); err != nil {
		h.capture.ClearCallback()
		return nil, fmt.Errorf("starting capture: %w", err)
	}
	h.rec = rec
	log.Info(fmt.Sprintf("recording started (%s, device %q)", mime, h.capture.DeviceName()))
	return rec, nil
}

// StopRecording finalizes the active recording into a clip and, when a
// live camera track is present, a JPEG snapshot.
func (h *Handle) StopRecording() (*Clip, *Snapshot, error) {
	h.mu.Lock()
	rec := h.rec
	h.rec = nil
	h.mu.Unlock()
	if rec == nil {
		return nil, nil, errors.New("no active recording")
	}

	h.capture.Stop()
	h.capture.ClearCallback()

	clip, err := rec.finalize()
	if err != nil {
		return nil, nil, err
	}
	return clip, h.snapshot(), nil
}

// DiscardRecording stops the active recording, if any, and throws the
// audio away. Used when the user ends the interview mid-recording.
func (h *Handle) DiscardRecording() {
	h.mu.Lock()
	rec := h.rec
	h.rec = nil
	h.mu.Unlock()
	if rec == nil {
		return
	}
	h.capture.Stop()
	h.capture.ClearCallback()
	rec.writer.Close()
}

// Release stops all tracks. Safe to call repeatedly and on every exit
// path.
func (h *Handle) Release() {
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return
	}
	h.released = true
	rec := h.rec
	h.rec = nil
	video := h.video
	h.video = nil
	h.mu.Unlock()

	if rec != nil {
		h.capture.Stop()
		rec.writer.Close()
	}
	h.capture.ClearCallback()
	h.capture.Close()
	if video != nil {
		video.Stop()
	}
}

func (h *Handle) snapshot() *Snapshot {
	h.mu.Lock()
	video := h.video
	h.mu.Unlock()
	if video == nil {
		return nil
	}
	frame, err := video.Snapshot()
	if err != nil {
		log.Warnf("snapshot failed: %v", err)
		return nil
	}
	bounds := frame.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: snapshotJPEGQuality}); err != nil {
		log.Warnf("encoding snapshot: %v", err)
		return nil
	}
	return &Snapshot{JPEG: buf.Bytes(), Width: bounds.Dx(), Height: bounds.Dy()}
}

// Recording accumulates PCM from the capture callback. All exported
// methods are safe to call while the callback is firing.
type Recording struct {
	mime    string
	writer  encoder.Writer
	vad     *vadProcessor
	started time.Time

	mu    sync.Mutex
	pcm   []byte
	level float64
	err   error
}

func (r *Recording) Mime() string { return r.mime }

// onData runs on the capture thread.
func (r *Recording) onData(data []byte, _ uint32) {
	r.vad.Process(data)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return
	}
	r.pcm = append(r.pcm, data...)
	r.level = frameRMS(data) / 32768.0

	block := make([]int16, len(data)/2)
	for i := range block {
		block[i] = int16(uint16(data[2*i]) | uint16(data[2*i+1])<<8)
	}
	if err := r.writer.WriteBlock(block); err != nil {
		r.err = err
	}
}

// Level is the RMS of the latest chunk, normalized to [0,1], for the
// recording indicator.
func (r *Recording) Level() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.level
}

// TickHadSpeech feeds the silence monitor; one call per UI tick.
func (r *Recording) TickHadSpeech() bool { return r.vad.TickHadSpeech() }

func (r *Recording) Elapsed() time.Duration { return time.Since(r.started) }

func (r *Recording) finalize() (*Clip, error) {
	r.mu.Lock()
	err := r.err
	r.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("recording failed: %w", err)
	}
	if err := r.writer.Close(); err != nil {
		return nil, fmt.Errorf("finalizing clip: %w", err)
	}

	r.mu.Lock()
	pcm := r.pcm
	r.mu.Unlock()

	frames := r.writer.TotalFrames()
	return &Clip{
		Mime:     r.mime,
		Data:     r.writer.Bytes(),
		PCM:      pcm,
		Frames:   frames,
		Duration: time.Duration(frames) * time.Second / encoder.SampleRate,
	}, nil
}

// Clip is one finalized answer. PCM is kept alongside the encoded bytes
// for the optional archive.
type Clip struct {
	Mime     string
	Data     []byte
	PCM      []byte
	Frames   uint64
	Duration time.Duration
}

// Snapshot is a webcam still taken when the recording stopped.
type Snapshot struct {
	JPEG          []byte
	Width, Height int
}
