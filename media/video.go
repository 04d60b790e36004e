package media

import (
	"context"
	"errors"
	"image"
	"image/color"
)

// ErrNoCamera is returned by a VideoSource when no camera can be
// acquired. The adapter downgrades to an audio-only handle on it.
var ErrNoCamera = errors.New("no camera available")

// VideoSource acquires camera tracks. There is no portable camera stack
// in this binary; headless builds use NoVideo and tests use FakeVideo.
type VideoSource interface {
	Acquire(ctx context.Context) (VideoTrack, error)
}

// VideoTrack is one live camera acquisition.
type VideoTrack interface {
	// Snapshot grabs the current frame. A track whose frame has zero
	// area yields no usable snapshot.
	Snapshot() (image.Image, error)
	Stop()
}

// NoVideo always fails acquisition, forcing audio-only sessions.
type NoVideo struct{}

func (NoVideo) Acquire(context.Context) (VideoTrack, error) {
	return nil, ErrNoCamera
}

// FakeVideo yields solid-color frames of a fixed size.
type FakeVideo struct {
	Width, Height int
	AcquireErr    error
	Stopped       bool
}

func (f *FakeVideo) Acquire(context.Context) (VideoTrack, error) {
	if f.AcquireErr != nil {
		return nil, f.AcquireErr
	}
	return &fakeTrack{source: f}, nil
}

type fakeTrack struct {
	source *FakeVideo
}

func (t *fakeTrack) Snapshot() (image.Image, error) {
	img := image.NewRGBA(image.Rect(0, 0, t.source.Width, t.source.Height))
	for y := 0; y < t.source.Height; y++ {
		for x := 0; x < t.source.Width; x++ {
			img.Set(x, y, color.RGBA{R: 40, G: 90, B: 160, A: 255})
		}
	}
	return img, nil
}

func (t *fakeTrack) Stop() { t.source.Stopped = true }
