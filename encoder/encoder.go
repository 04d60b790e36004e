package encoder

import (
	"errors"
	"fmt"
	"sync"
)

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)

// ErrNoSupportedEncoding is returned by Probe when none of the candidate
// mime types has a registered writer.
var ErrNoSupportedEncoding = errors.New("no supported audio encoding")

// Candidates is the ordered preference list for finalized answer clips.
// Probe walks it front to back and picks the first type the runtime
// actually supports.
var Candidates = []string{
	"audio/webm;codecs=opus",
	"audio/webm",
	"audio/mp4",
	"audio/ogg",
	"audio/wav",
}

// Writer consumes PCM16 sample blocks and produces one finalized clip in
// a concrete container format.
type Writer interface {
	WriteBlock(block []int16) error
	Close() error
	Bytes() []byte
	TotalFrames() uint64
}

type Factory func() (Writer, error)

// Registry maps mime types to writer factories. Support is whatever got
// registered; the default runtime only carries the pure-Go WAV writer,
// everything else in Candidates is rejected at probe time.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry returns the registry shipped with the binary.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("audio/wav", func() (Writer, error) { return NewWAV(), nil })
	return r
}

func (r *Registry) Register(mime string, f Factory) {
	r.mu.Lock()
	r.factories[mime] = f
	r.mu.Unlock()
}

func (r *Registry) Supported(mime string) bool {
	r.mu.RLock()
	_, ok := r.factories[mime]
	r.mu.RUnlock()
	return ok
}

func (r *Registry) New(mime string) (Writer, error) {
	r.mu.RLock()
	f, ok := r.factories[mime]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unregistered encoding %q", mime)
	}
	return f()
}

// Probe selects the first candidate mime type with a registered writer
// and instantiates it.
func Probe(candidates []string, r *Registry) (string, Writer, error) {
	for _, mime := range candidates {
		if !r.Supported(mime) {
			continue
		}
		w, err := r.New(mime)
		if err != nil {
			// A registered factory that fails to construct counts as
			// unsupported; keep walking the list.
			continue
		}
		return mime, w, nil
	}
	return "", nil, ErrNoSupportedEncoding
}
