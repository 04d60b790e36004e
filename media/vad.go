package media

import (
	"math"
	"sync"

	"mockvox/encoder"
)

const (
	vadFrameMs    = 20
	vadFrameBytes = encoder.SampleRate * vadFrameMs / 1000 * 2 // 640 bytes
	vadDebounce   = 3 // consecutive speech frames to confirm voice

	// RMS over int16 samples. Below this a frame is noise floor.
	vadEnergyThreshold = 450.0
)

// vadProcessor runs a frame-energy voice activity detector over the
// capture stream. It is callback-fed and polled from the UI tick.
type vadProcessor struct {
	mu            sync.Mutex
	buf           []byte
	voiceDetected bool
	speechRun     int
	totalFrames   int
	speechFrames  int
	tickTotal     int
	tickSpeech    int
}

func (p *vadProcessor) Process(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.buf = append(p.buf, data...)
	for len(p.buf) >= vadFrameBytes {
		frame := p.buf[:vadFrameBytes]
		p.buf = p.buf[vadFrameBytes:]

		active := frameRMS(frame) >= vadEnergyThreshold
		p.totalFrames++
		p.tickTotal++
		if active {
			p.speechFrames++
			p.tickSpeech++
			p.speechRun++
			if p.speechRun >= vadDebounce {
				p.voiceDetected = true
			}
		} else {
			p.speechRun = 0
		}
	}
}

func (p *vadProcessor) VoiceDetected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.voiceDetected
}

// TickHadSpeech reports whether any frame since the previous call was
// speech, and resets the per-tick window.
func (p *vadProcessor) TickHadSpeech() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	had := p.tickSpeech > 0
	p.tickSpeech = 0
	p.tickTotal = 0
	return had
}

// SpeechRatio is the speech fraction over the whole recording so far.
func (p *vadProcessor) SpeechRatio() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.totalFrames == 0 {
		return 0
	}
	return float64(p.speechFrames) / float64(p.totalFrames)
}

func frameRMS(frame []byte) float64 {
	n := len(frame) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := int16(uint16(frame[2*i]) | uint16(frame[2*i+1])<<8)
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(n))
}
