package media

import "time"

const (
	TickInterval     = 100 * time.Millisecond
	silenceWarnEvery = 8 * time.Second
	silenceWindowDur = 30 * time.Second
	speechMinRatio   = 0.10
	speechClearRatio = 0.25 // higher threshold to clear warning (hysteresis)
)

type SilenceEvent int

const (
	SilenceNone      SilenceEvent = iota
	SilenceWarn                   // no voice detected
	SilenceWarnClear              // speech resumed after warning
	SilenceRepeat                 // repeat reminder (every 8s)
)

// SilenceMonitor watches tick-level speech flags during a recording and
// nudges the user when the mic has gone quiet. It never stops the
// recording itself; answers are submitted per turn, so closing is the
// user's call.
type SilenceMonitor struct {
	warnAt   int
	windowSz int

	ticks    int
	window   []bool
	warned   bool
	lastWarn int
}

func NewSilenceMonitor() *SilenceMonitor {
	warnAt := int(silenceWarnEvery / TickInterval)
	windowSz := int(silenceWindowDur / TickInterval)
	return &SilenceMonitor{
		warnAt:   warnAt,
		windowSz: windowSz,
		window:   make([]bool, windowSz),
	}
}

func (m *SilenceMonitor) ratio(n int) float64 {
	if m.ticks < n {
		n = m.ticks
	}
	if n == 0 {
		return 1.0
	}
	count := 0
	for i := 0; i < n; i++ {
		if m.window[(m.ticks-1-i+m.windowSz)%m.windowSz] {
			count++
		}
	}
	return float64(count) / float64(n)
}

func (m *SilenceMonitor) Tick(hasSpeech bool) SilenceEvent {
	m.window[m.ticks%m.windowSz] = hasSpeech
	m.ticks++

	r := m.ratio(m.warnAt)

	if m.ticks >= m.warnAt && r < speechMinRatio && !m.warned {
		m.warned = true
		m.lastWarn = m.ticks
		return SilenceWarn
	}
	if m.warned && r >= speechClearRatio {
		m.warned = false
		return SilenceWarnClear
	}
	if m.warned && m.ticks-m.lastWarn >= m.warnAt {
		m.lastWarn = m.ticks
		return SilenceRepeat
	}
	return SilenceNone
}
