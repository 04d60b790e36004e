// Package beep plays short audio cues for recording start/stop and
// silence warnings. Playback failures are silent; cues are never worth
// an error dialog.
package beep

var disabled bool

func Disable() { disabled = true }

const (
	sampleRate = 44100

	// Record-start cue: high pitch, short
	startFreq   = 1200
	startVolume = 0.5
	startDecay  = 60

	// Record-stop cue: medium pitch, slightly longer
	endFreq   = 900
	endVolume = 0.5
	endDecay  = 40

	// Silence warning: low pitch double-beep
	warnFreq   = 350
	warnVolume = 0.6
	warnDecay  = 30
)
