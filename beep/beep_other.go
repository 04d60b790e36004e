//go:build !linux

package beep

// Cues are linux-only for now; the capture stack on other platforms goes
// through malgo and opening a second playback device mid-recording has
// proven flaky there.

func Init()      {}
func PlayStart() {}
func PlayEnd()   {}
func PlayWarn()  {}
