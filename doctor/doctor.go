// Package doctor runs interactive pre-interview diagnostics: terminal,
// microphone, encoding support, and backend reachability.
package doctor

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/term"

	"mockvox/audio"
	"mockvox/encoder"
	"mockvox/interview"
)

// Run executes the checks and returns an exit code (0=all pass, 1=any
// fail).
func Run(backendURL string) int {
	resetTerminal()
	setupInterruptHandler()

	fmt.Println("mockvox doctor - system diagnostics")
	fmt.Println("===================================")

	allPass := true
	if !checkTerminal() {
		allPass = false
	}
	if !checkEncoding() {
		allPass = false
	}
	if allPass && !checkMicrophone() {
		allPass = false
	}
	if !checkBackend(backendURL) {
		allPass = false
	}

	fmt.Println()
	if allPass {
		fmt.Println("All checks passed!")
		return 0
	}
	fmt.Println("Some checks failed. See details above.")
	return 1
}

func checkTerminal() bool {
	fmt.Println()
	fmt.Println("[1/4] Terminal")
	if !term.IsTerminal(stdinFd()) {
		fmt.Println("  FAIL: stdin is not a terminal")
		return false
	}
	w, h, err := term.GetSize(stdoutFd())
	if err != nil {
		fmt.Printf("  FAIL: cannot read terminal size: %v\n", err)
		return false
	}
	fmt.Printf("  PASS: interactive terminal, %dx%d\n", w, h)
	return true
}

func checkEncoding() bool {
	fmt.Println()
	fmt.Println("[2/4] Audio encoding")
	mime, w, err := encoder.Probe(encoder.Candidates, encoder.DefaultRegistry())
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	w.Close()
	fmt.Printf("  PASS: answers will be encoded as %s\n", mime)
	return true
}

func checkMicrophone() bool {
	fmt.Println()
	fmt.Println("[3/4] Microphone")

	ctx, err := audio.NewContext()
	if err != nil {
		fmt.Printf("  FAIL: cannot connect to audio: %v\n", err)
		return false
	}
	defer ctx.Close()

	devices, err := ctx.Devices()
	if err != nil {
		fmt.Printf("  FAIL: cannot list devices: %v\n", err)
		return false
	}
	if len(devices) == 0 {
		fmt.Println("  FAIL: no capture devices found")
		return false
	}
	for _, d := range devices {
		note := ""
		if audio.IsBluetooth(d.Name) {
			note = " (bluetooth - transcription quality may suffer)"
		}
		fmt.Printf("  device: %s%s\n", d.Name, note)
	}

	fmt.Println("  recording 3 seconds, speak now...")
	pcm, err := record(ctx, 3*time.Second)
	if err != nil {
		fmt.Printf("  FAIL: recording error: %v\n", err)
		return false
	}
	if len(pcm) == 0 {
		fmt.Println("  FAIL: no audio captured")
		return false
	}

	rms := pcmRMS(pcm)
	fmt.Printf("  captured %.1f KB, level %.0f\n", float64(len(pcm))/1024, rms)
	if rms < 50 {
		fmt.Println("  WARN: very low signal, check the mic or input gain")
	}
	fmt.Println("  PASS: microphone works")
	return true
}

func checkBackend(backendURL string) bool {
	fmt.Println()
	fmt.Printf("[4/4] Backend (%s)\n", backendURL)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	jobs, err := interview.NewHTTPClient(backendURL).SearchJobs(ctx, "")
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	fmt.Printf("  PASS: backend reachable, %d postings available\n", len(jobs))
	return true
}

func record(ctx audio.Context, dur time.Duration) ([]byte, error) {
	capture, err := ctx.NewCapture(nil, audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	})
	if err != nil {
		return nil, err
	}
	defer capture.Close()

	var mu sync.Mutex
	var pcm []byte
	capture.SetCallback(func(data []byte, _ uint32) {
		mu.Lock()
		pcm = append(pcm, data...)
		mu.Unlock()
	})
	if err := capture.Start(); err != nil {
		return nil, err
	}
	time.Sleep(dur)
	capture.Stop()
	capture.ClearCallback()

	mu.Lock()
	defer mu.Unlock()
	return pcm, nil
}

func pcmRMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := int16(uint16(pcm[2*i]) | uint16(pcm[2*i+1])<<8)
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(n))
}
