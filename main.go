package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"
	"time"

	"mockvox/audio"
	"mockvox/beep"
	"mockvox/config"
	"mockvox/doctor"
	"mockvox/interview"
	"mockvox/log"
	"mockvox/media"
	"mockvox/session"
)

var version = "dev"

func main() {
	configFlag := flag.String("config", "", "Path to YAML config file")
	backendFlag := flag.String("backend", "", "Backend base URL")
	modeFlag := flag.String("mode", "", "Transport mode: poll or stream")
	modelFlag := flag.String("model", "", "Model name forwarded to the backend")
	videoFlag := flag.Bool("video", false, "Attach webcam snapshots to answers")
	archiveFlag := flag.String("archive", "", "Directory for FLAC copies of submitted answers")
	deviceFlag := flag.String("device", "", "Use microphone device matching this name")
	setupFlag := flag.Bool("setup", false, "Select microphone device interactively")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	doctorFlag := flag.Bool("doctor", false, "Run system diagnostics and exit")
	scriptFlag := flag.Bool("script", false, "Script mode (headless, stdin-driven); pass a WAV file as argument")
	nobeepFlag := flag.Bool("nobeep", false, "Disable audio cues")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	// Resolve log directory early
	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	if *versionFlag {
		fmt.Printf("mockvox %s\n", version)
		os.Exit(0)
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "backend":
			cfg.BackendURL = *backendFlag
		case "mode":
			cfg.Mode = *modeFlag
		case "model":
			cfg.ModelName = *modelFlag
		case "video":
			cfg.Video = *videoFlag
		case "archive":
			cfg.ArchiveDir = *archiveFlag
		case "device":
			cfg.Device = *deviceFlag
		}
	})
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cues := cfg.BeepEnabled() && !*nobeepFlag
	if cues {
		beep.Init()
	} else {
		beep.Disable()
	}

	if *doctorFlag {
		os.Exit(doctor.Run(cfg.BackendURL))
	}

	client := interview.New(interview.Mode(cfg.Mode), cfg.BackendURL)

	if *scriptFlag {
		args := flag.Args()
		if len(args) == 0 {
			fmt.Fprintln(os.Stderr, "Usage: mockvox -script <wav-file>")
			os.Exit(1)
		}
		runScriptMode(client, args[0])
		return
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	audioCtx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Fprintf(os.Stderr, "Error initializing audio: %v\n", err)
		os.Exit(1)
	}
	defer audioCtx.Close()

	var device *audio.DeviceInfo
	if *setupFlag {
		device, err = selectDevice(audioCtx)
		if err != nil {
			log.Warnf("device selection failed: %v", err)
			fmt.Fprintf(os.Stderr, "Warning: %v, falling back to default device\n", err)
		}
	} else if cfg.Device != "" {
		device, err = findDevice(audioCtx, cfg.Device)
		if err != nil {
			log.Warnf("device lookup failed: %v", err)
			fmt.Fprintf(os.Stderr, "Warning: %v, falling back to default device\n", err)
		}
	}
	if device != nil && audio.IsBluetooth(device.Name) {
		fmt.Fprintln(os.Stderr, "Warning: bluetooth mic detected, transcription quality may suffer")
	}

	var videoSrc media.VideoSource
	if cfg.Video {
		// No portable camera stack yet; sessions degrade to audio-only
		// and the user is told.
		videoSrc = media.NoVideo{}
	}

	var archive *media.Archive
	if cfg.ArchiveDir != "" {
		archive, err = media.NewArchive(cfg.ArchiveDir)
		if err != nil {
			log.Warnf("archive disabled: %v", err)
			fmt.Fprintf(os.Stderr, "Warning: archive disabled: %v\n", err)
		}
	}

	adapter := media.NewAdapter(audioCtx, videoSrc, device)
	sink := newTUISink(nil, cues)
	ctrl := session.New(session.Options{
		Client:    client,
		Adapter:   adapter,
		Sink:      sink,
		Archive:   archive,
		ModelName: cfg.ModelName,
		WantVideo: cfg.Video,
	})

	prog := NewTUIProgram(ctrl)
	sink.prog = prog

	runCtx, cancel := context.WithCancel(context.Background())
	go ctrl.Run(runCtx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		prog.Quit()
	}()

	if _, err := prog.Run(); err != nil {
		log.Errorf("TUI error: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	cancel()
	// Give the controller a moment to close the session cleanly.
	time.Sleep(200 * time.Millisecond)
}
