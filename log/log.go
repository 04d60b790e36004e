package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	diagLog        zerolog.Logger
	diagFile       *os.File
	transcriptFile *os.File
	logMu          sync.Mutex
	logReady       bool
	pid            int
	dir            string
)

// SubmitMetrics are the per-answer network timings logged after each
// request/response submission.
type SubmitMetrics struct {
	AudioLengthS float64
	ClipKB       float64
	ConnWaitMs   float64
	DNSMs        float64
	TCPMs        float64
	TLSMs        float64
	TTFBMs       float64
	TotalMs      float64
	ConnReused   bool
}

// StreamMetrics summarize one streaming conversation at close.
type StreamMetrics struct {
	ConnectMs    float64
	SentClips    int
	SentKB       float64
	RecvMessages int
	SessionS     float64
}

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		if !filepath.IsAbs(flagPath) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, flagPath), nil
		}
		return flagPath, nil
	}

	// Priority 2: MOCKVOX_LOG_PATH environment variable
	envPath := os.Getenv("MOCKVOX_LOG_PATH")
	if envPath != "" {
		if !filepath.IsAbs(envPath) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, envPath), nil
		}
		return envPath, nil
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error

	diagPath := filepath.Join(dir, "diagnostics_log.txt")
	diagFile, err = os.OpenFile(diagPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	transcriptPath := filepath.Join(dir, "transcript_log.txt")
	transcriptFile, err = os.OpenFile(transcriptPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagFile.Close()
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().Timestamp().Int("pid", pid).Logger()

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if transcriptFile != nil {
		transcriptFile.Close()
		transcriptFile = nil
	}
	logReady = false
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Error(msg string) {
	if logReady {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

// SessionStart records a successfully started interview session.
func SessionStart(sessionID, job, company, mode string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("session", sessionID).
		Str("job", job).
		Str("company", company).
		Str("mode", mode).
		Msg("session_start")
}

// SessionEnd records how a session finished and how many turns it produced.
func SessionEnd(sessionID, outcome string, turns int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("session", sessionID).
		Str("outcome", outcome).
		Int("turns", turns).
		Msg("session_end")
}

// Turn appends one exchange to the plain-text transcript file.
func Turn(speaker, text string) {
	if !logReady {
		return
	}
	logMu.Lock()
	defer logMu.Unlock()
	line := fmt.Sprintf("%s\t[%d]\t%s\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, speaker, text)
	transcriptFile.WriteString(line)
}

func Submit(sessionID string, question int, m SubmitMetrics) {
	if !logReady {
		return
	}
	connStatus := "new"
	if m.ConnReused {
		connStatus = "reused"
	}
	diagLog.Info().
		Str("session", sessionID).
		Int("question", question).
		Str("conn", connStatus).
		Float64("audio_s", m.AudioLengthS).
		Float64("clip_kb", m.ClipKB).
		Float64("conn_wait_ms", m.ConnWaitMs).
		Float64("dns_ms", m.DNSMs).
		Float64("tcp_ms", m.TCPMs).
		Float64("tls_ms", m.TLSMs).
		Float64("ttfb_ms", m.TTFBMs).
		Float64("total_ms", m.TotalMs).
		Msg("submit")
}

func Stream(sessionID string, m StreamMetrics) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("session", sessionID).
		Float64("connect_ms", m.ConnectMs).
		Int("sent_clips", m.SentClips).
		Float64("sent_kb", m.SentKB).
		Int("recv_messages", m.RecvMessages).
		Float64("session_s", m.SessionS).
		Msg("stream_close")
}

// Report records the fetched report summary.
func Report(sessionID string, overall float64, hired bool, dimensions int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("session", sessionID).
		Float64("overall", overall).
		Bool("hired", hired).
		Int("dimensions", dimensions).
		Msg("report")
}
