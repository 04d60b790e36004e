package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"mockvox/audio"
	"mockvox/beep"
	"mockvox/interview"
	"mockvox/log"
	"mockvox/media"
	"mockvox/session"
)

// consoleSink prints controller output as parseable lines for script
// mode.
type consoleSink struct{}

func (consoleSink) RenderJobList(jobs []interview.JobPosting) {
	fmt.Printf("JOBS %d\n", len(jobs))
	for i, j := range jobs {
		fmt.Printf("JOB %d %s | %s\n", i+1, j.Title, j.Company)
	}
}

func (consoleSink) RenderTurn(turn interview.Turn) {
	fmt.Printf("TURN %s %s\n", turn.Speaker, turn.Text)
}

func (consoleSink) RenderReport(rep *interview.Report) {
	fmt.Printf("REPORT overall=%.1f hired=%t dims=%d\n",
		rep.OverallScore, rep.Hired, len(rep.DimensionScores))
}

func (consoleSink) SetControls(s session.State) { fmt.Printf("STATE %s\n", s) }
func (consoleSink) Notify(msg string)           { fmt.Printf("NOTICE %s\n", msg) }
func (consoleSink) NotifyError(err error)       { fmt.Printf("ERROR %v\n", err) }
func (consoleSink) AudioLevel(float64)          {}
func (consoleSink) SilenceWarning(active bool)  { fmt.Printf("SILENCE %t\n", active) }

// runScriptMode drives a session headlessly from stdin commands, with a
// WAV file standing in for the microphone. Commands: SEARCH <kw>,
// SELECT <n>, START, TOGGLE, END, RESTART, WAIT <state>, SLEEP <ms>,
// QUIT.
func runScriptMode(client interview.Client, wavPath string) {
	beep.Disable()

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	fakeCtx, err := audio.NewFakeContextFromWAV(wavPath, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading WAV: %v\n", err)
		os.Exit(1)
	}

	adapter := media.NewAdapter(fakeCtx, nil, nil)
	ctrl := session.New(session.Options{
		Client:  client,
		Adapter: adapter,
		Sink:    consoleSink{},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ctrl.Run(ctx)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "SEARCH":
			ctrl.Search(strings.Join(fields[1:], " "))
		case "SELECT":
			if len(fields) == 2 {
				if n, err := strconv.Atoi(fields[1]); err == nil {
					ctrl.SelectJob(n - 1)
				}
			}
		case "START":
			ctrl.StartInterview()
		case "TOGGLE":
			ctrl.ToggleRecording()
		case "END":
			ctrl.EndInterview()
		case "RESTART":
			ctrl.Restart()
		case "WAIT":
			if len(fields) == 2 {
				waitForState(ctrl, fields[1])
			}
		case "SLEEP":
			if len(fields) == 2 {
				if ms, err := strconv.Atoi(fields[1]); err == nil {
					time.Sleep(time.Duration(ms) * time.Millisecond)
				}
			}
		case "QUIT":
			cancel()
			time.Sleep(100 * time.Millisecond)
			return
		default:
			fmt.Fprintf(os.Stderr, "unknown command %q\n", fields[0])
		}
	}
}

func waitForState(ctrl *session.Controller, name string) {
	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		if ctrl.State().String() == name {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	fmt.Fprintf(os.Stderr, "WAIT %s timed out (state %s)\n", name, ctrl.State())
}
