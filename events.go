package main

import (
	tea "github.com/charmbracelet/bubbletea"

	"mockvox/beep"
	"mockvox/interview"
	"mockvox/session"
)

// TUI message types
type JobListMsg struct{ Jobs []interview.JobPosting }
type TurnMsg struct{ Turn interview.Turn }
type ReportMsg struct{ Report *interview.Report }
type ControlsMsg struct{ State session.State }
type NoticeMsg struct{ Text string }
type ErrorMsg struct{ Err error }
type AudioLevelMsg struct{ Level float64 }
type SilenceMsg struct{ Active bool }

// tuiSink forwards controller output to the Bubble Tea program and
// plays the audio cues that go with transitions.
type tuiSink struct {
	prog      *tea.Program
	cues      bool
	lastState session.State
}

func newTUISink(prog *tea.Program, cues bool) *tuiSink {
	return &tuiSink{prog: prog, cues: cues}
}

func (s *tuiSink) RenderJobList(jobs []interview.JobPosting) {
	s.prog.Send(JobListMsg{Jobs: jobs})
}

func (s *tuiSink) RenderTurn(turn interview.Turn) {
	s.prog.Send(TurnMsg{Turn: turn})
}

func (s *tuiSink) RenderReport(rep *interview.Report) {
	s.prog.Send(ReportMsg{Report: rep})
}

func (s *tuiSink) SetControls(state session.State) {
	if s.cues {
		if state == session.StateRecording && s.lastState != session.StateRecording {
			beep.PlayStart()
		}
		if s.lastState == session.StateRecording && state != session.StateRecording {
			beep.PlayEnd()
		}
	}
	s.lastState = state
	s.prog.Send(ControlsMsg{State: state})
}

func (s *tuiSink) Notify(msg string) {
	s.prog.Send(NoticeMsg{Text: msg})
}

func (s *tuiSink) NotifyError(err error) {
	s.prog.Send(ErrorMsg{Err: err})
}

func (s *tuiSink) AudioLevel(level float64) {
	s.prog.Send(AudioLevelMsg{Level: level})
}

func (s *tuiSink) SilenceWarning(active bool) {
	if active && s.cues {
		beep.PlayWarn()
	}
	s.prog.Send(SilenceMsg{Active: active})
}
