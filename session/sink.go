package session

import "mockvox/interview"

// State is the controller's lifecycle position. Every transition is
// pushed to the sink so controls can never issue an invalid request.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateAwaitingUser
	StateRecording
	StateSubmitting
	StateEnding
	StateEndedNormal
	StateEndedAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateAwaitingUser:
		return "awaiting_user"
	case StateRecording:
		return "recording"
	case StateSubmitting:
		return "submitting"
	case StateEnding:
		return "ending"
	case StateEndedNormal:
		return "ended"
	case StateEndedAborted:
		return "aborted"
	}
	return "unknown"
}

// Active reports whether the session is live (between start and any
// terminal state).
func (s State) Active() bool {
	switch s {
	case StateAwaitingUser, StateRecording, StateSubmitting:
		return true
	}
	return false
}

// Terminal reports whether the session is over.
func (s State) Terminal() bool {
	return s == StateEndedNormal || s == StateEndedAborted
}

// Sink is the presentation collaborator. The controller tells it what to
// show; it never feeds state back.
type Sink interface {
	RenderJobList(jobs []interview.JobPosting)
	RenderTurn(turn interview.Turn)
	RenderReport(rep *interview.Report)
	// SetControls is called on every state transition.
	SetControls(s State)
	Notify(msg string)
	NotifyError(err error)
	// AudioLevel feeds the recording meter, normalized to [0,1].
	AudioLevel(level float64)
	SilenceWarning(active bool)
}
