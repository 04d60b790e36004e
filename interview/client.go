// Package interview is the transport boundary of the client: it talks to
// the mock-interview backend in one of two interchangeable modes
// (request/response or streaming) and hands back validated, tagged events
// instead of raw response shapes.
package interview

import "context"

// Mode selects the transport strategy for a session.
type Mode string

const (
	// ModePoll submits each answer as one multipart upload that returns
	// the next prompt in the response body.
	ModePoll Mode = "poll"
	// ModeStream keeps one websocket open per session; answers go out as
	// binary frames, prompts arrive asynchronously.
	ModeStream Mode = "stream"
)

// Event is a tagged message from the transport. The concrete types below
// are the only implementations.
type Event interface{ sessionEvent() }

// Opened signals that the conversation is ready for the first answer.
// Streaming mode emits it on connection acknowledgment; poll mode
// immediately after Open.
type Opened struct{}

// UserTranscript echoes the backend's transcription of the user's answer.
type UserTranscript struct{ Text string }

// NextPrompt is a non-terminal interviewer question.
type NextPrompt struct {
	Text     string
	AudioURL string
}

// Ended is the backend's termination signal, optionally carrying a
// closing remark.
type Ended struct {
	Text     string
	AudioURL string
}

// SubmitFailed reports a failed answer upload. The session stays usable;
// the same turn may be retried.
type SubmitFailed struct{ Err error }

// Disconnected signals the conversation is gone. Err is nil after a clean
// close and ErrAbnormalDisconnect when the stream dropped before any
// termination signal.
type Disconnected struct{ Err error }

func (Opened) sessionEvent()         {}
func (UserTranscript) sessionEvent() {}
func (NextPrompt) sessionEvent()     {}
func (Ended) sessionEvent()          {}
func (SubmitFailed) sessionEvent()   {}
func (Disconnected) sessionEvent()   {}

// Client is the session-independent surface of the backend.
type Client interface {
	SearchJobs(ctx context.Context, keyword string) ([]JobPosting, error)
	Start(ctx context.Context, req StartRequest) (Started, error)
	Open(ctx context.Context, sessionID string) (Conversation, error)
	FetchReport(ctx context.Context, sessionID string) (*Report, error)
}

// Conversation is one session's answer channel. Submit and End must carry
// the session id obtained at start; both fail with ErrSessionClosed once
// the session has ended. Backend responses arrive on Events in both
// transport modes.
type Conversation interface {
	// Submit uploads one finalized answer. It returns quickly; the
	// outcome (next prompt, termination, or failure) is delivered as an
	// event. At most one submission may be in flight.
	Submit(ctx context.Context, ans Answer) error
	// End requests an orderly close of the interview.
	End(ctx context.Context) error
	Events() <-chan Event
	// Close releases the underlying connection. Idempotent.
	Close() error
}

// New returns a Client for the configured transport mode.
func New(mode Mode, baseURL string) Client {
	if mode == ModeStream {
		return NewStreamClient(baseURL)
	}
	return NewHTTPClient(baseURL)
}
