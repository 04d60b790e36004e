package interview

import (
	"context"
	"sync"
)

// FakeClient is a scripted backend for controller tests. Each Submit
// consumes the next batch from the script; out-of-band events (stream
// pushes, disconnects) are injected with Emit.
type FakeClient struct {
	mu sync.Mutex

	Jobs       []JobPosting
	SearchErr  error
	StartErr   error
	OpenErr    error
	ReportData *Report
	ReportErr  error
	Session    Started
	HoldOpen   bool

	Searches      []string
	StartRequests []StartRequest
	ReportFetches int

	Conv *FakeConversation
}

func NewFakeClient(jobs []JobPosting, session Started) *FakeClient {
	return &FakeClient{
		Jobs:    jobs,
		Session: session,
		Conv:    NewFakeConversation(),
	}
}

func (f *FakeClient) SearchJobs(_ context.Context, keyword string) ([]JobPosting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Searches = append(f.Searches, keyword)
	if f.SearchErr != nil {
		return nil, f.SearchErr
	}
	return f.Jobs, nil
}

func (f *FakeClient) Start(_ context.Context, req StartRequest) (Started, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.StartRequests = append(f.StartRequests, req)
	if f.StartErr != nil {
		return Started{}, f.StartErr
	}
	return f.Session, nil
}

// Open acknowledges immediately unless HoldOpen is set, in which case
// the test emits Opened itself to control ordering.
func (f *FakeClient) Open(_ context.Context, sessionID string) (Conversation, error) {
	if f.OpenErr != nil {
		return nil, f.OpenErr
	}
	f.Conv.sessionID = sessionID
	if !f.HoldOpen {
		f.Conv.emit(Opened{})
	}
	return f.Conv, nil
}

func (f *FakeClient) FetchReport(_ context.Context, _ string) (*Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ReportFetches++
	if f.ReportErr != nil {
		return nil, f.ReportErr
	}
	return f.ReportData, nil
}

// FakeConversation replays scripted event batches: the nth Submit
// delivers the nth batch. Script batches are queued with OnSubmit.
type FakeConversation struct {
	mu        sync.Mutex
	sessionID string
	script    [][]Event
	ended     bool
	closed    bool

	Submits   []Answer
	EndCalls  int
	SubmitErr error
	EndErr    error

	events chan Event
}

func NewFakeConversation() *FakeConversation {
	return &FakeConversation{events: make(chan Event, 16)}
}

// OnSubmit queues the events the fake delivers in response to the next
// unconsumed Submit call.
func (c *FakeConversation) OnSubmit(events ...Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.script = append(c.script, events)
}

// Emit injects an out-of-band event, such as a stream push or a
// disconnect.
func (c *FakeConversation) Emit(ev Event) { c.emit(ev) }

func (c *FakeConversation) Events() <-chan Event { return c.events }

func (c *FakeConversation) Submit(_ context.Context, ans Answer) error {
	c.mu.Lock()
	if c.ended {
		c.mu.Unlock()
		return ErrSessionClosed
	}
	if c.SubmitErr != nil {
		err := c.SubmitErr
		c.mu.Unlock()
		return err
	}
	c.Submits = append(c.Submits, ans)
	var batch []Event
	if len(c.script) > 0 {
		batch = c.script[0]
		c.script = c.script[1:]
	}
	for _, ev := range batch {
		if _, ok := ev.(Ended); ok {
			c.ended = true
		}
	}
	c.mu.Unlock()

	for _, ev := range batch {
		c.emit(ev)
	}
	return nil
}

func (c *FakeConversation) End(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.EndCalls++
	if c.ended {
		return ErrSessionClosed
	}
	if c.EndErr != nil {
		return c.EndErr
	}
	c.ended = true
	return nil
}

func (c *FakeConversation) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (c *FakeConversation) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *FakeConversation) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
	}
}
