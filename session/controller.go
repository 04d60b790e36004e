// Package session owns the interview lifecycle: it sequences
// record/submit/prompt cycles between the media adapter and the
// transport client, and drives the presentation sink. All transitions
// happen on one goroutine; user actions and transport events are
// messages into that loop.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"mockvox/interview"
	"mockvox/log"
	"mockvox/media"
)

// Options configure a controller.
type Options struct {
	Client    interview.Client
	Adapter   *media.Adapter
	Sink      Sink
	Archive   *media.Archive // optional
	ModelName string
	WantVideo bool
}

type command interface{ sessionCommand() }

type cmdSearch struct{ keyword string }
type cmdSelectJob struct{ index int }
type cmdStart struct{}
type cmdToggleRecording struct{}
type cmdEnd struct{}
type cmdRestart struct{}

func (cmdSearch) sessionCommand()          {}
func (cmdSelectJob) sessionCommand()       {}
func (cmdStart) sessionCommand()           {}
func (cmdToggleRecording) sessionCommand() {}
func (cmdEnd) sessionCommand()             {}
func (cmdRestart) sessionCommand()         {}

// Controller is the session state machine. Construct with New, drive it
// with the public action methods, and run its loop with Run.
type Controller struct {
	client    interview.Client
	adapter   *media.Adapter
	sink      Sink
	archive   *media.Archive
	modelName string
	wantVideo bool

	cmds chan command

	// Observable snapshot for callers outside the loop.
	obs struct {
		sync.Mutex
		state     State
		sessionID string
		questions int
	}

	// Everything below is owned by the Run goroutine.
	state        State
	jobs         []interview.JobPosting
	job          *interview.JobPosting
	sessionID    string
	conv         interview.Conversation
	handle       *media.Handle
	rec          *media.Recording
	silence      *media.SilenceMonitor
	firstPrompt  interview.Prompt
	turns        int
	endRequested bool
	terminated   bool
	reportDone   bool
}

func New(opts Options) *Controller {
	return &Controller{
		client:    opts.Client,
		adapter:   opts.Adapter,
		sink:      opts.Sink,
		archive:   opts.Archive,
		modelName: opts.ModelName,
		wantVideo: opts.WantVideo,
		cmds:      make(chan command, 16),
		state:     StateIdle,
	}
}

// User actions. Each queues a message for the loop and returns
// immediately.

func (c *Controller) Search(keyword string) { c.cmds <- cmdSearch{keyword} }
func (c *Controller) SelectJob(index int)   { c.cmds <- cmdSelectJob{index} }
func (c *Controller) StartInterview()       { c.cmds <- cmdStart{} }
func (c *Controller) ToggleRecording()      { c.cmds <- cmdToggleRecording{} }
func (c *Controller) EndInterview()         { c.cmds <- cmdEnd{} }
func (c *Controller) Restart()              { c.cmds <- cmdRestart{} }

// State is safe to call from any goroutine.
func (c *Controller) State() State {
	c.obs.Lock()
	defer c.obs.Unlock()
	return c.obs.state
}

// SessionID is empty until a session has started.
func (c *Controller) SessionID() string {
	c.obs.Lock()
	defer c.obs.Unlock()
	return c.obs.sessionID
}

// TotalQuestions reports the backend's announced question count, 0 when
// the interview length is dynamic.
func (c *Controller) TotalQuestions() int {
	c.obs.Lock()
	defer c.obs.Unlock()
	return c.obs.questions
}

// Run processes commands, transport events and timer ticks until ctx is
// cancelled. It must be the only goroutine touching session state.
func (c *Controller) Run(ctx context.Context) {
	c.setState(StateIdle)
	ticker := time.NewTicker(media.TickInterval)
	defer ticker.Stop()

	for {
		var events <-chan interview.Event
		if c.conv != nil {
			events = c.conv.Events()
		}
		select {
		case <-ctx.Done():
			c.shutdown()
			return
		case cmd := <-c.cmds:
			c.handleCommand(ctx, cmd)
		case ev := <-events:
			c.handleEvent(ctx, ev)
		case <-ticker.C:
			c.tick()
		}
	}
}

func (c *Controller) setState(s State) {
	c.state = s
	c.obs.Lock()
	c.obs.state = s
	c.obs.Unlock()
	c.sink.SetControls(s)
}

func (c *Controller) setSessionID(id string) {
	c.sessionID = id
	c.obs.Lock()
	c.obs.sessionID = id
	c.obs.Unlock()
}

func (c *Controller) setQuestions(n int) {
	c.obs.Lock()
	c.obs.questions = n
	c.obs.Unlock()
}

func (c *Controller) handleCommand(ctx context.Context, cmd command) {
	switch cmd := cmd.(type) {
	case cmdSearch:
		c.search(ctx, cmd.keyword)
	case cmdSelectJob:
		c.selectJob(cmd.index)
	case cmdStart:
		c.start(ctx)
	case cmdToggleRecording:
		c.toggleRecording(ctx)
	case cmdEnd:
		c.requestEnd(ctx)
	case cmdRestart:
		c.restart()
	}
}

func (c *Controller) search(ctx context.Context, keyword string) {
	if c.state != StateIdle {
		return
	}
	jobs, err := c.client.SearchJobs(ctx, keyword)
	if err != nil {
		c.sink.NotifyError(err)
		return
	}
	c.jobs = jobs
	c.sink.RenderJobList(jobs)
}

func (c *Controller) selectJob(index int) {
	if c.state != StateIdle {
		return
	}
	if index < 0 || index >= len(c.jobs) {
		c.sink.NotifyError(fmt.Errorf("no job at position %d", index+1))
		return
	}
	job := c.jobs[index]
	c.job = &job
	c.sink.Notify(fmt.Sprintf("selected: %s at %s", job.Title, job.Company))
}

func (c *Controller) start(ctx context.Context) {
	if c.state != StateIdle {
		return
	}
	if c.job == nil {
		c.sink.NotifyError(errors.New("select a job posting first"))
		return
	}
	c.setState(StateStarting)

	handle, err := c.adapter.Acquire(ctx, c.wantVideo)
	if err != nil {
		c.sink.NotifyError(err)
		c.setState(StateIdle)
		return
	}

	started, err := c.client.Start(ctx, interview.StartRequest{Job: *c.job, ModelName: c.modelName})
	if err != nil {
		handle.Release()
		c.sink.NotifyError(err)
		c.setState(StateIdle)
		return
	}

	conv, err := c.client.Open(ctx, started.SessionID)
	if err != nil {
		handle.Release()
		c.sink.NotifyError(err)
		c.setState(StateIdle)
		return
	}

	c.handle = handle
	c.conv = conv
	c.setSessionID(started.SessionID)
	c.firstPrompt = started.First
	c.setQuestions(started.First.TotalQuestions)
	c.terminated = false
	c.reportDone = false
	c.endRequested = false
	c.turns = 0
	log.SessionStart(started.SessionID, c.job.Title, c.job.Company, modeName(c.client))
	if !c.handle.HasVideo() && c.wantVideo {
		c.sink.Notify("camera unavailable, running audio-only")
	}
	// Stay in Starting until the transport acknowledges the open.
}

func (c *Controller) toggleRecording(ctx context.Context) {
	switch c.state {
	case StateAwaitingUser:
		rec, err := c.handle.StartRecording()
		if err != nil {
			c.sink.NotifyError(err)
			return
		}
		c.rec = rec
		c.silence = media.NewSilenceMonitor()
		c.setState(StateRecording)

	case StateRecording:
		c.stopAndSubmit(ctx)
	}
}

func (c *Controller) stopAndSubmit(ctx context.Context) {
	clip, snap, err := c.handle.StopRecording()
	c.rec = nil
	c.sink.SilenceWarning(false)
	if err != nil {
		c.sink.NotifyError(err)
		c.setState(StateAwaitingUser)
		return
	}

	if path := c.archive.Save(clip); path != "" {
		log.Info(fmt.Sprintf("archived answer to %s", path))
	}

	ans := interview.Answer{
		AudioMime: clip.Mime,
		Audio:     clip.Data,
		Duration:  clip.Duration,
	}
	if snap != nil {
		ans.ImageJPEG = snap.JPEG
	}
	if err := c.conv.Submit(ctx, ans); err != nil {
		c.sink.NotifyError(err)
		c.setState(StateAwaitingUser)
		return
	}
	c.setState(StateSubmitting)
}

func (c *Controller) requestEnd(ctx context.Context) {
	switch c.state {
	case StateRecording:
		// Force-stop and discard; the end itself is immediate because
		// nothing is in flight.
		c.handle.DiscardRecording()
		c.rec = nil
		c.sink.SilenceWarning(false)
		c.userEnd(ctx)

	case StateStarting:
		// Start handshake still settling; honored once it lands.
		c.endRequested = true
		c.sink.Notify("ending as soon as the interview starts")

	case StateSubmitting:
		// Deferred until the in-flight submission settles.
		c.endRequested = true
		c.sink.Notify("ending after the current answer")

	case StateAwaitingUser:
		c.userEnd(ctx)
	}
}

// userEnd performs a user-initiated close: tell the backend, then tear
// down without fetching a report.
func (c *Controller) userEnd(ctx context.Context) {
	if err := c.conv.End(ctx); err != nil && !errors.Is(err, interview.ErrSessionClosed) {
		c.sink.NotifyError(err)
	}
	c.finishAborted("user_end")
}

func (c *Controller) restart() {
	if !c.state.Terminal() {
		return
	}
	c.jobs = nil
	c.job = nil
	c.setSessionID("")
	c.setQuestions(0)
	c.firstPrompt = interview.Prompt{}
	c.turns = 0
	c.setState(StateIdle)
	c.sink.Notify("ready for a new interview")
}

func (c *Controller) handleEvent(ctx context.Context, ev interview.Event) {
	switch ev := ev.(type) {
	case interview.Opened:
		if c.state != StateStarting {
			return
		}
		c.renderSystem(c.firstPrompt.Text, c.firstPrompt.AudioURL)
		if c.endRequested {
			c.userEnd(ctx)
			return
		}
		c.setState(StateAwaitingUser)

	case interview.UserTranscript:
		c.renderUser(ev.Text)

	case interview.NextPrompt:
		c.renderSystem(ev.Text, ev.AudioURL)
		if c.state == StateSubmitting {
			if c.endRequested {
				c.userEnd(ctx)
				return
			}
			c.setState(StateAwaitingUser)
		}

	case interview.Ended:
		c.terminated = true
		if ev.Text != "" {
			c.renderSystem(ev.Text, ev.AudioURL)
		}
		// Backend termination wins over a pending user end: the report
		// is still fetched.
		c.finishNormal(ctx)

	case interview.SubmitFailed:
		c.sink.NotifyError(ev.Err)
		if c.state == StateSubmitting {
			if c.endRequested {
				c.userEnd(ctx)
				return
			}
			// The turn may be retried.
			c.setState(StateAwaitingUser)
		}

	case interview.Disconnected:
		if c.state.Terminal() || c.state == StateEnding || c.terminated {
			return
		}
		// A live session losing its transport aborts regardless of how
		// the close was dressed up.
		if ev.Err != nil {
			c.sink.NotifyError(ev.Err)
		}
		c.finishAborted("abnormal_disconnect")
	}
}

// finishNormal runs the Ending sequence exactly once per terminated
// session: release capture, fetch the report, close the conversation.
func (c *Controller) finishNormal(ctx context.Context) {
	c.releaseCapture()
	c.setState(StateEnding)

	if !c.reportDone {
		c.reportDone = true
		rep, err := c.client.FetchReport(ctx, c.sessionID)
		if err != nil {
			c.sink.NotifyError(err)
		} else {
			c.sink.RenderReport(rep)
			log.Report(c.sessionID, rep.OverallScore, rep.Hired, len(rep.DimensionScores))
		}
	}

	c.closeConv()
	log.SessionEnd(c.sessionID, "normal", c.turns)
	c.setState(StateEndedNormal)
}

// finishAborted tears down without a report. The chat log stays with the
// sink untouched.
func (c *Controller) finishAborted(outcome string) {
	c.releaseCapture()
	c.closeConv()
	log.SessionEnd(c.sessionID, outcome, c.turns)
	c.setState(StateEndedAborted)
}

func (c *Controller) releaseCapture() {
	if c.handle != nil {
		c.handle.Release()
		c.handle = nil
	}
	c.rec = nil
	c.silence = nil
}

func (c *Controller) closeConv() {
	if c.conv != nil {
		c.conv.Close()
		c.conv = nil
	}
}

func (c *Controller) shutdown() {
	if c.state.Active() || c.state == StateStarting {
		if c.state == StateRecording && c.handle != nil {
			c.handle.DiscardRecording()
		}
		if c.conv != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			c.conv.End(ctx)
			cancel()
		}
		c.finishAborted("shutdown")
		return
	}
	c.releaseCapture()
	c.closeConv()
}

func (c *Controller) tick() {
	if c.state != StateRecording || c.rec == nil {
		return
	}
	c.sink.AudioLevel(c.rec.Level())

	switch c.silence.Tick(c.rec.TickHadSpeech()) {
	case media.SilenceWarn:
		c.sink.SilenceWarning(true)
		c.sink.Notify("no speech detected, is your mic working?")
	case media.SilenceWarnClear:
		c.sink.SilenceWarning(false)
	case media.SilenceRepeat:
		c.sink.Notify("still hearing nothing")
	}
}

func (c *Controller) renderSystem(text, audioURL string) {
	if text == "" && audioURL == "" {
		return
	}
	c.turns++
	log.Turn("system", text)
	c.sink.RenderTurn(interview.Turn{
		ID:       uuid.NewString(),
		Speaker:  interview.SpeakerSystem,
		Text:     text,
		AudioURL: audioURL,
	})
}

func (c *Controller) renderUser(text string) {
	c.turns++
	log.Turn("user", text)
	c.sink.RenderTurn(interview.Turn{
		ID:      uuid.NewString(),
		Speaker: interview.SpeakerUser,
		Text:    text,
	})
}

func modeName(client interview.Client) string {
	if _, ok := client.(*interview.StreamClient); ok {
		return string(interview.ModeStream)
	}
	return string(interview.ModePoll)
}
