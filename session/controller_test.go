package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"mockvox/audio"
	"mockvox/interview"
	"mockvox/media"
)

type fakeSink struct {
	mu       sync.Mutex
	jobLists [][]interview.JobPosting
	turns    []interview.Turn
	reports  []*interview.Report
	states   []State
	notices  []string
	errors   []error
}

func (s *fakeSink) RenderJobList(jobs []interview.JobPosting) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobLists = append(s.jobLists, jobs)
}

func (s *fakeSink) RenderTurn(turn interview.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, turn)
}

func (s *fakeSink) RenderReport(rep *interview.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, rep)
}

func (s *fakeSink) SetControls(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, state)
}

func (s *fakeSink) Notify(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, msg)
}

func (s *fakeSink) NotifyError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, err)
}

func (s *fakeSink) AudioLevel(float64)  {}
func (s *fakeSink) SilenceWarning(bool) {}

func (s *fakeSink) turnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

func (s *fakeSink) reportCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reports)
}

func loudPCM(samples int) []byte {
	pcm := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		v := int16(8000)
		if (i/8)%2 == 0 {
			v = -8000
		}
		pcm[2*i] = byte(uint16(v))
		pcm[2*i+1] = byte(uint16(v) >> 8)
	}
	return pcm
}

var testJobs = []interview.JobPosting{
	{Title: "Backend Engineer", Company: "Acme", Description: "Go services"},
	{Title: "SRE", Company: "Beta", Description: "Infra"},
}

func testSession() interview.Started {
	return interview.Started{
		SessionID: "s-1",
		First:     interview.Prompt{Text: "Tell me about yourself.", TotalQuestions: 3},
	}
}

type fixture struct {
	client *interview.FakeClient
	sink   *fakeSink
	ctrl   *Controller
	cancel context.CancelFunc
}

func newFixture(t *testing.T, video media.VideoSource, wantVideo bool) *fixture {
	t.Helper()
	client := interview.NewFakeClient(testJobs, testSession())
	sink := &fakeSink{}
	adapter := media.NewAdapter(audio.NewFakeContext(loudPCM(4096), false), video, nil)
	ctrl := New(Options{Client: client, Adapter: adapter, Sink: sink, WantVideo: wantVideo})

	ctx, cancel := context.WithCancel(context.Background())
	go ctrl.Run(ctx)
	t.Cleanup(cancel)
	return &fixture{client: client, sink: sink, ctrl: ctrl, cancel: cancel}
}

func waitState(t *testing.T, c *Controller, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.State() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("state = %v, want %v", c.State(), want)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func startInterview(t *testing.T, f *fixture) {
	t.Helper()
	f.ctrl.Search("engineer")
	waitFor(t, "job list", func() bool {
		f.sink.mu.Lock()
		defer f.sink.mu.Unlock()
		return len(f.sink.jobLists) > 0
	})
	f.ctrl.SelectJob(1)
	f.ctrl.StartInterview()
	waitState(t, f.ctrl, StateAwaitingUser)
}

// answer records one turn and submits it.
func answer(t *testing.T, f *fixture) {
	t.Helper()
	f.ctrl.ToggleRecording()
	waitState(t, f.ctrl, StateRecording)
	f.ctrl.ToggleRecording()
}

func TestSearchAndSelect(t *testing.T) {
	f := newFixture(t, nil, false)
	startInterview(t, f)

	if got := f.client.StartRequests[0].Job; got != testJobs[1] {
		t.Errorf("started with job %+v, want %+v", got, testJobs[1])
	}
	if f.ctrl.SessionID() != "s-1" {
		t.Errorf("SessionID = %q, want %q", f.ctrl.SessionID(), "s-1")
	}
	// The opening prompt is on screen.
	if f.sink.turnCount() != 1 {
		t.Errorf("turns = %d, want 1", f.sink.turnCount())
	}
}

func TestStartWithoutJobStaysIdle(t *testing.T) {
	f := newFixture(t, nil, false)
	f.ctrl.StartInterview()
	waitFor(t, "error notice", func() bool {
		f.sink.mu.Lock()
		defer f.sink.mu.Unlock()
		return len(f.sink.errors) > 0
	})
	if f.ctrl.State() != StateIdle {
		t.Errorf("state = %v, want Idle", f.ctrl.State())
	}
}

func TestCameraFailureYieldsAudioOnlySession(t *testing.T) {
	f := newFixture(t, &media.FakeVideo{AcquireErr: media.ErrNoCamera}, true)
	startInterview(t, f)

	if f.ctrl.SessionID() == "" {
		t.Error("no session id despite audio-only fallback")
	}
	found := false
	f.sink.mu.Lock()
	for _, n := range f.sink.notices {
		if n == "camera unavailable, running audio-only" {
			found = true
		}
	}
	f.sink.mu.Unlock()
	if !found {
		t.Error("user was not told about the audio-only fallback")
	}
}

func TestStartFailureReturnsToIdle(t *testing.T) {
	f := newFixture(t, nil, false)
	f.client.StartErr = errors.New("backend down")

	f.ctrl.Search("engineer")
	waitFor(t, "job list", func() bool {
		f.sink.mu.Lock()
		defer f.sink.mu.Unlock()
		return len(f.sink.jobLists) > 0
	})
	f.ctrl.SelectJob(0)
	f.ctrl.StartInterview()

	waitFor(t, "start failure", func() bool {
		f.sink.mu.Lock()
		defer f.sink.mu.Unlock()
		return len(f.sink.errors) > 0
	})
	waitState(t, f.ctrl, StateIdle)
}

func TestThirdSubmissionEndsWithOneReport(t *testing.T) {
	f := newFixture(t, nil, false)
	f.client.ReportData = &interview.Report{OverallScore: 4.0, Hired: true}
	f.client.Conv.OnSubmit(interview.UserTranscript{Text: "a1"}, interview.NextPrompt{Text: "q2"})
	f.client.Conv.OnSubmit(interview.UserTranscript{Text: "a2"}, interview.NextPrompt{Text: "q3"})
	f.client.Conv.OnSubmit(interview.UserTranscript{Text: "a3"}, interview.Ended{Text: "done"})

	startInterview(t, f)
	for i := 0; i < 2; i++ {
		answer(t, f)
		waitState(t, f.ctrl, StateAwaitingUser)
	}
	answer(t, f)
	waitState(t, f.ctrl, StateEndedNormal)

	if f.client.ReportFetches != 1 {
		t.Errorf("report fetched %d times, want 1", f.client.ReportFetches)
	}
	if f.sink.reportCount() != 1 {
		t.Errorf("rendered %d reports, want 1", f.sink.reportCount())
	}
	// q1 + 3 answers echoed + q2 + q3 + closing remark
	if f.sink.turnCount() != 7 {
		t.Errorf("turns = %d, want 7", f.sink.turnCount())
	}
	// Answers all carried the original session id.
	for i, ans := range f.client.Conv.Submits {
		if ans.AudioMime != "audio/wav" {
			t.Errorf("submit %d mime = %q", i, ans.AudioMime)
		}
	}
}

func TestRecordingIsStrictToggle(t *testing.T) {
	f := newFixture(t, nil, false)
	f.client.Conv.OnSubmit(interview.NextPrompt{Text: "q2"})
	startInterview(t, f)

	f.ctrl.ToggleRecording()
	waitState(t, f.ctrl, StateRecording)
	// Second press stops and submits, never a second recording.
	f.ctrl.ToggleRecording()
	waitState(t, f.ctrl, StateAwaitingUser)

	if len(f.client.Conv.Submits) != 1 {
		t.Fatalf("submits = %d, want 1", len(f.client.Conv.Submits))
	}
}

func TestSubmitFailureAllowsRetry(t *testing.T) {
	f := newFixture(t, nil, false)
	f.client.Conv.OnSubmit(interview.SubmitFailed{Err: interview.ErrTransport})
	f.client.Conv.OnSubmit(interview.NextPrompt{Text: "q2"})
	startInterview(t, f)

	answer(t, f)
	waitState(t, f.ctrl, StateAwaitingUser)
	f.sink.mu.Lock()
	gotErr := len(f.sink.errors) > 0
	f.sink.mu.Unlock()
	if !gotErr {
		t.Error("submit failure was not surfaced")
	}

	// Same turn again.
	answer(t, f)
	waitState(t, f.ctrl, StateAwaitingUser)
	if len(f.client.Conv.Submits) != 2 {
		t.Errorf("submits = %d, want 2", len(f.client.Conv.Submits))
	}
}

func TestUserEndSkipsReport(t *testing.T) {
	f := newFixture(t, nil, false)
	startInterview(t, f)

	f.ctrl.EndInterview()
	waitState(t, f.ctrl, StateEndedAborted)

	if f.client.Conv.EndCalls != 1 {
		t.Errorf("EndCalls = %d, want 1", f.client.Conv.EndCalls)
	}
	if f.client.ReportFetches != 0 {
		t.Errorf("report fetched %d times, want 0", f.client.ReportFetches)
	}
	if !f.client.Conv.Closed() {
		t.Error("conversation left open")
	}
}

func TestEndDuringRecordingDiscardsClip(t *testing.T) {
	f := newFixture(t, nil, false)
	startInterview(t, f)

	f.ctrl.ToggleRecording()
	waitState(t, f.ctrl, StateRecording)
	f.ctrl.EndInterview()
	waitState(t, f.ctrl, StateEndedAborted)

	if len(f.client.Conv.Submits) != 0 {
		t.Errorf("discarded recording was submitted %d times", len(f.client.Conv.Submits))
	}
}

func TestEndDuringSubmitIsDeferred(t *testing.T) {
	f := newFixture(t, nil, false)
	// No scripted batch: the first submission stays unanswered.
	startInterview(t, f)
	answer(t, f)
	waitState(t, f.ctrl, StateSubmitting)

	f.ctrl.EndInterview()
	// Still submitting; the end is parked.
	time.Sleep(20 * time.Millisecond)
	if got := f.ctrl.State(); got != StateSubmitting {
		t.Fatalf("state = %v, want Submitting", got)
	}
	if f.client.Conv.EndCalls != 0 {
		t.Fatal("End sent while a submission was in flight")
	}

	// The submission settles; now the deferred end runs.
	f.client.Conv.Emit(interview.NextPrompt{Text: "q2"})
	waitState(t, f.ctrl, StateEndedAborted)
	if f.client.Conv.EndCalls != 1 {
		t.Errorf("EndCalls = %d, want 1", f.client.Conv.EndCalls)
	}
	if f.client.ReportFetches != 0 {
		t.Errorf("report fetched %d times, want 0", f.client.ReportFetches)
	}
}

func TestBackendTerminationWinsEndRace(t *testing.T) {
	f := newFixture(t, nil, false)
	f.client.ReportData = &interview.Report{OverallScore: 3.5}
	startInterview(t, f)
	answer(t, f)
	waitState(t, f.ctrl, StateSubmitting)

	f.ctrl.EndInterview() // parked behind the in-flight submission
	f.client.Conv.Emit(interview.Ended{Text: "done"})
	waitState(t, f.ctrl, StateEndedNormal)

	if f.client.ReportFetches != 1 {
		t.Errorf("report fetched %d times, want 1", f.client.ReportFetches)
	}
	if f.client.Conv.EndCalls != 0 {
		t.Errorf("user end sent despite backend termination, EndCalls = %d", f.client.Conv.EndCalls)
	}
}

func TestAbnormalDisconnectAbortsWithoutReport(t *testing.T) {
	f := newFixture(t, nil, false)
	f.client.Conv.OnSubmit(interview.UserTranscript{Text: "a1"}, interview.NextPrompt{Text: "q2"})
	startInterview(t, f)
	answer(t, f)
	waitState(t, f.ctrl, StateAwaitingUser)
	turnsBefore := f.sink.turnCount()

	f.client.Conv.Emit(interview.Disconnected{Err: interview.ErrAbnormalDisconnect})
	waitState(t, f.ctrl, StateEndedAborted)

	if f.client.ReportFetches != 0 {
		t.Errorf("report fetched %d times, want 0", f.client.ReportFetches)
	}
	// Chat log preserved, not cleared.
	if f.sink.turnCount() != turnsBefore {
		t.Errorf("turns = %d, want %d", f.sink.turnCount(), turnsBefore)
	}
}

func TestServerCloseWithoutTerminationAborts(t *testing.T) {
	f := newFixture(t, nil, false)
	startInterview(t, f)

	// A disconnect that carries no error still means the session is
	// gone; the controller must not idle on a dead transport.
	f.client.Conv.Emit(interview.Disconnected{})
	waitState(t, f.ctrl, StateEndedAborted)

	if f.client.ReportFetches != 0 {
		t.Errorf("report fetched %d times, want 0", f.client.ReportFetches)
	}
}

func TestEndDuringStartIsDeferred(t *testing.T) {
	f := newFixture(t, nil, false)
	f.client.HoldOpen = true

	f.ctrl.Search("engineer")
	waitFor(t, "job list", func() bool {
		f.sink.mu.Lock()
		defer f.sink.mu.Unlock()
		return len(f.sink.jobLists) > 0
	})
	f.ctrl.SelectJob(1)
	f.ctrl.StartInterview()
	waitState(t, f.ctrl, StateStarting)

	f.ctrl.EndInterview()
	waitFor(t, "deferred end notice", func() bool {
		f.sink.mu.Lock()
		defer f.sink.mu.Unlock()
		for _, n := range f.sink.notices {
			if n == "ending as soon as the interview starts" {
				return true
			}
		}
		return false
	})

	f.client.Conv.Emit(interview.Opened{})
	waitState(t, f.ctrl, StateEndedAborted)

	if f.client.Conv.EndCalls != 1 {
		t.Errorf("EndCalls = %d, want 1", f.client.Conv.EndCalls)
	}
	if f.client.ReportFetches != 0 {
		t.Errorf("report fetched %d times, want 0", f.client.ReportFetches)
	}
}

func TestRestartClearsSession(t *testing.T) {
	f := newFixture(t, nil, false)
	startInterview(t, f)
	f.ctrl.EndInterview()
	waitState(t, f.ctrl, StateEndedAborted)

	f.ctrl.Restart()
	waitState(t, f.ctrl, StateIdle)
	if f.ctrl.SessionID() != "" {
		t.Errorf("SessionID = %q after restart, want empty", f.ctrl.SessionID())
	}
}
