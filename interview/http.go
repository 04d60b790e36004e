package interview

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"mockvox/log"
)

// HTTPClient is the request/response transport: one multipart upload per
// answer, each returning the next prompt or a termination notice.
type HTTPClient struct {
	base string
	tc   *TracedClient
}

func NewHTTPClient(base string) *HTTPClient {
	c := &HTTPClient{
		base: strings.TrimRight(base, "/"),
		tc:   NewTracedClient(),
	}
	go c.tc.Warm(c.base + "/jobs")
	return c
}

func (c *HTTPClient) SearchJobs(ctx context.Context, keyword string) ([]JobPosting, error) {
	u := c.base + "/jobs?keyword=" + url.QueryEscape(keyword)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.tc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: job search returned %d", ErrTransport, resp.StatusCode)
	}
	var jr jobsResponse
	if err := json.Unmarshal(resp.Body, &jr); err != nil {
		return nil, fmt.Errorf("%w: decoding job list: %v", ErrTransport, err)
	}
	return jr.Jobs, nil
}

func (c *HTTPClient) Start(ctx context.Context, req StartRequest) (Started, error) {
	wire := startRequestWire{
		Job:            req.Job,
		JobDescription: req.Job.Description,
		ModelName:      req.ModelName,
	}
	payload, err := json.Marshal(wire)
	if err != nil {
		return Started{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/start_interview", bytes.NewReader(payload))
	if err != nil {
		return Started{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.tc.Do(httpReq)
	if err != nil {
		return Started{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if resp.StatusCode != http.StatusOK {
		return Started{}, fmt.Errorf("%w: start returned %d: %s", ErrTransport, resp.StatusCode, truncate(resp.Body))
	}

	var sr startResponseWire
	if err := json.Unmarshal(resp.Body, &sr); err != nil {
		return Started{}, fmt.Errorf("%w: decoding start response: %v", ErrTransport, err)
	}
	if sr.SessionID == "" {
		return Started{}, fmt.Errorf("%w: start response missing session_id", ErrTransport)
	}

	return Started{
		SessionID: sr.SessionID,
		First: Prompt{
			Text:           sr.FirstQuestion.Text,
			AudioURL:       sr.FirstQuestion.AudioURL,
			TotalQuestions: sr.FirstQuestion.TotalQuestions,
		},
	}, nil
}

func (c *HTTPClient) Open(_ context.Context, sessionID string) (Conversation, error) {
	conv := &httpConversation{
		client:    c,
		sessionID: sessionID,
		events:    make(chan Event, 8),
		done:      make(chan struct{}),
	}
	conv.emit(Opened{})
	return conv, nil
}

func (c *HTTPClient) FetchReport(ctx context.Context, sessionID string) (*Report, error) {
	u := c.base + "/get_interview_report?session_id=" + url.QueryEscape(sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.tc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReportUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: report returned %d", ErrReportUnavailable, resp.StatusCode)
	}
	var rr reportResponseWire
	if err := json.Unmarshal(resp.Body, &rr); err != nil {
		return nil, fmt.Errorf("%w: decoding report: %v", ErrReportUnavailable, err)
	}
	if rr.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrReportUnavailable, rr.Error)
	}
	return rr.toReport(), nil
}

// endInterview is shared with the streaming client, which also ends
// sessions over plain HTTP when its socket is already gone.
func (c *HTTPClient) endInterview(ctx context.Context, sessionID string) error {
	payload, err := json.Marshal(map[string]string{"session_id": sessionID})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/end_interview", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.tc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: end returned %d", ErrTransport, resp.StatusCode)
	}
	return nil
}

func (c *HTTPClient) submitAnswer(ctx context.Context, sessionID string, ans Answer) (*submitResponseWire, *NetworkMetrics, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	writer.WriteField("session_id", sessionID)
	part, err := writer.CreateFormFile("audio_file", "user_answer."+extForMime(ans.AudioMime))
	if err != nil {
		return nil, nil, err
	}
	if _, err := part.Write(ans.Audio); err != nil {
		return nil, nil, err
	}
	if len(ans.ImageJPEG) > 0 {
		// base64 without a data-URI prefix, as the backend expects
		writer.WriteField("image_data", base64.StdEncoding.EncodeToString(ans.ImageJPEG))
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/submit_answer_and_get_next_question", &body)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.tc.Do(req)
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("submit returned %d: %s", resp.StatusCode, truncate(resp.Body))
	}

	var sr submitResponseWire
	if err := json.Unmarshal(resp.Body, &sr); err != nil {
		return nil, nil, fmt.Errorf("decoding submit response: %w", err)
	}
	return &sr, resp.Metrics, nil
}

type httpConversation struct {
	client    *HTTPClient
	sessionID string
	events    chan Event
	done      chan struct{}
	closeOnce sync.Once

	mu       sync.Mutex
	ended    bool
	inFlight bool
	turn     int
}

func (c *httpConversation) Events() <-chan Event { return c.events }

func (c *httpConversation) Submit(ctx context.Context, ans Answer) error {
	c.mu.Lock()
	if c.ended {
		c.mu.Unlock()
		return ErrSessionClosed
	}
	if c.inFlight {
		c.mu.Unlock()
		return ErrBusy
	}
	c.inFlight = true
	c.turn++
	turn := c.turn
	c.mu.Unlock()

	go c.submit(ctx, ans, turn)
	return nil
}

func (c *httpConversation) submit(ctx context.Context, ans Answer, turn int) {
	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
	}()

	resp, metrics, err := c.client.submitAnswer(ctx, c.sessionID, ans)
	if err != nil {
		c.emit(SubmitFailed{Err: fmt.Errorf("%w: %v", ErrTransport, err)})
		return
	}

	if metrics != nil {
		log.Submit(c.sessionID, turn, log.SubmitMetrics{
			AudioLengthS: ans.Duration.Seconds(),
			ClipKB:       float64(len(ans.Audio)) / 1024,
			ConnWaitMs:   float64(metrics.ConnWait.Milliseconds()),
			DNSMs:        float64(metrics.DNS.Milliseconds()),
			TCPMs:        float64(metrics.TCP.Milliseconds()),
			TLSMs:        float64(metrics.TLS.Milliseconds()),
			TTFBMs:       float64(metrics.TTFB.Milliseconds()),
			TotalMs:      float64(metrics.Total.Milliseconds()),
			ConnReused:   metrics.ConnReused,
		})
	}

	if resp.UserText != "" {
		c.emit(UserTranscript{Text: resp.UserText})
	}
	if resp.InterviewEnded {
		c.mu.Lock()
		c.ended = true
		c.mu.Unlock()
		c.emit(Ended{Text: resp.Text, AudioURL: resp.AudioURL})
		return
	}
	c.emit(NextPrompt{Text: resp.Text, AudioURL: resp.AudioURL})
}

func (c *httpConversation) End(ctx context.Context) error {
	c.mu.Lock()
	if c.ended {
		c.mu.Unlock()
		return ErrSessionClosed
	}
	c.ended = true
	c.mu.Unlock()
	return c.client.endInterview(ctx, c.sessionID)
}

func (c *httpConversation) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

func (c *httpConversation) emit(ev Event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

func extForMime(mime string) string {
	switch {
	case strings.HasPrefix(mime, "audio/webm"):
		return "webm"
	case mime == "audio/mp4":
		return "mp4"
	case mime == "audio/ogg":
		return "ogg"
	case mime == "audio/wav":
		return "wav"
	default:
		return "bin"
	}
}

func truncate(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
