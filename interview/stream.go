package interview

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"mockvox/log"
)

// StreamClient keeps one websocket open per session. Job search, session
// start and report retrieval stay on plain HTTP; only the answer loop
// moves to the socket.
type StreamClient struct {
	*HTTPClient
}

func NewStreamClient(base string) *StreamClient {
	return &StreamClient{HTTPClient: NewHTTPClient(base)}
}

func (c *StreamClient) Open(ctx context.Context, sessionID string) (Conversation, error) {
	wsURL, err := websocketURL(c.base, sessionID)
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	dialStart := time.Now()
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dialing %s: %v", ErrTransport, wsURL, err)
	}

	conv := &streamConversation{
		client:    c.HTTPClient,
		conn:      conn,
		sessionID: sessionID,
		events:    make(chan Event, 8),
		done:      make(chan struct{}),
		connectMs: float64(time.Since(dialStart).Milliseconds()),
		opened:    time.Now(),
	}
	go conv.readPump()

	// The completed handshake is the open acknowledgment; the first
	// answer may be recorded as soon as this lands.
	conv.emit(Opened{})
	return conv, nil
}

func websocketURL(base, sessionID string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("%w: parsing base URL: %v", ErrTransport, err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	u.RawQuery = "session_id=" + url.QueryEscape(sessionID)
	return u.String(), nil
}

type streamConversation struct {
	client    *HTTPClient
	conn      *websocket.Conn
	sessionID string
	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
	connectMs float64
	opened    time.Time

	writeMu sync.Mutex

	mu        sync.Mutex
	ended     bool
	inFlight  bool
	sentClips int
	sentBytes int
	recvCount int
}

func (c *streamConversation) Events() <-chan Event { return c.events }

func (c *streamConversation) Submit(_ context.Context, ans Answer) error {
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
	c.sentClips++
	c.sentBytes += len(ans.Audio)
	c.mu.Unlock()

	c.writeMu.Lock()
	err := c.conn.WriteMessage(websocket.BinaryMessage, ans.Audio)
	c.writeMu.Unlock()
	if err != nil {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
		return fmt.Errorf("%w: sending clip: %v", ErrTransport, err)
	}
	return nil
}

func (c *streamConversation) End(ctx context.Context) error {
	c.mu.Lock()
	if c.ended {
		c.mu.Unlock()
		return ErrSessionClosed
	}
	c.ended = true
	c.mu.Unlock()

	msg := streamEndWire{Type: "end_interview", SessionID: c.sessionID}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	werr := c.conn.WriteMessage(websocket.TextMessage, payload)
	c.writeMu.Unlock()
	if werr != nil {
		// Socket already gone; fall back to the HTTP end call so the
		// backend still tears the session down.
		return c.client.endInterview(ctx, c.sessionID)
	}
	return nil
}

func (c *streamConversation) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		c.conn.Close()

		c.mu.Lock()
		log.Stream(c.sessionID, log.StreamMetrics{
			ConnectMs:    c.connectMs,
			SentClips:    c.sentClips,
			SentKB:       float64(c.sentBytes) / 1024,
			RecvMessages: c.recvCount,
			SessionS:     time.Since(c.opened).Seconds(),
		})
		c.mu.Unlock()
	})
	return nil
}

func (c *streamConversation) readPump() {
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			ended := c.ended
			c.mu.Unlock()
			// Only a close that follows End or an interview_ended frame
			// is clean. A close frame alone, even code 1000, means the
			// server dropped the session without terminating it.
			if ended {
				c.emit(Disconnected{})
			} else {
				c.emit(Disconnected{Err: fmt.Errorf("%w: %v", ErrAbnormalDisconnect, err)})
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var frame streamFrameWire
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Warnf("stream: discarding malformed frame: %v", err)
			continue
		}

		c.mu.Lock()
		c.recvCount++
		c.inFlight = false
		c.mu.Unlock()

		if frame.Speaker == "user" {
			c.emit(UserTranscript{Text: frame.Text})
			continue
		}
		if frame.InterviewEnded {
			c.mu.Lock()
			c.ended = true
			c.mu.Unlock()
			c.emit(Ended{Text: frame.Text, AudioURL: frame.AudioURL})
			continue
		}
		if frame.Text != "" || frame.AudioURL != "" {
			c.emit(NextPrompt{Text: frame.Text, AudioURL: frame.AudioURL})
		}
	}
}

func (c *streamConversation) emit(ev Event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}
