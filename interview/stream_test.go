package interview

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// newStreamServer runs handler against each websocket connection to /ws.
func newStreamServer(t *testing.T, handler func(*websocket.Conn, string)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws" {
			// Warm probe and other HTTP calls land here.
			w.WriteHeader(http.StatusOK)
			return
		}
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		handler(conn, r.URL.Query().Get("session_id"))
	}))
}

func TestWebsocketURL(t *testing.T) {
	for _, tt := range []struct{ base, session, want string }{
		{"http://host:8000", "s-1", "ws://host:8000/ws?session_id=s-1"},
		{"https://host", "s 2", "wss://host/ws?session_id=s+2"},
		{"http://host/api/", "s-1", "ws://host/api/ws?session_id=s-1"},
	} {
		got, err := websocketURL(tt.base, tt.session)
		if err != nil {
			t.Fatalf("websocketURL(%q): %v", tt.base, err)
		}
		if got != tt.want {
			t.Errorf("websocketURL(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
}

func TestStreamSubmitAndPrompts(t *testing.T) {
	srv := newStreamServer(t, func(conn *websocket.Conn, sessionID string) {
		if sessionID != "s-1" {
			t.Errorf("session_id = %q, want %q", sessionID, "s-1")
		}
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			t.Errorf("reading clip: %v", err)
			return
		}
		if msgType != websocket.BinaryMessage || string(data) != "clip-bytes" {
			t.Errorf("got type %d payload %q", msgType, data)
		}
		conn.WriteJSON(map[string]any{"speaker": "user", "text": "my answer"})
		conn.WriteJSON(map[string]any{"speaker": "system", "text": "Next question?", "audio_url": "/audio/q2.mp3"})
		// Hold the socket open until the client closes.
		conn.ReadMessage()
	})
	defer srv.Close()

	conv, err := NewStreamClient(srv.URL).Open(context.Background(), "s-1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer conv.Close()

	if _, ok := waitEvent(t, conv.Events()).(Opened); !ok {
		t.Fatal("first event is not Opened")
	}
	if err := conv.Submit(context.Background(), Answer{Audio: []byte("clip-bytes")}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	ut, ok := waitEvent(t, conv.Events()).(UserTranscript)
	if !ok || ut.Text != "my answer" {
		t.Fatalf("expected UserTranscript, got %#v", ut)
	}
	np, ok := waitEvent(t, conv.Events()).(NextPrompt)
	if !ok || np.Text != "Next question?" {
		t.Fatalf("expected NextPrompt, got %#v", np)
	}
}

func TestStreamTermination(t *testing.T) {
	srv := newStreamServer(t, func(conn *websocket.Conn, _ string) {
		conn.ReadMessage()
		conn.WriteJSON(map[string]any{"speaker": "system", "text": "Goodbye.", "interview_ended": true})
		conn.ReadMessage()
	})
	defer srv.Close()

	conv, err := NewStreamClient(srv.URL).Open(context.Background(), "s-1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer conv.Close()
	waitEvent(t, conv.Events())

	if err := conv.Submit(context.Background(), Answer{Audio: []byte("clip")}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	end, ok := waitEvent(t, conv.Events()).(Ended)
	if !ok || end.Text != "Goodbye." {
		t.Fatalf("expected Ended, got %#v", end)
	}

	if err := conv.Submit(context.Background(), Answer{}); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Submit after termination = %v, want ErrSessionClosed", err)
	}
}

func TestStreamAbnormalDisconnect(t *testing.T) {
	srv := newStreamServer(t, func(conn *websocket.Conn, _ string) {
		// Drop the connection without a close handshake or any
		// termination message.
		conn.UnderlyingConn().Close()
	})
	defer srv.Close()

	conv, err := NewStreamClient(srv.URL).Open(context.Background(), "s-1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer conv.Close()
	waitEvent(t, conv.Events())

	for {
		ev := waitEvent(t, conv.Events())
		dc, ok := ev.(Disconnected)
		if !ok {
			continue
		}
		if !errors.Is(dc.Err, ErrAbnormalDisconnect) {
			t.Fatalf("Disconnected.Err = %v, want ErrAbnormalDisconnect", dc.Err)
		}
		return
	}
}

func TestStreamPrematureServerClose(t *testing.T) {
	srv := newStreamServer(t, func(conn *websocket.Conn, _ string) {
		// Full close handshake, code 1000, but no interview_ended
		// frame first. The session is gone either way.
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.ReadMessage()
	})
	defer srv.Close()

	conv, err := NewStreamClient(srv.URL).Open(context.Background(), "s-1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer conv.Close()
	waitEvent(t, conv.Events())

	for {
		ev := waitEvent(t, conv.Events())
		dc, ok := ev.(Disconnected)
		if !ok {
			continue
		}
		if !errors.Is(dc.Err, ErrAbnormalDisconnect) {
			t.Fatalf("Disconnected.Err = %v, want ErrAbnormalDisconnect", dc.Err)
		}
		return
	}
}

func TestStreamUserEnd(t *testing.T) {
	gotEnd := make(chan streamEndWire, 1)
	srv := newStreamServer(t, func(conn *websocket.Conn, _ string) {
		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if msgType != websocket.TextMessage {
				continue
			}
			var msg streamEndWire
			if json.Unmarshal(data, &msg) == nil && msg.Type == "end_interview" {
				gotEnd <- msg
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(time.Second))
				return
			}
		}
	})
	defer srv.Close()

	conv, err := NewStreamClient(srv.URL).Open(context.Background(), "s-7")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer conv.Close()
	waitEvent(t, conv.Events())

	if err := conv.End(context.Background()); err != nil {
		t.Fatalf("End: %v", err)
	}
	select {
	case msg := <-gotEnd:
		if msg.SessionID != "s-7" {
			t.Errorf("end session_id = %q, want %q", msg.SessionID, "s-7")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never saw the end message")
	}

	dc, ok := waitEvent(t, conv.Events()).(Disconnected)
	if !ok {
		t.Fatal("expected Disconnected after user end")
	}
	if dc.Err != nil {
		t.Errorf("clean close carried error %v", dc.Err)
	}

	if err := conv.End(context.Background()); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("second End = %v, want ErrSessionClosed", err)
	}
}
