package webapi

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gorilla/websocket/websockettest"

	"github.com/clefbot/clef/internal/bus"
	"github.com/clefbot/clef/internal/logging"
)

type chatEvent struct {
	Text string `json:"text"`
}

func newTestServer(t *testing.T, hub *Hub[chatEvent]) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func TestHubBroadcastsPublishedValues(t *testing.T) {
	source := bus.New[chatEvent]()
	hub := NewHub[chatEvent](source, nil, logging.NewTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := newTestServer(t, hub)

	conn, _, err := websockettest.DialIgnoringPongs(wsURL(srv.URL), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount() == 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if hub.ClientCount() != 1 {
		t.Fatalf("expected one registered client, got %d", hub.ClientCount())
	}

	source.Send(chatEvent{Text: "hello"})

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got chatEvent
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Text != "hello" {
		t.Fatalf("expected hello, got %q", got.Text)
	}
}

func TestHubRejectsUnauthenticatedConnections(t *testing.T) {
	source := bus.New[chatEvent]()
	authn, err := NewHMACAuthenticator("test-secret")
	if err != nil {
		t.Fatalf("build authenticator: %v", err)
	}
	hub := NewHub[chatEvent](source, authn, logging.NewTestLogger())
	srv := newTestServer(t, hub)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv.URL), nil)
	if err == nil {
		t.Fatal("expected the handshake to fail without a token")
	}
	if resp == nil || resp.StatusCode != 401 {
		t.Fatalf("expected 401, got %+v", resp)
	}
}

func TestHubDeliversInboundMessagesToCallback(t *testing.T) {
	source := bus.New[chatEvent]()
	hub := NewHub[chatEvent](source, nil, logging.NewTestLogger())

	received := make(chan string, 1)
	hub.OnMessage(func(clientID string, raw []byte) {
		received <- string(raw)
	})

	srv := newTestServer(t, hub)
	conn, _, err := websockettest.DialIgnoringPongs(wsURL(srv.URL), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"x":1}`)); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case got := <-received:
		if got != `{"x":1}` {
			t.Fatalf("unexpected payload: %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("expected OnMessage to be invoked")
	}
}

func TestHubDeregistersOnDisconnect(t *testing.T) {
	source := bus.New[chatEvent]()
	hub := NewHub[chatEvent](source, nil, logging.NewTestLogger())
	srv := newTestServer(t, hub)

	conn, _, err := websockettest.DialIgnoringPongs(wsURL(srv.URL), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && hub.ClientCount() != 1 {
		time.Sleep(time.Millisecond)
	}

	conn.Close()

	deadline = time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount() == 0 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("expected client to be deregistered, count=%d", hub.ClientCount())
}
