package reader

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newBridge(t *testing.T) (*Registry, *websocket.Conn) {
	t.Helper()
	reg := NewRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		reg.Add("reader-1", conn)
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	waitFor(t, func() bool { return reg.Supported() })
	return reg, conn
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition never met")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSupportedTracksConnections(t *testing.T) {
	reg, conn := newBridge(t)
	if !reg.Supported() {
		t.Fatal("expected reader available")
	}
	conn.Close()
	waitFor(t, func() bool { return !reg.Supported() })
}

func TestDetectionFrameReachesSubscriber(t *testing.T) {
	reg, conn := newBridge(t)
	events, cancel := reg.Subscribe()
	defer cancel()

	// RawRecord.Data is []byte, so JSON carries it base64-encoded: "OK" -> "T0s=".
	frame := `{"records":[{"recordType":"text","data":"T0s="}]}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case ev := <-events:
		if ev.Err != nil {
			t.Fatalf("unexpected error event: %v", ev.Err)
		}
		if len(ev.Message.Records) != 1 || string(ev.Message.Records[0].Data) != "OK" {
			t.Fatalf("unexpected records: %+v", ev.Message.Records)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
	}
}

func TestReadErrorFrameBecomesErrorEvent(t *testing.T) {
	reg, conn := newBridge(t)
	events, cancel := reg.Subscribe()
	defer cancel()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"tag unreadable"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case ev := <-events:
		if ev.Err == nil || ev.Err.Error() != "tag unreadable" {
			t.Fatalf("expected read error event, got %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
	}
}

func TestCanceledSubscriptionStopsReceiving(t *testing.T) {
	reg, conn := newBridge(t)
	events, cancel := reg.Subscribe()
	cancel()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"records":[]}`)); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case ev := <-events:
		t.Fatalf("canceled subscription must not receive, got %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}
