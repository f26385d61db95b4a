// Package reader accepts WebSocket connections from NFC reader bridge
// hardware and fans detection events out to trigger subscriptions.
package reader

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/example/pos-terminal/internal/ndef"
	"github.com/example/pos-terminal/internal/observability"
)

// Event is one detection outcome pushed by a reader: a tag message, or a
// read failure when the hardware could not parse the tag.
type Event struct {
	Message ndef.Message
	Err     error
}

// frame is the wire format a reader bridge sends per detection.
type frame struct {
	Records []ndef.RawRecord `json:"records"`
	Error   string           `json:"error,omitempty"`
}

type wsSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// Registry tracks connected reader bridges and active subscriptions.
type Registry struct {
	mu      sync.RWMutex
	readers map[string]*wsSession
	subs    map[int]chan Event
	nextSub int
	logger  *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		readers: make(map[string]*wsSession),
		subs:    make(map[int]chan Event),
		logger:  logger,
	}
}

// Supported reports whether proximity detection is currently available,
// i.e. at least one reader bridge is connected.
func (r *Registry) Supported() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.readers) > 0
}

// Add registers a connected reader and pumps its frames until the
// connection drops.
func (r *Registry) Add(readerID string, conn *websocket.Conn) {
	r.mu.Lock()
	r.readers[readerID] = &wsSession{conn: conn}
	r.mu.Unlock()
	observability.ReadersConnected.Inc()
	r.logger.Info("reader connected", "reader_id", readerID)

	go r.pump(readerID, conn)
}

func (r *Registry) pump(readerID string, conn *websocket.Conn) {
	defer func() {
		r.mu.Lock()
		delete(r.readers, readerID)
		r.mu.Unlock()
		observability.ReadersConnected.Dec()
		_ = conn.Close()
		r.logger.Info("reader disconnected", "reader_id", readerID)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			r.logger.Warn("malformed reader frame", "reader_id", readerID, "error", err)
			continue
		}
		observability.DetectionsTotal.Inc()
		if f.Error != "" {
			r.broadcast(Event{Err: errors.New(f.Error)})
			continue
		}
		r.broadcast(Event{Message: ndef.Message{Records: f.Records}})
	}
}

func (r *Registry) broadcast(ev Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ch := range r.subs {
		select {
		case ch <- ev:
		default:
			// subscriber not draining; it already has an event pending
		}
	}
}

// Subscribe registers interest in detection events. The returned cancel
// func must be called once the subscription's session reaches a terminal
// state, so a later activation starts clean.
func (r *Registry) Subscribe() (<-chan Event, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextSub
	r.nextSub++
	ch := make(chan Event, 4)
	r.subs[id] = ch
	return ch, func() {
		r.mu.Lock()
		delete(r.subs, id)
		r.mu.Unlock()
	}
}
