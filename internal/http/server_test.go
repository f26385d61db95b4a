package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/example/pos-terminal/internal/gateway"
	"github.com/example/pos-terminal/internal/lifecycle"
	"github.com/example/pos-terminal/internal/ndef"
	"github.com/example/pos-terminal/internal/reader"
	"github.com/example/pos-terminal/internal/session"
	"github.com/example/pos-terminal/internal/trigger"
)

type stubSource struct {
	supported bool
	ch        chan reader.Event
}

func (s *stubSource) Supported() bool { return s.supported }
func (s *stubSource) Subscribe() (<-chan reader.Event, func()) {
	return s.ch, func() {}
}

type fixture struct {
	api    *httptest.Server // operator-facing server under test
	remote *httptest.Server // fake commerce API
	source *stubSource
	sess   *session.Context

	mu           sync.Mutex
	confirmCalls int32
	confirmBody  map[string]any
	confirmPath  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		source: &stubSource{supported: true, ch: make(chan reader.Event, 4)},
		sess:   session.New(),
	}

	f.remote = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/auth/login":
			w.Write([]byte(`{"accessToken":"tok-1"}`))
		case r.URL.Path == "/reservations":
			w.Write([]byte(`{"id":"R1"}`))
		case r.URL.Path == "/orders/R1/confirm-acquirer":
			atomic.AddInt32(&f.confirmCalls, 1)
			f.mu.Lock()
			f.confirmPath = r.URL.Path
			json.NewDecoder(r.Body).Decode(&f.confirmBody)
			f.mu.Unlock()
			w.Write([]byte(`{"status":"confirmed"}`))
		default:
			http.Error(w, `{"message":"not found"}`, http.StatusNotFound)
		}
	}))
	t.Cleanup(f.remote.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gw := gateway.New(f.remote.URL, f.sess, time.Second, logger)
	lc := &lifecycle.Service{Gateway: gw, Session: f.sess, Logger: logger}
	tc := &trigger.Controller{Source: f.source, Confirmer: lc, Session: f.sess, Logger: logger}
	srv := NewServer(gw, lc, tc, reader.NewRegistry(logger), f.sess, nil, logger)

	f.api = httptest.NewServer(srv)
	t.Cleanup(f.api.Close)
	return f
}

func (f *fixture) post(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	b, _ := json.Marshal(body)
	resp, err := http.Post(f.api.URL+path, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func TestSaleScenarioFromLoginToSettlement(t *testing.T) {
	f := newFixture(t)

	resp := f.post(t, "/api/v1/auth/login", map[string]string{"username": "op", "password": "pw"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status %d", resp.StatusCode)
	}
	resp.Body.Close()
	if f.sess.Credential() != "tok-1" {
		t.Fatalf("token not stored, got %q", f.sess.Credential())
	}

	resp = f.post(t, "/api/v1/reservations", map[string]any{"sku": "SKU123", "quantity": 2})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reservation status %d", resp.StatusCode)
	}
	var created struct {
		OrderID string `json:"orderId"`
	}
	json.NewDecoder(resp.Body).Decode(&created)
	resp.Body.Close()
	if created.OrderID != "R1" || f.sess.LastReservationID() != "R1" {
		t.Fatalf("expected R1 as current identifier, got %q / %q", created.OrderID, f.sess.LastReservationID())
	}

	// Simulated detection with one text record "OK"; orderId omitted on
	// purpose so the remembered identifier is used.
	f.source.ch <- reader.Event{Message: ndef.Message{Records: []ndef.RawRecord{{RecordType: "text", Data: []byte("OK")}}}}
	resp = f.post(t, "/api/v1/trigger/activate", map[string]string{"mode": "debit"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("activate status %d", resp.StatusCode)
	}
	var out map[string]string
	json.NewDecoder(resp.Body).Decode(&out)
	resp.Body.Close()
	if out["state"] != "settled" {
		t.Fatalf("expected settled, got %v", out)
	}

	if n := atomic.LoadInt32(&f.confirmCalls); n != 1 {
		t.Fatalf("expected exactly one confirm-acquirer call, got %d", n)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.confirmPath != "/orders/R1/confirm-acquirer" {
		t.Fatalf("unexpected confirm path %q", f.confirmPath)
	}
	if f.confirmBody["mode"] != "debit" {
		t.Fatalf("expected mode debit, got %v", f.confirmBody["mode"])
	}
	records := f.confirmBody["nfc_payload"].([]any)
	rec := records[0].(map[string]any)
	if rec["recordType"] != "text" || rec["data"] != "OK" {
		t.Fatalf("unexpected nfc_payload record: %v", rec)
	}
}

func TestAuthenticatedQueryWithoutLoginIs401(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Get(f.api.URL + "/api/v1/prices?sku=A")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestTriggerActivateWithoutReaderIsRejected(t *testing.T) {
	f := newFixture(t)
	f.source.supported = false
	f.sess.SetCredential("tok")

	resp := f.post(t, "/api/v1/trigger/activate", map[string]string{"orderId": "R1", "mode": "debit"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	var out struct {
		State string `json:"state"`
	}
	json.NewDecoder(resp.Body).Decode(&out)
	if out.State != "idle" {
		t.Fatalf("controller must stay idle, got %q", out.State)
	}
	if atomic.LoadInt32(&f.confirmCalls) != 0 {
		t.Fatal("no network call may be made when the reader is unavailable")
	}
}

func TestRemoteRejectionPassesThrough(t *testing.T) {
	f := newFixture(t)
	f.sess.SetCredential("tok")

	resp := f.post(t, "/api/v1/orders/confirm-manual", map[string]string{"orderId": "RX"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}
	var out errorResponse
	json.NewDecoder(resp.Body).Decode(&out)
	if out.RemoteStatus != http.StatusNotFound {
		t.Fatalf("expected remote 404 surfaced, got %+v", out)
	}
}
