package shellcache

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAssetServedCacheFirst(t *testing.T) {
	var hits int32
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "application/javascript")
		w.Write([]byte("console.log('shell')"))
	}))
	defer origin.Close()

	h := NewHandler(origin.URL, NewMemoryStore(), testLogger())

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/app.js", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status %d", i, rec.Code)
		}
		if got := rec.Body.String(); got != "console.log('shell')" {
			t.Fatalf("request %d: body %q", i, got)
		}
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("expected one origin fetch, got %d", hits)
	}
}

func TestAssetUnavailableWhenOfflineAndUncached(t *testing.T) {
	h := NewHandler("http://127.0.0.1:1", NewMemoryStore(), testLogger())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/app.js", nil))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
}

func TestCachedAssetSurvivesOriginOutage(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("asset"))
	}))
	store := NewMemoryStore()
	h := NewHandler(origin.URL, store, testLogger())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/style.css", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("warm-up failed: %d", rec.Code)
	}

	origin.Close() // terminal goes offline

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/style.css", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "asset" {
		t.Fatalf("expected cached asset while offline, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestDocumentFallsBackToCachedRoot(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>shell</html>"))
	}))
	store := NewMemoryStore()
	h := NewHandler(origin.URL, store, testLogger())
	h.Prime([]string{"/"})

	origin.Close()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sales", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "<html>shell</html>" {
		t.Fatalf("expected cached root fallback, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestDocumentUnavailableWithoutCache(t *testing.T) {
	h := NewHandler("http://127.0.0.1:1", NewMemoryStore(), testLogger())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestNonGETRejected(t *testing.T) {
	h := NewHandler("http://127.0.0.1:1", NewMemoryStore(), testLogger())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/app.js", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
