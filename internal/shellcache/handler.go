// Package shellcache serves the static application shell cache-first so the
// terminal keeps its UI when connectivity to the shell origin is degraded.
// It never touches API traffic: API calls are always network calls, routed
// before this handler.
package shellcache

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/example/pos-terminal/internal/observability"
)

type Handler struct {
	origin string
	store  Store
	client *http.Client
	logger *slog.Logger
}

func NewHandler(origin string, store Store, logger *slog.Logger) *Handler {
	return &Handler{
		origin: strings.TrimRight(origin, "/"),
		store:  store,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

// Prime fetches and caches the listed shell paths up front, so a cold
// terminal that later loses connectivity can still render the shell.
func (h *Handler) Prime(paths []string) {
	for _, p := range paths {
		if _, err := h.fetchAndStore(p); err != nil {
			h.logger.Warn("shell prime failed", "path", p, "error", err)
		}
	}
}

// ServeHTTP implements the cache policy: GET asset requests are cache-first
// with origin fallback-and-refresh; document requests go straight to the
// origin with the cached root document as the offline fallback.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	p := r.URL.Path
	if isDocument(p) {
		h.serveDocument(w, r, p)
		return
	}

	if a, ok, err := h.store.Get(r.Context(), p); err == nil && ok {
		observability.ShellCacheHits.Inc()
		writeAsset(w, a)
		return
	}

	a, err := h.fetchAndStore(p)
	if err != nil {
		h.logger.Warn("shell asset unavailable", "path", p, "error", err)
		http.Error(w, "asset unavailable", http.StatusBadGateway)
		return
	}
	observability.ShellCacheMisses.Inc()
	writeAsset(w, a)
}

func (h *Handler) serveDocument(w http.ResponseWriter, r *http.Request, p string) {
	a, err := h.fetchAndStore(p)
	if err == nil {
		writeAsset(w, a)
		return
	}
	// Offline: fall back to the cached root document.
	if root, ok, gerr := h.store.Get(r.Context(), "/"); gerr == nil && ok {
		h.logger.Warn("origin unreachable, serving cached shell", "path", p, "error", err)
		writeAsset(w, root)
		return
	}
	http.Error(w, "shell unavailable", http.StatusServiceUnavailable)
}

func (h *Handler) fetchAndStore(p string) (Asset, error) {
	u, err := url.JoinPath(h.origin, p)
	if err != nil {
		return Asset{}, err
	}
	resp, err := h.client.Get(u)
	if err != nil {
		return Asset{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Asset{}, &httpStatusError{status: resp.StatusCode}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Asset{}, err
	}
	a := Asset{ContentType: resp.Header.Get("Content-Type"), Body: body}
	if err := h.store.Set(context.Background(), p, a); err != nil {
		h.logger.Warn("shell cache write failed", "path", p, "error", err)
	}
	return a, nil
}

func writeAsset(w http.ResponseWriter, a Asset) {
	if a.ContentType != "" {
		w.Header().Set("Content-Type", a.ContentType)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(a.Body)
}

// isDocument mirrors the navigation/asset split: extensionless paths are
// documents, anything with a file extension is an asset.
func isDocument(p string) bool {
	return path.Ext(p) == ""
}

type httpStatusError struct {
	status int
}

func (e *httpStatusError) Error() string {
	return "shellcache: origin returned " + http.StatusText(e.status)
}
