// Package gateway is the thin client for the remote commerce API. Every
// logical operation maps to exactly one HTTP call; the client attaches the
// bearer credential, normalizes error shapes and does nothing else; no
// retries, no local state. Timeouts are left to the underlying http.Client.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/pos-terminal/internal/observability"
	"github.com/example/pos-terminal/internal/session"
)

// ErrMissingCredential is returned before any network activity when an
// authenticated operation runs without a stored bearer token.
var ErrMissingCredential = errors.New("gateway: no credential in session")

// APIError carries a rejected remote call: non-2xx status plus the raw body.
type APIError struct {
	Status int
	Body   []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway: remote API returned %d: %s", e.Status, string(e.Body))
}

type Client struct {
	baseURL    string
	session    *session.Context
	httpClient *http.Client
	logger     *slog.Logger
}

func New(baseURL string, sess *session.Context, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		session:    sess,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Call issues one HTTP request against the remote base endpoint. A nil body
// sends no payload; anything else is marshaled as JSON. When requiresAuth is
// set and the session holds no credential, the call fails fast with
// ErrMissingCredential and no request leaves the process. Non-2xx responses
// fail with *APIError; the decoded body is returned raw for typed helpers.
func (c *Client) Call(ctx context.Context, method, path string, body any, requiresAuth bool) (json.RawMessage, error) {
	return c.do(ctx, operationFromPath(method, path), method, path, body, requiresAuth)
}

func (c *Client) do(ctx context.Context, op, method, path string, body any, requiresAuth bool) (json.RawMessage, error) {
	if requiresAuth && !c.session.Authenticated() {
		return nil, ErrMissingCredential
	}

	var payload io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("gateway: marshal %s body: %w", op, err)
		}
		payload = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return nil, fmt.Errorf("gateway: build %s request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if requiresAuth {
		req.Header.Set("Authorization", "Bearer "+c.session.Credential())
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	observability.APICallDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		observability.APICallsTotal.WithLabelValues(op, "network_error").Inc()
		c.logger.Error("remote call failed", "operation", op, "error", err)
		return nil, fmt.Errorf("gateway: %s: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		observability.APICallsTotal.WithLabelValues(op, "read_error").Inc()
		return nil, fmt.Errorf("gateway: read %s response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		observability.APICallsTotal.WithLabelValues(op, "rejected").Inc()
		c.logger.Warn("remote call rejected", "operation", op, "status", resp.StatusCode, "body", string(raw))
		return nil, &APIError{Status: resp.StatusCode, Body: raw}
	}

	observability.APICallsTotal.WithLabelValues(op, "ok").Inc()
	if len(raw) == 0 {
		return json.RawMessage("{}"), nil
	}
	return json.RawMessage(raw), nil
}

// operationFromPath collapses a concrete path into a low-cardinality metric
// label: "POST /orders/R1/confirm-manual" becomes "POST /orders/{id}/confirm-manual".
func operationFromPath(method, path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if i >= 2 && (parts[i-1] == "orders" || parts[i-1] == "reservations" || parts[i-1] == "skus") && p != "" {
			parts[i] = "{id}"
		}
	}
	return method + " " + strings.Join(parts, "/")
}

/* ----- authentication ----- */

type LoginResponse struct {
	AccessToken string `json:"accessToken"`
	Token       string `json:"token"`
	JWT         string `json:"jwt"`
}

// BearerToken returns whichever token field the API populated.
func (l LoginResponse) BearerToken() string {
	switch {
	case l.AccessToken != "":
		return l.AccessToken
	case l.Token != "":
		return l.Token
	default:
		return l.JWT
	}
}

// Login authenticates and stores the returned bearer token in the session,
// overwriting any previous credential.
func (c *Client) Login(ctx context.Context, username, password string) error {
	raw, err := c.do(ctx, "POST /auth/login", http.MethodPost, "/auth/login",
		map[string]string{"username": username, "password": password}, false)
	if err != nil {
		return err
	}
	var out LoginResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("gateway: decode login response: %w", err)
	}
	token := out.BearerToken()
	if token == "" {
		return fmt.Errorf("gateway: login response carried no token")
	}
	c.session.SetCredential(token)
	c.logger.Info("authenticated against commerce API")
	return nil
}

/* ----- read-side queries ----- */

func (c *Client) GetSKU(ctx context.Context, sku string) (json.RawMessage, error) {
	return c.do(ctx, "GET /skus/{id}", http.MethodGet, "/skus/"+url.PathEscape(sku), nil, true)
}

func (c *Client) GetPrice(ctx context.Context, sku string) (json.RawMessage, error) {
	return c.do(ctx, "GET /prices", http.MethodGet, "/prices?sku="+url.QueryEscape(sku), nil, true)
}

// GetStock queries per-location stock, or the aggregated total when
// aggregated is set.
func (c *Client) GetStock(ctx context.Context, sku string, aggregated bool) (json.RawMessage, error) {
	path := "/stock?sku=" + url.QueryEscape(sku)
	if aggregated {
		path = "/stock/aggregated?sku=" + url.QueryEscape(sku)
	}
	return c.do(ctx, "GET /stock", http.MethodGet, path, nil, true)
}

// GetCalendar fetches the general calendar, or a single ticket's calendar
// when ticketID is non-empty.
func (c *Client) GetCalendar(ctx context.Context, ticketID string) (json.RawMessage, error) {
	path := "/calendars"
	if ticketID != "" {
		path += "?ingresso=" + url.QueryEscape(ticketID)
	}
	return c.do(ctx, "GET /calendars", http.MethodGet, path, nil, true)
}
