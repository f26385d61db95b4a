// Package trigger turns one proximity detection into exactly one acquirer
// confirmation call. The controller is a small state machine around a
// detection subscription: it listens for a single event, decodes the tag
// payload and issues at most one confirmation per activation, tearing the
// listener down on every terminal state.
package trigger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/example/pos-terminal/internal/models"
	"github.com/example/pos-terminal/internal/ndef"
	"github.com/example/pos-terminal/internal/observability"
	"github.com/example/pos-terminal/internal/reader"
	"github.com/example/pos-terminal/internal/session"
)

type State int

const (
	Idle State = iota
	Scanning
	Detected
	Confirming
	Settled
	DetectionFailed
	ConfirmationFailed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scanning:
		return "scanning"
	case Detected:
		return "detected"
	case Confirming:
		return "confirming"
	case Settled:
		return "settled"
	case DetectionFailed:
		return "detection_failed"
	case ConfirmationFailed:
		return "confirmation_failed"
	default:
		return "unknown"
	}
}

// PreconditionError reports an activation rejected before any listener was
// registered or network call made.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string { return "trigger: " + e.Reason }

// DetectionError wraps a platform-level tag read failure.
type DetectionError struct {
	Err error
}

func (e *DetectionError) Error() string { return "trigger: tag read failed: " + e.Err.Error() }
func (e *DetectionError) Unwrap() error { return e.Err }

// Source delivers detection events. The cancel func returned by Subscribe
// deactivates the listener; the controller calls it on every terminal state.
type Source interface {
	Supported() bool
	Subscribe() (<-chan reader.Event, func())
}

// Confirmer issues the acquirer confirmation call for an order.
type Confirmer interface {
	ConfirmAcquirer(ctx context.Context, id, mode string, payload []ndef.Record) (json.RawMessage, error)
}

type Controller struct {
	Source    Source
	Confirmer Confirmer
	Session   *session.Context
	Logger    *slog.Logger

	// DetectTimeout bounds the Scanning wait. Zero means wait until an
	// event arrives or ctx is canceled.
	DetectTimeout time.Duration

	mu    sync.Mutex
	state State
}

// State returns the controller's current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// begin validates preconditions and claims the controller for one session.
// On any violation the controller stays Idle and nothing was registered.
func (c *Controller) begin(orderID, mode string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.state != Idle:
		return &PreconditionError{Reason: "activation already in progress"}
	case orderID == "":
		return &PreconditionError{Reason: "missing order identifier"}
	case !models.ValidMode(mode):
		return &PreconditionError{Reason: fmt.Sprintf("unsupported mode %q", mode)}
	case !c.Session.Authenticated():
		return &PreconditionError{Reason: "no active credential"}
	case !c.Source.Supported():
		return &PreconditionError{Reason: "proximity detection unavailable: no reader connected"}
	}
	c.state = Scanning
	return nil
}

func (c *Controller) fail(s State, orderID string, err error) (State, error) {
	c.setState(s)
	observability.TriggerSessionsTotal.WithLabelValues(s.String()).Inc()
	c.Logger.Error("trigger session failed", "order_id", orderID, "state", s.String(), "error", err)
	return s, err
}

// Activate runs one full detection session for the given order: wait for a
// single proximity event, decode its records and confirm through the
// acquirer. It returns the terminal state reached. Every exit path, success
// or failure, deactivates the listener so a later Activate starts a clean
// session; nothing is retried automatically.
func (c *Controller) Activate(ctx context.Context, orderID, mode string) (State, error) {
	if err := c.begin(orderID, mode); err != nil {
		return Idle, err
	}
	// Terminal states return the controller to availability.
	defer c.setState(Idle)

	events, cancel := c.Source.Subscribe()
	defer cancel()
	c.Logger.Info("scanning for proximity detection", "order_id", orderID, "mode", mode)

	var timeout <-chan time.Time
	if c.DetectTimeout > 0 {
		t := time.NewTimer(c.DetectTimeout)
		defer t.Stop()
		timeout = t.C
	}

	var msg ndef.Message
	select {
	case <-ctx.Done():
		return c.fail(DetectionFailed, orderID, fmt.Errorf("trigger: activation canceled: %w", ctx.Err()))
	case <-timeout:
		return c.fail(DetectionFailed, orderID, fmt.Errorf("trigger: no detection within %s", c.DetectTimeout))
	case ev := <-events:
		if ev.Err != nil {
			return c.fail(DetectionFailed, orderID, &DetectionError{Err: ev.Err})
		}
		msg = ev.Message
	}

	// The confirmation attempt starts here: deactivate the listener first
	// so a platform delivering a second detection inside this activation
	// cannot cause a duplicate submission.
	cancel()
	c.setState(Detected)
	c.Logger.Info("proximity detected", "order_id", orderID, "records", len(msg.Records))

	records := ndef.DecodeAll(msg.Records)
	for _, r := range records {
		if r.Degraded {
			c.Logger.Warn("tag record could not be decoded, carrying sentinel",
				"order_id", orderID, "record_type", r.RecordType)
		}
	}

	c.setState(Confirming)
	if _, err := c.Confirmer.ConfirmAcquirer(ctx, orderID, mode, records); err != nil {
		return c.fail(ConfirmationFailed, orderID, err)
	}

	c.setState(Settled)
	observability.TriggerSessionsTotal.WithLabelValues(Settled.String()).Inc()
	c.Logger.Info("proximity payment settled", "order_id", orderID, "mode", mode)
	return Settled, nil
}
