// Package lifecycle sequences the state-changing calls that move a sale
// from intent to settlement. Each operation is one call through the gateway
// and independently invocable; no client-side state machine mirrors the
// server, so the remote API stays the sole authority on legal transitions.
package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/example/pos-terminal/internal/gateway"
	"github.com/example/pos-terminal/internal/models"
	"github.com/example/pos-terminal/internal/ndef"
	"github.com/example/pos-terminal/internal/session"
)

// EventSink receives best-effort sale events after state-changing calls.
type EventSink interface {
	Publish(ev models.SaleEvent) error
}

type Service struct {
	Gateway *gateway.Client
	Session *session.Context
	Feed    EventSink // optional
	Logger  *slog.Logger
}

func (s *Service) emit(ev models.SaleEvent) {
	if s.Feed == nil {
		return
	}
	ev.At = time.Now()
	if err := s.Feed.Publish(ev); err != nil {
		s.Logger.Warn("sale event publish failed", "order_id", ev.OrderID, "type", ev.Type, "error", err)
	}
}

type reservationResponse struct {
	ID            string `json:"id"`
	ReservationID string `json:"reservationId"`
	OrderID       string `json:"orderId"`
}

func (r reservationResponse) identifier() string {
	switch {
	case r.ID != "":
		return r.ID
	case r.ReservationID != "":
		return r.ReservationID
	default:
		return r.OrderID
	}
}

// CreateReservation reserves quantity units of a SKU. The identifier the
// server returns becomes the session's last reservation id so later
// operations can default to it.
func (s *Service) CreateReservation(ctx context.Context, sku string, quantity int) (string, json.RawMessage, error) {
	raw, err := s.Gateway.Call(ctx, http.MethodPost, "/reservations",
		map[string]any{"sku": sku, "quantity": quantity}, true)
	if err != nil {
		return "", nil, err
	}
	var out reservationResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", nil, fmt.Errorf("lifecycle: decode reservation response: %w", err)
	}
	id := out.identifier()
	if id == "" {
		return "", raw, fmt.Errorf("lifecycle: reservation response carried no identifier")
	}
	s.Session.SetLastReservationID(id)
	s.Logger.Info("reservation created", "order_id", id, "sku", sku, "qty", quantity)
	s.emit(models.SaleEvent{OrderID: id, Type: models.EventReserved, SKU: sku, Qty: quantity})
	return id, raw, nil
}

// ConfirmManual settles an order through the manual, non-card path.
func (s *Service) ConfirmManual(ctx context.Context, id string) (json.RawMessage, error) {
	raw, err := s.Gateway.Call(ctx, http.MethodPost, "/orders/"+url.PathEscape(id)+"/confirm-manual",
		map[string]string{"method": "manual"}, true)
	if err != nil {
		return nil, err
	}
	s.Logger.Info("manual confirmation accepted", "order_id", id)
	s.emit(models.SaleEvent{OrderID: id, Type: models.EventSettledManual})
	return raw, nil
}

// ConfirmAcquirer settles an order through the acquirer, carrying the mode
// and the decoded proximity payload. The trigger controller is its only
// caller in normal operation.
func (s *Service) ConfirmAcquirer(ctx context.Context, id, mode string, payload []ndef.Record) (json.RawMessage, error) {
	raw, err := s.Gateway.Call(ctx, http.MethodPost, "/orders/"+url.PathEscape(id)+"/confirm-acquirer",
		map[string]any{"mode": mode, "nfc_payload": payload}, true)
	if err != nil {
		return nil, err
	}
	s.Logger.Info("acquirer confirmation accepted", "order_id", id, "mode", mode)
	s.emit(models.SaleEvent{OrderID: id, Type: models.EventSettledAcquirer, Mode: mode})
	return raw, nil
}

// GeneratePaymentLink asks the API for an external payment link. No local
// state changes.
func (s *Service) GeneratePaymentLink(ctx context.Context, id string) (json.RawMessage, error) {
	raw, err := s.Gateway.Call(ctx, http.MethodPost, "/payments/link",
		map[string]string{"orderId": id}, true)
	if err != nil {
		return nil, err
	}
	s.emit(models.SaleEvent{OrderID: id, Type: models.EventLinkGenerated})
	return raw, nil
}

// Reschedule moves a reservation to a new date (ISO 8601).
func (s *Service) Reschedule(ctx context.Context, id, newDate string) (json.RawMessage, error) {
	raw, err := s.Gateway.Call(ctx, http.MethodPost, "/reservations/"+url.PathEscape(id)+"/reschedule",
		map[string]string{"newDate": newDate}, true)
	if err != nil {
		return nil, err
	}
	s.Logger.Info("reservation rescheduled", "order_id", id, "new_date", newDate)
	s.emit(models.SaleEvent{OrderID: id, Type: models.EventRescheduled})
	return raw, nil
}

// RequestCancel registers a cancellation request for an order.
func (s *Service) RequestCancel(ctx context.Context, id string) (json.RawMessage, error) {
	raw, err := s.Gateway.Call(ctx, http.MethodPost, "/orders/"+url.PathEscape(id)+"/request-cancel", nil, true)
	if err != nil {
		return nil, err
	}
	s.emit(models.SaleEvent{OrderID: id, Type: models.EventCancelRequested})
	return raw, nil
}

// CancelManual cancels an order through the manual path.
func (s *Service) CancelManual(ctx context.Context, id string) (json.RawMessage, error) {
	raw, err := s.Gateway.Call(ctx, http.MethodPost, "/orders/"+url.PathEscape(id)+"/cancel-manual", nil, true)
	if err != nil {
		return nil, err
	}
	s.emit(models.SaleEvent{OrderID: id, Type: models.EventCanceledManual})
	return raw, nil
}

// CancelAcquirer requests cancellation on the acquirer side.
func (s *Service) CancelAcquirer(ctx context.Context, id string) (json.RawMessage, error) {
	raw, err := s.Gateway.Call(ctx, http.MethodPost, "/orders/"+url.PathEscape(id)+"/cancel-acquirer", nil, true)
	if err != nil {
		return nil, err
	}
	s.emit(models.SaleEvent{OrderID: id, Type: models.EventCancelAcquirer})
	return raw, nil
}

// CheckAcquirerStatus reads the acquirer-side cancellation status.
func (s *Service) CheckAcquirerStatus(ctx context.Context, acquirerID string) (json.RawMessage, error) {
	return s.Gateway.Call(ctx, http.MethodGet,
		"/acquirer/cancel-status?acquirerId="+url.QueryEscape(acquirerID), nil, true)
}
