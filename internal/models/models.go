package models

import "time"

// Payment modes accepted by the acquirer confirmation trigger.
const (
	ModeDebit  = "debit"
	ModeCredit = "credit"
)

// ValidMode reports whether m is a supported trigger payment mode.
func ValidMode(m string) bool { return m == ModeDebit || m == ModeCredit }

// Sale event types published to the feed.
const (
	EventReserved        = "reserved"
	EventSettledManual   = "settled-manual"
	EventSettledAcquirer = "settled-acquirer"
	EventLinkGenerated   = "link-generated"
	EventRescheduled     = "rescheduled"
	EventCancelRequested = "cancel-requested"
	EventCanceledManual  = "canceled-manual"
	EventCancelAcquirer  = "cancel-acquirer"
)

// SaleEvent is the feed record emitted after each state-changing lifecycle call.
type SaleEvent struct {
	OrderID string    `json:"order_id"`
	Type    string    `json:"type"`
	Mode    string    `json:"mode,omitempty"`
	SKU     string    `json:"sku,omitempty"`
	Qty     int       `json:"qty,omitempty"`
	At      time.Time `json:"at"`
}

// OrderStatus is the latest state of an order as mirrored by the feed
// consumer. It is a dashboard snapshot, never an authority on lifecycle
// validity; the remote commerce API stays the single source of truth.
type OrderStatus struct {
	OrderID   string    `json:"order_id"`
	Status    string    `json:"status"`
	Mode      string    `json:"mode,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}
