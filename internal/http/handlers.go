package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/example/pos-terminal/internal/gateway"
	"github.com/example/pos-terminal/internal/trigger"
)

type errorResponse struct {
	Error        string          `json:"error"`
	RemoteStatus int             `json:"remoteStatus,omitempty"`
	RemoteBody   json.RawMessage `json:"remoteBody,omitempty"`
}

// writeError maps internal error types onto operator-facing responses. The
// remote API's rejection status and body are passed through untouched so
// the operator sees what the server actually said.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var apiErr *gateway.APIError
	var preErr *trigger.PreconditionError

	resp := errorResponse{Error: err.Error()}
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, gateway.ErrMissingCredential):
		status = http.StatusUnauthorized
	case errors.As(err, &apiErr):
		status = http.StatusBadGateway
		resp.RemoteStatus = apiErr.Status
		if json.Valid(apiErr.Body) {
			resp.RemoteBody = apiErr.Body
		}
	case errors.As(err, &preErr):
		status = http.StatusBadRequest
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) writeRaw(w http.ResponseWriter, raw json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

/* ----- auth ----- */

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Username == "" || req.Password == "" {
		http.Error(w, "username and password are required", http.StatusBadRequest)
		return
	}
	if err := s.Gateway.Login(r.Context(), req.Username, req.Password); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, map[string]string{"status": "authenticated"})
}

/* ----- read-side queries ----- */

func (s *Server) handleGetSKU(w http.ResponseWriter, r *http.Request) {
	raw, err := s.Gateway.GetSKU(r.Context(), mux.Vars(r)["sku"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeRaw(w, raw)
}

func (s *Server) handleGetPrice(w http.ResponseWriter, r *http.Request) {
	sku := r.URL.Query().Get("sku")
	if sku == "" {
		http.Error(w, "sku is required", http.StatusBadRequest)
		return
	}
	raw, err := s.Gateway.GetPrice(r.Context(), sku)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeRaw(w, raw)
}

func (s *Server) handleGetStock(w http.ResponseWriter, r *http.Request) {
	sku := r.URL.Query().Get("sku")
	if sku == "" {
		http.Error(w, "sku is required", http.StatusBadRequest)
		return
	}
	aggregated := r.URL.Query().Get("aggregated") == "true"
	raw, err := s.Gateway.GetStock(r.Context(), sku, aggregated)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeRaw(w, raw)
}

func (s *Server) handleGetCalendar(w http.ResponseWriter, r *http.Request) {
	raw, err := s.Gateway.GetCalendar(r.Context(), r.URL.Query().Get("ingresso"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeRaw(w, raw)
}

/* ----- reservation / order lifecycle ----- */

func (s *Server) handleCreateReservation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SKU      string `json:"sku"`
		Quantity int    `json:"quantity"`
	}
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.SKU == "" {
		http.Error(w, "sku is required", http.StatusBadRequest)
		return
	}
	if req.Quantity <= 0 {
		req.Quantity = 1
	}
	id, raw, err := s.Lifecycle.CreateReservation(r.Context(), req.SKU, req.Quantity)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, map[string]any{"orderId": id, "remote": raw})
}

// orderRequest covers every order-scoped operation. OrderID may be omitted,
// in which case the session's last reservation identifier is used.
type orderRequest struct {
	OrderID string `json:"orderId"`
	NewDate string `json:"newDate,omitempty"`
}

func (s *Server) resolveOrder(w http.ResponseWriter, r *http.Request) (orderRequest, bool) {
	var req orderRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := decodeBody(r, &req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return req, false
		}
	}
	req.OrderID = s.Session.ResolveOrderID(req.OrderID)
	if req.OrderID == "" {
		http.Error(w, "no order identifier supplied and none remembered", http.StatusBadRequest)
		return req, false
	}
	return req, true
}

func (s *Server) handleConfirmManual(w http.ResponseWriter, r *http.Request) {
	req, ok := s.resolveOrder(w, r)
	if !ok {
		return
	}
	raw, err := s.Lifecycle.ConfirmManual(r.Context(), req.OrderID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeRaw(w, raw)
}

func (s *Server) handlePaymentLink(w http.ResponseWriter, r *http.Request) {
	req, ok := s.resolveOrder(w, r)
	if !ok {
		return
	}
	raw, err := s.Lifecycle.GeneratePaymentLink(r.Context(), req.OrderID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeRaw(w, raw)
}

func (s *Server) handleReschedule(w http.ResponseWriter, r *http.Request) {
	req, ok := s.resolveOrder(w, r)
	if !ok {
		return
	}
	if req.NewDate == "" {
		http.Error(w, "newDate is required", http.StatusBadRequest)
		return
	}
	raw, err := s.Lifecycle.Reschedule(r.Context(), req.OrderID, req.NewDate)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeRaw(w, raw)
}

func (s *Server) handleRequestCancel(w http.ResponseWriter, r *http.Request) {
	req, ok := s.resolveOrder(w, r)
	if !ok {
		return
	}
	raw, err := s.Lifecycle.RequestCancel(r.Context(), req.OrderID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeRaw(w, raw)
}

func (s *Server) handleCancelManual(w http.ResponseWriter, r *http.Request) {
	req, ok := s.resolveOrder(w, r)
	if !ok {
		return
	}
	raw, err := s.Lifecycle.CancelManual(r.Context(), req.OrderID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeRaw(w, raw)
}

func (s *Server) handleCancelAcquirer(w http.ResponseWriter, r *http.Request) {
	req, ok := s.resolveOrder(w, r)
	if !ok {
		return
	}
	raw, err := s.Lifecycle.CancelAcquirer(r.Context(), req.OrderID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeRaw(w, raw)
}

func (s *Server) handleAcquirerStatus(w http.ResponseWriter, r *http.Request) {
	acqID := r.URL.Query().Get("acquirerId")
	if acqID == "" {
		http.Error(w, "acquirerId is required", http.StatusBadRequest)
		return
	}
	raw, err := s.Lifecycle.CheckAcquirerStatus(r.Context(), acqID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeRaw(w, raw)
}

/* ----- proximity trigger ----- */

// handleTriggerActivate runs one full detection session. The request blocks
// until the session reaches a terminal state so the operator gets an
// explicit acknowledgment either way.
func (s *Server) handleTriggerActivate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderID string `json:"orderId"`
		Mode    string `json:"mode"`
	}
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req.OrderID = s.Session.ResolveOrderID(req.OrderID)

	state, err := s.Trigger.Activate(r.Context(), req.OrderID, req.Mode)
	if err != nil {
		resp := errorResponse{Error: err.Error()}
		var apiErr *gateway.APIError
		if errors.As(err, &apiErr) {
			resp.RemoteStatus = apiErr.Status
			if json.Valid(apiErr.Body) {
				resp.RemoteBody = apiErr.Body
			}
		}
		w.Header().Set("Content-Type", "application/json")
		status := http.StatusConflict
		var preErr *trigger.PreconditionError
		if errors.As(err, &preErr) {
			status = http.StatusBadRequest
		}
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{"state": state.String(), "failure": resp})
		return
	}
	s.writeJSON(w, map[string]string{"state": state.String(), "orderId": req.OrderID, "mode": req.Mode})
}

func (s *Server) handleTriggerState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]any{
		"state":           s.Trigger.State().String(),
		"readerAvailable": s.Readers.Supported(),
	})
}

/* ----- reader bridge ----- */

var upgrader = websocket.Upgrader{}

func (s *Server) handleReaderWS(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["reader_id"]
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "upgrade failed", http.StatusBadRequest)
		return
	}
	s.Readers.Add(id, conn)
}
