package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/pos-terminal/internal/gateway"
	"github.com/example/pos-terminal/internal/lifecycle"
	"github.com/example/pos-terminal/internal/reader"
	"github.com/example/pos-terminal/internal/session"
	"github.com/example/pos-terminal/internal/trigger"
)

// Server wires the operator-facing HTTP API: lifecycle operations, trigger
// activation, the reader bridge WebSocket endpoint and the shell cache.
type Server struct {
	Gateway   *gateway.Client
	Lifecycle *lifecycle.Service
	Trigger   *trigger.Controller
	Readers   *reader.Registry
	Session   *session.Context
	Shell     http.Handler // optional offline shell cache

	logger *slog.Logger
	mux    *mux.Router
}

func NewServer(gw *gateway.Client, lc *lifecycle.Service, tc *trigger.Controller,
	readers *reader.Registry, sess *session.Context, shell http.Handler, logger *slog.Logger) *Server {
	s := &Server{
		Gateway:   gw,
		Lifecycle: lc,
		Trigger:   tc,
		Readers:   readers,
		Session:   sess,
		Shell:     shell,
		logger:    logger,
		mux:       mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.mux.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/auth/login", s.handleLogin).Methods("POST")

	api.HandleFunc("/skus/{sku}", s.handleGetSKU).Methods("GET")
	api.HandleFunc("/prices", s.handleGetPrice).Methods("GET")
	api.HandleFunc("/stock", s.handleGetStock).Methods("GET")
	api.HandleFunc("/calendars", s.handleGetCalendar).Methods("GET")

	api.HandleFunc("/reservations", s.handleCreateReservation).Methods("POST")
	api.HandleFunc("/reservations/reschedule", s.handleReschedule).Methods("POST")
	api.HandleFunc("/orders/confirm-manual", s.handleConfirmManual).Methods("POST")
	api.HandleFunc("/orders/request-cancel", s.handleRequestCancel).Methods("POST")
	api.HandleFunc("/orders/cancel-manual", s.handleCancelManual).Methods("POST")
	api.HandleFunc("/orders/cancel-acquirer", s.handleCancelAcquirer).Methods("POST")
	api.HandleFunc("/payments/link", s.handlePaymentLink).Methods("POST")
	api.HandleFunc("/acquirer/cancel-status", s.handleAcquirerStatus).Methods("GET")

	api.HandleFunc("/trigger/activate", s.handleTriggerActivate).Methods("POST")
	api.HandleFunc("/trigger/state", s.handleTriggerState).Methods("GET")

	s.mux.HandleFunc("/ws/readers/{reader_id}", s.handleReaderWS)
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods("GET")

	// Everything else is the application shell, served cache-first. The
	// shell never answers API paths: those are matched above.
	if s.Shell != nil {
		s.mux.PathPrefix("/").Handler(s.Shell)
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }
