package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"chatguard/internal/constants"
	apperrors "chatguard/internal/errors"
	"chatguard/internal/middleware"
	"chatguard/internal/service"
	"chatguard/internal/tracing"
	"chatguard/internal/ws"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type storeHealth interface {
	Ready() bool
}

type Server struct {
	router  *mux.Router
	logger  *logrus.Logger
	history *service.HistoryService
	hub     *ws.Hub
	store   storeHealth
	server  *http.Server
}

func NewServer(history *service.HistoryService, hub *ws.Hub, store storeHealth, logger *logrus.Logger) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		logger:  logger,
		history: history,
		hub:     hub,
		store:   store,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Observability(s.logger))

	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)

	s.router.HandleFunc("/messages", s.handleListMessages()).Methods(http.MethodGet)
	s.router.HandleFunc("/messages", s.handleClearMessages()).Methods(http.MethodDelete)

	s.router.HandleFunc("/ws", s.hub.HandleWebSocket()).Methods(http.MethodGet)
}

func (s *Server) Start(port int) error {
	s.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", port),
		Handler:     s.router,
		ReadTimeout: constants.DefaultServerReadTimeoutSec * time.Second,
		// No write timeout: /ws holds its response open for the connection
		// lifetime.
		IdleTimeout: constants.DefaultServerIdleTimeoutSec * time.Second,
	}

	s.logger.Infof("Starting server on port %d", port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		body := map[string]interface{}{
			"status":      "ok",
			"store_ready": s.store.Ready(),
		}
		if !s.store.Ready() {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if err := json.NewEncoder(w).Encode(body); err != nil {
			s.logger.WithError(err).Error("Failed to encode health response")
		}
	}
}

// handleListMessages serves the full history in ascending timestamp order
// for initial state hydration.
func (s *Server) handleListMessages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		messages, err := s.history.List(r.Context())
		if err != nil {
			s.writeError(w, r, apperrors.NewStoreError("list", err))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(messages); err != nil {
			s.logger.WithError(err).Error("Failed to encode messages response")
		}
	}
}

func (s *Server) handleClearMessages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cleared, err := s.history.Clear(r.Context())
		if err != nil {
			s.writeError(w, r, apperrors.NewStoreError("clear", err))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		response := map[string]interface{}{
			"message": "Chat cleared successfully",
			"cleared": cleared,
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			s.logger.WithError(err).Error("Failed to encode clear response")
		}
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, appErr *apperrors.AppError) {
	requestID := tracing.GetRequestID(r.Context())

	s.logger.WithError(appErr).WithFields(logrus.Fields{
		service.LogFieldRequestID: requestID,
		service.LogFieldEndpoint:  r.URL.Path,
		service.LogFieldMethod:    r.Method,
	}).Error("Request failed")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apperrors.HTTPStatusCode(appErr))
	if err := json.NewEncoder(w).Encode(apperrors.ToHTTPResponse(appErr, requestID)); err != nil {
		s.logger.WithError(err).Error("Failed to encode error response")
	}
}
