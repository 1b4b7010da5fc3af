// Package api is the thin command and feed layer around the matching
// engine: REST endpoints turn inbound JSON into typed requests for the
// worker, and a WebSocket hub streams the tape outwards. No matching
// logic lives here.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/davout/gekko/pkg/book"
	"github.com/davout/gekko/pkg/engine"
)

// Server exposes one matching engine over REST and WebSocket.
type Server struct {
	engine *engine.Engine
	router *mux.Router
	hub    *Hub
	log    *zap.SugaredLogger
}

func NewServer(eng *engine.Engine, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		engine: eng,
		router: mux.NewRouter(),
		hub:    NewHub(logger),
		log:    logger.Sugar(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/orders", s.handleSubmitOrder).Methods("POST")
	api.HandleFunc("/orders/cancel", s.handleCancelOrder).Methods("POST")
	api.HandleFunc("/ticker", s.handleGetTicker).Methods("GET")
	api.HandleFunc("/book", s.handleGetBook).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// PublishEvent forwards one tape event to the WebSocket feed. Wired as
// the engine's OnEvent callback.
func (s *Server) PublishEvent(e *book.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		s.log.Errorw("event_marshal_failed", "err", err)
		return
	}
	s.hub.Broadcast(data)
}

// Start runs the WebSocket hub and serves HTTP on addr. Blocks.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})

	s.log.Infow("api_listening", "addr", addr)
	return http.ListenAndServe(addr, c.Handler(s.router))
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	order, err := req.ToOrder()
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order", err.Error())
		return
	}

	if err := s.engine.SubmitOrder(r.Context(), order); err != nil {
		respondError(w, http.StatusServiceUnavailable, "engine unavailable", err.Error())
		return
	}

	respondJSON(w, OrderResponse{OrderID: order.ID.String(), Status: "accepted"})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	id, err := uuid.Parse(req.OrderID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order id", err.Error())
		return
	}

	if err := s.engine.CancelOrder(r.Context(), id); err != nil {
		respondError(w, http.StatusServiceUnavailable, "engine unavailable", err.Error())
		return
	}

	respondJSON(w, OrderResponse{OrderID: id.String(), Status: "accepted"})
}

func (s *Server) handleGetTicker(w http.ResponseWriter, r *http.Request) {
	ticker, err := s.engine.Ticker(r.Context())
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "engine unavailable", err.Error())
		return
	}
	respondJSON(w, ticker)
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	depth, err := s.engine.Depth(r.Context())
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "engine unavailable", err.Error())
		return
	}
	respondJSON(w, depth)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, errMsg, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: errMsg, Message: message})
}
