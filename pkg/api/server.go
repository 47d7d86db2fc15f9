package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/quantfold/orderpilot/pkg/order"
	"github.com/quantfold/orderpilot/pkg/pipeline"
	"github.com/quantfold/orderpilot/pkg/scheduler"
	"github.com/quantfold/orderpilot/pkg/storage"
)

// Server is the transport boundary: it turns HTTP submissions into store
// creates plus scheduler enqueues, and WebSocket subscriptions into
// broadcaster subscriptions.
type Server struct {
	store  storage.Store
	sched  *scheduler.Scheduler
	bc     *pipeline.Broadcaster
	router *mux.Router
	log    *zap.SugaredLogger
}

func NewServer(log *zap.SugaredLogger, store storage.Store, sched *scheduler.Scheduler, bc *pipeline.Broadcaster) *Server {
	s := &Server{
		store:  store,
		sched:  sched,
		bc:     bc,
		router: mux.NewRouter(),
		log:    log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/orders", s.handleSubmitOrder).Methods("POST")
	api.HandleFunc("/orders", s.handleListOrders).Methods("GET")
	api.HandleFunc("/orders/{id}", s.handleGetOrder).Methods("GET")
	api.HandleFunc("/stats", s.handleStats).Methods("GET")

	// WebSocket endpoint for lifecycle event streams
	s.router.HandleFunc("/ws", s.handleWebSocket)

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start serves HTTP on addr. Blocks until the listener fails.
func (s *Server) Start(addr string) error {
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
	})
	handler := c.Handler(s.router)

	s.log.Infow("api_server_starting", "addr", addr)
	return http.ListenAndServe(addr, handler)
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req SubmitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	kind := order.Kind(req.Kind)
	if req.Kind == "" {
		kind = order.KindLimit
	}

	o, err := order.New(req.TokenIn, req.TokenOut, req.AmountIn, kind, req.LimitPrice)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order", err.Error())
		return
	}
	if req.Slippage != nil {
		o.Slippage = *req.Slippage
		if err := o.Validate(); err != nil {
			respondError(w, http.StatusBadRequest, "invalid order", err.Error())
			return
		}
	}

	if err := s.store.Create(o); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to persist order", err.Error())
		return
	}
	s.sched.Submit(o.ID)

	s.log.Infow("order_submitted",
		"order_id", o.ID,
		"pair", o.Pair(),
		"amount_in", o.AmountIn.String(),
		"limit_price", o.LimitPrice.String())

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(SubmitOrderResponse{Status: "accepted", OrderID: o.ID})
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	o, ok, err := s.store.Get(id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load order", err.Error())
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, "order not found", "")
		return
	}
	respondJSON(w, o)
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.store.List()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list orders", err.Error())
		return
	}
	if orders == nil {
		orders = []*order.Order{}
	}
	respondJSON(w, orders)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.sched.Stats()

	counts, err := s.store.CountByStatus()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to count orders", err.Error())
		return
	}
	statusCounts := make(map[string]int, len(counts))
	for st, n := range counts {
		statusCounts[string(st)] = n
	}

	respondJSON(w, StatsResponse{
		Waiting:      stats.Waiting,
		Active:       stats.Active,
		Completed:    stats.Completed,
		Failed:       stats.Failed,
		StatusCounts: statusCounts,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Helper Functions
// ==============================

func respondJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, errMsg string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   errMsg,
		Message: message,
	})
}
