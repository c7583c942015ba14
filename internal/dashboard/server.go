// Package dashboard exposes the engine over a small JSON API. It is a
// thin presentation layer: every calculation lives behind the engine, the
// handlers only translate HTTP to engine calls.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/vectorprofit/collarroll/internal/engine"
	"github.com/vectorprofit/collarroll/internal/goalseek"
	"github.com/vectorprofit/collarroll/internal/models"
	"github.com/vectorprofit/collarroll/internal/rollover"
	"github.com/vectorprofit/collarroll/internal/storage"
)

// Config holds the server settings.
type Config struct {
	Port      int
	AuthToken string
}

// Server is the HTTP front of the engine.
type Server struct {
	router    *chi.Mux
	server    *http.Server
	engine    *engine.Engine
	logger    *logrus.Logger
	port      int
	authToken string
}

// NewServer wires the routes over an engine.
func NewServer(cfg Config, eng *engine.Engine, logger *logrus.Logger) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		engine:    eng,
		logger:    logger,
		port:      cfg.Port,
		authToken: cfg.AuthToken,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	if s.authToken != "" {
		s.router.Use(s.authMiddleware)
	}

	s.router.Get("/health", s.handleHealth)

	s.router.Get("/api/report", s.handleGetReport)
	s.router.Get("/api/position/{slot}", s.handleGetPosition)
	s.router.Get("/api/payout", s.handleGetPayout)
	s.router.Get("/api/rollover", s.handleGetRollover)
	s.router.Get("/api/basket", s.handleGetBasket)
	s.router.Get("/api/chain/{asset}", s.handleGetChain)

	s.router.Post("/api/inputs", s.handleUpdateInputs)
	s.router.Post("/api/view/{slot}", s.handleSetView)
	s.router.Post("/api/pair", s.handleSelectPair)
	s.router.Post("/api/position/{slot}/assemble", s.handleAssemble)
	s.router.Post("/api/position/{slot}/reset", s.handleReset)
	s.router.Post("/api/goalseek/flow", s.handleGoalSeekFlow)
	s.router.Post("/api/goalseek/profit", s.handleGoalSeekProfit)
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		token := r.Header.Get("X-Auth-Token")
		if token == "" {
			token = r.URL.Query().Get("token")
		}

		if token != s.authToken {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.router,
	}

	s.logger.Infof("starting dashboard server on port %d", s.port)
	return s.server.ListenAndServe()
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
	})
}

func (s *Server) handleGetReport(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, s.engine.Report())
}

func (s *Server) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	slot := storage.Slot(strings.ToUpper(chi.URLParam(r, "slot")))
	rep := s.engine.Report()
	if string(slot) == rep.View {
		s.writeJSON(w, map[string]interface{}{
			"position":  rep.Position,
			"valuation": rep.Valuation,
		})
		return
	}

	// A non-active slot is served straight from storage, unpriced.
	pos, err := s.loadSlot(slot)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, map[string]interface{}{"position": pos})
}

func (s *Server) loadSlot(slot storage.Slot) (models.Position, error) {
	if !slot.Valid() && slot != storage.SlotCombined {
		return models.Position{}, fmt.Errorf("%w: %q", storage.ErrUnknownSlot, slot)
	}
	return s.engine.LoadPosition(slot)
}

func (s *Server) handleGetPayout(w http.ResponseWriter, _ *http.Request) {
	rep := s.engine.Report()
	s.writeJSON(w, map[string]interface{}{
		"assembly": rep.AssemblyCurve,
		"position": rep.PositionCurve,
	})
}

func (s *Server) handleGetRollover(w http.ResponseWriter, _ *http.Request) {
	rep := s.engine.Report()
	s.writeJSON(w, map[string]interface{}{
		"flow":             rep.Flow,
		"summary":          rep.Summary,
		"target_plus_cost": rep.TargetCost,
		"warnings":         rep.Warnings,
	})
}

func (s *Server) handleGetBasket(w http.ResponseWriter, _ *http.Request) {
	rep := s.engine.Report()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	for _, line := range rep.Basket {
		fmt.Fprintln(w, line)
	}
}

func (s *Server) handleGetChain(w http.ResponseWriter, r *http.Request) {
	src := s.engine.Chains()
	if src == nil {
		http.Error(w, "no option chain configured", http.StatusNotFound)
		return
	}
	asset := chi.URLParam(r, "asset")
	spot, err := s.engine.Spot(r.Context(), asset)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, src.Pairs(asset, spot))
}

func (s *Server) handleUpdateInputs(w http.ResponseWriter, r *http.Request) {
	var in engine.Inputs
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if err := s.engine.UpdateInputs(in); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleSetView(w http.ResponseWriter, r *http.Request) {
	slot := storage.Slot(strings.ToUpper(chi.URLParam(r, "slot")))
	if err := s.engine.SetView(slot); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleSelectPair(w http.ResponseWriter, r *http.Request) {
	var pair models.OptionPair
	if err := json.NewDecoder(r.Body).Decode(&pair); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if err := s.engine.SelectPair(pair); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleAssemble(w http.ResponseWriter, r *http.Request) {
	slot := storage.Slot(strings.ToUpper(chi.URLParam(r, "slot")))
	pos, err := s.engine.Assemble(slot)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, pos)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	slot := storage.Slot(strings.ToUpper(chi.URLParam(r, "slot")))
	if err := s.engine.Reset(slot); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type goalSeekRequest struct {
	Target       float64  `json:"target"`
	TargetProfit float64  `json:"target_profit"`
	ProfitPct    *float64 `json:"profit_pct,omitempty"`
}

func (s *Server) handleGoalSeekFlow(w http.ResponseWriter, r *http.Request) {
	var req goalSeekRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	res, err := s.engine.GoalSeekFlow(r.Context(), req.Target)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, res)
}

func (s *Server) handleGoalSeekProfit(w http.ResponseWriter, r *http.Request) {
	var req goalSeekRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	targetProfit := req.TargetProfit
	if req.ProfitPct != nil {
		var err error
		targetProfit, err = s.engine.TargetProfitFromPercent(*req.ProfitPct)
		if err != nil {
			s.writeError(w, err)
			return
		}
	}

	res, err := s.engine.GoalSeekProfit(r.Context(), targetProfit, req.Target)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, res)
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("encoding response")
	}
}

// writeError maps the domain error taxonomy onto HTTP statuses. Every
// failure is terminal for its single request; state stays unchanged.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrInvalidInput),
		errors.Is(err, models.ErrUnwindExceedsPosition),
		errors.Is(err, storage.ErrUnknownSlot),
		errors.Is(err, storage.ErrCombinedReadOnly):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrAssetMismatch):
		status = http.StatusConflict
	case errors.Is(err, rollover.ErrMissingQuote),
		errors.Is(err, goalseek.ErrDegenerateObjective):
		status = http.StatusUnprocessableEntity
	}

	if status == http.StatusInternalServerError {
		s.logger.WithError(err).Error("request failed")
	}
	http.Error(w, err.Error(), status)
}
