package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/DeafMist/tweet-radar/internal/analysis"
	"github.com/DeafMist/tweet-radar/internal/backend"
	"github.com/DeafMist/tweet-radar/internal/config"
	"github.com/DeafMist/tweet-radar/internal/logger"
	"github.com/DeafMist/tweet-radar/internal/models"
	"github.com/DeafMist/tweet-radar/internal/report"
	"github.com/DeafMist/tweet-radar/internal/store"
)

func main() {
	_ = godotenv.Load()

	log := logger.New("api")
	cfg, err := config.LoadAPI()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	s, err := backend.Open(ctx, cfg.Common, log)
	if err != nil {
		log.Error("store unavailable", slog.Any("err", err))
		os.Exit(1)
	}
	defer s.Close(context.Background())

	sinks, closeSinks := report.Open(cfg.Report)
	defer closeSinks()

	srv := &server{log: log, store: s, analyzer: analysis.New(s, log, sinks...)}

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      2 * time.Minute,
	}

	go func() {
		log.Info("api server starting", slog.String("addr", cfg.BindAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", slog.Any("err", err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", slog.Any("err", err))
	}
}

type pinger interface {
	Ping(ctx context.Context) error
}

type reporter interface {
	Run(ctx context.Context, term string) (models.Report, error)
}

type server struct {
	log      *slog.Logger
	store    pinger
	analyzer reporter
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/report", s.handleReport)
	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "store unavailable"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleReport(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Minute)
	defer cancel()

	rep, err := s.analyzer.Run(ctx, r.URL.Query().Get("term"))
	if err != nil {
		switch {
		case errors.Is(err, analysis.ErrPublish):
			s.log.Warn("report not delivered",
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.Any("err", err),
			)
			writeJSON(w, http.StatusOK, rep)
		case errors.Is(err, analysis.ErrInvalidTerm):
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		case errors.Is(err, store.ErrUnavailable):
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "store unavailable"})
		default:
			s.log.Error("report failed",
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.Any("err", err),
			)
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "report failed"})
		}
		return
	}

	writeJSON(w, http.StatusOK, rep)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		// nothing better to do
	}
}
