package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/Simplici0/kalkia/internal/calculation"
	"github.com/Simplici0/kalkia/internal/catalog"
	"github.com/Simplici0/kalkia/internal/config"
	"github.com/Simplici0/kalkia/internal/db"
	"github.com/Simplici0/kalkia/internal/logger"
	"github.com/Simplici0/kalkia/internal/migrations"
	"github.com/Simplici0/kalkia/internal/pricing"
	"github.com/Simplici0/kalkia/internal/snapshot"
)

type server struct {
	db      *sql.DB
	catalog *catalog.Repository
	calc    *calculation.Service
	log     zerolog.Logger
}

func newServer(database *sql.DB, cfg config.Config, log zerolog.Logger) *server {
	repo := catalog.NewRepository(database)
	engine := pricing.NewEngine(
		pricing.WithWorkers(cfg.Workers),
		pricing.WithContextCache(pricing.NewContextCache()),
		pricing.WithThresholds(cfg.Thresholds()),
	)
	svc := calculation.NewService(repo, snapshot.NewStore(database), engine, cfg.Defaults, cfg.Currency, log)
	return &server{db: database, catalog: repo, calc: svc, log: log}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.IsDev(), cfg.LogLevel)

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer database.Close()

	if cfg.IsDev() {
		applied, err := migrations.Up(context.Background(), database)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to run database migrations")
		}
		log.Info().Int("applied", applied).Msg("migrations up to date")
	}

	srv := newServer(database, cfg, log)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("graceful shutdown failed")
		}
	}()

	log.Info().Str("addr", httpServer.Addr).Msg("starting kalkia server")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
	log.Info().Msg("server stopped")
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.handleHealth)
	r.Get("/profiles", s.handleProfilesList)
	r.Route("/calculations", func(r chi.Router) {
		r.Get("/", s.handleCalculationsList)
		r.Post("/", s.handleCalculationCreate)
		r.Get("/{id}", s.handleCalculationGet)
		r.Get("/{id}/text", s.handleCalculationText)
		r.Get("/{id}/offer.xlsx", s.handleCalculationXLSX)
		r.Post("/{id}/revisions", s.handleCalculationRevise)
	})
	return r
}

func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.PingContext(r.Context()); err != nil {
		s.log.Error().Err(err).Msg("health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleProfilesList(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.catalog.Profiles(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}
