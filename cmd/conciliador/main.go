package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Taff4/conciliador-notas/internal/amount"
	"github.com/Taff4/conciliador-notas/internal/api"
	"github.com/Taff4/conciliador-notas/internal/config"
	"github.com/Taff4/conciliador-notas/internal/logger"
	"github.com/Taff4/conciliador-notas/internal/matcher"
	"github.com/Taff4/conciliador-notas/internal/metrics"
)

func main() {
	log := logger.Get()
	cfg := config.Load()

	log.Info().
		Str("port", cfg.Port).
		Int("default_depth", cfg.Matcher.DefaultDepth).
		Int("max_depth", cfg.Matcher.MaxDepth).
		Int("workers", cfg.Matcher.Workers).
		Msg("starting note reconciliation service")

	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	searcher := matcher.New(
		matcher.WithWorkers(cfg.Matcher.Workers),
		matcher.WithReachabilityLimit(amount.Amount(cfg.Matcher.ReachabilityLimit)),
		matcher.WithLogger(*logger.Named("matcher")),
	)

	router := api.SetupRouter(api.Deps{
		Config:   cfg,
		Searcher: searcher,
		Metrics:  metrics.NewRecorder(),
		Limiter:  api.NewRateLimiter(ctx, cfg.RateLimit.PerMinute, cfg.RateLimit.Burst),
		Log:      logger.Named("api"),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
