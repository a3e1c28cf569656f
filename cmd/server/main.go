package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"stablehand/internal/app"
	jwttoken "stablehand/internal/jwt_token"
	"stablehand/internal/platform/config"
	"stablehand/internal/platform/httpserver"
	"stablehand/internal/platform/logger"
	platformmetrics "stablehand/internal/platform/metrics"
	"stablehand/internal/selection/handler"
	"stablehand/pkg/platform/httputil"
	adminmw "stablehand/pkg/platform/middleware/admin"
	authmw "stablehand/pkg/platform/middleware/auth"
	"stablehand/pkg/platform/middleware/ratelimit"
	"stablehand/pkg/platform/middleware/request"
	"stablehand/pkg/platform/middleware/requesttime"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal service packages.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := app.Build(ctx, cfg, log, app.Options{ApplySchema: true})
	if err != nil {
		return err
	}
	defer components.Close()

	if components.DB == nil {
		log.Warn("DATABASE_URL not set; selection state is kept in memory")
	}

	router := newRouter(cfg, log, components)
	srv := httpserver.New(cfg.Server.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting stablehand", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return ignoreCancel(components.Archiver.Run(gctx))
	})
	if components.Relay != nil {
		g.Go(func() error {
			return ignoreCancel(components.Relay.Run(gctx))
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newRouter(cfg *config.Config, log *slog.Logger, components *app.App) http.Handler {
	jwtService := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)
	limiter := ratelimit.New(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, log)
	httpMetrics := platformmetrics.New()

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recovery(log))
	r.Use(request.Logger(log))
	r.Use(requesttime.Middleware)
	r.Use(httpMetrics.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	if cfg.Server.AdminToken != "" {
		r.Route("/admin", func(r chi.Router) {
			r.Use(adminmw.RequireAdminToken(cfg.Server.AdminToken, log))
			r.Post("/selection-history/sweep", sweepHandler(components, log))
		})
	}

	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(jwttoken.NewJWTServiceAdapter(jwtService), log))
		r.Use(chimw.Timeout(cfg.Server.RequestTimeout))
		handler.New(components.Service, log, limiter.Middleware).Register(r)
	})
	return r
}

// sweepHandler archives completed processes that are missing history.
func sweepHandler(components *app.App, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		archived, err := components.Archiver.Sweep(r.Context())
		if err != nil {
			log.ErrorContext(r.Context(), "history sweep failed", "error", err)
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]int{
			"archived": archived,
			"pending":  components.Archiver.Pending(),
		})
	}
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
