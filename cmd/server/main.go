// Package main runs the publishing API server.
package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	app "github.com/sitewrap/platform/internal/app"
	"github.com/sitewrap/platform/internal/app/httpapi"
	"github.com/sitewrap/platform/internal/app/metrics"
	"github.com/sitewrap/platform/internal/app/storage/postgres"
	"github.com/sitewrap/platform/internal/config"
	"github.com/sitewrap/platform/internal/middleware"
	"github.com/sitewrap/platform/pkg/logger"
)

func main() {
	// Local development convenience; absent .env files are fine.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.NewDefault("server").WithError(err).Error("load configuration")
		os.Exit(1)
	}

	log := logger.New("server", cfg.LogLevel)

	stores, closeDB, err := buildStores(cfg, log)
	if err != nil {
		log.WithError(err).Error("initialize storage")
		os.Exit(1)
	}
	defer closeDB()

	application, err := app.New(stores, log)
	if err != nil {
		log.WithError(err).Error("initialize application")
		os.Exit(1)
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, log)
	stopLimiterCleanup := limiter.StartCleanup(10 * time.Minute)
	defer stopLimiterCleanup()

	handler, err := buildRouter(cfg, application, limiter, log)
	if err != nil {
		log.WithError(err).Error("initialize router")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Start(ctx); err != nil {
		log.WithError(err).Error("start services")
		os.Exit(1)
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.Server.Addr).Info("listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		log.WithError(err).Error("server stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("service shutdown")
	}
}

func buildStores(cfg config.Config, log *logger.Logger) (app.Stores, func(), error) {
	if cfg.Postgres.DSN == "" {
		log.Warn("DATABASE_URL not set; using in-memory storage")
		return app.Stores{}, func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.Postgres.DSN)
	if err != nil {
		return app.Stores{}, nil, err
	}
	store := postgres.New(db)
	if err := store.EnsureSchema(context.Background()); err != nil {
		db.Close()
		return app.Stores{}, nil, err
	}
	log.Info("postgres storage ready")
	return app.Stores{Apps: store, Publishes: store, Revenue: store}, func() { db.Close() }, nil
}

func buildRouter(cfg config.Config, application *app.Application, limiter *middleware.RateLimiter, log *logger.Logger) (http.Handler, error) {
	sink, err := httpapi.NewFileAuditSink(cfg.AuditLogPath)
	if err != nil {
		return nil, err
	}
	audit := httpapi.NewAuditLog(0, sink)
	api := httpapi.NewHandlerWithAudit(application, audit)

	router := mux.NewRouter()
	router.Use(middleware.RequestID())
	router.Use(middleware.Logging(log))

	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)
	router.PathPrefix("/").Handler(api)

	var handler http.Handler = router
	handler = metrics.InstrumentHandler(handler)

	handler = limiter.Handler(handler)

	if pemData := cfg.Auth.PublicKeyPEM; pemData != "" {
		publicKey, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pemData))
		if err != nil {
			return nil, err
		}
		auth := middleware.NewAuthMiddleware(publicKey, log, cfg.AuthSkipPaths())
		handler = auth.Handler(handler)
	} else {
		log.Warn("AUTH_PUBLIC_KEY_PEM not set; API is unauthenticated")
	}

	cors := middleware.NewCORSMiddleware(cfg.CORSOrigins())
	return cors.Handler(handler), nil
}
