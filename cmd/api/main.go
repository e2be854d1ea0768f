package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/perfkit/lighthouse-compare/internal/auditor"
	"github.com/perfkit/lighthouse-compare/internal/cleanup"
	"github.com/perfkit/lighthouse-compare/internal/config"
	"github.com/perfkit/lighthouse-compare/internal/handler"
	"github.com/perfkit/lighthouse-compare/internal/observability"
	"github.com/perfkit/lighthouse-compare/internal/storage"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: dsn}); err != nil {
			log.Fatalf("Failed to initialize sentry: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	shutdownTracing, err := observability.SetupTracing(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}
	defer shutdownTracing(ctx)

	aud, err := auditor.New(cfg.Auditor)
	if err != nil {
		log.Fatalf("Failed to initialize auditor: %v", err)
	}

	storageService, err := storage.NewService(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize storage service: %v", err)
	}

	h := handler.NewHandler(cfg, aud, storageService)

	// Start background cleanup
	cleanup.Start(cfg.Cleanup.MaxAge)

	mux := http.NewServeMux()

	// Register routes with Go 1.22+ patterns
	mux.HandleFunc("POST /api/audit", h.HandleAudit)
	mux.HandleFunc("GET /api/result/{id}", h.HandleGetResult)
	mux.HandleFunc("DELETE /api/result/{id}", h.HandleDeleteResult)

	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Apply middleware: Tracing -> Logger -> Recoverer -> Auth -> Mux
	// Note: AuthMiddleware only checks /api paths, so wrapping the whole mux is fine.

	finalHandler := h.AuthMiddleware(mux)
	finalHandler = recoverMiddleware(finalHandler)
	finalHandler = loggingMiddleware(finalHandler)
	finalHandler = otelhttp.NewHandler(finalHandler, "http.server")

	log.Printf("Server starting on port %s", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, finalHandler); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log.Printf("Started %s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
		log.Printf("Completed %s %s in %v", r.Method, r.URL.Path, time.Since(start))
	})
}

func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				sentry.CurrentHub().Recover(err)
				log.Printf("Panic: %v", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
