package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"covergate-backend/config"
	"covergate-backend/container"
	"covergate-backend/middleware"
	"covergate-backend/storage/auth"
)

func main() {
	cfg, err := config.Load(os.Getenv("COVERGATE_CONFIG"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	c, err := container.NewContainer(context.Background(), cfg)
	if err != nil {
		log.Fatalf("init container: %v", err)
	}
	defer c.Close()

	// Set up middleware chain
	mux := http.NewServeMux()

	// Apply middleware to all routes
	handler := middleware.Recovery(
		middleware.Logging(
			middleware.CORS(
				middleware.SecurityHeaders(
					middleware.RateLimit(300, time.Minute)(
						middleware.Timeout(cfg.RequestTimeout())(
							setupRoutes(mux, c),
						),
					),
				),
			),
		),
	)

	log.Printf("Server starting on :%s", cfg.Port)
	log.Printf("Quote API at: http://localhost:%s/api/quotes", cfg.Port)
	log.Printf("Catalog API at: http://localhost:%s/api/catalog/providers", cfg.Port)
	log.Printf("Metrics at: http://localhost:%s/metrics", cfg.Port)

	log.Fatal(http.ListenAndServe(":"+cfg.Port, handler))
}

func setupRoutes(mux *http.ServeMux, c *container.Container) http.Handler {
	// Health endpoints
	mux.HandleFunc("/api/health", c.HealthHandler.HandleHealth)

	// Quote lifecycle endpoints
	mux.HandleFunc("/api/quotes", c.QuoteHandler.HandleQuotes)
	mux.HandleFunc("/api/quotes/", c.QuoteHandler.HandleQuoteByID)
	mux.HandleFunc("/api/collect", c.QuoteHandler.HandleCollect)
	mux.HandleFunc("/api/pending", c.QuoteHandler.HandlePending)

	// Catalog endpoints
	mux.HandleFunc("/api/catalog/providers", c.CatalogHandler.HandleProviders)
	mux.HandleFunc("/api/catalog/providers/", c.CatalogHandler.HandleProviders)

	// Admin endpoints, gated at the route level
	adminOnly := middleware.RequireRole(c.Keys, auth.RoleAdmin)
	mux.Handle("/api/admin/pause", adminOnly(http.HandlerFunc(c.AdminHandler.HandlePause)))
	mux.Handle("/api/admin/resume", adminOnly(http.HandlerFunc(c.AdminHandler.HandleResume)))

	// Wallet registration endpoints
	mux.HandleFunc("/api/auth/challenge", c.APIKeyHandler.HandleChallenge)
	mux.HandleFunc("/api/auth/register", c.APIKeyHandler.HandleRegister)
	mux.HandleFunc("/api/auth/login", c.APIKeyHandler.HandleLogin)

	// Prometheus metrics
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}
