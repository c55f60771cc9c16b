package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/earnx/earnx/internal/transport/httpapi/handler"
	"github.com/earnx/earnx/internal/transport/httpapi/middleware"
	"github.com/earnx/earnx/pkg/logger"
)

// Config holds router configuration
type Config struct {
	Logger             *logger.Logger
	AllowedOrigins     []string
	SessionHandler     *handler.SessionHandler
	OpportunityHandler *handler.OpportunityHandler
	MarketHandler      *handler.MarketHandler
	InvestmentHandler  *handler.InvestmentHandler
	StatusHandler      *handler.StatusHandler
	InvoiceHandler     *handler.InvoiceHandler
	HealthHandler      *handler.HealthHandler
	JWTMiddleware      func(http.Handler) http.Handler
	// AdminMiddleware gates the maintenance routes; they are not mounted without it
	AdminMiddleware func(http.Handler) http.Handler
	// RateLimit overrides the default limiter; nil uses middleware.RateLimit()
	RateLimit func(http.Handler) http.Handler
}

// NewRouter creates a new HTTP router
func NewRouter(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	rateLimit := cfg.RateLimit
	if rateLimit == nil {
		rateLimit = middleware.RateLimit()
	}

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(chimiddleware.Compress(5))
	r.Use(rateLimit)

	// Health check endpoints (no authentication required)
	r.Get("/health", handler.GetHealth)
	r.Get("/health/live", handler.GetLiveness)
	if cfg.HealthHandler != nil {
		r.Get("/health/ready", cfg.HealthHandler.GetReadiness)
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		if cfg.SessionHandler != nil {
			r.Post("/session", cfg.SessionHandler.Connect)
			r.Get("/session/network", cfg.SessionHandler.Network)
		}
		if cfg.OpportunityHandler != nil {
			r.Get("/opportunities", cfg.OpportunityHandler.List)
			r.Get("/opportunities/{id}", cfg.OpportunityHandler.Get)
		}
		if cfg.MarketHandler != nil {
			r.Get("/stats", cfg.MarketHandler.Stats)
			r.Get("/market", cfg.MarketHandler.Overview)
		}
		if cfg.InvoiceHandler != nil {
			r.Get("/invoices", cfg.InvoiceHandler.List)
			r.Get("/invoices/{id}/status", cfg.InvoiceHandler.Status)
			r.Get("/verification/oracle", cfg.InvoiceHandler.Oracle)
		}

		// Wallet routes (require a session token)
		if cfg.JWTMiddleware != nil {
			r.Group(func(r chi.Router) {
				r.Use(cfg.JWTMiddleware)

				if cfg.OpportunityHandler != nil {
					r.Get("/portfolio", cfg.OpportunityHandler.Portfolio)
					r.Post("/refresh", cfg.OpportunityHandler.Refresh)
				}

				if cfg.MarketHandler != nil {
					r.Get("/balance", cfg.MarketHandler.Balance)
				}

				if cfg.InvestmentHandler != nil {
					r.Post("/investments", cfg.InvestmentHandler.Invest)
					r.Get("/investments/state", cfg.InvestmentHandler.State)
					r.Post("/faucet", cfg.InvestmentHandler.Faucet)
				}

				if cfg.StatusHandler != nil {
					r.Get("/status", cfg.StatusHandler.List)
					r.Delete("/status/{id}", cfg.StatusHandler.Dismiss)
				}

				if cfg.InvoiceHandler != nil {
					r.Post("/invoices", cfg.InvoiceHandler.Submit)
					r.Get("/supplier/invoices", cfg.InvoiceHandler.Supplied)
					r.Post("/invoices/{id}/verification", cfg.InvoiceHandler.StartVerification)

					if cfg.AdminMiddleware != nil {
						r.Route("/admin", func(r chi.Router) {
							r.Use(cfg.AdminMiddleware)
							r.Post("/prices/refresh", cfg.InvoiceHandler.RefreshPrices)
							r.Post("/protocol/initialize", cfg.InvoiceHandler.InitializeProtocol)
							r.Post("/verification/test", cfg.InvoiceHandler.TestVerification)
						})
					}
				}
			})
		}
	})

	return r
}
