package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/portfoliovalue/backend/internal/api/handlers"
	custommiddleware "github.com/portfoliovalue/backend/internal/api/middleware"
	"github.com/portfoliovalue/backend/internal/config"
	"github.com/portfoliovalue/backend/internal/repository"
	"github.com/portfoliovalue/backend/internal/service"
)

// Services bundles everything the router exposes over HTTP.
type Services struct {
	System      *service.SystemService
	Portfolio   *service.PortfolioService
	Transaction *service.TransactionService
	Valuation   *service.ValuationService
	Recalc      *service.RecalculatorService
	Valuations  *repository.ValuationRepository
}

// NewRouter creates and configures the HTTP router
func NewRouter(svc Services, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(custommiddleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS middleware
	corsMiddleware := custommiddleware.NewCORS(cfg.CORS.AllowedOrigins)
	r.Use(corsMiddleware.Handler)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// System namespace
		r.Route("/system", func(r chi.Router) {
			systemHandler := handlers.NewSystemHandler(svc.System)
			r.Get("/health", systemHandler.Health)
			r.Get("/version", systemHandler.Version)
		})

		portfolioHandler := handlers.NewPortfolioHandler(svc.Portfolio, svc.Valuation)
		transactionHandler := handlers.NewTransactionHandler(svc.Transaction)
		valuationHandler := handlers.NewValuationHandler(svc.Valuation, svc.Recalc, svc.Valuations)

		r.Route("/portfolio", func(r chi.Router) {
			r.Get("/", portfolioHandler.Portfolios)
			r.Post("/", portfolioHandler.CreatePortfolio)

			r.Route("/{uuid}", func(r chi.Router) {
				r.Use(custommiddleware.ValidateUUIDMiddleware)
				r.Get("/", portfolioHandler.GetPortfolio)
				r.Put("/", portfolioHandler.UpdatePortfolio)
				r.Get("/positions", portfolioHandler.Positions)
				r.Get("/transaction", transactionHandler.TransactionsPerPortfolio)
				r.Get("/realized-gains", transactionHandler.RealizedGains)
				r.Get("/value", valuationHandler.CalculateValue)
				r.Get("/valuation", valuationHandler.ValuationHistory)
				r.Get("/valuation-state", valuationHandler.ValuationState)
				r.With(custommiddleware.APIKeyMiddleware).Post("/recalculate", valuationHandler.Recalculate)
			})
		})

		r.Route("/transaction", func(r chi.Router) {
			r.Post("/", transactionHandler.CreateTransaction)

			r.Route("/{uuid}", func(r chi.Router) {
				r.Use(custommiddleware.ValidateUUIDMiddleware)
				r.Get("/", transactionHandler.GetTransaction)
				r.Put("/", transactionHandler.UpdateTransaction)
				r.Delete("/", transactionHandler.DeleteTransaction)
			})
		})
	})

	return r
}
