package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/portfoliovalue/backend/internal/api"
	"github.com/portfoliovalue/backend/internal/config"
	"github.com/portfoliovalue/backend/internal/database"
	"github.com/portfoliovalue/backend/internal/pricefeed"
	"github.com/portfoliovalue/backend/internal/repository"
	"github.com/portfoliovalue/backend/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Open database connection
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	log.Printf("Connected to database: %s", cfg.Database.Path)

	// Create repositories
	portfolioRepo := repository.NewPortfolioRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	priceRepo := repository.NewPriceRepository(db)
	valuationRepo := repository.NewValuationRepository(db)
	stateRepo := repository.NewValuationStateRepository(db)
	realizedGainRepo := repository.NewRealizedGainLossRepository(db)

	// Create services
	feed := pricefeed.NewClient()
	locks := service.NewPortfolioLocks()

	systemService := service.NewSystemService(db)
	portfolioService := service.NewPortfolioService(portfolioRepo)
	recalculator := service.NewRecalculatorService(
		transactionRepo,
		priceRepo,
		valuationRepo,
		stateRepo,
		portfolioRepo,
		locks,
	)
	transactionService := service.NewTransactionService(
		transactionRepo,
		realizedGainRepo,
		portfolioRepo,
		stateRepo,
		recalculator,
		locks,
	)
	valuationService := service.NewValuationService(
		transactionRepo,
		priceRepo,
		portfolioRepo,
		feed,
	)
	priceService := service.NewPriceService(priceRepo, transactionRepo, feed)
	schedulerService := service.NewSchedulerService(
		priceService,
		recalculator,
		portfolioRepo,
		valuationRepo,
		stateRepo,
	)

	// Nightly maintenance: refresh prices, then bring every portfolio's
	// valuation series up to date.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Scheduler.DailyUpdate, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		if err := schedulerService.RunDailyUpdate(ctx); err != nil {
			log.Printf("daily update finished with errors: %v", err)
		}
	}); err != nil {
		log.Fatalf("Failed to schedule daily update: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Create router
	router := api.NewRouter(api.Services{
		System:      systemService,
		Portfolio:   portfolioService,
		Transaction: transactionService,
		Valuation:   valuationService,
		Recalc:      recalculator,
		Valuations:  valuationRepo,
	}, cfg)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting server on %s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
