package main

import (
	"context"
	"strconv"
	"time"

	"github.com/poolworks/navengine/internal/config"
	"github.com/poolworks/navengine/internal/ledger"
	"github.com/poolworks/navengine/internal/logger"
	"github.com/poolworks/navengine/internal/positions"
	"github.com/poolworks/navengine/internal/pricing"
	"github.com/poolworks/navengine/internal/registry"
	"github.com/poolworks/navengine/internal/state"
	"github.com/poolworks/navengine/internal/valuation"
	"github.com/poolworks/navengine/internal/venues"
	"github.com/poolworks/navengine/internal/web"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	REFRESH_INTERVAL = 10 * time.Minute
)

// main is the entry point for the pool accounting engine.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(config.LogLevel)
	log.Info().Msg("Pool accounting engine starting...")

	// Initialize Database Connection
	db, err := state.Connect(state.DBConfig{
		Host: config.DBHost, Port: int(config.DBPort),
		User: config.DBUser, Password: config.DBPassword,
		DBName: config.DBName, SSLMode: config.DBSSLMode,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()
	if err := state.EnsureSchema(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}

	store, err := state.NewPostgresStore(db)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize store")
	}

	// --- 2. External Collaborators ---
	converter, err := pricing.NewClient(config.PricingRPC)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize pricing client")
	}
	venueClient, err := venues.NewClient(config.VenuesRPC)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize venue client")
	}

	// --- 3. Core Components with Dependency Injection ---
	aggregator, err := positions.NewAggregator(venueClient, venueClient, venueClient)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize position aggregator")
	}
	engine, err := valuation.NewEngine(store, aggregator, converter)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize valuation engine")
	}
	sweeper, err := registry.NewSweeper(store, venueClient, venueClient, venueClient)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize sweeper")
	}
	coreLedger, err := ledger.NewLedger(store, engine, sweeper, converter, config.MinDepositBaseUnits)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize ledger")
	}

	// --- 4. Web Server ---
	webPort := strconv.FormatUint(config.WebPort, 10)
	webServer := web.NewWebServer(webPort, store, engine, coreLedger, func() error {
		return state.TestDBConnection(db)
	})
	go func() {
		log.Info().Str("port", webPort).Msg("Starting HTTP API")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()

	// --- 5. Background Refresh Loop ---
	coreLedger.RunRefreshLoop(context.Background(), REFRESH_INTERVAL)
}
