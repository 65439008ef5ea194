package config

import (
	"github.com/rs/zerolog/log"
)

// Endpoint configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// PricingRPC is the JSON-RPC endpoint of the price conversion service.
	PricingRPC string
	// VenuesRPC is the JSON-RPC endpoint of the venue gateway.
	VenuesRPC string
)

// loadEndpointConfig loads endpoint configuration from environment variables.
// This function is called by LoadConfig() in General.go.
func loadEndpointConfig() error {
	log.Info().Msg("Loading endpoint configuration from environment variables...")

	var err error

	PricingRPC, err = getEnv("PRICING_RPC_ENDPOINT")
	if err != nil {
		return err
	}

	VenuesRPC, err = getEnv("VENUES_RPC_ENDPOINT")
	if err != nil {
		return err
	}

	log.Debug().
		Str("PricingRPC", PricingRPC).
		Str("VenuesRPC", VenuesRPC).
		Msg("Endpoint configuration loaded successfully.")

	return nil
}
