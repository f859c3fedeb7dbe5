package main

import (
	"flag"
	"log"
	"os"

	"MarketSentry/internal/di"
	"MarketSentry/pkg/config"
)

// Exit codes: 0 clean shutdown, 1 invalid configuration, 2 Redis or
// ClickHouse could not be reached while wiring dependencies, 3 any error
// returned by App.Run. A venue that cannot be connected or subscribed is
// only detected when App.Run starts the pipeline, so it exits with 3, not 2.
const (
	exitOK                = 0
	exitConfigInvalid     = 1
	exitDependencyFailure = 2
	exitRuntimeFailure    = 3
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Printf("config load failed: %v", err)
		os.Exit(exitConfigInvalid)
	}

	log.Printf("env=%s venues=%d", cfg.Environment, len(cfg.Venues))

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Printf("dependency wiring failed: %v", err)
		os.Exit(exitDependencyFailure)
	}

	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(exitRuntimeFailure)
	}

	os.Exit(exitOK)
}
