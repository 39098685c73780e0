package main

import (
	"flag"
	"log"
	"os"

	"ChartDash/internal/di"
	"ChartDash/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s instance=%s backend=%s", cfg.Environment, cfg.InstanceID, cfg.Backend.BaseURL)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	if cfg.Kafka.Enabled {
		log.Printf("kafka: brokers=%v events=%s logs=%s", cfg.Kafka.Brokers, cfg.Kafka.EventsTopic, cfg.Kafka.LogsTopic)
	}

	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
