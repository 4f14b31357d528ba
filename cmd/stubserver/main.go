package main

import (
	"log"
	"time"

	"townsq/internal/stub"
	"townsq/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	data := stub.NewDataset()
	stub.Seed(data)

	server := stub.NewServer(data, cfg.JWTSecret, time.Duration(cfg.JWTExpiry)*time.Second)

	log.Printf("Starting stub server on port %s...", cfg.ServerPort)
	log.Fatal(server.Start(cfg.ServerPort))
}
