package main

import (
	"log"

	"github.com/joho/godotenv"

	"timetable/cmd"
	"timetable/internal/config"
	"timetable/internal/logger"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	// Logging is configured before any command runs; commands load the
	// configuration again and report its errors themselves.
	logConfig := logger.DefaultConfig()
	if cfg, err := config.Load(); err == nil {
		logConfig = cfg.GetLoggerConfig()
	}
	if err := logger.Setup(logConfig); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	cmd.Execute()
}
