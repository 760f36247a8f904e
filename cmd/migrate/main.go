package main

import (
	"micropaper/internal/config" // Custom import path (Config)
	"micropaper/internal/db"     // Custom import path (Database)

	"github.com/sirupsen/logrus" // Logrus for structured logging
)

// Main entry point for migration
func main() {
	cfg := config.LoadConfig() // Load configuration

	dsn := cfg.DSN() // MySQL Data Source Name
	if dsn == "" {
		logrus.Fatal("DB_HOST is required to run migrations")
	}
	db.Migrate(dsn)
}
