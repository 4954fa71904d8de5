package main

import (
	"context" // Context for store operations

	"passport_studio/internal/config"  // Custom import path (Config)
	"passport_studio/internal/db"      // Custom import path (Database)
	"passport_studio/internal/notify"  // In-process events
	"passport_studio/internal/service" // Account seeding
	"passport_studio/internal/utils"   // Cache

	"github.com/sirupsen/logrus" // Logrus for structured logging
)

// Main entry point for migration
func main() {
	cfg := config.LoadConfig() // Load configuration
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	st, conn, err := db.OpenStore(cfg)
	if err != nil {
		logrus.Fatalf("failed to open store: %v", err)
	}
	if conn != nil {
		if err := db.Migrate(conn); err != nil {
			logrus.Fatalf("%v", err)
		}
	}

	// Seed the operator account
	if cfg.AdminPassword == "" {
		logrus.Warn("ADMIN_PASSWORD is not set, skipping admin seed")
		return
	}
	ledger := service.NewLedger(st, utils.NopCache{}, notify.NewLocalBroker())
	users := service.NewUsers(st, ledger, cfg.Policy())
	admin, created, err := users.EnsureAdmin(context.Background(), cfg.AdminUsername, cfg.AdminPassword, cfg.AdminName)
	if err != nil {
		logrus.Fatalf("failed to seed admin: %v", err)
	}
	logrus.WithFields(logrus.Fields{"username": admin.Username, "created": created}).Info("Admin account ready")
}
