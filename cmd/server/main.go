package main

import (
	"context"
	"log"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/nexa-labs/wavechat-backend/internal/router"
	"github.com/nexa-labs/wavechat-backend/pkg/config"
	"github.com/nexa-labs/wavechat-backend/pkg/firebase"
	"github.com/nexa-labs/wavechat-backend/pkg/logger"
	"github.com/nexa-labs/wavechat-backend/validators"
)

func main() {
	// Load configuration
	cfg := config.Load()

	logg := logger.New(logger.Options{
		ServiceName: "wavechat-api",
		Level:       logger.ParseLevel(cfg.LogLevel),
		Output:      os.Stdout,
	})

	// Initialize database connections
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize databases: %v", err)
	}
	defer db.CloseDB() // Ensure database connections are closed when main exits

	// Initialize Firebase
	ctx := context.Background()
	firebaseApp, err := firebase.InitFirebase(ctx, cfg.FirebaseCredPath)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase: %v", err)
	}

	// Create Echo instance
	e := echo.New()

	// Setup global middleware
	router.SetupMiddleware(e)

	// Setup routes and dependencies
	router.SetupRoutes(e, logg, cfg, db, firebaseApp.AuthClient)

	// Validator
	e.Validator = validators.NewValidator()

	// Start server
	e.Logger.Fatal(e.Start(":" + cfg.Port))
}
