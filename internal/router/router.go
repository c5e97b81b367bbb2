package router

import (
	"log"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
	eMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/nexa-labs/wavechat-backend/internal/ccu"
	"github.com/nexa-labs/wavechat-backend/internal/handlers"
	"github.com/nexa-labs/wavechat-backend/internal/middleware"
	"github.com/nexa-labs/wavechat-backend/internal/models"
	"github.com/nexa-labs/wavechat-backend/internal/presence"
	"github.com/nexa-labs/wavechat-backend/internal/push"
	"github.com/nexa-labs/wavechat-backend/internal/repositories"
	"github.com/nexa-labs/wavechat-backend/pkg/config"
	"github.com/nexa-labs/wavechat-backend/pkg/logger"
)

// SetupMiddleware configures global Echo middleware
func SetupMiddleware(e *echo.Echo) {
	e.Use(eMiddleware.Recover())
	e.Use(eMiddleware.CORS())
	log.Println("Global middleware configured.")
}

// SetupRoutes configures all application routes and injects dependencies
func SetupRoutes(e *echo.Echo, logg *logger.Logger, cfg *config.Config, db *config.DB, firebaseAuthClient *auth.Client) {
	// AutoMigrate PostgreSQL models
	err := db.Postgres.AutoMigrate(
		&models.User{},
		&models.Notification{},
		&models.Reaction{},
	)
	if err != nil {
		log.Fatalf("Failed to auto migrate models: %v", err)
	}
	log.Println("PostgreSQL auto-migrations completed for all models.")

	mongoDB := db.Mongo.Database(cfg.MongoDatabase)

	// --- Initialize Repositories ---
	userRepo := repositories.NewPostgresUserRepository(db.Postgres)
	notificationRepo := repositories.NewPostgresNotificationRepository(db.Postgres)
	reactionRepo := repositories.NewPostgresReactionRepository(db.Postgres)
	messageRepo := repositories.NewMongoMessageRepository(mongoDB)
	subscriptionRepo := repositories.NewMongoSubscriptionRepository(mongoDB)
	profileRepo := repositories.NewMongoProfileRepository(mongoDB)
	pendingRepo := repositories.NewMongoPendingNotificationRepository(mongoDB)
	cacheRepo := repositories.NewMongoCacheRepository(mongoDB)

	// --- Initialize domain services ---
	sender, err := push.NewWebPushSender(push.WebPushSenderParams{
		Logger:          logg,
		Subscriptions:   subscriptionRepo,
		VAPIDPublicKey:  cfg.VAPIDPublicKey,
		VAPIDPrivateKey: cfg.VAPIDPrivateKey,
		Subscriber:      cfg.VAPIDSubscriber,
	})
	if err != nil {
		log.Fatalf("Failed to initialize web push sender: %v", err)
	}

	engine, err := push.NewEngine(push.EngineParams{
		Logger:     logg,
		Repository: pendingRepo,
		Handler:    sender,
	})
	if err != nil {
		log.Fatalf("Failed to initialize push engine: %v", err)
	}

	tracker, err := presence.NewTracker(presence.TrackerParams{
		Logger:   logg,
		Profiles: profileRepo,
	})
	if err != nil {
		log.Fatalf("Failed to initialize presence tracker: %v", err)
	}

	aggregator, err := ccu.NewAggregator(ccu.AggregatorParams{
		Logger:   logg,
		Profiles: profileRepo,
		Cache:    cacheRepo,
	})
	if err != nil {
		log.Fatalf("Failed to initialize ccu aggregator: %v", err)
	}

	// Health check - always accessible
	healthHandler := handlers.NewHealthHandler(db.Postgres, db.Mongo, cacheRepo)
	e.GET("/health", healthHandler.HealthCheck)

	// --- Unprotected routes for authentication ---
	authGroup := e.Group("/api/v1/auth")
	authHandler := handlers.NewAuthHandler(userRepo, profileRepo, firebaseAuthClient)
	authHandler.RegisterAuthRoutes(authGroup)
	log.Println("Auth routes configured.")

	// --- Protected routes (require JWT authentication) ---
	api := e.Group("/api/v1")
	api.Use(middleware.JWTAuthMiddleware())
	log.Println("JWT authentication middleware applied to /api/v1 group.")

	// User profile routes
	userHandler := handlers.NewUserHandler(userRepo)
	userHandler.RegisterProfileRoutes(api)
	api.GET("/users/search", userHandler.SearchUsers)
	log.Println("User profile routes configured.")

	// Push subscription routes
	subscriptionHandler := handlers.NewSubscriptionHandler(subscriptionRepo)
	subscriptionHandler.RegisterSubscriptionRoutes(api)
	log.Println("Subscription routes configured.")

	// Presence routes
	presenceHandler := handlers.NewPresenceHandler(tracker)
	presenceHandler.RegisterPresenceRoutes(api)
	log.Println("Presence routes configured.")

	// Message routes
	messageHandler := handlers.NewMessageHandler(messageRepo, userRepo, notificationRepo, engine)
	messageHandler.RegisterMessageRoutes(api)
	log.Println("Message routes configured.")

	// Reaction routes
	reactionHandler := handlers.NewReactionHandler(reactionRepo, messageRepo, userRepo, notificationRepo, engine)
	reactionHandler.RegisterReactionRoutes(api)
	log.Println("Reaction routes configured.")

	// Notification feed routes
	notificationHandler := handlers.NewNotificationHandler(notificationRepo, userRepo, engine)
	notificationHandler.RegisterNotificationRoutes(api)
	log.Println("Notification routes configured.")

	// --- Admin routes (require JWT + admin claim) ---
	admin := e.Group("/api/v1/admin")
	admin.Use(middleware.JWTAuthMiddleware(), middleware.AdminOnly())

	notificationHandler.RegisterAdminNotificationRoutes(admin)
	metricsHandler := handlers.NewMetricsHandler(aggregator)
	metricsHandler.RegisterMetricsRoutes(admin)
	log.Println("Admin routes configured.")

	log.Println("All routes configured.")
}
