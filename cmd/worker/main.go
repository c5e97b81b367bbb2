package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nexa-labs/wavechat-backend/internal/ccu"
	"github.com/nexa-labs/wavechat-backend/internal/cron"
	"github.com/nexa-labs/wavechat-backend/internal/presence"
	"github.com/nexa-labs/wavechat-backend/internal/push"
	"github.com/nexa-labs/wavechat-backend/internal/repositories"
	"github.com/nexa-labs/wavechat-backend/pkg/config"
	"github.com/nexa-labs/wavechat-backend/pkg/logger"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()

	logg := logger.New(logger.Options{
		ServiceName: "wavechat-worker",
		Level:       logger.ParseLevel(cfg.LogLevel),
		Output:      os.Stdout,
	})

	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize databases: %v", err)
	}
	defer db.CloseDB()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer redisClient.Close()

	mongoDB := db.Mongo.Database(cfg.MongoDatabase)
	notificationRepo := repositories.NewPostgresNotificationRepository(db.Postgres)
	subscriptionRepo := repositories.NewMongoSubscriptionRepository(mongoDB)
	profileRepo := repositories.NewMongoProfileRepository(mongoDB)
	pendingRepo := repositories.NewMongoPendingNotificationRepository(mongoDB)
	cacheRepo := repositories.NewMongoCacheRepository(mongoDB)

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

	drainJob, err := cron.NewNotificationDrainJob(cron.NotificationDrainJobParams{
		Logger: logg,
		Engine: engine,
	})
	if err != nil {
		log.Fatalf("Failed to build drain job: %v", err)
	}
	cleanupJob, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:        logg,
		Engine:        engine,
		Notifications: notificationRepo,
	})
	if err != nil {
		log.Fatalf("Failed to build cleanup job: %v", err)
	}
	sweepJob, err := cron.NewPresenceSweepJob(cron.PresenceSweepJobParams{
		Logger:  logg,
		Tracker: tracker,
	})
	if err != nil {
		log.Fatalf("Failed to build presence sweep job: %v", err)
	}
	ccuJob, err := cron.NewCCUUpdateJob(cron.CCUUpdateJobParams{
		Logger:     logg,
		Aggregator: aggregator,
	})
	if err != nil {
		log.Fatalf("Failed to build ccu job: %v", err)
	}

	lockKey := fmt.Sprintf("wavechat:worker:lock:%s", cfg.Env)
	lock, err := cron.NewRedisLock(redisClient, lockKey, time.Minute)
	if err != nil {
		log.Fatalf("Failed to build worker lock: %v", err)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(drainJob, cleanupJob, sweepJob, ccuJob),
		Lock:     lock,
	})
	if err != nil {
		log.Fatalf("Failed to build worker service: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logg.Info(ctx, "worker started")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Worker service exited: %v", err)
	}
	logg.Info(context.Background(), "worker stopped")
}
