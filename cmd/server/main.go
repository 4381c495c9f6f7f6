package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/bruinswipes/bruinswipes-backend/internal/config"
	"github.com/bruinswipes/bruinswipes-backend/internal/database"
	"github.com/bruinswipes/bruinswipes-backend/internal/handlers"
	"github.com/bruinswipes/bruinswipes-backend/internal/middleware"
	"github.com/bruinswipes/bruinswipes-backend/internal/routes"
	"github.com/bruinswipes/bruinswipes-backend/internal/services"
	"github.com/bruinswipes/bruinswipes-backend/internal/store"
	"github.com/bruinswipes/bruinswipes-backend/internal/store/memory"
	"github.com/bruinswipes/bruinswipes-backend/pkg/logger"
	"github.com/bruinswipes/bruinswipes-backend/pkg/mailer"
)

func main() {
	// Load env
	envErr := godotenv.Load()
	cfg := config.Load()
	log := logger.New("bruinswipes", cfg.Environment, cfg.LogLevel)
	if envErr != nil {
		log.Debug("no .env file found")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Document store
	var (
		st          *store.Store
		mongoClient *mongo.Client
	)
	if cfg.UseMemoryStore() {
		log.Warn("using in-memory store; data is lost on restart")
		st = memory.New()
	} else {
		client, err := database.Connect(cfg.MongoURI, log)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to MongoDB")
		}
		defer func() { _ = database.Disconnect(client) }()

		idxCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		if err := database.EnsureIndexes(idxCtx, client); err != nil {
			log.WithError(err).Warn("failed to ensure MongoDB indexes")
		}
		cancel()
		mongoClient = client
		st = database.NewStore(client)
	}

	// Redis is optional: without it rate limiting, the digest lock and
	// cross-instance push are off.
	var rdb *redis.Client
	if cfg.RedisURI != "" {
		client, err := database.ConnectRedis(cfg.RedisURI, log)
		if err != nil {
			log.WithError(err).Warn("Redis unavailable; continuing without it")
		} else {
			rdb = client
			defer func() { _ = rdb.Close() }()
		}
	}

	dispatcher, closeMail := newDispatcher(ctx, cfg, log)
	defer closeMail()

	var uploader services.ImageUploader
	if cfg.CloudinaryName != "" && cfg.CloudinaryAPIKey != "" && cfg.CloudinaryAPISecret != "" {
		cld, err := services.NewCloudinaryService(cfg.CloudinaryName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
		if err != nil {
			log.WithError(err).Warn("profile image uploads disabled")
		} else {
			uploader = cld
		}
	} else {
		log.Warn("Cloudinary credentials not found; profile image uploads disabled")
	}

	var locker services.DigestLocker
	if rdb != nil {
		locker = services.NewRedisLocker(rdb)
	}

	hub := services.NewNotificationHub(rdb, log)
	hub.Start(ctx)

	sessions := services.NewSessionManager(st.Sessions, cfg.SessionTTL, cfg.OpTimeout, log)
	accounts := services.NewAccountService(st.Accounts, st.Profiles, services.AccountConfig{
		InstitutionDomain: cfg.InstitutionDomain,
		DefaultProfileImg: cfg.DefaultProfileImg,
		OpTimeout:         cfg.OpTimeout,
	}, log)
	if rdb != nil {
		accounts.WithProfileCache(services.NewRedisProfileCache(rdb, services.DefaultProfileCacheTTL))
	}
	notifications := services.NewNotificationService(st.Notifications, st.Pending, accounts, dispatcher, hub, locker,
		services.NotificationConfig{PublicURL: cfg.PublicURL, OpTimeout: cfg.OpTimeout}, log)
	listings := services.NewListingService(st.Listings, accounts, notifications, cfg.OpTimeout, log)
	messaging := services.NewMessagingService(st.Conversations, accounts, notifications, cfg.OpTimeout, log)

	notifications.StartDigestJob(ctx, cfg.DigestInterval)

	loginLimiter := middleware.NewLoginLimiter()
	messageLimiter := middleware.NewMessageLimiter()
	middleware.StartLimiterCleanup(ctx, loginLimiter, messageLimiter)

	var healthCheck func(context.Context) error
	if mongoClient != nil {
		healthCheck = func(ctx context.Context) error { return mongoClient.Ping(ctx, nil) }
	}

	h := handlers.New(handlers.Dependencies{
		Accounts:       accounts,
		Sessions:       sessions,
		Listings:       listings,
		Messaging:      messaging,
		Notifications:  notifications,
		Hub:            hub,
		Uploader:       uploader,
		HealthCheck:    healthCheck,
		AllowedOrigins: cfg.AllowedOrigins,
		SecureCookies:  cfg.IsProduction(),
		Logger:         log,
	})
	router := routes.NewRouter(h, routes.Options{
		Sessions:       sessions,
		Redis:          rdb,
		AllowedOrigins: cfg.AllowedOrigins,
		Production:     cfg.IsProduction(),
		LoginLimiter:   loginLimiter,
		MessageLimiter: messageLimiter,
		Logger:         log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.WithField("port", cfg.Port).Info("bruinswipes backend running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server shutdown")
	}
	notifications.Wait()
}

// newDispatcher queues email jobs on RabbitMQ when configured, otherwise
// delivers them in process through the configured sender.
func newDispatcher(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (mailer.Dispatcher, func()) {
	if cfg.RabbitMQURL != "" {
		d, err := mailer.NewRabbitDispatcher(cfg.RabbitMQURL, cfg.RabbitMQEmailQueue)
		if err == nil {
			log.WithField("queue", cfg.RabbitMQEmailQueue).Info("email jobs go to RabbitMQ")
			return d, d.Close
		}
		log.WithError(err).Warn("RabbitMQ unavailable; sending email in process")
	}

	sender, err := mailer.NewSender(ctx, cfg.Mailer(), log)
	if err != nil {
		log.WithError(err).Warn("email provider misconfigured; emails will only be logged")
		sender = mailer.LogSender{Logger: log}
	}
	d := mailer.NewAsyncDispatcher(sender, log, 15*time.Second)
	return d, d.Wait
}
