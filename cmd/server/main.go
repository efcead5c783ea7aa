package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hansika-eng/clockdin/internal/api"
	"github.com/hansika-eng/clockdin/internal/chatbot"
	"github.com/hansika-eng/clockdin/internal/circuitbreaker"
	"github.com/hansika-eng/clockdin/internal/config"
	"github.com/hansika-eng/clockdin/internal/db"
	"github.com/hansika-eng/clockdin/internal/deadletter"
	"github.com/hansika-eng/clockdin/internal/engine"
	"github.com/hansika-eng/clockdin/internal/mailer"
	"github.com/hansika-eng/clockdin/internal/metrics"
	"github.com/hansika-eng/clockdin/internal/observ"
	"github.com/hansika-eng/clockdin/internal/redis"
	"github.com/hansika-eng/clockdin/internal/repair"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting clockdin server",
		zap.String("env", cfg.Env),
		zap.Int("port", cfg.Port),
		zap.Duration("scan_interval", cfg.ScanInterval),
	)

	if cfg.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	ctx := context.Background()
	database, err := db.New(ctx, db.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Database: cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	reminderRepo := db.NewReminderRepository(database, logger)
	eventRepo := db.NewEventRepository(database, logger)
	userRepo := db.NewUserRepository(database, logger)
	notificationRepo := db.NewNotificationRepository(database, logger)

	// Repair pass: available on demand, optionally at startup so legacy
	// timestamp shapes never reach the rest of the system.
	repairPass := repair.NewPass(notificationRepo, logger)
	if cfg.RepairOnStart {
		fixed, err := repairPass.Run(ctx)
		if err != nil {
			return fmt.Errorf("startup repair pass failed: %w", err)
		}
		logger.Info("startup repair pass finished", zap.Int("records_fixed", fixed))
	}

	// Redis is optional; without it reminder creation loses idempotency
	// replay but nothing else.
	var idempotencyService *redis.IdempotencyService
	redisClient, err := redis.New(ctx, redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, logger)
	if err != nil {
		logger.Warn("redis unavailable, idempotency disabled",
			zap.Error(err),
			zap.String("host", cfg.RedisHost),
		)
	} else {
		idempotencyService = redis.NewIdempotencyService(redisClient, logger)
		defer redisClient.Close()
	}

	// Outbound channel: SES for email, SNS for SMS, routed by channel
	// and wrapped in a circuit breaker.
	var senders []mailer.Sender
	sesSender, err := mailer.NewSESSender(ctx, mailer.SESConfig{
		Region:    cfg.AWSRegion,
		FromEmail: cfg.SESFromEmail,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create SES email sender: %w", err)
	}
	senders = append(senders, sesSender)

	snsSender, err := mailer.NewSNSSender(ctx, mailer.SNSConfig{
		Region: cfg.SNSRegion,
	}, logger)
	if err != nil {
		logger.Warn("SNS sender unavailable, SMS reminders disabled", zap.Error(err))
	} else {
		senders = append(senders, snsSender)
	}

	breaker := circuitbreaker.New(circuitbreaker.Config{Name: "outbound"}, logger)
	outbound := circuitbreaker.NewProtectedSender(
		mailer.NewMultiSender(logger, senders...),
		breaker,
		logger,
	)

	eng := engine.New(reminderRepo, eventRepo, outbound, engine.Config{
		ScanInterval:    cfg.ScanInterval,
		BatchSize:       cfg.ScanBatchSize,
		Workers:         cfg.DispatchWorkers,
		DeadLetterAfter: cfg.DeadLetterAfter,
	}, logger)

	if cfg.DLQQueueURL != "" {
		producer, err := deadletter.NewProducer(ctx, deadletter.Config{
			Region:   cfg.AWSRegion,
			QueueURL: cfg.DLQQueueURL,
		}, logger)
		if err != nil {
			logger.Warn("dead letter producer unavailable, mirroring disabled", zap.Error(err))
		} else {
			eng.WithDeadLetter(producer)
		}
	}

	engineCtx, engineCancel := context.WithCancel(context.Background())
	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		eng.Run(engineCtx)
	}()

	logger.Info("reminder engine started in background")

	opts := api.Options{Idempotency: idempotencyService}
	if cfg.GeminiAPIKey != "" {
		bot, err := chatbot.NewClient(chatbot.Config{
			APIKey: cfg.GeminiAPIKey,
			Model:  cfg.GeminiModel,
		}, logger)
		if err != nil {
			engineCancel()
			return fmt.Errorf("failed to create chatbot client: %w", err)
		}
		opts.Chatbot = bot
	}

	handler := api.NewHandler(logger, reminderRepo, eventRepo, userRepo, notificationRepo, repairPass, cfg.JWTSecret, opts)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration_ms", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/auth/register", handler.Register)
		r.Post("/auth/login", handler.Login)

		r.Get("/events", handler.ListEvents)
		r.Get("/events/{id}", handler.GetEvent)

		r.Post("/chatbot", handler.Chat)

		r.Post("/admin/notifications/repair", handler.RunRepair)

		r.Group(func(r chi.Router) {
			r.Use(handler.RequireAuth)

			r.Post("/reminders", handler.CreateReminder)

			r.Get("/notifications", handler.ListNotifications)
			r.Post("/notifications", handler.CreateNotification)
			r.Post("/notifications/read", handler.MarkNotificationsRead)

			r.Post("/bookmarks", handler.AddBookmark)
			r.Delete("/bookmarks/{eventID}", handler.RemoveBookmark)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := database.Health(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("database unreachable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		engineCancel()
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))

		// Stop the engine first; its in-flight batch drains before Run
		// returns, so no ledger write is cut off mid-flight.
		engineCancel()
		select {
		case <-engineDone:
			logger.Info("reminder engine stopped")
		case <-time.After(30 * time.Second):
			logger.Warn("reminder engine did not stop in time")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			srv.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}

		logger.Info("server stopped gracefully")
	}

	return nil
}
