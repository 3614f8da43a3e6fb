package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/railmind/train-alert-bot/internal/alerting"
	"github.com/railmind/train-alert-bot/internal/api"
	"github.com/railmind/train-alert-bot/internal/audit"
	"github.com/railmind/train-alert-bot/internal/config"
	"github.com/railmind/train-alert-bot/internal/database"
	"github.com/railmind/train-alert-bot/internal/intake"
	"github.com/railmind/train-alert-bot/internal/itinerary"
	"github.com/railmind/train-alert-bot/internal/notifications"
	"github.com/railmind/train-alert-bot/internal/scheduler"
	"github.com/railmind/train-alert-bot/internal/storage"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	logrus.WithFields(logrus.Fields{
		"threshold":        cfg.AlertThreshold,
		"window_minutes":   cfg.WindowMinutes,
		"cooldown_minutes": cfg.CooldownMinutes,
		"sms_enabled":      cfg.NotificationsEnabled,
	}).Info("Starting train complaint alert bot")

	store, err := database.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		logrus.Fatalf("Failed to open database: %v", err)
	}
	defer store.Close()

	lookup := loadItinerary(cfg.ItineraryCSVPath)

	smsService := notifications.NewService(cfg)
	alertService := alerting.NewService(cfg, store, store, lookup, smsService)

	dispatcher := alerting.NewDispatcher(alertService, cfg.QueueSize)
	dispatcher.StartWorkers(cfg.WorkerCount)

	receiver := intake.NewReceiver(store, dispatcher)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	var consumer *intake.QueueConsumer
	if cfg.AMQPURL != "" {
		consumer, err = intake.NewQueueConsumer(&intake.ConsumerConfig{
			URL:       cfg.AMQPURL,
			QueueName: cfg.ComplaintQueue,
		}, receiver)
		if err != nil {
			logrus.Fatalf("Failed to initialize complaint consumer: %v", err)
		}
		go func() {
			if err := consumer.StartConsuming(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logrus.Errorf("Complaint consumer stopped: %v", err)
			}
		}()
	}

	var archive storage.ArchiveStore
	if cfg.StorageAccount != "" {
		blobs, err := storage.NewBlobArchive(ctx, cfg.StorageAccount, cfg.StorageContainer)
		if err != nil {
			logrus.Fatalf("Failed to initialize storage: %v", err)
		}
		archive = blobs
	} else {
		logrus.Info("AZURE_STORAGE_ACCOUNT not set, alert archive disabled")
	}

	var digest notifications.DigestSender
	if emailService := notifications.NewEmailService(cfg); emailService.Enabled() {
		digest = emailService
	}

	auditService := audit.NewService(cfg, store, archive, digest)

	schedulerService := scheduler.NewService(cfg, auditService)
	if err := schedulerService.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}
	defer schedulerService.Stop()

	router := api.NewRouter(api.Dependencies{
		Engine:   alertService,
		Receiver: receiver,
		Alerts:   store,
		DB:       store,
		Queue:    dispatcher,
		Audit:    auditService,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.EvaluationTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	stop()
	if consumer != nil {
		if err := consumer.Close(); err != nil {
			logrus.Errorf("Failed to close complaint consumer: %v", err)
		}
	}

	// Queued complaints are still evaluated before the database closes
	dispatcher.Close()

	logrus.Info("Server exited")
}

func loadItinerary(path string) itinerary.Lookup {
	lookup, err := itinerary.NewCSVLookup(path)
	if err != nil {
		logrus.Warnf("Itinerary unavailable, alerts will carry no next stations: %v", err)
		return itinerary.StaticLookup{}
	}
	return lookup
}
