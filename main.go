package main

import (
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"flight-alert-service/internal/api"
	"flight-alert-service/internal/config"
	"flight-alert-service/internal/db"
	"flight-alert-service/internal/detector"
	"flight-alert-service/internal/dispatch"
	"flight-alert-service/internal/escalation"
	"flight-alert-service/internal/kafka"
	"flight-alert-service/internal/logging"
	"flight-alert-service/internal/providers"
	"flight-alert-service/internal/scheduler"
	"flight-alert-service/internal/status"
	"flight-alert-service/internal/ws"
)

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	// Connect to database
	dbConn, err := db.New(cfg.DB.DSN)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	defer dbConn.Close()

	// Task queues
	runner := scheduler.New(logger, cfg.Alerts.QueueSize, map[string]int{
		scheduler.QueueAlerts:        cfg.Alerts.AlertWorkers,
		scheduler.QueueNotifications: cfg.Alerts.DispatchWorkers,
	})
	var wg sync.WaitGroup
	runner.Start(&wg)

	// Delivery channels
	wsManager := ws.NewManager(logger)
	var emailSender dispatch.EmailSender
	if sender, err := providers.NewEmailSender(cfg, logger); err != nil {
		logger.Warnf("Email channel disabled: %v", err)
	} else {
		emailSender = sender
	}
	var operator dispatch.OperatorNotifier
	if ops, err := providers.NewOpsNotifier(cfg, logger); err != nil {
		logger.Warnf("Telegram operator channel disabled: %v", err)
	} else {
		operator = ops
	}

	// Notification dispatcher
	dispatcher := dispatch.New(dispatch.Options{
		Alerts:        dbConn,
		Notifications: dbConn,
		Users:         dbConn,
		Email:         emailSender,
		Pusher:        wsManager,
		Operator:      operator,
		Runner:        runner,
		Logger:        logger,
	})

	// Escalation scheduler
	escalator := escalation.New(escalation.Options{
		Alerts:     dbConn,
		Resolver:   dbConn,
		Dispatcher: dispatcher,
		Runner:     runner,
		Logger:     logger,
	})

	// Periodic flight alert checker
	checker := detector.New(detector.Options{
		Registry:      dbConn,
		Alerts:        dbConn,
		Resolver:      dbConn,
		Dispatcher:    dispatcher,
		Escalator:     escalator,
		Logger:        logger,
		CheckInterval: cfg.Alerts.CheckInterval,
		SLAWindow:     cfg.Alerts.SLAWindow,
	})
	checker.Start(&wg)

	// Status-change alerts from Kafka
	var consumer *kafka.Consumer
	if cfg.Kafka.Broker != "" {
		statusSvc := status.New(status.Options{
			Requests:   dbConn,
			Alerts:     dbConn,
			Resolver:   dbConn,
			Dispatcher: dispatcher,
			Logger:     logger,
		})
		consumer = kafka.NewConsumer([]string{cfg.Kafka.Broker}, cfg.Kafka.Topic, cfg.Kafka.GroupID, statusSvc, logger)
		consumer.Start(&wg)
	} else {
		logger.Warnf("KAFKA_BROKER not set, status-change alerts disabled")
	}

	// Start API server
	handler := api.NewHandler(dbConn, logger, wsManager)
	router := api.NewRouter(logger, cfg, handler)
	go func() {
		logger.Infof("Starting API server on %s", cfg.API.Port)
		if err := router.Run(cfg.API.Port); err != nil {
			logger.Errorf("API server failed: %v", err)
		}
	}()

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	logger.Infof("Shutting down...")
	checker.Stop()
	if consumer != nil {
		consumer.Close()
	}
	runner.Stop()
	wg.Wait()
	logger.Infof("Service stopped")
}
