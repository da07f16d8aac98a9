package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"iot-fusion/internal/api"
	"iot-fusion/internal/database"
	"iot-fusion/internal/logging"
	"iot-fusion/internal/metrics"
	"iot-fusion/internal/mqtt"
	"iot-fusion/internal/services"
	"iot-fusion/pkg/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "env-fusion: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer logger.Sync()

	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger.Info("starting environment fusion service",
		zap.Strings("topics", cfg.MQTTTopics),
		zap.Duration("sync_window", cfg.SyncWindow),
		zap.Int("window_size", cfg.WindowSize),
		zap.Int("max_history", cfg.MaxHistory))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// === Optional ClickHouse archive ===
	var sink services.Sink
	var archive api.Archive
	if cfg.ClickHouseEnabled() {
		db, err := database.NewClickHouseDB(ctx, database.Config{
			Addr:     cfg.ClickHouseAddr,
			Database: cfg.ClickHouseDB,
			Username: cfg.ClickHouseUser,
			Password: cfg.ClickHousePass,
		}, logger)
		if err != nil {
			return err
		}
		defer db.Close()
		sink, archive = db, db
	} else {
		logger.Info("CLICKHOUSE_ADDR not set, archive disabled")
	}

	// === Fusion engine ===
	engineConfig := services.DefaultEngineConfig()
	engineConfig.SyncWindow = cfg.SyncWindow
	engineConfig.MaxHistory = cfg.MaxHistory
	engineConfig.WindowSize = cfg.WindowSize
	engineConfig.ForecastSteps = cfg.ForecastSteps
	engineConfig.SensorID = cfg.DefaultSensorID
	engineConfig.Location = cfg.DefaultLocation
	engineConfig.Logger = logger
	engineConfig.Metrics = m
	engine := services.NewEngine(engineConfig)

	fusionService := services.NewFusionService(engine, sink, services.DefaultFusionServiceConfig(), logger, m)

	// === MQTT ===
	// Subscriptions are restored on every reconnect
	var active atomic.Pointer[mqtt.Subscriber]
	mqttClient, err := mqtt.NewClient(mqtt.ClientConfig{
		Broker:   cfg.MQTTBroker,
		ClientID: cfg.MQTTClientID,
		Username: cfg.MQTTUsername,
		Password: cfg.MQTTPassword,
		OnConnect: func(paho.Client) {
			sub := active.Load()
			if sub == nil {
				return
			}
			if err := sub.SubscribeAll(); err != nil {
				logger.Error("resubscribing", zap.Error(err))
			}
		},
	}, logger)
	if err != nil {
		return err
	}
	defer mqttClient.Close()

	subscriber := mqtt.NewSubscriber(
		mqttClient.GetNativeClient(),
		mqtt.SubscriberConfig{Topics: cfg.MQTTTopics, QoS: 1},
		fusionService.MessageChan,
		logger,
		m,
	)
	if err := subscriber.SubscribeAll(); err != nil {
		return fmt.Errorf("failed to subscribe to MQTT topics: %w", err)
	}
	active.Store(subscriber)

	publisher := mqtt.NewPublisher(
		mqttClient.GetNativeClient(),
		mqtt.PublisherConfig{
			AnalysisTopic: cfg.MQTTTopicAnalysis,
			ControlTopic:  cfg.MQTTTopicControl,
			MinInterval:   cfg.PublishInterval,
		},
		engine,
		fusionService.AnalysisReqChan,
		logger,
		m,
	)

	poller := services.NewPoller(engine, sink, cfg.PollInterval, logger)

	// === HTTP API ===
	server := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: api.NewRouter(engine, api.Options{
			Publisher: publisher,
			Archive:   archive,
			MQTT:      mqttClient,
			Metrics:   m,
			Logger:    logger,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return fusionService.Start(gctx) })
	g.Go(func() error { return publisher.Start(gctx) })
	g.Go(func() error { return poller.Start(gctx) })
	g.Go(func() error {
		logger.Info("HTTP API listening", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received, stopping services")
		if err := subscriber.Unsubscribe(); err != nil {
			logger.Warn("unsubscribing", zap.Error(err))
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}
