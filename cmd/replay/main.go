package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"iot-fusion/internal/logging"
	"iot-fusion/internal/mqtt"
	"iot-fusion/internal/replay"
	"iot-fusion/pkg/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "env-replay: %v\n", err)
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

	records, err := replay.LoadRecords(cfg.ReplayDir)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("no records found in %s", cfg.ReplayDir)
	}
	logger.Info("loaded records", zap.String("dir", cfg.ReplayDir), zap.Int("count", len(records)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var active atomic.Pointer[replay.Publisher]
	client, err := mqtt.NewClient(mqtt.ClientConfig{
		Broker:   cfg.MQTTBroker,
		ClientID: mqtt.DefaultClientID("env-replay"),
		Username: cfg.MQTTUsername,
		Password: cfg.MQTTPassword,
		OnConnect: func(paho.Client) {
			pub := active.Load()
			if pub == nil {
				return
			}
			if err := pub.SubscribeControl(); err != nil {
				logger.Error("resubscribing to control topic", zap.Error(err))
			}
		},
	}, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	publisher := replay.NewPublisher(client.GetNativeClient(), replay.Config{
		SensorID:     cfg.DefaultSensorID,
		Location:     cfg.DefaultLocation,
		Extra:        cfg.ReplayExtra,
		Interval:     cfg.ReplayInterval,
		ControlTopic: cfg.MQTTTopicControl,
		Loop:         cfg.ReplayLoop,
	}, logger)
	if err := publisher.SubscribeControl(); err != nil {
		return err
	}
	active.Store(publisher)

	published, err := publisher.Run(ctx, records)
	logger.Info("replay finished", zap.Int("published", published))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
