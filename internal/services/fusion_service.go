package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"iot-fusion/internal/comfort"
	"iot-fusion/internal/metrics"
	"iot-fusion/internal/models"
)

// Sink persists fused readings and analysis snapshots
type Sink interface {
	SaveReading(ctx context.Context, reading models.CompositeReading, score models.ComfortResult) error
	SaveAnalysis(ctx context.Context, result models.AnalysisResult) error
}

// FusionService drains raw MQTT messages into the engine and fans fused
// readings out to the publisher and the sink
type FusionService struct {
	engine  *Engine
	sink    Sink
	logger  *zap.Logger
	metrics *metrics.Metrics

	// Input channel (written by the MQTT subscriber)
	MessageChan chan *models.RawMessage

	// Output channel (read by the MQTT publisher), nil disables publishing
	AnalysisReqChan chan *models.AnalysisRequest

	readingChan chan models.CompositeReading
}

// FusionServiceConfig holds configuration for the fusion service
type FusionServiceConfig struct {
	MessageChannelSize  int
	AnalysisChannelSize int
	SinkChannelSize     int
}

// DefaultFusionServiceConfig returns default configuration
func DefaultFusionServiceConfig() FusionServiceConfig {
	return FusionServiceConfig{
		MessageChannelSize:  100,
		AnalysisChannelSize: 50,
		SinkChannelSize:     100,
	}
}

// NewFusionService creates a fusion service. sink may be nil.
func NewFusionService(engine *Engine, sink Sink, config FusionServiceConfig, logger *zap.Logger, m *metrics.Metrics) *FusionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FusionService{
		engine:          engine,
		sink:            sink,
		logger:          logger.Named("fusion_service"),
		metrics:         m,
		MessageChan:     make(chan *models.RawMessage, config.MessageChannelSize),
		AnalysisReqChan: make(chan *models.AnalysisRequest, config.AnalysisChannelSize),
		readingChan:     make(chan models.CompositeReading, config.SinkChannelSize),
	}
}

// Start registers the engine consumer and processes messages until ctx is
// cancelled
func (s *FusionService) Start(ctx context.Context) error {
	s.logger.Info("starting")
	s.engine.RegisterConsumer(s.forward)
	defer s.engine.RegisterConsumer(nil)

	if s.sink != nil {
		go s.sinkLoop(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("shutdown complete")
			return nil
		case msg := <-s.MessageChan:
			if msg == nil {
				continue
			}
			s.engine.IngestMessage(msg.Topic, msg.Payload)
		}
	}
}

// forward runs under the engine lock, so it only does non-blocking sends
func (s *FusionService) forward(reading models.CompositeReading) {
	if s.AnalysisReqChan != nil {
		select {
		case s.AnalysisReqChan <- &models.AnalysisRequest{Reading: reading, RequestedAt: reading.Timestamp}:
		default:
			s.logger.Warn("analysis channel full, skipping publish", zap.String("sensor_id", reading.SensorID))
		}
	}

	if s.sink != nil {
		select {
		case s.readingChan <- reading:
		default:
			s.logger.Warn("sink channel full, dropping reading", zap.String("sensor_id", reading.SensorID))
			s.metrics.SinkError()
		}
	}
}

// sinkLoop persists fused readings outside the engine lock
func (s *FusionService) sinkLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case reading := <-s.readingChan:
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := s.sink.SaveReading(writeCtx, reading, comfort.Score(reading))
			cancel()
			if err != nil {
				s.logger.Error("saving reading", zap.Error(err))
				s.metrics.SinkError()
			}
		}
	}
}
