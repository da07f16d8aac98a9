package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"iot-fusion/internal/metrics"
	"iot-fusion/internal/models"
)

// Analyzer produces the analysis published for each fused reading
type Analyzer interface {
	Analyze(reading *models.CompositeReading) models.AnalysisResult
}

// Publisher publishes analyses and control messages
type Publisher struct {
	client   mqtt.Client
	analyzer Analyzer
	limiter  *rate.Limiter
	logger   *zap.Logger
	metrics  *metrics.Metrics

	// Input channel (read by publisher, written by the fusion service)
	AnalysisReqChan <-chan *models.AnalysisRequest

	// Topic patterns
	analysisTopic string // e.g., "analysis/{sensor_id}"
	controlTopic  string // e.g., "control/publish_filter"
}

// PublisherConfig holds configuration for MQTT publisher
type PublisherConfig struct {
	AnalysisTopic string
	ControlTopic  string

	// MinInterval between two analysis publications; zero disables throttling
	MinInterval time.Duration
}

// NewPublisher creates a new MQTT publisher reading analysisReqChan
func NewPublisher(
	client mqtt.Client,
	config PublisherConfig,
	analyzer Analyzer,
	analysisReqChan <-chan *models.AnalysisRequest,
	logger *zap.Logger,
	m *metrics.Metrics,
) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if config.MinInterval > 0 {
		limit = rate.Every(config.MinInterval)
	}
	return &Publisher{
		client:          client,
		analyzer:        analyzer,
		limiter:         rate.NewLimiter(limit, 1),
		logger:          logger.Named("publisher"),
		metrics:         m,
		AnalysisReqChan: analysisReqChan,
		analysisTopic:   config.AnalysisTopic,
		controlTopic:    config.ControlTopic,
	}
}

// Start publishes analyses for requests from the channel
// Runs until context is cancelled or channel is closed
func (p *Publisher) Start(ctx context.Context) error {
	p.logger.Info("starting", zap.String("topic", p.analysisTopic))

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("context cancelled, shutting down")
			return nil

		case req, ok := <-p.AnalysisReqChan:
			if !ok {
				p.logger.Info("analysis request channel closed, shutting down")
				return nil
			}
			if !p.limiter.Allow() {
				p.logger.Debug("throttled analysis publish", zap.String("sensor_id", req.Reading.SensorID))
				continue
			}
			err := p.publishAnalysis(req)
			p.metrics.Published("analysis", err)
			if err != nil {
				p.logger.Error("publishing analysis", zap.Error(err))
			}
		}
	}
}

// publishAnalysis analyzes the current state and publishes it for the sensor
func (p *Publisher) publishAnalysis(req *models.AnalysisRequest) error {
	result := p.analyzer.Analyze(nil)
	if !result.HasData() {
		return nil
	}

	sensorID := result.SensorID
	if sensorID == "" {
		sensorID = req.Reading.SensorID
	}
	topic := formatTopic(p.analysisTopic, sensorID)
	return p.publishJSON(topic, result, false)
}

// PublishFilter sends a publish filter on the control topic. The message is
// retained so replay publishers started later pick it up.
func (p *Publisher) PublishFilter(filter models.PublishFilter) error {
	if p.controlTopic == "" {
		return fmt.Errorf("no control topic configured")
	}
	for _, m := range filter.Enabled {
		if !models.IsMetric(m) {
			return fmt.Errorf("%w: %q", models.ErrUnknownMetric, m)
		}
	}
	err := p.publishJSON(p.controlTopic, filter, true)
	p.metrics.Published("control", err)
	return err
}

func (p *Publisher) publishJSON(topic string, v any, retained bool) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal payload for %s: %w", topic, err)
	}

	token := p.client.Publish(topic, 1, retained, payload)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, token.Error())
	}

	p.logger.Debug("published", zap.String("topic", topic), zap.Int("bytes", len(payload)))
	return nil
}
