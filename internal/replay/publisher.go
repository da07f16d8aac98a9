package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"iot-fusion/internal/models"
)

// Config describes the identity stamped on replayed messages and the pacing
type Config struct {
	SensorID     string
	Location     string
	Extra        string
	Interval     time.Duration
	ControlTopic string
	Loop         bool
}

// Publisher replays records to sensor/{metric}, honoring publish filters
// received on the control topic
type Publisher struct {
	client mqtt.Client
	config Config
	logger *zap.Logger

	mu     sync.RWMutex
	filter models.PublishFilter
}

// message is the wire format of one replayed reading
type message struct {
	Timestamp string  `json:"timestamp"`
	Value     float64 `json:"value"`
	SensorID  string  `json:"sensor_id"`
	Location  string  `json:"location"`
	Extra     string  `json:"extra"`
	Type      string  `json:"type"`
}

// NewPublisher creates a replay publisher with every metric enabled
func NewPublisher(client mqtt.Client, config Config, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		client: client,
		config: config,
		logger: logger.Named("replay"),
		filter: models.PublishFilter{Enabled: append([]string(nil), models.Metrics...)},
	}
}

// SubscribeControl listens for publish filters on the control topic
func (p *Publisher) SubscribeControl() error {
	if p.config.ControlTopic == "" {
		return nil
	}
	token := p.client.Subscribe(p.config.ControlTopic, 1, p.handleControl)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", p.config.ControlTopic, token.Error())
	}
	return nil
}

func (p *Publisher) handleControl(client mqtt.Client, msg mqtt.Message) {
	filter, err := models.ParsePublishFilter(msg.Payload())
	if err != nil {
		p.logger.Warn("ignoring publish filter", zap.Error(err))
		return
	}
	p.SetFilter(filter)
	p.logger.Info("publish filter updated", zap.Strings("enabled", filter.Enabled))
}

// SetFilter replaces the active publish filter
func (p *Publisher) SetFilter(filter models.PublishFilter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filter = filter
}

func (p *Publisher) allows(metric string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.filter.Allows(metric)
}

// Run publishes every record, one per interval, until done or ctx is
// cancelled. Filtered records still consume their interval. It returns the
// number of records published.
func (p *Publisher) Run(ctx context.Context, records []Record) (int, error) {
	interval := p.config.Interval
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	published := 0
	for {
		for _, rec := range records {
			if p.allows(rec.Metric) {
				if err := p.publish(rec); err != nil {
					p.logger.Error("publishing record", zap.String("metric", rec.Metric), zap.Error(err))
				} else {
					published++
				}
			}

			select {
			case <-ctx.Done():
				return published, ctx.Err()
			case <-ticker.C:
			}
		}
		p.logger.Info("replay pass complete", zap.Int("records", len(records)), zap.Int("published", published))
		if !p.config.Loop || len(records) == 0 {
			return published, nil
		}
	}
}

func (p *Publisher) publish(rec Record) error {
	payload, err := json.Marshal(message{
		Timestamp: rec.Timestamp,
		Value:     rec.Value,
		SensorID:  p.config.SensorID,
		Location:  p.config.Location,
		Extra:     p.config.Extra,
		Type:      rec.Metric,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	topic := "sensor/" + rec.Metric
	token := p.client.Publish(topic, 0, false, payload)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, token.Error())
	}
	return nil
}
