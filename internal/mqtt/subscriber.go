package mqtt

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"iot-fusion/internal/metrics"
	"iot-fusion/internal/models"
)

const defaultEnqueueTimeout = 1 * time.Second

// Subscriber handles MQTT subscriptions and writes messages to a channel.
// Payloads are not decoded here; the fusion loop owns parsing.
type Subscriber struct {
	client  mqtt.Client
	logger  *zap.Logger
	metrics *metrics.Metrics

	// Output channel (written by subscriber, read by the fusion service)
	MessageChan chan<- *models.RawMessage

	topics         []string
	qos            byte
	enqueueTimeout time.Duration
}

// SubscriberConfig holds configuration for MQTT subscriber
type SubscriberConfig struct {
	Topics         []string // e.g., "sensor/#"
	QoS            byte
	EnqueueTimeout time.Duration
}

// NewSubscriber creates a new MQTT subscriber writing to messageChan
func NewSubscriber(
	client mqtt.Client,
	config SubscriberConfig,
	messageChan chan<- *models.RawMessage,
	logger *zap.Logger,
	m *metrics.Metrics,
) *Subscriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.EnqueueTimeout <= 0 {
		config.EnqueueTimeout = defaultEnqueueTimeout
	}
	return &Subscriber{
		client:         client,
		logger:         logger.Named("subscriber"),
		metrics:        m,
		MessageChan:    messageChan,
		topics:         config.Topics,
		qos:            config.QoS,
		enqueueTimeout: config.EnqueueTimeout,
	}
}

// SubscribeAll validates and subscribes to every configured topic filter
func (s *Subscriber) SubscribeAll() error {
	for _, topic := range s.topics {
		if err := ValidateTopicFilter(topic); err != nil {
			return err
		}
	}
	for _, topic := range s.topics {
		token := s.client.Subscribe(topic, s.qos, s.handleMessage)
		if token.Wait() && token.Error() != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", topic, token.Error())
		}
		s.logger.Info("subscribed", zap.String("topic", topic))
	}
	return nil
}

// Unsubscribe removes every subscription
func (s *Subscriber) Unsubscribe() error {
	if len(s.topics) == 0 {
		return nil
	}
	token := s.client.Unsubscribe(s.topics...)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to unsubscribe: %w", token.Error())
	}
	return nil
}

// handleMessage copies the message onto the channel, dropping it when the
// channel stays full past the enqueue timeout
func (s *Subscriber) handleMessage(client mqtt.Client, msg mqtt.Message) {
	raw := &models.RawMessage{
		Topic:      msg.Topic(),
		Payload:    append([]byte(nil), msg.Payload()...),
		ReceivedAt: time.Now(),
	}

	select {
	case s.MessageChan <- raw:
		// Successfully sent
	case <-time.After(s.enqueueTimeout):
		s.logger.Warn("message channel full, dropping message", zap.String("topic", raw.Topic))
		s.metrics.MessageDropped()
	}
}
