package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"iot-fusion/internal/models"
)

func TestValidateTopicFilter(t *testing.T) {
	tests := []struct {
		filter string
		valid  bool
	}{
		{"sensor/#", true},
		{"sensor/+/temperature", true},
		{"#", true},
		{"+", true},
		{"sensor/temperature", true},
		{"", false},
		{"sensor/#/temperature", false},
		{"sensor/temp#", false},
		{"sensor/+temp", false},
		{"sensor/##", false},
	}
	for _, tt := range tests {
		err := ValidateTopicFilter(tt.filter)
		if tt.valid && err != nil {
			t.Errorf("ValidateTopicFilter(%q) = %v, want nil", tt.filter, err)
		}
		if !tt.valid && !errors.Is(err, ErrInvalidTopicFilter) {
			t.Errorf("ValidateTopicFilter(%q) = %v, want ErrInvalidTopicFilter", tt.filter, err)
		}
	}
}

func TestFormatTopic(t *testing.T) {
	if got := formatTopic("analysis/{sensor_id}", "JX_Teach_01"); got != "analysis/JX_Teach_01" {
		t.Errorf("formatTopic() = %q", got)
	}
}

func TestSubscriberRejectsInvalidFilterBeforeSubscribing(t *testing.T) {
	client := newFakeClient()
	sub := NewSubscriber(client, SubscriberConfig{Topics: []string{"sensor/#", "bad/#/x"}}, make(chan *models.RawMessage, 1), nil, nil)

	if err := sub.SubscribeAll(); !errors.Is(err, ErrInvalidTopicFilter) {
		t.Fatalf("SubscribeAll() = %v", err)
	}
	if len(client.handlers) != 0 {
		t.Errorf("subscribed despite invalid filter: %v", client.handlers)
	}
}

func TestSubscriberEnqueuesRawMessages(t *testing.T) {
	client := newFakeClient()
	out := make(chan *models.RawMessage, 1)
	sub := NewSubscriber(client, SubscriberConfig{Topics: []string{"sensor/#"}, EnqueueTimeout: 10 * time.Millisecond}, out, nil, nil)
	if err := sub.SubscribeAll(); err != nil {
		t.Fatalf("SubscribeAll() = %v", err)
	}

	handler := client.handlers["sensor/#"]
	payload := []byte(`{"type":"temperature","value":22}`)
	handler(client, &fakeMessage{topic: "sensor/temperature", payload: payload})
	payload[0] = 'X'

	// channel is full, this one is dropped after the timeout
	handler(client, &fakeMessage{topic: "sensor/humidity", payload: []byte("50")})

	msg := <-out
	if msg.Topic != "sensor/temperature" || !strings.HasPrefix(string(msg.Payload), "{") {
		t.Errorf("message = %s %s", msg.Topic, msg.Payload)
	}
	select {
	case extra := <-out:
		t.Errorf("unexpected message %s", extra.Topic)
	default:
	}

	if err := sub.Unsubscribe(); err != nil || len(client.unsubscribed) != 1 {
		t.Errorf("Unsubscribe() = %v, %v", err, client.unsubscribed)
	}
}

type stubAnalyzer struct {
	calls  int
	result models.AnalysisResult
}

func (a *stubAnalyzer) Analyze(*models.CompositeReading) models.AnalysisResult {
	a.calls++
	return a.result
}

func TestPublisherPublishesAnalysis(t *testing.T) {
	client := newFakeClient()
	reading := models.CompositeReading{Temperature: 22, Humidity: 50, Pressure: 1013, SensorID: "S1"}
	analyzer := &stubAnalyzer{result: models.AnalysisResult{SensorID: "S1", RawData: &reading}}
	requests := make(chan *models.AnalysisRequest, 3)
	pub := NewPublisher(client, PublisherConfig{AnalysisTopic: "analysis/{sensor_id}", MinInterval: time.Hour}, analyzer, requests, nil, nil)

	for i := 0; i < 3; i++ {
		requests <- &models.AnalysisRequest{Reading: reading}
	}
	close(requests)
	if err := pub.Start(context.Background()); err != nil {
		t.Fatalf("Start() = %v", err)
	}

	msgs := client.messages()
	if len(msgs) != 1 {
		t.Fatalf("published %d messages, want 1 (throttled)", len(msgs))
	}
	if msgs[0].topic != "analysis/S1" || msgs[0].retained {
		t.Errorf("message = %+v", msgs[0])
	}
	var decoded models.AnalysisResult
	if err := json.Unmarshal(msgs[0].payload, &decoded); err != nil {
		t.Fatalf("payload is not an analysis: %v", err)
	}
	if decoded.RawData == nil || decoded.RawData.Temperature != 22 {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestPublisherSkipsEmptyAnalysis(t *testing.T) {
	client := newFakeClient()
	analyzer := &stubAnalyzer{result: models.AnalysisResult{Error: "no sensor data available"}}
	requests := make(chan *models.AnalysisRequest, 1)
	pub := NewPublisher(client, PublisherConfig{AnalysisTopic: "analysis/{sensor_id}"}, analyzer, requests, nil, nil)

	requests <- &models.AnalysisRequest{}
	close(requests)
	pub.Start(context.Background())

	if analyzer.calls != 1 || len(client.messages()) != 0 {
		t.Errorf("calls = %d, published = %d", analyzer.calls, len(client.messages()))
	}
}

func TestPublisherPublishFilter(t *testing.T) {
	client := newFakeClient()
	pub := NewPublisher(client, PublisherConfig{ControlTopic: "control/publish_filter"}, &stubAnalyzer{}, nil, nil, nil)

	if err := pub.PublishFilter(models.PublishFilter{Enabled: []string{"wind"}}); !errors.Is(err, models.ErrUnknownMetric) {
		t.Fatalf("PublishFilter(wind) = %v", err)
	}
	if err := pub.PublishFilter(models.PublishFilter{Enabled: []string{"temperature"}}); err != nil {
		t.Fatalf("PublishFilter() = %v", err)
	}

	msgs := client.messages()
	if len(msgs) != 1 || msgs[0].topic != "control/publish_filter" || !msgs[0].retained {
		t.Fatalf("messages = %+v", msgs)
	}
	if string(msgs[0].payload) != `{"enabled":["temperature"]}` {
		t.Errorf("payload = %s", msgs[0].payload)
	}
}
