package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrMalformedPayload = errors.New("malformed payload")
	ErrUnknownMetric    = errors.New("unknown metric")
	ErrInvalidValue     = errors.New("invalid metric value")
)

// DecodeSensorMessage decodes an MQTT payload published on topic.
//
// JSON objects are read field by field; "type" falls back to the topic name
// when omitted. A payload that is a bare number is accepted too, with the
// metric taken from the topic.
func DecodeSensorMessage(topic string, payload []byte) (*SensorMessage, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrMalformedPayload)
	}

	if trimmed[0] != '{' {
		value, err := strconv.ParseFloat(string(trimmed), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		metric := MetricFromTopic(topic)
		if metric == "" {
			return nil, fmt.Errorf("%w: topic %q", ErrUnknownMetric, topic)
		}
		if err := ValidateValue(metric, value); err != nil {
			return nil, err
		}
		return &SensorMessage{
			Type:  metric,
			Value: value,
			Raw:   map[string]any{"value": value},
		}, nil
	}

	var raw map[string]any
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	msg := &SensorMessage{
		Type:      stringField(raw, "type"),
		SensorID:  stringField(raw, "sensor_id"),
		Location:  stringField(raw, "location"),
		Timestamp: stringField(raw, "timestamp"),
		Extra:     stringField(raw, "extra"),
		Raw:       raw,
	}
	if msg.Type == "" {
		msg.Type = MetricFromTopic(topic)
	}
	if !IsMetric(msg.Type) {
		return nil, fmt.Errorf("%w: %q on topic %q", ErrUnknownMetric, msg.Type, topic)
	}

	value, err := numericField(raw["value"])
	if err != nil {
		return nil, err
	}
	if err := ValidateValue(msg.Type, value); err != nil {
		return nil, err
	}
	msg.Value = value
	return msg, nil
}

// valueLimits bounds what a working sensor can report; anything outside is a fault
var valueLimits = map[string]struct{ min, max float64 }{
	MetricTemperature: {-100, 100}, // Celsius
	MetricHumidity:    {0, 100},    // percent
	MetricPressure:    {300, 1100}, // hPa
}

// ValidateValue rejects non-finite values and values outside the plausible
// range of metric
func ValidateValue(metric string, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidValue, value)
	}
	if l, ok := valueLimits[metric]; ok && (value < l.min || value > l.max) {
		return fmt.Errorf("%w: %s %v outside [%v, %v]", ErrInvalidValue, metric, value, l.min, l.max)
	}
	return nil
}

func stringField(raw map[string]any, key string) string {
	if s, ok := raw[key].(string); ok {
		return s
	}
	return ""
}

func numericField(v any) (float64, error) {
	var (
		value float64
		err   error
	)
	switch x := v.(type) {
	case json.Number:
		value, err = x.Float64()
	case string:
		value, err = strconv.ParseFloat(strings.TrimSpace(x), 64)
	case float64:
		value = x
	case nil:
		return 0, fmt.Errorf("%w: missing", ErrInvalidValue)
	default:
		return 0, fmt.Errorf("%w: unsupported type %T", ErrInvalidValue, v)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidValue, value)
	}
	return value, nil
}
