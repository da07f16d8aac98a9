package models

import (
	"strings"
	"time"
)

// Metric names carried in the "type" field of sensor payloads
const (
	MetricTemperature = "temperature"
	MetricHumidity    = "humidity"
	MetricPressure    = "pressure"
)

// DefaultPressure is used when no pressure reading has been observed (hPa)
const DefaultPressure = 1013.0

// Metrics lists every metric the engine tracks, in display order
var Metrics = []string{MetricTemperature, MetricHumidity, MetricPressure}

// IsMetric reports whether name is one of the tracked metrics
func IsMetric(name string) bool {
	switch name {
	case MetricTemperature, MetricHumidity, MetricPressure:
		return true
	}
	return false
}

// MetricFromTopic infers the metric from an MQTT topic name.
// Example: "sensor/temperature" -> "temperature"
func MetricFromTopic(topic string) string {
	lower := strings.ToLower(topic)
	for _, m := range Metrics {
		if strings.Contains(lower, m) {
			return m
		}
	}
	return ""
}

// MetricSample is a single timestamped value of one metric
type MetricSample struct {
	Value      float64   `json:"value"`
	ObservedAt time.Time `json:"observed_at"`
}

// CompositeReading is one fused temperature/humidity/pressure sample
type CompositeReading struct {
	Temperature float64   `json:"temperature"` // Celsius
	Humidity    float64   `json:"humidity"`    // Percentage 0-100
	Pressure    float64   `json:"pressure"`    // hPa
	Timestamp   time.Time `json:"timestamp"`   // fusion time
	SensorID    string    `json:"sensor_id"`
	Location    string    `json:"location"`
}

// Value returns the named metric of the reading
func (r CompositeReading) Value(metric string) (float64, bool) {
	switch metric {
	case MetricTemperature:
		return r.Temperature, true
	case MetricHumidity:
		return r.Humidity, true
	case MetricPressure:
		return r.Pressure, true
	}
	return 0, false
}

// SensorMessage is the decoded inbound MQTT payload
type SensorMessage struct {
	Type      string         `json:"type"`
	Value     float64        `json:"value"`
	SensorID  string         `json:"sensor_id"`
	Location  string         `json:"location"`
	Timestamp string         `json:"timestamp"` // ISO8601, as sent by the publisher
	Extra     string         `json:"extra,omitempty"`
	Raw       map[string]any `json:"-"`
}
