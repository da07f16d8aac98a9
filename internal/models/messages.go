package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// RawMessage is an MQTT message handed from the subscriber to the fusion loop
type RawMessage struct {
	Topic      string
	Payload    []byte
	ReceivedAt time.Time
}

// AnalysisRequest asks the publisher to publish an analysis for a fused reading
type AnalysisRequest struct {
	Reading     CompositeReading
	RequestedAt time.Time
}

// PublishFilter selects which metrics a replay publisher sends.
// It is carried on the control topic.
type PublishFilter struct {
	Enabled []string `json:"enabled"`
}

// Allows reports whether metric may be published
func (f PublishFilter) Allows(metric string) bool {
	for _, m := range f.Enabled {
		if m == metric {
			return true
		}
	}
	return false
}

// ParsePublishFilter accepts either {"enabled":[...]} or a map of metric to
// bool. Unknown metric names are ignored.
func ParsePublishFilter(payload []byte) (PublishFilter, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return PublishFilter{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	if enabled, ok := raw["enabled"]; ok {
		var names []string
		if err := json.Unmarshal(enabled, &names); err != nil {
			return PublishFilter{}, fmt.Errorf("%w: enabled: %v", ErrMalformedPayload, err)
		}
		f := PublishFilter{Enabled: []string{}}
		for _, m := range names {
			if IsMetric(m) {
				f.Enabled = append(f.Enabled, m)
			}
		}
		return f, nil
	}

	f := PublishFilter{Enabled: []string{}}
	for key, value := range raw {
		if !IsMetric(key) {
			continue
		}
		var on bool
		if err := json.Unmarshal(value, &on); err != nil {
			return PublishFilter{}, fmt.Errorf("%w: %s: %v", ErrMalformedPayload, key, err)
		}
		if on {
			f.Enabled = append(f.Enabled, key)
		}
	}
	sort.Strings(f.Enabled)
	return f, nil
}
