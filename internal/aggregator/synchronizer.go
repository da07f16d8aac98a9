package aggregator

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"iot-fusion/internal/models"
)

// DefaultSyncWindow is the maximum spread between per-metric updates of one sample
const DefaultSyncWindow = 5 * time.Second

// PendingEntry holds the most recent value seen for one metric
type PendingEntry struct {
	LastValue     *float64
	LastUpdatedAt *time.Time
	Raw           map[string]any
}

// StreamSynchronizer merges independently arriving per-metric updates into
// composite readings. Like MetricSeries it relies on the caller's lock.
type StreamSynchronizer struct {
	pending    map[string]*PendingEntry
	syncWindow time.Duration

	// Identity of the reporting sensor, last writer wins
	sensorID string
	location string

	logger *zap.Logger
}

// NewStreamSynchronizer creates a synchronizer with the given window and default identity
func NewStreamSynchronizer(syncWindow time.Duration, sensorID, location string, logger *zap.Logger) *StreamSynchronizer {
	if syncWindow < 0 {
		panic(fmt.Sprintf("aggregator: syncWindow must not be negative, got %v", syncWindow))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &StreamSynchronizer{
		syncWindow: syncWindow,
		sensorID:   sensorID,
		location:   location,
		logger:     logger,
	}
	s.Reset()
	return s
}

// Ingest records a metric update and tries to fuse a composite reading.
// The reading is stamped with observedAt, the fusion time.
func (s *StreamSynchronizer) Ingest(metric string, value float64, observedAt time.Time, raw map[string]any, sensorID, location string) (models.CompositeReading, bool) {
	if sensorID != "" {
		s.sensorID = sensorID
	}
	if location != "" {
		s.location = location
	}

	entry, ok := s.pending[metric]
	if !ok {
		s.logger.Debug("ignoring unknown metric", zap.String("metric", metric))
		return models.CompositeReading{}, false
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		s.logger.Debug("ignoring non-finite value", zap.String("metric", metric))
		return models.CompositeReading{}, false
	}

	v, at := value, observedAt
	entry.LastValue = &v
	entry.LastUpdatedAt = &at
	entry.Raw = raw

	return s.tryFuse(observedAt)
}

// tryFuse builds a composite reading when temperature and humidity are known
// and every known update lies within the sync window of now
func (s *StreamSynchronizer) tryFuse(now time.Time) (models.CompositeReading, bool) {
	temp := s.pending[models.MetricTemperature]
	humidity := s.pending[models.MetricHumidity]
	if temp.LastValue == nil || humidity.LastValue == nil {
		return models.CompositeReading{}, false
	}

	var maxDiff time.Duration
	for _, entry := range s.pending {
		if entry.LastUpdatedAt == nil {
			continue
		}
		diff := entry.LastUpdatedAt.Sub(now)
		if diff < 0 {
			diff = -diff
		}
		if diff > maxDiff {
			maxDiff = diff
		}
	}
	if maxDiff > s.syncWindow {
		s.logger.Debug("updates outside sync window",
			zap.Duration("spread", maxDiff),
			zap.Duration("window", s.syncWindow))
		return models.CompositeReading{}, false
	}

	return s.compose(now), true
}

// Partial builds a reading from whatever the cache holds, ignoring the sync
// window. Only temperature and humidity are required.
func (s *StreamSynchronizer) Partial(now time.Time) (models.CompositeReading, bool) {
	if s.pending[models.MetricTemperature].LastValue == nil || s.pending[models.MetricHumidity].LastValue == nil {
		return models.CompositeReading{}, false
	}
	return s.compose(now), true
}

func (s *StreamSynchronizer) compose(at time.Time) models.CompositeReading {
	pressure := models.DefaultPressure
	if p := s.pending[models.MetricPressure].LastValue; p != nil {
		pressure = *p
	}
	return models.CompositeReading{
		Temperature: *s.pending[models.MetricTemperature].LastValue,
		Humidity:    *s.pending[models.MetricHumidity].LastValue,
		Pressure:    pressure,
		Timestamp:   at,
		SensorID:    s.sensorID,
		Location:    s.location,
	}
}

// Pending returns a copy of the cache entry for metric
func (s *StreamSynchronizer) Pending(metric string) (PendingEntry, bool) {
	entry, ok := s.pending[metric]
	if !ok {
		return PendingEntry{}, false
	}
	return *entry, true
}

// Identity returns the current sensor ID and location
func (s *StreamSynchronizer) Identity() (string, string) {
	return s.sensorID, s.location
}

// Reset clears every cached value. Identity is kept.
func (s *StreamSynchronizer) Reset() {
	s.pending = make(map[string]*PendingEntry, len(models.Metrics))
	for _, m := range models.Metrics {
		s.pending[m] = &PendingEntry{}
	}
}
