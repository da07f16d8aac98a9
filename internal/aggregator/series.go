package aggregator

import (
	"fmt"
	"time"

	"iot-fusion/internal/models"
)

// DefaultMaxHistory is the per-metric capacity used when none is configured
const DefaultMaxHistory = 100

// MetricSeries is a bounded FIFO of timestamped values for one metric.
// It does no locking; callers serialize access.
type MetricSeries struct {
	samples    []models.MetricSample
	maxHistory int
}

// NewMetricSeries creates an empty series holding at most maxHistory samples
func NewMetricSeries(maxHistory int) *MetricSeries {
	if maxHistory <= 0 {
		panic(fmt.Sprintf("aggregator: maxHistory must be positive, got %d", maxHistory))
	}
	return &MetricSeries{
		samples:    make([]models.MetricSample, 0, maxHistory),
		maxHistory: maxHistory,
	}
}

// Append adds a sample, evicting the oldest one on overflow
func (s *MetricSeries) Append(value float64, at time.Time) {
	sample := models.MetricSample{Value: value, ObservedAt: at}
	if len(s.samples) >= s.maxHistory {
		copy(s.samples, s.samples[1:])
		s.samples[len(s.samples)-1] = sample
		return
	}
	s.samples = append(s.samples, sample)
}

// Last returns a copy of up to the last n samples, oldest first
func (s *MetricSeries) Last(n int) []models.MetricSample {
	if n <= 0 || len(s.samples) == 0 {
		return nil
	}
	start := len(s.samples) - n
	if start < 0 {
		start = 0
	}
	out := make([]models.MetricSample, len(s.samples)-start)
	copy(out, s.samples[start:])
	return out
}

// Window returns the most recent n samples, or all of them when fewer exist.
// Callers must check the length of the result.
func (s *MetricSeries) Window(n int) []models.MetricSample {
	return s.Last(n)
}

// Values returns every stored value, oldest first
func (s *MetricSeries) Values() []float64 {
	out := make([]float64, len(s.samples))
	for i, sample := range s.samples {
		out[i] = sample.Value
	}
	return out
}

// Len returns the number of stored samples
func (s *MetricSeries) Len() int {
	return len(s.samples)
}

// Reset drops every sample
func (s *MetricSeries) Reset() {
	s.samples = s.samples[:0]
}
