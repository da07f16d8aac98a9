package comfort

import (
	"math"

	"iot-fusion/internal/models"
)

// DefaultHistorySize caps the number of scored readings kept for statistics
const DefaultHistorySize = 1000

// History keeps recent comfort results for aggregate statistics.
// Not safe for concurrent use.
type History struct {
	records []models.ComfortResult
	max     int
}

func NewHistory(max int) *History {
	if max <= 0 {
		max = DefaultHistorySize
	}
	return &History{max: max}
}

// Add appends a result, dropping the oldest beyond capacity
func (h *History) Add(r models.ComfortResult) {
	h.records = append(h.records, r)
	if len(h.records) > h.max {
		h.records = append(h.records[:0:0], h.records[len(h.records)-h.max:]...)
	}
}

func (h *History) Len() int {
	return len(h.records)
}

func (h *History) Reset() {
	h.records = nil
}

// Statistics returns mean, population standard deviation and count per metric.
// Zero values are treated as missing.
func (h *History) Statistics() map[string]models.MetricStats {
	values := map[string][]float64{}
	for _, r := range h.records {
		for _, m := range []struct {
			name  string
			value float64
		}{
			{models.MetricTemperature, r.Temperature},
			{models.MetricHumidity, r.Humidity},
			{models.MetricPressure, r.Pressure},
		} {
			if m.value != 0 {
				values[m.name] = append(values[m.name], m.value)
			}
		}
	}

	out := make(map[string]models.MetricStats, len(models.Metrics))
	for _, name := range models.Metrics {
		out[name] = summarize(values[name])
	}
	return out
}

func summarize(values []float64) models.MetricStats {
	if len(values) == 0 {
		return models.MetricStats{}
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return models.MetricStats{
		Mean:   mean,
		StdDev: math.Sqrt(sq / float64(len(values))),
		Count:  len(values),
	}
}
