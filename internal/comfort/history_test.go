package comfort

import (
	"math"
	"testing"

	"iot-fusion/internal/models"
)

func TestHistoryStatistics(t *testing.T) {
	h := NewHistory(10)
	for _, temp := range []float64{20, 22, 24} {
		h.Add(models.ComfortResult{Temperature: temp, Humidity: 50, Pressure: 0})
	}

	stats := h.Statistics()
	temp := stats[models.MetricTemperature]
	if temp.Count != 3 || temp.Mean != 22 {
		t.Fatalf("unexpected temperature stats %+v", temp)
	}
	if want := math.Sqrt(8.0 / 3.0); math.Abs(temp.StdDev-want) > 1e-9 {
		t.Fatalf("stddev %v, want %v", temp.StdDev, want)
	}
	if stats[models.MetricHumidity].StdDev != 0 {
		t.Fatalf("constant humidity should have zero stddev")
	}
	if stats[models.MetricPressure].Count != 0 {
		t.Fatalf("zero pressure values must be ignored")
	}
}

func TestHistoryCapAndReset(t *testing.T) {
	h := NewHistory(3)
	for i := 1; i <= 5; i++ {
		h.Add(models.ComfortResult{Temperature: float64(i)})
	}
	if h.Len() != 3 {
		t.Fatalf("expected 3 records, got %d", h.Len())
	}
	if mean := h.Statistics()[models.MetricTemperature].Mean; mean != 4 {
		t.Fatalf("expected mean of last three (4), got %v", mean)
	}

	h.Reset()
	for _, m := range models.Metrics {
		if c := h.Statistics()[m].Count; c != 0 {
			t.Fatalf("%s count %d after reset", m, c)
		}
	}
}
