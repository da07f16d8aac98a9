package ml

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"iot-fusion/internal/aggregator"
	"iot-fusion/internal/comfort"
	"iot-fusion/internal/models"
)

const (
	DefaultWindowSize    = 20 // points required for regression
	DefaultSteps         = 5
	DefaultHistoryPoints = 30

	fallbackConfidence  = 0.3
	maxConfidence       = 0.95
	confidenceScale     = 100.0
	fallbackTemperature = 20.0
	fallbackPoints      = 5

	// Physical bounds for forecast temperatures (Celsius)
	minForecast = -10.0
	maxForecast = 45.0

	stepInterval = 10 * time.Minute
	labelLayout  = "15:04"
)

// TrendPredictor keeps per-metric history and forecasts temperature.
// Not safe for concurrent use; the fusion engine serializes access.
type TrendPredictor struct {
	windowSize int
	series     map[string]*aggregator.MetricSeries
	logger     *zap.Logger
}

// NewTrendPredictor creates a predictor. windowSize and maxHistory must be
// positive and the window must fit in the history.
func NewTrendPredictor(windowSize, maxHistory int, logger *zap.Logger) *TrendPredictor {
	if windowSize <= 0 || maxHistory <= 0 || windowSize > maxHistory {
		panic(fmt.Sprintf("ml: invalid predictor sizes window=%d history=%d", windowSize, maxHistory))
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	series := make(map[string]*aggregator.MetricSeries, len(models.Metrics))
	for _, m := range models.Metrics {
		series[m] = aggregator.NewMetricSeries(maxHistory)
	}
	return &TrendPredictor{
		windowSize: windowSize,
		series:     series,
		logger:     logger,
	}
}

// AddSample appends every metric of the reading to its series
func (p *TrendPredictor) AddSample(r models.CompositeReading) {
	for _, m := range models.Metrics {
		v, _ := r.Value(m)
		p.series[m].Append(v, r.Timestamp)
	}
}

// Forecast predicts the next steps temperature values. It never fails: with
// too little history, or when the fit is unusable, it repeats a recent average.
func (p *TrendPredictor) Forecast(steps int, now time.Time) models.PredictionResult {
	if steps <= 0 {
		steps = DefaultSteps
	}
	count := p.series[models.MetricTemperature].Len()

	result := models.PredictionResult{
		Timestamps:     futureTimestamps(steps, now),
		Trend:          p.Trend(),
		ReferenceValue: comfort.ReferenceFor(int(now.Month())).Temperature,
	}

	if count < p.windowSize {
		result.Predictions = p.averagePredict(steps)
		result.Confidence = fallbackConfidence
		result.Method = fmt.Sprintf("simple average (insufficient data %d/%d)", count, p.windowSize)
		return result
	}

	result.HasEnoughData = true
	result.Confidence = math.Min(maxConfidence, float64(count)/confidenceScale)

	predictions, ok := p.regressionPredict(steps)
	if !ok {
		p.logger.Warn("regression fit unusable, falling back to average", zap.Int("points", count))
		result.Predictions = p.averagePredict(steps)
		result.Method = "simple average (regression fallback)"
		return result
	}
	result.Predictions = predictions
	result.Method = fmt.Sprintf("linear regression (last %d points)", p.windowSize)
	return result
}

// averagePredict repeats the rounded mean of the last few temperatures,
// clipped to the physical bounds
func (p *TrendPredictor) averagePredict(steps int) []float64 {
	recent := p.series[models.MetricTemperature].Last(fallbackPoints)
	value := fallbackTemperature
	if len(recent) > 0 {
		// dividing first keeps the mean finite for any finite inputs
		n := float64(len(recent))
		var mean float64
		for _, s := range recent {
			mean += s.Value / n
		}
		value = round1(clip(mean))
	}

	out := make([]float64, steps)
	for i := range out {
		out[i] = value
	}
	return out
}

// regressionPredict fits the last windowSize temperatures against their index
// and extrapolates, clipping to the physical bounds
func (p *TrendPredictor) regressionPredict(steps int) ([]float64, bool) {
	window := p.series[models.MetricTemperature].Window(p.windowSize)
	values := make([]float64, len(window))
	for i, s := range window {
		values[i] = s.Value
	}

	fit, ok := FitLinear(values)
	if !ok {
		return nil, false
	}

	out := make([]float64, steps)
	for i := range out {
		v := fit.Predict(float64(len(values) + i))
		if math.IsNaN(v) {
			return nil, false
		}
		out[i] = round1(clip(v))
	}
	return out, true
}

// Trend compares the first and last of the three most recent temperatures
func (p *TrendPredictor) Trend() models.Trend {
	recent := p.series[models.MetricTemperature].Last(3)
	if len(recent) < 3 {
		return models.TrendStable
	}
	first, last := recent[0].Value, recent[2].Value
	switch {
	case last > first+0.5:
		return models.TrendRising
	case last < first-0.5:
		return models.TrendFalling
	default:
		return models.TrendStable
	}
}

// SampledHistory down-samples a metric series evenly to at most maxPoints values
func (p *TrendPredictor) SampledHistory(metric string, maxPoints int) []float64 {
	s, ok := p.series[metric]
	if !ok {
		return []float64{}
	}
	if maxPoints <= 0 {
		maxPoints = DefaultHistoryPoints
	}
	return downsample(s.Values(), maxPoints)
}

// History returns the down-sampled view of every metric
func (p *TrendPredictor) History(maxPoints int) models.HistorySample {
	temps := p.SampledHistory(models.MetricTemperature, maxPoints)
	return models.HistorySample{
		Temperature: temps,
		Humidity:    p.SampledHistory(models.MetricHumidity, maxPoints),
		Pressure:    p.SampledHistory(models.MetricPressure, maxPoints),
		Count:       len(temps),
	}
}

// Stats reports the size of every series
func (p *TrendPredictor) Stats() models.PredictionStats {
	return models.PredictionStats{
		TemperatureHistory: p.series[models.MetricTemperature].Len(),
		HumidityHistory:    p.series[models.MetricHumidity].Len(),
		PressureHistory:    p.series[models.MetricPressure].Len(),
		WindowSize:         p.windowSize,
	}
}

// Ready reports whether enough temperature points exist for regression
func (p *TrendPredictor) Ready() bool {
	return p.series[models.MetricTemperature].Len() >= p.windowSize
}

// Reset clears every series
func (p *TrendPredictor) Reset() {
	for _, s := range p.series {
		s.Reset()
	}
}

func downsample(values []float64, maxPoints int) []float64 {
	n := len(values)
	if n == 0 {
		return []float64{}
	}
	k := maxPoints
	if n < k {
		k = n
	}
	stride := n / k
	start := n - k*stride

	out := make([]float64, 0, k)
	for i := start; i < n && len(out) < k; i += stride {
		out = append(out, values[i])
	}
	return out
}

func futureTimestamps(steps int, now time.Time) []string {
	out := make([]string, steps)
	for i := range out {
		out[i] = now.Add(time.Duration(i) * stepInterval).Format(labelLayout)
	}
	return out
}

func clip(v float64) float64 {
	return math.Min(maxForecast, math.Max(minForecast, v))
}

func round1(v float64) float64 {
	scaled := v * 10
	if math.IsInf(scaled, 0) || math.IsNaN(scaled) {
		return v
	}
	return math.Round(scaled) / 10
}
