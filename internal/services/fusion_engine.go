package services

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"iot-fusion/internal/aggregator"
	"iot-fusion/internal/comfort"
	"iot-fusion/internal/metrics"
	"iot-fusion/internal/ml"
	"iot-fusion/internal/models"
	"iot-fusion/internal/rules"
)

// NoDataMessage is embedded in analyses requested before any reading exists
const NoDataMessage = "no sensor data available"

// Data sources reported in AnalysisResult.DataSource
const (
	SourceExplicit = "explicit"
	SourceFused    = "fused"
	SourcePartial  = "partial"
)

// Consumer receives every fused reading. It runs while the engine lock is
// held and must not call back into the engine.
type Consumer func(models.CompositeReading)

// EngineConfig holds configuration for the fusion engine
type EngineConfig struct {
	SyncWindow     time.Duration
	MaxHistory     int
	WindowSize     int
	ComfortHistory int
	HistoryPoints  int
	ForecastSteps  int
	SensorID       string
	Location       string
	Rules          []rules.Rule

	// Locker guards all engine state. The default *sync.Mutex is not reentrant.
	Locker  sync.Locker
	Clock   func() time.Time
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// DefaultEngineConfig returns default configuration
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		SyncWindow:     aggregator.DefaultSyncWindow,
		MaxHistory:     aggregator.DefaultMaxHistory,
		WindowSize:     ml.DefaultWindowSize,
		ComfortHistory: comfort.DefaultHistorySize,
		HistoryPoints:  ml.DefaultHistoryPoints,
		ForecastSteps:  ml.DefaultSteps,
		SensorID:       "JX_Teach_01",
		Location:       "JX_Teach",
		Rules:          rules.DefaultCatalog(),
	}
}

// Engine fuses sensor streams and produces comfort, forecast and context
// analyses. Every exported method is safe for concurrent use.
type Engine struct {
	mu      sync.Locker
	clock   func() time.Time
	logger  *zap.Logger
	metrics *metrics.Metrics

	synchronizer  *aggregator.StreamSynchronizer
	predictor     *ml.TrendPredictor
	history       *comfort.History
	rules         *rules.Engine
	historyPoints int
	forecastSteps int

	last       *models.CompositeReading
	lastEvents []models.MatchedEvent
	consumer   Consumer
}

// NewEngine creates an engine. Invalid sizes panic.
func NewEngine(config EngineConfig) *Engine {
	if config.Locker == nil {
		config.Locker = &sync.Mutex{}
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.Rules == nil {
		config.Rules = rules.DefaultCatalog()
	}
	if config.HistoryPoints <= 0 {
		config.HistoryPoints = ml.DefaultHistoryPoints
	}
	if config.ForecastSteps <= 0 {
		config.ForecastSteps = ml.DefaultSteps
	}
	logger := config.Logger.Named("fusion")

	return &Engine{
		mu:            config.Locker,
		clock:         config.Clock,
		logger:        logger,
		metrics:       config.Metrics,
		synchronizer:  aggregator.NewStreamSynchronizer(config.SyncWindow, config.SensorID, config.Location, logger),
		predictor:     ml.NewTrendPredictor(config.WindowSize, config.MaxHistory, logger),
		history:       comfort.NewHistory(config.ComfortHistory),
		rules:         rules.NewEngine(config.Rules),
		historyPoints: config.HistoryPoints,
		forecastSteps: config.ForecastSteps,
	}
}

// RegisterConsumer sets the callback invoked for each fused reading,
// replacing any previous one. nil removes it.
func (e *Engine) RegisterConsumer(c Consumer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.consumer = c
}

// IngestMessage decodes one MQTT message and feeds it to the synchronizer.
// Malformed messages are logged and dropped. It reports whether the message
// completed a composite reading.
func (e *Engine) IngestMessage(topic string, payload []byte) bool {
	msg, err := models.DecodeSensorMessage(topic, payload)
	if err != nil {
		e.logger.Warn("dropping sensor message", zap.String("topic", topic), zap.Error(err))
		e.metrics.MessageRejected()
		return false
	}
	e.metrics.MessageAccepted()

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock()
	reading, fused := e.synchronizer.Ingest(msg.Type, msg.Value, now, msg.Raw, msg.SensorID, msg.Location)
	e.metrics.Fusion(fused)
	if !fused {
		return false
	}

	e.onFused(reading, now)
	return true
}

// onFused runs score, predictor update and rule matching for a new reading.
// Caller holds the lock.
func (e *Engine) onFused(reading models.CompositeReading, now time.Time) {
	result := comfort.Score(reading)
	e.history.Add(result)
	e.predictor.AddSample(reading)
	e.lastEvents = e.rules.Match(reading, now)
	e.last = &reading

	e.metrics.ComfortScore(result.Score)
	e.logger.Debug("fused reading",
		zap.Float64("temperature", reading.Temperature),
		zap.Float64("humidity", reading.Humidity),
		zap.Float64("pressure", reading.Pressure),
		zap.Float64("comfort_score", result.Score),
		zap.Int("events", len(e.lastEvents)))

	e.notify(reading)
}

// notify delivers the reading to the consumer, isolating its panics
func (e *Engine) notify(reading models.CompositeReading) {
	if e.consumer == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("consumer panicked", zap.Any("panic", r))
		}
	}()
	e.consumer(reading)
}

// Analyze produces a consolidated analysis. With a nil reading it uses the
// last fused reading, then the pending cache. It never modifies engine state.
func (e *Engine) Analyze(reading *models.CompositeReading) models.AnalysisResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock()
	current, source, ok := e.currentReading(reading, now)
	if !ok {
		sensorID, location := e.synchronizer.Identity()
		return models.AnalysisResult{
			Timestamp:       now,
			SensorID:        sensorID,
			Location:        location,
			PredictionStats: e.predictor.Stats(),
			Error:           NoDataMessage,
		}
	}

	score := comfort.Score(current)
	prediction := e.predictor.Forecast(e.forecastSteps, now)
	history := e.predictor.History(e.historyPoints)
	events := e.rules.Match(current, now)

	e.metrics.ForecastConfidence(prediction.Confidence)

	return models.AnalysisResult{
		Timestamp:           now,
		SensorID:            current.SensorID,
		Location:            current.Location,
		RawData:             &current,
		Comfort:             score,
		ComfortPrompt:       comfort.Prompt(score.Level),
		Prediction:          &prediction,
		HistorySample:       &history,
		PredictionAvailable: e.predictor.Ready(),
		Events:              events,
		Summary:             rules.Narrate(current, events),
		PredictionStats:     e.predictor.Stats(),
		DataSource:          source,
	}
}

// currentReading picks the reading to analyze. Caller holds the lock.
func (e *Engine) currentReading(explicit *models.CompositeReading, now time.Time) (models.CompositeReading, string, bool) {
	if explicit != nil {
		r := *explicit
		if r.Timestamp.IsZero() {
			r.Timestamp = now
		}
		sensorID, location := e.synchronizer.Identity()
		if r.SensorID == "" {
			r.SensorID = sensorID
		}
		if r.Location == "" {
			r.Location = location
		}
		return r, SourceExplicit, true
	}
	if e.last != nil {
		return *e.last, SourceFused, true
	}
	if r, ok := e.synchronizer.Partial(now); ok {
		return r, SourcePartial, true
	}
	return models.CompositeReading{}, "", false
}

// Forecast predicts the next steps temperatures; steps <= 0 uses the
// configured forecast length
func (e *Engine) Forecast(steps int) models.PredictionResult {
	if steps <= 0 {
		steps = e.forecastSteps
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.predictor.Forecast(steps, e.clock())
}

// Statistics summarizes the comfort history and predictor state
func (e *Engine) Statistics() models.Statistics {
	e.mu.Lock()
	defer e.mu.Unlock()

	stats := e.predictor.Stats()
	return models.Statistics{
		PerMetric:            e.history.Statistics(),
		DataCount:            e.history.Len(),
		PredictionDataCount:  stats.TemperatureHistory,
		PredictionWindowSize: stats.WindowSize,
		PredictionReady:      e.predictor.Ready(),
	}
}

// Reset clears the pending cache, every history and the last reading
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.synchronizer.Reset()
	e.predictor.Reset()
	e.history.Reset()
	e.last = nil
	e.lastEvents = nil
	e.logger.Info("engine state reset")
}

// Latest returns the last fused reading
func (e *Engine) Latest() (models.CompositeReading, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.last == nil {
		return models.CompositeReading{}, false
	}
	return *e.last, true
}

// LastEvents returns the rules matched by the last fused reading
func (e *Engine) LastEvents() []models.MatchedEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]models.MatchedEvent(nil), e.lastEvents...)
}

// Trend returns the short-term temperature direction
func (e *Engine) Trend() models.Trend {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.predictor.Trend()
}

// History returns one metric series down-sampled to maxPoints
func (e *Engine) History(metric string, maxPoints int) ([]float64, bool) {
	if !models.IsMetric(metric) {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.predictor.SampledHistory(metric, maxPoints), true
}

// Reference returns the climate reference for the current month
func (e *Engine) Reference() comfort.Reference {
	return comfort.ReferenceFor(int(e.clock().Month()))
}

// Identity returns the current sensor ID and location
func (e *Engine) Identity() (string, string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.synchronizer.Identity()
}
