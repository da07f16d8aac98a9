package services

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DefaultPollInterval matches the dashboard refresh cadence
const DefaultPollInterval = 5 * time.Second

// Poller periodically analyzes the latest state, logs a summary and
// optionally stores the snapshot
type Poller struct {
	engine   *Engine
	sink     Sink
	interval time.Duration
	logger   *zap.Logger
}

// NewPoller creates a poller. sink may be nil.
func NewPoller(engine *Engine, sink Sink, interval time.Duration, logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		engine:   engine,
		sink:     sink,
		interval: interval,
		logger:   logger.Named("poller"),
	}
}

// Start polls until ctx is cancelled
func (p *Poller) Start(ctx context.Context) error {
	p.logger.Info("starting", zap.Duration("interval", p.interval))

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("shutdown complete")
			return nil
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}

// Poll runs one analysis cycle
func (p *Poller) Poll(ctx context.Context) {
	result := p.engine.Analyze(nil)
	if !result.HasData() {
		p.logger.Debug("waiting for sensor data", zap.String("reason", result.Error))
		return
	}

	fields := []zap.Field{
		zap.String("sensor_id", result.SensorID),
		zap.String("source", result.DataSource),
		zap.Float64("temperature", result.RawData.Temperature),
		zap.Float64("humidity", result.RawData.Humidity),
		zap.Float64("pressure", result.RawData.Pressure),
		zap.Float64("comfort_score", result.Comfort.Score),
		zap.Stringer("comfort_level", result.Comfort.Level),
		zap.Int("events", len(result.Events)),
	}
	if result.Prediction != nil {
		fields = append(fields,
			zap.String("trend", string(result.Prediction.Trend)),
			zap.Float64("confidence", result.Prediction.Confidence))
	}
	p.logger.Info("analysis", fields...)

	if p.sink == nil {
		return
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.sink.SaveAnalysis(writeCtx, result); err != nil {
		p.logger.Error("saving analysis", zap.Error(err))
	}
}
