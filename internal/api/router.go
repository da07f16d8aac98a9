package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"iot-fusion/internal/comfort"
	"iot-fusion/internal/database"
	"iot-fusion/internal/metrics"
	"iot-fusion/internal/models"
)

// Engine is the part of the fusion engine the API serves
type Engine interface {
	Analyze(reading *models.CompositeReading) models.AnalysisResult
	Forecast(steps int) models.PredictionResult
	Statistics() models.Statistics
	History(metric string, maxPoints int) ([]float64, bool)
	Reference() comfort.Reference
	Latest() (models.CompositeReading, bool)
	LastEvents() []models.MatchedEvent
	Reset()
}

// FilterPublisher sends publish filters to replay publishers
type FilterPublisher interface {
	PublishFilter(filter models.PublishFilter) error
}

// Archive answers queries over archived readings
type Archive interface {
	ReadingStats(ctx context.Context, sensorID string, since time.Time) (*database.ArchiveStats, error)
}

// Connectivity reports the broker connection state
type Connectivity interface {
	IsConnected() bool
}

// Options wires optional collaborators into the router
type Options struct {
	Publisher FilterPublisher // nil disables /control/publish-filter
	Archive   Archive         // nil disables /archive/stats
	MQTT      Connectivity    // nil omits mqtt_connected from /health
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

// NewRouter builds the HTTP handler with request logging and panic recovery
func NewRouter(engine Engine, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	s := &Server{
		engine:    engine,
		publisher: opts.Publisher,
		archive:   opts.Archive,
		mqtt:      opts.MQTT,
		logger:    opts.Logger.Named("api"),
	}

	r := mux.NewRouter()
	route := func(path string, h http.HandlerFunc, methods ...string) {
		r.Handle(path, opts.Metrics.WrapHandler(path, h)).Methods(methods...)
	}

	route("/health", s.health, http.MethodGet)
	route("/analysis", s.analysis, http.MethodGet)
	route("/analysis", s.analyzeReading, http.MethodPost)
	route("/forecast", s.forecast, http.MethodGet)
	route("/statistics", s.statistics, http.MethodGet)
	route("/events", s.events, http.MethodGet)
	route("/history/{metric}", s.history, http.MethodGet)
	route("/reference", s.reference, http.MethodGet)
	route("/reset", s.reset, http.MethodPost)
	route("/control/publish-filter", s.publishFilter, http.MethodPost)
	route("/archive/stats", s.archiveStats, http.MethodGet)
	r.Handle("/metrics", opts.Metrics.Handler()).Methods(http.MethodGet)

	accessLog := zap.NewStdLog(s.logger.Named("access")).Writer()
	return handlers.RecoveryHandler(handlers.PrintRecoveryStack(false))(
		handlers.LoggingHandler(accessLog, r),
	)
}
