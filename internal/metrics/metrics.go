package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "env_fusion"

// Metrics holds the collectors of one fusion process. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	messagesTotal     *prometheus.CounterVec
	fusionsTotal      *prometheus.CounterVec
	comfortScore      prometheus.Gauge
	forecastConf      prometheus.Gauge
	publishedTotal    *prometheus.CounterVec
	sinkErrors        prometheus.Counter
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

// New registers every collector on a private registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		messagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Inbound sensor messages by outcome (accepted, rejected, dropped).",
		}, []string{"outcome"}),
		fusionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fusions_total",
			Help:      "Fusion attempts by result (succeeded, failed).",
		}, []string{"result"}),
		comfortScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "comfort_score",
			Help:      "Latest composite comfort score (0-100).",
		}),
		forecastConf: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "forecast_confidence",
			Help:      "Confidence of the latest temperature forecast.",
		}),
		publishedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "published_total",
			Help:      "Outbound MQTT publications by kind and status.",
		}, []string{"kind", "status"}),
		sinkErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Failed writes to the ClickHouse sink.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Histogram of HTTP request durations by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		m.messagesTotal,
		m.fusionsTotal,
		m.comfortScore,
		m.forecastConf,
		m.publishedTotal,
		m.sinkErrors,
		m.httpRequestsTotal,
		m.httpDuration,
		prometheus.NewGoCollector(),
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) MessageAccepted() {
	if m == nil {
		return
	}
	m.messagesTotal.WithLabelValues("accepted").Inc()
}

func (m *Metrics) MessageRejected() {
	if m == nil {
		return
	}
	m.messagesTotal.WithLabelValues("rejected").Inc()
}

func (m *Metrics) MessageDropped() {
	if m == nil {
		return
	}
	m.messagesTotal.WithLabelValues("dropped").Inc()
}

// Fusion records the result of one fusion attempt
func (m *Metrics) Fusion(succeeded bool) {
	if m == nil {
		return
	}
	result := "failed"
	if succeeded {
		result = "succeeded"
	}
	m.fusionsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ComfortScore(score float64) {
	if m == nil {
		return
	}
	m.comfortScore.Set(score)
}

func (m *Metrics) ForecastConfidence(confidence float64) {
	if m == nil {
		return
	}
	m.forecastConf.Set(confidence)
}

// Published records one outbound publication of the given kind
func (m *Metrics) Published(kind string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.publishedTotal.WithLabelValues(kind, status).Inc()
}

func (m *Metrics) SinkError() {
	if m == nil {
		return
	}
	m.sinkErrors.Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// WrapHandler counts requests and observes latency for route
func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		if m != nil {
			m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
			m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}
	})
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
