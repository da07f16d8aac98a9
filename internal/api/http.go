package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"iot-fusion/internal/comfort"
	"iot-fusion/internal/ml"
	"iot-fusion/internal/models"
)

const (
	maxForecastSteps = 100
	maxBodyBytes     = 1 << 16
)

// Server holds the HTTP handlers
type Server struct {
	engine    Engine
	publisher FilterPublisher
	archive   Archive
	mqtt      Connectivity
	logger    *zap.Logger
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	_, ok := s.engine.Latest()
	body := map[string]any{"status": "ok", "has_data": ok}
	if s.mqtt != nil {
		connected := s.mqtt.IsConnected()
		body["mqtt_connected"] = connected
		if !connected {
			body["status"] = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, body)
}

// events lists the rules matched by the last fused reading
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	events := s.engine.LastEvents()
	if events == nil {
		events = []models.MatchedEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events, "count": len(events)})
}

func (s *Server) analysis(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Analyze(nil))
}

// readingRequest is the body of POST /analysis. Temperature and humidity are
// required; pressure defaults to the standard atmosphere.
type readingRequest struct {
	Temperature *float64  `json:"temperature"`
	Humidity    *float64  `json:"humidity"`
	Pressure    *float64  `json:"pressure"`
	Timestamp   time.Time `json:"timestamp"`
	SensorID    string    `json:"sensor_id"`
	Location    string    `json:"location"`
}

func (req readingRequest) reading() (models.CompositeReading, error) {
	if req.Temperature == nil || req.Humidity == nil {
		return models.CompositeReading{}, errors.New("data incomplete: temperature and humidity are required")
	}
	reading := models.CompositeReading{
		Temperature: *req.Temperature,
		Humidity:    *req.Humidity,
		Pressure:    models.DefaultPressure,
		Timestamp:   req.Timestamp,
		SensorID:    req.SensorID,
		Location:    req.Location,
	}
	if req.Pressure != nil {
		reading.Pressure = *req.Pressure
	}
	for _, m := range models.Metrics {
		v, _ := reading.Value(m)
		if err := models.ValidateValue(m, v); err != nil {
			return models.CompositeReading{}, err
		}
	}
	return reading, nil
}

// analyzeReading scores a caller-supplied reading without recording it
func (s *Server) analyzeReading(w http.ResponseWriter, r *http.Request) {
	var req readingRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	reading, err := req.reading()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Analyze(&reading))
}

func (s *Server) forecast(w http.ResponseWriter, r *http.Request) {
	steps := 0 // engine default
	if raw := r.URL.Query().Get("steps"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxForecastSteps {
			writeError(w, http.StatusBadRequest, "steps must be an integer between 1 and 100")
			return
		}
		steps = n
	}
	writeJSON(w, http.StatusOK, s.engine.Forecast(steps))
}

func (s *Server) statistics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Statistics())
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	metric := mux.Vars(r)["metric"]
	points := ml.DefaultHistoryPoints
	if raw := r.URL.Query().Get("points"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "points must be a positive integer")
			return
		}
		points = n
	}

	values, ok := s.engine.History(metric, points)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown metric "+strconv.Quote(metric))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"metric": metric, "values": values, "count": len(values)})
}

func (s *Server) reference(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"current": s.engine.Reference(),
		"yearly":  comfort.YearlyTemperatures(),
	})
}

func (s *Server) reset(w http.ResponseWriter, r *http.Request) {
	s.engine.Reset()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) publishFilter(w http.ResponseWriter, r *http.Request) {
	if s.publisher == nil {
		writeError(w, http.StatusServiceUnavailable, "publishing is not enabled")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	filter, err := models.ParsePublishFilter(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.publisher.PublishFilter(filter); err != nil {
		s.logger.Error("publishing filter", zap.Error(err))
		writeError(w, http.StatusBadGateway, "failed to publish filter")
		return
	}
	writeJSON(w, http.StatusAccepted, filter)
}

func (s *Server) archiveStats(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeError(w, http.StatusServiceUnavailable, "archive is not enabled")
		return
	}
	q := r.URL.Query()
	sensorID := q.Get("sensor_id")
	if sensorID == "" {
		if latest, ok := s.engine.Latest(); ok {
			sensorID = latest.SensorID
		}
	}
	if sensorID == "" {
		writeError(w, http.StatusBadRequest, "sensor_id is required")
		return
	}
	window := 24 * time.Hour
	if raw := q.Get("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, "window must be a positive duration such as 24h")
			return
		}
		window = d
	}

	stats, err := s.archive.ReadingStats(r.Context(), sensorID, time.Now().Add(-window))
	if err != nil {
		s.logger.Error("querying archive", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "archive query failed")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid json: " + err.Error())
	}
	return nil
}

// writeJSON encodes before writing the header so an unencodable value
// becomes a 500 instead of an empty 200
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.Marshal(map[string]string{"error": "failed to encode response"})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
