package models

import (
	"fmt"
	"time"
)

// ComfortLevel is the qualitative band of a comfort score
type ComfortLevel int

const (
	VeryUncomfortable ComfortLevel = iota
	Uncomfortable
	Moderate
	Comfortable
	VeryComfortable
)

var comfortLevelNames = map[ComfortLevel]string{
	VeryUncomfortable: "very_uncomfortable",
	Uncomfortable:     "uncomfortable",
	Moderate:          "moderate",
	Comfortable:       "comfortable",
	VeryComfortable:   "very_comfortable",
}

func (l ComfortLevel) String() string {
	if name, ok := comfortLevelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("ComfortLevel(%d)", int(l))
}

// MarshalText encodes the level by name in JSON payloads
func (l ComfortLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText decodes a level name
func (l *ComfortLevel) UnmarshalText(text []byte) error {
	for level, name := range comfortLevelNames {
		if name == string(text) {
			*l = level
			return nil
		}
	}
	return fmt.Errorf("unknown comfort level %q", text)
}

// ComfortResult holds the comfort indices derived from one reading
type ComfortResult struct {
	Temperature   float64      `json:"temperature"`
	Humidity      float64      `json:"humidity"`
	Pressure      float64      `json:"pressure"`
	THI           float64      `json:"thi"`
	FeelsLike     float64      `json:"feels_like"`
	TempScore     float64      `json:"temp_score"`
	HumidityScore float64      `json:"humidity_score"`
	PressureScore float64      `json:"pressure_score"`
	Score         float64      `json:"comfort_score"`
	Level         ComfortLevel `json:"comfort_level"`
	Timestamp     time.Time    `json:"timestamp"`
}

// Trend is the short-term direction of the temperature series
type Trend string

const (
	TrendRising  Trend = "rising"
	TrendFalling Trend = "falling"
	TrendStable  Trend = "stable"
)

// PredictionResult is a multi-step temperature forecast
type PredictionResult struct {
	Predictions    []float64 `json:"predictions"`
	Timestamps     []string  `json:"timestamps"` // display labels, not sample times
	Confidence     float64   `json:"confidence"`
	HasEnoughData  bool      `json:"has_enough_data"`
	Trend          Trend     `json:"trend"`
	ReferenceValue float64   `json:"reference_value"` // monthly reference temperature
	Method         string    `json:"prediction_type"`
}

// MatchedEvent is a context rule that matched the current reading
type MatchedEvent struct {
	Name        string   `json:"name"`
	Category    string   `json:"type"`
	Description string   `json:"description"`
	Suggestions []string `json:"suggestions"`
	Priority    int      `json:"priority"`
	StartHour   int      `json:"start_hour"`
	EndHour     int      `json:"end_hour"`
	Location    string   `json:"location"`
}

// MetricStats summarizes one metric of the comfort history
type MetricStats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std"`
	Count  int     `json:"count"`
}

// Statistics aggregates the comfort history and predictor state
type Statistics struct {
	PerMetric            map[string]MetricStats `json:"per_metric"`
	DataCount            int                    `json:"data_count"`
	PredictionDataCount  int                    `json:"prediction_data_count"`
	PredictionWindowSize int                    `json:"prediction_window_size"`
	PredictionReady      bool                   `json:"prediction_ready"`
}

// HistorySample is a down-sampled view of the metric series for charts
type HistorySample struct {
	Temperature []float64 `json:"temperature"`
	Humidity    []float64 `json:"humidity"`
	Pressure    []float64 `json:"pressure"`
	Count       int       `json:"count"`
}

// PredictionStats reports how much history the predictor holds
type PredictionStats struct {
	TemperatureHistory int `json:"temperature_history"`
	HumidityHistory    int `json:"humidity_history"`
	PressureHistory    int `json:"pressure_history"`
	WindowSize         int `json:"window_size"`
}

// AnalysisResult is the consolidated output handed to presentation layers
type AnalysisResult struct {
	Timestamp           time.Time         `json:"timestamp"`
	SensorID            string            `json:"sensor_id,omitempty"`
	Location            string            `json:"location,omitempty"`
	RawData             *CompositeReading `json:"raw_data,omitempty"`
	Comfort             ComfortResult     `json:"comfort_analysis"`
	ComfortPrompt       string            `json:"comfort_prompt"`
	Prediction          *PredictionResult `json:"prediction_result,omitempty"`
	HistorySample       *HistorySample    `json:"history_data,omitempty"`
	PredictionAvailable bool              `json:"prediction_available"`
	Events              []MatchedEvent    `json:"matched_events,omitempty"`
	Summary             string            `json:"summary,omitempty"`
	PredictionStats     PredictionStats   `json:"prediction_stats"`
	DataSource          string            `json:"data_source,omitempty"`
	Error               string            `json:"error,omitempty"`
}

// HasData reports whether the result was computed from a reading
func (a AnalysisResult) HasData() bool {
	return a.Error == "" && a.RawData != nil
}
