package models

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestDecodeSensorMessage(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		payload string
		want    SensorMessage
		wantErr error
	}{
		{
			name:    "full payload",
			topic:   "sensor/temperature",
			payload: `{"type":"temperature","value":22.5,"sensor_id":"JX_Teach_01","location":"JX_Teach","timestamp":"2024-05-20T10:00:00","extra":"Room 301"}`,
			want:    SensorMessage{Type: "temperature", Value: 22.5, SensorID: "JX_Teach_01", Location: "JX_Teach", Timestamp: "2024-05-20T10:00:00", Extra: "Room 301"},
		},
		{
			name:    "type inferred from topic",
			topic:   "campus/Humidity/raw",
			payload: `{"value":55}`,
			want:    SensorMessage{Type: "humidity", Value: 55},
		},
		{
			name:    "numeric string value",
			topic:   "sensor/pressure",
			payload: `{"value":" 1009.5 "}`,
			want:    SensorMessage{Type: "pressure", Value: 1009.5},
		},
		{
			name:    "bare number",
			topic:   "sensor/dev-1/temperature",
			payload: " 21.5\n",
			want:    SensorMessage{Type: "temperature", Value: 21.5},
		},
		{name: "empty", topic: "sensor/temperature", payload: "  ", wantErr: ErrMalformedPayload},
		{name: "broken json", topic: "sensor/temperature", payload: `{"value":`, wantErr: ErrMalformedPayload},
		{name: "bare text", topic: "sensor/temperature", payload: "warm", wantErr: ErrMalformedPayload},
		{name: "bare number on unknown topic", topic: "sensor/wind", payload: "3", wantErr: ErrUnknownMetric},
		{name: "unknown type", topic: "sensor/temperature", payload: `{"type":"wind","value":3}`, wantErr: ErrUnknownMetric},
		{name: "missing value", topic: "sensor/temperature", payload: `{"type":"temperature"}`, wantErr: ErrInvalidValue},
		{name: "boolean value", topic: "sensor/temperature", payload: `{"value":true}`, wantErr: ErrInvalidValue},
		{name: "nan string", topic: "sensor/temperature", payload: `{"value":"NaN"}`, wantErr: ErrInvalidValue},
		{name: "overflow", topic: "sensor/temperature", payload: `{"value":1e400}`, wantErr: ErrInvalidValue},
		{name: "implausible temperature", topic: "sensor/temperature", payload: `{"value":1e308}`, wantErr: ErrInvalidValue},
		{name: "humidity above 100", topic: "sensor/humidity", payload: `{"value":"120"}`, wantErr: ErrInvalidValue},
		{name: "bare implausible pressure", topic: "sensor/pressure", payload: "20", wantErr: ErrInvalidValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeSensorMessage(tt.topic, []byte(tt.payload))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got.Raw = nil
			if !reflect.DeepEqual(*got, tt.want) {
				t.Errorf("got %+v, want %+v", *got, tt.want)
			}
		})
	}
}

func TestValidateValue(t *testing.T) {
	valid := map[string]float64{
		MetricTemperature: -100,
		MetricHumidity:    100,
		MetricPressure:    1013,
	}
	for metric, v := range valid {
		if err := ValidateValue(metric, v); err != nil {
			t.Errorf("ValidateValue(%s, %v) = %v", metric, v, err)
		}
	}
	for metric, v := range map[string]float64{
		MetricTemperature: 100.1,
		MetricHumidity:    -0.5,
		MetricPressure:    1e308,
	} {
		if err := ValidateValue(metric, v); !errors.Is(err, ErrInvalidValue) {
			t.Errorf("ValidateValue(%s, %v) = %v, want ErrInvalidValue", metric, v, err)
		}
	}
}

func TestMetricFromTopic(t *testing.T) {
	cases := map[string]string{
		"sensor/temperature":        MetricTemperature,
		"sensor/JX/HUMIDITY":        MetricHumidity,
		"building/pressure/level-3": MetricPressure,
		"sensor/wind":               "",
	}
	for topic, want := range cases {
		if got := MetricFromTopic(topic); got != want {
			t.Errorf("MetricFromTopic(%q) = %q, want %q", topic, got, want)
		}
	}
}

func TestComfortLevelText(t *testing.T) {
	for _, level := range []ComfortLevel{VeryUncomfortable, Uncomfortable, Moderate, Comfortable, VeryComfortable} {
		text, _ := level.MarshalText()
		var back ComfortLevel
		if err := back.UnmarshalText(text); err != nil || back != level {
			t.Errorf("level %v round-trips to %v (%v)", level, back, err)
		}
	}
	var l ComfortLevel
	if err := l.UnmarshalText([]byte("fine")); err == nil {
		t.Error("unknown level name accepted")
	}
}

func TestAnalysisHasData(t *testing.T) {
	r := CompositeReading{Timestamp: time.Now()}
	if !(AnalysisResult{RawData: &r}).HasData() {
		t.Error("result with reading should have data")
	}
	if (AnalysisResult{RawData: &r, Error: "no sensor data available"}).HasData() {
		t.Error("result with error should not have data")
	}
}
