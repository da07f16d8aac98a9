package services

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"iot-fusion/internal/models"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestEngine(t *testing.T) (*Engine, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 5, 20, 10, 0, 0, 0, time.UTC)}
	config := DefaultEngineConfig()
	config.Clock = clock.Now
	return NewEngine(config), clock
}

func payload(metric string, value float64) []byte {
	return []byte(fmt.Sprintf(`{"type":%q,"value":%v,"sensor_id":"JX_Teach_01","location":"JX_Teach","timestamp":"2024-05-20T10:00:00"}`, metric, value))
}

func TestEngineFusesWithinSyncWindow(t *testing.T) {
	engine, clock := newTestEngine(t)

	if engine.IngestMessage("sensor/temperature", payload("temperature", 22)) {
		t.Fatal("temperature alone must not fuse")
	}
	clock.Advance(3 * time.Second)
	if !engine.IngestMessage("sensor/humidity", payload("humidity", 50)) {
		t.Fatal("humidity 3s after temperature should fuse")
	}

	got, ok := engine.Latest()
	if !ok {
		t.Fatal("Latest() reported no reading")
	}
	if got.Temperature != 22 || got.Humidity != 50 || got.Pressure != models.DefaultPressure {
		t.Errorf("fused reading = %+v", got)
	}
	if !got.Timestamp.Equal(clock.now) {
		t.Errorf("timestamp = %v, want fusion time %v", got.Timestamp, clock.now)
	}
}

func TestEngineRejectsOutsideSyncWindow(t *testing.T) {
	engine, clock := newTestEngine(t)

	engine.IngestMessage("sensor/temperature", payload("temperature", 22))
	clock.Advance(6 * time.Second)
	if engine.IngestMessage("sensor/humidity", payload("humidity", 50)) {
		t.Fatal("humidity 6s after temperature must not fuse")
	}
	if _, ok := engine.Latest(); ok {
		t.Fatal("no reading should have been fused")
	}

	result := engine.Analyze(nil)
	if result.DataSource != SourcePartial {
		t.Errorf("DataSource = %q, want %q", result.DataSource, SourcePartial)
	}
	if !result.HasData() || result.RawData.Temperature != 22 {
		t.Errorf("partial analysis = %+v", result.RawData)
	}
}

func TestEngineAnalyzeWithoutData(t *testing.T) {
	engine, _ := newTestEngine(t)

	result := engine.Analyze(nil)
	if result.Error != NoDataMessage {
		t.Fatalf("Error = %q, want %q", result.Error, NoDataMessage)
	}
	if result.HasData() || result.Prediction != nil {
		t.Errorf("no-data result carries data: %+v", result)
	}
	if result.SensorID != "JX_Teach_01" {
		t.Errorf("SensorID = %q", result.SensorID)
	}
}

func TestEngineAnalyzeIsIdempotent(t *testing.T) {
	engine, clock := newTestEngine(t)
	for i := 0; i < 25; i++ {
		engine.IngestMessage("sensor/temperature", payload("temperature", 10+float64(i)))
		clock.Advance(time.Second)
		engine.IngestMessage("sensor/humidity", payload("humidity", 50))
		clock.Advance(time.Second)
	}
	before := engine.Statistics()

	first := engine.Analyze(nil)
	second := engine.Analyze(nil)

	if !reflect.DeepEqual(first.Comfort, second.Comfort) {
		t.Errorf("comfort differs:\n%+v\n%+v", first.Comfort, second.Comfort)
	}
	if !reflect.DeepEqual(first.Prediction, second.Prediction) {
		t.Errorf("prediction differs:\n%+v\n%+v", first.Prediction, second.Prediction)
	}
	if !reflect.DeepEqual(before, engine.Statistics()) {
		t.Error("Analyze modified engine statistics")
	}
	if first.DataSource != SourceFused || !first.PredictionAvailable {
		t.Errorf("DataSource = %q, PredictionAvailable = %v", first.DataSource, first.PredictionAvailable)
	}
	if first.Prediction.Trend != models.TrendRising {
		t.Errorf("Trend = %q, want rising", first.Prediction.Trend)
	}
}

func TestEngineAnalyzeExplicitReading(t *testing.T) {
	engine, _ := newTestEngine(t)

	result := engine.Analyze(&models.CompositeReading{Temperature: 33, Humidity: 50, Pressure: 1013})
	if result.DataSource != SourceExplicit {
		t.Fatalf("DataSource = %q", result.DataSource)
	}
	if result.Location != "JX_Teach" {
		t.Errorf("Location = %q, want engine default", result.Location)
	}
	if len(result.Events) == 0 || result.Events[0].Category != "weather_warning" {
		t.Errorf("Events = %+v, want heat warning first", result.Events)
	}
	if stats := engine.Statistics(); stats.DataCount != 0 || stats.PredictionDataCount != 0 {
		t.Errorf("explicit analysis was recorded: %+v", stats)
	}
}

func TestEngineResetClearsStatistics(t *testing.T) {
	engine, clock := newTestEngine(t)
	engine.IngestMessage("sensor/temperature", payload("temperature", 22))
	clock.Advance(time.Second)
	engine.IngestMessage("sensor/humidity", payload("humidity", 50))
	clock.Advance(time.Second)
	engine.IngestMessage("sensor/pressure", payload("pressure", 1010))

	stats := engine.Statistics()
	if stats.DataCount != 2 || stats.PredictionDataCount != 2 {
		t.Fatalf("before reset: %+v", stats)
	}

	engine.Reset()
	stats = engine.Statistics()
	if stats.DataCount != 0 || stats.PredictionDataCount != 0 || stats.PredictionReady {
		t.Errorf("after reset: %+v", stats)
	}
	for _, m := range models.Metrics {
		if stats.PerMetric[m].Count != 0 {
			t.Errorf("%s count = %d after reset", m, stats.PerMetric[m].Count)
		}
	}
	if result := engine.Analyze(nil); result.Error != NoDataMessage {
		t.Errorf("Analyze after reset = %+v", result)
	}
}

func TestEngineDropsMalformedMessages(t *testing.T) {
	engine, _ := newTestEngine(t)

	for _, p := range [][]byte{
		[]byte(`not json`),
		[]byte(`{"type":"wind","value":3}`),
		[]byte(`{"type":"temperature","value":"hot"}`),
		[]byte(``),
	} {
		if engine.IngestMessage("sensor/misc", p) {
			t.Errorf("payload %q fused", p)
		}
	}
	if _, ok := engine.synchronizer.Pending(models.MetricTemperature); !ok {
		t.Fatal("temperature cache entry missing")
	}
	if entry, _ := engine.synchronizer.Pending(models.MetricTemperature); entry.LastValue != nil {
		t.Errorf("malformed payload reached the cache: %v", *entry.LastValue)
	}
}

func TestEngineDropsImplausibleValues(t *testing.T) {
	engine, clock := newTestEngine(t)
	for i := 0; i < 5; i++ {
		engine.IngestMessage("sensor/temperature", payload("temperature", 1e308))
		clock.Advance(time.Second)
		if engine.IngestMessage("sensor/humidity", payload("humidity", 50)) {
			t.Fatal("implausible temperature must not fuse")
		}
	}
	if entry, _ := engine.synchronizer.Pending(models.MetricTemperature); entry.LastValue != nil {
		t.Fatalf("implausible value reached the cache: %v", *entry.LastValue)
	}

	engine.IngestMessage("sensor/temperature", payload("temperature", 22))
	result := engine.Analyze(nil)
	if !result.HasData() || result.RawData.Temperature != 22 {
		t.Fatalf("analysis = %+v", result.RawData)
	}
	if _, err := json.Marshal(result); err != nil {
		t.Errorf("analysis does not encode: %v", err)
	}
}

func TestEngineUsesConfiguredForecastSteps(t *testing.T) {
	config := DefaultEngineConfig()
	config.ForecastSteps = 3
	engine := NewEngine(config)
	engine.IngestMessage("sensor/temperature", payload("temperature", 22))
	engine.IngestMessage("sensor/humidity", payload("humidity", 50))

	if got := len(engine.Analyze(nil).Prediction.Predictions); got != 3 {
		t.Errorf("Analyze predictions = %d, want 3", got)
	}
	if got := len(engine.Forecast(0).Predictions); got != 3 {
		t.Errorf("Forecast(0) predictions = %d, want 3", got)
	}
	if got := len(engine.Forecast(7).Predictions); got != 7 {
		t.Errorf("Forecast(7) predictions = %d, want 7", got)
	}
}

func TestEngineAcceptsBareNumericPayload(t *testing.T) {
	engine, clock := newTestEngine(t)
	engine.IngestMessage("sensor/JX_Teach_01/temperature", []byte("21.5"))
	clock.Advance(time.Second)
	if !engine.IngestMessage("sensor/JX_Teach_01/humidity", []byte("48")) {
		t.Fatal("bare numeric payloads should fuse")
	}
	got, _ := engine.Latest()
	if got.Temperature != 21.5 || got.Humidity != 48 {
		t.Errorf("reading = %+v", got)
	}
}

func TestEngineConsumerPanicIsIsolated(t *testing.T) {
	engine, clock := newTestEngine(t)
	engine.RegisterConsumer(func(models.CompositeReading) { panic("boom") })

	engine.IngestMessage("sensor/temperature", payload("temperature", 22))
	clock.Advance(time.Second)
	if !engine.IngestMessage("sensor/humidity", payload("humidity", 50)) {
		t.Fatal("fusion should succeed despite the panicking consumer")
	}

	var received []models.CompositeReading
	engine.RegisterConsumer(func(r models.CompositeReading) { received = append(received, r) })
	clock.Advance(time.Second)
	engine.IngestMessage("sensor/temperature", payload("temperature", 23))

	if len(received) != 1 || received[0].Temperature != 23 {
		t.Errorf("replacement consumer received %+v", received)
	}
	if stats := engine.Statistics(); stats.DataCount != 2 {
		t.Errorf("DataCount = %d, want 2", stats.DataCount)
	}
}

func TestEngineConcurrentAccess(t *testing.T) {
	config := DefaultEngineConfig()
	engine := NewEngine(config)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				metric := models.Metrics[(i+j)%len(models.Metrics)]
				value := 20 + float64(j%5)
				if metric == models.MetricPressure {
					value += 990
				}
				engine.IngestMessage("sensor/"+metric, payload(metric, value))
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				engine.Analyze(nil)
				engine.Statistics()
			}
		}()
	}
	wg.Wait()

	if stats := engine.Statistics(); stats.PredictionDataCount > config.MaxHistory {
		t.Errorf("history exceeded its bound: %d", stats.PredictionDataCount)
	}
}
