package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"iot-fusion/internal/models"
)

// Config holds ClickHouse connection settings
type Config struct {
	Addr     string
	Database string
	Username string
	Password string
}

// ClickHouseDB archives fused readings and analysis snapshots
type ClickHouseDB struct {
	conn   driver.Conn
	logger *zap.Logger
}

// NewClickHouseDB creates a new ClickHouse database connection
func NewClickHouseDB(ctx context.Context, config Config, logger *zap.Logger) (*ClickHouseDB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{config.Addr},
		Auth: clickhouse.Auth{
			Database: config.Database,
			Username: config.Username,
			Password: config.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	logger = logger.Named("clickhouse")
	logger.Info("connected", zap.String("addr", config.Addr), zap.String("database", config.Database))

	db := &ClickHouseDB{conn: conn, logger: logger}
	if err := db.InitSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return db, nil
}

// InitSchema creates the necessary tables if they don't exist
func (db *ClickHouseDB) InitSchema(ctx context.Context) error {
	for _, tableSQL := range AllTables() {
		if err := db.conn.Exec(ctx, tableSQL); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	db.logger.Info("schema initialized")
	return nil
}

// readingRow is the column layout of fused_readings
type readingRow struct {
	Timestamp    time.Time
	SensorID     string
	Location     string
	Temperature  float64
	Humidity     float64
	Pressure     float64
	THI          float64
	FeelsLike    float64
	ComfortScore float64
	ComfortLevel string
}

func newReadingRow(r models.CompositeReading, score models.ComfortResult) readingRow {
	return readingRow{
		Timestamp:    r.Timestamp,
		SensorID:     r.SensorID,
		Location:     r.Location,
		Temperature:  r.Temperature,
		Humidity:     r.Humidity,
		Pressure:     r.Pressure,
		THI:          score.THI,
		FeelsLike:    score.FeelsLike,
		ComfortScore: score.Score,
		ComfortLevel: score.Level.String(),
	}
}

// SaveReading stores one fused reading with its comfort indices
func (db *ClickHouseDB) SaveReading(ctx context.Context, r models.CompositeReading, score models.ComfortResult) error {
	row := newReadingRow(r, score)
	query := `
		INSERT INTO fused_readings (timestamp, sensor_id, location, temperature, humidity, pressure,
			thi, feels_like, comfort_score, comfort_level)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	err := db.conn.Exec(ctx, query,
		row.Timestamp, row.SensorID, row.Location,
		row.Temperature, row.Humidity, row.Pressure,
		row.THI, row.FeelsLike, row.ComfortScore, row.ComfortLevel,
	)
	if err != nil {
		return fmt.Errorf("failed to insert fused reading: %w", err)
	}
	return nil
}

// snapshotRow is the column layout of analysis_snapshots
type snapshotRow struct {
	Timestamp    time.Time
	SensorID     string
	Location     string
	DataSource   string
	ComfortScore float64
	ComfortLevel string
	Trend        string
	Confidence   float64
	Predictions  []float64
	Events       []string
	Summary      string
}

func newSnapshotRow(result models.AnalysisResult) (snapshotRow, error) {
	if !result.HasData() {
		return snapshotRow{}, errors.New("analysis carries no data")
	}
	row := snapshotRow{
		Timestamp:    result.Timestamp,
		SensorID:     result.SensorID,
		Location:     result.Location,
		DataSource:   result.DataSource,
		ComfortScore: result.Comfort.Score,
		ComfortLevel: result.Comfort.Level.String(),
		Predictions:  []float64{},
		Events:       make([]string, 0, len(result.Events)),
		Summary:      result.Summary,
	}
	if p := result.Prediction; p != nil {
		row.Trend = string(p.Trend)
		row.Confidence = p.Confidence
		row.Predictions = append(row.Predictions, p.Predictions...)
	}
	for _, e := range result.Events {
		row.Events = append(row.Events, e.Name)
	}
	return row, nil
}

// SaveAnalysis stores an analysis snapshot
func (db *ClickHouseDB) SaveAnalysis(ctx context.Context, result models.AnalysisResult) error {
	row, err := newSnapshotRow(result)
	if err != nil {
		return fmt.Errorf("failed to build analysis snapshot: %w", err)
	}

	query := `
		INSERT INTO analysis_snapshots (timestamp, sensor_id, location, data_source, comfort_score,
			comfort_level, trend, confidence, predictions, events, summary)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	err = db.conn.Exec(ctx, query,
		row.Timestamp, row.SensorID, row.Location, row.DataSource,
		row.ComfortScore, row.ComfortLevel, row.Trend, row.Confidence,
		row.Predictions, row.Events, row.Summary,
	)
	if err != nil {
		return fmt.Errorf("failed to insert analysis snapshot: %w", err)
	}
	return nil
}

// ArchiveStats aggregates archived readings of one sensor
type ArchiveStats struct {
	SensorID string                        `json:"sensor_id"`
	Since    time.Time                     `json:"since"`
	Count    uint64                        `json:"count"`
	Metrics  map[string]models.MetricStats `json:"metrics"`
}

// ReadingStats returns mean and population standard deviation of the readings
// archived for sensorID since the given time
func (db *ClickHouseDB) ReadingStats(ctx context.Context, sensorID string, since time.Time) (*ArchiveStats, error) {
	query := `
		SELECT
			count() AS total,
			avg(temperature), stddevPop(temperature),
			avg(humidity), stddevPop(humidity),
			avg(pressure), stddevPop(pressure)
		FROM fused_readings
		WHERE sensor_id = ? AND timestamp >= ?
	`

	var total uint64
	var avgTemp, stdTemp, avgHum, stdHum, avgPres, stdPres float64
	row := db.conn.QueryRow(ctx, query, sensorID, since)
	if err := row.Scan(&total, &avgTemp, &stdTemp, &avgHum, &stdHum, &avgPres, &stdPres); err != nil {
		return nil, fmt.Errorf("failed to query reading stats: %w", err)
	}

	stats := &ArchiveStats{
		SensorID: sensorID,
		Since:    since,
		Count:    total,
		Metrics:  make(map[string]models.MetricStats, len(models.Metrics)),
	}
	if total == 0 {
		for _, m := range models.Metrics {
			stats.Metrics[m] = models.MetricStats{}
		}
		return stats, nil
	}
	n := int(total)
	stats.Metrics[models.MetricTemperature] = models.MetricStats{Mean: avgTemp, StdDev: stdTemp, Count: n}
	stats.Metrics[models.MetricHumidity] = models.MetricStats{Mean: avgHum, StdDev: stdHum, Count: n}
	stats.Metrics[models.MetricPressure] = models.MetricStats{Mean: avgPres, StdDev: stdPres, Count: n}
	return stats, nil
}

// Close closes the ClickHouse connection
func (db *ClickHouseDB) Close() error {
	if db.conn != nil {
		if err := db.conn.Close(); err != nil {
			return fmt.Errorf("failed to close ClickHouse connection: %w", err)
		}
		db.logger.Info("connection closed")
	}
	return nil
}
