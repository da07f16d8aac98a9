package database

// SQL schemas for all ClickHouse tables

const (
	// FusedReadingsTableSQL creates the fused_readings table
	FusedReadingsTableSQL = `
		CREATE TABLE IF NOT EXISTS fused_readings (
			timestamp DateTime64(3),
			sensor_id String,
			location String,
			temperature Float64,
			humidity Float64,
			pressure Float64,
			thi Float64,
			feels_like Float64,
			comfort_score Float64,
			comfort_level LowCardinality(String)
		) ENGINE = MergeTree()
		ORDER BY (sensor_id, timestamp)
		PARTITION BY toYYYYMM(timestamp)
	`

	// AnalysisSnapshotsTableSQL creates the analysis_snapshots table
	AnalysisSnapshotsTableSQL = `
		CREATE TABLE IF NOT EXISTS analysis_snapshots (
			timestamp DateTime64(3),
			sensor_id String,
			location String,
			data_source LowCardinality(String),
			comfort_score Float64,
			comfort_level LowCardinality(String),
			trend LowCardinality(String),
			confidence Float64,
			predictions Array(Float64),
			events Array(String),
			summary String
		) ENGINE = MergeTree()
		ORDER BY (sensor_id, timestamp)
		PARTITION BY toYYYYMM(timestamp)
		TTL toDateTime(timestamp) + INTERVAL 90 DAY
	`
)

// AllTables returns all table creation SQL statements in order
func AllTables() []string {
	return []string{
		FusedReadingsTableSQL,
		AnalysisSnapshotsTableSQL,
	}
}
