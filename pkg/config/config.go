package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// MQTT Configuration
	MQTTBroker   string
	MQTTClientID string
	MQTTUsername string
	MQTTPassword string

	// Topic filters to subscribe to and topic patterns to publish on
	MQTTTopics        []string
	MQTTTopicAnalysis string
	MQTTTopicControl  string

	// Fusion engine
	SyncWindow      time.Duration
	MaxHistory      int
	WindowSize      int
	ForecastSteps   int
	PollInterval    time.Duration
	PublishInterval time.Duration
	DefaultSensorID string
	DefaultLocation string

	// HTTP API
	HTTPAddr string

	// ClickHouse Configuration, empty address disables the sink
	ClickHouseAddr string
	ClickHouseDB   string
	ClickHouseUser string
	ClickHousePass string

	// Logging
	LogLevel  string
	LogFormat string

	// Replay publisher
	ReplayDir      string
	ReplayInterval time.Duration
	ReplayLoop     bool
	ReplayExtra    string

	// Warnings lists values that failed to parse and fell back to defaults.
	// They are logged once the logger exists.
	Warnings []string
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	c := &Config{}

	// MQTT Configuration
	c.MQTTBroker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	c.MQTTClientID = getEnv("MQTT_CLIENT_ID", "")
	c.MQTTUsername = getEnv("MQTT_USERNAME", "")
	c.MQTTPassword = getEnv("MQTT_PASSWORD", "")
	c.MQTTTopics = getEnvList("MQTT_TOPICS", []string{"sensor/#"})
	c.MQTTTopicAnalysis = getEnv("MQTT_TOPIC_ANALYSIS", "analysis/{sensor_id}")
	c.MQTTTopicControl = getEnv("MQTT_TOPIC_CONTROL", "control/publish_filter")

	// Fusion engine
	c.SyncWindow = c.getEnvDuration("SYNC_WINDOW", 5*time.Second)
	c.MaxHistory = c.getEnvInt("MAX_HISTORY", 100)
	c.WindowSize = c.getEnvInt("WINDOW_SIZE", 20)
	c.ForecastSteps = c.getEnvInt("FORECAST_STEPS", 5)
	c.PollInterval = c.getEnvDuration("POLL_INTERVAL", 5*time.Second)
	c.PublishInterval = c.getEnvDuration("PUBLISH_RATE", time.Second)
	c.DefaultSensorID = getEnv("DEFAULT_SENSOR_ID", "JX_Teach_01")
	c.DefaultLocation = getEnv("DEFAULT_LOCATION", "JX_Teach")

	c.HTTPAddr = getEnv("HTTP_ADDR", ":8080")

	// ClickHouse Configuration
	c.ClickHouseAddr = getEnv("CLICKHOUSE_ADDR", "")
	c.ClickHouseDB = getEnv("CLICKHOUSE_DB", "iot")
	c.ClickHouseUser = getEnv("CLICKHOUSE_USER", "default")
	c.ClickHousePass = getEnv("CLICKHOUSE_PASS", "")

	c.LogLevel = getEnv("LOG_LEVEL", "info")
	c.LogFormat = getEnv("LOG_FORMAT", "json")

	c.ReplayDir = getEnv("REPLAY_DIR", "./data")
	c.ReplayInterval = c.getEnvDuration("REPLAY_INTERVAL", 200*time.Millisecond)
	c.ReplayLoop = c.getEnvBool("REPLAY_LOOP", false)
	c.ReplayExtra = getEnv("REPLAY_EXTRA", "Room 301, third floor")

	return c
}

// Validate reports settings the engine cannot run with
func (c *Config) Validate() error {
	switch {
	case c.SyncWindow < 0:
		return fmt.Errorf("SYNC_WINDOW must not be negative, got %v", c.SyncWindow)
	case c.MaxHistory <= 0:
		return fmt.Errorf("MAX_HISTORY must be positive, got %d", c.MaxHistory)
	case c.WindowSize <= 0 || c.WindowSize > c.MaxHistory:
		return fmt.Errorf("WINDOW_SIZE must be in 1..MAX_HISTORY (%d), got %d", c.MaxHistory, c.WindowSize)
	case c.ForecastSteps <= 0:
		return fmt.Errorf("FORECAST_STEPS must be positive, got %d", c.ForecastSteps)
	case len(c.MQTTTopics) == 0:
		return fmt.Errorf("MQTT_TOPICS must name at least one topic filter")
	}
	return nil
}

// ClickHouseEnabled reports whether the archive sink is configured
func (c *Config) ClickHouseEnabled() bool {
	return c.ClickHouseAddr != ""
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func (c *Config) warn(key string, err error) {
	c.Warnings = append(c.Warnings, fmt.Sprintf("failed to parse %s, using default: %v", key, err))
}

func (c *Config) getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		c.warn(key, err)
		return defaultValue
	}
	return boolValue
}

func (c *Config) getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		c.warn(key, err)
		return defaultValue
	}
	return intValue
}

// getEnvDuration accepts Go durations ("5s") or plain seconds ("5", "0.5")
func (c *Config) getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil {
		c.warn(key, err)
		return defaultValue
	}
	return time.Duration(seconds * float64(time.Second))
}

// getEnvList splits a comma-separated value, dropping empty items
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
