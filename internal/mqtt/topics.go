package mqtt

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidTopicFilter = errors.New("invalid topic filter")

// ValidateTopicFilter checks MQTT wildcard placement: "#" must be the last
// level and alone in it, "+" must be alone in its level
func ValidateTopicFilter(filter string) error {
	if filter == "" {
		return fmt.Errorf("%w: empty", ErrInvalidTopicFilter)
	}
	levels := strings.Split(filter, "/")
	for i, level := range levels {
		if strings.Contains(level, "#") && (level != "#" || i != len(levels)-1) {
			return fmt.Errorf("%w: %q: '#' must be the whole last level", ErrInvalidTopicFilter, filter)
		}
		if strings.Contains(level, "+") && level != "+" {
			return fmt.Errorf("%w: %q: '+' must occupy a whole level", ErrInvalidTopicFilter, filter)
		}
	}
	return nil
}

// formatTopic replaces the {sensor_id} placeholder with the sensor ID
func formatTopic(topicPattern, sensorID string) string {
	return strings.ReplaceAll(topicPattern, "{sensor_id}", sensorID)
}
