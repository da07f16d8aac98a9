// Package rules matches composite readings against a static catalog of
// campus situations and phrases the best match as guidance.
package rules

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"iot-fusion/internal/models"
)

// AnyLocation matches every location
const AnyLocation = "*"

// Rule categories with dedicated phrasing
const (
	CategoryWeatherWarning = "weather_warning"
	CategoryAcademic       = "academic"
	CategorySports         = "sports"
	CategoryRest           = "rest"
	CategoryCompetition    = "competition"
)

// Range is an inclusive [Min, Max] bound on one metric
type Range struct {
	Min float64
	Max float64
}

// Contains reports whether v lies within the range
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Rule describes a situation tied to hours of the day, a location and metric bounds
type Rule struct {
	Name        string
	Category    string
	StartHour   int
	EndHour     int
	Location    string
	Conditions  map[string]Range
	Description string
	Suggestions []string
	Priority    int
}

// Engine matches readings against an immutable rule catalog
type Engine struct {
	rules []Rule
}

// NewEngine copies the catalog; later changes to the argument are not observed
func NewEngine(catalog []Rule) *Engine {
	rules := make([]Rule, len(catalog))
	for i, r := range catalog {
		if r.StartHour < 0 || r.EndHour > 24 || r.StartHour > r.EndHour {
			panic(fmt.Sprintf("rules: invalid hour range %d-%d for %q", r.StartHour, r.EndHour, r.Name))
		}
		conditions := make(map[string]Range, len(r.Conditions))
		for k, v := range r.Conditions {
			conditions[k] = v
		}
		r.Conditions = conditions
		r.Suggestions = append([]string(nil), r.Suggestions...)
		rules[i] = r
	}
	return &Engine{rules: rules}
}

// Match returns the rules that apply to the reading at now, highest priority
// first. Rules of equal priority keep catalog order.
func (e *Engine) Match(r models.CompositeReading, now time.Time) []models.MatchedEvent {
	hour := now.Hour()
	matched := make([]models.MatchedEvent, 0)

	for _, rule := range e.rules {
		if hour < rule.StartHour || hour > rule.EndHour {
			continue
		}
		if rule.Location != AnyLocation && r.Location != "" && rule.Location != r.Location {
			continue
		}
		if !conditionsMet(rule.Conditions, r) {
			continue
		}
		matched = append(matched, models.MatchedEvent{
			Name:        rule.Name,
			Category:    rule.Category,
			Description: rule.Description,
			Suggestions: append([]string(nil), rule.Suggestions...),
			Priority:    rule.Priority,
			StartHour:   rule.StartHour,
			EndHour:     rule.EndHour,
			Location:    rule.Location,
		})
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Priority > matched[j].Priority
	})
	return matched
}

func conditionsMet(conditions map[string]Range, r models.CompositeReading) bool {
	for metric, bounds := range conditions {
		v, ok := r.Value(metric)
		if !ok || !bounds.Contains(v) {
			return false
		}
	}
	return true
}

// Narrate turns the highest-priority match into one sentence of guidance
func Narrate(r models.CompositeReading, matches []models.MatchedEvent) string {
	if len(matches) == 0 {
		return fmt.Sprintf("Current temperature %s°C, humidity %s%%, everything is normal.",
			formatValue(r.Temperature), formatValue(r.Humidity))
	}

	event := matches[0]
	advice := strings.Join(firstN(event.Suggestions, 2), "; ")

	switch event.Category {
	case CategoryWeatherWarning:
		if r.Temperature > 30 {
			return fmt.Sprintf("High temperature warning! Current temperature %s°C. %s. Suggestions: %s",
				formatValue(r.Temperature), event.Description, advice)
		}
		if r.Humidity > 80 {
			return fmt.Sprintf("High humidity warning! Current humidity %s%%. %s. Suggestions: %s",
				formatValue(r.Humidity), event.Description, advice)
		}
	case CategoryAcademic:
		return fmt.Sprintf("%s in progress. %s. Suggestions: %s", event.Name, event.Description, advice)
	case CategorySports:
		return fmt.Sprintf("%s in progress. %s. Suggestions: %s", event.Name, event.Description, advice)
	}

	return fmt.Sprintf("%s: %s. Suggestions: %s", event.Name, event.Description, advice)
}

func firstN(items []string, n int) []string {
	if len(items) < n {
		return items
	}
	return items[:n]
}

func formatValue(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}
