package rules

import "iot-fusion/internal/models"

// DefaultCatalog returns the campus situations known to the analyzer.
// Weather warnings outrank scheduled activities.
func DefaultCatalog() []Rule {
	return []Rule{
		{
			Name:      "Classroom teaching",
			Category:  CategoryAcademic,
			StartHour: 8,
			EndHour:   12,
			Location:  "JX_Teach",
			Conditions: map[string]Range{
				models.MetricTemperature: {20, 26},
				models.MetricHumidity:    {40, 60},
			},
			Description: "Lectures are running in the teaching building and need a good learning environment",
			Suggestions: []string{"Keep the classroom ventilated", "Adjust the air conditioning", "Use a humidifier if needed"},
			Priority:    1,
		},
		{
			Name:        "Midday rest",
			Category:    CategoryRest,
			StartHour:   12,
			EndHour:     14,
			Location:    "JX_Teach",
			Description: "Lunch break, a quiet and comfortable environment is needed",
			Suggestions: []string{"Draw the curtains", "Keep a moderate temperature", "Avoid noise"},
			Priority:    1,
		},
		{
			Name:      "PE class",
			Category:  CategorySports,
			StartHour: 14,
			EndHour:   17,
			Location:  "Playground",
			Conditions: map[string]Range{
				models.MetricTemperature: {15, 28},
			},
			Description: "Physical education in progress, mind exercise safety",
			Suggestions: []string{"Stay hydrated", "Avoid intense exercise in the heat", "Warm up first"},
			Priority:    1,
		},
		{
			Name:      "Basketball match",
			Category:  CategoryCompetition,
			StartHour: 15,
			EndHour:   18,
			Location:  "Basketball_Court",
			Conditions: map[string]Range{
				models.MetricHumidity: {30, 70},
			},
			Description: "A basketball match is under way",
			Suggestions: []string{"Keep the court dry", "Make sure players drink water", "Check court safety"},
			Priority:    1,
		},
		{
			Name:      "High temperature",
			Category:  CategoryWeatherWarning,
			StartHour: 0,
			EndHour:   24,
			Location:  AnyLocation,
			Conditions: map[string]Range{
				models.MetricTemperature: {30, 100},
			},
			Description: "Hot weather, take care against heatstroke",
			Suggestions: []string{"Reduce outdoor activity", "Drink plenty of water", "Use sun shades"},
			Priority:    3,
		},
		{
			Name:      "High humidity",
			Category:  CategoryWeatherWarning,
			StartHour: 0,
			EndHour:   24,
			Location:  AnyLocation,
			Conditions: map[string]Range{
				models.MetricHumidity: {80, 100},
			},
			Description: "Very humid weather, protect against damp",
			Suggestions: []string{"Turn on dehumidifiers", "Protect electrical equipment", "Keep rooms ventilated"},
			Priority:    3,
		},
		{
			Name:      "Low pressure",
			Category:  CategoryWeatherWarning,
			StartHour: 0,
			EndHour:   24,
			Location:  AnyLocation,
			Conditions: map[string]Range{
				models.MetricPressure: {0, 1000},
			},
			Description: "Low pressure may affect comfort",
			Suggestions: []string{"Keep rooms ventilated", "Avoid strenuous exercise", "Watch the air quality"},
			Priority:    2,
		},
	}
}
