// Package comfort derives thermal comfort indices from composite readings.
package comfort

import (
	"math"

	"iot-fusion/internal/models"
)

// Reference holds the climatological monthly means used as comfort baseline
type Reference struct {
	Month       int     `json:"month"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Pressure    float64 `json:"pressure"`
}

// Monthly means for Shanghai, January first
var (
	referenceTemperature = [12]float64{6.8, 8.2, 12.1, 17.3, 22.1, 25.6, 29.5, 29.2, 25.6, 20.6, 15.0, 9.3}
	referenceHumidity    = [12]float64{73, 74, 76, 74, 75, 82, 80, 80, 78, 73, 71, 70}
	referencePressure    = [12]float64{1026.5, 1024.5, 1019.8, 1014.5, 1010.8, 1006.2, 1004.0, 1004.7, 1011.0, 1017.3, 1022.2, 1025.4}
)

// ReferenceFor returns the reference values for a calendar month (1-12).
// Out-of-range months are wrapped into range.
func ReferenceFor(month int) Reference {
	idx := ((month-1)%12 + 12) % 12
	return Reference{
		Month:       idx + 1,
		Temperature: referenceTemperature[idx],
		Humidity:    referenceHumidity[idx],
		Pressure:    referencePressure[idx],
	}
}

// YearlyTemperatures returns the twelve monthly reference temperatures
func YearlyTemperatures() []float64 {
	out := make([]float64, len(referenceTemperature))
	copy(out, referenceTemperature[:])
	return out
}

// Score computes the comfort indices of a reading. The pressure baseline is
// taken from the month of the reading's timestamp.
func Score(r models.CompositeReading) models.ComfortResult {
	t, h, p := r.Temperature, r.Humidity, r.Pressure

	thi := 0.8*t + 0.01*h*(0.8*t-14.3) + 46.3
	feelsLike := t + 0.3*h*0.01 - 2.7

	ref := ReferenceFor(int(r.Timestamp.Month()))
	tempScore := TemperatureScore(t)
	humidityScore := HumidityScore(h)
	pressureScore := math.Min(100-0.5*math.Abs(p-ref.Pressure), 100)

	score := 0.5*tempScore + 0.3*humidityScore + 0.2*pressureScore

	return models.ComfortResult{
		Temperature:   t,
		Humidity:      h,
		Pressure:      p,
		THI:           round1(thi),
		FeelsLike:     round1(feelsLike),
		TempScore:     tempScore,
		HumidityScore: humidityScore,
		PressureScore: pressureScore,
		Score:         round1(score),
		Level:         LevelFor(score),
		Timestamp:     r.Timestamp,
	}
}

// TemperatureScore is 100 within 18-26°C and loses 5 points per degree outside
func TemperatureScore(t float64) float64 {
	switch {
	case t >= 18 && t <= 26:
		return 100
	case t < 18:
		return math.Max(0, 100-(18-t)*5)
	default:
		return math.Max(0, 100-(t-26)*5)
	}
}

// HumidityScore is 100 within 40-60% and degrades faster on the dry side
func HumidityScore(h float64) float64 {
	switch {
	case h >= 40 && h <= 60:
		return 100
	case h < 40:
		return math.Max(0, 100-(40-h)*2)
	default:
		return math.Max(0, 100-(h-60)*1.5)
	}
}

// LevelFor maps a composite score onto its band, lower bounds inclusive
func LevelFor(score float64) models.ComfortLevel {
	switch {
	case score >= 80:
		return models.VeryComfortable
	case score >= 60:
		return models.Comfortable
	case score >= 40:
		return models.Moderate
	case score >= 20:
		return models.Uncomfortable
	default:
		return models.VeryUncomfortable
	}
}

var prompts = map[models.ComfortLevel]string{
	models.VeryComfortable:   "The environment is very comfortable, temperature and humidity are just right.",
	models.Comfortable:       "The environment is comfortable and pleasant.",
	models.Moderate:          "Conditions are average, consider a small adjustment.",
	models.Uncomfortable:     "The environment is not very comfortable, take measures to improve it.",
	models.VeryUncomfortable: "The environment is very uncomfortable, act immediately.",
}

// Prompt returns the guidance line shown for a comfort level
func Prompt(level models.ComfortLevel) string {
	if p, ok := prompts[level]; ok {
		return p
	}
	return "Environment data is normal."
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
