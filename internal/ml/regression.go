package ml

import "math"

// LinearFit is a univariate least-squares line y = Slope*x + Intercept
type LinearFit struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
}

// FitLinear fits values against their index 0..n-1 in closed form.
// It reports false for fewer than two points or a non-finite result.
func FitLinear(values []float64) (LinearFit, bool) {
	n := len(values)
	if n < 2 {
		return LinearFit{}, false
	}

	meanX := float64(n-1) / 2
	var meanY float64
	for _, y := range values {
		meanY += y
	}
	meanY /= float64(n)

	var sxy, sxx float64
	for i, y := range values {
		dx := float64(i) - meanX
		sxy += dx * (y - meanY)
		sxx += dx * dx
	}

	fit := LinearFit{Slope: sxy / sxx}
	fit.Intercept = meanY - fit.Slope*meanX
	if !finite(fit.Slope) || !finite(fit.Intercept) {
		return LinearFit{}, false
	}
	return fit, true
}

// Predict evaluates the line at x
func (f LinearFit) Predict(x float64) float64 {
	return f.Slope*x + f.Intercept
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
