// Package correlate measures how daily sentiment tracks daily price change.
package correlate

import (
	"fmt"
	"math"

	"metalpulse/internal/domain"
)

// MinPoints is the minimum number of overlapping dates required.
const MinPoints = 5

// Strength buckets |r| for display.
type Strength string

const (
	Negligible Strength = "negligible"
	Weak       Strength = "weak"
	Moderate   Strength = "moderate"
	Strong     Strength = "strong"
)

// StrengthOf classifies a coefficient by magnitude.
func StrengthOf(r float64) Strength {
	a := math.Abs(r)
	switch {
	case a >= 0.7:
		return Strong
	case a >= 0.4:
		return Moderate
	case a >= 0.2:
		return Weak
	default:
		return Negligible
	}
}

// Pearson returns the correlation coefficient of the last n values of x and
// y, where n is the shorter length. It returns 0 for fewer than two points
// or when either series has zero variance.
func Pearson(x, y []float64) float64 {
	n := min(len(x), len(y))
	if n < 2 {
		return 0
	}
	x, y = x[len(x)-n:], y[len(y)-n:]

	var xMean, yMean float64
	for i := 0; i < n; i++ {
		xMean += x[i]
		yMean += y[i]
	}
	xMean /= float64(n)
	yMean /= float64(n)

	var num, xDen, yDen float64
	for i := 0; i < n; i++ {
		dx, dy := x[i]-xMean, y[i]-yMean
		num += dx * dy
		xDen += dx * dx
		yDen += dy * dy
	}
	if xDen == 0 || yDen == 0 {
		return 0
	}
	return num / math.Sqrt(xDen*yDen)
}

// Align intersects the two series on date. Dates follow the order of the
// sentiment history.
func Align(history []domain.SentimentDataPoint, bars []domain.PriceBar) (dates []string, sentiment, change []float64) {
	byDate := make(map[string]float64, len(bars))
	for _, b := range bars {
		byDate[b.Date] = b.ChangePercent
	}
	for _, dp := range history {
		c, ok := byDate[dp.Date]
		if !ok {
			continue
		}
		dates = append(dates, dp.Date)
		sentiment = append(sentiment, dp.AverageSentiment)
		change = append(change, c)
	}
	return dates, sentiment, change
}

// Result is the correlation report for one symbol. Correlation is nil, with
// Message explaining why, when there is not enough data.
type Result struct {
	Symbol              string                      `json:"symbol"`
	Period              string                      `json:"period"`
	Correlation         *float64                    `json:"correlation"`
	CorrelationStrength Strength                    `json:"correlationStrength,omitempty"`
	DataPointsUsed      int                         `json:"dataPointsUsed,omitempty"`
	Message             string                      `json:"message,omitempty"`
	SentimentData       []domain.SentimentDataPoint `json:"sentimentData"`
	PriceData           []domain.PriceBar           `json:"priceData"`
}

// Analyze correlates a sentiment history with price bars over period days.
func Analyze(symbol string, period int, history []domain.SentimentDataPoint, bars []domain.PriceBar) Result {
	if history == nil {
		history = []domain.SentimentDataPoint{}
	}
	if bars == nil {
		bars = []domain.PriceBar{}
	}
	res := Result{
		Symbol:        symbol,
		Period:        fmt.Sprintf("%dd", period),
		SentimentData: history,
		PriceData:     bars,
	}

	if len(history) < MinPoints {
		res.Message = fmt.Sprintf("Insufficient sentiment data for correlation analysis. Need at least %d days.", MinPoints)
		return res
	}
	if len(bars) < MinPoints {
		res.Message = "Insufficient price data for correlation analysis."
		return res
	}

	dates, x, y := Align(history, bars)
	if len(dates) < MinPoints {
		res.Message = fmt.Sprintf("Only %d days of overlapping data. Need at least %d days.", len(dates), MinPoints)
		return res
	}

	r := Pearson(x, y)
	res.Correlation = &r
	res.CorrelationStrength = StrengthOf(r)
	res.DataPointsUsed = len(dates)
	if period > 0 && len(history) > period {
		res.SentimentData = history[len(history)-period:]
	}
	return res
}
