package calculate

import (
	"math"

	"github.com/cryptomind/analyst/models"
)

// trueRanges returns the true range per candle. tr[0] falls back to
// high-low since there is no previous close.
func trueRanges(candles []models.Candle) []float64 {
	tr := make([]float64, len(candles))
	for i, c := range candles {
		if i == 0 {
			tr[0] = c.High - c.Low
			continue
		}
		prevClose := candles[i-1].Close
		tr[i] = math.Max(c.High-c.Low,
			math.Max(math.Abs(c.High-prevClose), math.Abs(c.Low-prevClose)))
	}
	return tr
}

// atrSeries computes Wilder's average true range: seeded with the simple
// average of the first period true ranges, then
// atr[t] = (atr[t-1]*(period-1) + tr[t]) / period.
func atrSeries(candles []models.Candle, period int) []float64 {
	out := nanSeries(len(candles))
	if period <= 0 || len(candles) < period+1 {
		return out
	}

	tr := trueRanges(candles)

	atr := sma(tr, 1, period)
	out[period] = atr

	for i := period + 1; i < len(candles); i++ {
		atr = (atr*float64(period-1) + tr[i]) / float64(period)
		out[i] = atr
	}
	return out
}
