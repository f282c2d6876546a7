package calculate

import (
	"math"

	"github.com/cryptomind/analyst/models"
)

// All series functions return a slice aligned one-to-one with the input:
// out[i] is the indicator value at candle i, NaN while the window has not
// filled yet. Downstream code consumes the last row but the recursive
// seeds depend on the full history, so nothing here shortcuts to a
// last-value-only computation.

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func closePrices(candles []models.Candle) []float64 {
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	return closes
}

// sma computes the simple average of values[from:from+period].
func sma(values []float64, from, period int) float64 {
	var sum float64
	for i := from; i < from+period; i++ {
		sum += values[i]
	}
	return sum / float64(period)
}
