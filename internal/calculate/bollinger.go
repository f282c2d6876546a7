package calculate

import "math"

// BollingerSeries computes Bollinger Bands over the full close series:
// middle = SMA(period), bands at middle +/- stdDev standard deviations
// (population variance over the window).
func BollingerSeries(closes []float64, period int, stdDev float64) (high, low []float64) {
	n := len(closes)
	high = nanSeries(n)
	low = nanSeries(n)
	if period <= 0 || n < period {
		return high, low
	}

	for i := period - 1; i < n; i++ {
		middle := sma(closes, i-period+1, period)

		var variance float64
		for j := i - period + 1; j <= i; j++ {
			d := closes[j] - middle
			variance += d * d
		}
		sd := math.Sqrt(variance / float64(period))

		high[i] = middle + sd*stdDev
		low[i] = middle - sd*stdDev
	}
	return high, low
}
