package calculate

import (
	"math"

	"github.com/cryptomind/analyst/models"
)

// adxSeries computes Wilder's average directional index. Directional
// movements and true ranges are smoothed with Wilder's running sums, DX is
// derived from the +DI/-DI spread, and ADX is the Wilder average of DX.
// The first defined ADX value sits at index 2*period-1.
func adxSeries(candles []models.Candle, period int) []float64 {
	n := len(candles)
	out := nanSeries(n)
	if period <= 0 || n < 2*period+1 {
		return out
	}

	tr := trueRanges(candles)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < n; i++ {
		up := candles[i].High - candles[i-1].High
		down := candles[i-1].Low - candles[i].Low
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
	}

	// Initial smoothed sums over the first period of movements.
	var trSum, plusSum, minusSum float64
	for i := 1; i <= period; i++ {
		trSum += tr[i]
		plusSum += plusDM[i]
		minusSum += minusDM[i]
	}

	dx := nanSeries(n)
	dx[period] = dxValue(plusSum, minusSum, trSum)

	for i := period + 1; i < n; i++ {
		trSum = trSum - trSum/float64(period) + tr[i]
		plusSum = plusSum - plusSum/float64(period) + plusDM[i]
		minusSum = minusSum - minusSum/float64(period) + minusDM[i]
		dx[i] = dxValue(plusSum, minusSum, trSum)
	}

	// ADX seed: simple average of the first period DX values.
	adx := sma(dx, period, period)
	out[2*period-1] = adx
	for i := 2 * period; i < n; i++ {
		adx = (adx*float64(period-1) + dx[i]) / float64(period)
		out[i] = adx
	}
	return out
}

func dxValue(plusSum, minusSum, trSum float64) float64 {
	if trSum == 0 {
		return 0
	}
	plusDI := 100 * plusSum / trSum
	minusDI := 100 * minusSum / trSum
	if plusDI+minusDI == 0 {
		return 0
	}
	return 100 * math.Abs(plusDI-minusDI) / (plusDI + minusDI)
}
