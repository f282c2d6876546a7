package calculate

import "math"

// stochSeries applies a stochastic oscillator to an arbitrary value
// series: raw %K = position of the value inside its window's range scaled
// to [0,100], smoothed %K = SMA(smoothK) of raw, %D = SMA(smoothD) of %K.
// NaN inputs (the unfilled prefix of an upstream series) stay NaN.
func stochSeries(values []float64, window, smoothK, smoothD int) (k, d []float64) {
	n := len(values)
	raw := nanSeries(n)

	for i := window - 1; i < n; i++ {
		lowest := math.Inf(1)
		highest := math.Inf(-1)
		defined := true
		for j := i - window + 1; j <= i; j++ {
			v := values[j]
			if math.IsNaN(v) {
				defined = false
				break
			}
			if v < lowest {
				lowest = v
			}
			if v > highest {
				highest = v
			}
		}
		if !defined {
			continue
		}
		if highest-lowest > 0 {
			raw[i] = (values[i] - lowest) / (highest - lowest) * 100
		} else {
			raw[i] = 50.0 // flat window, default to middle
		}
	}

	k = smaSeries(raw, smoothK)
	d = smaSeries(k, smoothD)
	return k, d
}

// smaSeries is a rolling simple average that only emits a value once its
// whole window is defined.
func smaSeries(values []float64, period int) []float64 {
	n := len(values)
	out := nanSeries(n)
	if period <= 0 {
		return out
	}
	for i := period - 1; i < n; i++ {
		var sum float64
		defined := true
		for j := i - period + 1; j <= i; j++ {
			if math.IsNaN(values[j]) {
				defined = false
				break
			}
			sum += values[j]
		}
		if defined {
			out[i] = sum / float64(period)
		}
	}
	return out
}
