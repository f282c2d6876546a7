package calculate

// EMASeries computes the exponential moving average over the full input.
// Seeded with the simple average of the first period values, then
// ema[t] = alpha*v[t] + (1-alpha)*ema[t-1] with alpha = 2/(period+1).
func EMASeries(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 || len(values) < period {
		return out
	}

	ema := sma(values, 0, period)
	out[period-1] = ema

	alpha := 2.0 / float64(period+1)
	for i := period; i < len(values); i++ {
		ema = alpha*values[i] + (1-alpha)*ema
		out[i] = ema
	}
	return out
}
