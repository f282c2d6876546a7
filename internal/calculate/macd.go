package calculate

// macdSeries computes the MACD line (fast EMA minus slow EMA) and its
// signal line (EMA of the MACD line) over the full close series. The MACD
// line is defined from index slowPeriod-1, the signal line signalPeriod-1
// bars later.
func macdSeries(closes []float64, fastPeriod, slowPeriod, signalPeriod int) (macd, signal []float64) {
	n := len(closes)
	macd = nanSeries(n)
	signal = nanSeries(n)
	if n < slowPeriod {
		return macd, signal
	}

	fast := EMASeries(closes, fastPeriod)
	slow := EMASeries(closes, slowPeriod)

	start := slowPeriod - 1
	for i := start; i < n; i++ {
		macd[i] = fast[i] - slow[i]
	}

	// Signal is an EMA over the defined portion of the MACD line.
	sig := EMASeries(macd[start:], signalPeriod)
	for j, v := range sig {
		signal[start+j] = v
	}
	return macd, signal
}
