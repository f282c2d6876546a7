package models

// Candle represents a single price candle
type Candle struct {
	Timestamp int64   `json:"timestamp"` // open time, unix milliseconds
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// IndicatorSnapshot holds the latest value of every computed indicator
// for one symbol+timeframe. Derived from a candle series, never persisted.
type IndicatorSnapshot struct {
	Close      float64 `json:"close"`
	EMA20      float64 `json:"ema20"`
	EMA50      float64 `json:"ema50"`
	EMA200     float64 `json:"ema200"`
	RSI        float64 `json:"rsi"`
	MACD       float64 `json:"macd"`
	MACDSignal float64 `json:"macd_signal"`
	BBHigh     float64 `json:"bb_high"`
	BBLow      float64 `json:"bb_low"`
	ADX        float64 `json:"adx"`
	ATR        float64 `json:"atr"`
	StochK     float64 `json:"stoch_k"`
	StochD     float64 `json:"stoch_d"`
}

// UserEntitlement is the persisted per-user quota record. JSON tags match
// the historical users.json layout so old files stay readable.
type UserEntitlement struct {
	ID           int64  `json:"-"`
	Subscribed   bool   `json:"subscribed"`
	AnalysisUsed int    `json:"analysis_used"`
	Name         string `json:"name"`
	Username     string `json:"username"`
}

// Remaining returns how many free analyses the user has left, or -1 for
// subscribed users (unlimited).
func (u *UserEntitlement) Remaining(freeLimit int) int {
	if u.Subscribed {
		return -1
	}
	if left := freeLimit - u.AnalysisUsed; left > 0 {
		return left
	}
	return 0
}
