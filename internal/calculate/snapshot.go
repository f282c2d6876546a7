package calculate

import (
	"fmt"
	"math"

	"github.com/cryptomind/analyst/models"
)

// Fixed indicator parameters. The longest window (EMA200) dictates the
// minimum history; every other indicator is defined well before that.
const (
	emaShortPeriod = 20
	emaMidPeriod   = 50
	emaLongPeriod  = 200

	rsiPeriod = 14

	macdFastPeriod   = 12
	macdSlowPeriod   = 26
	macdSignalPeriod = 9

	bbPeriod = 20
	bbStdDev = 2.0

	adxPeriod = 14
	atrPeriod = 14

	stochWindow  = 14
	stochSmoothK = 3
	stochSmoothD = 3
)

// MinHistory is the number of candles required to compute every indicator.
const MinHistory = emaLongPeriod

// Snapshot computes all indicator series over the full candle history and
// returns the latest aligned row. Fails with models.ErrInsufficientHistory
// when fewer than MinHistory candles are supplied.
func Snapshot(candles []models.Candle) (*models.IndicatorSnapshot, error) {
	if len(candles) < MinHistory {
		return nil, fmt.Errorf("%w: have %d candles, need %d",
			models.ErrInsufficientHistory, len(candles), MinHistory)
	}

	closes := closePrices(candles)
	last := len(candles) - 1

	ema20 := EMASeries(closes, emaShortPeriod)
	ema50 := EMASeries(closes, emaMidPeriod)
	ema200 := EMASeries(closes, emaLongPeriod)
	rsi := rsiSeries(closes, rsiPeriod)
	macd, macdSignal := macdSeries(closes, macdFastPeriod, macdSlowPeriod, macdSignalPeriod)
	bbHigh, bbLow := BollingerSeries(closes, bbPeriod, bbStdDev)
	adx := adxSeries(candles, adxPeriod)
	atr := atrSeries(candles, atrPeriod)
	stochK, stochD := stochSeries(rsi, stochWindow, stochSmoothK, stochSmoothD)

	snap := &models.IndicatorSnapshot{
		Close:      closes[last],
		EMA20:      ema20[last],
		EMA50:      ema50[last],
		EMA200:     ema200[last],
		RSI:        rsi[last],
		MACD:       macd[last],
		MACDSignal: macdSignal[last],
		BBHigh:     bbHigh[last],
		BBLow:      bbLow[last],
		ADX:        adx[last],
		ATR:        atr[last],
		StochK:     stochK[last],
		StochD:     stochD[last],
	}

	// MinHistory guarantees every window is filled; an unresolved value
	// here would mean non-finite input made it past the fetch layer.
	for name, v := range map[string]float64{
		"ema20": snap.EMA20, "ema50": snap.EMA50, "ema200": snap.EMA200,
		"rsi": snap.RSI, "macd": snap.MACD, "macd_signal": snap.MACDSignal,
		"bb_high": snap.BBHigh, "bb_low": snap.BBLow,
		"adx": snap.ADX, "atr": snap.ATR,
		"stoch_k": snap.StochK, "stoch_d": snap.StochD,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: %s is unresolved", models.ErrInsufficientHistory, name)
		}
	}

	return snap, nil
}
