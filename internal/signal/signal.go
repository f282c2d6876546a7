// Package signal turns an indicator snapshot into the ordered, fixed set
// of human-readable statements sent to the user. Rule order is part of the
// contract: callers and tests rely on the report shape being deterministic
// for a given snapshot.
package signal

import (
	"fmt"

	"github.com/cryptomind/analyst/models"
)

const (
	rsiOversold   = 30.0
	rsiOverbought = 70.0
	adxStrong     = 25.0

	// Window for the rolling support/resistance lines.
	srWindow = 10
)

// Compose evaluates the threshold rules against the latest snapshot and
// appends support/resistance derived from the last srWindow candles.
// Candles are the same series the snapshot was computed from.
func Compose(candles []models.Candle, snap *models.IndicatorSnapshot) ([]string, error) {
	if snap == nil {
		return nil, fmt.Errorf("%w: no indicator snapshot", models.ErrInsufficientHistory)
	}
	if len(candles) < srWindow {
		return nil, fmt.Errorf("%w: have %d candles, need %d for support/resistance",
			models.ErrInsufficientHistory, len(candles), srWindow)
	}

	report := make([]string, 0, 7)

	if snap.RSI < rsiOversold {
		report = append(report, "RSI indicates oversold conditions.")
	} else if snap.RSI > rsiOverbought {
		report = append(report, "RSI indicates overbought conditions.")
	}

	if snap.MACD > snap.MACDSignal {
		report = append(report, "MACD bullish crossover.")
	} else {
		report = append(report, "MACD bearish crossover.")
	}

	if snap.Close > snap.EMA200 {
		report = append(report, "Price above EMA200 - broader trend is up.")
	} else {
		report = append(report, "Price below EMA200 - broader trend is down.")
	}

	if snap.ADX > adxStrong {
		report = append(report, "ADX indicates a strong trend.")
	} else {
		report = append(report, "ADX indicates a weak trend.")
	}

	if snap.Close < snap.BBLow {
		report = append(report, "Price below the lower Bollinger band - possible rebound.")
	} else if snap.Close > snap.BBHigh {
		report = append(report, "Price above the upper Bollinger band - possible pullback.")
	}

	support, resistance := supportResistance(candles, srWindow)
	report = append(report,
		fmt.Sprintf("Support: %.4f", support),
		fmt.Sprintf("Resistance: %.4f", resistance),
	)

	return report, nil
}

// supportResistance returns the lowest low and highest high over the last
// window candles.
func supportResistance(candles []models.Candle, window int) (support, resistance float64) {
	start := len(candles) - window
	support = candles[start].Low
	resistance = candles[start].High
	for _, c := range candles[start+1:] {
		if c.Low < support {
			support = c.Low
		}
		if c.High > resistance {
			resistance = c.High
		}
	}
	return support, resistance
}
