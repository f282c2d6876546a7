// Package chart renders the analysis chart: close price with EMA20/50/200
// and Bollinger band overlays, as a PNG ready for chat delivery.
package chart

import (
	"bytes"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/cryptomind/analyst/internal/calculate"
	"github.com/cryptomind/analyst/models"
)

const (
	chartWidth  = 1280
	chartHeight = 720

	emaShortPeriod = 20
	emaMidPeriod   = 50
	emaLongPeriod  = 200
	bbPeriod       = 20
	bbStdDev       = 2.0
)

// Renderer draws analysis charts.
type Renderer struct {
	logger zerolog.Logger
}

// NewRenderer creates a chart renderer.
func NewRenderer() *Renderer {
	return &Renderer{
		logger: log.With().Str("component", "chart_renderer").Logger(),
	}
}

// Render produces a PNG of the close price with indicator overlays. The
// overlays are recomputed here from the same candle series the report was
// built from, so chart and report always agree.
func (r *Renderer) Render(symbol string, candles []models.Candle) ([]byte, error) {
	if len(candles) == 0 {
		return nil, fmt.Errorf("no candles to render")
	}

	xs := make([]time.Time, len(candles))
	closes := make([]float64, len(candles))
	for i, c := range candles {
		xs[i] = time.UnixMilli(c.Timestamp)
		closes[i] = c.Close
	}

	ema20 := calculate.EMASeries(closes, emaShortPeriod)
	ema50 := calculate.EMASeries(closes, emaMidPeriod)
	ema200 := calculate.EMASeries(closes, emaLongPeriod)
	bbHigh, bbLow := calculate.BollingerSeries(closes, bbPeriod, bbStdDev)

	orange := drawing.Color{R: 255, G: 165, B: 0, A: 255}
	dashed := []float64{5.0, 5.0}

	graph := chart.Chart{
		Title:  fmt.Sprintf("%s - Technical Chart", symbol),
		Width:  chartWidth,
		Height: chartHeight,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatterWithFormat("01-02 15:04"),
		},
		Series: []chart.Series{
			timeSeries("Close", xs, closes, chart.Style{
				StrokeColor: chart.ColorBlack,
				StrokeWidth: 1.5,
			}),
			timeSeries("EMA20", xs, ema20, chart.Style{
				StrokeColor: chart.ColorBlue,
				StrokeWidth: 1.0,
			}),
			timeSeries("EMA50", xs, ema50, chart.Style{
				StrokeColor: orange,
				StrokeWidth: 1.0,
			}),
			timeSeries("EMA200", xs, ema200, chart.Style{
				StrokeColor: chart.ColorRed,
				StrokeWidth: 1.0,
			}),
			timeSeries("BB High", xs, bbHigh, chart.Style{
				StrokeColor:     chart.ColorGreen,
				StrokeWidth:     1.0,
				StrokeDashArray: dashed,
			}),
			timeSeries("BB Low", xs, bbLow, chart.Style{
				StrokeColor:     chart.ColorGreen,
				StrokeWidth:     1.0,
				StrokeDashArray: dashed,
			}),
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		r.logger.Error().Err(err).Str("symbol", symbol).Msg("Chart render failed")
		return nil, fmt.Errorf("rendering chart: %w", err)
	}

	r.logger.Debug().Str("symbol", symbol).Int("bytes", buf.Len()).Msg("Rendered chart")
	return buf.Bytes(), nil
}

// timeSeries builds a series from an indicator slice, dropping the NaN
// prefix where the window has not filled yet.
func timeSeries(name string, xs []time.Time, values []float64, style chart.Style) chart.TimeSeries {
	series := chart.TimeSeries{Name: name, Style: style}
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		series.XValues = append(series.XValues, xs[i])
		series.YValues = append(series.YValues, v)
	}
	return series
}
