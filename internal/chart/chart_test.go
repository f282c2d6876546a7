package chart

import (
	"bytes"
	"math"
	"testing"

	"github.com/cryptomind/analyst/models"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func testCandles(n int) []models.Candle {
	candles := make([]models.Candle, n)
	for i := 0; i < n; i++ {
		base := 100 + 10*math.Sin(float64(i)/8) + float64(i)*0.2
		candles[i] = models.Candle{
			Timestamp: int64(i) * 3600_000,
			Open:      base - 0.2,
			High:      base + 0.6,
			Low:       base - 0.6,
			Close:     base,
			Volume:    1000,
		}
	}
	return candles
}

func TestRenderProducesPNG(t *testing.T) {
	png, err := NewRenderer().Render("BTCUSDT", testCandles(250))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !bytes.HasPrefix(png, pngMagic) {
		t.Errorf("output does not start with the PNG signature")
	}
}

func TestRenderEmptyInput(t *testing.T) {
	if _, err := NewRenderer().Render("BTCUSDT", nil); err == nil {
		t.Error("expected error for empty candle slice")
	}
}
