package callback

import (
	"errors"
	"testing"

	"github.com/cryptomind/analyst/models"
)

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		symbol    string
		timeframe string
	}{
		{"BTCUSDT", "1h"},
		{"ETHUSDT", "4h"},
		{"DOGEUSDT", "1d"},
		{"A", "B"},
	}

	for _, tt := range tests {
		token := Encode(tt.symbol, tt.timeframe)
		sel, err := Decode(token)
		if err != nil {
			t.Errorf("Decode(%q): %v", token, err)
			continue
		}
		if sel.Symbol != tt.symbol || sel.Timeframe != tt.timeframe {
			t.Errorf("Decode(%q) = %+v, want {%s %s}", token, sel, tt.symbol, tt.timeframe)
		}
	}
}

func TestDecodeMalformed(t *testing.T) {
	tests := []string{
		"",
		"BTCUSDT",
		"BTCUSDT|",
		"|1h",
		"|",
		"BTCUSDT|1h|extra",
	}

	for _, token := range tests {
		if _, err := Decode(token); !errors.Is(err, models.ErrBadToken) {
			t.Errorf("Decode(%q): got %v, want ErrBadToken", token, err)
		}
	}
}
