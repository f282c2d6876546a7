// Package binance is the market-data client: spot klines and the exchange
// symbol list used to validate user input.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/cryptomind/analyst/models"
)

// Client is the Binance Spot API client
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     zerolog.Logger

	mu      sync.RWMutex
	symbols map[string]struct{}
}

// ClientOptions holds options for creating a new Binance client
type ClientOptions struct {
	BaseURL        string
	RequestTimeout time.Duration
	RequestsPerSec int
}

// NewClient creates a new API client with rate limiting
func NewClient(options ClientOptions) *Client {
	if options.BaseURL == "" {
		options.BaseURL = "https://api.binance.com"
	}
	if options.RequestTimeout == 0 {
		options.RequestTimeout = 30 * time.Second
	}
	if options.RequestsPerSec == 0 {
		options.RequestsPerSec = 5
	}

	return &Client{
		baseURL: options.BaseURL,
		httpClient: &http.Client{
			Timeout: options.RequestTimeout,
		},
		limiter: rate.NewLimiter(rate.Every(time.Second/time.Duration(options.RequestsPerSec)), options.RequestsPerSec),
		logger:  log.With().Str("component", "binance_client").Logger(),
	}
}

// GetKlines fetches candles for a symbol and interval, oldest first.
// Not retried: a failed fetch surfaces to the caller immediately.
func (c *Client) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	endpoint := fmt.Sprintf("%s/api/v3/klines?symbol=%s&interval=%s&limit=%d",
		c.baseURL, url.QueryEscape(strings.ToUpper(symbol)), url.QueryEscape(interval), limit)

	c.logger.Debug().Str("symbol", symbol).Str("interval", interval).Int("limit", limit).Msg("Fetching klines")

	body, err := c.getBody(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var rows [][]any
	if err := json.Unmarshal(body, &rows); err != nil {
		c.logger.Error().Err(err).Str("response", truncate(body)).Msg("Error parsing klines JSON")
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	if len(rows) == 0 {
		c.logger.Warn().Str("symbol", symbol).Msg("No klines in response")
		return nil, fmt.Errorf("empty data returned")
	}

	candles := make([]models.Candle, 0, len(rows))
	for _, row := range rows {
		candle, err := parseKline(row)
		if err != nil {
			return nil, fmt.Errorf("parsing kline row: %w", err)
		}
		candles = append(candles, candle)
	}

	// Sort candles by open time (oldest first for proper calculations)
	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Timestamp < candles[j].Timestamp
	})

	c.logger.Debug().Int("count", len(candles)).Msg("Fetched klines")
	return candles, nil
}

// parseKline converts one raw kline row. Binance returns each kline as a
// mixed array: [openTime, "open", "high", "low", "close", "volume", ...].
func parseKline(row []any) (models.Candle, error) {
	if len(row) < 6 {
		return models.Candle{}, fmt.Errorf("kline row has %d fields, want at least 6", len(row))
	}

	openTime, ok := row[0].(float64)
	if !ok {
		return models.Candle{}, fmt.Errorf("unexpected open time type %T", row[0])
	}

	fields := make([]float64, 5)
	for i := 1; i <= 5; i++ {
		s, ok := row[i].(string)
		if !ok {
			return models.Candle{}, fmt.Errorf("unexpected field type %T at index %d", row[i], i)
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return models.Candle{}, fmt.Errorf("parsing field %d: %w", i, err)
		}
		fields[i-1] = v
	}

	return models.Candle{
		Timestamp: int64(openTime),
		Open:      fields[0],
		High:      fields[1],
		Low:       fields[2],
		Close:     fields[3],
		Volume:    fields[4],
	}, nil
}

// LoadSymbols fetches the exchange symbol list into the local cache,
// retrying with exponential backoff. Meant to run once at startup; the
// per-request pipeline never goes through this path.
func (c *Client) LoadSymbols(ctx context.Context) error {
	operation := func() error {
		return c.fetchSymbols(ctx)
	}

	backoffStrategy := backoff.NewExponentialBackOff()
	backoffStrategy.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(backoffStrategy, ctx)); err != nil {
		return fmt.Errorf("loading exchange symbols: %w", err)
	}
	return nil
}

func (c *Client) fetchSymbols(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter error: %w", err)
	}

	body, err := c.getBody(ctx, c.baseURL+"/api/v3/exchangeInfo")
	if err != nil {
		return err
	}

	var info struct {
		Symbols []struct {
			Symbol string `json:"symbol"`
		} `json:"symbols"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		c.logger.Error().Err(err).Msg("Error parsing exchangeInfo JSON")
		return fmt.Errorf("parsing JSON: %w", err)
	}
	if len(info.Symbols) == 0 {
		return fmt.Errorf("empty symbol list returned")
	}

	symbols := make(map[string]struct{}, len(info.Symbols))
	for _, s := range info.Symbols {
		symbols[s.Symbol] = struct{}{}
	}

	c.mu.Lock()
	c.symbols = symbols
	c.mu.Unlock()

	c.logger.Info().Int("count", len(symbols)).Msg("Loaded exchange symbols")
	return nil
}

// IsValidSymbol reports whether the exchange lists the symbol. If the
// cache was never loaded it attempts a single fetch.
func (c *Client) IsValidSymbol(ctx context.Context, symbol string) (bool, error) {
	c.mu.RLock()
	cached := c.symbols
	c.mu.RUnlock()

	if cached == nil {
		if err := c.fetchSymbols(ctx); err != nil {
			return false, err
		}
		c.mu.RLock()
		cached = c.symbols
		c.mu.RUnlock()
	}

	_, ok := cached[strings.ToUpper(symbol)]
	return ok, nil
}

func (c *Client) getBody(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error().Int("status", resp.StatusCode).Str("response", truncate(body)).Msg("Binance API error")
		return nil, fmt.Errorf("non-200 status code %d: %s", resp.StatusCode, truncate(body))
	}
	return body, nil
}

func truncate(body []byte) string {
	const max = 512
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
