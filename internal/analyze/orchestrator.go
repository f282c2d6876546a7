// Package analyze sequences one analysis request end to end: validate the
// symbol, gate on entitlement, prompt for a timeframe, and on selection
// fetch data, compute indicators, compose signals, deliver, and debit.
// The two entry points are correlated only by the callback token; the
// orchestrator itself holds no per-user session state.
package analyze

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/cryptomind/analyst/internal/calculate"
	"github.com/cryptomind/analyst/internal/callback"
	"github.com/cryptomind/analyst/internal/signal"
	"github.com/cryptomind/analyst/internal/user"
	"github.com/cryptomind/analyst/models"
)

// SummaryPlaceholder replaces the summary when the summarizer fails.
// Summary generation is best-effort and never aborts a delivery.
const SummaryPlaceholder = "Smart summary is temporarily unavailable for this analysis."

// Timeframe options offered after a valid symbol.
var Timeframes = []TimeframeOption{
	{Code: "1h", Label: "1 Hour"},
	{Code: "4h", Label: "4 Hours"},
	{Code: "1d", Label: "Daily"},
}

// TimeframeOption is one selectable timeframe.
type TimeframeOption struct {
	Code  string
	Label string
}

// MarketData is the market-data collaborator.
type MarketData interface {
	IsValidSymbol(ctx context.Context, symbol string) (bool, error)
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error)
}

// Renderer is the chart-rendering collaborator.
type Renderer interface {
	Render(symbol string, candles []models.Candle) ([]byte, error)
}

// Summarizer is the natural-language summary collaborator.
type Summarizer interface {
	Summarize(ctx context.Context, symbol, timeframe string, report []string) (string, error)
}

// Deliverer receives the analysis artifacts in order. Implemented by the
// transport layer per chat; a fake in tests.
type Deliverer interface {
	// Progress signals that the analysis started; best-effort.
	Progress(symbol, timeframe string)
	SendReport(symbol, timeframe string, lines []string) error
	SendChart(symbol string, png []byte) error
	SendSummary(text string) error
}

// PromptButton is one timeframe button: label plus the callback token
// that carries the selection back.
type PromptButton struct {
	Label string
	Token string
}

// TimeframePrompt is the reply to a valid, authorized symbol message.
type TimeframePrompt struct {
	Symbol  string
	Buttons []PromptButton
}

// Orchestrator wires the collaborators together.
type Orchestrator struct {
	market     MarketData
	users      user.Store
	charts     Renderer
	summarizer Summarizer
	historyLen int
	logger     zerolog.Logger

	// alert surfaces conditions that completed user flows cannot show,
	// like a debit that failed after delivery. Optional.
	alert func(msg string)
}

// Options configures a new Orchestrator.
type Options struct {
	Market     MarketData
	Users      user.Store
	Charts     Renderer
	Summarizer Summarizer
	HistoryLen int
	Alert      func(msg string)
}

// New creates an Orchestrator.
func New(opts Options) *Orchestrator {
	if opts.HistoryLen == 0 {
		opts.HistoryLen = calculate.MinHistory
	}
	return &Orchestrator{
		market:     opts.Market,
		users:      opts.Users,
		charts:     opts.Charts,
		summarizer: opts.Summarizer,
		historyLen: opts.HistoryLen,
		logger:     log.With().Str("component", "orchestrator").Logger(),
		alert:      opts.Alert,
	}
}

// HandleSymbol processes an inbound symbol message: registers the user,
// validates the symbol, checks the entitlement gate, and builds the
// timeframe prompt. Any returned error wraps one of the models sentinel
// kinds and leaves entitlement state untouched.
func (o *Orchestrator) HandleSymbol(ctx context.Context, userID int64, name, username, text string) (*TimeframePrompt, error) {
	symbol := strings.ToUpper(strings.TrimSpace(text))

	if _, err := o.users.GetOrCreate(ctx, userID, name, username); err != nil {
		return nil, err
	}

	valid, err := o.market.IsValidSymbol(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("%w: validating %s: %v", models.ErrDataUnavailable, symbol, err)
	}
	if !valid {
		return nil, fmt.Errorf("%w: %s", models.ErrSymbolInvalid, symbol)
	}

	authorized, err := o.users.IsAuthorized(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !authorized {
		return nil, fmt.Errorf("%w: user %d", models.ErrQuotaExceeded, userID)
	}

	prompt := &TimeframePrompt{Symbol: symbol}
	for _, tf := range Timeframes {
		prompt.Buttons = append(prompt.Buttons, PromptButton{
			Label: tf.Label,
			Token: callback.Encode(symbol, tf.Code),
		})
	}
	return prompt, nil
}

// HandleSelection processes a timeframe button press. It decodes the
// token, registers the pressing user, re-checks the entitlement gate
// (tokens carry no nonce and may be redelivered), runs the pipeline,
// delivers report/chart/summary in that order through d, and debits the
// quota exactly once after full success. Every failure before that point
// aborts with no debit; only the summary step degrades instead of
// aborting.
func (o *Orchestrator) HandleSelection(ctx context.Context, userID int64, name, username, token string, d Deliverer) error {
	sel, err := callback.Decode(token)
	if err != nil {
		return err
	}

	// The presser is not necessarily the user the prompt was issued to
	// (anyone can tap the button in a group chat), so the selection step
	// registers them the same way the symbol step does. Without a record
	// the debit below would match nothing and the gate would never trip.
	if _, err := o.users.GetOrCreate(ctx, userID, name, username); err != nil {
		return err
	}

	authorized, err := o.users.IsAuthorized(ctx, userID)
	if err != nil {
		return err
	}
	if !authorized {
		return fmt.Errorf("%w: user %d", models.ErrQuotaExceeded, userID)
	}

	d.Progress(sel.Symbol, sel.Timeframe)

	candles, err := o.market.GetKlines(ctx, sel.Symbol, sel.Timeframe, o.historyLen)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", models.ErrDataUnavailable, sel.Symbol, sel.Timeframe, err)
	}

	snap, err := calculate.Snapshot(candles)
	if err != nil {
		return err
	}

	report, err := signal.Compose(candles, snap)
	if err != nil {
		return err
	}

	if err := d.SendReport(sel.Symbol, sel.Timeframe, report); err != nil {
		return fmt.Errorf("delivering report: %w", err)
	}

	png, err := o.charts.Render(sel.Symbol, candles)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrRender, err)
	}
	if err := d.SendChart(sel.Symbol, png); err != nil {
		return fmt.Errorf("%w: delivering chart: %v", models.ErrRender, err)
	}

	summary, err := o.summarizer.Summarize(ctx, sel.Symbol, sel.Timeframe, report)
	if err != nil {
		o.logger.Warn().Err(err).Str("symbol", sel.Symbol).Msg("Summarizer failed, degrading to placeholder")
		summary = SummaryPlaceholder
	}
	if err := d.SendSummary(summary); err != nil {
		// The analysis itself was delivered; losing the summary message
		// does not warrant an abort or a skipped debit.
		o.logger.Warn().Err(err).Int64("user_id", userID).Msg("Summary delivery failed")
	}

	if err := o.users.DebitOnSuccess(ctx, userID); err != nil {
		// Delivery already happened; never re-run the flow. Surface to
		// the operator instead of the user.
		o.logger.Error().Err(err).Int64("user_id", userID).Msg("Debit failed after delivery")
		if o.alert != nil {
			o.alert(fmt.Sprintf("debit failed for user %d after a delivered analysis: %v", userID, err))
		}
	}

	return nil
}

// UserMessage maps a pipeline error to the text shown in chat.
func UserMessage(err error, supportUsername string) string {
	switch {
	case errors.Is(err, models.ErrSymbolInvalid):
		return "This symbol is not supported on Binance. Send a pair like BTCUSDT."
	case errors.Is(err, models.ErrQuotaExceeded):
		return fmt.Sprintf("You have used your free analysis. For a monthly subscription contact %s.", supportUsername)
	case errors.Is(err, models.ErrInsufficientHistory):
		return "Not enough price history for this pair and timeframe to run a full analysis."
	case errors.Is(err, models.ErrBadToken):
		return "This selection has expired. Send the symbol again."
	case errors.Is(err, models.ErrDataUnavailable):
		return "Market data is temporarily unavailable. Please try again in a moment."
	case errors.Is(err, models.ErrRender):
		return "Could not render the chart for this analysis. Please try again."
	case errors.Is(err, models.ErrPersistence):
		return "Sorry, there was an internal error. Please try again later."
	default:
		return "Sorry, something went wrong during the analysis. Please try again."
	}
}
