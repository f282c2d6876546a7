package analyze

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cryptomind/analyst/internal/user"
	"github.com/cryptomind/analyst/models"
)

// syntheticUptrend builds n candles that gain 1.2 on odd bars and lose
// 0.9 on even bars: a clear uptrend whose RSI stays near 57, well inside
// the neutral band.
func syntheticUptrend(n int) []models.Candle {
	candles := make([]models.Candle, n)
	price := 100.0
	for i := 0; i < n; i++ {
		if i > 0 {
			if i%2 == 1 {
				price += 1.2
			} else {
				price -= 0.9
			}
		}
		candles[i] = models.Candle{
			Timestamp: int64(i) * 3600_000,
			Open:      price - 0.1,
			High:      price + 0.5,
			Low:       price - 0.5,
			Close:     price,
			Volume:    1000,
		}
	}
	return candles
}

type fakeMarket struct {
	symbols  map[string]bool
	candles  []models.Candle
	fetchErr error
	fetches  int
}

func (m *fakeMarket) IsValidSymbol(_ context.Context, symbol string) (bool, error) {
	return m.symbols[symbol], nil
}

func (m *fakeMarket) GetKlines(_ context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	m.fetches++
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	return m.candles, nil
}

type fakeRenderer struct {
	err error
}

func (r *fakeRenderer) Render(symbol string, candles []models.Candle) ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	return []byte("png"), nil
}

type fakeSummarizer struct {
	text string
	err  error
}

func (s *fakeSummarizer) Summarize(_ context.Context, symbol, timeframe string, report []string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.text, nil
}

type recordingDeliverer struct {
	events  []string
	report  []string
	summary string
}

func (d *recordingDeliverer) Progress(symbol, timeframe string) {
	d.events = append(d.events, "progress")
}

func (d *recordingDeliverer) SendReport(symbol, timeframe string, lines []string) error {
	d.events = append(d.events, "report")
	d.report = lines
	return nil
}

func (d *recordingDeliverer) SendChart(symbol string, png []byte) error {
	d.events = append(d.events, "chart")
	return nil
}

func (d *recordingDeliverer) SendSummary(text string) error {
	d.events = append(d.events, "summary")
	d.summary = text
	return nil
}

// failingDebitStore wraps a Store and fails every debit.
type failingDebitStore struct {
	user.Store
}

func (s *failingDebitStore) DebitOnSuccess(ctx context.Context, id int64) error {
	return fmt.Errorf("%w: store down", models.ErrPersistence)
}

func newTestOrchestrator(t *testing.T, freeLimit int, market *fakeMarket, charts Renderer, summarizer Summarizer) (*Orchestrator, user.Store) {
	t.Helper()
	store, err := user.NewFileStore(filepath.Join(t.TempDir(), "users.json"), freeLimit)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	orch := New(Options{
		Market:     market,
		Users:      store,
		Charts:     charts,
		Summarizer: summarizer,
	})
	return orch, store
}

func analysisUsed(t *testing.T, store user.Store, id int64) int {
	t.Helper()
	u, err := store.GetOrCreate(context.Background(), id, "", "")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	return u.AnalysisUsed
}

func TestHandleSymbolInvalid(t *testing.T) {
	market := &fakeMarket{symbols: map[string]bool{"BTCUSDT": true}}
	orch, _ := newTestOrchestrator(t, 1, market, &fakeRenderer{}, &fakeSummarizer{})

	_, err := orch.HandleSymbol(context.Background(), 1, "A", "a", "NOPEUSD")
	if !errors.Is(err, models.ErrSymbolInvalid) {
		t.Errorf("got %v, want ErrSymbolInvalid", err)
	}
}

func TestHandleSymbolBuildsPrompt(t *testing.T) {
	market := &fakeMarket{symbols: map[string]bool{"BTCUSDT": true}}
	orch, _ := newTestOrchestrator(t, 1, market, &fakeRenderer{}, &fakeSummarizer{})

	prompt, err := orch.HandleSymbol(context.Background(), 1, "A", "a", " btcusdt ")
	if err != nil {
		t.Fatalf("HandleSymbol: %v", err)
	}
	if prompt.Symbol != "BTCUSDT" {
		t.Errorf("symbol = %q, want BTCUSDT", prompt.Symbol)
	}
	if len(prompt.Buttons) != 3 {
		t.Fatalf("got %d buttons, want 3", len(prompt.Buttons))
	}
	wantTokens := []string{"BTCUSDT|1h", "BTCUSDT|4h", "BTCUSDT|1d"}
	for i, w := range wantTokens {
		if prompt.Buttons[i].Token != w {
			t.Errorf("button %d token = %q, want %q", i, prompt.Buttons[i].Token, w)
		}
	}
}

func TestHandleSymbolQuotaExceeded(t *testing.T) {
	market := &fakeMarket{symbols: map[string]bool{"BTCUSDT": true}}
	orch, store := newTestOrchestrator(t, 1, market, &fakeRenderer{}, &fakeSummarizer{})
	ctx := context.Background()

	if _, err := store.GetOrCreate(ctx, 1, "A", "a"); err != nil {
		t.Fatal(err)
	}
	if err := store.DebitOnSuccess(ctx, 1); err != nil {
		t.Fatal(err)
	}

	_, err := orch.HandleSymbol(ctx, 1, "A", "a", "BTCUSDT")
	if !errors.Is(err, models.ErrQuotaExceeded) {
		t.Errorf("got %v, want ErrQuotaExceeded", err)
	}
}

func TestHandleSelectionBadToken(t *testing.T) {
	market := &fakeMarket{symbols: map[string]bool{"BTCUSDT": true}}
	orch, store := newTestOrchestrator(t, 1, market, &fakeRenderer{}, &fakeSummarizer{})

	d := &recordingDeliverer{}
	err := orch.HandleSelection(context.Background(), 1, "A", "a", "BTCUSDT-1h", d)
	if !errors.Is(err, models.ErrBadToken) {
		t.Errorf("got %v, want ErrBadToken", err)
	}
	if len(d.events) != 0 {
		t.Errorf("deliverer called on bad token: %v", d.events)
	}
	if market.fetches != 0 {
		t.Errorf("market fetched on bad token")
	}
	if used := analysisUsed(t, store, 1); used != 0 {
		t.Errorf("analysisUsed = %d, want 0", used)
	}
}

func TestHandleSelectionSuccess(t *testing.T) {
	market := &fakeMarket{
		symbols: map[string]bool{"BTCUSDT": true},
		candles: syntheticUptrend(200),
	}
	orch, store := newTestOrchestrator(t, 1, market, &fakeRenderer{}, &fakeSummarizer{text: "summary text"})
	ctx := context.Background()

	if _, err := store.GetOrCreate(ctx, 1, "A", "a"); err != nil {
		t.Fatal(err)
	}

	d := &recordingDeliverer{}
	if err := orch.HandleSelection(ctx, 1, "A", "a", "BTCUSDT|1h", d); err != nil {
		t.Fatalf("HandleSelection: %v", err)
	}

	wantOrder := []string{"progress", "report", "chart", "summary"}
	if len(d.events) != len(wantOrder) {
		t.Fatalf("events = %v, want %v", d.events, wantOrder)
	}
	for i, w := range wantOrder {
		if d.events[i] != w {
			t.Errorf("event %d = %q, want %q", i, d.events[i], w)
		}
	}
	if d.summary != "summary text" {
		t.Errorf("summary = %q", d.summary)
	}
	if used := analysisUsed(t, store, 1); used != 1 {
		t.Errorf("analysisUsed = %d, want 1", used)
	}
}

func TestHandleSelectionReportContents(t *testing.T) {
	candles := syntheticUptrend(200)
	market := &fakeMarket{
		symbols: map[string]bool{"BTCUSDT": true},
		candles: candles,
	}
	orch, store := newTestOrchestrator(t, 1, market, &fakeRenderer{}, &fakeSummarizer{text: "s"})
	ctx := context.Background()
	if _, err := store.GetOrCreate(ctx, 1, "A", "a"); err != nil {
		t.Fatal(err)
	}

	d := &recordingDeliverer{}
	if err := orch.HandleSelection(ctx, 1, "A", "a", "BTCUSDT|1h", d); err != nil {
		t.Fatalf("HandleSelection: %v", err)
	}

	// RSI of the alternating series sits near 57: no oversold/overbought
	// line, so the report opens with the MACD line.
	if !strings.HasPrefix(d.report[0], "MACD ") {
		t.Errorf("first line = %q, want a MACD line (no RSI line)", d.report[0])
	}

	joined := strings.Join(d.report, "\n")
	if !strings.Contains(joined, "broader trend is up") {
		t.Errorf("report missing uptrend line: %q", joined)
	}
	if !strings.Contains(joined, "ADX indicates") {
		t.Errorf("report missing ADX line: %q", joined)
	}

	// Support/resistance are the literal min low / max high of the last
	// ten candles, rounded to 4 decimals.
	low, high := candles[190].Low, candles[190].High
	for _, c := range candles[191:] {
		if c.Low < low {
			low = c.Low
		}
		if c.High > high {
			high = c.High
		}
	}
	if want := fmt.Sprintf("Support: %.4f", low); d.report[len(d.report)-2] != want {
		t.Errorf("support line = %q, want %q", d.report[len(d.report)-2], want)
	}
	if want := fmt.Sprintf("Resistance: %.4f", high); d.report[len(d.report)-1] != want {
		t.Errorf("resistance line = %q, want %q", d.report[len(d.report)-1], want)
	}
}

func TestHandleSelectionFetchFailureNoDebit(t *testing.T) {
	market := &fakeMarket{
		symbols:  map[string]bool{"BTCUSDT": true},
		fetchErr: errors.New("upstream down"),
	}
	orch, store := newTestOrchestrator(t, 1, market, &fakeRenderer{}, &fakeSummarizer{})
	ctx := context.Background()
	if _, err := store.GetOrCreate(ctx, 1, "A", "a"); err != nil {
		t.Fatal(err)
	}

	d := &recordingDeliverer{}
	err := orch.HandleSelection(ctx, 1, "A", "a", "BTCUSDT|1h", d)
	if !errors.Is(err, models.ErrDataUnavailable) {
		t.Errorf("got %v, want ErrDataUnavailable", err)
	}
	if used := analysisUsed(t, store, 1); used != 0 {
		t.Errorf("analysisUsed = %d, want 0 after failed fetch", used)
	}
}

func TestHandleSelectionInsufficientHistoryNoDebit(t *testing.T) {
	market := &fakeMarket{
		symbols: map[string]bool{"BTCUSDT": true},
		candles: syntheticUptrend(50),
	}
	orch, store := newTestOrchestrator(t, 1, market, &fakeRenderer{}, &fakeSummarizer{})
	ctx := context.Background()
	if _, err := store.GetOrCreate(ctx, 1, "A", "a"); err != nil {
		t.Fatal(err)
	}

	err := orch.HandleSelection(ctx, 1, "A", "a", "BTCUSDT|1h", &recordingDeliverer{})
	if !errors.Is(err, models.ErrInsufficientHistory) {
		t.Errorf("got %v, want ErrInsufficientHistory", err)
	}
	if used := analysisUsed(t, store, 1); used != 0 {
		t.Errorf("analysisUsed = %d, want 0", used)
	}
}

func TestHandleSelectionRenderFailureNoDebit(t *testing.T) {
	market := &fakeMarket{
		symbols: map[string]bool{"BTCUSDT": true},
		candles: syntheticUptrend(200),
	}
	orch, store := newTestOrchestrator(t, 1, market,
		&fakeRenderer{err: errors.New("raster failed")}, &fakeSummarizer{})
	ctx := context.Background()
	if _, err := store.GetOrCreate(ctx, 1, "A", "a"); err != nil {
		t.Fatal(err)
	}

	d := &recordingDeliverer{}
	err := orch.HandleSelection(ctx, 1, "A", "a", "BTCUSDT|1h", d)
	if !errors.Is(err, models.ErrRender) {
		t.Errorf("got %v, want ErrRender", err)
	}
	// The textual report went out before the render failed, but the debit
	// is all-or-nothing.
	if len(d.report) == 0 {
		t.Error("report was not delivered before the render step")
	}
	if used := analysisUsed(t, store, 1); used != 0 {
		t.Errorf("analysisUsed = %d, want 0 after render failure", used)
	}
}

func TestHandleSelectionSummarizerFailureDegrades(t *testing.T) {
	market := &fakeMarket{
		symbols: map[string]bool{"BTCUSDT": true},
		candles: syntheticUptrend(200),
	}
	orch, store := newTestOrchestrator(t, 1, market, &fakeRenderer{},
		&fakeSummarizer{err: errors.New("llm down")})
	ctx := context.Background()
	if _, err := store.GetOrCreate(ctx, 1, "A", "a"); err != nil {
		t.Fatal(err)
	}

	d := &recordingDeliverer{}
	if err := orch.HandleSelection(ctx, 1, "A", "a", "BTCUSDT|1h", d); err != nil {
		t.Fatalf("HandleSelection: %v", err)
	}
	if d.summary != SummaryPlaceholder {
		t.Errorf("summary = %q, want placeholder", d.summary)
	}
	if used := analysisUsed(t, store, 1); used != 1 {
		t.Errorf("analysisUsed = %d, want 1: summarizer failure must not block the debit", used)
	}
}

func TestReusedTokenRejectedAfterQuotaSpent(t *testing.T) {
	market := &fakeMarket{
		symbols: map[string]bool{"BTCUSDT": true},
		candles: syntheticUptrend(200),
	}
	orch, store := newTestOrchestrator(t, 1, market, &fakeRenderer{}, &fakeSummarizer{text: "s"})
	ctx := context.Background()
	if _, err := store.GetOrCreate(ctx, 1, "A", "a"); err != nil {
		t.Fatal(err)
	}

	if err := orch.HandleSelection(ctx, 1, "A", "a", "BTCUSDT|1h", &recordingDeliverer{}); err != nil {
		t.Fatalf("first selection: %v", err)
	}

	err := orch.HandleSelection(ctx, 1, "A", "a", "BTCUSDT|1h", &recordingDeliverer{})
	if !errors.Is(err, models.ErrQuotaExceeded) {
		t.Errorf("reused token: got %v, want ErrQuotaExceeded", err)
	}
	if used := analysisUsed(t, store, 1); used != 1 {
		t.Errorf("analysisUsed = %d, want 1", used)
	}
}

func TestSelectionByUnknownUserDebitsAndGates(t *testing.T) {
	market := &fakeMarket{
		symbols: map[string]bool{"BTCUSDT": true},
		candles: syntheticUptrend(200),
	}
	orch, store := newTestOrchestrator(t, 1, market, &fakeRenderer{}, &fakeSummarizer{text: "s"})
	ctx := context.Background()

	// No prior contact: the button press itself is the first time this
	// user id is seen (group chats let anyone tap the prompt). The
	// selection must register the user so the debit lands and the gate
	// trips on the next attempt.
	if err := orch.HandleSelection(ctx, 2, "B", "b", "BTCUSDT|1h", &recordingDeliverer{}); err != nil {
		t.Fatalf("first selection: %v", err)
	}
	if used := analysisUsed(t, store, 2); used != 1 {
		t.Errorf("analysisUsed = %d, want 1 after the first selection", used)
	}

	err := orch.HandleSelection(ctx, 2, "B", "b", "BTCUSDT|1h", &recordingDeliverer{})
	if !errors.Is(err, models.ErrQuotaExceeded) {
		t.Errorf("second selection: got %v, want ErrQuotaExceeded", err)
	}

	u, err := store.GetOrCreate(ctx, 2, "", "")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if u.Name != "B" || u.Username != "b" {
		t.Errorf("registered user = %+v, want name/username from the callback", u)
	}
}

func TestSubscribedUserNeverDebited(t *testing.T) {
	market := &fakeMarket{
		symbols: map[string]bool{"BTCUSDT": true},
		candles: syntheticUptrend(200),
	}
	orch, store := newTestOrchestrator(t, 1, market, &fakeRenderer{}, &fakeSummarizer{text: "s"})
	ctx := context.Background()
	if _, err := store.GetOrCreate(ctx, 1, "A", "a"); err != nil {
		t.Fatal(err)
	}
	if err := store.Activate(ctx, 1); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if err := orch.HandleSelection(ctx, 1, "A", "a", "BTCUSDT|1h", &recordingDeliverer{}); err != nil {
			t.Fatalf("selection %d: %v", i, err)
		}
	}
	if used := analysisUsed(t, store, 1); used != 0 {
		t.Errorf("analysisUsed = %d, want 0 for subscribed user", used)
	}
}

func TestDebitFailureAlertsOperator(t *testing.T) {
	market := &fakeMarket{
		symbols: map[string]bool{"BTCUSDT": true},
		candles: syntheticUptrend(200),
	}
	store, err := user.NewFileStore(filepath.Join(t.TempDir(), "users.json"), 1)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if _, err := store.GetOrCreate(ctx, 1, "A", "a"); err != nil {
		t.Fatal(err)
	}

	var alerts []string
	orch := New(Options{
		Market:     market,
		Users:      &failingDebitStore{Store: store},
		Charts:     &fakeRenderer{},
		Summarizer: &fakeSummarizer{text: "s"},
		Alert:      func(msg string) { alerts = append(alerts, msg) },
	})

	d := &recordingDeliverer{}
	if err := orch.HandleSelection(ctx, 1, "A", "a", "BTCUSDT|1h", d); err != nil {
		t.Fatalf("HandleSelection: %v (delivered flow must not fail on debit error)", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("got %d operator alerts, want 1", len(alerts))
	}
	if !strings.Contains(alerts[0], "debit failed") {
		t.Errorf("alert = %q", alerts[0])
	}
}
