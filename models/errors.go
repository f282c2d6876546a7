package models

import "errors"

// Pipeline error kinds. Every stage of the analysis flow wraps one of
// these so the orchestrator can tell abort-without-debit apart from
// degrade-and-continue, and the bot can pick a user-facing message with
// errors.Is instead of string matching.
var (
	// ErrSymbolInvalid means the symbol is not listed on the exchange.
	ErrSymbolInvalid = errors.New("symbol is not supported")

	// ErrInsufficientHistory means fewer candles were available than the
	// largest indicator window requires.
	ErrInsufficientHistory = errors.New("insufficient price history")

	// ErrQuotaExceeded means an unsubscribed user has spent the free tier.
	ErrQuotaExceeded = errors.New("free analysis quota exceeded")

	// ErrBadToken means a selection callback token could not be decoded.
	ErrBadToken = errors.New("malformed selection token")

	// ErrDataUnavailable means the market-data fetch failed.
	ErrDataUnavailable = errors.New("market data unavailable")

	// ErrRender means chart rendering or chart delivery failed.
	ErrRender = errors.New("chart rendering failed")

	// ErrSummarizer means the summary step failed. Non-fatal: the
	// pipeline degrades to a placeholder instead of aborting.
	ErrSummarizer = errors.New("summarizer unavailable")

	// ErrPersistence means the entitlement store was unreachable.
	ErrPersistence = errors.New("entitlement store error")

	// ErrUserNotFound means an administrative action targeted an unknown id.
	ErrUserNotFound = errors.New("user not found")
)
