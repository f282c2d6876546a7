package main

import (
	"context"
	"os"
	"time"

	_ "github.com/lib/pq"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/cryptomind/analyst/config"
	"github.com/cryptomind/analyst/internal/analyze"
	"github.com/cryptomind/analyst/internal/api/binance"
	"github.com/cryptomind/analyst/internal/api/openai"
	"github.com/cryptomind/analyst/internal/chart"
	"github.com/cryptomind/analyst/internal/user"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := zerolog.New(os.Stderr)
		fallback.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger := newLogger(cfg.LogLevel)

	store, err := newStore(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize entitlement store")
	}
	defer store.Close()

	market := binance.NewClient(binance.ClientOptions{
		RequestTimeout: time.Duration(cfg.RequestTimeout) * time.Second,
	})

	// Symbol validation needs the exchange list; without it every symbol
	// message would fail, so treat it as a startup dependency.
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	if err := market.LoadSymbols(ctx); err != nil {
		cancel()
		logger.Fatal().Err(err).Msg("Failed to load exchange symbols")
	}
	cancel()

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize Telegram bot")
	}
	logger.Info().Str("username", bot.Self.UserName).Msg("Authorized on Telegram")

	orch := analyze.New(analyze.Options{
		Market:     market,
		Users:      store,
		Charts:     chart.NewRenderer(),
		Summarizer: openai.NewClient(cfg.OpenAIAPIKey),
		HistoryLen: cfg.CandleCount,
		Alert:      adminAlert(bot, cfg.AdminID),
	})

	h := &handler{
		bot:    bot,
		cfg:    cfg,
		store:  store,
		orch:   orch,
		logger: logger,
	}

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := bot.GetUpdatesChan(updateConfig)

	// One task per inbound event; users only share the store, which
	// serializes per-user updates itself.
	for update := range updates {
		switch {
		case update.Message != nil:
			go h.handleMessage(update.Message)
		case update.CallbackQuery != nil:
			go h.handleCallback(update.CallbackQuery)
		}
	}
}

// newLogger builds the process logger and installs it as the zerolog
// global, which the component child loggers derive from.
func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(lvl).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}

func newStore(cfg *config.Config) (user.Store, error) {
	if cfg.DBHost == "" {
		return user.NewFileStore(cfg.UsersFile, cfg.FreeAnalysisLimit)
	}
	return user.NewPostgresStore(user.ConnectionParams{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		DBName:   cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	}, cfg.FreeAnalysisLimit)
}

// adminAlert routes operator-visible conditions (like a failed debit after
// a delivered analysis) to the admin chat.
func adminAlert(bot *tgbotapi.BotAPI, adminID int64) func(string) {
	if adminID == 0 {
		return nil
	}
	return func(msg string) {
		bot.Send(tgbotapi.NewMessage(adminID, "⚠️ "+msg))
	}
}
