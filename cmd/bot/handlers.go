package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/cryptomind/analyst/config"
	"github.com/cryptomind/analyst/internal/analyze"
	"github.com/cryptomind/analyst/internal/user"
)

type handler struct {
	bot    *tgbotapi.BotAPI
	cfg    *config.Config
	store  user.Store
	orch   *analyze.Orchestrator
	logger zerolog.Logger
}

const welcomeText = `👋 Welcome to CRYPTO MIND BOT!

🤖 This bot gives you a precise technical analysis of crypto pairs.

🔹 How to use it:
1️⃣ Send a pair symbol, for example: BTCUSDT
2️⃣ Pick a timeframe (1h - 4h - 1d)
3️⃣ You receive a technical report + chart + smart summary

📌 Commands:
/start - show this message
/status - check your subscription
/help - show help

🎁 The first analysis is free, after that a monthly subscription is required.
📞 To subscribe contact %s`

const helpText = `🤖 Crypto analysis bot

✨ Send a pair symbol like BTCUSDT to analyze it.
✅ The first analysis is free.
💳 After that a monthly subscription is required.
📞 To subscribe: %s

🔧 Commands:
/start - start using the bot
/status - check your status
/help - show this message`

// handleMessage processes incoming text messages
func (h *handler) handleMessage(message *tgbotapi.Message) {
	ctx := context.Background()
	userID := message.From.ID
	chatID := message.Chat.ID

	switch message.Command() {
	case "start":
		if _, err := h.store.GetOrCreate(ctx, userID, message.From.FirstName, message.From.UserName); err != nil {
			h.logger.Error().Err(err).Int64("user_id", userID).Msg("Error registering user")
		}
		h.reply(chatID, fmt.Sprintf(welcomeText, h.cfg.SupportUsername))
		return
	case "help":
		h.reply(chatID, fmt.Sprintf(helpText, h.cfg.SupportUsername))
		return
	case "status":
		h.handleStatus(ctx, userID, chatID)
		return
	case "activate":
		h.handleActivate(ctx, message, chatID)
		return
	case "users":
		h.handleUsers(ctx, userID, chatID)
		return
	case "broadcast":
		h.handleBroadcast(ctx, message, chatID)
		return
	}
	if message.IsCommand() {
		h.reply(chatID, "Unknown command. Use /help to see what I can do.")
		return
	}

	// Plain text is treated as a symbol.
	prompt, err := h.orch.HandleSymbol(ctx, userID, message.From.FirstName, message.From.UserName, message.Text)
	if err != nil {
		h.logger.Warn().Err(err).Int64("user_id", userID).Str("text", message.Text).Msg("Symbol rejected")
		h.reply(chatID, analyze.UserMessage(err, h.cfg.SupportUsername))
		return
	}

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(prompt.Buttons))
	for _, b := range prompt.Buttons {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Token),
		))
	}

	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("🔍 Pick the timeframe to analyze %s on:", prompt.Symbol))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	if _, err := h.bot.Send(msg); err != nil {
		h.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Error sending timeframe prompt")
	}
}

// handleCallback processes a timeframe button press
func (h *handler) handleCallback(query *tgbotapi.CallbackQuery) {
	// Message is nil for callbacks on messages the bot can no longer
	// access (too old, deleted); there is nowhere to deliver to.
	if query.Message == nil {
		h.logger.Warn().Str("token", query.Data).Msg("Callback without an accessible message, ignoring")
		return
	}

	ctx := context.Background()
	userID := query.From.ID
	chatID := query.Message.Chat.ID

	// Acknowledge the button press so the client stops the spinner.
	if _, err := h.bot.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		h.logger.Warn().Err(err).Msg("Error answering callback query")
	}

	d := &chatDeliverer{
		bot:         h.bot,
		chatID:      chatID,
		promptMsgID: query.Message.MessageID,
		logger:      h.logger,
	}

	if err := h.orch.HandleSelection(ctx, userID, query.From.FirstName, query.From.UserName, query.Data, d); err != nil {
		h.logger.Warn().Err(err).Int64("user_id", userID).Str("token", query.Data).Msg("Analysis failed")
		h.reply(chatID, analyze.UserMessage(err, h.cfg.SupportUsername))
	}
}

func (h *handler) handleStatus(ctx context.Context, userID, chatID int64) {
	u, err := h.store.GetOrCreate(ctx, userID, "", "")
	if err != nil {
		h.logger.Error().Err(err).Int64("user_id", userID).Msg("Error reading user status")
		h.reply(chatID, "Sorry, there was an error. Please try again later.")
		return
	}

	status := "❌ not active"
	remaining := strconv.Itoa(u.Remaining(h.cfg.FreeAnalysisLimit))
	if u.Subscribed {
		status = "✅ active"
		remaining = "∞"
	}
	h.reply(chatID, fmt.Sprintf(
		"📊 Your account:\n🔐 Subscription: %s\n📈 Analyses used: %d\n🎁 Free analyses remaining: %s",
		status, u.AnalysisUsed, remaining,
	))
}

func (h *handler) handleActivate(ctx context.Context, message *tgbotapi.Message, chatID int64) {
	if !h.isAdmin(message.From.ID) {
		h.reply(chatID, "🚫 This command is for administrators only.")
		return
	}

	args := strings.Fields(message.CommandArguments())
	if len(args) != 1 {
		h.reply(chatID, "❌ Usage: /activate USER_ID")
		return
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		h.reply(chatID, "❌ USER_ID must be numeric.")
		return
	}

	if err := h.store.Activate(ctx, id); err != nil {
		h.logger.Warn().Err(err).Int64("target_id", id).Msg("Activation failed")
		h.reply(chatID, analyze.UserMessage(err, h.cfg.SupportUsername))
		return
	}
	h.reply(chatID, fmt.Sprintf("✅ Subscription activated for user %d.", id))
}

func (h *handler) handleUsers(ctx context.Context, userID, chatID int64) {
	if !h.isAdmin(userID) {
		h.reply(chatID, "🚫 This command is for administrators only.")
		return
	}

	users, err := h.store.ListAll(ctx)
	if err != nil {
		h.logger.Error().Err(err).Msg("Error listing users")
		h.reply(chatID, "Sorry, there was an error. Please try again later.")
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "👥 Total users: %d\n\n", len(users))
	for _, u := range users {
		sub := "❌"
		if u.Subscribed {
			sub = "✅"
		}
		fmt.Fprintf(&sb, "🆔 %d\n👤 %s (@%s)\n🔐 Subscribed: %s\n\n", u.ID, u.Name, u.Username, sub)
	}
	h.reply(chatID, sb.String())
}

func (h *handler) handleBroadcast(ctx context.Context, message *tgbotapi.Message, chatID int64) {
	if !h.isAdmin(message.From.ID) {
		h.reply(chatID, "🚫 This command is for administrators only.")
		return
	}

	text := strings.TrimSpace(message.CommandArguments())
	if text == "" {
		h.reply(chatID, "❌ Usage: /broadcast your message here")
		return
	}

	users, err := h.store.ListAll(ctx)
	if err != nil {
		h.logger.Error().Err(err).Msg("Error listing users for broadcast")
		h.reply(chatID, "Sorry, there was an error. Please try again later.")
		return
	}

	// One message per second keeps the transport rate limit happy; a
	// failed recipient is counted and skipped, never aborts the rest.
	limiter := rate.NewLimiter(rate.Every(time.Second), 1)
	var success, failed int
	for _, u := range users {
		if err := limiter.Wait(ctx); err != nil {
			h.logger.Error().Err(err).Msg("Broadcast interrupted")
			break
		}
		if _, err := h.bot.Send(tgbotapi.NewMessage(u.ID, text)); err != nil {
			h.logger.Warn().Err(err).Int64("user_id", u.ID).Msg("Broadcast delivery failed")
			failed++
			continue
		}
		success++
	}

	h.reply(chatID, fmt.Sprintf("📬 Delivered to %d users ✅\n❌ Failed for %d users.", success, failed))
}

func (h *handler) isAdmin(userID int64) bool {
	return h.cfg.AdminID != 0 && userID == h.cfg.AdminID
}

func (h *handler) reply(chatID int64, text string) {
	if _, err := h.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		h.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Error sending message")
	}
}

// chatDeliverer delivers analysis artifacts to one chat, in pipeline
// order: progress edit, report text, chart photo, summary text.
type chatDeliverer struct {
	bot         *tgbotapi.BotAPI
	chatID      int64
	promptMsgID int
	logger      zerolog.Logger
}

func (d *chatDeliverer) Progress(symbol, timeframe string) {
	edit := tgbotapi.NewEditMessageText(d.chatID, d.promptMsgID,
		fmt.Sprintf("⏳ Analyzing %s on the %s timeframe...", symbol, timeframe))
	if _, err := d.bot.Send(edit); err != nil {
		d.logger.Debug().Err(err).Msg("Progress edit failed")
	}
}

func (d *chatDeliverer) SendReport(symbol, timeframe string, lines []string) error {
	text := fmt.Sprintf("📉 Analysis of %s on the %s timeframe:\n\n%s",
		symbol, timeframe, strings.Join(lines, "\n"))
	_, err := d.bot.Send(tgbotapi.NewMessage(d.chatID, text))
	return err
}

func (d *chatDeliverer) SendChart(symbol string, png []byte) error {
	photo := tgbotapi.NewPhoto(d.chatID, tgbotapi.FileBytes{
		Name:  symbol + "_chart.png",
		Bytes: png,
	})
	_, err := d.bot.Send(photo)
	return err
}

func (d *chatDeliverer) SendSummary(text string) error {
	_, err := d.bot.Send(tgbotapi.NewMessage(d.chatID, "🧠 Summary:\n\n"+text))
	return err
}
