package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zorojean/lifekline/internal/app"
	"github.com/zorojean/lifekline/internal/apperr"
	"github.com/zorojean/lifekline/internal/bot"
	"github.com/zorojean/lifekline/internal/config"
	"github.com/zorojean/lifekline/internal/payment"
	"github.com/zorojean/lifekline/internal/render"
	"github.com/zorojean/lifekline/models"
)

const (
	buttonGenerate = "生成报告"
	buttonNew      = "重新排盘"
	buttonBuy      = "购买报告"

	sessionTTL      = 2 * time.Hour
	pendingPurchase = 24 * time.Hour
	historyLimit    = 10
)

// Bot holds the dependencies of the update loop
type Bot struct {
	api      *tgbotapi.BotAPI
	app      *app.App
	stripe   *payment.StripeService // nil when payments are off
	sessions *bot.Sessions
	logger   zerolog.Logger
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	app.SetupLogger(cfg.LogLevel)

	if cfg.TelegramBotToken == "" {
		log.Fatal().Msg("TELEGRAM_BOT_TOKEN not set in environment")
	}

	a, err := app.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}
	defer a.Close()

	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize Telegram bot")
	}
	log.Info().Str("username", api.Self.UserName).Msg("Authorized on Telegram")

	b := &Bot{
		api:      api,
		app:      a,
		sessions: bot.NewSessions(),
		logger:   log.With().Str("component", "tgbot").Logger(),
	}
	if cfg.PaymentRequired {
		if a.DB == nil {
			log.Fatal().Msg("PAYMENT_REQUIRED needs a database")
		}
		if cfg.TelegramBotUsername == "" {
			cfg.TelegramBotUsername = api.Self.UserName
		}
		b.stripe = payment.NewStripeService(cfg)
	}

	c := b.schedule()
	c.Start()
	defer c.Stop()

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60

	for update := range api.GetUpdatesChan(updateConfig) {
		if update.Message != nil {
			b.handleMessage(update.Message)
		} else if update.CallbackQuery != nil {
			b.handleCallback(update.CallbackQuery)
		}
	}
}

// schedule registers the housekeeping jobs
func (b *Bot) schedule() *cron.Cron {
	c := cron.New()

	if _, err := c.AddFunc("@every 15m", func() {
		if n := b.sessions.Sweep(sessionTTL); n > 0 {
			b.logger.Debug().Int("removed", n).Msg("Dropped idle sessions")
		}
	}); err != nil {
		b.logger.Error().Err(err).Msg("Failed to schedule session sweep")
	}

	if b.stripe != nil {
		if _, err := c.AddFunc("@hourly", func() {
			n, err := b.app.DB.ClosePendingPurchases(pendingPurchase)
			if err != nil {
				b.logger.Error().Err(err).Msg("Failed to close stale purchases")
				return
			}
			if n > 0 {
				b.logger.Info().Int64("closed", n).Msg("Closed stale purchases")
			}
		}); err != nil {
			b.logger.Error().Err(err).Msg("Failed to schedule purchase cleanup")
		}
	}
	return c
}

// handleMessage processes incoming text messages
func (b *Bot) handleMessage(message *tgbotapi.Message) {
	userID := message.From.ID
	chatID := message.Chat.ID
	text := strings.TrimSpace(message.Text)

	if message.IsCommand() {
		switch message.Command() {
		case "start":
			switch message.CommandArguments() {
			case "payment_success":
				b.sendBalance(userID, chatID, "感谢购买！")
				return
			case "payment_cancel":
				b.send(chatID, "支付已取消，可以随时再次购买。")
				return
			}
			b.send(chatID, "欢迎使用人生K线。根据八字四柱与大运，生成 1-100 岁的流年运势与命理分析。\n\n/new 开始排盘\n/history 历史报告\n/balance 剩余次数")
			b.beginSession(userID, chatID)
		case "new":
			b.beginSession(userID, chatID)
		case "cancel":
			b.sessions.Delete(userID)
			b.send(chatID, "已取消。发送 /new 重新开始。")
		case "history":
			b.sendHistory(userID, chatID)
		case "report":
			b.sendArchived(chatID, message.CommandArguments())
		case "balance":
			b.sendBalance(userID, chatID, "")
		default:
			b.send(chatID, "未知命令。发送 /new 开始排盘。")
		}
		return
	}

	switch text {
	case buttonNew:
		b.beginSession(userID, chatID)
		return
	case buttonGenerate:
		b.generate(userID, chatID)
		return
	}

	sess := b.sessions.Get(userID)
	reply := sess.Handle(text)
	if sess.Ready() {
		msg := tgbotapi.NewMessage(chatID, reply)
		msg.ReplyMarkup = readyKeyboard()
		b.sendMessage(msg)
		return
	}
	if sess.Stage == bot.StageGender {
		msg := tgbotapi.NewMessage(chatID, reply)
		msg.ReplyMarkup = genderKeyboard()
		b.sendMessage(msg)
		return
	}
	b.send(chatID, reply)
}

// handleCallback processes inline button presses
func (b *Bot) handleCallback(callback *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		b.logger.Warn().Err(err).Msg("Failed to acknowledge callback")
	}
	if callback.Message == nil {
		return
	}
	if callback.Data == "buy" {
		b.startCheckout(callback.From.ID, callback.Message.Chat.ID)
	}
}

func (b *Bot) beginSession(userID, chatID int64) {
	sess := b.sessions.Get(userID)
	msg := tgbotapi.NewMessage(chatID, sess.Begin())
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	b.sendMessage(msg)
}

// generate checks the session and the balance, taking one credit when payments are on
func (b *Bot) generate(userID, chatID int64) {
	sess := b.sessions.Get(userID)
	if !sess.Ready() {
		b.send(chatID, "资料尚未填写完整。发送 /new 开始排盘。")
		return
	}
	logger := b.logger.With().Int64("user_id", userID).Logger()

	if !b.sessions.StartGenerating(userID) {
		b.send(chatID, "报告正在生成中，请稍候。")
		return
	}

	if b.stripe != nil {
		remaining, ok, err := b.app.DB.ConsumeCredit(userID)
		if err != nil {
			b.sessions.FinishGenerating(userID)
			logger.Error().Err(err).Msg("Failed to consume credit")
			b.send(chatID, "系统繁忙，请稍后再试。")
			return
		}
		if !ok {
			b.sessions.FinishGenerating(userID)
			msg := tgbotapi.NewMessage(chatID, "剩余报告次数为 0，请先购买。")
			msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
				tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(buttonBuy, "buy")),
			)
			b.sendMessage(msg)
			return
		}
		logger.Info().Int("remaining", remaining).Msg("Credit consumed")
	}

	go b.runReport(userID, chatID, sess.Input)
}

// runReport calls the generator off the update loop; in is a copy of the session input
func (b *Bot) runReport(userID, chatID int64, in models.AnalysisInput) {
	defer b.sessions.FinishGenerating(userID)
	logger := b.logger.With().Int64("user_id", userID).Logger()

	sent, err := b.api.Send(tgbotapi.NewMessage(chatID, "⏳ 正在推演百年流年，通常需要一到数分钟……"))
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to send progress message")
	}

	rep, err := b.app.Service.AnalyzeForUser(context.Background(), userID, in)
	if sent.MessageID != 0 {
		if _, derr := b.api.Request(tgbotapi.NewDeleteMessage(chatID, sent.MessageID)); derr != nil {
			logger.Debug().Err(derr).Msg("Failed to delete progress message")
		}
	}
	if err != nil {
		logger.Error().Err(err).Str("kind", string(apperr.Kind(err))).Msg("Report generation failed")
		if b.stripe != nil {
			if rerr := b.app.DB.RefundCredit(userID); rerr != nil {
				logger.Error().Err(rerr).Msg("Failed to refund credit")
			}
		}
		b.send(chatID, "生成失败："+err.Error())
		return
	}

	b.sendLong(chatID, render.Report(rep))
}

func (b *Bot) startCheckout(userID, chatID int64) {
	if b.stripe == nil {
		b.send(chatID, "当前无需付费。")
		return
	}
	sessionID, url, err := b.stripe.CreateCheckoutSession(userID)
	if err != nil {
		b.logger.Error().Err(err).Int64("user_id", userID).Msg("Error creating Stripe session")
		b.send(chatID, "支付系统暂不可用，请稍后再试。")
		return
	}
	if err := b.app.DB.CreatePendingPurchase(userID, chatID, sessionID); err != nil {
		b.logger.Error().Err(err).Int64("user_id", userID).Msg("Error recording purchase")
		b.send(chatID, "系统繁忙，请稍后再试。")
		return
	}

	msg := tgbotapi.NewMessage(chatID, "请完成支付，返回本对话后即可生成报告。")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL("前往支付", url)),
	)
	b.sendMessage(msg)
}

func (b *Bot) sendBalance(userID, chatID int64, prefix string) {
	if b.stripe == nil {
		b.send(chatID, prefix+"当前无需付费，可直接生成报告。")
		return
	}
	c, err := b.app.DB.GetCredits(userID)
	if err != nil {
		b.logger.Error().Err(err).Int64("user_id", userID).Msg("Error retrieving credits")
		b.send(chatID, "系统繁忙，请稍后再试。")
		return
	}
	b.send(chatID, prefix+balanceText(c))
}

// balanceText shows the remaining credits; an open checkout only adds a note
func balanceText(c *models.UserCredits) string {
	if c == nil {
		return "剩余报告次数：0"
	}
	text := fmt.Sprintf("剩余报告次数：%d", c.Credits)
	if c.Status == models.PaymentStatusPending {
		text += "\n有一笔支付正在确认中，完成后次数会自动增加。"
	}
	return text
}

func (b *Bot) sendHistory(userID, chatID int64) {
	if b.app.DB == nil {
		b.send(chatID, "未启用报告存档。")
		return
	}
	list, err := b.app.DB.ListReports(context.Background(), userID, historyLimit)
	if err != nil {
		b.logger.Error().Err(err).Int64("user_id", userID).Msg("Error listing reports")
		b.send(chatID, "系统繁忙，请稍后再试。")
		return
	}
	if len(list) == 0 {
		b.send(chatID, "暂无历史报告。")
		return
	}
	b.send(chatID, formatHistory(list))
}

func formatHistory(list []models.ReportSummary) string {
	var sb strings.Builder
	sb.WriteString("最近的报告：\n")
	for _, r := range list {
		name := r.Name
		if name == "" {
			name = "命主"
		}
		sb.WriteString(fmt.Sprintf("%s %s（%d年生）总评 %d/10\n/report %s\n",
			r.CreatedAt.Format("2006-01-02"), name, r.BirthYear, r.SummaryScore, r.ID))
	}
	return sb.String()
}

func (b *Bot) sendArchived(chatID int64, id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		b.send(chatID, "用法：/report <报告编号>")
		return
	}
	rep, err := b.app.Service.Get(context.Background(), id)
	if err != nil {
		b.send(chatID, "无法读取报告："+err.Error())
		return
	}
	if rep == nil {
		b.send(chatID, "报告不存在。")
		return
	}
	b.sendLong(chatID, render.Report(rep))
}

func (b *Bot) sendLong(chatID int64, text string) {
	for _, chunk := range render.Chunk(text, render.TelegramLimit) {
		b.send(chatID, chunk)
	}
}

func (b *Bot) send(chatID int64, text string) {
	b.sendMessage(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) sendMessage(msg tgbotapi.MessageConfig) {
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", msg.ChatID).Msg("Failed to send message")
	}
}

func genderKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("男"),
			tgbotapi.NewKeyboardButton("女"),
		),
	)
	kb.OneTimeKeyboard = true
	return kb
}

func readyKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(buttonGenerate),
			tgbotapi.NewKeyboardButton(buttonNew),
		),
	)
}
