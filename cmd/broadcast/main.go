package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/zorojean/lifekline/internal/app"
	"github.com/zorojean/lifekline/internal/config"
	"github.com/zorojean/lifekline/internal/database"
	"github.com/zorojean/lifekline/models"
)

// Telegram allows about 30 messages per second per bot
const messagesPerSecond = 20

var (
	messageFile string
	paidOnly    bool
	dryRun      bool
)

var rootCmd = &cobra.Command{
	Use:          "broadcast",
	Short:        "Send an announcement to every chat that started a purchase",
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVarP(&messageFile, "message", "m", "", "file with the announcement text")
	rootCmd.Flags().BoolVar(&paidOnly, "paid-only", false, "only users with a paid purchase")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "list recipients without sending")
	_ = rootCmd.MarkFlagRequired("message")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(messageFile)
	if err != nil {
		return err
	}
	message := strings.TrimSpace(string(raw))
	if message == "" {
		return fmt.Errorf("message file %s is empty", messageFile)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	app.SetupLogger(cfg.LogLevel)
	if !cfg.DB.Enabled() {
		return fmt.Errorf("DB_HOST not set in environment")
	}

	db, err := database.New(database.ConnectionParams{
		Host:     cfg.DB.Host,
		Port:     cfg.DB.Port,
		User:     cfg.DB.User,
		Password: cfg.DB.Password,
		DBName:   cfg.DB.DBName,
		SSLMode:  cfg.DB.SSLMode,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	chats, err := db.ListChats(ctx)
	if err != nil {
		return err
	}
	chats = recipients(chats, paidOnly)
	log.Info().Int("recipients", len(chats)).Bool("paid_only", paidOnly).Msg("Broadcast prepared")

	if dryRun {
		for _, c := range chats {
			fmt.Fprintf(cmd.OutOrStdout(), "%d\t%d\t%s\n", c.UserID, c.ChatID, c.Status)
		}
		return nil
	}

	if cfg.TelegramBotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN not set in environment")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return err
	}

	limiter := rate.NewLimiter(rate.Limit(messagesPerSecond), 1)
	sent, failed := 0, 0
	for _, c := range chats {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		if _, err := bot.Send(tgbotapi.NewMessage(c.ChatID, message)); err != nil {
			log.Warn().Err(err).Int64("user_id", c.UserID).Int64("chat_id", c.ChatID).Msg("Failed to send message")
			failed++
			continue
		}
		sent++
	}

	log.Info().Int("sent", sent).Int("failed", failed).Int("total", len(chats)).Msg("Broadcast completed")
	return nil
}

// recipients keeps one entry per chat, optionally only paid users
func recipients(all []models.UserCredits, paidOnly bool) []models.UserCredits {
	seen := make(map[int64]bool, len(all))
	out := make([]models.UserCredits, 0, len(all))
	for _, c := range all {
		if paidOnly && c.Status != models.PaymentStatusAccepted {
			continue
		}
		if seen[c.ChatID] {
			continue
		}
		seen[c.ChatID] = true
		out = append(out, c)
	}
	return out
}
