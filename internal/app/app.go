// Package app wires configuration, the generator client, the optional archive
// and the analysis service for the command line programs.
package app

import (
	"os"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zorojean/lifekline/internal/analyze"
	"github.com/zorojean/lifekline/internal/api/openai"
	"github.com/zorojean/lifekline/internal/config"
	"github.com/zorojean/lifekline/internal/database"
	platformhttp "github.com/zorojean/lifekline/internal/platform/http"
)

// App holds the long lived dependencies of a process
type App struct {
	Config  *config.Config
	DB      *database.DB // nil when DB_HOST is empty
	Service *analyze.Service
}

// SetupLogger points the global logger at stderr with the configured level
func SetupLogger(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(lvl)
}

// New builds the service from cfg. The database is opened only when configured.
func New(cfg *config.Config) (*App, error) {
	httpClient := platformhttp.NewClient(platformhttp.ClientOptions{
		Timeout:        cfg.Timeout(),
		RequestsPerSec: cfg.LLMRequestsPerS,
		MaxRetries:     cfg.LLMMaxRetries,
	})
	completer := openai.NewClient(httpClient, openai.Options{
		Temperature: cfg.LLMTemperature,
		MaxTokens:   cfg.LLMMaxTokens,
	})

	a := &App{Config: cfg}

	if cfg.DB.Enabled() {
		db, err := database.New(database.ConnectionParams{
			Host:     cfg.DB.Host,
			Port:     cfg.DB.Port,
			User:     cfg.DB.User,
			Password: cfg.DB.Password,
			DBName:   cfg.DB.DBName,
			SSLMode:  cfg.DB.SSLMode,
		})
		if err != nil {
			return nil, err
		}
		a.DB = db
		a.Service = analyze.NewService(completer, cfg, db)
		log.Info().Str("host", cfg.DB.Host).Str("db", cfg.DB.DBName).Msg("Report archive enabled")
	} else {
		a.Service = analyze.NewService(completer, cfg, nil)
	}

	return a, nil
}

// Close releases the database connection if one was opened
func (a *App) Close() error {
	if a.DB == nil {
		return nil
	}
	return a.DB.Close()
}
