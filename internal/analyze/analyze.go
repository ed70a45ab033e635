package analyze

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zorojean/lifekline/internal/api/openai"
	"github.com/zorojean/lifekline/internal/config"
	"github.com/zorojean/lifekline/internal/prompt"
	"github.com/zorojean/lifekline/internal/report"
	"github.com/zorojean/lifekline/models"
)

// ErrArchiveDisabled is returned by Get when no report store is configured
var ErrArchiveDisabled = errors.New("report archive is not configured")

// ReportStore archives generated reports
type ReportStore interface {
	SaveReport(ctx context.Context, r *models.LifeReport) error
	GetReport(ctx context.Context, id string) (*models.LifeReport, error)
}

// Service runs one analysis per call: validate settings, parse input, build
// the prompt, call the generator, validate and reconcile the answer.
type Service struct {
	completer openai.Completer
	store     ReportStore
	defaults  models.APISettings
	check     report.CheckMode
	timeout   time.Duration
	logger    zerolog.Logger
	now       func() time.Time
}

// NewService wires the generator client and an optional store
func NewService(completer openai.Completer, cfg *config.Config, store ReportStore) *Service {
	return &Service{
		completer: completer,
		store:     store,
		defaults: models.APISettings{
			Model:   cfg.LLMModel,
			BaseURL: cfg.LLMBaseURL,
			APIKey:  cfg.LLMAPIKey,
		},
		check:   report.ParseCheckMode(cfg.ChartCheck),
		timeout: cfg.Timeout(),
		logger:  log.With().Str("component", "analyzer").Logger(),
		now:     time.Now,
	}
}

// Settings merges per-request API settings over the configured defaults
func (s *Service) Settings(override models.APISettings) models.APISettings {
	out := s.defaults
	if strings.TrimSpace(override.Model) != "" {
		out.Model = override.Model
	}
	if strings.TrimSpace(override.BaseURL) != "" {
		out.BaseURL = override.BaseURL
	}
	if strings.TrimSpace(override.APIKey) != "" {
		out.APIKey = override.APIKey
	}
	return out
}

// Analyze generates a report without an owning chat user
func (s *Service) Analyze(ctx context.Context, in models.AnalysisInput) (*models.LifeReport, error) {
	return s.AnalyzeForUser(ctx, 0, in)
}

// AnalyzeForUser generates a report. Errors are returned unchanged; there are
// no retries and no partial results.
func (s *Service) AnalyzeForUser(ctx context.Context, userID int64, in models.AnalysisInput) (*models.LifeReport, error) {
	settings, err := openai.NormalizeSettings(s.Settings(in.API))
	if err != nil {
		return nil, err
	}

	subject, spec, err := ParseInput(in)
	if err != nil {
		return nil, err
	}

	logger := s.logger.With().
		Int("birth_year", subject.BirthYear).
		Str("direction", string(subject.Direction)).
		Str("first_da_yun", subject.FirstDaYun).
		Int("start_age", subject.StartAge).
		Logger()

	req := prompt.Build(subject, spec, settings.Model)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	started := s.now()
	content, err := s.completer.Complete(ctx, settings, req)
	if err != nil {
		logger.Error().Err(err).Msg("Generation failed")
		return nil, err
	}
	logger.Info().Dur("elapsed", s.now().Sub(started)).Int("content_length", len(content)).Msg("Generation finished")

	result, err := report.Validate([]byte(content))
	if err != nil {
		logger.Error().Err(err).Msg("Generator returned malformed content")
		return nil, err
	}
	if len(result.Analysis.Bazi) == 0 {
		result.Analysis.Bazi = subject.Pillars.Slice()
	}

	corrected, err := report.Reconcile(result, spec, subject.BirthYear, s.check)
	if err != nil {
		logger.Error().Err(err).Msg("Chart points disagree with the Da Yun timeline")
		return nil, err
	}

	rep := &models.LifeReport{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: s.now().UTC(),
		Subject:   subject,
		Bands:     spec.Bands(),
		Result:    *result,
		Corrected: corrected,
	}

	if s.store != nil {
		if err := s.store.SaveReport(ctx, rep); err != nil {
			logger.Error().Err(err).Str("report_id", rep.ID).Msg("Failed to archive report")
		}
	}

	return rep, nil
}

// Get loads an archived report; nil, nil when it does not exist
func (s *Service) Get(ctx context.Context, id string) (*models.LifeReport, error) {
	if s.store == nil {
		return nil, ErrArchiveDisabled
	}
	return s.store.GetReport(ctx, id)
}
