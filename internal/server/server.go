// Package server exposes the analysis pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v76"

	"github.com/zorojean/lifekline/internal/analyze"
	"github.com/zorojean/lifekline/internal/apperr"
	"github.com/zorojean/lifekline/internal/payment"
	"github.com/zorojean/lifekline/models"
)

const (
	maxRequestBody = 1 << 20
	maxWebhookBody = 64 << 10
)

// Analyzer runs and retrieves reports
type Analyzer interface {
	Analyze(ctx context.Context, in models.AnalysisInput) (*models.LifeReport, error)
	Get(ctx context.Context, id string) (*models.LifeReport, error)
}

// PaymentProcessor verifies and decodes payment webhooks
type PaymentProcessor interface {
	VerifyWebhookSignature(payload []byte, signature string) (*stripe.Event, error)
	ProcessPayment(event *stripe.Event) (*payment.PaymentEvent, error)
}

// CreditStore applies payment outcomes to user balances
type CreditStore interface {
	AddCredits(userID int64, n int, paymentID string) error
	ClosePurchase(userID int64) error
}

// Server holds the HTTP routes
type Server struct {
	analyzer Analyzer
	payments PaymentProcessor
	credits  CreditStore
	router   *chi.Mux
	logger   zerolog.Logger
}

// New builds the router. payments and credits may both be nil, which disables
// the webhook route.
func New(analyzer Analyzer, payments PaymentProcessor, credits CreditStore) *Server {
	s := &Server{
		analyzer: analyzer,
		payments: payments,
		credits:  credits,
		router:   chi.NewRouter(),
		logger:   log.With().Str("component", "http").Logger(),
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.requestLogger)

	s.router.Get("/health", s.handleHealth)
	s.router.Post("/api/analyze", s.handleAnalyze)
	s.router.Get("/api/reports/{id}", s.handleGetReport)
	s.router.Get("/api/timeline", s.handleTimeline)
	if payments != nil && credits != nil {
		s.router.Post("/webhook/stripe", s.handleStripeWebhook)
	}
	return s
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("Request handled")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var in models.AnalysisInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rep, err := s.analyzer.Analyze(r.Context(), in)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rep, err := s.analyzer.Get(r.Context(), id)
	switch {
	case errors.Is(err, analyze.ErrArchiveDisabled):
		writeError(w, http.StatusNotImplemented, err.Error())
	case err != nil:
		s.logger.Error().Err(err).Str("report_id", id).Msg("Failed to load report")
		writeError(w, http.StatusInternalServerError, "failed to load report")
	case rep == nil:
		writeError(w, http.StatusNotFound, "report not found")
	default:
		writeJSON(w, http.StatusOK, rep)
	}
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	in := models.AnalysisInput{
		Name:       q.Get("name"),
		Gender:     q.Get("gender"),
		BirthYear:  q.Get("birthYear"),
		Pillars:    models.Pillars{Year: q.Get("yearPillar")},
		StartAge:   q.Get("startAge"),
		FirstDaYun: q.Get("firstDaYun"),
	}

	preview, err := analyze.BuildPreview(in)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "error reading request body")
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		writeError(w, http.StatusBadRequest, "Stripe-Signature header required")
		return
	}

	event, err := s.payments.VerifyWebhookSignature(body, signature)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to verify webhook signature")
		writeError(w, http.StatusBadRequest, "invalid signature")
		return
	}

	logger := s.logger.With().Str("event_id", event.ID).Str("event_type", string(event.Type)).Logger()

	pe, err := s.payments.ProcessPayment(event)
	if errors.Is(err, payment.ErrIgnoredEvent) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	if err != nil {
		logger.Error().Err(err).Msg("Failed to process payment event")
		writeError(w, http.StatusBadRequest, "error processing event")
		return
	}

	switch pe.Status {
	case models.PaymentStatusAccepted:
		err = s.credits.AddCredits(pe.UserID, pe.Credits, pe.PaymentID)
	case models.PaymentStatusClosed:
		err = s.credits.ClosePurchase(pe.UserID)
	}
	if err != nil {
		logger.Error().Err(err).Int64("user_id", pe.UserID).Msg("Failed to update credits")
		writeError(w, http.StatusInternalServerError, "error updating credits")
		return
	}

	logger.Info().Int64("user_id", pe.UserID).Str("status", pe.Status).Int("credits", pe.Credits).Msg("Payment event applied")
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// StatusFor maps an error kind to an HTTP status code
func StatusFor(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	switch apperr.Kind(err) {
	case apperr.KindInput, apperr.KindConfig:
		return http.StatusBadRequest
	case apperr.KindTransport, apperr.KindEmpty, apperr.KindMalformed:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) writeAppError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("kind", string(apperr.Kind(err))).Msg("Analysis failed")
	}

	resp := map[string]string{"error": err.Error(), "kind": string(apperr.Kind(err))}
	var inputErr *apperr.InputError
	if errors.As(err, &inputErr) {
		resp["field"] = inputErr.Field
	}
	var configErr *apperr.ConfigError
	if errors.As(err, &configErr) {
		resp["field"] = configErr.Field
	}
	writeJSON(w, status, resp)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": strings.TrimSpace(msg)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
