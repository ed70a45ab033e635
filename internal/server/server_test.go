package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"

	"github.com/zorojean/lifekline/internal/analyze"
	"github.com/zorojean/lifekline/internal/apperr"
	"github.com/zorojean/lifekline/internal/payment"
	"github.com/zorojean/lifekline/models"
)

type stubAnalyzer struct {
	report *models.LifeReport
	err    error
	input  models.AnalysisInput
}

func (s *stubAnalyzer) Analyze(ctx context.Context, in models.AnalysisInput) (*models.LifeReport, error) {
	s.input = in
	return s.report, s.err
}

func (s *stubAnalyzer) Get(ctx context.Context, id string) (*models.LifeReport, error) {
	if s.report != nil && s.report.ID == id {
		return s.report, nil
	}
	return nil, s.err
}

type stubPayments struct {
	verifyErr error
	event     *payment.PaymentEvent
	err       error
}

func (s *stubPayments) VerifyWebhookSignature(payload []byte, signature string) (*stripe.Event, error) {
	if s.verifyErr != nil {
		return nil, s.verifyErr
	}
	return &stripe.Event{ID: "evt_1", Type: stripe.EventTypeCheckoutSessionCompleted}, nil
}

func (s *stubPayments) ProcessPayment(event *stripe.Event) (*payment.PaymentEvent, error) {
	return s.event, s.err
}

type stubCredits struct {
	added  map[int64]int
	closed []int64
	err    error
}

func (s *stubCredits) AddCredits(userID int64, n int, paymentID string) error {
	if s.err != nil {
		return s.err
	}
	if s.added == nil {
		s.added = make(map[int64]int)
	}
	s.added[userID] += n
	return nil
}

func (s *stubCredits) ClosePurchase(userID int64) error {
	s.closed = append(s.closed, userID)
	return s.err
}

func do(t *testing.T, h http.Handler, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	rec := do(t, New(&stubAnalyzer{}, nil, nil).Handler(), http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAnalyze(t *testing.T) {
	stub := &stubAnalyzer{report: &models.LifeReport{ID: "r-1"}}
	h := New(stub, nil, nil).Handler()

	body := `{"gender":"male","birthYear":"1984","pillars":{"yearPillar":"甲子"},"startAge":"3","firstDaYun":"丁卯","api":{"modelName":"m"}}`
	rec := do(t, h, http.MethodPost, "/api/analyze", body, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "r-1", decode(t, rec)["id"])
	assert.Equal(t, "甲子", stub.input.Pillars.Year)
	assert.Equal(t, "m", stub.input.API.Model)

	rec = do(t, h, http.MethodPost, "/api/analyze", "{not json", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzeErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		field  string
	}{
		{"config", &apperr.ConfigError{Field: "apiKey", Message: "bad key"}, http.StatusBadRequest, "apiKey"},
		{"input", &apperr.InputError{Field: "startAge", Message: "bad age"}, http.StatusBadRequest, "startAge"},
		{"transport", &apperr.TransportError{StatusCode: 500, Body: "x"}, http.StatusBadGateway, ""},
		{"empty", &apperr.EmptyContentError{}, http.StatusBadGateway, ""},
		{"malformed", &apperr.MalformedResponseError{Reason: "x"}, http.StatusBadGateway, ""},
		{"timeout", &apperr.TransportError{Err: context.DeadlineExceeded}, http.StatusGatewayTimeout, ""},
		{"other", errors.New("boom"), http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(&stubAnalyzer{err: tt.err}, nil, nil).Handler()
			rec := do(t, h, http.MethodPost, "/api/analyze", `{}`, nil)

			assert.Equal(t, tt.status, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, tt.err.Error(), body["error"])
			if tt.field != "" {
				assert.Equal(t, tt.field, body["field"])
			}
		})
	}
}

func TestGetReport(t *testing.T) {
	h := New(&stubAnalyzer{report: &models.LifeReport{ID: "r-1"}}, nil, nil).Handler()
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/reports/r-1", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/reports/r-2", "", nil).Code)

	h = New(&stubAnalyzer{err: analyze.ErrArchiveDisabled}, nil, nil).Handler()
	assert.Equal(t, http.StatusNotImplemented, do(t, h, http.MethodGet, "/api/reports/r-1", "", nil).Code)
}

func TestTimeline(t *testing.T) {
	h := New(&stubAnalyzer{}, nil, nil).Handler()

	rec := do(t, h, http.MethodGet, "/api/timeline?gender=male&birthYear=1984&yearPillar=%E7%94%B2%E5%AD%90&startAge=3&firstDaYun=%E4%B8%81%E5%8D%AF", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var preview analyze.Preview
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &preview))
	assert.Equal(t, models.DirectionForward, preview.Subject.Direction)
	require.Len(t, preview.Timeline, 100)
	assert.Equal(t, "戊辰", preview.Timeline[12].DaYun)

	rec = do(t, h, http.MethodGet, "/api/timeline?gender=male&birthYear=1984&startAge=0&firstDaYun=%E4%B8%81%E5%8D%AF", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "startAge", decode(t, rec)["field"])
}

func TestStripeWebhook(t *testing.T) {
	sig := map[string]string{"Stripe-Signature": "t=1,v1=abc"}

	t.Run("disabled without payments", func(t *testing.T) {
		h := New(&stubAnalyzer{}, nil, nil).Handler()
		assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/webhook/stripe", "{}", sig).Code)
	})

	t.Run("missing signature", func(t *testing.T) {
		h := New(&stubAnalyzer{}, &stubPayments{}, &stubCredits{}).Handler()
		assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/webhook/stripe", "{}", nil).Code)
	})

	t.Run("bad signature", func(t *testing.T) {
		h := New(&stubAnalyzer{}, &stubPayments{verifyErr: fmt.Errorf("mismatch")}, &stubCredits{}).Handler()
		assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/webhook/stripe", "{}", sig).Code)
	})

	t.Run("accepted adds credits", func(t *testing.T) {
		credits := &stubCredits{}
		pay := &stubPayments{event: &payment.PaymentEvent{UserID: 42, Status: models.PaymentStatusAccepted, PaymentID: "pi_1", Credits: 2}}
		h := New(&stubAnalyzer{}, pay, credits).Handler()

		assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/webhook/stripe", "{}", sig).Code)
		assert.Equal(t, 2, credits.added[42])
	})

	t.Run("expired closes purchase", func(t *testing.T) {
		credits := &stubCredits{}
		pay := &stubPayments{event: &payment.PaymentEvent{UserID: 9, Status: models.PaymentStatusClosed}}
		h := New(&stubAnalyzer{}, pay, credits).Handler()

		assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/webhook/stripe", "{}", sig).Code)
		assert.Equal(t, []int64{9}, credits.closed)
	})

	t.Run("ignored event", func(t *testing.T) {
		h := New(&stubAnalyzer{}, &stubPayments{err: payment.ErrIgnoredEvent}, &stubCredits{}).Handler()
		rec := do(t, h, http.MethodPost, "/webhook/stripe", "{}", sig)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ignored", decode(t, rec)["status"])
	})

	t.Run("store failure", func(t *testing.T) {
		pay := &stubPayments{event: &payment.PaymentEvent{UserID: 1, Status: models.PaymentStatusAccepted, Credits: 1}}
		h := New(&stubAnalyzer{}, pay, &stubCredits{err: fmt.Errorf("db down")}).Handler()
		assert.Equal(t, http.StatusInternalServerError, do(t, h, http.MethodPost, "/webhook/stripe", "{}", sig).Code)
	})
}
