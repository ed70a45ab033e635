package payment

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/zorojean/lifekline/internal/config"
	"github.com/zorojean/lifekline/models"
)

func newTestService() *StripeService {
	return NewStripeService(&config.Config{
		StripeReportPriceID: "price_report",
		StripeWebhookSecret: "whsec_test",
		TelegramBotUsername: "lifekline_bot",
	})
}

func sessionEvent(t *testing.T, eventType stripe.EventType, sess map[string]any) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(sess)
	require.NoError(t, err)
	return &stripe.Event{ID: "evt_1", Type: eventType, Data: &stripe.EventData{Raw: raw}}
}

func TestCheckoutParams(t *testing.T) {
	params := newTestService().CheckoutParams(42)

	assert.Equal(t, string(stripe.CheckoutSessionModePayment), *params.Mode)
	assert.Equal(t, "https://t.me/lifekline_bot?start=payment_success", *params.SuccessURL)
	require.Len(t, params.LineItems, 1)
	assert.Equal(t, "price_report", *params.LineItems[0].Price)
	assert.Equal(t, "42", params.Metadata["user_id"])
	assert.Equal(t, "42", params.PaymentIntentData.Metadata["user_id"])
}

func TestProcessPayment(t *testing.T) {
	s := newTestService()

	tests := []struct {
		name    string
		event   *stripe.Event
		want    *PaymentEvent
		wantErr error
	}{
		{
			name: "completed with payment intent",
			event: sessionEvent(t, stripe.EventTypeCheckoutSessionCompleted, map[string]any{
				"id": "cs_1", "payment_status": "paid", "payment_intent": "pi_1",
				"metadata": map[string]string{"user_id": "42", "credits": "3"},
			}),
			want: &PaymentEvent{UserID: 42, Status: models.PaymentStatusAccepted, PaymentID: "pi_1", Credits: 3},
		},
		{
			name: "completed without credits metadata",
			event: sessionEvent(t, stripe.EventTypeCheckoutSessionCompleted, map[string]any{
				"id": "cs_2", "payment_status": "paid",
				"metadata": map[string]string{"user_id": "7"},
			}),
			want: &PaymentEvent{UserID: 7, Status: models.PaymentStatusAccepted, PaymentID: "cs_2", Credits: ReportsPerPurchase},
		},
		{
			name: "completed but unpaid",
			event: sessionEvent(t, stripe.EventTypeCheckoutSessionCompleted, map[string]any{
				"id": "cs_3", "payment_status": "unpaid",
				"metadata": map[string]string{"user_id": "7"},
			}),
			wantErr: ErrIgnoredEvent,
		},
		{
			name: "expired",
			event: sessionEvent(t, stripe.EventTypeCheckoutSessionExpired, map[string]any{
				"id": "cs_4", "metadata": map[string]string{"user_id": "9"},
			}),
			want: &PaymentEvent{UserID: 9, Status: models.PaymentStatusClosed, PaymentID: "cs_4"},
		},
		{
			name:    "unrelated event",
			event:   &stripe.Event{Type: "invoice.paid"},
			wantErr: ErrIgnoredEvent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ProcessPayment(tt.event)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProcessPaymentRejectsBadMetadata(t *testing.T) {
	s := newTestService()
	for _, md := range []map[string]string{{}, {"user_id": "abc"}, {"user_id": "-1"}} {
		ev := sessionEvent(t, stripe.EventTypeCheckoutSessionCompleted, map[string]any{
			"id": "cs", "payment_status": "paid", "metadata": md,
		})
		_, err := s.ProcessPayment(ev)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrIgnoredEvent)
	}
}

func TestVerifyWebhookSignature(t *testing.T) {
	s := newTestService()
	payload := []byte(fmt.Sprintf(`{"id":"evt_1","object":"event","type":"checkout.session.completed","api_version":%q,"data":{"object":{}}}`, stripe.APIVersion))
	now := time.Now()
	header := fmt.Sprintf("t=%d,v1=%x", now.Unix(), webhook.ComputeSignature(now, payload, s.WebhookSecret))

	event, err := s.VerifyWebhookSignature(payload, header)
	require.NoError(t, err)
	assert.Equal(t, stripe.EventTypeCheckoutSessionCompleted, event.Type)

	_, err = s.VerifyWebhookSignature(payload, fmt.Sprintf("t=%d,v1=deadbeef", now.Unix()))
	assert.Error(t, err)
}
