package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/zorojean/lifekline/internal/config"
	"github.com/zorojean/lifekline/models"
)

// ReportsPerPurchase is the number of reports one checkout buys unless the
// session metadata says otherwise
const ReportsPerPurchase = 1

// ErrIgnoredEvent is returned for webhook events that do not change credits
var ErrIgnoredEvent = errors.New("event does not affect report credits")

// StripeService handles report credit purchases
type StripeService struct {
	ReportPriceID string
	WebhookSecret string
	BotUsername   string
	logger        zerolog.Logger
}

// NewStripeService creates a new Stripe payment service
func NewStripeService(cfg *config.Config) *StripeService {
	stripe.Key = cfg.StripeAPIKey

	return &StripeService{
		ReportPriceID: cfg.StripeReportPriceID,
		WebhookSecret: cfg.StripeWebhookSecret,
		BotUsername:   cfg.TelegramBotUsername,
		logger:        log.With().Str("component", "stripe").Logger(),
	}
}

// PaymentEvent is the credit change carried by a webhook event
type PaymentEvent struct {
	UserID    int64
	Status    string
	PaymentID string
	Credits   int
}

// CheckoutParams builds the one-time payment session for a chat user
func (s *StripeService) CheckoutParams(userID int64) *stripe.CheckoutSessionParams {
	successURL := fmt.Sprintf("https://t.me/%s?start=payment_success", s.BotUsername)
	cancelURL := fmt.Sprintf("https://t.me/%s?start=payment_cancel", s.BotUsername)

	metadata := map[string]string{
		"user_id": strconv.FormatInt(userID, 10),
		"credits": strconv.Itoa(ReportsPerPurchase),
	}

	return &stripe.CheckoutSessionParams{
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(s.ReportPriceID),
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: metadata,
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: metadata,
		},
	}
}

// CreateCheckoutSession returns the session ID and the URL to send to the user
func (s *StripeService) CreateCheckoutSession(userID int64) (string, string, error) {
	sess, err := session.New(s.CheckoutParams(userID))
	if err != nil {
		return "", "", err
	}
	s.logger.Info().Int64("user_id", userID).Str("session_id", sess.ID).Msg("Checkout session created")
	return sess.ID, sess.URL, nil
}

// VerifyWebhookSignature verifies the signature of a Stripe webhook event
func (s *StripeService) VerifyWebhookSignature(payload []byte, signature string) (*stripe.Event, error) {
	event, err := webhook.ConstructEvent(payload, signature, s.WebhookSecret)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// ProcessPayment maps a verified event to a credit change. Events other than
// completed or expired checkouts yield ErrIgnoredEvent.
func (s *StripeService) ProcessPayment(event *stripe.Event) (*PaymentEvent, error) {
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		sess, err := decodeSession(event)
		if err != nil {
			return nil, err
		}
		if sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
			return nil, ErrIgnoredEvent
		}
		userID, err := userIDFrom(sess.Metadata)
		if err != nil {
			return nil, err
		}

		credits := ReportsPerPurchase
		if n, err := strconv.Atoi(sess.Metadata["credits"]); err == nil && n > 0 {
			credits = n
		}
		paymentID := sess.ID
		if sess.PaymentIntent != nil && sess.PaymentIntent.ID != "" {
			paymentID = sess.PaymentIntent.ID
		}
		return &PaymentEvent{UserID: userID, Status: models.PaymentStatusAccepted, PaymentID: paymentID, Credits: credits}, nil

	case stripe.EventTypeCheckoutSessionExpired:
		sess, err := decodeSession(event)
		if err != nil {
			return nil, err
		}
		userID, err := userIDFrom(sess.Metadata)
		if err != nil {
			return nil, err
		}
		return &PaymentEvent{UserID: userID, Status: models.PaymentStatusClosed, PaymentID: sess.ID}, nil

	default:
		s.logger.Debug().Str("event_type", string(event.Type)).Msg("Unhandled event type")
		return nil, ErrIgnoredEvent
	}
}

func decodeSession(event *stripe.Event) (*stripe.CheckoutSession, error) {
	if event.Data == nil {
		return nil, fmt.Errorf("event %s has no data", event.ID)
	}
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, fmt.Errorf("failed to parse checkout session: %w", err)
	}
	return &sess, nil
}

func userIDFrom(metadata map[string]string) (int64, error) {
	raw, ok := metadata["user_id"]
	if !ok {
		return 0, fmt.Errorf("user_id not found in session metadata")
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID <= 0 {
		return 0, fmt.Errorf("invalid user_id %q", raw)
	}
	return userID, nil
}
