package models

import (
	"time"
)

// Payment status constants
const (
	PaymentStatusPending  = "pending"
	PaymentStatusAccepted = "accepted"
	PaymentStatusClosed   = "closed"
)

// UserCredits tracks how many paid reports a chat user may still generate
type UserCredits struct {
	UserID        int64     `json:"user_id"`
	ChatID        int64     `json:"chat_id"`
	Status        string    `json:"status"`     // pending, accepted, closed
	Credits       int       `json:"credits"`    // reports left
	SessionID     string    `json:"session_id"` // Stripe checkout session
	PaymentID     string    `json:"payment_id"` // Stripe payment ID
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	LastGenerated time.Time `json:"last_generated,omitempty"`
}

// ReportSummary is a lightweight listing entry for archived reports
type ReportSummary struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	BirthYear    int       `json:"birth_year"`
	SummaryScore int       `json:"summary_score"`
	CreatedAt    time.Time `json:"created_at"`
}
