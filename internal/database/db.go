package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zorojean/lifekline/models"
)

// DB represents a database connection
type DB struct {
	*sql.DB
}

// ConnectionParams holds PostgreSQL connection parameters
type ConnectionParams struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN builds the lib/pq connection string
func (p ConnectionParams) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode,
	)
}

// New creates a new database connection. The caller imports the postgres driver.
func New(params ConnectionParams) (*DB, error) {
	db, err := sql.Open("postgres", params.DSN())
	if err != nil {
		return nil, err
	}

	// Check connection
	if err := db.Ping(); err != nil {
		return nil, err
	}

	// Create tables if they don't exist
	if err := createTables(db); err != nil {
		return nil, err
	}

	return &DB{db}, nil
}

// createTables creates the necessary tables if they don't exist
func createTables(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS life_reports (
			id TEXT PRIMARY KEY,
			user_id BIGINT,
			name TEXT,
			birth_year INT NOT NULL,
			summary_score INT NOT NULL,
			subject JSONB NOT NULL,
			bands JSONB NOT NULL,
			result JSONB NOT NULL,
			corrected_points INT NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		)
	`); err != nil {
		return err
	}

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS user_credits (
			user_id BIGINT PRIMARY KEY,
			chat_id BIGINT NOT NULL,
			status TEXT NOT NULL,
			credits INT NOT NULL DEFAULT 0,
			session_id TEXT,
			payment_id TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			last_generated TIMESTAMP
		)
	`)
	return err
}

// SaveReport archives a generated report
func (db *DB) SaveReport(ctx context.Context, r *models.LifeReport) error {
	subject, err := json.Marshal(r.Subject)
	if err != nil {
		return fmt.Errorf("marshal subject: %w", err)
	}
	bands, err := json.Marshal(r.Bands)
	if err != nil {
		return fmt.Errorf("marshal bands: %w", err)
	}
	result, err := json.Marshal(r.Result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	var userID sql.NullInt64
	if r.UserID != 0 {
		userID = sql.NullInt64{Int64: r.UserID, Valid: true}
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO life_reports (
			id, user_id, name, birth_year, summary_score, subject, bands, result, corrected_points, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		r.ID, userID, r.Subject.Name, r.Subject.BirthYear, r.Result.Analysis.SummaryScore,
		subject, bands, result, r.Corrected, r.CreatedAt)
	return err
}

// GetReport loads an archived report, nil when it does not exist
func (db *DB) GetReport(ctx context.Context, id string) (*models.LifeReport, error) {
	var (
		r                      models.LifeReport
		userID                 sql.NullInt64
		subject, bands, result []byte
	)

	err := db.QueryRowContext(ctx, `
		SELECT id, user_id, subject, bands, result, corrected_points, created_at
		FROM life_reports
		WHERE id = $1
	`, id).Scan(&r.ID, &userID, &subject, &bands, &result, &r.Corrected, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // No report found
		}
		return nil, err
	}

	if userID.Valid {
		r.UserID = userID.Int64
	}
	if err := json.Unmarshal(subject, &r.Subject); err != nil {
		return nil, fmt.Errorf("decode subject: %w", err)
	}
	if err := json.Unmarshal(bands, &r.Bands); err != nil {
		return nil, fmt.Errorf("decode bands: %w", err)
	}
	if err := json.Unmarshal(result, &r.Result); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return &r, nil
}

// ListReports returns the newest reports of a chat user
func (db *DB) ListReports(ctx context.Context, userID int64, limit int) ([]models.ReportSummary, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, COALESCE(name, ''), birth_year, summary_score, created_at
		FROM life_reports
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ReportSummary
	for rows.Next() {
		var s models.ReportSummary
		if err := rows.Scan(&s.ID, &s.Name, &s.BirthYear, &s.SummaryScore, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CreatePendingPurchase records a checkout started by a user
func (db *DB) CreatePendingPurchase(userID, chatID int64, sessionID string) error {
	now := time.Now()
	_, err := db.Exec(`
		INSERT INTO user_credits (
			user_id, chat_id, status, credits, session_id, created_at, updated_at
		) VALUES ($1, $2, $3, 0, $4, $5, $5)
		ON CONFLICT (user_id)
		DO UPDATE SET
			chat_id = EXCLUDED.chat_id,
			status = EXCLUDED.status,
			session_id = EXCLUDED.session_id,
			updated_at = EXCLUDED.updated_at
	`, userID, chatID, models.PaymentStatusPending, sessionID, now)
	return err
}

// GetCredits retrieves a user's credit record
func (db *DB) GetCredits(userID int64) (*models.UserCredits, error) {
	var c models.UserCredits
	var lastGenerated sql.NullTime
	var sessionID, paymentID sql.NullString

	err := db.QueryRow(`
		SELECT
			user_id, chat_id, status, credits, session_id, payment_id,
			created_at, updated_at, last_generated
		FROM user_credits
		WHERE user_id = $1
	`, userID).Scan(
		&c.UserID, &c.ChatID, &c.Status, &c.Credits, &sessionID, &paymentID,
		&c.CreatedAt, &c.UpdatedAt, &lastGenerated,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // No record found
		}
		return nil, err
	}

	if sessionID.Valid {
		c.SessionID = sessionID.String
	}
	if paymentID.Valid {
		c.PaymentID = paymentID.String
	}
	if lastGenerated.Valid {
		c.LastGenerated = lastGenerated.Time
	}
	return &c, nil
}

// AddCredits marks a purchase paid and adds n reports to the balance. A
// payment ID that was already applied is ignored.
func (db *DB) AddCredits(userID int64, n int, paymentID string) error {
	res, err := db.Exec(`
		UPDATE user_credits
		SET status = $1, credits = credits + $2, payment_id = $3, updated_at = NOW()
		WHERE user_id = $4 AND payment_id IS DISTINCT FROM $3
	`, models.PaymentStatusAccepted, n, paymentID, userID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil || affected > 0 {
		return err
	}

	c, err := db.GetCredits(userID)
	if err != nil {
		return err
	}
	if c == nil {
		return fmt.Errorf("no credit record for user %d", userID)
	}
	return nil
}

// ClosePurchase closes a user's pending checkout
func (db *DB) ClosePurchase(userID int64) error {
	_, err := db.Exec(`
		UPDATE user_credits
		SET status = $1, updated_at = NOW()
		WHERE user_id = $2 AND status = $3
	`, models.PaymentStatusClosed, userID, models.PaymentStatusPending)
	return err
}

// ConsumeCredit takes one report from the balance. ok is false when none is left.
func (db *DB) ConsumeCredit(userID int64) (remaining int, ok bool, err error) {
	err = db.QueryRow(`
		UPDATE user_credits
		SET credits = credits - 1, last_generated = NOW(), updated_at = NOW()
		WHERE user_id = $1 AND credits > 0
		RETURNING credits
	`, userID).Scan(&remaining)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return remaining, true, nil
}

// RefundCredit gives back a credit taken for a report that failed
func (db *DB) RefundCredit(userID int64) error {
	_, err := db.Exec(`
		UPDATE user_credits
		SET credits = credits + 1, updated_at = NOW()
		WHERE user_id = $1
	`, userID)
	return err
}

// ListChats returns the user and chat IDs of everyone who started a purchase
func (db *DB) ListChats(ctx context.Context) ([]models.UserCredits, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT user_id, chat_id, status, credits
		FROM user_credits
		ORDER BY user_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.UserCredits
	for rows.Next() {
		var c models.UserCredits
		if err := rows.Scan(&c.UserID, &c.ChatID, &c.Status, &c.Credits); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ClosePendingPurchases closes checkouts that were never paid
func (db *DB) ClosePendingPurchases(olderThan time.Duration) (int64, error) {
	res, err := db.Exec(`
		UPDATE user_credits
		SET status = $1, updated_at = NOW()
		WHERE status = $2 AND updated_at <= $3
	`, models.PaymentStatusClosed, models.PaymentStatusPending, time.Now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
