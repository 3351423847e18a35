// Package store is the persistence gateway for analysis results.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"property-intelligence/internal/common/database"
	"property-intelligence/internal/common/logger"
)

// QueryRecord is one persisted analysis outcome.
type QueryRecord struct {
	ID               int64     `json:"id"`
	UserID           string    `json:"user_id"`
	Question         string    `json:"question"`
	Answer           string    `json:"answer"`
	Location         string    `json:"location"`
	Provider         string    `json:"provider"`
	QuestionType     string    `json:"question_type"`
	TokensUsed       int       `json:"tokens_used"`
	Confidence       float64   `json:"confidence"`
	ProcessingTimeMS int64     `json:"processing_time_ms"`
	SearchPerformed  bool      `json:"search_performed"`
	Success          bool      `json:"success"`
	CreatedAt        time.Time `json:"created_at"`
}

// UserStats summarizes one user's query activity.
type UserStats struct {
	UserID            string     `json:"user_id"`
	TotalQueries      int64      `json:"total_queries"`
	SuccessfulQueries int64      `json:"successful_queries"`
	TotalTokens       int64      `json:"total_tokens"`
	AvgProcessingMS   float64    `json:"avg_processing_time_ms"`
	LastActivity      *time.Time `json:"last_activity,omitempty"`
}

// Stats is the service-wide aggregate view.
type Stats struct {
	TotalQueries    int64            `json:"total_queries"`
	SuccessRate     float64          `json:"success_rate"`
	AvgProcessingMS float64          `json:"avg_processing_time_ms"`
	TotalTokens     int64            `json:"total_tokens"`
	ByProvider      map[string]int64 `json:"by_provider"`
	ByLocation      map[string]int64 `json:"by_location"`
}

// Store persists and reads query records from postgres.
type Store struct {
	db     *sql.DB
	logger logger.Logger
}

func New(pg *database.PostgresDB, log logger.Logger) *Store {
	return &Store{
		db: pg.DB,
		logger: log.With(map[string]interface{}{
			"component": "store",
		}),
	}
}

// EnsureSchema creates the tables if they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS property_queries (
			id BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL DEFAULT 'anonymous',
			question TEXT NOT NULL,
			answer TEXT NOT NULL DEFAULT '',
			location TEXT NOT NULL DEFAULT 'National',
			provider TEXT NOT NULL DEFAULT '',
			question_type TEXT NOT NULL DEFAULT '',
			tokens_used INTEGER NOT NULL DEFAULT 0,
			confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
			processing_time_ms BIGINT NOT NULL DEFAULT 0,
			search_performed BOOLEAN NOT NULL DEFAULT FALSE,
			success BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_property_queries_user ON property_queries (user_id, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS demo_users (
			user_id TEXT PRIMARY KEY,
			display_name TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// StoreQuery inserts one record and returns its serial id.
func (s *Store) StoreQuery(ctx context.Context, rec QueryRecord) (int64, error) {
	if rec.UserID == "" {
		rec.UserID = "anonymous"
	}

	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO property_queries
			(user_id, question, answer, location, provider, question_type,
			 tokens_used, confidence, processing_time_ms, search_performed, success)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id`,
		rec.UserID, rec.Question, rec.Answer, rec.Location, rec.Provider,
		rec.QuestionType, rec.TokensUsed, rec.Confidence, rec.ProcessingTimeMS,
		rec.SearchPerformed, rec.Success,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("store query: %w", err)
	}
	return id, nil
}

// QueryHistory returns records newest first. An empty userID returns all
// users; limit must already be clamped by the caller.
func (s *Store) QueryHistory(ctx context.Context, limit int, userID string) ([]QueryRecord, error) {
	query := `SELECT id, user_id, question, answer, location, provider, question_type,
			tokens_used, confidence, processing_time_ms, search_performed, success, created_at
		FROM property_queries`
	args := []interface{}{}
	if userID != "" {
		query += ` WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`
		args = append(args, userID, limit)
	} else {
		query += ` ORDER BY created_at DESC LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var records []QueryRecord
	for rows.Next() {
		var r QueryRecord
		if err := rows.Scan(&r.ID, &r.UserID, &r.Question, &r.Answer, &r.Location,
			&r.Provider, &r.QuestionType, &r.TokensUsed, &r.Confidence,
			&r.ProcessingTimeMS, &r.SearchPerformed, &r.Success, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// SumUserTokens returns the cumulative token spend for one user. A user
// with no rows sums to zero.
func (s *Store) SumUserTokens(ctx context.Context, userID string) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(tokens_used), 0) FROM property_queries WHERE user_id = $1`,
		userID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum user tokens: %w", err)
	}
	return total, nil
}

// UserStats aggregates one user's activity.
func (s *Store) UserStats(ctx context.Context, userID string) (*UserStats, error) {
	stats := &UserStats{UserID: userID}
	var last sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
			COUNT(*) FILTER (WHERE success),
			COALESCE(SUM(tokens_used), 0),
			COALESCE(AVG(processing_time_ms), 0),
			MAX(created_at)
		 FROM property_queries WHERE user_id = $1`,
		userID,
	).Scan(&stats.TotalQueries, &stats.SuccessfulQueries, &stats.TotalTokens,
		&stats.AvgProcessingMS, &last)
	if err != nil {
		return nil, fmt.Errorf("user stats: %w", err)
	}
	if last.Valid {
		stats.LastActivity = &last.Time
	}
	return stats, nil
}

// DeleteQuery removes one record by id, scoped to its owner when userID is
// set. Missing rows return sql.ErrNoRows.
func (s *Store) DeleteQuery(ctx context.Context, id int64, userID string) error {
	query := `DELETE FROM property_queries WHERE id = $1`
	args := []interface{}{id}
	if userID != "" {
		query += ` AND user_id = $2`
		args = append(args, userID)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete query: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete query: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Stats returns the service-wide aggregate view.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		ByProvider: make(map[string]int64),
		ByLocation: make(map[string]int64),
	}

	var successes int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
			COUNT(*) FILTER (WHERE success),
			COALESCE(SUM(tokens_used), 0),
			COALESCE(AVG(processing_time_ms), 0)
		 FROM property_queries`,
	).Scan(&stats.TotalQueries, &successes, &stats.TotalTokens, &stats.AvgProcessingMS)
	if err != nil {
		return nil, fmt.Errorf("stats totals: %w", err)
	}
	if stats.TotalQueries > 0 {
		stats.SuccessRate = float64(successes) / float64(stats.TotalQueries)
	}

	if err := s.countBy(ctx, "provider", stats.ByProvider); err != nil {
		return nil, err
	}
	if err := s.countBy(ctx, "location", stats.ByLocation); err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *Store) countBy(ctx context.Context, column string, dest map[string]int64) error {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s, COUNT(*) FROM property_queries GROUP BY %s`, column, column))
	if err != nil {
		return fmt.Errorf("stats by %s: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return fmt.Errorf("stats by %s: %w", column, err)
		}
		dest[key] = count
	}
	return rows.Err()
}

// SeedDemoUsers inserts the demo accounts, skipping rows that already exist.
func (s *Store) SeedDemoUsers(ctx context.Context) error {
	demoUsers := [][2]string{
		{"demo_investor", "Demo Investor"},
		{"demo_firsthome", "Demo First Home Buyer"},
		{"demo_analyst", "Demo Market Analyst"},
	}
	for _, u := range demoUsers {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO demo_users (user_id, display_name) VALUES ($1, $2)
			 ON CONFLICT (user_id) DO NOTHING`,
			u[0], u[1])
		if err != nil {
			return fmt.Errorf("seed demo users: %w", err)
		}
	}
	s.logger.Info("demo users seeded", map[string]interface{}{
		"count": len(demoUsers),
	})
	return nil
}
