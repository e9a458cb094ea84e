package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_history_store.go -package=mocks quokkaq/internal/storage HistoryStore

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// HistoryRecord is one answered query.
type HistoryRecord struct {
	ID             string
	UserID         string
	CourseID       string
	Query          string
	Confidence     float64
	GroundingScore float64
	Success        bool
	FromCache      bool
	AskedAt        time.Time
}

// HistoryStore defines the interface for query history operations.
type HistoryStore interface {
	// Record inserts one answered query. The record.ID must be set (UUID)
	// before calling this method.
	Record(ctx context.Context, record *HistoryRecord) error
	// RecentByUser returns the user's most recent queries in a course,
	// newest first, capped at limit.
	RecentByUser(ctx context.Context, userID, courseID string, limit int) ([]HistoryRecord, error)
}

// HistoryRepo provides methods for query history operations.
// It implements the HistoryStore interface.
type HistoryRepo struct {
	db *sql.DB
}

// NewHistoryRepo creates a new HistoryRepo.
func NewHistoryRepo(db *sql.DB) *HistoryRepo {
	return &HistoryRepo{db: db}
}

// Record inserts one answered query.
func (r *HistoryRepo) Record(ctx context.Context, record *HistoryRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO query_history
			(id, user_id, course_id, query, confidence, grounding_score, success, from_cache, asked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.UserID, record.CourseID, record.Query,
		record.Confidence, record.GroundingScore, record.Success, record.FromCache, record.AskedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert history record: %w", err)
	}
	return nil
}

// RecentByUser returns the user's most recent queries in a course.
// Returns an empty slice if the user has no history (not an error).
func (r *HistoryRepo) RecentByUser(ctx context.Context, userID, courseID string, limit int) ([]HistoryRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, course_id, query, confidence, grounding_score, success, from_cache, asked_at
		FROM query_history
		WHERE user_id = ? AND course_id = ?
		ORDER BY asked_at DESC
		LIMIT ?`,
		userID, courseID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var records []HistoryRecord
	for rows.Next() {
		var rec HistoryRecord
		var grounding sql.NullFloat64
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.CourseID, &rec.Query,
			&rec.Confidence, &grounding, &rec.Success, &rec.FromCache, &rec.AskedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history record: %w", err)
		}
		rec.GroundingScore = grounding.Float64
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}
