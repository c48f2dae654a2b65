// Package postgres provides the PostgreSQL implementation of the support repository.
package postgres

import (
	"context"
	"fmt"

	"github.com/cofabri/site-backend/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements support.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// SaveFailed stores a submission that could not be recorded upstream.
func (r *Repository) SaveFailed(ctx context.Context, sub *domain.FailedSubmission) error {
	query := `
		INSERT INTO failed_submissions (id, kind, payload, error, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.Exec(ctx, query, sub.ID, sub.Kind, []byte(sub.Payload), sub.Error, sub.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert failed submission: %w", err)
	}
	return nil
}

// ListFailed returns up to limit submissions, newest first.
func (r *Repository) ListFailed(ctx context.Context, limit int) ([]domain.FailedSubmission, error) {
	query := `
		SELECT id, kind, payload, error, created_at
		FROM failed_submissions
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query failed submissions: %w", err)
	}
	defer rows.Close()

	subs := make([]domain.FailedSubmission, 0)
	for rows.Next() {
		var (
			sub     domain.FailedSubmission
			payload []byte
		)
		if err := rows.Scan(&sub.ID, &sub.Kind, &payload, &sub.Error, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan failed submission: %w", err)
		}
		sub.Payload = payload
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate failed submissions: %w", err)
	}
	return subs, nil
}
