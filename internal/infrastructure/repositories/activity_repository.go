package repositories

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/david-jerry/heroku-suibison/internal/domain/entities"
	"github.com/david-jerry/heroku-suibison/internal/infrastructure/database"
)

// ActivityRepository persists the append-only activity log. There is no
// update or delete path on purpose.
type ActivityRepository struct {
	db *sqlx.DB
}

// NewActivityRepository creates a new activity repository.
func NewActivityRepository(db *sqlx.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Create appends an activity record.
func (r *ActivityRepository) Create(ctx context.Context, activity *entities.Activity) error {
	query := `
		INSERT INTO activities (id, user_id, type, detail, amount, created_at)
		VALUES (:id, :user_id, :type, :detail, :amount, :created_at)`

	if _, err := sqlx.NamedExecContext(ctx, database.Executor(ctx, r.db), query, activity); err != nil {
		return fmt.Errorf("failed to create activity: %w", err)
	}
	return nil
}

// ListByUser returns the most recent activity rows for an account.
func (r *ActivityRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*entities.Activity, error) {
	query := `SELECT * FROM activities WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`

	var activities []*entities.Activity
	if err := sqlx.SelectContext(ctx, database.Executor(ctx, r.db), &activities, query, userID, limit); err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	return activities, nil
}
