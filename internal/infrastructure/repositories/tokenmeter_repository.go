package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/david-jerry/heroku-suibison/internal/domain/entities"
	domainerrors "github.com/david-jerry/heroku-suibison/internal/domain/errors"
	"github.com/david-jerry/heroku-suibison/internal/infrastructure/database"
)

// TokenMeterRepository persists the singleton token meter.
type TokenMeterRepository struct {
	db *sqlx.DB
}

// NewTokenMeterRepository creates a new token meter repository.
func NewTokenMeterRepository(db *sqlx.DB) *TokenMeterRepository {
	return &TokenMeterRepository{db: db}
}

// Create inserts the token meter. A second row is rejected.
func (r *TokenMeterRepository) Create(ctx context.Context, meter *entities.TokenMeter) error {
	var count int
	exec := database.Executor(ctx, r.db)
	if err := sqlx.GetContext(ctx, exec, &count, `SELECT COUNT(*) FROM token_meter`); err != nil {
		return fmt.Errorf("failed to count token meters: %w", err)
	}
	if count > 0 {
		return domainerrors.ErrTokenMeterExists
	}

	query := `
		INSERT INTO token_meter (id, address, phrase, total_collected, total_cap, price, created_at)
		VALUES (:id, :address, :phrase, :total_collected, :total_cap, :price, :created_at)`

	if _, err := sqlx.NamedExecContext(ctx, exec, query, meter); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return domainerrors.ErrTokenMeterExists
		}
		return fmt.Errorf("failed to create token meter: %w", err)
	}
	return nil
}

// Get returns the singleton meter. Absence is an integrity error for the
// flows that assume it.
func (r *TokenMeterRepository) Get(ctx context.Context) (*entities.TokenMeter, error) {
	query := `SELECT * FROM token_meter LIMIT 1`

	var meter entities.TokenMeter
	err := sqlx.GetContext(ctx, database.Executor(ctx, r.db), &meter, query)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domainerrors.ErrTokenMeterMissing
		}
		return nil, fmt.Errorf("failed to get token meter: %w", err)
	}
	return &meter, nil
}

// Update writes the mutable meter fields.
func (r *TokenMeterRepository) Update(ctx context.Context, meter *entities.TokenMeter) error {
	query := `
		UPDATE token_meter SET
			address = :address,
			total_collected = :total_collected,
			total_cap = :total_cap,
			price = :price
		WHERE id = :id`

	result, err := sqlx.NamedExecContext(ctx, database.Executor(ctx, r.db), query, meter)
	if err != nil {
		return fmt.Errorf("failed to update token meter: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return domainerrors.ErrTokenMeterMissing
	}
	return nil
}
