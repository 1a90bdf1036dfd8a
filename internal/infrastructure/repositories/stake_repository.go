package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/david-jerry/heroku-suibison/internal/domain/entities"
	domainerrors "github.com/david-jerry/heroku-suibison/internal/domain/errors"
	"github.com/david-jerry/heroku-suibison/internal/infrastructure/database"
)

// StakeRepository persists staking positions using PostgreSQL.
type StakeRepository struct {
	db *sqlx.DB
}

// NewStakeRepository creates a new stake repository.
func NewStakeRepository(db *sqlx.DB) *StakeRepository {
	return &StakeRepository{db: db}
}

// Create inserts a new staking position.
func (r *StakeRepository) Create(ctx context.Context, stake *entities.Stake) error {
	query := `
		INSERT INTO stakes (
			id, user_id, deposit, roi, started_at,
			next_roi_increase_at, ending_at, last_earning_at, created_at
		) VALUES (
			:id, :user_id, :deposit, :roi, :started_at,
			:next_roi_increase_at, :ending_at, :last_earning_at, :created_at
		)`

	_, err := sqlx.NamedExecContext(ctx, database.Executor(ctx, r.db), query, stake)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return domainerrors.AlreadyExistsError("stake")
		}
		return fmt.Errorf("failed to create stake: %w", err)
	}
	return nil
}

// GetByUserID retrieves the single staking position of an account.
func (r *StakeRepository) GetByUserID(ctx context.Context, userID int64) (*entities.Stake, error) {
	query := `SELECT * FROM stakes WHERE user_id = $1`

	var stake entities.Stake
	err := sqlx.GetContext(ctx, database.Executor(ctx, r.db), &stake, query, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domainerrors.NotFoundError("stake")
		}
		return nil, fmt.Errorf("failed to get stake: %w", err)
	}
	return &stake, nil
}

// Update writes the mutable stake fields. The last-earning timestamp and the
// earning credit must travel in one transaction; callers are expected to run
// inside TxManager.InTx.
func (r *StakeRepository) Update(ctx context.Context, stake *entities.Stake) error {
	query := `
		UPDATE stakes SET
			deposit = :deposit,
			roi = :roi,
			started_at = :started_at,
			next_roi_increase_at = :next_roi_increase_at,
			ending_at = :ending_at,
			last_earning_at = :last_earning_at
		WHERE id = :id`

	result, err := sqlx.NamedExecContext(ctx, database.Executor(ctx, r.db), query, stake)
	if err != nil {
		return fmt.Errorf("failed to update stake: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return domainerrors.NotFoundError("stake")
	}
	return nil
}

// SumDeposits totals every staked deposit on the platform.
func (r *StakeRepository) SumDeposits(ctx context.Context) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(deposit), 0) FROM stakes`

	var total decimal.Decimal
	if err := sqlx.GetContext(ctx, database.Executor(ctx, r.db), &total, query); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum stake deposits: %w", err)
	}
	return total, nil
}
