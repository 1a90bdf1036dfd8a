package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/david-jerry/heroku-suibison/internal/domain/entities"
	domainerrors "github.com/david-jerry/heroku-suibison/internal/domain/errors"
	"github.com/david-jerry/heroku-suibison/internal/infrastructure/database"
)

// PoolRepository persists matrix pools and their memberships.
type PoolRepository struct {
	db *sqlx.DB
}

// NewPoolRepository creates a new pool repository.
func NewPoolRepository(db *sqlx.DB) *PoolRepository {
	return &PoolRepository{db: db}
}

// GetActive returns the single open pool, if any.
func (r *PoolRepository) GetActive(ctx context.Context) (*entities.Pool, error) {
	query := `SELECT * FROM pools WHERE ends_at >= NOW() AND paid_out = false ORDER BY ends_at DESC LIMIT 1`

	var pool entities.Pool
	err := sqlx.GetContext(ctx, database.Executor(ctx, r.db), &pool, query)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domainerrors.NewDomainError(domainerrors.ErrNotFound, "POOL_NOT_FOUND", "no open pool")
		}
		return nil, fmt.Errorf("failed to get active pool: %w", err)
	}
	return &pool, nil
}

// GetUnpaid returns the newest pool that has not been paid out, whether or
// not its window has expired. The payout pass uses this so a pool that
// expired while the process was down still gets settled.
func (r *PoolRepository) GetUnpaid(ctx context.Context) (*entities.Pool, error) {
	query := `SELECT * FROM pools WHERE paid_out = false ORDER BY ends_at DESC LIMIT 1`

	var pool entities.Pool
	err := sqlx.GetContext(ctx, database.Executor(ctx, r.db), &pool, query)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domainerrors.NewDomainError(domainerrors.ErrNotFound, "POOL_NOT_FOUND", "no unpaid pool")
		}
		return nil, fmt.Errorf("failed to get unpaid pool: %w", err)
	}
	return &pool, nil
}

// Create opens a new pool. The partial unique index on open pools makes
// concurrent creations collapse into one winner; losers see ErrConflict and
// should re-read the active pool.
func (r *PoolRepository) Create(ctx context.Context, pool *entities.Pool) error {
	query := `
		INSERT INTO pools (id, raised_amount, starts_at, ends_at, paid_out)
		VALUES (:id, :raised_amount, :starts_at, :ends_at, :paid_out)`

	_, err := sqlx.NamedExecContext(ctx, database.Executor(ctx, r.db), query, pool)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return domainerrors.NewDomainError(domainerrors.ErrConflict, "POOL_ALREADY_OPEN", "an open pool already exists")
		}
		return fmt.Errorf("failed to create pool: %w", err)
	}
	return nil
}

// AddToRaised accumulates withdrawal contributions into the pool amount.
func (r *PoolRepository) AddToRaised(ctx context.Context, poolID uuid.UUID, amount decimal.Decimal) error {
	query := `UPDATE pools SET raised_amount = raised_amount + $2 WHERE id = $1`

	result, err := database.Executor(ctx, r.db).ExecContext(ctx, query, poolID, amount)
	if err != nil {
		return fmt.Errorf("failed to add to pool amount: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return domainerrors.ErrNoActivePool
	}
	return nil
}

// MarkPaidOut closes a pool after its one payout pass. A paid-out pool can
// never pay again, which is what makes the 15-minute re-runs inside the
// payout window safe.
func (r *PoolRepository) MarkPaidOut(ctx context.Context, poolID uuid.UUID) error {
	query := `UPDATE pools SET paid_out = true WHERE id = $1 AND paid_out = false`

	result, err := database.Executor(ctx, r.db).ExecContext(ctx, query, poolID)
	if err != nil {
		return fmt.Errorf("failed to mark pool paid out: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return domainerrors.NewDomainError(domainerrors.ErrConflict, "POOL_ALREADY_PAID", "pool already paid out")
	}
	return nil
}

// SumRaised totals the raised amount across all pools ever opened.
func (r *PoolRepository) SumRaised(ctx context.Context) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(raised_amount), 0) FROM pools`

	var total decimal.Decimal
	if err := sqlx.GetContext(ctx, database.Executor(ctx, r.db), &total, query); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum raised amounts: %w", err)
	}
	return total, nil
}

// GetMember returns an account's membership in a pool, if present.
func (r *PoolRepository) GetMember(ctx context.Context, poolID uuid.UUID, userID int64) (*entities.PoolMember, error) {
	query := `SELECT * FROM pool_members WHERE pool_id = $1 AND user_id = $2`

	var member entities.PoolMember
	err := sqlx.GetContext(ctx, database.Executor(ctx, r.db), &member, query, poolID, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domainerrors.NotFoundError("pool member")
		}
		return nil, fmt.Errorf("failed to get pool member: %w", err)
	}
	return &member, nil
}

// CreateMember adds an account to a pool.
func (r *PoolRepository) CreateMember(ctx context.Context, member *entities.PoolMember) error {
	query := `
		INSERT INTO pool_members (
			id, pool_id, user_id, name, referrals_added, share, earning, position, created_at
		) VALUES (
			:id, :pool_id, :user_id, :name, :referrals_added, :share, :earning, :position, :created_at
		)`

	_, err := sqlx.NamedExecContext(ctx, database.Executor(ctx, r.db), query, member)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return domainerrors.AlreadyExistsError("pool member")
		}
		return fmt.Errorf("failed to create pool member: %w", err)
	}
	return nil
}

// IncrementMemberReferrals bumps the referral counter on an existing
// membership instead of duplicating it.
func (r *PoolRepository) IncrementMemberReferrals(ctx context.Context, poolID uuid.UUID, userID int64, by int) error {
	query := `UPDATE pool_members SET referrals_added = referrals_added + $3 WHERE pool_id = $1 AND user_id = $2`

	result, err := database.Executor(ctx, r.db).ExecContext(ctx, query, poolID, userID, by)
	if err != nil {
		return fmt.Errorf("failed to increment member referrals: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return domainerrors.NotFoundError("pool member")
	}
	return nil
}

// ListMembers returns the members of a pool ordered by ascending referral
// count, ties broken by insertion order. Position assignment depends on this
// ordering.
func (r *PoolRepository) ListMembers(ctx context.Context, poolID uuid.UUID) ([]*entities.PoolMember, error) {
	query := `SELECT * FROM pool_members WHERE pool_id = $1 ORDER BY referrals_added ASC, created_at ASC`

	var members []*entities.PoolMember
	if err := sqlx.SelectContext(ctx, database.Executor(ctx, r.db), &members, query, poolID); err != nil {
		return nil, fmt.Errorf("failed to list pool members: %w", err)
	}
	return members, nil
}

// UpdateMember writes the computed share, earning, position and name.
func (r *PoolRepository) UpdateMember(ctx context.Context, member *entities.PoolMember) error {
	query := `
		UPDATE pool_members SET
			name = :name,
			referrals_added = :referrals_added,
			share = :share,
			earning = :earning,
			position = :position
		WHERE id = :id`

	result, err := sqlx.NamedExecContext(ctx, database.Executor(ctx, r.db), query, member)
	if err != nil {
		return fmt.Errorf("failed to update pool member: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return domainerrors.NotFoundError("pool member")
	}
	return nil
}

// TotalReferrals sums referrals_added across a pool's membership.
func (r *PoolRepository) TotalReferrals(ctx context.Context, poolID uuid.UUID) (int, error) {
	query := `SELECT COALESCE(SUM(referrals_added), 0) FROM pool_members WHERE pool_id = $1`

	var total int
	if err := sqlx.GetContext(ctx, database.Executor(ctx, r.db), &total, query, poolID); err != nil {
		return 0, fmt.Errorf("failed to total pool referrals: %w", err)
	}
	return total, nil
}
