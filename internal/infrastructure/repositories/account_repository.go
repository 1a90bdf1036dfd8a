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

// AccountRepository persists accounts using PostgreSQL.
type AccountRepository struct {
	db *sqlx.DB
}

// NewAccountRepository creates a new account repository.
func NewAccountRepository(db *sqlx.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create inserts a new account. The referrer link is written here and never
// updated afterwards.
func (r *AccountRepository) Create(ctx context.Context, account *entities.Account) error {
	query := `
		INSERT INTO accounts (
			user_id, first_name, last_name, referrer_id, rank,
			is_blocked, is_admin, has_deposited, speed_boost_used,
			total_direct_referrals, total_indirect_referrals, total_team_volume,
			joined, updated_at, last_rank_paid_at
		) VALUES (
			:user_id, :first_name, :last_name, :referrer_id, :rank,
			:is_blocked, :is_admin, :has_deposited, :speed_boost_used,
			:total_direct_referrals, :total_indirect_referrals, :total_team_volume,
			:joined, :updated_at, :last_rank_paid_at
		)`

	_, err := sqlx.NamedExecContext(ctx, database.Executor(ctx, r.db), query, account)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return domainerrors.AlreadyExistsError("account")
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// GetByID retrieves an account by its external user id.
func (r *AccountRepository) GetByID(ctx context.Context, userID int64) (*entities.Account, error) {
	query := `SELECT * FROM accounts WHERE user_id = $1`

	var account entities.Account
	err := sqlx.GetContext(ctx, database.Executor(ctx, r.db), &account, query, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domainerrors.NotFoundError("account")
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

// ListActive returns every non-blocked, non-admin account, the population
// every batch engine pass walks.
func (r *AccountRepository) ListActive(ctx context.Context) ([]*entities.Account, error) {
	query := `
		SELECT * FROM accounts
		WHERE is_blocked = false AND is_admin = false
		ORDER BY user_id ASC`

	var accounts []*entities.Account
	if err := sqlx.SelectContext(ctx, database.Executor(ctx, r.db), &accounts, query); err != nil {
		return nil, fmt.Errorf("failed to list active accounts: %w", err)
	}
	return accounts, nil
}

// List returns a page of accounts ordered by join time.
func (r *AccountRepository) List(ctx context.Context, limit, offset int) ([]*entities.Account, error) {
	query := `SELECT * FROM accounts ORDER BY joined ASC, user_id ASC LIMIT $1 OFFSET $2`

	var accounts []*entities.Account
	if err := sqlx.SelectContext(ctx, database.Executor(ctx, r.db), &accounts, query, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}

// Update writes the mutable account fields. The referrer link is deliberately
// not part of the statement.
func (r *AccountRepository) Update(ctx context.Context, account *entities.Account) error {
	query := `
		UPDATE accounts SET
			first_name = :first_name,
			last_name = :last_name,
			rank = :rank,
			is_blocked = :is_blocked,
			has_deposited = :has_deposited,
			speed_boost_used = :speed_boost_used,
			total_direct_referrals = :total_direct_referrals,
			total_indirect_referrals = :total_indirect_referrals,
			total_team_volume = :total_team_volume,
			updated_at = NOW(),
			last_rank_paid_at = :last_rank_paid_at
		WHERE user_id = :user_id`

	result, err := sqlx.NamedExecContext(ctx, database.Executor(ctx, r.db), query, account)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return domainerrors.NotFoundError("account")
	}
	return nil
}

// SetBlocked toggles the soft-block flag.
func (r *AccountRepository) SetBlocked(ctx context.Context, userID int64, blocked bool) error {
	query := `UPDATE accounts SET is_blocked = $2, updated_at = NOW() WHERE user_id = $1`

	result, err := database.Executor(ctx, r.db).ExecContext(ctx, query, userID, blocked)
	if err != nil {
		return fmt.Errorf("failed to set blocked flag: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return domainerrors.NotFoundError("account")
	}
	return nil
}

// AddTeamVolume accumulates raw staked volume onto an ancestor account.
func (r *AccountRepository) AddTeamVolume(ctx context.Context, userID int64, amount decimal.Decimal) error {
	query := `UPDATE accounts SET total_team_volume = total_team_volume + $2, updated_at = NOW() WHERE user_id = $1`

	if _, err := database.Executor(ctx, r.db).ExecContext(ctx, query, userID, amount); err != nil {
		return fmt.Errorf("failed to add team volume: %w", err)
	}
	return nil
}

// AverageDailyReferrals computes the mean number of referred sign-ups per
// day with at least one referral.
func (r *AccountRepository) AverageDailyReferrals(ctx context.Context) (float64, error) {
	query := `
		SELECT COALESCE(AVG(daily), 0) FROM (
			SELECT COUNT(*) AS daily
			FROM accounts
			WHERE referrer_id IS NOT NULL
			GROUP BY joined::date
		) t`

	var avg float64
	if err := sqlx.GetContext(ctx, database.Executor(ctx, r.db), &avg, query); err != nil {
		return 0, fmt.Errorf("failed to compute average daily referrals: %w", err)
	}
	return avg, nil
}
