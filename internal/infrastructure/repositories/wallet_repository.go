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

// WalletRepository persists wallets using PostgreSQL.
type WalletRepository struct {
	db *sqlx.DB
}

// NewWalletRepository creates a new wallet repository.
func NewWalletRepository(db *sqlx.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// Create inserts a new wallet.
func (r *WalletRepository) Create(ctx context.Context, wallet *entities.Wallet) error {
	query := `
		INSERT INTO wallets (
			address, phrase, user_id, earnings, pending_balance,
			weekly_rank_earnings, total_deposit, total_withdrawn,
			total_referral_earnings, total_rank_bonus,
			total_token_purchased, total_fast_bonus, created_at
		) VALUES (
			:address, :phrase, :user_id, :earnings, :pending_balance,
			:weekly_rank_earnings, :total_deposit, :total_withdrawn,
			:total_referral_earnings, :total_rank_bonus,
			:total_token_purchased, :total_fast_bonus, :created_at
		)`

	_, err := sqlx.NamedExecContext(ctx, database.Executor(ctx, r.db), query, wallet)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return domainerrors.AlreadyExistsError("wallet")
		}
		return fmt.Errorf("failed to create wallet: %w", err)
	}
	return nil
}

// GetByUserID retrieves the wallet attached to an account.
func (r *WalletRepository) GetByUserID(ctx context.Context, userID int64) (*entities.Wallet, error) {
	query := `SELECT * FROM wallets WHERE user_id = $1`

	var wallet entities.Wallet
	err := sqlx.GetContext(ctx, database.Executor(ctx, r.db), &wallet, query, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domainerrors.NotFoundError("wallet")
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return &wallet, nil
}

// Update writes all wallet balances. The enclosing transaction decides
// atomicity with the paired activity row.
func (r *WalletRepository) Update(ctx context.Context, wallet *entities.Wallet) error {
	query := `
		UPDATE wallets SET
			earnings = :earnings,
			pending_balance = :pending_balance,
			weekly_rank_earnings = :weekly_rank_earnings,
			total_deposit = :total_deposit,
			total_withdrawn = :total_withdrawn,
			total_referral_earnings = :total_referral_earnings,
			total_rank_bonus = :total_rank_bonus,
			total_token_purchased = :total_token_purchased,
			total_fast_bonus = :total_fast_bonus
		WHERE address = :address`

	result, err := sqlx.NamedExecContext(ctx, database.Executor(ctx, r.db), query, wallet)
	if err != nil {
		return fmt.Errorf("failed to update wallet: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return domainerrors.NotFoundError("wallet")
	}
	return nil
}
