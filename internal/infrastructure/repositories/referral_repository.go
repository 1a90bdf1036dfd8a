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

// ReferralRepository persists referral edges using PostgreSQL.
type ReferralRepository struct {
	db *sqlx.DB
}

// NewReferralRepository creates a new referral repository.
func NewReferralRepository(db *sqlx.DB) *ReferralRepository {
	return &ReferralRepository{db: db}
}

// Create inserts a referral edge. The (upline, downline, level) triple is
// unique; duplicates surface as ErrAlreadyExists.
func (r *ReferralRepository) Create(ctx context.Context, edge *entities.ReferralEdge) error {
	query := `
		INSERT INTO referral_edges (
			id, upline_id, downline_id, level, stake, reward, created_at
		) VALUES (
			:id, :upline_id, :downline_id, :level, :stake, :reward, :created_at
		)`

	_, err := sqlx.NamedExecContext(ctx, database.Executor(ctx, r.db), query, edge)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return domainerrors.AlreadyExistsError("referral edge")
		}
		return fmt.Errorf("failed to create referral edge: %w", err)
	}
	return nil
}

// GetEdge locates the edge between an upline and a downline at an exact
// level. A missing edge is a corrupted tree and is reported as an integrity
// error, never skipped.
func (r *ReferralRepository) GetEdge(ctx context.Context, uplineID, downlineID int64, level int) (*entities.ReferralEdge, error) {
	query := `SELECT * FROM referral_edges WHERE upline_id = $1 AND downline_id = $2 AND level = $3`

	var edge entities.ReferralEdge
	err := sqlx.GetContext(ctx, database.Executor(ctx, r.db), &edge, query, uplineID, downlineID, level)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domainerrors.ErrReferralEdgeMissing
		}
		return nil, fmt.Errorf("failed to get referral edge: %w", err)
	}
	return &edge, nil
}

// ListByUpline returns every edge fanning out of an account, ordered by
// level then insertion, for the referral tree view.
func (r *ReferralRepository) ListByUpline(ctx context.Context, uplineID int64) ([]*entities.ReferralEdge, error) {
	query := `SELECT * FROM referral_edges WHERE upline_id = $1 ORDER BY level ASC, created_at ASC`

	var edges []*entities.ReferralEdge
	if err := sqlx.SelectContext(ctx, database.Executor(ctx, r.db), &edges, query, uplineID); err != nil {
		return nil, fmt.Errorf("failed to list referral edges: %w", err)
	}
	return edges, nil
}

// ListDirectDownlines returns the level-1 edges out of an account.
func (r *ReferralRepository) ListDirectDownlines(ctx context.Context, uplineID int64) ([]*entities.ReferralEdge, error) {
	query := `SELECT * FROM referral_edges WHERE upline_id = $1 AND level = 1 ORDER BY created_at ASC`

	var edges []*entities.ReferralEdge
	if err := sqlx.SelectContext(ctx, database.Executor(ctx, r.db), &edges, query, uplineID); err != nil {
		return nil, fmt.Errorf("failed to list direct downlines: %w", err)
	}
	return edges, nil
}

// AddAttribution accumulates staked volume and reward onto an edge.
func (r *ReferralRepository) AddAttribution(ctx context.Context, edgeID uuid.UUID, stake, reward decimal.Decimal) error {
	query := `UPDATE referral_edges SET stake = stake + $2, reward = reward + $3 WHERE id = $1`

	result, err := database.Executor(ctx, r.db).ExecContext(ctx, query, edgeID, stake, reward)
	if err != nil {
		return fmt.Errorf("failed to add edge attribution: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return domainerrors.ErrReferralEdgeMissing
	}
	return nil
}

// SumDirectDownlineStakes totals the staked volume attributed through the
// level-1 edges of an account. Used by the speed boost rule.
func (r *ReferralRepository) SumDirectDownlineStakes(ctx context.Context, uplineID int64) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(stake), 0) FROM referral_edges WHERE upline_id = $1 AND level = 1`

	var total decimal.Decimal
	if err := sqlx.GetContext(ctx, database.Executor(ctx, r.db), &total, query, uplineID); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum downline stakes: %w", err)
	}
	return total, nil
}
