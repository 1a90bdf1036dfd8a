// Package matrixpool manages the rolling 7-day bonus pool: lifecycle,
// membership, share computation and the single payout per pool.
package matrixpool

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/david-jerry/heroku-suibison/internal/domain/entities"
	apperrors "github.com/david-jerry/heroku-suibison/internal/domain/errors"
	"github.com/david-jerry/heroku-suibison/pkg/logger"
	"github.com/david-jerry/heroku-suibison/pkg/metrics"
)

// PoolStore interface for pool persistence
type PoolStore interface {
	GetActive(ctx context.Context) (*entities.Pool, error)
	GetUnpaid(ctx context.Context) (*entities.Pool, error)
	Create(ctx context.Context, pool *entities.Pool) error
	AddToRaised(ctx context.Context, poolID uuid.UUID, amount decimal.Decimal) error
	MarkPaidOut(ctx context.Context, poolID uuid.UUID) error
	GetMember(ctx context.Context, poolID uuid.UUID, userID int64) (*entities.PoolMember, error)
	CreateMember(ctx context.Context, member *entities.PoolMember) error
	IncrementMemberReferrals(ctx context.Context, poolID uuid.UUID, userID int64, by int) error
	ListMembers(ctx context.Context, poolID uuid.UUID) ([]*entities.PoolMember, error)
	UpdateMember(ctx context.Context, member *entities.PoolMember) error
	TotalReferrals(ctx context.Context, poolID uuid.UUID) (int, error)
}

// WalletStore interface for wallet persistence
type WalletStore interface {
	GetByUserID(ctx context.Context, userID int64) (*entities.Wallet, error)
	Update(ctx context.Context, wallet *entities.Wallet) error
}

// ActivityStore interface for activity persistence
type ActivityStore interface {
	Create(ctx context.Context, activity *entities.Activity) error
}

// TxManager scopes a callback to one database transaction.
type TxManager interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service coordinates the matrix pool.
type Service struct {
	pools      PoolStore
	wallets    WalletStore
	activity   ActivityStore
	tx         TxManager
	payoutLead time.Duration
	logger     *logger.Logger
	now        func() time.Time
}

// NewService creates a matrix pool service. payoutLead is how long before a
// pool's expiry its payout may fire.
func NewService(pools PoolStore, wallets WalletStore, activity ActivityStore, tx TxManager, payoutLead time.Duration, log *logger.Logger) *Service {
	if payoutLead <= 0 {
		payoutLead = 30 * time.Minute
	}
	return &Service{
		pools:      pools,
		wallets:    wallets,
		activity:   activity,
		tx:         tx,
		payoutLead: payoutLead,
		logger:     log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// EnsureActivePool returns the open pool, creating one when none exists. The
// unique index on open pools makes the create race-safe: a conflict means
// another caller won, and we re-read.
func (s *Service) EnsureActivePool(ctx context.Context) (*entities.Pool, error) {
	pool, err := s.pools.GetActive(ctx)
	if err == nil {
		return pool, nil
	}
	if !apperrors.IsNotFound(err) {
		return nil, fmt.Errorf("loading active pool: %w", err)
	}

	now := s.now()
	fresh := &entities.Pool{
		ID:           uuid.New(),
		RaisedAmount: decimal.Zero,
		StartsAt:     now,
		EndsAt:       now.Add(entities.PoolWindow),
	}
	if err := s.pools.Create(ctx, fresh); err != nil {
		if apperrors.IsConflict(err) {
			winner, aerr := s.pools.GetActive(ctx)
			if aerr == nil {
				return winner, nil
			}
			if !apperrors.IsNotFound(aerr) {
				return nil, fmt.Errorf("loading active pool after conflict: %w", aerr)
			}
			// The open slot is held by an expired pool still awaiting
			// payout; enroll into it until the payout pass settles it.
			return s.pools.GetUnpaid(ctx)
		}
		return nil, fmt.Errorf("creating pool: %w", err)
	}

	s.logger.Info("Opened matrix pool", "pool_id", fresh.ID, "ends_at", fresh.EndsAt)
	return fresh, nil
}

// RecordDeposit registers a first qualifying deposit with the active pool:
// the depositor becomes a member, and their referrer's referral counter is
// incremented. Existing memberships are incremented, never duplicated.
func (s *Service) RecordDeposit(ctx context.Context, account *entities.Account) error {
	pool, err := s.EnsureActivePool(ctx)
	if err != nil {
		return err
	}

	if err := s.ensureMember(ctx, pool.ID, account.UserID, nil); err != nil {
		return err
	}

	if account.ReferrerID != nil {
		if err := s.ensureMember(ctx, pool.ID, *account.ReferrerID, nil); err != nil {
			return err
		}
		if err := s.pools.IncrementMemberReferrals(ctx, pool.ID, *account.ReferrerID, 1); err != nil {
			return fmt.Errorf("incrementing pool referrals of %d: %w", *account.ReferrerID, err)
		}
	}
	return nil
}

// AddMember adds an account to the active pool by hand (admin surface).
func (s *Service) AddMember(ctx context.Context, userID int64, name *string) error {
	pool, err := s.pools.GetActive(ctx)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return apperrors.ErrNoActivePool
		}
		return fmt.Errorf("loading active pool: %w", err)
	}
	return s.ensureMember(ctx, pool.ID, userID, name)
}

// Contribute adds amount to the active pool's raised total.
func (s *Service) Contribute(ctx context.Context, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return nil
	}
	pool, err := s.pools.GetActive(ctx)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return apperrors.ErrNoActivePool
		}
		return fmt.Errorf("loading active pool: %w", err)
	}
	if err := s.pools.AddToRaised(ctx, pool.ID, amount); err != nil {
		return fmt.Errorf("raising pool %s: %w", pool.ID, err)
	}
	return nil
}

// RunPayoutPass pays the active pool once it is inside its payout lead
// window. Shares and positions are computed here, lazily; the paid-out flag
// flips in the same transaction so re-runs inside the window cannot pay
// twice.
func (s *Service) RunPayoutPass(ctx context.Context) error {
	start := time.Now()
	defer func() {
		metrics.PassDuration.WithLabelValues("pool").Observe(time.Since(start).Seconds())
	}()

	pool, err := s.pools.GetUnpaid(ctx)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("loading unpaid pool: %w", err)
	}

	now := s.now()
	if now.Before(pool.EndsAt.Add(-s.payoutLead)) {
		return nil
	}

	return s.tx.InTx(ctx, func(ctx context.Context) error {
		return s.payout(ctx, pool, now)
	})
}

func (s *Service) payout(ctx context.Context, pool *entities.Pool, now time.Time) error {
	total, err := s.pools.TotalReferrals(ctx, pool.ID)
	if err != nil {
		return fmt.Errorf("summing pool referrals: %w", err)
	}

	members, err := s.pools.ListMembers(ctx, pool.ID)
	if err != nil {
		return fmt.Errorf("listing pool members: %w", err)
	}

	position := len(members)
	for _, member := range members {
		member.Position = position
		position--

		if total > 0 {
			member.Share = decimal.NewFromInt(int64(member.ReferralsAdded)).Div(decimal.NewFromInt(int64(total)))
			member.Earning = pool.RaisedAmount.Mul(member.Share)
		}

		if member.Earning.IsPositive() {
			wallet, err := s.wallets.GetByUserID(ctx, member.UserID)
			if err != nil {
				return fmt.Errorf("loading wallet of member %d: %w", member.UserID, err)
			}
			wallet.Earnings = wallet.Earnings.Add(member.Earning)
			wallet.TotalReferralEarnings = wallet.TotalReferralEarnings.Add(member.Earning)
			if err := s.wallets.Update(ctx, wallet); err != nil {
				return fmt.Errorf("crediting member %d: %w", member.UserID, err)
			}

			amount := member.Earning
			if err := s.activity.Create(ctx, &entities.Activity{
				ID:        uuid.New(),
				UserID:    member.UserID,
				Type:      entities.ActivityPoolPayout,
				Detail:    "matrix pool payout",
				Amount:    &amount,
				CreatedAt: now,
			}); err != nil {
				return fmt.Errorf("recording payout activity for %d: %w", member.UserID, err)
			}
		}

		if err := s.pools.UpdateMember(ctx, member); err != nil {
			return fmt.Errorf("persisting member %d: %w", member.UserID, err)
		}
	}

	if err := s.pools.MarkPaidOut(ctx, pool.ID); err != nil {
		return fmt.Errorf("closing pool %s: %w", pool.ID, err)
	}

	s.logger.Info("Matrix pool paid out",
		"pool_id", pool.ID,
		"members", len(members),
		"raised", pool.RaisedAmount.String())
	return nil
}

func (s *Service) ensureMember(ctx context.Context, poolID uuid.UUID, userID int64, name *string) error {
	_, err := s.pools.GetMember(ctx, poolID, userID)
	if err == nil {
		return nil
	}
	if !apperrors.IsNotFound(err) {
		return fmt.Errorf("loading pool member %d: %w", userID, err)
	}

	member := &entities.PoolMember{
		ID:        uuid.New(),
		PoolID:    poolID,
		UserID:    userID,
		Name:      name,
		Share:     decimal.Zero,
		Earning:   decimal.Zero,
		CreatedAt: s.now(),
	}
	if err := s.pools.CreateMember(ctx, member); err != nil {
		if apperrors.IsAlreadyExists(err) {
			return nil
		}
		return fmt.Errorf("creating pool member %d: %w", userID, err)
	}
	return nil
}
