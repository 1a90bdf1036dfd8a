// Package accrual implements the interest accrual state machine: ROI
// stepping, the maturity countdown and the daily earning credit.
package accrual

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

// AccountStore interface for account persistence
type AccountStore interface {
	ListActive(ctx context.Context) ([]*entities.Account, error)
}

// StakeStore interface for stake persistence
type StakeStore interface {
	GetByUserID(ctx context.Context, userID int64) (*entities.Stake, error)
	Update(ctx context.Context, stake *entities.Stake) error
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

// Service drives one accrual step per account per pass.
type Service struct {
	accounts AccountStore
	stakes   StakeStore
	wallets  WalletStore
	activity ActivityStore
	tx       TxManager
	logger   *logger.Logger
	now      func() time.Time
}

// NewService creates an accrual service.
func NewService(accounts AccountStore, stakes StakeStore, wallets WalletStore, activity ActivityStore, tx TxManager, log *logger.Logger) *Service {
	return &Service{
		accounts: accounts,
		stakes:   stakes,
		wallets:  wallets,
		activity: activity,
		tx:       tx,
		logger:   log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RunPass reconciles every active account once. Each account runs in its own
// transaction; a failure is logged and the pass moves on.
func (s *Service) RunPass(ctx context.Context) error {
	start := time.Now()
	defer func() {
		metrics.PassDuration.WithLabelValues("accrual").Observe(time.Since(start).Seconds())
	}()

	accounts, err := s.accounts.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("listing active accounts: %w", err)
	}

	for _, account := range accounts {
		userID := account.UserID
		err := s.tx.InTx(ctx, func(ctx context.Context) error {
			return s.ReconcileAccount(ctx, userID)
		})
		if err != nil {
			metrics.AccountFailures.WithLabelValues("accrual").Inc()
			s.logger.Error("Accrual failed for account", "user_id", userID, "error", err)
			continue
		}
		metrics.AccountsProcessed.WithLabelValues("accrual").Inc()
	}
	return nil
}

// ReconcileAccount applies one accrual step to a single account. The
// last-earning timestamp is the only guard against double-crediting and is
// persisted together with the credit.
func (s *Service) ReconcileAccount(ctx context.Context, userID int64) error {
	stake, err := s.stakes.GetByUserID(ctx, userID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("loading stake: %w", err)
	}
	if !stake.Active() {
		return nil
	}

	now := s.now()
	changed := false

	if stake.ROI.LessThan(entities.ROICeiling) && stake.NextROIIncreaseAt != nil && !now.Before(*stake.NextROIIncreaseAt) {
		stake.ROI = stake.ROI.Add(entities.ROIStep)
		if stake.ROI.GreaterThan(entities.ROICeiling) {
			stake.ROI = entities.ROICeiling
		}
		next := stake.NextROIIncreaseAt.Add(entities.ROIIncreaseInterval)
		stake.NextROIIncreaseAt = &next
		changed = true
	}

	if stake.ROI.GreaterThanOrEqual(entities.ROICeiling) && stake.EndingAt == nil {
		end := now.Add(entities.StakeMaturityPeriod)
		stake.EndingAt = &end
		stake.NextROIIncreaseAt = nil
		changed = true
	}

	if stake.LastEarningAt == nil || now.Sub(*stake.LastEarningAt) >= entities.EarningInterval {
		earning := stake.Deposit.Mul(stake.ROI)
		if earning.IsPositive() {
			wallet, err := s.wallets.GetByUserID(ctx, userID)
			if err != nil {
				return fmt.Errorf("loading wallet: %w", err)
			}
			wallet.Earnings = wallet.Earnings.Add(earning)
			if err := s.wallets.Update(ctx, wallet); err != nil {
				return fmt.Errorf("crediting earnings: %w", err)
			}
			if err := s.recordEarning(ctx, userID, earning); err != nil {
				return err
			}
		}
		stake.LastEarningAt = &now
		changed = true
	}

	if stake.EndingAt != nil && sameDay(*stake.EndingAt, now) {
		stake.ROI = entities.ROIBase
		stake.EndingAt = nil
		stake.NextROIIncreaseAt = nil
		changed = true
	}

	if changed {
		if err := s.stakes.Update(ctx, stake); err != nil {
			return fmt.Errorf("persisting stake: %w", err)
		}
	}
	return nil
}

func (s *Service) recordEarning(ctx context.Context, userID int64, earning decimal.Decimal) error {
	if err := s.activity.Create(ctx, &entities.Activity{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      entities.ActivityDeposit,
		Detail:    "daily staking interest",
		Amount:    &earning,
		CreatedAt: s.now(),
	}); err != nil {
		return fmt.Errorf("recording interest activity: %w", err)
	}
	return nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
