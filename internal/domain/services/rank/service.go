// Package rank recomputes each account's tier from USD-denominated team
// volume and pays the weekly rank bonus.
package rank

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

// PayoutWindow is the minimum gap between two rank bonus credits.
const PayoutWindow = 7 * 24 * time.Hour

// AccountStore interface for account persistence
type AccountStore interface {
	ListActive(ctx context.Context) ([]*entities.Account, error)
	Update(ctx context.Context, account *entities.Account) error
}

// StakeStore interface for stake persistence
type StakeStore interface {
	GetByUserID(ctx context.Context, userID int64) (*entities.Stake, error)
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

// RateSource supplies the current SUI/USD rate.
type RateSource interface {
	Current(ctx context.Context) (decimal.Decimal, error)
}

// TxManager scopes a callback to one database transaction.
type TxManager interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service evaluates rank tiers and fires the weekly bonus.
type Service struct {
	accounts AccountStore
	stakes   StakeStore
	wallets  WalletStore
	activity ActivityStore
	rates    RateSource
	tx       TxManager
	logger   *logger.Logger
	now      func() time.Time
}

// NewService creates a rank service.
func NewService(accounts AccountStore, stakes StakeStore, wallets WalletStore, activity ActivityStore, rates RateSource, tx TxManager, log *logger.Logger) *Service {
	return &Service{
		accounts: accounts,
		stakes:   stakes,
		wallets:  wallets,
		activity: activity,
		rates:    rates,
		tx:       tx,
		logger:   log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Qualify returns the highest tier whose volume range, minimum deposit and
// minimum direct referral count are all satisfied, or nil when none is.
func Qualify(usdVolume, usdDeposit decimal.Decimal, directReferrals int) *entities.RankTier {
	var matched *entities.RankTier
	for i := range entities.RankTiers {
		tier := &entities.RankTiers[i]
		if usdVolume.LessThan(tier.MinVolume) {
			continue
		}
		if tier.MaxVolume != nil && usdVolume.GreaterThanOrEqual(*tier.MaxVolume) {
			continue
		}
		if usdDeposit.LessThan(tier.MinDeposit) {
			continue
		}
		if directReferrals < tier.MinReferrals {
			continue
		}
		matched = tier
	}
	return matched
}

// RunPass re-ranks every active account and credits due weekly bonuses. The
// pass is skipped entirely when no exchange rate is available, because a rank
// computed against a zero rate would demote everyone.
func (s *Service) RunPass(ctx context.Context) error {
	start := time.Now()
	defer func() {
		metrics.PassDuration.WithLabelValues("rank").Observe(time.Since(start).Seconds())
	}()

	rate, err := s.rates.Current(ctx)
	if err != nil {
		return fmt.Errorf("fetching SUI/USD rate: %w", err)
	}

	accounts, err := s.accounts.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("listing active accounts: %w", err)
	}

	for _, account := range accounts {
		account := account
		err := s.tx.InTx(ctx, func(ctx context.Context) error {
			return s.ReconcileAccount(ctx, account, rate)
		})
		if err != nil {
			metrics.AccountFailures.WithLabelValues("rank").Inc()
			s.logger.Error("Rank pass failed for account", "user_id", account.UserID, "error", err)
			continue
		}
		metrics.AccountsProcessed.WithLabelValues("rank").Inc()
	}
	return nil
}

// ReconcileAccount recomputes one account's rank and, when a tier holds and
// the 7-day window has elapsed, credits the weekly bonus. The stored payout
// timestamp is the sole anti-double-fire guard and advances in the same
// transaction as the credit.
func (s *Service) ReconcileAccount(ctx context.Context, account *entities.Account, rate decimal.Decimal) error {
	if !rate.IsPositive() {
		return fmt.Errorf("non-positive SUI/USD rate %s", rate)
	}

	deposit := decimal.Zero
	stake, err := s.stakes.GetByUserID(ctx, account.UserID)
	if err == nil {
		deposit = stake.Deposit
	} else if !apperrors.IsNotFound(err) {
		return fmt.Errorf("loading stake: %w", err)
	}

	usdVolume := account.TotalTeamVolume.Mul(rate)
	usdDeposit := deposit.Mul(rate)
	tier := Qualify(usdVolume, usdDeposit, account.TotalDirectReferrals)

	if tier == nil {
		if account.Rank != nil {
			account.Rank = nil
			if err := s.accounts.Update(ctx, account); err != nil {
				return fmt.Errorf("clearing rank: %w", err)
			}
		}
		return nil
	}

	now := s.now()
	due := account.LastRankPaidAt == nil || now.Sub(*account.LastRankPaidAt) >= PayoutWindow
	rankChanged := account.Rank == nil || *account.Rank != tier.Name

	if rankChanged {
		name := tier.Name
		account.Rank = &name
	}

	if due {
		bonus := tier.WeeklyBonus.Div(rate)
		wallet, err := s.wallets.GetByUserID(ctx, account.UserID)
		if err != nil {
			return fmt.Errorf("loading wallet: %w", err)
		}
		wallet.Earnings = wallet.Earnings.Add(bonus)
		wallet.TotalRankBonus = wallet.TotalRankBonus.Add(bonus)
		wallet.WeeklyRankEarnings = bonus
		if err := s.wallets.Update(ctx, wallet); err != nil {
			return fmt.Errorf("crediting rank bonus: %w", err)
		}

		account.LastRankPaidAt = &now

		amount := bonus
		if err := s.activity.Create(ctx, &entities.Activity{
			ID:        uuid.New(),
			UserID:    account.UserID,
			Type:      entities.ActivityRankBonus,
			Detail:    fmt.Sprintf("weekly %s rank bonus", tier.Name),
			Amount:    &amount,
			CreatedAt: now,
		}); err != nil {
			return fmt.Errorf("recording rank activity: %w", err)
		}
	}

	if rankChanged || due {
		if err := s.accounts.Update(ctx, account); err != nil {
			return fmt.Errorf("persisting rank: %w", err)
		}
	}
	return nil
}
