// Package referral implements the multi-level commission propagator, the
// team-volume walk and the one-time incentive rules that hang off the
// referral tree.
package referral

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
	GetByID(ctx context.Context, userID int64) (*entities.Account, error)
	ListActive(ctx context.Context) ([]*entities.Account, error)
	Update(ctx context.Context, account *entities.Account) error
	AddTeamVolume(ctx context.Context, userID int64, amount decimal.Decimal) error
}

// WalletStore interface for wallet persistence
type WalletStore interface {
	GetByUserID(ctx context.Context, userID int64) (*entities.Wallet, error)
	Update(ctx context.Context, wallet *entities.Wallet) error
}

// StakeStore interface for stake persistence
type StakeStore interface {
	GetByUserID(ctx context.Context, userID int64) (*entities.Stake, error)
	Update(ctx context.Context, stake *entities.Stake) error
}

// EdgeStore interface for referral edge persistence
type EdgeStore interface {
	Create(ctx context.Context, edge *entities.ReferralEdge) error
	GetEdge(ctx context.Context, uplineID, downlineID int64, level int) (*entities.ReferralEdge, error)
	ListDirectDownlines(ctx context.Context, uplineID int64) ([]*entities.ReferralEdge, error)
	AddAttribution(ctx context.Context, edgeID uuid.UUID, stake, reward decimal.Decimal) error
	SumDirectDownlineStakes(ctx context.Context, uplineID int64) (decimal.Decimal, error)
}

// ActivityStore interface for activity persistence
type ActivityStore interface {
	Create(ctx context.Context, activity *entities.Activity) error
}

// TxManager scopes a callback to one database transaction.
type TxManager interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// SpeedBoostStep is the one-time ROI increment granted by the speed boost.
var SpeedBoostStep = decimal.RequireFromString("0.005")

// FastBonusAmount is the one-time credit for fast team builders.
var FastBonusAmount = decimal.NewFromInt(1)

// FastBonusWindow bounds how long after joining the fast bonus can fire.
const FastBonusWindow = 24 * time.Hour

// Service walks the referral tree and applies its money rules.
type Service struct {
	accounts AccountStore
	wallets  WalletStore
	stakes   StakeStore
	edges    EdgeStore
	activity ActivityStore
	tx       TxManager
	logger   *logger.Logger
}

// NewService creates a referral service.
func NewService(accounts AccountStore, wallets WalletStore, stakes StakeStore, edges EdgeStore, activity ActivityStore, tx TxManager, log *logger.Logger) *Service {
	return &Service{
		accounts: accounts,
		wallets:  wallets,
		stakes:   stakes,
		edges:    edges,
		activity: activity,
		tx:       tx,
		logger:   log,
	}
}

// LinkReferrer creates the upline edges for a newly registered account: one
// edge per ancestor up to the bonus depth, each pinned to its tree distance.
// The walk refuses to close a loop.
func (s *Service) LinkReferrer(ctx context.Context, downline *entities.Account, referrerID int64) error {
	if downline.UserID == referrerID {
		return apperrors.ErrReferralCycle
	}

	seen := map[int64]bool{downline.UserID: true}
	uplineID := referrerID

	for level := 1; level <= entities.ReferralBonusDepth; level++ {
		if seen[uplineID] {
			return apperrors.ErrReferralCycle
		}
		seen[uplineID] = true

		upline, err := s.accounts.GetByID(ctx, uplineID)
		if err != nil {
			if apperrors.IsNotFound(err) && level == 1 {
				return apperrors.ErrMissingReferrer
			}
			return fmt.Errorf("loading upline %d at level %d: %w", uplineID, level, err)
		}

		edge := &entities.ReferralEdge{
			ID:         uuid.New(),
			UplineID:   upline.UserID,
			DownlineID: downline.UserID,
			Level:      level,
			Stake:      decimal.Zero,
			Reward:     decimal.Zero,
			CreatedAt:  time.Now().UTC(),
		}
		if err := s.edges.Create(ctx, edge); err != nil {
			return fmt.Errorf("creating level %d edge %d->%d: %w", level, upline.UserID, downline.UserID, err)
		}

		if level == 1 {
			upline.TotalDirectReferrals++
		} else {
			upline.TotalIndirectReferrals++
		}
		if err := s.accounts.Update(ctx, upline); err != nil {
			return fmt.Errorf("updating upline %d counters: %w", upline.UserID, err)
		}

		if upline.ReferrerID == nil {
			return nil
		}
		uplineID = *upline.ReferrerID
	}
	return nil
}

// Distribute pays the level-indexed commission on amount up the chain of the
// given downline. A missing or mislevelled edge aborts the whole distribution;
// a chain shorter than the bonus depth ends it cleanly.
func (s *Service) Distribute(ctx context.Context, downlineID int64, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return nil
	}

	origin, err := s.accounts.GetByID(ctx, downlineID)
	if err != nil {
		return fmt.Errorf("loading depositing account %d: %w", downlineID, err)
	}

	current := origin
	for level := 1; level <= entities.ReferralBonusDepth; level++ {
		if current.ReferrerID == nil {
			return nil
		}
		uplineID := *current.ReferrerID

		edge, err := s.edges.GetEdge(ctx, uplineID, origin.UserID, level)
		if err != nil {
			if apperrors.IsIntegrity(err) {
				return fmt.Errorf("upline %d of %d at level %d: %w", uplineID, origin.UserID, level, err)
			}
			return fmt.Errorf("loading edge %d->%d level %d: %w", uplineID, origin.UserID, level, err)
		}

		bonus := amount.Mul(entities.ReferralBonusPercent[level])

		wallet, err := s.wallets.GetByUserID(ctx, uplineID)
		if err != nil {
			return fmt.Errorf("loading wallet of upline %d: %w", uplineID, err)
		}
		wallet.Earnings = wallet.Earnings.Add(bonus)
		wallet.TotalReferralEarnings = wallet.TotalReferralEarnings.Add(bonus)
		if err := s.wallets.Update(ctx, wallet); err != nil {
			return fmt.Errorf("crediting upline %d: %w", uplineID, err)
		}

		if err := s.edges.AddAttribution(ctx, edge.ID, amount, bonus); err != nil {
			return fmt.Errorf("attributing volume to edge %s: %w", edge.ID, err)
		}

		if err := s.recordActivity(ctx, uplineID, entities.ActivityReferralBonus, fmt.Sprintf("level %d referral bonus from %d", level, origin.UserID), bonus); err != nil {
			return err
		}

		current, err = s.accounts.GetByID(ctx, uplineID)
		if err != nil {
			return fmt.Errorf("loading upline %d: %w", uplineID, err)
		}
	}
	return nil
}

// AddTeamVolume adds the raw amount to every ancestor's team volume, up to
// the lineage depth cap. Independent of the commission walk.
func (s *Service) AddTeamVolume(ctx context.Context, downlineID int64, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return nil
	}

	current, err := s.accounts.GetByID(ctx, downlineID)
	if err != nil {
		return fmt.Errorf("loading account %d: %w", downlineID, err)
	}

	seen := map[int64]bool{current.UserID: true}
	for depth := 1; depth <= entities.TeamVolumeDepth; depth++ {
		if current.ReferrerID == nil {
			return nil
		}
		uplineID := *current.ReferrerID
		if seen[uplineID] {
			return apperrors.ErrReferralCycle
		}
		seen[uplineID] = true

		if err := s.accounts.AddTeamVolume(ctx, uplineID, amount); err != nil {
			return fmt.Errorf("adding team volume to %d: %w", uplineID, err)
		}

		current, err = s.accounts.GetByID(ctx, uplineID)
		if err != nil {
			return fmt.Errorf("loading upline %d: %w", uplineID, err)
		}
	}
	return nil
}

// ApplySpeedBoost grants the one-time ROI bump when the direct downline
// staked volume reaches twice the account's own deposit. Returns whether the
// boost fired.
func (s *Service) ApplySpeedBoost(ctx context.Context, account *entities.Account) (bool, error) {
	if account.SpeedBoostUsed {
		return false, nil
	}

	stake, err := s.stakes.GetByUserID(ctx, account.UserID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("loading stake of %d: %w", account.UserID, err)
	}
	if !stake.Active() || stake.ROI.GreaterThanOrEqual(entities.ROICeiling) {
		return false, nil
	}

	directVolume, err := s.edges.SumDirectDownlineStakes(ctx, account.UserID)
	if err != nil {
		return false, fmt.Errorf("summing direct downline stakes of %d: %w", account.UserID, err)
	}
	if directVolume.LessThan(stake.Deposit.Mul(decimal.NewFromInt(2))) {
		return false, nil
	}

	stake.ROI = stake.ROI.Add(SpeedBoostStep)
	if stake.ROI.GreaterThan(entities.ROICeiling) {
		stake.ROI = entities.ROICeiling
	}
	if err := s.stakes.Update(ctx, stake); err != nil {
		return false, fmt.Errorf("bumping ROI of %d: %w", account.UserID, err)
	}

	account.SpeedBoostUsed = true
	if err := s.accounts.Update(ctx, account); err != nil {
		return false, fmt.Errorf("marking speed boost of %d: %w", account.UserID, err)
	}

	if err := s.recordActivity(ctx, account.UserID, entities.ActivitySpeedBoost, "speed boost ROI increase", SpeedBoostStep); err != nil {
		return false, err
	}
	return true, nil
}

// ApplyFastBonus credits the one-time fast bonus to an account that built two
// funded direct referrals within a day of joining. Returns whether it fired.
func (s *Service) ApplyFastBonus(ctx context.Context, account *entities.Account) (bool, error) {
	if !account.HasDeposited {
		return false, nil
	}
	if time.Since(account.Joined) > FastBonusWindow {
		return false, nil
	}

	wallet, err := s.wallets.GetByUserID(ctx, account.UserID)
	if err != nil {
		return false, fmt.Errorf("loading wallet of %d: %w", account.UserID, err)
	}
	if wallet.TotalFastBonus.IsPositive() {
		return false, nil
	}

	directEdges, err := s.edges.ListDirectDownlines(ctx, account.UserID)
	if err != nil {
		return false, fmt.Errorf("listing direct downlines of %d: %w", account.UserID, err)
	}
	funded := 0
	for _, edge := range directEdges {
		if edge.Stake.GreaterThanOrEqual(FastBonusAmount) {
			funded++
		}
	}
	if funded < 2 {
		return false, nil
	}

	stake, err := s.stakes.GetByUserID(ctx, account.UserID)
	if err != nil {
		return false, fmt.Errorf("loading stake of %d: %w", account.UserID, err)
	}
	stake.Deposit = stake.Deposit.Add(FastBonusAmount)
	if err := s.stakes.Update(ctx, stake); err != nil {
		return false, fmt.Errorf("crediting fast bonus stake of %d: %w", account.UserID, err)
	}

	wallet.TotalFastBonus = wallet.TotalFastBonus.Add(FastBonusAmount)
	if err := s.wallets.Update(ctx, wallet); err != nil {
		return false, fmt.Errorf("crediting fast bonus wallet of %d: %w", account.UserID, err)
	}

	if err := s.recordActivity(ctx, account.UserID, entities.ActivityFastBonus, "fast bonus for two funded direct referrals", FastBonusAmount); err != nil {
		return false, err
	}
	return true, nil
}

// RunIncentivePass applies the fast bonus and speed boost to every active
// account, one transaction per account so a failure never aborts the pass.
func (s *Service) RunIncentivePass(ctx context.Context) error {
	start := time.Now()
	defer func() {
		metrics.PassDuration.WithLabelValues("incentive").Observe(time.Since(start).Seconds())
	}()

	accounts, err := s.accounts.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("listing active accounts: %w", err)
	}

	for _, account := range accounts {
		account := account
		err := s.tx.InTx(ctx, func(ctx context.Context) error {
			if _, err := s.ApplyFastBonus(ctx, account); err != nil {
				return err
			}
			_, err := s.ApplySpeedBoost(ctx, account)
			return err
		})
		if err != nil {
			metrics.AccountFailures.WithLabelValues("incentive").Inc()
			s.logger.Error("Incentive pass failed for account", "user_id", account.UserID, "error", err)
			continue
		}
		metrics.AccountsProcessed.WithLabelValues("incentive").Inc()
	}
	return nil
}

func (s *Service) recordActivity(ctx context.Context, userID int64, kind entities.ActivityType, detail string, amount decimal.Decimal) error {
	if err := s.activity.Create(ctx, &entities.Activity{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      kind,
		Detail:    detail,
		Amount:    &amount,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		return fmt.Errorf("recording %s activity for %d: %w", kind, userID, err)
	}
	return nil
}
