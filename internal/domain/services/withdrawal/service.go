// Package withdrawal implements the earnings payout flow: a 60/20/10/10
// split between an on-chain transfer, a stake re-deposit, the token meter and
// the matrix pool.
package withdrawal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/david-jerry/heroku-suibison/internal/adapters/sui"
	"github.com/david-jerry/heroku-suibison/internal/domain/entities"
	apperrors "github.com/david-jerry/heroku-suibison/internal/domain/errors"
	"github.com/david-jerry/heroku-suibison/pkg/logger"
)

// Split fractions. The pool share is computed as the remainder so the four
// routed amounts always sum exactly to the withdrawn earnings.
var (
	TransferShare = decimal.RequireFromString("0.60")
	RestakeShare  = decimal.RequireFromString("0.20")
	TokenShare    = decimal.RequireFromString("0.10")
)

// AccountStore interface for account persistence
type AccountStore interface {
	GetByID(ctx context.Context, userID int64) (*entities.Account, error)
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

// TokenMeterStore interface for the platform custodial wallet record
type TokenMeterStore interface {
	Get(ctx context.Context) (*entities.TokenMeter, error)
	Update(ctx context.Context, meter *entities.TokenMeter) error
}

// ActivityStore interface for activity persistence
type ActivityStore interface {
	Create(ctx context.Context, activity *entities.Activity) error
}

// ReferralPropagator distributes commissions and team volume up the tree.
type ReferralPropagator interface {
	Distribute(ctx context.Context, downlineID int64, amount decimal.Decimal) error
	AddTeamVolume(ctx context.Context, downlineID int64, amount decimal.Decimal) error
}

// PoolCoordinator receives the pool share of each withdrawal.
type PoolCoordinator interface {
	Contribute(ctx context.Context, amount decimal.Decimal) error
}

// TxManager scopes a callback to one database transaction.
type TxManager interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Result reports where a withdrawal went.
type Result struct {
	Transferred decimal.Decimal `json:"transferred"`
	Restaked    decimal.Decimal `json:"restaked"`
	TokenCredit decimal.Decimal `json:"token_credit"`
	PoolShare   decimal.Decimal `json:"pool_share"`
	Destination string          `json:"destination"`
	Digest      string          `json:"digest,omitempty"`
}

// Service runs the withdrawal flow.
type Service struct {
	accounts AccountStore
	wallets  WalletStore
	stakes   StakeStore
	meter    TokenMeterStore
	activity ActivityStore
	referral ReferralPropagator
	pool     PoolCoordinator
	gateway  sui.Gateway
	tx       TxManager
	minimum  decimal.Decimal
	logger   *logger.Logger
	now      func() time.Time
}

// NewService creates a withdrawal service.
func NewService(
	accounts AccountStore,
	wallets WalletStore,
	stakes StakeStore,
	meter TokenMeterStore,
	activity ActivityStore,
	referral ReferralPropagator,
	pool PoolCoordinator,
	gateway sui.Gateway,
	tx TxManager,
	minimum decimal.Decimal,
	log *logger.Logger,
) *Service {
	return &Service{
		accounts: accounts,
		wallets:  wallets,
		stakes:   stakes,
		meter:    meter,
		activity: activity,
		referral: referral,
		pool:     pool,
		gateway:  gateway,
		tx:       tx,
		minimum:  minimum,
		logger:   log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SplitEarnings computes the four routed amounts for earnings E. The pool
// share takes the remainder, so the parts sum to E exactly.
func SplitEarnings(earnings decimal.Decimal) (transfer, restake, token, pool decimal.Decimal) {
	transfer = earnings.Mul(TransferShare)
	restake = earnings.Mul(RestakeShare)
	token = earnings.Mul(TokenShare)
	pool = earnings.Sub(transfer).Sub(restake).Sub(token)
	return transfer, restake, token, pool
}

// Withdraw pays out the caller's full earnings balance. The 60% share goes
// on-chain to destination, the caller's own external wallet, never the
// platform-held custodial one. The transfer is attempted exactly once; a
// gateway failure aborts the whole operation and surfaces the raw gateway
// response. On success the ledger split commits atomically and earnings drop
// to zero.
func (s *Service) Withdraw(ctx context.Context, userID int64, destination string) (*Result, error) {
	if destination == "" {
		return nil, apperrors.ValidationError("address", "withdrawal address is required")
	}

	account, err := s.accounts.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading account %d: %w", userID, err)
	}
	if account.IsBlocked {
		return nil, apperrors.ErrUserBlocked
	}

	wallet, err := s.wallets.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading wallet of %d: %w", userID, err)
	}

	earnings := wallet.Earnings
	if earnings.LessThan(s.minimum) {
		return nil, apperrors.NewDomainError(apperrors.ErrInvalidInput, "BELOW_WITHDRAWAL_MINIMUM",
			fmt.Sprintf("earnings %s below withdrawal minimum %s", earnings, s.minimum))
	}

	meter, err := s.meter.Get(ctx)
	if err != nil {
		return nil, err
	}

	transfer, restake, token, poolShare := SplitEarnings(earnings)

	execResult, err := s.gateway.PaySui(ctx, meter.Address, meter.Phrase, destination, transfer)
	if err != nil {
		return nil, fmt.Errorf("on-chain transfer of %s to %s failed: %w", transfer, destination, err)
	}

	result := &Result{
		Transferred: transfer,
		Restaked:    restake,
		TokenCredit: token,
		PoolShare:   poolShare,
		Destination: destination,
		Digest:      execResult.Digest,
	}

	txErr := s.tx.InTx(ctx, func(ctx context.Context) error {
		return s.settle(ctx, account, wallet, meter, earnings, transfer, restake, token, poolShare)
	})
	if txErr != nil {
		s.logger.Error("Withdrawal ledger update failed after on-chain transfer",
			"user_id", userID,
			"digest", execResult.Digest,
			"amount", transfer.String(),
			"error", txErr)
		return nil, txErr
	}
	return result, nil
}

func (s *Service) settle(ctx context.Context, account *entities.Account, wallet *entities.Wallet, meter *entities.TokenMeter, earnings, transfer, restake, token, poolShare decimal.Decimal) error {
	now := s.now()

	wallet.Earnings = decimal.Zero
	wallet.WeeklyRankEarnings = decimal.Zero
	wallet.TotalWithdrawn = wallet.TotalWithdrawn.Add(transfer)
	if token.IsPositive() {
		if meter.Price.IsPositive() {
			wallet.TotalTokenPurchased = wallet.TotalTokenPurchased.Add(token.Div(meter.Price))
		} else {
			wallet.TotalTokenPurchased = wallet.TotalTokenPurchased.Add(token)
		}
	}
	if err := s.wallets.Update(ctx, wallet); err != nil {
		return fmt.Errorf("settling wallet: %w", err)
	}

	stake, err := s.stakes.GetByUserID(ctx, account.UserID)
	if err != nil {
		return fmt.Errorf("loading stake: %w", err)
	}
	stake.Deposit = stake.Deposit.Add(restake)
	if err := s.stakes.Update(ctx, stake); err != nil {
		return fmt.Errorf("re-staking: %w", err)
	}

	meter.TotalCollected = meter.TotalCollected.Add(token)
	if err := s.meter.Update(ctx, meter); err != nil {
		return fmt.Errorf("crediting token meter: %w", err)
	}

	if err := s.pool.Contribute(ctx, poolShare); err != nil {
		return fmt.Errorf("funding matrix pool: %w", err)
	}

	// The re-staked portion counts as new staked volume for the upline.
	if err := s.referral.Distribute(ctx, account.UserID, restake); err != nil {
		return fmt.Errorf("distributing referral bonus on restake: %w", err)
	}
	if err := s.referral.AddTeamVolume(ctx, account.UserID, restake); err != nil {
		return fmt.Errorf("propagating team volume on restake: %w", err)
	}

	amount := earnings
	if err := s.activity.Create(ctx, &entities.Activity{
		ID:        uuid.New(),
		UserID:    account.UserID,
		Type:      entities.ActivityWithdrawal,
		Detail:    fmt.Sprintf("withdrew %s SUI (%s transferred, %s restaked)", earnings, transfer, restake),
		Amount:    &amount,
		CreatedAt: now,
	}); err != nil {
		return fmt.Errorf("recording withdrawal activity: %w", err)
	}
	return nil
}
