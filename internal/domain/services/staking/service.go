// Package staking implements the deposit flow: on-chain balance check,
// platform fee routing, stake crediting and the first-deposit side effects.
package staking

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
	"github.com/david-jerry/heroku-suibison/pkg/metrics"
)

// AccountStore interface for account persistence
type AccountStore interface {
	GetByID(ctx context.Context, userID int64) (*entities.Account, error)
	ListActive(ctx context.Context) ([]*entities.Account, error)
	Update(ctx context.Context, account *entities.Account) error
}

// WalletStore interface for wallet persistence
type WalletStore interface {
	GetByUserID(ctx context.Context, userID int64) (*entities.Wallet, error)
	Update(ctx context.Context, wallet *entities.Wallet) error
}

// StakeStore interface for stake persistence
type StakeStore interface {
	GetByUserID(ctx context.Context, userID int64) (*entities.Stake, error)
	Create(ctx context.Context, stake *entities.Stake) error
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

// PoolCoordinator registers qualifying deposits with the matrix pool.
type PoolCoordinator interface {
	RecordDeposit(ctx context.Context, account *entities.Account) error
}

// TxManager scopes a callback to one database transaction.
type TxManager interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Config carries the deposit flow tunables.
type Config struct {
	MinStakeAmount    decimal.Decimal
	DepositFeePercent decimal.Decimal
}

// Service runs the deposit flow.
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
	cfg      Config
	logger   *logger.Logger
	now      func() time.Time
}

// NewService creates a staking service.
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
	cfg Config,
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
		cfg:      cfg,
		logger:   log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Deposit stakes the full on-chain balance of the user's custodial wallet.
// The platform fee goes to the token meter and the remainder becomes stake
// principal; on a first qualifying deposit the pool membership and referral
// walks fire inside the same ledger transaction. The on-chain sweep to the
// platform wallet runs first; if the ledger transaction then fails, the
// transfer digest is logged for manual reconciliation.
func (s *Service) Deposit(ctx context.Context, userID int64) (*entities.Stake, error) {
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

	meter, err := s.meter.Get(ctx)
	if err != nil {
		return nil, err
	}

	balance, err := s.gateway.GetBalance(ctx, wallet.Address)
	if err != nil {
		return nil, fmt.Errorf("checking balance of %s: %w", wallet.Address, err)
	}
	if balance.LessThan(s.cfg.MinStakeAmount) {
		return nil, apperrors.NewDomainError(apperrors.ErrInvalidInput, "INVALID_STAKE_AMOUNT",
			fmt.Sprintf("balance %s below minimum stake %s", balance, s.cfg.MinStakeAmount))
	}

	fee := balance.Mul(s.cfg.DepositFeePercent)
	net := balance.Sub(fee)

	result, err := s.gateway.PayAllSui(ctx, wallet.Address, wallet.Phrase, meter.Address)
	if err != nil {
		return nil, fmt.Errorf("sweeping deposit of %d: %w", userID, err)
	}

	var stake *entities.Stake
	txErr := s.tx.InTx(ctx, func(ctx context.Context) error {
		stake, err = s.creditDeposit(ctx, account, wallet, meter, balance, fee, net)
		return err
	})
	if txErr != nil {
		s.logger.Error("Deposit ledger update failed after on-chain sweep",
			"user_id", userID,
			"digest", result.Digest,
			"amount", balance.String(),
			"error", txErr)
		return nil, txErr
	}
	return stake, nil
}

// RunSweepPass walks every active account and stakes any custodial balance
// that reaches the minimum. Sub-minimum balances are recorded on the wallet
// as pending until they grow past it. One account's failure never stops the
// pass.
func (s *Service) RunSweepPass(ctx context.Context) error {
	start := time.Now()
	defer func() {
		metrics.PassDuration.WithLabelValues("stake_sweep").Observe(time.Since(start).Seconds())
	}()

	accounts, err := s.accounts.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("listing active accounts: %w", err)
	}

	for _, account := range accounts {
		if err := s.sweepAccount(ctx, account.UserID); err != nil {
			metrics.AccountFailures.WithLabelValues("stake_sweep").Inc()
			s.logger.Error("Balance sweep failed for account", "user_id", account.UserID, "error", err)
			continue
		}
		metrics.AccountsProcessed.WithLabelValues("stake_sweep").Inc()
	}
	return nil
}

func (s *Service) sweepAccount(ctx context.Context, userID int64) error {
	wallet, err := s.wallets.GetByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("loading wallet: %w", err)
	}

	balance, err := s.gateway.GetBalance(ctx, wallet.Address)
	if err != nil {
		return fmt.Errorf("checking balance of %s: %w", wallet.Address, err)
	}

	if balance.LessThan(s.cfg.MinStakeAmount) {
		if !balance.Equal(wallet.PendingBalance) {
			wallet.PendingBalance = balance
			if err := s.wallets.Update(ctx, wallet); err != nil {
				return fmt.Errorf("recording pending balance: %w", err)
			}
		}
		return nil
	}

	_, err = s.Deposit(ctx, userID)
	return err
}

func (s *Service) creditDeposit(ctx context.Context, account *entities.Account, wallet *entities.Wallet, meter *entities.TokenMeter, gross, fee, net decimal.Decimal) (*entities.Stake, error) {
	now := s.now()

	meter.TotalCollected = meter.TotalCollected.Add(fee)
	if err := s.meter.Update(ctx, meter); err != nil {
		return nil, fmt.Errorf("routing platform fee: %w", err)
	}

	stake, err := s.stakes.GetByUserID(ctx, account.UserID)
	if apperrors.IsNotFound(err) {
		stake = &entities.Stake{
			ID:        uuid.New(),
			UserID:    account.UserID,
			Deposit:   decimal.Zero,
			ROI:       entities.ROIBase,
			CreatedAt: now,
		}
		if err := s.stakes.Create(ctx, stake); err != nil {
			return nil, fmt.Errorf("creating stake: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("loading stake: %w", err)
	}

	stake.Deposit = stake.Deposit.Add(net)
	if stake.StartedAt == nil {
		stake.StartedAt = &now
		stake.ROI = entities.ROIBase
		next := now.Add(entities.ROIIncreaseInterval)
		stake.NextROIIncreaseAt = &next
		stake.LastEarningAt = &now
	}
	if err := s.stakes.Update(ctx, stake); err != nil {
		return nil, fmt.Errorf("crediting stake: %w", err)
	}

	wallet.TotalDeposit = wallet.TotalDeposit.Add(gross)
	wallet.PendingBalance = decimal.Zero
	if err := s.wallets.Update(ctx, wallet); err != nil {
		return nil, fmt.Errorf("updating wallet totals: %w", err)
	}

	first := !account.HasDeposited
	if first {
		account.HasDeposited = true
		if err := s.accounts.Update(ctx, account); err != nil {
			return nil, fmt.Errorf("marking first deposit: %w", err)
		}
		if err := s.pool.RecordDeposit(ctx, account); err != nil {
			return nil, fmt.Errorf("registering pool membership: %w", err)
		}
	}

	if err := s.referral.Distribute(ctx, account.UserID, net); err != nil {
		return nil, fmt.Errorf("distributing referral bonus: %w", err)
	}
	if err := s.referral.AddTeamVolume(ctx, account.UserID, net); err != nil {
		return nil, fmt.Errorf("propagating team volume: %w", err)
	}

	amount := net
	if err := s.activity.Create(ctx, &entities.Activity{
		ID:        uuid.New(),
		UserID:    account.UserID,
		Type:      entities.ActivityDeposit,
		Detail:    fmt.Sprintf("staked %s SUI (%s fee)", net, fee),
		Amount:    &amount,
		CreatedAt: now,
	}); err != nil {
		return nil, fmt.Errorf("recording deposit activity: %w", err)
	}
	return stake, nil
}
