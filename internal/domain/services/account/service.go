// Package account implements registration, the referral tree view, profile
// updates and the admin surface over accounts.
package account

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/david-jerry/heroku-suibison/internal/domain/entities"
	apperrors "github.com/david-jerry/heroku-suibison/internal/domain/errors"
	"github.com/david-jerry/heroku-suibison/pkg/logger"
)

// AccountStore interface for account persistence
type AccountStore interface {
	Create(ctx context.Context, account *entities.Account) error
	GetByID(ctx context.Context, userID int64) (*entities.Account, error)
	Update(ctx context.Context, account *entities.Account) error
	SetBlocked(ctx context.Context, userID int64, blocked bool) error
	AverageDailyReferrals(ctx context.Context) (float64, error)
}

// WalletStore interface for wallet persistence
type WalletStore interface {
	Create(ctx context.Context, wallet *entities.Wallet) error
	GetByUserID(ctx context.Context, userID int64) (*entities.Wallet, error)
}

// StakeStore interface for stake persistence
type StakeStore interface {
	GetByUserID(ctx context.Context, userID int64) (*entities.Stake, error)
	SumDeposits(ctx context.Context) (decimal.Decimal, error)
}

// EdgeStore interface for referral edge persistence
type EdgeStore interface {
	ListDirectDownlines(ctx context.Context, uplineID int64) ([]*entities.ReferralEdge, error)
}

// PoolStore interface for pool aggregates
type PoolStore interface {
	SumRaised(ctx context.Context) (decimal.Decimal, error)
}

// ActivityStore interface for activity persistence
type ActivityStore interface {
	Create(ctx context.Context, activity *entities.Activity) error
	ListByUser(ctx context.Context, userID int64, limit int) ([]*entities.Activity, error)
}

// ReferralLinker creates the upline edges for a new account.
type ReferralLinker interface {
	LinkReferrer(ctx context.Context, downline *entities.Account, referrerID int64) error
}

// TxManager scopes a callback to one database transaction.
type TxManager interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// RegisterInput carries everything needed to create an account.
type RegisterInput struct {
	UserID        int64
	FirstName     *string
	LastName      *string
	ReferrerID    *int64
	WalletAddress string
	WalletPhrase  string
}

// TreeNode is one account in the referral tree view.
type TreeNode struct {
	UserID          int64           `json:"user_id"`
	Name            string          `json:"name,omitempty"`
	Rank            *string         `json:"rank,omitempty"`
	DirectReferrals int             `json:"direct_referrals"`
	TeamVolume      decimal.Decimal `json:"team_volume"`
	Children        []*TreeNode     `json:"children,omitempty"`
}

// UserView bundles the account, its balances and its downline tree.
type UserView struct {
	Account *entities.Account `json:"account"`
	Wallet  *entities.Wallet  `json:"wallet"`
	Stake   *entities.Stake   `json:"stake,omitempty"`
	Tree    *TreeNode         `json:"referral_tree"`
}

// Stats is the admin platform overview.
type Stats struct {
	TotalStaked           decimal.Decimal `json:"total_staked"`
	PoolRaised            decimal.Decimal `json:"pool_raised"`
	AverageDailyReferrals float64         `json:"average_daily_referrals"`
}

// Service manages accounts.
type Service struct {
	accounts AccountStore
	wallets  WalletStore
	stakes   StakeStore
	edges    EdgeStore
	pools    PoolStore
	activity ActivityStore
	referral ReferralLinker
	tx       TxManager
	logger   *logger.Logger
}

// NewService creates an account service.
func NewService(accounts AccountStore, wallets WalletStore, stakes StakeStore, edges EdgeStore, pools PoolStore, activity ActivityStore, referral ReferralLinker, tx TxManager, log *logger.Logger) *Service {
	return &Service{
		accounts: accounts,
		wallets:  wallets,
		stakes:   stakes,
		edges:    edges,
		pools:    pools,
		activity: activity,
		referral: referral,
		tx:       tx,
		logger:   log,
	}
}

// Register creates the account, its wallet and the upline edges in one
// transaction. The referrer link is fixed here and never changes afterwards.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*entities.Account, error) {
	if input.ReferrerID != nil {
		if _, err := s.accounts.GetByID(ctx, *input.ReferrerID); err != nil {
			if apperrors.IsNotFound(err) {
				return nil, apperrors.ErrMissingReferrer
			}
			return nil, fmt.Errorf("checking referrer %d: %w", *input.ReferrerID, err)
		}
	}

	now := time.Now().UTC()
	account := &entities.Account{
		UserID:     input.UserID,
		FirstName:  input.FirstName,
		LastName:   input.LastName,
		ReferrerID: input.ReferrerID,
		Joined:     now,
		UpdatedAt:  now,
	}

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.accounts.Create(ctx, account); err != nil {
			return fmt.Errorf("creating account %d: %w", input.UserID, err)
		}

		wallet := &entities.Wallet{
			Address:   input.WalletAddress,
			Phrase:    input.WalletPhrase,
			UserID:    input.UserID,
			CreatedAt: now,
		}
		if err := s.wallets.Create(ctx, wallet); err != nil {
			return fmt.Errorf("creating wallet for %d: %w", input.UserID, err)
		}

		if input.ReferrerID != nil {
			if err := s.referral.LinkReferrer(ctx, account, *input.ReferrerID); err != nil {
				return err
			}
		}

		if err := s.activity.Create(ctx, &entities.Activity{
			ID:        uuid.New(),
			UserID:    input.UserID,
			Type:      entities.ActivityWelcome,
			Detail:    "welcome to the platform",
			CreatedAt: now,
		}); err != nil {
			return fmt.Errorf("recording welcome activity: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Registered account", "user_id", account.UserID, "referrer_id", input.ReferrerID)
	return account, nil
}

// GetUser returns the account with its balances and downline tree.
func (s *Service) GetUser(ctx context.Context, userID int64) (*UserView, error) {
	account, err := s.accounts.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading account %d: %w", userID, err)
	}

	wallet, err := s.wallets.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading wallet of %d: %w", userID, err)
	}

	view := &UserView{Account: account, Wallet: wallet}

	stake, err := s.stakes.GetByUserID(ctx, userID)
	if err == nil {
		view.Stake = stake
	} else if !apperrors.IsNotFound(err) {
		return nil, fmt.Errorf("loading stake of %d: %w", userID, err)
	}

	view.Tree, err = s.buildTree(ctx, account, entities.ReferralBonusDepth)
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *Service) buildTree(ctx context.Context, account *entities.Account, depth int) (*TreeNode, error) {
	node := &TreeNode{
		UserID:          account.UserID,
		Name:            account.DisplayName(),
		Rank:            account.Rank,
		DirectReferrals: account.TotalDirectReferrals,
		TeamVolume:      account.TotalTeamVolume,
	}
	if depth == 0 {
		return node, nil
	}

	edges, err := s.edges.ListDirectDownlines(ctx, account.UserID)
	if err != nil {
		return nil, fmt.Errorf("listing downlines of %d: %w", account.UserID, err)
	}
	for _, edge := range edges {
		child, err := s.accounts.GetByID(ctx, edge.DownlineID)
		if err != nil {
			return nil, fmt.Errorf("loading downline %d: %w", edge.DownlineID, err)
		}
		childNode, err := s.buildTree(ctx, child, depth-1)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, childNode)
	}
	return node, nil
}

// UpdateProfile merges the non-nil fields of update into the account.
func (s *Service) UpdateProfile(ctx context.Context, userID int64, update entities.AccountUpdate) (*entities.Account, error) {
	account, err := s.accounts.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading account %d: %w", userID, err)
	}
	if account.IsBlocked {
		return nil, apperrors.ErrUserBlocked
	}

	update.Apply(account)
	if err := s.accounts.Update(ctx, account); err != nil {
		return nil, fmt.Errorf("updating account %d: %w", userID, err)
	}
	return account, nil
}

// SetBlocked soft-blocks or unblocks an account (admin surface).
func (s *Service) SetBlocked(ctx context.Context, userID int64, blocked bool) error {
	if err := s.accounts.SetBlocked(ctx, userID, blocked); err != nil {
		return fmt.Errorf("setting blocked=%v on %d: %w", blocked, userID, err)
	}
	s.logger.Info("Account block flag changed", "user_id", userID, "blocked", blocked)
	return nil
}

// Activities lists the newest ledger events for an account.
func (s *Service) Activities(ctx context.Context, userID int64, limit int) ([]*entities.Activity, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.activity.ListByUser(ctx, userID, limit)
}

// PlatformStats aggregates the admin overview.
func (s *Service) PlatformStats(ctx context.Context) (*Stats, error) {
	staked, err := s.stakes.SumDeposits(ctx)
	if err != nil {
		return nil, fmt.Errorf("summing stakes: %w", err)
	}
	raised, err := s.pools.SumRaised(ctx)
	if err != nil {
		return nil, fmt.Errorf("summing pools: %w", err)
	}
	avg, err := s.accounts.AverageDailyReferrals(ctx)
	if err != nil {
		return nil, fmt.Errorf("averaging referrals: %w", err)
	}
	return &Stats{
		TotalStaked:           staked,
		PoolRaised:            raised,
		AverageDailyReferrals: avg,
	}, nil
}
