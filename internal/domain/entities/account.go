package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is a registered platform user. The referrer link is set once at
// registration and never changes; accounts are blocked, never deleted.
type Account struct {
	UserID                 int64           `db:"user_id" json:"user_id"`
	FirstName              *string         `db:"first_name" json:"first_name,omitempty"`
	LastName               *string         `db:"last_name" json:"last_name,omitempty"`
	ReferrerID             *int64          `db:"referrer_id" json:"referrer_id,omitempty"`
	Rank                   *string         `db:"rank" json:"rank,omitempty"`
	IsBlocked              bool            `db:"is_blocked" json:"is_blocked"`
	IsAdmin                bool            `db:"is_admin" json:"is_admin"`
	HasDeposited           bool            `db:"has_deposited" json:"has_deposited"`
	SpeedBoostUsed         bool            `db:"speed_boost_used" json:"speed_boost_used"`
	TotalDirectReferrals   int             `db:"total_direct_referrals" json:"total_direct_referrals"`
	TotalIndirectReferrals int             `db:"total_indirect_referrals" json:"total_indirect_referrals"`
	TotalTeamVolume        decimal.Decimal `db:"total_team_volume" json:"total_team_volume"`
	Joined                 time.Time       `db:"joined" json:"joined"`
	UpdatedAt              time.Time       `db:"updated_at" json:"updated_at"`
	LastRankPaidAt         *time.Time      `db:"last_rank_paid_at" json:"last_rank_paid_at,omitempty"`
}

// DisplayName falls back to the numeric id when no name was provided.
func (a *Account) DisplayName() string {
	if a.FirstName != nil && *a.FirstName != "" {
		return *a.FirstName
	}
	if a.LastName != nil && *a.LastName != "" {
		return *a.LastName
	}
	return ""
}

// AccountUpdate carries an explicit partial update for an account profile.
// Nil fields are left untouched by Apply.
type AccountUpdate struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
}

// Apply merges the non-nil fields into the account.
func (u AccountUpdate) Apply(a *Account) {
	if u.FirstName != nil {
		a.FirstName = u.FirstName
	}
	if u.LastName != nil {
		a.LastName = u.LastName
	}
}
