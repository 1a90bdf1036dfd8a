package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ActivityType classifies a ledger-affecting event.
type ActivityType string

const (
	ActivityWelcome       ActivityType = "welcome"
	ActivityDeposit       ActivityType = "deposit"
	ActivityWithdrawal    ActivityType = "withdrawal"
	ActivityReferralBonus ActivityType = "referral_bonus"
	ActivityRankBonus     ActivityType = "rank_bonus"
	ActivityFastBonus     ActivityType = "fast_bonus"
	ActivitySpeedBoost    ActivityType = "speed_boost"
	ActivityPoolPayout    ActivityType = "pool_payout"
)

// Activity is an append-only audit record. Rows are never updated or
// deleted.
type Activity struct {
	ID        uuid.UUID        `db:"id" json:"id"`
	UserID    int64            `db:"user_id" json:"user_id"`
	Type      ActivityType     `db:"type" json:"type"`
	Detail    string           `db:"detail" json:"detail"`
	Amount    *decimal.Decimal `db:"amount" json:"amount,omitempty"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}
