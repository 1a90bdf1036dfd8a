package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ROI schedule constants. The rate climbs from the base in fixed steps until
// the ceiling, after which the position runs a fixed maturity countdown.
var (
	ROIBase    = decimal.RequireFromString("0.01")
	ROIStep    = decimal.RequireFromString("0.005")
	ROICeiling = decimal.RequireFromString("0.04")
)

const (
	// ROIIncreaseInterval is the wait between two ROI steps.
	ROIIncreaseInterval = 5 * 24 * time.Hour
	// StakeMaturityPeriod is the countdown started once the ceiling is hit.
	StakeMaturityPeriod = 100 * 24 * time.Hour
	// EarningInterval is the minimum gap between two interest credits.
	EarningInterval = 24 * time.Hour
)

// Stake is the single staking position attached to an account's wallet.
// A nil StartedAt means the account never staked; a nil EndingAt means the
// position has not entered its maturity countdown.
type Stake struct {
	ID                uuid.UUID       `db:"id" json:"id"`
	UserID            int64           `db:"user_id" json:"user_id"`
	Deposit           decimal.Decimal `db:"deposit" json:"deposit"`
	ROI               decimal.Decimal `db:"roi" json:"roi"`
	StartedAt         *time.Time      `db:"started_at" json:"started_at,omitempty"`
	NextROIIncreaseAt *time.Time      `db:"next_roi_increase_at" json:"next_roi_increase_at,omitempty"`
	EndingAt          *time.Time      `db:"ending_at" json:"ending_at,omitempty"`
	LastEarningAt     *time.Time      `db:"last_earning_at" json:"last_earning_at,omitempty"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
}

// Active reports whether the position is accruing interest.
func (s *Stake) Active() bool {
	return s.StartedAt != nil && s.Deposit.IsPositive()
}
