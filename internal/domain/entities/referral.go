package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	// ReferralBonusDepth is how far up the chain commissions are paid.
	ReferralBonusDepth = 5
	// TeamVolumeDepth caps the lineage walk that aggregates team volume.
	TeamVolumeDepth = 20
)

// ReferralBonusPercent maps an upline level to its commission fraction.
// Level 1 earns 10% of the referred amount, tapering to 1% at level 5.
var ReferralBonusPercent = map[int]decimal.Decimal{
	1: decimal.RequireFromString("0.10"),
	2: decimal.RequireFromString("0.05"),
	3: decimal.RequireFromString("0.03"),
	4: decimal.RequireFromString("0.02"),
	5: decimal.RequireFromString("0.01"),
}

// ReferralEdge links an upline account to a downline account at a fixed tree
// distance. The level never changes after creation; Stake and Reward
// accumulate the volume and commission attributed through the edge.
type ReferralEdge struct {
	ID         uuid.UUID       `db:"id" json:"id"`
	UplineID   int64           `db:"upline_id" json:"upline_id"`
	DownlineID int64           `db:"downline_id" json:"downline_id"`
	Level      int             `db:"level" json:"level"`
	Stake      decimal.Decimal `db:"stake" json:"stake"`
	Reward     decimal.Decimal `db:"reward" json:"reward"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}
