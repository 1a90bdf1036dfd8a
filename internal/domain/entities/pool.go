package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PoolWindow is the lifetime of one matrix pool.
const PoolWindow = 7 * 24 * time.Hour

// Pool is the rotating matrix bonus pool. At most one pool may be open
// (EndsAt in the future and not yet paid out) at any time; the partial
// unique index in the schema enforces this.
type Pool struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	RaisedAmount decimal.Decimal `db:"raised_amount" json:"raised_amount"`
	StartsAt     time.Time       `db:"starts_at" json:"starts_at"`
	EndsAt       time.Time       `db:"ends_at" json:"ends_at"`
	PaidOut      bool            `db:"paid_out" json:"paid_out"`
}

// PoolMember is one account's participation in a pool. Share and Earning are
// computed lazily at payout time; Position is assigned in the same pass.
type PoolMember struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	PoolID         uuid.UUID       `db:"pool_id" json:"pool_id"`
	UserID         int64           `db:"user_id" json:"user_id"`
	Name           *string         `db:"name" json:"name,omitempty"`
	ReferralsAdded int             `db:"referrals_added" json:"referrals_added"`
	Share          decimal.Decimal `db:"share" json:"share"`
	Earning        decimal.Decimal `db:"earning" json:"earning"`
	Position       int             `db:"position" json:"position"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}
