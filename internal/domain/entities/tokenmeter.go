package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TokenMeter is the singleton record of the platform custodial wallet and
// the running token-sale tally. At most one row exists.
type TokenMeter struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	Address        string          `db:"address" json:"address"`
	Phrase         string          `db:"phrase" json:"-"`
	TotalCollected decimal.Decimal `db:"total_collected" json:"total_collected"`
	TotalCap       decimal.Decimal `db:"total_cap" json:"total_cap"`
	Price          decimal.Decimal `db:"price" json:"price"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// TokenMeterUpdate is an explicit partial update; nil fields are untouched.
type TokenMeterUpdate struct {
	Address  *string          `json:"address,omitempty"`
	TotalCap *decimal.Decimal `json:"total_cap,omitempty"`
	Price    *decimal.Decimal `json:"price,omitempty"`
}

// Apply merges the non-nil fields into the meter.
func (u TokenMeterUpdate) Apply(m *TokenMeter) {
	if u.Address != nil {
		m.Address = *u.Address
	}
	if u.TotalCap != nil {
		m.TotalCap = *u.TotalCap
	}
	if u.Price != nil {
		m.Price = *u.Price
	}
}
