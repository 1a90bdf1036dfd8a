package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet holds all balances for one account. Every credit or debit is paired
// with an Activity row; Earnings never goes below zero.
type Wallet struct {
	Address               string          `db:"address" json:"address"`
	Phrase                string          `db:"phrase" json:"-"`
	UserID                int64           `db:"user_id" json:"user_id"`
	Earnings              decimal.Decimal `db:"earnings" json:"earnings"`
	PendingBalance        decimal.Decimal `db:"pending_balance" json:"pending_balance"`
	WeeklyRankEarnings    decimal.Decimal `db:"weekly_rank_earnings" json:"weekly_rank_earnings"`
	TotalDeposit          decimal.Decimal `db:"total_deposit" json:"total_deposit"`
	TotalWithdrawn        decimal.Decimal `db:"total_withdrawn" json:"total_withdrawn"`
	TotalReferralEarnings decimal.Decimal `db:"total_referral_earnings" json:"total_referral_earnings"`
	TotalRankBonus        decimal.Decimal `db:"total_rank_bonus" json:"total_rank_bonus"`
	TotalTokenPurchased   decimal.Decimal `db:"total_token_purchased" json:"total_token_purchased"`
	TotalFastBonus        decimal.Decimal `db:"total_fast_bonus" json:"total_fast_bonus"`
	CreatedAt             time.Time       `db:"created_at" json:"created_at"`
}
