package entities

import "github.com/shopspring/decimal"

// RankTier defines one rank: a half-open USD team-volume range, a minimum
// USD deposit, a minimum direct referral count and a weekly USD bonus.
// MaxVolume nil means unbounded.
type RankTier struct {
	Name         string
	MinVolume    decimal.Decimal
	MaxVolume    *decimal.Decimal
	MinDeposit   decimal.Decimal
	MinReferrals int
	WeeklyBonus  decimal.Decimal
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func dp(s string) *decimal.Decimal {
	v := decimal.RequireFromString(s)
	return &v
}

// RankTiers is ordered ascending; qualification picks the highest tier whose
// thresholds are all met.
var RankTiers = []RankTier{
	{Name: "Leader", MinVolume: d("1000"), MaxVolume: dp("5000"), MinDeposit: d("50"), MinReferrals: 3, WeeklyBonus: d("25")},
	{Name: "Bison King", MinVolume: d("5000"), MaxVolume: dp("20000"), MinDeposit: d("100"), MinReferrals: 5, WeeklyBonus: d("100")},
	{Name: "Bison Hon", MinVolume: d("20000"), MaxVolume: dp("100000"), MinDeposit: d("500"), MinReferrals: 10, WeeklyBonus: d("250")},
	{Name: "Accumulator", MinVolume: d("100000"), MaxVolume: dp("250000"), MinDeposit: d("2000"), MinReferrals: 10, WeeklyBonus: d("1000")},
	{Name: "Bison Diamond", MinVolume: d("250000"), MaxVolume: dp("500000"), MinDeposit: d("5000"), MinReferrals: 10, WeeklyBonus: d("3000")},
	{Name: "Bison Legend", MinVolume: d("500000"), MaxVolume: dp("1000000"), MinDeposit: d("10000"), MinReferrals: 10, WeeklyBonus: d("5000")},
	{Name: "Supreme Bison", MinVolume: d("1000000"), MaxVolume: nil, MinDeposit: d("150000"), MinReferrals: 10, WeeklyBonus: d("7000")},
}
