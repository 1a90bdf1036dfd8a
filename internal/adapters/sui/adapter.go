package sui

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MistPerSui is the number of base units (MIST) in one SUI.
var MistPerSui = decimal.New(1, 9)

// ToBaseUnits converts a whole-SUI amount to an integer MIST string. Amounts
// with more than nine decimal places round up so a transfer never under-pays.
func ToBaseUnits(amount decimal.Decimal) string {
	return amount.RoundUp(9).Shift(9).String()
}

// FromBaseUnits converts an integer MIST string back to whole SUI.
func FromBaseUnits(mist string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(mist)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing base units %q: %w", mist, err)
	}
	return d.Shift(-9), nil
}
