package sui

import (
	"context"

	"github.com/shopspring/decimal"
)

// Gateway is the chain-facing surface the ledger services depend on.
// Amounts on this interface are whole SUI; scaling to base units happens
// exactly once, inside the implementation.
type Gateway interface {
	// GetBalance returns the spendable SUI balance of address.
	GetBalance(ctx context.Context, address string) (decimal.Decimal, error)

	// GetCoins lists the SUI coin objects owned by address.
	GetCoins(ctx context.Context, address string) ([]Coin, error)

	// PaySui transfers amount from the owner wallet to recipient.
	PaySui(ctx context.Context, ownerAddress, ownerPhrase, recipient string, amount decimal.Decimal) (*ExecuteResult, error)

	// PayAllSui sweeps the owner wallet's entire balance to recipient.
	PayAllSui(ctx context.Context, ownerAddress, ownerPhrase, recipient string) (*ExecuteResult, error)
}
