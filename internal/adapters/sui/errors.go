package sui

import "errors"

var (
	// ErrGatewayUnreachable means the node or wallet service could not be
	// reached or answered with a server-side failure. Safe to retry.
	ErrGatewayUnreachable = errors.New("sui gateway unreachable")

	// ErrGatewayRejected means the gateway understood the request and
	// refused it. Retrying the same request will not help.
	ErrGatewayRejected = errors.New("sui gateway rejected request")

	// ErrInsufficientCoins means the owner address holds no spendable coin
	// objects for the requested transfer.
	ErrInsufficientCoins = errors.New("no spendable coins for transfer")
)

// IsRetryable reports whether err is worth another attempt against the
// gateway.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrGatewayUnreachable)
}
