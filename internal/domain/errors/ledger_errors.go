package errors

// Ledger-specific sentinels surfaced by the staking, withdrawal and batch
// engines.
var (
	// ErrUserBlocked indicates the account is blocked from all operations
	ErrUserBlocked = NewDomainError(ErrInvalidInput, "USER_BLOCKED", "account is blocked")

	// ErrInsufficientBalance indicates the on-chain balance does not cover
	// the requested stake
	ErrInsufficientBalance = NewDomainError(ErrInvalidInput, "INSUFFICIENT_BALANCE", "insufficient wallet balance")

	// ErrInvalidStakeAmount indicates the stake amount is below the minimum
	ErrInvalidStakeAmount = NewDomainError(ErrInvalidInput, "INVALID_STAKE_AMOUNT", "stake amount below minimum")

	// ErrBelowWithdrawalMinimum indicates earnings do not cover the
	// withdrawal floor
	ErrBelowWithdrawalMinimum = NewDomainError(ErrInvalidInput, "BELOW_WITHDRAWAL_MINIMUM", "earnings below withdrawal minimum")

	// ErrMissingReferrer indicates the named referrer does not exist
	ErrMissingReferrer = NewDomainError(ErrInvalidInput, "MISSING_REFERRER", "referrer does not exist")

	// ErrReferralCycle indicates the new edge would close a loop in the tree
	ErrReferralCycle = IntegrityError("REFERRAL_CYCLE", "referral edge would introduce a cycle")

	// ErrReferralEdgeMissing indicates an expected upline edge is absent or
	// at the wrong level: a corrupted tree, never skipped silently
	ErrReferralEdgeMissing = IntegrityError("REFERRAL_EDGE_MISSING", "expected referral edge missing or mislevelled")

	// ErrTokenMeterMissing indicates no token meter row exists where one is
	// assumed
	ErrTokenMeterMissing = IntegrityError("TOKEN_METER_MISSING", "token meter is not configured")

	// ErrTokenMeterExists rejects a second token meter row
	ErrTokenMeterExists = NewDomainError(ErrAlreadyExists, "TOKEN_METER_EXISTS", "a token meter already exists")

	// ErrNoActivePool indicates no open matrix pool where one is assumed
	ErrNoActivePool = IntegrityError("NO_ACTIVE_POOL", "no active matrix pool")
)
