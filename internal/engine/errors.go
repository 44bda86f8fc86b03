package engine

import "errors"

// Every validation failure is a distinct, user-visible reason. A failed check
// aborts the whole operation before any record mutation or transfer is
// authorized; callers match with errors.Is.
var (
	ErrAlreadyInitialized  = errors.New("protocol already initialized")
	ErrInvalidFeeBps       = errors.New("fee basis points must be <= 10000")
	ErrUnauthorized        = errors.New("caller is not authorized")
	ErrTitleTooLong        = errors.New("title exceeds maximum length")
	ErrDescriptionTooLong  = errors.New("description exceeds maximum length")
	ErrDeadlineInPast      = errors.New("resolution deadline must be in the future")
	ErrMarketNotOpen       = errors.New("market is not open for betting")
	ErrMarketExpired       = errors.New("market deadline has passed")
	ErrZeroAmount          = errors.New("amount must be greater than zero")
	ErrInvalidBetSide      = errors.New("bet side must be yes or no")
	ErrInvalidOutcome      = errors.New("outcome must be yes, no, or invalid")
	ErrSwapCapExceeded     = errors.New("swap amount exceeds per-call cap")
	ErrDeadlineNotReached  = errors.New("resolution deadline has not been reached")
	ErrMarketNotResolvable = errors.New("market cannot be resolved in current state")
	ErrInvalidConfidence   = errors.New("confidence must be 0-100")
	ErrMarketNotResolved   = errors.New("market is not yet resolved")
	ErrNotWinner           = errors.New("position is not on the winning side")
	ErrAlreadyClaimed      = errors.New("position already claimed")
	ErrNoPayout            = errors.New("no payout available")
	ErrTreasuryMismatch    = errors.New("treasury account does not match protocol treasury")
)
