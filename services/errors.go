package services

import (
	"errors"
	"fmt"
	"time"
)

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// All of these are recoverable and reported to the caller as structured results.

var (
	// Earning
	ErrTaskUnavailable = errors.New("mining task is unknown or disabled")
	ErrCooldownActive  = errors.New("action is still cooling down")
	ErrInvalidTask     = errors.New("invalid mining task")

	// Ledger
	ErrInvalidAmount = errors.New("amount must be non-zero")
	ErrInvalidActor  = errors.New("actor id is empty or too long")

	// Redemptions
	ErrRedemptionNotFound = errors.New("redemption request not found")
	ErrAlreadyDecided     = errors.New("redemption request was already decided")
	ErrUnknownClaimType   = errors.New("no reward is configured for this claim type")
	ErrMissingEvidence    = errors.New("evidence url is required")
	ErrInvalidEmail       = errors.New("email is not a valid address")
	ErrInvalidStatus      = errors.New("unknown redemption status")

	// NFT milestone
	ErrNFTExchangeInactive = errors.New("nft exchange is not active")
	ErrEthAddressRequired  = errors.New("an eth address must be registered first")
	ErrInvalidEthAddress   = errors.New("eth address must be 0x followed by 40 hex characters")

	// Settings
	ErrInvalidSettings = errors.New("invalid gamification settings")

	// Store failures that survived the retry
	ErrTransient = errors.New("temporary storage failure, try again")
)

// CooldownError carries the wait time for a denied action.
type CooldownError struct {
	ActionKey  string
	RetryAfter time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%s: %s available again in %s", ErrCooldownActive, e.ActionKey, e.RetryAfter)
}

func (e *CooldownError) Unwrap() error { return ErrCooldownActive }

// isDomainError reports errors that must never be retried.
func isDomainError(err error) bool {
	var cd *CooldownError
	return errors.As(err, &cd) ||
		errors.Is(err, ErrTaskUnavailable) ||
		errors.Is(err, ErrInvalidTask) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidActor) ||
		errors.Is(err, ErrRedemptionNotFound) ||
		errors.Is(err, ErrAlreadyDecided) ||
		errors.Is(err, ErrUnknownClaimType) ||
		errors.Is(err, ErrMissingEvidence) ||
		errors.Is(err, ErrInvalidEmail) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrNFTExchangeInactive) ||
		errors.Is(err, ErrEthAddressRequired) ||
		errors.Is(err, ErrInvalidEthAddress) ||
		errors.Is(err, ErrInvalidSettings)
}
