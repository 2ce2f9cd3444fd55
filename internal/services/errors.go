package services

import (
	"errors"
	"fmt"

	"github.com/soulseer/settlement/internal/store"
)

var (
	ErrInsufficientBalance    = errors.New("settlement: insufficient balance")
	ErrConcurrentModification = errors.New("settlement: concurrent modification")
	ErrRefundExceedsAvailable = errors.New("settlement: refund exceeds available provider balance")
	ErrGatewayUnavailable     = errors.New("settlement: payment gateway unavailable")
	ErrInvariantViolation     = errors.New("settlement: balance invariant violation")
	ErrNotFound               = errors.New("settlement: not found")
	ErrSessionActive          = errors.New("settlement: an active session already exists for this pair")
	ErrSessionTerminal        = errors.New("settlement: session already ended")
	ErrIdempotencyMismatch    = errors.New("settlement: idempotency key reused with a different request")
	ErrInvalidAmount          = errors.New("settlement: invalid amount")
	ErrPayoutHold             = errors.New("settlement: account is on payout hold")
	ErrBelowThreshold         = errors.New("settlement: amount below minimum payout")
	ErrForbidden              = errors.New("settlement: not a party to this resource")
	ErrAccountArchived        = errors.New("settlement: account is archived")
	ErrRefundNotAllowed       = errors.New("settlement: entry is not refundable")
	ErrNoPayoutDestination    = errors.New("settlement: account has no payout destination")
	ErrAccountNotEmpty        = errors.New("settlement: account still holds funds")
	ErrAmountMismatch         = errors.New("settlement: confirmed amount does not match deposit")
)

// IsRetryable reports whether err is a transient conflict that a fresh
// transaction may resolve.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification) ||
		errors.Is(err, store.ErrConcurrentModification)
}

// IsUserError reports whether err is caused by the request and is safe to surface.
func IsUserError(err error) bool {
	for _, target := range []error{
		ErrInsufficientBalance, ErrRefundExceedsAvailable, ErrSessionActive, ErrSessionTerminal,
		ErrIdempotencyMismatch, ErrInvalidAmount, ErrPayoutHold, ErrBelowThreshold, ErrForbidden,
		ErrAccountArchived, ErrRefundNotAllowed, ErrNoPayoutDestination, ErrAccountNotEmpty,
		ErrAmountMismatch, ErrNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// translateStoreError maps repository errors onto the settlement taxonomy.
func translateStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, store.ErrConcurrentModification):
		return fmt.Errorf("%w: %v", ErrConcurrentModification, err)
	}
	return err
}
