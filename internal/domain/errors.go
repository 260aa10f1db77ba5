package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions resolved locally (no retry, no position opened).
var (
	// ErrInsufficientStake means sizing could not meet the venue minimum
	// notional after fee adjustment and whole-share rounding.
	ErrInsufficientStake = errors.New("stake below minimum notional")

	// ErrCrossedBook marks a ladder whose best bid exceeds its best ask.
	// Treated as a missed observation, never as a fatal fault.
	ErrCrossedBook = errors.New("crossed order book")

	// ErrStaleLadder marks a snapshot older than the last one applied.
	ErrStaleLadder = errors.New("stale ladder snapshot")

	// ErrEmptyLadder marks a snapshot with no levels on either side.
	ErrEmptyLadder = errors.New("empty ladder snapshot")

	// ErrInsufficientBalance means the confirmed held balance is lower than
	// the nominal buy size. Callers reduce the sell size, they don't fail.
	ErrInsufficientBalance = errors.New("held balance below expected size")
)

// ExchangeError wraps a failure from the order-placement adapter. Transient
// errors (network, timeout) are retried with backoff; rejections are final
// and force-close the position with an annotation.
type ExchangeError struct {
	Op        string // "place", "cancel", "balance"
	Transient bool
	Err       error
}

func (e *ExchangeError) Error() string {
	kind := "rejected"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("exchange %s (%s): %v", e.Op, kind, e.Err)
}

func (e *ExchangeError) Unwrap() error { return e.Err }

// IsTransientExchangeErr reports whether err is a retryable exchange failure.
func IsTransientExchangeErr(err error) bool {
	var ee *ExchangeError
	return errors.As(err, &ee) && ee.Transient
}

// IsRejectedOrder reports whether err is a non-retryable exchange rejection.
func IsRejectedOrder(err error) bool {
	var ee *ExchangeError
	return errors.As(err, &ee) && !ee.Transient
}
