package ports

import (
	"context"
	"time"
)

// MarketStatus is the resolution view of a market from the metadata API.
type MarketStatus struct {
	Active       bool
	Resolved     bool
	OutcomePrice float64 // final price of the YES token once resolved
	EndDate      *time.Time
}

// ResolutionOracle reports whether a market has resolved and how. Polled at
// the configured cadence while a position sits in the resolving state.
type ResolutionOracle interface {
	MarketStatus(ctx context.Context, marketID string) (MarketStatus, error)
}
