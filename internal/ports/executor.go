package ports

import (
	"context"

	"github.com/alejandrodnm/thresholdbot/internal/domain"
)

// OrderExecutor places, cancels, and monitors real orders on Polymarket CLOB.
type OrderExecutor interface {
	// PlaceOrder signs and submits a limit order to the CLOB.
	PlaceOrder(ctx context.Context, req domain.PlaceOrderRequest) (domain.PlacedOrder, error)

	// CancelOrder cancels a specific order by its CLOB order ID.
	CancelOrder(ctx context.Context, clobOrderID string) error

	// OrderStatus returns the current fill state of an order.
	OrderStatus(ctx context.Context, clobOrderID string) (domain.OrderState, error)

	// GetBalance returns the available USDC.e balance in the CLOB.
	GetBalance(ctx context.Context) (float64, error)

	// TokenBalance returns the held share balance for an outcome token.
	// This is the ground truth for how many shares an exit order can offer.
	TokenBalance(ctx context.Context, tokenID string) (float64, error)
}
