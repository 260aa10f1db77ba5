package ports

import (
	"context"

	"github.com/alejandrodnm/thresholdbot/internal/domain"
)

// BookProvider obtiene orderbooks del CLOB.
type BookProvider interface {
	// FetchLadder devuelve el orderbook actual para un token.
	FetchLadder(ctx context.Context, tokenID string) (domain.Ladder, error)

	// FetchLadders devuelve los orderbooks para los token_ids dados.
	// Internamente agrupa los IDs en batches para minimizar requests.
	FetchLadders(ctx context.Context, tokenIDs []string) (map[string]domain.Ladder, error)
}
