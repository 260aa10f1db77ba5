package polymarket

// books.go: implementación de ports.BookProvider sobre el CLOB.
//
// FetchLadders usa el endpoint batch con goroutines concurrentes; el rate
// limiter (token bucket) en doWithRetry controla el ritmo automáticamente,
// sin necesidad de semáforo explícito.

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alejandrodnm/thresholdbot/internal/domain"
)

const (
	bookPath  = "/book"
	booksPath = "/books"
	batchSize = 20 // máx token_ids por request a /books
)

// FetchLadder devuelve el orderbook actual para un token.
func (c *Client) FetchLadder(ctx context.Context, tokenID string) (domain.Ladder, error) {
	url := fmt.Sprintf("%s%s?token_id=%s", c.clobBase, bookPath, tokenID)

	var resp orderBookResponse
	if err := c.get(ctx, c.booksLimiter, "GET /book", url, &resp); err != nil {
		return domain.Ladder{}, fmt.Errorf("clob.FetchLadder %s: %w", tokenID, err)
	}
	if resp.AssetID == "" {
		resp.AssetID = tokenID
	}
	return mapLadder(resp), nil
}

// FetchLadders obtiene los orderbooks para los token_ids dados usando el
// endpoint batch, un goroutine por batch.
func (c *Client) FetchLadders(ctx context.Context, tokenIDs []string) (map[string]domain.Ladder, error) {
	if len(tokenIDs) == 0 {
		return map[string]domain.Ladder{}, nil
	}

	batches := splitBatches(tokenIDs, batchSize)

	type batchResult struct {
		ladders map[string]domain.Ladder
		err     error
		idx     int
	}

	resultCh := make(chan batchResult, len(batches))
	var wg sync.WaitGroup

	for i, batch := range batches {
		i, batch := i, batch
		wg.Add(1)
		go func() {
			defer wg.Done()
			ladders, err := c.fetchBooksBatch(ctx, batch)
			resultCh <- batchResult{ladders: ladders, err: err, idx: i}
		}()
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	result := make(map[string]domain.Ladder, len(tokenIDs))
	var firstErr error

	for r := range resultCh {
		if r.err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("clob.FetchLadders batch %d: %w", r.idx, r.err)
			}
			continue
		}
		for k, v := range r.ladders {
			result[k] = v
		}
	}

	if firstErr != nil {
		return nil, firstErr
	}

	slog.Debug("order books fetched", "tokens", len(tokenIDs), "books", len(result))
	return result, nil
}

// splitBatches divide tokenIDs en slices de tamaño máximo size.
func splitBatches(tokenIDs []string, size int) [][]string {
	if size <= 0 {
		size = batchSize
	}
	batches := make([][]string, 0, (len(tokenIDs)+size-1)/size)
	for i := 0; i < len(tokenIDs); i += size {
		end := i + size
		if end > len(tokenIDs) {
			end = len(tokenIDs)
		}
		batches = append(batches, tokenIDs[i:end])
	}
	return batches
}

// fetchBooksBatch hace un POST /books para un batch de token_ids.
func (c *Client) fetchBooksBatch(ctx context.Context, tokenIDs []string) (map[string]domain.Ladder, error) {
	body := make([]orderBookRequest, len(tokenIDs))
	for i, id := range tokenIDs {
		body[i] = orderBookRequest{TokenID: id}
	}

	var resp []orderBookResponse
	url := c.clobBase + booksPath
	if err := c.post(ctx, c.booksLimiter, "POST /books", url, body, &resp); err != nil {
		return nil, fmt.Errorf("POST /books: %w", err)
	}

	return mapLadders(resp), nil
}
