package polymarket

// gamma.go: implementación de ports.ResolutionOracle sobre la Gamma API.

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/thresholdbot/internal/ports"
)

const gammaMarketsPath = "/markets"

// MarketStatus consulta Gamma por condition ID y devuelve el estado de
// resolución del mercado.
func (c *Client) MarketStatus(ctx context.Context, marketID string) (ports.MarketStatus, error) {
	url := fmt.Sprintf("%s%s?condition_ids=%s", c.gammaBase, gammaMarketsPath, marketID)

	var resp gammaMarketsResponse
	if err := c.get(ctx, c.gammaLimiter, "GET /markets", url, &resp); err != nil {
		return ports.MarketStatus{}, fmt.Errorf("gamma.MarketStatus %s: %w", marketID, err)
	}
	if len(resp) == 0 {
		return ports.MarketStatus{}, fmt.Errorf("gamma.MarketStatus: market %s not found", marketID)
	}

	gm := resp[0]
	resolved, outcomePrice, endDate := mapMarketStatus(gm)
	return ports.MarketStatus{
		Active:       gm.Active,
		Resolved:     resolved,
		OutcomePrice: outcomePrice,
		EndDate:      endDate,
	}, nil
}
