package polymarket

import (
	"sort"
	"strconv"
	"time"

	"github.com/alejandrodnm/thresholdbot/internal/domain"
)

// mapLadder convierte un orderBookResponse a domain.Ladder.
func mapLadder(r orderBookResponse) domain.Ladder {
	return domain.Ladder{
		TokenID:   r.AssetID,
		Bids:      mapBookLevels(r.Bids, false),
		Asks:      mapBookLevels(r.Asks, true),
		Timestamp: parseBookTimestamp(r.Timestamp),
	}
}

// mapLadders convierte la respuesta batch de /books a un map tokenID→Ladder.
func mapLadders(raw []orderBookResponse) map[string]domain.Ladder {
	result := make(map[string]domain.Ladder, len(raw))
	for _, r := range raw {
		result[r.AssetID] = mapLadder(r)
	}
	return result
}

// mapBookLevels convierte niveles raw a domain.BookLevel y los ordena.
// ascending=true → menor a mayor (asks), ascending=false → mayor a menor (bids).
func mapBookLevels(raw []bookEntryRaw, ascending bool) []domain.BookLevel {
	levels := make([]domain.BookLevel, 0, len(raw))
	for _, r := range raw {
		price := domain.ParsePrice(r.Price)
		size, _ := strconv.ParseFloat(r.Size, 64)
		if price <= 0 || size <= 0 {
			continue
		}
		levels = append(levels, domain.BookLevel{Price: price, Size: size})
	}

	sort.Slice(levels, func(i, j int) bool {
		if ascending {
			return levels[i].Price < levels[j].Price
		}
		return levels[i].Price > levels[j].Price
	})

	return levels
}

// parseBookTimestamp acepta epoch millis o segundos, como los manda el CLOB.
func parseBookTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	ts, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ts <= 0 {
		return time.Time{}
	}
	if ts > 1e12 {
		return time.UnixMilli(ts).UTC()
	}
	return time.Unix(ts, 0).UTC()
}

// mapMarketStatus convierte la metadata de Gamma al estado de resolución.
// El precio final del token YES es el primer elemento de outcomePrices.
func mapMarketStatus(gm gammaMarket) (resolved bool, outcomePrice float64, endDate *time.Time) {
	if gm.EndDateISO != "" {
		// Polymarket usa varios formatos; intentamos los más comunes
		for _, layout := range []string{
			time.RFC3339,
			"2006-01-02T15:04:05.000Z",
			"2006-01-02T15:04:05Z",
			"2006-01-02",
		} {
			if t, err := time.Parse(layout, gm.EndDateISO); err == nil {
				u := t.UTC()
				endDate = &u
				break
			}
		}
	}

	if !gm.Closed {
		return false, 0, endDate
	}
	prices := gm.outcomePrices()
	if len(prices) == 0 {
		return false, 0, endDate
	}
	yes, err := strconv.ParseFloat(prices[0], 64)
	if err != nil {
		return false, 0, endDate
	}
	return true, yes, endDate
}
