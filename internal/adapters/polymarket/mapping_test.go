package polymarket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapLadder_SortsBothSides(t *testing.T) {
	raw := orderBookResponse{
		AssetID: "tok-1",
		Bids: []bookEntryRaw{
			{Price: "0.38", Size: "200"},
			{Price: "0.40", Size: "100"},
		},
		Asks: []bookEntryRaw{
			{Price: "0.50", Size: "300"},
			{Price: "0.42", Size: "80"},
		},
	}

	l := mapLadder(raw)

	require.Len(t, l.Bids, 2)
	require.Len(t, l.Asks, 2)
	// Bids de mayor a menor, asks de menor a mayor.
	assert.InDelta(t, 0.40, l.Bids[0].Price, 1e-9)
	assert.InDelta(t, 0.42, l.Asks[0].Price, 1e-9)
	assert.NoError(t, l.Validate())
}

func TestMapLadder_DropsInvalidLevels(t *testing.T) {
	raw := orderBookResponse{
		AssetID: "tok-1",
		Bids: []bookEntryRaw{
			{Price: "0", Size: "100"},
			{Price: "0.40", Size: "0"},
			{Price: "not-a-number", Size: "50"},
			{Price: "0.35", Size: "10"},
		},
	}

	l := mapLadder(raw)
	require.Len(t, l.Bids, 1)
	assert.InDelta(t, 0.35, l.Bids[0].Price, 1e-9)
}

func TestParseBookTimestamp(t *testing.T) {
	// Epoch millis y segundos.
	assert.Equal(t, time.UnixMilli(1700000000123).UTC(), parseBookTimestamp("1700000000123"))
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), parseBookTimestamp("1700000000"))
	assert.True(t, parseBookTimestamp("").IsZero())
	assert.True(t, parseBookTimestamp("garbage").IsZero())
}

func TestMapMarketStatus(t *testing.T) {
	resolved, price, endDate := mapMarketStatus(gammaMarket{
		Closed:        true,
		OutcomePrices: `["1","0"]`,
		EndDateISO:    "2026-03-01T00:00:00Z",
	})
	assert.True(t, resolved)
	assert.InDelta(t, 1.0, price, 1e-9)
	require.NotNil(t, endDate)
	assert.Equal(t, 2026, endDate.Year())

	// Mercado abierto: sin resolución aunque haya precios.
	resolved, _, _ = mapMarketStatus(gammaMarket{
		Closed:        false,
		OutcomePrices: `["0.87","0.13"]`,
	})
	assert.False(t, resolved)
}

func TestSplitBatches(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e"}
	batches := splitBatches(ids, 2)
	require.Len(t, batches, 3)
	assert.Equal(t, []string{"e"}, batches[2])
}

func TestDetectPricePrecision(t *testing.T) {
	assert.Equal(t, int64(100), detectPricePrecision(0.60))
	assert.Equal(t, int64(1000), detectPricePrecision(0.673))
	assert.Equal(t, int64(100), detectPricePrecision(0.99))
}
