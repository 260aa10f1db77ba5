package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/thresholdbot/internal/domain"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func samplePosition(id, marketID string) domain.Position {
	now := time.Now().UTC().Truncate(time.Second)
	return domain.Position{
		ID:              id,
		DeploymentID:    "test",
		MarketID:        marketID,
		MarketSlug:      "will-it-rain",
		TokenID:         "tok-yes",
		Side:            domain.SideYes,
		Threshold:       0.85,
		Margin:          0.02,
		StopLoss:        0.70,
		MarginSell:      0.02,
		State:           domain.StateBuyPending,
		Outcome:         domain.OutcomeUnresolved,
		PrincipalBefore: 1000,
		OpenedAt:        now,
		Buy: domain.OrderLeg{
			ID:          "leg-buy",
			CLOBOrderID: "0xbuy",
			Price:       0.87,
			Size:        100,
			PlacedAt:    now,
		},
	}
}

func TestSavePosition_RoundTrip(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	want := samplePosition("pos-1", "mkt-1")
	require.NoError(t, s.SavePosition(ctx, want))

	got, err := s.GetOpenPositions(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)

	p := got[0]
	assert.Equal(t, want.ID, p.ID)
	assert.Equal(t, want.MarketID, p.MarketID)
	assert.Equal(t, want.Side, p.Side)
	assert.Equal(t, want.State, p.State)
	assert.Equal(t, want.Buy.CLOBOrderID, p.Buy.CLOBOrderID)
	assert.InDelta(t, want.Buy.Price, p.Buy.Price, 1e-9)
	assert.InDelta(t, want.PrincipalBefore, p.PrincipalBefore, 1e-9)
	assert.True(t, p.Open())
}

func TestSavePosition_OnePerMarket(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.SavePosition(ctx, samplePosition("pos-1", "mkt-1")))

	// Segunda posición abierta en el mismo mercado: el índice la rechaza.
	err := s.SavePosition(ctx, samplePosition("pos-2", "mkt-1"))
	assert.Error(t, err)

	dup, err := s.HasOpenPosition(ctx, "mkt-1")
	require.NoError(t, err)
	assert.True(t, dup)

	dup, err = s.HasOpenPosition(ctx, "mkt-other")
	require.NoError(t, err)
	assert.False(t, dup)
}

func TestUpdatePosition_CloseFreesMarket(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	p := samplePosition("pos-1", "mkt-1")
	require.NoError(t, s.SavePosition(ctx, p))

	now := time.Now().UTC()
	p.State = domain.StateClosed
	p.Outcome = domain.OutcomeWin
	p.NetPayout = 12.5
	p.ROI = 0.14
	p.ClosedAt = &now
	require.NoError(t, s.UpdatePosition(ctx, p))

	open, err := s.GetOpenPositions(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)

	// El mercado queda libre para una nueva posición.
	require.NoError(t, s.SavePosition(ctx, samplePosition("pos-2", "mkt-1")))
}

func TestUpdatePosition_Missing(t *testing.T) {
	s := newTestStorage(t)
	err := s.UpdatePosition(context.Background(), samplePosition("ghost", "mkt-x"))
	assert.Error(t, err)
}

func TestPrincipalLedger_Chain(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	_, ok, err := s.LatestPrincipal(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	now := time.Now().UTC()
	require.NoError(t, s.AppendPrincipal(ctx, domain.PrincipalEntry{
		Timestamp: now, Before: 1000, After: 1025, RealizedPnL: 25, PositionID: "pos-1",
	}))
	require.NoError(t, s.AppendPrincipal(ctx, domain.PrincipalEntry{
		Timestamp: now, Before: 1025, After: 985, RealizedPnL: -40, PositionID: "pos-2",
	}))

	last, ok, err := s.LatestPrincipal(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 985, last.After, 1e-9)
	assert.Equal(t, "pos-2", last.PositionID)
}

func TestPrincipalLedger_RejectsChainBreak(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, s.AppendPrincipal(ctx, domain.PrincipalEntry{
		Timestamp: now, Before: 1000, After: 1025, RealizedPnL: 25, PositionID: "pos-1",
	}))

	err := s.AppendPrincipal(ctx, domain.PrincipalEntry{
		Timestamp: now, Before: 900, After: 910, RealizedPnL: 10, PositionID: "pos-2",
	})
	assert.Error(t, err)
}

func TestSnapshotStore_RoundTrip(t *testing.T) {
	s, err := NewSnapshotStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 3; i++ {
		l := domain.Ladder{
			TokenID:   "tok-yes",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Bids:      []domain.BookLevel{{Price: 0.80 + float64(i)*0.01, Size: 100}},
			Asks:      []domain.BookLevel{{Price: 0.84, Size: 50}},
		}
		require.NoError(t, s.SaveLadder(ctx, "mkt-1", l))
	}

	ladders, err := s.LoadLadders(ctx, "tok-yes", base.Add(-time.Hour), base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, ladders, 3)

	// Orden cronológico y niveles intactos.
	assert.True(t, ladders[0].Timestamp.Before(ladders[2].Timestamp))
	assert.InDelta(t, 0.80, ladders[0].BestBid(), 1e-9)
	assert.InDelta(t, 0.82, ladders[2].BestBid(), 1e-9)

	markets, err := s.Markets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"mkt-1"}, markets)
}
