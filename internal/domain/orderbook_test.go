package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLadder_BestPricesAndMidpoint(t *testing.T) {
	l := testLadder()

	assert.InDelta(t, 0.40, l.BestBid(), 1e-9)
	assert.InDelta(t, 0.42, l.BestAsk(), 1e-9)
	assert.InDelta(t, 0.41, l.Midpoint(), 1e-9)
}

func TestLadder_EmptySidesReturnZero(t *testing.T) {
	var empty Ladder

	assert.Zero(t, empty.BestBid())
	assert.Zero(t, empty.BestAsk())
	assert.Zero(t, empty.Midpoint())

	// Con un solo lado no hay midpoint.
	onlyBids := Ladder{Bids: []BookLevel{{Price: 0.40, Size: 10}}}
	assert.Zero(t, onlyBids.Midpoint())
}

func TestLadder_DepthShares(t *testing.T) {
	l := testLadder()

	assert.InDelta(t, 350, l.BidDepthShares(), 1e-9)
	assert.InDelta(t, 500, l.AskDepthShares(), 1e-9)
}

func TestLadder_Validate(t *testing.T) {
	cases := []struct {
		name    string
		ladder  Ladder
		wantErr error
	}{
		{"valid", testLadder(), nil},
		{"empty", Ladder{}, ErrEmptyLadder},
		{
			// bid == ask es un libro locked, no cruzado.
			"locked",
			Ladder{
				Bids: []BookLevel{{Price: 0.42, Size: 10}},
				Asks: []BookLevel{{Price: 0.42, Size: 10}},
			},
			nil,
		},
		{
			"crossed",
			Ladder{
				Bids: []BookLevel{{Price: 0.45, Size: 10}},
				Asks: []BookLevel{{Price: 0.42, Size: 10}},
			},
			ErrCrossedBook,
		},
		{
			"unsorted bids",
			Ladder{
				Bids: []BookLevel{{Price: 0.38, Size: 10}, {Price: 0.40, Size: 10}},
			},
			ErrCrossedBook,
		},
		{
			"unsorted asks",
			Ladder{
				Asks: []BookLevel{{Price: 0.45, Size: 10}, {Price: 0.42, Size: 10}},
			},
			ErrCrossedBook,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.ladder.Validate()
			if tc.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.wantErr)
			}
		})
	}
}

func TestParsePrice(t *testing.T) {
	assert.InDelta(t, 0.87, ParsePrice("0.87"), 1e-9)
	assert.Zero(t, ParsePrice(""))
	assert.Zero(t, ParsePrice("not-a-price"))
}
