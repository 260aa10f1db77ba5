package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPositionTransition_HappyPath(t *testing.T) {
	p := &Position{ID: "pos-1", State: StateArmed}

	for _, next := range []LifecycleState{
		StateBuyPending, StateHeld, StateSellPendingInitial, StateResolving, StateClosed,
	} {
		require.NoError(t, p.Transition(next))
		assert.Equal(t, next, p.State)
	}
	assert.False(t, p.Open())
}

func TestPositionTransition_EarlySellPath(t *testing.T) {
	p := &Position{State: StateSellPendingInitial}

	require.NoError(t, p.Transition(StateSellPendingEarly))
	require.NoError(t, p.Transition(StateResolving))
	require.NoError(t, p.Transition(StateClosed))
}

func TestPositionTransition_NoBackwardMoves(t *testing.T) {
	cases := []struct{ from, to LifecycleState }{
		{StateHeld, StateBuyPending},
		{StateResolving, StateHeld},
		{StateSellPendingEarly, StateSellPendingInitial},
		{StateClosed, StateArmed},
		{StateArmed, StateHeld},
	}
	for _, c := range cases {
		p := &Position{State: c.from}
		assert.Error(t, p.Transition(c.to), "%s -> %s", c.from, c.to)
		assert.Equal(t, c.from, p.State)
	}
}

func TestPositionTransition_AnyStateMayClose(t *testing.T) {
	for _, from := range []LifecycleState{
		StateArmed, StateBuyPending, StateHeld,
		StateSellPendingInitial, StateSellPendingEarly, StateResolving,
	} {
		p := &Position{State: from}
		assert.NoError(t, p.Transition(StateClosed), "from %s", from)
	}

	closed := &Position{State: StateClosed}
	assert.Error(t, closed.Transition(StateClosed))
}

func TestOrderLegOpen(t *testing.T) {
	assert.True(t, OrderLeg{CLOBOrderID: "0xabc", Size: 100, FilledSize: 40}.Open())
	assert.False(t, OrderLeg{CLOBOrderID: "0xabc", Size: 100, FilledSize: 100}.Open())
	assert.False(t, OrderLeg{Size: 100}.Open())
}
