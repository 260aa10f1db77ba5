package domain

import (
	"fmt"
	"time"
)

// MarketSide is the outcome token a position holds.
type MarketSide string

const (
	SideYes MarketSide = "YES"
	SideNo  MarketSide = "NO"
)

// LifecycleState tracks a position through its order lifecycle. States only
// move forward; Closed is terminal and archives the position.
type LifecycleState string

const (
	StateArmed              LifecycleState = "ARMED"
	StateBuyPending         LifecycleState = "BUY_PENDING"
	StateHeld               LifecycleState = "HELD"
	StateSellPendingInitial LifecycleState = "SELL_PENDING_INITIAL"
	StateSellPendingEarly   LifecycleState = "SELL_PENDING_EARLY"
	StateResolving          LifecycleState = "RESOLVING"
	StateClosed             LifecycleState = "CLOSED"
)

// validTransitions encodes the state machine. Any state may additionally
// jump to Closed on an unrecoverable order error.
var validTransitions = map[LifecycleState][]LifecycleState{
	StateArmed:              {StateBuyPending},
	StateBuyPending:         {StateHeld},
	StateHeld:               {StateSellPendingInitial, StateResolving},
	StateSellPendingInitial: {StateSellPendingEarly, StateResolving, StateClosed},
	StateSellPendingEarly:   {StateResolving, StateClosed},
	StateResolving:          {StateClosed},
}

// CanTransitionTo reports whether moving from s to next is legal.
func (s LifecycleState) CanTransitionTo(next LifecycleState) bool {
	if next == StateClosed {
		return s != StateClosed
	}
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Outcome is the resolved result of a position.
type Outcome string

const (
	OutcomeWin        Outcome = "WIN"
	OutcomeLoss       Outcome = "LOSS"
	OutcomeUnresolved Outcome = "UNRESOLVED"
)

// OrderLeg is one side (buy or sell) of a position's execution.
type OrderLeg struct {
	ID           string // local UUID
	CLOBOrderID  string // exchange order hash
	Price        float64
	Size         float64 // target shares
	FilledSize   float64 // executed shares
	AvgFillPrice float64
	Fee          float64
	PlacedAt     time.Time
	FilledAt     *time.Time
}

// Open reports whether the leg has an outstanding unfilled order.
func (o OrderLeg) Open() bool {
	return o.CLOBOrderID != "" && o.FilledSize < o.Size
}

// Position is one threshold-triggered deployment in a single market. It is
// created when a crossing is first accepted, mutated only by lifecycle
// transitions, and archived on close. At most one open position may exist
// per market at any time.
type Position struct {
	ID           string
	DeploymentID string
	MarketID     string
	MarketSlug   string
	TokenID      string
	Side         MarketSide

	// Strategy parameters in force when the position was opened.
	Threshold  float64
	Margin     float64
	StopLoss   float64
	MarginSell float64

	Buy  OrderLeg
	Sell OrderLeg

	State       LifecycleState
	Outcome     Outcome
	FailureNote string // set when the position was force-closed on error

	PrincipalBefore float64
	DollarsSpent    float64
	BuyFee          float64
	Proceeds        float64
	SellFee         float64
	NetPayout       float64
	ROI             float64

	OpenedAt time.Time
	ClosedAt *time.Time
}

// Transition advances the position state, enforcing the lifecycle order.
func (p *Position) Transition(next LifecycleState) error {
	if !p.State.CanTransitionTo(next) {
		return fmt.Errorf("domain.Position: illegal transition %s → %s (position %s)", p.State, next, p.ID)
	}
	p.State = next
	return nil
}

// Open reports whether the position still occupies its market slot.
func (p Position) Open() bool { return p.State != StateClosed }

// LifecycleEvent is emitted on every transition for observability.
type LifecycleEvent struct {
	PositionID string
	MarketID   string
	MarketSlug string
	From       LifecycleState
	To         LifecycleState
	Note       string
	At         time.Time
}

// PlaceOrderRequest is sent to the order executor.
type PlaceOrderRequest struct {
	TokenID string
	Price   float64
	Size    float64 // whole shares
	Side    OrderSide
}

// PlacedOrder is the exchange acknowledgement for a placed order.
type PlacedOrder struct {
	CLOBOrderID string
	Status      string
}

// OrderState is a point-in-time view of an order on the exchange.
type OrderState struct {
	CLOBOrderID  string
	FilledSize   float64
	AvgFillPrice float64
	Open         bool // still resting on the book
}
