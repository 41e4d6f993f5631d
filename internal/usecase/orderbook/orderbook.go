package orderbook

import (
	"fmt"

	marketv1 "github.com/muhammadchandra19/mbp-engine/internal/domain/market/v1"
	orderbookv1 "github.com/muhammadchandra19/mbp-engine/internal/domain/orderbook/v1"
	"github.com/muhammadchandra19/mbp-engine/pkg/logger"
)

// expectedLiveOrders pre-sizes the per-order index; live books carry
// thousands of resting orders and rehashing on the hot path is wasted work.
const expectedLiveOrders = 10000

// Outcome tells the driver what to do after an event was applied.
type Outcome struct {
	// Emit marks the event as a snapshot candidate. The driver still
	// suppresses candidates that leave the top-10 image unchanged unless
	// AlwaysEmit is set.
	Emit bool
	// AlwaysEmit bypasses the top-10 diff: resets and completed trades.
	AlwaysEmit bool
	// Action and Side are stamped on the emitted snapshot.
	Action marketv1.Action
	Side   marketv1.Side
	// Meta is the event whose metadata the snapshot mirrors. For a
	// completed trade sequence this is the opening T event, not the
	// closing C.
	Meta marketv1.Event
}

// Stats counts protocol anomalies tolerated while applying events.
type Stats struct {
	DuplicateAdds       uint64 `json:"duplicateAdds"`
	UnknownCancels      uint64 `json:"unknownCancels"`
	OverCancels         uint64 `json:"overCancels"`
	EmptyLevelFills     uint64 `json:"emptyLevelFills"`
	FillOverflows       uint64 `json:"fillOverflows"`
	AbandonedTrades     uint64 `json:"abandonedTrades"`
	UnexpectedEvents    uint64 `json:"unexpectedEvents"`
	SequenceRegressions uint64 `json:"sequenceRegressions"`
}

// tradeState is the trade-sequence FSM state.
type tradeState int

const (
	// stateNormal processes events directly.
	stateNormal tradeState = iota
	// stateAwaitingFill holds a stashed T event and expects F next.
	stateAwaitingFill
	// stateAwaitingCancel has seen T and F and expects the closing C.
	stateAwaitingCancel
)

// pendingTrade is the FSM stash: the opening T event and, once F arrived,
// the side that was actually filled.
type pendingTrade struct {
	open       marketv1.Event
	filledSide marketv1.Side
}

// Book reconstructs a depth-of-book view from a market-by-order stream.
//
// Three indexes move in lockstep under every mutation: the per-order map,
// the per-side price ladders and the per-level FIFO queues. Book is not
// safe for concurrent use; the pipeline is strictly single-threaded.
type Book struct {
	bids   *orderbookv1.Ladder
	asks   *orderbookv1.Ladder
	orders map[uint64]*orderbookv1.Order

	state   tradeState
	pending pendingTrade

	lastSequence uint64
	stats        Stats
	logger       logger.Interface
}

// NewBook creates an empty book.
func NewBook(log logger.Interface) *Book {
	return &Book{
		bids:   orderbookv1.NewLadder(true),
		asks:   orderbookv1.NewLadder(false),
		orders: make(map[uint64]*orderbookv1.Order, expectedLiveOrders),
		logger: log,
	}
}

// Apply consumes one event, mutates the book and reports whether the event
// is a snapshot candidate.
//
// Sequence numbers are expected to be non-decreasing. A regression is
// applied anyway, warned about and counted; dropping the event would lose
// good data on feeds that restate sequence after session gaps.
func (b *Book) Apply(event *marketv1.Event) Outcome {
	if event.Sequence < b.lastSequence {
		b.stats.SequenceRegressions++
		b.logger.Warn("sequence regression",
			logger.Field{Key: "sequence", Value: event.Sequence},
			logger.Field{Key: "last_sequence", Value: b.lastSequence},
		)
	} else {
		b.lastSequence = event.Sequence
	}

	// A pending trade consumes only its exact follow-on event. Anything
	// else abandons the stash and the current event replays from Normal.
	switch b.state {
	case stateAwaitingFill:
		if event.Action == marketv1.ActionFill {
			b.pending.filledSide = event.Side
			b.state = stateAwaitingCancel
			return Outcome{Emit: false}
		}
		b.abandonTrade(event)
	case stateAwaitingCancel:
		if event.Action == marketv1.ActionCancel {
			return b.completeTrade()
		}
		b.abandonTrade(event)
	}

	switch event.Action {
	case marketv1.ActionAdd:
		return b.applyAdd(event)
	case marketv1.ActionCancel:
		return b.applyCancel(event)
	case marketv1.ActionTrade:
		return b.applyTrade(event)
	case marketv1.ActionFill:
		// F without a preceding T
		b.stats.UnexpectedEvents++
		b.logger.Warn("unexpected fill event",
			logger.Field{Key: "order_id", Value: event.OrderID},
			logger.Field{Key: "sequence", Value: event.Sequence},
		)
		return Outcome{Emit: false}
	case marketv1.ActionReset:
		b.Clear()
		return Outcome{
			Emit:       true,
			AlwaysEmit: true,
			Action:     marketv1.ActionReset,
			Side:       marketv1.SideNone,
			Meta:       *event,
		}
	default:
		return Outcome{Emit: false}
	}
}

// applyAdd inserts a resting order. A duplicate id is a protocol violation
// and is rejected without mutation or emission.
func (b *Book) applyAdd(event *marketv1.Event) Outcome {
	if event.OrderID == 0 {
		return Outcome{Emit: true, Action: marketv1.ActionAdd, Side: event.Side, Meta: *event}
	}

	if _, exists := b.orders[event.OrderID]; exists {
		b.stats.DuplicateAdds++
		b.logger.Warn("duplicate add rejected",
			logger.Field{Key: "order_id", Value: event.OrderID},
			logger.Field{Key: "sequence", Value: event.Sequence},
		)
		return Outcome{Emit: false}
	}

	ladder := b.side(event.Side)
	if ladder == nil || event.Size == 0 {
		b.stats.UnexpectedEvents++
		b.logger.Warn("add without side or size",
			logger.Field{Key: "order_id", Value: event.OrderID},
			logger.Field{Key: "side", Value: event.Side.String()},
			logger.Field{Key: "size", Value: event.Size},
		)
		return Outcome{Emit: true, Action: marketv1.ActionAdd, Side: marketv1.SideNone, Meta: *event}
	}

	b.orders[event.OrderID] = orderbookv1.NewOrder(event.OrderID, event.Price, event.Size, event.Side)
	if err := ladder.GetOrCreate(event.Price).Enqueue(event.OrderID, event.Size); err != nil {
		// unreachable with size checked above; keep the index consistent anyway
		delete(b.orders, event.OrderID)
		b.logger.Error(err)
		return Outcome{Emit: false}
	}

	return Outcome{Emit: true, Action: marketv1.ActionAdd, Side: event.Side, Meta: *event}
}

// applyCancel removes quantity from a resting order. An unknown order id
// is tolerated: stale and duplicate cancels occur in partial feeds.
func (b *Book) applyCancel(event *marketv1.Event) Outcome {
	if event.OrderID == 0 {
		return Outcome{Emit: true, Action: marketv1.ActionCancel, Side: event.Side, Meta: *event}
	}

	order, exists := b.orders[event.OrderID]
	if !exists {
		b.stats.UnknownCancels++
		b.logger.Debug("cancel for unknown order",
			logger.Field{Key: "order_id", Value: event.OrderID},
			logger.Field{Key: "sequence", Value: event.Sequence},
		)
		return Outcome{Emit: true, Action: marketv1.ActionCancel, Side: marketv1.SideNone, Meta: *event}
	}

	effective := event.Size
	if effective == 0 || effective >= order.Size {
		if effective > order.Size {
			b.stats.OverCancels++
			b.logger.Warn("cancel size exceeds order, clamped",
				logger.Field{Key: "order_id", Value: event.OrderID},
				logger.Field{Key: "cancel_size", Value: event.Size},
				logger.Field{Key: "order_size", Value: order.Size},
			)
		}
		effective = order.Size
	}

	ladder := b.side(order.Side)
	level := ladder.Get(order.Price)
	if level == nil {
		// index desync; drop the orphaned order rather than corrupt further
		b.logger.Error(fmt.Errorf("order %d references missing level %f", order.ID, order.Price))
		delete(b.orders, order.ID)
		return Outcome{Emit: true, Action: marketv1.ActionCancel, Side: order.Side, Meta: *event}
	}

	if _, err := level.Reduce(order.ID, effective); err != nil {
		b.logger.Error(err)
	}

	order.Size -= effective
	if order.IsFilled() {
		delete(b.orders, order.ID)
	}
	if level.IsEmpty() {
		ladder.Remove(level.Price)
	}

	return Outcome{Emit: true, Action: marketv1.ActionCancel, Side: order.Side, Meta: *event}
}

// applyTrade opens a trade sequence. Trades with side None report activity
// the book cannot attribute; they are ignored entirely.
func (b *Book) applyTrade(event *marketv1.Event) Outcome {
	if event.Side == marketv1.SideNone {
		return Outcome{Emit: false}
	}

	b.state = stateAwaitingFill
	b.pending = pendingTrade{open: *event}

	return Outcome{Emit: false}
}

// abandonTrade discards the pending trade without booking a fill. The feed
// is treated as corrupted at this point; the interrupted sequence is not
// reconstructed.
func (b *Book) abandonTrade(event *marketv1.Event) {
	b.stats.AbandonedTrades++
	b.logger.Warn("trade sequence abandoned",
		logger.Field{Key: "pending_sequence", Value: b.pending.open.Sequence},
		logger.Field{Key: "interrupting_action", Value: event.Action.String()},
		logger.Field{Key: "interrupting_sequence", Value: event.Sequence},
	)

	b.state = stateNormal
	b.pending = pendingTrade{}
}

// completeTrade closes a T-F-C sequence: the stashed quantity is booked
// against the side opposite to the T side at the stashed price, FIFO. The
// snapshot mirrors the opening T's metadata and carries the filled side
// reported by F.
func (b *Book) completeTrade() Outcome {
	open := b.pending.open
	filledSide := b.pending.filledSide
	b.state = stateNormal
	b.pending = pendingTrade{}

	target := open.Side.Opposite()
	ladder := b.side(target)
	level := ladder.Get(open.Price)
	if level == nil {
		b.stats.EmptyLevelFills++
		b.logger.Warn("trade fill against absent level",
			logger.Field{Key: "price", Value: open.Price},
			logger.Field{Key: "side", Value: target.String()},
			logger.Field{Key: "size", Value: open.Size},
		)
	} else {
		removed, partialID, partialRemaining, consumed := level.Fill(open.Size)
		for _, id := range removed {
			delete(b.orders, id)
		}
		if partialID != 0 {
			if order, exists := b.orders[partialID]; exists {
				order.Size = partialRemaining
			}
		}
		if consumed < open.Size {
			// overflow depletes the level and stops; it is not re-routed
			b.stats.FillOverflows++
			b.logger.Warn("trade fill exceeds level aggregate",
				logger.Field{Key: "price", Value: open.Price},
				logger.Field{Key: "side", Value: target.String()},
				logger.Field{Key: "requested", Value: open.Size},
				logger.Field{Key: "consumed", Value: consumed},
			)
		}
		if level.IsEmpty() {
			ladder.Remove(level.Price)
		}
	}

	return Outcome{
		Emit:       true,
		AlwaysEmit: true,
		Action:     marketv1.ActionTrade,
		Side:       filledSide,
		Meta:       open,
	}
}

// Snapshot produces a snapshot whose book payload reflects current state
// and whose metadata mirrors meta with the given action and side stamped.
func (b *Book) Snapshot(meta marketv1.Event, action marketv1.Action, side marketv1.Side) marketv1.Snapshot {
	return marketv1.Snapshot{
		TsRecv:    meta.TsRecv,
		TsEvent:   meta.TsEvent,
		Action:    action,
		Side:      side,
		Price:     meta.Price,
		Size:      meta.Size,
		OrderID:   meta.OrderID,
		Flags:     meta.Flags,
		TsInDelta: meta.TsInDelta,
		Sequence:  meta.Sequence,
		Symbol:    meta.Symbol,
		Book:      b.Top10(),
	}
}

// Top10 captures the fixed-size top-10 image of both sides. Missing levels
// stay zero-filled.
func (b *Book) Top10() marketv1.Top10Image {
	var image marketv1.Top10Image

	for i, level := range b.bids.Top(marketv1.Depth) {
		image.Bids[i] = marketv1.BookLevel{
			Price: level.Price,
			Size:  level.TotalSize,
			Count: level.OrderCount,
		}
	}
	for i, level := range b.asks.Top(marketv1.Depth) {
		image.Asks[i] = marketv1.BookLevel{
			Price: level.Price,
			Size:  level.TotalSize,
			Count: level.OrderCount,
		}
	}

	return image
}

// Clear resets the book to empty: both sides, the per-order index and the
// trade FSM. The sequence counter carries across resets.
func (b *Book) Clear() {
	b.bids.Clear()
	b.asks.Clear()
	b.orders = make(map[uint64]*orderbookv1.Order, expectedLiveOrders)
	b.state = stateNormal
	b.pending = pendingTrade{}
}

// Stats returns a copy of the anomaly counters.
func (b *Book) Stats() Stats {
	return b.stats
}

// BidLevelCount returns the number of populated bid levels.
func (b *Book) BidLevelCount() int {
	return b.bids.Len()
}

// AskLevelCount returns the number of populated ask levels.
func (b *Book) AskLevelCount() int {
	return b.asks.Len()
}

// OrderCount returns the number of live resting orders.
func (b *Book) OrderCount() int {
	return len(b.orders)
}

// OrderExists reports whether an order id is resting on the book.
func (b *Book) OrderExists(orderID uint64) bool {
	_, exists := b.orders[orderID]
	return exists
}

// Validate checks the coupled indexes against each other: every indexed
// order appears exactly once in its level's queue with matching size, every
// queued order is indexed, and level aggregates mirror their queues.
func (b *Book) Validate() error {
	queued := make(map[uint64]bool, len(b.orders))

	for _, ladder := range []*orderbookv1.Ladder{b.bids, b.asks} {
		for _, level := range ladder.Top(ladder.Len()) {
			if level.IsEmpty() {
				return fmt.Errorf("empty level retained at price %f", level.Price)
			}
			if err := level.Validate(); err != nil {
				return err
			}
			for _, entry := range level.Queue {
				if queued[entry.OrderID] {
					return fmt.Errorf("order %d queued more than once", entry.OrderID)
				}
				queued[entry.OrderID] = true

				order, exists := b.orders[entry.OrderID]
				if !exists {
					return fmt.Errorf("queued order %d missing from index", entry.OrderID)
				}
				if b.side(order.Side) != ladder || order.Price != level.Price || order.Size != entry.Size {
					return fmt.Errorf("order %d out of sync with its level", entry.OrderID)
				}
			}
		}
	}

	if len(queued) != len(b.orders) {
		return fmt.Errorf("index holds %d orders, queues hold %d", len(b.orders), len(queued))
	}

	return nil
}

// side maps a side tag to its ladder; nil for SideNone.
func (b *Book) side(side marketv1.Side) *orderbookv1.Ladder {
	switch side {
	case marketv1.SideBid:
		return b.bids
	case marketv1.SideAsk:
		return b.asks
	}
	return nil
}
