package market

import (
	"container/heap"
	"fmt"
	"math"
	"slices"

	"github.com/mlange-42/ark/ecs"
)

// FeasibleFunc reports whether an ask can physically serve a bid. Price is
// checked separately.
type FeasibleFunc[T any] func(bid, ask Order[T]) bool

// Book is a double auction holding a max-priority bid queue and a
// min-priority ask queue. Orders at the same price match in posting order.
//
// Orders are entities in the shared ECS world, so an OrderID goes stale
// the moment its order is filled or withdrawn.
type Book[T any] struct {
	world    *ecs.World
	orders   *ecs.Map1[Order[T]]
	entries  map[OrderID]*entry
	bids     queue
	asks     queue
	seq      uint64
	feasible FeasibleFunc[T]
}

// NewBook creates an empty book. feasible may be nil, in which case any
// crossing pair trades.
func NewBook[T any](w *ecs.World, feasible FeasibleFunc[T]) *Book[T] {
	return &Book[T]{
		world:    w,
		orders:   ecs.NewMap1[Order[T]](w),
		entries:  make(map[OrderID]*entry),
		bids:     queue{before: bidBefore},
		asks:     queue{before: askBefore},
		feasible: feasible,
	}
}

// Post admits a limit order and returns its identifier.
func (b *Book[T]) Post(side Side, price, amount float64, owner ecs.Entity, terms T) (OrderID, error) {
	if !(amount > 0) || math.IsInf(amount, 0) {
		return OrderID{}, fmt.Errorf("post %v %g @ %g: %w", side, amount, price, ErrInvalidAmount)
	}
	if price < 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return OrderID{}, fmt.Errorf("post %v %g @ %g: %w", side, amount, price, ErrInvalidPrice)
	}

	b.seq++
	order := Order[T]{
		Side:   side,
		Price:  price,
		Amount: amount,
		Seq:    b.seq,
		Owner:  owner,
		Terms:  terms,
	}
	id := b.orders.NewEntity(&order)

	e := &entry{id: id, side: side, price: price, seq: b.seq}
	b.entries[id] = e
	heap.Push(b.queueFor(side), e)
	return id, nil
}

// Withdraw removes a standing order.
func (b *Book[T]) Withdraw(id OrderID) error {
	e, err := b.lookup(id)
	if err != nil {
		return err
	}
	b.remove(e)
	return nil
}

// Get returns a copy of a standing order.
func (b *Book[T]) Get(id OrderID) (Order[T], error) {
	if _, err := b.lookup(id); err != nil {
		return Order[T]{}, err
	}
	return *b.orders.Get(id), nil
}

// Has reports whether id is a standing order in this book.
func (b *Book[T]) Has(id OrderID) bool {
	_, err := b.lookup(id)
	return err == nil
}

func (b *Book[T]) lookup(id OrderID) (*entry, error) {
	e, ok := b.entries[id]
	if !ok || !b.world.Alive(id) {
		return nil, ErrOrderNotFound
	}
	return e, nil
}

func (b *Book[T]) queueFor(side Side) *queue {
	if side == Buy {
		return &b.bids
	}
	return &b.asks
}

func (b *Book[T]) remove(e *entry) {
	heap.Remove(b.queueFor(e.side), e.index)
	delete(b.entries, e.id)
	b.world.RemoveEntity(e.id)
}

// BestBid returns the highest standing bid price.
func (b *Book[T]) BestBid() (float64, bool) {
	if e := b.bids.peek(); e != nil {
		return e.price, true
	}
	return 0, false
}

// BestAsk returns the lowest standing ask price.
func (b *Book[T]) BestAsk() (float64, bool) {
	if e := b.asks.peek(); e != nil {
		return e.price, true
	}
	return 0, false
}

// Depth returns the number of standing orders on one side and their summed
// remaining amount.
func (b *Book[T]) Depth(side Side) (orders int, liquidity float64) {
	q := b.queueFor(side)
	for _, e := range q.items {
		liquidity += b.orders.Get(e.id).Amount
	}
	return len(q.items), liquidity
}

// Orders returns the standing orders on one side in priority order.
func (b *Book[T]) Orders(side Side) []Order[T] {
	entries := b.sorted(side)
	out := make([]Order[T], len(entries))
	for i, e := range entries {
		out[i] = *b.orders.Get(e.id)
	}
	return out
}

func (b *Book[T]) sorted(side Side) []*entry {
	q := b.queueFor(side)
	out := slices.Clone(q.items)
	slices.SortFunc(out, func(x, y *entry) int {
		switch {
		case q.before(x, y):
			return -1
		case q.before(y, x):
			return 1
		}
		return 0
	})
	return out
}

// Match trades crossing orders until no bid can afford any eligible ask.
// Each trade moves min(bid, ask) at the price of whichever order was posted
// first; the larger order keeps its remainder in the book.
func (b *Book[T]) Match() []Fill[T] {
	var fills []Fill[T]
	for {
		bid, ask := b.nextPair()
		if bid == nil {
			return fills
		}
		fills = append(fills, b.execute(bid, ask))
	}
}

// nextPair picks the highest-priority crossing pair. Without a feasibility
// filter that is simply the top of both queues. With one, bids are tried in
// priority order against asks in priority order, stopping at the first ask
// the bid cannot afford.
func (b *Book[T]) nextPair() (*entry, *entry) {
	topBid, topAsk := b.bids.peek(), b.asks.peek()
	if topBid == nil || topAsk == nil || topBid.price < topAsk.price {
		return nil, nil
	}
	if b.feasible == nil {
		return topBid, topAsk
	}

	asks := b.sorted(Sell)
	for _, bid := range b.sorted(Buy) {
		bidOrder := *b.orders.Get(bid.id)
		for _, ask := range asks {
			if ask.price > bid.price {
				break
			}
			if b.feasible(bidOrder, *b.orders.Get(ask.id)) {
				return bid, ask
			}
		}
	}
	return nil, nil
}

func (b *Book[T]) execute(bid, ask *entry) Fill[T] {
	bidOrder, askOrder := b.orders.Get(bid.id), b.orders.Get(ask.id)

	qty := math.Min(bidOrder.Amount, askOrder.Amount)
	price := askOrder.Price
	if bidOrder.Seq < askOrder.Seq {
		price = bidOrder.Price
	}

	fill := Fill[T]{
		BidID:    bid.id,
		AskID:    ask.id,
		Bid:      *bidOrder,
		Ask:      *askOrder,
		Quantity: qty,
		Price:    price,
	}

	// Update the surviving order before any entity is removed; removal may
	// move component storage.
	switch {
	case bidOrder.Amount > askOrder.Amount:
		bidOrder.Amount -= qty
		fill.AskFilled = true
		b.remove(ask)
	case askOrder.Amount > bidOrder.Amount:
		askOrder.Amount -= qty
		fill.BidFilled = true
		b.remove(bid)
	default:
		fill.BidFilled, fill.AskFilled = true, true
		b.remove(bid)
		b.remove(ask)
	}
	return fill
}
