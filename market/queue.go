package market

// entry is the book's index record for one order. Price and sequence never
// change after posting; the remaining amount lives in the order component.
type entry struct {
	id    OrderID
	side  Side
	price float64
	seq   uint64
	index int
}

// bidBefore orders bids by highest price, then earliest posting.
func bidBefore(a, b *entry) bool {
	if a.price != b.price {
		return a.price > b.price
	}
	return a.seq < b.seq
}

// askBefore orders asks by lowest price, then earliest posting.
func askBefore(a, b *entry) bool {
	if a.price != b.price {
		return a.price < b.price
	}
	return a.seq < b.seq
}

// queue is a heap.Interface over book entries.
type queue struct {
	items  []*entry
	before func(a, b *entry) bool
}

func (q *queue) Len() int           { return len(q.items) }
func (q *queue) Less(i, j int) bool { return q.before(q.items[i], q.items[j]) }

func (q *queue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	q.items[i].index = i
	q.items[j].index = j
}

func (q *queue) Push(x any) {
	e := x.(*entry)
	e.index = len(q.items)
	q.items = append(q.items, e)
}

func (q *queue) Pop() any {
	old := q.items
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	q.items = old[:n-1]
	return e
}

func (q *queue) peek() *entry {
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}
