// Package market implements continuous double auctions for commodities and
// freight capacity.
package market

import (
	"errors"

	"github.com/mlange-42/ark/ecs"
)

var (
	// ErrInvalidAmount rejects orders whose amount is not strictly positive.
	ErrInvalidAmount = errors.New("order amount must be positive")

	// ErrInvalidPrice rejects negative, infinite or NaN prices.
	ErrInvalidPrice = errors.New("order price must be finite and non-negative")

	// ErrOrderNotFound is returned for orders that were filled, withdrawn or
	// never posted to this market.
	ErrOrderNotFound = errors.New("order not found")
)

// OrderID is a generation-checked identifier for a posted order.
type OrderID = ecs.Entity

// Side is the direction of an order.
type Side uint8

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}

// Order is a standing limit order. Amount is the remaining quantity and is
// strictly positive while the order is in the book.
type Order[T any] struct {
	Side   Side
	Price  float64
	Amount float64
	Seq    uint64     // posting sequence; earlier orders win price ties
	Owner  ecs.Entity // posting colony, or zero
	Terms  T
}

// Fill records one match between a bid and an ask. Bid and Ask are
// snapshots taken before the fill was applied.
type Fill[T any] struct {
	BidID, AskID OrderID
	Bid, Ask     Order[T]
	Quantity     float64
	Price        float64
	BidFilled    bool // bid left the book
	AskFilled    bool // ask left the book
}
