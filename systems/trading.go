package systems

import (
	"cmp"
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"time"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/colonies/components"
	"github.com/pthm-cable/colonies/market"
	"github.com/pthm-cable/colonies/scheduler"
	"github.com/pthm-cable/colonies/store"
)

// TradingPolicy sets how colonies price their orders.
type TradingPolicy struct {
	ReferencePrice [components.NumCommodities]float64
	BidPremium     float64 // extra paid at zero smoothed fulfillment, as a fraction of reference
	AskDiscount    float64 // surplus is offered this far below reference
	ReserveDays    float64 // days of input demand a colony keeps back
	MinLot         float64 // orders smaller than this are not posted
}

// Freighter is a standing source of freight capacity.
type Freighter struct {
	Name     string
	Base     components.Location
	Capacity float64
	Price    float64
	Drive    market.Drive
}

// TradeRound summarizes one trading update.
type TradeRound struct {
	Bids, Asks   int
	Trades       []market.Trade
	Settled      [components.NumCommodities]components.Mass
	Undelivered  components.Mass // traded mass the seller no longer had
	FreightFills []market.Fill[market.FreightTerms]
	Expired      int // freight bids withdrawn unserved
}

// Volume returns the total settled mass.
func (r *TradeRound) Volume() components.Mass {
	var sum components.Mass
	for _, m := range r.Settled {
		sum += m
	}
	return sum
}

type shipment struct {
	id     market.OrderID
	posted scheduler.Time
}

// TradingSystem posts every colony's buy and sell orders, clears the
// commodity and freight markets, and settles trades into stockpiles.
type TradingSystem struct {
	colonies    *store.Colonies
	commodities *market.CommodityMarket
	freight     *market.FreightMarket
	policy      TradingPolicy
	horizon     time.Duration
	cycles      float64 // production cycles per day

	freighters []Freighter
	standing   []market.OrderID
	open       map[store.ColonyID][]market.OrderID
	shipments  []shipment
}

// NewTradingSystem creates a trading system. cycle is the production
// interval the colonies' demand was computed over; horizon bounds how long
// synthesized freight bids stay posted.
func NewTradingSystem(colonies *store.Colonies, commodities *market.CommodityMarket, freight *market.FreightMarket,
	policy TradingPolicy, cycle, horizon time.Duration, freighters []Freighter) *TradingSystem {
	if cycle <= 0 {
		panic(fmt.Sprintf("trading: non-positive production cycle %v", cycle))
	}
	return &TradingSystem{
		colonies:    colonies,
		commodities: commodities,
		freight:     freight,
		policy:      policy,
		horizon:     horizon,
		cycles:      float64(scheduler.Day) / float64(cycle),
		freighters:  freighters,
		standing:    make([]market.OrderID, len(freighters)),
		open:        make(map[store.ColonyID][]market.OrderID),
	}
}

// Policy returns the pricing policy in use.
func (s *TradingSystem) Policy() TradingPolicy {
	return s.policy
}

// Update runs one trading round at now.
func (s *TradingSystem) Update(now scheduler.Time) TradeRound {
	var round TradeRound

	// Removal order decides which entity slots new orders reuse.
	stale := slices.SortedFunc(maps.Keys(s.open), func(a, b store.ColonyID) int {
		return cmp.Compare(a.ID(), b.ID())
	})
	for _, id := range stale {
		s.Forget(id)
	}
	s.colonies.Each(func(col store.Colony) {
		s.post(col, &round)
	})

	round.Trades = s.commodities.Match()
	for i := range round.Trades {
		s.settle(&round.Trades[i], &round)
		if !round.Trades[i].Freight.IsZero() {
			s.shipments = append(s.shipments, shipment{id: round.Trades[i].Freight, posted: now})
		}
	}

	round.Expired = s.expire(now)
	s.offerCapacity()
	round.FreightFills = s.freight.Match()
	return round
}

// Forget withdraws every open order a colony has posted. Orders that were
// filled in the meantime are skipped.
func (s *TradingSystem) Forget(id store.ColonyID) {
	for _, oid := range s.open[id] {
		if err := s.commodities.Withdraw(oid); err != nil && !errors.Is(err, market.ErrOrderNotFound) {
			panic(fmt.Sprintf("trading: withdraw %v: %v", oid, err))
		}
	}
	delete(s.open, id)
}

// Reserve returns how much of a commodity a colony keeps back.
func (s *TradingSystem) Reserve(col store.Colony, c components.Commodity) components.Mass {
	return col.Demand.Requested[c] * s.cycles * s.policy.ReserveDays
}

// BidPrice returns what a colony offers for a commodity it is short of.
func (s *TradingSystem) BidPrice(col store.Colony, c components.Commodity) float64 {
	urgency := 1 - col.Rationing.Smoothed[c]
	return s.policy.ReferencePrice[c] * (1 + s.policy.BidPremium*math.Max(0, urgency))
}

// AskPrice returns what a colony asks for its surplus.
func (s *TradingSystem) AskPrice(c components.Commodity) float64 {
	return s.policy.ReferencePrice[c] * math.Max(0, 1-s.policy.AskDiscount)
}

func (s *TradingSystem) post(col store.Colony, round *TradeRound) {
	var ids []market.OrderID
	for _, c := range components.Commodities() {
		reserve := s.Reserve(col, c)
		stock := col.Stockpile.Mass[c]

		switch {
		case reserve-stock >= s.policy.MinLot && reserve > stock:
			id, err := s.commodities.PostBid(c, s.BidPrice(col, c), reserve-stock, col.ID, *col.Location)
			if err != nil {
				panic(fmt.Sprintf("trading: bid for %v: %v", c, err))
			}
			ids = append(ids, id)
			round.Bids++
		case stock-reserve >= s.policy.MinLot && stock > reserve:
			id, err := s.commodities.PostAsk(c, s.AskPrice(c), stock-reserve, col.ID, *col.Location)
			if err != nil {
				panic(fmt.Sprintf("trading: ask for %v: %v", c, err))
			}
			ids = append(ids, id)
			round.Asks++
		}
	}
	if len(ids) > 0 {
		s.open[col.ID] = ids
	}
}

// settle moves traded mass from seller to buyer. A seller that was
// abandoned delivers nothing; a buyer that was abandoned returns the goods.
func (s *TradingSystem) settle(t *market.Trade, round *TradeRound) {
	taken, err := s.colonies.Withdraw(t.Ask.Owner, t.Commodity, t.Quantity)
	if err != nil {
		round.Undelivered += t.Quantity
		return
	}
	round.Undelivered += t.Quantity - taken

	if err := s.colonies.Deposit(t.Bid.Owner, t.Commodity, taken); err != nil {
		if errors.Is(err, store.ErrColonyNotFound) {
			if err := s.colonies.Deposit(t.Ask.Owner, t.Commodity, taken); err != nil {
				panic(fmt.Sprintf("trading: refund %v to seller: %v", t.Commodity, err))
			}
			round.Undelivered += taken
			return
		}
		panic(fmt.Sprintf("trading: settle %v: %v", t.Commodity, err))
	}
	round.Settled[t.Commodity] += taken
}

// expire withdraws synthesized freight bids older than the planning
// horizon and returns how many were still unserved.
func (s *TradingSystem) expire(now scheduler.Time) int {
	expired := 0
	kept := s.shipments[:0]
	for _, sh := range s.shipments {
		if now.Sub(sh.posted) <= s.horizon {
			kept = append(kept, sh)
			continue
		}
		if err := s.freight.Withdraw(sh.id); err == nil {
			expired++
		}
	}
	s.shipments = kept
	return expired
}

// offerCapacity re-posts the ask of every freighter whose previous offer
// was used up.
func (s *TradingSystem) offerCapacity() {
	for i, f := range s.freighters {
		if !s.standing[i].IsZero() && s.freight.Book().Has(s.standing[i]) {
			continue
		}
		id, err := s.freight.PostAsk(f.Price, f.Capacity, ecs.Entity{}, f.Drive, f.Base)
		if err != nil {
			panic(fmt.Sprintf("trading: freighter %q: %v", f.Name, err))
		}
		s.standing[i] = id
	}
}

// PendingShipments returns the number of synthesized freight bids still
// being tracked.
func (s *TradingSystem) PendingShipments() int {
	return len(s.shipments)
}
