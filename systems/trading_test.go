package systems

import (
	"testing"
	"time"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/colonies/components"
	"github.com/pthm-cable/colonies/market"
	"github.com/pthm-cable/colonies/scheduler"
	"github.com/pthm-cable/colonies/store"
)

type tradingFixture struct {
	colonies    *store.Colonies
	production  *ProductionSystem
	commodities *market.CommodityMarket
	freight     *market.FreightMarket
	trading     *TradingSystem
}

func testPolicy() TradingPolicy {
	return TradingPolicy{
		ReferencePrice: [components.NumCommodities]float64{1, 2, 10, 1},
		BidPremium:     0.5,
		AskDiscount:    0.1,
		ReserveDays:    3,
		MinLot:         1,
	}
}

func newTradingFixture(t *testing.T, freighters ...Freighter) *tradingFixture {
	t.Helper()
	w := ecs.NewWorld()
	f := &tradingFixture{
		colonies:   store.NewColonies(w),
		production: NewProductionSystem(w, ProductionInterval),
		freight:    market.NewFreightMarket(w),
	}
	f.commodities = market.NewCommodityMarket(w, f.freight, market.LinearFreightPricer{Base: 0.1, PerDistance: 0.01}, 10*scheduler.Day)
	f.trading = NewTradingSystem(f.colonies, f.commodities, f.freight, testPolicy(), ProductionInterval, 10*scheduler.Day, freighters)
	return f
}

// foundryAndMine founds a foundry colony short of ore and a mine colony
// with ore to spare, 100 units apart.
func (f *tradingFixture) foundryAndMine(t *testing.T) (foundry, mine store.ColonyID) {
	t.Helper()
	foundry = f.colonies.Found("Forge", components.Location{X: 0})
	mine = f.colonies.Found("Pit", components.Location{X: 100})
	if err := f.colonies.SetProductionRate(foundry, components.Foundry, 0.001); err != nil {
		t.Fatal(err)
	}
	if err := f.colonies.Deposit(mine, components.Ore, 10000); err != nil {
		t.Fatal(err)
	}
	f.production.RunCycle()
	return foundry, mine
}

func TestTrading_SettlesIntoStockpiles(t *testing.T) {
	f := newTradingFixture(t)
	foundry, mine := f.foundryAndMine(t)

	forge := mustLookup(t, f.colonies, foundry)
	reserve := f.trading.Reserve(forge, components.Ore)
	if want := 0.001 * 4 * 86400 * 3; !approx(reserve, want) {
		t.Fatalf("reserve = %v, want %v", reserve, want)
	}
	mineBefore := mustLookup(t, f.colonies, mine).Stockpile.Mass[components.Ore]

	round := f.trading.Update(scheduler.At(3 * scheduler.Day))
	if round.Bids != 1 || round.Asks != 1 {
		t.Fatalf("posted %d bids, %d asks; want 1, 1", round.Bids, round.Asks)
	}
	if len(round.Trades) != 1 {
		t.Fatalf("got %d trades, want 1", len(round.Trades))
	}
	if !approx(round.Settled[components.Ore], reserve) {
		t.Errorf("settled ore = %v, want %v", round.Settled[components.Ore], reserve)
	}
	if got := mustLookup(t, f.colonies, foundry).Stockpile.Mass[components.Ore]; !approx(got, reserve) {
		t.Errorf("foundry ore = %v, want %v", got, reserve)
	}
	if got := mustLookup(t, f.colonies, mine).Stockpile.Mass[components.Ore]; !approx(got, mineBefore-reserve) {
		t.Errorf("mine ore = %v, want %v", got, mineBefore-reserve)
	}
	if round.Trades[0].Freight.IsZero() {
		t.Error("trade between distant colonies posted no freight demand")
	}
	if f.trading.PendingShipments() != 1 {
		t.Errorf("pending shipments = %d, want 1", f.trading.PendingShipments())
	}
}

func TestTrading_BidPremiumFollowsRationing(t *testing.T) {
	f := newTradingFixture(t)
	foundry, _ := f.foundryAndMine(t)
	col := mustLookup(t, f.colonies, foundry)

	if got := f.trading.BidPrice(col, components.Ore); got != 2 {
		t.Errorf("fully supplied bid = %v, want reference 2", got)
	}
	col.Rationing.Smoothed[components.Ore] = 0
	if got := f.trading.BidPrice(col, components.Ore); got != 3 {
		t.Errorf("starved bid = %v, want 3", got)
	}
	if got := f.trading.AskPrice(components.Ore); !approx(got, 1.8) {
		t.Errorf("ask = %v, want 1.8", got)
	}
}

func TestTrading_WithdrawsStaleOrders(t *testing.T) {
	f := newTradingFixture(t)
	foundry := f.colonies.Found("Forge", components.Location{})
	f.colonies.SetProductionRate(foundry, components.Foundry, 0.001)
	f.production.RunCycle()

	// Nobody sells ore, so the bid rests. Each round replaces it.
	for i := 1; i <= 3; i++ {
		f.trading.Update(scheduler.At(time.Duration(i) * TradeInterval))
		if n, _ := f.commodities.Book(components.Ore).Depth(market.Buy); n != 1 {
			t.Fatalf("round %d: %d ore bids, want 1", i, n)
		}
	}

	f.trading.Forget(foundry)
	if n, _ := f.commodities.Book(components.Ore).Depth(market.Buy); n != 0 {
		t.Errorf("bids left after Forget = %d", n)
	}
}

func TestTrading_MinLot(t *testing.T) {
	f := newTradingFixture(t)
	id := f.colonies.Found("Crumbs", components.Location{})
	f.colonies.Deposit(id, components.Metal, 0.5)

	round := f.trading.Update(scheduler.At(TradeInterval))
	if round.Asks != 0 {
		t.Errorf("posted %d asks below the minimum lot", round.Asks)
	}
}

func TestTrading_FreighterServesShipment(t *testing.T) {
	hauler := Freighter{
		Name:     "Hauler",
		Capacity: 1e6,
		Price:    0.5,
		Drive:    market.Drive{Range: 1000, Speed: 1},
	}
	f := newTradingFixture(t, hauler)
	// Freight bids pay 0.1 + 0.01*100 = 1.1 per kg, above the hauler's 0.5.
	f.foundryAndMine(t)

	round := f.trading.Update(scheduler.At(TradeInterval))
	if len(round.FreightFills) != 1 {
		t.Fatalf("got %d freight fills, want 1", len(round.FreightFills))
	}
	if got, want := round.FreightFills[0].Quantity, round.Trades[0].Quantity; got != want {
		t.Errorf("freight carried %v, want %v", got, want)
	}
	if n, _ := f.freight.Book().Depth(market.Sell); n != 1 {
		t.Errorf("freighter asks = %d, want 1 standing", n)
	}

	// The partly used offer stays; it is not posted twice.
	f.trading.Update(scheduler.At(2 * TradeInterval))
	if n, _ := f.freight.Book().Depth(market.Sell); n != 1 {
		t.Errorf("freighter asks after second round = %d, want 1", n)
	}
}

func TestTrading_ExpiresUnservedFreight(t *testing.T) {
	f := newTradingFixture(t)
	f.foundryAndMine(t)

	f.trading.Update(scheduler.At(TradeInterval))
	if n, _ := f.freight.Book().Depth(market.Buy); n != 1 {
		t.Fatalf("freight bids = %d, want 1", n)
	}

	round := f.trading.Update(scheduler.At(TradeInterval + 11*scheduler.Day))
	if round.Expired != 1 {
		t.Errorf("expired = %d, want 1", round.Expired)
	}
}

func TestTrading_AbandonedSellerDeliversNothing(t *testing.T) {
	f := newTradingFixture(t)
	seller := f.colonies.Found("Ghost", components.Location{})
	buyer := f.colonies.Found("Buyer", components.Location{})
	f.colonies.Deposit(buyer, components.Ore, 1)

	if _, err := f.commodities.PostAsk(components.Ore, 1, 5, seller, components.Location{}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.commodities.PostBid(components.Ore, 1, 5, buyer, components.Location{}); err != nil {
		t.Fatal(err)
	}
	f.colonies.Abandon(seller)

	var round TradeRound
	for _, tr := range f.commodities.Match() {
		f.trading.settle(&tr, &round)
	}
	if round.Undelivered != 5 {
		t.Errorf("undelivered = %v, want 5", round.Undelivered)
	}
	if got := mustLookup(t, f.colonies, buyer).Stockpile.Mass[components.Ore]; got != 1 {
		t.Errorf("buyer ore = %v, want unchanged 1", got)
	}
}

func TestTrading_AbandonedBuyerReturnsGoods(t *testing.T) {
	f := newTradingFixture(t)
	seller := f.colonies.Found("Seller", components.Location{})
	buyer := f.colonies.Found("Ghost", components.Location{})
	if err := f.colonies.Deposit(seller, components.Ore, 20); err != nil {
		t.Fatal(err)
	}

	if _, err := f.commodities.PostAsk(components.Ore, 1, 5, seller, components.Location{}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.commodities.PostBid(components.Ore, 1, 5, buyer, components.Location{}); err != nil {
		t.Fatal(err)
	}
	if err := f.colonies.Abandon(buyer); err != nil {
		t.Fatal(err)
	}

	var round TradeRound
	for _, tr := range f.commodities.Match() {
		f.trading.settle(&tr, &round)
	}
	if round.Undelivered != 5 {
		t.Errorf("undelivered = %v, want 5", round.Undelivered)
	}
	if round.Volume() != 0 {
		t.Errorf("settled volume = %v, want 0", round.Volume())
	}
	if got := mustLookup(t, f.colonies, seller).Stockpile.Mass[components.Ore]; got != 20 {
		t.Errorf("seller ore = %v, want 20 after refund", got)
	}
}
