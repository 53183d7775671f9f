package game

import (
	"encoding/binary"
	"encoding/hex"
	"hash"
	"math"

	"lukechampine.com/blake3"

	"github.com/pthm-cable/colonies/components"
	"github.com/pthm-cable/colonies/market"
	"github.com/pthm-cable/colonies/store"
)

// digester feeds fixed-width little-endian values into a hash.
type digester struct {
	h   hash.Hash
	buf [8]byte
}

func (d *digester) u64(v uint64) {
	binary.LittleEndian.PutUint64(d.buf[:], v)
	d.h.Write(d.buf[:])
}

func (d *digester) f64(v float64) { d.u64(math.Float64bits(v)) }

func (d *digester) f64s(vs []float64) {
	d.u64(uint64(len(vs)))
	for _, v := range vs {
		d.f64(v)
	}
}

func (d *digester) str(s string) {
	d.u64(uint64(len(s)))
	d.h.Write([]byte(s))
}

func (d *digester) loc(l components.Location) {
	d.f64(l.X)
	d.f64(l.Y)
}

func (d *digester) commodityTerms(t market.CommodityTerms) {
	d.u64(uint64(t.Commodity))
	d.loc(t.Location)
}

func (d *digester) freightTerms(t market.FreightTerms) {
	d.f64(t.Distance)
	d.u64(uint64(t.Duration))
	d.loc(t.Origin)
	d.loc(t.Destination)
	d.f64(t.Drive.Range)
	d.f64(t.Drive.Speed)
}

func digestBook[T any](d *digester, b *market.Book[T], terms func(*digester, T)) {
	for _, side := range []market.Side{market.Buy, market.Sell} {
		orders := b.Orders(side)
		d.u64(uint64(len(orders)))
		for _, o := range orders {
			d.f64(o.Price)
			d.f64(o.Amount)
			d.u64(o.Seq)
			d.u64(uint64(o.Owner.ID()))
			terms(d, o.Terms)
		}
	}
}

// Digest returns a BLAKE3 hash of the simulation state: the clock, every
// colony in entity order and every standing order. Two games built from the
// same config and seed and advanced to the same time have equal digests.
func (g *Game) Digest() [32]byte {
	d := &digester{h: blake3.New(32, nil)}

	d.u64(uint64(g.clock.Now()))

	d.u64(uint64(g.colonies.Len()))
	g.colonies.Each(func(col store.Colony) {
		d.u64(uint64(col.ID.ID()))
		d.str(col.Name.Value)
		d.loc(*col.Location)
		d.f64s(col.Stockpile.Mass[:])
		d.f64s(col.Demand.Requested[:])
		d.f64s(col.Fulfillment.Fraction[:])
		d.f64s(col.Production.Rate[:])
		d.f64s(col.Rationing.Smoothed[:])
	})

	for _, c := range components.Commodities() {
		digestBook(d, g.commodities.Book(c), (*digester).commodityTerms)
	}
	digestBook(d, g.freight.Book(), (*digester).freightTerms)

	var out [32]byte
	copy(out[:], d.h.Sum(nil))
	return out
}

// DigestHex returns Digest as a hex string.
func (g *Game) DigestHex() string {
	sum := g.Digest()
	return hex.EncodeToString(sum[:])
}
