package book

import (
	"math"
	"math/bits"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davout/gekko/pkg/util"
)

// DefaultBasePrecision is the fixed-point scale used to convert base
// amounts into quote amounts: 8 decimal digits.
const DefaultBasePrecision = 8

// Book is the matching engine for a single currency pair. It owns both
// resting sides, the event tape and the index of every accepted order
// id. A Book expects exactly one logical thread to drive it; it does
// no locking of its own.
type Book struct {
	pair          string
	basePrecision int
	scale         int64

	bids *BookSide
	asks *BookSide
	tape *Tape

	received map[uuid.UUID]*Order

	log   *zap.SugaredLogger
	clock util.Clock
}

// NewBook builds an empty book for the given pair. precision <= 0
// selects DefaultBasePrecision. A nil logger disables logging, a nil
// clock uses wall-clock time.
func NewBook(pair string, precision int, logger *zap.Logger, clock util.Clock) *Book {
	if precision <= 0 {
		precision = DefaultBasePrecision
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = util.RealClock{}
	}
	return &Book{
		pair:          pair,
		basePrecision: precision,
		scale:         pow10(precision),
		bids:          NewBookSide(Bid),
		asks:          NewBookSide(Ask),
		tape:          NewTape(logger, clock),
		received:      make(map[uuid.UUID]*Order),
		log:           logger.Sugar(),
		clock:         clock,
	}
}

func pow10(n int) int64 {
	p := int64(1)
	for i := 0; i < n; i++ {
		p *= 10
	}
	return p
}

func (b *Book) Pair() string       { return b.pair }
func (b *Book) BasePrecision() int { return b.basePrecision }
func (b *Book) Scale() int64       { return b.scale }
func (b *Book) Tape() *Tape        { return b.tape }
func (b *Book) Bids() *BookSide    { return b.bids }
func (b *Book) Asks() *BookSide    { return b.asks }

// Bid returns the best bid price, zero when the side is empty.
func (b *Book) Bid() int64 { return b.bids.Top() }

// Ask returns the best ask price, zero when the side is empty.
func (b *Book) Ask() int64 { return b.asks.Top() }

// Spread returns ask minus bid, zero unless both sides are populated.
func (b *Book) Spread() int64 {
	if b.Bid() > 0 && b.Ask() > 0 {
		return b.Ask() - b.Bid()
	}
	return 0
}

func (b *Book) sideFor(s Side) *BookSide {
	if s == Bid {
		return b.bids
	}
	return b.asks
}

// ReceiveOrder is the single entry point of the acceptance state
// machine. Every order terminates with exactly one disposition,
// observable on the tape; recoverable failures become reject events
// and invariant violations panic.
func (b *Book) ReceiveOrder(o *Order) {
	now := b.clock.Now().Unix()

	if _, seen := b.received[o.ID]; seen {
		b.reject(o, ReasonDuplicateID)
		return
	}
	if o.Expired(now) {
		b.reject(o, ReasonExpired)
		return
	}

	if o.IsStop() {
		last := b.tape.Last()
		if last == 0 {
			panic("stop order received before any trade occurred")
		}
		o.initStopPrice(last)
		if !o.ShouldTrigger(last) {
			b.received[o.ID] = o
			b.tape.Append(o.Message(EvReceived))
			b.sideFor(o.Side).AddStop(o)
			return
		}
	}

	if o.PostOnly && o.Crosses(b.sideFor(o.Side.Opposite()).Front()) {
		b.reject(o, ReasonWouldExecute)
		return
	}

	b.received[o.ID] = o
	b.tape.Append(o.Message(EvReceived))
	b.match(o)
	b.triggerStops()
}

func (b *Book) reject(o *Order, reason Reason) {
	m := o.Message(EvReject)
	m.Reason = reason
	b.tape.Append(m)
}

// match runs the matching loop for an incoming taker and settles its
// terminal disposition. Triggered STOP orders re-enter here directly,
// so the post-only guard is rechecked.
func (b *Book) match(taker *Order) {
	opp := b.sideFor(taker.Side.Opposite())

	if taker.PostOnly && taker.Crosses(opp.Front()) {
		b.reject(taker, ReasonWouldExecute)
		return
	}

	old := b.Ticker()
	now := b.clock.Now().Unix()

	var prevMaker uuid.UUID
	matchedOnce := false
	for !taker.Filled() {
		maker := opp.Front()
		if !taker.Crosses(maker) {
			break
		}
		if matchedOnce && maker.ID == prevMaker {
			panic("infinite matching loop detected")
		}
		prevMaker, matchedOnce = maker.ID, true

		switch {
		case maker.Expired(now):
			opp.Remove(maker.ID)
			b.done(maker, ReasonExpired)
		case maker.UID == taker.UID:
			// Self-trade prevention: the resting order yields,
			// the taker keeps matching.
			opp.Remove(maker.ID)
			b.done(maker, ReasonCanceled)
		default:
			b.executeTrade(maker, taker)
			if maker.Filled() {
				opp.Remove(maker.ID)
				b.done(maker, ReasonFilled)
			}
		}
	}

	switch {
	case taker.Filled():
		b.done(taker, ReasonFilled)
	case taker.FillOrKill():
		b.done(taker, ReasonKilled)
	default:
		b.sideFor(taker.Side).Insert(taker)
		b.tape.Append(taker.Message(EvOpen))
	}

	b.tickIfChanged(old)
}

func (b *Book) done(o *Order, reason Reason) {
	m := o.Message(EvDone)
	m.Reason = reason
	b.tape.Append(m)
}

func (b *Book) tickIfChanged(old Ticker) {
	if t := b.Ticker(); t != old {
		b.tape.Append(t.message())
	}
}

// executeTrade executes one trade between a resting maker and the
// incoming taker at the maker's price. Sizing follows the margin
// rounding rules: the base cap under a quote margin rounds down for a
// bid and up for an ask, and the quote cost never exceeds the
// remaining margin.
func (b *Book) executeTrade(maker, taker *Order) {
	if maker.Kind != Limit {
		panic("maker must be a limit order")
	}
	price := maker.Price

	base := maker.Remaining
	if taker.Size > 0 && taker.Remaining < base {
		base = taker.Remaining
	}

	margined := taker.Kind == Market && taker.QuoteMargin > 0
	if margined {
		var affordable int64
		if taker.Bid() {
			affordable = mulDiv(taker.RemainingQuoteMargin, b.scale, price)
		} else {
			affordable = mulDivCeil(taker.RemainingQuoteMargin, b.scale, price)
		}
		if affordable < base {
			base = affordable
			taker.MaxPrecision = true
		}
	}

	// The margin cannot buy a single base unit at this price. The max
	// precision flag terminates the order; nothing trades and the last
	// price must not move.
	if base == 0 {
		return
	}

	var quote int64
	if margined {
		quote = mulDivCeil(price, base, b.scale)
		if quote > taker.RemainingQuoteMargin {
			quote = taker.RemainingQuoteMargin
		}
	} else {
		quote = mulDiv(price, base, b.scale)
	}

	maker.Remaining -= base
	if taker.Size > 0 {
		taker.Remaining -= base
	}
	if taker.QuoteMargin > 0 {
		taker.RemainingQuoteMargin -= quote
	}

	tick := TickDown
	if taker.Bid() {
		tick = TickUp
	}
	b.tape.Append(&Event{
		Type:         EvExecution,
		Price:        price,
		BaseSize:     base,
		QuoteSize:    quote,
		MakerOrderID: maker.ID.String(),
		TakerOrderID: taker.ID.String(),
		Tick:         tick,
	})
}

// mulDiv returns floor(a*b/c) through a 128-bit intermediate product,
// so price*size and margin*scale never wrap int64. All operands are
// non-negative; a quotient beyond int64 saturates.
func mulDiv(a, b, c int64) int64 {
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	if hi >= uint64(c) {
		return math.MaxInt64
	}
	q, _ := bits.Div64(hi, lo, uint64(c))
	if q > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(q)
}

// mulDivCeil is mulDiv rounding up.
func mulDivCeil(a, b, c int64) int64 {
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	if hi >= uint64(c) {
		return math.MaxInt64
	}
	q, r := bits.Div64(hi, lo, uint64(c))
	if r > 0 {
		q++
	}
	if q > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(q)
}

// triggerStops ratchets and releases pending STOP orders until a pass
// changes nothing. A released stop goes through the normal matching
// pipeline, which can move the last price and release further stops.
func (b *Book) triggerStops() {
	for {
		last := b.tape.Last()
		if last == 0 {
			return
		}
		triggered := b.bids.takeTriggered(last)
		triggered = append(triggered, b.asks.takeTriggered(last)...)
		if len(triggered) == 0 {
			return
		}
		for _, o := range triggered {
			b.match(o)
		}
	}
}

// Cancel removes the identified order from its resting list or pending
// STOP bag. Unknown or already-terminal ids are a no-op.
func (b *Book) Cancel(id uuid.UUID) {
	o, ok := b.received[id]
	if !ok {
		return
	}
	old := b.Ticker()
	side := b.sideFor(o.Side)
	removed := side.Remove(id)
	if removed == nil {
		removed = side.RemoveStop(id)
	}
	if removed == nil {
		return
	}
	b.done(removed, ReasonCanceled)
	b.tickIfChanged(old)
}

// RemoveExpired sweeps both sides, resting lists and STOP bags alike,
// evicting every order past its deadline. A single ticker event is
// emitted at the end if the best bid or ask moved.
func (b *Book) RemoveExpired() {
	now := b.clock.Now().Unix()
	old := b.Ticker()
	for _, side := range [2]*BookSide{b.bids, b.asks} {
		for _, o := range side.removeExpired(now) {
			b.done(o, ReasonExpired)
		}
	}
	b.tickIfChanged(old)
}
