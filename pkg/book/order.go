package book

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Side of the book an order belongs to.
type Side int8

const (
	Bid Side = 1
	Ask Side = -1
)

func (s Side) String() string {
	switch s {
	case Bid:
		return "bid"
	case Ask:
		return "ask"
	}
	return fmt.Sprintf("side(%d)", int8(s))
}

func (s Side) Opposite() Side { return -s }

func (s Side) MarshalText() ([]byte, error) {
	switch s {
	case Bid, Ask:
		return []byte(s.String()), nil
	}
	return nil, fmt.Errorf("invalid side <%d>", int8(s))
}

func (s *Side) UnmarshalText(text []byte) error {
	switch string(text) {
	case "bid":
		*s = Bid
	case "ask":
		*s = Ask
	default:
		return fmt.Errorf("invalid side <%s>", text)
	}
	return nil
}

// Kind is the closed set of order kinds. Every switch over a Kind must
// handle both values; there is no third variant.
type Kind int8

const (
	Limit Kind = iota
	Market
)

func (k Kind) MarshalText() ([]byte, error) {
	switch k {
	case Limit:
		return []byte("limit"), nil
	case Market:
		return []byte("market"), nil
	}
	return nil, fmt.Errorf("invalid order kind <%d>", int8(k))
}

func (k *Kind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "limit":
		*k = Limit
	case "market":
		*k = Market
	default:
		return fmt.Errorf("invalid order kind <%s>", text)
	}
	return nil
}

// TrailingPctMultiplier scales stop_percent: a trailing percentage p
// places the stop at last +/- last*p/1000, so valid values are
// strictly between 0 and 1000.
const TrailingPctMultiplier = 1000

// Order is a trade order. All amounts are fixed-point integers in the
// book's base precision, prices are quote-currency fixed-point. A zero
// Size on a Market bid means the order is sized by its quote margin
// alone.
type Order struct {
	Kind Kind      `json:"kind"`
	ID   uuid.UUID `json:"id"`
	UID  uuid.UUID `json:"uid"`
	Side Side      `json:"side"`

	Size      int64 `json:"size,omitempty"`
	Remaining int64 `json:"remaining"`

	// Limit only.
	Price int64 `json:"price,omitempty"`

	// Market only.
	QuoteMargin          int64 `json:"quote_margin,omitempty"`
	RemainingQuoteMargin int64 `json:"remaining_quote_margin,omitempty"`
	// MaxPrecision is set once margin rounding can no longer buy a
	// whole base unit; the order then counts as filled.
	MaxPrecision bool `json:"max_precision,omitempty"`

	Expiration int64 `json:"expiration,omitempty"` // epoch seconds
	CreatedAt  int64 `json:"created_at"`           // unix nanoseconds, price-time tie-break
	PostOnly   bool  `json:"post_only,omitempty"`

	// STOP trigger spec: at most one of the three may be set.
	StopPrice   int64 `json:"stop_price,omitempty"`
	StopPercent int64 `json:"stop_percent,omitempty"`
	StopOffset  int64 `json:"stop_offset,omitempty"`
}

// Opts carries the optional order attributes shared by both kinds.
type Opts struct {
	Expiration  int64
	PostOnly    bool
	StopPrice   int64
	StopPercent int64
	StopOffset  int64
}

// NewLimitOrder builds a limit order. Size and price are mandatory and
// must be positive.
func NewLimitOrder(side Side, id, uid uuid.UUID, size, price int64, opts *Opts) (*Order, error) {
	o := &Order{
		Kind:      Limit,
		ID:        id,
		UID:       uid,
		Side:      side,
		Size:      size,
		Remaining: size,
		Price:     price,
		CreatedAt: time.Now().UnixNano(),
	}
	o.applyOpts(opts)
	if price <= 0 {
		return nil, fmt.Errorf("price must be a positive integer")
	}
	if size <= 0 {
		return nil, fmt.Errorf("size must be a positive integer")
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	return o, nil
}

// NewMarketOrder builds a market order. A market ask must specify a
// size; a market bid must specify a quote margin. The other constraint
// is optional on each side.
func NewMarketOrder(side Side, id, uid uuid.UUID, size, quoteMargin int64, opts *Opts) (*Order, error) {
	o := &Order{
		Kind:                 Market,
		ID:                   id,
		UID:                  uid,
		Side:                 side,
		Size:                 size,
		Remaining:            size,
		QuoteMargin:          quoteMargin,
		RemainingQuoteMargin: quoteMargin,
		CreatedAt:            time.Now().UnixNano(),
	}
	o.applyOpts(opts)
	switch side {
	case Bid:
		if quoteMargin <= 0 {
			return nil, fmt.Errorf("quote currency margin must be provided for a market bid")
		}
	case Ask:
		if size <= 0 {
			return nil, fmt.Errorf("size must be provided for a market ask")
		}
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *Order) applyOpts(opts *Opts) {
	if opts == nil {
		return
	}
	o.Expiration = opts.Expiration
	o.PostOnly = opts.PostOnly
	o.StopPrice = opts.StopPrice
	o.StopPercent = opts.StopPercent
	o.StopOffset = opts.StopOffset
}

func (o *Order) validate() error {
	if o.ID == uuid.Nil {
		return fmt.Errorf("orders must have an id")
	}
	if o.UID == uuid.Nil {
		return fmt.Errorf("orders must have a user id")
	}
	if o.Side != Bid && o.Side != Ask {
		return fmt.Errorf("side must be either bid or ask")
	}
	if o.Size < 0 {
		return fmt.Errorf("size must be a positive integer")
	}
	if o.Expiration < 0 {
		return fmt.Errorf("expiration must be omitted or be a positive timestamp")
	}
	if o.StopPrice < 0 {
		return fmt.Errorf("stop price must be a positive integer")
	}
	if o.StopPercent < 0 || o.StopPercent >= TrailingPctMultiplier {
		return fmt.Errorf("trailing percentage must be a positive integer below %d", TrailingPctMultiplier)
	}
	if o.StopOffset < 0 {
		return fmt.Errorf("trailing offset must be a positive integer")
	}
	set := 0
	for _, v := range []int64{o.StopPrice, o.StopPercent, o.StopOffset} {
		if v > 0 {
			set++
		}
	}
	if set > 1 {
		return fmt.Errorf("stop orders must specify exactly one of stop price, trailing percentage or trailing offset")
	}
	return nil
}

func (o *Order) Bid() bool { return o.Side == Bid }
func (o *Order) Ask() bool { return o.Side == Ask }

// Crosses reports whether this order can execute against the given
// resting limit order. A nil maker never crosses, same-side orders
// never cross, and a market order crosses any opposing limit.
func (o *Order) Crosses(maker *Order) bool {
	if maker == nil {
		return false
	}
	if maker.Kind != Limit {
		panic("can not test a cross against a market order")
	}
	if o.Side == maker.Side {
		return false
	}
	switch o.Kind {
	case Market:
		return true
	case Limit:
		return (o.Bid() && o.Price >= maker.Price) || (o.Ask() && o.Price <= maker.Price)
	}
	panic(fmt.Sprintf("unknown order kind <%d>", int8(o.Kind)))
}

// IsStop reports whether the order carries a STOP trigger spec.
func (o *Order) IsStop() bool {
	return o.StopPrice > 0 || o.StopPercent > 0 || o.StopOffset > 0
}

// Trailing reports whether the STOP trigger follows the market.
func (o *Order) Trailing() bool {
	return o.StopPercent > 0 || o.StopOffset > 0
}

// ShouldTrigger reports whether the last trade price releases this
// STOP order into the matching pipeline. Calling it on a non-stop
// order is a bug.
func (o *Order) ShouldTrigger(last int64) bool {
	if last <= 0 {
		panic("provided price can't be nil")
	}
	if !o.IsStop() {
		panic("called ShouldTrigger on a non-stop order")
	}
	if o.Bid() {
		return o.StopPrice <= last
	}
	return o.StopPrice >= last
}

// initStopPrice computes the initial trigger price of a trailing STOP
// from the current last trade price. A fixed stop price is left alone.
func (o *Order) initStopPrice(last int64) {
	if o.StopPrice > 0 {
		return
	}
	o.StopPrice = o.trailingStopPrice(last)
}

// ratchet re-derives a trailing trigger price against a new last trade
// price, moving it only towards the trigger: up for an ask, down for a
// bid. Fixed stops never move.
func (o *Order) ratchet(last int64) {
	if !o.Trailing() {
		return
	}
	candidate := o.trailingStopPrice(last)
	if (o.Ask() && candidate > o.StopPrice) || (o.Bid() && candidate < o.StopPrice) {
		o.StopPrice = candidate
	}
}

func (o *Order) trailingStopPrice(last int64) int64 {
	sign := int64(1)
	if o.Ask() {
		sign = -1
	}
	if o.StopPercent > 0 {
		return last + sign*last*o.StopPercent/TrailingPctMultiplier
	}
	return last + sign*o.StopOffset
}

// FillOrKill reports whether the order must execute immediately or be
// discarded. All market orders are fill-or-kill.
func (o *Order) FillOrKill() bool { return o.Kind == Market }

// Expired reports whether the order deadline has passed at the given
// epoch-seconds timestamp.
func (o *Order) Expired(now int64) bool {
	return o.Expiration > 0 && o.Expiration <= now
}

// Filled reports whether the order is terminally executed. A market
// order is also filled once its quote margin is exhausted or rounding
// has made the leftover margin unusable.
func (o *Order) Filled() bool {
	switch o.Kind {
	case Limit:
		return o.Remaining == 0
	case Market:
		return (o.Size > 0 && o.Remaining == 0) ||
			(o.QuoteMargin > 0 && o.RemainingQuoteMargin == 0) ||
			o.MaxPrecision
	}
	panic(fmt.Sprintf("unknown order kind <%d>", int8(o.Kind)))
}

// Message builds a tape event carrying this order's lifecycle fields.
// The caller fills in the reason for done/reject events.
func (o *Order) Message(t EventType) *Event {
	e := &Event{
		Type:       t,
		OrderID:    o.ID.String(),
		Side:       o.Side,
		Size:       o.Size,
		Remaining:  o.Remaining,
		Expiration: o.Expiration,
	}
	switch o.Kind {
	case Limit:
		e.Price = o.Price
	case Market:
		e.QuoteMargin = o.QuoteMargin
		e.RemainingQuoteMargin = o.RemainingQuoteMargin
	}
	return e
}
