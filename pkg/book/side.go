package book

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// BookSide holds the open limit orders of one side of the book in
// price-time priority (best price first, then oldest first), plus the
// side's bag of pending STOP orders. Insertion keeps the vector sorted
// through binary search; partial fills never reorder anything.
type BookSide struct {
	side   Side
	orders []*Order
	stops  []*Order
}

func NewBookSide(side Side) *BookSide {
	if side != Bid && side != Ask {
		panic(fmt.Sprintf("incorrect side <%d>", int8(side)))
	}
	return &BookSide{side: side}
}

func (s *BookSide) Side() Side { return s.side }

// before reports whether a has strictly higher matching priority than b.
func (s *BookSide) before(a, b *Order) bool {
	if a.Price != b.Price {
		if s.side == Bid {
			return a.Price > b.Price
		}
		return a.Price < b.Price
	}
	return a.CreatedAt < b.CreatedAt
}

// Insert places a resting limit order at its priority slot.
func (s *BookSide) Insert(o *Order) {
	if o.Side != s.side {
		panic(fmt.Sprintf("can't insert a %s order on the %s side", o.Side, s.side))
	}
	idx := sort.Search(len(s.orders), func(i int) bool {
		return s.before(o, s.orders[i])
	})
	s.orders = append(s.orders, nil)
	copy(s.orders[idx+1:], s.orders[idx:])
	s.orders[idx] = o
}

// Front returns the best-priority resting order, nil when empty.
func (s *BookSide) Front() *Order {
	if len(s.orders) == 0 {
		return nil
	}
	return s.orders[0]
}

// Top returns the best resting price, zero when the side is empty.
func (s *BookSide) Top() int64 {
	if o := s.Front(); o != nil {
		return o.Price
	}
	return 0
}

// Remove takes the identified order off the resting list and returns
// it, or nil when it is not resting here.
func (s *BookSide) Remove(id uuid.UUID) *Order {
	for i, o := range s.orders {
		if o.ID == id {
			s.orders = append(s.orders[:i], s.orders[i+1:]...)
			return o
		}
	}
	return nil
}

// AddStop parks an accepted but untriggered STOP order.
func (s *BookSide) AddStop(o *Order) {
	if o.Side != s.side {
		panic(fmt.Sprintf("can't park a %s stop on the %s side", o.Side, s.side))
	}
	s.stops = append(s.stops, o)
}

// RemoveStop takes the identified order out of the pending-STOP bag.
func (s *BookSide) RemoveStop(id uuid.UUID) *Order {
	for i, o := range s.stops {
		if o.ID == id {
			s.stops = append(s.stops[:i], s.stops[i+1:]...)
			return o
		}
	}
	return nil
}

// takeTriggered ratchets every trailing stop against the new last
// trade price and removes and returns the stops whose trigger now
// holds.
func (s *BookSide) takeTriggered(last int64) []*Order {
	var triggered []*Order
	kept := s.stops[:0]
	for _, o := range s.stops {
		o.ratchet(last)
		if o.ShouldTrigger(last) {
			triggered = append(triggered, o)
		} else {
			kept = append(kept, o)
		}
	}
	s.stops = kept
	return triggered
}

// removeExpired evicts and returns every resting and pending-STOP
// order past its deadline.
func (s *BookSide) removeExpired(now int64) []*Order {
	var expired []*Order
	keptOrders := s.orders[:0]
	for _, o := range s.orders {
		if o.Expired(now) {
			expired = append(expired, o)
		} else {
			keptOrders = append(keptOrders, o)
		}
	}
	s.orders = keptOrders
	keptStops := s.stops[:0]
	for _, o := range s.stops {
		if o.Expired(now) {
			expired = append(expired, o)
		} else {
			keptStops = append(keptStops, o)
		}
	}
	s.stops = keptStops
	return expired
}

func (s *BookSide) Len() int { return len(s.orders) }

// Orders returns the resting orders in priority order. The slice is
// shared; callers must not mutate it.
func (s *BookSide) Orders() []*Order { return s.orders }

// Stops returns the pending STOP orders in arrival order.
func (s *BookSide) Stops() []*Order { return s.stops }

// OrderAt returns the i-th resting order by priority, nil out of range.
func (s *BookSide) OrderAt(i int) *Order {
	if i < 0 || i >= len(s.orders) {
		return nil
	}
	return s.orders[i]
}
