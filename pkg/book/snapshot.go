package book

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/davout/gekko/pkg/util"
)

// snapshot is the persistable structural form of a book.
type snapshot struct {
	Pair          string            `json:"pair"`
	BasePrecision int               `json:"base_precision"`
	Bids          []*Order          `json:"bids"`
	Asks          []*Order          `json:"asks"`
	BidStops      []*Order          `json:"bid_stops,omitempty"`
	AskStops      []*Order          `json:"ask_stops,omitempty"`
	Tape          tapeSnapshot      `json:"tape"`
	Received      map[string]*Order `json:"received"`
}

type tapeSnapshot struct {
	Events         []*Event `json:"events"`
	Cursor         int      `json:"cursor"`
	Cursor24h      int      `json:"cursor_24h"`
	Last           int64    `json:"last,omitempty"`
	Open24h        int64    `json:"open_24h,omitempty"`
	High24h        int64    `json:"high_24h,omitempty"`
	Low24h         int64    `json:"low_24h,omitempty"`
	Volume24h      int64    `json:"volume_24h,omitempty"`
	QuoteVolume24h int64    `json:"quote_volume_24h,omitempty"`
}

// Serialize dumps the full book state, tape history included, as JSON.
func (b *Book) Serialize() ([]byte, error) {
	s := snapshot{
		Pair:          b.pair,
		BasePrecision: b.basePrecision,
		Bids:          b.bids.Orders(),
		Asks:          b.asks.Orders(),
		BidStops:      b.bids.Stops(),
		AskStops:      b.asks.Stops(),
		Tape: tapeSnapshot{
			Events:         b.tape.events,
			Cursor:         b.tape.cursor,
			Cursor24h:      b.tape.cursor24h,
			Last:           b.tape.last,
			Open24h:        b.tape.open24h,
			High24h:        b.tape.high24h,
			Low24h:         b.tape.low24h,
			Volume24h:      b.tape.volume24h,
			QuoteVolume24h: b.tape.quoteVolume24h,
		},
		Received: make(map[string]*Order, len(b.received)),
	}
	for id, o := range b.received {
		s.Received[id.String()] = o
	}
	return json.Marshal(s)
}

// Deserialize reconstructs a book from its serialized form. Persisted
// order arrays are re-sorted defensively, and the received index is
// rebuilt so that resting and pending-STOP orders are shared with the
// sides rather than duplicated.
func Deserialize(data []byte, logger *zap.Logger, clock util.Clock) (*Book, error) {
	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal book snapshot: %w", err)
	}
	if s.Pair == "" {
		return nil, fmt.Errorf("book snapshot has no pair")
	}

	b := NewBook(s.Pair, s.BasePrecision, logger, clock)

	for _, o := range s.Received {
		b.received[o.ID] = o
	}

	load := func(side *BookSide, orders, stops []*Order) error {
		for _, o := range orders {
			if err := normalizeLoaded(o, side.Side()); err != nil {
				return err
			}
			side.Insert(o)
			b.received[o.ID] = o
		}
		for _, o := range stops {
			if err := normalizeLoaded(o, side.Side()); err != nil {
				return err
			}
			if !o.IsStop() {
				return fmt.Errorf("order %s parked as a stop without a trigger spec", o.ID)
			}
			side.AddStop(o)
			b.received[o.ID] = o
		}
		return nil
	}
	if err := load(b.bids, s.Bids, s.BidStops); err != nil {
		return nil, err
	}
	if err := load(b.asks, s.Asks, s.AskStops); err != nil {
		return nil, err
	}

	b.tape.events = s.Tape.Events
	b.tape.cursor = s.Tape.Cursor
	b.tape.cursor24h = s.Tape.Cursor24h
	b.tape.last = s.Tape.Last
	b.tape.open24h = s.Tape.Open24h
	b.tape.high24h = s.Tape.High24h
	b.tape.low24h = s.Tape.Low24h
	b.tape.volume24h = s.Tape.Volume24h
	b.tape.quoteVolume24h = s.Tape.QuoteVolume24h

	return b, nil
}

// normalizeLoaded applies the defensive defaults tolerated in
// persisted orders: a missing remaining falls back to the full size.
func normalizeLoaded(o *Order, side Side) error {
	if o.Side != side {
		return fmt.Errorf("order %s has side %s, expected %s", o.ID, o.Side, side)
	}
	if o.Kind == Limit && o.Price <= 0 {
		return fmt.Errorf("persisted limit order %s has no price", o.ID)
	}
	if o.Remaining == 0 && o.Size > 0 {
		o.Remaining = o.Size
	}
	return nil
}
