package book

import (
	"time"

	"go.uber.org/zap"

	"github.com/davout/gekko/pkg/util"
)

// EventType enumerates the message types printed on the tape.
type EventType string

const (
	EvReceived  EventType = "received"
	EvOpen      EventType = "open"
	EvExecution EventType = "execution"
	EvDone      EventType = "done"
	EvReject    EventType = "reject"
	EvTicker    EventType = "ticker"
)

// Reason qualifies done and reject events.
type Reason string

const (
	ReasonFilled       Reason = "filled"
	ReasonKilled       Reason = "killed"
	ReasonCanceled     Reason = "canceled"
	ReasonExpired      Reason = "expired"
	ReasonDuplicateID  Reason = "duplicate_id"
	ReasonWouldExecute Reason = "would_execute"
)

// Tick directions reported on executions.
const (
	TickUp   = "up"
	TickDown = "down"
)

// Event is a single immutable tape record. Sequence and Time are
// stamped by the tape on append. Monetary zero values are omitted from
// the wire form; prices and sizes are never legitimately zero.
type Event struct {
	Type     EventType `json:"type"`
	Sequence int64     `json:"sequence"`
	Time     int64     `json:"time"` // unix nanoseconds

	// Lifecycle events.
	OrderID              string `json:"order_id,omitempty"`
	Side                 Side   `json:"side,omitempty"`
	Size                 int64  `json:"size,omitempty"`
	Remaining            int64  `json:"remaining,omitempty"`
	Price                int64  `json:"price,omitempty"`
	Expiration           int64  `json:"expiration,omitempty"`
	QuoteMargin          int64  `json:"quote_margin,omitempty"`
	RemainingQuoteMargin int64  `json:"remaining_quote_margin,omitempty"`
	Reason               Reason `json:"reason,omitempty"`

	// Executions.
	BaseSize     int64  `json:"base_size,omitempty"`
	QuoteSize    int64  `json:"quote_size,omitempty"`
	MakerOrderID string `json:"maker_order_id,omitempty"`
	TakerOrderID string `json:"taker_order_id,omitempty"`
	Tick         string `json:"tick,omitempty"`

	// Ticker snapshots.
	Bid            int64 `json:"bid,omitempty"`
	Ask            int64 `json:"ask,omitempty"`
	Last           int64 `json:"last,omitempty"`
	High24h        int64 `json:"high_24h,omitempty"`
	Low24h         int64 `json:"low_24h,omitempty"`
	Spread         int64 `json:"spread,omitempty"`
	Volume24h      int64 `json:"volume_24h,omitempty"`
	QuoteVolume24h int64 `json:"quote_volume_24h,omitempty"`
	Vwap24h        int64 `json:"vwap_24h,omitempty"`
}

// Window24h is the rolling statistics window.
const Window24h = 24 * time.Hour

// Tape records book events sequentially and maintains the rolling 24h
// execution statistics. It keeps two cursors: an external read cursor
// advanced by Next, and an internal eviction cursor for the 24h
// window.
type Tape struct {
	events    []*Event
	cursor    int
	cursor24h int

	last           int64
	open24h        int64
	high24h        int64
	low24h         int64
	volume24h      int64
	quoteVolume24h int64

	log   *zap.SugaredLogger
	clock util.Clock
}

// NewTape builds an empty tape. A nil logger disables event logging,
// a nil clock falls back to wall-clock time.
func NewTape(logger *zap.Logger, clock util.Clock) *Tape {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = util.RealClock{}
	}
	return &Tape{log: logger.Sugar(), clock: clock}
}

// Append stamps the event with the next sequence number and the
// current time, records it, and folds executions into the rolling 24h
// statistics before advancing the eviction cursor.
func (t *Tape) Append(e *Event) {
	e.Sequence = int64(len(t.events))
	e.Time = t.clock.Now().UnixNano()
	t.events = append(t.events, e)
	t.log.Infow("tape",
		"type", string(e.Type),
		"sequence", e.Sequence,
		"order_id", e.OrderID,
		"reason", string(e.Reason),
	)

	if e.Type == EvExecution {
		t.last = e.Price
		t.volume24h += e.BaseSize
		t.quoteVolume24h += e.QuoteSize
		if t.high24h == 0 || e.Price > t.high24h {
			t.high24h = e.Price
		}
		if t.low24h == 0 || e.Price < t.low24h {
			t.low24h = e.Price
		}
	}
	t.Move24hCursor()
}

// Next returns the next unread event, or nil when the reader has
// caught up with the tape head.
func (t *Tape) Next() *Event {
	if t.cursor >= len(t.events) {
		return nil
	}
	e := t.events[t.cursor]
	t.cursor++
	return e
}

// Move24hCursor evicts every execution older than 24 hours from the
// rolling statistics. Each evicted execution becomes the new 24h open;
// the high or low is rescanned only when the evicted price was the
// current extreme.
func (t *Tape) Move24hCursor() {
	cutoff := t.clock.Now().Add(-Window24h).UnixNano()
	for t.cursor24h < len(t.events) {
		e := t.events[t.cursor24h]
		if e.Time >= cutoff {
			return
		}
		if e.Type == EvExecution {
			t.volume24h -= e.BaseSize
			t.quoteVolume24h -= e.QuoteSize
			t.open24h = e.Price
			if e.Price == t.high24h {
				t.high24h = t.rescan(func(a, b int64) bool { return a > b })
			}
			if e.Price == t.low24h {
				t.low24h = t.rescan(func(a, b int64) bool { return a < b })
			}
		}
		t.cursor24h++
	}
}

// rescan walks the still-live window and returns the extreme execution
// price under the given ordering, or zero when the window holds no
// execution. Only called when an extreme gets evicted.
func (t *Tape) rescan(better func(a, b int64) bool) int64 {
	var extreme int64
	for _, e := range t.events[t.cursor24h+1:] {
		if e.Type != EvExecution {
			continue
		}
		if extreme == 0 || better(e.Price, extreme) {
			extreme = e.Price
		}
	}
	return extreme
}

// Last returns the most recent execution price, zero before any trade.
func (t *Tape) Last() int64 { return t.last }

func (t *Tape) Volume24h() int64      { return t.volume24h }
func (t *Tape) QuoteVolume24h() int64 { return t.quoteVolume24h }
func (t *Tape) High24h() int64        { return t.high24h }
func (t *Tape) Low24h() int64         { return t.low24h }
func (t *Tape) Open24h() int64        { return t.open24h }

// Var24h returns the price variation since the 24h open as a ratio.
// The second return is false until an open price is known.
func (t *Tape) Var24h() (float64, bool) {
	if t.open24h == 0 || t.last == 0 {
		return 0, false
	}
	return float64(t.last-t.open24h) / float64(t.open24h), true
}

// Cursor returns the external read position.
func (t *Tape) Cursor() int { return t.cursor }

// Len returns the number of recorded events.
func (t *Tape) Len() int { return len(t.events) }

// EventAt returns the event at the given sequence, or nil when out of
// range.
func (t *Tape) EventAt(i int) *Event {
	if i < 0 || i >= len(t.events) {
		return nil
	}
	return t.events[i]
}
