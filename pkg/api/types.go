package api

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/davout/gekko/pkg/book"
)

// OrderRequest is the inbound command placing a new order. Amounts are
// fixed-point integers in the book's precision; a client-supplied id
// makes the command idempotent (duplicates are rejected on the tape).
type OrderRequest struct {
	ID          string `json:"id,omitempty"`
	UID         string `json:"uid"`
	Side        string `json:"side"`
	Type        string `json:"type"` // "limit" or "market"
	Size        int64  `json:"size,omitempty"`
	Price       int64  `json:"price,omitempty"`
	QuoteMargin int64  `json:"quote_margin,omitempty"`
	Expiration  int64  `json:"expiration,omitempty"`
	PostOnly    bool   `json:"post_only,omitempty"`
	StopPrice   int64  `json:"stop_price,omitempty"`
	StopPercent int64  `json:"stop_percent,omitempty"`
	StopOffset  int64  `json:"stop_offset,omitempty"`
}

// ToOrder validates the request and builds the typed order. A missing
// id gets generated so the caller can still track the order on the
// tape.
func (r *OrderRequest) ToOrder() (*book.Order, error) {
	var side book.Side
	if err := side.UnmarshalText([]byte(r.Side)); err != nil {
		return nil, err
	}

	id := uuid.New()
	if r.ID != "" {
		parsed, err := uuid.Parse(r.ID)
		if err != nil {
			return nil, fmt.Errorf("invalid order id: %w", err)
		}
		id = parsed
	}
	uid, err := uuid.Parse(r.UID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id: %w", err)
	}

	opts := &book.Opts{
		Expiration:  r.Expiration,
		PostOnly:    r.PostOnly,
		StopPrice:   r.StopPrice,
		StopPercent: r.StopPercent,
		StopOffset:  r.StopOffset,
	}

	switch r.Type {
	case "limit":
		return book.NewLimitOrder(side, id, uid, r.Size, r.Price, opts)
	case "market":
		return book.NewMarketOrder(side, id, uid, r.Size, r.QuoteMargin, opts)
	default:
		return nil, fmt.Errorf("order type must be limit or market, got %q", r.Type)
	}
}

// CancelRequest is the inbound command canceling an order.
type CancelRequest struct {
	OrderID string `json:"order_id"`
}

// OrderResponse acknowledges an accepted command. The outcome itself
// is observable on the tape feed.
type OrderResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
