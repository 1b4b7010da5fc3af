package book

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLimit(t *testing.T, side Side, size, price int64, opts *Opts) *Order {
	t.Helper()
	o, err := NewLimitOrder(side, uuid.New(), uuid.New(), size, price, opts)
	require.NoError(t, err)
	return o
}

func mustMarket(t *testing.T, side Side, size, quoteMargin int64) *Order {
	t.Helper()
	o, err := NewMarketOrder(side, uuid.New(), uuid.New(), size, quoteMargin, nil)
	require.NoError(t, err)
	return o
}

func TestOrderConstruction(t *testing.T) {
	tests := []struct {
		name    string
		build   func() (*Order, error)
		wantErr string
	}{
		{
			name: "valid limit",
			build: func() (*Order, error) {
				return NewLimitOrder(Bid, uuid.New(), uuid.New(), 1_0000_0000, 100_0000, nil)
			},
		},
		{
			name: "limit without price",
			build: func() (*Order, error) {
				return NewLimitOrder(Bid, uuid.New(), uuid.New(), 1_0000_0000, 0, nil)
			},
			wantErr: "price must be a positive integer",
		},
		{
			name: "limit without size",
			build: func() (*Order, error) {
				return NewLimitOrder(Bid, uuid.New(), uuid.New(), 0, 100_0000, nil)
			},
			wantErr: "size must be a positive integer",
		},
		{
			name: "limit without id",
			build: func() (*Order, error) {
				return NewLimitOrder(Bid, uuid.Nil, uuid.New(), 1, 100_0000, nil)
			},
			wantErr: "orders must have an id",
		},
		{
			name: "limit without uid",
			build: func() (*Order, error) {
				return NewLimitOrder(Bid, uuid.New(), uuid.Nil, 1, 100_0000, nil)
			},
			wantErr: "orders must have a user id",
		},
		{
			name: "invalid side",
			build: func() (*Order, error) {
				return NewLimitOrder(Side(3), uuid.New(), uuid.New(), 1, 100_0000, nil)
			},
			wantErr: "side must be either bid or ask",
		},
		{
			name: "market ask without size",
			build: func() (*Order, error) {
				return NewMarketOrder(Ask, uuid.New(), uuid.New(), 0, 100_0000, nil)
			},
			wantErr: "size must be provided for a market ask",
		},
		{
			name: "market bid without quote margin",
			build: func() (*Order, error) {
				return NewMarketOrder(Bid, uuid.New(), uuid.New(), 1_0000_0000, 0, nil)
			},
			wantErr: "quote currency margin must be provided for a market bid",
		},
		{
			name: "market bid with margin only",
			build: func() (*Order, error) {
				return NewMarketOrder(Bid, uuid.New(), uuid.New(), 0, 100_0000, nil)
			},
		},
		{
			name: "two stop specs",
			build: func() (*Order, error) {
				return NewLimitOrder(Ask, uuid.New(), uuid.New(), 1, 100_0000,
					&Opts{StopPrice: 1, StopPercent: 1})
			},
			wantErr: "exactly one of stop price",
		},
		{
			name: "trailing percentage out of range",
			build: func() (*Order, error) {
				return NewLimitOrder(Ask, uuid.New(), uuid.New(), 1, 100_0000,
					&Opts{StopPercent: TrailingPctMultiplier})
			},
			wantErr: "trailing percentage",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := tt.build()
			if tt.wantErr == "" {
				require.NoError(t, err)
				require.NotZero(t, o.CreatedAt)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestOrderCrosses(t *testing.T) {
	bid := mustLimit(t, Bid, 1_0000_0000, 500_0000, nil)
	ask := mustLimit(t, Ask, 1_0000_0000, 600_0000, nil)

	assert.False(t, bid.Crosses(nil))
	assert.False(t, bid.Crosses(ask), "bid 500 does not cross ask 600")
	assert.True(t, mustLimit(t, Bid, 1, 600_0000, nil).Crosses(ask))
	assert.True(t, mustLimit(t, Bid, 1, 700_0000, nil).Crosses(ask))
	assert.True(t, mustLimit(t, Ask, 1, 500_0000, nil).Crosses(bid))
	assert.False(t, mustLimit(t, Ask, 1, 600_0000, nil).Crosses(bid))

	assert.False(t, bid.Crosses(mustLimit(t, Bid, 1, 400_0000, nil)),
		"same side never crosses")

	market := mustMarket(t, Bid, 0, 100_0000)
	assert.True(t, market.Crosses(ask), "a market order crosses any opposing limit")
	assert.Panics(t, func() { bid.Crosses(market) })
}

func TestOrderStopPredicates(t *testing.T) {
	plain := mustLimit(t, Ask, 1, 100_0000, nil)
	assert.False(t, plain.IsStop())
	assert.Panics(t, func() { plain.ShouldTrigger(1_0000_0000) })

	byPrice := mustLimit(t, Ask, 1, 100_0000, &Opts{StopPrice: 5000_0000})
	byPct := mustLimit(t, Ask, 1, 100_0000, &Opts{StopPercent: 100})
	byOffset := mustLimit(t, Ask, 1, 100_0000, &Opts{StopOffset: 100_0000})
	assert.True(t, byPrice.IsStop())
	assert.True(t, byPct.IsStop())
	assert.True(t, byOffset.IsStop())
	assert.False(t, byPrice.Trailing())
	assert.True(t, byPct.Trailing())
	assert.True(t, byOffset.Trailing())

	// An ask stop triggers once the market trades at or below the stop.
	assert.True(t, byPrice.ShouldTrigger(5000_0000))
	assert.True(t, byPrice.ShouldTrigger(4000_0000))
	assert.False(t, byPrice.ShouldTrigger(2_0000_0000))

	// A bid stop triggers once the market trades at or above the stop.
	bidStop := mustLimit(t, Bid, 1, 100_0000, &Opts{StopPrice: 2_0000_0000})
	assert.True(t, bidStop.ShouldTrigger(2_0000_0000))
	assert.True(t, bidStop.ShouldTrigger(3_0000_0000))
	assert.False(t, bidStop.ShouldTrigger(1_0000_0000))
}

func TestTrailingStopInitAndRatchet(t *testing.T) {
	// Percent form: 100/1000 of the last price.
	askPct := mustLimit(t, Ask, 1, 100_0000, &Opts{StopPercent: 100})
	askPct.initStopPrice(1000_0000)
	assert.Equal(t, int64(900_0000), askPct.StopPrice)

	// The stop follows the market up but never retreats.
	askPct.ratchet(1200_0000)
	assert.Equal(t, int64(1080_0000), askPct.StopPrice)
	askPct.ratchet(1000_0000)
	assert.Equal(t, int64(1080_0000), askPct.StopPrice, "ask stop never moves down")

	// Offset form on a bid ratchets downwards only.
	bidOff := mustLimit(t, Bid, 1, 100_0000, &Opts{StopOffset: 50_0000})
	bidOff.initStopPrice(1000_0000)
	assert.Equal(t, int64(1050_0000), bidOff.StopPrice)
	bidOff.ratchet(900_0000)
	assert.Equal(t, int64(950_0000), bidOff.StopPrice)
	bidOff.ratchet(1100_0000)
	assert.Equal(t, int64(950_0000), bidOff.StopPrice, "bid stop never moves up")

	// A fixed stop price is left alone.
	fixed := mustLimit(t, Ask, 1, 100_0000, &Opts{StopPrice: 800_0000})
	fixed.initStopPrice(1000_0000)
	fixed.ratchet(2000_0000)
	assert.Equal(t, int64(800_0000), fixed.StopPrice)
}

func TestOrderLifecyclePredicates(t *testing.T) {
	limit := mustLimit(t, Bid, 2, 100_0000, nil)
	assert.False(t, limit.FillOrKill())
	assert.False(t, limit.Filled())
	limit.Remaining = 0
	assert.True(t, limit.Filled())

	market := mustMarket(t, Ask, 1_0000_0000, 0)
	assert.True(t, market.FillOrKill())
	assert.False(t, market.Filled())
	market.Remaining = 0
	assert.True(t, market.Filled())

	margined := mustMarket(t, Bid, 0, 400_0000)
	assert.False(t, margined.Filled())
	margined.MaxPrecision = true
	assert.True(t, margined.Filled(), "max precision counts as filled")

	expiring := mustLimit(t, Bid, 1, 100_0000, &Opts{Expiration: 1000})
	assert.False(t, expiring.Expired(999))
	assert.True(t, expiring.Expired(1000))
	assert.False(t, limit.Expired(1<<40), "no expiration never expires")
}

func TestOrderMessage(t *testing.T) {
	limit := mustLimit(t, Bid, 2_0000_0000, 100_0000, &Opts{Expiration: 1234})
	m := limit.Message(EvReceived)
	assert.Equal(t, EvReceived, m.Type)
	assert.Equal(t, limit.ID.String(), m.OrderID)
	assert.Equal(t, Bid, m.Side)
	assert.Equal(t, int64(2_0000_0000), m.Size)
	assert.Equal(t, int64(2_0000_0000), m.Remaining)
	assert.Equal(t, int64(100_0000), m.Price)
	assert.Equal(t, int64(1234), m.Expiration)
	assert.Zero(t, m.QuoteMargin)

	market := mustMarket(t, Bid, 0, 400_0000)
	m = market.Message(EvDone)
	assert.Zero(t, m.Price, "market order messages carry no price")
	assert.Equal(t, int64(400_0000), m.QuoteMargin)
	assert.Equal(t, int64(400_0000), m.RemainingQuoteMargin)
}
