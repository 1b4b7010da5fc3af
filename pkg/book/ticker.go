package book

// Ticker is a point-in-time market summary derived from the side tops
// and the tape's rolling state. Zero values mean absent: every real
// price and volume is positive, so the struct stays comparable and a
// vwap of zero is never reported.
type Ticker struct {
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

// message turns the ticker into its tape event form.
func (t Ticker) message() *Event {
	return &Event{
		Type:           EvTicker,
		Bid:            t.Bid,
		Ask:            t.Ask,
		Last:           t.Last,
		High24h:        t.High24h,
		Low24h:         t.Low24h,
		Spread:         t.Spread,
		Volume24h:      t.Volume24h,
		QuoteVolume24h: t.QuoteVolume24h,
		Vwap24h:        t.Vwap24h,
	}
}

// Ticker computes the current market summary.
func (b *Book) Ticker() Ticker {
	t := Ticker{
		Bid:            b.bids.Top(),
		Ask:            b.asks.Top(),
		Last:           b.tape.Last(),
		High24h:        b.tape.High24h(),
		Low24h:         b.tape.Low24h(),
		Volume24h:      b.tape.Volume24h(),
		QuoteVolume24h: b.tape.QuoteVolume24h(),
	}
	if t.Bid > 0 && t.Ask > 0 {
		t.Spread = t.Ask - t.Bid
	}
	if t.Volume24h > 0 {
		t.Vwap24h = mulDiv(t.QuoteVolume24h, b.scale, t.Volume24h)
	}
	return t
}
