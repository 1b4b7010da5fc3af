package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davout/gekko/pkg/book"
	"github.com/davout/gekko/pkg/engine"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	b := book.NewBook("BTCEUR", 0, nil, nil)
	eng := engine.New(b, nil, engine.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return NewServer(eng, nil)
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestSubmitOrderEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, "POST", "/api/v1/orders", OrderRequest{
		UID:   uuid.New().String(),
		Side:  "bid",
		Type:  "limit",
		Size:  1_0000_0000,
		Price: 500_0000,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp OrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "accepted", resp.Status)
	_, err := uuid.Parse(resp.OrderID)
	assert.NoError(t, err, "a generated order id comes back to the caller")

	// The submitted bid shows up in the depth view.
	rec = doJSON(t, s, "GET", "/api/v1/book", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var depth engine.Depth
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &depth))
	require.Len(t, depth.Bids, 1)
	assert.Equal(t, int64(500_0000), depth.Bids[0].Price)
}

func TestSubmitOrderEndpointValidation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		req  OrderRequest
	}{
		{"bad side", OrderRequest{UID: uuid.New().String(), Side: "sideways", Type: "limit", Size: 1, Price: 1}},
		{"bad type", OrderRequest{UID: uuid.New().String(), Side: "bid", Type: "stop", Size: 1, Price: 1}},
		{"bad uid", OrderRequest{UID: "nope", Side: "bid", Type: "limit", Size: 1, Price: 1}},
		{"missing price", OrderRequest{UID: uuid.New().String(), Side: "bid", Type: "limit", Size: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, s, "POST", "/api/v1/orders", tt.req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestCancelOrderEndpoint(t *testing.T) {
	s := newTestServer(t)

	id := uuid.New()
	rec := doJSON(t, s, "POST", "/api/v1/orders", OrderRequest{
		ID:    id.String(),
		UID:   uuid.New().String(),
		Side:  "bid",
		Type:  "limit",
		Size:  1_0000_0000,
		Price: 500_0000,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, "POST", "/api/v1/orders/cancel", CancelRequest{OrderID: id.String()})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, "GET", "/api/v1/book", nil)
	var depth engine.Depth
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &depth))
	assert.Empty(t, depth.Bids)

	rec = doJSON(t, s, "POST", "/api/v1/orders/cancel", CancelRequest{OrderID: "garbage"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTickerEndpoint(t *testing.T) {
	s := newTestServer(t)
	uid := uuid.New().String()

	for _, req := range []OrderRequest{
		{UID: uid, Side: "bid", Type: "limit", Size: 1_0000_0000, Price: 500_0000},
		{UID: uuid.New().String(), Side: "ask", Type: "limit", Size: 1_0000_0000, Price: 500_0000},
	} {
		rec := doJSON(t, s, "POST", "/api/v1/orders", req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := doJSON(t, s, "GET", "/api/v1/ticker", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var ticker book.Ticker
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ticker))
	assert.Equal(t, int64(500_0000), ticker.Last)
	assert.Equal(t, int64(1_0000_0000), ticker.Volume24h)
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, "GET", "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestOrderRequestToOrder(t *testing.T) {
	r := OrderRequest{
		UID:         uuid.New().String(),
		Side:        "ask",
		Type:        "market",
		Size:        1_0000_0000,
		QuoteMargin: 500_0000,
	}
	o, err := r.ToOrder()
	require.NoError(t, err)
	assert.Equal(t, book.Market, o.Kind)
	assert.Equal(t, book.Ask, o.Side)
	assert.Equal(t, int64(1_0000_0000), o.Size)
	assert.Equal(t, int64(500_0000), o.QuoteMargin)
	assert.NotEqual(t, uuid.Nil, o.ID)

	r.Type = "limit"
	r.Price = 600_0000
	r.ID = uuid.New().String()
	o, err = r.ToOrder()
	require.NoError(t, err)
	assert.Equal(t, book.Limit, o.Kind)
	assert.Equal(t, r.ID, o.ID.String())
}
