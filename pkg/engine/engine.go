// Package engine drives one Book with exactly one goroutine. Inbound
// requests are serialized through a channel, so the book itself never
// needs locking; the worker also owns the periodic expiry sweep, the
// periodic snapshot, and fan-out of tape events to subscribers.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davout/gekko/pkg/book"
	"github.com/davout/gekko/pkg/storage"
)

// Options configures a matching worker.
type Options struct {
	// Store receives periodic and shutdown snapshots. Nil disables
	// persistence.
	Store storage.SnapshotStore
	// OnEvent is invoked from the worker goroutine for every tape
	// event, in sequence order. Handlers must not call back into the
	// engine.
	OnEvent func(*book.Event)
	// ExpirySweep is the interval between RemoveExpired runs. Zero
	// disables the timer.
	ExpirySweep time.Duration
	// SnapshotInterval is the interval between snapshots. Zero
	// disables the timer; the shutdown snapshot still happens.
	SnapshotInterval time.Duration
	// QueueSize bounds the request channel (default 1024).
	QueueSize int
}

// Engine is the single-writer worker owning one book.
type Engine struct {
	book *book.Book
	opts Options
	log  *zap.SugaredLogger

	requests chan func()
}

func New(b *book.Book, logger *zap.Logger, opts Options) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}
	return &Engine{
		book:     b,
		opts:     opts,
		log:      logger.Sugar(),
		requests: make(chan func(), opts.QueueSize),
	}
}

// Run executes requests until the context is canceled, then takes a
// final snapshot. It is the only goroutine that touches the book.
func (e *Engine) Run(ctx context.Context) error {
	var expiry, snap <-chan time.Time
	if e.opts.ExpirySweep > 0 {
		t := time.NewTicker(e.opts.ExpirySweep)
		defer t.Stop()
		expiry = t.C
	}
	if e.opts.SnapshotInterval > 0 && e.opts.Store != nil {
		t := time.NewTicker(e.opts.SnapshotInterval)
		defer t.Stop()
		snap = t.C
	}

	e.log.Infow("engine_started", "pair", e.book.Pair())
	for {
		select {
		case <-ctx.Done():
			if err := e.saveSnapshot(); err != nil {
				e.log.Errorw("final_snapshot_failed", "err", err)
				return err
			}
			e.log.Infow("engine_stopped", "pair", e.book.Pair())
			return nil
		case req := <-e.requests:
			req()
			e.drainTape()
		case <-expiry:
			e.book.RemoveExpired()
			e.drainTape()
		case <-snap:
			if err := e.saveSnapshot(); err != nil {
				e.log.Errorw("snapshot_failed", "err", err)
			}
		}
	}
}

func (e *Engine) drainTape() {
	for {
		ev := e.book.Tape().Next()
		if ev == nil {
			return
		}
		if e.opts.OnEvent != nil {
			e.opts.OnEvent(ev)
		}
	}
}

func (e *Engine) saveSnapshot() error {
	if e.opts.Store == nil {
		return nil
	}
	data, err := e.book.Serialize()
	if err != nil {
		return fmt.Errorf("serialize book: %w", err)
	}
	return e.opts.Store.SaveSnapshot(e.book.Pair(), data)
}

func (e *Engine) send(ctx context.Context, req func()) error {
	select {
	case e.requests <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SubmitOrder hands an order to the matching worker. Side effects are
// observable on the tape feed only.
func (e *Engine) SubmitOrder(ctx context.Context, o *book.Order) error {
	return e.send(ctx, func() { e.book.ReceiveOrder(o) })
}

// CancelOrder asks the worker to cancel an order. Unknown ids are a
// no-op by design.
func (e *Engine) CancelOrder(ctx context.Context, id uuid.UUID) error {
	return e.send(ctx, func() { e.book.Cancel(id) })
}

// Ticker computes the current ticker inside the worker.
func (e *Engine) Ticker(ctx context.Context) (book.Ticker, error) {
	ch := make(chan book.Ticker, 1)
	if err := e.send(ctx, func() { ch <- e.book.Ticker() }); err != nil {
		return book.Ticker{}, err
	}
	select {
	case t := <-ch:
		return t, nil
	case <-ctx.Done():
		return book.Ticker{}, ctx.Err()
	}
}

// Level is one aggregated price level of the depth view.
type Level struct {
	Price int64 `json:"price"`
	Size  int64 `json:"size"`
}

// Depth is an aggregated view of the resting book, best levels first.
type Depth struct {
	Pair string  `json:"pair"`
	Bids []Level `json:"bids"`
	Asks []Level `json:"asks"`
}

// Depth aggregates the resting orders per price level inside the
// worker.
func (e *Engine) Depth(ctx context.Context) (Depth, error) {
	ch := make(chan Depth, 1)
	err := e.send(ctx, func() {
		ch <- Depth{
			Pair: e.book.Pair(),
			Bids: levels(e.book.Bids()),
			Asks: levels(e.book.Asks()),
		}
	})
	if err != nil {
		return Depth{}, err
	}
	select {
	case d := <-ch:
		return d, nil
	case <-ctx.Done():
		return Depth{}, ctx.Err()
	}
}

func levels(side *book.BookSide) []Level {
	var out []Level
	for _, o := range side.Orders() {
		if n := len(out); n > 0 && out[n-1].Price == o.Price {
			out[n-1].Size += o.Remaining
			continue
		}
		out = append(out, Level{Price: o.Price, Size: o.Remaining})
	}
	return out
}
