// Package worker implements the single writer that seals queued payloads
// into the chain in the background.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ardanlabs/minichain/foundation/blockchain/database"
)

// Set of errors returned when signaling the worker.
var (
	ErrQueueFull = errors.New("append queue is full")
	ErrShutdown  = errors.New("worker is shut down")
	ErrNotFound  = errors.New("ticket not found")
)

// DefaultCapacity is the number of payloads that can wait to be sealed.
const DefaultCapacity = 100

// DefaultRetain is the number of finished tickets kept for lookup.
const DefaultRetain = 1000

// Set of states a ticket moves through.
const (
	StatusQueued = "queued"
	StatusSealed = "sealed"
	StatusFailed = "failed"
)

// Ticket reports the progress of a queued payload.
type Ticket struct {
	ID     string    `json:"id"`
	Status string    `json:"status"`
	Index  uint64    `json:"index,omitempty"`
	Hash   string    `json:"hash,omitempty"`
	Error  string    `json:"error,omitempty"`
	Queued time.Time `json:"queued"`
}

type request struct {
	id      string
	payload any
}

// =============================================================================

// Worker owns every write to the chain made through it. Payloads are sealed
// one at a time in the order they were signaled.
type Worker struct {
	chain     *database.Chain
	wg        sync.WaitGroup
	shut      chan struct{}
	queue     chan request
	ctx       context.Context
	cancel    context.CancelFunc
	evHandler database.EventHandler

	mu       sync.Mutex
	closed   bool
	tickets  map[string]Ticket
	finished []string
	retain   int
}

// WithRetain sets how many finished tickets are kept. Once the limit is
// reached the oldest finished ticket is forgotten.
func WithRetain(retain int) func(w *Worker) {
	return func(w *Worker) {
		w.retain = retain
	}
}

// Run creates a worker and starts the goroutine that seals the queued
// payloads. A capacity less than 1 uses the default.
func Run(chain *database.Chain, capacity int, evHandler database.EventHandler, options ...func(w *Worker)) *Worker {
	if capacity < 1 {
		capacity = DefaultCapacity
	}

	if evHandler == nil {
		evHandler = func(string, ...any) {}
	}

	ctx, cancel := context.WithCancel(context.Background())

	w := Worker{
		chain:     chain,
		shut:      make(chan struct{}),
		queue:     make(chan request, capacity),
		ctx:       ctx,
		cancel:    cancel,
		evHandler: evHandler,
		tickets:   make(map[string]Ticket),
		retain:    DefaultRetain,
	}

	for _, option := range options {
		option(&w)
	}

	if w.retain < 1 {
		w.retain = DefaultRetain
	}

	w.wg.Add(1)

	// We don't want to return until we know the G is up and running.
	hasStarted := make(chan bool)

	go func() {
		defer w.wg.Done()
		hasStarted <- true
		w.appendOperations()
	}()

	<-hasStarted

	return &w
}

// Shutdown terminates the goroutine performing work. A seal in progress is
// cancelled and payloads still waiting in the queue are marked as failed.
func (w *Worker) Shutdown() {
	w.evHandler("worker: shutdown: started")
	defer w.evHandler("worker: shutdown: completed")

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.mu.Unlock()

	w.evHandler("worker: shutdown: signal cancel sealing")
	w.cancel()

	w.evHandler("worker: shutdown: terminate goroutines")
	close(w.shut)
	w.wg.Wait()

	for {
		select {
		case req := <-w.queue:
			w.finish(req.id, database.Block{}, ErrShutdown)
		default:
			return
		}
	}
}

// SignalAppend queues the payload to be sealed into the chain. The queue is
// never waited on, when it is full the payload is rejected.
func (w *Worker) SignalAppend(id string, payload any) (Ticket, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return Ticket{}, ErrShutdown
	}

	ticket := Ticket{
		ID:     id,
		Status: StatusQueued,
		Queued: time.Now().UTC(),
	}

	select {
	case w.queue <- request{id: id, payload: payload}:
		w.tickets[id] = ticket
		w.evHandler("worker: SignalAppend: ticket[%s]: queued", id)
		return ticket, nil

	default:
		w.evHandler("worker: SignalAppend: ticket[%s]: queue full", id)
		return Ticket{}, ErrQueueFull
	}
}

// Ticket returns the current state of a queued payload.
func (w *Worker) Ticket(id string) (Ticket, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	ticket, exists := w.tickets[id]
	if !exists {
		return Ticket{}, ErrNotFound
	}

	return ticket, nil
}

// Pending returns the number of payloads waiting to be sealed.
func (w *Worker) Pending() int {
	return len(w.queue)
}

// =============================================================================

// appendOperations handles sealing.
func (w *Worker) appendOperations() {
	w.evHandler("worker: appendOperations: G started")
	defer w.evHandler("worker: appendOperations: G completed")

	for {
		select {
		case req := <-w.queue:
			if !w.isShutdown() {
				w.runAppend(req)
				continue
			}
			w.finish(req.id, database.Block{}, ErrShutdown)

		case <-w.shut:
			w.evHandler("worker: appendOperations: received shut signal")
			return
		}
	}
}

// runAppend seals a single payload into the chain.
func (w *Worker) runAppend(req request) {
	w.evHandler("worker: runAppend: ticket[%s]: started", req.id)
	defer w.evHandler("worker: runAppend: ticket[%s]: completed", req.id)

	t := time.Now()
	block, err := w.chain.Append(w.ctx, req.payload)
	w.evHandler("worker: runAppend: ticket[%s]: duration[%v]", req.id, time.Since(t))

	if err != nil {
		switch {
		case w.ctx.Err() != nil:
			w.evHandler("worker: runAppend: ticket[%s]: CANCEL: complete", req.id)
		default:
			w.evHandler("worker: runAppend: ticket[%s]: ERROR: %s", req.id, err)
		}
	}

	w.finish(req.id, block, err)
}

// finish records the outcome of a ticket.
func (w *Worker) finish(id string, block database.Block, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	ticket := w.tickets[id]
	ticket.ID = id

	switch err {
	case nil:
		ticket.Status = StatusSealed
		ticket.Index = block.Header.Index
		ticket.Hash = block.Hash
	default:
		ticket.Status = StatusFailed
		ticket.Error = err.Error()
	}

	w.tickets[id] = ticket

	w.finished = append(w.finished, id)
	for len(w.finished) > w.retain {
		oldest := w.finished[0]
		w.finished = w.finished[1:]

		// The id may have been queued again since it finished.
		if t, exists := w.tickets[oldest]; exists && t.Status != StatusQueued {
			delete(w.tickets, oldest)
		}
	}
}

// isShutdown is used to test if a shutdown has been signaled.
func (w *Worker) isShutdown() bool {
	select {
	case <-w.shut:
		return true
	default:
		return false
	}
}
