package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/den67rus/vk-io/transport"
)

// DefaultDebounce is the deferral between the first enqueue and the drain
// decision. It is deliberately minimal: just enough for calls issued in the
// same burst to land in the same batch.
const DefaultDebounce = time.Millisecond

// ErrDispatcherClosed rejects calls submitted to, or still queued in, a
// closed dispatcher.
var ErrDispatcherClosed = errors.New("dispatch: dispatcher closed")

// Config configures a Dispatcher.
type Config struct {
	Transport transport.Transport

	// MaxBatchCalls bounds the sub-calls per execute batch. Must be at
	// least 1; a value of 1 disables batching entirely, every call goes
	// out via the direct strategy.
	MaxBatchCalls int

	// Debounce overrides DefaultDebounce when positive.
	Debounce time.Duration

	Logger zerolog.Logger
}

// Dispatcher drains the call queue: ordinary calls are compiled into
// execute batches, execute calls go out directly one at a time. Batch
// sends are pipelined, so several batch units may be in flight while the
// drain loop keeps going.
type Dispatcher struct {
	transport transport.Transport
	maxCalls  int
	debounce  time.Duration
	logger    zerolog.Logger

	mu        sync.Mutex
	queue     callQueue
	scheduled bool
	draining  bool
	closed    bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New validates cfg and creates a Dispatcher.
func New(cfg Config) (*Dispatcher, error) {
	if cfg.Transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if cfg.MaxBatchCalls < 1 {
		return nil, fmt.Errorf("max batch calls must be at least 1, got %d", cfg.MaxBatchCalls)
	}
	if cfg.Debounce < 0 {
		return nil, fmt.Errorf("debounce must not be negative")
	}
	debounce := cfg.Debounce
	if debounce == 0 {
		debounce = DefaultDebounce
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		transport: cfg.Transport,
		maxCalls:  cfg.MaxBatchCalls,
		debounce:  debounce,
		logger:    cfg.Logger.With().Str("component", "dispatch").Logger(),
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Submit enqueues one call and returns its handle. The handle settles when
// the call's batch unit (or direct send) completes; a bundled call is
// indistinguishable from a directly dispatched one to its caller.
func (d *Dispatcher) Submit(method string, params transport.Params) *Call {
	c := NewCall(method, params)
	d.Enqueue(c)
	return c
}

// Enqueue appends a prepared call to the queue and schedules a drain cycle
// if none is pending.
func (d *Dispatcher) Enqueue(c *Call) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		c.reject(ErrDispatcherClosed)
		return
	}
	d.queue.push(c)
	if !d.scheduled && !d.draining {
		d.scheduled = true
		time.AfterFunc(d.debounce, d.drain)
	}
	d.mu.Unlock()
}

// Flush runs a drain cycle immediately, without waiting out the debounce.
func (d *Dispatcher) Flush() {
	d.drain()
}

// drain repeatedly picks a strategy from the queue head until the queue is
// empty. At most one drain loop runs at a time; a loop already running
// picks up entries enqueued meanwhile, since it re-checks the queue under
// the lock on every iteration.
func (d *Dispatcher) drain() {
	d.mu.Lock()
	d.scheduled = false
	if d.draining || d.closed {
		d.mu.Unlock()
		return
	}
	d.draining = true

	for d.queue.size() > 0 && !d.closed {
		head := d.queue.peekHead()
		if IsExecuteMethod(head.method) || d.maxCalls <= 1 {
			d.queue.popHead()
			d.mu.Unlock()
			d.sendDirect(head)
			d.mu.Lock()
			continue
		}

		group := d.queue.extractUpTo(d.maxCalls, func(c *Call) bool {
			return !IsExecuteMethod(c.method)
		})
		d.mu.Unlock()
		d.dispatchBatch(group)
		d.mu.Lock()
	}

	d.draining = false
	d.mu.Unlock()
}

// sendDirect sends one call and waits for its reply before the drain loop
// continues. Execute calls must not overlap each other, so the direct
// strategy is serialized, never pipelined.
func (d *Dispatcher) sendDirect(c *Call) {
	d.logger.Debug().Str("method", c.method).Msg("direct send")
	reply, err := d.transport.Send(d.ctx, c.method, c.params)
	if err != nil {
		c.reject(err)
		return
	}
	if len(reply.Errors) > 0 {
		d.logger.Debug().
			Str("method", c.method).
			Int("errors", len(reply.Errors)).
			Msg("inline errors on direct reply")
	}
	c.resolve(reply.Response)
}

// dispatchBatch compiles a group into one batch unit and hands it to the
// transport on a detached goroutine, returning control to the drain loop
// right away. A failure while compiling or sending rejects every bundled
// call; none are left pending.
func (d *Dispatcher) dispatchBatch(group []*Call) {
	unit, err := compile(group)
	if err != nil {
		d.logger.Error().Err(err).Int("calls", len(group)).Msg("batch compilation failed")
		rejectAll(group, err)
		return
	}

	d.logger.Debug().
		Int("calls", len(unit.calls)).
		Int("size", len(unit.code)).
		Msg("batch dispatched")

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		reply, err := d.transport.Send(d.ctx, MethodExecute, transport.Params{"code": unit.code})
		if err != nil {
			rejectAll(unit.calls, err)
			return
		}
		d.distribute(unit, reply)
	}()
}

// Close rejects every call still queued, waits for in-flight batch units to
// settle their calls, and stops the dispatcher. Further submissions are
// rejected with ErrDispatcherClosed.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	remaining := d.queue.drainAll()
	d.mu.Unlock()

	rejectAll(remaining, ErrDispatcherClosed)
	d.wg.Wait()
	d.cancel()
	d.logger.Debug().Int("rejected", len(remaining)).Msg("dispatcher closed")
}
