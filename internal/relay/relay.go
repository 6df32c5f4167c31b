// Package relay connects the Zigbee stack to the dispatcher. Every inbound
// message, whether it came from the radio, MQTT or the web API, passes
// through one FIFO queue drained by a single worker.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"zigbee-rgb-light/internal/dispatch"
	"zigbee-rgb-light/internal/events"
	"zigbee-rgb-light/internal/ncp"
)

// ErrStopped is returned for messages submitted after Stop.
var ErrStopped = errors.New("relay stopped")

const defaultQueueSize = 64

// Handler processes one attribute message to completion.
type Handler interface {
	HandleMessage(msg ncp.AttributeMessage) dispatch.Outcome
}

// Stats counts processed messages by outcome.
type Stats struct {
	Processed      uint64 `json:"processed"`
	Applied        uint64 `json:"applied"`
	Ignored        uint64 `json:"ignored"`
	Rejected       uint64 `json:"rejected"`
	HardwareErrors uint64 `json:"hardware_errors"`
	Signals        uint64 `json:"signals"`
}

type request struct {
	msg   ncp.AttributeMessage
	reply chan dispatch.Outcome // nil for fire-and-forget
}

// Relay forwards stack traffic to the handler.
type Relay struct {
	stack   ncp.Stack
	handler Handler
	bus     *events.Bus
	logger  *slog.Logger

	queue    chan request
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	processed, applied, ignored, rejected, hwErrors, signals atomic.Uint64
}

// New creates a relay. bus may be nil; queueSize <= 0 selects the default.
func New(stack ncp.Stack, handler Handler, bus *events.Bus, logger *slog.Logger, queueSize int) *Relay {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Relay{
		stack:   stack,
		handler: handler,
		bus:     bus,
		logger:  logger.With("component", "relay"),
		queue:   make(chan request, queueSize),
		done:    make(chan struct{}),
	}
}

// Start registers the stack callbacks, starts the worker and then starts
// the stack. A stack that fails to start is an error; the caller is
// expected to abort.
func (r *Relay) Start(ctx context.Context) error {
	r.stack.OnSignal(r.handleSignal)
	r.stack.OnAttribute(func(msg ncp.AttributeMessage) {
		if err := r.Submit(msg); err != nil {
			r.logger.Warn("dropping inbound message", "msg", msg.String(), "err", err)
		}
	})

	r.wg.Add(1)
	go r.worker()

	if err := r.stack.Start(ctx); err != nil {
		r.Stop()
		return fmt.Errorf("start zigbee stack: %w", err)
	}
	r.logger.Info("zigbee stack started")
	return nil
}

// Stop ends the worker. Queued messages that were not yet taken are dropped.
func (r *Relay) Stop() {
	r.stopOnce.Do(func() { close(r.done) })
	r.wg.Wait()
}

// Submit queues msg behind every message submitted before it. It blocks
// while the queue is full.
func (r *Relay) Submit(msg ncp.AttributeMessage) error {
	select {
	case <-r.done:
		return ErrStopped
	default:
	}
	select {
	case r.queue <- request{msg: msg}:
		return nil
	case <-r.done:
		return ErrStopped
	}
}

// Dispatch queues msg and waits until it has been fully processed.
func (r *Relay) Dispatch(ctx context.Context, msg ncp.AttributeMessage) (dispatch.Outcome, error) {
	req := request{msg: msg, reply: make(chan dispatch.Outcome, 1)}
	select {
	case r.queue <- req:
	case <-r.done:
		return dispatch.Outcome{}, ErrStopped
	case <-ctx.Done():
		return dispatch.Outcome{}, ctx.Err()
	}
	select {
	case out := <-req.reply:
		return out, nil
	case <-r.done:
		return dispatch.Outcome{}, ErrStopped
	case <-ctx.Done():
		return dispatch.Outcome{}, ctx.Err()
	}
}

// Stats returns the message counters.
func (r *Relay) Stats() Stats {
	return Stats{
		Processed:      r.processed.Load(),
		Applied:        r.applied.Load(),
		Ignored:        r.ignored.Load(),
		Rejected:       r.rejected.Load(),
		HardwareErrors: r.hwErrors.Load(),
		Signals:        r.signals.Load(),
	}
}

func (r *Relay) worker() {
	defer r.wg.Done()
	for {
		select {
		case <-r.done:
			return
		case req := <-r.queue:
			out := r.handler.HandleMessage(req.msg)
			r.count(out)
			if req.reply != nil {
				req.reply <- out
			}
		}
	}
}

func (r *Relay) count(out dispatch.Outcome) {
	r.processed.Add(1)
	switch out.Kind {
	case dispatch.Applied:
		r.applied.Add(1)
		if out.Err != nil {
			r.hwErrors.Add(1)
		}
	case dispatch.Ignored:
		r.ignored.Add(1)
	case dispatch.Rejected:
		r.rejected.Add(1)
	}
}

// handleSignal observes a lifecycle signal. Nothing beyond Kind is interpreted.
func (r *Relay) handleSignal(sig ncp.Signal) {
	r.signals.Add(1)
	switch sig.Kind {
	case ncp.SignalError:
		r.logger.Error("stack signal", "kind", sig.Kind, "type", sig.Type, "status", sig.Status)
	case ncp.SignalUnknown:
		r.logger.Warn("stack signal", "kind", sig.Kind, "type", sig.Type, "status", sig.Status)
	default:
		r.logger.Info("stack signal", "kind", sig.Kind, "status", sig.Status)
	}
	if r.bus != nil {
		r.bus.Publish(events.StackSignal, sig)
	}
}
