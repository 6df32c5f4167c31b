package relay

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"zigbee-rgb-light/internal/dispatch"
	"zigbee-rgb-light/internal/events"
	"zigbee-rgb-light/internal/ncp"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// recorder is a Handler that records message order and detects overlap.
type recorder struct {
	mu       sync.Mutex
	seen     []uint16
	inflight atomic.Int32
	overlap  atomic.Bool
	delay    time.Duration
}

func (h *recorder) HandleMessage(msg ncp.AttributeMessage) dispatch.Outcome {
	if h.inflight.Add(1) > 1 {
		h.overlap.Store(true)
	}
	defer h.inflight.Add(-1)
	time.Sleep(h.delay)
	h.mu.Lock()
	h.seen = append(h.seen, msg.AttrID)
	h.mu.Unlock()
	kind := dispatch.Applied
	if msg.Endpoint != 10 {
		kind = dispatch.Ignored
	}
	return dispatch.Outcome{Kind: kind, Message: msg}
}

func (h *recorder) order() []uint16 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]uint16(nil), h.seen...)
}

func startRelay(t *testing.T, h Handler, bus *events.Bus) (*Relay, *ncp.MemoryStack) {
	t.Helper()
	stack := ncp.NewMemoryStack()
	r := New(stack, h, bus, newTestLogger(), 4)
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(r.Stop)
	return r, stack
}

func TestFIFOOrder(t *testing.T) {
	h := &recorder{}
	r, stack := startRelay(t, h, nil)

	for i := uint16(0); i < 50; i++ {
		stack.InjectAttribute(ncp.AttributeMessage{Endpoint: 10, AttrID: i})
	}
	if _, err := r.Dispatch(context.Background(), ncp.AttributeMessage{Endpoint: 10, AttrID: 50}); err != nil {
		t.Fatal(err)
	}

	got := h.order()
	if len(got) != 51 {
		t.Fatalf("processed %d, want 51", len(got))
	}
	for i, id := range got {
		if id != uint16(i) {
			t.Fatalf("order = %v", got)
		}
	}
}

func TestNoConcurrentDispatch(t *testing.T) {
	h := &recorder{delay: time.Millisecond}
	r, _ := startRelay(t, h, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				if _, err := r.Dispatch(context.Background(), ncp.AttributeMessage{Endpoint: 10}); err != nil {
					t.Error(err)
				}
			}
		}()
	}
	wg.Wait()

	if h.overlap.Load() {
		t.Error("two messages were handled at the same time")
	}
	if s := r.Stats(); s.Processed != 40 || s.Applied != 40 {
		t.Errorf("stats = %+v", s)
	}
}

func TestDispatchReturnsOutcome(t *testing.T) {
	r, _ := startRelay(t, &recorder{}, nil)

	out, err := r.Dispatch(context.Background(), ncp.AttributeMessage{Endpoint: 3, AttrID: 7})
	if err != nil {
		t.Fatal(err)
	}
	if out.Kind != dispatch.Ignored || out.Message.AttrID != 7 {
		t.Errorf("outcome = %+v", out)
	}
	if s := r.Stats(); s.Ignored != 1 {
		t.Errorf("stats = %+v", s)
	}
}

func TestDispatchContextCanceled(t *testing.T) {
	r, _ := startRelay(t, &recorder{delay: 200 * time.Millisecond}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := r.Dispatch(ctx, ncp.AttributeMessage{Endpoint: 10})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestSignalsPublished(t *testing.T) {
	bus := events.NewBus(newTestLogger())
	var got []ncp.Signal
	bus.Subscribe(events.StackSignal, func(e events.Event) {
		got = append(got, e.Data.(ncp.Signal))
	})

	r, stack := startRelay(t, &recorder{}, bus)
	stack.InjectSignal(ncp.DecodeSignal(0x99, -7))

	if len(got) != 2 {
		t.Fatalf("signals = %v", got)
	}
	if got[0].Kind != ncp.SignalStarted {
		t.Errorf("first signal = %v", got[0])
	}
	if got[1].Kind != ncp.SignalUnknown || got[1].Status != -7 || got[1].Type != 0x99 {
		t.Errorf("unknown signal altered: %+v", got[1])
	}
	if r.Stats().Signals != 2 {
		t.Errorf("signal count = %d", r.Stats().Signals)
	}
}

func TestStartFailure(t *testing.T) {
	stack := ncp.NewMemoryStack()
	stack.StartSignal = ncp.DecodeSignal(0x02, -1)
	r := New(stack, &recorder{}, nil, newTestLogger(), 0)

	if err := r.Start(context.Background()); err == nil {
		t.Fatal("expected start error")
	}
	if err := r.Submit(ncp.AttributeMessage{}); !errors.Is(err, ErrStopped) {
		t.Errorf("Submit after failed start: %v", err)
	}
}

func TestSubmitAfterStop(t *testing.T) {
	r, _ := startRelay(t, &recorder{}, nil)
	r.Stop()

	if err := r.Submit(ncp.AttributeMessage{}); !errors.Is(err, ErrStopped) {
		t.Errorf("Submit: %v", err)
	}
	if _, err := r.Dispatch(context.Background(), ncp.AttributeMessage{}); !errors.Is(err, ErrStopped) {
		t.Errorf("Dispatch: %v", err)
	}
}
