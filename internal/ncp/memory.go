package ncp

import (
	"context"
	"sync"
)

// MemoryStack is an in-process Stack. Tests and the "memory" stack driver
// feed it with InjectAttribute and InjectSignal.
type MemoryStack struct {
	mu       sync.RWMutex
	onAttr   func(AttributeMessage)
	onSignal func(Signal)

	// StartSignal is reported by Start. Set a SignalError to simulate a
	// stack that fails to come up.
	StartSignal Signal
}

// NewMemoryStack returns a stack that starts successfully.
func NewMemoryStack() *MemoryStack {
	return &MemoryStack{StartSignal: DecodeSignal(rawSignalStartup, 0)}
}

// Start reports StartSignal to the signal handler and returns its result.
func (m *MemoryStack) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.InjectSignal(m.StartSignal)
	return startResult(m.StartSignal)
}

func (m *MemoryStack) OnAttribute(handler func(AttributeMessage)) {
	m.mu.Lock()
	m.onAttr = handler
	m.mu.Unlock()
}

func (m *MemoryStack) OnSignal(handler func(Signal)) {
	m.mu.Lock()
	m.onSignal = handler
	m.mu.Unlock()
}

// InjectAttribute delivers msg synchronously to the attribute handler.
func (m *MemoryStack) InjectAttribute(msg AttributeMessage) {
	m.mu.RLock()
	h := m.onAttr
	m.mu.RUnlock()
	if h != nil {
		h(msg)
	}
}

// InjectSignal delivers sig synchronously to the signal handler.
func (m *MemoryStack) InjectSignal(sig Signal) {
	m.mu.RLock()
	h := m.onSignal
	m.mu.RUnlock()
	if h != nil {
		h(sig)
	}
}

func (m *MemoryStack) Close() error { return nil }
