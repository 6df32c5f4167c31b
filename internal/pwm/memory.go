package pwm

import (
	"fmt"
	"sync"
)

// MemoryWriter keeps duty values in memory. It backs the "memory" driver
// used when no PWM hardware is attached.
type MemoryWriter struct {
	mu     sync.Mutex
	max    uint16
	duty   [3]uint16
	writes int
	fail   map[ChannelID]error
}

// NewMemoryWriter creates a writer accepting duties up to maxDuty.
func NewMemoryWriter(maxDuty uint16) *MemoryWriter {
	return &MemoryWriter{max: maxDuty, fail: make(map[ChannelID]error)}
}

// SetChannelDuty implements DutyWriter.
func (m *MemoryWriter) SetChannelDuty(ch ChannelID, duty uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	if err := m.fail[ch]; err != nil {
		return err
	}
	if ch > Blue {
		return fmt.Errorf("unknown %s", ch)
	}
	if duty > m.max {
		return fmt.Errorf("duty %d exceeds max %d", duty, m.max)
	}
	m.duty[ch] = duty
	return nil
}

// Duty returns the last duty written to ch.
func (m *MemoryWriter) Duty(ch ChannelID) uint16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.duty[ch]
}

// Writes returns the number of SetChannelDuty calls, including failed ones.
func (m *MemoryWriter) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// FailOn makes every write to ch return err. A nil err clears the failure.
func (m *MemoryWriter) FailOn(ch ChannelID, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.fail, ch)
		return
	}
	m.fail[ch] = err
}
