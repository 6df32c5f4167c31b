package pwm

import (
	"log/slog"
	"sync"

	"zigbee-rgb-light/internal/light"
)

// Report describes one Apply call. Channels are listed in write order.
type Report struct {
	Duty    [3]uint16   `json:"duty"`
	Applied []ChannelID `json:"applied"`
	Failed  []ChannelID `json:"failed,omitempty"`
}

// Actuator converts intensities to duty values and writes them to the hardware.
type Actuator struct {
	writer DutyWriter
	cfg    Config
	logger *slog.Logger

	mu   sync.Mutex
	last Report
}

// NewActuator creates an actuator. cfg must already be validated.
func NewActuator(w DutyWriter, cfg Config, logger *slog.Logger) *Actuator {
	return &Actuator{
		writer: w,
		cfg:    cfg,
		logger: logger.With("component", "pwm"),
	}
}

// Duty scales an 8-bit intensity to the hardware duty range.
func (a *Actuator) Duty(v uint8) uint16 {
	d := uint32(v) * uint32(a.cfg.Scale)
	if limit := uint32(a.cfg.MaxDuty()); d > limit {
		d = limit
	}
	return uint16(d)
}

// Apply writes all three channels. A failing channel does not stop the
// others and nothing is rolled back; failed channels are retried up to
// cfg.Retries times and then reported in a *HardwareError.
func (a *Actuator) Apply(in light.Intensity) (Report, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	values := [3]uint8{in.Red, in.Green, in.Blue}
	var rep Report
	var failed map[ChannelID]error

	for i, ch := range Channels {
		duty := a.Duty(values[i])
		rep.Duty[i] = duty

		var err error
		for attempt := 0; attempt <= a.cfg.Retries; attempt++ {
			if err = a.writer.SetChannelDuty(ch, duty); err == nil {
				break
			}
			a.logger.Warn("duty write failed", "channel", ch, "duty", duty, "attempt", attempt+1, "err", err)
		}
		if err != nil {
			if failed == nil {
				failed = make(map[ChannelID]error)
			}
			failed[ch] = err
			rep.Failed = append(rep.Failed, ch)
			continue
		}
		rep.Applied = append(rep.Applied, ch)
	}

	a.last = rep
	a.logger.Info("RGB applied", "r", in.Red, "g", in.Green, "b", in.Blue,
		"duty", rep.Duty, "failed", len(rep.Failed))

	if failed != nil {
		return rep, &HardwareError{Failed: failed}
	}
	return rep, nil
}

// Last returns the report of the most recent Apply.
func (a *Actuator) Last() Report {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}
