package pwm

import (
	"fmt"
	"log/slog"

	rpio "github.com/stianeikeland/go-rpio/v4"
)

// The PWM clock is divided from the 19.2 MHz oscillator (52 MHz on the
// BCM2711) by an integer divisor of 2..4095. The bounds below hold on both.
const (
	rpioMinClockHz = 52_000_000 / 4095
	rpioMaxClockHz = 19_200_000 / 2
)

// CheckRPIOClock reports whether the PWM clock needed for cfg, frequency
// times 2^ResolutionBits, can be produced by the Raspberry Pi clock divider.
func CheckRPIOClock(cfg Config) error {
	clock := cfg.FrequencyHz * (int(cfg.MaxDuty()) + 1)
	if clock < rpioMinClockHz || clock > rpioMaxClockHz {
		return fmt.Errorf("pwm clock %d Hz (%d Hz at %d bits) is outside the rpio range %d-%d Hz",
			clock, cfg.FrequencyHz, cfg.ResolutionBits, rpioMinClockHz, rpioMaxClockHz)
	}
	return nil
}

// RPIOWriter drives Raspberry Pi hardware PWM pins through /dev/gpiomem.
type RPIOWriter struct {
	pins      map[ChannelID]rpio.Pin
	activeLow map[ChannelID]bool
	cycle     uint32
	max       uint16
	logger    *slog.Logger
}

// OpenRPIO maps GPIO memory and configures each channel pin for PWM output
// at cfg.FrequencyHz with a cycle of 2^ResolutionBits. All channels start off.
func OpenRPIO(cfg Config, logger *slog.Logger) (*RPIOWriter, error) {
	if err := CheckRPIOClock(cfg); err != nil {
		return nil, err
	}
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("open gpio: %w", err)
	}

	w := &RPIOWriter{
		pins:      make(map[ChannelID]rpio.Pin, len(cfg.Channels)),
		activeLow: make(map[ChannelID]bool, len(cfg.Channels)),
		cycle:     uint32(cfg.MaxDuty()) + 1,
		max:       cfg.MaxDuty(),
		logger:    logger.With("component", "rpio"),
	}
	for _, ch := range Channels {
		cc := cfg.Channels[ch]
		pin := rpio.Pin(cc.Pin)
		pin.Mode(rpio.Pwm)
		pin.Freq(cfg.FrequencyHz * int(w.cycle))
		w.pins[ch] = pin
		w.activeLow[ch] = cc.ActiveLow
		w.write(ch, 0)
		w.logger.Info("pwm channel configured", "channel", ch, "pin", cc.Pin, "freq_hz", cfg.FrequencyHz, "active_low", cc.ActiveLow)
	}
	return w, nil
}

// SetChannelDuty implements DutyWriter.
func (w *RPIOWriter) SetChannelDuty(ch ChannelID, duty uint16) error {
	if _, ok := w.pins[ch]; !ok {
		return fmt.Errorf("%s has no pin", ch)
	}
	if duty > w.max {
		return fmt.Errorf("duty %d exceeds max %d", duty, w.max)
	}
	w.write(ch, duty)
	return nil
}

func (w *RPIOWriter) write(ch ChannelID, duty uint16) {
	d := uint32(duty)
	if w.activeLow[ch] {
		d = w.cycle - d
	}
	rpio.SetDutyCycle(w.pins[ch], d, w.cycle)
}

// Close turns all channels off and unmaps GPIO memory.
func (w *RPIOWriter) Close() error {
	for ch := range w.pins {
		w.write(ch, 0)
	}
	if err := rpio.Close(); err != nil {
		return fmt.Errorf("close gpio: %w", err)
	}
	return nil
}
