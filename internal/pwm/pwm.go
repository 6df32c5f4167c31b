// Package pwm drives the three LED color channels.
package pwm

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ChannelID identifies one color channel.
type ChannelID uint8

const (
	Red ChannelID = iota
	Green
	Blue
)

// Channels lists all channels in the order they are written.
var Channels = [3]ChannelID{Red, Green, Blue}

func (c ChannelID) String() string {
	switch c {
	case Red:
		return "red"
	case Green:
		return "green"
	case Blue:
		return "blue"
	default:
		return fmt.Sprintf("channel(%d)", uint8(c))
	}
}

// MarshalText implements encoding.TextMarshaler so channels can key JSON maps.
func (c ChannelID) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// DutyWriter sets the raw duty value of one channel. Implementations are
// pre-configured (pin, timer, frequency) before the first call.
type DutyWriter interface {
	SetChannelDuty(ch ChannelID, duty uint16) error
}

// ChannelConfig maps a channel to its output pin.
type ChannelConfig struct {
	Pin       int  `yaml:"pin" json:"pin"`
	ActiveLow bool `yaml:"active_low" json:"active_low"`
}

// Config is the fixed PWM setup, loaded once at startup.
type Config struct {
	FrequencyHz    int                         `yaml:"frequency_hz"`
	ResolutionBits int                         `yaml:"resolution_bits"`
	Scale          uint16                      `yaml:"scale"`
	Retries        int                         `yaml:"retries"`
	Channels       map[ChannelID]ChannelConfig `yaml:"-"`
}

// DefaultConfig is 5 kHz, 10-bit duty, 8-bit intensities scaled by 4,
// on pins 12, 13 and 18.
func DefaultConfig() Config {
	return Config{
		FrequencyHz:    5000,
		ResolutionBits: 10,
		Scale:          4,
		Channels: map[ChannelID]ChannelConfig{
			Red:   {Pin: 12},
			Green: {Pin: 13},
			Blue:  {Pin: 18},
		},
	}
}

// MaxDuty returns the largest duty value at the configured resolution.
func (c Config) MaxDuty() uint16 {
	return uint16(1<<c.ResolutionBits - 1)
}

// Validate checks that every channel is mapped and the scale fits the resolution.
func (c Config) Validate() error {
	var errs []error
	if c.FrequencyHz <= 0 {
		errs = append(errs, fmt.Errorf("pwm.frequency_hz must be positive, got %d", c.FrequencyHz))
	}
	if c.ResolutionBits < 8 || c.ResolutionBits > 16 {
		errs = append(errs, fmt.Errorf("pwm.resolution_bits must be 8-16, got %d", c.ResolutionBits))
	} else if c.Scale == 0 || 255*uint32(c.Scale) > uint32(c.MaxDuty()) {
		errs = append(errs, fmt.Errorf("pwm.scale %d does not fit %d-bit duty (max %d)", c.Scale, c.ResolutionBits, c.MaxDuty()/255))
	}
	if c.Retries < 0 {
		errs = append(errs, fmt.Errorf("pwm.retries must not be negative"))
	}
	pins := make(map[int]ChannelID)
	for _, ch := range Channels {
		cc, ok := c.Channels[ch]
		if !ok {
			errs = append(errs, fmt.Errorf("pwm channel %s is not mapped", ch))
			continue
		}
		if other, dup := pins[cc.Pin]; dup {
			errs = append(errs, fmt.Errorf("pwm channels %s and %s share pin %d", other, ch, cc.Pin))
		}
		pins[cc.Pin] = ch
	}
	return errors.Join(errs...)
}

// HardwareError reports the channels whose duty could not be written.
type HardwareError struct {
	Failed map[ChannelID]error
}

func (e *HardwareError) Error() string {
	chs := make([]ChannelID, 0, len(e.Failed))
	for ch := range e.Failed {
		chs = append(chs, ch)
	}
	sort.Slice(chs, func(i, j int) bool { return chs[i] < chs[j] })
	parts := make([]string, len(chs))
	for i, ch := range chs {
		parts[i] = fmt.Sprintf("%s: %v", ch, e.Failed[ch])
	}
	return "pwm write failed: " + strings.Join(parts, "; ")
}

// Unwrap returns the per-channel errors.
func (e *HardwareError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, ch := range Channels {
		if err, ok := e.Failed[ch]; ok {
			errs = append(errs, err)
		}
	}
	return errs
}
