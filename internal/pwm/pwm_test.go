package pwm

import (
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"

	"zigbee-rgb-light/internal/light"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestActuator(cfg Config) (*Actuator, *MemoryWriter) {
	w := NewMemoryWriter(cfg.MaxDuty())
	return NewActuator(w, cfg, newTestLogger()), w
}

func TestApplyScalesDuty(t *testing.T) {
	a, w := newTestActuator(DefaultConfig())

	rep, err := a.Apply(light.Intensity{Red: 255, Green: 0, Blue: 127})
	if err != nil {
		t.Fatal(err)
	}
	want := [3]uint16{1020, 0, 508}
	if rep.Duty != want {
		t.Errorf("report duty = %v, want %v", rep.Duty, want)
	}
	for i, ch := range Channels {
		if got := w.Duty(ch); got != want[i] {
			t.Errorf("%s duty = %d, want %d", ch, got, want[i])
		}
	}
	if len(rep.Applied) != 3 || len(rep.Failed) != 0 {
		t.Errorf("applied = %v, failed = %v", rep.Applied, rep.Failed)
	}
}

func TestApplyPartialFailure(t *testing.T) {
	a, w := newTestActuator(DefaultConfig())
	boom := errors.New("timer busy")
	w.FailOn(Green, boom)

	rep, err := a.Apply(light.Intensity{Red: 10, Green: 20, Blue: 30})

	var hwErr *HardwareError
	if !errors.As(err, &hwErr) {
		t.Fatalf("err = %v, want *HardwareError", err)
	}
	if len(hwErr.Failed) != 1 || !errors.Is(hwErr.Failed[Green], boom) {
		t.Errorf("failed = %v", hwErr.Failed)
	}
	if !errors.Is(err, boom) {
		t.Error("errors.Is does not reach channel error")
	}
	if !strings.Contains(err.Error(), "green") {
		t.Errorf("error text = %q", err.Error())
	}

	if len(rep.Applied) != 2 || rep.Applied[0] != Red || rep.Applied[1] != Blue {
		t.Errorf("applied = %v, want [red blue]", rep.Applied)
	}
	if len(rep.Failed) != 1 || rep.Failed[0] != Green {
		t.Errorf("failed = %v, want [green]", rep.Failed)
	}
	if w.Duty(Red) != 40 || w.Duty(Blue) != 120 {
		t.Errorf("red=%d blue=%d, want 40 and 120", w.Duty(Red), w.Duty(Blue))
	}
}

func TestApplyRetries(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Retries = 2
	a, w := newTestActuator(cfg)
	w.FailOn(Blue, errors.New("nack"))

	if _, err := a.Apply(light.Intensity{}); err == nil {
		t.Fatal("expected error")
	}
	// red + green once, blue three times
	if got := w.Writes(); got != 5 {
		t.Errorf("writes = %d, want 5", got)
	}
}

func TestApplyIdempotent(t *testing.T) {
	a, w := newTestActuator(DefaultConfig())
	in := light.Intensity{Red: 1, Green: 2, Blue: 3}

	first, err := a.Apply(in)
	if err != nil {
		t.Fatal(err)
	}
	second, err := a.Apply(in)
	if err != nil {
		t.Fatal(err)
	}
	if first.Duty != second.Duty {
		t.Errorf("duties differ: %v vs %v", first.Duty, second.Duty)
	}
	if w.Duty(Green) != 8 {
		t.Errorf("green = %d, want 8", w.Duty(Green))
	}
	if a.Last().Duty != second.Duty {
		t.Errorf("Last() = %v", a.Last())
	}
}

func TestDutyClampsToResolution(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ResolutionBits = 8
	cfg.Scale = 1
	a, _ := newTestActuator(cfg)
	if got := a.Duty(255); got != 255 {
		t.Errorf("Duty(255) = %d, want 255", got)
	}

	// Unvalidated config: clamp instead of overflowing.
	cfg.Scale = 4
	a, _ = newTestActuator(cfg)
	if got := a.Duty(255); got != 255 {
		t.Errorf("Duty(255) with scale 4 at 8 bits = %d, want 255", got)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"default", func(*Config) {}, ""},
		{"scale too large", func(c *Config) { c.Scale = 5 }, "pwm.scale"},
		{"zero scale", func(c *Config) { c.Scale = 0 }, "pwm.scale"},
		{"bad resolution", func(c *Config) { c.ResolutionBits = 4 }, "resolution_bits"},
		{"zero frequency", func(c *Config) { c.FrequencyHz = 0 }, "frequency_hz"},
		{"negative retries", func(c *Config) { c.Retries = -1 }, "retries"},
		{"missing channel", func(c *Config) { delete(c.Channels, Blue) }, "blue is not mapped"},
		{"shared pin", func(c *Config) { c.Channels[Green] = ChannelConfig{Pin: 12} }, "share pin 12"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestCheckRPIOClock(t *testing.T) {
	tests := []struct {
		name    string
		freq    int
		bits    int
		wantErr bool
	}{
		{"default 5 kHz 10 bit", 5000, 10, false},
		{"1 kHz 12 bit", 1000, 12, false},
		{"16 bit at 5 kHz", 5000, 16, true},
		{"too slow", 10, 8, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.FrequencyHz, cfg.ResolutionBits = tt.freq, tt.bits
			err := CheckRPIOClock(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMemoryWriterRejectsOverMax(t *testing.T) {
	w := NewMemoryWriter(1023)
	if err := w.SetChannelDuty(Red, 1024); err == nil {
		t.Error("expected error for duty above max")
	}
	if err := w.SetChannelDuty(ChannelID(7), 1); err == nil {
		t.Error("expected error for unknown channel")
	}
}

func TestChannelIDText(t *testing.T) {
	b, _ := Green.MarshalText()
	if string(b) != "green" {
		t.Errorf("MarshalText = %q", b)
	}
	if ChannelID(9).String() != "channel(9)" {
		t.Errorf("String = %q", ChannelID(9).String())
	}
}
