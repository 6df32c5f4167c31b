// Package color converts the logical light state into channel intensities.
//
// Three policies are available:
//
//   - Midpoint: red and green are the high bytes of X and Y, blue is their
//     average. Brightness is ignored. This is the default.
//   - XY: a CIE 1931 xy to sRGB transform scaled by brightness.
//   - Lua: a user script; falls back to Midpoint on any script failure.
//
// Every policy returns all channels off when the light is off.
package color

import (
	"fmt"
	"math"

	"zigbee-rgb-light/internal/light"
)

// Converter maps a light state to channel intensities. Implementations must be
// deterministic and must not fail.
type Converter interface {
	Convert(s light.State) light.Intensity
}

// Mode names accepted by New.
const (
	ModeMidpoint = "midpoint"
	ModeXY       = "xy"
	ModeLua      = "lua"
)

// Midpoint is the default conversion policy.
type Midpoint struct{}

// Convert implements Converter.
func (Midpoint) Convert(s light.State) light.Intensity {
	if !s.On {
		return light.Off
	}
	r := uint8(s.X >> 8)
	g := uint8(s.Y >> 8)
	return light.Intensity{
		Red:   r,
		Green: g,
		Blue:  uint8((uint16(r) + uint16(g)) >> 1),
	}
}

// ConverterFunc adapts a function to Converter.
type ConverterFunc func(light.State) light.Intensity

// Convert implements Converter.
func (f ConverterFunc) Convert(s light.State) light.Intensity { return f(s) }

// Validate reports whether mode names a known policy.
func Validate(mode string) error {
	switch mode {
	case ModeMidpoint, ModeXY, ModeLua:
		return nil
	}
	return fmt.Errorf("unknown color mode %q (supported: %s, %s, %s)", mode, ModeMidpoint, ModeXY, ModeLua)
}

// clamp8 rounds v into 0..255. NaN maps to 0.
func clamp8(v float64) uint8 {
	switch {
	case math.IsNaN(v), v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(v + 0.5)
}
