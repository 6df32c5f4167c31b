package color

import (
	"math"

	"zigbee-rgb-light/internal/light"
)

// XY converts CIE 1931 xy chromaticity to gamma-corrected sRGB. The most
// saturated channel is normalized to full scale and the result is scaled by
// brightness, so brightness gates the output and the hue is kept.
type XY struct{}

// Convert implements Converter.
func (XY) Convert(s light.State) light.Intensity {
	if !s.On || s.Brightness == 0 {
		return light.Off
	}
	x, y := s.XYFloat()
	if y <= 0 {
		return light.Off
	}

	// xyY -> XYZ with unit luminance.
	bigX := x / y
	bigZ := (1 - x - y) / y

	// XYZ -> linear sRGB (D65).
	r := 3.2406*bigX - 1.5372 - 0.4986*bigZ
	g := -0.9689*bigX + 1.8758 + 0.0415*bigZ
	b := 0.0557*bigX - 0.2040 + 1.0570*bigZ

	// Out-of-gamut components are clipped.
	r, g, b = math.Max(r, 0), math.Max(g, 0), math.Max(b, 0)
	m := math.Max(r, math.Max(g, b))
	if m == 0 {
		return light.Off
	}
	r, g, b = r/m, g/m, b/m

	scale := float64(s.Brightness)
	return light.Intensity{
		Red:   clamp8(gamma(r) * scale),
		Green: clamp8(gamma(g) * scale),
		Blue:  clamp8(gamma(b) * scale),
	}
}

// gamma applies the sRGB transfer function to a linear 0..1 value.
func gamma(v float64) float64 {
	if v <= 0.0031308 {
		return 12.92 * v
	}
	return 1.055*math.Pow(v, 1/2.4) - 0.055
}
