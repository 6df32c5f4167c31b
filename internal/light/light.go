// Package light defines the logical state of the RGB light and the per-channel
// intensities derived from it.
package light

import "fmt"

// State is the light's logical model. X and Y are raw CurrentX/CurrentY
// chromaticity values exactly as received from the network.
type State struct {
	On         bool   `json:"on"`
	Brightness uint8  `json:"brightness"`
	X          uint16 `json:"x"`
	Y          uint16 `json:"y"`
}

// Intensity holds one 8-bit intensity per color channel.
type Intensity struct {
	Red   uint8 `json:"red"`
	Green uint8 `json:"green"`
	Blue  uint8 `json:"blue"`
}

// Off is the intensity of a light that is switched off.
var Off = Intensity{}

func (i Intensity) String() string {
	return fmt.Sprintf("R=%d G=%d B=%d", i.Red, i.Green, i.Blue)
}

// XYFloat returns the chromaticity on the CIE 0..1 scale.
func (s State) XYFloat() (x, y float64) {
	return float64(s.X) / 65536, float64(s.Y) / 65536
}
