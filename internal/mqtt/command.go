//go:build !no_mqtt

package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"zigbee-rgb-light/internal/dispatch"
	"zigbee-rgb-light/internal/light"
	"zigbee-rgb-light/internal/ncp"
	"zigbee-rgb-light/internal/zcl"
	"zigbee-rgb-light/internal/zcl/clusters"
)

// lightCommand is an HA JSON-schema command.
type lightCommand struct {
	State      string   `json:"state,omitempty"`
	Brightness *float64 `json:"brightness,omitempty"`
	Color      *struct {
		X *float64 `json:"x"`
		Y *float64 `json:"y"`
	} `json:"color,omitempty"`
}

var errEmptyCommand = errors.New("command has no state, brightness or color")

// chromaticity maps a CIE 0..1 coordinate to the ZCL 16-bit scale.
func chromaticity(v float64) uint16 {
	if v <= 0 || math.IsNaN(v) {
		return 0
	}
	scaled := math.Round(v * 65536)
	if scaled > float64(clusters.MaxChromaticity) {
		return clusters.MaxChromaticity
	}
	return uint16(scaled)
}

// translateCommand turns one command into attribute writes for endpoint,
// in the order they should be applied. Color and brightness go before
// "ON" and after "OFF" so a light never flashes its previous color.
func translateCommand(payload []byte, endpoint uint8, current light.State) ([]ncp.AttributeMessage, error) {
	var cmd lightCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return nil, fmt.Errorf("invalid command JSON: %w", err)
	}

	var setOn *bool
	switch strings.ToUpper(cmd.State) {
	case "":
	case "ON":
		v := true
		setOn = &v
	case "OFF":
		v := false
		setOn = &v
	case "TOGGLE":
		v := !current.On
		setOn = &v
	default:
		return nil, fmt.Errorf("unknown state %q", cmd.State)
	}

	var body []ncp.AttributeMessage
	if cmd.Color != nil {
		if cmd.Color.X != nil {
			body = append(body, ncp.AttributeMessage{Endpoint: endpoint, ClusterID: clusters.ColorControlID,
				AttrID: clusters.AttrCurrentX, DataType: zcl.TypeUint16, Value: zcl.EncodeUint16(chromaticity(*cmd.Color.X))})
		}
		if cmd.Color.Y != nil {
			body = append(body, ncp.AttributeMessage{Endpoint: endpoint, ClusterID: clusters.ColorControlID,
				AttrID: clusters.AttrCurrentY, DataType: zcl.TypeUint16, Value: zcl.EncodeUint16(chromaticity(*cmd.Color.Y))})
		}
	}
	if cmd.Brightness != nil {
		level := math.Round(math.Max(0, math.Min(255, *cmd.Brightness)))
		body = append(body, ncp.AttributeMessage{Endpoint: endpoint, ClusterID: clusters.LevelControlID,
			AttrID: clusters.AttrCurrentLevel, DataType: zcl.TypeUint8, Value: []byte{uint8(level)}})
	}

	if setOn == nil {
		if len(body) == 0 {
			return nil, errEmptyCommand
		}
		return body, nil
	}
	onOff := ncp.AttributeMessage{Endpoint: endpoint, ClusterID: clusters.OnOffID,
		AttrID: clusters.AttrOnOff, DataType: zcl.TypeBool, Value: zcl.EncodeBool(*setOn)}
	if *setOn {
		return append(body, onOff), nil
	}
	return append([]ncp.AttributeMessage{onOff}, body...), nil
}

// statePayload is the retained JSON state published for HA.
type statePayload struct {
	State      string  `json:"state"`
	Brightness uint8   `json:"brightness"`
	ColorMode  string  `json:"color_mode"`
	Color      xyColor `json:"color"`
	RGB        rgb     `json:"rgb"`
	Duty       []int   `json:"duty"`
}

type xyColor struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type rgb struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

func buildState(ev dispatch.StateEvent) []byte {
	x, y := ev.State.XYFloat()
	p := statePayload{
		State:      "OFF",
		Brightness: ev.State.Brightness,
		ColorMode:  "xy",
		Color:      xyColor{X: math.Round(x*10000) / 10000, Y: math.Round(y*10000) / 10000},
		RGB:        rgb{R: ev.Intensity.Red, G: ev.Intensity.Green, B: ev.Intensity.Blue},
		Duty:       []int{int(ev.Duty[0]), int(ev.Duty[1]), int(ev.Duty[2])},
	}
	if ev.State.On {
		p.State = "ON"
	}
	return mustJSON(p)
}
