// Package dispatch turns inbound attribute writes into light state changes
// and channel duty updates.
package dispatch

import (
	"fmt"
	"log/slog"
	"sync"

	"zigbee-rgb-light/internal/color"
	"zigbee-rgb-light/internal/events"
	"zigbee-rgb-light/internal/light"
	"zigbee-rgb-light/internal/ncp"
	"zigbee-rgb-light/internal/pwm"
	"zigbee-rgb-light/internal/zcl"
	"zigbee-rgb-light/internal/zcl/clusters"
)

// Actuator applies channel intensities to the hardware.
type Actuator interface {
	Apply(in light.Intensity) (pwm.Report, error)
}

// StateEvent is published as events.LightState after every Applied outcome.
type StateEvent struct {
	State     light.State     `json:"state"`
	Intensity light.Intensity `json:"intensity"`
	Duty      [3]uint16       `json:"duty"`
}

// Dispatcher owns the light state. HandleMessage holds an exclusive lock
// across state mutation and actuation, so at most one intensity vector is
// in flight.
type Dispatcher struct {
	endpoint  uint8
	registry  *zcl.Registry
	converter color.Converter
	actuator  Actuator
	bus       *events.Bus
	logger    *slog.Logger

	mu    sync.RWMutex
	state light.State
	last  StateEvent
}

// New creates a dispatcher for the light hosted on endpoint. bus may be nil.
func New(endpoint uint8, registry *zcl.Registry, converter color.Converter, actuator Actuator, bus *events.Bus, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		endpoint:  endpoint,
		registry:  registry,
		converter: converter,
		actuator:  actuator,
		bus:       bus,
		logger:    logger.With("component", "dispatch"),
	}
}

// Endpoint returns the endpoint this dispatcher accepts writes for.
func (d *Dispatcher) Endpoint() uint8 { return d.endpoint }

// Snapshot returns a copy of the current light state.
func (d *Dispatcher) Snapshot() light.State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// Last returns the most recently applied state, intensity and duties.
func (d *Dispatcher) Last() StateEvent {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.last
}

// HandleMessage validates msg, applies it to the light state and drives the
// actuator. Each accepted message changes exactly one field and causes one
// actuator call; ignored and rejected messages change nothing.
func (d *Dispatcher) HandleMessage(msg ncp.AttributeMessage) Outcome {
	out := d.handle(msg)
	d.report(out)
	return out
}

func (d *Dispatcher) handle(msg ncp.AttributeMessage) Outcome {
	out := Outcome{Message: msg}

	if msg.Endpoint != d.endpoint {
		out.Kind, out.Reason = Ignored, NotAddressed
		return out
	}
	cluster, ok := d.registry.Get(msg.ClusterID)
	if !ok {
		out.Kind, out.Reason = Ignored, UnknownCluster
		return out
	}
	if def, ok := d.registry.Attribute(msg.ClusterID, msg.AttrID); ok {
		out.Attribute = cluster.Name + "." + def.Name
	} else {
		out.Attribute = fmt.Sprintf("%s.0x%04X", cluster.Name, msg.AttrID)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	next := d.state
	var err error
	switch {
	case msg.ClusterID == clusters.OnOffID && msg.AttrID == clusters.AttrOnOff:
		next.On, err = zcl.DecodeBool(msg.DataType, msg.Value)
	case msg.ClusterID == clusters.LevelControlID && msg.AttrID == clusters.AttrCurrentLevel:
		next.Brightness, err = zcl.DecodeUint8(msg.DataType, msg.Value)
	case msg.ClusterID == clusters.ColorControlID && msg.AttrID == clusters.AttrCurrentX:
		next.X, err = zcl.DecodeUint16(msg.DataType, msg.Value)
	case msg.ClusterID == clusters.ColorControlID && msg.AttrID == clusters.AttrCurrentY:
		next.Y, err = zcl.DecodeUint16(msg.DataType, msg.Value)
	default:
		out.Kind, out.Reason = Rejected, UnsupportedAttribute
		return out
	}
	if err != nil {
		out.Kind, out.Reason, out.Err = Rejected, MalformedPayload, err
		return out
	}

	d.state = next
	in := d.converter.Convert(next)
	rep, err := d.actuator.Apply(in)

	out.Kind = Applied
	out.State = next
	out.Intensity = in
	out.Report = rep
	out.Err = err
	d.last = StateEvent{State: next, Intensity: in, Duty: rep.Duty}
	return out
}

func (d *Dispatcher) report(out Outcome) {
	msg := out.Message
	switch {
	case out.Kind == Ignored && out.Reason == NotAddressed:
		d.logger.Debug("message not addressed to light", "endpoint", msg.Endpoint, "cluster", fmt.Sprintf("0x%04X", msg.ClusterID))
	case out.Kind == Ignored:
		d.logger.Warn("unhandled cluster", "endpoint", msg.Endpoint, "cluster", fmt.Sprintf("0x%04X", msg.ClusterID))
	case out.Kind == Rejected:
		d.logger.Warn("attribute rejected", "reason", out.Reason, "attr", out.Attribute,
			"type", zcl.TypeName(msg.DataType), "value", describeValue(msg), "err", out.Err)
	case out.HardwareFailed():
		d.logger.Error("light updated with hardware failure", "attr", out.Attribute, "state", out.State,
			"rgb", out.Intensity.String(), "failed", out.Report.Failed, "err", out.Err)
	default:
		d.logger.Debug("light updated", "attr", out.Attribute, "state", out.State, "rgb", out.Intensity.String())
	}

	if d.bus == nil {
		return
	}
	d.bus.Publish(events.DispatchOutcome, out)
	if out.Kind == Applied {
		d.bus.Publish(events.LightState, StateEvent{State: out.State, Intensity: out.Intensity, Duty: out.Report.Duty})
	}
}

// describeValue renders a payload for logs: the decoded value when its type
// is known, otherwise the raw bytes in hex.
func describeValue(msg ncp.AttributeMessage) any {
	if v, _, err := zcl.DecodeValue(msg.DataType, msg.Value); err == nil {
		return v
	}
	return fmt.Sprintf("%X", msg.Value)
}
