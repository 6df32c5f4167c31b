// Package ncp talks to the Zigbee network co-processor that runs the mesh
// stack on behalf of the light. The stack is an external collaborator: it
// reports lifecycle signals and delivers attribute writes already decoded
// to AttributeMessage.
package ncp

import (
	"context"
	"fmt"
)

// Stack is a running Zigbee stack that hosts the light endpoint.
type Stack interface {
	// Start brings the stack up and blocks until it reports the first
	// lifecycle signal. A SignalError or a ctx timeout is returned as error.
	Start(ctx context.Context) error

	OnAttribute(handler func(AttributeMessage))
	OnSignal(handler func(Signal))

	Close() error
}

// AttributeMessage is one inbound attribute write addressed to a local endpoint.
type AttributeMessage struct {
	Endpoint  uint8  `json:"endpoint"`
	ClusterID uint16 `json:"cluster_id"`
	AttrID    uint16 `json:"attr_id"`
	DataType  uint8  `json:"data_type"`
	Value     []byte `json:"value"`
}

func (m AttributeMessage) String() string {
	return fmt.Sprintf("ep=%d cluster=0x%04X attr=0x%04X type=0x%02X value=%X",
		m.Endpoint, m.ClusterID, m.AttrID, m.DataType, m.Value)
}

// SignalKind classifies a stack lifecycle signal.
type SignalKind uint8

const (
	SignalUnknown SignalKind = iota
	SignalStarted
	SignalStopped
	SignalError
)

func (k SignalKind) String() string {
	switch k {
	case SignalStarted:
		return "started"
	case SignalStopped:
		return "stopped"
	case SignalError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k SignalKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Raw signal types reported by the co-processor.
const (
	rawSignalStartup uint8 = 0x00
	rawSignalStopped uint8 = 0x01
	rawSignalFault   uint8 = 0x02
)

// Signal is a decoded lifecycle signal. Type and Status are kept as received.
type Signal struct {
	Kind   SignalKind `json:"kind"`
	Type   uint8      `json:"type"`
	Status int32      `json:"status"`
}

func (s Signal) String() string {
	return fmt.Sprintf("%s(type=0x%02X status=%d)", s.Kind, s.Type, s.Status)
}

// DecodeSignal maps a raw (type, status) pair to a Signal. It never fails:
// unrecognized types become SignalUnknown.
func DecodeSignal(typ uint8, status int32) Signal {
	s := Signal{Type: typ, Status: status}
	switch typ {
	case rawSignalStartup:
		if status == 0 {
			s.Kind = SignalStarted
		} else {
			s.Kind = SignalError
		}
	case rawSignalStopped:
		s.Kind = SignalStopped
	case rawSignalFault:
		s.Kind = SignalError
	default:
		s.Kind = SignalUnknown
	}
	return s
}

// startResult turns the first signal after a start request into Start's result.
func startResult(s Signal) error {
	switch s.Kind {
	case SignalStarted:
		return nil
	case SignalError:
		return fmt.Errorf("stack start failed: status %d", s.Status)
	default:
		return fmt.Errorf("stack start: unexpected signal %s", s)
	}
}
