package dispatch

import (
	"encoding/json"

	"zigbee-rgb-light/internal/light"
	"zigbee-rgb-light/internal/ncp"
	"zigbee-rgb-light/internal/pwm"
)

// Kind is the result class of one dispatched message.
type Kind uint8

const (
	Ignored Kind = iota
	Rejected
	Applied
)

func (k Kind) String() string {
	switch k {
	case Ignored:
		return "ignored"
	case Rejected:
		return "rejected"
	case Applied:
		return "applied"
	default:
		return "unknown"
	}
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Reason explains an Ignored or Rejected outcome.
type Reason uint8

const (
	NoReason Reason = iota
	NotAddressed
	UnknownCluster
	MalformedPayload
	UnsupportedAttribute
)

func (r Reason) String() string {
	switch r {
	case NotAddressed:
		return "not_addressed"
	case UnknownCluster:
		return "unknown_cluster"
	case MalformedPayload:
		return "malformed_payload"
	case UnsupportedAttribute:
		return "unsupported_attribute"
	default:
		return ""
	}
}

func (r Reason) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// Outcome is the result of HandleMessage.
//
// For Applied, State is the light state after the write, Intensity is what
// the converter produced and Report describes the duty writes. Err is a
// *pwm.HardwareError when some channels could not be written; the state
// change is kept regardless. For Rejected, Err holds the decode error.
type Outcome struct {
	Kind      Kind
	Reason    Reason
	Message   ncp.AttributeMessage
	Attribute string
	State     light.State
	Intensity light.Intensity
	Report    pwm.Report
	Err       error
}

// HardwareFailed reports whether an Applied outcome carries a partial write failure.
func (o Outcome) HardwareFailed() bool {
	return o.Kind == Applied && o.Err != nil
}

func (o Outcome) MarshalJSON() ([]byte, error) {
	type wire struct {
		Kind      Kind                 `json:"kind"`
		Reason    Reason               `json:"reason,omitempty"`
		Message   ncp.AttributeMessage `json:"message"`
		Attribute string               `json:"attribute,omitempty"`
		State     *light.State         `json:"state,omitempty"`
		Intensity *light.Intensity     `json:"intensity,omitempty"`
		Report    *pwm.Report          `json:"report,omitempty"`
		Error     string               `json:"error,omitempty"`
	}
	w := wire{Kind: o.Kind, Reason: o.Reason, Message: o.Message, Attribute: o.Attribute}
	if o.Kind == Applied {
		w.State, w.Intensity, w.Report = &o.State, &o.Intensity, &o.Report
	}
	if o.Err != nil {
		w.Error = o.Err.Error()
	}
	return json.Marshal(w)
}
