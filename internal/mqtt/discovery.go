//go:build !no_mqtt

package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
)

// discoveryMsg is a Home Assistant MQTT discovery payload.
type discoveryMsg struct {
	Topic   string // e.g. "homeassistant/light/zigbee_rgb_light_10/light/config"
	Payload []byte // JSON, empty means delete
}

// haDevice is the "device" block in HA discovery.
type haDevice struct {
	Identifiers  []string `json:"identifiers"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty"`
	Name         string   `json:"name"`
	SWVersion    string   `json:"sw_version,omitempty"`
}

// haLightDiscovery is the discovery payload of a JSON-schema light.
type haLightDiscovery struct {
	Name                string   `json:"name"`
	UniqueID            string   `json:"unique_id"`
	Schema              string   `json:"schema"`
	StateTopic          string   `json:"state_topic"`
	CommandTopic        string   `json:"command_topic"`
	AvailabilityTopic   string   `json:"availability_topic"`
	Brightness          bool     `json:"brightness"`
	BrightnessScale     int      `json:"brightness_scale"`
	SupportedColorModes []string `json:"supported_color_modes"`
	Device              haDevice `json:"device"`
}

// sanitizeTopic lowercases name and keeps only characters safe in MQTT topics.
func sanitizeTopic(name string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			return r
		}
		return '_'
	}, strings.ToLower(name))
}

func (c Config) stateTopic() string   { return c.TopicPrefix + "/" + sanitizeTopic(c.Name) }
func (c Config) commandTopic() string { return c.stateTopic() + "/set" }
func (c Config) bridgeTopic() string  { return c.TopicPrefix + "/bridge/state" }
func (c Config) stackTopic() string   { return c.TopicPrefix + "/bridge/stack" }

func (c Config) nodeID() string {
	return fmt.Sprintf("zigbee_%s_%d", sanitizeTopic(c.Name), c.Endpoint)
}

// buildDiscovery generates the HA discovery message for the light.
func buildDiscovery(c Config, version string) discoveryMsg {
	nodeID := c.nodeID()
	payload := haLightDiscovery{
		Name:                c.Name,
		UniqueID:            nodeID + "_light",
		Schema:              "json",
		StateTopic:          c.stateTopic(),
		CommandTopic:        c.commandTopic(),
		AvailabilityTopic:   c.bridgeTopic(),
		Brightness:          true,
		BrightnessScale:     255,
		SupportedColorModes: []string{"xy"},
		Device: haDevice{
			Identifiers:  []string{nodeID},
			Manufacturer: "zigbee-rgb-light",
			Model:        "RGB PWM light",
			Name:         c.Name,
			SWVersion:    version,
		},
	}
	return discoveryMsg{
		Topic:   fmt.Sprintf("homeassistant/light/%s/light/config", nodeID),
		Payload: mustJSON(payload),
	}
}

// buildRemoveDiscovery returns the empty retained message that removes the light from HA.
func buildRemoveDiscovery(c Config) discoveryMsg {
	return discoveryMsg{Topic: fmt.Sprintf("homeassistant/light/%s/light/config", c.nodeID())}
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
