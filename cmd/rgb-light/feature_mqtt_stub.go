//go:build no_mqtt

package main

import (
	"log/slog"

	"zigbee-rgb-light/internal/dispatch"
	"zigbee-rgb-light/internal/events"
	"zigbee-rgb-light/internal/ncp"
)

type mqttStopper struct{}

func (m *mqttStopper) Stop() {}

func initMQTT(_ interface {
	Submit(ncp.AttributeMessage) error
}, _ interface{ Last() dispatch.StateEvent }, _ *events.Bus, cfg *Config, logger *slog.Logger) *mqttStopper {
	if cfg.MQTT.Enabled {
		logger.Warn("mqtt.enabled is set but this build has no MQTT support")
	}
	return &mqttStopper{}
}
