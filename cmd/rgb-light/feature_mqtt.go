//go:build !no_mqtt

package main

import (
	"log/slog"

	"zigbee-rgb-light/internal/events"
	mqttbridge "zigbee-rgb-light/internal/mqtt"
)

type mqttStopper struct {
	bridge *mqttbridge.Bridge
}

func (m *mqttStopper) Stop() {
	if m.bridge != nil {
		m.bridge.Stop()
	}
}

func initMQTT(submit mqttbridge.Submitter, source mqttbridge.StateSource, bus *events.Bus, cfg *Config, logger *slog.Logger) *mqttStopper {
	if !cfg.MQTT.Enabled {
		return &mqttStopper{}
	}
	bridge, err := mqttbridge.NewBridge(mqttbridge.Config{
		Broker:      cfg.MQTT.Broker,
		Username:    cfg.MQTT.Username,
		Password:    cfg.MQTT.Password,
		ClientID:    cfg.MQTT.ClientID,
		TopicPrefix: cfg.MQTT.TopicPrefix,
		Name:        cfg.MQTT.Name,
		Endpoint:    cfg.Endpoint,

		RemoveDiscoveryOnStop: cfg.MQTT.RemoveDiscovery,
	}, version, submit, source, bus, logger)
	if err != nil {
		logger.Error("mqtt bridge", "err", err)
		return &mqttStopper{}
	}
	bridge.Start()
	return &mqttStopper{bridge: bridge}
}
