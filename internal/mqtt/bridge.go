//go:build !no_mqtt

// Package mqtt exposes the light to Home Assistant over MQTT.
package mqtt

import (
	"fmt"
	"log/slog"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"zigbee-rgb-light/internal/dispatch"
	"zigbee-rgb-light/internal/events"
	"zigbee-rgb-light/internal/ncp"
)

// Config holds MQTT bridge configuration.
type Config struct {
	Broker      string
	Username    string
	Password    string
	ClientID    string
	TopicPrefix string
	Name        string // light name, also the state topic suffix
	Endpoint    uint8

	// RemoveDiscoveryOnStop clears the retained HA discovery entry in Stop.
	RemoveDiscoveryOnStop bool
}

// Submitter queues an attribute write for dispatch.
type Submitter interface {
	Submit(msg ncp.AttributeMessage) error
}

// StateSource reports the most recently applied light state.
type StateSource interface {
	Last() dispatch.StateEvent
}

// Bridge publishes light state and availability and turns HA commands into
// attribute writes.
type Bridge struct {
	client  pahomqtt.Client
	cfg     Config
	version string
	submit  Submitter
	source  StateSource
	bus     *events.Bus
	logger  *slog.Logger
	unsub   []func()
}

// NewBridge creates and connects an MQTT bridge.
func NewBridge(cfg Config, version string, submit Submitter, source StateSource, bus *events.Bus, logger *slog.Logger) (*Bridge, error) {
	b := &Bridge{
		cfg:     cfg,
		version: version,
		submit:  submit,
		source:  source,
		bus:     bus,
		logger:  logger.With("component", "mqtt"),
	}

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "zigbee-rgb-light-" + sanitizeTopic(cfg.Name)
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetWill(cfg.bridgeTopic(), "offline", 1, true).
		SetOnConnectHandler(func(_ pahomqtt.Client) {
			b.logger.Info("MQTT connected")
			b.publish(cfg.bridgeTopic(), []byte("online"), true)
			msg := buildDiscovery(cfg, version)
			b.publish(msg.Topic, msg.Payload, true)
			b.subscribeCommands()
			b.publish(cfg.stateTopic(), buildState(b.source.Last()), true)
		}).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			b.logger.Warn("MQTT connection lost", "err", err)
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := pahomqtt.NewClient(opts)
	b.client = client
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		client.Disconnect(0)
		return nil, fmt.Errorf("mqtt connect timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	return b, nil
}

// Start subscribes to light events and begins publishing.
func (b *Bridge) Start() {
	b.unsub = append(b.unsub,
		b.bus.Subscribe(events.LightState, b.handleLightState),
		b.bus.Subscribe(events.StackSignal, b.handleStackSignal),
	)
	b.logger.Info("MQTT bridge started", "prefix", b.cfg.TopicPrefix, "state_topic", b.cfg.stateTopic())
}

// Stop publishes offline state, unsubscribes, and disconnects.
func (b *Bridge) Stop() {
	for _, u := range b.unsub {
		u()
	}
	if b.cfg.RemoveDiscoveryOnStop {
		b.RemoveDiscovery()
	}
	b.publish(b.cfg.bridgeTopic(), []byte("offline"), true)
	b.client.Disconnect(1000)
	b.logger.Info("MQTT bridge stopped")
}

// RemoveDiscovery deletes the retained HA discovery entry.
func (b *Bridge) RemoveDiscovery() {
	msg := buildRemoveDiscovery(b.cfg)
	b.publish(msg.Topic, msg.Payload, true)
}

func (b *Bridge) handleLightState(e events.Event) {
	ev, ok := e.Data.(dispatch.StateEvent)
	if !ok {
		return
	}
	b.publish(b.cfg.stateTopic(), buildState(ev), true)
}

func (b *Bridge) handleStackSignal(e events.Event) {
	sig, ok := e.Data.(ncp.Signal)
	if !ok {
		return
	}
	b.publish(b.cfg.stackTopic(), mustJSON(sig), true)
}

func (b *Bridge) subscribeCommands() {
	topic := b.cfg.commandTopic()
	b.client.Subscribe(topic, 1, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		b.handleCommand(msg.Payload())
	})
}

func (b *Bridge) handleCommand(payload []byte) {
	msgs, err := translateCommand(payload, b.cfg.Endpoint, b.source.Last().State)
	if err != nil {
		b.logger.Warn("invalid command", "payload", string(payload), "err", err)
		return
	}
	for _, m := range msgs {
		if err := b.submit.Submit(m); err != nil {
			b.logger.Warn("command not queued", "msg", m.String(), "err", err)
			return
		}
	}
	b.logger.Debug("command queued", "writes", len(msgs))
}

func (b *Bridge) publish(topic string, payload []byte, retained bool) {
	token := b.client.Publish(topic, 1, retained, payload)
	go func() {
		if !token.WaitTimeout(5 * time.Second) {
			b.logger.Warn("MQTT publish timeout", "topic", topic)
		} else if err := token.Error(); err != nil {
			b.logger.Warn("MQTT publish error", "topic", topic, "err", err)
		}
	}()
}
