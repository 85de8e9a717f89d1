// Package telemetry publishes loop statistics and pipeline events to an MQTT
// broker.
package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	edgeview "github.com/e7canasta/orion-edgeview"
)

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
)

// ErrNotConnected is returned by Publish* before Connect or after connection loss.
var ErrNotConnected = errors.New("telemetry: mqtt not connected")

// Config contains MQTT connection settings
type Config struct {
	// Broker is host:port of the MQTT broker
	Broker string
	// ClientID identifies this process to the broker
	ClientID string
	// TopicPrefix roots all topics: <prefix>/stats, <prefix>/events
	TopicPrefix string
}

// Emitter publishes JSON telemetry with QoS 0 for stats and QoS 1 for events.
type Emitter struct {
	cfg    Config
	client mqtt.Client

	mu        sync.RWMutex
	published map[string]uint64 // count per topic
	errors    uint64
	connected bool
}

// Stats contains emitter statistics
type Stats struct {
	Connected bool
	Published map[string]uint64
	Errors    uint64
}

// NewEmitter creates an unconnected emitter
func NewEmitter(cfg Config) *Emitter {
	return &Emitter{
		cfg:       cfg,
		published: make(map[string]uint64),
	}
}

// StatsTopic is where loop statistics are published
func (e *Emitter) StatsTopic() string {
	return e.cfg.TopicPrefix + "/stats"
}

// EventsTopic is where pipeline events are published
func (e *Emitter) EventsTopic() string {
	return e.cfg.TopicPrefix + "/events"
}

// Connect establishes connection to the broker with automatic reconnection
func (e *Emitter) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", e.cfg.Broker))
	opts.SetClientID(e.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		e.setConnected(true)
		slog.Info("telemetry: mqtt connection established",
			"broker", e.cfg.Broker,
			"client_id", e.cfg.ClientID,
		)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		e.setConnected(false)
		slog.Warn("telemetry: mqtt connection lost, will auto-reconnect",
			"error", err,
			"broker", e.cfg.Broker,
		)
	}

	e.client = mqtt.NewClient(opts)

	slog.Info("telemetry: connecting to mqtt broker", "broker", e.cfg.Broker)

	token := e.client.Connect()
	select {
	case <-token.Done():
	case <-time.After(connectTimeout):
		return fmt.Errorf("telemetry: mqtt connection timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("telemetry: mqtt connection failed: %w", err)
	}

	e.setConnected(true)
	return nil
}

// PublishStats publishes a loop statistics snapshot
func (e *Emitter) PublishStats(stats edgeview.Stats) error {
	payload, err := json.Marshal(newStatsMessage(stats))
	if err != nil {
		return e.fail(fmt.Errorf("telemetry: failed to marshal stats: %w", err))
	}
	return e.publish(e.StatsTopic(), 0, payload)
}

// PublishEvent publishes one pipeline event
func (e *Emitter) PublishEvent(ev edgeview.Event) error {
	payload, err := json.Marshal(newEventMessage(ev, time.Now()))
	if err != nil {
		return e.fail(fmt.Errorf("telemetry: failed to marshal event: %w", err))
	}
	return e.publish(e.EventsTopic(), 1, payload)
}

func (e *Emitter) publish(topic string, qos byte, payload []byte) error {
	if !e.isConnected() {
		return e.fail(ErrNotConnected)
	}

	token := e.client.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return e.fail(fmt.Errorf("telemetry: publish to %s timed out", topic))
	}
	if err := token.Error(); err != nil {
		return e.fail(fmt.Errorf("telemetry: publish to %s failed: %w", topic, err))
	}

	e.mu.Lock()
	e.published[topic]++
	e.mu.Unlock()

	slog.Debug("telemetry: published", "topic", topic, "qos", qos, "size", len(payload))
	return nil
}

func (e *Emitter) fail(err error) error {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
	return err
}

// Disconnect closes the MQTT connection
func (e *Emitter) Disconnect() {
	if e.client != nil && e.client.IsConnected() {
		e.client.Disconnect(250) // 250ms grace period
		slog.Info("telemetry: mqtt disconnected")
	}
	e.setConnected(false)
}

// Stats returns emitter statistics
func (e *Emitter) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	published := make(map[string]uint64, len(e.published))
	for k, v := range e.published {
		published[k] = v
	}
	return Stats{
		Connected: e.connected,
		Published: published,
		Errors:    e.errors,
	}
}

func (e *Emitter) setConnected(v bool) {
	e.mu.Lock()
	e.connected = v
	e.mu.Unlock()
}

func (e *Emitter) isConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.connected
}
