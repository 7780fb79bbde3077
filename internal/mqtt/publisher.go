// Package mqtt publishes pressbot audit events to an MQTT broker so
// newsroom dashboards can react to posts without polling the bot.
package mqtt

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/zamaneghtesad/pressbot/internal/config"
)

// Publisher manages the broker connection and publishes retained
// availability plus per-event JSON messages. Safe to construct even
// when MQTT is disabled; callers gate on config.
type Publisher struct {
	cfg    config.MQTTConfig
	logger *slog.Logger
	cm     *autopaho.ConnectionManager
}

// New creates a Publisher but does not connect. Call [Publisher.Start]
// to establish the connection.
func New(cfg config.MQTTConfig, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{cfg: cfg, logger: logger}
}

// deviceName returns the configured device name or a default.
func (p *Publisher) deviceName() string {
	if p.cfg.DeviceName != "" {
		return p.cfg.DeviceName
	}
	return "pressbot"
}

func (p *Publisher) availabilityTopic() string {
	return fmt.Sprintf("pressbot/%s/availability", p.deviceName())
}

func (p *Publisher) eventTopic(event string) string {
	return fmt.Sprintf("pressbot/%s/events/%s", p.deviceName(), event)
}

// Start connects to the broker. autopaho reconnects in the background;
// a slow initial connection is logged, not fatal.
func (p *Publisher) Start(ctx context.Context) error {
	brokerURL, err := url.Parse(p.cfg.Broker)
	if err != nil {
		return fmt.Errorf("parse mqtt broker URL: %w", err)
	}

	availTopic := p.availabilityTopic()

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:      []*url.URL{brokerURL},
		KeepAlive:       30,
		ConnectUsername: p.cfg.Username,
		ConnectPassword: []byte(p.cfg.Password),
		WillMessage: &paho.WillMessage{
			Topic:   availTopic,
			Payload: []byte("offline"),
			QoS:     1,
			Retain:  true,
		},
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			p.logger.Info("mqtt connected to broker", "broker", p.cfg.Broker)
			p.publishAvailability(ctx, cm, "online")
		},
		OnConnectError: func(err error) {
			p.logger.Warn("mqtt connection error", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: "pressbot-" + p.deviceName(),
		},
	}

	// Enable TLS for mqtts:// or ssl:// schemes.
	if brokerURL.Scheme == "mqtts" || brokerURL.Scheme == "ssl" {
		pahoCfg.TlsCfg = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	p.cm = cm

	connCtx, connCancel := context.WithTimeout(ctx, 30*time.Second)
	defer connCancel()
	if err := cm.AwaitConnection(connCtx); err != nil {
		p.logger.Warn("mqtt initial connection timed out, will retry in background", "error", err)
	}
	return nil
}

// Stop publishes an offline availability message and disconnects.
func (p *Publisher) Stop(ctx context.Context) error {
	if p.cm == nil {
		return nil
	}
	p.publishAvailability(ctx, p.cm, "offline")
	return p.cm.Disconnect(ctx)
}

// Publish sends a JSON-encoded event. Implements the audit package's
// EventPublisher.
func (p *Publisher) Publish(ctx context.Context, event string, payload any) error {
	if p.cm == nil {
		return fmt.Errorf("mqtt publisher not started")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", event, err)
	}

	_, err = p.cm.Publish(ctx, &paho.Publish{
		Topic:   p.eventTopic(event),
		QoS:     1,
		Payload: body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", event, err)
	}
	return nil
}

func (p *Publisher) publishAvailability(ctx context.Context, cm *autopaho.ConnectionManager, state string) {
	_, err := cm.Publish(ctx, &paho.Publish{
		Topic:   p.availabilityTopic(),
		QoS:     1,
		Retain:  true,
		Payload: []byte(state),
	})
	if err != nil {
		p.logger.Warn("mqtt availability publish failed", "state", state, "error", err)
	}
}
