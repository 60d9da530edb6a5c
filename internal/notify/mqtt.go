package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	mqttConnectTimeout = 10 * time.Second
	// Milliseconds paho waits for in-flight publishes on disconnect.
	mqttQuiesce = 250
)

// MQTTPublisher publishes at QoS 0 without the retained flag.
type MQTTPublisher struct {
	client mqtt.Client
}

// NewMQTTPublisher connects to tcp://host:port with the configured credentials.
func NewMQTTPublisher(ctx context.Context, cfg BrokerConfig) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port)).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetConnectTimeout(mqttConnectTimeout).
		SetAutoReconnect(false)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to mqtt broker %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return &MQTTPublisher{client: client}, nil
}

// Publish hands payload to the client without waiting for the broker.
func (p *MQTTPublisher) Publish(_ context.Context, topic string, payload []byte) error {
	if !p.client.IsConnected() {
		return errors.New("mqtt client not connected")
	}
	p.client.Publish(topic, 0, false, payload)
	return nil
}

// Close disconnects after letting queued publishes drain.
func (p *MQTTPublisher) Close() error {
	p.client.Disconnect(mqttQuiesce)
	return nil
}
