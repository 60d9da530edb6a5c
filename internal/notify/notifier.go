// Package notify publishes ingest status codes to the message bus.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"example.com/healthsync/internal/domain"
	"example.com/healthsync/internal/logging"
	"example.com/healthsync/internal/observability"
)

// Publisher writes a payload to a topic on some broker.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Close() error
}

// Topics names the destinations used by the ingest jobs. Raw is optional.
type Topics struct {
	Raw      string
	Stats    string
	Activity string
}

// Option configures optional behaviour for the StatusNotifier.
type Option func(*StatusNotifier)

// WithLogger overrides the logger used to report dropped publishes.
func WithLogger(logger zerolog.Logger) Option {
	return func(n *StatusNotifier) {
		n.logger = logger
	}
}

// StatusNotifier sends one-digit status codes. Publishing is fire-and-forget:
// failures are logged and counted, never returned and never retried.
type StatusNotifier struct {
	pub    Publisher
	topics Topics
	logger zerolog.Logger
}

// NewStatusNotifier constructs a StatusNotifier over pub.
func NewStatusNotifier(pub Publisher, topics Topics, opts ...Option) *StatusNotifier {
	n := &StatusNotifier{
		pub:    pub,
		topics: topics,
		logger: logging.Logger().With().Str("component", "notify").Logger(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Stats publishes code on the statistics topic.
func (n *StatusNotifier) Stats(ctx context.Context, code domain.StatusCode) {
	n.send(ctx, n.topics.Stats, []byte(code))
}

// Activity publishes code on the activity topic.
func (n *StatusNotifier) Activity(ctx context.Context, code domain.StatusCode) {
	n.send(ctx, n.topics.Activity, []byte(code))
}

// Raw forwards a freshly inserted payload when a raw topic is configured.
func (n *StatusNotifier) Raw(ctx context.Context, payload []byte) {
	if n.topics.Raw == "" {
		return
	}
	n.send(ctx, n.topics.Raw, payload)
}

func (n *StatusNotifier) send(ctx context.Context, topic string, payload []byte) {
	if err := n.pub.Publish(ctx, topic, payload); err != nil {
		n.logger.Warn().Err(err).Str("topic", topic).Msg("status publish dropped")
		observability.RecordPublish(topic, false)
		return
	}
	observability.RecordPublish(topic, true)
}

// BrokerConfig selects and addresses the broker.
type BrokerConfig struct {
	// Kind is mqtt, kafka or nats.
	Kind     string
	Host     string
	Port     int
	Username string
	Password string
	ClientID string
}

// Open connects the publisher for cfg.Kind.
func Open(ctx context.Context, cfg BrokerConfig) (Publisher, error) {
	switch strings.ToLower(cfg.Kind) {
	case "", "mqtt":
		pub, err := NewMQTTPublisher(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return pub, nil
	case "kafka":
		return NewKafkaPublisher([]string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)}), nil
	case "nats":
		pub, err := NewNATSPublisher(cfg)
		if err != nil {
			return nil, err
		}
		return pub, nil
	default:
		return nil, fmt.Errorf("unsupported broker kind %q", cfg.Kind)
	}
}
