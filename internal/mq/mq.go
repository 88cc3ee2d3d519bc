package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/infectwatch/apiserver/config"
	"github.com/infectwatch/apiserver/types"
)

const (
	attrEventType  = "event_type"
	eventTypeLogin = "user.login"
)

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// MQ wraps a backend with a stable API.
type MQ struct {
	backend Backend
}

// New constructs an MQ wrapper for the provided backend.
func New(backend Backend) *MQ {
	return &MQ{backend: backend}
}

// Open connects to the backend selected in config. It returns nil, nil when
// messaging is disabled.
func Open(ctx context.Context, cfg config.MQConfig) (*MQ, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", config.MQBackendNone:
		return nil, nil
	case config.MQBackendRabbitMQ:
		backend, err := NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return New(backend), nil
	case config.MQBackendPubSub:
		backend, err := NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, err
		}
		return New(backend), nil
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.Backend)
	}
}

// Publish sends a message to the named channel.
func (m *MQ) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	return m.backend.Publish(ctx, channel, data, attrs)
}

// Subscribe consumes messages from the named channel.
func (m *MQ) Subscribe(ctx context.Context, channel string, handler Handler) error {
	return m.backend.Subscribe(ctx, channel, handler)
}

// Close closes the underlying backend.
func (m *MQ) Close() error {
	return m.backend.Close()
}

// LoginEvents publishes and consumes login events on a single channel.
type LoginEvents struct {
	mq      *MQ
	channel string
}

func NewLoginEvents(m *MQ, channel string) *LoginEvents {
	return &LoginEvents{mq: m, channel: channel}
}

// PublishLogin encodes the event as JSON and sends it.
func (e *LoginEvents) PublishLogin(ctx context.Context, event types.LoginEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = e.mq.Publish(ctx, e.channel, data, map[string]string{
		attrEventType: eventTypeLogin,
	})
	return err
}

// Consume decodes every login event on the channel and hands it to fn.
// Undecodable messages are acknowledged and skipped.
func (e *LoginEvents) Consume(ctx context.Context, fn func(context.Context, types.LoginEvent) error) error {
	return e.mq.Subscribe(ctx, e.channel, func(ctx context.Context, msg Message) error {
		if t, ok := msg.Attributes[attrEventType]; ok && t != eventTypeLogin {
			return nil
		}
		var event types.LoginEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			return nil
		}
		return fn(ctx, event)
	})
}
