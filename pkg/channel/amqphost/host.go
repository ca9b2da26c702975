// Package amqphost carries the content boundary over the broker: content
// text arrives wrapped in envelopes on the inbound routing key and replies
// leave on the outbound one.
package amqphost

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rabbitmq/amqp091-go"

	"github.com/roboricindustries/raycon-micbridge/pkg/pubsub"
	bridge "github.com/roboricindustries/raycon-micbridge/pkg/schemas/bridge/v1"
	"github.com/roboricindustries/raycon-micbridge/pkg/schemas/common"
)

var errEmptyData = errors.New("envelope has no data")

type Host struct {
	pub      pubsub.Publisher
	producer string
	log      *slog.Logger

	mu     sync.Mutex
	subs   map[int]func(string)
	nextID int
}

// New registers the inbound handler on sub. The caller starts sub once
// every handler is registered.
func New(pub pubsub.Publisher, sub pubsub.Subscriber, producer string, logger *slog.Logger) *Host {
	h := &Host{
		pub:      pub,
		producer: producer,
		log:      logger.With("op", "channel.amqp"),
		subs:     make(map[int]func(string)),
	}
	if sub != nil {
		sub.RegisterHandler(bridge.InboundRoutingKey, h.HandleDelivery)
	}
	return h
}

// HandleDelivery unwraps one inbound envelope. The envelope data is either
// a JSON string holding the content text or the message object itself.
func (h *Host) HandleDelivery(_ context.Context, d amqp091.Delivery) error {
	var env common.GenericEnvelope[json.RawMessage]
	if err := json.Unmarshal(d.Body, &env); err != nil {
		return fmt.Errorf("%w: %v", pubsub.ErrPoison, err)
	}
	text, err := contentText(env.Data)
	if err != nil {
		return fmt.Errorf("%w: %v", pubsub.ErrPoison, err)
	}
	h.log.Debug("inbound", slog.String("id", env.Meta.ID))
	h.deliver(text)
	return nil
}

func contentText(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", errEmptyData
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	return string(raw), nil
}

func (h *Host) deliver(text string) {
	h.mu.Lock()
	subs := make([]func(string), 0, len(h.subs))
	for _, fn := range h.subs {
		subs = append(subs, fn)
	}
	h.mu.Unlock()
	for _, fn := range subs {
		fn(text)
	}
}

func (h *Host) Subscribe(fn func(string)) func() {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = fn
	h.mu.Unlock()
	return func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}
}

// PostMessage publishes text as the data of an outbound envelope. Text
// that is not valid JSON is sent as a JSON string.
func (h *Host) PostMessage(ctx context.Context, text string) error {
	var data any = json.RawMessage(text)
	if !json.Valid([]byte(text)) {
		data = text
	}
	env := common.NewEnvelope(bridge.OutboundMessageMeta, h.producer, data)
	return h.pub.Publish(ctx, bridge.OutboundMessageMeta.RoutingKey, env)
}
