package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/layer-3/portal/core"
	"github.com/layer-3/portal/ports"
)

// DefaultTopic is the topic handshake transitions are published on
const DefaultTopic = "portal.handshake"

// TransitionEvent is the payload of a handshake transition message
type TransitionEvent struct {
	HandshakeID string `json:"handshake_id"`
	From        string `json:"from"`
	To          string `json:"to"`
	Reason      string `json:"reason,omitempty"`
	OccurredAt  string `json:"occurred_at"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
	topic     string
	now       func() time.Time
}

// NewWatermillPublisher creates a new Watermill publisher; an empty topic uses DefaultTopic
func NewWatermillPublisher(publisher message.Publisher, topic string) ports.EventPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &WatermillPublisher{
		publisher: publisher,
		topic:     topic,
		now:       time.Now,
	}
}

// PublishTransition publishes a handshake transition
func (p *WatermillPublisher) PublishTransition(ctx context.Context, tr core.Transition) error {
	event := TransitionEvent{
		HandshakeID: tr.HandshakeID,
		From:        string(tr.From),
		To:          string(tr.To),
		Reason:      string(tr.Reason),
		OccurredAt:  p.now().UTC().Format(time.RFC3339Nano),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("handshake_id", tr.HandshakeID)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}
