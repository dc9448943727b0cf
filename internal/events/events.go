// Package events bridges conversation lifecycle to redis pub/sub: lifecycle
// events go out, forced-termination commands come in.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const (
	TypeStarted = "started"
	TypeEnded   = "ended"
)

type Event struct {
	Type           string    `json:"type"`
	ConversationID string    `json:"conversation_id"`
	PlayerID       string    `json:"player_id"`
	NPCID          int32     `json:"npc_id"`
	Reason         string    `json:"reason,omitempty"`
	At             time.Time `json:"at"`
}

// Sink receives lifecycle events. Publishing is best effort.
type Sink interface {
	Publish(ctx context.Context, evt Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

type publishClient interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type Publisher struct {
	client  publishClient
	channel string
}

func NewPublisher(client publishClient, channel string) *Publisher {
	return &Publisher{client: client, channel: channel}
}

func (p *Publisher) Publish(ctx context.Context, evt Event) error {
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}
	blob, err := json.Marshal(evt)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}
	if err := p.client.Publish(ctx, p.channel, blob).Err(); err != nil {
		return errors.Wrapf(err, "publish to %s", p.channel)
	}
	return nil
}
