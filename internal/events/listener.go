package events

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/antoniostano/npctalk/internal/reliability"
)

// DefaultTerminateReason is used when a command carries no reason.
const DefaultTerminateReason = "forced"

// Command is a forced-termination request, e.g.
// {"player_id": "p1", "reason": "map_change"}.
type Command struct {
	PlayerID string `json:"player_id"`
	Reason   string `json:"reason"`
}

type Terminator interface {
	Terminate(playerID, reason string) bool
}

type Listener struct {
	client  *redis.Client
	channel string
	target  Terminator

	backoffBase time.Duration
	backoffCap  time.Duration
}

func NewListener(client *redis.Client, channel string, target Terminator) *Listener {
	return &Listener{
		client:      client,
		channel:     channel,
		target:      target,
		backoffBase: 250 * time.Millisecond,
		backoffCap:  10 * time.Second,
	}
}

// Run subscribes until ctx is done, resubscribing after failures.
func (l *Listener) Run(ctx context.Context) error {
	attempt := 0
	for {
		err := l.listen(ctx, func() { attempt = 0 })
		if ctx.Err() != nil {
			return nil
		}
		delay := reliability.ExponentialBackoff(attempt, l.backoffBase, l.backoffCap)
		attempt++
		log.Warn().Err(err).Str("channel", l.channel).Dur("retry_in", delay).Msg("terminate listener disconnected")
		if reliability.Sleep(ctx, delay) != nil {
			return nil
		}
	}
}

func (l *Listener) listen(ctx context.Context, subscribed func()) error {
	sub := l.client.Subscribe(ctx, l.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return errors.Wrap(err, "subscribe")
	}
	subscribed()
	log.Debug().Str("channel", l.channel).Msg("terminate listener subscribed")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return errors.New("subscription closed")
			}
			l.handle(msg.Payload)
		}
	}
}

func (l *Listener) handle(payload string) bool {
	var cmd Command
	if err := json.Unmarshal([]byte(payload), &cmd); err != nil {
		log.Warn().Err(err).Msg("invalid terminate command")
		return false
	}
	cmd.PlayerID = strings.TrimSpace(cmd.PlayerID)
	if cmd.PlayerID == "" {
		log.Warn().Msg("terminate command without player_id")
		return false
	}
	if strings.TrimSpace(cmd.Reason) == "" {
		cmd.Reason = DefaultTerminateReason
	}
	ok := l.target.Terminate(cmd.PlayerID, cmd.Reason)
	log.Info().Str("player_id", cmd.PlayerID).Str("reason", cmd.Reason).Bool("terminated", ok).Msg("terminate command")
	return ok
}
