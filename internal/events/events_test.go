package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingClient struct {
	channel string
	message []byte
	err     error
}

func (c *recordingClient) Publish(_ context.Context, channel string, message any) *redis.IntCmd {
	c.channel = channel
	c.message, _ = message.([]byte)
	return redis.NewIntResult(1, c.err)
}

func TestPublisherEncodesEvent(t *testing.T) {
	client := &recordingClient{}
	p := NewPublisher(client, "npctalk:conversations")

	err := p.Publish(context.Background(), Event{Type: TypeEnded, ConversationID: "c1", PlayerID: "p1", NPCID: 9010000, Reason: "completed"})
	require.NoError(t, err)
	assert.Equal(t, "npctalk:conversations", client.channel)

	var got Event
	require.NoError(t, json.Unmarshal(client.message, &got))
	assert.Equal(t, "c1", got.ConversationID)
	assert.Equal(t, int32(9010000), got.NPCID)
	assert.False(t, got.At.IsZero())
}

func TestPublisherWrapsErrors(t *testing.T) {
	p := NewPublisher(&recordingClient{err: errors.New("down")}, "ch")
	err := p.Publish(context.Background(), Event{Type: TypeStarted})
	assert.ErrorContains(t, err, "publish to ch: down")
}

type terminator struct {
	calls [][2]string
}

func (f *terminator) Terminate(playerID, reason string) bool {
	f.calls = append(f.calls, [2]string{playerID, reason})
	return playerID == "p1"
}

func TestListenerHandlesCommands(t *testing.T) {
	target := &terminator{}
	l := NewListener(nil, "ch", target)

	assert.True(t, l.handle(`{"player_id":"p1","reason":"map_change"}`))
	assert.False(t, l.handle(`{"player_id":"p2"}`))
	assert.False(t, l.handle(`{"player_id":"  "}`))
	assert.False(t, l.handle(`garbage`))

	assert.Equal(t, [][2]string{{"p1", "map_change"}, {"p2", DefaultTerminateReason}}, target.calls)
}

func TestListenerStopsWithContext(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	defer client.Close()
	l := NewListener(client, "ch", &terminator{})
	l.backoffBase = 5 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("listener did not stop")
	}
}
