package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antoniostano/npctalk/internal/catalog"
)

func TestManagerCreateGetEnd(t *testing.T) {
	m := NewManager(time.Minute)
	s, err := m.Create(CreateRequest{PlayerID: "p1", PlayerName: "Ariel", Gender: catalog.GenderFemale, Hair: 31000})
	require.NoError(t, err)
	require.NotEmpty(t, s.ID)

	got, err := m.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ariel", got.PlayerName)
	assert.Equal(t, StatusActive, got.Status)
	assert.Equal(t, 1, m.ActiveCount())

	byPlayer, err := m.ByPlayer("p1")
	require.NoError(t, err)
	assert.Equal(t, s.ID, byPlayer.ID)

	ended, err := m.End(s.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusEnded, ended.Status)
	assert.Zero(t, m.ActiveCount())

	_, err = m.ByPlayer("p1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.End("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManagerCreateValidates(t *testing.T) {
	m := NewManager(time.Minute)
	_, err := m.Create(CreateRequest{PlayerID: "  "})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = m.Create(CreateRequest{PlayerID: "p1", Gender: 2})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	s, err := m.Create(CreateRequest{PlayerID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, "p1", s.PlayerName)

	_, err = m.Create(CreateRequest{PlayerID: "p1"})
	assert.ErrorIs(t, err, ErrPlayerActive)

	_, err = m.End(s.ID)
	require.NoError(t, err)
	_, err = m.Create(CreateRequest{PlayerID: "p1"})
	assert.NoError(t, err)
}

func TestManagerActiveNPC(t *testing.T) {
	m := NewManager(time.Minute)
	s, err := m.Create(CreateRequest{PlayerID: "p1"})
	require.NoError(t, err)

	require.NoError(t, m.SetActiveNPC(s.ID, 9010000, "conv-1"))
	require.NoError(t, m.ClearActiveNPC(s.ID, "conv-0"))
	got, _ := m.Get(s.ID)
	assert.Equal(t, int32(9010000), got.ActiveNPC)

	require.NoError(t, m.ClearActiveNPC(s.ID, "conv-1"))
	got, _ = m.Get(s.ID)
	assert.Zero(t, got.ActiveNPC)
	assert.Empty(t, got.ConversationID)
	assert.Equal(t, 1, got.ConversationCount)
}

func TestManagerJanitorExpiresInactive(t *testing.T) {
	m := NewManager(30 * time.Millisecond)
	s, err := m.Create(CreateRequest{PlayerID: "p1"})
	require.NoError(t, err)

	var mu sync.Mutex
	var expired []string
	m.SetExpireHook(func(s *Session) {
		mu.Lock()
		expired = append(expired, s.PlayerID)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartJanitor(ctx, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		got, err := m.Get(s.ID)
		return err == nil && got.Status == StatusEnded
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []string{"p1"}, expired)
	mu.Unlock()
	assert.Empty(t, m.Active())
}

func TestManagerTouchKeepsSessionAlive(t *testing.T) {
	m := NewManager(80 * time.Millisecond)
	s, err := m.Create(CreateRequest{PlayerID: "p1"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartJanitor(ctx, 5*time.Millisecond)

	for i := 0; i < 8; i++ {
		time.Sleep(20 * time.Millisecond)
		require.NoError(t, m.Touch(s.ID))
	}
	got, err := m.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, got.Status)
}
