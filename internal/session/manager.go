package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/antoniostano/npctalk/internal/catalog"
)

type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

var (
	ErrNotFound       = errors.New("session not found")
	ErrPlayerActive   = errors.New("player already has an active session")
	ErrInvalidRequest = errors.New("invalid session request")
)

// Session is one connected player.
type Session struct {
	ID                string         `json:"session_id"`
	PlayerID          string         `json:"player_id"`
	PlayerName        string         `json:"player_name"`
	Gender            catalog.Gender `json:"gender"`
	Hair              int32          `json:"hair"`
	Face              int32          `json:"face"`
	Skin              int8           `json:"skin"`
	Status            Status         `json:"status"`
	ActiveNPC         int32          `json:"active_npc,omitempty"`
	ConversationID    string         `json:"conversation_id,omitempty"`
	ConversationCount int            `json:"conversation_count"`
	StartedAt         time.Time      `json:"started_at"`
	LastActivityAt    time.Time      `json:"last_activity_at"`
}

type Manager struct {
	mu                sync.RWMutex
	sessions          map[string]*Session
	sessionByPlayer   map[string]string
	inactivityTimeout time.Duration
	onExpire          func(*Session)
}

func NewManager(inactivityTimeout time.Duration) *Manager {
	if inactivityTimeout <= 0 {
		inactivityTimeout = 10 * time.Minute
	}
	return &Manager{
		sessions:          make(map[string]*Session),
		sessionByPlayer:   make(map[string]string),
		inactivityTimeout: inactivityTimeout,
	}
}

func (m *Manager) InactivityTimeout() time.Duration { return m.inactivityTimeout }

// SetExpireHook registers the idle-disconnect callback, run by the janitor
// for every session it expires.
func (m *Manager) SetExpireHook(hook func(*Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = hook
}

func (m *Manager) Create(req CreateRequest) (*Session, error) {
	req.PlayerID = strings.TrimSpace(req.PlayerID)
	if req.PlayerID == "" {
		return nil, fmt.Errorf("%w: player_id is required", ErrInvalidRequest)
	}
	if req.Gender != catalog.GenderMale && req.Gender != catalog.GenderFemale {
		return nil, fmt.Errorf("%w: gender must be 0 or 1", ErrInvalidRequest)
	}
	name := strings.TrimSpace(req.PlayerName)
	if name == "" {
		name = req.PlayerID
	}

	now := time.Now().UTC()
	s := &Session{
		ID:             uuid.NewString(),
		PlayerID:       req.PlayerID,
		PlayerName:     name,
		Gender:         req.Gender,
		Hair:           req.Hair,
		Face:           req.Face,
		Skin:           req.Skin,
		Status:         StatusActive,
		StartedAt:      now,
		LastActivityAt: now,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessionByPlayer[req.PlayerID]; ok {
		return nil, ErrPlayerActive
	}
	m.sessions[s.ID] = s
	m.sessionByPlayer[s.PlayerID] = s.ID
	return clone(s), nil
}

func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(s), nil
}

// ByPlayer returns the active session of playerID.
func (m *Manager) ByPlayer(playerID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.sessionByPlayer[playerID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(m.sessions[id]), nil
}

func (m *Manager) Touch(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	s.LastActivityAt = time.Now().UTC()
	return nil
}

// SetActiveNPC records the conversation the player is now in.
func (m *Manager) SetActiveNPC(sessionID string, npcID int32, conversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	s.ActiveNPC = npcID
	s.ConversationID = conversationID
	s.ConversationCount++
	s.LastActivityAt = time.Now().UTC()
	return nil
}

// ClearActiveNPC forgets the active NPC if it still belongs to
// conversationID.
func (m *Manager) ClearActiveNPC(sessionID, conversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	if s.ConversationID == conversationID {
		s.ActiveNPC = 0
		s.ConversationID = ""
	}
	return nil
}

func (m *Manager) End(sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	m.endLocked(s, time.Now().UTC())
	return clone(s), nil
}

func (m *Manager) endLocked(s *Session, now time.Time) {
	s.Status = StatusEnded
	s.ActiveNPC = 0
	s.ConversationID = ""
	s.LastActivityAt = now
	if m.sessionByPlayer[s.PlayerID] == s.ID {
		delete(m.sessionByPlayer, s.PlayerID)
	}
}

func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	go func() { _ = m.RunJanitor(ctx, interval) }()
}

// RunJanitor expires idle sessions every interval until ctx is done.
func (m *Manager) RunJanitor(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.expireInactive()
		}
	}
}

func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessionByPlayer)
}

// Active lists active sessions, oldest first.
func (m *Manager) Active() []*Session {
	m.mu.RLock()
	out := make([]*Session, 0, len(m.sessionByPlayer))
	for _, id := range m.sessionByPlayer {
		out = append(out, clone(m.sessions[id]))
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

func (m *Manager) expireInactive() {
	now := time.Now().UTC()
	var expired []*Session

	m.mu.Lock()
	for id, s := range m.sessions {
		if s.Status != StatusActive {
			// Ended sessions are kept for one more timeout so late lookups
			// still resolve.
			if now.Sub(s.LastActivityAt) >= m.inactivityTimeout {
				delete(m.sessions, id)
			}
			continue
		}
		if now.Sub(s.LastActivityAt) < m.inactivityTimeout {
			continue
		}
		expired = append(expired, clone(s))
		m.endLocked(s, now)
	}
	hook := m.onExpire
	m.mu.Unlock()

	if hook != nil {
		for _, s := range expired {
			hook(s)
		}
	}
}

func clone(s *Session) *Session {
	c := *s
	return &c
}
