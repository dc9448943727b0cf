// Package npc connects player websocket sessions to NPC conversations.
package npc

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/antoniostano/npctalk/internal/dialog"
	"github.com/antoniostano/npctalk/internal/events"
	"github.com/antoniostano/npctalk/internal/observability"
	"github.com/antoniostano/npctalk/internal/protocol"
	"github.com/antoniostano/npctalk/internal/script"
	"github.com/antoniostano/npctalk/internal/session"
)

var (
	ErrConversationActive = errors.New("player is already in a conversation")
	ErrOutboundTimeout    = errors.New("outbound queue full")
)

// ScriptSource resolves the script an NPC runs.
type ScriptSource interface {
	Script(npcID int32) (dialog.Script, error)
}

type Config struct {
	Sessions *session.Manager
	Scripts  ScriptSource
	Catalogs dialog.Catalogs
	Events   events.Sink
	Metrics  *observability.Metrics

	// SendTimeout bounds a write to a connection's outbound queue.
	SendTimeout time.Duration
	// ScriptTimeout bounds how long a frame handler waits for the script to
	// reach its next prompt.
	ScriptTimeout time.Duration
}

type Orchestrator struct {
	sessions      *session.Manager
	scripts       ScriptSource
	catalogs      dialog.Catalogs
	events        events.Sink
	metrics       *observability.Metrics
	sendTimeout   time.Duration
	scriptTimeout time.Duration

	mu     sync.Mutex
	active map[string]*entry
}

type entry struct {
	conv      *dialog.Conversation
	player    *player
	startedAt time.Time
}

// Summary describes one running conversation.
type Summary struct {
	ConversationID string    `json:"conversation_id"`
	PlayerID       string    `json:"player_id"`
	SessionID      string    `json:"session_id"`
	NPCID          int32     `json:"npc_id"`
	Awaiting       string    `json:"awaiting,omitempty"`
	StartedAt      time.Time `json:"started_at"`
}

func NewOrchestrator(cfg Config) *Orchestrator {
	o := &Orchestrator{
		sessions:      cfg.Sessions,
		scripts:       cfg.Scripts,
		catalogs:      cfg.Catalogs,
		events:        cfg.Events,
		metrics:       cfg.Metrics,
		sendTimeout:   cfg.SendTimeout,
		scriptTimeout: cfg.ScriptTimeout,
		active:        make(map[string]*entry),
	}
	if o.events == nil {
		o.events = events.Nop{}
	}
	if o.sendTimeout <= 0 {
		o.sendTimeout = 600 * time.Millisecond
	}
	if o.scriptTimeout <= 0 {
		o.scriptTimeout = 5 * time.Second
	}
	return o
}

// RunConnection serves one player's frames until inbound closes or ctx is
// done. The player's conversation does not outlive the connection.
func (o *Orchestrator) RunConnection(ctx context.Context, s *session.Session, inbound <-chan any, outbound chan<- any) error {
	defer o.Terminate(s.PlayerID, dialog.ReasonDisconnect)

	_ = o.send(outbound, protocol.SystemEvent{
		Type:      protocol.TypeSystemEvent,
		SessionID: s.ID,
		Code:      protocol.CodeSessionReady,
	})

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-inbound:
			if !ok {
				return nil
			}
			if o.sessions != nil {
				_ = o.sessions.Touch(s.ID)
			}
			switch m := msg.(type) {
			case protocol.StartTalk:
				if _, err := o.Start(ctx, s, outbound, m.NPCID); err != nil {
					o.sendError(outbound, s.ID, startErrorCode(err), err)
				}
			case protocol.TalkMore:
				o.talkMore(ctx, s, outbound, m.Response)
			default:
				log.Debug().Str("session_id", s.ID).Msgf("ignoring inbound %T", msg)
			}
		}
	}
}

// Start opens a conversation between the session's player and npcID and
// runs its script to the first prompt.
func (o *Orchestrator) Start(ctx context.Context, s *session.Session, outbound chan<- any, npcID int32) (*dialog.Conversation, error) {
	o.mu.Lock()
	_, busy := o.active[s.PlayerID]
	o.mu.Unlock()
	if busy {
		return nil, ErrConversationActive
	}

	sc, err := o.scripts.Script(npcID)
	if err != nil {
		return nil, err
	}

	p := newPlayer(o, s, outbound)
	conv := dialog.New(context.WithoutCancel(ctx), dialog.Options{
		NPCID:       npcID,
		Participant: p,
		Script:      sc,
		Catalogs:    o.catalogs,
		Handoff:     handoff{},
		Metrics:     o.metrics,
	})

	o.mu.Lock()
	if _, busy := o.active[s.PlayerID]; busy {
		o.mu.Unlock()
		conv.Terminate(dialog.ReasonCancelled)
		return nil, ErrConversationActive
	}
	o.active[s.PlayerID] = &entry{conv: conv, player: p, startedAt: time.Now().UTC()}
	o.mu.Unlock()

	if o.sessions != nil {
		_ = o.sessions.SetActiveNPC(s.ID, npcID, conv.ID())
	}
	o.publish(events.Event{Type: events.TypeStarted, ConversationID: conv.ID(), PlayerID: s.PlayerID, NPCID: npcID})
	_ = o.send(outbound, protocol.SystemEvent{
		Type:      protocol.TypeSystemEvent,
		SessionID: s.ID,
		Code:      protocol.CodeConversationStarted,
		NPCID:     npcID,
		Detail:    conv.ID(),
	})

	startCtx, cancel := context.WithTimeout(ctx, o.scriptTimeout)
	defer cancel()
	if err := conv.Start(startCtx); err != nil {
		o.stalled(conv, err)
	}
	return conv, nil
}

func (o *Orchestrator) talkMore(ctx context.Context, s *session.Session, outbound chan<- any, response []byte) {
	conv, ok := o.Conversation(s.PlayerID)
	if !ok {
		log.Info().Str("player_id", s.PlayerID).Msg("dialog response without a conversation")
		o.metrics.ObserveResponse("none", "dropped")
		return
	}

	rctx, cancel := context.WithTimeout(ctx, o.scriptTimeout)
	defer cancel()
	err := conv.ResponseReceived(rctx, response)
	switch {
	case err == nil, errors.Is(err, dialog.ErrConversationInterrupted):
	case errors.Is(err, dialog.ErrMalformedResponse):
		o.sendError(outbound, s.ID, "malformed_response", err)
	default:
		o.stalled(conv, err)
	}
}

// stalled ends a conversation whose script did not reach a prompt in time.
func (o *Orchestrator) stalled(conv *dialog.Conversation, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	log.Warn().Err(err).Str("conversation_id", conv.ID()).Int32("npc_id", conv.NPCID()).Msg("script stalled")
	conv.Terminate(dialog.ReasonExpired)
}

// Conversation returns the player's running conversation.
func (o *Orchestrator) Conversation(playerID string) (*dialog.Conversation, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	e, ok := o.active[playerID]
	if !ok {
		return nil, false
	}
	return e.conv, true
}

// Terminate force-ends the player's conversation, reporting whether one was
// running.
func (o *Orchestrator) Terminate(playerID, reason string) bool {
	conv, ok := o.Conversation(playerID)
	if !ok {
		return false
	}
	return conv.Terminate(reason)
}

// SessionExpired is the session manager's expire hook.
func (o *Orchestrator) SessionExpired(s *session.Session) {
	if o.Terminate(s.PlayerID, dialog.ReasonExpired) {
		log.Info().Str("session_id", s.ID).Str("player_id", s.PlayerID).Msg("idle player conversation expired")
	}
}

func (o *Orchestrator) Active() []Summary {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Summary, 0, len(o.active))
	for playerID, e := range o.active {
		sum := Summary{
			ConversationID: e.conv.ID(),
			PlayerID:       playerID,
			SessionID:      e.player.sessionID,
			NPCID:          e.conv.NPCID(),
			StartedAt:      e.startedAt,
		}
		if kind, ok := e.conv.Awaiting(); ok {
			sum.Awaiting = kind.String()
		}
		out = append(out, sum)
	}
	return out
}

// finish runs once per conversation, from the terminating goroutine.
func (o *Orchestrator) finish(p *player, conv *dialog.Conversation) {
	o.mu.Lock()
	if e, ok := o.active[p.playerID]; ok && e.conv == conv {
		delete(o.active, p.playerID)
	}
	o.mu.Unlock()

	if o.sessions != nil {
		_ = o.sessions.ClearActiveNPC(p.sessionID, conv.ID())
	}
	reason := conv.EndReason()
	o.publish(events.Event{Type: events.TypeEnded, ConversationID: conv.ID(), PlayerID: p.playerID, NPCID: conv.NPCID(), Reason: reason})
	_ = o.send(p.outbound, protocol.SystemEvent{
		Type:      protocol.TypeSystemEvent,
		SessionID: p.sessionID,
		Code:      protocol.CodeConversationEnded,
		NPCID:     conv.NPCID(),
		Detail:    reason,
	})
}

func (o *Orchestrator) publish(evt events.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := o.events.Publish(ctx, evt); err != nil {
		log.Warn().Err(err).Str("conversation_id", evt.ConversationID).Str("event", evt.Type).Msg("publish conversation event")
	}
}

// send queues msg for the connection writer, giving up after sendTimeout.
func (o *Orchestrator) send(outbound chan<- any, msg any) error {
	timer := time.NewTimer(o.sendTimeout)
	defer timer.Stop()
	select {
	case outbound <- msg:
		o.metrics.Outbound("sent")
		return nil
	case <-timer.C:
		o.metrics.Outbound("timeout")
		return ErrOutboundTimeout
	}
}

func (o *Orchestrator) sendError(outbound chan<- any, sessionID, code string, err error) {
	_ = o.send(outbound, protocol.ErrorEvent{
		Type:      protocol.TypeErrorEvent,
		SessionID: sessionID,
		Code:      code,
		Source:    "npc",
		Retryable: code == "conversation_active",
		Detail:    err.Error(),
	})
}

func startErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrConversationActive):
		return "conversation_active"
	case errors.Is(err, script.ErrNoScript):
		return "no_script"
	default:
		return "script_load_failed"
	}
}
