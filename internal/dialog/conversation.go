package dialog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/antoniostano/npctalk/internal/observability"
	"github.com/antoniostano/npctalk/internal/wire"
)

// Termination reasons.
const (
	ReasonCompleted   = "completed"
	ReasonEnded       = "ended"
	ReasonEndChat     = "end_chat"
	ReasonHandoff     = "handoff"
	ReasonDisconnect  = "disconnect"
	ReasonExpired     = "expired"
	ReasonCancelled   = "cancelled"
	ReasonScriptError = "script_error"
	ReasonScriptPanic = "script_panic"
)

// Options configure a new conversation.
type Options struct {
	// ID defaults to a random uuid.
	ID          string
	NPCID       int32
	Participant Participant
	Script      Script
	Catalogs    Catalogs
	Handoff     Handoff
	Metrics     *observability.Metrics
}

// Conversation is one NPC dialog with one player. The script runs on its own
// goroutine and parks at every prompt until ResponseReceived resumes it.
type Conversation struct {
	id       string
	npcID    int32
	script   Script
	catalogs Catalogs
	handoff  Handoff
	metrics  *observability.Metrics
	log      zerolog.Logger

	// mu guards participant and history.
	mu          sync.Mutex
	participant Participant
	history     History

	// handleMu serializes response delivery. Termination never takes it.
	handleMu sync.Mutex

	started    atomic.Bool
	terminated atomic.Bool
	endingChat atomic.Bool
	inHook     atomic.Bool
	reason     atomic.Value

	ctx    context.Context
	cancel context.CancelFunc
	bridge bridge
}

// New creates a conversation bound to ctx: cancelling ctx interrupts it.
func New(ctx context.Context, opts Options) *Conversation {
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	cctx, cancel := context.WithCancel(ctx)
	c := &Conversation{
		id:          id,
		npcID:       opts.NPCID,
		script:      opts.Script,
		catalogs:    opts.Catalogs,
		handoff:     opts.Handoff,
		metrics:     opts.Metrics,
		participant: opts.Participant,
		ctx:         cctx,
		cancel:      cancel,
	}
	c.log = log.With().
		Str("conversation_id", id).
		Int32("npc_id", opts.NPCID).
		Logger()
	c.metrics.ConversationStarted()
	return c
}

func (c *Conversation) ID() string { return c.id }

func (c *Conversation) NPCID() int32 { return c.npcID }

func (c *Conversation) Terminated() bool { return c.terminated.Load() }

// Done is closed once the conversation has terminated.
func (c *Conversation) Done() <-chan struct{} { return c.ctx.Done() }

// EndReason returns the reason recorded by the winning termination.
func (c *Conversation) EndReason() string {
	r, _ := c.reason.Load().(string)
	return r
}

// PlayerName returns the participant's name, or "" after termination.
func (c *Conversation) PlayerName() string {
	if p := c.peer(); p != nil {
		return p.PlayerName()
	}
	return ""
}

// Awaiting reports the kind of the prompt waiting for a response.
func (c *Conversation) Awaiting() (wire.PromptKind, bool) {
	return c.bridge.peek()
}

func (c *Conversation) peer() Participant {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.participant
}

// Start runs the script until its first prompt or its end. ctx bounds only
// the wait; the script keeps running on the conversation's own context.
func (c *Conversation) Start(ctx context.Context) error {
	if c.terminated.Load() {
		return ErrConversationInterrupted
	}
	if !c.started.CompareAndSwap(false, true) {
		return errAlreadyStarted
	}
	c.log.Debug().Msg("conversation started")

	done := c.bridge.begin()
	go c.run()
	return c.await(ctx, done)
}

func (c *Conversation) await(ctx context.Context, done <-chan struct{}) error {
	select {
	case <-done:
		return nil
	case <-c.ctx.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Conversation) run() {
	reason := ReasonCompleted
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Interface("panic", r).Msg("script panicked")
			reason = ReasonScriptPanic
		}
		c.Terminate(reason)
		c.releaseStretch()
	}()

	err := c.script.Run(c.ctx, c)
	if hook, ok := c.script.(EndChatHook); ok && c.endingChat.Load() && !c.terminated.Load() {
		c.inHook.Store(true)
		err = hook.ChatEnded(c.ctx, c)
	}
	if c.endingChat.Load() {
		reason = ReasonEndChat
	}

	switch {
	case err == nil:
	case errors.Is(err, ErrConversationInterrupted), errors.Is(err, context.Canceled):
		c.log.Debug().Err(err).Msg("script unwound")
	default:
		c.log.Warn().Err(err).Msg("script failed")
		reason = ReasonScriptError
	}
	if !c.terminated.Load() && c.ctx.Err() != nil {
		reason = ReasonCancelled
	}
}

func (c *Conversation) releaseStretch() {
	if d, ok := c.bridge.release(); ok {
		c.metrics.ObserveScriptStretch(d)
	}
}

// EndConversation terminates the conversation. Only the first of any number
// of concurrent calls does the cleanup; the rest return silently.
func (c *Conversation) EndConversation() {
	c.Terminate(ReasonEnded)
}

// Terminate is EndConversation with a recorded reason. It reports whether
// this call performed the termination.
func (c *Conversation) Terminate(reason string) bool {
	if !c.terminated.CompareAndSwap(false, true) {
		return false
	}
	c.reason.Store(reason)

	c.mu.Lock()
	p := c.participant
	c.participant = nil
	c.history.Clear()
	c.mu.Unlock()

	if p != nil {
		p.ConversationEnded(c)
	}
	c.metrics.ConversationEnded(reason)
	c.log.Debug().Str("reason", reason).Msg("conversation terminated")
	c.cancel()
	return true
}

// ClearBackButton forgets the message chain so the next say has no previous
// button.
func (c *Conversation) ClearBackButton() {
	c.mu.Lock()
	c.history.Clear()
	c.mu.Unlock()
}

func (c *Conversation) checkPrompt() error {
	if c.terminated.Load() {
		return ErrConversationInterrupted
	}
	if c.endingChat.Load() && !c.inHook.Load() {
		return ErrChatEnded
	}
	return nil
}

// prompt sends frame and parks the calling script until the response.
func (c *Conversation) prompt(kind wire.PromptKind, frame []byte, encErr error) (any, error) {
	if encErr != nil {
		return nil, fmt.Errorf("encode %s prompt: %w", kind, encErr)
	}
	p := c.peer()
	if p == nil {
		return nil, ErrConversationInterrupted
	}

	tok := &token{kind: kind, sentAt: time.Now(), wake: make(chan resumption, 1)}
	if err := c.bridge.register(tok); err != nil {
		return nil, err
	}
	if err := p.Send(frame); err != nil {
		c.bridge.unregister(tok)
		return nil, fmt.Errorf("send %s prompt: %w", kind, err)
	}
	c.metrics.ObservePrompt(kind.String())
	c.releaseStretch()

	select {
	case r := <-tok.wake:
		return r.value, r.err
	case <-c.ctx.Done():
		return nil, ErrConversationInterrupted
	}
}

// resume wakes the parked script with r and waits until it parks again or
// finishes. Termination while waiting is not an error here.
func (c *Conversation) resume(ctx context.Context, tok *token, r resumption) error {
	c.metrics.ObserveResponseLatency(tok.kind.String(), time.Since(tok.sentAt))
	done := c.bridge.begin()
	tok.wake <- r
	return c.await(ctx, done)
}
