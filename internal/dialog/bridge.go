package dialog

import (
	"sync"
	"time"

	"github.com/antoniostano/npctalk/internal/wire"
)

// resumption is what a parked prompt call wakes up with.
type resumption struct {
	value any
	err   error
}

// token is the live suspension of a prompt call awaiting its response.
type token struct {
	kind   wire.PromptKind
	sentAt time.Time
	wake   chan resumption
}

// bridge hands control back and forth between the goroutine running the
// script and the goroutine delivering responses. At most one token is live.
//
// A stretch is the script running from a resume (or the start) up to its next
// prompt or its end. Whoever began the stretch waits on its channel, which is
// closed when the script parks again or finishes.
type bridge struct {
	mu      sync.Mutex
	pending   *token
	stretch   chan struct{}
	stretchAt time.Time
}

func (b *bridge) register(tok *token) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending != nil {
		return errSuspensionPending
	}
	b.pending = tok
	return nil
}

func (b *bridge) unregister(tok *token) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending == tok {
		b.pending = nil
	}
}

// take removes the pending token if it was issued for kind.
func (b *bridge) take(kind wire.PromptKind) (*token, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending == nil {
		return nil, malformed("%s response with no prompt pending", kind)
	}
	if b.pending.kind != kind {
		return nil, malformed("%s response to a pending %s prompt", kind, b.pending.kind)
	}
	tok := b.pending
	b.pending = nil
	return tok, nil
}

// peek returns the kind of the pending token without consuming it.
func (b *bridge) peek() (wire.PromptKind, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending == nil {
		return 0, false
	}
	return b.pending.kind, true
}

// begin opens a new stretch and returns the channel that closes with it.
func (b *bridge) begin() <-chan struct{} {
	ch := make(chan struct{})
	b.mu.Lock()
	b.stretch = ch
	b.stretchAt = time.Now()
	b.mu.Unlock()
	return ch
}

// release ends the current stretch, if one is open, and reports how long
// the script ran.
func (b *bridge) release() (time.Duration, bool) {
	b.mu.Lock()
	ch, at := b.stretch, b.stretchAt
	b.stretch = nil
	b.mu.Unlock()
	if ch == nil {
		return 0, false
	}
	close(ch)
	return time.Since(at), true
}
