package dialog

import (
	"context"
	"errors"

	"github.com/antoniostano/npctalk/internal/wire"
)

// Response actions.
const (
	actionEscape int8 = -1
	actionNo     int8 = 0
	actionYes    int8 = 1

	actionPrev = actionNo
	actionNext = actionYes
	// Input prompts close with action 0 instead of the escape sentinel.
	actionCancel = actionNo
)

// outcome is what a response resolved to.
type outcome int

const (
	outcomeResume outcome = iota
	outcomeNavigate
	outcomeEndChat
)

func (o outcome) String() string {
	switch o {
	case outcomeResume:
		return "resumed"
	case outcomeNavigate:
		return "navigated"
	default:
		return "end_chat"
	}
}

// ResponseReceived handles one response packet, `[kind u8][action i8]` plus
// the kind's payload. A resume blocks until the script parks on its next
// prompt or finishes. Malformed packets are logged, dropped and returned as
// ErrMalformedResponse with the conversation left as it was.
func (c *Conversation) ResponseReceived(ctx context.Context, payload []byte) error {
	c.handleMu.Lock()
	defer c.handleMu.Unlock()

	if c.terminated.Load() {
		return ErrConversationInterrupted
	}

	h, r, err := wire.DecodeHeader(payload)
	if err != nil {
		return c.drop("header", 0, malformed("header: %v", err))
	}
	out, value, err := decodeAction(h, r)
	if err != nil {
		return c.drop(h.Kind.String(), h.Action, err)
	}

	if out == outcomeNavigate {
		return c.navigate(ctx, h)
	}

	tok, err := c.bridge.take(h.Kind)
	if err != nil {
		return c.drop(h.Kind.String(), h.Action, err)
	}
	c.metrics.ObserveResponse(h.Kind.String(), out.String())
	if out == outcomeEndChat {
		return c.fireEndChat(ctx, tok)
	}
	return c.resume(ctx, tok, resumption{value: value})
}

// decodeAction maps (kind, action) to an outcome and, for resumes, reads the
// value the prompt call returns.
func decodeAction(h wire.ResponseHeader, r *wire.Reader) (outcome, any, error) {
	switch h.Kind {
	case wire.KindSay:
		switch h.Action {
		case actionEscape:
			return outcomeEndChat, nil, nil
		case actionPrev, actionNext:
			return outcomeNavigate, nil, nil
		}
	case wire.KindYesNo, wire.KindAccept:
		switch h.Action {
		case actionEscape:
			return outcomeEndChat, nil, nil
		case actionNo, actionYes:
			return outcomeResume, h.Action == actionYes, nil
		}
	case wire.KindAcceptNoEsc:
		switch h.Action {
		case actionNo, actionYes:
			return outcomeResume, h.Action == actionYes, nil
		}
	case wire.KindText, wire.KindQuiz, wire.KindQuestion:
		switch h.Action {
		case actionCancel:
			return outcomeEndChat, nil, nil
		case actionYes:
			s, err := r.ReadString()
			if err != nil {
				return 0, nil, malformed("%s answer: %v", h.Kind, err)
			}
			return outcomeResume, s, nil
		}
	case wire.KindNumber, wire.KindMenu:
		switch h.Action {
		case actionCancel:
			return outcomeEndChat, nil, nil
		case actionYes:
			v, err := r.ReadInt32()
			if err != nil {
				return 0, nil, malformed("%s answer: %v", h.Kind, err)
			}
			return outcomeResume, v, nil
		}
	case wire.KindAvatar:
		switch h.Action {
		case actionCancel:
			return outcomeEndChat, nil, nil
		case actionYes:
			v, err := r.ReadUint8()
			if err != nil {
				return 0, nil, malformed("%s answer: %v", h.Kind, err)
			}
			return outcomeResume, v, nil
		}
	default:
		return 0, nil, malformed("unknown kind %s", h.Kind)
	}
	return 0, nil, malformed("unexpected action %d for %s", h.Action, h.Kind)
}

// navigate moves through the say chain and re-sends the message under the
// cursor. Moving forward past the newest message resumes the script.
func (c *Conversation) navigate(ctx context.Context, h wire.ResponseHeader) error {
	kind, ok := c.bridge.peek()
	if !ok || kind != wire.KindSay {
		return c.drop(h.Kind.String(), h.Action, malformed("say navigation with no say pending"))
	}

	c.mu.Lock()
	var moved bool
	if h.Action == actionPrev {
		moved = c.history.GoBack()
	} else {
		moved = c.history.GoForward()
	}
	msg, hasNext, _ := c.history.Current()
	hasPrev := c.history.HasPrev()
	p := c.participant
	c.mu.Unlock()

	if !moved {
		if h.Action == actionPrev {
			return c.drop(h.Kind.String(), h.Action, malformed("previous at the first message"))
		}
		tok, err := c.bridge.take(wire.KindSay)
		if err != nil {
			return c.drop(h.Kind.String(), h.Action, err)
		}
		c.metrics.ObserveResponse(h.Kind.String(), outcomeResume.String())
		return c.resume(ctx, tok, resumption{})
	}

	c.metrics.ObserveResponse(h.Kind.String(), outcomeNavigate.String())
	if p == nil {
		return ErrConversationInterrupted
	}
	if h.Action == actionPrev {
		hasNext = true
	}
	frame, err := wire.EncodeSay(c.npcID, msg, hasPrev, hasNext)
	if err != nil {
		return err
	}
	return p.Send(frame)
}

// fireEndChat runs at most once per conversation. With an end-of-chat hook
// the parked body is unwound with ErrChatEnded and the hook runs next;
// otherwise, or on a second end-chat while the hook runs, it terminates.
func (c *Conversation) fireEndChat(ctx context.Context, tok *token) error {
	if c.terminated.Load() {
		return nil
	}
	if !c.endingChat.CompareAndSwap(false, true) {
		c.Terminate(ReasonEndChat)
		return nil
	}
	c.ClearBackButton()
	if _, ok := c.script.(EndChatHook); !ok {
		c.Terminate(ReasonEndChat)
		return nil
	}
	return c.resume(ctx, tok, resumption{err: ErrChatEnded})
}

func (c *Conversation) drop(kind string, action int8, err error) error {
	if !errors.Is(err, ErrMalformedResponse) {
		err = malformed("%v", err)
	}
	c.metrics.ObserveResponse(kind, "dropped")
	c.log.Info().
		Err(err).
		Str("kind", kind).
		Int8("action", action).
		Msg("dropping dialog response")
	return err
}
