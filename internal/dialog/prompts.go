package dialog

import (
	"context"

	"github.com/pkg/errors"

	"github.com/antoniostano/npctalk/internal/wire"
)

// Say shows msg with an OK button. It extends the message chain when one is
// on screen, otherwise it starts without a previous button.
func (c *Conversation) Say(msg string) error {
	if err := c.checkPrompt(); err != nil {
		return err
	}
	c.mu.Lock()
	hasPrev := c.history.HasPrevOrIsFirst()
	if hasPrev {
		c.history.Add(msg, false)
	} else {
		c.history.Clear()
	}
	c.mu.Unlock()

	frame, err := wire.EncodeSay(c.npcID, msg, hasPrev, false)
	_, err = c.prompt(wire.KindSay, frame, err)
	return err
}

// SayNext shows msg with a next button and chains it into history.
func (c *Conversation) SayNext(msg string) error {
	if err := c.checkPrompt(); err != nil {
		return err
	}
	c.mu.Lock()
	c.history.Add(msg, true)
	hasPrev := c.history.HasPrev()
	c.mu.Unlock()

	frame, err := wire.EncodeSay(c.npcID, msg, hasPrev, true)
	_, err = c.prompt(wire.KindSay, frame, err)
	return err
}

// beginPrompt checks the conversation is live and drops the message chain.
func (c *Conversation) beginPrompt() error {
	if err := c.checkPrompt(); err != nil {
		return err
	}
	c.ClearBackButton()
	return nil
}

func (c *Conversation) askBool(msg string, kind wire.PromptKind) (bool, error) {
	if err := c.beginPrompt(); err != nil {
		return false, err
	}
	frame, err := wire.EncodeSimple(c.npcID, msg, kind)
	v, err := c.prompt(kind, frame, err)
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func (c *Conversation) AskYesNo(msg string) (bool, error) {
	return c.askBool(msg, wire.KindYesNo)
}

func (c *Conversation) AskAccept(msg string) (bool, error) {
	return c.askBool(msg, wire.KindAccept)
}

// AskAcceptNoEsc is AskAccept without the close button.
func (c *Conversation) AskAcceptNoEsc(msg string) (bool, error) {
	return c.askBool(msg, wire.KindAcceptNoEsc)
}

func (c *Conversation) askString(kind wire.PromptKind, frame []byte, encErr error) (string, error) {
	v, err := c.prompt(kind, frame, encErr)
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Conversation) askInt(kind wire.PromptKind, frame []byte, encErr error) (int32, error) {
	v, err := c.prompt(kind, frame, encErr)
	if err != nil {
		return 0, err
	}
	return v.(int32), nil
}

func (c *Conversation) AskText(msg, def string, min, max int16) (string, error) {
	if err := c.beginPrompt(); err != nil {
		return "", err
	}
	frame, err := wire.EncodeAskText(c.npcID, msg, def, min, max)
	return c.askString(wire.KindText, frame, err)
}

func (c *Conversation) AskNumber(msg string, def, min, max int32) (int32, error) {
	if err := c.beginPrompt(); err != nil {
		return 0, err
	}
	frame, err := wire.EncodeAskNumber(c.npcID, msg, def, min, max)
	return c.askInt(wire.KindNumber, frame, err)
}

// AskMenu shows a selection list (options are inline markup in msg) and
// returns the selected entry id.
func (c *Conversation) AskMenu(msg string) (int32, error) {
	if err := c.beginPrompt(); err != nil {
		return 0, err
	}
	frame, err := wire.EncodeSimple(c.npcID, msg, wire.KindMenu)
	return c.askInt(wire.KindMenu, frame, err)
}

// AskQuiz shows the quiz dialog and returns the player's answer.
func (c *Conversation) AskQuiz(subject wire.QuizSubject, objectID, correct, questions, timeLimit int32) (string, error) {
	if err := c.beginPrompt(); err != nil {
		return "", err
	}
	frame, err := wire.EncodeQuiz(c.npcID, subject, objectID, correct, questions, timeLimit)
	return c.askString(wire.KindQuiz, frame, err)
}

func (c *Conversation) AskQuizQuestion(title, problem, hint string, min, max, timeLimit int32) (string, error) {
	if err := c.beginPrompt(); err != nil {
		return "", err
	}
	frame, err := wire.EncodeQuizQuestion(c.npcID, title, problem, hint, min, max, timeLimit)
	return c.askString(wire.KindQuestion, frame, err)
}

// AskAvatar offers a style picker and returns the index of the selection.
func (c *Conversation) AskAvatar(msg string, styles ...int32) (byte, error) {
	if err := c.beginPrompt(); err != nil {
		return 0, err
	}
	frame, err := wire.EncodeAskAvatar(c.npcID, msg, styles)
	v, err := c.prompt(wire.KindAvatar, frame, err)
	if err != nil {
		return 0, err
	}
	return v.(byte), nil
}

// SendShop ends the conversation and opens the shop of npcID. It reports
// false, leaving the conversation running, when npcID has no shop.
func (c *Conversation) SendShop(ctx context.Context, npcID int32) (bool, error) {
	if err := c.checkPrompt(); err != nil {
		return false, err
	}
	if c.catalogs.Shops == nil {
		return false, nil
	}
	shop, ok, err := c.catalogs.Shops.ShopByNPC(ctx, npcID)
	if err != nil {
		return false, errors.Wrapf(err, "look up shop %d", npcID)
	}
	if !ok {
		return false, nil
	}
	p := c.peer()
	if p == nil || !c.Terminate(ReasonHandoff) {
		return false, ErrConversationInterrupted
	}
	if c.handoff != nil {
		if err := c.handoff.OpenShop(ctx, p, shop); err != nil {
			return false, errors.Wrap(err, "open shop")
		}
	}
	return true, nil
}

// SendStorage ends the conversation and opens the player's storage through
// the keeper npcID.
func (c *Conversation) SendStorage(ctx context.Context, npcID int32) (bool, error) {
	if err := c.checkPrompt(); err != nil {
		return false, err
	}
	if c.catalogs.Storage == nil {
		return false, nil
	}
	keeper, ok, err := c.catalogs.Storage.StorageByNPC(ctx, npcID)
	if err != nil {
		return false, errors.Wrapf(err, "look up storage keeper %d", npcID)
	}
	if !ok {
		return false, nil
	}
	p := c.peer()
	if p == nil || !c.Terminate(ReasonHandoff) {
		return false, ErrConversationInterrupted
	}
	if c.handoff != nil {
		if err := c.handoff.OpenStorage(ctx, p, keeper); err != nil {
			return false, errors.Wrap(err, "open storage")
		}
	}
	return true, nil
}
