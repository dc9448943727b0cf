package npc

import (
	"context"

	"github.com/antoniostano/npctalk/internal/catalog"
	"github.com/antoniostano/npctalk/internal/dialog"
	"github.com/antoniostano/npctalk/internal/protocol"
	"github.com/antoniostano/npctalk/internal/session"
)

// player is the connection side of a conversation.
type player struct {
	o         *Orchestrator
	sessionID string
	playerID  string
	name      string
	look      dialog.Appearance
	outbound  chan<- any
}

func newPlayer(o *Orchestrator, s *session.Session, outbound chan<- any) *player {
	return &player{
		o:         o,
		sessionID: s.ID,
		playerID:  s.PlayerID,
		name:      s.PlayerName,
		look: dialog.Appearance{
			Gender: s.Gender,
			Hair:   s.Hair,
			Face:   s.Face,
			Skin:   s.Skin,
		},
		outbound: outbound,
	}
}

func (p *player) PlayerName() string { return p.name }

func (p *player) Appearance() dialog.Appearance { return p.look }

func (p *player) Send(frame []byte) error { return p.o.send(p.outbound, frame) }

func (p *player) ConversationEnded(c *dialog.Conversation) { p.o.finish(p, c) }

// handoff writes the shop and storage window frames to the player.
type handoff struct{}

func (handoff) OpenShop(_ context.Context, p dialog.Participant, shop catalog.Shop) error {
	frame, err := protocol.EncodeOpenShop(shop)
	if err != nil {
		return err
	}
	return p.Send(frame)
}

func (handoff) OpenStorage(_ context.Context, p dialog.Participant, keeper catalog.StorageKeeper) error {
	frame, err := protocol.EncodeOpenStorage(keeper)
	if err != nil {
		return err
	}
	return p.Send(frame)
}
