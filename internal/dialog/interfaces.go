package dialog

import (
	"context"

	"github.com/antoniostano/npctalk/internal/catalog"
)

// Appearance is the player's current look, read by the cosmetic queries.
type Appearance struct {
	Gender catalog.Gender
	Hair   int32
	Face   int32
	Skin   int8
}

// Participant is the player side of a conversation. The conversation holds
// it only until termination.
type Participant interface {
	PlayerName() string
	Appearance() Appearance
	// Send hands an encoded frame to the transport.
	Send(frame []byte) error
	// ConversationEnded clears the player's active-NPC reference. It is
	// called exactly once, by whoever terminates the conversation.
	ConversationEnded(c *Conversation)
}

// Script is the body of an NPC conversation. Run blocks on prompt calls and
// should return when a prompt fails with ErrConversationInterrupted.
type Script interface {
	Run(ctx context.Context, c *Conversation) error
}

// EndChatHook is implemented by scripts that want to react when the player
// closes the dialog. The hook may issue further prompts.
type EndChatHook interface {
	ChatEnded(ctx context.Context, c *Conversation) error
}

// ScriptFunc adapts a function to Script.
type ScriptFunc func(ctx context.Context, c *Conversation) error

func (f ScriptFunc) Run(ctx context.Context, c *Conversation) error { return f(ctx, c) }

type ShopLookup interface {
	ShopByNPC(ctx context.Context, npcID int32) (catalog.Shop, bool, error)
}

type StorageLookup interface {
	StorageByNPC(ctx context.Context, npcID int32) (catalog.StorageKeeper, bool, error)
}

type BeautyLookup interface {
	Faces(ctx context.Context, gender catalog.Gender) ([]int32, error)
	Hairs(ctx context.Context, gender catalog.Gender) ([]int32, error)
}

// Catalogs are the read-only lookups a conversation may consult.
type Catalogs struct {
	Shops   ShopLookup
	Storage StorageLookup
	Beauty  BeautyLookup
}

// Handoff moves a player whose conversation just ended into the shop or
// storage subsystem.
type Handoff interface {
	OpenShop(ctx context.Context, p Participant, shop catalog.Shop) error
	OpenStorage(ctx context.Context, p Participant, keeper catalog.StorageKeeper) error
}
