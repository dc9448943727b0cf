package npc

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antoniostano/npctalk/internal/catalog"
	"github.com/antoniostano/npctalk/internal/dialog"
	"github.com/antoniostano/npctalk/internal/events"
	"github.com/antoniostano/npctalk/internal/protocol"
	"github.com/antoniostano/npctalk/internal/script"
	"github.com/antoniostano/npctalk/internal/session"
	"github.com/antoniostano/npctalk/internal/wire"
)

type scripts map[int32]dialog.Script

func (s scripts) Script(npcID int32) (dialog.Script, error) {
	sc, ok := s[npcID]
	if !ok {
		return nil, script.ErrNoScript
	}
	return sc, nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingSink) Publish(_ context.Context, evt events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *recordingSink) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type+":"+e.Reason)
	}
	return out
}

var potionScript = dialog.ScriptFunc(func(_ context.Context, c *dialog.Conversation) error {
	if err := c.SayNext("Hello " + c.PlayerName()); err != nil {
		return err
	}
	yes, err := c.AskYesNo("Potion?")
	if err != nil {
		return err
	}
	if yes {
		return c.Say("Here you go.")
	}
	return nil
})

var shopScript = dialog.ScriptFunc(func(ctx context.Context, c *dialog.Conversation) error {
	_, err := c.SendShop(ctx, c.NPCID())
	return err
})

type harness struct {
	t        *testing.T
	o        *Orchestrator
	sessions *session.Manager
	sink     *recordingSink
	sess     *session.Session
	inbound  chan any
	outbound chan any
	done     chan error
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	sessions := session.NewManager(time.Minute)
	sess, err := sessions.Create(session.CreateRequest{PlayerID: "p1", PlayerName: "Ayla"})
	require.NoError(t, err)

	store := catalog.NewInMemoryStore(catalog.Data{
		Shops: []catalog.Shop{{NPCID: 300, Items: []catalog.ShopItem{{ItemID: 2000000, Price: 50}}}},
	})
	sink := &recordingSink{}
	o := NewOrchestrator(Config{
		Sessions: sessions,
		Scripts:  scripts{100: potionScript, 300: shopScript},
		Catalogs: dialog.Catalogs{Shops: store},
		Events:   sink,
	})

	h := &harness{
		t:        t,
		o:        o,
		sessions: sessions,
		sink:     sink,
		sess:     sess,
		inbound:  make(chan any, 8),
		outbound: make(chan any, 32),
		done:     make(chan error, 1),
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { h.done <- o.RunConnection(ctx, sess, h.inbound, h.outbound) }()
	h.expectEvent(protocol.CodeSessionReady)
	return h
}

func (h *harness) next() any {
	h.t.Helper()
	select {
	case msg := <-h.outbound:
		return msg
	case <-time.After(2 * time.Second):
		h.t.Fatal("no outbound message")
		return nil
	}
}

func (h *harness) expectEvent(code string) protocol.SystemEvent {
	h.t.Helper()
	ev, ok := h.next().(protocol.SystemEvent)
	require.True(h.t, ok)
	require.Equal(h.t, code, ev.Code)
	return ev
}

func (h *harness) expectError(code string) {
	h.t.Helper()
	ev, ok := h.next().(protocol.ErrorEvent)
	require.True(h.t, ok)
	assert.Equal(h.t, code, ev.Code)
}

func (h *harness) expectPrompt(kind wire.PromptKind) []byte {
	h.t.Helper()
	frame, ok := h.next().([]byte)
	require.True(h.t, ok)
	require.Greater(h.t, len(frame), 7)
	assert.Equal(h.t, byte(kind), frame[7])
	return frame
}

func TestConversationOverConnection(t *testing.T) {
	h := newHarness(t)

	h.inbound <- protocol.StartTalk{NPCID: 100}
	started := h.expectEvent(protocol.CodeConversationStarted)
	assert.Equal(t, int32(100), started.NPCID)
	h.expectPrompt(wire.KindSay)

	sess, err := h.sessions.Get(h.sess.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(100), sess.ActiveNPC)
	require.Len(t, h.o.Active(), 1)
	assert.Equal(t, "say", h.o.Active()[0].Awaiting)

	h.inbound <- protocol.TalkMore{Response: []byte{byte(wire.KindSay), 1}}
	h.expectPrompt(wire.KindYesNo)
	h.inbound <- protocol.TalkMore{Response: []byte{byte(wire.KindYesNo), 1}}
	h.expectPrompt(wire.KindSay)
	h.inbound <- protocol.TalkMore{Response: []byte{byte(wire.KindSay), 1}}

	ended := h.expectEvent(protocol.CodeConversationEnded)
	assert.Equal(t, dialog.ReasonCompleted, ended.Detail)
	assert.Empty(t, h.o.Active())

	sess, err = h.sessions.Get(h.sess.ID)
	require.NoError(t, err)
	assert.Zero(t, sess.ActiveNPC)
	assert.Equal(t, 1, sess.ConversationCount)
	assert.Equal(t, []string{"started:", "ended:completed"}, h.sink.types())
}

func TestDisconnectTerminatesConversation(t *testing.T) {
	h := newHarness(t)
	h.inbound <- protocol.StartTalk{NPCID: 100}
	h.expectEvent(protocol.CodeConversationStarted)
	h.expectPrompt(wire.KindSay)
	conv, ok := h.o.Conversation("p1")
	require.True(t, ok)

	close(h.inbound)
	require.NoError(t, <-h.done)
	assert.True(t, conv.Terminated())
	assert.Equal(t, dialog.ReasonDisconnect, conv.EndReason())
	assert.Empty(t, h.o.Active())
}

func TestStartErrors(t *testing.T) {
	h := newHarness(t)

	h.inbound <- protocol.StartTalk{NPCID: 999}
	h.expectError("no_script")

	h.inbound <- protocol.StartTalk{NPCID: 100}
	h.expectEvent(protocol.CodeConversationStarted)
	h.expectPrompt(wire.KindSay)
	h.inbound <- protocol.StartTalk{NPCID: 100}
	h.expectError("conversation_active")
}

func TestMalformedResponseIsReported(t *testing.T) {
	h := newHarness(t)
	h.inbound <- protocol.StartTalk{NPCID: 100}
	h.expectEvent(protocol.CodeConversationStarted)
	h.expectPrompt(wire.KindSay)

	h.inbound <- protocol.TalkMore{Response: []byte{byte(wire.KindYesNo), 1}}
	h.expectError("malformed_response")

	conv, ok := h.o.Conversation("p1")
	require.True(t, ok)
	assert.False(t, conv.Terminated())
}

func TestShopHandoffFrame(t *testing.T) {
	h := newHarness(t)
	h.inbound <- protocol.StartTalk{NPCID: 300}
	h.expectEvent(protocol.CodeConversationStarted)

	ended := h.expectEvent(protocol.CodeConversationEnded)
	assert.Equal(t, dialog.ReasonHandoff, ended.Detail)

	frame, ok := h.next().([]byte)
	require.True(t, ok)
	op, ok := protocol.FrameOp(frame)
	require.True(t, ok)
	assert.Equal(t, protocol.OpOpenNPCShop, op)
}

func TestForcedTermination(t *testing.T) {
	h := newHarness(t)
	h.inbound <- protocol.StartTalk{NPCID: 100}
	h.expectEvent(protocol.CodeConversationStarted)
	h.expectPrompt(wire.KindSay)

	assert.True(t, h.o.Terminate("p1", "map_change"))
	assert.False(t, h.o.Terminate("p1", "map_change"))
	ended := h.expectEvent(protocol.CodeConversationEnded)
	assert.Equal(t, "map_change", ended.Detail)
	assert.Equal(t, []string{"started:", "ended:map_change"}, h.sink.types())

	h.inbound <- protocol.TalkMore{Response: []byte{byte(wire.KindSay), 1}}
	h.inbound <- protocol.StartTalk{NPCID: 100}
	h.expectEvent(protocol.CodeConversationStarted)
}

func TestSessionExpiryEndsConversation(t *testing.T) {
	h := newHarness(t)
	h.inbound <- protocol.StartTalk{NPCID: 100}
	h.expectEvent(protocol.CodeConversationStarted)
	h.expectPrompt(wire.KindSay)

	h.o.SessionExpired(h.sess)
	ended := h.expectEvent(protocol.CodeConversationEnded)
	assert.Equal(t, dialog.ReasonExpired, ended.Detail)
}

func TestShippedScriptOpensShop(t *testing.T) {
	root := filepath.Join("..", "..")
	data, err := catalog.LoadFile(filepath.Join(root, "data", "catalog.yaml"))
	require.NoError(t, err)
	store := catalog.NewInMemoryStore(data)

	sessions := session.NewManager(time.Minute)
	sess, err := sessions.Create(session.CreateRequest{PlayerID: "p9", PlayerName: "Ayla"})
	require.NoError(t, err)
	o := NewOrchestrator(Config{
		Sessions: sessions,
		Scripts:  script.NewLoader(filepath.Join(root, "scripts")),
		Catalogs: dialog.Catalogs{Shops: store, Storage: store, Beauty: store},
	})

	h := &harness{t: t, o: o, sessions: sessions, sess: sess, inbound: make(chan any, 8), outbound: make(chan any, 32), done: make(chan error, 1)}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { h.done <- o.RunConnection(ctx, sess, h.inbound, h.outbound) }()
	h.expectEvent(protocol.CodeSessionReady)

	h.inbound <- protocol.StartTalk{NPCID: 9010000}
	h.expectEvent(protocol.CodeConversationStarted)
	h.expectPrompt(wire.KindSay)
	h.inbound <- protocol.TalkMore{Response: []byte{byte(wire.KindSay), 1}}
	h.expectPrompt(wire.KindSay)
	h.inbound <- protocol.TalkMore{Response: []byte{byte(wire.KindSay), 1}}
	h.expectPrompt(wire.KindMenu)
	h.inbound <- protocol.TalkMore{Response: []byte{byte(wire.KindMenu), 1, 0, 0, 0, 0}}

	ended := h.expectEvent(protocol.CodeConversationEnded)
	assert.Equal(t, dialog.ReasonHandoff, ended.Detail)
	frame, ok := h.next().([]byte)
	require.True(t, ok)
	op, _ := protocol.FrameOp(frame)
	assert.Equal(t, protocol.OpOpenNPCShop, op)
}
