package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antoniostano/npctalk/internal/catalog"
)

func TestParseStartTalk(t *testing.T) {
	msg, err := ParseClientFrame(EncodeStartTalk(9010000))
	require.NoError(t, err)
	assert.Equal(t, StartTalk{NPCID: 9010000}, msg)

	_, err = ParseClientFrame([]byte{0x36, 0x00, 1, 2})
	assert.ErrorIs(t, err, ErrShortFrame)
}

func TestParseTalkMore(t *testing.T) {
	msg, err := ParseClientFrame(EncodeTalkMore([]byte{0x03, 0x01, 42, 0, 0, 0}))
	require.NoError(t, err)
	assert.Equal(t, TalkMore{Response: []byte{0x03, 0x01, 42, 0, 0, 0}}, msg)

	_, err = ParseClientFrame([]byte{0x38, 0x00, 0x01})
	assert.ErrorIs(t, err, ErrShortFrame)
}

func TestParseRejectsUnknownAndShortFrames(t *testing.T) {
	_, err := ParseClientFrame([]byte{0x01})
	assert.ErrorIs(t, err, ErrShortFrame)

	_, err = ParseClientFrame([]byte{0xFF, 0x00, 0, 0})
	assert.ErrorIs(t, err, ErrUnsupportedOp)
}

func TestEncodeOpenShop(t *testing.T) {
	got, err := EncodeOpenShop(catalog.Shop{NPCID: 1, Items: []catalog.ShopItem{{ItemID: 2000000, Price: 50}}})
	require.NoError(t, err)
	assert.Equal(t, []byte{
		0xEE, 0x00,
		1, 0, 0, 0,
		1, 0,
		0x80, 0x84, 0x1E, 0x00,
		50, 0, 0, 0,
	}, got)

	op, ok := FrameOp(got)
	require.True(t, ok)
	assert.Equal(t, OpOpenNPCShop, op)
	assert.Equal(t, "open_npc_shop", OpName(op))
	assert.Equal(t, "op_0x1234", OpName(0x1234))
}

func TestEncodeOpenStorage(t *testing.T) {
	got, err := EncodeOpenStorage(catalog.StorageKeeper{NPCID: 2, DepositCost: 100, WithdrawCost: 50})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xF0, 0x00, 2, 0, 0, 0, 100, 0, 0, 0, 50, 0, 0, 0}, got)
}

func TestParseServerEvent(t *testing.T) {
	msg, err := ParseServerEvent([]byte(`{"type":"system_event","session_id":"s1","code":"conversation_ended","detail":"completed"}`))
	require.NoError(t, err)
	ev, ok := msg.(SystemEvent)
	require.True(t, ok)
	assert.Equal(t, CodeConversationEnded, ev.Code)
	assert.Equal(t, "completed", ev.Detail)

	_, err = ParseServerEvent([]byte(`{"type":"nope"}`))
	assert.Error(t, err)
	_, err = ParseServerEvent([]byte(`not json`))
	assert.Error(t, err)
}
