package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/antoniostano/npctalk/internal/catalog"
	"github.com/antoniostano/npctalk/internal/wire"
)

// Binary frames are `[op u16][payload]`, little-endian, one per websocket
// binary message.
const (
	// client to server
	OpNPCStartTalk uint16 = 0x36
	OpNPCTalkMore  uint16 = 0x38

	// server to client, besides wire.OpNPCTalk
	OpOpenNPCShop uint16 = 0xEE
	OpOpenStorage uint16 = 0xF0
)

var (
	ErrUnsupportedOp = errors.New("unsupported frame op")
	ErrShortFrame    = errors.New("frame too short")
)

// StartTalk asks to open a conversation with an NPC.
type StartTalk struct {
	NPCID int32
}

// TalkMore carries a dialog response, `[kind u8][action i8][payload]`.
type TalkMore struct {
	Response []byte
}

func ParseClientFrame(raw []byte) (any, error) {
	r := wire.NewReader(raw)
	op, err := r.ReadUint16()
	if err != nil {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortFrame, len(raw))
	}

	switch op {
	case OpNPCStartTalk:
		npcID, err := r.ReadInt32()
		if err != nil {
			return nil, fmt.Errorf("%w: start talk", ErrShortFrame)
		}
		return StartTalk{NPCID: npcID}, nil
	case OpNPCTalkMore:
		rest := r.Rest()
		if len(rest) < 2 {
			return nil, fmt.Errorf("%w: talk more", ErrShortFrame)
		}
		return TalkMore{Response: rest}, nil
	default:
		return nil, fmt.Errorf("%w: 0x%04X", ErrUnsupportedOp, op)
	}
}

func EncodeStartTalk(npcID int32) []byte {
	w := wire.NewWriter(6)
	w.WriteUint16(OpNPCStartTalk)
	w.WriteInt32(npcID)
	b, _ := w.Bytes()
	return b
}

func EncodeTalkMore(response []byte) []byte {
	b := make([]byte, 0, 2+len(response))
	b = append(b, byte(OpNPCTalkMore), byte(OpNPCTalkMore>>8))
	return append(b, response...)
}

// EncodeOpenShop lists a shop's items for the client shop window.
func EncodeOpenShop(shop catalog.Shop) ([]byte, error) {
	if len(shop.Items) > 0xFFFF {
		return nil, fmt.Errorf("shop %d has %d items", shop.NPCID, len(shop.Items))
	}
	w := wire.NewWriter(8 + 8*len(shop.Items))
	w.WriteUint16(OpOpenNPCShop)
	w.WriteInt32(shop.NPCID)
	w.WriteUint16(uint16(len(shop.Items)))
	for _, it := range shop.Items {
		w.WriteInt32(it.ItemID)
		w.WriteInt32(it.Price)
	}
	return w.Bytes()
}

func EncodeOpenStorage(keeper catalog.StorageKeeper) ([]byte, error) {
	w := wire.NewWriter(14)
	w.WriteUint16(OpOpenStorage)
	w.WriteInt32(keeper.NPCID)
	w.WriteInt32(keeper.DepositCost)
	w.WriteInt32(keeper.WithdrawCost)
	return w.Bytes()
}

// OpName labels a frame op for logs and metrics.
func OpName(op uint16) string {
	switch op {
	case OpNPCStartTalk:
		return "npc_start_talk"
	case OpNPCTalkMore:
		return "npc_talk_more"
	case wire.OpNPCTalk:
		return "npc_talk"
	case OpOpenNPCShop:
		return "open_npc_shop"
	case OpOpenStorage:
		return "open_storage"
	default:
		return fmt.Sprintf("op_0x%04x", op)
	}
}

// FrameOp reads the op of an encoded frame.
func FrameOp(frame []byte) (uint16, bool) {
	if len(frame) < 2 {
		return 0, false
	}
	return uint16(frame[0]) | uint16(frame[1])<<8, true
}

// MessageType identifies the JSON text messages sent next to binary frames.
type MessageType string

const (
	TypeSystemEvent MessageType = "system_event"
	TypeErrorEvent  MessageType = "error_event"
)

// System event codes.
const (
	CodeSessionReady        = "session_ready"
	CodeConversationStarted = "conversation_started"
	CodeConversationEnded   = "conversation_ended"
)

type SystemEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	NPCID     int32       `json:"npc_id,omitempty"`
	Detail    string      `json:"detail,omitempty"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Source    string      `json:"source"`
	Retryable bool        `json:"retryable"`
	Detail    string      `json:"detail"`
}

// ParseServerEvent decodes a JSON text message from the server.
func ParseServerEvent(raw []byte) (any, error) {
	var env struct {
		Type MessageType `json:"type"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}
	switch env.Type {
	case TypeSystemEvent:
		var msg SystemEvent
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeErrorEvent:
		var msg ErrorEvent
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	default:
		return nil, fmt.Errorf("unsupported message type %q", env.Type)
	}
}
