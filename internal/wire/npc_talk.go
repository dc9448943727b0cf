package wire

import (
	"errors"
	"fmt"
	"math"
)

// PromptKind is the dialog-box type byte shared by outbound prompts and
// inbound responses.
type PromptKind uint8

const (
	KindSay         PromptKind = 0x00
	KindYesNo       PromptKind = 0x01
	KindText        PromptKind = 0x02
	KindNumber      PromptKind = 0x03
	KindMenu        PromptKind = 0x04
	KindQuestion    PromptKind = 0x05
	KindQuiz        PromptKind = 0x06
	KindAvatar      PromptKind = 0x07
	KindAccept      PromptKind = 0x0C
	KindAcceptNoEsc PromptKind = 0x0D
)

func (k PromptKind) String() string {
	switch k {
	case KindSay:
		return "say"
	case KindYesNo:
		return "yes_no"
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindMenu:
		return "menu"
	case KindQuestion:
		return "question"
	case KindQuiz:
		return "quiz"
	case KindAvatar:
		return "avatar"
	case KindAccept:
		return "accept"
	case KindAcceptNoEsc:
		return "accept_no_esc"
	default:
		return fmt.Sprintf("unknown_0x%02x", uint8(k))
	}
}

// Known reports whether k is one of the enumerated prompt kinds.
func (k PromptKind) Known() bool {
	switch k {
	case KindSay, KindYesNo, KindText, KindNumber, KindMenu, KindQuestion,
		KindQuiz, KindAvatar, KindAccept, KindAcceptNoEsc:
		return true
	default:
		return false
	}
}

// QuizSubject selects what the quiz dialog is about.
type QuizSubject int32

const (
	SubjectNPC  QuizSubject = 0
	SubjectMob  QuizSubject = 1
	SubjectItem QuizSubject = 2
)

func (s QuizSubject) Valid() bool {
	return s == SubjectNPC || s == SubjectMob || s == SubjectItem
}

const (
	// OpNPCTalk is the outbound operation tag of every NPC dialog frame.
	OpNPCTalk uint16 = 0xED
	// ConversationFrame marks a frame as a continuation of a running
	// conversation.
	ConversationFrame uint8 = 4

	// envelopeSize is op + discriminator + npc id + kind + string length.
	envelopeSize    = 2 + 1 + 4 + 1 + 2
	maxAvatarStyles = math.MaxUint8
)

var (
	ErrKindNotSimple  = errors.New("prompt kind has a dedicated encoder")
	ErrInvalidSubject = errors.New("invalid quiz subject")
	ErrTooManyStyles  = errors.New("avatar style list exceeds 255 entries")
)

func writeEnvelope(w *Writer, npcID int32, kind PromptKind, msg string) {
	w.WriteUint16(OpNPCTalk)
	w.WriteUint8(ConversationFrame)
	w.WriteInt32(npcID)
	w.WriteUint8(uint8(kind))
	w.WriteString(msg)
}

// EncodeSimple encodes prompts that carry only a message: yes/no, accept,
// accept-without-escape and menu.
func EncodeSimple(npcID int32, msg string, kind PromptKind) ([]byte, error) {
	switch kind {
	case KindYesNo, KindAccept, KindAcceptNoEsc, KindMenu:
	default:
		return nil, fmt.Errorf("%w: %s", ErrKindNotSimple, kind)
	}
	w := NewWriter(envelopeSize + len(msg))
	writeEnvelope(w, npcID, kind, msg)
	return w.Bytes()
}

func EncodeSay(npcID int32, msg string, hasPrev, hasNext bool) ([]byte, error) {
	w := NewWriter(envelopeSize + 2 + len(msg))
	writeEnvelope(w, npcID, KindSay, msg)
	w.WriteBool(hasPrev)
	w.WriteBool(hasNext)
	return w.Bytes()
}

func EncodeAskText(npcID int32, msg, def string, min, max int16) ([]byte, error) {
	w := NewWriter(envelopeSize + 2 + len(def) + 4 + len(msg))
	writeEnvelope(w, npcID, KindText, msg)
	w.WriteString(def)
	w.WriteInt16(min)
	w.WriteInt16(max)
	return w.Bytes()
}

func EncodeAskNumber(npcID int32, msg string, def, min, max int32) ([]byte, error) {
	w := NewWriter(envelopeSize + 16 + len(msg))
	writeEnvelope(w, npcID, KindNumber, msg)
	w.WriteInt32(def)
	w.WriteInt32(min)
	w.WriteInt32(max)
	// reserved, always zero
	w.WriteInt32(0)
	return w.Bytes()
}

// EncodeQuiz encodes the fixed-size quiz dialog. It carries no message body.
func EncodeQuiz(npcID int32, subject QuizSubject, objectID, correct, questions, timeLimit int32) ([]byte, error) {
	if !subject.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSubject, subject)
	}
	w := NewWriter(29)
	w.WriteUint16(OpNPCTalk)
	w.WriteUint8(ConversationFrame)
	w.WriteInt32(npcID)
	w.WriteUint8(uint8(KindQuiz))
	w.WriteBool(false)
	w.WriteInt32(int32(subject))
	w.WriteInt32(objectID)
	w.WriteInt32(correct)
	w.WriteInt32(questions)
	w.WriteInt32(timeLimit)
	return w.Bytes()
}

func EncodeQuizQuestion(npcID int32, title, problem, hint string, min, max, timeLimit int32) ([]byte, error) {
	w := NewWriter(27 + len(title) + len(problem) + len(hint))
	w.WriteUint16(OpNPCTalk)
	w.WriteUint8(ConversationFrame)
	w.WriteInt32(npcID)
	w.WriteUint8(uint8(KindQuestion))
	w.WriteBool(false)
	w.WriteString(title)
	w.WriteString(problem)
	w.WriteString(hint)
	w.WriteInt32(min)
	w.WriteInt32(max)
	w.WriteInt32(timeLimit)
	return w.Bytes()
}

func EncodeAskAvatar(npcID int32, msg string, styles []int32) ([]byte, error) {
	if len(styles) > maxAvatarStyles {
		return nil, fmt.Errorf("%w: %d", ErrTooManyStyles, len(styles))
	}
	w := NewWriter(envelopeSize + 1 + 4*len(styles) + len(msg))
	writeEnvelope(w, npcID, KindAvatar, msg)
	w.WriteUint8(uint8(len(styles)))
	for _, s := range styles {
		w.WriteInt32(s)
	}
	return w.Bytes()
}

// ResponseHeader is the leading pair of every dialog response.
type ResponseHeader struct {
	Kind   PromptKind
	Action int8
}

// DecodeHeader reads the kind and action bytes and returns a reader
// positioned at the kind-specific payload.
func DecodeHeader(b []byte) (ResponseHeader, *Reader, error) {
	r := NewReader(b)
	kind, err := r.ReadUint8()
	if err != nil {
		return ResponseHeader{}, nil, err
	}
	action, err := r.ReadInt8()
	if err != nil {
		return ResponseHeader{}, nil, err
	}
	return ResponseHeader{Kind: PromptKind(kind), Action: action}, r, nil
}
