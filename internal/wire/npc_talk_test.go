package wire

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envelope(npcID int32, kind PromptKind, msg string) []byte {
	b := []byte{0xED, 0x00, 0x04}
	b = append(b, byte(npcID), byte(npcID>>8), byte(npcID>>16), byte(npcID>>24))
	b = append(b, byte(kind), byte(len(msg)), byte(len(msg)>>8))
	return append(b, msg...)
}

func TestEncodeSimpleLayout(t *testing.T) {
	got, err := EncodeSimple(9010000, "Continue?", KindYesNo)
	require.NoError(t, err)
	assert.Equal(t, envelope(9010000, KindYesNo, "Continue?"), got)
}

func TestEncodeSimpleRejectsDedicatedKinds(t *testing.T) {
	for _, kind := range []PromptKind{KindSay, KindText, KindNumber, KindQuiz, KindQuestion, KindAvatar} {
		_, err := EncodeSimple(1, "x", kind)
		assert.ErrorIs(t, err, ErrKindNotSimple, kind.String())
	}
}

func TestEncodeSayFlags(t *testing.T) {
	got, err := EncodeSay(2000, "Hello", true, false)
	require.NoError(t, err)
	want := append(envelope(2000, KindSay, "Hello"), 1, 0)
	assert.Equal(t, want, got)
}

func TestEncodeAskText(t *testing.T) {
	got, err := EncodeAskText(7, "Name?", "Bob", 4, 12)
	require.NoError(t, err)
	want := envelope(7, KindText, "Name?")
	want = append(want, 3, 0, 'B', 'o', 'b', 4, 0, 12, 0)
	assert.Equal(t, want, got)
}

func TestEncodeAskNumberKeepsReservedZero(t *testing.T) {
	got, err := EncodeAskNumber(9010000, "Enter amount", 0, 1, 100)
	require.NoError(t, err)
	want := envelope(9010000, KindNumber, "Enter amount")
	want = append(want,
		0, 0, 0, 0,
		1, 0, 0, 0,
		100, 0, 0, 0,
		0, 0, 0, 0,
	)
	assert.Equal(t, want, got)
}

func TestEncodeQuizFixedSize(t *testing.T) {
	got, err := EncodeQuiz(1, SubjectItem, 4000000, 3, 5, 60)
	require.NoError(t, err)
	require.Len(t, got, 29)
	assert.Equal(t, []byte{0xED, 0x00, 0x04, 1, 0, 0, 0, byte(KindQuiz), 0}, got[:9])

	r := NewReader(got[9:])
	for _, want := range []int32{2, 4000000, 3, 5, 60} {
		v, err := r.ReadInt32()
		require.NoError(t, err)
		assert.Equal(t, want, v)
	}
	assert.Zero(t, r.Remaining())
}

func TestEncodeQuizRejectsUnknownSubject(t *testing.T) {
	_, err := EncodeQuiz(1, QuizSubject(3), 0, 0, 0, 0)
	assert.ErrorIs(t, err, ErrInvalidSubject)
}

func TestEncodeQuizQuestion(t *testing.T) {
	got, err := EncodeQuizQuestion(5, "Quiz", "2+2?", "even", 1, 2, 30)
	require.NoError(t, err)
	assert.Equal(t, byte(KindQuestion), got[7])
	assert.Equal(t, byte(0), got[8])

	r := NewReader(got[9:])
	for _, want := range []string{"Quiz", "2+2?", "even"} {
		s, err := r.ReadString()
		require.NoError(t, err)
		assert.Equal(t, want, s)
	}
	for _, want := range []int32{1, 2, 30} {
		v, err := r.ReadInt32()
		require.NoError(t, err)
		assert.Equal(t, want, v)
	}
	assert.Zero(t, r.Remaining())
}

func TestEncodeAskAvatar(t *testing.T) {
	got, err := EncodeAskAvatar(9, "Pick", []int32{30000, 30010})
	require.NoError(t, err)
	want := envelope(9, KindAvatar, "Pick")
	want = append(want, 2, 0x30, 0x75, 0, 0, 0x3A, 0x75, 0, 0)
	assert.Equal(t, want, got)

	_, err = EncodeAskAvatar(9, "Pick", make([]int32, 256))
	assert.ErrorIs(t, err, ErrTooManyStyles)
}

func TestEncodeRejectsOversizedString(t *testing.T) {
	_, err := EncodeSay(1, strings.Repeat("a", 70000), false, false)
	assert.ErrorIs(t, err, ErrStringTooLong)
}

func TestDecodeHeader(t *testing.T) {
	h, r, err := DecodeHeader([]byte{byte(KindNumber), 1, 42, 0, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, ResponseHeader{Kind: KindNumber, Action: 1}, h)
	v, err := r.ReadInt32()
	require.NoError(t, err)
	assert.Equal(t, int32(42), v)

	h, _, err = DecodeHeader([]byte{byte(KindSay), 0xFF})
	require.NoError(t, err)
	assert.Equal(t, int8(-1), h.Action)
}

func TestDecodeHeaderTruncated(t *testing.T) {
	_, _, err := DecodeHeader([]byte{byte(KindSay)})
	assert.ErrorIs(t, err, ErrMalformed)

	_, r, err := DecodeHeader([]byte{byte(KindText), 1, 5, 0, 'a'})
	require.NoError(t, err)
	_, err = r.ReadString()
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestPromptKindString(t *testing.T) {
	assert.Equal(t, "accept_no_esc", KindAcceptNoEsc.String())
	assert.Equal(t, "unknown_0x09", PromptKind(9).String())
	assert.False(t, PromptKind(9).Known())
	assert.True(t, KindAvatar.Known())
}
