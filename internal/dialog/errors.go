package dialog

import (
	"errors"
	"fmt"
)

var (
	// ErrConversationInterrupted is returned to prompt calls once the
	// conversation has terminated. Scripts unwind on it; it is not a bug.
	ErrConversationInterrupted = errors.New("conversation interrupted")

	// ErrChatEnded unwinds the script body when the player closes the dialog
	// and the script has an end-of-chat hook to run instead.
	ErrChatEnded = fmt.Errorf("%w: chat ended by player", ErrConversationInterrupted)

	// ErrMalformedResponse marks a response packet that was dropped.
	ErrMalformedResponse = errors.New("malformed dialog response")

	errSuspensionPending = errors.New("a prompt is already awaiting a response")
	errAlreadyStarted    = errors.New("conversation already started")
)

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedResponse, fmt.Sprintf(format, args...))
}
