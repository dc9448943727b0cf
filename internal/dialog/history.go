package dialog

// History is the chain of plain messages shown so far, navigable with the
// client's previous/next buttons. It only grows at the tail or is cleared.
type History struct {
	head   *historyNode
	tail   *historyNode
	cursor *historyNode
}

type historyNode struct {
	msg     string
	hasNext bool
	prev    *historyNode
	next    *historyNode
}

// Add appends msg at the tail and moves the cursor onto it.
func (h *History) Add(msg string, hasNext bool) {
	n := &historyNode{msg: msg, hasNext: hasNext, prev: h.tail}
	if h.tail == nil {
		h.head = n
	} else {
		h.tail.next = n
	}
	h.tail = n
	h.cursor = n
}

func (h *History) Clear() {
	h.head, h.tail, h.cursor = nil, nil, nil
}

// GoBack moves the cursor one message back. It reports false, leaving the
// cursor in place, when there is no previous message.
func (h *History) GoBack() bool {
	if !h.HasPrev() {
		return false
	}
	h.cursor = h.cursor.prev
	return true
}

func (h *History) GoForward() bool {
	if !h.HasNext() {
		return false
	}
	h.cursor = h.cursor.next
	return true
}

func (h *History) HasPrev() bool {
	return h.cursor != nil && h.cursor.prev != nil
}

func (h *History) HasNext() bool {
	return h.cursor != nil && h.cursor.next != nil
}

// HasPrevOrIsFirst reports whether any message of the chain is on screen,
// which is when the next say should offer a previous button.
func (h *History) HasPrevOrIsFirst() bool {
	return h.cursor != nil && (h.cursor == h.head || h.cursor.prev != nil)
}

// Current returns the message under the cursor and its has-next flag.
func (h *History) Current() (msg string, hasNext bool, ok bool) {
	if h.cursor == nil {
		return "", false, false
	}
	return h.cursor.msg, h.cursor.hasNext, true
}

// Len counts the cached messages.
func (h *History) Len() int {
	n := 0
	for node := h.head; node != nil; node = node.next {
		n++
	}
	return n
}
