package dispatch

import "github.com/outfoxed-dev/mafia-server/internal/protocol"

// ChatRing is a bounded chat history with id dedupe. Oldest messages fall
// off when the cap is reached; duplicate ids are dropped so redelivered
// intents do not double up in replays.
type ChatRing struct {
	cap  int
	msgs []protocol.ChatMessage
	seen map[string]struct{}
}

// NewChatRing creates a ring holding at most capacity messages.
func NewChatRing(capacity int) *ChatRing {
	return &ChatRing{cap: capacity, seen: make(map[string]struct{})}
}

// Append adds a message. Returns false when the id was already recorded.
func (r *ChatRing) Append(m protocol.ChatMessage) bool {
	if _, dup := r.seen[m.ID]; dup {
		return false
	}
	r.seen[m.ID] = struct{}{}
	r.msgs = append(r.msgs, m)
	if len(r.msgs) > r.cap {
		delete(r.seen, r.msgs[0].ID)
		r.msgs = r.msgs[1:]
	}
	return true
}

// Snapshot returns the buffered messages oldest-first.
func (r *ChatRing) Snapshot() []protocol.ChatMessage {
	out := make([]protocol.ChatMessage, len(r.msgs))
	copy(out, r.msgs)
	return out
}

// Len is the buffered message count.
func (r *ChatRing) Len() int { return len(r.msgs) }
