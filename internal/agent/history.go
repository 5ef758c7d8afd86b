package agent

import (
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

type ConversationTurn struct {
	Role      Role
	Text      string
	Timestamp time.Time
}

// History keeps the most recent turns in insertion order, evicting the
// oldest first once Cap is reached.
type History struct {
	cap   int
	turns []ConversationTurn
}

func NewHistory(cap int) *History {
	if cap <= 0 {
		cap = 20
	}
	return &History{cap: cap}
}

func (h *History) Append(turns ...ConversationTurn) {
	h.turns = append(h.turns, turns...)
	if over := len(h.turns) - h.cap; over > 0 {
		h.turns = append(h.turns[:0:0], h.turns[over:]...)
	}
}

// Turns returns a copy of the stored turns, oldest first.
func (h *History) Turns() []ConversationTurn {
	return append([]ConversationTurn(nil), h.turns...)
}

func (h *History) Len() int { return len(h.turns) }

func (h *History) Cap() int { return h.cap }

func (h *History) Reset() { h.turns = nil }
