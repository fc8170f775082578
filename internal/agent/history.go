package agent

import (
	"github.com/xkilldash9x/flight-agent-cli/api/schemas"
)

// History is an append-only conversation log owned by one loop.
type History struct {
	messages []schemas.Message
}

// NewHistory starts a log from a copy of msgs.
func NewHistory(msgs ...schemas.Message) *History {
	h := &History{}
	h.Append(msgs...)
	return h
}

// Append adds messages to the end of the log.
func (h *History) Append(msgs ...schemas.Message) {
	h.messages = append(h.messages, cloneMessages(msgs)...)
}

// Messages returns a copy of the log in order.
func (h *History) Messages() []schemas.Message {
	return cloneMessages(h.messages)
}

// Len returns the number of messages held.
func (h *History) Len() int { return len(h.messages) }

func cloneMessages(msgs []schemas.Message) []schemas.Message {
	if len(msgs) == 0 {
		return nil
	}
	out := make([]schemas.Message, len(msgs))
	for i, m := range msgs {
		out[i] = m
		if m.ToolCalls != nil {
			out[i].ToolCalls = append([]schemas.ToolCall(nil), m.ToolCalls...)
		}
		if m.ToolResults != nil {
			out[i].ToolResults = append([]schemas.ToolResult(nil), m.ToolResults...)
		}
	}
	return out
}
