package core

import (
	"strings"
	"unicode/utf8"

	"github.com/Conversly/whatsapp-faq-bot/internal/llm"
	"github.com/Conversly/whatsapp-faq-bot/internal/types"
)

// Prompt is the bounded input for one model call. Size is counted in runes
// of message content; the system instruction and the current message are
// always present.
type Prompt struct {
	SystemInstruction string
	History           []types.ConversationMessage
	Current           string
	Chars             int
	Dropped           int
}

// exchangeChars is the prompt cost of one stored exchange.
func exchangeChars(m types.ConversationMessage) int {
	return utf8.RuneCountInString(m.MessageText) + utf8.RuneCountInString(m.ResponseText)
}

// BuildPrompt keeps the longest suffix of history that fits into budget
// together with the system instruction and the current message. History is
// expected oldest first and is trimmed from the front, one exchange at a time.
func BuildPrompt(systemInstruction string, history []types.ConversationMessage, current string, budget int) Prompt {
	fixed := utf8.RuneCountInString(systemInstruction) + utf8.RuneCountInString(current)

	used := fixed
	start := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		cost := exchangeChars(history[i])
		if used+cost > budget {
			break
		}
		used += cost
		start = i
	}

	kept := history[start:]
	return Prompt{
		SystemInstruction: systemInstruction,
		History:           kept,
		Current:           current,
		Chars:             used,
		Dropped:           start,
	}
}

// Messages flattens the kept history into alternating turns and appends the
// current message.
func (p Prompt) Messages() []llm.Message {
	out := make([]llm.Message, 0, 2*len(p.History)+1)
	for _, m := range p.History {
		if m.Sender == types.SenderAssistant {
			if strings.TrimSpace(m.MessageText) != "" {
				out = append(out, llm.Message{Role: llm.RoleAssistant, Content: m.MessageText})
			}
			continue
		}
		if strings.TrimSpace(m.MessageText) != "" {
			out = append(out, llm.Message{Role: llm.RoleUser, Content: m.MessageText})
		}
		if strings.TrimSpace(m.ResponseText) != "" {
			out = append(out, llm.Message{Role: llm.RoleAssistant, Content: m.ResponseText})
		}
	}
	return append(out, llm.Message{Role: llm.RoleUser, Content: p.Current})
}

func (p Prompt) Request(model string) llm.Request {
	return llm.Request{
		Model:             model,
		SystemInstruction: p.SystemInstruction,
		Messages:          p.Messages(),
	}
}
