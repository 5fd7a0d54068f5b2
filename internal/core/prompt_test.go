package core

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Conversly/whatsapp-faq-bot/internal/llm"
	"github.com/Conversly/whatsapp-faq-bot/internal/types"
)

func exchanges(n int) []types.ConversationMessage {
	out := make([]types.ConversationMessage, n)
	for i := range out {
		out[i] = types.ConversationMessage{
			ID:           int64(i + 1),
			Sender:       types.SenderUser,
			MessageText:  fmt.Sprintf("question %02d", i),
			ResponseText: fmt.Sprintf("answer %02d", i),
		}
	}
	return out
}

func promptChars(p Prompt) int {
	total := utf8.RuneCountInString(p.SystemInstruction)
	for _, m := range p.Messages() {
		total += utf8.RuneCountInString(m.Content)
	}
	return total
}

func TestBuildPromptKeepsEverythingWhenItFits(t *testing.T) {
	history := exchanges(3)
	p := BuildPrompt("sys", history, "now?", 10_000)

	assert.Equal(t, history, p.History)
	assert.Zero(t, p.Dropped)
	assert.Len(t, p.Messages(), 7)
}

func TestBuildPromptTrimsOldestFirstAndStaysInBudget(t *testing.T) {
	history := exchanges(30)
	system := "You are helpful."
	current := "what about today?"

	for budget := 40; budget <= 600; budget += 17 {
		p := BuildPrompt(system, history, current, budget)

		assert.LessOrEqual(t, p.Chars, budget, "budget %d", budget)
		assert.Equal(t, p.Chars, promptChars(p), "budget %d", budget)
		assert.Equal(t, system, p.SystemInstruction)

		msgs := p.Messages()
		require.NotEmpty(t, msgs)
		assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: current}, msgs[len(msgs)-1])

		// The kept history is exactly the tail of the input.
		assert.Equal(t, history[len(history)-len(p.History):], p.History, "budget %d", budget)
		assert.Equal(t, len(history)-len(p.History), p.Dropped)
	}
}

func TestBuildPromptEmptiesHistoryWhenNothingFits(t *testing.T) {
	history := exchanges(5)
	p := BuildPrompt("system", history, "current", len("system")+len("current")+3)

	assert.Empty(t, p.History)
	assert.Equal(t, 5, p.Dropped)
	assert.Equal(t, []llm.Message{{Role: llm.RoleUser, Content: "current"}}, p.Messages())
}

func TestBuildPromptNeverDropsFixedParts(t *testing.T) {
	long := strings.Repeat("x", 50)
	p := BuildPrompt(long, exchanges(2), long, 10)

	assert.Equal(t, long, p.SystemInstruction)
	assert.Equal(t, long, p.Current)
	assert.Empty(t, p.History)
}

func TestPromptMessagesAlternateRoles(t *testing.T) {
	history := []types.ConversationMessage{
		{Sender: types.SenderUser, MessageText: "hi", ResponseText: "hello"},
		{Sender: types.SenderUser, MessageText: "Button click: yes", ResponseText: ""},
		{Sender: types.SenderAssistant, MessageText: "proactive note"},
	}
	req := BuildPrompt("sys", history, "next", 1000).Request("gemini-x")

	assert.Equal(t, "gemini-x", req.Model)
	assert.Equal(t, "sys", req.SystemInstruction)
	assert.Equal(t, []llm.Message{
		{Role: llm.RoleUser, Content: "hi"},
		{Role: llm.RoleAssistant, Content: "hello"},
		{Role: llm.RoleUser, Content: "Button click: yes"},
		{Role: llm.RoleAssistant, Content: "proactive note"},
		{Role: llm.RoleUser, Content: "next"},
	}, req.Messages)
}
