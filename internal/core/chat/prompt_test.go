package chat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sahay-ai/sahay/internal/models"
)

func TestCompose_Ordering(t *testing.T) {
	history := []models.Message{
		{Role: models.RoleUser, Content: "earlier question"},
		{Role: models.RoleAssistant, Content: "earlier answer"},
	}

	turns := Compose(PromptInput{
		SystemPrompt: "Answer briefly.",
		ExamplesText: "Q: sample\nA: sample answer",
		ContextBlock: "Drink water for hydration.",
		Question:     "How do I stay hydrated?",
		Language:     "English",
		History:      history,
	})

	require.Len(t, turns, 4)
	assert.Equal(t, models.RoleSystem, turns[0].Role)
	assert.Equal(t, "Answer briefly.", turns[0].Content)

	// History in original role/order, before the new question.
	assert.Equal(t, models.RoleUser, turns[1].Role)
	assert.Equal(t, "earlier question", turns[1].Content)
	assert.Equal(t, models.RoleAssistant, turns[2].Role)
	assert.Equal(t, "earlier answer", turns[2].Content)

	last := turns[3]
	assert.Equal(t, models.RoleUser, last.Role)
	assert.Contains(t, last.Content, "Drink water for hydration.")
	assert.Contains(t, last.Content, "Question: How do I stay hydrated?")
	assert.Contains(t, last.Content, "Chatbot Answer in English")

	// The grounding instruction frames the context, so it must come first.
	assert.Less(t,
		strings.Index(last.Content, "don't try to make up an answer"),
		strings.Index(last.Content, "Drink water for hydration."),
	)
	// The question comes after examples, before the language instruction.
	assert.Less(t,
		strings.Index(last.Content, "Q: sample"),
		strings.Index(last.Content, "Question: How do I stay hydrated?"),
	)
}

func TestAnswerLanguage(t *testing.T) {
	assert.Equal(t, "English", answerLanguage(""))
	assert.Equal(t, "Marathi", answerLanguage("Marathi"))
	assert.Equal(t, "Hindi (Roman characters)", answerLanguage("Hindi"))
}
