package chat

import (
	"fmt"
	"strings"

	"github.com/sahay-ai/sahay/internal/core"
	"github.com/sahay-ai/sahay/internal/models"
)

// groundingInstruction frames how the model may use the context that follows
// it, so it must come before the context block in the composed message.
const groundingInstruction = "Use the following pieces of context to answer the question at the end. " +
	"If you don't know the answer, just say that you don't know, don't try to make up an answer."

// PromptInput carries the typed fields the composer assembles into the
// ordered message list sent to the completion service.
type PromptInput struct {
	SystemPrompt string
	ExamplesText string
	ContextBlock string
	Question     string
	Language     string
	History      []models.Message
}

// Compose builds the role-tagged message sequence: the tenant's system prompt,
// the prior history in original order, then one user message holding the
// grounding instruction, the retrieved context, the tenant's worked examples,
// the question and the answer-language instruction. History precedes the new
// question so the model sees the question last.
func Compose(in PromptInput) []core.ChatTurn {
	turns := make([]core.ChatTurn, 0, len(in.History)+2)
	turns = append(turns, core.ChatTurn{Role: models.RoleSystem, Content: in.SystemPrompt})
	for _, m := range in.History {
		turns = append(turns, core.ChatTurn{Role: m.Role, Content: m.Content})
	}
	turns = append(turns, core.ChatTurn{Role: models.RoleUser, Content: composeQuestion(in)})
	return turns
}

func composeQuestion(in PromptInput) string {
	var b strings.Builder
	b.WriteString(groundingInstruction)
	b.WriteString("\n\nContext:\n\n")
	b.WriteString(in.ContextBlock)
	b.WriteString("\n\nExamples:\n\n")
	b.WriteString(in.ExamplesText)
	fmt.Fprintf(&b, "\n\nQuestion: %s\n", in.Question)
	fmt.Fprintf(&b, "Chatbot Answer in %s: ", answerLanguage(in.Language))
	return b.String()
}

// answerLanguage applies the enumerated per-language formatting rules.
// Hindi answers are requested in Roman script, matching how users type.
func answerLanguage(language string) string {
	if language == "" {
		return "English"
	}
	if language == "Hindi" {
		return "Hindi (Roman characters)"
	}
	return language
}
