package chat

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sahay-ai/sahay/internal/core"
	"github.com/sahay-ai/sahay/internal/models"
)

// Placeholder tokens substituted into evaluator instruction templates.
const (
	questionPlaceholder = "[[QUESTION]]"
	responsePlaceholder = "[[RESPONSE]]"
)

// Evaluator scores a produced answer against a tenant's named criteria.
type Evaluator struct {
	completions core.CompletionProvider
}

// NewEvaluator builds an Evaluator on the given completion provider.
func NewEvaluator(completions core.CompletionProvider) *Evaluator {
	return &Evaluator{completions: completions}
}

// Score substitutes the question and answer into the criterion instruction,
// issues one completion expecting a bare numeric reply, and parses it as an
// integer. The raw integer is returned unclamped; no score range is assumed.
func (e *Evaluator) Score(ctx context.Context, instruction, question, answer, model, apiKey string) (int, error) {
	prompt := strings.ReplaceAll(instruction, questionPlaceholder, question)
	prompt = strings.ReplaceAll(prompt, responsePlaceholder, answer)

	reply, err := e.completions.Complete(ctx, core.CompletionRequest{
		Model:  model,
		APIKey: apiKey,
		Messages: []core.ChatTurn{
			{Role: models.RoleSystem, Content: prompt},
		},
	})
	if err != nil {
		return 0, err
	}

	score, err := strconv.Atoi(strings.TrimSpace(reply.Content))
	if err != nil {
		return 0, fmt.Errorf("non-numeric evaluation reply %q", reply.Content)
	}
	return score, nil
}
