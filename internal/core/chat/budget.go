package chat

import (
	"github.com/sahay-ai/sahay/internal/models"
)

// DefaultMaxContextTokens bounds the retrieved context so the assembled
// prompt stays inside the completion model's input limit.
const DefaultMaxContextTokens = 7000

// SelectContext walks ranked passages in order, accumulating token counts,
// and keeps a passage only while the running total stays strictly below
// maxTokens. Iteration stops at the first passage that would reach the
// ceiling; later passages are not considered even if they would fit.
// Returns the chosen prefix and its realized token total.
func SelectContext(ranked []models.ScoredPassage, maxTokens int) ([]models.ScoredPassage, int) {
	chosen := make([]models.ScoredPassage, 0, len(ranked))
	total := 0
	for _, p := range ranked {
		if total+p.TokenCount >= maxTokens {
			break
		}
		total += p.TokenCount
		chosen = append(chosen, p)
	}
	return chosen, total
}
