package chat

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sahay-ai/sahay/internal/core"
	"github.com/sahay-ai/sahay/internal/core/errs"
	"github.com/sahay-ai/sahay/internal/models"
)

func testOrg() *models.Organization {
	return &models.Organization{
		ID:           "org-a",
		Name:         "Tenant A",
		SystemPrompt: "Answer briefly.",
	}
}

func newTestPipeline(store *fakeStore, completions *fakeCompletions) *Pipeline {
	return NewPipeline(store, completions, &fakeEmbedder{vec: []float32{0.1, 0.2}}, "gpt-3.5-turbo", "gpt-3.5-turbo", 7000)
}

func TestAnswer_FreshSession(t *testing.T) {
	store := newFakeStore()
	store.passages["org-a"] = []models.ScoredPassage{
		{DocumentName: "hydration.pdf", Text: "Drink water for hydration.", Distance: 0.2, TokenCount: 5},
	}
	completions := &fakeCompletions{}

	resp, err := newTestPipeline(store, completions).Answer(context.Background(), AnswerRequest{
		Org:      testOrg(),
		Question: "How do I stay hydrated?",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.Answer)
	assert.Len(t, resp.SessionID, 6)
	assert.Nil(t, resp.Scores)

	// The composed prompt carries the system prompt, passage and question.
	require.NotEmpty(t, completions.completeReqs)
	sent := completions.completeReqs[0].Messages
	assert.Equal(t, "Answer briefly.", sent[0].Content)
	last := sent[len(sent)-1].Content
	assert.Contains(t, last, "Drink water for hydration.")
	assert.Contains(t, last, "How do I stay hydrated?")

	// Exactly two new rows persisted for the fresh session.
	persisted := store.messages[resp.SessionID]
	require.Len(t, persisted, 2)
	assert.Equal(t, models.RoleUser, persisted[0].Role)
	assert.Equal(t, "How do I stay hydrated?", persisted[0].Content)
	assert.Equal(t, models.RoleAssistant, persisted[1].Role)
	assert.Equal(t, resp.Answer, persisted[1].Content)
	assert.Empty(t, persisted[1].EvaluationScore)
}

func TestAnswer_EchoesSuppliedSessionID(t *testing.T) {
	store := newFakeStore()
	completions := &fakeCompletions{}
	p := newTestPipeline(store, completions)

	resp, err := p.Answer(context.Background(), AnswerRequest{
		Org: testOrg(), Question: "first", SessionID: "abc123",
	})
	require.NoError(t, err)
	assert.Equal(t, "abc123", resp.SessionID)

	// A second turn sees the first turn's history, oldest first.
	resp, err = p.Answer(context.Background(), AnswerRequest{
		Org: testOrg(), Question: "second", SessionID: "abc123",
	})
	require.NoError(t, err)
	require.Len(t, resp.History, 4)
	assert.Equal(t, core.ChatTurn{Role: models.RoleUser, Content: "first"}, resp.History[0])
	assert.Equal(t, models.RoleAssistant, resp.History[1].Role)
	assert.Equal(t, core.ChatTurn{Role: models.RoleUser, Content: "second"}, resp.History[2])

	require.Len(t, store.messages["abc123"], 4)
}

func TestAnswer_SearchesOnlyTheTenant(t *testing.T) {
	store := newFakeStore()
	store.passages["org-a"] = []models.ScoredPassage{{Text: "a-passage", TokenCount: 3}}
	store.passages["org-b"] = []models.ScoredPassage{{Text: "b-passage", TokenCount: 3}}
	completions := &fakeCompletions{}

	_, err := newTestPipeline(store, completions).Answer(context.Background(), AnswerRequest{
		Org: testOrg(), Question: "anything",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"org-a"}, store.searchOrgIDs)
	last := completions.completeReqs[0].Messages
	assert.NotContains(t, last[len(last)-1].Content, "b-passage")
}

func TestAnswer_WithEvaluation(t *testing.T) {
	org := testOrg()
	org.EvaluatorPrompts = map[string]string{
		"coherence": coherenceInstruction,
	}
	store := newFakeStore()
	completions := &fakeCompletions{
		completeFn: func(req core.CompletionRequest) (core.ChatTurn, error) {
			if len(req.Messages) == 1 && req.Messages[0].Role == models.RoleSystem {
				return core.ChatTurn{Content: "4"}, nil
			}
			return core.ChatTurn{Role: models.RoleAssistant, Content: "the answer"}, nil
		},
	}

	resp, err := newTestPipeline(store, completions).Answer(context.Background(), AnswerRequest{
		Org: org, Question: "q", Evaluate: true,
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"coherence": 4}, resp.Scores)

	persisted := store.messages[resp.SessionID]
	require.Len(t, persisted, 2)
	assert.Equal(t, map[string]int{"coherence": 4}, persisted[1].EvaluationScore)
}

func TestAnswer_NonNumericScoreIsNonFatal(t *testing.T) {
	org := testOrg()
	org.EvaluatorPrompts = map[string]string{
		"coherence": coherenceInstruction,
	}
	store := newFakeStore()
	completions := &fakeCompletions{
		completeFn: func(req core.CompletionRequest) (core.ChatTurn, error) {
			if len(req.Messages) == 1 && req.Messages[0].Role == models.RoleSystem {
				return core.ChatTurn{Content: "not a number"}, nil
			}
			return core.ChatTurn{Role: models.RoleAssistant, Content: "the answer"}, nil
		},
	}

	resp, err := newTestPipeline(store, completions).Answer(context.Background(), AnswerRequest{
		Org: org, Question: "q", Evaluate: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "the answer", resp.Answer)
	_, scored := resp.Scores["coherence"]
	assert.False(t, scored)
}

func TestAnswer_DetectionFailureFailsPipeline(t *testing.T) {
	store := newFakeStore()
	completions := &fakeCompletions{
		extractFn: func(core.CompletionRequest, core.ExtractionSchema) (json.RawMessage, error) {
			return json.RawMessage(`garbage`), nil
		},
	}

	_, err := newTestPipeline(store, completions).Answer(context.Background(), AnswerRequest{
		Org: testOrg(), Question: "q",
	})
	require.Error(t, err)
	assert.Empty(t, store.messages)
}

func TestAnswer_TranslatedQueryIsEmbedded(t *testing.T) {
	store := newFakeStore()
	completions := &fakeCompletions{
		extractFn: func(core.CompletionRequest, core.ExtractionSchema) (json.RawMessage, error) {
			return languageReply("Hindi", "I have irritation while urinating"), nil
		},
	}

	resp, err := newTestPipeline(store, completions).Answer(context.Background(), AnswerRequest{
		Org: testOrg(), Question: "Peshab ki jagah se kharash ho rahi hai",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Answer)

	last := completions.completeReqs[0].Messages
	assert.Contains(t, last[len(last)-1].Content, "Chatbot Answer in Hindi (Roman characters)")
}

func TestAnswer_SearchFailureIsPersistence(t *testing.T) {
	store := newFakeStore()
	store.searchErr = errors.New("connection reset")

	_, err := newTestPipeline(store, &fakeCompletions{}).Answer(context.Background(), AnswerRequest{
		Org: testOrg(), Question: "anything",
	})

	var perr *errs.PersistenceError
	require.ErrorAs(t, err, &perr)
}

func TestAnswer_AppendFailureIsPersistence(t *testing.T) {
	store := newFakeStore()
	store.appendErr = errors.New("connection reset")

	_, err := newTestPipeline(store, &fakeCompletions{}).Answer(context.Background(), AnswerRequest{
		Org: testOrg(), Question: "anything",
	})

	var perr *errs.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Empty(t, store.messages)
}
