package chat

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sahay-ai/sahay/internal/core"
	"github.com/sahay-ai/sahay/internal/models"
)

type fakeCompletions struct {
	completeFn func(req core.CompletionRequest) (core.ChatTurn, error)
	extractFn  func(req core.CompletionRequest, schema core.ExtractionSchema) (json.RawMessage, error)

	completeReqs []core.CompletionRequest
	extractReqs  []core.CompletionRequest
}

func (f *fakeCompletions) Complete(_ context.Context, req core.CompletionRequest) (core.ChatTurn, error) {
	f.completeReqs = append(f.completeReqs, req)
	if f.completeFn != nil {
		return f.completeFn(req)
	}
	return core.ChatTurn{Role: models.RoleAssistant, Content: "Drink plenty of water."}, nil
}

func (f *fakeCompletions) ExtractStructured(_ context.Context, req core.CompletionRequest, schema core.ExtractionSchema) (json.RawMessage, error) {
	f.extractReqs = append(f.extractReqs, req)
	if f.extractFn != nil {
		return f.extractFn(req, schema)
	}
	return json.RawMessage(`{"primary_detected_language":"English","detection_confidence":1,"translation_to_english":"","translation_confidence":1,"has_english_words":true}`), nil
}

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, nil
}

// fakeStore keeps passages per tenant and a per-session message log in memory.
type fakeStore struct {
	passages map[string][]models.ScoredPassage // org id -> ranked passages
	messages map[string][]models.Message       // session id -> ordered log

	searchOrgIDs []string
	searchErr    error
	appendErr    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		passages: map[string][]models.ScoredPassage{},
		messages: map[string][]models.Message{},
	}
}

func (f *fakeStore) SearchEmbeddings(_ context.Context, orgID, _ string, _ []float32) ([]models.ScoredPassage, error) {
	f.searchOrgIDs = append(f.searchOrgIDs, orgID)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.passages[orgID], nil
}

func (f *fakeStore) AppendMessages(_ context.Context, msgs []models.Message) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	for _, m := range msgs {
		m.ID = int64(len(f.messages[m.SessionID]) + 1)
		f.messages[m.SessionID] = append(f.messages[m.SessionID], m)
	}
	return nil
}

func (f *fakeStore) HistoryBySession(_ context.Context, sessionID string) ([]models.Message, error) {
	return append([]models.Message(nil), f.messages[sessionID]...), nil
}

func languageReply(language, translation string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(
		`{"primary_detected_language":%q,"detection_confidence":0.98,"translation_to_english":%q,"translation_confidence":0.95,"has_english_words":false}`,
		language, translation,
	))
}
