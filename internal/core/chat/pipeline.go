package chat

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/sahay-ai/sahay/internal/core"
	"github.com/sahay-ai/sahay/internal/core/errs"
	"github.com/sahay-ai/sahay/internal/models"
)

const (
	defaultTemperature = 0.7

	// Ceiling for each external model call. The chain stays bounded even
	// when a provider hangs.
	callTimeout = 30 * time.Second
)

// pipelineStore is the slice of persistence the answer pipeline touches.
type pipelineStore interface {
	SearchEmbeddings(ctx context.Context, orgID, categoryID string, queryVec []float32) ([]models.ScoredPassage, error)
	AppendMessages(ctx context.Context, msgs []models.Message) error
	HistoryBySession(ctx context.Context, sessionID string) ([]models.Message, error)
}

// AnswerRequest is one inbound question, already resolved to its tenant.
type AnswerRequest struct {
	Org        *models.Organization
	Question   string
	SessionID  string // empty means start a fresh session
	Model      string // empty means the configured default chat model
	CategoryID string // empty means search the whole tenant corpus
	Evaluate   bool
}

// AnswerResponse echoes the session id (supplied or newly generated) and
// returns the full session history including the new turns. Scores is nil
// unless evaluation was requested.
type AnswerResponse struct {
	Answer    string          `json:"answer"`
	SessionID string          `json:"session_id"`
	History   []core.ChatTurn `json:"history"`
	Scores    map[string]int  `json:"scores,omitempty"`
}

// Pipeline sequences one request/response cycle: language detection, query
// embedding, tenant-scoped retrieval, token budgeting, history load, prompt
// composition, completion, optional evaluation and persistence. Steps run
// strictly sequentially; any failure aborts the cycle. Concurrent requests
// against one session id are not coordinated: interleaved history writes are
// an accepted race, each insert being independently atomic.
type Pipeline struct {
	store       pipelineStore
	completions core.CompletionProvider
	embedder    core.EmbeddingProvider
	language    *LanguageIdentifier
	evaluator   *Evaluator

	defaultModel     string
	maxContextTokens int
}

// NewPipeline wires the answer pipeline.
func NewPipeline(store pipelineStore, completions core.CompletionProvider, embedder core.EmbeddingProvider, detectModel, defaultModel string, maxContextTokens int) *Pipeline {
	if maxContextTokens <= 0 {
		maxContextTokens = DefaultMaxContextTokens
	}
	return &Pipeline{
		store:            store,
		completions:      completions,
		embedder:         embedder,
		language:         NewLanguageIdentifier(completions, detectModel),
		evaluator:        NewEvaluator(completions),
		defaultModel:     defaultModel,
		maxContextTokens: maxContextTokens,
	}
}

// Answer runs the full cycle for one question. The returned error carries the
// specific cause for logging; callers surface only the taxonomy class.
func (p *Pipeline) Answer(ctx context.Context, req AnswerRequest) (*AnswerResponse, error) {
	org := req.Org
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = NewSessionID()
	}
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	lang, err := identifyWithTimeout(ctx, p.language, req.Question, org.ModelAPIKey)
	if err != nil {
		return nil, err
	}

	vecs, err := embedWithTimeout(ctx, p.embedder, lang.EnglishQuery(req.Question))
	if err != nil || len(vecs) == 0 {
		return nil, errs.Upstream("embed query", err)
	}

	ranked, err := p.store.SearchEmbeddings(ctx, org.ID, req.CategoryID, vecs[0])
	if err != nil {
		return nil, errs.Persistence("search embeddings", err)
	}

	passages, contextTokens := SelectContext(ranked, p.maxContextTokens)
	log.Printf("chat: session=%s retrieved=%d selected=%d context_tokens=%d", sessionID, len(ranked), len(passages), contextTokens)

	history, err := p.store.HistoryBySession(ctx, sessionID)
	if err != nil {
		return nil, errs.Persistence("load history", err)
	}

	turns := Compose(PromptInput{
		SystemPrompt: org.SystemPrompt,
		ExamplesText: org.ExamplesText,
		ContextBlock: contextBlock(passages),
		Question:     req.Question,
		Language:     lang.PrimaryLanguage,
		History:      history,
	})

	reply, err := completeWithTimeout(ctx, p.completions, core.CompletionRequest{
		Model:       model,
		Temperature: defaultTemperature,
		APIKey:      org.ModelAPIKey,
		Messages:    turns,
	})
	if err != nil {
		return nil, errs.Upstream("chat completion", err)
	}

	scores := map[string]int{}
	if req.Evaluate {
		scores = p.evaluate(ctx, org, req.Question, reply.Content, model)
	}

	if err := p.store.AppendMessages(ctx, []models.Message{
		{SessionID: sessionID, Role: models.RoleUser, Content: req.Question, EvaluationScore: map[string]int{}},
		{SessionID: sessionID, Role: models.RoleAssistant, Content: reply.Content, EvaluationScore: scores},
	}); err != nil {
		return nil, errs.Persistence("append messages", err)
	}

	resp := &AnswerResponse{
		Answer:    reply.Content,
		SessionID: sessionID,
		History:   historyTurns(history, req.Question, reply.Content),
	}
	if req.Evaluate {
		resp.Scores = scores
	}
	return resp, nil
}

// evaluate scores the answer against every configured criterion. A failed
// criterion is logged and skipped; it never aborts the cycle.
func (p *Pipeline) evaluate(ctx context.Context, org *models.Organization, question, answer, model string) map[string]int {
	scores := map[string]int{}
	for name, instruction := range org.EvaluatorPrompts {
		if instruction == "" {
			continue
		}
		score, err := scoreWithTimeout(ctx, p.evaluator, instruction, question, answer, model, org.ModelAPIKey)
		if err != nil {
			log.Printf("chat: evaluation of %q failed: %v", name, err)
			continue
		}
		scores[name] = score
	}
	return scores
}

func contextBlock(passages []models.ScoredPassage) string {
	parts := make([]string, 0, len(passages))
	for _, p := range passages {
		parts = append(parts, p.Text)
	}
	return strings.Join(parts, "\n\n")
}

func historyTurns(history []models.Message, question, answer string) []core.ChatTurn {
	out := make([]core.ChatTurn, 0, len(history)+2)
	for _, m := range history {
		out = append(out, core.ChatTurn{Role: m.Role, Content: m.Content})
	}
	out = append(out,
		core.ChatTurn{Role: models.RoleUser, Content: question},
		core.ChatTurn{Role: models.RoleAssistant, Content: answer},
	)
	return out
}

func identifyWithTimeout(ctx context.Context, li *LanguageIdentifier, question, apiKey string) (LanguageResult, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	return li.Identify(ctx, question, apiKey)
}

func embedWithTimeout(ctx context.Context, embedder core.EmbeddingProvider, query string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	return embedder.EmbedTexts(ctx, []string{query})
}

func completeWithTimeout(ctx context.Context, completions core.CompletionProvider, req core.CompletionRequest) (core.ChatTurn, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	return completions.Complete(ctx, req)
}

func scoreWithTimeout(ctx context.Context, ev *Evaluator, instruction, question, answer, model, apiKey string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	return ev.Score(ctx, instruction, question, answer, model, apiKey)
}
