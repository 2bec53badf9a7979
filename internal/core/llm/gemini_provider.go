package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/sahay-ai/sahay/internal/core"
	"github.com/sahay-ai/sahay/internal/models"
)

// GeminiProvider is the alternate completion/embedding provider, selected by
// configuration. Structured extraction uses genai's JSON response schema.
type GeminiProvider struct {
	client     *genai.Client
	embedModel string
}

// NewGeminiProvider builds the provider with the service-wide API key.
func NewGeminiProvider(ctx context.Context, apiKey, embedModel string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if embedModel == "" {
		embedModel = "text-embedding-004"
	}
	return &GeminiProvider{client: cl, embedModel: embedModel}, nil
}

// Close releases the underlying client.
func (p *GeminiProvider) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

// Complete issues one chat turn, mapping prior messages onto genai history.
func (p *GeminiProvider) Complete(ctx context.Context, req core.CompletionRequest) (core.ChatTurn, error) {
	client, closeClient, err := p.clientFor(ctx, req.APIKey)
	if err != nil {
		return core.ChatTurn{}, err
	}
	defer closeClient()

	m := client.GenerativeModel(req.Model)
	m.SetTemperature(req.Temperature)

	system, history, last := splitTurns(req.Messages)
	if system != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}

	cs := m.StartChat()
	cs.History = history

	resp, err := cs.SendMessage(ctx, genai.Text(last))
	if err != nil {
		return core.ChatTurn{}, fmt.Errorf("gemini generate: %w", err)
	}
	return core.ChatTurn{Role: models.RoleAssistant, Content: candidateText(resp)}, nil
}

// ExtractStructured constrains the reply with a response schema and JSON MIME
// type, returning the raw JSON body.
func (p *GeminiProvider) ExtractStructured(ctx context.Context, req core.CompletionRequest, schema core.ExtractionSchema) (json.RawMessage, error) {
	client, closeClient, err := p.clientFor(ctx, req.APIKey)
	if err != nil {
		return nil, err
	}
	defer closeClient()

	m := client.GenerativeModel(req.Model)
	m.SetTemperature(req.Temperature)
	m.ResponseMIMEType = "application/json"
	m.ResponseSchema = toGenaiSchema(schema)

	system, history, last := splitTurns(req.Messages)
	if system != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}

	cs := m.StartChat()
	cs.History = history

	resp, err := cs.SendMessage(ctx, genai.Text(last))
	if err != nil {
		return nil, fmt.Errorf("gemini structured extraction: %w", err)
	}
	return json.RawMessage(candidateText(resp)), nil
}

// EmbedTexts batches all texts in one request via EmbeddingBatch.
func (p *GeminiProvider) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	em := p.client.EmbeddingModel(p.embedModel)
	batch := em.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}

	resp, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("gemini batch embed: %w", err)
	}

	out := make([][]float32, 0, len(resp.Embeddings))
	for _, e := range resp.Embeddings {
		out = append(out, e.Values)
	}
	return out, nil
}

func (p *GeminiProvider) clientFor(ctx context.Context, apiKey string) (*genai.Client, func(), error) {
	if apiKey == "" {
		return p.client, func() {}, nil
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, nil, err
	}
	return cl, func() { _ = cl.Close() }, nil
}

// splitTurns separates the leading system message, maps the middle turns onto
// genai chat history, and returns the final message content to send.
func splitTurns(turns []core.ChatTurn) (system string, history []*genai.Content, last string) {
	rest := turns
	if len(rest) > 0 && rest[0].Role == models.RoleSystem {
		system = rest[0].Content
		rest = rest[1:]
	}
	if len(rest) == 0 {
		return system, nil, ""
	}
	last = rest[len(rest)-1].Content
	for _, t := range rest[:len(rest)-1] {
		role := "user"
		if t.Role == models.RoleAssistant {
			role = "model"
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(t.Content)},
		})
	}
	return system, history, last
}

func toGenaiSchema(schema core.ExtractionSchema) *genai.Schema {
	props := make(map[string]*genai.Schema, len(schema.Fields))
	var required []string
	for _, f := range schema.Fields {
		props[f.Name] = &genai.Schema{
			Type:        genaiType(f.Type),
			Description: f.Description,
		}
		if f.Required {
			required = append(required, f.Name)
		}
	}
	return &genai.Schema{
		Type:        genai.TypeObject,
		Description: schema.Description,
		Properties:  props,
		Required:    required,
	}
}

func genaiType(t string) genai.Type {
	switch t {
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	default:
		return genai.TypeString
	}
}

func candidateText(resp *genai.GenerateContentResponse) string {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}

var (
	_ core.CompletionProvider = (*GeminiProvider)(nil)
	_ core.EmbeddingProvider  = (*GeminiProvider)(nil)
)
