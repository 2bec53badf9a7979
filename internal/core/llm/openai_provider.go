package llm

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/sahay-ai/sahay/internal/core"
)

// OpenAIProvider implements the completion and embedding boundaries against
// the OpenAI API. A per-tenant model key on a request overrides the default
// credential for that call only.
type OpenAIProvider struct {
	client     *openai.Client
	embedModel string
}

// NewOpenAIProvider builds the provider with the service-wide API key.
func NewOpenAIProvider(apiKey, embedModel string) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if embedModel == "" {
		embedModel = string(openai.AdaEmbeddingV2)
	}
	return &OpenAIProvider{
		client:     openai.NewClient(apiKey),
		embedModel: embedModel,
	}, nil
}

func (p *OpenAIProvider) clientFor(apiKey string) *openai.Client {
	if apiKey == "" {
		return p.client
	}
	return openai.NewClient(apiKey)
}

// Complete issues one chat completion and returns the single reply message.
func (p *OpenAIProvider) Complete(ctx context.Context, req core.CompletionRequest) (core.ChatTurn, error) {
	resp, err := p.clientFor(req.APIKey).CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		Messages:    toOpenAIMessages(req.Messages),
	})
	if err != nil {
		return core.ChatTurn{}, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return core.ChatTurn{}, fmt.Errorf("openai chat completion: empty choices")
	}
	msg := resp.Choices[0].Message
	return core.ChatTurn{Role: msg.Role, Content: msg.Content}, nil
}

// ExtractStructured constrains the reply to the declared schema via the
// json_schema response format and returns the raw JSON body.
func (p *OpenAIProvider) ExtractStructured(ctx context.Context, req core.CompletionRequest, schema core.ExtractionSchema) (json.RawMessage, error) {
	def := toJSONSchema(schema)
	resp, err := p.clientFor(req.APIKey).CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		Messages:    toOpenAIMessages(req.Messages),
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:        schema.Name,
				Description: schema.Description,
				Schema:      &def,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai structured extraction: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai structured extraction: empty choices")
	}
	return json.RawMessage(resp.Choices[0].Message.Content), nil
}

// EmbedTexts embeds all texts in one request.
func (p *OpenAIProvider) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: openai.EmbeddingModel(p.embedModel),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embeddings: got %d vectors for %d inputs", len(resp.Data), len(texts))
	}
	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		out[i] = d.Embedding
	}
	return out, nil
}

func toOpenAIMessages(turns []core.ChatTurn) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(turns))
	for i, t := range turns {
		out[i] = openai.ChatCompletionMessage{Role: t.Role, Content: t.Content}
	}
	return out
}

func toJSONSchema(schema core.ExtractionSchema) jsonschema.Definition {
	props := make(map[string]jsonschema.Definition, len(schema.Fields))
	var required []string
	for _, f := range schema.Fields {
		props[f.Name] = jsonschema.Definition{
			Type:        jsonschema.DataType(f.Type),
			Description: f.Description,
		}
		if f.Required {
			required = append(required, f.Name)
		}
	}
	return jsonschema.Definition{
		Type:       jsonschema.Object,
		Properties: props,
		Required:   required,
	}
}

var (
	_ core.CompletionProvider = (*OpenAIProvider)(nil)
	_ core.EmbeddingProvider  = (*OpenAIProvider)(nil)
)
