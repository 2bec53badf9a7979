package core

import (
	"context"
	"encoding/json"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/sahay-ai/sahay/internal/models"
)

// Store defines all persistence operations the service needs.
// It abstracts Postgres/pgvector so higher layers never depend on a specific DB.
type Store interface {
	CreateOrganization(ctx context.Context, org *models.Organization) error
	OrganizationByAPIKey(ctx context.Context, apiKey string) (*models.Organization, error)
	ListOrganizations(ctx context.Context) ([]models.Organization, error)
	UpdateOrganizationSystemPrompt(ctx context.Context, orgID, prompt string) error
	UpdateOrganizationExamples(ctx context.Context, orgID, examples string) error
	UpdateOrganizationEvaluators(ctx context.Context, orgID string, prompts map[string]string) error
	UpdateOrganizationModelKey(ctx context.Context, orgID, key string) error
	UpdateOrganizationAPIKey(ctx context.Context, orgID, apiKey string) error

	CreateCategory(ctx context.Context, cat *models.KnowledgeCategory) error
	CategoryByExternalID(ctx context.Context, orgID, externalID string) (*models.KnowledgeCategory, error)
	ListCategories(ctx context.Context, orgID string) ([]models.KnowledgeCategory, error)
	DeleteCategory(ctx context.Context, orgID, externalID string) error

	CreateFile(ctx context.Context, file *models.File) error
	ListFiles(ctx context.Context, orgID string) ([]models.File, error)

	InsertEmbedding(ctx context.Context, emb *models.Embedding) error
	SearchEmbeddings(ctx context.Context, orgID, categoryID string, queryVec []float32) ([]models.ScoredPassage, error)

	AppendMessages(ctx context.Context, msgs []models.Message) error
	HistoryBySession(ctx context.Context, sessionID string) ([]models.Message, error)

	CreateAdmin(ctx context.Context, admin *models.Admin) error
	AdminByEmail(ctx context.Context, email string) (*models.Admin, error)

	Close() error
}

// ChatTurn is one role-tagged message exchanged with the completion service.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is one call to the completion service. APIKey, when set,
// overrides the provider's default credential (per-tenant model keys).
type CompletionRequest struct {
	Model       string
	Temperature float32
	APIKey      string
	Messages    []ChatTurn
}

// SchemaField is one property of a structured-extraction schema.
type SchemaField struct {
	Name        string
	Type        string // "string", "number" or "boolean"
	Description string
	Required    bool
}

// ExtractionSchema declares the strict output shape for a structured
// extraction call. Providers translate it to their native schema format.
type ExtractionSchema struct {
	Name        string
	Description string
	Fields      []SchemaField
}

// CompletionProvider is the completion service boundary: plain chat
// completions plus the schema-constrained extraction mode.
type CompletionProvider interface {
	Complete(ctx context.Context, req CompletionRequest) (ChatTurn, error)
	ExtractStructured(ctx context.Context, req CompletionRequest, schema ExtractionSchema) (json.RawMessage, error)
}

// EmbeddingProvider turns texts into fixed-dimension vectors.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// DocumentExtractor extracts ordered text passages from a document.
// The contentType hint selects the parsing strategy; passages are sent on the
// returned channel with no trailing newlines, and extraction errors surface
// through the errgroup.
type DocumentExtractor interface {
	ExtractText(ctx context.Context, g *errgroup.Group, data []byte, contentType string) (<-chan string, error)
}

// ObjectClient defines interactions with S3 or any object storage.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, r io.Reader, contentType string) (url string, err error)
	GetFile(ctx context.Context, bucket, key string) ([]byte, error)
	DeleteFile(ctx context.Context, bucket, key string) error
}
