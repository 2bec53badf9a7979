package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/sahay-ai/sahay/internal/config"
	"github.com/sahay-ai/sahay/internal/core"
	"github.com/sahay-ai/sahay/internal/core/chat"
	db "github.com/sahay-ai/sahay/internal/core/database"
	"github.com/sahay-ai/sahay/internal/core/ingestion_engine"
	"github.com/sahay-ai/sahay/internal/core/llm"
	objectclient "github.com/sahay-ai/sahay/internal/core/object-client"
	"github.com/sahay-ai/sahay/internal/core/tokens"
)

type App struct {
	Store        core.Store
	ObjectClient core.ObjectClient
	Pipeline     *chat.Pipeline
	Ingestor     *ingestion_engine.PageIngestor
	Server       *Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	store, err := db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	log.Println("Database initialized and ready.")

	objClient, err := objectclient.NewS3Client(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	log.Println("Object client initialized and ready.")

	completions, embedder, err := newProviders(appCtx, cfg)
	if err != nil {
		return nil, err
	}

	counter := tokens.NewCounter()
	extractor := ingestion_engine.NewDocconvExtractor(false)
	ingestor := ingestion_engine.NewPageIngestor(store, embedder, extractor, counter, cfg.EmbedModel, cfg.EmbedDim)

	pipeline := chat.NewPipeline(store, completions, embedder, cfg.DetectModel, cfg.GenModel, cfg.MaxContextTokens)

	server := NewServer(cfg, store, objClient, ingestor, pipeline)

	return &App{
		Store:        store,
		ObjectClient: objClient,
		Pipeline:     pipeline,
		Ingestor:     ingestor,
		Server:       server,
	}, nil
}

// newProviders picks the model backend from config. Both backends serve
// completions, structured extraction and embeddings through one client.
func newProviders(ctx context.Context, cfg *config.Config) (core.CompletionProvider, core.EmbeddingProvider, error) {
	switch cfg.AIProvider {
	case "openai":
		p, err := llm.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.EmbedModel)
		if err != nil {
			return nil, nil, fmt.Errorf("openai provider: %w", err)
		}
		return p, p, nil
	case "gemini":
		p, err := llm.NewGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.EmbedModel)
		if err != nil {
			return nil, nil, fmt.Errorf("gemini provider: %w", err)
		}
		return p, p, nil
	default:
		return nil, nil, fmt.Errorf("unknown AI_PROVIDER %q", cfg.AIProvider)
	}
}

func (a *App) Close() {
	if a.Store != nil {
		_ = a.Store.Close()
	}
}
