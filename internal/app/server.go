package app

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sahay-ai/sahay/internal/api/handlers"
	appMiddleware "github.com/sahay-ai/sahay/internal/api/middlewares"
	"github.com/sahay-ai/sahay/internal/config"
	"github.com/sahay-ai/sahay/internal/core"
	"github.com/sahay-ai/sahay/internal/core/chat"
	ingestor "github.com/sahay-ai/sahay/internal/core/ingestion_engine"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, store core.Store, obj core.ObjectClient, ing *ingestor.PageIngestor, pipeline *chat.Pipeline) *Server {
	adminHandler := handlers.NewAdminHandler(store, cfg.JWTSecret)
	docHandler := handlers.NewDocumentHandler(store, obj, ing, cfg)
	categoryHandler := handlers.NewCategoryHandler(store)
	chatHandler := handlers.NewChatHandler(pipeline, store)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(api chi.Router) {
		// public admin endpoints
		api.Post("/admin/signup", adminHandler.Signup)
		api.Post("/admin/login", adminHandler.Login)

		// admin endpoints behind the JWT
		api.Group(func(admin chi.Router) {
			admin.Use(appMiddleware.AdminJWT(cfg.JWTSecret))
			admin.Post("/admin/organizations", adminHandler.CreateOrganization)
			admin.Get("/admin/organizations", adminHandler.ListOrganizations)
			admin.Put("/admin/organizations/{orgID}/system-prompt", adminHandler.UpdateSystemPrompt)
			admin.Put("/admin/organizations/{orgID}/examples", adminHandler.UpdateExamples)
			admin.Put("/admin/organizations/{orgID}/evaluators", adminHandler.UpdateEvaluators)
			admin.Put("/admin/organizations/{orgID}/model-key", adminHandler.UpdateModelKey)
			admin.Post("/admin/organizations/{orgID}/rotate-key", adminHandler.RotateAPIKey)
		})

		// tenant endpoints behind the org API key
		api.Group(func(tenant chi.Router) {
			tenant.Use(appMiddleware.TenantAuth(store))
			tenant.Post("/chat", chatHandler.Ask)
			tenant.Post("/documents/upload", docHandler.UploadDocument)
			tenant.Get("/documents", docHandler.GetDocuments)
			tenant.Post("/categories", categoryHandler.CreateCategory)
			tenant.Get("/categories", categoryHandler.GetCategories)
			tenant.Delete("/categories/{categoryID}", categoryHandler.DeleteCategory)
		})
	})

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	return &Server{httpServer: httpSrv}
}

// Start runs the HTTP server.
func (s *Server) Start() {
	log.Printf("HTTP server listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down HTTP server...")
	return s.httpServer.Shutdown(ctx)
}
