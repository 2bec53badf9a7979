package models

import (
	"time"
)

// Organization is an isolated tenant account. Its record doubles as the
// per-tenant configuration snapshot read once per request: system prompt,
// worked examples, evaluator criteria and an optional model credential.
type Organization struct {
	ID               string            `db:"id" json:"id"`
	Name             string            `db:"name" json:"name"`
	APIKey           string            `db:"api_key" json:"-"`
	SystemPrompt     string            `db:"system_prompt" json:"system_prompt"`
	ExamplesText     string            `db:"examples_text" json:"examples_text"`
	EvaluatorPrompts map[string]string `db:"evaluator_prompts" json:"evaluator_prompts"` // criterion name -> instruction template
	ModelAPIKey      string            `db:"model_api_key" json:"-"`
	CreatedAt        time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time         `db:"updated_at" json:"updated_at"`
}

// KnowledgeCategory groups a tenant's files under a stable external identifier.
type KnowledgeCategory struct {
	ID             string    `db:"id" json:"id"`
	OrganizationID string    `db:"organization_id" json:"organization_id"`
	ExternalID     string    `db:"external_id" json:"external_id"`
	Name           string    `db:"name" json:"name"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// File is one ingested document.
type File struct {
	ID             string    `db:"id" json:"id"`
	OrganizationID string    `db:"organization_id" json:"organization_id"`
	CategoryID     string    `db:"category_id" json:"category_id,omitempty"` // empty when uncategorized
	ExternalID     string    `db:"external_id" json:"external_id"`
	Name           string    `db:"name" json:"name"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Embedding is one extracted passage plus its vector representation.
// Immutable after ingestion; removed when its File is deleted.
type Embedding struct {
	ID             string    `db:"id" json:"id"`
	OrganizationID string    `db:"organization_id" json:"organization_id"`
	FileID         string    `db:"file_id" json:"file_id,omitempty"`
	DocumentName   string    `db:"document_name" json:"document_name"`
	Text           string    `db:"text" json:"text"`
	Vector         []float32 `db:"embedding" json:"-"` // pgvector column
	TokenCount     int       `db:"token_count" json:"token_count"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// ScoredPassage is one retrieval hit: a stored passage annotated with its
// L2 distance from the query vector. Smaller distance means more similar.
type ScoredPassage struct {
	DocumentName string  `json:"document_name"`
	Text         string  `json:"text"`
	Distance     float64 `json:"distance"`
	TokenCount   int     `json:"token_count"`
}

// Message roles as stored in the session log.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one conversation turn in a session's append-only log.
// EvaluationScore maps criterion name to the raw integer the evaluator
// produced; empty when evaluation was skipped.
type Message struct {
	ID              int64          `db:"id" json:"id"`
	SessionID       string         `db:"session_id" json:"session_id"`
	Role            string         `db:"role" json:"role"`
	Content         string         `db:"content" json:"content"`
	EvaluationScore map[string]int `db:"evaluation_score" json:"evaluation_score,omitempty"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
}

// Admin is an operator account for the tenant-administration endpoints.
type Admin struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
