package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/pgvector/pgvector-go"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/sahay-ai/sahay/internal/config"
	"github.com/sahay-ai/sahay/internal/core"
	"github.com/sahay-ai/sahay/internal/models"
)

type DatabaseClient struct {
	db *sql.DB
}

// NewDatabaseClient opens the Postgres pool, pings it and runs the schema
// bootstrap. The returned Store is safe for concurrent use.
func NewDatabaseClient(ctx context.Context, cfg *config.Config) (core.Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	dsn := cfg.DatabaseURL
	if cfg.SslCertPath != "" {
		u, err := url.Parse(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid DATABASE_URL: %w", err)
		}
		q := u.Query()
		q.Set("sslmode", "verify-ca")
		q.Set("sslrootcert", cfg.SslCertPath)
		u.RawQuery = q.Encode()
		dsn = u.String()
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Organizations

func (c *DatabaseClient) CreateOrganization(ctx context.Context, org *models.Organization) error {
	if org == nil {
		return errors.New("nil organization")
	}
	prompts, err := evaluatorPromptsJSON(org.EvaluatorPrompts)
	if err != nil {
		return err
	}
	const q = `
		INSERT INTO organizations
			(id, name, api_key, system_prompt, examples_text, evaluator_prompts, model_api_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
	`
	_, err = c.db.ExecContext(ctx, q,
		org.ID, org.Name, org.APIKey, org.SystemPrompt, org.ExamplesText, prompts, org.ModelAPIKey)
	return err
}

const organizationColumns = `id, name, api_key, system_prompt, examples_text, evaluator_prompts, model_api_key, created_at, updated_at`

func (c *DatabaseClient) OrganizationByAPIKey(ctx context.Context, apiKey string) (*models.Organization, error) {
	q := `SELECT ` + organizationColumns + ` FROM organizations WHERE api_key = $1`
	return c.scanOrganization(c.db.QueryRowContext(ctx, q, apiKey))
}

func (c *DatabaseClient) ListOrganizations(ctx context.Context) ([]models.Organization, error) {
	q := `SELECT ` + organizationColumns + ` FROM organizations ORDER BY created_at ASC`
	rows, err := c.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Organization
	for rows.Next() {
		org, err := c.scanOrganization(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *org)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (c *DatabaseClient) scanOrganization(row rowScanner) (*models.Organization, error) {
	var (
		org     models.Organization
		prompts []byte
	)
	err := row.Scan(
		&org.ID, &org.Name, &org.APIKey, &org.SystemPrompt, &org.ExamplesText,
		&prompts, &org.ModelAPIKey, &org.CreatedAt, &org.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(prompts) > 0 {
		if err := json.Unmarshal(prompts, &org.EvaluatorPrompts); err != nil {
			return nil, fmt.Errorf("decode evaluator_prompts: %w", err)
		}
	}
	return &org, nil
}

func (c *DatabaseClient) UpdateOrganizationSystemPrompt(ctx context.Context, orgID, prompt string) error {
	return c.updateOrganizationColumn(ctx, orgID, "system_prompt", prompt)
}

func (c *DatabaseClient) UpdateOrganizationExamples(ctx context.Context, orgID, examples string) error {
	return c.updateOrganizationColumn(ctx, orgID, "examples_text", examples)
}

func (c *DatabaseClient) UpdateOrganizationModelKey(ctx context.Context, orgID, key string) error {
	return c.updateOrganizationColumn(ctx, orgID, "model_api_key", key)
}

func (c *DatabaseClient) UpdateOrganizationAPIKey(ctx context.Context, orgID, apiKey string) error {
	return c.updateOrganizationColumn(ctx, orgID, "api_key", apiKey)
}

func (c *DatabaseClient) UpdateOrganizationEvaluators(ctx context.Context, orgID string, prompts map[string]string) error {
	encoded, err := evaluatorPromptsJSON(prompts)
	if err != nil {
		return err
	}
	const q = `UPDATE organizations SET evaluator_prompts = $2, updated_at = now() WHERE id = $1`
	return c.execExpectingRow(ctx, q, "organization", orgID, encoded)
}

func (c *DatabaseClient) updateOrganizationColumn(ctx context.Context, orgID, column, value string) error {
	q := fmt.Sprintf(`UPDATE organizations SET %s = $2, updated_at = now() WHERE id = $1`, column)
	return c.execExpectingRow(ctx, q, "organization", orgID, value)
}

func (c *DatabaseClient) execExpectingRow(ctx context.Context, q, entity, id string, args ...any) error {
	res, err := c.db.ExecContext(ctx, q, append([]any{id}, args...)...)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

func evaluatorPromptsJSON(prompts map[string]string) ([]byte, error) {
	if prompts == nil {
		prompts = map[string]string{}
	}
	encoded, err := json.Marshal(prompts)
	if err != nil {
		return nil, fmt.Errorf("encode evaluator_prompts: %w", err)
	}
	return encoded, nil
}

// Knowledge categories

func (c *DatabaseClient) CreateCategory(ctx context.Context, cat *models.KnowledgeCategory) error {
	if cat == nil {
		return errors.New("nil category")
	}
	const q = `
		INSERT INTO knowledge_categories (id, organization_id, external_id, name, created_at)
		VALUES ($1, $2, $3, $4, now())
	`
	_, err := c.db.ExecContext(ctx, q, cat.ID, cat.OrganizationID, cat.ExternalID, cat.Name)
	return err
}

func (c *DatabaseClient) CategoryByExternalID(ctx context.Context, orgID, externalID string) (*models.KnowledgeCategory, error) {
	const q = `
		SELECT id, organization_id, external_id, name, created_at
		FROM knowledge_categories
		WHERE organization_id = $1 AND external_id = $2
	`
	var cat models.KnowledgeCategory
	err := c.db.QueryRowContext(ctx, q, orgID, externalID).Scan(
		&cat.ID, &cat.OrganizationID, &cat.ExternalID, &cat.Name, &cat.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cat, nil
}

func (c *DatabaseClient) ListCategories(ctx context.Context, orgID string) ([]models.KnowledgeCategory, error) {
	const q = `
		SELECT id, organization_id, external_id, name, created_at
		FROM knowledge_categories
		WHERE organization_id = $1
		ORDER BY created_at ASC
	`
	rows, err := c.db.QueryContext(ctx, q, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.KnowledgeCategory
	for rows.Next() {
		var cat models.KnowledgeCategory
		if err := rows.Scan(&cat.ID, &cat.OrganizationID, &cat.ExternalID, &cat.Name, &cat.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, cat)
	}
	return out, rows.Err()
}

// DeleteCategory removes a category; its files and their embeddings cascade.
func (c *DatabaseClient) DeleteCategory(ctx context.Context, orgID, externalID string) error {
	const q = `DELETE FROM knowledge_categories WHERE organization_id = $1 AND external_id = $2`
	res, err := c.db.ExecContext(ctx, q, orgID, externalID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("category not found: %s", externalID)
	}
	return nil
}

// Files

func (c *DatabaseClient) CreateFile(ctx context.Context, file *models.File) error {
	if file == nil {
		return errors.New("nil file")
	}
	const q = `
		INSERT INTO files (id, organization_id, category_id, external_id, name, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
	`
	_, err := c.db.ExecContext(ctx, q,
		file.ID, file.OrganizationID, nullableID(file.CategoryID), file.ExternalID, file.Name)
	return err
}

func (c *DatabaseClient) ListFiles(ctx context.Context, orgID string) ([]models.File, error) {
	const q = `
		SELECT id, organization_id, COALESCE(category_id::text, ''), external_id, name, created_at
		FROM files
		WHERE organization_id = $1
		ORDER BY created_at DESC
	`
	rows, err := c.db.QueryContext(ctx, q, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.File
	for rows.Next() {
		var f models.File
		if err := rows.Scan(&f.ID, &f.OrganizationID, &f.CategoryID, &f.ExternalID, &f.Name, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Embeddings

func (c *DatabaseClient) InsertEmbedding(ctx context.Context, emb *models.Embedding) error {
	if emb == nil {
		return errors.New("nil embedding")
	}
	const q = `
		INSERT INTO embeddings
			(id, organization_id, file_id, document_name, text, embedding, token_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
	`
	_, err := c.db.ExecContext(ctx, q,
		emb.ID, emb.OrganizationID, nullableID(emb.FileID), emb.DocumentName, emb.Text,
		pgvector.NewVector(emb.Vector), emb.TokenCount)
	return err
}

// SearchEmbeddings returns the tenant's passages ordered by ascending L2
// distance from the query vector, optionally restricted to one category
// through the owning file. No result cap and no distance cutoff: truncation
// is the token budget's job.
func (c *DatabaseClient) SearchEmbeddings(ctx context.Context, orgID, categoryID string, queryVec []float32) ([]models.ScoredPassage, error) {
	const q = `
		SELECT e.document_name, e.text, e.embedding <-> $2 AS distance, e.token_count
		FROM embeddings e
		WHERE e.organization_id = $1
		  AND ($3::uuid IS NULL OR e.file_id IN (
			SELECT id FROM files WHERE category_id = $3::uuid
		  ))
		ORDER BY distance ASC
	`
	rows, err := c.db.QueryContext(ctx, q, orgID, pgvector.NewVector(queryVec), nullableID(categoryID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ScoredPassage
	for rows.Next() {
		var p models.ScoredPassage
		if err := rows.Scan(&p.DocumentName, &p.Text, &p.Distance, &p.TokenCount); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Messages

// AppendMessages inserts the rows in one transaction, preserving order.
func (c *DatabaseClient) AppendMessages(ctx context.Context, msgs []models.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}

	const q = `
		INSERT INTO message_store (session_id, role, content, evaluation_score, created_at)
		VALUES ($1, $2, $3, $4, now())
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := range msgs {
		m := &msgs[i]
		scores := m.EvaluationScore
		if scores == nil {
			scores = map[string]int{}
		}
		encoded, err := json.Marshal(scores)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("encode evaluation_score: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, m.SessionID, m.Role, m.Content, encoded); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (c *DatabaseClient) HistoryBySession(ctx context.Context, sessionID string) ([]models.Message, error) {
	const q = `
		SELECT id, session_id, role, content, evaluation_score, created_at
		FROM message_store
		WHERE session_id = $1
		ORDER BY id ASC
	`
	rows, err := c.db.QueryContext(ctx, q, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		var (
			m      models.Message
			scores []byte
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &scores, &m.CreatedAt); err != nil {
			return nil, err
		}
		if len(scores) > 0 {
			if err := json.Unmarshal(scores, &m.EvaluationScore); err != nil {
				return nil, fmt.Errorf("decode evaluation_score: %w", err)
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Admins

func (c *DatabaseClient) CreateAdmin(ctx context.Context, admin *models.Admin) error {
	if admin == nil {
		return errors.New("nil admin")
	}
	const q = `
		INSERT INTO admins (id, email, password_hash, created_at)
		VALUES ($1, $2, $3, now())
	`
	_, err := c.db.ExecContext(ctx, q, admin.ID, admin.Email, admin.PasswordHash)
	return err
}

func (c *DatabaseClient) AdminByEmail(ctx context.Context, email string) (*models.Admin, error) {
	const q = `
		SELECT id, email, password_hash, created_at
		FROM admins WHERE email = $1
	`
	var a models.Admin
	err := c.db.QueryRowContext(ctx, q, email).Scan(&a.ID, &a.Email, &a.PasswordHash, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// nullableID maps an empty id string to SQL NULL.
func nullableID(id string) any {
	if id == "" {
		return nil
	}
	return id
}
