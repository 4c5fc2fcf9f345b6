package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/relaywright/gatewaycore/internal/gateway"
)

// ModelSummary is one entry in GET /v1/models: the basic fields §6.1 allows
// ("basic fields only; no extended-metadata mode").
type ModelSummary struct {
	ID           string
	ProviderKind gateway.ProviderKind
}

// NewPromptVersionInput is the create/update payload for a prompt version;
// it mirrors gateway.PromptVersion minus the ids the store assigns.
type NewPromptVersionInput struct {
	SystemTemplate  string
	UserTemplate    string
	Model           string
	ProviderKind    gateway.ProviderKind
	BaseURL         string
	SupportsJSON    bool
	SupportsJSONSch bool
	SupportsTools   bool
	IsReasoning     bool
	MaxTokens       int
	Temperature     float64
	JSONMode        bool
	JSONSchema      json.RawMessage
	PromptType      gateway.PromptType
	IsChat          bool
}

// CreatePrompt inserts a new, versionless prompt and returns its id.
func (s *Store) CreatePrompt(ctx context.Context, name string) (string, error) {
	id := uuid.NewString()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO prompts (id, name, current_version_id, created_at, updated_at) VALUES (?, ?, NULL, ?, ?)`,
		id, name, now, now,
	)
	if err != nil {
		return "", fmt.Errorf("create prompt: %w", err)
	}

	return id, nil
}

// CreatePromptVersion appends a new version to promptID and re-points its
// current version, per §3's "versions are append-only; updating a prompt
// creates a new version and re-points current" invariant. Both writes run
// in one transaction.
func (s *Store) CreatePromptVersion(ctx context.Context, promptID string, in NewPromptVersionInput) (*gateway.PromptVersion, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("create prompt version: %w", err)
	}
	defer tx.Rollback()

	var nextVersion int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM prompt_versions WHERE prompt_id = ?`, promptID,
	).Scan(&nextVersion); err != nil {
		return nil, fmt.Errorf("create prompt version: next version: %w", err)
	}

	id := uuid.NewString()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO prompt_versions
			(id, prompt_id, version, system_template, user_template, provider_kind, base_url,
			 model, max_tokens, temperature, json_mode, json_schema, supports_json,
			 supports_json_schema, supports_tools, is_reasoning, prompt_type, is_chat, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, promptID, nextVersion, in.SystemTemplate, nullIfEmpty(in.UserTemplate), in.ProviderKind,
		nullIfEmpty(in.BaseURL), in.Model, in.MaxTokens, in.Temperature, in.JSONMode,
		nullIfEmptyRaw(in.JSONSchema), in.SupportsJSON, in.SupportsJSONSch, in.SupportsTools,
		in.IsReasoning, in.PromptType, in.IsChat, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("create prompt version: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE prompts SET current_version_id = ?, updated_at = ? WHERE id = ?`, id, time.Now().UTC(), promptID,
	); err != nil {
		return nil, fmt.Errorf("create prompt version: repoint current: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("create prompt version: %w", err)
	}

	return &gateway.PromptVersion{
		ID:              id,
		PromptID:        promptID,
		Version:         nextVersion,
		SystemTemplate:  in.SystemTemplate,
		UserTemplate:    in.UserTemplate,
		Model:           in.Model,
		ProviderKind:    in.ProviderKind,
		BaseURL:         in.BaseURL,
		SupportsJSON:    in.SupportsJSON,
		SupportsJSONSch: in.SupportsJSONSch,
		SupportsTools:   in.SupportsTools,
		IsReasoning:     in.IsReasoning,
		MaxTokens:       in.MaxTokens,
		Temperature:     in.Temperature,
		JSONMode:        in.JSONMode,
		JSONSchema:      in.JSONSchema,
		PromptType:      in.PromptType,
		IsChat:          in.IsChat,
	}, nil
}

// ListModels returns the distinct (model, provider_kind) pairs across every
// prompt's current version, for GET /v1/models.
func (s *Store) ListModels(ctx context.Context) ([]ModelSummary, error) {
	const q = `
		SELECT DISTINCT pv.model, pv.provider_kind
		FROM prompts p
		JOIN prompt_versions pv ON pv.id = p.current_version_id
		ORDER BY pv.model ASC`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	defer rows.Close()

	var models []ModelSummary

	for rows.Next() {
		var m ModelSummary
		if err := rows.Scan(&m.ID, &m.ProviderKind); err != nil {
			return nil, fmt.Errorf("scan model: %w", err)
		}

		models = append(models, m)
	}

	return models, rows.Err()
}

// CreateEvalInput inserts a new evaluation input bound to promptID.
func (s *Store) CreateEvalInput(ctx context.Context, promptID, name string, systemContext json.RawMessage, userContent string) (string, error) {
	id := uuid.NewString()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO eval_inputs (id, prompt_id, name, system_context, user_content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, promptID, name, nullIfEmptyRaw(systemContext), userContent, time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("create eval input: %w", err)
	}

	return id, nil
}

// GetPrompt fetches a prompt's bare metadata (id, name, current version id).
func (s *Store) GetPrompt(ctx context.Context, promptID string) (id, name, currentVersionID string, err error) {
	var cv sql.NullString

	err = s.db.QueryRowContext(ctx,
		`SELECT id, name, current_version_id FROM prompts WHERE id = ?`, promptID,
	).Scan(&id, &name, &cv)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", "", "", fmt.Errorf("prompt %s: %w", promptID, ErrNotFound)
		}

		return "", "", "", fmt.Errorf("get prompt: %w", err)
	}

	return id, name, cv.String, nil
}
