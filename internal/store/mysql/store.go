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

// Store is the concrete PromptStore/TraceStore/EvalStore implementation
// backing the gateway core, plus the prompt/eval-input CRUD the HTTP
// boundary needs to manage them (§6: "PromptStore: get(prompt_id), plus
// CRUD for prompt/version/eval/tool").
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store { return &Store{db: db} }

// ErrNotFound is returned by single-row lookups that found nothing.
var ErrNotFound = errors.New("mysql: not found")

// --- gateway.PromptStore ---

// GetCurrentVersion implements gateway.PromptStore.
func (s *Store) GetCurrentVersion(promptID string) (*gateway.PromptVersion, error) {
	return s.getCurrentVersion(context.Background(), promptID)
}

func (s *Store) getCurrentVersion(ctx context.Context, promptID string) (*gateway.PromptVersion, error) {
	const q = `
		SELECT pv.id, pv.prompt_id, pv.version, pv.system_template, pv.user_template,
		       pv.provider_kind, pv.base_url, pv.model, pv.max_tokens, pv.temperature,
		       pv.json_mode, pv.json_schema, pv.supports_json, pv.supports_json_schema,
		       pv.supports_tools, pv.is_reasoning, pv.prompt_type, pv.is_chat
		FROM prompts p
		JOIN prompt_versions pv ON pv.id = p.current_version_id
		WHERE p.id = ?`

	row := s.db.QueryRowContext(ctx, q, promptID)

	v, err := scanPromptVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("prompt version for prompt %s: %w", promptID, ErrNotFound)
	}

	if err != nil {
		return nil, err
	}

	return v, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPromptVersion(row rowScanner) (*gateway.PromptVersion, error) {
	var (
		v           gateway.PromptVersion
		baseURL     sql.NullString
		userTmpl    sql.NullString
		jsonSchema  sql.NullString
	)

	err := row.Scan(
		&v.ID, &v.PromptID, &v.Version, &v.SystemTemplate, &userTmpl,
		&v.ProviderKind, &baseURL, &v.Model, &v.MaxTokens, &v.Temperature,
		&v.JSONMode, &jsonSchema, &v.SupportsJSON, &v.SupportsJSONSch,
		&v.SupportsTools, &v.IsReasoning, &v.PromptType, &v.IsChat,
	)
	if err != nil {
		return nil, err
	}

	v.UserTemplate = userTmpl.String
	v.BaseURL = baseURL.String

	if jsonSchema.Valid && jsonSchema.String != "" {
		v.JSONSchema = json.RawMessage(jsonSchema.String)
	}

	return &v, nil
}

// --- gateway.TraceStore ---

// SaveTraceRecord implements gateway.TraceStore.
func (s *Store) SaveTraceRecord(ctx context.Context, rec *gateway.TraceRecord) (string, error) {
	id := uuid.NewString()

	const q = `
		INSERT INTO trace_records
			(id, prompt_id, model_id, status, input_tokens, output_tokens, reasoning_tokens,
			 request_body, raw_response, upstream_response_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, q,
		id, nullIfEmpty(rec.PromptID), rec.ModelID, rec.Status,
		rec.InputTokens, rec.OutputTokens, rec.ReasoningTokens,
		nullIfEmptyRaw(rec.RequestBody), nullIfEmptyRaw(rec.RawResponse),
		rec.UpstreamResponseID, time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("save trace record: %w", err)
	}

	return id, nil
}

// --- gateway.EvalStore ---

// GetPromptVersion implements gateway.EvalStore.
func (s *Store) GetPromptVersion(ctx context.Context, promptVersionID string) (*gateway.PromptVersion, error) {
	const q = `
		SELECT id, prompt_id, version, system_template, user_template,
		       provider_kind, base_url, model, max_tokens, temperature,
		       json_mode, json_schema, supports_json, supports_json_schema,
		       supports_tools, is_reasoning, prompt_type, is_chat
		FROM prompt_versions WHERE id = ?`

	v, err := scanPromptVersion(s.db.QueryRowContext(ctx, q, promptVersionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("prompt version %s: %w", promptVersionID, ErrNotFound)
	}

	if err != nil {
		return nil, err
	}

	return v, nil
}

// ListEvalInputs implements gateway.EvalStore.
func (s *Store) ListEvalInputs(ctx context.Context, promptID string) ([]*gateway.EvalInput, error) {
	const q = `
		SELECT id, prompt_id, name, system_context, user_content
		FROM eval_inputs WHERE prompt_id = ? ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, q, promptID)
	if err != nil {
		return nil, fmt.Errorf("list eval inputs: %w", err)
	}
	defer rows.Close()

	var inputs []*gateway.EvalInput

	for rows.Next() {
		var (
			in     gateway.EvalInput
			sysCtx sql.NullString
		)

		if err := rows.Scan(&in.ID, &in.PromptID, &in.Name, &sysCtx, &in.UserContent); err != nil {
			return nil, fmt.Errorf("scan eval input: %w", err)
		}

		if sysCtx.Valid && sysCtx.String != "" {
			in.SystemContext = json.RawMessage(sysCtx.String)
		}

		inputs = append(inputs, &in)
	}

	return inputs, rows.Err()
}

// SaveEvalRun implements gateway.EvalStore.
func (s *Store) SaveEvalRun(ctx context.Context, run *gateway.EvalRun) error {
	const q = `
		INSERT INTO eval_runs (id, run_id, prompt_version_id, eval_id, output, score, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, q,
		uuid.NewString(), run.RunID, run.PromptVersionID, run.EvalID, run.Output, run.Score, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save eval run: %w", err)
	}

	return nil
}

// GetEvalRun implements gateway.EvalStore (§4.6.1).
func (s *Store) GetEvalRun(ctx context.Context, runID, evalID string) (*gateway.EvalRun, bool, error) {
	const q = `
		SELECT run_id, prompt_version_id, eval_id, output, score
		FROM eval_runs WHERE run_id = ? AND eval_id = ?`

	var (
		run   gateway.EvalRun
		score sql.NullInt64
	)

	err := s.db.QueryRowContext(ctx, q, runID, evalID).Scan(
		&run.RunID, &run.PromptVersionID, &run.EvalID, &run.Output, &score,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, fmt.Errorf("get eval run: %w", err)
	}

	if score.Valid {
		v := int(score.Int64)
		run.Score = &v
	}

	return &run, true, nil
}

// ListEvalRunsByVersion implements gateway.EvalStore (§4.6.1).
func (s *Store) ListEvalRunsByVersion(ctx context.Context, promptVersionID string) ([]*gateway.EvalRun, error) {
	const q = `
		SELECT run_id, prompt_version_id, eval_id, output, score
		FROM eval_runs WHERE prompt_version_id = ? ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, q, promptVersionID)
	if err != nil {
		return nil, fmt.Errorf("list eval runs: %w", err)
	}
	defer rows.Close()

	var runs []*gateway.EvalRun

	for rows.Next() {
		var (
			run   gateway.EvalRun
			score sql.NullInt64
		)

		if err := rows.Scan(&run.RunID, &run.PromptVersionID, &run.EvalID, &run.Output, &score); err != nil {
			return nil, fmt.Errorf("scan eval run: %w", err)
		}

		if score.Valid {
			v := int(score.Int64)
			run.Score = &v
		}

		runs = append(runs, &run)
	}

	return runs, rows.Err()
}

// GetEvalPerformance implements gateway.EvalStore (§4.6.1): aggregate average
// score per prompt, computed in SQL rather than in Go.
func (s *Store) GetEvalPerformance(ctx context.Context, promptID string) (*gateway.EvalPerformance, error) {
	const q = `
		SELECT AVG(er.score), COUNT(er.score), COUNT(*)
		FROM eval_runs er
		JOIN prompt_versions pv ON pv.id = er.prompt_version_id
		WHERE pv.prompt_id = ?`

	var (
		avg   sql.NullFloat64
		sc    int
		total int
	)

	if err := s.db.QueryRowContext(ctx, q, promptID).Scan(&avg, &sc, &total); err != nil {
		return nil, fmt.Errorf("get eval performance: %w", err)
	}

	perf := &gateway.EvalPerformance{
		PromptID:       promptID,
		ScoredRunCount: sc,
		TotalRunCount:  total,
	}

	if avg.Valid {
		perf.AverageScore = avg.Float64
	}

	return perf, nil
}

// UpdateEvalRunScore implements gateway.EvalStore (§4.6.1).
func (s *Store) UpdateEvalRunScore(ctx context.Context, evalRunID string, score int) error {
	res, err := s.db.ExecContext(ctx, `UPDATE eval_runs SET score = ? WHERE id = ?`, score, evalRunID)
	if err != nil {
		return fmt.Errorf("update eval run score: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update eval run score: %w", err)
	}

	if n == 0 {
		return fmt.Errorf("eval run %s: %w", evalRunID, ErrNotFound)
	}

	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}

	return s
}

func nullIfEmptyRaw(b json.RawMessage) any {
	if len(b) == 0 {
		return nil
	}

	return []byte(b)
}
