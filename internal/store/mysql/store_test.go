package mysql

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaywright/gatewaycore/internal/gateway"
)

func TestStore_GetCurrentVersion(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cols := []string{
		"id", "prompt_id", "version", "system_template", "user_template",
		"provider_kind", "base_url", "model", "max_tokens", "temperature",
		"json_mode", "json_schema", "supports_json", "supports_json_schema",
		"supports_tools", "is_reasoning", "prompt_type", "is_chat",
	}

	mock.ExpectQuery("SELECT pv.id, pv.prompt_id").
		WithArgs("prompt-1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			"v1", "prompt-1", 1, "system", "", "openai", "", "gpt-4o", 512, 0.7,
			false, nil, true, false, true, false, "static", true,
		))

	store := New(db)

	v, err := store.GetCurrentVersion("prompt-1")
	require.NoError(t, err)
	assert.Equal(t, "v1", v.ID)
	assert.Equal(t, 1, v.Version)
	assert.Equal(t, "gpt-4o", v.Model)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetCurrentVersion_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT pv.id, pv.prompt_id").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	store := New(db)

	_, err = store.GetCurrentVersion("missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_SaveTraceRecord(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO trace_records").
		WillReturnResult(sqlmock.NewResult(1, 1))

	store := New(db)

	rec := &gateway.TraceRecord{PromptID: "prompt-1", ModelID: "gpt-4o", Status: 200, UpstreamResponseID: "resp-1"}

	logID, err := store.SaveTraceRecord(context.Background(), rec)
	require.NoError(t, err)
	assert.NotEmpty(t, logID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetEvalPerformance(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT AVG").
		WithArgs("prompt-1").
		WillReturnRows(sqlmock.NewRows([]string{"avg", "scored", "total"}).AddRow(4.5, 2, 3))

	store := New(db)

	perf, err := store.GetEvalPerformance(context.Background(), "prompt-1")
	require.NoError(t, err)
	assert.Equal(t, 4.5, perf.AverageScore)
	assert.Equal(t, 2, perf.ScoredRunCount)
	assert.Equal(t, 3, perf.TotalRunCount)
}

func TestStore_UpdateEvalRunScore_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("UPDATE eval_runs").
		WithArgs(9, "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	store := New(db)

	err = store.UpdateEvalRunScore(context.Background(), "missing", 9)
	require.ErrorIs(t, err, ErrNotFound)
}
