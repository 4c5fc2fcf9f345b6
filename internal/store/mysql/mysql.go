// Package mysql is the gateway's own persistence layer: a hand-written
// database/sql store over go-sql-driver/mysql, implementing the gateway
// package's PromptStore, TraceStore and EvalStore outbound contracts plus
// the prompt/eval-input CRUD those contracts assume exists somewhere.
//
// See DESIGN.md for why this is hand-written SQL rather than an ORM.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Config controls the pool's DSN and connection limits.
type Config struct {
	DSN             string        `conf:"dsn"               yaml:"dsn"               json:"dsn"`
	MaxOpenConns    int           `conf:"max_open_conns"    yaml:"max_open_conns"    json:"max_open_conns"`
	MaxIdleConns    int           `conf:"max_idle_conns"    yaml:"max_idle_conns"    json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `conf:"conn_max_lifetime" yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
}

// Open dials the MySQL DSN in cfg and verifies it with a ping.
func Open(cfg Config) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}

	return db, nil
}

// schema is the gateway's own table set (§3.1), created idempotently at
// startup rather than via a migration tool — the teacher's ent-generated
// migration (migrate.WithGlobalUniqueID, schemahook) has no equivalent here
// since there is no ent client; see DESIGN.md.
const schema = `
CREATE TABLE IF NOT EXISTS prompts (
	id                 VARCHAR(64) PRIMARY KEY,
	name               VARCHAR(255) NOT NULL,
	current_version_id VARCHAR(64),
	created_at         DATETIME NOT NULL,
	updated_at         DATETIME NOT NULL
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

CREATE TABLE IF NOT EXISTS prompt_versions (
	id                    VARCHAR(64) PRIMARY KEY,
	prompt_id             VARCHAR(64) NOT NULL,
	version               INT NOT NULL,
	system_template       MEDIUMTEXT,
	user_template         MEDIUMTEXT,
	provider_kind         VARCHAR(32) NOT NULL,
	base_url              VARCHAR(512),
	model                 VARCHAR(255) NOT NULL,
	max_tokens            INT NOT NULL DEFAULT 0,
	temperature           DOUBLE NOT NULL DEFAULT 0,
	json_mode             TINYINT(1) NOT NULL DEFAULT 0,
	json_schema           JSON,
	supports_json         TINYINT(1) NOT NULL DEFAULT 0,
	supports_json_schema  TINYINT(1) NOT NULL DEFAULT 0,
	supports_tools        TINYINT(1) NOT NULL DEFAULT 0,
	is_reasoning          TINYINT(1) NOT NULL DEFAULT 0,
	prompt_type           VARCHAR(32) NOT NULL DEFAULT 'static',
	is_chat               TINYINT(1) NOT NULL DEFAULT 1,
	created_at            DATETIME NOT NULL,
	INDEX idx_prompt_versions_prompt_id (prompt_id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

CREATE TABLE IF NOT EXISTS eval_inputs (
	id             VARCHAR(64) PRIMARY KEY,
	prompt_id      VARCHAR(64) NOT NULL,
	name           VARCHAR(255),
	system_context JSON,
	user_content   MEDIUMTEXT,
	created_at     DATETIME NOT NULL,
	INDEX idx_eval_inputs_prompt_id (prompt_id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

CREATE TABLE IF NOT EXISTS trace_records (
	id                   VARCHAR(64) PRIMARY KEY,
	prompt_id            VARCHAR(64),
	model_id             VARCHAR(255),
	status               INT NOT NULL,
	input_tokens         INT,
	output_tokens        INT,
	reasoning_tokens     INT,
	request_body         JSON,
	raw_response         JSON,
	upstream_response_id VARCHAR(128),
	created_at           DATETIME NOT NULL,
	INDEX idx_trace_records_prompt_id (prompt_id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

CREATE TABLE IF NOT EXISTS eval_runs (
	id                VARCHAR(64) PRIMARY KEY,
	run_id            VARCHAR(64) NOT NULL,
	prompt_version_id VARCHAR(64) NOT NULL,
	eval_id           VARCHAR(64) NOT NULL,
	output            MEDIUMTEXT,
	score             INT,
	created_at        DATETIME NOT NULL,
	INDEX idx_eval_runs_version (prompt_version_id),
	INDEX idx_eval_runs_run_id (run_id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
`

// Migrate creates the gateway's tables if they do not already exist. It is
// safe to call on every startup.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range splitStatements(schema) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	return nil
}

// splitStatements splits a semicolon-delimited DDL block into individual
// statements; good enough for the fixed schema above, which never embeds a
// literal semicolon.
func splitStatements(block string) []string {
	var (
		stmts []string
		cur   []byte
	)

	for i := 0; i < len(block); i++ {
		c := block[i]
		if c == ';' {
			if s := trimSpace(string(cur)); s != "" {
				stmts = append(stmts, s)
			}

			cur = cur[:0]

			continue
		}

		cur = append(cur, c)
	}

	if s := trimSpace(string(cur)); s != "" {
		stmts = append(stmts, s)
	}

	return stmts
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && isSpace(s[start]) {
		start++
	}

	for end > start && isSpace(s[end-1]) {
		end--
	}

	return s[start:end]
}

func isSpace(b byte) bool { return b == ' ' || b == '\t' || b == '\n' || b == '\r' }
