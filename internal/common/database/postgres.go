// internal/common/database/postgres.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"sme-cyber-assessment/internal/common/config"

	_ "github.com/lib/pq"
)

// Schema holds the tables written by the record-assessment worker. A session
// may be submitted again after a reset, so reports are unique per process
// instance rather than per session.
const Schema = `
CREATE TABLE IF NOT EXISTS assessment_reports (
	id                   UUID PRIMARY KEY,
	session_id           TEXT NOT NULL,
	process_instance_key BIGINT NOT NULL DEFAULT 0,
	company_name    TEXT NOT NULL,
	person_name     TEXT NOT NULL,
	sector          TEXT,
	employee_range  TEXT,
	region          TEXT,
	rules_version   TEXT NOT NULL,
	overall_band    TEXT NOT NULL,
	maturity        INTEGER NOT NULL,
	dependency      TEXT NOT NULL,
	answers         JSONB NOT NULL,
	report          JSONB NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

ALTER TABLE assessment_reports ADD COLUMN IF NOT EXISTS process_instance_key BIGINT NOT NULL DEFAULT 0;
ALTER TABLE assessment_reports DROP CONSTRAINT IF EXISTS assessment_reports_session_id_key;
CREATE UNIQUE INDEX IF NOT EXISTS assessment_reports_submission_idx
	ON assessment_reports (session_id, process_instance_key);

CREATE TABLE IF NOT EXISTS audit_log (
	id          BIGSERIAL PRIMARY KEY,
	entity_type TEXT NOT NULL,
	entity_id   TEXT NOT NULL,
	action      TEXT NOT NULL,
	details     JSONB,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// PostgresClient wraps the SQL database connection
type PostgresClient struct {
	DB *sql.DB
}

// NewPostgres creates a new PostgreSQL client
func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresClient{DB: db}, nil
}

// Ping tests the database connection
func (c *PostgresClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

// EnsureSchema creates the report tables when they are missing.
func (c *PostgresClient) EnsureSchema(ctx context.Context) error {
	if _, err := c.DB.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
