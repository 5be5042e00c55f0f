package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Драйвер Postgres
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS api_events (
	id               BIGSERIAL PRIMARY KEY,
	timestamp        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	endpoint         TEXT NOT NULL,
	method           TEXT NOT NULL,
	status_code      INTEGER NOT NULL,
	response_time_ms DOUBLE PRECISION,
	client_id        TEXT NOT NULL,
	error_message    TEXT,
	success          BOOLEAN NOT NULL DEFAULT TRUE
);
CREATE INDEX IF NOT EXISTS idx_api_events_timestamp ON api_events (timestamp);
CREATE INDEX IF NOT EXISTS idx_api_events_client_id ON api_events (client_id);
CREATE INDEX IF NOT EXISTS idx_api_events_endpoint ON api_events (endpoint);`

// Open открывает пул соединений через pgx stdlib. Соединение проверяет Ping в main.
func Open(connString string, maxConns, minConns int32) (*sql.DB, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if maxConns <= 0 {
		maxConns = 25
	}
	if minConns <= 0 || minConns > maxConns {
		minConns = maxConns
	}
	db.SetMaxOpenConns(int(maxConns))
	db.SetMaxIdleConns(int(minConns))
	db.SetConnMaxLifetime(5 * time.Minute)
	return db, nil
}

// EnsureSchema создает таблицу событий, если ее еще нет.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("postgres: failed to create schema: %w", err)
	}
	return nil
}
