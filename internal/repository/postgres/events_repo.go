package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/xela07ax/vehicleconnect-dashboard/internal/domain"
)

const eventColumns = "timestamp, endpoint, method, status_code, response_time_ms, client_id, error_message, success"

type EventRepo struct {
	db *sql.DB
}

func NewEventRepo(db *sql.DB) *EventRepo {
	return &EventRepo{db: db}
}

// Insert сохраняет одно событие и возвращает его с присвоенным id.
func (r *EventRepo) Insert(ctx context.Context, e domain.APIEvent) (domain.APIEvent, error) {
	query := `INSERT INTO api_events (` + eventColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`

	err := r.db.QueryRowContext(ctx, query,
		e.Timestamp, e.Endpoint, e.Method, e.StatusCode, e.ResponseTimeMs, e.ClientID, e.ErrorMessage, e.Success,
	).Scan(&e.ID)
	if err != nil {
		return domain.APIEvent{}, fmt.Errorf("postgres: failed to insert event: %w", err)
	}
	return e, nil
}

// WriteBatch сохраняет пачку событий одним INSERT.
func (r *EventRepo) WriteBatch(ctx context.Context, events []domain.APIEvent) error {
	if len(events) == 0 {
		return nil
	}

	// Количество колонок в таблице api_events (без id)
	const numFields = 8
	var sb strings.Builder
	vals := make([]any, 0, len(events)*numFields)

	// Динамически строим запрос для пакетной вставки
	for i, e := range events {
		if i > 0 {
			sb.WriteString(", ")
		}
		p := i * numFields
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			p+1, p+2, p+3, p+4, p+5, p+6, p+7, p+8)

		vals = append(vals,
			e.Timestamp, e.Endpoint, e.Method, e.StatusCode,
			e.ResponseTimeMs, e.ClientID, e.ErrorMessage, e.Success,
		)
	}

	query := "INSERT INTO api_events (" + eventColumns + ") VALUES " + sb.String()
	if _, err := r.db.ExecContext(ctx, query, vals...); err != nil {
		return fmt.Errorf("postgres: failed to write batch of %d events: %w", len(events), err)
	}
	return nil
}

// List возвращает последние события, новые первыми.
func (r *EventRepo) List(ctx context.Context, limit, skip int) ([]domain.APIEvent, error) {
	query := `SELECT id, ` + eventColumns + ` FROM api_events ORDER BY timestamp DESC LIMIT $1 OFFSET $2`

	rows, err := r.db.QueryContext(ctx, query, limit, skip)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to list events: %w", err)
	}
	defer rows.Close()

	events := make([]domain.APIEvent, 0, min(limit, 100))
	for rows.Next() {
		var (
			e       domain.APIEvent
			latency sql.NullFloat64
			errMsg  sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Endpoint, &e.Method, &e.StatusCode,
			&latency, &e.ClientID, &errMsg, &e.Success); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan event: %w", err)
		}
		e.ResponseTimeMs = latency.Float64
		if errMsg.Valid {
			msg := errMsg.String
			e.ErrorMessage = &msg
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
