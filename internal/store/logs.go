package store

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"

	"github.com/swisscast/kaltura-migration/internal/models"
)

const logColumns = "id, execution, testing, level, time, entry, message, code, id1, id2"

// LogStore persists the append-only audit trail in migration_logs.
// Entries are never updated or deleted after insert.
type LogStore struct {
	db *sql.DB
}

func NewLogStore(db *sql.DB) *LogStore {
	return &LogStore{db: db}
}

// MaxExecution returns the highest recorded execution id, 0 when the log
// is empty. A new run uses MaxExecution()+1.
func (s *LogStore) MaxExecution(ctx context.Context) (int64, error) {
	var max sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(execution) FROM migration_logs`).Scan(&max)
	if err != nil {
		return 0, err
	}
	return max.Int64, nil
}

func (s *LogStore) Append(ctx context.Context, entry models.LogEntry) error {
	query, args, err := sq.Insert("migration_logs").
		Columns("execution", "testing", "level", "time", "entry", "message", "code", "id1", "id2").
		Values(entry.Execution, entry.Testing, entry.Level, entry.Time,
			entry.Entry, entry.Message, entry.Code, entry.ID1, entry.ID2).
		ToSql()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

// List returns entries in insert order, optionally restricted to one
// execution (0 means all).
func (s *LogStore) List(ctx context.Context, execution int64) ([]models.LogEntry, error) {
	builder := sq.Select(logColumns).From("migration_logs").OrderBy("id")
	if execution > 0 {
		builder = builder.Where(sq.Eq{"execution": execution})
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.LogEntry
	for rows.Next() {
		var e models.LogEntry
		var code, id1, id2 sql.NullString
		if err := rows.Scan(&e.ID, &e.Execution, &e.Testing, &e.Level, &e.Time,
			&e.Entry, &e.Message, &code, &id1, &id2); err != nil {
			return nil, err
		}
		e.Code, e.ID1, e.ID2 = code.String, id1.String, id2.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
