package store

import (
	"context"
	"database/sql"
	"errors"

	sq "github.com/Masterminds/squirrel"

	"github.com/swisscast/kaltura-migration/internal/models"
)

// ErrFindingNotFound is returned when a finding lookup matches nothing.
var ErrFindingNotFound = errors.New("finding not found")

const findingColumns = "id, tblname, colname, resid, url, replaced, course"

// FindingStore persists scan results in the migration_urls table.
type FindingStore struct {
	db *sql.DB
}

func NewFindingStore(db *sql.DB) *FindingStore {
	return &FindingStore{db: db}
}

type ListOption func(sq.SelectBuilder) sq.SelectBuilder

// ByCourse restricts findings to one owning course.
func ByCourse(course int64) ListOption {
	return func(b sq.SelectBuilder) sq.SelectBuilder {
		return b.Where(sq.Eq{"course": course})
	}
}

// Unreplaced keeps only findings not yet rewritten.
func Unreplaced() ListOption {
	return func(b sq.SelectBuilder) sq.SelectBuilder {
		return b.Where(sq.Eq{"replaced": false})
	}
}

func WithLimit(limit uint64) ListOption {
	return func(b sq.SelectBuilder) sq.SelectBuilder {
		return b.Limit(limit)
	}
}

func WithOffset(offset uint64) ListOption {
	return func(b sq.SelectBuilder) sq.SelectBuilder {
		return b.Offset(offset)
	}
}

func (s *FindingStore) List(ctx context.Context, opts ...ListOption) ([]models.Finding, error) {
	builder := sq.Select(findingColumns).From("migration_urls").OrderBy("id")
	for _, opt := range opts {
		builder = opt(builder)
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

	var findings []models.Finding
	for rows.Next() {
		var f models.Finding
		if err := rows.Scan(&f.ID, &f.Table, &f.Column, &f.RecordID, &f.URL, &f.Replaced, &f.Course); err != nil {
			return nil, err
		}
		findings = append(findings, f)
	}
	return findings, rows.Err()
}

func (s *FindingStore) Count(ctx context.Context, opts ...ListOption) (int64, error) {
	builder := sq.Select("COUNT(*)").From("migration_urls")
	for _, opt := range opts {
		builder = opt(builder)
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return 0, err
	}
	var count int64
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&count)
	return count, err
}

func (s *FindingStore) CountReplaced(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM migration_urls WHERE replaced`).Scan(&count)
	return count, err
}

// Courses lists the distinct course ids that own at least one finding,
// including the sentinel regions.
func (s *FindingStore) Courses(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT course FROM migration_urls ORDER BY course`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var courses []int64
	for rows.Next() {
		var c int64
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

// BatchInsert inserts scan results. Duplicate (table, column, record, url)
// tuples are skipped so a re-run over unchanged content stays idempotent.
func (s *FindingStore) BatchInsert(ctx context.Context, findings []models.Finding) error {
	if len(findings) == 0 {
		return nil
	}
	builder := sq.Insert("migration_urls").
		Columns("tblname", "colname", "resid", "url", "replaced", "course").
		Suffix("ON CONFLICT DO NOTHING")
	for _, f := range findings {
		builder = builder.Values(f.Table, f.Column, f.RecordID, f.URL, f.Replaced, f.Course)
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

// MarkReplaced flags one finding as rewritten. Only called after a real
// host field write succeeded.
func (s *FindingStore) MarkReplaced(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE migration_urls SET replaced = true WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrFindingNotFound
	}
	return nil
}

// DeleteAll removes every finding. The scan calls this first so its
// results always reflect the current host content.
func (s *FindingStore) DeleteAll(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM migration_urls`)
	return err
}
