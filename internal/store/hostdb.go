package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/swisscast/kaltura-migration/internal/models"
)

// ErrNoTables is returned when the host database exposes no tables at
// all. It is the only condition that short-circuits a scan.
var ErrNoTables = errors.New("host database has no tables")

// HostDB gives the engine introspective access to the host content
// database: table/column catalog, pattern scans over text columns and
// single-field reads and writes. It never owns the schema it touches.
type HostDB struct {
	db *sql.DB
}

func NewHostDB(db *sql.DB) *HostDB {
	return &HostDB{db: db}
}

// quoteIdent quotes an identifier that came from catalog introspection.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// ListTables returns the base tables of the main schema.
func (h *HostDB) ListTables(ctx context.Context) ([]string, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = 'main' AND table_type = 'BASE TABLE'
		ORDER BY table_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(tables) == 0 {
		return nil, ErrNoTables
	}
	return tables, nil
}

// TextColumns returns the character-typed columns of a table.
func (h *HostDB) TextColumns(ctx context.Context, table string) ([]string, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT column_name FROM information_schema.columns
		WHERE table_schema = 'main' AND table_name = ?
		  AND data_type IN ('VARCHAR', 'TEXT', 'CHAR', 'STRING')
		ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		columns = append(columns, c)
	}
	return columns, rows.Err()
}

// HasIDColumn reports whether the table carries the host's conventional
// integer primary key column.
func (h *HostDB) HasIDColumn(ctx context.Context, table string) (bool, error) {
	var count int
	err := h.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM information_schema.columns
		WHERE table_schema = 'main' AND table_name = ? AND column_name = 'id'`,
		table).Scan(&count)
	return count > 0, err
}

// HasColumn reports whether the table has the named column.
func (h *HostDB) HasColumn(ctx context.Context, table, column string) (bool, error) {
	var count int
	err := h.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM information_schema.columns
		WHERE table_schema = 'main' AND table_name = ? AND column_name = ?`,
		table, column).Scan(&count)
	return count > 0, err
}

// FieldValue is one matched field from a pattern scan. ID is 0 for
// tables without an id column.
type FieldValue struct {
	ID    int64
	Value string
}

// SelectLike returns the fields of the given column matching any of the
// LIKE patterns. When the table has an id column each value is keyed by
// row id, otherwise values come back without attribution.
func (h *HostDB) SelectLike(ctx context.Context, table, column string, patterns []string) ([]FieldValue, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	hasID, err := h.HasIDColumn(ctx, table)
	if err != nil {
		return nil, err
	}

	or := sq.Or{}
	for _, p := range patterns {
		or = append(or, sq.Like{quoteIdent(column): p})
	}

	cols := []string{quoteIdent(column)}
	if hasID {
		cols = append([]string{quoteIdent("id")}, cols...)
	}
	query, args, err := sq.Select(cols...).From(quoteIdent(table)).Where(or).ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []FieldValue
	for rows.Next() {
		var fv FieldValue
		var value sql.NullString
		if hasID {
			if err := rows.Scan(&fv.ID, &value); err != nil {
				return nil, err
			}
		} else {
			if err := rows.Scan(&value); err != nil {
				return nil, err
			}
		}
		fv.Value = value.String
		values = append(values, fv)
	}
	return values, rows.Err()
}

// GetField reads one text field by row id.
func (h *HostDB) GetField(ctx context.Context, table, column string, id int64) (string, error) {
	query, args, err := sq.Select(quoteIdent(column)).
		From(quoteIdent(table)).
		Where(sq.Eq{quoteIdent("id"): id}).
		ToSql()
	if err != nil {
		return "", err
	}
	var value sql.NullString
	if err := h.db.QueryRowContext(ctx, query, args...).Scan(&value); err != nil {
		return "", err
	}
	return value.String, nil
}

// SetField writes one text field by row id.
func (h *HostDB) SetField(ctx context.Context, table, column string, id int64, value string) error {
	query, args, err := sq.Update(quoteIdent(table)).
		Set(quoteIdent(column), value).
		Where(sq.Eq{quoteIdent("id"): id}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := h.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("no row with id %d in %s", id, table)
	}
	return nil
}

// courseJoins maps table families without a direct course column to the
// join resolving their owning course.
var courseJoins = map[string]struct {
	joinTable string
	fk        string
}{
	"forum_posts":   {joinTable: "forum_discussions", fk: "discussion"},
	"book_chapters": {joinTable: "book", fk: "bookid"},
	"lesson_pages":  {joinTable: "lesson", fk: "lessonid"},
}

// CourseFor resolves the owning course of one record. Resolution order:
// a generic course column on the table itself, then the known join
// families, else the unknown sentinel. Records that resolve to course 0
// belong to site-level content and map to the not-in-course sentinel.
func (h *HostDB) CourseFor(ctx context.Context, table string, id int64) (int64, error) {
	if id == 0 {
		return models.CourseUnknown, nil
	}
	direct, err := h.HasColumn(ctx, table, "course")
	if err != nil {
		return models.CourseUnknown, err
	}
	if direct {
		query, args, err := sq.Select(quoteIdent("course")).
			From(quoteIdent(table)).
			Where(sq.Eq{quoteIdent("id"): id}).
			ToSql()
		if err != nil {
			return models.CourseUnknown, err
		}
		var course sql.NullInt64
		if err := h.db.QueryRowContext(ctx, query, args...).Scan(&course); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return models.CourseUnknown, nil
			}
			return models.CourseUnknown, err
		}
		if course.Int64 <= 0 {
			return models.CourseNotInCourse, nil
		}
		return course.Int64, nil
	}

	join, ok := courseJoins[table]
	if !ok {
		return models.CourseUnknown, nil
	}
	query := fmt.Sprintf(
		`SELECT j.course FROM %s t JOIN %s j ON t.%s = j.id WHERE t.id = ?`,
		quoteIdent(table), quoteIdent(join.joinTable), quoteIdent(join.fk))
	var course sql.NullInt64
	if err := h.db.QueryRowContext(ctx, query, id).Scan(&course); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.CourseUnknown, nil
		}
		return models.CourseUnknown, err
	}
	if course.Int64 <= 0 {
		return models.CourseNotInCourse, nil
	}
	return course.Int64, nil
}

// ListModules enumerates the legacy SwitchCast activities, ordered by id.
func (h *HostDB) ListModules(ctx context.Context) ([]models.CourseModule, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT id, course, name, ext_id, section
		FROM switchcast ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var modules []models.CourseModule
	for rows.Next() {
		var m models.CourseModule
		if err := rows.Scan(&m.ID, &m.Course, &m.Name, &m.ExtID, &m.Section); err != nil {
			return nil, err
		}
		modules = append(modules, m)
	}
	return modules, rows.Err()
}

// MaxModuleID returns the highest course-module id in the host, used as
// the base for the forward-looking module id guess.
func (h *HostDB) MaxModuleID(ctx context.Context) (int64, error) {
	var max sql.NullInt64
	err := h.db.QueryRowContext(ctx,
		`SELECT MAX(id) FROM course_modules`).Scan(&max)
	if err != nil {
		return 0, err
	}
	return max.Int64, nil
}
