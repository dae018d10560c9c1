package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/swisscast/kaltura-migration/internal/extract"
	"github.com/swisscast/kaltura-migration/internal/models"
	"github.com/swisscast/kaltura-migration/internal/store"
)

// Engine-owned tables are never scanned: the findings table would match
// its own rows.
var ownTables = map[string]struct{}{
	"migration_urls":     {},
	"migration_logs":     {},
	"migration_settings": {},
}

// Table families the replace policy excludes from content scans:
// configuration, logging, session and derived data never carry
// user-authored embeds worth migrating.
var skipTablePrefixes = []string{
	"config",
	"log",
	"events_",
	"sessions",
	"stats_",
	"cache_",
	"backup_",
	"task_",
	"upgrade_",
}

// jsonColumns maps columns known to hold JSON-escaped HTML. Their
// content is unescaped before matching so embedded URLs are found.
var jsonColumns = map[string]map[string]struct{}{
	"h5p":               {"json_content": {}},
	"lti_tool_settings": {"settings": {}},
}

// Scanner walks every text-bearing column of the host database and
// records each legacy video URL as a finding.
type Scanner struct {
	store     *store.Store
	extractor *extract.Extractor
	log       *zap.SugaredLogger
}

func NewScanner(st *store.Store, extractor *extract.Extractor) *Scanner {
	return &Scanner{
		store:     st,
		extractor: extractor,
		log:       zap.S().Named("scanner"),
	}
}

// shouldScan is the replace policy: engine-owned tables and the excluded
// families are skipped entirely.
func shouldScan(table string) bool {
	if _, own := ownTables[table]; own {
		return false
	}
	for _, prefix := range skipTablePrefixes {
		if strings.HasPrefix(table, prefix) {
			return false
		}
	}
	return true
}

func isJSONColumn(table, column string) bool {
	cols, ok := jsonColumns[table]
	if !ok {
		return false
	}
	_, ok = cols[column]
	return ok
}

// Scan replaces the full finding set with the current state of the host
// database. Prior findings are cleared first, so repeated invocations
// are safe and never incremental. Progress is reported once per table.
func (s *Scanner) Scan(ctx context.Context, progress func(string)) error {
	host := s.store.Host()

	tables, err := host.ListTables(ctx)
	if err != nil {
		// Includes ErrNoTables, the only condition fatal to a scan.
		return err
	}

	if err := s.store.Findings().DeleteAll(ctx); err != nil {
		return fmt.Errorf("clearing previous findings: %w", err)
	}

	// JSON columns hold the slash-escaped form, so their pre-filter
	// carries both pattern shapes or escaped-only rows are never seen.
	patterns := make([]string, 0, len(s.extractor.Hosts()))
	jsonPatterns := make([]string, 0, 2*len(s.extractor.Hosts()))
	for _, h := range s.extractor.Hosts() {
		p := "%://" + h + "/%"
		patterns = append(patterns, p)
		jsonPatterns = append(jsonPatterns, p, strings.ReplaceAll(p, "/", `\/`))
	}

	total := 0
	for i, table := range tables {
		if shouldScan(table) {
			n, err := s.scanTable(ctx, table, patterns, jsonPatterns)
			if err != nil {
				return fmt.Errorf("scanning table %s: %w", table, err)
			}
			total += n
		}
		if progress != nil {
			progress(fmt.Sprintf("%d / %d", i+1, len(tables)))
		}
	}
	s.log.Infow("scan finished", "tables", len(tables), "findings", total)
	return nil
}

func (s *Scanner) scanTable(ctx context.Context, table string, patterns, jsonPatterns []string) (int, error) {
	host := s.store.Host()

	columns, err := host.TextColumns(ctx, table)
	if err != nil {
		return 0, err
	}

	// Course attribution is per record, cached across columns.
	courses := make(map[int64]int64)
	total := 0
	for _, column := range columns {
		colPatterns := patterns
		if isJSONColumn(table, column) {
			colPatterns = jsonPatterns
		}
		values, err := host.SelectLike(ctx, table, column, colPatterns)
		if err != nil {
			return 0, err
		}

		var findings []models.Finding
		for _, fv := range values {
			text := fv.Value
			if isJSONColumn(table, column) {
				text = strings.ReplaceAll(text, `\/`, `/`)
			}
			urls := s.extractor.ExtractURLs(text)
			if len(urls) == 0 {
				continue
			}
			course, ok := courses[fv.ID]
			if !ok {
				course, err = host.CourseFor(ctx, table, fv.ID)
				if err != nil {
					return 0, err
				}
				courses[fv.ID] = course
			}
			for _, url := range urls {
				findings = append(findings, models.Finding{
					Table:    table,
					Column:   column,
					RecordID: fv.ID,
					URL:      url,
					Course:   course,
				})
			}
		}
		if err := s.store.Findings().BatchInsert(ctx, findings); err != nil {
			return 0, err
		}
		total += len(findings)
	}
	return total, nil
}
