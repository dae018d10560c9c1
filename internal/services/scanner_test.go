package services_test

import (
	"context"
	"database/sql"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/swisscast/kaltura-migration/internal/extract"
	"github.com/swisscast/kaltura-migration/internal/models"
	"github.com/swisscast/kaltura-migration/internal/services"
	"github.com/swisscast/kaltura-migration/internal/store"
)

var _ = Describe("Scanner", func() {
	var (
		ctx     context.Context
		db      *sql.DB
		s       *store.Store
		scanner *services.Scanner
	)

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		db, err = store.NewDB("")
		Expect(err).NotTo(HaveOccurred())

		s = store.NewStore(db)
		Expect(s.Migrate(ctx)).To(Succeed())

		for _, stmt := range []string{
			`CREATE TABLE forum_discussions (id BIGINT PRIMARY KEY, course BIGINT)`,
			`CREATE TABLE forum_posts (id BIGINT PRIMARY KEY, discussion BIGINT, message VARCHAR)`,
			`CREATE TABLE page (id BIGINT PRIMARY KEY, course BIGINT, content VARCHAR)`,
			`CREATE TABLE config_plugins (id BIGINT PRIMARY KEY, value VARCHAR)`,
			`CREATE TABLE h5p (id BIGINT PRIMARY KEY, course BIGINT, json_content VARCHAR)`,
			`INSERT INTO forum_discussions VALUES (4, 8)`,
			`INSERT INTO forum_posts VALUES
				(7, 4, '<p><iframe src="https://tube.switch.ch/videos/abcd1234" width="560" height="315"></iframe></p>')`,
			`INSERT INTO page VALUES
				(3, 12, 'watch https://cast.switch.ch/videos/efgh5678 twice https://cast.switch.ch/videos/efgh5678')`,
			`INSERT INTO config_plugins VALUES (1, 'https://tube.switch.ch/videos/hidden123')`,
			`INSERT INTO h5p VALUES (9, 12, '{"html":"https:\/\/tube.switch.ch\/videos\/json5678"}')`,
		} {
			_, err := db.ExecContext(ctx, stmt)
			Expect(err).NotTo(HaveOccurred())
		}

		scanner = services.NewScanner(s, extract.New(nil))
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	// Given a host database with legacy URLs in several tables
	// When we scan
	// Then each distinct URL per field becomes one finding with its course
	It("should persist one finding per field and URL with course attribution", func() {
		Expect(scanner.Scan(ctx, nil)).To(Succeed())

		findings, err := s.Findings().List(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(findings).To(HaveLen(3))

		byURL := make(map[string]models.Finding)
		for _, f := range findings {
			byURL[f.URL] = f
		}

		forum := byURL["https://tube.switch.ch/videos/abcd1234"]
		Expect(forum.Table).To(Equal("forum_posts"))
		Expect(forum.Column).To(Equal("message"))
		Expect(forum.RecordID).To(Equal(int64(7)))
		Expect(forum.Course).To(Equal(int64(8)))
		Expect(forum.Replaced).To(BeFalse())

		page := byURL["https://cast.switch.ch/videos/efgh5678"]
		Expect(page.Table).To(Equal("page"))
		Expect(page.Course).To(Equal(int64(12)))

		json := byURL["https://tube.switch.ch/videos/json5678"]
		Expect(json.Table).To(Equal("h5p"))
		Expect(json.Column).To(Equal("json_content"))
	})

	// Given a JSON column whose only URL is stored slash-escaped
	// When we scan
	// Then the row is still selected and the unescaped URL recorded
	It("should find URLs stored only in escaped JSON form", func() {
		_, err := db.ExecContext(ctx,
			`INSERT INTO h5p VALUES (10, 5, '{"params":"see https:\/\/cast.switch.ch\/videos\/esc45678 here"}')`)
		Expect(err).NotTo(HaveOccurred())

		Expect(scanner.Scan(ctx, nil)).To(Succeed())

		findings, err := s.Findings().List(ctx, store.ByCourse(5))
		Expect(err).NotTo(HaveOccurred())
		Expect(findings).To(HaveLen(1))
		Expect(findings[0].URL).To(Equal("https://cast.switch.ch/videos/esc45678"))
		Expect(findings[0].Column).To(Equal("json_content"))
	})

	// Given URLs inside excluded table families
	// When we scan
	// Then those tables produce no findings
	It("should skip configuration tables", func() {
		Expect(scanner.Scan(ctx, nil)).To(Succeed())

		findings, err := s.Findings().List(ctx)
		Expect(err).NotTo(HaveOccurred())
		for _, f := range findings {
			Expect(f.Table).NotTo(Equal("config_plugins"))
		}
	})

	// Given a completed scan
	// When we scan again without host changes
	// Then the finding set is unchanged
	It("should be idempotent", func() {
		Expect(scanner.Scan(ctx, nil)).To(Succeed())
		first, err := s.Findings().Count(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(scanner.Scan(ctx, nil)).To(Succeed())
		second, err := s.Findings().Count(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(second).To(Equal(first))
	})

	// Given host content changed since the last scan
	// When we scan again
	// Then stale findings are gone and new ones appear
	It("should reflect the current host content", func() {
		Expect(scanner.Scan(ctx, nil)).To(Succeed())

		_, err := db.ExecContext(ctx,
			`UPDATE page SET content = 'now https://tube.switch.ch/videos/newurl99' WHERE id = 3`)
		Expect(err).NotTo(HaveOccurred())

		Expect(scanner.Scan(ctx, nil)).To(Succeed())

		findings, err := s.Findings().List(ctx)
		Expect(err).NotTo(HaveOccurred())

		urls := make([]string, 0, len(findings))
		for _, f := range findings {
			urls = append(urls, f.URL)
		}
		Expect(urls).To(ContainElement("https://tube.switch.ch/videos/newurl99"))
		Expect(urls).NotTo(ContainElement("https://cast.switch.ch/videos/efgh5678"))
	})

	// Given progress reporting
	// When we scan
	// Then progress is reported once per table
	It("should report per-table progress", func() {
		var updates []string
		Expect(scanner.Scan(ctx, func(p string) { updates = append(updates, p) })).To(Succeed())
		Expect(updates).NotTo(BeEmpty())
		Expect(updates[len(updates)-1]).To(MatchRegexp(`^\d+ / \d+$`))
	})
})
