package services_test

import (
	"context"
	"database/sql"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/swisscast/kaltura-migration/internal/auditlog"
	"github.com/swisscast/kaltura-migration/internal/extract"
	"github.com/swisscast/kaltura-migration/internal/models"
	"github.com/swisscast/kaltura-migration/internal/services"
	"github.com/swisscast/kaltura-migration/internal/store"
)

var _ = Describe("Rewriter", func() {
	const legacyURL = "https://tube.switch.ch/videos/abcd1234"

	var (
		ctx      context.Context
		db       *sql.DB
		s        *store.Store
		catalog  *fakeCatalog
		audit    *auditlog.Logger
		rewriter *services.Rewriter
	)

	embed := services.EmbedBuilder{
		ServiceURL:    "https://api.cast.switch.ch",
		PartnerID:     105,
		UIConfID:      23448189,
		KafURI:        "https://kaf.cast.switch.ch",
		MediaSpaceURL: "https://mediaspace.cast.switch.ch",
	}

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
			`INSERT INTO forum_discussions VALUES (4, 8)`,
			`INSERT INTO forum_posts VALUES
				(7, 4, '<p>intro</p><iframe src="` + legacyURL + `" width="560" height="315"></iframe>')`,
			`INSERT INTO page VALUES
				(3, 12, '<a href="https://tube.switch.ch/channels/ch4nn3l1">our channel</a>')`,
		} {
			_, err := db.ExecContext(ctx, stmt)
			Expect(err).NotTo(HaveOccurred())
		}

		catalog = newFakeCatalog()
		catalog.addMedia(models.MediaEntry{
			ID:          "0_abc123",
			Name:        "Test video",
			ReferenceID: "abcd1234",
			Duration:    100,
			Width:       1280,
			Height:      720,
		})
		catalog.addCategory(models.Category{
			ID:          77,
			ParentID:    1,
			Name:        "mychannel",
			FullName:    "Moodle>site>channels>mychannel",
			ReferenceID: "ch4nn3l1",
		})

		audit = auditlog.New(s.Logs())
		rewriter = services.NewRewriter(s, catalog, embed, audit)

		scanner := services.NewScanner(s, extract.New(nil))
		Expect(scanner.Scan(ctx, nil)).To(Succeed())
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	readField := func(table, column string, id int64) string {
		value, err := s.Host().GetField(ctx, table, column, id)
		Expect(err).NotTo(HaveOccurred())
		return value
	}

	// Given a scanned iframe embedding
	// When we replace with the link style
	// Then the markup becomes an anchor carrying the resolved entry id
	// and the finding is marked replaced with an info log entry
	It("should replace an iframe embedding end to end", func() {
		result, err := rewriter.Replace(ctx, services.ReplaceOptions{Style: models.EmbedStyleLink}, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.OK()).To(BeTrue())
		Expect(result.Replaced).To(Equal(2))

		message := readField("forum_posts", "message", 7)
		Expect(message).NotTo(ContainSubstring(legacyURL))
		Expect(message).To(ContainSubstring("entryid/0_abc123"))
		Expect(message).To(ContainSubstring(`playerSize/560x315`))
		Expect(message).To(ContainSubstring("<p>intro</p>"))

		remaining, err := s.Findings().List(ctx, store.Unreplaced())
		Expect(err).NotTo(HaveOccurred())
		Expect(remaining).To(BeEmpty())

		entries, err := s.Logs().List(ctx, audit.Execution())
		Expect(err).NotTo(HaveOccurred())

		var messages []string
		for _, e := range entries {
			messages = append(messages, e.Message)
		}
		Expect(messages).To(ContainElement(ContainSubstring("Replaced video " + legacyURL)))
	})

	// Given the script embed style
	// When we replace
	// Then the markup becomes a kWidget embed for the resolved entry
	It("should render script embeds on request", func() {
		result, err := rewriter.Replace(ctx, services.ReplaceOptions{Style: models.EmbedStyleScript}, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.OK()).To(BeTrue())

		message := readField("forum_posts", "message", 7)
		Expect(message).To(ContainSubstring("kWidget.embed"))
		Expect(message).To(ContainSubstring(`"entry_id": "0_abc123"`))
	})

	// Given a channel-shaped URL
	// When we replace
	// Then the URL is swapped for the MediaSpace channel address
	It("should rewrite channel URLs to MediaSpace", func() {
		result, err := rewriter.Replace(ctx, services.ReplaceOptions{Style: models.EmbedStyleLink}, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.OK()).To(BeTrue())

		content := readField("page", "content", 3)
		Expect(content).To(ContainSubstring("https://mediaspace.cast.switch.ch/channel/mychannel/77"))
		Expect(content).To(ContainSubstring("our channel"))
	})

	// Given a completed replace pass
	// When we run it again
	// Then nothing is selected
	It("should skip findings already replaced", func() {
		_, err := rewriter.Replace(ctx, services.ReplaceOptions{Style: models.EmbedStyleLink}, nil)
		Expect(err).NotTo(HaveOccurred())

		again, err := rewriter.Replace(ctx, services.ReplaceOptions{Style: models.EmbedStyleLink}, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(again.Total).To(BeZero())
	})

	// Given a dry run
	// When we replace
	// Then the host and the findings stay untouched and the log states
	// what would happen
	It("should not write anything during a dry run", func() {
		before := readField("forum_posts", "message", 7)

		result, err := rewriter.Replace(ctx, services.ReplaceOptions{DryRun: true, Style: models.EmbedStyleLink}, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.OK()).To(BeTrue())

		Expect(readField("forum_posts", "message", 7)).To(Equal(before))

		unreplaced, err := s.Findings().Count(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(unreplaced).To(Equal(int64(2)))

		entries, err := s.Logs().List(ctx, audit.Execution())
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).NotTo(BeEmpty())
		Expect(entries[0].Testing).To(BeTrue())

		var messages []string
		for _, e := range entries {
			messages = append(messages, e.Message)
		}
		Expect(messages).To(ContainElement(ContainSubstring("Would replace video " + legacyURL)))
	})

	// Given a URL that resolves to no media entry
	// When we replace
	// Then the failure is logged, the finding stays unreplaced and the
	// batch continues
	It("should keep going past unresolvable findings", func() {
		_, err := db.ExecContext(ctx,
			`INSERT INTO forum_posts VALUES (8, 4, 'missing https://tube.switch.ch/videos/gone9999')`)
		Expect(err).NotTo(HaveOccurred())
		scanner := services.NewScanner(s, extract.New(nil))
		Expect(scanner.Scan(ctx, nil)).To(Succeed())

		result, err := rewriter.Replace(ctx, services.ReplaceOptions{Style: models.EmbedStyleLink}, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Total).To(Equal(3))
		Expect(result.Replaced).To(Equal(2))
		Expect(result.Errors).To(HaveLen(1))
		Expect(result.Errors[0]).To(ContainSubstring("gone9999"))

		remaining, err := s.Findings().List(ctx, store.Unreplaced())
		Expect(err).NotTo(HaveOccurred())
		Expect(remaining).To(HaveLen(1))
		Expect(remaining[0].URL).To(Equal("https://tube.switch.ch/videos/gone9999"))
	})

	// Given a course filter
	// When we replace
	// Then only that course's findings are processed
	It("should honor the course filter", func() {
		course := int64(8)
		result, err := rewriter.Replace(ctx, services.ReplaceOptions{Course: &course, Style: models.EmbedStyleLink}, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Total).To(Equal(1))

		content := readField("page", "content", 3)
		Expect(content).To(ContainSubstring("channels/ch4nn3l1"))
	})
})
