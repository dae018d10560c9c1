package services_test

import (
	"context"
	"database/sql"
	"encoding/csv"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/swisscast/kaltura-migration/internal/models"
	"github.com/swisscast/kaltura-migration/internal/services"
	"github.com/swisscast/kaltura-migration/internal/store"
)

var _ = Describe("Exporter", func() {
	var (
		ctx      context.Context
		db       *sql.DB
		s        *store.Store
		exporter *services.Exporter
	)

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		db, err = store.NewDB("")
		Expect(err).NotTo(HaveOccurred())

		s = store.NewStore(db)
		Expect(s.Migrate(ctx)).To(Succeed())

		Expect(s.Findings().BatchInsert(ctx, []models.Finding{
			{Table: "forum_posts", Column: "message", RecordID: 7, URL: "https://tube.switch.ch/videos/abcd1234", Course: 8},
		})).To(Succeed())
		Expect(s.Logs().Append(ctx, models.LogEntry{
			Execution: 1, Level: models.LevelOperation, Time: 100, Entry: 1,
			Message: "Category 10 renamed to 8-105", Code: models.OpRenameCategory, ID1: "10", ID2: "8-105",
		})).To(Succeed())

		exporter = services.NewExporter(s)
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	// Given stored findings
	// When we export them as CSV
	// Then the frozen column order leads the file
	It("should export findings with the frozen header", func() {
		var buf strings.Builder
		Expect(exporter.FindingsCSV(ctx, &buf)).To(Succeed())

		records, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(2))
		Expect(records[0]).To(Equal([]string{"tblname", "colname", "resid", "url", "replaced", "course"}))
		Expect(records[1]).To(Equal([]string{
			"forum_posts", "message", "7", "https://tube.switch.ch/videos/abcd1234", "false", "8",
		}))
	})

	It("should export logs with the frozen header", func() {
		var buf strings.Builder
		Expect(exporter.LogsCSV(ctx, &buf)).To(Succeed())

		records, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(2))
		Expect(records[0]).To(Equal([]string{
			"execution", "testing", "level", "time", "entry", "message", "code", "id1", "id2",
		}))
		Expect(records[1][5]).To(Equal("Category 10 renamed to 8-105"))
		Expect(records[1][6]).To(Equal(models.OpRenameCategory))
	})

	// Given stored findings and logs
	// When we build the workbook
	// Then both sheets exist with their data
	It("should build a two-sheet workbook", func() {
		wb, err := exporter.Workbook(ctx)
		Expect(err).NotTo(HaveOccurred())
		defer wb.Close()

		Expect(wb.GetSheetList()).To(ConsistOf("Findings", "Logs"))

		url, err := wb.GetCellValue("Findings", "D2")
		Expect(err).NotTo(HaveOccurred())
		Expect(url).To(Equal("https://tube.switch.ch/videos/abcd1234"))

		message, err := wb.GetCellValue("Logs", "F2")
		Expect(err).NotTo(HaveOccurred())
		Expect(message).To(Equal("Category 10 renamed to 8-105"))
	})
})
