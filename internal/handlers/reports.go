package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/swisscast/kaltura-migration/internal/store"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// ListFindings returns detected legacy URLs with optional course
// filtering and pagination.
// (GET /findings?course=&unreplaced=&page=&page_size=)
func (h *Handler) ListFindings(c *gin.Context) {
	ctx := c.Request.Context()

	page := intQuery(c, "page", 1)
	if page < 1 {
		page = 1
	}
	pageSize := intQuery(c, "page_size", defaultPageSize)
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	opts := []store.ListOption{}
	if raw, ok := c.GetQuery("course"); ok {
		course, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "course must be an integer"})
			return
		}
		opts = append(opts, store.ByCourse(course))
	}
	if c.Query("unreplaced") == "true" {
		opts = append(opts, store.Unreplaced())
	}

	total, err := h.store.Findings().Count(ctx, opts...)
	if err != nil {
		zap.S().Named("report_handler").Errorw("failed to count findings", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count findings"})
		return
	}

	opts = append(opts, store.WithLimit(uint64(pageSize)), store.WithOffset(uint64((page-1)*pageSize)))
	findings, err := h.store.Findings().List(ctx, opts...)
	if err != nil {
		zap.S().Named("report_handler").Errorw("failed to list findings", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list findings"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"page":      page,
		"page_size": pageSize,
		"total":     total,
		"findings":  findings,
	})
}

// ListCourses returns the distinct course ids present in the findings.
// (GET /courses)
func (h *Handler) ListCourses(c *gin.Context) {
	courses, err := h.store.Findings().Courses(c.Request.Context())
	if err != nil {
		zap.S().Named("report_handler").Errorw("failed to list courses", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list courses"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"courses": courses})
}

// ListLogs returns audit entries, by default those of the latest
// execution.
// (GET /logs?execution=)
func (h *Handler) ListLogs(c *gin.Context) {
	ctx := c.Request.Context()

	execution := int64(0)
	if raw, ok := c.GetQuery("execution"); ok {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "execution must be an integer"})
			return
		}
		execution = parsed
	} else {
		latest, err := h.store.Logs().MaxExecution(ctx)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve latest execution"})
			return
		}
		execution = latest
	}

	entries, err := h.store.Logs().List(ctx, execution)
	if err != nil {
		zap.S().Named("report_handler").Errorw("failed to list logs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list logs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"execution": execution, "entries": entries})
}

// ExportFindingsCSV streams all findings as CSV.
// (GET /export/findings.csv)
func (h *Handler) ExportFindingsCSV(c *gin.Context) {
	c.Header("Content-Disposition", `attachment; filename="findings.csv"`)
	c.Header("Content-Type", "text/csv")
	if err := h.exporter.FindingsCSV(c.Request.Context(), c.Writer); err != nil {
		zap.S().Named("report_handler").Errorw("failed to export findings", "error", err)
		c.Status(http.StatusInternalServerError)
	}
}

// ExportLogsCSV streams the full audit log as CSV.
// (GET /export/logs.csv)
func (h *Handler) ExportLogsCSV(c *gin.Context) {
	c.Header("Content-Disposition", `attachment; filename="logs.csv"`)
	c.Header("Content-Type", "text/csv")
	if err := h.exporter.LogsCSV(c.Request.Context(), c.Writer); err != nil {
		zap.S().Named("report_handler").Errorw("failed to export logs", "error", err)
		c.Status(http.StatusInternalServerError)
	}
}

// ExportWorkbook streams findings and logs as a two-sheet xlsx report.
// (GET /export/report.xlsx)
func (h *Handler) ExportWorkbook(c *gin.Context) {
	wb, err := h.exporter.Workbook(c.Request.Context())
	if err != nil {
		zap.S().Named("report_handler").Errorw("failed to build report", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build report"})
		return
	}
	defer wb.Close()

	c.Header("Content-Disposition", `attachment; filename="migration-report.xlsx"`)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := wb.Write(c.Writer); err != nil {
		zap.S().Named("report_handler").Errorw("failed to write report", "error", err)
	}
}

func intQuery(c *gin.Context, name string, def int) int {
	raw, ok := c.GetQuery(name)
	if !ok {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
