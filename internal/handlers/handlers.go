// Package handlers implements the HTTP API layer of the migration engine.
//
// Handlers delegate the work to the services layer and focus on request
// validation, task submission and response formatting. Long-running work
// (scanning, replacing) is never executed on the request goroutine; it is
// handed to the single-slot background runner and polled via /status.
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/swisscast/kaltura-migration/internal/services"
	"github.com/swisscast/kaltura-migration/internal/store"
	"github.com/swisscast/kaltura-migration/pkg/jobs"
)

type Handler struct {
	store    *store.Store
	runner   *jobs.Runner
	scanner  *services.Scanner
	rewriter *services.Rewriter
	migrator *services.Migrator
	exporter *services.Exporter
}

func New(
	st *store.Store,
	runner *jobs.Runner,
	scanner *services.Scanner,
	rewriter *services.Rewriter,
	migrator *services.Migrator,
	exporter *services.Exporter,
) *Handler {
	return &Handler{
		store:    st,
		runner:   runner,
		scanner:  scanner,
		rewriter: rewriter,
		migrator: migrator,
		exporter: exporter,
	}
}

// Routes mounts all endpoints on the given group.
func (h *Handler) Routes(r *gin.RouterGroup) {
	r.GET("/status", h.GetStatus)

	r.GET("/findings", h.ListFindings)
	r.GET("/courses", h.ListCourses)
	r.GET("/logs", h.ListLogs)

	r.POST("/tasks/scan", h.StartScan)
	r.POST("/tasks/replace", h.StartReplace)
	r.POST("/tasks/modules", h.StartModules)

	r.GET("/export/findings.csv", h.ExportFindingsCSV)
	r.GET("/export/logs.csv", h.ExportLogsCSV)
	r.GET("/export/report.xlsx", h.ExportWorkbook)
}
