package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/swisscast/kaltura-migration/internal/models"
	"github.com/swisscast/kaltura-migration/internal/services"
	"github.com/swisscast/kaltura-migration/pkg/jobs"
)

// GetStatus returns the background task slot state plus the finding
// counters the UI polls while a task runs.
// (GET /status)
func (h *Handler) GetStatus(c *gin.Context) {
	ctx := c.Request.Context()

	name, status, progress, err := h.runner.Status(ctx)
	if err != nil {
		zap.S().Named("task_handler").Errorw("failed to read task status", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read task status"})
		return
	}

	total, err := h.store.Findings().Count(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count findings"})
		return
	}
	replaced, err := h.store.Findings().CountReplaced(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count findings"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"task": gin.H{
			"name":     name,
			"status":   status,
			"progress": progress,
		},
		"findings": gin.H{
			"total":    total,
			"replaced": replaced,
		},
	})
}

type replaceRequest struct {
	Course *int64 `json:"course"`
	DryRun bool   `json:"dryrun"`
	Style  string `json:"style"`
}

type modulesRequest struct {
	Mode   string `json:"mode"`
	DryRun bool   `json:"dryrun"`
}

// StartScan schedules a full scan of the host database.
// (POST /tasks/scan)
func (h *Handler) StartScan(c *gin.Context) {
	h.submit(c, models.TaskScan, func(ctx context.Context, progress func(string)) error {
		return h.scanner.Scan(ctx, progress)
	})
}

// StartReplace schedules a rewrite pass over the unreplaced findings.
// (POST /tasks/replace)
func (h *Handler) StartReplace(c *gin.Context) {
	var req replaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	style := models.EmbedStyle(req.Style)
	switch style {
	case models.EmbedStyleScript, models.EmbedStyleLink:
	case "":
		style = models.EmbedStyleLink
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "style must be 'script' or 'link'"})
		return
	}

	opts := services.ReplaceOptions{Course: req.Course, DryRun: req.DryRun, Style: style}
	h.submit(c, models.TaskReplaceAll, func(ctx context.Context, progress func(string)) error {
		_, err := h.rewriter.Replace(ctx, opts, progress)
		return err
	})
}

// StartModules schedules a migration pass over the legacy activities.
// (POST /tasks/modules)
func (h *Handler) StartModules(c *gin.Context) {
	var req modulesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	mode := services.ModuleMode(req.Mode)
	switch mode {
	case services.ModuleModeLTI, services.ModuleModeCourseMedia:
	case "":
		mode = services.ModuleModeLTI
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be 'lti' or 'coursemedia'"})
		return
	}

	opts := services.ModuleOptions{Mode: mode, DryRun: req.DryRun}
	h.submit(c, models.TaskReplaceModules, func(ctx context.Context, progress func(string)) error {
		_, err := h.migrator.ReplaceModules(ctx, opts, progress)
		return err
	})
}

func (h *Handler) submit(c *gin.Context, name string, w jobs.Work) {
	if _, err := h.runner.Submit(c.Request.Context(), name, w); err != nil {
		if errors.Is(err, jobs.ErrBusy) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		zap.S().Named("task_handler").Errorw("failed to schedule task", "task", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to schedule task"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"task": name, "status": string(models.TaskStatusScheduled)})
}
