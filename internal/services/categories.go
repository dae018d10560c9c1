package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"github.com/swisscast/kaltura-migration/internal/auditlog"
	"github.com/swisscast/kaltura-migration/internal/models"
	"github.com/swisscast/kaltura-migration/internal/store"
	"github.com/swisscast/kaltura-migration/pkg/kaltura"
)

// reservedNamePattern matches category paths already claimed by the
// module naming convention: ...>channels><courseid>-<moduleid>. A
// category whose path matches is not free for reuse.
//
// Known limitation: this assumes every deployment migrating into the
// same Kaltura instance uses this exact convention. Two engines with
// different conventions running concurrently could collide undetected.
var reservedNamePattern = regexp.MustCompile(`>channels>\d+-\d+$`)

// ErrManualIntervention wraps collisions the engine refuses to resolve
// automatically.
var ErrManualIntervention = errors.New("manual intervention required")

// ReconcileContext carries the per-run state of one reconciliation
// pass: the memoized channels root, the validated player id, the
// forward-looking module id counter and the dry-run overlay. Scoped to
// a single run, reset at its start, never shared across runs.
type ReconcileContext struct {
	parent       *models.Category
	uiConfID     int64
	baseModuleID int64
	created      int64
	overlay      Overlay
	dryRun       bool
	syntheticID  int64
}

// Parent returns the memoized channels root category.
func (rc *ReconcileContext) Parent() *models.Category {
	return rc.parent
}

// UIConfID returns the validated player configuration id for this run.
func (rc *ReconcileContext) UIConfID() int64 {
	return rc.uiConfID
}

// NextModuleID is the forward-looking guess for the id the migrated
// module will get: one past the current maximum, advanced by every
// module this run has already (virtually) created.
func (rc *ReconcileContext) NextModuleID() int64 {
	return rc.baseModuleID + rc.created + 1
}

// ModuleCreated advances the look-ahead after a successful migration.
func (rc *ReconcileContext) ModuleCreated() {
	rc.created++
}

// nextSyntheticID allocates an id for a category that only exists in
// the overlay. Negative so it can never collide with a real one.
func (rc *ReconcileContext) nextSyntheticID() int64 {
	rc.syntheticID--
	return rc.syntheticID
}

// Categories reconciles legacy modules onto remote taxonomy nodes. For
// each module it finds, renames, moves, copies or creates the category
// corresponding 1:1 with the migrated activity, refusing to resolve
// naming collisions by overwriting.
type Categories struct {
	catalog      Catalog
	audit        *auditlog.Logger
	rootCategory string
	uiConfID     int64
	log          *zap.SugaredLogger
}

func NewCategories(catalog Catalog, audit *auditlog.Logger, rootCategory string, uiConfID int64) *Categories {
	return &Categories{
		catalog:      catalog,
		audit:        audit,
		rootCategory: rootCategory,
		uiConfID:     uiConfID,
		log:          zap.S().Named("categories"),
	}
}

// NewRunContext builds the per-run reconciliation state: it resolves
// the channels root, validates the configured player and snapshots the
// module id high-water mark.
func (c *Categories) NewRunContext(ctx context.Context, host *store.HostDB, dryRun bool) (*ReconcileContext, error) {
	parent, err := c.catalog.FindCategoryByFullName(ctx, c.rootCategory)
	if err != nil {
		return nil, fmt.Errorf("resolving root category %q: %w", c.rootCategory, err)
	}
	uiConfID, err := c.catalog.ValidateUIConf(ctx, c.uiConfID)
	if err != nil {
		return nil, fmt.Errorf("validating player configuration: %w", err)
	}
	maxModuleID, err := host.MaxModuleID(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading module id high-water mark: %w", err)
	}
	return &ReconcileContext{
		parent:       parent,
		uiConfID:     uiConfID,
		baseModuleID: maxModuleID,
		overlay:      make(Overlay),
		dryRun:       dryRun,
	}, nil
}

// ResolveCategoryForModule finds or shapes the remote category for one
// legacy module. The decision tree is deterministic: given the same
// remote state and the same module id guess, it always reaches the
// same one of reuse, rename/move, copy or failure.
func (c *Categories) ResolveCategoryForModule(ctx context.Context, rc *ReconcileContext, module models.CourseModule) (*models.Category, error) {
	fetched, err := c.catalog.FindCategoriesByReferenceID(ctx, module.ExtID)
	if err != nil {
		return nil, fmt.Errorf("fetching categories for reference id %s: %w", module.ExtID, err)
	}
	candidates := rc.overlay.ResolveAll(fetched)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no source category with reference id %s", module.ExtID)
	}

	targetName := models.TargetCategoryName(module.Course, rc.NextModuleID())
	targetFullName := rc.parent.ChildFullName(targetName)

	// Already migrated: a fetched category sits at the exact target.
	for i := range candidates {
		if candidates[i].ParentID == rc.parent.ID && candidates[i].Name == targetName {
			c.audit.Info(ctx, "Category %d already at %s, nothing to do", candidates[i].ID, targetFullName)
			rc.ModuleCreated()
			return &candidates[i], nil
		}
	}

	// Collision check: a category with a different reference id at the
	// target path is never overwritten. A failed lookup fails the
	// module; an unverified path must not be written to.
	occupant, occupied, err := c.categoryAtPath(ctx, rc, targetFullName)
	if err != nil {
		return nil, fmt.Errorf("checking occupant of %s: %w", targetFullName, err)
	}
	if occupied && occupant.ReferenceID != module.ExtID {
		return nil, fmt.Errorf("category %d with reference id %q already occupies %s: %w",
			occupant.ID, occupant.ReferenceID, targetFullName, ErrManualIntervention)
	}

	// Reuse the first free category: one not yet claimed by the
	// reserved naming convention, simulated moves included.
	if free := firstFreeCategory(candidates); free != nil {
		return c.moveIntoPlace(ctx, rc, free, targetName, targetFullName)
	}

	// Every candidate is claimed by another module: the first one is a
	// shared template. Copy it with its media and leave it untouched
	// so the other modules pointing at it stay valid.
	return c.copyIntoPlace(ctx, rc, &candidates[0], targetName, targetFullName)
}

// categoryAtPath looks up the category occupying a full path, checking
// the dry-run overlay before the remote system. Only ErrNotFound means
// the path is free; any other lookup failure is surfaced so callers
// never mutate a path they could not verify.
func (c *Categories) categoryAtPath(ctx context.Context, rc *ReconcileContext, fullName string) (*models.Category, bool, error) {
	if simulated, ok := rc.overlay.FindByFullName(fullName); ok {
		return &simulated, true, nil
	}
	occupant, err := c.catalog.FindCategoryByFullName(ctx, fullName)
	if errors.Is(err, kaltura.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	// The remote category may have been simulated away from this path.
	resolved := rc.overlay.Resolve(*occupant)
	if resolved.FullName != fullName {
		return nil, false, nil
	}
	return &resolved, true, nil
}

func firstFreeCategory(candidates []models.Category) *models.Category {
	for i := range candidates {
		if !reservedNamePattern.MatchString(candidates[i].FullName) {
			return &candidates[i]
		}
	}
	return nil
}

func (c *Categories) moveIntoPlace(ctx context.Context, rc *ReconcileContext, category *models.Category, targetName, targetFullName string) (*models.Category, error) {
	if rc.dryRun {
		op := models.OpMoveCategory
		if category.ParentID == rc.parent.ID {
			op = models.OpRenameCategory
		}
		simulated := *category
		simulated.ParentID = rc.parent.ID
		simulated.Name = targetName
		simulated.FullName = targetFullName
		rc.overlay.Apply(Effect{Op: op, Category: simulated})
		c.audit.Op(ctx, op, fmt.Sprint(category.ID), targetName)
		rc.ModuleCreated()
		return &simulated, nil
	}

	moved, err := c.catalog.MoveOrRenameCategory(ctx, category, rc.parent, targetName)
	if err != nil {
		return nil, fmt.Errorf("moving category %d to %s: %w", category.ID, targetFullName, err)
	}
	rc.ModuleCreated()
	return moved, nil
}

func (c *Categories) copyIntoPlace(ctx context.Context, rc *ReconcileContext, source *models.Category, targetName, targetFullName string) (*models.Category, error) {
	if rc.dryRun {
		simulated := models.Category{
			ID:          rc.nextSyntheticID(),
			ParentID:    rc.parent.ID,
			Name:        targetName,
			FullName:    targetFullName,
			Description: source.Description,
			Tags:        source.Tags,
			ReferenceID: source.ReferenceID,
		}
		rc.overlay.Apply(Effect{Op: models.OpCopyCategory, Category: simulated})
		c.audit.Op(ctx, models.OpCopyCategory, fmt.Sprint(source.ID), targetName)
		rc.ModuleCreated()
		return &simulated, nil
	}

	copied, err := c.catalog.CopyCategoryWithMedia(ctx, source, rc.parent, targetName)
	if err != nil {
		return nil, fmt.Errorf("copying category %d to %s: %w", source.ID, targetFullName, err)
	}
	rc.ModuleCreated()
	return copied, nil
}

// ResolveCategoryForCourse finds or creates the single gallery category
// of a course, named after the course id directly under the channels
// root. Course ids are unique, so no collision or free-category search
// is needed.
func (c *Categories) ResolveCategoryForCourse(ctx context.Context, rc *ReconcileContext, courseID int64) (*models.Category, error) {
	name := fmt.Sprint(courseID)
	fullName := rc.parent.ChildFullName(name)

	existing, ok, err := c.categoryAtPath(ctx, rc, fullName)
	if err != nil {
		return nil, fmt.Errorf("checking course category %s: %w", fullName, err)
	}
	if ok {
		return existing, nil
	}

	if rc.dryRun {
		simulated := models.Category{
			ID:       rc.nextSyntheticID(),
			ParentID: rc.parent.ID,
			Name:     name,
			FullName: fullName,
		}
		rc.overlay.Apply(Effect{Op: models.OpCreateCategory, Category: simulated})
		c.audit.Op(ctx, models.OpCreateCategory, fmt.Sprint(simulated.ID), name)
		return &simulated, nil
	}

	created, err := c.catalog.CreateCategory(ctx, kaltura.CreateCategoryRequest{
		Name:     name,
		ParentID: rc.parent.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("creating course category %s: %w", name, err)
	}
	return created, nil
}
