package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/swisscast/kaltura-migration/internal/auditlog"
	"github.com/swisscast/kaltura-migration/internal/models"
	"github.com/swisscast/kaltura-migration/internal/store"
)

// ModuleMode selects how legacy activities are migrated.
type ModuleMode string

const (
	// ModuleModeLTI replaces each legacy activity with an external-tool
	// activity backed by its own reconciled category.
	ModuleModeLTI ModuleMode = "lti"
	// ModuleModeCourseMedia merges every activity's media into the
	// single course gallery category.
	ModuleModeCourseMedia ModuleMode = "coursemedia"
)

// ModuleOptions restricts one module migration pass.
type ModuleOptions struct {
	Mode   ModuleMode
	DryRun bool
}

// ModuleResult summarizes one module migration pass.
type ModuleResult struct {
	Total    int
	Migrated int
	Errors   []string
}

func (r ModuleResult) OK() bool {
	return len(r.Errors) == 0
}

// Migrator walks the legacy activities and reconciles a remote category
// for each. The activity swap itself (deleting the legacy module,
// inserting the external tool) is performed by the host and out of
// scope here; the migrator's contract is the reconciled category plus
// the audit trail.
type Migrator struct {
	store      *store.Store
	categories *Categories
	audit      *auditlog.Logger
	log        *zap.SugaredLogger
}

func NewMigrator(st *store.Store, categories *Categories, audit *auditlog.Logger) *Migrator {
	return &Migrator{
		store:      st,
		categories: categories,
		audit:      audit,
		log:        zap.S().Named("migrator"),
	}
}

// ReplaceModules migrates every legacy activity under the selected
// mode. Per-module failures are logged and counted; the batch always
// runs to the end.
func (m *Migrator) ReplaceModules(ctx context.Context, opts ModuleOptions, progress func(string)) (*ModuleResult, error) {
	if err := m.audit.Start(ctx, opts.DryRun); err != nil {
		return nil, err
	}

	modules, err := m.store.Host().ListModules(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing legacy modules: %w", err)
	}

	rc, err := m.categories.NewRunContext(ctx, m.store.Host(), opts.DryRun)
	if err != nil {
		return nil, err
	}

	result := &ModuleResult{Total: len(modules)}
	for i, module := range modules {
		m.audit.NextEntry()
		if err := m.migrateModule(ctx, rc, module, opts); err != nil {
			m.audit.Error(ctx, "In module id %d from course id %d. %v", module.ID, module.Course, err)
		} else {
			result.Migrated++
		}
		if progress != nil {
			progress(fmt.Sprintf("%d / %d", i+1, len(modules)))
		}
	}
	result.Errors = m.audit.Errors()
	return result, nil
}

func (m *Migrator) migrateModule(ctx context.Context, rc *ReconcileContext, module models.CourseModule, opts ModuleOptions) error {
	switch opts.Mode {
	case ModuleModeCourseMedia:
		return m.migrateToCourseGallery(ctx, rc, module, opts)
	default:
		return m.migrateToExternalTool(ctx, rc, module)
	}
}

func (m *Migrator) migrateToExternalTool(ctx context.Context, rc *ReconcileContext, module models.CourseModule) error {
	category, err := m.categories.ResolveCategoryForModule(ctx, rc, module)
	if err != nil {
		return err
	}
	m.audit.Info(ctx, "Module %d (%s) maps to category %d at %s with player %d",
		module.ID, module.Name, category.ID, category.FullName, rc.UIConfID())
	return nil
}

// migrateToCourseGallery copies the module's media into the single
// course gallery category.
func (m *Migrator) migrateToCourseGallery(ctx context.Context, rc *ReconcileContext, module models.CourseModule, opts ModuleOptions) error {
	gallery, err := m.categories.ResolveCategoryForCourse(ctx, rc, module.Course)
	if err != nil {
		return err
	}

	sources, err := m.categories.catalog.FindCategoriesByReferenceID(ctx, module.ExtID)
	if err != nil {
		return fmt.Errorf("fetching categories for reference id %s: %w", module.ExtID, err)
	}
	if len(sources) == 0 {
		return fmt.Errorf("no source category with reference id %s", module.ExtID)
	}

	if opts.DryRun {
		m.audit.Info(ctx, "Media of category %d will be added to course gallery %d", sources[0].ID, gallery.ID)
		return nil
	}
	if err := m.categories.catalog.CopyMedia(ctx, &sources[0], gallery); err != nil {
		return fmt.Errorf("copying media to course gallery %d: %w", gallery.ID, err)
	}
	return nil
}
