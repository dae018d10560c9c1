package services_test

import (
	"context"
	"database/sql"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/swisscast/kaltura-migration/internal/auditlog"
	"github.com/swisscast/kaltura-migration/internal/models"
	"github.com/swisscast/kaltura-migration/internal/services"
	"github.com/swisscast/kaltura-migration/internal/store"
)

// flakyLookupCatalog fails full-name lookups for one path, standing in
// for a transport failure during the occupancy check.
type flakyLookupCatalog struct {
	*fakeCatalog
	failPath string
}

func (f *flakyLookupCatalog) FindCategoryByFullName(ctx context.Context, fullName string) (*models.Category, error) {
	if fullName == f.failPath {
		return nil, errors.New("gateway timeout")
	}
	return f.fakeCatalog.FindCategoryByFullName(ctx, fullName)
}

var _ = Describe("Categories", func() {
	const (
		rootFullName = "Moodle>site>channels"
		uiConfID     = int64(23448189)
	)

	var (
		ctx        context.Context
		db         *sql.DB
		s          *store.Store
		catalog    *fakeCatalog
		audit      *auditlog.Logger
		categories *services.Categories
		module     models.CourseModule
	)

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		db, err = store.NewDB("")
		Expect(err).NotTo(HaveOccurred())

		s = store.NewStore(db)
		Expect(s.Migrate(ctx)).To(Succeed())

		// Module id high-water mark 104: the next created module gets 105.
		for _, stmt := range []string{
			`CREATE TABLE course_modules (id BIGINT PRIMARY KEY, course BIGINT)`,
			`CREATE TABLE switchcast (id BIGINT PRIMARY KEY, course BIGINT, name VARCHAR, ext_id VARCHAR, section BIGINT)`,
			`INSERT INTO course_modules VALUES (101, 8), (104, 12)`,
			`INSERT INTO switchcast VALUES (50, 8, 'Lecture recordings', 'ref-abc', 1)`,
		} {
			_, err := db.ExecContext(ctx, stmt)
			Expect(err).NotTo(HaveOccurred())
		}

		catalog = newFakeCatalog()
		catalog.addCategory(models.Category{
			ID:       1,
			Name:     "channels",
			FullName: rootFullName,
		})

		audit = auditlog.New(s.Logs())
		categories = services.NewCategories(catalog, audit, rootFullName, uiConfID)
		module = models.CourseModule{ID: 50, Course: 8, Name: "Lecture recordings", ExtID: "ref-abc", Section: 1}

		Expect(audit.Start(ctx, false)).To(Succeed())
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	newRunContext := func(dryRun bool) *services.ReconcileContext {
		rc, err := categories.NewRunContext(ctx, s.Host(), dryRun)
		Expect(err).NotTo(HaveOccurred())
		return rc
	}

	Context("ResolveCategoryForModule", func() {
		// Given one free source category already under the channels root
		// When we reconcile the module
		// Then the category is renamed to the reserved target name
		It("should rename a free category into place", func() {
			catalog.addCategory(models.Category{
				ID:          10,
				ParentID:    1,
				Name:        "My Channel",
				FullName:    rootFullName + ">My Channel",
				ReferenceID: "ref-abc",
			})

			resolved, err := categories.ResolveCategoryForModule(ctx, newRunContext(false), module)
			Expect(err).NotTo(HaveOccurred())
			Expect(resolved.Name).To(Equal("8-105"))
			Expect(resolved.FullName).To(Equal(rootFullName + ">8-105"))

			ops := catalog.recordedOps()
			Expect(ops).To(HaveLen(1))
			Expect(ops[0]).To(Equal(recordedOp{Code: models.OpRenameCategory, ID: 10, Name: "8-105"}))
		})

		// Given a free source category outside the channels root
		// When we reconcile the module
		// Then the category is moved under the root with the target name
		It("should move a free category under the root", func() {
			catalog.addCategory(models.Category{
				ID:          2,
				Name:        "inbox",
				FullName:    "Moodle>site>inbox",
			})
			catalog.addCategory(models.Category{
				ID:          10,
				ParentID:    2,
				Name:        "My Channel",
				FullName:    "Moodle>site>inbox>My Channel",
				ReferenceID: "ref-abc",
			})

			resolved, err := categories.ResolveCategoryForModule(ctx, newRunContext(false), module)
			Expect(err).NotTo(HaveOccurred())
			Expect(resolved.FullName).To(Equal(rootFullName + ">8-105"))

			ops := catalog.recordedOps()
			codes := make([]string, len(ops))
			for i, op := range ops {
				codes[i] = op.Code
			}
			Expect(codes).To(ContainElement(models.OpMoveCategory))

			_, stillThere := catalog.category(10)
			Expect(stillThere).To(BeFalse())
		})

		// Given a category already sitting at the exact target path
		// When we reconcile the module
		// Then nothing is mutated
		It("should be a no-op when already migrated", func() {
			catalog.addCategory(models.Category{
				ID:          11,
				ParentID:    1,
				Name:        "8-105",
				FullName:    rootFullName + ">8-105",
				ReferenceID: "ref-abc",
			})

			resolved, err := categories.ResolveCategoryForModule(ctx, newRunContext(false), module)
			Expect(err).NotTo(HaveOccurred())
			Expect(resolved.ID).To(Equal(int64(11)))
			Expect(catalog.recordedOps()).To(BeEmpty())
		})

		// Given a foreign category occupying the target path
		// When we reconcile the module
		// Then reconciliation fails without mutating anything
		It("should refuse to touch a foreign occupant", func() {
			catalog.addCategory(models.Category{
				ID:          10,
				ParentID:    1,
				Name:        "My Channel",
				FullName:    rootFullName + ">My Channel",
				ReferenceID: "ref-abc",
			})
			catalog.addCategory(models.Category{
				ID:          20,
				ParentID:    1,
				Name:        "8-105",
				FullName:    rootFullName + ">8-105",
				ReferenceID: "ref-other",
			})

			_, err := categories.ResolveCategoryForModule(ctx, newRunContext(false), module)
			Expect(err).To(MatchError(services.ErrManualIntervention))
			Expect(catalog.recordedOps()).To(BeEmpty())
		})

		// Given the occupancy lookup failing while a foreign category
		// holds the target path
		// When we reconcile the module
		// Then the module fails and the catalog is untouched
		It("should fail the module when the occupancy check cannot be verified", func() {
			catalog.addCategory(models.Category{
				ID:          10,
				ParentID:    1,
				Name:        "My Channel",
				FullName:    rootFullName + ">My Channel",
				ReferenceID: "ref-abc",
			})
			catalog.addCategory(models.Category{
				ID:          20,
				ParentID:    1,
				Name:        "8-105",
				FullName:    rootFullName + ">8-105",
				ReferenceID: "ref-other",
			})

			flaky := &flakyLookupCatalog{fakeCatalog: catalog, failPath: rootFullName + ">8-105"}
			flakyCategories := services.NewCategories(flaky, audit, rootFullName, uiConfID)
			rc, err := flakyCategories.NewRunContext(ctx, s.Host(), false)
			Expect(err).NotTo(HaveOccurred())

			_, err = flakyCategories.ResolveCategoryForModule(ctx, rc, module)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("gateway timeout"))
			Expect(catalog.recordedOps()).To(BeEmpty())
		})

		// Given every candidate already claimed by another module
		// When we reconcile the module
		// Then the first candidate is copied as a shared template
		It("should copy a claimed candidate with its media", func() {
			catalog.addCategory(models.Category{
				ID:          10,
				ParentID:    1,
				Name:        "9-77",
				FullName:    rootFullName + ">9-77",
				ReferenceID: "ref-abc",
				Description: "shared recordings",
			})

			resolved, err := categories.ResolveCategoryForModule(ctx, newRunContext(false), module)
			Expect(err).NotTo(HaveOccurred())
			Expect(resolved.Name).To(Equal("8-105"))
			Expect(resolved.ReferenceID).To(Equal("ref-abc"))
			Expect(resolved.Description).To(Equal("shared recordings"))

			ops := catalog.recordedOps()
			Expect(ops).To(HaveLen(1))
			Expect(ops[0].Code).To(Equal(models.OpCopyCategory))

			source, stillThere := catalog.category(10)
			Expect(stillThere).To(BeTrue())
			Expect(source.Name).To(Equal("9-77"))
		})

		// Given no category carrying the module's reference id
		// When we reconcile the module
		// Then reconciliation fails
		It("should fail without a source category", func() {
			_, err := categories.ResolveCategoryForModule(ctx, newRunContext(false), module)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("ref-abc"))
		})

		// Given two modules reconciled in one run
		// When each creates a module id
		// Then the look-ahead counter advances per module
		It("should advance the module id guess within one run", func() {
			catalog.addCategory(models.Category{
				ID:          10,
				ParentID:    1,
				Name:        "First",
				FullName:    rootFullName + ">First",
				ReferenceID: "ref-abc",
			})
			catalog.addCategory(models.Category{
				ID:          12,
				ParentID:    1,
				Name:        "Second",
				FullName:    rootFullName + ">Second",
				ReferenceID: "ref-def",
			})

			rc := newRunContext(false)

			first, err := categories.ResolveCategoryForModule(ctx, rc, module)
			Expect(err).NotTo(HaveOccurred())
			Expect(first.Name).To(Equal("8-105"))

			second, err := categories.ResolveCategoryForModule(ctx, rc,
				models.CourseModule{ID: 51, Course: 8, ExtID: "ref-def"})
			Expect(err).NotTo(HaveOccurred())
			Expect(second.Name).To(Equal("8-106"))
		})
	})

	Context("dry run", func() {
		BeforeEach(func() {
			Expect(audit.Start(ctx, true)).To(Succeed())
		})

		// Given a dry run
		// When we reconcile a module needing a rename
		// Then the catalog is untouched and the operation is logged as
		// pending
		It("should simulate a rename without mutating the catalog", func() {
			catalog.addCategory(models.Category{
				ID:          10,
				ParentID:    1,
				Name:        "My Channel",
				FullName:    rootFullName + ">My Channel",
				ReferenceID: "ref-abc",
			})

			resolved, err := categories.ResolveCategoryForModule(ctx, newRunContext(true), module)
			Expect(err).NotTo(HaveOccurred())
			Expect(resolved.Name).To(Equal("8-105"))

			Expect(catalog.recordedOps()).To(BeEmpty())
			remote, _ := catalog.category(10)
			Expect(remote.Name).To(Equal("My Channel"))

			entries, err := s.Logs().List(ctx, audit.Execution())
			Expect(err).NotTo(HaveOccurred())

			var opEntry *models.LogEntry
			for i := range entries {
				if entries[i].Level == models.LevelOperation {
					opEntry = &entries[i]
				}
			}
			Expect(opEntry).NotTo(BeNil())
			Expect(opEntry.Code).To(Equal(models.OpRenameCategory))
			Expect(opEntry.Testing).To(BeTrue())
			Expect(opEntry.Message).To(ContainSubstring("will be renamed"))
		})

		// Given a dry run where a category was simulated into the target
		// When a second module resolves against the same state
		// Then the simulated world is visible to later decisions
		It("should let later decisions see simulated moves", func() {
			catalog.addCategory(models.Category{
				ID:          10,
				ParentID:    1,
				Name:        "My Channel",
				FullName:    rootFullName + ">My Channel",
				ReferenceID: "ref-abc",
			})

			rc := newRunContext(true)

			first, err := categories.ResolveCategoryForModule(ctx, rc, module)
			Expect(err).NotTo(HaveOccurred())
			Expect(first.Name).To(Equal("8-105"))

			// The same source is now claimed in the overlay: a second
			// module with the same reference id copies instead.
			second, err := categories.ResolveCategoryForModule(ctx, rc,
				models.CourseModule{ID: 51, Course: 8, ExtID: "ref-abc"})
			Expect(err).NotTo(HaveOccurred())
			Expect(second.Name).To(Equal("8-106"))
			Expect(second.ID).To(BeNumerically("<", 0))

			Expect(catalog.recordedOps()).To(BeEmpty())
		})

		// Given a dry run and a real run over the same remote state
		// When both reconcile the same module
		// Then they reach the same decision
		It("should predict the real run's decision", func() {
			catalog.addCategory(models.Category{
				ID:          10,
				ParentID:    1,
				Name:        "My Channel",
				FullName:    rootFullName + ">My Channel",
				ReferenceID: "ref-abc",
			})

			simulated, err := categories.ResolveCategoryForModule(ctx, newRunContext(true), module)
			Expect(err).NotTo(HaveOccurred())

			Expect(audit.Start(ctx, false)).To(Succeed())
			real, err := categories.ResolveCategoryForModule(ctx, newRunContext(false), module)
			Expect(err).NotTo(HaveOccurred())

			Expect(simulated.Name).To(Equal(real.Name))
			Expect(simulated.FullName).To(Equal(real.FullName))
		})
	})

	Context("ResolveCategoryForCourse", func() {
		// Given no gallery category for the course
		// When we resolve it
		// Then one is created directly under the channels root
		It("should create the course gallery on demand", func() {
			resolved, err := categories.ResolveCategoryForCourse(ctx, newRunContext(false), 8)
			Expect(err).NotTo(HaveOccurred())
			Expect(resolved.Name).To(Equal("8"))
			Expect(resolved.FullName).To(Equal(rootFullName + ">8"))

			ops := catalog.recordedOps()
			Expect(ops).To(HaveLen(1))
			Expect(ops[0].Code).To(Equal(models.OpCreateCategory))
		})

		// Given an existing gallery category
		// When we resolve it again
		// Then the existing one is reused
		It("should reuse an existing gallery", func() {
			catalog.addCategory(models.Category{
				ID:       30,
				ParentID: 1,
				Name:     "8",
				FullName: rootFullName + ">8",
			})

			resolved, err := categories.ResolveCategoryForCourse(ctx, newRunContext(false), 8)
			Expect(err).NotTo(HaveOccurred())
			Expect(resolved.ID).To(Equal(int64(30)))
			Expect(catalog.recordedOps()).To(BeEmpty())
		})

		// Given the gallery lookup failing while a gallery exists
		// When we resolve the course
		// Then the failure propagates and no duplicate is created
		It("should not create a gallery when its lookup fails", func() {
			catalog.addCategory(models.Category{
				ID:       30,
				ParentID: 1,
				Name:     "8",
				FullName: rootFullName + ">8",
			})

			flaky := &flakyLookupCatalog{fakeCatalog: catalog, failPath: rootFullName + ">8"}
			flakyCategories := services.NewCategories(flaky, audit, rootFullName, uiConfID)
			rc, err := flakyCategories.NewRunContext(ctx, s.Host(), false)
			Expect(err).NotTo(HaveOccurred())

			_, err = flakyCategories.ResolveCategoryForCourse(ctx, rc, 8)
			Expect(err).To(HaveOccurred())
			Expect(catalog.recordedOps()).To(BeEmpty())
		})

		// Given a dry run
		// When we resolve a missing gallery
		// Then a synthetic category is simulated instead of created
		It("should simulate gallery creation during a dry run", func() {
			Expect(audit.Start(ctx, true)).To(Succeed())

			resolved, err := categories.ResolveCategoryForCourse(ctx, newRunContext(true), 8)
			Expect(err).NotTo(HaveOccurred())
			Expect(resolved.ID).To(BeNumerically("<", 0))
			Expect(resolved.Name).To(Equal("8"))
			Expect(catalog.recordedOps()).To(BeEmpty())
		})
	})
})
