package kaltura

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cenkalti/backoff/v5"

	"github.com/swisscast/kaltura-migration/internal/models"
)

// Audit receives the durable trail of every remote lookup anomaly and
// mutation. Satisfied by the engine's audit logger; nil disables it.
type Audit interface {
	Info(ctx context.Context, format string, args ...any)
	Warning(ctx context.Context, format string, args ...any)
	Error(ctx context.Context, format string, args ...any)
	Op(ctx context.Context, code, id1, id2 string)
}

// SetAudit attaches the audit sink used for warnings and operation
// records. Called once at the start of a run.
func (c *Client) SetAudit(a Audit) {
	c.audit = a
}

func (c *Client) auditWarning(ctx context.Context, format string, args ...any) {
	if c.audit != nil {
		c.audit.Warning(ctx, format, args...)
	} else {
		c.log.Warnf(format, args...)
	}
}

func (c *Client) auditError(ctx context.Context, format string, args ...any) {
	if c.audit != nil {
		c.audit.Error(ctx, format, args...)
	} else {
		c.log.Errorf(format, args...)
	}
}

func (c *Client) auditInfo(ctx context.Context, format string, args ...any) {
	if c.audit != nil {
		c.audit.Info(ctx, format, args...)
	} else {
		c.log.Infof(format, args...)
	}
}

func (c *Client) auditOp(ctx context.Context, code, id1, id2 string) {
	if c.audit != nil {
		c.audit.Op(ctx, code, id1, id2)
	}
}

type listResponse[T any] struct {
	Objects    []T `json:"objects"`
	TotalCount int `json:"totalCount"`
}

// --- media ---

func (c *Client) listMedia(ctx context.Context, filter map[string]any) ([]models.MediaEntry, error) {
	var resp listResponse[models.MediaEntry]
	if err := c.call(ctx, "media", "list", map[string]any{"filter": filter}, &resp); err != nil {
		return nil, err
	}
	return resp.Objects, nil
}

// FindMediaByReferenceID returns the media entry with the given
// reference id, or ErrNotFound. Multiple matches take the first entry
// in server order after logging a warning.
func (c *Client) FindMediaByReferenceID(ctx context.Context, referenceID string) (*models.MediaEntry, error) {
	entries, err := c.listMedia(ctx, map[string]any{"referenceIdEqual": referenceID})
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrNotFound
	}
	if len(entries) > 1 {
		c.auditWarning(ctx, "There are %d entries with reference id %s, taking the first one with id %s.",
			len(entries), referenceID, entries[0].ID)
	}
	return &entries[0], nil
}

// FindMediaByReferenceIDs tries each reference id in order and returns
// the first match, or ErrNotFound when every id yields nothing.
func (c *Client) FindMediaByReferenceIDs(ctx context.Context, referenceIDs []string) (*models.MediaEntry, error) {
	for _, id := range referenceIDs {
		entry, err := c.FindMediaByReferenceID(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return entry, nil
	}
	return nil, ErrNotFound
}

// FindMediaByEntryID looks a media entry up by its Kaltura entry id.
func (c *Client) FindMediaByEntryID(ctx context.Context, entryID string) (*models.MediaEntry, error) {
	entries, err := c.listMedia(ctx, map[string]any{"idEqual": entryID})
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrNotFound
	}
	return &entries[0], nil
}

// --- categories ---

func (c *Client) listCategories(ctx context.Context, filter map[string]any) ([]models.Category, error) {
	var resp listResponse[models.Category]
	if err := c.call(ctx, "category", "list", map[string]any{"filter": filter}, &resp); err != nil {
		return nil, err
	}
	return resp.Objects, nil
}

// FindCategoriesByReferenceID returns all categories sharing the given
// reference id, in server order. The source system is known to carry
// duplicates; callers decide how to resolve them.
func (c *Client) FindCategoriesByReferenceID(ctx context.Context, referenceID string) ([]models.Category, error) {
	return c.listCategories(ctx, map[string]any{"referenceIdEqual": referenceID})
}

// FindCategoryByReferenceID is the at-most-one variant: zero matches is
// ErrNotFound, several matches warn and take the first.
func (c *Client) FindCategoryByReferenceID(ctx context.Context, referenceID string) (*models.Category, error) {
	categories, err := c.FindCategoriesByReferenceID(ctx, referenceID)
	if err != nil {
		return nil, err
	}
	if len(categories) == 0 {
		return nil, ErrNotFound
	}
	if len(categories) > 1 {
		c.auditWarning(ctx, "There are %d categories with reference id %s, taking the first one with id %d.",
			len(categories), referenceID, categories[0].ID)
	}
	return &categories[0], nil
}

// FindCategoryByFullName fetches a category by its exact materialized
// path, eg "Moodle>site>channels>2-50".
func (c *Client) FindCategoryByFullName(ctx context.Context, fullName string) (*models.Category, error) {
	categories, err := c.listCategories(ctx, map[string]any{"fullNameEqual": fullName})
	if err != nil {
		return nil, err
	}
	if len(categories) == 0 {
		return nil, ErrNotFound
	}
	if len(categories) > 1 {
		c.auditWarning(ctx, "There are %d categories with full name %s, taking the first one with id %d.",
			len(categories), fullName, categories[0].ID)
	}
	return &categories[0], nil
}

// FindCategoryByParentAndName searches for a direct child of parent with
// the given name.
func (c *Client) FindCategoryByParentAndName(ctx context.Context, parent *models.Category, name string) (*models.Category, error) {
	return c.FindCategoryByFullName(ctx, parent.ChildFullName(name))
}

// CreateCategoryRequest carries exactly the fields the migration is
// allowed to set on a new category. Privacy, access control and
// ownership stay unset: inheriting them from a source category trips
// remote-side validation depending on the parent's configuration.
type CreateCategoryRequest struct {
	Name        string `json:"name"`
	ParentID    int64  `json:"parentId"`
	Description string `json:"description,omitempty"`
	Tags        string `json:"tags,omitempty"`
	ReferenceID string `json:"referenceId,omitempty"`
}

// CreateCategory creates a new category. Remote rejections are logged
// and returned; the caller skips the item and continues the batch.
func (c *Client) CreateCategory(ctx context.Context, req CreateCategoryRequest) (*models.Category, error) {
	var created models.Category
	if err := c.call(ctx, "category", "add", map[string]any{"category": req}, &created); err != nil {
		c.auditError(ctx, "Could not create category. %v", err)
		return nil, err
	}
	c.auditOp(ctx, models.OpCreateCategory, fmt.Sprint(created.ID), created.Name)
	return &created, nil
}

// renameCategory updates the name of a category in place, retrying
// under LockedRetry while the remote taxonomy is locked.
func (c *Client) renameCategory(ctx context.Context, category *models.Category, name string) (*models.Category, error) {
	updated, err := Run(ctx, LockedRetry, func() (*models.Category, error) {
		var out models.Category
		err := c.call(ctx, "category", "update", map[string]any{
			"id":       category.ID,
			"category": map[string]any{"name": name},
		}, &out)
		if err != nil {
			if IsCode(err, CodeCategoriesLocked) {
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		return &out, nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// MoveOrRenameCategory brings category to the given parent and name.
// A category already in place is returned unchanged. A pure rename
// happens in place. A move is implemented as copy-with-media plus
// best-effort delete of the original: the remote move endpoint has
// shown buggy behavior with non-empty categories.
func (c *Client) MoveOrRenameCategory(ctx context.Context, category, parent *models.Category, name string) (*models.Category, error) {
	if category.ParentID == parent.ID && category.Name == name {
		return category, nil
	}
	if category.ParentID == parent.ID {
		updated, err := c.renameCategory(ctx, category, name)
		if err != nil {
			c.auditError(ctx, "Error renaming category %d to %s. %v", category.ID, name, err)
			return nil, err
		}
		c.auditOp(ctx, models.OpRenameCategory, fmt.Sprint(category.ID), name)
		return updated, nil
	}

	copied, err := c.CopyCategoryWithMedia(ctx, category, parent, name)
	if err != nil {
		return nil, err
	}
	c.DeleteCategory(ctx, category)
	c.auditOp(ctx, models.OpMoveCategory, fmt.Sprint(category.ID), copied.FullName)
	return copied, nil
}

// DeleteCategory removes a category without moving its entries to the
// parent. Best-effort: an orphaned category is preferable to halting
// the migration.
func (c *Client) DeleteCategory(ctx context.Context, category *models.Category) bool {
	err := c.call(ctx, "category", "delete", map[string]any{
		"id":                          category.ID,
		"moveEntriesToParentCategory": 0,
	}, nil)
	if err != nil {
		c.auditError(ctx, "Error deleting category %d. %v", category.ID, err)
		return false
	}
	c.auditOp(ctx, models.OpDeleteCategory, fmt.Sprint(category.ID), "")
	return true
}

// CopyCategoryWithMedia creates a copy of source under parent with the
// given name and fills it with every media entry of the source. The
// source category is left untouched.
func (c *Client) CopyCategoryWithMedia(ctx context.Context, source, parent *models.Category, newName string) (*models.Category, error) {
	created, err := c.CreateCategory(ctx, CreateCategoryRequest{
		Name:        newName,
		ParentID:    parent.ID,
		Description: source.Description,
		Tags:        source.Tags,
		ReferenceID: source.ReferenceID,
	})
	if err != nil {
		return nil, err
	}
	if err := c.copyMedia(ctx, source, created); err != nil {
		return nil, err
	}
	c.auditOp(ctx, models.OpCopyCategory, fmt.Sprint(source.ID), newName)
	return created, nil
}

// CopyMedia adds every entry of the source category to the destination,
// skipping entries already present there. Used directly by the
// course-gallery migration mode.
func (c *Client) CopyMedia(ctx context.Context, from, to *models.Category) error {
	return c.copyMedia(ctx, from, to)
}

// copyMedia adds every entry of the source category to the destination,
// skipping entries already present there.
func (c *Client) copyMedia(ctx context.Context, from, to *models.Category) error {
	var sourceEntries listResponse[models.CategoryEntry]
	err := c.call(ctx, "categoryEntry", "list", map[string]any{
		"filter": map[string]any{"categoryIdEqual": from.ID},
	}, &sourceEntries)
	if err != nil {
		return err
	}
	entryIDs := make([]string, 0, len(sourceEntries.Objects))
	for _, e := range sourceEntries.Objects {
		entryIDs = append(entryIDs, e.EntryID)
	}
	if len(entryIDs) == 0 {
		return nil
	}

	var existing listResponse[models.CategoryEntry]
	err = c.call(ctx, "categoryEntry", "list", map[string]any{
		"filter": map[string]any{
			"categoryIdEqual": to.ID,
			"entryIdIn":       strings.Join(entryIDs, ","),
		},
	}, &existing)
	if err != nil {
		return err
	}
	present := make(map[string]struct{}, len(existing.Objects))
	for _, e := range existing.Objects {
		present[e.EntryID] = struct{}{}
	}

	for _, id := range entryIDs {
		if _, ok := present[id]; ok {
			c.auditInfo(ctx, "Entry id %s already in category, no need to add", id)
			continue
		}
		err := c.call(ctx, "categoryEntry", "add", map[string]any{
			"categoryEntry": models.CategoryEntry{CategoryID: to.ID, EntryID: id},
		}, nil)
		if err != nil {
			c.auditError(ctx, "Error adding entry %s to category %d. Should be fixed manually! %v", id, to.ID, err)
			continue
		}
		c.auditOp(ctx, models.OpAddMediaToCategory, id, fmt.Sprint(to.ID))
	}
	return nil
}

// --- ui conf ---

// ListUIConfs returns the flat list of player configurations.
func (c *Client) ListUIConfs(ctx context.Context) ([]models.UIConf, error) {
	var resp listResponse[models.UIConf]
	if err := c.call(ctx, "uiConf", "list", map[string]any{}, &resp); err != nil {
		return nil, err
	}
	return resp.Objects, nil
}

// ValidateUIConf checks that the configured player id exists, falling
// back to the first available player with a warning when it does not.
func (c *Client) ValidateUIConf(ctx context.Context, configured int64) (int64, error) {
	confs, err := c.ListUIConfs(ctx)
	if err != nil {
		return 0, err
	}
	if len(confs) == 0 {
		return 0, fmt.Errorf("no player configurations available")
	}
	for _, conf := range confs {
		if conf.ID == configured {
			return configured, nil
		}
	}
	c.auditWarning(ctx, "Player id %d not found, using id %d by default.", configured, confs[0].ID)
	return confs[0].ID, nil
}
